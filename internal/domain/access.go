package domain

type AccessDecision int

const (
	AccessDenied AccessDecision = iota
	AccessGranted
)

func (d AccessDecision) Granted() bool { return d == AccessGranted }

func (d AccessDecision) String() string {
	if d == AccessGranted {
		return "granted"
	}
	return "denied"
}

const GrantStatusPending = "pending"

// AccessGrant - заявка на аренду из маркетплейса, только для чтения.
type AccessGrant struct {
	PropertyID string
	UserID     string
	Status     string
}
