package domain

const UnknownEmail = "Unknown"

type UserProfile struct {
	ID          string
	Email       string
	DisplayName *string
	Role        string
}

// ParticipantInfo - то, что показывается в шапке чата.
type ParticipantInfo struct {
	UserID          string
	Email           string
	DisplayName     string
	IsPropertyOwner bool
}

func PlaceholderParticipant(userID string, owner bool) ParticipantInfo {
	return ParticipantInfo{UserID: userID, Email: UnknownEmail, IsPropertyOwner: owner}
}
