package postgres

// Таблицы принадлежат маркетплейсу; сервис чата их только читает.
const (
	QueryGetGrant = `
		SELECT property_id, user_id, status
		FROM rental_requests
		WHERE property_id = $1 AND user_id = $2
		ORDER BY created_at DESC
		LIMIT 1;
	`
	QueryGetUsersByIDs = `
		SELECT id, email, display_name, role
		FROM users
		WHERE id = ANY($1);
	`
	QueryGetPropertyOwner = `
		SELECT owner_id
		FROM properties
		WHERE id = $1;
	`
)
