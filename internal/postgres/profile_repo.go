package postgres

import (
	"context"

	"github.com/cwrk-planet/ijara-chat/internal/domain"
)

type ProfileRepository struct {
	q Querier
}

func NewProfileRepository(q Querier) *ProfileRepository {
	return &ProfileRepository{q: q}
}

// GetProfiles - участники диалога одним запросом; отсутствующих пользователей просто нет в map.
func (r *ProfileRepository) GetProfiles(ctx context.Context, userIDs []string) (map[string]domain.UserProfile, error) {
	rows, err := r.q.Query(ctx, QueryGetUsersByIDs, userIDs)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make(map[string]domain.UserProfile, len(userIDs))
	for rows.Next() {
		var p domain.UserProfile
		if err := rows.Scan(&p.ID, &p.Email, &p.DisplayName, &p.Role); err != nil {
			return nil, err
		}
		out[p.ID] = p
	}
	return out, rows.Err()
}
