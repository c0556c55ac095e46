package postgres

import (
	"context"
	"errors"

	"github.com/cwrk-planet/ijara-chat/internal/domain"

	"github.com/jackc/pgx/v5"
)

type GrantRepository struct {
	q Querier
}

func NewGrantRepository(q Querier) *GrantRepository {
	return &GrantRepository{q: q}
}

// GetGrant возвращает самую свежую заявку пользователя на объект; nil, если заявки нет.
func (r *GrantRepository) GetGrant(ctx context.Context, propertyID, userID string) (*domain.AccessGrant, error) {
	var g domain.AccessGrant
	err := r.q.QueryRow(ctx, QueryGetGrant, propertyID, userID).Scan(&g.PropertyID, &g.UserID, &g.Status)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return &g, nil
}
