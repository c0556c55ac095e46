package postgres

import (
	"context"
	"errors"

	"github.com/cwrk-planet/ijara-chat/internal/domain"

	"github.com/jackc/pgx/v5"
)

type PropertyRepository struct {
	q Querier
}

func NewPropertyRepository(q Querier) *PropertyRepository {
	return &PropertyRepository{q: q}
}

// OwnerID - владелец объекта; транспорт не доверяет landlord_id от клиента.
func (r *PropertyRepository) OwnerID(ctx context.Context, propertyID string) (string, error) {
	var owner string
	if err := r.q.QueryRow(ctx, QueryGetPropertyOwner, propertyID).Scan(&owner); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return "", domain.ErrPropertyNotFound
		}
		return "", err
	}
	return owner, nil
}
