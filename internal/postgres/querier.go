package postgres

import (
	"context"

	"github.com/jackc/pgx/v5"
)

/*
абстрактный слой над *pgxpool.Pool / pgx.Tx,
чтобы репозитории одинаково работали и в транзакции, и без неё
*/
type Querier interface {
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
}
