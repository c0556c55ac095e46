package badgerdb

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/dgraph-io/badger/v4"
)

// maxConflictRetries - сколько раз повторяем транзакцию при badger.ErrConflict.
const maxConflictRetries = 8

type Config struct {
	Path     string
	InMemory bool
	Debug    bool
}

type DB struct {
	db *badger.DB
}

func Open(cfg Config) (*DB, error) {
	var opts badger.Options
	if cfg.InMemory {
		opts = badger.DefaultOptions("").WithInMemory(true)
	} else {
		if cfg.Path == "" {
			return nil, errors.New("badger: empty path")
		}
		opts = badger.DefaultOptions(cfg.Path)
	}

	lvl := badger.WARNING
	if cfg.Debug {
		lvl = badger.DEBUG
	}
	opts = opts.WithLogger(slogAdapter{l: slog.Default().With("component", "badger")}).
		WithLoggingLevel(lvl)

	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("badger open: %w", err)
	}
	return &DB{db: db}, nil
}

func (d *DB) Close() error {
	return d.db.Close()
}

// update выполняет fn в read-write транзакции, повторяя её при конфликте.
// fn должна быть идемпотентной: на повторе она видит свежий снапшот.
func (d *DB) update(ctx context.Context, fn func(txn *badger.Txn) error) error {
	var err error
	for attempt := 0; attempt < maxConflictRetries; attempt++ {
		if err = ctx.Err(); err != nil {
			return err
		}
		err = d.db.Update(fn)
		if !errors.Is(err, badger.ErrConflict) {
			return err
		}
		slog.Debug("badger txn conflict, retrying", "attempt", attempt+1)
	}
	return err
}

func (d *DB) view(ctx context.Context, fn func(txn *badger.Txn) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	return d.db.View(fn)
}

type slogAdapter struct {
	l *slog.Logger
}

func (a slogAdapter) Errorf(f string, v ...any)   { a.l.Error(fmt.Sprintf(f, v...)) }
func (a slogAdapter) Warningf(f string, v ...any) { a.l.Warn(fmt.Sprintf(f, v...)) }
func (a slogAdapter) Infof(f string, v ...any)    { a.l.Info(fmt.Sprintf(f, v...)) }
func (a slogAdapter) Debugf(f string, v ...any)   { a.l.Debug(fmt.Sprintf(f, v...)) }
