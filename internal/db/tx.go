package db

import (
	"context"
	"database/sql"
	"errors"
)

// Querier is what repositories run statements on: the pool, or the
// transaction carried by the context.
type Querier interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

type txKey struct{}

func txFrom(ctx context.Context) (*sql.Tx, bool) {
	tx, ok := ctx.Value(txKey{}).(*sql.Tx)
	return tx, ok
}

// Conn returns the transaction in ctx, or pool when there is none.
func Conn(ctx context.Context, pool *sql.DB) Querier {
	if tx, ok := txFrom(ctx); ok {
		return tx
	}
	return pool
}

// WithTx runs fn in a transaction. If ctx already carries one, fn joins it
// and the outermost caller decides commit or rollback. Otherwise a new
// transaction is begun, committed when fn returns nil and rolled back when it
// returns an error.
func WithTx(ctx context.Context, pool *sql.DB, fn func(ctx context.Context, q Querier) error) error {
	if tx, ok := txFrom(ctx); ok {
		return fn(ctx, tx)
	}
	tx, err := pool.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	if err := fn(context.WithValue(ctx, txKey{}, tx), tx); err != nil {
		if rbErr := tx.Rollback(); rbErr != nil && !errors.Is(rbErr, sql.ErrTxDone) {
			return errors.Join(err, rbErr)
		}
		return err
	}
	return tx.Commit()
}

// Transactor is a unit of work over pool. Repositories reached through the
// context passed to fn share its transaction.
type Transactor struct {
	pool *sql.DB
}

// NewTransactor returns a Transactor over pool.
func NewTransactor(pool *sql.DB) *Transactor {
	return &Transactor{pool: pool}
}

// InTx runs fn in one transaction.
func (t *Transactor) InTx(ctx context.Context, fn func(ctx context.Context) error) error {
	return WithTx(ctx, t.pool, func(ctx context.Context, _ Querier) error {
		return fn(ctx)
	})
}
