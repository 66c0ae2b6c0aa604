package db

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

type contextKey string

const txKey contextKey = "db_tx"

// TxFromContext retrieves the transaction bound to the context, if any.
func TxFromContext(ctx context.Context) pgx.Tx {
	tx, _ := ctx.Value(txKey).(pgx.Tx)
	return tx
}

// WithTx begins a transaction on the pool and returns a child context carrying
// it. Repositories route their statements through the bound transaction, so
// every write made under the returned context commits or rolls back as one
// unit. The reminder state transition and its ledger side effects share a
// single transaction scope through this mechanism.
func WithTx(ctx context.Context, pool *pgxpool.Pool) (context.Context, pgx.Tx, error) {
	if tx := TxFromContext(ctx); tx != nil {
		return ctx, tx, fmt.Errorf("context already carries a transaction")
	}

	tx, err := pool.Begin(ctx)
	if err != nil {
		return ctx, nil, fmt.Errorf("begin transaction: %w", err)
	}

	return context.WithValue(ctx, txKey, tx), tx, nil
}

// RunInTx executes fn inside a transaction, committing on success and rolling
// back on error or panic.
func RunInTx(ctx context.Context, pool *pgxpool.Pool, fn func(ctx context.Context) error) error {
	txCtx, tx, err := WithTx(ctx, pool)
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)

	if err := fn(txCtx); err != nil {
		return err
	}

	return tx.Commit(ctx)
}
