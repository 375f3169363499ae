package db

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"kisaanconnect/internal/types"
)

// TxRunner executes a function inside a database transaction. The function
// receives a DBTX bound to the transaction, so repositories constructed over
// it participate in the same transaction.
type TxRunner struct {
	pool *pgxpool.Pool
}

// NewTxRunner creates a TxRunner backed by the given pool.
func NewTxRunner(pool *pgxpool.Pool) *TxRunner {
	return &TxRunner{pool: pool}
}

// RunInTx begins a transaction, invokes fn, and commits. If fn returns an
// error or panics the transaction is rolled back and the original error is
// returned unchanged so AppError codes survive the transaction boundary.
func (r *TxRunner) RunInTx(ctx context.Context, fn func(tx DBTX) error) error {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return types.NewAppError(types.ErrCodeInternalDB, "failed to begin transaction", err)
	}

	defer func() {
		// Rollback after commit is a no-op returning pgx.ErrTxClosed.
		if rbErr := tx.Rollback(ctx); rbErr != nil && !errors.Is(rbErr, pgx.ErrTxClosed) {
			// Nothing actionable; the connection is returned to the pool.
			_ = rbErr
		}
	}()

	if err := fn(tx); err != nil {
		return err
	}

	if err := tx.Commit(ctx); err != nil {
		return types.NewAppError(types.ErrCodeInternalDB, "failed to commit transaction", err)
	}
	return nil
}
