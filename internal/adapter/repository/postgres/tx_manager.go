package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/iho/commissions/internal/usecase"
)

type pgxPool interface {
	Begin(context.Context) (pgx.Tx, error)
}

// TxManager implements usecase.TransactionManager. Repositories given the resulting
// Tx run their statements on it; a nil Tx falls back to the pool.
type TxManager struct {
	pool    pgxPool
	timeout time.Duration
}

// NewTxManager creates a TxManager whose units of work are bounded by
// usecase.DefaultTransactionTimeout.
func NewTxManager(pool *pgxpool.Pool) *TxManager {
	return newTxManagerWithPool(pool, usecase.DefaultTransactionTimeout)
}

func newTxManagerWithPool(pool pgxPool, timeout time.Duration) *TxManager {
	if timeout <= 0 {
		timeout = usecase.DefaultTransactionTimeout
	}
	return &TxManager{pool: pool, timeout: timeout}
}

// Begin starts a new transaction.
func (m *TxManager) Begin(ctx context.Context) (usecase.Transaction, error) {
	tx, err := m.pool.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("begin transaction: %w", err)
	}

	return &Tx{tx: tx}, nil
}

// WithinTx runs fn in one transaction. Statement header changes, match resets and row
// clean-up done inside fn become visible together or not at all. A panic in fn rolls
// back and is re-raised.
func (m *TxManager) WithinTx(ctx context.Context, fn func(ctx context.Context, tx usecase.Transaction) error) error {
	txCtx, cancel := context.WithTimeout(ctx, m.timeout)
	defer cancel()

	tx, err := m.Begin(txCtx)
	if err != nil {
		return err
	}

	defer func() {
		if p := recover(); p != nil {
			_ = tx.Rollback(context.WithoutCancel(txCtx))
			panic(p)
		}
	}()

	if err := fn(txCtx, tx); err != nil {
		if rbErr := tx.Rollback(context.WithoutCancel(txCtx)); rbErr != nil && !errors.Is(rbErr, pgx.ErrTxClosed) {
			return errors.Join(err, fmt.Errorf("rollback transaction: %w", rbErr))
		}
		return err
	}

	if err := tx.Commit(txCtx); err != nil {
		return fmt.Errorf("commit transaction: %w", err)
	}
	return nil
}

// Tx wraps a pgx transaction.
type Tx struct {
	tx pgx.Tx
}

// Commit commits the transaction.
func (t *Tx) Commit(ctx context.Context) error {
	return t.tx.Commit(ctx)
}

// Rollback rolls back the transaction.
func (t *Tx) Rollback(ctx context.Context) error {
	return t.tx.Rollback(ctx)
}

// PgxTx returns the underlying pgx.Tx.
func (t *Tx) PgxTx() pgx.Tx {
	return t.tx
}
