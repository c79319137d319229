package db

import (
	"context"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"
)

// TxBeginner is satisfied by *pgxpool.Pool and *pgx.Conn.
type TxBeginner interface {
	BeginTx(ctx context.Context, opts pgx.TxOptions) (pgx.Tx, error)
}

// TxOption adjusts the options of the transaction opened by WithTx.
type TxOption func(*pgx.TxOptions)

// Isolation overrides the isolation level.
func Isolation(level pgx.TxIsoLevel) TxOption {
	return func(o *pgx.TxOptions) { o.IsoLevel = level }
}

// ReadOnly opens a read-only transaction.
func ReadOnly() TxOption {
	return func(o *pgx.TxOptions) { o.AccessMode = pgx.ReadOnly }
}

// WithTx runs fn in a transaction, ReadCommitted unless overridden, so every
// statement after an advisory lock sees rows committed by the previous
// holder. The transaction is rolled back when fn fails or panics and
// committed otherwise.
func WithTx(ctx context.Context, db TxBeginner, fn func(pgx.Tx) error, opts ...TxOption) error {
	txOpts := pgx.TxOptions{IsoLevel: pgx.ReadCommitted}
	for _, opt := range opts {
		opt(&txOpts)
	}
	tx, err := db.BeginTx(ctx, txOpts)
	if err != nil {
		return fmt.Errorf("platform/db: begin tx: %w", err)
	}
	committed := false
	defer func() {
		if !committed {
			_ = tx.Rollback(ctx)
		}
	}()

	if err := fn(tx); err != nil {
		return err
	}
	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("platform/db: commit tx: %w", err)
	}
	committed = true
	return nil
}

// AdvisoryLock takes a transaction-scoped advisory lock on the key built by
// joining parts with ':'. It blocks until the lock is granted and is released
// at commit or rollback.
func AdvisoryLock(ctx context.Context, tx pgx.Tx, parts ...string) error {
	if len(parts) == 0 {
		return fmt.Errorf("platform/db: advisory lock needs a key")
	}
	if _, err := tx.Exec(ctx, `SELECT pg_advisory_xact_lock(hashtext($1))`, strings.Join(parts, ":")); err != nil {
		return fmt.Errorf("platform/db: advisory lock: %w", err)
	}
	return nil
}
