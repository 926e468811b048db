package database

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
)

// ReadOnly is the option set for lookups that never write.
var ReadOnly = pgx.TxOptions{AccessMode: pgx.ReadOnly}

// ReadWrite is the default option set for mutations.
var ReadWrite = pgx.TxOptions{}

// Transactor runs a function inside a database transaction.
type Transactor interface {
	RunInTx(ctx context.Context, opts pgx.TxOptions, fn func(ctx context.Context) error) error
}

var _ Transactor = (*DB)(nil)

// RunInTx begins a transaction, stores it in the context passed to fn and
// commits when fn returns nil. Any error or panic rolls the transaction back.
//
// If ctx already carries a transaction, fn joins it: nothing is begun or
// committed here and the outer caller keeps ownership of the outcome. This is
// how index refreshes piggyback on the source record's transaction.
func (db *DB) RunInTx(ctx context.Context, opts pgx.TxOptions, fn func(ctx context.Context) error) error {
	if _, ok := GetTx(ctx); ok {
		return fn(ctx)
	}

	tx, err := db.Pool.BeginTx(ctx, opts)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}

	committed := false
	defer func() {
		if !committed {
			_ = tx.Rollback(ctx)
		}
	}()

	if err := fn(SetTx(ctx, tx)); err != nil {
		return err
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	committed = true

	return nil
}
