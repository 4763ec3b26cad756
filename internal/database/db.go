// Package database wraps *sql.DB with the small helpers the repositories
// share: transaction scoping and pagination clamping.
package database

import (
	"context"
	"database/sql"
	"fmt"
)

type DB struct {
	*sql.DB
}

func New(db *sql.DB) *DB {
	return &DB{db}
}

// TxFn runs inside a transaction; returning an error rolls everything back.
type TxFn func(*sql.Tx) error

// WithTransaction runs fn inside a transaction, committing on success and
// rolling back on error or panic. This is the only mechanism the trade path
// uses for its cash/position/transaction commit, so a failed order can never
// leave a partial write behind.
func (db *DB) WithTransaction(ctx context.Context, fn TxFn) error {
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}

	defer func() {
		if p := recover(); p != nil {
			tx.Rollback()
			panic(p)
		}
	}()

	if err := fn(tx); err != nil {
		tx.Rollback()
		return err
	}

	return tx.Commit()
}

const (
	defaultLimit = 50
	maxLimit     = 100
)

// SafeLimit clamps a caller-supplied page size.
func SafeLimit(limit int) int {
	if limit <= 0 {
		return defaultLimit
	}
	if limit > maxLimit {
		return maxLimit
	}
	return limit
}

// SafeOffset clamps a caller-supplied offset.
func SafeOffset(offset int) int {
	if offset < 0 {
		return 0
	}
	return offset
}
