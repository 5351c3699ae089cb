package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
)

// DBTX is what repositories run against: the pool itself or an open
// transaction, so the same repository code works inside WithTx.
type DBTX interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
	ExecReturningID(ctx context.Context, query string, args ...any) (int64, error)
	Dialect() *Dialect
}

var (
	_ DBTX = (*DB)(nil)
	_ DBTX = (*Tx)(nil)
)

// Tx is a transaction that rebinds placeholders like DB does
type Tx struct {
	*sql.Tx
	dialect *Dialect
}

// WithTx runs fn in a transaction. A returned error or panic rolls back;
// otherwise the transaction commits.
func (db *DB) WithTx(ctx context.Context, fn func(tx *Tx) error) (err error) {
	sqlTx, err := db.DB.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	tx := &Tx{Tx: sqlTx, dialect: db.dialect}

	defer func() {
		if p := recover(); p != nil {
			_ = sqlTx.Rollback()
			panic(p)
		}
	}()

	if err := fn(tx); err != nil {
		if rbErr := sqlTx.Rollback(); rbErr != nil && !errors.Is(rbErr, sql.ErrTxDone) {
			return fmt.Errorf("%w (rollback failed: %v)", err, rbErr)
		}
		return err
	}
	if err := sqlTx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

// Dialect returns the backend the transaction runs on
func (tx *Tx) Dialect() *Dialect {
	return tx.dialect
}

// QueryContext runs a query inside the transaction
func (tx *Tx) QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error) {
	return tx.Tx.QueryContext(ctx, tx.dialect.Rebind(query), args...)
}

// QueryRowContext runs a single-row query inside the transaction
func (tx *Tx) QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row {
	return tx.Tx.QueryRowContext(ctx, tx.dialect.Rebind(query), args...)
}

// ExecContext runs a statement inside the transaction
func (tx *Tx) ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error) {
	return tx.Tx.ExecContext(ctx, tx.dialect.Rebind(query), args...)
}

// ExecReturningID runs an INSERT inside the transaction and returns the new id
func (tx *Tx) ExecReturningID(ctx context.Context, query string, args ...any) (int64, error) {
	return insertID(ctx, tx.Tx, tx.dialect, query, args)
}
