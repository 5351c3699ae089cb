package database

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"hanashite/internal/config"
)

// DB is the shared connection pool. Queries written with ? placeholders
// are rebound for the configured backend.
type DB struct {
	*sql.DB
	dialect *Dialect
}

// OpenSQLite opens a SQLite database at path. Used by tests.
func OpenSQLite(path string) (*DB, error) {
	return open(SQLite, path)
}

// Open connects to the backend named by cfg.DatabaseType
func Open(cfg *config.Config) (*DB, error) {
	dialect, err := LookupDialect(cfg.DatabaseType)
	if err != nil {
		return nil, err
	}
	source := cfg.DatabaseURL
	if dialect == SQLite {
		source = cfg.DatabasePath
	}
	return open(dialect, source)
}

func open(dialect *Dialect, source string) (*DB, error) {
	dsn, err := dialect.DSN(source)
	if err != nil {
		return nil, err
	}
	sqlDB, err := sql.Open(dialect.Driver, dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open %s database: %w", dialect.Name, err)
	}
	if err := sqlDB.Ping(); err != nil {
		sqlDB.Close()
		return nil, fmt.Errorf("failed to reach %s database: %w", dialect.Name, err)
	}
	if err := dialect.configure(sqlDB); err != nil {
		sqlDB.Close()
		return nil, fmt.Errorf("failed to configure %s connection: %w", dialect.Name, err)
	}
	return &DB{DB: sqlDB, dialect: dialect}, nil
}

// Dialect returns the backend this pool talks to
func (db *DB) Dialect() *Dialect {
	return db.dialect
}

// QueryContext runs a query after rebinding its placeholders for the dialect
func (db *DB) QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error) {
	return db.DB.QueryContext(ctx, db.dialect.Rebind(query), args...)
}

// QueryRowContext runs a single-row query after rebinding its placeholders
func (db *DB) QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row {
	return db.DB.QueryRowContext(ctx, db.dialect.Rebind(query), args...)
}

// ExecContext runs a statement that returns no rows after rebinding its placeholders
func (db *DB) ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error) {
	return db.DB.ExecContext(ctx, db.dialect.Rebind(query), args...)
}

// ExecReturningID runs an INSERT into a table with an integer id column and
// returns the new id.
func (db *DB) ExecReturningID(ctx context.Context, query string, args ...any) (int64, error) {
	return insertID(ctx, db.DB, db.dialect, query, args)
}

// rawConn is the subset of *sql.DB and *sql.Tx that insertID needs
type rawConn interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// insertID uses LastInsertId where the driver has it and RETURNING id on
// PostgreSQL, which does not.
func insertID(ctx context.Context, conn rawConn, dialect *Dialect, query string, args []any) (int64, error) {
	query = dialect.Rebind(query)
	if !dialect.returningID {
		res, err := conn.ExecContext(ctx, query, args...)
		if err != nil {
			return 0, err
		}
		return res.LastInsertId()
	}

	var id int64
	query = strings.TrimSuffix(strings.TrimSpace(query), ";") + " RETURNING id"
	if err := conn.QueryRowContext(ctx, query, args...).Scan(&id); err != nil {
		return 0, err
	}
	return id, nil
}
