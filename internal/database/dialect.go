package database

import (
	"database/sql"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/go-sql-driver/mysql"
	_ "github.com/lib/pq"
	_ "github.com/mattn/go-sqlite3"
)

// Dialect captures what differs between the supported SQL backends.
// Repositories write queries with ? placeholders and portable SQL; the
// dialect rewrites what it must at execution time.
type Dialect struct {
	// Name labels the backend and names its migrations directory
	Name   string
	Driver string

	numbered    bool
	returningID bool
	upsert      func(conflictCols, updateCols []string) string
	dsn         func(source string) (string, error)
	pool        poolLimits
	session     []string
	bookkeeping string
}

type poolLimits struct {
	maxOpen     int
	maxIdle     int
	maxLifetime time.Duration
	maxIdleTime time.Duration
}

var serverPool = poolLimits{maxOpen: 25, maxIdle: 5, maxLifetime: 5 * time.Minute, maxIdleTime: time.Minute}

var (
	// SQLite is the default backend: a single file, WAL journaling, and
	// immediate write locks so concurrent streak updates queue on the busy
	// timeout instead of failing with SQLITE_BUSY.
	SQLite = &Dialect{
		Name:   "sqlite",
		Driver: "sqlite3",
		upsert: onConflictClause,
		dsn:    sqliteDSN,
		pool:   poolLimits{maxOpen: 8, maxIdle: 4, maxLifetime: time.Hour},
		session: []string{
			"PRAGMA journal_mode=WAL;",
			"PRAGMA foreign_keys=ON;",
		},
		bookkeeping: `CREATE TABLE IF NOT EXISTS migrations (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			filename TEXT UNIQUE NOT NULL,
			executed_at DATETIME DEFAULT CURRENT_TIMESTAMP
		)`,
	}

	Postgres = &Dialect{
		Name:        "postgres",
		Driver:      "postgres",
		numbered:    true,
		returningID: true,
		upsert:      onConflictClause,
		dsn:         func(source string) (string, error) { return source, nil },
		pool:        serverPool,
		bookkeeping: `CREATE TABLE IF NOT EXISTS migrations (
			id BIGSERIAL PRIMARY KEY,
			filename TEXT UNIQUE NOT NULL,
			executed_at TIMESTAMPTZ DEFAULT CURRENT_TIMESTAMP
		)`,
	}

	MySQL = &Dialect{
		Name:    "mysql",
		Driver:  "mysql",
		upsert:  onDuplicateKeyClause,
		dsn:     mysqlDSN,
		pool:    serverPool,
		session: []string{"SET FOREIGN_KEY_CHECKS = 1;"},
		bookkeeping: `CREATE TABLE IF NOT EXISTS migrations (
			id BIGINT AUTO_INCREMENT PRIMARY KEY,
			filename VARCHAR(255) UNIQUE NOT NULL,
			executed_at DATETIME(6) DEFAULT CURRENT_TIMESTAMP(6)
		)`,
	}
)

// LookupDialect maps a DATABASE_TYPE value to its dialect
func LookupDialect(name string) (*Dialect, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "", "sqlite", "sqlite3":
		return SQLite, nil
	case "postgres", "postgresql":
		return Postgres, nil
	case "mysql":
		return MySQL, nil
	}
	return nil, fmt.Errorf("unsupported database type: %s", name)
}

// DSN turns the configured path or URL into the driver's data source name
func (d *Dialect) DSN(source string) (string, error) {
	return d.dsn(source)
}

// Rebind rewrites ? placeholders for drivers that number them
func (d *Dialect) Rebind(query string) string {
	if !d.numbered || !strings.Contains(query, "?") {
		return query
	}
	var b strings.Builder
	b.Grow(len(query) + 8)
	n := 0
	for i := 0; i < len(query); i++ {
		if query[i] != '?' {
			b.WriteByte(query[i])
			continue
		}
		n++
		b.WriteByte('$')
		b.WriteString(strconv.Itoa(n))
	}
	return b.String()
}

// UpsertClause returns the trailing clause that turns an INSERT into an upsert
// on conflictCols, overwriting updateCols with the inserted values.
func (d *Dialect) UpsertClause(conflictCols, updateCols []string) string {
	return d.upsert(conflictCols, updateCols)
}

// configure applies pool limits and per-session settings to a fresh handle
func (d *Dialect) configure(db *sql.DB) error {
	db.SetMaxOpenConns(d.pool.maxOpen)
	db.SetMaxIdleConns(d.pool.maxIdle)
	db.SetConnMaxLifetime(d.pool.maxLifetime)
	db.SetConnMaxIdleTime(d.pool.maxIdleTime)

	for _, stmt := range d.session {
		if _, err := db.Exec(stmt); err != nil {
			return fmt.Errorf("%s: %w", strings.TrimSuffix(stmt, ";"), err)
		}
	}
	return nil
}

// sqliteDSN enables foreign keys on every pooled connection, not just the first
func sqliteDSN(path string) (string, error) {
	if path == "" {
		return "", fmt.Errorf("sqlite database path is empty")
	}
	sep := "?"
	if strings.Contains(path, "?") {
		sep = "&"
	}
	return path + sep + "_busy_timeout=5000&_txlock=immediate&_foreign_keys=on", nil
}

// mysqlDSN makes DATETIME columns scan into UTC time.Time values
func mysqlDSN(source string) (string, error) {
	cfg, err := mysql.ParseDSN(source)
	if err != nil {
		return "", fmt.Errorf("invalid mysql DSN: %w", err)
	}
	cfg.ParseTime = true
	cfg.Loc = time.UTC
	return cfg.FormatDSN(), nil
}

func onConflictClause(conflictCols, updateCols []string) string {
	sets := make([]string, len(updateCols))
	for i, col := range updateCols {
		sets[i] = col + " = excluded." + col
	}
	return "ON CONFLICT (" + strings.Join(conflictCols, ", ") + ") DO UPDATE SET " + strings.Join(sets, ", ")
}

func onDuplicateKeyClause(_, updateCols []string) string {
	sets := make([]string, len(updateCols))
	for i, col := range updateCols {
		sets[i] = col + " = VALUES(" + col + ")"
	}
	return "ON DUPLICATE KEY UPDATE " + strings.Join(sets, ", ")
}

// Placeholders returns n comma-separated ? placeholders for an IN (...) list
func Placeholders(n int) string {
	if n <= 0 {
		return ""
	}
	return strings.TrimSuffix(strings.Repeat("?, ", n), ", ")
}

// StringArgs converts a string slice to query arguments
func StringArgs(values []string) []any {
	args := make([]any, len(values))
	for i, v := range values {
		args[i] = v
	}
	return args
}
