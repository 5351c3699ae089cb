package database

import (
	"context"
	"errors"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

func openTestDB(t *testing.T) *DB {
	t.Helper()
	db, err := OpenSQLite(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	require.NoError(t, db.RunMigrations(context.Background(), zaptest.NewLogger(t)))
	return db
}

func TestMigrationsCreateTables(t *testing.T) {
	if testing.Short() {
		t.Skip("Skipping integration test in short mode")
	}

	db := openTestDB(t)
	ctx := context.Background()

	tables := []string{"users", "topics", "practices", "streaks", "teachers", "classes",
		"teacher_class_assignments", "student_class_assignments", "teacher_notes",
		"teacher_alerts", "outbox_events"}
	for _, table := range tables {
		var name string
		err := db.QueryRowContext(ctx, "SELECT name FROM sqlite_master WHERE type='table' AND name=?", table).Scan(&name)
		assert.NoError(t, err, "table %s", table)
	}

	// Running again is a no-op
	require.NoError(t, db.RunMigrations(ctx, nil))
}

func TestWithTx(t *testing.T) {
	if testing.Short() {
		t.Skip("Skipping integration test in short mode")
	}

	db := openTestDB(t)
	ctx := context.Background()
	now := time.Now().UTC()

	err := db.WithTx(ctx, func(tx *Tx) error {
		_, err := tx.ExecContext(ctx, "INSERT INTO users (id, created_at, updated_at) VALUES (?, ?, ?)", "u1", now, now)
		return err
	})
	require.NoError(t, err)

	boom := errors.New("boom")
	err = db.WithTx(ctx, func(tx *Tx) error {
		if _, err := tx.ExecContext(ctx, "INSERT INTO users (id, created_at, updated_at) VALUES (?, ?, ?)", "u2", now, now); err != nil {
			return err
		}
		return boom
	})
	assert.ErrorIs(t, err, boom)

	var count int
	require.NoError(t, db.QueryRowContext(ctx, "SELECT COUNT(*) FROM users").Scan(&count))
	assert.Equal(t, 1, count)
}

func TestWithTxRollsBackOnPanic(t *testing.T) {
	if testing.Short() {
		t.Skip("Skipping integration test in short mode")
	}

	db := openTestDB(t)
	ctx := context.Background()
	now := time.Now().UTC()

	assert.PanicsWithValue(t, "boom", func() {
		_ = db.WithTx(ctx, func(tx *Tx) error {
			if _, err := tx.ExecContext(ctx, "INSERT INTO users (id, created_at, updated_at) VALUES (?, ?, ?)", "u1", now, now); err != nil {
				return err
			}
			panic("boom")
		})
	})

	var count int
	require.NoError(t, db.QueryRowContext(ctx, "SELECT COUNT(*) FROM users").Scan(&count))
	assert.Zero(t, count)
}

func TestExecReturningID(t *testing.T) {
	if testing.Short() {
		t.Skip("Skipping integration test in short mode")
	}

	db := openTestDB(t)
	ctx := context.Background()
	now := time.Now().UTC()

	first, err := db.ExecReturningID(ctx,
		"INSERT INTO outbox_events (kind, payload, next_attempt_at, last_error, created_at) VALUES (?, ?, ?, '', ?)",
		"test", "{}", now, now)
	require.NoError(t, err)
	second, err := db.ExecReturningID(ctx,
		"INSERT INTO outbox_events (kind, payload, next_attempt_at, last_error, created_at) VALUES (?, ?, ?, '', ?)",
		"test", "{}", now, now)
	require.NoError(t, err)
	assert.Greater(t, second, first)
}

func TestConcurrentReads(t *testing.T) {
	if testing.Short() {
		t.Skip("Skipping integration test in short mode")
	}

	db := openTestDB(t)
	ctx := context.Background()
	now := time.Now().UTC()
	_, err := db.ExecContext(ctx, "INSERT INTO users (id, email, created_at, updated_at) VALUES (?, ?, ?, ?)",
		"u1", "hana@example.com", now, now)
	require.NoError(t, err)

	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			var email string
			err := db.QueryRowContext(ctx, "SELECT email FROM users WHERE id = ?", "u1").Scan(&email)
			assert.NoError(t, err)
			assert.Equal(t, "hana@example.com", email)
		}()
	}
	wg.Wait()
}
