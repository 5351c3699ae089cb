package repository

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"hanashite/internal/database"
	"hanashite/internal/models"
)

// OutboxRepository stores side effects to be applied after the write that caused them commits
type OutboxRepository struct {
	db database.DBTX
}

// NewOutboxRepository creates a new outbox repository
func NewOutboxRepository(db database.DBTX) *OutboxRepository {
	return &OutboxRepository{db: db}
}

// Enqueue adds a pending event that is due immediately. Events sharing an
// orderingKey are applied in the order they were enqueued; an empty key
// imposes no order.
func (r *OutboxRepository) Enqueue(ctx context.Context, kind, orderingKey, payload string, now time.Time) (int64, error) {
	now = now.UTC()
	id, err := r.db.ExecReturningID(ctx, `
		INSERT INTO outbox_events (kind, ordering_key, payload, status, attempts, next_attempt_at, last_error, created_at)
		VALUES (?, ?, ?, ?, 0, ?, '', ?)`,
		kind, orderingKey, payload, models.OutboxPending, now, now)
	if err != nil {
		return 0, fmt.Errorf("failed to enqueue outbox event: %w", err)
	}
	return id, nil
}

const outboxColumns = "id, kind, ordering_key, payload, status, attempts, next_attempt_at, last_error, created_at, processed_at, locked_until"

// ClaimDue leases up to limit due events, oldest first, until now+lease.
// An event is only returned when every earlier pending event with the same
// ordering key is returned before it, so a key whose head is waiting on a
// retry or is leased elsewhere yields nothing. Leased events are invisible
// to other callers until the lease runs out or the event is finished,
// rescheduled or released.
func (r *OutboxRepository) ClaimDue(ctx context.Context, now time.Time, lease time.Duration, limit int) ([]models.OutboxEvent, error) {
	now = now.UTC()
	query := `
		SELECT ` + prefixed("e", outboxColumns) + `
		FROM outbox_events e
		WHERE e.status = ? AND e.next_attempt_at <= ?
		  AND (e.locked_until IS NULL OR e.locked_until <= ?)
		  AND NOT EXISTS (
			SELECT 1 FROM outbox_events b
			WHERE b.ordering_key = e.ordering_key AND b.ordering_key <> ''
			  AND b.status = ? AND b.id < e.id
			  AND (b.next_attempt_at > ? OR (b.locked_until IS NOT NULL AND b.locked_until > ?)))
		ORDER BY e.id`
	if limit > 0 {
		query += fmt.Sprintf(" LIMIT %d", limit)
	}

	candidates, err := r.query(ctx, query, models.OutboxPending, now, now, models.OutboxPending, now, now)
	if err != nil {
		return nil, fmt.Errorf("failed to select due outbox events: %w", err)
	}

	until := now.Add(lease)
	blocked := map[string]bool{}
	claimed := make([]models.OutboxEvent, 0, len(candidates))
	for _, e := range candidates {
		if e.OrderingKey != "" && blocked[e.OrderingKey] {
			continue
		}
		res, err := r.db.ExecContext(ctx, `
			UPDATE outbox_events SET locked_until = ?
			WHERE id = ? AND status = ? AND (locked_until IS NULL OR locked_until <= ?)`,
			until, e.ID, models.OutboxPending, now)
		if err != nil {
			return nil, fmt.Errorf("failed to lease outbox event %d: %w", e.ID, err)
		}
		if n, err := res.RowsAffected(); err != nil || n != 1 {
			// another dispatcher got there first; its later events stay with it
			blocked[e.OrderingKey] = true
			continue
		}
		e.LockedUntil = &until
		claimed = append(claimed, e)
	}
	return claimed, nil
}

// Release gives up a lease without recording an attempt
func (r *OutboxRepository) Release(ctx context.Context, id int64) error {
	_, err := r.db.ExecContext(ctx, "UPDATE outbox_events SET locked_until = NULL WHERE id = ?", id)
	if err != nil {
		return fmt.Errorf("failed to release outbox event: %w", err)
	}
	return nil
}

func (r *OutboxRepository) query(ctx context.Context, query string, args ...any) ([]models.OutboxEvent, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	events := []models.OutboxEvent{}
	for rows.Next() {
		var e models.OutboxEvent
		var processedAt, lockedUntil sql.NullTime
		err := rows.Scan(&e.ID, &e.Kind, &e.OrderingKey, &e.Payload, &e.Status, &e.Attempts,
			&e.NextAttemptAt, &e.LastError, &e.CreatedAt, &processedAt, &lockedUntil)
		if err != nil {
			return nil, fmt.Errorf("failed to scan outbox event: %w", err)
		}
		if processedAt.Valid {
			e.ProcessedAt = &processedAt.Time
		}
		if lockedUntil.Valid {
			e.LockedUntil = &lockedUntil.Time
		}
		events = append(events, e)
	}
	return events, rows.Err()
}

func prefixed(alias, columns string) string {
	cols := strings.Split(columns, ", ")
	for i, c := range cols {
		cols[i] = alias + "." + c
	}
	return strings.Join(cols, ", ")
}

// MarkDone records that an event was applied
func (r *OutboxRepository) MarkDone(ctx context.Context, id int64, attempts int, now time.Time) error {
	return r.finish(ctx, id, models.OutboxDone, attempts, "", now)
}

// MarkParked moves an event out of the pending queue for good, as failed or skipped
func (r *OutboxRepository) MarkParked(ctx context.Context, id int64, status string, attempts int, lastErr string, now time.Time) error {
	return r.finish(ctx, id, status, attempts, lastErr, now)
}

func (r *OutboxRepository) finish(ctx context.Context, id int64, status string, attempts int, lastErr string, now time.Time) error {
	_, err := r.db.ExecContext(ctx,
		"UPDATE outbox_events SET status = ?, attempts = ?, last_error = ?, processed_at = ?, locked_until = NULL WHERE id = ?",
		status, attempts, lastErr, now.UTC(), id)
	if err != nil {
		return fmt.Errorf("failed to update outbox event: %w", err)
	}
	return nil
}

// MarkRetry records a failed attempt and schedules the next one
func (r *OutboxRepository) MarkRetry(ctx context.Context, id int64, attempts int, next time.Time, lastErr string) error {
	_, err := r.db.ExecContext(ctx,
		"UPDATE outbox_events SET attempts = ?, next_attempt_at = ?, last_error = ?, locked_until = NULL WHERE id = ?",
		attempts, next.UTC(), lastErr, id)
	if err != nil {
		return fmt.Errorf("failed to reschedule outbox event: %w", err)
	}
	return nil
}

// CountByStatus returns the number of events in each status
func (r *OutboxRepository) CountByStatus(ctx context.Context) (map[string]int, error) {
	rows, err := r.db.QueryContext(ctx, "SELECT status, COUNT(*) FROM outbox_events GROUP BY status")
	if err != nil {
		return nil, fmt.Errorf("failed to count outbox events: %w", err)
	}
	defer rows.Close()

	counts := map[string]int{}
	for rows.Next() {
		var status string
		var n int
		if err := rows.Scan(&status, &n); err != nil {
			return nil, fmt.Errorf("failed to scan outbox count: %w", err)
		}
		counts[status] = n
	}
	return counts, rows.Err()
}
