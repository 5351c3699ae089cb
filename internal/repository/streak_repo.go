package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"hanashite/internal/database"
	"hanashite/internal/models"
)

// StreakRepository persists per-user streak state with optimistic versioning
type StreakRepository struct {
	db database.DBTX
}

// NewStreakRepository creates a new streak repository
func NewStreakRepository(db database.DBTX) *StreakRepository {
	return &StreakRepository{db: db}
}

const streakColumns = `user_id, current_streak, longest_streak, last_practice_date,
	total_practice_days, version, created_at, updated_at`

// Get returns the streak state for a user, or nil if none exists
func (r *StreakRepository) Get(ctx context.Context, userID string) (*models.StreakState, error) {
	query := "SELECT " + streakColumns + " FROM streaks WHERE user_id = ?"

	s, err := scanStreak(r.db.QueryRowContext(ctx, query, userID))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get streak: %w", err)
	}
	return s, nil
}

// GetMany returns streak states keyed by user ID. Users with no row are absent.
func (r *StreakRepository) GetMany(ctx context.Context, userIDs []string) (map[string]*models.StreakState, error) {
	result := make(map[string]*models.StreakState, len(userIDs))
	if len(userIDs) == 0 {
		return result, nil
	}

	query := "SELECT " + streakColumns + " FROM streaks WHERE user_id IN (" + database.Placeholders(len(userIDs)) + ")"
	rows, err := r.db.QueryContext(ctx, query, database.StringArgs(userIDs)...)
	if err != nil {
		return nil, fmt.Errorf("failed to list streaks: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		s, err := scanStreak(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan streak: %w", err)
		}
		result[s.UserID] = s
	}
	return result, rows.Err()
}

// Insert creates the first streak row for a user at version 1.
// It returns ErrConflict if another writer created the row first.
func (r *StreakRepository) Insert(ctx context.Context, s *models.StreakState, now time.Time) error {
	query := `
		INSERT INTO streaks (user_id, current_streak, longest_streak, last_practice_date,
			total_practice_days, version, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, 1, ?, ?)
	`
	now = now.UTC()
	_, err := r.db.ExecContext(ctx, query, s.UserID, s.CurrentStreak, s.LongestStreak,
		s.LastPracticeDate, s.TotalPracticeDays, now, now)
	if err != nil {
		existing, getErr := r.Get(ctx, s.UserID)
		if getErr == nil && existing != nil {
			return ErrConflict
		}
		return fmt.Errorf("failed to insert streak: %w", err)
	}

	s.Version = 1
	s.CreatedAt = now
	s.UpdatedAt = now
	return nil
}

// CompareAndSwap writes s only if the stored version still equals s.Version,
// bumping the version by one. It returns ErrConflict when the row moved on.
func (r *StreakRepository) CompareAndSwap(ctx context.Context, s *models.StreakState, now time.Time) error {
	query := `
		UPDATE streaks
		SET current_streak = ?, longest_streak = ?, last_practice_date = ?,
			total_practice_days = ?, version = ?, updated_at = ?
		WHERE user_id = ? AND version = ?
	`
	now = now.UTC()
	result, err := r.db.ExecContext(ctx, query, s.CurrentStreak, s.LongestStreak, s.LastPracticeDate,
		s.TotalPracticeDays, s.Version+1, now, s.UserID, s.Version)
	if err != nil {
		return fmt.Errorf("failed to update streak: %w", err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to update streak: %w", err)
	}
	if affected == 0 {
		return ErrConflict
	}

	s.Version++
	s.UpdatedAt = now
	return nil
}

func scanStreak(row rowScanner) (*models.StreakState, error) {
	s := &models.StreakState{}
	err := row.Scan(
		&s.UserID,
		&s.CurrentStreak,
		&s.LongestStreak,
		&s.LastPracticeDate,
		&s.TotalPracticeDays,
		&s.Version,
		&s.CreatedAt,
		&s.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return s, nil
}
