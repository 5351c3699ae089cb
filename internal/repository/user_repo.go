package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"hanashite/internal/database"
	"hanashite/internal/models"
)

// UserRepository handles database operations for users
type UserRepository struct {
	db database.DBTX
}

// NewUserRepository creates a new user repository
func NewUserRepository(db database.DBTX) *UserRepository {
	return &UserRepository{db: db}
}

// Upsert records the identity provider's view of a user, creating the row on first sight
func (r *UserRepository) Upsert(ctx context.Context, id, email, displayName string, now time.Time) error {
	query := `
		INSERT INTO users (id, email, display_name, jlpt_level, created_at, updated_at)
		VALUES (?, ?, ?, '', ?, ?) ` +
		r.db.Dialect().UpsertClause([]string{"id"}, []string{"email", "display_name", "updated_at"})

	now = now.UTC()
	if _, err := r.db.ExecContext(ctx, query, id, email, displayName, now, now); err != nil {
		return fmt.Errorf("failed to upsert user: %w", err)
	}
	return nil
}

// SetJLPTLevel updates a user's self-reported JLPT level
func (r *UserRepository) SetJLPTLevel(ctx context.Context, id, level string, now time.Time) error {
	_, err := r.db.ExecContext(ctx, "UPDATE users SET jlpt_level = ?, updated_at = ? WHERE id = ?", level, now.UTC(), id)
	if err != nil {
		return fmt.Errorf("failed to update jlpt level: %w", err)
	}
	return nil
}

// GetByID retrieves a user by ID, or nil if none exists
func (r *UserRepository) GetByID(ctx context.Context, id string) (*models.User, error) {
	query := "SELECT id, email, display_name, jlpt_level, created_at, updated_at FROM users WHERE id = ?"

	u := &models.User{}
	err := r.db.QueryRowContext(ctx, query, id).Scan(&u.ID, &u.Email, &u.DisplayName, &u.JLPTLevel, &u.CreatedAt, &u.UpdatedAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get user: %w", err)
	}
	return u, nil
}

// GetMany returns users keyed by ID
func (r *UserRepository) GetMany(ctx context.Context, ids []string) (map[string]*models.User, error) {
	users := make(map[string]*models.User, len(ids))
	if len(ids) == 0 {
		return users, nil
	}

	query := "SELECT id, email, display_name, jlpt_level, created_at, updated_at FROM users WHERE id IN (" +
		database.Placeholders(len(ids)) + ")"
	rows, err := r.db.QueryContext(ctx, query, database.StringArgs(ids)...)
	if err != nil {
		return nil, fmt.Errorf("failed to list users: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		u := &models.User{}
		if err := rows.Scan(&u.ID, &u.Email, &u.DisplayName, &u.JLPTLevel, &u.CreatedAt, &u.UpdatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan user: %w", err)
		}
		users[u.ID] = u
	}
	return users, rows.Err()
}
