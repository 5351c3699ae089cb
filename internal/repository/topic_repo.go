package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"hanashite/internal/database"
	"hanashite/internal/models"
)

// TopicRepository handles speaking-topic database operations
type TopicRepository struct {
	db database.DBTX
}

// NewTopicRepository creates a new topic repository
func NewTopicRepository(db database.DBTX) *TopicRepository {
	return &TopicRepository{db: db}
}

const topicColumns = "id, category, title, description, hints, target_level, display_order, is_active, created_at"

// ListActive returns active topics ordered for display, optionally limited to one category
func (r *TopicRepository) ListActive(ctx context.Context, category string) ([]models.Topic, error) {
	query := "SELECT " + topicColumns + " FROM topics WHERE is_active = ?"
	args := []interface{}{true}
	if category != "" {
		query += " AND category = ?"
		args = append(args, category)
	}
	query += " ORDER BY category, display_order, title"

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list topics: %w", err)
	}
	defer rows.Close()

	topics := []models.Topic{}
	for rows.Next() {
		t, err := scanTopic(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan topic: %w", err)
		}
		topics = append(topics, *t)
	}
	return topics, rows.Err()
}

// GetByID retrieves a topic by ID, or nil if none exists
func (r *TopicRepository) GetByID(ctx context.Context, id string) (*models.Topic, error) {
	t, err := scanTopic(r.db.QueryRowContext(ctx, "SELECT "+topicColumns+" FROM topics WHERE id = ?", id))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get topic: %w", err)
	}
	return t, nil
}

// Categories counts active topics per category
func (r *TopicRepository) Categories(ctx context.Context) ([]models.CategorySummary, error) {
	query := `
		SELECT category, COUNT(*)
		FROM topics
		WHERE is_active = ?
		GROUP BY category
		ORDER BY category
	`
	rows, err := r.db.QueryContext(ctx, query, true)
	if err != nil {
		return nil, fmt.Errorf("failed to list categories: %w", err)
	}
	defer rows.Close()

	categories := []models.CategorySummary{}
	for rows.Next() {
		var c models.CategorySummary
		if err := rows.Scan(&c.Category, &c.TopicCount); err != nil {
			return nil, fmt.Errorf("failed to scan category: %w", err)
		}
		categories = append(categories, c)
	}
	return categories, rows.Err()
}

// Upsert inserts a topic or overwrites the existing one with the same ID
func (r *TopicRepository) Upsert(ctx context.Context, t *models.Topic, now time.Time) error {
	hints, err := json.Marshal(nonNil(t.Hints))
	if err != nil {
		return fmt.Errorf("failed to encode hints: %w", err)
	}

	query := `
		INSERT INTO topics (id, category, title, description, hints, target_level, display_order, is_active, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?) ` +
		r.db.Dialect().UpsertClause([]string{"id"},
			[]string{"category", "title", "description", "hints", "target_level", "display_order", "is_active"})

	_, err = r.db.ExecContext(ctx, query, t.ID, t.Category, t.Title, t.Description, string(hints),
		t.TargetLevel, t.DisplayOrder, t.IsActive, now.UTC())
	if err != nil {
		return fmt.Errorf("failed to upsert topic: %w", err)
	}
	return nil
}

func scanTopic(row rowScanner) (*models.Topic, error) {
	t := &models.Topic{}
	var hints string
	err := row.Scan(&t.ID, &t.Category, &t.Title, &t.Description, &hints,
		&t.TargetLevel, &t.DisplayOrder, &t.IsActive, &t.CreatedAt)
	if err != nil {
		return nil, err
	}
	if hints != "" {
		if err := json.Unmarshal([]byte(hints), &t.Hints); err != nil {
			return nil, fmt.Errorf("corrupt hints for topic %s: %w", t.ID, err)
		}
	}
	t.Hints = nonNil(t.Hints)
	return t, nil
}
