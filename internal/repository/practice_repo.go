package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"hanashite/internal/database"
	"hanashite/internal/models"
)

// PracticeRepository handles practice record database operations
type PracticeRepository struct {
	db database.DBTX
}

// NewPracticeRepository creates a new practice repository
func NewPracticeRepository(db database.DBTX) *PracticeRepository {
	return &PracticeRepository{db: db}
}

// PracticeFilter narrows a practice listing. Zero fields are ignored;
// From is inclusive and To exclusive.
type PracticeFilter struct {
	From    time.Time
	To      time.Time
	TopicID string
	Limit   int
}

const practiceColumns = `
	p.id, p.user_id, p.topic_id, COALESCE(t.title, ''), COALESCE(t.category, ''),
	p.audio_url, p.transcription, p.feedback, p.score, p.duration_seconds, p.created_at`

const practiceFrom = `
	FROM practices p
	LEFT JOIN topics t ON t.id = p.topic_id`

// storedFeedback is the JSON shape of the feedback column.
// The score lives in its own column so it can be aggregated.
type storedFeedback struct {
	GoodPoints    []string `json:"goodPoints"`
	Improvements  []string `json:"improvements"`
	CorrectedText string   `json:"correctedText"`
}

// Create inserts a new practice record
func (r *PracticeRepository) Create(ctx context.Context, rec *models.PracticeRecord) error {
	feedback, err := json.Marshal(storedFeedback{
		GoodPoints:    rec.Feedback.GoodPoints,
		Improvements:  rec.Feedback.Improvements,
		CorrectedText: rec.Feedback.CorrectedText,
	})
	if err != nil {
		return fmt.Errorf("failed to encode feedback: %w", err)
	}

	var score sql.NullInt64
	if rec.Feedback.Score != nil {
		score = sql.NullInt64{Int64: int64(*rec.Feedback.Score), Valid: true}
	}

	query := `
		INSERT INTO practices (id, user_id, topic_id, audio_url, transcription, feedback, score, duration_seconds, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
	`
	_, err = r.db.ExecContext(ctx, query,
		rec.ID, rec.UserID, rec.TopicID, rec.AudioURL, rec.Transcription,
		string(feedback), score, rec.DurationSeconds, rec.CreatedAt.UTC())
	if err != nil {
		return fmt.Errorf("failed to create practice: %w", err)
	}
	return nil
}

// GetByID retrieves a practice record by ID, or nil if none exists
func (r *PracticeRepository) GetByID(ctx context.Context, id string) (*models.PracticeRecord, error) {
	query := "SELECT " + practiceColumns + practiceFrom + " WHERE p.id = ?"

	rec, err := scanPractice(r.db.QueryRowContext(ctx, query, id))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get practice: %w", err)
	}
	return rec, nil
}

// ListByUser returns a user's practice records, newest first
func (r *PracticeRepository) ListByUser(ctx context.Context, userID string, filter PracticeFilter) ([]models.PracticeRecord, error) {
	return r.list(ctx, []string{userID}, filter)
}

// ListByUsers returns practice records for a set of users, newest first
func (r *PracticeRepository) ListByUsers(ctx context.Context, userIDs []string, filter PracticeFilter) ([]models.PracticeRecord, error) {
	if len(userIDs) == 0 {
		return []models.PracticeRecord{}, nil
	}
	return r.list(ctx, userIDs, filter)
}

func (r *PracticeRepository) list(ctx context.Context, userIDs []string, filter PracticeFilter) ([]models.PracticeRecord, error) {
	var where []string
	args := database.StringArgs(userIDs)
	where = append(where, "p.user_id IN ("+database.Placeholders(len(userIDs))+")")

	if !filter.From.IsZero() {
		where = append(where, "p.created_at >= ?")
		args = append(args, filter.From.UTC())
	}
	if !filter.To.IsZero() {
		where = append(where, "p.created_at < ?")
		args = append(args, filter.To.UTC())
	}
	if filter.TopicID != "" {
		where = append(where, "p.topic_id = ?")
		args = append(args, filter.TopicID)
	}

	query := "SELECT " + practiceColumns + practiceFrom +
		" WHERE " + strings.Join(where, " AND ") +
		" ORDER BY p.created_at DESC, p.id DESC"
	if filter.Limit > 0 {
		query += fmt.Sprintf(" LIMIT %d", filter.Limit)
	}

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list practices: %w", err)
	}
	defer rows.Close()

	practices := []models.PracticeRecord{}
	for rows.Next() {
		rec, err := scanPractice(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan practice: %w", err)
		}
		practices = append(practices, *rec)
	}
	return practices, rows.Err()
}

// DeleteAllForUser removes every practice record owned by a user
func (r *PracticeRepository) DeleteAllForUser(ctx context.Context, userID string) (int64, error) {
	result, err := r.db.ExecContext(ctx, "DELETE FROM practices WHERE user_id = ?", userID)
	if err != nil {
		return 0, fmt.Errorf("failed to delete practices: %w", err)
	}
	return result.RowsAffected()
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanPractice(row rowScanner) (*models.PracticeRecord, error) {
	rec := &models.PracticeRecord{}
	var feedback string
	var score sql.NullInt64

	err := row.Scan(
		&rec.ID,
		&rec.UserID,
		&rec.TopicID,
		&rec.TopicTitle,
		&rec.TopicCategory,
		&rec.AudioURL,
		&rec.Transcription,
		&feedback,
		&score,
		&rec.DurationSeconds,
		&rec.CreatedAt,
	)
	if err != nil {
		return nil, err
	}

	var stored storedFeedback
	if feedback != "" {
		if err := json.Unmarshal([]byte(feedback), &stored); err != nil {
			return nil, fmt.Errorf("corrupt feedback for practice %s: %w", rec.ID, err)
		}
	}
	rec.Feedback = models.Feedback{
		GoodPoints:    nonNil(stored.GoodPoints),
		Improvements:  nonNil(stored.Improvements),
		CorrectedText: stored.CorrectedText,
	}
	if score.Valid {
		rec.Feedback.Score = models.IntPtr(int(score.Int64))
	}
	return rec, nil
}

func nonNil(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}
