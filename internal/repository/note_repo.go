package repository

import (
	"context"
	"fmt"
	"time"

	"hanashite/internal/database"
	"hanashite/internal/models"
)

// NoteRepository handles teacher notes on practice records
type NoteRepository struct {
	db database.DBTX
}

// NewNoteRepository creates a new note repository
func NewNoteRepository(db database.DBTX) *NoteRepository {
	return &NoteRepository{db: db}
}

// Upsert stores a teacher's note on a practice, replacing any earlier note by the same teacher
func (r *NoteRepository) Upsert(ctx context.Context, n *models.TeacherNote, now time.Time) error {
	now = now.UTC()
	query := `
		INSERT INTO teacher_notes (id, teacher_id, student_id, practice_id, note, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?) ` +
		r.db.Dialect().UpsertClause([]string{"teacher_id", "practice_id"}, []string{"note", "updated_at"})

	_, err := r.db.ExecContext(ctx, query, n.ID, n.TeacherID, n.StudentID, n.PracticeID, n.Note, now, now)
	if err != nil {
		return fmt.Errorf("failed to save note: %w", err)
	}
	n.UpdatedAt = now
	return nil
}

// ListForPractice returns all notes on a practice, oldest first
func (r *NoteRepository) ListForPractice(ctx context.Context, practiceID string) ([]models.TeacherNote, error) {
	query := `
		SELECT id, teacher_id, student_id, practice_id, note, created_at, updated_at
		FROM teacher_notes
		WHERE practice_id = ?
		ORDER BY created_at, id
	`
	rows, err := r.db.QueryContext(ctx, query, practiceID)
	if err != nil {
		return nil, fmt.Errorf("failed to list notes: %w", err)
	}
	defer rows.Close()

	notes := []models.TeacherNote{}
	for rows.Next() {
		var n models.TeacherNote
		if err := rows.Scan(&n.ID, &n.TeacherID, &n.StudentID, &n.PracticeID, &n.Note, &n.CreatedAt, &n.UpdatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan note: %w", err)
		}
		notes = append(notes, n)
	}
	return notes, rows.Err()
}
