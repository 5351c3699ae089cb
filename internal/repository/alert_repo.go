package repository

import (
	"context"
	"fmt"

	"hanashite/internal/database"
	"hanashite/internal/models"
)

// AlertRepository handles teacher alerts
type AlertRepository struct {
	db database.DBTX
}

// NewAlertRepository creates a new alert repository
func NewAlertRepository(db database.DBTX) *AlertRepository {
	return &AlertRepository{db: db}
}

// Create inserts an alert
func (r *AlertRepository) Create(ctx context.Context, a *models.TeacherAlert) error {
	query := `
		INSERT INTO teacher_alerts (id, teacher_id, student_id, alert_type, message, is_read, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`
	_, err := r.db.ExecContext(ctx, query, a.ID, a.TeacherID, a.StudentID, a.AlertType, a.Message, a.IsRead, a.CreatedAt.UTC())
	if err != nil {
		return fmt.Errorf("failed to create alert: %w", err)
	}
	return nil
}

// List returns a teacher's alerts, newest first
func (r *AlertRepository) List(ctx context.Context, teacherID string, unreadOnly bool, limit int) ([]models.TeacherAlert, error) {
	query := `
		SELECT a.id, a.teacher_id, a.student_id, COALESCE(u.display_name, ''), COALESCE(u.email, ''),
			a.alert_type, a.message, a.is_read, a.created_at
		FROM teacher_alerts a
		LEFT JOIN users u ON u.id = a.student_id
		WHERE a.teacher_id = ?`
	args := []interface{}{teacherID}
	if unreadOnly {
		query += " AND a.is_read = ?"
		args = append(args, false)
	}
	query += " ORDER BY a.created_at DESC, a.id"
	if limit > 0 {
		query += fmt.Sprintf(" LIMIT %d", limit)
	}

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list alerts: %w", err)
	}
	defer rows.Close()

	alerts := []models.TeacherAlert{}
	for rows.Next() {
		var a models.TeacherAlert
		var displayName, email string
		err := rows.Scan(&a.ID, &a.TeacherID, &a.StudentID, &displayName, &email,
			&a.AlertType, &a.Message, &a.IsRead, &a.CreatedAt)
		if err != nil {
			return nil, fmt.Errorf("failed to scan alert: %w", err)
		}
		a.StudentName = models.User{DisplayName: displayName, Email: email}.Name()
		alerts = append(alerts, a)
	}
	return alerts, rows.Err()
}

// MarkRead marks one of the teacher's alerts as read. It returns ErrNotFound if
// the alert does not exist or belongs to another teacher.
func (r *AlertRepository) MarkRead(ctx context.Context, teacherID, alertID string) error {
	result, err := r.db.ExecContext(ctx,
		"UPDATE teacher_alerts SET is_read = ? WHERE id = ? AND teacher_id = ?", true, alertID, teacherID)
	if err != nil {
		return fmt.Errorf("failed to mark alert read: %w", err)
	}
	if n, err := result.RowsAffected(); err == nil && n > 0 {
		return nil
	}

	// MySQL reports zero affected rows when the alert was already read
	var count int
	err = r.db.QueryRowContext(ctx,
		"SELECT COUNT(*) FROM teacher_alerts WHERE id = ? AND teacher_id = ?", alertID, teacherID).Scan(&count)
	if err != nil {
		return fmt.Errorf("failed to check alert: %w", err)
	}
	if count == 0 {
		return ErrNotFound
	}
	return nil
}

// HasUnread reports whether the teacher already has an unread alert of this type for the student
func (r *AlertRepository) HasUnread(ctx context.Context, teacherID, studentID, alertType string) (bool, error) {
	var count int
	err := r.db.QueryRowContext(ctx, `
		SELECT COUNT(*) FROM teacher_alerts
		WHERE teacher_id = ? AND student_id = ? AND alert_type = ? AND is_read = ?`,
		teacherID, studentID, alertType, false).Scan(&count)
	if err != nil {
		return false, fmt.Errorf("failed to check alerts: %w", err)
	}
	return count > 0, nil
}
