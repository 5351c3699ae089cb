package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"hanashite/internal/database"
	"hanashite/internal/models"
)

// TeacherRepository handles teachers, classes and class membership
type TeacherRepository struct {
	db database.DBTX
}

// NewTeacherRepository creates a new teacher repository
func NewTeacherRepository(db database.DBTX) *TeacherRepository {
	return &TeacherRepository{db: db}
}

const teacherColumns = "id, user_id, name, email, department, created_at, updated_at"

// GetByUserID returns the teacher profile linked to a user, or nil if the user is not a teacher
func (r *TeacherRepository) GetByUserID(ctx context.Context, userID string) (*models.Teacher, error) {
	t := &models.Teacher{}
	err := r.db.QueryRowContext(ctx, "SELECT "+teacherColumns+" FROM teachers WHERE user_id = ?", userID).
		Scan(&t.ID, &t.UserID, &t.Name, &t.Email, &t.Department, &t.CreatedAt, &t.UpdatedAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get teacher: %w", err)
	}
	return t, nil
}

// List returns every teacher
func (r *TeacherRepository) List(ctx context.Context) ([]models.Teacher, error) {
	rows, err := r.db.QueryContext(ctx, "SELECT "+teacherColumns+" FROM teachers ORDER BY name")
	if err != nil {
		return nil, fmt.Errorf("failed to list teachers: %w", err)
	}
	defer rows.Close()

	teachers := []models.Teacher{}
	for rows.Next() {
		var t models.Teacher
		if err := rows.Scan(&t.ID, &t.UserID, &t.Name, &t.Email, &t.Department, &t.CreatedAt, &t.UpdatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan teacher: %w", err)
		}
		teachers = append(teachers, t)
	}
	return teachers, rows.Err()
}

// Create inserts a teacher profile
func (r *TeacherRepository) Create(ctx context.Context, t *models.Teacher, now time.Time) error {
	now = now.UTC()
	_, err := r.db.ExecContext(ctx,
		"INSERT INTO teachers ("+teacherColumns+") VALUES (?, ?, ?, ?, ?, ?, ?)",
		t.ID, t.UserID, t.Name, t.Email, t.Department, now, now)
	if err != nil {
		return fmt.Errorf("failed to create teacher: %w", err)
	}
	t.CreatedAt, t.UpdatedAt = now, now
	return nil
}

// CreateClass inserts a class
func (r *TeacherRepository) CreateClass(ctx context.Context, c *models.Class, now time.Time) error {
	now = now.UTC()
	query := `
		INSERT INTO classes (id, name, code, description, academic_year, semester, is_active, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
	`
	_, err := r.db.ExecContext(ctx, query, c.ID, c.Name, c.Code, c.Description, c.AcademicYear,
		c.Semester, c.IsActive, now, now)
	if err != nil {
		return fmt.Errorf("failed to create class: %w", err)
	}
	c.CreatedAt, c.UpdatedAt = now, now
	return nil
}

// AssignTeacher links a teacher to a class
func (r *TeacherRepository) AssignTeacher(ctx context.Context, teacherID, classID string) error {
	_, err := r.db.ExecContext(ctx, "INSERT INTO teacher_class_assignments (teacher_id, class_id) VALUES (?, ?)", teacherID, classID)
	if err != nil {
		return fmt.Errorf("failed to assign teacher: %w", err)
	}
	return nil
}

// AssignStudent enrols a student in a class
func (r *TeacherRepository) AssignStudent(ctx context.Context, studentID, classID string) error {
	_, err := r.db.ExecContext(ctx, "INSERT INTO student_class_assignments (student_id, class_id) VALUES (?, ?)", studentID, classID)
	if err != nil {
		return fmt.Errorf("failed to assign student: %w", err)
	}
	return nil
}

// ListClasses returns the active classes a teacher is assigned to
func (r *TeacherRepository) ListClasses(ctx context.Context, teacherID string) ([]models.Class, error) {
	query := `
		SELECT c.id, c.name, c.code, c.description, c.academic_year, c.semester, c.is_active, c.created_at, c.updated_at
		FROM classes c
		JOIN teacher_class_assignments tca ON tca.class_id = c.id
		WHERE tca.teacher_id = ? AND c.is_active = ?
		ORDER BY c.name
	`
	rows, err := r.db.QueryContext(ctx, query, teacherID, true)
	if err != nil {
		return nil, fmt.Errorf("failed to list classes: %w", err)
	}
	defer rows.Close()

	classes := []models.Class{}
	for rows.Next() {
		var c models.Class
		err := rows.Scan(&c.ID, &c.Name, &c.Code, &c.Description, &c.AcademicYear, &c.Semester,
			&c.IsActive, &c.CreatedAt, &c.UpdatedAt)
		if err != nil {
			return nil, fmt.Errorf("failed to scan class: %w", err)
		}
		classes = append(classes, c)
	}
	return classes, rows.Err()
}

// TeachesClass reports whether the teacher is assigned to the class
func (r *TeacherRepository) TeachesClass(ctx context.Context, teacherID, classID string) (bool, error) {
	var count int
	err := r.db.QueryRowContext(ctx,
		"SELECT COUNT(*) FROM teacher_class_assignments WHERE teacher_id = ? AND class_id = ?",
		teacherID, classID).Scan(&count)
	if err != nil {
		return false, fmt.Errorf("failed to check class assignment: %w", err)
	}
	return count > 0, nil
}

// ClassStudentIDs returns the students enrolled in a class
func (r *TeacherRepository) ClassStudentIDs(ctx context.Context, classID string) ([]string, error) {
	rows, err := r.db.QueryContext(ctx,
		"SELECT student_id FROM student_class_assignments WHERE class_id = ? ORDER BY student_id", classID)
	if err != nil {
		return nil, fmt.Errorf("failed to list class students: %w", err)
	}
	defer rows.Close()

	ids := []string{}
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("failed to scan student id: %w", err)
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

// StudentAssignments returns every (student, class) pair across the teacher's active classes
func (r *TeacherRepository) StudentAssignments(ctx context.Context, teacherID string) ([]models.StudentAssignment, error) {
	query := `
		SELECT sca.student_id, c.id, c.name
		FROM student_class_assignments sca
		JOIN classes c ON c.id = sca.class_id
		JOIN teacher_class_assignments tca ON tca.class_id = c.id
		WHERE tca.teacher_id = ? AND c.is_active = ?
		ORDER BY c.name, sca.student_id
	`
	rows, err := r.db.QueryContext(ctx, query, teacherID, true)
	if err != nil {
		return nil, fmt.Errorf("failed to list student assignments: %w", err)
	}
	defer rows.Close()

	assignments := []models.StudentAssignment{}
	for rows.Next() {
		var a models.StudentAssignment
		if err := rows.Scan(&a.StudentID, &a.ClassID, &a.ClassName); err != nil {
			return nil, fmt.Errorf("failed to scan student assignment: %w", err)
		}
		assignments = append(assignments, a)
	}
	return assignments, rows.Err()
}

// TeachesStudent reports whether the student is enrolled in any of the teacher's classes
func (r *TeacherRepository) TeachesStudent(ctx context.Context, teacherID, studentID string) (bool, error) {
	query := `
		SELECT COUNT(*)
		FROM student_class_assignments sca
		JOIN teacher_class_assignments tca ON tca.class_id = sca.class_id
		WHERE tca.teacher_id = ? AND sca.student_id = ?
	`
	var count int
	if err := r.db.QueryRowContext(ctx, query, teacherID, studentID).Scan(&count); err != nil {
		return false, fmt.Errorf("failed to check student assignment: %w", err)
	}
	return count > 0, nil
}
