package models

import "time"

// Teacher is a user with access to class analytics
type Teacher struct {
	ID         string    `json:"id"`
	UserID     string    `json:"user_id"`
	Name       string    `json:"name"`
	Email      string    `json:"email"`
	Department string    `json:"department,omitempty"`
	CreatedAt  time.Time `json:"created_at"`
	UpdatedAt  time.Time `json:"updated_at"`
}

// Class groups students under one or more teachers
type Class struct {
	ID           string    `json:"id"`
	Name         string    `json:"name"`
	Code         string    `json:"code,omitempty"`
	Description  string    `json:"description,omitempty"`
	AcademicYear string    `json:"academic_year,omitempty"`
	Semester     string    `json:"semester,omitempty"`
	IsActive     bool      `json:"is_active"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

// StudentAssignment links a student to a class
type StudentAssignment struct {
	StudentID string
	ClassID   string
	ClassName string
}

// TeacherNote is a teacher's annotation on one practice record
type TeacherNote struct {
	ID         string    `json:"id"`
	TeacherID  string    `json:"teacher_id"`
	StudentID  string    `json:"student_id"`
	PracticeID string    `json:"practice_id"`
	Note       string    `json:"note"`
	CreatedAt  time.Time `json:"created_at"`
	UpdatedAt  time.Time `json:"updated_at"`
}

// Alert types raised for teachers
const (
	AlertInactiveStudent = "inactive_student"
	AlertWarningStudent  = "warning_student"
)

// TeacherAlert notifies a teacher about a student
type TeacherAlert struct {
	ID          string    `json:"id"`
	TeacherID   string    `json:"teacher_id"`
	StudentID   string    `json:"student_id"`
	StudentName string    `json:"student_name"`
	AlertType   string    `json:"alert_type"`
	Message     string    `json:"message"`
	IsRead      bool      `json:"is_read"`
	CreatedAt   time.Time `json:"created_at"`
}
