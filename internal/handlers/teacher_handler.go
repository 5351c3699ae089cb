package handlers

import (
	"encoding/json"
	"net/http"
	"strconv"

	"go.uber.org/zap"

	"hanashite/internal/engagement"
	"hanashite/internal/models"
	"hanashite/internal/service"
)

// TeacherHandler serves the teacher console API
type TeacherHandler struct {
	teachers *service.TeacherService
	logger   *zap.Logger
}

// NewTeacherHandler creates a new teacher handler
func NewTeacherHandler(teachers *service.TeacherService, logger *zap.Logger) *TeacherHandler {
	return &TeacherHandler{teachers: teachers, logger: logger}
}

// ListClasses returns the teacher's classes with statistics
func (h *TeacherHandler) ListClasses(w http.ResponseWriter, r *http.Request) {
	teacher := GetTeacherFromContext(r.Context())

	classes, err := h.teachers.Classes(r.Context(), teacher)
	if err != nil {
		respondWithError(w, h.logger, "failed to list classes", err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]interface{}{"classes": classes})
}

// ClassStudents returns the students of one class
func (h *TeacherHandler) ClassStudents(w http.ResponseWriter, r *http.Request) {
	teacher := GetTeacherFromContext(r.Context())

	list, err := h.teachers.ClassStudents(r.Context(), teacher, r.PathValue("classID"))
	if err != nil {
		respondWithError(w, h.logger, "failed to list class students", err)
		return
	}
	respondJSON(w, http.StatusOK, list)
}

// ListStudents returns every student of the teacher, optionally filtered by class_id
func (h *TeacherHandler) ListStudents(w http.ResponseWriter, r *http.Request) {
	teacher := GetTeacherFromContext(r.Context())

	list, err := h.teachers.AllStudents(r.Context(), teacher, r.URL.Query().Get("class_id"))
	if err != nil {
		respondWithError(w, h.logger, "failed to list students", err)
		return
	}
	respondJSON(w, http.StatusOK, list)
}

// StudentDetails returns one student's drill-down
func (h *TeacherHandler) StudentDetails(w http.ResponseWriter, r *http.Request) {
	teacher := GetTeacherFromContext(r.Context())

	details, err := h.teachers.StudentDetails(r.Context(), teacher, r.PathValue("studentID"))
	if err != nil {
		respondWithError(w, h.logger, "failed to load student details", err)
		return
	}
	respondJSON(w, http.StatusOK, details)
}

// GetPractice returns a student's practice with its notes
func (h *TeacherHandler) GetPractice(w http.ResponseWriter, r *http.Request) {
	teacher := GetTeacherFromContext(r.Context())

	practice, err := h.teachers.Practice(r.Context(), teacher, r.PathValue("practiceID"))
	if err != nil {
		respondWithError(w, h.logger, "failed to load practice", err)
		return
	}
	respondJSON(w, http.StatusOK, practice)
}

// SaveNote creates or replaces the teacher's note on a practice
func (h *TeacherHandler) SaveNote(w http.ResponseWriter, r *http.Request) {
	teacher := GetTeacherFromContext(r.Context())

	var req service.NoteRequest
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, 64<<10)).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, ErrInvalidRequest)
		return
	}

	note, err := h.teachers.SaveNote(r.Context(), teacher, req)
	if err != nil {
		respondWithError(w, h.logger, "failed to save note", err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]interface{}{
		"success": true,
		"note_id": note.ID,
		"note":    note,
	})
}

// ListAlerts returns recent alerts; unread_only=true hides read ones
func (h *TeacherHandler) ListAlerts(w http.ResponseWriter, r *http.Request) {
	teacher := GetTeacherFromContext(r.Context())
	unreadOnly := r.URL.Query().Get("unread_only") == "true"

	alerts, err := h.teachers.Alerts(r.Context(), teacher, unreadOnly)
	if err != nil {
		respondWithError(w, h.logger, "failed to list alerts", err)
		return
	}
	if alerts == nil {
		alerts = []models.TeacherAlert{}
	}
	respondJSON(w, http.StatusOK, map[string]interface{}{"alerts": alerts})
}

// MarkAlertRead marks one of the teacher's alerts as read
func (h *TeacherHandler) MarkAlertRead(w http.ResponseWriter, r *http.Request) {
	teacher := GetTeacherFromContext(r.Context())

	if err := h.teachers.MarkAlertRead(r.Context(), teacher, r.PathValue("alertID")); err != nil {
		respondWithError(w, h.logger, "failed to mark alert read", err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]interface{}{"success": true})
}

// Analytics returns the cohort report for ?period=N days (default 30)
func (h *TeacherHandler) Analytics(w http.ResponseWriter, r *http.Request) {
	teacher := GetTeacherFromContext(r.Context())

	period, ok := parsePeriod(r)
	if !ok {
		writeError(w, http.StatusBadRequest, "Invalid period")
		return
	}

	analytics, err := h.teachers.Analytics(r.Context(), teacher, period)
	if err != nil {
		respondWithError(w, h.logger, "failed to build analytics", err)
		return
	}
	respondJSON(w, http.StatusOK, analytics)
}

func parsePeriod(r *http.Request) (int, bool) {
	s := r.URL.Query().Get("period")
	if s == "" {
		return engagement.DefaultPeriodDays, true
	}
	n, err := strconv.Atoi(s)
	if err != nil || n < 1 || n > engagement.MaxPeriodDays {
		return 0, false
	}
	return engagement.ClampPeriod(n), true
}
