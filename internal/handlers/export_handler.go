package handlers

import (
	"bytes"
	"mime"
	"net/http"
	"strconv"
	"time"

	"go.uber.org/zap"

	"hanashite/internal/export"
	"hanashite/internal/service"
)

// ExportHandler serves CSV downloads of teacher reports
type ExportHandler struct {
	teachers *service.TeacherService
	logger   *zap.Logger
	now      func() time.Time
}

// NewExportHandler creates a new export handler
func NewExportHandler(teachers *service.TeacherService, logger *zap.Logger) *ExportHandler {
	return &ExportHandler{teachers: teachers, logger: logger, now: time.Now}
}

// ExportStudents downloads the student list, optionally for one class_id
func (h *ExportHandler) ExportStudents(w http.ResponseWriter, r *http.Request) {
	teacher := GetTeacherFromContext(r.Context())
	classID := r.URL.Query().Get("class_id")

	list, err := h.teachers.AllStudents(r.Context(), teacher, classID)
	if err != nil {
		respondWithError(w, h.logger, "failed to list students for export", err)
		return
	}

	var buf bytes.Buffer
	if err := export.WriteStudentsCSV(&buf, list.Students); err != nil {
		respondWithError(w, h.logger, "failed to render students csv", err)
		return
	}

	className := ""
	if classID != "" && len(list.Students) > 0 {
		className = list.Students[0].ClassName
	}
	h.sendCSV(w, export.StudentsFilename(className, h.now()), buf.Bytes())
}

// ExportAnalytics downloads the analytics report for ?period=N days
func (h *ExportHandler) ExportAnalytics(w http.ResponseWriter, r *http.Request) {
	teacher := GetTeacherFromContext(r.Context())

	period, ok := parsePeriod(r)
	if !ok {
		writeError(w, http.StatusBadRequest, "Invalid period")
		return
	}

	analytics, err := h.teachers.Analytics(r.Context(), teacher, period)
	if err != nil {
		respondWithError(w, h.logger, "failed to build analytics for export", err)
		return
	}

	var buf bytes.Buffer
	if err := export.WriteAnalyticsCSV(&buf, *analytics); err != nil {
		respondWithError(w, h.logger, "failed to render analytics csv", err)
		return
	}
	h.sendCSV(w, export.AnalyticsFilename(h.now()), buf.Bytes())
}

func (h *ExportHandler) sendCSV(w http.ResponseWriter, filename string, body []byte) {
	w.Header().Set("Content-Type", "text/csv; charset=utf-8")
	w.Header().Set("Content-Disposition", mime.FormatMediaType("attachment", map[string]string{"filename": filename}))
	w.Header().Set("Content-Length", strconv.Itoa(len(body)))
	w.WriteHeader(http.StatusOK)
	if _, err := w.Write(body); err != nil {
		h.logger.Warn("failed to write csv export", zap.String("filename", filename), zap.Error(err))
	}
}
