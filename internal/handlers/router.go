package handlers

import (
	"net/http"

	"go.uber.org/zap"

	"hanashite/internal/metrics"
)

// Routes collects everything the API mux dispatches to
type Routes struct {
	Middleware *Middleware
	Topics     *TopicHandler
	Practices  *PracticeHandler
	Dashboard  *DashboardHandler
	Teacher    *TeacherHandler
	Export     *ExportHandler
	Audio      *AudioHandler
	Health     http.HandlerFunc
	Metrics    *metrics.Metrics
	Logger     *zap.Logger
}

// NewRouter registers every route and wraps the mux with logging and metrics
func NewRouter(rt Routes) http.Handler {
	mux := http.NewServeMux()
	mw := rt.Middleware

	// Operational
	mux.HandleFunc("GET /healthz", rt.Health)
	mux.Handle("GET /metrics", rt.Metrics.Handler())

	// Student routes
	mux.HandleFunc("GET /api/topics", mw.RequireAuth(rt.Topics.ListTopics))
	mux.HandleFunc("GET /api/topics/categories", mw.RequireAuth(rt.Topics.ListCategories))
	mux.HandleFunc("POST /api/speech/upload", mw.RequireAuth(mw.RateLimitUploads(rt.Practices.Upload)))
	mux.HandleFunc("GET /api/practices", mw.RequireAuth(rt.Practices.ListPractices))
	mux.HandleFunc("GET /api/practices/{id}", mw.RequireAuth(rt.Practices.GetPractice))
	mux.HandleFunc("GET /api/dashboard", mw.RequireAuth(rt.Dashboard.Dashboard))
	mux.HandleFunc("GET /api/streak", mw.RequireAuth(rt.Dashboard.Streak))
	mux.HandleFunc("GET /audio/{key...}", mw.RequireAuth(rt.Audio.ServeAudio))

	// Teacher routes
	mux.HandleFunc("GET /api/teacher/classes", mw.RequireTeacher(rt.Teacher.ListClasses))
	mux.HandleFunc("GET /api/teacher/classes/{classID}/students", mw.RequireTeacher(rt.Teacher.ClassStudents))
	mux.HandleFunc("GET /api/teacher/students", mw.RequireTeacher(rt.Teacher.ListStudents))
	mux.HandleFunc("GET /api/teacher/students/export", mw.RequireTeacher(rt.Export.ExportStudents))
	mux.HandleFunc("GET /api/teacher/students/{studentID}", mw.RequireTeacher(rt.Teacher.StudentDetails))
	mux.HandleFunc("GET /api/teacher/practices/{practiceID}", mw.RequireTeacher(rt.Teacher.GetPractice))
	mux.HandleFunc("POST /api/teacher/notes", mw.RequireTeacher(rt.Teacher.SaveNote))
	mux.HandleFunc("GET /api/teacher/alerts", mw.RequireTeacher(rt.Teacher.ListAlerts))
	mux.HandleFunc("PATCH /api/teacher/alerts/{alertID}/read", mw.RequireTeacher(rt.Teacher.MarkAlertRead))
	mux.HandleFunc("GET /api/teacher/analytics", mw.RequireTeacher(rt.Teacher.Analytics))
	mux.HandleFunc("GET /api/teacher/analytics/export", mw.RequireTeacher(rt.Export.ExportAnalytics))

	return Logging(rt.Logger, Instrument(rt.Metrics, mux))
}
