package handlers

import (
	"context"
	"net/http"
	"strconv"
	"time"

	"go.uber.org/zap"

	"hanashite/internal/metrics"
	"hanashite/internal/models"
	"hanashite/internal/security"
	"hanashite/internal/service"
)

// ContextKey is a custom type for context keys to avoid collisions
type ContextKey string

const (
	IdentityContextKey ContextKey = "identity"
	TeacherContextKey  ContextKey = "teacher"
)

// TokenVerifier turns a bearer token into an identity
type TokenVerifier interface {
	Verify(token string) (models.Identity, error)
}

// UserUpserter records the identity behind each authenticated request
type UserUpserter interface {
	Upsert(ctx context.Context, id, email, displayName string, now time.Time) error
}

// TeacherLookup resolves the teacher record of a user
type TeacherLookup interface {
	CurrentTeacher(ctx context.Context, userID string) (*models.Teacher, error)
}

// Middleware holds dependencies for middleware functions
type Middleware struct {
	tokens   TokenVerifier
	users    UserUpserter
	teachers TeacherLookup
	uploads  *security.RateLimiter
	logger   *zap.Logger
	now      func() time.Time
}

// NewMiddleware creates a new middleware instance
func NewMiddleware(tokens TokenVerifier, users UserUpserter, teachers TeacherLookup,
	uploads *security.RateLimiter, logger *zap.Logger) *Middleware {
	return &Middleware{
		tokens:   tokens,
		users:    users,
		teachers: teachers,
		uploads:  uploads,
		logger:   logger,
		now:      time.Now,
	}
}

// RequireAuth is middleware that requires a valid bearer token
func (m *Middleware) RequireAuth(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		token, err := security.BearerToken(r)
		if err != nil {
			respondWithError(w, m.logger, "", err)
			return
		}
		id, err := m.tokens.Verify(token)
		if err != nil {
			m.logger.Debug("rejected bearer token", zap.Error(err))
			respondWithError(w, m.logger, "", err)
			return
		}

		if err := m.users.Upsert(r.Context(), id.UserID, id.Email, id.Name, m.now()); err != nil {
			respondWithError(w, m.logger, "failed to record user", err)
			return
		}

		ctx := context.WithValue(r.Context(), IdentityContextKey, id)
		next(w, r.WithContext(ctx))
	}
}

// RequireTeacher is middleware that requires the caller to be a teacher
func (m *Middleware) RequireTeacher(next http.HandlerFunc) http.HandlerFunc {
	return m.RequireAuth(func(w http.ResponseWriter, r *http.Request) {
		id, _ := GetIdentityFromContext(r.Context())
		teacher, err := m.teachers.CurrentTeacher(r.Context(), id.UserID)
		if err != nil {
			respondWithError(w, m.logger, "failed to load teacher", err)
			return
		}

		ctx := context.WithValue(r.Context(), TeacherContextKey, teacher)
		next(w, r.WithContext(ctx))
	})
}

// RateLimitUploads limits how often one user may submit recordings.
// It must run inside RequireAuth.
func (m *Middleware) RateLimitUploads(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, ok := GetIdentityFromContext(r.Context())
		if !ok {
			writeError(w, http.StatusUnauthorized, ErrUnauthorized)
			return
		}
		if m.uploads != nil {
			if allowed, retry := m.uploads.Allow(id.UserID); !allowed {
				secs := int(retry.Seconds())
				if retry > time.Duration(secs)*time.Second {
					secs++
				}
				w.Header().Set("Retry-After", strconv.Itoa(secs))
				writeError(w, http.StatusTooManyRequests, ErrTooManyRequests)
				return
			}
		}
		next(w, r)
	}
}

// Logging middleware logs HTTP requests. Client errors log at warn, server errors at error.
func Logging(logger *zap.Logger, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}

		next.ServeHTTP(rec, r)

		fields := []zap.Field{
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.Int("status", rec.status),
			zap.Int("bytes", rec.size),
			zap.Duration("duration", time.Since(start)),
			zap.String("remote_addr", r.RemoteAddr),
		}
		switch {
		case rec.status >= 500:
			logger.Error("request failed", fields...)
		case rec.status >= 400:
			logger.Warn("request rejected", fields...)
		default:
			logger.Info("request", fields...)
		}
	})
}

// Instrument records request counts and latencies by route pattern
func Instrument(m *metrics.Metrics, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}

		next.ServeHTTP(rec, r)

		// ServeMux sets the matched pattern on the request it was given
		route := r.Pattern
		if route == "" {
			route = "unmatched"
		}
		m.ObserveHTTP(route, r.Method, rec.status, time.Since(start))
	})
}

type statusRecorder struct {
	http.ResponseWriter
	status  int
	size    int
	written bool
}

func (s *statusRecorder) WriteHeader(code int) {
	if !s.written {
		s.status = code
		s.written = true
	}
	s.ResponseWriter.WriteHeader(code)
}

func (s *statusRecorder) Write(b []byte) (int, error) {
	s.written = true
	n, err := s.ResponseWriter.Write(b)
	s.size += n
	return n, err
}

func (s *statusRecorder) Unwrap() http.ResponseWriter {
	return s.ResponseWriter
}

// GetIdentityFromContext retrieves the caller's identity from the request context
func GetIdentityFromContext(ctx context.Context) (models.Identity, bool) {
	id, ok := ctx.Value(IdentityContextKey).(models.Identity)
	return id, ok
}

// GetTeacherFromContext retrieves the teacher from the request context
func GetTeacherFromContext(ctx context.Context) *models.Teacher {
	teacher, ok := ctx.Value(TeacherContextKey).(*models.Teacher)
	if !ok {
		return nil
	}
	return teacher
}

var _ TeacherLookup = (*service.TeacherService)(nil)
