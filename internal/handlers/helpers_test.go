package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"hanashite/internal/audio"
	"hanashite/internal/database"
	"hanashite/internal/metrics"
	"hanashite/internal/models"
	"hanashite/internal/repository"
	"hanashite/internal/security"
	"hanashite/internal/service"
)

var tokyo = func() *time.Location {
	loc, err := time.LoadLocation("Asia/Tokyo")
	if err != nil {
		panic(err)
	}
	return loc
}()

var (
	student  = models.Identity{UserID: "s1", Email: "s1@example.com", Name: "Aiko"}
	outsider = models.Identity{UserID: "s9", Email: "s9@example.com", Name: "Ken"}
	teacher  = models.Identity{UserID: "teach", Email: "teach@example.com", Name: "佐藤先生"}
)

type stubTranscriber struct{}

func (stubTranscriber) Transcribe(ctx context.Context, audio []byte) (string, error) {
	return "私の趣味は料理です", nil
}

type stubFeedback struct{}

func (stubFeedback) Generate(ctx context.Context, transcription, topicTitle string) (models.Feedback, error) {
	return models.Feedback{
		Score:         models.IntPtr(82),
		GoodPoints:    []string{"自然な表現です"},
		Improvements:  []string{"接続詞を増やしましょう"},
		CorrectedText: transcription,
	}, nil
}

type nopNotifier struct{}

func (nopNotifier) Notify() {}

type testServer struct {
	db      *database.DB
	handler http.Handler
	tokens  *security.TokenManager
	metrics *metrics.Metrics
}

// newTestServer wires the full router over a fresh SQLite database holding
// teacher "teach" of class C1 (student s1) and an unassigned student s9.
func newTestServer(t *testing.T) *testServer {
	t.Helper()
	if testing.Short() {
		t.Skip("Skipping database test in short mode")
	}
	ctx := context.Background()
	logger := zaptest.NewLogger(t)

	db, err := database.OpenSQLite(filepath.Join(t.TempDir(), "handlers.db"))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	require.NoError(t, db.RunMigrations(ctx, nil))
	seedSchool(t, db)

	tokens, err := security.NewTokenManager("test-secret", "hanashite")
	require.NoError(t, err)

	m := metrics.New()
	store := audio.NewStore(t.TempDir(), "/audio", 1024)
	streaks := service.NewStreakService(db, tokyo, m, logger)
	teachers := service.NewTeacherService(db, tokyo)
	practices := service.NewPracticeService(db, store, stubTranscriber{}, stubFeedback{}, nopNotifier{}, m, logger)

	handler := NewRouter(Routes{
		Middleware: NewMiddleware(tokens, repository.NewUserRepository(db), teachers, security.NewRateLimiter(3, time.Minute), logger),
		Topics:     NewTopicHandler(service.NewTopicService(db, logger), logger),
		Practices:  NewPracticeHandler(practices, 1024, tokyo, logger),
		Dashboard:  NewDashboardHandler(service.NewDashboardService(db, tokyo), streaks, logger),
		Teacher:    NewTeacherHandler(teachers, logger),
		Export:     NewExportHandler(teachers, logger),
		Audio:      NewAudioHandler(store, teachers, logger),
		Health:     Healthz(db, logger),
		Metrics:    m,
		Logger:     logger,
	})
	return &testServer{db: db, handler: handler, tokens: tokens, metrics: m}
}

func seedSchool(t *testing.T, db *database.DB) {
	t.Helper()
	ctx := context.Background()
	now := time.Now()

	users := repository.NewUserRepository(db)
	for _, id := range []models.Identity{student, outsider, teacher} {
		require.NoError(t, users.Upsert(ctx, id.UserID, id.Email, id.Name, now))
	}
	require.NoError(t, repository.NewTopicRepository(db).Upsert(ctx, &models.Topic{
		ID: "daily-hobby", Category: "日常・趣味", Title: "あなたの趣味について話してください", IsActive: true,
	}, now))

	repo := repository.NewTeacherRepository(db)
	require.NoError(t, repo.Create(ctx, &models.Teacher{ID: "T1", UserID: teacher.UserID, Name: teacher.Name, Email: teacher.Email}, now))
	require.NoError(t, repo.CreateClass(ctx, &models.Class{ID: "C1", Name: "1年A組", IsActive: true}, now))
	require.NoError(t, repo.AssignTeacher(ctx, "T1", "C1"))
	require.NoError(t, repo.AssignStudent(ctx, student.UserID, "C1"))
}

func (s *testServer) do(t *testing.T, req *http.Request, as *models.Identity) *httptest.ResponseRecorder {
	t.Helper()
	if as != nil {
		token, err := s.tokens.Issue(*as, time.Hour)
		require.NoError(t, err)
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	s.handler.ServeHTTP(rec, req)
	return rec
}

func (s *testServer) get(t *testing.T, path string, as *models.Identity) *httptest.ResponseRecorder {
	return s.do(t, httptest.NewRequest(http.MethodGet, path, nil), as)
}

func (s *testServer) upload(t *testing.T, as *models.Identity, topicID, duration string, audioBytes []byte) *httptest.ResponseRecorder {
	t.Helper()
	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	require.NoError(t, mw.WriteField("topic_id", topicID))
	require.NoError(t, mw.WriteField("duration", duration))
	if audioBytes != nil {
		part, err := mw.CreateFormFile("audio", "recording.webm")
		require.NoError(t, err)
		_, err = part.Write(audioBytes)
		require.NoError(t, err)
	}
	require.NoError(t, mw.Close())

	req := httptest.NewRequest(http.MethodPost, "/api/speech/upload", &body)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	return s.do(t, req, as)
}

func decode(t *testing.T, rec *httptest.ResponseRecorder, v interface{}) {
	t.Helper()
	data, err := io.ReadAll(rec.Body)
	require.NoError(t, err)
	require.NoError(t, json.Unmarshal(data, v), string(data))
}
