package handlers

import (
	"bytes"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"hanashite/internal/models"
)

func TestUploadAndHistory(t *testing.T) {
	s := newTestServer(t)
	recording := []byte("fake-webm-bytes")

	rec := s.upload(t, &student, "daily-hobby", "42.4", recording)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	var uploaded uploadResponse
	decode(t, rec, &uploaded)
	assert.NotEmpty(t, uploaded.SpeechID)
	assert.Equal(t, 42, uploaded.Duration)
	assert.Equal(t, "私の趣味は料理です", uploaded.Transcription)
	require.NotNil(t, uploaded.Feedback.Score)
	assert.Equal(t, 82, *uploaded.Feedback.Score)
	assert.True(t, strings.HasPrefix(uploaded.AudioURL, "/audio/speeches/s1/"))

	rec = s.get(t, "/api/practices", &student)
	require.Equal(t, http.StatusOK, rec.Code)
	var list struct {
		Practices []models.PracticeRecord `json:"practices"`
	}
	decode(t, rec, &list)
	require.Len(t, list.Practices, 1)
	assert.Equal(t, uploaded.SpeechID, list.Practices[0].ID)
	assert.Equal(t, "日常・趣味", list.Practices[0].TopicCategory)

	rec = s.get(t, "/api/practices/"+uploaded.SpeechID, &student)
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = s.get(t, "/api/practices/"+uploaded.SpeechID, &outsider)
	assert.Equal(t, http.StatusNotFound, rec.Code, "other users cannot read the practice")

	t.Run("audio is served to owner and teacher only", func(t *testing.T) {
		for _, tt := range []struct {
			name string
			as   *models.Identity
			want int
		}{
			{"owner", &student, http.StatusOK},
			{"teacher", &teacher, http.StatusOK},
			{"outsider", &outsider, http.StatusNotFound},
			{"anonymous", nil, http.StatusUnauthorized},
		} {
			rec := s.get(t, uploaded.AudioURL, tt.as)
			assert.Equal(t, tt.want, rec.Code, tt.name)
			if tt.want == http.StatusOK {
				body, _ := io.ReadAll(rec.Body)
				assert.Equal(t, recording, body, tt.name)
				assert.Equal(t, "audio/webm", rec.Header().Get("Content-Type"))
			}
		}
	})
}

func TestUploadRejections(t *testing.T) {
	s := newTestServer(t)

	tests := []struct {
		name     string
		topicID  string
		duration string
		audio    []byte
		want     int
	}{
		{"unknown topic", "no-such-topic", "10", []byte("x"), http.StatusNotFound},
		{"bad duration", "daily-hobby", "ten", []byte("x"), http.StatusBadRequest},
		{"missing audio", "daily-hobby", "10", nil, http.StatusBadRequest},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := s.upload(t, &outsider, tt.topicID, tt.duration, tt.audio)
			assert.Equal(t, tt.want, rec.Code, rec.Body.String())
		})
	}

	rec := s.upload(t, &student, "daily-hobby", "10", bytes.Repeat([]byte("a"), 2048))
	assert.Equal(t, http.StatusRequestEntityTooLarge, rec.Code)

	rec = s.upload(t, &student, "daily-hobby", "-5", []byte("x"))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	var body errorResponse
	decode(t, rec, &body)
	require.Len(t, body.Fields, 1)
	assert.Equal(t, "duration", body.Fields[0].Field)
}

func TestUploadRateLimit(t *testing.T) {
	s := newTestServer(t)

	for i := 0; i < 3; i++ {
		rec := s.upload(t, &student, "daily-hobby", "10", []byte("x"))
		require.Equal(t, http.StatusCreated, rec.Code)
	}
	rec := s.upload(t, &student, "daily-hobby", "10", []byte("x"))
	assert.Equal(t, http.StatusTooManyRequests, rec.Code)
	assert.NotEmpty(t, rec.Header().Get("Retry-After"))

	rec = s.upload(t, &outsider, "daily-hobby", "10", []byte("x"))
	assert.Equal(t, http.StatusCreated, rec.Code, "limits are per user")
}

func TestPracticeFilterValidation(t *testing.T) {
	s := newTestServer(t)

	for _, q := range []string{"from=yesterday", "to=2024-13-01", "limit=0", "limit=abc"} {
		rec := s.get(t, "/api/practices?"+q, &student)
		assert.Equal(t, http.StatusBadRequest, rec.Code, q)
	}
	rec := s.get(t, "/api/practices?from=2024-01-01&to=2024-01-31&limit=5000", &student)
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestTopicsAndDashboard(t *testing.T) {
	s := newTestServer(t)

	rec := s.get(t, "/api/topics?category="+url.QueryEscape("日常・趣味"), &student)
	require.Equal(t, http.StatusOK, rec.Code)
	var topics struct {
		Topics []models.Topic `json:"topics"`
	}
	decode(t, rec, &topics)
	require.Len(t, topics.Topics, 1)
	assert.Equal(t, "daily-hobby", topics.Topics[0].ID)

	rec = s.get(t, "/api/topics/categories", &student)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"topic_count":1`)

	rec = s.get(t, "/api/streak", &outsider)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"streak":null,"at_risk":false}`, rec.Body.String())

	rec = s.get(t, "/api/dashboard", &outsider)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"streakAtRisk":false`)
}

func TestTeacherRoutes(t *testing.T) {
	s := newTestServer(t)

	rec := s.upload(t, &student, "daily-hobby", "30", []byte("x"))
	require.Equal(t, http.StatusCreated, rec.Code)
	var uploaded uploadResponse
	decode(t, rec, &uploaded)

	t.Run("students cannot use teacher routes", func(t *testing.T) {
		rec := s.get(t, "/api/teacher/classes", &student)
		assert.Equal(t, http.StatusForbidden, rec.Code)
	})

	t.Run("classes and students", func(t *testing.T) {
		rec := s.get(t, "/api/teacher/classes", &teacher)
		require.Equal(t, http.StatusOK, rec.Code)
		assert.Contains(t, rec.Body.String(), `"name":"1年A組"`)
		assert.Contains(t, rec.Body.String(), `"student_count":1`)

		rec = s.get(t, "/api/teacher/classes/C1/students", &teacher)
		require.Equal(t, http.StatusOK, rec.Code)
		assert.Contains(t, rec.Body.String(), `"id":"s1"`)

		rec = s.get(t, "/api/teacher/classes/C9/students", &teacher)
		assert.Equal(t, http.StatusForbidden, rec.Code)

		rec = s.get(t, "/api/teacher/students/s1", &teacher)
		assert.Equal(t, http.StatusOK, rec.Code)
		rec = s.get(t, "/api/teacher/students/s9", &teacher)
		assert.Equal(t, http.StatusForbidden, rec.Code)
	})

	t.Run("notes", func(t *testing.T) {
		body := `{"practice_id":"` + uploaded.SpeechID + `","note":"よくできました"}`
		req := httptest.NewRequest(http.MethodPost, "/api/teacher/notes", strings.NewReader(body))
		rec := s.do(t, req, &teacher)
		require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
		assert.Contains(t, rec.Body.String(), `"success":true`)

		rec = s.get(t, "/api/teacher/practices/"+uploaded.SpeechID, &teacher)
		require.Equal(t, http.StatusOK, rec.Code)
		var detail models.PracticeWithNotes
		decode(t, rec, &detail)
		require.Len(t, detail.Notes, 1)
		assert.Equal(t, "よくできました", detail.Notes[0].Note)

		req = httptest.NewRequest(http.MethodPost, "/api/teacher/notes", strings.NewReader(`{"practice_id":"`+uploaded.SpeechID+`"}`))
		rec = s.do(t, req, &teacher)
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})

	t.Run("alerts", func(t *testing.T) {
		rec := s.get(t, "/api/teacher/alerts?unread_only=true", &teacher)
		require.Equal(t, http.StatusOK, rec.Code)
		assert.JSONEq(t, `{"alerts":[]}`, rec.Body.String())

		req := httptest.NewRequest(http.MethodPatch, "/api/teacher/alerts/missing/read", nil)
		rec = s.do(t, req, &teacher)
		assert.Equal(t, http.StatusNotFound, rec.Code)
	})

	t.Run("analytics", func(t *testing.T) {
		rec := s.get(t, "/api/teacher/analytics?period=7", &teacher)
		require.Equal(t, http.StatusOK, rec.Code)
		assert.Contains(t, rec.Body.String(), `"period_days":7`)

		rec = s.get(t, "/api/teacher/analytics?period=-1", &teacher)
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})

	t.Run("exports", func(t *testing.T) {
		rec := s.get(t, "/api/teacher/students/export?class_id=C1", &teacher)
		require.Equal(t, http.StatusOK, rec.Code)
		assert.Equal(t, "text/csv; charset=utf-8", rec.Header().Get("Content-Type"))
		assert.Contains(t, rec.Header().Get("Content-Disposition"), "attachment")
		assert.Contains(t, rec.Header().Get("Content-Disposition"), "filename*=utf-8''")
		assert.True(t, strings.HasPrefix(rec.Body.String(), "\uFEFF名前,"))
		assert.Contains(t, rec.Body.String(), "Aiko")

		rec = s.get(t, "/api/teacher/analytics/export", &teacher)
		require.Equal(t, http.StatusOK, rec.Code)
		assert.Contains(t, rec.Body.String(), "サマリー")
	})
}

func TestHealthAndMetrics(t *testing.T) {
	s := newTestServer(t)

	rec := s.get(t, "/healthz", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"status":"ok"}`, rec.Body.String())

	s.get(t, "/api/streak", &student)
	rec = s.get(t, "/metrics", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `hanashite_http_requests_total{method="GET",route="GET /api/streak",status="200"} 1`)
}
