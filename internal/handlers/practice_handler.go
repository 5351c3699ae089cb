package handlers

import (
	"errors"
	"io"
	"math"
	"net/http"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"

	"hanashite/internal/audio"
	"hanashite/internal/models"
	"hanashite/internal/repository"
	"hanashite/internal/service"
)

// PracticeHandler handles recording uploads and practice history
type PracticeHandler struct {
	practices *service.PracticeService
	maxUpload int64
	loc       *time.Location
	logger    *zap.Logger
}

// NewPracticeHandler creates a new practice handler
func NewPracticeHandler(practices *service.PracticeService, maxUpload int64, loc *time.Location, logger *zap.Logger) *PracticeHandler {
	return &PracticeHandler{
		practices: practices,
		maxUpload: maxUpload,
		loc:       loc,
		logger:    logger,
	}
}

type uploadResponse struct {
	SpeechID      string          `json:"speechId"`
	AudioURL      string          `json:"audioUrl"`
	Transcription string          `json:"transcription"`
	Feedback      models.Feedback `json:"feedback"`
	Duration      int             `json:"duration"`
}

// Upload accepts a multipart recording (fields audio, topic_id, duration),
// transcribes and reviews it, and returns the saved practice
func (h *PracticeHandler) Upload(w http.ResponseWriter, r *http.Request) {
	id, _ := GetIdentityFromContext(r.Context())

	r.Body = http.MaxBytesReader(w, r.Body, h.maxUpload+multipartOverheadSize)
	if err := r.ParseMultipartForm(multipartMemoryBytes); err != nil {
		var maxBytes *http.MaxBytesError
		if errors.As(err, &maxBytes) {
			writeError(w, http.StatusRequestEntityTooLarge, ErrTooLarge)
			return
		}
		writeError(w, http.StatusBadRequest, ErrInvalidFormData)
		return
	}
	defer r.MultipartForm.RemoveAll()

	duration, err := parseDuration(r.FormValue("duration"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid duration value")
		return
	}

	file, _, err := r.FormFile("audio")
	if err != nil {
		writeError(w, http.StatusBadRequest, "Missing audio file")
		return
	}
	defer file.Close()

	data, err := io.ReadAll(io.LimitReader(file, h.maxUpload+1))
	if err != nil {
		respondWithError(w, h.logger, "failed to read upload", err)
		return
	}
	if int64(len(data)) > h.maxUpload {
		respondWithError(w, h.logger, "", audio.ErrTooLarge)
		return
	}

	rec, err := h.practices.Submit(r.Context(), id, service.SubmitRequest{
		TopicID:  firstNonEmpty(r.FormValue("topic_id"), r.FormValue("topicId")),
		Duration: duration,
		Audio:    data,
	})
	if err != nil {
		respondWithError(w, h.logger, "failed to submit practice", err)
		return
	}

	respondJSON(w, http.StatusCreated, uploadResponse{
		SpeechID:      rec.ID,
		AudioURL:      rec.AudioURL,
		Transcription: rec.Transcription,
		Feedback:      rec.Feedback,
		Duration:      rec.DurationSeconds,
	})
}

// ListPractices returns the caller's practice history, newest first.
// Query: from, to (YYYY-MM-DD, inclusive), topic_id, limit.
func (h *PracticeHandler) ListPractices(w http.ResponseWriter, r *http.Request) {
	id, _ := GetIdentityFromContext(r.Context())

	filter, err := h.practiceFilter(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	records, err := h.practices.List(r.Context(), id.UserID, filter)
	if err != nil {
		respondWithError(w, h.logger, "failed to list practices", err)
		return
	}
	if records == nil {
		records = []models.PracticeRecord{}
	}
	respondJSON(w, http.StatusOK, map[string]interface{}{"practices": records})
}

// GetPractice returns one of the caller's practices
func (h *PracticeHandler) GetPractice(w http.ResponseWriter, r *http.Request) {
	id, _ := GetIdentityFromContext(r.Context())

	rec, err := h.practices.Get(r.Context(), id.UserID, r.PathValue("id"))
	if err != nil {
		respondWithError(w, h.logger, "failed to load practice", err)
		return
	}
	respondJSON(w, http.StatusOK, rec)
}

func (h *PracticeHandler) practiceFilter(r *http.Request) (repository.PracticeFilter, error) {
	q := r.URL.Query()
	filter := repository.PracticeFilter{
		TopicID: q.Get("topic_id"),
		Limit:   defaultPracticeLimit,
	}

	if s := q.Get("from"); s != "" {
		d, err := models.ParseDate(s)
		if err != nil {
			return filter, errors.New("invalid from date")
		}
		filter.From = d.In(h.loc)
	}
	if s := q.Get("to"); s != "" {
		d, err := models.ParseDate(s)
		if err != nil {
			return filter, errors.New("invalid to date")
		}
		filter.To = d.AddDays(1).In(h.loc)
	}
	if s := q.Get("limit"); s != "" {
		n, err := strconv.Atoi(s)
		if err != nil || n < 1 {
			return filter, errors.New("invalid limit")
		}
		filter.Limit = min(n, maxPracticeLimit)
	}
	return filter, nil
}

// parseDuration accepts whole or fractional seconds; fractions are rounded
func parseDuration(s string) (int, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, errors.New("missing duration")
	}
	if n, err := strconv.Atoi(s); err == nil {
		return n, nil
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, err
	}
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return 0, errors.New("duration is not a number")
	}
	return int(math.Round(f)), nil
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
