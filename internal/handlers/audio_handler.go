package handlers

import (
	"context"
	"errors"
	"io/fs"
	"net/http"
	"os"
	"path"

	"go.uber.org/zap"

	"hanashite/internal/audio"
)

// AudioFiles opens stored recordings by key
type AudioFiles interface {
	Open(key string) (*os.File, error)
}

// StudentAccess decides whether a user may see a student's recordings
type StudentAccess interface {
	CanAccessStudent(ctx context.Context, userID, studentID string) (bool, error)
}

// AudioHandler streams recordings to their owner and the owner's teachers
type AudioHandler struct {
	files  AudioFiles
	access StudentAccess
	logger *zap.Logger
}

// NewAudioHandler creates a new audio handler
func NewAudioHandler(files AudioFiles, access StudentAccess, logger *zap.Logger) *AudioHandler {
	return &AudioHandler{files: files, access: access, logger: logger}
}

// ServeAudio serves GET /audio/{key...}
func (h *AudioHandler) ServeAudio(w http.ResponseWriter, r *http.Request) {
	id, _ := GetIdentityFromContext(r.Context())
	key := r.PathValue("key")

	owner, ok := audio.Owner(key)
	if !ok {
		writeError(w, http.StatusNotFound, ErrNotFound)
		return
	}
	allowed, err := h.access.CanAccessStudent(r.Context(), id.UserID, owner)
	if err != nil {
		respondWithError(w, h.logger, "failed to check audio access", err)
		return
	}
	if !allowed {
		// same answer as a missing file so keys cannot be probed
		writeError(w, http.StatusNotFound, ErrNotFound)
		return
	}

	f, err := h.files.Open(key)
	if errors.Is(err, fs.ErrNotExist) {
		writeError(w, http.StatusNotFound, ErrNotFound)
		return
	}
	if err != nil {
		respondWithError(w, h.logger, "failed to open audio", err)
		return
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		respondWithError(w, h.logger, "failed to stat audio", err)
		return
	}
	w.Header().Set("Content-Type", "audio/webm")
	w.Header().Set("Cache-Control", "private, max-age=3600")
	http.ServeContent(w, r, path.Base(key), info.ModTime(), f)
}
