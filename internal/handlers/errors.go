package handlers

import (
	"encoding/json"
	"errors"
	"net/http"

	"go.uber.org/zap"

	"hanashite/internal/audio"
	"hanashite/internal/repository"
	"hanashite/internal/security"
	"hanashite/internal/service"
	"hanashite/internal/validation"
)

type errorResponse struct {
	Error  string                       `json:"error"`
	Fields []validation.ValidationError `json:"fields,omitempty"`
}

func respondJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, userMsg string) {
	respondJSON(w, status, errorResponse{Error: userMsg})
}

// respondWithError maps a service error onto a status code. Only server
// errors are logged; logMsg describes what the handler was doing.
func respondWithError(w http.ResponseWriter, logger *zap.Logger, logMsg string, err error) {
	var verrs validation.Errors
	var maxBytes *http.MaxBytesError

	switch {
	case errors.As(err, &verrs):
		respondJSON(w, http.StatusBadRequest, errorResponse{Error: ErrInvalidRequest, Fields: verrs})
	case errors.Is(err, service.ErrInvalidInput):
		writeError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, security.ErrMissingToken), errors.Is(err, security.ErrInvalidToken):
		writeError(w, http.StatusUnauthorized, ErrUnauthorized)
	case errors.Is(err, service.ErrNotTeacher):
		writeError(w, http.StatusForbidden, ErrNotTeacherAccess)
	case errors.Is(err, service.ErrForbidden):
		writeError(w, http.StatusForbidden, ErrForbidden)
	case errors.Is(err, service.ErrNotFound), errors.Is(err, repository.ErrNotFound):
		writeError(w, http.StatusNotFound, ErrNotFound)
	case errors.Is(err, audio.ErrTooLarge), errors.As(err, &maxBytes):
		writeError(w, http.StatusRequestEntityTooLarge, ErrTooLarge)
	default:
		logger.Error(logMsg, zap.Error(err))
		writeError(w, http.StatusInternalServerError, ErrInternalServerError)
	}
}
