package handlers

import (
	"net/http"

	"go.uber.org/zap"

	"hanashite/internal/service"
)

// TopicHandler serves the speaking topic catalogue
type TopicHandler struct {
	topics *service.TopicService
	logger *zap.Logger
}

// NewTopicHandler creates a new topic handler
func NewTopicHandler(topics *service.TopicService, logger *zap.Logger) *TopicHandler {
	return &TopicHandler{topics: topics, logger: logger}
}

// ListTopics returns active topics, optionally for one category
func (h *TopicHandler) ListTopics(w http.ResponseWriter, r *http.Request) {
	topics, err := h.topics.List(r.Context(), r.URL.Query().Get("category"))
	if err != nil {
		respondWithError(w, h.logger, "failed to list topics", err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]interface{}{"topics": topics})
}

// ListCategories returns each category with its topic count
func (h *TopicHandler) ListCategories(w http.ResponseWriter, r *http.Request) {
	categories, err := h.topics.Categories(r.Context())
	if err != nil {
		respondWithError(w, h.logger, "failed to list categories", err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]interface{}{"categories": categories})
}
