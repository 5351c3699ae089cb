package handlers

import (
	"net/http"

	"go.uber.org/zap"

	"hanashite/internal/service"
)

// DashboardHandler serves a student's own progress
type DashboardHandler struct {
	dashboards *service.DashboardService
	streaks    *service.StreakService
	logger     *zap.Logger
}

// NewDashboardHandler creates a new dashboard handler
func NewDashboardHandler(dashboards *service.DashboardService, streaks *service.StreakService, logger *zap.Logger) *DashboardHandler {
	return &DashboardHandler{dashboards: dashboards, streaks: streaks, logger: logger}
}

// Dashboard returns stats, streak and at-risk flag for the caller
func (h *DashboardHandler) Dashboard(w http.ResponseWriter, r *http.Request) {
	id, _ := GetIdentityFromContext(r.Context())

	dash, err := h.dashboards.Get(r.Context(), id.UserID)
	if err != nil {
		respondWithError(w, h.logger, "failed to build dashboard", err)
		return
	}
	respondJSON(w, http.StatusOK, dash)
}

// Streak returns the caller's streak. A user who never practiced gets a null streak.
func (h *DashboardHandler) Streak(w http.ResponseWriter, r *http.Request) {
	id, _ := GetIdentityFromContext(r.Context())

	status, err := h.streaks.Status(r.Context(), id.UserID)
	if err != nil {
		respondWithError(w, h.logger, "failed to load streak", err)
		return
	}
	respondJSON(w, http.StatusOK, status)
}
