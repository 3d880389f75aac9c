package handlers

import (
	"net/http"

	"pulseboard/internal/board"
	"pulseboard/internal/tracker"
	"pulseboard/pkg/logger"
)

// LeaderboardHandler serves the published leaderboard read side.
type LeaderboardHandler struct {
	publisher *board.Publisher
	logger    *logger.Logger
}

// NewLeaderboardHandler creates a leaderboard handler.
func NewLeaderboardHandler(publisher *board.Publisher, log *logger.Logger) *LeaderboardHandler {
	return &LeaderboardHandler{
		publisher: publisher,
		logger:    log.WithField("handler", "leaderboard"),
	}
}

// GetLeaderboard returns the latest published snapshot.
// GET /api/leaderboard
func (h *LeaderboardHandler) GetLeaderboard(w http.ResponseWriter, r *http.Request) {
	snap := h.publisher.Current()
	if snap == nil {
		respondError(w, http.StatusServiceUnavailable, "No leaderboard published yet")
		return
	}
	respondJSON(w, http.StatusOK, snap)
}

// GetAlerts returns the alerts attached to the latest snapshot.
// GET /api/alerts
func (h *LeaderboardHandler) GetAlerts(w http.ResponseWriter, r *http.Request) {
	snap := h.publisher.Current()
	if snap == nil {
		respondError(w, http.StatusServiceUnavailable, "No leaderboard published yet")
		return
	}

	alerts := snap.Alerts
	if alerts == nil {
		alerts = []tracker.Alert{}
	}
	respondJSON(w, http.StatusOK, map[string]interface{}{
		"alerts":       alerts,
		"generated_at": snap.GeneratedAt,
	})
}
