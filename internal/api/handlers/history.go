package handlers

import (
	"errors"
	"net/http"
	"time"

	"github.com/gorilla/mux"

	"pulseboard/internal/tracker"
	"pulseboard/internal/tracker/store"
	"pulseboard/pkg/logger"
	"pulseboard/pkg/redis"
)

// HistoryHandler serves per-account snapshot history.
type HistoryHandler struct {
	store  store.Store
	cache  *redis.Cache
	logger *logger.Logger
}

// NewHistoryHandler creates a history handler. The cache may be backed by
// a disabled client; range queries then always hit the store.
func NewHistoryHandler(s store.Store, cache *redis.Cache, log *logger.Logger) *HistoryHandler {
	return &HistoryHandler{
		store:  s,
		cache:  cache,
		logger: log.WithField("handler", "history"),
	}
}

// HistoryPoint is one chart point of the history response.
type HistoryPoint struct {
	Timestamp int64 `json:"timestamp"`
	Followers int64 `json:"followers"`
}

// GetHistory returns an account's follower history.
// GET /api/accounts/{username}/history?from=RFC3339&to=RFC3339
// Defaults to the last 24 hours.
func (h *HistoryHandler) GetHistory(w http.ResponseWriter, r *http.Request) {
	username := mux.Vars(r)["username"]

	to := time.Now().UTC()
	from := to.Add(-24 * time.Hour)

	if v := r.URL.Query().Get("from"); v != "" {
		t, err := time.Parse(time.RFC3339, v)
		if err != nil {
			respondError(w, http.StatusBadRequest, "Invalid 'from' timestamp (want RFC3339)")
			return
		}
		from = t
	}
	if v := r.URL.Query().Get("to"); v != "" {
		t, err := time.Parse(time.RFC3339, v)
		if err != nil {
			respondError(w, http.StatusBadRequest, "Invalid 'to' timestamp (want RFC3339)")
			return
		}
		to = t
	}
	if to.Before(from) {
		respondError(w, http.StatusBadRequest, "'to' must not precede 'from'")
		return
	}

	points := []HistoryPoint{}
	err := h.cache.GetOrSet(r.Context(), redis.HistoryKey(username, from, to), &points, redis.TTLMedium,
		func() (interface{}, error) {
			snaps, err := h.store.Range(r.Context(), username, from, to)
			if err != nil {
				return nil, err
			}
			pts := make([]HistoryPoint, 0, len(snaps))
			for _, s := range snaps {
				pts = append(pts, HistoryPoint{
					Timestamp: s.ObservedAt.Unix(),
					Followers: s.Followers,
				})
			}
			return pts, nil
		})
	if errors.Is(err, tracker.ErrNotFound) {
		respondError(w, http.StatusNotFound, "Unknown account")
		return
	}
	if err != nil {
		h.logger.WithError(err).WithField("username", username).Error("History query failed")
		respondError(w, http.StatusInternalServerError, "History query failed")
		return
	}

	respondJSON(w, http.StatusOK, map[string]interface{}{
		"username": username,
		"from":     from,
		"to":       to,
		"points":   points,
	})
}
