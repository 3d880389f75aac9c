package handlers

import (
	"net/http"
	"time"

	"pulseboard/internal/board"
	"pulseboard/pkg/database"
)

// HealthHandler reports service liveness and data freshness.
type HealthHandler struct {
	db        *database.DB
	publisher *board.Publisher
	started   time.Time
}

// NewHealthHandler creates a health handler. db may be nil when running
// without persistence.
func NewHealthHandler(db *database.DB, publisher *board.Publisher) *HealthHandler {
	return &HealthHandler{
		db:        db,
		publisher: publisher,
		started:   time.Now(),
	}
}

// GetHealth returns overall status.
// GET /health
func (h *HealthHandler) GetHealth(w http.ResponseWriter, r *http.Request) {
	status := "ok"
	body := map[string]interface{}{
		"service": "pulseboard",
		"uptime":  time.Since(h.started).Truncate(time.Second).String(),
	}

	if h.db != nil {
		if err := h.db.Ping(r.Context()); err != nil {
			status = "degraded"
			body["database"] = "unreachable"
		} else {
			body["database"] = "ok"
		}
	}

	if snap := h.publisher.Current(); snap != nil {
		body["last_publish"] = snap.GeneratedAt
		body["accounts"] = len(snap.Entries)
	} else {
		body["last_publish"] = nil
	}

	body["status"] = status
	code := http.StatusOK
	if status != "ok" {
		code = http.StatusServiceUnavailable
	}
	respondJSON(w, code, body)
}
