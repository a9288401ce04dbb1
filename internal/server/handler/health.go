package handler

import (
	"net/http"
	"time"
)

// HealthHandler serves the liveness endpoint.
type HealthHandler struct {
	started time.Time
}

// NewHealthHandler creates a HealthHandler that reports uptime since started.
func NewHealthHandler(started time.Time) *HealthHandler {
	return &HealthHandler{started: started}
}

// HealthCheck handles GET /api/health.
func (h *HealthHandler) HealthCheck(w http.ResponseWriter, r *http.Request) {
	now := time.Now()
	writeJSON(w, http.StatusOK, map[string]any{
		"status":         "ok",
		"timestamp":      now.UTC().Format(time.RFC3339),
		"uptime_seconds": int64(now.Sub(h.started).Seconds()),
	})
}
