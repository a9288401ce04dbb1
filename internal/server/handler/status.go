package handler

import (
	"net/http"

	"github.com/alanyoungcy/spreadarb/internal/domain"
	"github.com/alanyoungcy/spreadarb/internal/engine"
	"github.com/alanyoungcy/spreadarb/internal/executor"
	"github.com/alanyoungcy/spreadarb/internal/recorder"
)

// FeedStatus describes one venue's websocket feed.
type FeedStatus struct {
	Venue     domain.Venue `json:"venue"`
	Connected bool         `json:"connected"`
	Quotes    int64        `json:"quotes"`
	Dropped   int64        `json:"dropped"`
}

// Snapshot is the body of GET /api/status.
type Snapshot struct {
	Engine   engine.Status      `json:"engine"`
	Gate     executor.GateStats `json:"gate"`
	Recorder recorder.Stats     `json:"recorder"`
	Feeds    []FeedStatus       `json:"feeds"`
}

// StatusHandler serves the live engine state.
type StatusHandler struct {
	snapshot func() Snapshot
}

// NewStatusHandler creates a StatusHandler backed by snapshot.
func NewStatusHandler(snapshot func() Snapshot) *StatusHandler {
	return &StatusHandler{snapshot: snapshot}
}

// GetStatus handles GET /api/status.
func (h *StatusHandler) GetStatus(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.snapshot())
}
