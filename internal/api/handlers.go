// Inkwell - Real-Time Collaborative Document Server
// Copyright 2026 Inkwell Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/inkwell-hq/inkwell

// Package api exposes the HTTP surface: health probes, room introspection,
// the Prometheus scrape endpoint, and the websocket upgrade route. All
// collaboration traffic itself flows over the websocket; these endpoints
// exist for operators and monitoring.
package api

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/inkwell-hq/inkwell/internal/collab"
)

// Handler holds the dependencies for all HTTP endpoints.
type Handler struct {
	engine         *collab.Engine
	ws             http.Handler
	journalEnabled bool
	startedAt      time.Time
}

// NewHandler creates the API handler. ws serves the websocket upgrade.
func NewHandler(engine *collab.Engine, ws http.Handler, journalEnabled bool) *Handler {
	return &Handler{
		engine:         engine,
		ws:             ws,
		journalEnabled: journalEnabled,
		startedAt:      time.Now().UTC(),
	}
}

// HealthLive reports process liveness. It answers as long as the process
// can serve HTTP at all.
func (h *Handler) HealthLive(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, r, http.StatusOK, map[string]string{"status": "alive"})
}

// HealthReady reports readiness to accept collaboration traffic.
func (h *Handler) HealthReady(w http.ResponseWriter, r *http.Request) {
	if h.engine == nil {
		respondError(w, r, http.StatusServiceUnavailable, "NOT_READY", "engine not initialized", nil)
		return
	}
	respondJSON(w, r, http.StatusOK, map[string]any{
		"status":  "ready",
		"uptime":  time.Since(h.startedAt).Round(time.Second).String(),
		"journal": h.journalEnabled,
	})
}

// Stats returns live counters for dashboards.
func (h *Handler) Stats(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, r, http.StatusOK, map[string]any{
		"connections": h.engine.Registry().Count(),
		"rooms":       h.engine.Directory().Count(),
		"uptime":      time.Since(h.startedAt).Round(time.Second).String(),
	})
}

// Rooms lists every live room with member and document counts.
func (h *Handler) Rooms(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, r, http.StatusOK, h.engine.Rooms())
}

// Room returns the full snapshot of one room.
func (h *Handler) Room(w http.ResponseWriter, r *http.Request) {
	roomID := chi.URLParam(r, "roomID")
	snap, ok := h.engine.RoomDetail(roomID)
	if !ok {
		respondError(w, r, http.StatusNotFound, "ROOM_NOT_FOUND", "no such room", nil)
		return
	}
	respondJSON(w, r, http.StatusOK, snap)
}

// WebSocket hands the request to the websocket transport for upgrade.
func (h *Handler) WebSocket(w http.ResponseWriter, r *http.Request) {
	h.ws.ServeHTTP(w, r)
}
