// Inkwell - Real-Time Collaborative Document Server
// Copyright 2026 Inkwell Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/inkwell-hq/inkwell

package websocket

import (
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/gorilla/websocket"

	"github.com/inkwell-hq/inkwell/internal/collab"
	"github.com/inkwell-hq/inkwell/internal/logging"
)

// HandlerConfig carries the transport limits from server configuration.
type HandlerConfig struct {
	AllowedOrigins  []string
	MaxMessageBytes int64
	MessageRate     float64
	MessageBurst    int
}

// Handler upgrades HTTP requests to websocket sessions against the engine.
type Handler struct {
	engine   *collab.Engine
	cfg      HandlerConfig
	upgrader websocket.Upgrader
}

// NewHandler creates the websocket endpoint handler.
func NewHandler(engine *collab.Engine, cfg HandlerConfig) *Handler {
	h := &Handler{engine: engine, cfg: cfg}
	h.upgrader = websocket.Upgrader{
		ReadBufferSize:   1024,
		WriteBufferSize:  1024,
		CheckOrigin:      h.checkOrigin,
		HandshakeTimeout: 10 * time.Second,
	}
	return h
}

// ServeHTTP upgrades the request and starts the session pumps.
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		// Upgrade already wrote the HTTP error response.
		logging.Warn().Err(err).Str("remote", r.RemoteAddr).Msg("websocket upgrade failed")
		return
	}

	session := NewSession(h.engine, conn, h.cfg.MessageRate, h.cfg.MessageBurst, h.cfg.MaxMessageBytes)
	session.Start()
}

// checkOrigin validates the Origin header against the configured allowlist.
// Browserless clients send no Origin and are accepted; "*" allows any.
func (h *Handler) checkOrigin(r *http.Request) bool {
	origin := r.Header.Get("Origin")
	if origin == "" {
		return true
	}

	u, err := url.Parse(origin)
	if err != nil {
		return false
	}

	for _, allowed := range h.cfg.AllowedOrigins {
		if allowed == "*" {
			return true
		}
		if strings.EqualFold(allowed, origin) || strings.EqualFold(allowed, u.Host) {
			return true
		}
	}

	// Same-host requests are always fine.
	return strings.EqualFold(u.Host, r.Host)
}
