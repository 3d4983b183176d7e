// Inkwell - Real-Time Collaborative Document Server
// Copyright 2026 Inkwell Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/inkwell-hq/inkwell

package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/go-chi/httprate"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/inkwell-hq/inkwell/internal/config"
	"github.com/inkwell-hq/inkwell/internal/middleware"
)

// NewRouter wires all HTTP routes. The websocket route sits outside the
// HTTP rate limiter: a collaboration session is one long-lived request, and
// its traffic is limited per-message inside the transport instead.
func NewRouter(h *Handler, cfg config.SecurityConfig) http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(chimiddleware.RealIP)
	r.Use(chimiddleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: cfg.AllowedOrigins,
		AllowedMethods: []string{http.MethodGet, http.MethodOptions},
		AllowedHeaders: []string{"Accept", "Content-Type", "X-Request-ID"},
		MaxAge:         300,
	}))

	r.Route("/api/v1/health", func(r chi.Router) {
		r.Get("/live", h.HealthLive)
		r.Get("/ready", h.HealthReady)
	})

	r.Route("/api/v1", func(r chi.Router) {
		r.Use(httprate.LimitByIP(cfg.RateLimitReqs, cfg.RateLimitWindow))
		r.Use(middleware.PrometheusMetrics)

		r.Get("/stats", h.Stats)
		r.Get("/rooms", h.Rooms)
		r.Get("/rooms/{roomID}", h.Room)
	})

	r.Get("/ws", h.WebSocket)
	r.Handle("/metrics", promhttp.Handler())

	return r
}
