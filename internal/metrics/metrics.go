// Inkwell - Real-Time Collaborative Document Server
// Copyright 2026 Inkwell Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/inkwell-hq/inkwell

// Package metrics exposes Prometheus instrumentation for the collaboration
// engine and its HTTP surface. Collectors are package-level and registered
// via promauto at init.
package metrics

import (
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// Connection metrics
	ConnectionsActive = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "collab_connections_active",
			Help: "Current number of registered client connections",
		},
	)

	ConnectionsTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "collab_connections_total",
			Help: "Total number of client connections accepted",
		},
	)

	SendsDropped = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "collab_sends_dropped_total",
			Help: "Outbound messages dropped because the client channel was full or closed",
		},
		[]string{"kind"},
	)

	// Room metrics
	RoomsActive = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "collab_rooms_active",
			Help: "Current number of live rooms",
		},
	)

	RoomsCreated = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "collab_rooms_created_total",
			Help: "Total number of rooms created",
		},
	)

	RoomsEvicted = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "collab_rooms_evicted_total",
			Help: "Total number of empty rooms garbage-collected after the grace period",
		},
	)

	// Document metrics
	DocumentsActive = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "collab_documents_active",
			Help: "Current number of documents across all rooms",
		},
	)

	OperationsCommitted = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "collab_operations_committed_total",
			Help: "Total number of document operations committed",
		},
		[]string{"kind"},
	)

	OperationsRebased = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "collab_operations_rebased_total",
			Help: "Operations transformed against at least one concurrent committed operation",
		},
	)

	OperationsClamped = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "collab_operations_clamped_total",
			Help: "Operations whose offsets were clamped to document bounds during apply",
		},
	)

	OperationsDegraded = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "collab_operations_degraded_total",
			Help: "Operations whose base version predates the truncated log horizon",
		},
	)

	TransformDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "collab_transform_duration_seconds",
			Help:    "Time spent rebasing and applying a document operation",
			Buckets: []float64{0.00001, 0.0001, 0.001, 0.01, 0.1, 1},
		},
	)

	// Relay metrics
	RelayFanout = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "collab_relay_fanout_total",
			Help: "Messages relayed to room peers by kind (cursor, chat, voice, file)",
		},
		[]string{"kind"},
	)

	ChatMessages = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "collab_chat_messages_total",
			Help: "Chat messages appended to room history",
		},
	)

	// Dispatch metrics
	ProtocolErrors = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "collab_protocol_errors_total",
			Help: "Protocol errors reported to clients (malformed or rate-limited messages)",
		},
		[]string{"reason"},
	)

	StaleReferences = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "collab_stale_references_total",
			Help: "Messages silently dropped because the referenced room was gone or unjoined",
		},
		[]string{"kind"},
	)

	// Journal metrics
	JournalAppends = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "collab_journal_appends_total",
			Help: "Operations appended to the durable journal",
		},
	)

	JournalErrors = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "collab_journal_errors_total",
			Help: "Journal append or replay failures",
		},
	)

	// API metrics
	APIRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "api_requests_total",
			Help: "Total number of API requests",
		},
		[]string{"method", "endpoint", "status_code"},
	)

	APIRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "api_request_duration_seconds",
			Help:    "API request duration in seconds",
			Buckets: []float64{0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10},
		},
		[]string{"method", "endpoint"},
	)
)

// RecordAPIRequest records one completed HTTP request.
func RecordAPIRequest(method, endpoint string, statusCode int, duration time.Duration) {
	APIRequestsTotal.WithLabelValues(method, endpoint, strconv.Itoa(statusCode)).Inc()
	APIRequestDuration.WithLabelValues(method, endpoint).Observe(duration.Seconds())
}
