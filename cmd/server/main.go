// Inkwell - Real-Time Collaborative Document Server
// Copyright 2026 Inkwell Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/inkwell-hq/inkwell

// Package main is the entry point for the Inkwell server.
//
// Inkwell is a real-time collaboration server: clients connect over a
// websocket, join rooms, and edit shared documents concurrently. The server
// is the single authority over document state; concurrent edits are rebased
// with operational transform and committed in a total version order.
//
// # Application Architecture
//
// The server initializes components in the following order:
//
//  1. Configuration: layered load via Koanf v2 (defaults, file, environment)
//  2. Journal (optional): BadgerDB operation log, replayed before serving
//  3. Engine: connection registry, room directory, dispatch loop
//  4. HTTP server: chi router with the websocket upgrade endpoint,
//     health probes, room introspection, and Prometheus metrics
//  5. Supervisor tree: suture-managed lifecycle for all of the above
//
// # Configuration
//
// Configuration is loaded with layered sources (highest priority wins):
//   - Environment variables (HTTP_PORT, JOURNAL_ENABLED, LOG_LEVEL, ...)
//   - Config file (config.yaml, or CONFIG_PATH)
//   - Built-in defaults
//
// # Signal Handling
//
// The server shuts down gracefully on SIGINT and SIGTERM: the HTTP server
// stops accepting connections, in-flight requests get a bounded drain
// window, and the journal is closed last so every acknowledged operation
// is on disk.
package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/inkwell-hq/inkwell/internal/api"
	"github.com/inkwell-hq/inkwell/internal/collab"
	"github.com/inkwell-hq/inkwell/internal/config"
	"github.com/inkwell-hq/inkwell/internal/journal"
	"github.com/inkwell-hq/inkwell/internal/logging"
	"github.com/inkwell-hq/inkwell/internal/supervisor"
	"github.com/inkwell-hq/inkwell/internal/supervisor/services"
	ws "github.com/inkwell-hq/inkwell/internal/websocket"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		logging.Fatal().Err(err).Msg("Failed to load configuration")
	}

	logging.Init(logging.Config{
		Level:  cfg.Logging.Level,
		Format: cfg.Logging.Format,
		Caller: cfg.Logging.Caller,
	})

	logging.Info().
		Str("addr", fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)).
		Bool("journal_enabled", cfg.Journal.Enabled).
		Msg("Starting Inkwell")

	// Optional durable journal. Opened before the engine so replay can
	// rebuild document state ahead of the first connection.
	var store *journal.Store
	if cfg.Journal.Enabled {
		store, err = journal.Open(cfg.Journal.Path)
		if err != nil {
			logging.Fatal().Err(err).Str("path", cfg.Journal.Path).Msg("Failed to open journal")
		}
		defer func() {
			if err := store.Close(); err != nil {
				logging.Error().Err(err).Msg("Error closing journal")
			}
		}()
	}

	engine := collab.NewEngine(collab.Options{
		ChatHistoryLimit: cfg.Collab.ChatHistoryLimit,
		RoomGracePeriod:  cfg.Collab.RoomGracePeriod,
		MaxLogEntries:    cfg.Collab.MaxLogEntries,
		SendBuffer:       cfg.Collab.SendBuffer,
	}, journalOrNil(store))

	if store != nil {
		if err := store.Replay(engine.RestoreOperation); err != nil {
			logging.Fatal().Err(err).Msg("Journal replay failed")
		}
	}

	wsHandler := ws.NewHandler(engine, ws.HandlerConfig{
		AllowedOrigins:  cfg.Security.AllowedOrigins,
		MaxMessageBytes: cfg.Collab.MaxMessageBytes,
		MessageRate:     cfg.Collab.MessageRate,
		MessageBurst:    cfg.Collab.MessageBurst,
	})

	handler := api.NewHandler(engine, wsHandler, cfg.Journal.Enabled)
	server := &http.Server{
		Addr:              fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port),
		Handler:           api.NewRouter(handler, cfg.Security),
		ReadHeaderTimeout: cfg.Server.Timeout,
	}

	// Supervision tree: journal maintenance in the data layer, the HTTP
	// server (which carries all websocket sessions) in the API layer.
	tree := supervisor.NewTree(logging.NewSlogLogger(), supervisor.DefaultTreeConfig())
	if store != nil {
		tree.AddDataService(services.NewJournalGCService(store, cfg.Journal.GCInterval))
	}
	tree.AddAPIService(services.NewHTTPServerService(server, 10*time.Second))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-sigCh
		logging.Info().Str("signal", sig.String()).Msg("Received shutdown signal")
		cancel()
	}()

	logging.Info().Msg("Starting supervisor tree")
	errCh := tree.ServeBackground(ctx)

	select {
	case <-ctx.Done():
		logging.Info().Msg("Context canceled, waiting for supervisor to finish")
	case err := <-errCh:
		if err != nil && !errors.Is(err, context.Canceled) {
			logging.Error().Err(err).Msg("Supervisor tree error")
		}
	}

	for err := range errCh {
		if err != nil && !errors.Is(err, context.Canceled) {
			logging.Error().Err(err).Msg("Supervisor shutdown error")
		}
	}

	unstopped, _ := tree.UnstoppedServiceReport()
	for _, svc := range unstopped {
		logging.Warn().Str("service", svc.Name).Msg("Service failed to stop within timeout")
	}

	logging.Info().Msg("Server stopped gracefully")
}

// journalOrNil avoids handing the engine a typed-nil interface when the
// journal is disabled.
func journalOrNil(store *journal.Store) collab.Journal {
	if store == nil {
		return nil
	}
	return store
}
