// Inkwell - Real-Time Collaborative Document Server
// Copyright 2026 Inkwell Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/inkwell-hq/inkwell

// Package config loads and validates the Inkwell server configuration.
//
// Configuration is layered: built-in defaults, then an optional YAML file,
// then environment variables. Later layers override earlier ones.
package config

import (
	"fmt"
	"time"

	"github.com/inkwell-hq/inkwell/internal/validation"
)

// Config is the root configuration for the server.
type Config struct {
	Server   ServerConfig   `koanf:"server"`
	Collab   CollabConfig   `koanf:"collab"`
	Journal  JournalConfig  `koanf:"journal"`
	Security SecurityConfig `koanf:"security"`
	Logging  LoggingConfig  `koanf:"logging"`
}

// ServerConfig holds HTTP listener settings.
type ServerConfig struct {
	Host    string        `koanf:"host"`
	Port    int           `koanf:"port" validate:"min=1,max=65535"`
	Timeout time.Duration `koanf:"timeout" validate:"min=1s"`
}

// CollabConfig holds collaboration engine tunables.
type CollabConfig struct {
	// ChatHistoryLimit is the number of chat messages retained per room.
	// Oldest entries are evicted first.
	ChatHistoryLimit int `koanf:"chat_history_limit" validate:"min=1"`

	// RoomGracePeriod is how long an empty room survives before garbage
	// collection. A rejoin within the window cancels cleanup.
	RoomGracePeriod time.Duration `koanf:"room_grace_period" validate:"min=1s"`

	// MaxLogEntries bounds the retained operation log per document.
	// 0 means unbounded. Edits whose base version predates the retained
	// window are rebased against the suffix and clamped.
	MaxLogEntries int `koanf:"max_log_entries" validate:"min=0"`

	// SendBuffer is the per-client outbound channel capacity. Messages to
	// a client whose buffer is full are dropped, never awaited.
	SendBuffer int `koanf:"send_buffer" validate:"min=1"`

	// MaxMessageBytes limits a single inbound WebSocket message.
	MaxMessageBytes int64 `koanf:"max_message_bytes" validate:"min=1024"`

	// MessageRate and MessageBurst bound inbound messages per connection
	// (token bucket). Over-limit messages get a protocol error notice.
	MessageRate  float64 `koanf:"message_rate" validate:"min=1"`
	MessageBurst int     `koanf:"message_burst" validate:"min=1"`
}

// JournalConfig holds the optional durable operation journal settings.
type JournalConfig struct {
	// Enabled turns on the badger-backed operation journal. When off, the
	// operation log is in-memory only and state is lost on restart.
	Enabled bool `koanf:"enabled"`

	// Path is the badger database directory.
	Path string `koanf:"path"`

	// GCInterval is how often the badger value log garbage collector runs.
	GCInterval time.Duration `koanf:"gc_interval" validate:"min=1m"`
}

// SecurityConfig holds transport-level protections.
type SecurityConfig struct {
	// AllowedOrigins restricts WebSocket upgrades by Origin header.
	// ["*"] accepts any origin.
	AllowedOrigins []string `koanf:"allowed_origins"`

	RateLimitReqs   int           `koanf:"rate_limit_reqs" validate:"min=1"`
	RateLimitWindow time.Duration `koanf:"rate_limit_window" validate:"min=1s"`
}

// LoggingConfig holds logging settings.
type LoggingConfig struct {
	Level  string `koanf:"level" validate:"oneof=trace debug info warn error fatal panic disabled"`
	Format string `koanf:"format" validate:"oneof=json console"`
	Caller bool   `koanf:"caller"`
}

// defaultConfig returns a Config with all default values applied.
func defaultConfig() *Config {
	return &Config{
		Server: ServerConfig{
			Host:    "0.0.0.0",
			Port:    4180,
			Timeout: 30 * time.Second,
		},
		Collab: CollabConfig{
			ChatHistoryLimit: 100,
			RoomGracePeriod:  30 * time.Second,
			MaxLogEntries:    10000,
			SendBuffer:       256,
			MaxMessageBytes:  512 * 1024,
			MessageRate:      50,
			MessageBurst:     100,
		},
		Journal: JournalConfig{
			Enabled:    false,
			Path:       "/data/inkwell/journal",
			GCInterval: 10 * time.Minute,
		},
		Security: SecurityConfig{
			AllowedOrigins:  []string{"*"},
			RateLimitReqs:   100,
			RateLimitWindow: time.Minute,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
			Caller: false,
		},
	}
}

// Validate checks the configuration for internal consistency.
func (c *Config) Validate() error {
	if err := validation.ValidateStruct(c); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}

	if c.Journal.Enabled && c.Journal.Path == "" {
		return fmt.Errorf("journal.path is required when the journal is enabled")
	}
	if len(c.Security.AllowedOrigins) == 0 {
		return fmt.Errorf("security.allowed_origins must not be empty; use [\"*\"] to allow any origin")
	}
	if float64(c.Collab.MessageBurst) < c.Collab.MessageRate {
		return fmt.Errorf("collab.message_burst (%d) must be >= collab.message_rate (%.0f)",
			c.Collab.MessageBurst, c.Collab.MessageRate)
	}

	return nil
}
