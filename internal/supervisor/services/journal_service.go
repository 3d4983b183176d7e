// Inkwell - Real-Time Collaborative Document Server
// Copyright 2026 Inkwell Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/inkwell-hq/inkwell

package services

import (
	"context"
	"time"
)

// GarbageCollector matches the journal store's value-log GC loop.
type GarbageCollector interface {
	RunGC(ctx context.Context, interval time.Duration)
}

// JournalGCService runs the journal's value-log garbage collection under
// supervision. It only exists when the durable journal is enabled.
type JournalGCService struct {
	gc       GarbageCollector
	interval time.Duration
}

// NewJournalGCService wraps the journal GC loop for supervision.
func NewJournalGCService(gc GarbageCollector, interval time.Duration) *JournalGCService {
	if interval <= 0 {
		interval = 10 * time.Minute
	}
	return &JournalGCService{gc: gc, interval: interval}
}

// Serve implements suture.Service. RunGC blocks until the context ends.
func (j *JournalGCService) Serve(ctx context.Context) error {
	j.gc.RunGC(ctx, j.interval)
	return ctx.Err()
}

// String identifies the service in suture's logs.
func (j *JournalGCService) String() string {
	return "journal-gc"
}
