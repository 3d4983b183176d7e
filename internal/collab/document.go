// Inkwell - Real-Time Collaborative Document Server
// Copyright 2026 Inkwell Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/inkwell-hq/inkwell

package collab

import (
	"fmt"
	"time"

	"github.com/inkwell-hq/inkwell/internal/metrics"
)

// Document holds one document's canonical content, its version counter, and
// the append-only operation log. The log is the source of truth; content is
// the cached fold of the log. All access happens under the owning room's
// lock.
type Document struct {
	ID string

	content []rune
	version int

	// log holds committed operations from firstVersion upward. firstVersion
	// is 0 until truncation drops old entries for memory bounds.
	log          []CommittedOperation
	firstVersion int
	maxLog       int
}

// NewDocument creates an empty document at version 0.
func NewDocument(id string, maxLog int) *Document {
	return &Document{ID: id, maxLog: maxLog}
}

// Version returns the current committed version.
func (d *Document) Version() int {
	return d.version
}

// Content returns the canonical content as a string.
func (d *Document) Content() string {
	return string(d.content)
}

// Snapshot returns the document's current state for a room snapshot.
func (d *Document) Snapshot() DocumentSnapshot {
	return DocumentSnapshot{ID: d.ID, Content: d.Content(), Version: d.version}
}

// Apply rebases op against every operation committed after op.BaseVersion,
// applies it to the canonical content with offsets clamped to bounds, and
// commits it with the next version number.
func (d *Document) Apply(op Operation, clientID string, now time.Time) CommittedOperation {
	start := time.Now()

	base := op.BaseVersion
	if base > d.version {
		// A base version from the future means the client is confused;
		// treat it as current so the edit applies without rebasing.
		base = d.version
	}
	if base < d.firstVersion {
		// The log entries this edit raced against were truncated. Rebase
		// against the retained suffix; clamping covers the rest.
		metrics.OperationsDegraded.Inc()
		base = d.firstVersion
	}

	concurrent := d.log[base-d.firstVersion:]
	rebased := Rebase(op, concurrent)
	if len(concurrent) > 0 {
		metrics.OperationsRebased.Inc()
	}

	next, clamped := apply(d.content, rebased)
	if clamped {
		metrics.OperationsClamped.Inc()
	}

	committed := CommittedOperation{
		Operation:   rebased,
		Version:     d.version + 1,
		ClientID:    clientID,
		CommittedAt: now,
	}

	d.content = next
	d.version++
	d.log = append(d.log, committed)
	d.truncate()
	d.checkInvariants()

	metrics.OperationsCommitted.WithLabelValues(string(op.Kind)).Inc()
	metrics.TransformDuration.Observe(time.Since(start).Seconds())

	return committed
}

// Restore re-applies an already-committed operation during journal replay.
// No rebasing: the journal records operations post-transform, in commit
// order.
func (d *Document) Restore(co CommittedOperation) error {
	if co.Version != d.version+1 {
		return fmt.Errorf("journal gap in document %s: have version %d, got operation %d",
			d.ID, d.version, co.Version)
	}

	d.content, _ = apply(d.content, co.Operation)
	d.version = co.Version
	d.log = append(d.log, co)
	d.truncate()
	d.checkInvariants()
	return nil
}

// truncate drops the oldest log entries past the configured bound,
// advancing firstVersion so concurrent-suffix lookups stay correct.
func (d *Document) truncate() {
	if d.maxLog <= 0 || len(d.log) <= d.maxLog {
		return
	}
	drop := len(d.log) - d.maxLog
	d.log = append([]CommittedOperation(nil), d.log[drop:]...)
	d.firstVersion += drop
}

// checkInvariants panics on internal corruption. A violated version
// accounting invariant is a programming bug, not a recoverable condition.
func (d *Document) checkInvariants() {
	if d.version < 0 || d.version != d.firstVersion+len(d.log) {
		panic(fmt.Sprintf("document %s version accounting corrupted: version=%d firstVersion=%d log=%d",
			d.ID, d.version, d.firstVersion, len(d.log)))
	}
}

// Replay folds the retained log over the given prefix content. Used by
// tests to verify the log reproduces canonical content.
func (d *Document) Replay(prefix string) string {
	content := []rune(prefix)
	for i := range d.log {
		content, _ = apply(content, d.log[i].Operation)
	}
	return string(content)
}
