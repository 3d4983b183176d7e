// Inkwell - Real-Time Collaborative Document Server
// Copyright 2026 Inkwell Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/inkwell-hq/inkwell

package collab

import (
	"io"
	"testing"
	"time"

	"github.com/inkwell-hq/inkwell/internal/logging"
)

func init() {
	logging.Init(logging.Config{Level: "disabled", Output: io.Discard})
}

func testTime() time.Time {
	return time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC)
}

func TestDocumentVersionCounting(t *testing.T) {
	doc := NewDocument("d", 100)
	if doc.Version() != 0 {
		t.Fatalf("new document version = %d, want 0", doc.Version())
	}

	for i := 1; i <= 5; i++ {
		co := doc.Apply(Operation{Kind: OpInsert, Position: 0, Text: "x", BaseVersion: i - 1}, "c", testTime())
		if co.Version != i {
			t.Errorf("commit %d assigned version %d", i, co.Version)
		}
	}
	if doc.Version() != 5 {
		t.Errorf("version = %d, want 5", doc.Version())
	}
}

func TestDocumentLogReplayReproducesContent(t *testing.T) {
	doc := NewDocument("d", 100)
	ops := []Operation{
		{Kind: OpInsert, Position: 0, Text: "hello world", BaseVersion: 0},
		{Kind: OpReplace, Position: 0, Length: 5, Text: "goodbye", BaseVersion: 1},
		{Kind: OpDelete, Position: 7, Length: 6, BaseVersion: 2},
		{Kind: OpInsert, Position: 7, Text: "!", BaseVersion: 3},
	}
	for _, op := range ops {
		doc.Apply(op, "c", testTime())
	}

	if doc.Content() != "goodbye!" {
		t.Fatalf("content = %q, want %q", doc.Content(), "goodbye!")
	}
	if got := doc.Replay(""); got != doc.Content() {
		t.Errorf("log replay = %q, canonical content = %q", got, doc.Content())
	}
}

func TestDocumentFutureBaseVersionTreatedAsCurrent(t *testing.T) {
	doc := NewDocument("d", 100)
	doc.Apply(Operation{Kind: OpInsert, Position: 0, Text: "abc", BaseVersion: 0}, "c", testTime())

	co := doc.Apply(Operation{Kind: OpInsert, Position: 3, Text: "d", BaseVersion: 99}, "c", testTime())
	if co.Version != 2 {
		t.Errorf("version = %d, want 2", co.Version)
	}
	if doc.Content() != "abcd" {
		t.Errorf("content = %q, want %q", doc.Content(), "abcd")
	}
}

func TestDocumentLogTruncation(t *testing.T) {
	doc := NewDocument("d", 3)
	for i := 0; i < 10; i++ {
		doc.Apply(Operation{Kind: OpInsert, Position: i, Text: "x", BaseVersion: i}, "c", testTime())
	}

	if doc.Version() != 10 {
		t.Fatalf("version = %d, want 10", doc.Version())
	}
	if len(doc.log) != 3 {
		t.Errorf("retained log = %d entries, want 3", len(doc.log))
	}
	if doc.firstVersion != 7 {
		t.Errorf("firstVersion = %d, want 7", doc.firstVersion)
	}

	// An edit whose base predates the retained log still commits; it rebases
	// against the retained suffix and clamping covers the rest.
	co := doc.Apply(Operation{Kind: OpInsert, Position: 0, Text: "y", BaseVersion: 2}, "c", testTime())
	if co.Version != 11 {
		t.Errorf("degraded commit version = %d, want 11", co.Version)
	}
}

func TestDocumentRestoreRequiresSequentialVersions(t *testing.T) {
	doc := NewDocument("d", 100)

	ok := CommittedOperation{
		Operation: Operation{Kind: OpInsert, Position: 0, Text: "a"},
		Version:   1,
		ClientID:  "c",
	}
	if err := doc.Restore(ok); err != nil {
		t.Fatalf("Restore(v1) error: %v", err)
	}
	if doc.Content() != "a" || doc.Version() != 1 {
		t.Fatalf("after restore: content %q version %d", doc.Content(), doc.Version())
	}

	gap := ok
	gap.Version = 3
	if err := doc.Restore(gap); err == nil {
		t.Error("Restore with version gap succeeded, want error")
	}
}
