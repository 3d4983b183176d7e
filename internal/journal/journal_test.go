// Inkwell - Real-Time Collaborative Document Server
// Copyright 2026 Inkwell Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/inkwell-hq/inkwell

package journal

import (
	"errors"
	"io"
	"testing"
	"time"

	"github.com/inkwell-hq/inkwell/internal/collab"
	"github.com/inkwell-hq/inkwell/internal/logging"
)

func init() {
	logging.Init(logging.Config{Level: "disabled", Output: io.Discard})
}

func testStore(t *testing.T) *Store {
	t.Helper()
	s, err := OpenInMemory()
	if err != nil {
		t.Fatalf("open in-memory journal: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func committedOp(version int, text string) collab.CommittedOperation {
	return collab.CommittedOperation{
		Operation: collab.Operation{
			Kind:     collab.OpInsert,
			Position: 0,
			Text:     text,
		},
		Version:     version,
		ClientID:    "client-1",
		CommittedAt: time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC),
	}
}

func TestAppendAndReplayInCommitOrder(t *testing.T) {
	s := testStore(t)

	for i := 1; i <= 5; i++ {
		if err := s.Append("room-1", "main.txt", committedOp(i, "x")); err != nil {
			t.Fatalf("Append v%d: %v", i, err)
		}
	}

	var versions []int
	err := s.Replay(func(roomID, documentID string, op collab.CommittedOperation) error {
		if roomID != "room-1" || documentID != "main.txt" {
			t.Errorf("replayed (%q, %q)", roomID, documentID)
		}
		versions = append(versions, op.Version)
		return nil
	})
	if err != nil {
		t.Fatalf("Replay: %v", err)
	}

	if len(versions) != 5 {
		t.Fatalf("replayed %d entries, want 5", len(versions))
	}
	for i, v := range versions {
		if v != i+1 {
			t.Errorf("versions[%d] = %d, want %d", i, v, i+1)
		}
	}
}

func TestReplayKeepsDocumentsSeparate(t *testing.T) {
	s := testStore(t)

	if err := s.Append("room-1", "a.txt", committedOp(1, "a")); err != nil {
		t.Fatal(err)
	}
	if err := s.Append("room-2", "b.txt", committedOp(1, "b")); err != nil {
		t.Fatal(err)
	}

	seen := map[string]int{}
	err := s.Replay(func(roomID, documentID string, op collab.CommittedOperation) error {
		seen[roomID+"/"+documentID]++
		return nil
	})
	if err != nil {
		t.Fatalf("Replay: %v", err)
	}
	if seen["room-1/a.txt"] != 1 || seen["room-2/b.txt"] != 1 {
		t.Errorf("replay distribution = %v", seen)
	}
}

func TestKeysDistinguishIDsContainingNUL(t *testing.T) {
	// ("a\x00b", "c") and ("a", "b\x00c") concatenate to the same bytes
	// under a separator-joined key; length-prefixed segments must keep
	// them apart even at the same version.
	s := testStore(t)

	if err := s.Append("a\x00b", "c", committedOp(1, "first")); err != nil {
		t.Fatal(err)
	}
	if err := s.Append("a", "b\x00c", committedOp(1, "second")); err != nil {
		t.Fatal(err)
	}

	seen := map[string]string{}
	err := s.Replay(func(roomID, documentID string, op collab.CommittedOperation) error {
		seen[roomID+"|"+documentID] = op.Text
		return nil
	})
	if err != nil {
		t.Fatalf("Replay: %v", err)
	}
	if len(seen) != 2 {
		t.Fatalf("replayed %d distinct documents, want 2: %v", len(seen), seen)
	}
	if seen["a\x00b|c"] != "first" || seen["a|b\x00c"] != "second" {
		t.Errorf("entries overwrote each other: %v", seen)
	}
}

func TestReplayPreservesOperationFields(t *testing.T) {
	s := testStore(t)

	want := collab.CommittedOperation{
		Operation: collab.Operation{
			Kind:        collab.OpReplace,
			Position:    3,
			Length:      2,
			Text:        "héllo",
			BaseVersion: 6,
		},
		Version:     7,
		ClientID:    "client-9",
		CommittedAt: time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC),
	}
	if err := s.Append("room-1", "doc", want); err != nil {
		t.Fatal(err)
	}

	var got collab.CommittedOperation
	err := s.Replay(func(_, _ string, op collab.CommittedOperation) error {
		got = op
		return nil
	})
	if err != nil {
		t.Fatalf("Replay: %v", err)
	}
	if got.Kind != want.Kind || got.Position != want.Position ||
		got.Length != want.Length || got.Text != want.Text ||
		got.Version != want.Version || got.ClientID != want.ClientID ||
		!got.CommittedAt.Equal(want.CommittedAt) {
		t.Errorf("replayed op = %+v, want %+v", got, want)
	}
}

func TestReplayCallbackErrorAborts(t *testing.T) {
	s := testStore(t)
	for i := 1; i <= 3; i++ {
		if err := s.Append("room-1", "doc", committedOp(i, "x")); err != nil {
			t.Fatal(err)
		}
	}

	sentinel := errors.New("stop")
	calls := 0
	err := s.Replay(func(_, _ string, _ collab.CommittedOperation) error {
		calls++
		return sentinel
	})
	if !errors.Is(err, sentinel) {
		t.Errorf("Replay error = %v, want sentinel", err)
	}
	if calls != 1 {
		t.Errorf("callback called %d times, want 1", calls)
	}
}

func TestEmptyJournalReplaysNothing(t *testing.T) {
	s := testStore(t)
	err := s.Replay(func(_, _ string, _ collab.CommittedOperation) error {
		t.Error("callback invoked on empty journal")
		return nil
	})
	if err != nil {
		t.Fatalf("Replay: %v", err)
	}
}
