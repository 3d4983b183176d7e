// Inkwell - Real-Time Collaborative Document Server
// Copyright 2026 Inkwell Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/inkwell-hq/inkwell

package collab

import (
	"testing"
	"time"
)

func TestDirectoryLazyCreation(t *testing.T) {
	d := NewDirectory(time.Minute, 100, 1000)

	if _, ok := d.Get("room-1"); ok {
		t.Fatal("Get created a room")
	}

	room := d.getOrCreate("room-1")
	if room.ID != "room-1" {
		t.Errorf("room ID = %q", room.ID)
	}
	if again := d.getOrCreate("room-1"); again != room {
		t.Error("getOrCreate returned a different room for the same ID")
	}
	if d.Count() != 1 {
		t.Errorf("count = %d, want 1", d.Count())
	}
}

func TestDirectoryEvictsEmptyRoomAfterGrace(t *testing.T) {
	d := NewDirectory(10*time.Millisecond, 100, 1000)
	room := d.getOrCreate("room-1")

	d.ScheduleCleanup(room)

	deadline := time.Now().Add(time.Second)
	for d.Count() != 0 {
		if time.Now().After(deadline) {
			t.Fatal("room not evicted after grace period")
		}
		time.Sleep(2 * time.Millisecond)
	}
}

func TestDirectoryCleanupSkipsRepopulatedRoom(t *testing.T) {
	d := NewDirectory(10*time.Millisecond, 100, 1000)
	room := d.getOrCreate("room-1")
	d.ScheduleCleanup(room)

	// A member arrives before the timer fires; eviction re-tests emptiness.
	room.lock()
	room.addMember("client-1", time.Now().UTC())
	room.unlock()

	time.Sleep(40 * time.Millisecond)
	if _, ok := d.Get("room-1"); !ok {
		t.Error("repopulated room was evicted")
	}
}

func TestDirectoryGetOrCreateCancelsPendingCleanup(t *testing.T) {
	d := NewDirectory(15*time.Millisecond, 100, 1000)
	room := d.getOrCreate("room-1")
	d.ScheduleCleanup(room)

	d.getOrCreate("room-1") // rejoin path cancels the timer

	time.Sleep(50 * time.Millisecond)
	if _, ok := d.Get("room-1"); !ok {
		t.Error("room evicted despite cancelled cleanup")
	}
}

func TestDirectoryEvictionLosesToConcurrentJoin(t *testing.T) {
	// A grace timer can fire concurrently with a rejoin: AfterFunc has
	// already dispatched the eviction body when getOrCreate stops the
	// timer. The cancellation mark (cleanup == nil) must make the fired
	// body a no-op, or the joiner ends up inside a deleted room.
	d := NewDirectory(time.Minute, 100, 1000)
	room := d.getOrCreate("room-1")
	d.ScheduleCleanup(room)

	rejoined := d.getOrCreate("room-1") // join wins the race, cancels cleanup
	d.evictIfEmpty("room-1")            // fired timer body runs anyway

	rejoined.lock()
	rejoined.addMember("client-1", time.Now().UTC())
	rejoined.unlock()

	got, ok := d.Get("room-1")
	if !ok {
		t.Fatal("room evicted while a join was mid-flight")
	}
	if got != rejoined {
		t.Error("directory holds a different room than the joiner's")
	}
}

func TestDirectoryList(t *testing.T) {
	d := NewDirectory(time.Minute, 100, 1000)
	d.getOrCreate("zebra")
	d.getOrCreate("alpha")

	got := d.List()
	if len(got) != 2 || got[0] != "alpha" || got[1] != "zebra" {
		t.Errorf("List() = %v", got)
	}
}
