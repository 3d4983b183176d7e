// Inkwell - Real-Time Collaborative Document Server
// Copyright 2026 Inkwell Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/inkwell-hq/inkwell

package collab

import (
	"sort"
	"sync"
	"time"

	"github.com/inkwell-hq/inkwell/internal/logging"
	"github.com/inkwell-hq/inkwell/internal/metrics"
)

// Directory is the single authority over the room map. Rooms are created
// lazily on first join and deleted once empty for longer than the grace
// period; a rejoin inside the window cancels the pending cleanup.
type Directory struct {
	mu    sync.RWMutex
	rooms map[string]*Room

	grace     time.Duration
	chatLimit int
	maxLog    int
}

// NewDirectory creates an empty room directory.
func NewDirectory(grace time.Duration, chatLimit, maxLog int) *Directory {
	return &Directory{
		rooms:     make(map[string]*Room),
		grace:     grace,
		chatLimit: chatLimit,
		maxLog:    maxLog,
	}
}

// getOrCreate returns the room, creating it on first reference. Any pending
// cleanup timer is cancelled: the room is live again.
func (d *Directory) getOrCreate(roomID string) *Room {
	d.mu.Lock()
	defer d.mu.Unlock()

	room, ok := d.rooms[roomID]
	if !ok {
		room = newRoom(roomID, d.chatLimit, d.maxLog, time.Now().UTC())
		d.rooms[roomID] = room
		metrics.RoomsActive.Inc()
		metrics.RoomsCreated.Inc()
		logging.Info().Str("room", roomID).Msg("room created")
	}
	if room.cleanup != nil {
		room.cleanup.Stop()
		room.cleanup = nil
	}
	return room
}

// Get returns the room if it exists. A miss is an expected race with
// cleanup, not an error.
func (d *Directory) Get(roomID string) (*Room, bool) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	room, ok := d.rooms[roomID]
	return room, ok
}

// ScheduleCleanup starts the grace timer for an empty room. Emptiness is
// re-tested when the timer fires, so a join that lands in between wins.
func (d *Directory) ScheduleCleanup(room *Room) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if room.cleanup != nil {
		room.cleanup.Stop()
	}
	room.cleanup = time.AfterFunc(d.grace, func() {
		d.evictIfEmpty(room.ID)
	})
}

// evictIfEmpty removes the room if it is still present and still empty.
func (d *Directory) evictIfEmpty(roomID string) {
	d.mu.Lock()
	defer d.mu.Unlock()

	room, ok := d.rooms[roomID]
	if !ok {
		return
	}
	// A nil cleanup means a join cancelled the timer after it already
	// fired; the room is live again and the member add may still be
	// mid-flight.
	if room.cleanup == nil {
		return
	}

	room.lock()
	empty := len(room.members) == 0
	docs := len(room.documents)
	room.unlock()

	if !empty {
		room.cleanup = nil
		return
	}

	delete(d.rooms, roomID)
	metrics.RoomsActive.Dec()
	metrics.RoomsEvicted.Inc()
	metrics.DocumentsActive.Sub(float64(docs))
	logging.Info().Str("room", roomID).Int("documents", docs).Msg("empty room evicted after grace period")
}

// List returns the live room IDs in sorted order.
func (d *Directory) List() []string {
	d.mu.RLock()
	defer d.mu.RUnlock()

	ids := make([]string, 0, len(d.rooms))
	for id := range d.rooms {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// Count returns the number of live rooms.
func (d *Directory) Count() int {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return len(d.rooms)
}
