// Inkwell - Real-Time Collaborative Document Server
// Copyright 2026 Inkwell Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/inkwell-hq/inkwell

package collab

import (
	"sort"
	"sync"
	"time"

	"github.com/inkwell-hq/inkwell/internal/metrics"
)

// Room is an isolated collaboration namespace: a member set, a document
// table, and a bounded chat history. Rooms are created lazily on first join
// and garbage-collected after a grace period with no members.
//
// The room mutex covers all mutation: no two messages touching the same
// room interleave their read-modify-write. Locks never nest across rooms.
type Room struct {
	ID string

	mu        sync.Mutex
	members   map[string]struct{}
	documents map[string]*Document
	chat      []ChatEntry

	chatLimit int
	maxLog    int

	createdAt    time.Time
	lastActivity time.Time

	// cleanup is the pending grace timer while the room is empty; nil
	// otherwise. Guarded by the directory lock, not the room lock.
	cleanup *time.Timer
}

// newRoom creates an empty room.
func newRoom(id string, chatLimit, maxLog int, now time.Time) *Room {
	return &Room{
		ID:           id,
		members:      make(map[string]struct{}),
		documents:    make(map[string]*Document),
		chatLimit:    chatLimit,
		maxLog:       maxLog,
		createdAt:    now,
		lastActivity: now,
	}
}

// lock acquires the room for one inbound message's mutation.
func (r *Room) lock() { r.mu.Lock() }

// unlock releases the room.
func (r *Room) unlock() { r.mu.Unlock() }

// addMember adds a client to the member set. Idempotent: a duplicate join
// leaves the set unchanged. Caller holds the room lock.
func (r *Room) addMember(clientID string, now time.Time) {
	r.members[clientID] = struct{}{}
	r.lastActivity = now
}

// removeMember removes a client. Returns true if the member set is now
// empty. Caller holds the room lock.
func (r *Room) removeMember(clientID string, now time.Time) bool {
	delete(r.members, clientID)
	r.lastActivity = now
	return len(r.members) == 0
}

// hasMember reports membership. Caller holds the room lock.
func (r *Room) hasMember(clientID string) bool {
	_, ok := r.members[clientID]
	return ok
}

// memberIDs returns the member set in sorted order for deterministic
// broadcast iteration. Caller holds the room lock.
func (r *Room) memberIDs() []string {
	ids := make([]string, 0, len(r.members))
	for id := range r.members {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// document returns the named document, creating it lazily on first edit.
// Caller holds the room lock.
func (r *Room) document(id string) *Document {
	doc, ok := r.documents[id]
	if !ok {
		doc = NewDocument(id, r.maxLog)
		r.documents[id] = doc
		metrics.DocumentsActive.Inc()
	}
	return doc
}

// appendChat appends a chat entry, evicting the oldest once the history cap
// is reached. Caller holds the room lock.
func (r *Room) appendChat(entry ChatEntry) {
	r.chat = append(r.chat, entry)
	if len(r.chat) > r.chatLimit {
		// FIFO eviction; the cap overflows by at most one entry per post.
		r.chat = append(r.chat[:0], r.chat[1:]...)
	}
	r.lastActivity = entry.SentAt
}

// snapshot builds the state a new joiner receives. The lookup resolves each
// member's identity and last-known cursor from the registry. Caller holds
// the room lock.
func (r *Room) snapshot(lookup func(clientID string) (identity string, cursor Cursor)) RoomSnapshot {
	snap := RoomSnapshot{
		RoomID:    r.ID,
		Members:   make([]MemberInfo, 0, len(r.members)),
		Documents: make([]DocumentSnapshot, 0, len(r.documents)),
		Chat:      append([]ChatEntry(nil), r.chat...),
	}

	for _, id := range r.memberIDs() {
		identity, cursor := lookup(id)
		snap.Members = append(snap.Members, MemberInfo{
			ClientID: id,
			Identity: identity,
			Cursor:   cursor,
		})
	}

	docIDs := make([]string, 0, len(r.documents))
	for id := range r.documents {
		docIDs = append(docIDs, id)
	}
	sort.Strings(docIDs)
	for _, id := range docIDs {
		snap.Documents = append(snap.Documents, r.documents[id].Snapshot())
	}

	return snap
}
