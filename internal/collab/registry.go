// Inkwell - Real-Time Collaborative Document Server
// Copyright 2026 Inkwell Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/inkwell-hq/inkwell

package collab

import (
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/inkwell-hq/inkwell/internal/logging"
	"github.com/inkwell-hq/inkwell/internal/metrics"
)

// Client is one live connection's record: identity, room memberships, the
// last-seen cursor, and the outbound channel the transport drains.
type Client struct {
	ID string

	send chan Outbound

	// The fields below are guarded by the registry lock.
	identity string
	rooms    map[string]struct{}
	cursor   Cursor
	lastSeen time.Time
}

// Outbound returns the channel the transport's write loop drains. The
// registry closes it on unregister.
func (c *Client) Outbound() <-chan Outbound {
	return c.send
}

// Registry tracks live client connections. Sends are best-effort and
// non-blocking: a full or closed channel drops the message. A slow client
// never stalls processing for the rest of its rooms.
type Registry struct {
	mu         sync.RWMutex
	clients    map[string]*Client
	sendBuffer int
}

// NewRegistry creates an empty connection registry.
func NewRegistry(sendBuffer int) *Registry {
	if sendBuffer <= 0 {
		sendBuffer = 256
	}
	return &Registry{
		clients:    make(map[string]*Client),
		sendBuffer: sendBuffer,
	}
}

// Register creates a client record with a fresh connection ID.
func (reg *Registry) Register() *Client {
	client := &Client{
		ID:       uuid.New().String(),
		send:     make(chan Outbound, reg.sendBuffer),
		rooms:    make(map[string]struct{}),
		lastSeen: time.Now().UTC(),
	}

	reg.mu.Lock()
	reg.clients[client.ID] = client
	total := len(reg.clients)
	reg.mu.Unlock()

	metrics.ConnectionsActive.Inc()
	metrics.ConnectionsTotal.Inc()
	logging.Info().Str("client_id", client.ID).Int("total_clients", total).Msg("client connected")
	return client
}

// Unregister removes the client, closes its outbound channel, and returns
// the rooms it had joined so the directory can notify remaining members.
func (reg *Registry) Unregister(clientID string) []string {
	reg.mu.Lock()
	client, ok := reg.clients[clientID]
	if !ok {
		reg.mu.Unlock()
		return nil
	}
	delete(reg.clients, clientID)
	rooms := make([]string, 0, len(client.rooms))
	for id := range client.rooms {
		rooms = append(rooms, id)
	}
	// Closing under the write lock: Send holds the read lock for the whole
	// channel push, so no send can race the close.
	close(client.send)
	total := len(reg.clients)
	reg.mu.Unlock()

	metrics.ConnectionsActive.Dec()
	logging.Info().Str("client_id", clientID).Int("total_clients", total).Msg("client disconnected")
	return rooms
}

// Send delivers a message to one client, best-effort. Sending to an unknown
// client is an expected race with disconnect and is logged, not escalated.
func (reg *Registry) Send(clientID string, msg Outbound) {
	reg.mu.RLock()
	defer reg.mu.RUnlock()

	client, ok := reg.clients[clientID]
	if !ok {
		logging.Debug().Str("client_id", clientID).Str("kind", msg.Kind).Msg("send to unknown client dropped")
		metrics.SendsDropped.WithLabelValues(msg.Kind).Inc()
		return
	}

	select {
	case client.send <- msg:
	default:
		logging.Warn().Str("client_id", clientID).Str("kind", msg.Kind).Msg("client send buffer full, dropping message")
		metrics.SendsDropped.WithLabelValues(msg.Kind).Inc()
	}
}

// JoinRoom records a room membership on the client and sets its identity
// if one was supplied.
func (reg *Registry) JoinRoom(clientID, roomID, identity string) {
	reg.mu.Lock()
	defer reg.mu.Unlock()
	if client, ok := reg.clients[clientID]; ok {
		client.rooms[roomID] = struct{}{}
		if identity != "" {
			client.identity = identity
		}
		client.lastSeen = time.Now().UTC()
	}
}

// LeaveRoom removes a room membership from the client.
func (reg *Registry) LeaveRoom(clientID, roomID string) {
	reg.mu.Lock()
	defer reg.mu.Unlock()
	if client, ok := reg.clients[clientID]; ok {
		delete(client.rooms, roomID)
	}
}

// SetCursor stores the client's last-seen cursor.
func (reg *Registry) SetCursor(clientID string, cursor Cursor) {
	reg.mu.Lock()
	defer reg.mu.Unlock()
	if client, ok := reg.clients[clientID]; ok {
		client.cursor = cursor
		client.lastSeen = time.Now().UTC()
	}
}

// Lookup returns a client's identity and last-known cursor for snapshots.
func (reg *Registry) Lookup(clientID string) (identity string, cursor Cursor) {
	reg.mu.RLock()
	defer reg.mu.RUnlock()
	if client, ok := reg.clients[clientID]; ok {
		return client.identity, client.cursor
	}
	return "", nil
}

// Identity returns the display identity recorded for the client.
func (reg *Registry) Identity(clientID string) string {
	identity, _ := reg.Lookup(clientID)
	return identity
}

// Count returns the number of registered clients.
func (reg *Registry) Count() int {
	reg.mu.RLock()
	defer reg.mu.RUnlock()
	return len(reg.clients)
}
