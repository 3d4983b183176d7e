// Inkwell - Real-Time Collaborative Document Server
// Copyright 2026 Inkwell Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/inkwell-hq/inkwell

package collab

import (
	"time"

	"github.com/goccy/go-json"

	"github.com/inkwell-hq/inkwell/internal/logging"
	"github.com/inkwell-hq/inkwell/internal/metrics"
)

// Journal is the optional durable sink for committed operations. The engine
// appends in commit order; a nil journal keeps the log in memory only.
type Journal interface {
	Append(roomID, documentID string, op CommittedOperation) error
}

// Options are the engine tunables, populated from configuration.
type Options struct {
	ChatHistoryLimit int
	RoomGracePeriod  time.Duration
	MaxLogEntries    int
	SendBuffer       int
}

// Engine is the collaboration engine: it owns the connection registry and
// the room directory, and routes decoded inbound messages to room and
// document mutations. Each message is one atomic step with respect to the
// room it touches.
type Engine struct {
	registry  *Registry
	directory *Directory
	journal   Journal
}

// NewEngine creates an engine. journal may be nil.
func NewEngine(opts Options, journal Journal) *Engine {
	return &Engine{
		registry:  NewRegistry(opts.SendBuffer),
		directory: NewDirectory(opts.RoomGracePeriod, opts.ChatHistoryLimit, opts.MaxLogEntries),
		journal:   journal,
	}
}

// Registry exposes the connection registry to the transport layer.
func (e *Engine) Registry() *Registry {
	return e.registry
}

// Directory exposes the room directory for introspection.
func (e *Engine) Directory() *Directory {
	return e.directory
}

// Connect registers a new connection and emits the connected event carrying
// the assigned connection ID and the server's capability list.
func (e *Engine) Connect() *Client {
	client := e.registry.Register()
	e.registry.Send(client.ID, Outbound{
		Kind: KindConnected,
		Data: ConnectedEvent{ConnectionID: client.ID, Capabilities: capabilities()},
	})
	return client
}

// Disconnect tears down a connection: the client leaves every joined room,
// remaining members are notified, and empty rooms start their grace timer.
func (e *Engine) Disconnect(clientID string) {
	identity := e.registry.Identity(clientID)
	rooms := e.registry.Unregister(clientID)

	for _, roomID := range rooms {
		room, ok := e.directory.Get(roomID)
		if !ok {
			continue
		}

		room.lock()
		empty := room.removeMember(clientID, time.Now().UTC())
		e.broadcast(room, clientID, Outbound{
			Kind: KindMemberLeft,
			Data: MemberEvent{RoomID: roomID, ClientID: clientID, Identity: identity},
		})
		room.unlock()

		if empty {
			e.directory.ScheduleCleanup(room)
		}
	}
}

// SendError reports a protocol error to the originating connection only.
// The connection stays open; one bad message never terminates a session.
func (e *Engine) SendError(clientID, reason, msg string) {
	metrics.ProtocolErrors.WithLabelValues(reason).Inc()
	e.registry.Send(clientID, errorNotice(msg))
}

// Dispatch routes one decoded inbound message. Malformed payloads produce
// an error notice to the sender; unknown kinds are logged and ignored for
// forward compatibility.
func (e *Engine) Dispatch(clientID string, env Envelope) {
	switch env.Kind {
	case KindJoinRoom:
		var req JoinRoomRequest
		if !e.decode(clientID, env, &req) {
			return
		}
		e.handleJoin(clientID, req)

	case KindLeaveRoom:
		var req LeaveRoomRequest
		if !e.decode(clientID, env, &req) {
			return
		}
		e.handleLeave(clientID, req.RoomID)

	case KindDocumentEdit:
		var req DocumentEditRequest
		if !e.decode(clientID, env, &req) {
			return
		}
		e.handleEdit(clientID, req)

	case KindCursorUpdate:
		var req CursorUpdateRequest
		if !e.decode(clientID, env, &req) {
			return
		}
		e.handleCursor(clientID, req)

	case KindVoiceSignal:
		var req VoiceSignalRequest
		if !e.decode(clientID, env, &req) {
			return
		}
		e.handleVoice(clientID, req)

	case KindChatMessage:
		var req ChatMessageRequest
		if !e.decode(clientID, env, &req) {
			return
		}
		e.handleChat(clientID, req)

	case KindFileOperation:
		var req FileOperationRequest
		if !e.decode(clientID, env, &req) {
			return
		}
		e.handleFile(clientID, req)

	default:
		logging.Debug().Str("client_id", clientID).Str("kind", env.Kind).Msg("ignoring unrecognized message kind")
	}
}

// decode unmarshals the envelope payload, reporting a protocol error to the
// sender on failure.
func (e *Engine) decode(clientID string, env Envelope, dst any) bool {
	if err := json.Unmarshal(env.Data, dst); err != nil {
		logging.Debug().Err(err).Str("client_id", clientID).Str("kind", env.Kind).Msg("malformed message payload")
		e.SendError(clientID, "malformed_payload", "malformed "+env.Kind+" payload")
		return false
	}
	return true
}

// handleJoin adds the client to the room (creating it if absent) and
// returns the room snapshot. Peers learn of the join before the joiner
// receives room state, so a new member is never invisible to peers that
// already hold the snapshot.
func (e *Engine) handleJoin(clientID string, req JoinRoomRequest) {
	if req.RoomID == "" {
		e.SendError(clientID, "malformed_payload", "join-room requires roomId")
		return
	}

	room := e.directory.getOrCreate(req.RoomID)
	e.registry.JoinRoom(clientID, req.RoomID, req.Identity)

	room.lock()
	room.addMember(clientID, time.Now().UTC())
	e.broadcast(room, clientID, Outbound{
		Kind: KindMemberJoined,
		Data: MemberEvent{RoomID: req.RoomID, ClientID: clientID, Identity: req.Identity},
	})
	snap := room.snapshot(e.registry.Lookup)
	room.unlock()

	e.registry.Send(clientID, Outbound{Kind: KindRoomJoined, Data: snap})
	logging.Info().Str("room", req.RoomID).Str("client_id", clientID).Msg("client joined room")
}

// handleLeave removes the client from the room and notifies peers. Leaving
// a room that is gone or was never joined is a stale reference: dropped
// silently, since eviction races are expected.
func (e *Engine) handleLeave(clientID, roomID string) {
	room, ok := e.directory.Get(roomID)
	if !ok {
		metrics.StaleReferences.WithLabelValues(KindLeaveRoom).Inc()
		return
	}

	room.lock()
	if !room.hasMember(clientID) {
		room.unlock()
		metrics.StaleReferences.WithLabelValues(KindLeaveRoom).Inc()
		return
	}
	empty := room.removeMember(clientID, time.Now().UTC())
	e.registry.LeaveRoom(clientID, roomID)
	e.broadcast(room, clientID, Outbound{
		Kind: KindMemberLeft,
		Data: MemberEvent{RoomID: roomID, ClientID: clientID, Identity: e.registry.Identity(clientID)},
	})
	room.unlock()

	if empty {
		e.directory.ScheduleCleanup(room)
	}
	logging.Info().Str("room", roomID).Str("client_id", clientID).Msg("client left room")
}

// handleEdit runs the commit pipeline: rebase against concurrent committed
// operations, apply with clamped offsets, assign the next version, then
// broadcast to peers and ack the submitter with the authoritative version.
func (e *Engine) handleEdit(clientID string, req DocumentEditRequest) {
	if err := req.Operation.Validate(); err != nil {
		e.SendError(clientID, "invalid_operation", err.Error())
		return
	}
	if req.DocumentID == "" {
		e.SendError(clientID, "invalid_operation", "document-edit requires documentId")
		return
	}

	room, ok := e.directory.Get(req.RoomID)
	if !ok {
		metrics.StaleReferences.WithLabelValues(KindDocumentEdit).Inc()
		return
	}

	room.lock()
	if !room.hasMember(clientID) {
		room.unlock()
		metrics.StaleReferences.WithLabelValues(KindDocumentEdit).Inc()
		return
	}

	now := time.Now().UTC()
	doc := room.document(req.DocumentID)
	committed := doc.Apply(req.Operation, clientID, now)
	room.lastActivity = now

	// Journal appends stay inside the room lock so the durable order
	// matches commit order.
	if e.journal != nil {
		if err := e.journal.Append(req.RoomID, req.DocumentID, committed); err != nil {
			metrics.JournalErrors.Inc()
			logging.Error().Err(err).Str("room", req.RoomID).Str("document", req.DocumentID).Msg("journal append failed")
		} else {
			metrics.JournalAppends.Inc()
		}
	}

	e.broadcast(room, clientID, Outbound{
		Kind: KindDocumentUpdated,
		Data: DocumentUpdatedEvent{RoomID: req.RoomID, DocumentID: req.DocumentID, Operation: committed},
	})
	room.unlock()

	e.registry.Send(clientID, Outbound{
		Kind: KindEditAck,
		Data: EditAck{RoomID: req.RoomID, DocumentID: req.DocumentID, Version: committed.Version},
	})
}

// handleCursor stores the cursor on the client record and relays it to
// peers. A cursor from a non-member produces no broadcast and no error.
func (e *Engine) handleCursor(clientID string, req CursorUpdateRequest) {
	room, ok := e.directory.Get(req.RoomID)
	if !ok {
		metrics.StaleReferences.WithLabelValues(KindCursorUpdate).Inc()
		return
	}

	room.lock()
	if !room.hasMember(clientID) {
		room.unlock()
		metrics.StaleReferences.WithLabelValues(KindCursorUpdate).Inc()
		return
	}
	e.registry.SetCursor(clientID, req.Cursor)
	e.broadcast(room, clientID, Outbound{
		Kind: KindCursorUpdated,
		Data: CursorUpdatedEvent{RoomID: req.RoomID, ClientID: clientID, Cursor: req.Cursor},
	})
	room.unlock()

	metrics.RelayFanout.WithLabelValues("cursor").Inc()
}

// handleVoice relays opaque signaling data to peers. No interpretation, no
// storage.
func (e *Engine) handleVoice(clientID string, req VoiceSignalRequest) {
	room, ok := e.directory.Get(req.RoomID)
	if !ok {
		metrics.StaleReferences.WithLabelValues(KindVoiceSignal).Inc()
		return
	}

	room.lock()
	if !room.hasMember(clientID) {
		room.unlock()
		metrics.StaleReferences.WithLabelValues(KindVoiceSignal).Inc()
		return
	}
	e.broadcast(room, clientID, Outbound{
		Kind: KindVoiceSignal,
		Data: VoiceSignalEvent{RoomID: req.RoomID, ClientID: clientID, Signal: req.Signal},
	})
	room.unlock()

	metrics.RelayFanout.WithLabelValues("voice").Inc()
}

// handleChat appends to the room's bounded history and fans out to the
// whole room, sender included.
func (e *Engine) handleChat(clientID string, req ChatMessageRequest) {
	room, ok := e.directory.Get(req.RoomID)
	if !ok {
		metrics.StaleReferences.WithLabelValues(KindChatMessage).Inc()
		return
	}

	room.lock()
	if !room.hasMember(clientID) {
		room.unlock()
		metrics.StaleReferences.WithLabelValues(KindChatMessage).Inc()
		return
	}
	entry := ChatEntry{
		ClientID: clientID,
		Identity: e.registry.Identity(clientID),
		Text:     req.Message,
		SentAt:   time.Now().UTC(),
	}
	room.appendChat(entry)
	e.broadcast(room, "", Outbound{
		Kind: KindChatMessage,
		Data: ChatMessageEvent{RoomID: req.RoomID, ChatEntry: entry},
	})
	room.unlock()

	metrics.ChatMessages.Inc()
	metrics.RelayFanout.WithLabelValues("chat").Inc()
}

// handleFile relays a file operation to peers. The engine never touches the
// filesystem; any real file I/O lives outside this process.
func (e *Engine) handleFile(clientID string, req FileOperationRequest) {
	room, ok := e.directory.Get(req.RoomID)
	if !ok {
		metrics.StaleReferences.WithLabelValues(KindFileOperation).Inc()
		return
	}

	room.lock()
	if !room.hasMember(clientID) {
		room.unlock()
		metrics.StaleReferences.WithLabelValues(KindFileOperation).Inc()
		return
	}
	e.broadcast(room, clientID, Outbound{
		Kind: KindFileOperation,
		Data: FileOperationEvent{
			RoomID:    req.RoomID,
			ClientID:  clientID,
			Operation: req.Operation,
			Path:      req.Path,
			Content:   req.Content,
		},
	})
	room.unlock()

	metrics.RelayFanout.WithLabelValues("file").Inc()
}

// broadcast sends to every room member except exclude, in sorted member
// order for deterministic delivery. Sends are non-blocking; the caller
// holds the room lock and is never stalled by a slow client.
func (e *Engine) broadcast(room *Room, exclude string, msg Outbound) {
	for _, id := range room.memberIDs() {
		if id == exclude {
			continue
		}
		e.registry.Send(id, msg)
	}
}

// RoomInfo summarizes one live room for the introspection API.
type RoomInfo struct {
	ID           string    `json:"id"`
	Members      int       `json:"members"`
	Documents    int       `json:"documents"`
	ChatLength   int       `json:"chatLength"`
	CreatedAt    time.Time `json:"createdAt"`
	LastActivity time.Time `json:"lastActivity"`
}

// Rooms returns a summary of every live room, sorted by ID.
func (e *Engine) Rooms() []RoomInfo {
	ids := e.directory.List()
	infos := make([]RoomInfo, 0, len(ids))
	for _, id := range ids {
		room, ok := e.directory.Get(id)
		if !ok {
			continue
		}
		room.lock()
		infos = append(infos, RoomInfo{
			ID:           room.ID,
			Members:      len(room.members),
			Documents:    len(room.documents),
			ChatLength:   len(room.chat),
			CreatedAt:    room.createdAt,
			LastActivity: room.lastActivity,
		})
		room.unlock()
	}
	return infos
}

// RoomDetail returns the full snapshot of one room, as a joiner would see it.
func (e *Engine) RoomDetail(roomID string) (RoomSnapshot, bool) {
	room, ok := e.directory.Get(roomID)
	if !ok {
		return RoomSnapshot{}, false
	}
	room.lock()
	snap := room.snapshot(e.registry.Lookup)
	room.unlock()
	return snap, true
}

// RestoreOperation re-applies a journaled operation during startup replay.
// Rooms and documents are recreated as needed; operations must arrive in
// commit order per document.
func (e *Engine) RestoreOperation(roomID, documentID string, co CommittedOperation) error {
	room := e.directory.getOrCreate(roomID)

	room.lock()
	defer room.unlock()
	doc := room.document(documentID)
	return doc.Restore(co)
}
