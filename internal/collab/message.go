// Inkwell - Real-Time Collaborative Document Server
// Copyright 2026 Inkwell Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/inkwell-hq/inkwell

package collab

import (
	"time"

	"github.com/goccy/go-json"
)

// Inbound message kinds. Unknown kinds are logged and ignored so older
// servers tolerate newer clients.
const (
	KindJoinRoom      = "join-room"
	KindLeaveRoom     = "leave-room"
	KindDocumentEdit  = "document-edit"
	KindCursorUpdate  = "cursor-update"
	KindVoiceSignal   = "voice-signal"
	KindChatMessage   = "chat-message"
	KindFileOperation = "file-operation"
)

// Outbound message kinds.
const (
	KindConnected       = "connected"
	KindRoomJoined      = "room-joined"
	KindMemberJoined    = "member-joined"
	KindMemberLeft      = "member-left"
	KindDocumentUpdated = "document-updated"
	KindEditAck         = "edit-ack"
	KindCursorUpdated   = "cursor-updated"
	KindError           = "error"
)

// Envelope is the transport-agnostic inbound message frame. Data is decoded
// per kind by the dispatcher.
type Envelope struct {
	Kind string          `json:"kind"`
	Data json.RawMessage `json:"data,omitempty"`
}

// Outbound is the frame sent to clients. Error is set only on kind "error"
// and goes to the originating connection alone.
type Outbound struct {
	Kind  string `json:"kind"`
	Data  any    `json:"data,omitempty"`
	Error string `json:"error,omitempty"`
}

// errorNotice builds an error frame for the originating client.
func errorNotice(msg string) Outbound {
	return Outbound{Kind: KindError, Error: msg}
}

// Cursor is an opaque client cursor payload. The engine stores and relays
// it without interpretation.
type Cursor = json.RawMessage

// JoinRoomRequest asks to join (and lazily create) a room.
type JoinRoomRequest struct {
	RoomID   string `json:"roomId"`
	Identity string `json:"identity,omitempty"`
}

// LeaveRoomRequest leaves a room.
type LeaveRoomRequest struct {
	RoomID string `json:"roomId"`
}

// DocumentEditRequest submits one operation against a document.
type DocumentEditRequest struct {
	RoomID     string    `json:"roomId"`
	DocumentID string    `json:"documentId"`
	Operation  Operation `json:"operation"`
}

// CursorUpdateRequest reports the sender's cursor.
type CursorUpdateRequest struct {
	RoomID string `json:"roomId"`
	Cursor Cursor `json:"cursor"`
}

// VoiceSignalRequest carries opaque voice-signaling data for peer relay.
type VoiceSignalRequest struct {
	RoomID string          `json:"roomId"`
	Signal json.RawMessage `json:"signal"`
}

// ChatMessageRequest posts a chat message to a room.
type ChatMessageRequest struct {
	RoomID  string `json:"roomId"`
	Message string `json:"message"`
}

// FileOperationRequest carries a file operation for peer relay. The engine
// performs no filesystem I/O; payloads pass through untouched.
type FileOperationRequest struct {
	RoomID    string `json:"roomId"`
	Operation string `json:"operation"`
	Path      string `json:"path"`
	Content   string `json:"content,omitempty"`
}

// ConnectedEvent is emitted once per connection, immediately after accept.
type ConnectedEvent struct {
	ConnectionID string   `json:"connectionId"`
	Capabilities []string `json:"capabilities"`
}

// capabilities lists the message kinds this server accepts.
func capabilities() []string {
	return []string{
		KindJoinRoom,
		KindLeaveRoom,
		KindDocumentEdit,
		KindCursorUpdate,
		KindVoiceSignal,
		KindChatMessage,
		KindFileOperation,
	}
}

// MemberInfo describes one room member inside a snapshot.
type MemberInfo struct {
	ClientID string `json:"clientId"`
	Identity string `json:"identity,omitempty"`
	Cursor   Cursor `json:"cursor,omitempty"`
}

// DocumentSnapshot is the current state of one document.
type DocumentSnapshot struct {
	ID      string `json:"id"`
	Content string `json:"content"`
	Version int    `json:"version"`
}

// ChatEntry is one retained chat message.
type ChatEntry struct {
	ClientID string    `json:"clientId"`
	Identity string    `json:"identity,omitempty"`
	Text     string    `json:"text"`
	SentAt   time.Time `json:"sentAt"`
}

// RoomSnapshot is returned to a joiner: current members with last-known
// cursors, all document contents and versions, and the retained chat history.
type RoomSnapshot struct {
	RoomID    string             `json:"roomId"`
	Members   []MemberInfo       `json:"members"`
	Documents []DocumentSnapshot `json:"documents"`
	Chat      []ChatEntry        `json:"chat"`
}

// MemberEvent announces a join or leave to room peers.
type MemberEvent struct {
	RoomID   string `json:"roomId"`
	ClientID string `json:"clientId"`
	Identity string `json:"identity,omitempty"`
}

// DocumentUpdatedEvent carries a committed operation to room peers.
type DocumentUpdatedEvent struct {
	RoomID     string             `json:"roomId"`
	DocumentID string             `json:"documentId"`
	Operation  CommittedOperation `json:"operation"`
}

// EditAck confirms a commit to the submitter with the assigned version,
// which the client must use as the base version of its next edit.
type EditAck struct {
	RoomID     string `json:"roomId"`
	DocumentID string `json:"documentId"`
	Version    int    `json:"version"`
}

// CursorUpdatedEvent relays a peer's cursor.
type CursorUpdatedEvent struct {
	RoomID   string `json:"roomId"`
	ClientID string `json:"clientId"`
	Cursor   Cursor `json:"cursor"`
}

// ChatMessageEvent fans a chat entry out to the whole room, sender included,
// so the sender's UI confirms ordering from the server's perspective.
type ChatMessageEvent struct {
	RoomID string `json:"roomId"`
	ChatEntry
}

// VoiceSignalEvent relays opaque signaling data to peers.
type VoiceSignalEvent struct {
	RoomID   string          `json:"roomId"`
	ClientID string          `json:"clientId"`
	Signal   json.RawMessage `json:"signal"`
}

// FileOperationEvent relays a file operation to peers.
type FileOperationEvent struct {
	RoomID    string `json:"roomId"`
	ClientID  string `json:"clientId"`
	Operation string `json:"operation"`
	Path      string `json:"path"`
	Content   string `json:"content,omitempty"`
}
