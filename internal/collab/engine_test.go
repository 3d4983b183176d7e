// Inkwell - Real-Time Collaborative Document Server
// Copyright 2026 Inkwell Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/inkwell-hq/inkwell

package collab

import (
	"testing"
	"time"

	"github.com/goccy/go-json"
)

func testEngine() *Engine {
	return NewEngine(Options{
		ChatHistoryLimit: 3,
		RoomGracePeriod:  20 * time.Millisecond,
		MaxLogEntries:    100,
		SendBuffer:       32,
	}, nil)
}

func mustJSON(t *testing.T, v any) json.RawMessage {
	t.Helper()
	data, err := json.Marshal(v)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	return data
}

// recv pulls the next outbound frame or fails after a short wait.
func recv(t *testing.T, c *Client) Outbound {
	t.Helper()
	select {
	case msg, ok := <-c.Outbound():
		if !ok {
			t.Fatal("outbound channel closed")
		}
		return msg
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for outbound message")
		return Outbound{}
	}
}

// recvNone asserts no frame arrives within the wait window.
func recvNone(t *testing.T, c *Client) {
	t.Helper()
	select {
	case msg, ok := <-c.Outbound():
		if ok {
			t.Fatalf("unexpected outbound message kind %q", msg.Kind)
		}
	case <-time.After(50 * time.Millisecond):
	}
}

// connect registers a client and consumes its connected event.
func connect(t *testing.T, e *Engine) *Client {
	t.Helper()
	c := e.Connect()
	msg := recv(t, c)
	if msg.Kind != KindConnected {
		t.Fatalf("first frame kind = %q, want %q", msg.Kind, KindConnected)
	}
	return c
}

// join puts the client in a room and consumes the room-joined snapshot.
func join(t *testing.T, e *Engine, c *Client, roomID, identity string) RoomSnapshot {
	t.Helper()
	e.Dispatch(c.ID, Envelope{Kind: KindJoinRoom, Data: mustJSON(t, JoinRoomRequest{RoomID: roomID, Identity: identity})})
	msg := recv(t, c)
	if msg.Kind != KindRoomJoined {
		t.Fatalf("frame kind = %q, want %q", msg.Kind, KindRoomJoined)
	}
	snap, ok := msg.Data.(RoomSnapshot)
	if !ok {
		t.Fatalf("room-joined payload is %T", msg.Data)
	}
	return snap
}

func TestConnectAnnouncesCapabilities(t *testing.T) {
	e := testEngine()
	c := e.Connect()

	msg := recv(t, c)
	if msg.Kind != KindConnected {
		t.Fatalf("kind = %q, want %q", msg.Kind, KindConnected)
	}
	ev, ok := msg.Data.(ConnectedEvent)
	if !ok {
		t.Fatalf("payload is %T", msg.Data)
	}
	if ev.ConnectionID != c.ID {
		t.Errorf("connection ID = %q, want %q", ev.ConnectionID, c.ID)
	}
	if len(ev.Capabilities) == 0 {
		t.Error("capabilities list is empty")
	}
}

func TestJoinDeliversSnapshotAndNotifiesPeers(t *testing.T) {
	e := testEngine()
	alice := connect(t, e)
	bob := connect(t, e)

	snap := join(t, e, alice, "room-1", "alice")
	if len(snap.Members) != 1 || snap.Members[0].ClientID != alice.ID {
		t.Fatalf("snapshot members = %+v", snap.Members)
	}

	snap = join(t, e, bob, "room-1", "bob")
	if len(snap.Members) != 2 {
		t.Errorf("snapshot members = %d, want 2", len(snap.Members))
	}

	// Alice hears about bob's join.
	msg := recv(t, alice)
	if msg.Kind != KindMemberJoined {
		t.Fatalf("kind = %q, want %q", msg.Kind, KindMemberJoined)
	}
	ev := msg.Data.(MemberEvent)
	if ev.ClientID != bob.ID || ev.Identity != "bob" {
		t.Errorf("member event = %+v", ev)
	}
}

func TestDuplicateJoinIsIdempotent(t *testing.T) {
	e := testEngine()
	alice := connect(t, e)

	join(t, e, alice, "room-1", "alice")
	snap := join(t, e, alice, "room-1", "alice")
	if len(snap.Members) != 1 {
		t.Errorf("members after duplicate join = %d, want 1", len(snap.Members))
	}
}

func TestEditBroadcastsAndAcks(t *testing.T) {
	e := testEngine()
	alice := connect(t, e)
	bob := connect(t, e)
	join(t, e, alice, "room-1", "alice")
	join(t, e, bob, "room-1", "bob")
	recv(t, alice) // bob's member-joined

	e.Dispatch(alice.ID, Envelope{Kind: KindDocumentEdit, Data: mustJSON(t, DocumentEditRequest{
		RoomID:     "room-1",
		DocumentID: "main.txt",
		Operation:  Operation{Kind: OpInsert, Position: 0, Text: "hello", BaseVersion: 0},
	})})

	ack := recv(t, alice)
	if ack.Kind != KindEditAck {
		t.Fatalf("sender got %q, want %q", ack.Kind, KindEditAck)
	}
	if got := ack.Data.(EditAck); got.Version != 1 || got.DocumentID != "main.txt" {
		t.Errorf("ack = %+v", got)
	}

	update := recv(t, bob)
	if update.Kind != KindDocumentUpdated {
		t.Fatalf("peer got %q, want %q", update.Kind, KindDocumentUpdated)
	}
	ev := update.Data.(DocumentUpdatedEvent)
	if ev.Operation.Version != 1 || ev.Operation.Text != "hello" {
		t.Errorf("update = %+v", ev.Operation)
	}
}

func TestEditFromNonMemberIsDroppedSilently(t *testing.T) {
	e := testEngine()
	alice := connect(t, e)
	mallory := connect(t, e)
	join(t, e, alice, "room-1", "alice")

	e.Dispatch(mallory.ID, Envelope{Kind: KindDocumentEdit, Data: mustJSON(t, DocumentEditRequest{
		RoomID:     "room-1",
		DocumentID: "main.txt",
		Operation:  Operation{Kind: OpInsert, Position: 0, Text: "x", BaseVersion: 0},
	})})

	recvNone(t, alice)
	recvNone(t, mallory)
}

func TestCursorFromNonMemberProducesNoBroadcast(t *testing.T) {
	e := testEngine()
	alice := connect(t, e)
	outsider := connect(t, e)
	join(t, e, alice, "room-1", "alice")

	e.Dispatch(outsider.ID, Envelope{Kind: KindCursorUpdate, Data: mustJSON(t, CursorUpdateRequest{
		RoomID: "room-1",
		Cursor: json.RawMessage(`{"line":1}`),
	})})

	recvNone(t, alice)
	recvNone(t, outsider)
}

func TestCursorRelayAndSnapshotCapture(t *testing.T) {
	e := testEngine()
	alice := connect(t, e)
	bob := connect(t, e)
	join(t, e, alice, "room-1", "alice")
	join(t, e, bob, "room-1", "bob")
	recv(t, alice) // bob's member-joined

	e.Dispatch(alice.ID, Envelope{Kind: KindCursorUpdate, Data: mustJSON(t, CursorUpdateRequest{
		RoomID: "room-1",
		Cursor: json.RawMessage(`{"line":4,"col":2}`),
	})})

	msg := recv(t, bob)
	if msg.Kind != KindCursorUpdated {
		t.Fatalf("kind = %q, want %q", msg.Kind, KindCursorUpdated)
	}
	recvNone(t, alice) // cursor updates never echo to the sender

	// A late joiner sees alice's last-known cursor in the snapshot.
	carol := connect(t, e)
	snap := join(t, e, carol, "room-1", "carol")
	var found bool
	for _, m := range snap.Members {
		if m.ClientID == alice.ID && string(m.Cursor) == `{"line":4,"col":2}` {
			found = true
		}
	}
	if !found {
		t.Errorf("snapshot members missing alice's cursor: %+v", snap.Members)
	}
}

func TestChatFansOutToWholeRoomAndCapsHistory(t *testing.T) {
	e := testEngine()
	alice := connect(t, e)
	join(t, e, alice, "room-1", "alice")

	for _, text := range []string{"one", "two", "three", "four"} {
		e.Dispatch(alice.ID, Envelope{Kind: KindChatMessage, Data: mustJSON(t, ChatMessageRequest{
			RoomID:  "room-1",
			Message: text,
		})})
		msg := recv(t, alice) // sender is included in chat fanout
		if msg.Kind != KindChatMessage {
			t.Fatalf("kind = %q, want %q", msg.Kind, KindChatMessage)
		}
	}

	// History limit is 3; the oldest entry fell off.
	bob := connect(t, e)
	snap := join(t, e, bob, "room-1", "bob")
	recv(t, alice) // bob's member-joined
	if len(snap.Chat) != 3 {
		t.Fatalf("chat history = %d entries, want 3", len(snap.Chat))
	}
	if snap.Chat[0].Text != "two" || snap.Chat[2].Text != "four" {
		t.Errorf("chat history = %+v", snap.Chat)
	}
}

func TestVoiceAndFileRelayExcludeSender(t *testing.T) {
	e := testEngine()
	alice := connect(t, e)
	bob := connect(t, e)
	join(t, e, alice, "room-1", "alice")
	join(t, e, bob, "room-1", "bob")
	recv(t, alice) // bob's member-joined

	e.Dispatch(alice.ID, Envelope{Kind: KindVoiceSignal, Data: mustJSON(t, VoiceSignalRequest{
		RoomID: "room-1",
		Signal: json.RawMessage(`{"sdp":"offer"}`),
	})})
	msg := recv(t, bob)
	if msg.Kind != KindVoiceSignal {
		t.Fatalf("kind = %q, want %q", msg.Kind, KindVoiceSignal)
	}
	if ev := msg.Data.(VoiceSignalEvent); ev.ClientID != alice.ID {
		t.Errorf("voice signal attributed to %q, want %q", ev.ClientID, alice.ID)
	}

	e.Dispatch(alice.ID, Envelope{Kind: KindFileOperation, Data: mustJSON(t, FileOperationRequest{
		RoomID:    "room-1",
		Operation: "create",
		Path:      "src/new.go",
	})})
	msg = recv(t, bob)
	if msg.Kind != KindFileOperation {
		t.Fatalf("kind = %q, want %q", msg.Kind, KindFileOperation)
	}
	if ev := msg.Data.(FileOperationEvent); ev.Path != "src/new.go" || ev.Operation != "create" {
		t.Errorf("file event = %+v", ev)
	}

	recvNone(t, alice)
}

func TestLeaveNotifiesPeersAndSchedulesEviction(t *testing.T) {
	e := testEngine()
	alice := connect(t, e)
	bob := connect(t, e)
	join(t, e, alice, "room-1", "alice")
	join(t, e, bob, "room-1", "bob")
	recv(t, alice) // bob's member-joined

	e.Dispatch(bob.ID, Envelope{Kind: KindLeaveRoom, Data: mustJSON(t, LeaveRoomRequest{RoomID: "room-1"})})
	msg := recv(t, alice)
	if msg.Kind != KindMemberLeft {
		t.Fatalf("kind = %q, want %q", msg.Kind, KindMemberLeft)
	}

	e.Dispatch(alice.ID, Envelope{Kind: KindLeaveRoom, Data: mustJSON(t, LeaveRoomRequest{RoomID: "room-1"})})

	// Grace period is 20ms in tests; the empty room must be gone after it.
	deadline := time.Now().Add(time.Second)
	for e.Directory().Count() != 0 {
		if time.Now().After(deadline) {
			t.Fatal("empty room was not evicted after the grace period")
		}
		time.Sleep(5 * time.Millisecond)
	}
}

func TestRejoinWithinGraceCancelsEviction(t *testing.T) {
	e := testEngine()
	alice := connect(t, e)
	join(t, e, alice, "room-1", "alice")

	e.Dispatch(alice.ID, Envelope{Kind: KindDocumentEdit, Data: mustJSON(t, DocumentEditRequest{
		RoomID:     "room-1",
		DocumentID: "main.txt",
		Operation:  Operation{Kind: OpInsert, Position: 0, Text: "keep", BaseVersion: 0},
	})})
	recv(t, alice) // ack

	e.Dispatch(alice.ID, Envelope{Kind: KindLeaveRoom, Data: mustJSON(t, LeaveRoomRequest{RoomID: "room-1"})})

	// Rejoin immediately, well inside the grace window.
	snap := join(t, e, alice, "room-1", "alice")
	if len(snap.Documents) != 1 || snap.Documents[0].Content != "keep" {
		t.Fatalf("snapshot documents = %+v", snap.Documents)
	}

	time.Sleep(60 * time.Millisecond)
	if e.Directory().Count() != 1 {
		t.Error("room was evicted despite the rejoin")
	}
}

func TestDisconnectLeavesAllRooms(t *testing.T) {
	e := testEngine()
	alice := connect(t, e)
	bob := connect(t, e)
	join(t, e, alice, "room-1", "alice")
	join(t, e, bob, "room-1", "bob")
	join(t, e, bob, "room-2", "bob")
	recv(t, alice) // bob's member-joined in room-1

	e.Disconnect(bob.ID)

	msg := recv(t, alice)
	if msg.Kind != KindMemberLeft {
		t.Fatalf("kind = %q, want %q", msg.Kind, KindMemberLeft)
	}
	if ev := msg.Data.(MemberEvent); ev.ClientID != bob.ID {
		t.Errorf("member-left for %q, want %q", ev.ClientID, bob.ID)
	}

	// room-2 had only bob; it should be evicted after the grace period.
	deadline := time.Now().Add(time.Second)
	for {
		if _, ok := e.Directory().Get("room-2"); !ok {
			break
		}
		if time.Now().After(deadline) {
			t.Fatal("room-2 was not evicted after its only member disconnected")
		}
		time.Sleep(5 * time.Millisecond)
	}
}

func TestMalformedPayloadErrorsToSenderOnly(t *testing.T) {
	e := testEngine()
	alice := connect(t, e)
	bob := connect(t, e)
	join(t, e, alice, "room-1", "alice")
	join(t, e, bob, "room-1", "bob")
	recv(t, alice) // bob's member-joined

	e.Dispatch(alice.ID, Envelope{Kind: KindDocumentEdit, Data: json.RawMessage(`{"roomId":42}`)})

	msg := recv(t, alice)
	if msg.Kind != KindError || msg.Error == "" {
		t.Fatalf("sender got kind %q error %q", msg.Kind, msg.Error)
	}
	recvNone(t, bob)
}

func TestInvalidOperationErrorsToSender(t *testing.T) {
	e := testEngine()
	alice := connect(t, e)
	join(t, e, alice, "room-1", "alice")

	e.Dispatch(alice.ID, Envelope{Kind: KindDocumentEdit, Data: mustJSON(t, DocumentEditRequest{
		RoomID:     "room-1",
		DocumentID: "main.txt",
		Operation:  Operation{Kind: "rotate", Position: 0},
	})})

	msg := recv(t, alice)
	if msg.Kind != KindError {
		t.Fatalf("kind = %q, want %q", msg.Kind, KindError)
	}
}

func TestUnknownKindIsIgnored(t *testing.T) {
	e := testEngine()
	alice := connect(t, e)
	join(t, e, alice, "room-1", "alice")

	e.Dispatch(alice.ID, Envelope{Kind: "telepathy", Data: json.RawMessage(`{}`)})
	recvNone(t, alice)
}

func TestRestoreOperationRebuildsRoomState(t *testing.T) {
	e := testEngine()

	ops := []CommittedOperation{
		{Operation: Operation{Kind: OpInsert, Position: 0, Text: "hello"}, Version: 1, ClientID: "old"},
		{Operation: Operation{Kind: OpInsert, Position: 5, Text: " world"}, Version: 2, ClientID: "old"},
	}
	for _, co := range ops {
		if err := e.RestoreOperation("room-1", "main.txt", co); err != nil {
			t.Fatalf("RestoreOperation: %v", err)
		}
	}

	alice := connect(t, e)
	snap := join(t, e, alice, "room-1", "alice")
	if len(snap.Documents) != 1 {
		t.Fatalf("documents = %d, want 1", len(snap.Documents))
	}
	if snap.Documents[0].Content != "hello world" || snap.Documents[0].Version != 2 {
		t.Errorf("restored document = %+v", snap.Documents[0])
	}
}
