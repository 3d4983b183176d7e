// Inkwell - Real-Time Collaborative Document Server
// Copyright 2026 Inkwell Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/inkwell-hq/inkwell

// Package collab implements the collaboration engine: rooms, concurrent
// document editing with operational transform, presence, chat, and relay of
// opaque voice-signaling and file-operation payloads.
//
// The Engine is the single entry point. Transports decode frames into
// Envelope values and hand them to Dispatch; the engine serializes all
// mutation per room under the room's mutex, commits document edits in a
// server-assigned total version order, and fans results out through the
// connection Registry. Documents store content as rune slices, so all
// positions and lengths are rune offsets.
//
// Rooms are created lazily on first join and evicted by the Directory after
// a configurable grace period with no members.
package collab
