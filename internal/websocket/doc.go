// Inkwell - Real-Time Collaborative Document Server
// Copyright 2026 Inkwell Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/inkwell-hq/inkwell

// Package websocket is the wire transport: it upgrades HTTP requests,
// enforces per-connection frame size and message rate limits, and pumps
// JSON frames between gorilla/websocket connections and the collaboration
// engine. All protocol semantics live in the collab package; this package
// only moves bytes.
package websocket
