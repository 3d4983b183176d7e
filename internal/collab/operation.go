// Inkwell - Real-Time Collaborative Document Server
// Copyright 2026 Inkwell Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/inkwell-hq/inkwell

package collab

import (
	"fmt"
	"time"
)

// OpKind is the kind of a document operation.
type OpKind string

const (
	OpInsert  OpKind = "insert"
	OpDelete  OpKind = "delete"
	OpReplace OpKind = "replace"
)

// Operation is a single edit submitted by a client. Position and Length are
// rune offsets into the document content, not byte offsets. BaseVersion is
// the document version the client believed was current when composing the
// edit.
type Operation struct {
	Kind        OpKind `json:"kind"`
	Position    int    `json:"position"`
	Text        string `json:"text,omitempty"`
	Length      int    `json:"length,omitempty"`
	BaseVersion int    `json:"baseVersion"`
}

// CommittedOperation is an Operation after commit, carrying the assigned
// version. Versions are the authoritative total order for a document.
type CommittedOperation struct {
	Operation
	Version     int       `json:"version"`
	ClientID    string    `json:"clientId"`
	CommittedAt time.Time `json:"committedAt"`
}

// Validate rejects operations that can never be applied. Out-of-range
// offsets are not an error here; they are clamped at apply time.
func (op Operation) Validate() error {
	switch op.Kind {
	case OpInsert, OpDelete, OpReplace:
	default:
		return fmt.Errorf("unknown operation kind %q", op.Kind)
	}
	if op.Position < 0 {
		return fmt.Errorf("negative position %d", op.Position)
	}
	if op.Length < 0 {
		return fmt.Errorf("negative length %d", op.Length)
	}
	if op.BaseVersion < 0 {
		return fmt.Errorf("negative base version %d", op.BaseVersion)
	}
	return nil
}

// textLen returns the rune length of the operation's payload text.
func (op Operation) textLen() int {
	return len([]rune(op.Text))
}

// clampInt bounds v to [lo, hi].
func clampInt(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

// apply splices op into content, clamping offsets to [0, len(content)] so a
// transform gap can never index out of bounds. The second return reports
// whether any offset was clamped.
func apply(content []rune, op Operation) ([]rune, bool) {
	clamped := false

	pos := op.Position
	if p := clampInt(pos, 0, len(content)); p != pos {
		pos = p
		clamped = true
	}

	switch op.Kind {
	case OpInsert:
		return spliceRunes(content, pos, 0, op.Text), clamped

	case OpDelete:
		length := op.Length
		if l := clampInt(length, 0, len(content)-pos); l != length {
			length = l
			clamped = true
		}
		return spliceRunes(content, pos, length, ""), clamped

	case OpReplace:
		length := op.Length
		if l := clampInt(length, 0, len(content)-pos); l != length {
			length = l
			clamped = true
		}
		return spliceRunes(content, pos, length, op.Text), clamped

	default:
		// Validate rejects unknown kinds before apply is reached.
		return content, clamped
	}
}

// spliceRunes removes del runes at pos and inserts text there.
func spliceRunes(content []rune, pos, del int, text string) []rune {
	ins := []rune(text)
	out := make([]rune, 0, len(content)-del+len(ins))
	out = append(out, content[:pos]...)
	out = append(out, ins...)
	out = append(out, content[pos+del:]...)
	return out
}
