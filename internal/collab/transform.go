// Inkwell - Real-Time Collaborative Document Server
// Copyright 2026 Inkwell Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/inkwell-hq/inkwell

package collab

// Operational transform: an incoming operation is rebased against every
// operation committed after its declared base version, in commit order.
// The full insert/delete/replace matrix is covered; a committed replace is
// treated as a delete followed by an insert at the same position.
//
// Tie rule: when a committed insert and an incoming insert target the same
// position, the committed insert keeps the left side and the incoming
// position shifts right. The server's commit order is the total order, so
// this is deterministic for every observer.

// transform rebases op against a single earlier-committed operation.
func transform(op Operation, committed Operation) Operation {
	switch committed.Kind {
	case OpInsert:
		return transformAgainstInsert(op, committed.Position, committed.textLen())
	case OpDelete:
		return transformAgainstDelete(op, committed.Position, committed.Length)
	case OpReplace:
		op = transformAgainstDelete(op, committed.Position, committed.Length)
		return transformAgainstInsert(op, committed.Position, committed.textLen())
	default:
		return op
	}
}

// transformAgainstInsert shifts op for an earlier insert of length bl at bp.
func transformAgainstInsert(op Operation, bp, bl int) Operation {
	if bl == 0 {
		return op
	}

	switch op.Kind {
	case OpInsert:
		if bp <= op.Position {
			op.Position += bl
		}

	case OpDelete, OpReplace:
		switch {
		case bp <= op.Position:
			op.Position += bl
		case bp < op.Position+op.Length:
			// The insert landed inside the range being removed. The range
			// widens to keep it contiguous; splitting a delete is not
			// expressible as a single operation.
			op.Length += bl
		}
	}
	return op
}

// transformAgainstDelete shifts op for an earlier delete of length bl at bp.
func transformAgainstDelete(op Operation, bp, bl int) Operation {
	if bl == 0 {
		return op
	}
	bEnd := bp + bl

	switch op.Kind {
	case OpInsert:
		switch {
		case op.Position <= bp:
			// Insert point precedes the deleted range.
		case op.Position >= bEnd:
			op.Position -= bl
		default:
			// Insert point was inside the deleted range; it collapses to
			// the deletion point.
			op.Position = bp
		}

	case OpDelete, OpReplace:
		opEnd := op.Position + op.Length

		// Runes deleted by the committed op that overlap op's range are
		// already gone; op must not delete them again.
		overlap := minInt(opEnd, bEnd) - maxInt(op.Position, bp)
		if overlap > 0 {
			op.Length -= overlap
		}

		// Shift left by the committed deletions strictly before op's start.
		op.Position -= minInt(op.Position, bEnd) - minInt(op.Position, bp)
	}
	return op
}

// Rebase folds op over the concurrent committed operations in commit order.
func Rebase(op Operation, concurrent []CommittedOperation) Operation {
	for i := range concurrent {
		op = transform(op, concurrent[i].Operation)
	}
	return op
}

func minInt(a, b int) int {
	if a < b {
		return a
	}
	return b
}

func maxInt(a, b int) int {
	if a > b {
		return a
	}
	return b
}
