// Inkwell - Real-Time Collaborative Document Server
// Copyright 2026 Inkwell Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/inkwell-hq/inkwell

// Package journal persists committed document operations in BadgerDB so
// document state survives restarts. The journal is append-only: one entry
// per committed operation, keyed so a prefix scan yields per-document
// commit order. Startup replay feeds entries back into the collaboration
// engine before the server accepts connections.
package journal

import (
	"context"
	"fmt"
	"time"

	badger "github.com/dgraph-io/badger/v4"
	"github.com/goccy/go-json"

	"github.com/inkwell-hq/inkwell/internal/collab"
	"github.com/inkwell-hq/inkwell/internal/logging"
)

// keyPrefix namespaces operation entries. Room and document IDs are
// length-prefixed in the key so no ID content, NUL included, can make two
// documents share a key; the zero-padded version keeps lexicographic order
// within one document equal to commit order.
const keyPrefix = "op\x00"

// entry is the stored value. Room and document live in the value, not the
// key, so replay never has to parse IDs back out of key bytes.
type entry struct {
	Room     string                    `json:"room"`
	Document string                    `json:"document"`
	Op       collab.CommittedOperation `json:"op"`
}

// Store is a BadgerDB-backed operation journal. It satisfies collab.Journal.
type Store struct {
	db *badger.DB
}

// Open opens (or creates) the journal at path. SyncWrites is on: an
// acknowledged append has reached disk.
func Open(path string) (*Store, error) {
	opts := badger.DefaultOptions(path)
	opts.Logger = nil // Badger's own logging is noise next to ours
	opts.SyncWrites = true

	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("open journal db: %w", err)
	}
	return &Store{db: db}, nil
}

// OpenInMemory opens a journal backed by memory only. Used by tests.
func OpenInMemory() (*Store, error) {
	opts := badger.DefaultOptions("").WithInMemory(true).WithLogger(nil)
	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("open in-memory journal db: %w", err)
	}
	return &Store{db: db}, nil
}

// Append records one committed operation. Called in commit order by the
// engine, under the owning room's lock.
func (s *Store) Append(roomID, documentID string, op collab.CommittedOperation) error {
	value, err := json.Marshal(entry{Room: roomID, Document: documentID, Op: op})
	if err != nil {
		return fmt.Errorf("encode journal entry: %w", err)
	}

	key := makeKey(roomID, documentID, op.Version)
	err = s.db.Update(func(txn *badger.Txn) error {
		return txn.Set(key, value)
	})
	if err != nil {
		return fmt.Errorf("append journal entry: %w", err)
	}
	return nil
}

// Replay streams every journaled operation to fn in per-document commit
// order. A decode failure on one entry aborts the replay; a corrupt journal
// is better caught at startup than papered over.
func (s *Store) Replay(fn func(roomID, documentID string, op collab.CommittedOperation) error) error {
	return s.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.Prefix = []byte(keyPrefix)
		it := txn.NewIterator(opts)
		defer it.Close()

		count := 0
		for it.Rewind(); it.Valid(); it.Next() {
			err := it.Item().Value(func(val []byte) error {
				var e entry
				if err := json.Unmarshal(val, &e); err != nil {
					return fmt.Errorf("decode journal entry %q: %w", it.Item().Key(), err)
				}
				return fn(e.Room, e.Document, e.Op)
			})
			if err != nil {
				return err
			}
			count++
		}

		if count > 0 {
			logging.Info().Int("entries", count).Msg("journal replay complete")
		}
		return nil
	})
}

// RunGC runs Badger's value-log garbage collection until ctx is cancelled.
// One tick reclaims repeatedly until Badger reports nothing left to rewrite.
func (s *Store) RunGC(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			for {
				if err := s.db.RunValueLogGC(0.5); err != nil {
					break // ErrNoRewrite or a real error; either way, wait for the next tick
				}
			}
		}
	}
}

// Close flushes and closes the underlying database.
func (s *Store) Close() error {
	return s.db.Close()
}

// makeKey builds the key for one committed operation. Each ID segment is
// preceded by its fixed-width byte length, so segment boundaries never
// depend on the IDs' own bytes.
func makeKey(roomID, documentID string, version int) []byte {
	return []byte(fmt.Sprintf("%s%08d%s%08d%s%012d",
		keyPrefix, len(roomID), roomID, len(documentID), documentID, version))
}
