// Cratedigger - Record Collection Tracker
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/cratedigger

package warmer

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"

	"github.com/dgraph-io/badger/v4"
	"github.com/goccy/go-json"
)

// StateStore persists warmer snapshots across restarts.
type StateStore interface {
	Save(ctx context.Context, snap *Snapshot) error

	// LoadAll returns every stored snapshot ordered by user ID.
	LoadAll(ctx context.Context) ([]*Snapshot, error)

	// Delete removes the snapshot of userID. Missing snapshots are not an error.
	Delete(ctx context.Context, userID string) error

	Close() error
}

// Snapshot key prefix for namespacing in BadgerDB.
const badgerSnapshotKeyPrefix = "warmer_state:"

// BadgerStateStore implements StateStore using BadgerDB.
type BadgerStateStore struct {
	db *badger.DB
}

// NewBadgerStateStore opens a BadgerDB state store in path. An empty path
// keeps the database in memory.
func NewBadgerStateStore(path string) (*BadgerStateStore, error) {
	opts := badger.DefaultOptions(path)
	if path == "" {
		opts = opts.WithInMemory(true)
	}
	opts.Logger = nil // Suppress BadgerDB internal logs
	// Snapshots are small; the default 1GB value log is far too large.
	opts.ValueLogFileSize = 16 << 20
	opts.SyncWrites = path != ""

	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("open badger db for warmer state: %w", err)
	}
	return &BadgerStateStore{db: db}, nil
}

// NewBadgerStateStoreFromDB creates a state store from an existing BadgerDB connection.
func NewBadgerStateStoreFromDB(db *badger.DB) *BadgerStateStore {
	return &BadgerStateStore{db: db}
}

// Save writes snap, replacing any previous snapshot of the user.
func (s *BadgerStateStore) Save(ctx context.Context, snap *Snapshot) error {
	if snap == nil || snap.UserID == "" {
		return errors.New("snapshot user ID cannot be empty")
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	data, err := json.Marshal(snap)
	if err != nil {
		return fmt.Errorf("marshal snapshot: %w", err)
	}
	return s.db.Update(func(txn *badger.Txn) error {
		return txn.Set([]byte(badgerSnapshotKeyPrefix+snap.UserID), data)
	})
}

// LoadAll returns every snapshot. Undecodable entries are skipped.
func (s *BadgerStateStore) LoadAll(ctx context.Context) ([]*Snapshot, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	var snaps []*Snapshot
	err := s.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.PrefetchValues = true
		it := txn.NewIterator(opts)
		defer it.Close()

		prefix := []byte(badgerSnapshotKeyPrefix)
		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			var snap Snapshot
			err := it.Item().Value(func(val []byte) error {
				return json.Unmarshal(val, &snap)
			})
			if err != nil {
				continue
			}
			snaps = append(snaps, &snap)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("scan warmer state: %w", err)
	}
	return snaps, nil
}

// Delete removes the snapshot of userID.
func (s *BadgerStateStore) Delete(ctx context.Context, userID string) error {
	if userID == "" {
		return nil
	}
	return s.db.Update(func(txn *badger.Txn) error {
		err := txn.Delete([]byte(badgerSnapshotKeyPrefix + userID))
		if errors.Is(err, badger.ErrKeyNotFound) {
			return nil
		}
		return err
	})
}

// Close closes the underlying database.
func (s *BadgerStateStore) Close() error {
	return s.db.Close()
}

// MemoryStateStore keeps snapshots in process.
type MemoryStateStore struct {
	mu    sync.RWMutex
	snaps map[string][]byte
}

// NewMemoryStateStore creates an empty in-memory state store.
func NewMemoryStateStore() *MemoryStateStore {
	return &MemoryStateStore{snaps: make(map[string][]byte)}
}

// Save stores an encoded copy of snap.
func (s *MemoryStateStore) Save(_ context.Context, snap *Snapshot) error {
	if snap == nil || snap.UserID == "" {
		return errors.New("snapshot user ID cannot be empty")
	}
	data, err := json.Marshal(snap)
	if err != nil {
		return fmt.Errorf("marshal snapshot: %w", err)
	}
	s.mu.Lock()
	s.snaps[snap.UserID] = data
	s.mu.Unlock()
	return nil
}

// LoadAll decodes every stored snapshot.
func (s *MemoryStateStore) LoadAll(_ context.Context) ([]*Snapshot, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	ids := make([]string, 0, len(s.snaps))
	for id := range s.snaps {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	snaps := make([]*Snapshot, 0, len(ids))
	for _, id := range ids {
		var snap Snapshot
		if err := json.Unmarshal(s.snaps[id], &snap); err != nil {
			return nil, fmt.Errorf("decode snapshot %s: %w", id, err)
		}
		snaps = append(snaps, &snap)
	}
	return snaps, nil
}

// Delete removes the snapshot of userID.
func (s *MemoryStateStore) Delete(_ context.Context, userID string) error {
	s.mu.Lock()
	delete(s.snaps, userID)
	s.mu.Unlock()
	return nil
}

// Close is a no-op.
func (s *MemoryStateStore) Close() error {
	return nil
}
