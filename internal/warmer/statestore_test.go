// Cratedigger - Record Collection Tracker
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/cratedigger

package warmer

import (
	"context"
	"testing"
	"time"

	"github.com/tomtom215/cratedigger/internal/recommend"
)

func sampleSnapshot(userID string) *Snapshot {
	saved := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	return &Snapshot{
		UserID: userID,
		Queue: []QueuedItem{
			{Item: recommend.WarmItem{ArtistName: "Genesis", RecScore: 0.8, Connections: 2}, Priority: 0.5},
		},
		Completed: map[string]time.Time{"camel": saved},
		Failures:  map[string]Failure{"marillion": {Attempts: 2, LastAttempt: saved}},
		Progress:  newProgress(1, 1),
		SavedAt:   saved,
	}
}

func testStateStore(t *testing.T, s StateStore) {
	t.Helper()
	ctx := context.Background()

	if err := s.Save(ctx, &Snapshot{}); err == nil {
		t.Error("Save() accepted a snapshot without user ID")
	}

	for _, id := range []string{"bob", "alice"} {
		if err := s.Save(ctx, sampleSnapshot(id)); err != nil {
			t.Fatalf("Save(%s) error = %v", id, err)
		}
	}
	snaps, err := s.LoadAll(ctx)
	if err != nil {
		t.Fatalf("LoadAll() error = %v", err)
	}
	if len(snaps) != 2 || snaps[0].UserID != "alice" || snaps[1].UserID != "bob" {
		t.Fatalf("LoadAll() = %+v, want alice and bob in order", snaps)
	}
	got := snaps[0]
	if len(got.Queue) != 1 || got.Queue[0].Item.ArtistName != "Genesis" || got.Queue[0].Priority != 0.5 {
		t.Errorf("Queue = %+v", got.Queue)
	}
	if got.Failures["marillion"].Attempts != 2 || got.Completed["camel"].IsZero() {
		t.Errorf("Failures = %+v, Completed = %+v", got.Failures, got.Completed)
	}
	if got.Progress.Percent != 50 || !got.SavedAt.Equal(sampleSnapshot("x").SavedAt) {
		t.Errorf("Progress = %+v, SavedAt = %v", got.Progress, got.SavedAt)
	}

	updated := sampleSnapshot("alice")
	updated.Queue = nil
	if err := s.Save(ctx, updated); err != nil {
		t.Fatalf("Save(updated) error = %v", err)
	}
	if err := s.Delete(ctx, "bob"); err != nil {
		t.Fatalf("Delete() error = %v", err)
	}
	if err := s.Delete(ctx, "nobody"); err != nil {
		t.Errorf("Delete(missing) error = %v", err)
	}
	snaps, err = s.LoadAll(ctx)
	if err != nil || len(snaps) != 1 || len(snaps[0].Queue) != 0 {
		t.Errorf("LoadAll() after update = %+v, %v", snaps, err)
	}
}

func TestMemoryStateStore(t *testing.T) {
	t.Parallel()
	testStateStore(t, NewMemoryStateStore())
}

func TestBadgerStateStore_InMemory(t *testing.T) {
	t.Parallel()

	s, err := NewBadgerStateStore("")
	if err != nil {
		t.Fatalf("NewBadgerStateStore() error = %v", err)
	}
	defer s.Close()
	testStateStore(t, s)
}

func TestBadgerStateStore_SurvivesReopen(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	ctx := context.Background()

	s, err := NewBadgerStateStore(dir)
	if err != nil {
		t.Fatalf("NewBadgerStateStore() error = %v", err)
	}
	if err := s.Save(ctx, sampleSnapshot("alice")); err != nil {
		t.Fatalf("Save() error = %v", err)
	}
	if err := s.Close(); err != nil {
		t.Fatalf("Close() error = %v", err)
	}

	reopened, err := NewBadgerStateStore(dir)
	if err != nil {
		t.Fatalf("reopen error = %v", err)
	}
	defer reopened.Close()

	snaps, err := reopened.LoadAll(ctx)
	if err != nil || len(snaps) != 1 || snaps[0].UserID != "alice" {
		t.Errorf("LoadAll() after reopen = %+v, %v", snaps, err)
	}
}
