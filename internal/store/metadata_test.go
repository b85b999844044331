// Cratedigger - Record Collection Tracker
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/cratedigger

package store

import (
	"context"
	"errors"
	"testing"
	"time"
)

func TestEntityMetadata_PutAndGet(t *testing.T) {
	s, clock := setupTestStore(t)
	ctx := context.Background()

	meta := ArtistMetadata{
		Name:        "Genesis",
		DataSource:  "lastfm",
		Tags:        []string{"progressive rock", "rock"},
		Country:     "GB",
		Labels:      []string{"Charisma"},
		Year:        1967,
		Popularity:  2500000,
		ExternalIDs: map[string]string{"musicbrainz": "8e3fcd7d"},
	}
	if err := s.PutEntityMetadata(ctx, meta); err != nil {
		t.Fatalf("PutEntityMetadata() error = %v", err)
	}

	got, err := s.GetEntityMetadata(ctx, "genesis", "lastfm")
	if err != nil || got == nil {
		t.Fatalf("GetEntityMetadata() = %v, %v", got, err)
	}
	if got.Country != "GB" || got.Year != 1967 || len(got.Tags) != 2 || got.ExternalIDs["musicbrainz"] != "8e3fcd7d" {
		t.Errorf("GetEntityMetadata() = %+v", got)
	}
	if !got.UpdatedAt.Equal(clock.Now()) {
		t.Errorf("UpdatedAt = %v, want %v", got.UpdatedAt, clock.Now())
	}

	if other, _ := s.GetEntityMetadata(ctx, "Genesis", "discogs"); other != nil {
		t.Error("metadata is per data source")
	}

	clock.Advance(31 * 24 * time.Hour)
	if stale, _ := s.GetEntityMetadata(ctx, "Genesis", "lastfm"); stale != nil {
		t.Error("metadata older than the TTL should not be returned")
	}
}

func TestEntityMetadata_RequiresName(t *testing.T) {
	s, _ := setupTestStore(t)

	err := s.PutEntityMetadata(context.Background(), ArtistMetadata{DataSource: "lastfm"})
	var se *StoreError
	if !errors.As(err, &se) {
		t.Errorf("error = %v, want *StoreError", err)
	}
}
