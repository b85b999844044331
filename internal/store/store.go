// Cratedigger - Record Collection Tracker
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/cratedigger

package store

import (
	"context"
	"strings"
	"time"
)

// SimilarityEdge is a directed similarity between two artists as reported
// by one data source.
type SimilarityEdge struct {
	SourceArtist string    `json:"source_artist"`
	TargetArtist string    `json:"target_artist"`
	Score        float64   `json:"score"`
	DataSource   string    `json:"data_source"`
	UpdatedAt    time.Time `json:"updated_at"`
}

// ArtistMetadata is cached provider metadata for one artist.
type ArtistMetadata struct {
	Name        string            `json:"name"`
	DataSource  string            `json:"data_source"`
	Tags        []string          `json:"tags,omitempty"`
	Country     string            `json:"country,omitempty"`
	Labels      []string          `json:"labels,omitempty"`
	Year        int               `json:"year,omitempty"`
	Popularity  int64             `json:"popularity,omitempty"`
	ExternalIDs map[string]string `json:"external_ids,omitempty"`
	// Partial marks a record holding only tag-chart membership. Readers
	// still need the provider's full entity info.
	Partial   bool      `json:"partial,omitempty"`
	UpdatedAt time.Time `json:"updated_at"`
}

// OwnedArtist is one artist of a user's collection.
type OwnedArtist struct {
	Name  string `json:"name"`
	Count int    `json:"count"`
}

// CacheEntry is a cached recommendation result.
type CacheEntry struct {
	Key       string
	Payload   []byte
	CachedAt  time.Time
	ExpiresAt time.Time
	Stale     bool
	ViewCount int
}

// Usable reports whether the entry may be served at now.
func (e *CacheEntry) Usable(now time.Time) bool {
	return !e.Stale && now.Before(e.ExpiresAt)
}

// CacheStore is the durable cache behind the recommendation engine.
// Lookups that find nothing return empty results and a nil error.
type CacheStore interface {
	// GetSimilarity returns fresh edges out of source from one data source,
	// highest score first.
	GetSimilarity(ctx context.Context, source, dataSource string) ([]SimilarityEdge, error)

	// GetSimilarityBatch returns fresh edges out of each source with a
	// score of at least minScore, from any data source. The map is keyed by
	// ArtistKey of the source.
	GetSimilarityBatch(ctx context.Context, sources []string, minScore float64) (map[string][]SimilarityEdge, error)

	PutSimilarity(ctx context.Context, edges []SimilarityEdge) error

	// GetEntityMetadata returns nil when nothing fresh is cached.
	GetEntityMetadata(ctx context.Context, name, dataSource string) (*ArtistMetadata, error)
	PutEntityMetadata(ctx context.Context, meta ArtistMetadata) error

	// GetUserRecommendations returns a usable entry and increments its view
	// count, or nil when the entry is missing, stale or expired.
	GetUserRecommendations(ctx context.Context, userID, fingerprint string) (*CacheEntry, error)

	// PutUserRecommendations stores payload for ttl. A non-positive ttl uses
	// the store default.
	PutUserRecommendations(ctx context.Context, userID, fingerprint string, payload []byte, ttl time.Duration) error

	// InvalidateUser marks every cached result of the user stale without
	// deleting it.
	InvalidateUser(ctx context.Context, userID string) error

	// SyncOwnedArtists replaces the user's owned artists.
	SyncOwnedArtists(ctx context.Context, userID string, artists []OwnedArtist) error
	OwnedArtists(ctx context.Context, userID string) ([]OwnedArtist, error)

	Close() error
}

// ArtistKey normalizes an artist name for matching: trimmed, lower-cased,
// inner whitespace collapsed.
func ArtistKey(name string) string {
	return strings.Join(strings.Fields(strings.ToLower(name)), " ")
}
