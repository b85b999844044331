// Cratedigger - Record Collection Tracker
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/cratedigger

package provider

import (
	"context"
	"errors"
)

// Sentinel errors shared by all providers.
var (
	// ErrUnsupported is returned by providers that do not offer a capability.
	ErrUnsupported = errors.New("operation not supported by provider")

	// ErrNotFound is returned when the provider knows nothing about the entity.
	ErrNotFound = errors.New("entity not found")

	// ErrQueueClosed is returned for requests submitted after Close.
	ErrQueueClosed = errors.New("request queue closed")
)

// SimilarEntity is one result of SimilarTo.
type SimilarEntity struct {
	Name       string  `json:"name"`
	Score      float64 `json:"score"`
	ExternalID string  `json:"external_id,omitempty"`
}

// TaggedItem is one result of TopForTag: a release popular under a tag.
type TaggedItem struct {
	Name       string `json:"name"`
	ArtistName string `json:"artist_name"`
	Popularity int64  `json:"popularity,omitempty"`
	Rank       int    `json:"rank"`
	ExternalID string `json:"external_id,omitempty"`
}

// EntityMetadata describes an artist as seen by one or more providers.
type EntityMetadata struct {
	Name        string            `json:"name"`
	Tags        []string          `json:"tags,omitempty"`
	Country     string            `json:"country,omitempty"`
	Labels      []string          `json:"labels,omitempty"`
	Year        int               `json:"year,omitempty"`
	Popularity  int64             `json:"popularity,omitempty"`
	ExternalIDs map[string]string `json:"external_ids,omitempty"`
	Source      string            `json:"source"`
}

// IsEmpty reports whether m carries nothing beyond the name.
func (m *EntityMetadata) IsEmpty() bool {
	return len(m.Tags) == 0 && m.Country == "" && len(m.Labels) == 0 &&
		m.Year == 0 && m.Popularity == 0 && len(m.ExternalIDs) == 0
}

// MetadataProvider is the contract every external metadata source satisfies.
// Implementations pace their own requests and cache responses; callers only
// decide whether to retry a failed call.
type MetadataProvider interface {
	// Name identifies the provider, e.g. "lastfm". It is also the
	// data source recorded on similarity edges.
	Name() string

	// SimilarTo returns up to limit artists similar to name, most similar first.
	SimilarTo(ctx context.Context, name string, limit int) ([]SimilarEntity, error)

	// TopForTag returns up to limit releases popular under tag, best ranked first.
	TopForTag(ctx context.Context, tag string, limit int) ([]TaggedItem, error)

	// EntityInfo returns descriptive metadata for an artist.
	EntityInfo(ctx context.Context, name string) (EntityMetadata, error)
}
