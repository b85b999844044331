// Cratedigger - Record Collection Tracker
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/cratedigger

package recommend

import (
	"errors"
	"fmt"
	"time"

	"github.com/tomtom215/cratedigger/internal/recommend/graph"
	"github.com/tomtom215/cratedigger/internal/validation"
)

// OwnedItem is one record in a user's collection. Either Artist or Title
// must be set; everything else is optional.
type OwnedItem struct {
	Artist      string            `json:"artist" validate:"required_without=Title"`
	Title       string            `json:"title" validate:"required_without=Artist"`
	Year        int               `json:"year,omitempty" validate:"gte=0,lte=3000"`
	Genres      []string          `json:"genres,omitempty"`
	Moods       []string          `json:"moods,omitempty"`
	Label       string            `json:"label,omitempty"`
	Country     string            `json:"country,omitempty"`
	ExternalIDs map[string]string `json:"external_ids,omitempty"`
}

// Validate reports malformed records.
func (o *OwnedItem) Validate() error {
	return validation.ValidateStruct(o)
}

// ArtistCount is an artist with the number of owned items by it.
type ArtistCount struct {
	Name  string `json:"name"`
	Count int    `json:"count"`
}

// Share is a profile dimension value with its count and fraction of the
// collection.
type Share struct {
	Key   string  `json:"key"`
	Count int     `json:"count"`
	Pct   float64 `json:"pct"`
}

// UserProfile summarizes a collection.
type UserProfile struct {
	TopArtists   []ArtistCount `json:"top_artists"`
	TopGenres    []Share       `json:"top_genres"`
	TopEras      []Share       `json:"top_eras"`
	TopLabels    []Share       `json:"top_labels"`
	TopMoods     []Share       `json:"top_moods"`
	TopCountries []Share       `json:"top_countries"`
	IsEclectic   bool          `json:"is_eclectic"`
	TotalItems   int           `json:"total_items"`
}

// CandidateType discriminates the Candidate variants.
type CandidateType string

// Candidate variants.
const (
	CandidateSimilarArtist  CandidateType = "similar_artist"
	CandidateGenreMatch     CandidateType = "genre_match"
	CandidateGraphDiscovery CandidateType = "graph_discovery"
)

// CandidateSource records a second route that produced an already pooled
// candidate. Additional sources are reported but not scored.
type CandidateSource struct {
	Type   CandidateType `json:"type"`
	Source string        `json:"source"`
}

// Candidate is an item or artist that may be recommended. The fields below
// the common block belong to one variant each, selected by Type.
type Candidate struct {
	Type        CandidateType `json:"type" validate:"oneof=similar_artist genre_match graph_discovery"`
	Fingerprint string        `json:"fingerprint" validate:"required"`
	Artist      string        `json:"artist" validate:"required"`
	Title       string        `json:"title,omitempty"`
	Year        int           `json:"year,omitempty"`
	Genres      []string      `json:"genres,omitempty"`
	Moods       []string      `json:"moods,omitempty"`
	Label       string        `json:"label,omitempty"`
	Country     string        `json:"country,omitempty"`
	Popularity  int64         `json:"popularity,omitempty"`
	Rank        int           `json:"rank,omitempty" validate:"required_if=Type genre_match"`
	ExternalID  string        `json:"external_id,omitempty"`

	AdditionalSources []CandidateSource `json:"additional_sources,omitempty"`

	// SimilarArtist
	SourceArtist string  `json:"source_artist,omitempty" validate:"required_if=Type similar_artist"`
	Similarity   float64 `json:"similarity,omitempty" validate:"required_if=Type similar_artist,gte=0,lte=1"`

	// GenreMatch
	SourceTag string `json:"source_tag,omitempty" validate:"required_if=Type genre_match"`

	// GraphDiscovery. PPRScore is the display score scaled to (0,1].
	PPRScore       float64                `json:"ppr_score,omitempty" validate:"required_if=Type graph_discovery,gte=0,lte=1"`
	DisplayScore   int                    `json:"display_score,omitempty"`
	ConnectedSeeds []graph.SeedConnection `json:"connected_seeds,omitempty"`
}

// errNoConnectedSeeds is returned for graph discoveries without a seed path.
var errNoConnectedSeeds = errors.New("ConnectedSeeds is required when Type graph_discovery")

// Validate enforces the per-variant required fields.
func (c *Candidate) Validate() error {
	if err := validation.ValidateStruct(c); err != nil {
		return err
	}
	if c.Type == CandidateGraphDiscovery && len(c.ConnectedSeeds) == 0 {
		return errNoConnectedSeeds
	}
	return nil
}

// addSource records another route to c unless it is already recorded.
func (c *Candidate) addSource(src CandidateSource) {
	for _, s := range c.AdditionalSources {
		if s == src {
			return
		}
	}
	c.AdditionalSources = append(c.AdditionalSources, src)
}

// primarySource names the route that produced c.
func (c *Candidate) primarySource() CandidateSource {
	switch c.Type {
	case CandidateSimilarArtist:
		return CandidateSource{Type: c.Type, Source: c.SourceArtist}
	case CandidateGenreMatch:
		return CandidateSource{Type: c.Type, Source: c.SourceTag}
	default:
		return CandidateSource{Type: c.Type, Source: graph.SourceName}
	}
}

// FactorScores holds the per-factor values in [0,1] before weighting.
type FactorScores struct {
	ArtistProximity float64 `json:"artist_proximity"`
	TagSimilarity   float64 `json:"tag_similarity"`
	EraFit          float64 `json:"era_fit"`
	LabelSceneFit   float64 `json:"label_scene_fit"`
	MoodFit         float64 `json:"mood_fit"`
	ExternalSignal  float64 `json:"external_signal"`
}

// ScoredResult is a candidate with its final score and explanation.
type ScoredResult struct {
	Candidate   Candidate    `json:"candidate"`
	Score       float64      `json:"score"`
	Factors     FactorScores `json:"factors"`
	Explanation []string     `json:"explanation"`
	Confidence  float64      `json:"confidence"`
}

// FetchMetadata describes the provider traffic of one Fetch.
type FetchMetadata struct {
	RequestCounts map[string]int `json:"request_counts"`
	ErrorCounts   map[string]int `json:"error_counts"`
	StoreHits     int            `json:"store_hits"`
	DurationMS    int64          `json:"duration_ms"`
}

// FetchResult is the candidate pool produced by the DataFetcher.
type FetchResult struct {
	Candidates []Candidate   `json:"candidates"`
	Metadata   FetchMetadata `json:"metadata"`
}

// GraphSummary describes the graph discovery step of a run.
type GraphSummary struct {
	Source       string `json:"source"`
	Iterations   int    `json:"iterations"`
	Discoveries  int    `json:"discoveries"`
	NoCandidates bool   `json:"no_candidates"`
	Reason       string `json:"reason,omitempty"`
}

// ResultMetadata describes how a result was produced.
type ResultMetadata struct {
	RequestID      string         `json:"request_id"`
	CacheHit       bool           `json:"cache_hit"`
	LatencyMS      int64          `json:"latency_ms"`
	Fetch          *FetchMetadata `json:"fetch,omitempty"`
	CandidateCount int            `json:"candidate_count"`
	Fingerprint    string         `json:"collection_fingerprint,omitempty"`
	GeneratedAt    time.Time      `json:"generated_at"`
}

// Result reasons.
const (
	ReasonInvalidInput       = "invalid_input"
	ReasonCollectionTooSmall = "collection_too_small"
	ReasonCanceled           = "canceled"
	ReasonUnknownUser        = "unknown_user"
	ReasonCatalogUnavailable = "catalog_unavailable"
)

// ErrUnknownUser is returned by a Catalog that has no record of the user.
var ErrUnknownUser = errors.New("unknown user")

// RecommendationResult is the engine's answer. It is returned instead of an
// error; Success=false carries Reason and Error.
type RecommendationResult struct {
	Success  bool                      `json:"success"`
	Reason   string                    `json:"reason,omitempty"`
	Error    string                    `json:"error,omitempty"`
	Lists    map[string][]ScoredResult `json:"lists"`
	Profile  *UserProfile              `json:"profile,omitempty"`
	Graph    *GraphSummary             `json:"graph,omitempty"`
	Metadata ResultMetadata            `json:"metadata"`
}

// Options tune a single GenerateRecommendations call.
type Options struct {
	// ForceRefresh bypasses the per-user result cache.
	ForceRefresh bool
	// Background marks a scheduled run. It does not count as user
	// activity, so it never pauses the warmer.
	Background bool
}

// InvalidItemError reports a malformed owned item.
type InvalidItemError struct {
	Index int
	Err   error
}

func (e *InvalidItemError) Error() string {
	return fmt.Sprintf("owned item %d: %v", e.Index, e.Err)
}

func (e *InvalidItemError) Unwrap() error { return e.Err }

// ProfileError reports a collection that cannot be profiled.
type ProfileError struct {
	TotalItems int
	MinItems   int
	// NoArtists is set when no item names an artist.
	NoArtists bool
}

func (e *ProfileError) Error() string {
	if e.NoArtists && e.TotalItems >= e.MinItems {
		return fmt.Sprintf("collection too small: none of %d items names an artist", e.TotalItems)
	}
	return fmt.Sprintf("collection too small: %d items, need at least %d", e.TotalItems, e.MinItems)
}
