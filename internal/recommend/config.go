// Cratedigger - Record Collection Tracker
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/cratedigger

package recommend

import (
	"fmt"
	"time"

	"github.com/tomtom215/cratedigger/internal/provider"
)

// Config contains all configuration for the recommendation engine.
type Config struct {
	// Weights defines the relative contribution of each scoring factor.
	// Weights are normalized at runtime, so they don't need to sum to 1.0.
	Weights Weights `json:"weights"`

	// MinimumScore rejects candidates scoring below it.
	// Default: 0.1.
	MinimumScore float64 `json:"minimum_score"`

	Profile ProfileConfig `json:"profile"`
	Fetch   FetchConfig   `json:"fetch"`
	Lists   ListConfig    `json:"lists"`

	// RecommendationTTL is how long a computed result is served from the
	// per-user cache. Zero uses the store default.
	RecommendationTTL time.Duration `json:"recommendation_ttl"`
}

// Weights holds the scoring factor weights.
type Weights struct {
	ArtistProximity float64 `json:"artist_proximity"`
	TagSimilarity   float64 `json:"tag_similarity"`
	EraFit          float64 `json:"era_fit"`
	LabelSceneFit   float64 `json:"label_scene_fit"`
	MoodFit         float64 `json:"mood_fit"`
	ExternalSignal  float64 `json:"external_signal"`
}

// Sum returns the total weight.
func (w Weights) Sum() float64 {
	return w.ArtistProximity + w.TagSimilarity + w.EraFit + w.LabelSceneFit + w.MoodFit + w.ExternalSignal
}

// Normalize returns weights scaled to sum to 1.0. All-zero weights fall
// back to the defaults.
func (w Weights) Normalize() Weights {
	total := w.Sum()
	if total == 0 {
		return DefaultWeights()
	}
	return Weights{
		ArtistProximity: w.ArtistProximity / total,
		TagSimilarity:   w.TagSimilarity / total,
		EraFit:          w.EraFit / total,
		LabelSceneFit:   w.LabelSceneFit / total,
		MoodFit:         w.MoodFit / total,
		ExternalSignal:  w.ExternalSignal / total,
	}
}

// DefaultWeights returns the default factor weights.
func DefaultWeights() Weights {
	return Weights{
		ArtistProximity: 0.35,
		TagSimilarity:   0.30,
		EraFit:          0.15,
		LabelSceneFit:   0.08,
		MoodFit:         0.07,
		ExternalSignal:  0.05,
	}
}

// ProfileConfig controls collection profiling.
type ProfileConfig struct {
	// TopN truncates every profile dimension.
	// Default: 20.
	TopN int `json:"top_n"`

	// EclecticThreshold marks a profile eclectic when its top genre share
	// is below it.
	// Default: 0.25.
	EclecticThreshold float64 `json:"eclectic_threshold"`

	// MinItems is the smallest collection the engine will profile.
	// Default: 1.
	MinItems int `json:"min_items"`
}

// FetchConfig controls candidate gathering.
type FetchConfig struct {
	// TopArtists is how many profile artists are expanded via similarity.
	// It is also the "top artist" window for the proximity boost.
	// Default: 10.
	TopArtists int `json:"top_artists"`

	// SignificantArtistCount is the minimum owned count for expansion.
	// Default: 2.
	SignificantArtistCount int `json:"significant_artist_count"`

	// TopGenres is how many profile genres are expanded via tag charts.
	// Default: 5.
	TopGenres int `json:"top_genres"`

	// SignificantGenreCount is the minimum owned count for tag expansion.
	// Default: 3.
	SignificantGenreCount int `json:"significant_genre_count"`

	SimilarLimit int `json:"similar_limit"` // Default: 20.
	TagLimit     int `json:"tag_limit"`     // Default: 30.

	// EnrichLimit is how many similar artists per source get EntityInfo.
	// Default: 5.
	EnrichLimit int `json:"enrich_limit"`

	// Concurrency bounds the fan-out over artists and tags.
	// Default: 1.
	Concurrency int `json:"concurrency"`

	// DataSource labels edges and metadata written to the store.
	// Default: "lastfm".
	DataSource string `json:"data_source"`
}

// ListConfig controls list assembly.
type ListConfig struct {
	ListSize               int     `json:"list_size"`
	TopPicksSize           int     `json:"top_picks_size"`
	TopPicksMinScore       float64 `json:"top_picks_min_score"`
	HiddenGemMinScore      float64 `json:"hidden_gem_min_score"`
	HiddenGemMaxPopularity int64   `json:"hidden_gem_max_popularity"`
}

// DefaultConfig returns a Config with sensible defaults.
func DefaultConfig() Config {
	return Config{
		Weights:      DefaultWeights(),
		MinimumScore: 0.1,
		Profile: ProfileConfig{
			TopN:              20,
			EclecticThreshold: 0.25,
			MinItems:          1,
		},
		Fetch: FetchConfig{
			TopArtists:             10,
			SignificantArtistCount: 2,
			TopGenres:              5,
			SignificantGenreCount:  3,
			SimilarLimit:           20,
			TagLimit:               30,
			EnrichLimit:            5,
			Concurrency:            1,
			DataSource:             provider.LastFMName,
		},
		Lists: ListConfig{
			ListSize:               20,
			TopPicksSize:           10,
			TopPicksMinScore:       0.5,
			HiddenGemMinScore:      0.6,
			HiddenGemMaxPopularity: 50000,
		},
		RecommendationTTL: 24 * time.Hour,
	}
}

// Validate checks the configuration for errors.
//
//nolint:gocyclo // flat list of independent checks
func (c *Config) Validate() error {
	if c.Weights.ArtistProximity < 0 || c.Weights.TagSimilarity < 0 || c.Weights.EraFit < 0 ||
		c.Weights.LabelSceneFit < 0 || c.Weights.MoodFit < 0 || c.Weights.ExternalSignal < 0 {
		return fmt.Errorf("weights must be non-negative, got %+v", c.Weights)
	}
	if c.MinimumScore < 0 || c.MinimumScore >= 1 {
		return fmt.Errorf("minimum_score must be in [0, 1), got %f", c.MinimumScore)
	}

	if c.Profile.TopN < 1 {
		return fmt.Errorf("profile.top_n must be positive, got %d", c.Profile.TopN)
	}
	if c.Profile.EclecticThreshold <= 0 || c.Profile.EclecticThreshold > 1 {
		return fmt.Errorf("profile.eclectic_threshold must be in (0, 1], got %f", c.Profile.EclecticThreshold)
	}
	if c.Profile.MinItems < 1 {
		return fmt.Errorf("profile.min_items must be positive, got %d", c.Profile.MinItems)
	}

	if c.Fetch.TopArtists < 1 {
		return fmt.Errorf("fetch.top_artists must be positive, got %d", c.Fetch.TopArtists)
	}
	if c.Fetch.TopGenres < 0 {
		return fmt.Errorf("fetch.top_genres must be non-negative, got %d", c.Fetch.TopGenres)
	}
	if c.Fetch.SimilarLimit < 1 {
		return fmt.Errorf("fetch.similar_limit must be positive, got %d", c.Fetch.SimilarLimit)
	}
	if c.Fetch.TagLimit < 1 {
		return fmt.Errorf("fetch.tag_limit must be positive, got %d", c.Fetch.TagLimit)
	}
	if c.Fetch.EnrichLimit < 0 {
		return fmt.Errorf("fetch.enrich_limit must be non-negative, got %d", c.Fetch.EnrichLimit)
	}
	if c.Fetch.Concurrency < 1 {
		return fmt.Errorf("fetch.concurrency must be positive, got %d", c.Fetch.Concurrency)
	}
	if c.Fetch.DataSource == "" {
		return fmt.Errorf("fetch.data_source must be set")
	}

	if c.Lists.ListSize < 1 {
		return fmt.Errorf("lists.list_size must be positive, got %d", c.Lists.ListSize)
	}
	if c.Lists.TopPicksSize < 1 {
		return fmt.Errorf("lists.top_picks_size must be positive, got %d", c.Lists.TopPicksSize)
	}

	if c.RecommendationTTL < 0 {
		return fmt.Errorf("recommendation_ttl must be non-negative, got %v", c.RecommendationTTL)
	}
	return nil
}
