// Cratedigger - Record Collection Tracker
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/cratedigger

package config

import "time"

// Config is the full process configuration.
type Config struct {
	Logging    LoggingConfig    `koanf:"logging"`
	Store      StoreConfig      `koanf:"store"`
	Providers  ProvidersConfig  `koanf:"providers"`
	Recommend  RecommendConfig  `koanf:"recommend"`
	Graph      GraphConfig      `koanf:"graph"`
	Warmer     WarmerConfig     `koanf:"warmer"`
	Supervisor SupervisorConfig `koanf:"supervisor"`
	Catalog    CatalogConfig    `koanf:"catalog"`
	Refresh    RefreshConfig    `koanf:"refresh"`
	Server     ServerConfig     `koanf:"server"`
}

// LoggingConfig configures the zerolog logger.
type LoggingConfig struct {
	Level  string `koanf:"level" validate:"oneof=trace debug info warn warning error disabled"`
	Format string `koanf:"format" validate:"oneof=json console"`
	Caller bool   `koanf:"caller"`
}

// StoreConfig configures the DuckDB cache store.
type StoreConfig struct {
	// Path is the database file. ":memory:" keeps everything in process.
	Path string `koanf:"path" validate:"required"`

	// MaxMemory is passed to DuckDB's memory_limit setting, e.g. "1GB".
	MaxMemory string `koanf:"max_memory"`

	// Threads caps DuckDB worker threads. 0 lets DuckDB decide.
	Threads int `koanf:"threads" validate:"gte=0"`

	SimilarityTTL     time.Duration `koanf:"similarity_ttl" validate:"gt=0"`
	MetadataTTL       time.Duration `koanf:"metadata_ttl" validate:"gt=0"`
	RecommendationTTL time.Duration `koanf:"recommendation_ttl" validate:"gt=0"`
}

// ProvidersConfig groups the metadata provider clients.
type ProvidersConfig struct {
	LastFM      ProviderConfig `koanf:"lastfm"`
	MusicBrainz ProviderConfig `koanf:"musicbrainz"`
	Discogs     ProviderConfig `koanf:"discogs"`
}

// ProviderConfig configures one metadata provider client.
type ProviderConfig struct {
	Enabled bool   `koanf:"enabled"`
	BaseURL string `koanf:"base_url" validate:"required_if=Enabled true,omitempty,url"`

	// APIKey is the Last.fm API key or the Discogs personal token.
	APIKey    string `koanf:"api_key"`
	UserAgent string `koanf:"user_agent"`

	// MinInterval is the minimum spacing between two requests.
	MinInterval time.Duration `koanf:"min_interval" validate:"gte=0"`
	CacheTTL    time.Duration `koanf:"cache_ttl" validate:"gte=0"`
	Timeout     time.Duration `koanf:"timeout" validate:"gt=0"`

	// MaxRetries bounds in-client retries of HTTP 429 responses.
	MaxRetries     int           `koanf:"max_retries" validate:"gte=0,lte=10"`
	RetryBaseDelay time.Duration `koanf:"retry_base_delay" validate:"gt=0"`

	Breaker BreakerConfig `koanf:"breaker"`
}

// BreakerConfig configures the circuit breaker around a provider.
type BreakerConfig struct {
	MaxRequests  uint32        `koanf:"max_requests" validate:"gte=1"`
	Interval     time.Duration `koanf:"interval" validate:"gte=0"`
	Timeout      time.Duration `koanf:"timeout" validate:"gt=0"`
	MinRequests  uint32        `koanf:"min_requests" validate:"gte=1"`
	FailureRatio float64       `koanf:"failure_ratio" validate:"gt=0,lte=1"`
}

// RecommendConfig carries the engine's heuristics. Every threshold and weight
// here is a tunable default rather than a derived constant.
type RecommendConfig struct {
	// Scoring weights.
	WeightArtistProximity float64 `koanf:"weight_artist_proximity" validate:"gte=0,lte=1"`
	WeightTagSimilarity   float64 `koanf:"weight_tag_similarity" validate:"gte=0,lte=1"`
	WeightEraFit          float64 `koanf:"weight_era_fit" validate:"gte=0,lte=1"`
	WeightLabelSceneFit   float64 `koanf:"weight_label_scene_fit" validate:"gte=0,lte=1"`
	WeightMoodFit         float64 `koanf:"weight_mood_fit" validate:"gte=0,lte=1"`
	WeightExternalSignal  float64 `koanf:"weight_external_signal" validate:"gte=0,lte=1"`

	MinimumScore float64 `koanf:"minimum_score" validate:"gte=0,lt=1"`

	// Profiling.
	ProfileTopN       int     `koanf:"profile_top_n" validate:"gte=1"`
	EclecticThreshold float64 `koanf:"eclectic_threshold" validate:"gt=0,lte=1"`
	MinItems          int     `koanf:"min_items" validate:"gte=1"`

	// Fetching.
	TopArtists             int    `koanf:"top_artists" validate:"gte=1"`
	SignificantArtistCount int    `koanf:"significant_artist_count" validate:"gte=1"`
	TopGenres              int    `koanf:"top_genres" validate:"gte=0"`
	SignificantGenreCount  int    `koanf:"significant_genre_count" validate:"gte=1"`
	SimilarLimit           int    `koanf:"similar_limit" validate:"gte=1,lte=100"`
	TagLimit               int    `koanf:"tag_limit" validate:"gte=1,lte=100"`
	EnrichLimit            int    `koanf:"enrich_limit" validate:"gte=0"`
	Concurrency            int    `koanf:"concurrency" validate:"gte=1,lte=16"`
	DataSource             string `koanf:"data_source" validate:"required"`

	// List assembly.
	ListSize               int     `koanf:"list_size" validate:"gte=1"`
	TopPicksSize           int     `koanf:"top_picks_size" validate:"gte=1"`
	TopPicksMinScore       float64 `koanf:"top_picks_min_score" validate:"gte=0,lte=1"`
	HiddenGemMinScore      float64 `koanf:"hidden_gem_min_score" validate:"gte=0,lte=1"`
	HiddenGemMaxPopularity int64   `koanf:"hidden_gem_max_popularity" validate:"gte=0"`
}

// GraphConfig configures Personalized PageRank discovery.
type GraphConfig struct {
	Enabled       bool    `koanf:"enabled"`
	Damping       float64 `koanf:"damping" validate:"gt=0,lt=1"`
	MaxIterations int     `koanf:"max_iterations" validate:"gte=1,lte=1000"`
	Threshold     float64 `koanf:"threshold" validate:"gt=0"`
	MinSimilarity float64 `koanf:"min_similarity" validate:"gte=0,lte=1"`
	MaxHops       int     `koanf:"max_hops" validate:"gte=1,lte=5"`
	MaxResults    int     `koanf:"max_results" validate:"gte=1"`

	// FallbackOnly skips the store-side subgraph query.
	FallbackOnly bool `koanf:"fallback_only"`
}

// WarmerConfig configures the background cache warmer.
type WarmerConfig struct {
	Enabled bool `koanf:"enabled"`

	// UserID is the collection the warmer works for in the single-user host.
	UserID string `koanf:"user_id"`

	IdleThreshold time.Duration `koanf:"idle_threshold" validate:"gt=0"`
	TickInterval  time.Duration `koanf:"tick_interval" validate:"gt=0"`
	BaseDelay     time.Duration `koanf:"base_delay" validate:"gt=0"`
	MaxRetries    int           `koanf:"max_retries" validate:"gte=1"`
	PersistEvery  int           `koanf:"persist_every" validate:"gte=1"`
	StateMaxAge   time.Duration `koanf:"state_max_age" validate:"gt=0"`
	MaxQueue      int           `koanf:"max_queue" validate:"gte=0"`

	// StatePath is the Badger directory. Empty keeps state in memory.
	StatePath string `koanf:"state_path"`
}

// SupervisorConfig configures the suture tree.
type SupervisorConfig struct {
	FailureThreshold float64       `koanf:"failure_threshold" validate:"gt=0"`
	FailureDecay     float64       `koanf:"failure_decay" validate:"gt=0"`
	FailureBackoff   time.Duration `koanf:"failure_backoff" validate:"gt=0"`
	ShutdownTimeout  time.Duration `koanf:"shutdown_timeout" validate:"gt=0"`
}

// CatalogConfig locates the owned-items JSON file.
type CatalogConfig struct {
	Path string `koanf:"path"`
}

// RefreshConfig configures periodic regeneration of cached results.
type RefreshConfig struct {
	Enabled      bool          `koanf:"enabled"`
	Users        []string      `koanf:"users"`
	Interval     time.Duration `koanf:"interval" validate:"gt=0"`
	Timeout      time.Duration `koanf:"timeout" validate:"gt=0"`
	RunOnStartup bool          `koanf:"run_on_startup"`
}

// ServerConfig configures the HTTP API.
type ServerConfig struct {
	// Addr is the listen address. Empty disables the API.
	Addr              string        `koanf:"addr"`
	CORSOrigins       []string      `koanf:"cors_origins"`
	RateLimitRequests int           `koanf:"rate_limit_requests" validate:"gte=0"`
	RateLimitWindow   time.Duration `koanf:"rate_limit_window" validate:"gt=0"`
	RequestTimeout    time.Duration `koanf:"request_timeout" validate:"gt=0"`
	ShutdownTimeout   time.Duration `koanf:"shutdown_timeout" validate:"gt=0"`
}

// Clone returns a deep copy of c.
func (c *Config) Clone() *Config {
	cp := *c
	cp.Refresh.Users = append([]string(nil), c.Refresh.Users...)
	cp.Server.CORSOrigins = append([]string(nil), c.Server.CORSOrigins...)
	return &cp
}
