// Cratedigger - Record Collection Tracker
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/cratedigger

package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/structs"
	"github.com/knadh/koanf/v2"
)

// DefaultConfigPaths lists the paths searched for a config file, in order.
var DefaultConfigPaths = []string{
	"cratedigger.yaml",
	"cratedigger.yml",
	"/etc/cratedigger/config.yaml",
	"/etc/cratedigger/config.yml",
}

// ConfigPathEnvVar overrides the config file path.
const ConfigPathEnvVar = "CONFIG_PATH"

// EnvPrefix is stripped from environment variables before mapping.
// A double underscore separates nesting levels:
//
//	CRATEDIGGER_PROVIDERS__LASTFM__API_KEY -> providers.lastfm.api_key
const EnvPrefix = "CRATEDIGGER_"

// defaultProvider returns the shared defaults of every provider client.
func defaultProvider(baseURL string) ProviderConfig {
	return ProviderConfig{
		Enabled:        false,
		BaseURL:        baseURL,
		UserAgent:      "Cratedigger/1.0 (https://github.com/tomtom215/cratedigger)",
		MinInterval:    time.Second,
		CacheTTL:       24 * time.Hour,
		Timeout:        30 * time.Second,
		MaxRetries:     5,
		RetryBaseDelay: time.Second,
		Breaker: BreakerConfig{
			MaxRequests:  3,
			Interval:     time.Minute,
			Timeout:      2 * time.Minute,
			MinRequests:  10,
			FailureRatio: 0.6,
		},
	}
}

// defaultConfig returns the built-in defaults. They are loaded first and
// then overridden by the config file and the environment.
func defaultConfig() *Config {
	return &Config{
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
		},
		Store: StoreConfig{
			Path:              "cratedigger.duckdb",
			MaxMemory:         "1GB",
			SimilarityTTL:     7 * 24 * time.Hour,
			MetadataTTL:       30 * 24 * time.Hour,
			RecommendationTTL: 24 * time.Hour,
		},
		Providers: ProvidersConfig{
			LastFM:      defaultProvider("https://ws.audioscrobbler.com/2.0/"),
			MusicBrainz: defaultProvider("https://musicbrainz.org/ws/2/"),
			Discogs:     defaultProvider("https://api.discogs.com/"),
		},
		Recommend: RecommendConfig{
			WeightArtistProximity:  0.35,
			WeightTagSimilarity:    0.30,
			WeightEraFit:           0.15,
			WeightLabelSceneFit:    0.08,
			WeightMoodFit:          0.07,
			WeightExternalSignal:   0.05,
			MinimumScore:           0.1,
			ProfileTopN:            20,
			EclecticThreshold:      0.25,
			MinItems:               1,
			TopArtists:             10,
			SignificantArtistCount: 2,
			TopGenres:              5,
			SignificantGenreCount:  3,
			SimilarLimit:           20,
			TagLimit:               30,
			EnrichLimit:            5,
			Concurrency:            1,
			DataSource:             "lastfm",
			ListSize:               20,
			TopPicksSize:           10,
			TopPicksMinScore:       0.5,
			HiddenGemMinScore:      0.6,
			HiddenGemMaxPopularity: 50000,
		},
		Graph: GraphConfig{
			Enabled:       true,
			Damping:       0.85,
			MaxIterations: 20,
			Threshold:     1e-4,
			MinSimilarity: 0.3,
			MaxHops:       3,
			MaxResults:    50,
		},
		Warmer: WarmerConfig{
			Enabled:       true,
			UserID:        "default",
			IdleThreshold: 30 * time.Second,
			TickInterval:  5 * time.Second,
			BaseDelay:     time.Minute,
			MaxRetries:    3,
			PersistEvery:  10,
			StateMaxAge:   24 * time.Hour,
			MaxQueue:      500,
		},
		Supervisor: SupervisorConfig{
			FailureThreshold: 5.0,
			FailureDecay:     30.0,
			FailureBackoff:   15 * time.Second,
			ShutdownTimeout:  10 * time.Second,
		},
		Refresh: RefreshConfig{
			Users:    []string{"default"},
			Interval: 6 * time.Hour,
			Timeout:  10 * time.Minute,
		},
		Server: ServerConfig{
			RateLimitRequests: 60,
			RateLimitWindow:   time.Minute,
			RequestTimeout:    2 * time.Minute,
			ShutdownTimeout:   10 * time.Second,
		},
	}
}

// Default returns a copy of the built-in defaults.
func Default() *Config {
	return defaultConfig()
}

// Load builds the configuration from three layers, lowest priority first:
//
//  1. Defaults compiled into the binary
//  2. An optional YAML file (CONFIG_PATH or DefaultConfigPaths)
//  3. CRATEDIGGER_* environment variables
//
// The result is validated before it is returned.
func Load() (*Config, error) {
	return LoadFrom(findConfigFile())
}

// LoadFrom is Load with an explicit config file path. An empty path skips
// the file layer.
func LoadFrom(configPath string) (*Config, error) {
	k := koanf.New(".")

	if err := k.Load(structs.Provider(defaultConfig(), "koanf"), nil); err != nil {
		return nil, fmt.Errorf("failed to load defaults: %w", err)
	}

	if configPath != "" {
		if err := k.Load(file.Provider(configPath), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("failed to load config file %s: %w", configPath, err)
		}
	}

	if err := k.Load(env.Provider(EnvPrefix, ".", envTransformFunc), nil); err != nil {
		return nil, fmt.Errorf("failed to load environment variables: %w", err)
	}

	cfg := &Config{}
	if err := k.Unmarshal("", cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal configuration: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	return cfg, nil
}

// findConfigFile returns the first existing config file, or "".
func findConfigFile() string {
	if envPath := os.Getenv(ConfigPathEnvVar); envPath != "" {
		if _, err := os.Stat(envPath); err == nil {
			return envPath
		}
	}

	for _, path := range DefaultConfigPaths {
		if _, err := os.Stat(path); err == nil {
			return path
		}
	}

	return ""
}

// envTransformFunc maps CRATEDIGGER_GRAPH__MAX_HOPS to graph.max_hops.
func envTransformFunc(key string) string {
	key = strings.TrimPrefix(key, EnvPrefix)
	key = strings.ToLower(key)
	return strings.ReplaceAll(key, "__", ".")
}
