// Cratedigger - Record Collection Tracker
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/cratedigger

package main

import (
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/rs/zerolog"

	"github.com/tomtom215/cratedigger/internal/api"
	"github.com/tomtom215/cratedigger/internal/config"
	"github.com/tomtom215/cratedigger/internal/provider"
	"github.com/tomtom215/cratedigger/internal/recommend"
	"github.com/tomtom215/cratedigger/internal/recommend/graph"
	"github.com/tomtom215/cratedigger/internal/store"
	"github.com/tomtom215/cratedigger/internal/supervisor"
	"github.com/tomtom215/cratedigger/internal/warmer"
)

// errNoProvider is returned when every metadata provider is disabled.
var errNoProvider = errors.New("no metadata provider enabled; set providers.<name>.enabled=true")

// app holds the wired components of one process.
type app struct {
	cfg       *config.Config
	db        *store.DuckDBStore
	providers *provider.Chain
	engine    *recommend.Engine
	warmer    *warmer.Warmer
	states    warmer.StateStore
	logger    zerolog.Logger
}

// newApp opens the store and wires providers, graph discovery and the
// engine. The warmer is built only when withWarmer is set.
//
//nolint:gocritic // logger passed by value is acceptable for zerolog
func newApp(cfg *config.Config, withWarmer bool, logger zerolog.Logger) (*app, error) {
	a := &app{cfg: cfg, logger: logger}
	var err error
	defer func() {
		if err != nil {
			a.Close()
		}
	}()

	a.db, err = store.Open(buildStoreConfig(cfg.Store), store.WithLogger(logger))
	if err != nil {
		return nil, fmt.Errorf("open store: %w", err)
	}

	a.providers, err = buildProviderChain(cfg.Providers, cfg.Recommend.DataSource, logger)
	if err != nil {
		return nil, err
	}

	var opts []recommend.EngineOption
	if cfg.Graph.Enabled {
		g := graph.NewRecommender(buildGraphConfig(cfg.Graph),
			store.NewSubgraphSource(a.db), graph.NewHopSource(a.db), a.db, logger)
		opts = append(opts, recommend.WithGraph(g))
	}

	a.engine, err = recommend.NewEngine(buildEngineConfig(cfg), a.db, a.providers, logger, opts...)
	if err != nil {
		return nil, fmt.Errorf("create engine: %w", err)
	}

	if withWarmer && cfg.Warmer.Enabled {
		a.states, err = warmer.NewBadgerStateStore(cfg.Warmer.StatePath)
		if err != nil {
			return nil, fmt.Errorf("open warmer state: %w", err)
		}
		a.warmer, err = warmer.New(buildWarmerConfig(cfg.Warmer, a.providers.Name()),
			a.engine.Fetcher(), a.db, a.states, logger)
		if err != nil {
			return nil, fmt.Errorf("create warmer: %w", err)
		}
		a.engine.SetWarmer(a.warmer)
	}
	return a, nil
}

// Close releases everything newApp opened. Call it after the supervisor
// tree has stopped so the warmer has persisted its state.
func (a *app) Close() {
	if a.states != nil {
		if err := a.states.Close(); err != nil {
			a.logger.Error().Err(err).Msg("Error closing warmer state")
		}
	}
	if a.providers != nil {
		if err := a.providers.Close(); err != nil {
			a.logger.Error().Err(err).Msg("Error closing providers")
		}
	}
	if a.db != nil {
		if err := a.db.Close(); err != nil {
			a.logger.Error().Err(err).Msg("Error closing store")
		}
	}
}

// apiServer builds the HTTP server for the api layer.
func (a *app) apiServer(catalog recommend.Catalog) *http.Server {
	opts := []api.HandlerOption{
		api.WithStore(a.db),
		api.WithRequestTimeout(a.cfg.Server.RequestTimeout),
	}
	if catalog != nil {
		opts = append(opts, api.WithCatalog(catalog))
	}
	if a.warmer != nil {
		opts = append(opts, api.WithWarmer(a.warmer))
	}

	mwCfg := api.DefaultChiMiddlewareConfig()
	mwCfg.CORSAllowedOrigins = a.cfg.Server.CORSOrigins
	mwCfg.RateLimitRequests = a.cfg.Server.RateLimitRequests
	mwCfg.RateLimitWindow = a.cfg.Server.RateLimitWindow

	router := api.NewRouter(api.NewHandler(a.engine, opts...), api.NewChiMiddleware(mwCfg))
	return &http.Server{
		Addr:              a.cfg.Server.Addr,
		Handler:           router.SetupChi(),
		ReadHeaderTimeout: 10 * time.Second,
	}
}

func buildStoreConfig(c config.StoreConfig) store.Config {
	return store.Config{
		Path:              c.Path,
		MaxMemory:         c.MaxMemory,
		Threads:           c.Threads,
		SimilarityTTL:     c.SimilarityTTL,
		MetadataTTL:       c.MetadataTTL,
		RecommendationTTL: c.RecommendationTTL,
	}
}

func buildClientConfig(c config.ProviderConfig) provider.ClientConfig {
	return provider.ClientConfig{
		BaseURL:        c.BaseURL,
		APIKey:         c.APIKey,
		UserAgent:      c.UserAgent,
		MinInterval:    c.MinInterval,
		CacheTTL:       c.CacheTTL,
		Timeout:        c.Timeout,
		MaxRetries:     c.MaxRetries,
		RetryBaseDelay: c.RetryBaseDelay,
	}
}

func buildBreakerConfig(c config.BreakerConfig) provider.BreakerConfig {
	return provider.BreakerConfig{
		MaxRequests:  c.MaxRequests,
		Interval:     c.Interval,
		Timeout:      c.Timeout,
		MinRequests:  c.MinRequests,
		FailureRatio: c.FailureRatio,
	}
}

// buildProviderChain wraps every enabled provider in a circuit breaker and
// chains them with the one named primary first.
//
//nolint:gocritic // logger passed by value is acceptable for zerolog
func buildProviderChain(c config.ProvidersConfig, primary string, logger zerolog.Logger) (*provider.Chain, error) {
	candidates := []struct {
		name  string
		cfg   config.ProviderConfig
		build func(provider.ClientConfig, zerolog.Logger) provider.MetadataProvider
	}{
		{provider.LastFMName, c.LastFM, func(cc provider.ClientConfig, l zerolog.Logger) provider.MetadataProvider {
			return provider.NewLastFM(cc, l)
		}},
		{provider.MusicBrainzName, c.MusicBrainz, func(cc provider.ClientConfig, l zerolog.Logger) provider.MetadataProvider {
			return provider.NewMusicBrainz(cc, l)
		}},
		{provider.DiscogsName, c.Discogs, func(cc provider.ClientConfig, l zerolog.Logger) provider.MetadataProvider {
			return provider.NewDiscogs(cc, l)
		}},
	}

	var lead provider.MetadataProvider
	var rest []provider.MetadataProvider
	for _, cand := range candidates {
		if !cand.cfg.Enabled {
			continue
		}
		p := provider.NewCircuitBreaker(cand.build(buildClientConfig(cand.cfg), logger),
			buildBreakerConfig(cand.cfg.Breaker), logger)
		if cand.name == primary {
			lead = p
		} else {
			rest = append(rest, p)
		}
	}

	switch {
	case lead == nil && len(rest) == 0:
		return nil, errNoProvider
	case lead == nil:
		for _, p := range rest {
			if c, ok := p.(io.Closer); ok {
				_ = c.Close()
			}
		}
		return nil, fmt.Errorf("recommend.data_source %q names a disabled provider", primary)
	}
	return provider.NewChain(logger, lead, rest...), nil
}

func buildEngineConfig(cfg *config.Config) recommend.Config {
	r := cfg.Recommend
	return recommend.Config{
		Weights: recommend.Weights{
			ArtistProximity: r.WeightArtistProximity,
			TagSimilarity:   r.WeightTagSimilarity,
			EraFit:          r.WeightEraFit,
			LabelSceneFit:   r.WeightLabelSceneFit,
			MoodFit:         r.WeightMoodFit,
			ExternalSignal:  r.WeightExternalSignal,
		},
		MinimumScore: r.MinimumScore,
		Profile: recommend.ProfileConfig{
			TopN:              r.ProfileTopN,
			EclecticThreshold: r.EclecticThreshold,
			MinItems:          r.MinItems,
		},
		Fetch: recommend.FetchConfig{
			TopArtists:             r.TopArtists,
			SignificantArtistCount: r.SignificantArtistCount,
			TopGenres:              r.TopGenres,
			SignificantGenreCount:  r.SignificantGenreCount,
			SimilarLimit:           r.SimilarLimit,
			TagLimit:               r.TagLimit,
			EnrichLimit:            r.EnrichLimit,
			Concurrency:            r.Concurrency,
			DataSource:             r.DataSource,
		},
		Lists: recommend.ListConfig{
			ListSize:               r.ListSize,
			TopPicksSize:           r.TopPicksSize,
			TopPicksMinScore:       r.TopPicksMinScore,
			HiddenGemMinScore:      r.HiddenGemMinScore,
			HiddenGemMaxPopularity: r.HiddenGemMaxPopularity,
		},
		RecommendationTTL: cfg.Store.RecommendationTTL,
	}
}

func buildGraphConfig(c config.GraphConfig) graph.Config {
	g := graph.DefaultConfig()
	g.PPR = graph.PPRConfig{
		Damping:       c.Damping,
		MaxIterations: c.MaxIterations,
		Threshold:     c.Threshold,
	}
	g.MinSimilarity = c.MinSimilarity
	g.MaxHops = c.MaxHops
	g.MaxResults = c.MaxResults
	g.FallbackOnly = c.FallbackOnly
	return g
}

func buildWarmerConfig(c config.WarmerConfig, dataSource string) warmer.Config {
	w := warmer.DefaultConfig()
	w.IdleThreshold = c.IdleThreshold
	w.TickInterval = c.TickInterval
	w.BaseDelay = c.BaseDelay
	w.MaxRetries = c.MaxRetries
	w.PersistEvery = c.PersistEvery
	w.StateMaxAge = c.StateMaxAge
	w.MaxQueue = c.MaxQueue
	w.DataSource = dataSource
	return w
}

func buildTreeConfig(c config.SupervisorConfig) supervisor.TreeConfig {
	return supervisor.TreeConfig{
		FailureThreshold: c.FailureThreshold,
		FailureDecay:     c.FailureDecay,
		FailureBackoff:   c.FailureBackoff,
		ShutdownTimeout:  c.ShutdownTimeout,
	}
}
