// Cratedigger - Record Collection Tracker
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/cratedigger

package services

import (
	"context"
	"time"

	"github.com/rs/zerolog"

	"github.com/tomtom215/cratedigger/internal/metrics"
	"github.com/tomtom215/cratedigger/internal/recommend"
)

// Recommender regenerates a user's recommendations from a catalog.
// *recommend.Engine satisfies it.
type Recommender interface {
	GenerateForUser(ctx context.Context, catalog recommend.Catalog, userID string, opts recommend.Options) *recommend.RecommendationResult
}

// RefreshServiceConfig configures the refresh loop.
type RefreshServiceConfig struct {
	// Users are refreshed in order on every run.
	Users []string

	// RunOnStartup refreshes once before the first tick.
	RunOnStartup bool

	// Interval between runs. Default: 6h
	Interval time.Duration

	// Timeout bounds one user's refresh. Default: 10m
	Timeout time.Duration
}

// RefreshService periodically regenerates recommendations with
// ForceRefresh so cached results never go stale for configured users, and
// each run hands fresh candidates to the warmer.
type RefreshService struct {
	engine  Recommender
	catalog recommend.Catalog
	config  RefreshServiceConfig
	logger  zerolog.Logger
	name    string
}

// NewRefreshService creates a refresh service.
//
//nolint:gocritic // logger passed by value is acceptable for zerolog
func NewRefreshService(engine Recommender, catalog recommend.Catalog, cfg RefreshServiceConfig, logger zerolog.Logger) *RefreshService {
	if cfg.Interval <= 0 {
		cfg.Interval = 6 * time.Hour
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 10 * time.Minute
	}
	return &RefreshService{
		engine:  engine,
		catalog: catalog,
		config:  cfg,
		logger:  logger.With().Str("service", "refresh").Logger(),
		name:    "refresh-service",
	}
}

// Serve implements suture.Service.
func (s *RefreshService) Serve(ctx context.Context) error {
	s.logger.Info().
		Strs("users", s.config.Users).
		Bool("run_on_startup", s.config.RunOnStartup).
		Dur("interval", s.config.Interval).
		Msg("refresh service starting")

	if s.config.RunOnStartup {
		s.RefreshAll(ctx)
	}

	ticker := time.NewTicker(s.config.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			s.logger.Info().Msg("refresh service shutting down")
			return ctx.Err()
		case <-ticker.C:
			s.RefreshAll(ctx)
		}
	}
}

// RefreshAll refreshes every configured user and returns how many
// succeeded. A failing user does not stop the run.
func (s *RefreshService) RefreshAll(ctx context.Context) int {
	ok := 0
	for _, userID := range s.config.Users {
		if ctx.Err() != nil {
			break
		}
		if s.refresh(ctx, userID) {
			ok++
		}
	}
	return ok
}

func (s *RefreshService) refresh(ctx context.Context, userID string) bool {
	runCtx, cancel := context.WithTimeout(ctx, s.config.Timeout)
	defer cancel()

	start := time.Now()
	result := s.engine.GenerateForUser(runCtx, s.catalog, userID, recommend.Options{ForceRefresh: true, Background: true})
	metrics.RecordRefresh(result.Success)

	if !result.Success {
		s.logger.Warn().
			Str("user_id", userID).
			Str("reason", result.Reason).
			Str("error", result.Error).
			Msg("scheduled refresh failed")
		return false
	}

	total := 0
	for _, list := range result.Lists {
		total += len(list)
	}
	s.logger.Info().
		Str("user_id", userID).
		Int("recommendations", total).
		Dur("duration", time.Since(start)).
		Msg("scheduled refresh complete")
	return true
}

// String returns the service name for logging.
func (s *RefreshService) String() string {
	return s.name
}
