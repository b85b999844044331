// Cratedigger - Record Collection Tracker
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/cratedigger

package services

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/rs/zerolog"
)

// APIServer is what APIService drives. *http.Server satisfies it.
type APIServer interface {
	ListenAndServe() error
	Shutdown(ctx context.Context) error
}

// APIServiceConfig configures the recommendation API service.
type APIServiceConfig struct {
	// Addr is reported in logs; the server owns the listener.
	Addr string

	// DrainTimeout bounds how long in-flight recommendation requests may
	// finish after shutdown starts. Default: 10s
	DrainTimeout time.Duration
}

// APIService serves the recommendation HTTP API under suture. A bind
// failure is returned so the supervisor restarts the service with backoff.
type APIService struct {
	server APIServer
	config APIServiceConfig
	logger zerolog.Logger
	name   string
}

// NewAPIService creates the API service.
//
//nolint:gocritic // logger passed by value is acceptable for zerolog
func NewAPIService(server APIServer, cfg APIServiceConfig, logger zerolog.Logger) *APIService {
	if cfg.DrainTimeout <= 0 {
		cfg.DrainTimeout = 10 * time.Second
	}
	return &APIService{
		server: server,
		config: cfg,
		logger: logger.With().Str("service", "api").Str("addr", cfg.Addr).Logger(),
		name:   "api-service",
	}
}

// Serve implements suture.Service.
func (s *APIService) Serve(ctx context.Context) error {
	s.logger.Info().Dur("drain_timeout", s.config.DrainTimeout).Msg("recommendation API listening")

	listenErr := make(chan error, 1)
	go func() {
		err := s.server.ListenAndServe()
		if errors.Is(err, http.ErrServerClosed) {
			err = nil
		}
		listenErr <- err
	}()

	select {
	case err := <-listenErr:
		if err == nil {
			// Closed by someone else; let the supervisor decide.
			return errors.New("recommendation API stopped unexpectedly")
		}
		s.logger.Error().Err(err).Msg("recommendation API failed")
		return fmt.Errorf("serve recommendation API on %s: %w", s.config.Addr, err)

	case <-ctx.Done():
	}

	start := time.Now()
	drainCtx, cancel := context.WithTimeout(context.Background(), s.config.DrainTimeout)
	defer cancel()

	if err := s.server.Shutdown(drainCtx); err != nil {
		s.logger.Warn().Err(err).Dur("drain_timeout", s.config.DrainTimeout).Msg("API drain incomplete")
		return fmt.Errorf("drain recommendation API: %w", err)
	}
	<-listenErr
	s.logger.Info().Dur("drained_in", time.Since(start)).Msg("recommendation API stopped")
	return ctx.Err()
}

// String implements fmt.Stringer for suture logs.
func (s *APIService) String() string {
	return s.name
}
