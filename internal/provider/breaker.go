// Cratedigger - Record Collection Tracker
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/cratedigger

package provider

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/rs/zerolog"
	gobreaker "github.com/sony/gobreaker/v2"

	"github.com/tomtom215/cratedigger/internal/metrics"
)

// BreakerConfig configures the circuit breaker around a provider.
type BreakerConfig struct {
	// MaxRequests is the number of trial requests allowed while half-open.
	MaxRequests uint32

	// Interval resets the counts while closed. Zero never resets.
	Interval time.Duration

	// Timeout is how long the breaker stays open before going half-open.
	Timeout time.Duration

	// The breaker opens once at least MinRequests were counted and the
	// failure ratio reached FailureRatio.
	MinRequests  uint32
	FailureRatio float64
}

// DefaultBreakerConfig returns 3 half-open requests, a 1 minute window,
// a 2 minute open period and a 60% failure ratio over at least 10 requests.
func DefaultBreakerConfig() BreakerConfig {
	return BreakerConfig{
		MaxRequests:  3,
		Interval:     time.Minute,
		Timeout:      2 * time.Minute,
		MinRequests:  10,
		FailureRatio: 0.6,
	}
}

// CircuitBreaker wraps a MetadataProvider with a circuit breaker so that a
// failing service is not hammered. ErrNotFound, ErrUnsupported and caller
// cancellation do not count as failures.
type CircuitBreaker struct {
	next   MetadataProvider
	cb     *gobreaker.CircuitBreaker[any]
	name   string
	logger zerolog.Logger
}

var _ MetadataProvider = (*CircuitBreaker)(nil)

// NewCircuitBreaker wraps next.
func NewCircuitBreaker(next MetadataProvider, cfg BreakerConfig, logger zerolog.Logger) *CircuitBreaker {
	name := next.Name() + "-api"
	logger = logger.With().Str("component", "circuit_breaker").Str("breaker", name).Logger()

	metrics.CircuitBreakerState.WithLabelValues(name).Set(0)

	b := &CircuitBreaker{next: next, name: name, logger: logger}
	b.cb = gobreaker.NewCircuitBreaker[any](gobreaker.Settings{
		Name:        name,
		MaxRequests: cfg.MaxRequests,
		Interval:    cfg.Interval,
		Timeout:     cfg.Timeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			if counts.Requests < cfg.MinRequests {
				return false
			}
			failureRatio := float64(counts.TotalFailures) / float64(counts.Requests)
			shouldTrip := failureRatio >= cfg.FailureRatio
			if shouldTrip {
				logger.Warn().Uint32("failures", counts.TotalFailures).Float64("failure_rate", failureRatio*100).Msg("opening circuit")
			}
			return shouldTrip
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			fromStr := stateToString(from)
			toStr := stateToString(to)
			logger.Info().Str("from", fromStr).Str("to", toStr).Msg("circuit breaker state transition")
			metrics.CircuitBreakerState.WithLabelValues(name).Set(stateToFloat(to))
			metrics.CircuitBreakerTransitions.WithLabelValues(name, fromStr, toStr).Inc()
		},
		IsSuccessful: isSuccessful,
	})
	return b
}

// isSuccessful reports whether err leaves the breaker's failure counts
// untouched. A missing entity or unsupported method is a valid answer.
func isSuccessful(err error) bool {
	return err == nil ||
		errors.Is(err, ErrNotFound) ||
		errors.Is(err, ErrUnsupported) ||
		errors.Is(err, context.Canceled)
}

// Name returns the wrapped provider's name.
func (b *CircuitBreaker) Name() string {
	return b.next.Name()
}

// State returns "closed", "half-open" or "open".
func (b *CircuitBreaker) State() string {
	return stateToString(b.cb.State())
}

// SimilarTo calls the wrapped provider through the breaker.
func (b *CircuitBreaker) SimilarTo(ctx context.Context, name string, limit int) ([]SimilarEntity, error) {
	return execute(b, func() ([]SimilarEntity, error) {
		return b.next.SimilarTo(ctx, name, limit)
	})
}

// TopForTag calls the wrapped provider through the breaker.
func (b *CircuitBreaker) TopForTag(ctx context.Context, tag string, limit int) ([]TaggedItem, error) {
	return execute(b, func() ([]TaggedItem, error) {
		return b.next.TopForTag(ctx, tag, limit)
	})
}

// EntityInfo calls the wrapped provider through the breaker.
func (b *CircuitBreaker) EntityInfo(ctx context.Context, name string) (EntityMetadata, error) {
	return execute(b, func() (EntityMetadata, error) {
		return b.next.EntityInfo(ctx, name)
	})
}

// Close closes the wrapped provider when it holds resources.
func (b *CircuitBreaker) Close() error {
	if c, ok := b.next.(io.Closer); ok {
		return c.Close()
	}
	return nil
}

// execute runs fn through the breaker and records the outcome. Rejections
// are returned as retryable ProviderErrors.
func execute[T any](b *CircuitBreaker, fn func() (T, error)) (T, error) {
	var zero T
	result, err := b.cb.Execute(func() (any, error) {
		return fn()
	})

	if err != nil {
		if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
			metrics.CircuitBreakerRequests.WithLabelValues(b.name, metrics.ResultRejected).Inc()
			b.logger.Debug().Err(err).Msg("request rejected")
			return zero, &ProviderError{Provider: b.next.Name(), Method: "circuit_breaker", Retryable: true, Err: err}
		}
		outcome := metrics.ResultFailure
		if isSuccessful(err) {
			outcome = metrics.ResultSuccess
		}
		metrics.CircuitBreakerRequests.WithLabelValues(b.name, outcome).Inc()
		return zero, err
	}

	metrics.CircuitBreakerRequests.WithLabelValues(b.name, metrics.ResultSuccess).Inc()
	typed, ok := result.(T)
	if !ok {
		return zero, fmt.Errorf("circuit breaker: unexpected result type %T", result)
	}
	return typed, nil
}

// stateToFloat converts a breaker state to its metric value.
func stateToFloat(state gobreaker.State) float64 {
	switch state {
	case gobreaker.StateClosed:
		return 0
	case gobreaker.StateHalfOpen:
		return 1
	case gobreaker.StateOpen:
		return 2
	default:
		return -1
	}
}

func stateToString(state gobreaker.State) string {
	switch state {
	case gobreaker.StateClosed:
		return "closed"
	case gobreaker.StateHalfOpen:
		return "half-open"
	case gobreaker.StateOpen:
		return "open"
	default:
		return "unknown"
	}
}
