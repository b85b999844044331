// Cratedigger - Record Collection Tracker
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/cratedigger

package provider

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	gobreaker "github.com/sony/gobreaker/v2"

	"github.com/tomtom215/cratedigger/internal/metrics"
)

func testBreakerConfig() BreakerConfig {
	return BreakerConfig{
		MaxRequests:  1,
		Interval:     time.Minute,
		Timeout:      time.Minute,
		MinRequests:  3,
		FailureRatio: 0.6,
	}
}

func TestCircuitBreaker_OpensOnFailures(t *testing.T) {
	t.Parallel()

	fake := &fakeProvider{name: "breaker-open", err: &ProviderError{Provider: "x", Method: "m", StatusCode: 503, Retryable: true, Err: errors.New("down")}}
	cb := NewCircuitBreaker(fake, testBreakerConfig(), nopLogger())

	for i := 0; i < 3; i++ {
		if _, err := cb.SimilarTo(context.Background(), "Genesis", 5); err == nil {
			t.Fatal("expected failure")
		}
	}
	if cb.State() != "open" {
		t.Fatalf("State() = %q, want open", cb.State())
	}

	_, err := cb.SimilarTo(context.Background(), "Genesis", 5)
	if !errors.Is(err, gobreaker.ErrOpenState) {
		t.Errorf("error = %v, want ErrOpenState", err)
	}
	if !IsRetryable(err) {
		t.Error("rejection should be retryable")
	}
	if got := fake.calls.Load(); got != 3 {
		t.Errorf("provider calls = %d, want 3 (fourth rejected)", got)
	}
}

func TestCircuitBreaker_NotFoundIsNotAFailure(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		err  error
	}{
		{"not found", ErrNotFound},
		{"wrapped not found", &ProviderError{Provider: "x", Method: "artist.getinfo", StatusCode: 404, Err: ErrNotFound}},
		{"unsupported", ErrUnsupported},
		{"canceled", context.Canceled},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			fake := &fakeProvider{name: "breaker-" + tt.name, infoErr: tt.err}
			cb := NewCircuitBreaker(fake, testBreakerConfig(), nopLogger())

			for i := 0; i < 5; i++ {
				if _, err := cb.EntityInfo(context.Background(), "Nobody"); !errors.Is(err, tt.err) {
					t.Fatalf("error = %v, want %v", err, tt.err)
				}
			}
			if cb.State() != "closed" {
				t.Errorf("State() = %q, want closed", cb.State())
			}
			label := fake.name + "-api"
			if got := testutil.ToFloat64(metrics.CircuitBreakerRequests.WithLabelValues(label, metrics.ResultFailure)); got != 0 {
				t.Errorf("failure count = %v, want 0", got)
			}
			if got := testutil.ToFloat64(metrics.CircuitBreakerRequests.WithLabelValues(label, metrics.ResultSuccess)); got != 5 {
				t.Errorf("success count = %v, want 5", got)
			}
		})
	}
}

func TestCircuitBreaker_PassesResults(t *testing.T) {
	t.Parallel()

	fake := &fakeProvider{
		name:    "breaker-pass",
		similar: []SimilarEntity{{Name: "Genesis", Score: 0.8}},
		tagged:  []TaggedItem{{Name: "Foxtrot", ArtistName: "Genesis", Rank: 1}},
		info:    EntityMetadata{Name: "Genesis", Country: "GB"},
	}
	cb := NewCircuitBreaker(fake, DefaultBreakerConfig(), nopLogger())

	if cb.Name() != "breaker-pass" {
		t.Errorf("Name() = %q", cb.Name())
	}
	sim, err := cb.SimilarTo(context.Background(), "Pink Floyd", 5)
	if err != nil || len(sim) != 1 || sim[0].Name != "Genesis" {
		t.Errorf("SimilarTo() = %v, %v", sim, err)
	}
	tagged, err := cb.TopForTag(context.Background(), "prog", 5)
	if err != nil || len(tagged) != 1 {
		t.Errorf("TopForTag() = %v, %v", tagged, err)
	}
	info, err := cb.EntityInfo(context.Background(), "Genesis")
	if err != nil || info.Country != "GB" {
		t.Errorf("EntityInfo() = %+v, %v", info, err)
	}
}

func TestStateToString(t *testing.T) {
	t.Parallel()

	tests := []struct {
		state gobreaker.State
		str   string
		num   float64
	}{
		{gobreaker.StateClosed, "closed", 0},
		{gobreaker.StateHalfOpen, "half-open", 1},
		{gobreaker.StateOpen, "open", 2},
	}
	for _, tt := range tests {
		if got := stateToString(tt.state); got != tt.str {
			t.Errorf("stateToString(%v) = %q, want %q", tt.state, got, tt.str)
		}
		if got := stateToFloat(tt.state); got != tt.num {
			t.Errorf("stateToFloat(%v) = %v, want %v", tt.state, got, tt.num)
		}
	}
}
