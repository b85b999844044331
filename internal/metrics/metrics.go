// Cratedigger - Record Collection Tracker
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/cratedigger

package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "cratedigger"

// Result label values.
const (
	ResultSuccess  = "success"
	ResultFailure  = "failure"
	ResultRejected = "rejected"
	ResultHit      = "hit"
	ResultMiss     = "miss"
)

// WarmerStates lists every value of the warmer state label.
var WarmerStates = []string{"idle", "running", "paused", "stopped"}

var (
	// Provider Metrics
	ProviderRequests = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "provider_requests_total",
			Help:      "Total number of metadata provider requests",
		},
		[]string{"provider", "method", "result"},
	)

	ProviderRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "provider_request_duration_seconds",
			Help:      "Duration of metadata provider requests including queue wait",
			Buckets:   []float64{0.05, 0.1, 0.25, 0.5, 1, 2, 5, 10, 30},
		},
		[]string{"provider", "method"},
	)

	ProviderRateLimited = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "provider_rate_limited_total",
			Help:      "Total number of HTTP 429 responses received from providers",
		},
		[]string{"provider"},
	)

	ProviderCacheLookups = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "provider_cache_lookups_total",
			Help:      "Provider response cache lookups by result",
		},
		[]string{"provider", "result"},
	)

	// Circuit Breaker Metrics
	CircuitBreakerState = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "circuit_breaker_state",
			Help:      "Circuit breaker state (0=closed, 1=half-open, 2=open)",
		},
		[]string{"name"},
	)

	CircuitBreakerRequests = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "circuit_breaker_requests_total",
			Help:      "Total number of requests through circuit breaker",
		},
		[]string{"name", "result"}, // result: success, failure, rejected
	)

	CircuitBreakerTransitions = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "circuit_breaker_state_transitions_total",
			Help:      "Total number of circuit breaker state transitions",
		},
		[]string{"name", "from_state", "to_state"},
	)

	// Store Metrics
	StoreOperationDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "store_operation_duration_seconds",
			Help:      "Duration of cache store operations",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"operation"},
	)

	StoreErrors = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "store_errors_total",
			Help:      "Total number of failed cache store operations",
		},
		[]string{"operation"},
	)

	// Engine Metrics
	RecommendationRuns = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "recommendation_runs_total",
			Help:      "Recommendation runs by outcome",
		},
		[]string{"outcome"}, // success, collection_too_small, invalid_input
	)

	RecommendationCache = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "recommendation_cache_total",
			Help:      "Recommendation cache lookups by result",
		},
		[]string{"result"},
	)

	RecommendationDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "recommendation_duration_seconds",
			Help:      "End-to-end duration of recommendation generation",
			Buckets:   []float64{0.01, 0.1, 0.5, 1, 5, 15, 30, 60, 120},
		},
	)

	RecommendationCandidates = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "recommendation_candidates",
			Help:      "Number of candidates scored per run",
			Buckets:   prometheus.ExponentialBuckets(1, 2, 10),
		},
	)

	// Graph Metrics
	PPRRuns = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "ppr_runs_total",
			Help:      "Personalized PageRank runs by graph source (store, hops, none)",
		},
		[]string{"source"},
	)

	PPRIterations = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "ppr_iterations",
			Help:      "Iterations needed for Personalized PageRank to converge",
			Buckets:   prometheus.LinearBuckets(1, 2, 15),
		},
	)

	// Warmer Metrics
	WarmerState = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "warmer_state",
			Help:      "Current background warmer state (1 for the active state)",
		},
		[]string{"state"},
	)

	WarmerQueueSize = promauto.NewGauge(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "warmer_queue_size",
			Help:      "Artists waiting in the warmer priority queue",
		},
	)

	WarmerProgress = promauto.NewGauge(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "warmer_progress_percent",
			Help:      "Percentage of queued artists fetched in the current warm cycle",
		},
	)

	WarmerFetches = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "warmer_fetches_total",
			Help:      "Warmer artist fetches by result (success, failure, dropped)",
		},
		[]string{"result"},
	)

	APIRequests = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "api_requests_total",
			Help:      "HTTP API requests by method, route pattern and status code",
		},
		[]string{"method", "route", "status"},
	)

	APIRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "api_request_duration_seconds",
			Help:      "HTTP API request latency by route pattern",
			Buckets:   []float64{.005, .01, .05, .1, .5, 1, 5, 15, 60},
		},
		[]string{"method", "route"},
	)

	APIActiveRequests = promauto.NewGauge(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "api_active_requests",
			Help:      "HTTP API requests in flight",
		},
	)

	RefreshRuns = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "refresh_runs_total",
			Help:      "Scheduled recommendation refreshes by user outcome (success, failure)",
		},
		[]string{"result"},
	)
)

// RecordProviderRequest records one provider call.
func RecordProviderRequest(provider, method string, duration time.Duration, err error) {
	result := ResultSuccess
	if err != nil {
		result = ResultFailure
	}
	ProviderRequests.WithLabelValues(provider, method, result).Inc()
	ProviderRequestDuration.WithLabelValues(provider, method).Observe(duration.Seconds())
}

// RecordProviderCache records a response cache lookup.
func RecordProviderCache(provider string, hit bool) {
	result := ResultMiss
	if hit {
		result = ResultHit
	}
	ProviderCacheLookups.WithLabelValues(provider, result).Inc()
}

// RecordStoreOperation records a store call and counts it as an error when err is non-nil.
func RecordStoreOperation(operation string, duration time.Duration, err error) {
	StoreOperationDuration.WithLabelValues(operation).Observe(duration.Seconds())
	if err != nil {
		StoreErrors.WithLabelValues(operation).Inc()
	}
}

// RecordRecommendationRun records the outcome of one GenerateRecommendations call.
func RecordRecommendationRun(outcome string, cacheHit bool, duration time.Duration, candidates int) {
	RecommendationRuns.WithLabelValues(outcome).Inc()
	if cacheHit {
		RecommendationCache.WithLabelValues(ResultHit).Inc()
	} else {
		RecommendationCache.WithLabelValues(ResultMiss).Inc()
		RecommendationCandidates.Observe(float64(candidates))
	}
	RecommendationDuration.Observe(duration.Seconds())
}

// RecordPPR records which graph source served a PageRank run and how many
// iterations it took. Iterations are not observed when no graph was found.
func RecordPPR(source string, iterations int) {
	PPRRuns.WithLabelValues(source).Inc()
	if iterations > 0 {
		PPRIterations.Observe(float64(iterations))
	}
}

// SetWarmerState marks state as the active warmer state.
func SetWarmerState(state string) {
	for _, s := range WarmerStates {
		v := 0.0
		if s == state {
			v = 1
		}
		WarmerState.WithLabelValues(s).Set(v)
	}
}

// SetWarmerProgress updates the queue size and progress gauges.
func SetWarmerProgress(queueSize int, percent float64) {
	WarmerQueueSize.Set(float64(queueSize))
	WarmerProgress.Set(percent)
}

// RecordWarmerFetch counts one warmer fetch attempt.
func RecordWarmerFetch(result string) {
	WarmerFetches.WithLabelValues(result).Inc()
}

// RecordRefresh counts one scheduled refresh of one user.
func RecordRefresh(success bool) {
	result := ResultSuccess
	if !success {
		result = ResultFailure
	}
	RefreshRuns.WithLabelValues(result).Inc()
}

// TrackActiveRequest moves the in-flight request gauge.
func TrackActiveRequest(start bool) {
	if start {
		APIActiveRequests.Inc()
	} else {
		APIActiveRequests.Dec()
	}
}

// RecordAPIRequest records one finished HTTP API request.
func RecordAPIRequest(method, route, status string, duration time.Duration) {
	APIRequests.WithLabelValues(method, route, status).Inc()
	APIRequestDuration.WithLabelValues(method, route).Observe(duration.Seconds())
}
