// Cratedigger - Record Collection Tracker
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/cratedigger

/*
Package metrics defines the Prometheus instrumentation for the recommendation engine.

All collectors are registered on the default registry through promauto and
are prefixed with "cratedigger_". The host binary exposes them with
promhttp.Handler when a metrics address is configured.

# Metric groups

Providers:
  - cratedigger_provider_requests_total{provider,method,result}
  - cratedigger_provider_request_duration_seconds{provider,method}
  - cratedigger_provider_rate_limited_total{provider}
  - cratedigger_provider_cache_lookups_total{provider,result}

Circuit breakers:
  - cratedigger_circuit_breaker_state{name} (0=closed, 1=half-open, 2=open)
  - cratedigger_circuit_breaker_requests_total{name,result}
  - cratedigger_circuit_breaker_state_transitions_total{name,from_state,to_state}

Store:
  - cratedigger_store_operation_duration_seconds{operation}
  - cratedigger_store_errors_total{operation}

Engine and graph:
  - cratedigger_recommendation_runs_total{outcome}
  - cratedigger_recommendation_cache_total{result}
  - cratedigger_recommendation_duration_seconds
  - cratedigger_recommendation_candidates
  - cratedigger_ppr_runs_total{source}
  - cratedigger_ppr_iterations

Warmer:
  - cratedigger_warmer_state{state}
  - cratedigger_warmer_queue_size
  - cratedigger_warmer_progress_percent
  - cratedigger_warmer_fetches_total{result}

Helpers such as RecordProviderRequest keep label handling in one place; call
sites never touch the vectors directly except in tests.
*/
package metrics
