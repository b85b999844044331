// Cratedigger - Record Collection Tracker
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/cratedigger

/*
Package config loads and validates Cratedigger configuration with koanf.

Sources are layered, lowest priority first: compiled defaults, an optional
YAML file, and CRATEDIGGER_ environment variables. Nested keys use a double
underscore in environment variable names:

	CRATEDIGGER_LOGGING__LEVEL=debug
	CRATEDIGGER_PROVIDERS__LASTFM__ENABLED=true
	CRATEDIGGER_PROVIDERS__LASTFM__API_KEY=...
	CRATEDIGGER_GRAPH__DAMPING=0.85
	CRATEDIGGER_WARMER__STATE_PATH=/var/lib/cratedigger/warmer

Example YAML:

	store:
	  path: /var/lib/cratedigger/cache.duckdb
	  similarity_ttl: 168h
	providers:
	  lastfm:
	    enabled: true
	    api_key: "..."
	  musicbrainz:
	    enabled: true
	recommend:
	  significant_artist_count: 2
	  significant_genre_count: 3

Validation runs go-playground/validator struct tags first, then hand-written
cross-field checks (credentials for enabled providers, non-zero weights,
list sizes, warmer timing).
*/
package config
