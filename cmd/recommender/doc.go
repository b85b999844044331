// Cratedigger - Record Collection Tracker
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/cratedigger

/*
Package main is the entry point for the Cratedigger recommender.

The binary is a cobra command with two subcommands.

The generate subcommand reads an owned-items JSON file, generates recommendations for
one user and prints the result as indented JSON to stdout. The exit code is
1 when the result is not successful.

	recommender generate --collection owned.json --user alice
	recommender generate --collection owned.json --user alice --force

The serve subcommand runs the long-lived components under a Suture v4 tree until
SIGINT or SIGTERM:

	RootSupervisor ("cratedigger")
	├── CacheSupervisor ("cache-layer")
	│   ├── Warmer (warmer.enabled)
	│   └── RefreshService (refresh.enabled and catalog.path)
	└── APISupervisor ("api-layer")
	    └── APIService (server.addr)

	recommender serve --config /etc/cratedigger/config.yaml

# Component initialization order

 1. Configuration: Koanf v2 (defaults, YAML file, CRATEDIGGER_* environment)
 2. Logging: zerolog with JSON or console output
 3. Store: DuckDB cache of similarity, metadata and results
 4. Providers: Last.fm, MusicBrainz and Discogs behind circuit breakers,
    chained with recommend.data_source first
 5. Graph discovery: Personalized PageRank over cached similarity edges
 6. Engine
 7. Warmer with its BadgerDB state store (serve only)

# Configuration

Environment variables use the CRATEDIGGER_ prefix with "__" separating
nesting levels:

	CRATEDIGGER_PROVIDERS__LASTFM__ENABLED=true
	CRATEDIGGER_PROVIDERS__LASTFM__API_KEY=...
	CRATEDIGGER_STORE__PATH=/var/lib/cratedigger/cache.duckdb
	CRATEDIGGER_SERVER__ADDR=:8080
	CRATEDIGGER_LOGGING__FORMAT=console

# Signal Handling

On SIGINT or SIGTERM the tree stops the API server first, then the warmer
persists its state, and finally the store and providers are closed.
*/
package main
