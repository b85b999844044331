// Cratedigger - Record Collection Tracker
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/cratedigger

package store

import (
	"context"
	"fmt"
	"time"
)

// schemaContext returns a context with timeout for schema operations.
func schemaContext() (context.Context, context.CancelFunc) {
	return context.WithTimeout(context.Background(), 60*time.Second)
}

func (s *DuckDBStore) createTables() error {
	ctx, cancel := schemaContext()
	defer cancel()

	queries := append(tableCreationQueries(), indexQueries()...)
	for _, query := range queries {
		if _, err := s.conn.ExecContext(ctx, query); err != nil {
			return fmt.Errorf("failed to execute query: %s: %w", query, err)
		}
	}
	return nil
}

func tableCreationQueries() []string {
	return []string{
		`CREATE TABLE IF NOT EXISTS artist_similarity (
			source_key VARCHAR NOT NULL,
			target_key VARCHAR NOT NULL,
			data_source VARCHAR NOT NULL,
			source_artist VARCHAR NOT NULL,
			target_artist VARCHAR NOT NULL,
			score DOUBLE NOT NULL,
			updated_at TIMESTAMP NOT NULL,
			PRIMARY KEY (source_key, target_key, data_source)
		)`,

		`CREATE TABLE IF NOT EXISTS artist_metadata (
			artist_key VARCHAR NOT NULL,
			data_source VARCHAR NOT NULL,
			artist_name VARCHAR NOT NULL,
			payload VARCHAR NOT NULL,
			updated_at TIMESTAMP NOT NULL,
			PRIMARY KEY (artist_key, data_source)
		)`,

		`CREATE TABLE IF NOT EXISTS user_owned_artists (
			user_id VARCHAR NOT NULL,
			artist_key VARCHAR NOT NULL,
			artist_name VARCHAR NOT NULL,
			item_count INTEGER NOT NULL,
			updated_at TIMESTAMP NOT NULL,
			PRIMARY KEY (user_id, artist_key)
		)`,

		`CREATE TABLE IF NOT EXISTS user_recommendation_cache (
			user_id VARCHAR NOT NULL,
			fingerprint VARCHAR NOT NULL,
			payload BLOB NOT NULL,
			cached_at TIMESTAMP NOT NULL,
			expires_at TIMESTAMP NOT NULL,
			stale BOOLEAN NOT NULL DEFAULT false,
			view_count INTEGER NOT NULL DEFAULT 0,
			PRIMARY KEY (user_id, fingerprint)
		)`,
	}
}

// indexQueries avoids indexing columns that upserts modify; DuckDB turns
// such updates into delete plus insert.
func indexQueries() []string {
	return []string{
		`CREATE INDEX IF NOT EXISTS idx_similarity_target ON artist_similarity(target_key)`,
		`CREATE INDEX IF NOT EXISTS idx_reco_cache_user ON user_recommendation_cache(user_id)`,
	}
}
