// Cratedigger - Record Collection Tracker
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/cratedigger

package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/goccy/go-json"
)

// GetEntityMetadata returns fresh metadata for name from dataSource, or nil.
func (s *DuckDBStore) GetEntityMetadata(ctx context.Context, name, dataSource string) (*ArtistMetadata, error) {
	var meta *ArtistMetadata
	err := s.run(ctx, "get_entity_metadata", func(ctx context.Context) error {
		cutoff := s.utcNow().Add(-s.cfg.MetadataTTL)

		var payload string
		var updated time.Time
		err := s.conn.QueryRowContext(ctx, `
			SELECT payload, updated_at
			FROM artist_metadata
			WHERE artist_key = ? AND data_source = ? AND updated_at >= ?`,
			ArtistKey(name), dataSource, cutoff).Scan(&payload, &updated)
		if errors.Is(err, sql.ErrNoRows) {
			return nil
		}
		if err != nil {
			return fmt.Errorf("failed to query metadata: %w", err)
		}

		var m ArtistMetadata
		if err := json.Unmarshal([]byte(payload), &m); err != nil {
			return fmt.Errorf("failed to decode metadata for %s: %w", name, err)
		}
		m.UpdatedAt = updated
		meta = &m
		return nil
	})
	return meta, err
}

// PutEntityMetadata upserts meta. A zero UpdatedAt means now.
func (s *DuckDBStore) PutEntityMetadata(ctx context.Context, meta ArtistMetadata) error {
	key := ArtistKey(meta.Name)
	if key == "" {
		return wrapErr("put_entity_metadata", errors.New("artist name is required"))
	}
	return s.run(ctx, "put_entity_metadata", func(ctx context.Context) error {
		if meta.UpdatedAt.IsZero() {
			meta.UpdatedAt = s.utcNow()
		}
		payload, err := json.Marshal(meta)
		if err != nil {
			return fmt.Errorf("failed to encode metadata: %w", err)
		}
		_, err = s.conn.ExecContext(ctx, `
			INSERT INTO artist_metadata (artist_key, data_source, artist_name, payload, updated_at)
			VALUES (?, ?, ?, ?, ?)
			ON CONFLICT (artist_key, data_source) DO UPDATE SET
				artist_name = EXCLUDED.artist_name,
				payload = EXCLUDED.payload,
				updated_at = EXCLUDED.updated_at`,
			key, meta.DataSource, meta.Name, string(payload), meta.UpdatedAt.UTC())
		if err != nil {
			return fmt.Errorf("failed to upsert metadata: %w", err)
		}
		return nil
	})
}
