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
	"sort"
	"strings"
	"time"
)

// GetUserRecommendations returns the usable cached result for the user and
// collection fingerprint and counts the view.
func (s *DuckDBStore) GetUserRecommendations(ctx context.Context, userID, fingerprint string) (*CacheEntry, error) {
	var entry *CacheEntry
	err := s.run(ctx, "get_user_recommendations", func(ctx context.Context) error {
		e := CacheEntry{Key: fingerprint}
		err := s.conn.QueryRowContext(ctx, `
			UPDATE user_recommendation_cache
			SET view_count = view_count + 1
			WHERE user_id = ? AND fingerprint = ? AND NOT stale AND expires_at > ?
			RETURNING payload, cached_at, expires_at, stale, view_count`,
			userID, fingerprint, s.utcNow(),
		).Scan(&e.Payload, &e.CachedAt, &e.ExpiresAt, &e.Stale, &e.ViewCount)
		if errors.Is(err, sql.ErrNoRows) {
			return nil
		}
		if err != nil {
			return fmt.Errorf("failed to read cached recommendations: %w", err)
		}
		entry = &e
		return nil
	})
	return entry, err
}

// PutUserRecommendations upserts a result. Replacing an entry clears its
// stale flag and view count.
func (s *DuckDBStore) PutUserRecommendations(ctx context.Context, userID, fingerprint string, payload []byte, ttl time.Duration) error {
	if ttl <= 0 {
		ttl = s.cfg.RecommendationTTL
	}
	return s.run(ctx, "put_user_recommendations", func(ctx context.Context) error {
		now := s.utcNow()
		_, err := s.conn.ExecContext(ctx, `
			INSERT INTO user_recommendation_cache (
				user_id, fingerprint, payload, cached_at, expires_at, stale, view_count
			) VALUES (?, ?, ?, ?, ?, false, 0)
			ON CONFLICT (user_id, fingerprint) DO UPDATE SET
				payload = EXCLUDED.payload,
				cached_at = EXCLUDED.cached_at,
				expires_at = EXCLUDED.expires_at,
				stale = false,
				view_count = 0`,
			userID, fingerprint, payload, now, now.Add(ttl))
		if err != nil {
			return fmt.Errorf("failed to upsert cached recommendations: %w", err)
		}
		return nil
	})
}

// InvalidateUser marks the user's cached results stale.
func (s *DuckDBStore) InvalidateUser(ctx context.Context, userID string) error {
	return s.run(ctx, "invalidate_user", func(ctx context.Context) error {
		if _, err := s.conn.ExecContext(ctx,
			`UPDATE user_recommendation_cache SET stale = true WHERE user_id = ?`, userID); err != nil {
			return fmt.Errorf("failed to invalidate user: %w", err)
		}
		return nil
	})
}

// SyncOwnedArtists replaces the user's owned artists with artists. Entries
// that normalize to the same key are merged and their counts summed.
func (s *DuckDBStore) SyncOwnedArtists(ctx context.Context, userID string, artists []OwnedArtist) error {
	merged := mergeOwned(artists)
	return s.run(ctx, "sync_owned_artists", func(ctx context.Context) error {
		now := s.utcNow()
		return s.withTx(ctx, func(tx *sql.Tx) error {
			// Drop artists no longer owned, then upsert the rest. Deleting and
			// re-inserting the same key in one transaction is avoided.
			deleteQuery := `DELETE FROM user_owned_artists WHERE user_id = ?`
			args := []any{userID}
			if len(merged) > 0 {
				deleteQuery += fmt.Sprintf(` AND artist_key NOT IN (%s)`, placeholders(len(merged)))
				for _, a := range merged {
					args = append(args, ArtistKey(a.Name))
				}
			}
			if _, err := tx.ExecContext(ctx, deleteQuery, args...); err != nil {
				return fmt.Errorf("failed to remove owned artists: %w", err)
			}

			stmt, err := tx.PrepareContext(ctx, `
				INSERT INTO user_owned_artists (user_id, artist_key, artist_name, item_count, updated_at)
				VALUES (?, ?, ?, ?, ?)
				ON CONFLICT (user_id, artist_key) DO UPDATE SET
					artist_name = EXCLUDED.artist_name,
					item_count = EXCLUDED.item_count,
					updated_at = EXCLUDED.updated_at`)
			if err != nil {
				return fmt.Errorf("failed to prepare owned artist upsert: %w", err)
			}
			defer closeWithLog(stmt, s.logger, "prepared statement")

			for _, a := range merged {
				if _, err := stmt.ExecContext(ctx, userID, ArtistKey(a.Name), a.Name, a.Count, now); err != nil {
					return fmt.Errorf("failed to upsert owned artist %s: %w", a.Name, err)
				}
			}
			return nil
		})
	})
}

// OwnedArtists returns the user's artists, most items first.
func (s *DuckDBStore) OwnedArtists(ctx context.Context, userID string) ([]OwnedArtist, error) {
	var artists []OwnedArtist
	err := s.run(ctx, "owned_artists", func(ctx context.Context) error {
		rows, err := s.conn.QueryContext(ctx, `
			SELECT artist_name, item_count
			FROM user_owned_artists
			WHERE user_id = ?
			ORDER BY item_count DESC, artist_key`, userID)
		if err != nil {
			return fmt.Errorf("failed to query owned artists: %w", err)
		}
		defer rows.Close()

		for rows.Next() {
			var a OwnedArtist
			if err := rows.Scan(&a.Name, &a.Count); err != nil {
				return fmt.Errorf("failed to scan owned artist: %w", err)
			}
			artists = append(artists, a)
		}
		return rows.Err()
	})
	return artists, err
}

func mergeOwned(artists []OwnedArtist) []OwnedArtist {
	byKey := make(map[string]*OwnedArtist, len(artists))
	order := make([]string, 0, len(artists))
	for _, a := range artists {
		k := ArtistKey(a.Name)
		if k == "" {
			continue
		}
		if existing, ok := byKey[k]; ok {
			existing.Count += a.Count
			continue
		}
		byKey[k] = &OwnedArtist{Name: strings.TrimSpace(a.Name), Count: a.Count}
		order = append(order, k)
	}
	sort.Strings(order)
	out := make([]OwnedArtist, 0, len(order))
	for _, k := range order {
		out = append(out, *byKey[k])
	}
	return out
}
