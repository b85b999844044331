// Cratedigger - Record Collection Tracker
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/cratedigger

package store

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
)

// batchChunkSize bounds the number of placeholders in one IN list.
const batchChunkSize = 500

// GetSimilarity returns fresh edges out of source from dataSource.
func (s *DuckDBStore) GetSimilarity(ctx context.Context, source, dataSource string) ([]SimilarityEdge, error) {
	var edges []SimilarityEdge
	err := s.run(ctx, "get_similarity", func(ctx context.Context) error {
		cutoff := s.utcNow().Add(-s.cfg.SimilarityTTL)
		rows, err := s.conn.QueryContext(ctx, `
			SELECT source_artist, target_artist, score, data_source, updated_at
			FROM artist_similarity
			WHERE source_key = ? AND data_source = ? AND updated_at >= ?
			ORDER BY score DESC, target_key`,
			ArtistKey(source), dataSource, cutoff)
		if err != nil {
			return fmt.Errorf("failed to query similarity: %w", err)
		}
		edges, err = scanEdges(rows)
		return err
	})
	return edges, err
}

// GetSimilarityBatch returns fresh edges for many sources at once. When
// several data sources report the same pair, the highest score is kept.
func (s *DuckDBStore) GetSimilarityBatch(ctx context.Context, sources []string, minScore float64) (map[string][]SimilarityEdge, error) {
	result := make(map[string][]SimilarityEdge)
	keys := uniqueKeys(sources)
	if len(keys) == 0 {
		return result, nil
	}

	err := s.run(ctx, "get_similarity_batch", func(ctx context.Context) error {
		cutoff := s.utcNow().Add(-s.cfg.SimilarityTTL)
		for start := 0; start < len(keys); start += batchChunkSize {
			end := start + batchChunkSize
			if end > len(keys) {
				end = len(keys)
			}
			chunk := keys[start:end]

			args := make([]any, 0, len(chunk)+2)
			for _, k := range chunk {
				args = append(args, k)
			}
			args = append(args, minScore, cutoff)

			query := fmt.Sprintf(`
				SELECT
					arg_max(source_artist, score),
					arg_max(target_artist, score),
					max(score),
					arg_max(data_source, score),
					max(updated_at)
				FROM artist_similarity
				WHERE source_key IN (%s) AND score >= ? AND updated_at >= ?
				GROUP BY source_key, target_key
				ORDER BY source_key, max(score) DESC, target_key`, placeholders(len(chunk)))

			rows, err := s.conn.QueryContext(ctx, query, args...)
			if err != nil {
				return fmt.Errorf("failed to query similarity batch: %w", err)
			}
			edges, err := scanEdges(rows)
			if err != nil {
				return err
			}
			for _, e := range edges {
				k := ArtistKey(e.SourceArtist)
				result[k] = append(result[k], e)
			}
		}
		return nil
	})
	return result, err
}

// PutSimilarity upserts edges. Self-edges and edges without names are
// skipped, scores are clamped to [0,1] and a zero UpdatedAt means now.
func (s *DuckDBStore) PutSimilarity(ctx context.Context, edges []SimilarityEdge) error {
	if len(edges) == 0 {
		return nil
	}
	return s.run(ctx, "put_similarity", func(ctx context.Context) error {
		now := s.utcNow()
		return s.withTx(ctx, func(tx *sql.Tx) error {
			stmt, err := tx.PrepareContext(ctx, `
				INSERT INTO artist_similarity (
					source_key, target_key, data_source, source_artist, target_artist, score, updated_at
				) VALUES (?, ?, ?, ?, ?, ?, ?)
				ON CONFLICT (source_key, target_key, data_source) DO UPDATE SET
					source_artist = EXCLUDED.source_artist,
					target_artist = EXCLUDED.target_artist,
					score = EXCLUDED.score,
					updated_at = EXCLUDED.updated_at`)
			if err != nil {
				return fmt.Errorf("failed to prepare similarity upsert: %w", err)
			}
			defer closeWithLog(stmt, s.logger, "prepared statement")

			for _, e := range edges {
				srcKey, dstKey := ArtistKey(e.SourceArtist), ArtistKey(e.TargetArtist)
				if srcKey == "" || dstKey == "" || srcKey == dstKey {
					continue
				}
				updated := e.UpdatedAt.UTC()
				if e.UpdatedAt.IsZero() {
					updated = now
				}
				if _, err := stmt.ExecContext(ctx,
					srcKey, dstKey, e.DataSource,
					strings.TrimSpace(e.SourceArtist), strings.TrimSpace(e.TargetArtist),
					clampScore(e.Score), updated,
				); err != nil {
					return fmt.Errorf("failed to upsert edge %s -> %s: %w", e.SourceArtist, e.TargetArtist, err)
				}
			}
			return nil
		})
	})
}

func scanEdges(rows *sql.Rows) ([]SimilarityEdge, error) {
	defer rows.Close()
	var edges []SimilarityEdge
	for rows.Next() {
		var e SimilarityEdge
		if err := rows.Scan(&e.SourceArtist, &e.TargetArtist, &e.Score, &e.DataSource, &e.UpdatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan edge: %w", err)
		}
		edges = append(edges, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate edges: %w", err)
	}
	return edges, nil
}

func placeholders(n int) string {
	if n <= 0 {
		return ""
	}
	return strings.TrimSuffix(strings.Repeat("?, ", n), ", ")
}

func uniqueKeys(names []string) []string {
	seen := make(map[string]struct{}, len(names))
	keys := make([]string, 0, len(names))
	for _, n := range names {
		k := ArtistKey(n)
		if k == "" {
			continue
		}
		if _, ok := seen[k]; ok {
			continue
		}
		seen[k] = struct{}{}
		keys = append(keys, k)
	}
	return keys
}

func clampScore(v float64) float64 {
	switch {
	case v < 0:
		return 0
	case v > 1:
		return 1
	default:
		return v
	}
}
