// Cratedigger - Record Collection Tracker
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/cratedigger

package store

import (
	"context"
	"fmt"
	"strings"
)

// SubgraphSourceName identifies the store-side subgraph in metrics and results.
const SubgraphSourceName = "store"

// subgraphQuery walks similarity edges breadth-first from the seeds inside
// DuckDB. Parameters: one per seed, then min score, freshness cutoff and the
// hop limit (twice). Edges leaving nodes first reached at depth < maxHops
// are returned; duplicate pairs from several data sources keep the best score.
const subgraphQuery = `
WITH RECURSIVE
seeds(artist_key) AS (
	VALUES %s
),
fresh AS (
	SELECT
		source_key,
		target_key,
		arg_max(source_artist, score) AS source_artist,
		arg_max(target_artist, score) AS target_artist,
		max(score) AS score,
		arg_max(data_source, score) AS data_source,
		max(updated_at) AS updated_at
	FROM artist_similarity
	WHERE score >= ? AND updated_at >= ?
	GROUP BY source_key, target_key
),
reach(artist_key, depth) AS (
	SELECT artist_key, 0 FROM seeds
	UNION
	SELECT f.target_key, r.depth + 1
	FROM reach r
	JOIN fresh f ON f.source_key = r.artist_key
	WHERE r.depth < ?
),
frontier AS (
	SELECT artist_key, min(depth) AS depth
	FROM reach
	GROUP BY artist_key
)
SELECT f.source_artist, f.target_artist, f.score, f.data_source, f.updated_at
FROM fresh f
JOIN frontier fr ON fr.artist_key = f.source_key
WHERE fr.depth < ?
ORDER BY f.source_key, f.score DESC, f.target_key`

// Subgraph returns the fresh edges reachable from seeds within maxHops,
// keeping only edges scored at least minScore.
func (s *DuckDBStore) Subgraph(ctx context.Context, seeds []string, maxHops int, minScore float64) ([]SimilarityEdge, error) {
	keys := uniqueKeys(seeds)
	if len(keys) == 0 || maxHops <= 0 {
		return nil, nil
	}

	var edges []SimilarityEdge
	err := s.run(ctx, "subgraph", func(ctx context.Context) error {
		values := strings.TrimSuffix(strings.Repeat("(?::VARCHAR), ", len(keys)), ", ")
		query := fmt.Sprintf(subgraphQuery, values)

		args := make([]any, 0, len(keys)+4)
		for _, k := range keys {
			args = append(args, k)
		}
		args = append(args, minScore, s.utcNow().Add(-s.cfg.SimilarityTTL), maxHops, maxHops)

		rows, err := s.conn.QueryContext(ctx, query, args...)
		if err != nil {
			return fmt.Errorf("failed to compute subgraph: %w", err)
		}
		edges, err = scanEdges(rows)
		return err
	})
	return edges, err
}

// SubgraphSource serves Personalized PageRank graphs from the store-side
// recursive query.
type SubgraphSource struct {
	store *DuckDBStore
}

// NewSubgraphSource wraps s.
func NewSubgraphSource(s *DuckDBStore) *SubgraphSource {
	return &SubgraphSource{store: s}
}

// Name returns "store".
func (src *SubgraphSource) Name() string {
	return SubgraphSourceName
}

// Subgraph delegates to DuckDBStore.Subgraph.
func (src *SubgraphSource) Subgraph(ctx context.Context, seeds []string, maxHops int, minScore float64) ([]SimilarityEdge, error) {
	return src.store.Subgraph(ctx, seeds, maxHops, minScore)
}
