// Cratedigger - Record Collection Tracker
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/cratedigger

package graph

import (
	"context"
	"fmt"

	"github.com/tomtom215/cratedigger/internal/store"
)

// Source yields the similarity edges reachable from seeds within maxHops,
// keeping only edges scoring at least minScore.
type Source interface {
	Name() string
	Subgraph(ctx context.Context, seeds []string, maxHops int, minScore float64) ([]store.SimilarityEdge, error)
}

// HopSourceName labels the hop-by-hop source.
const HopSourceName = "hops"

// HopSource expands the subgraph one hop at a time with batched similarity
// lookups. Any store.CacheStore satisfies EdgeLookup.
type HopSource struct {
	store EdgeLookup
}

// NewHopSource creates a hop-by-hop source over s.
func NewHopSource(s EdgeLookup) *HopSource {
	return &HopSource{store: s}
}

// Name returns the source name.
func (h *HopSource) Name() string {
	return HopSourceName
}

// Subgraph returns the edges reachable from seeds within maxHops.
func (h *HopSource) Subgraph(ctx context.Context, seeds []string, maxHops int, minScore float64) ([]store.SimilarityEdge, error) {
	visited := make(map[string]struct{}, len(seeds))
	frontier := make([]string, 0, len(seeds))
	for _, s := range seeds {
		key := store.ArtistKey(s)
		if key == "" {
			continue
		}
		if _, ok := visited[key]; ok {
			continue
		}
		visited[key] = struct{}{}
		frontier = append(frontier, s)
	}

	type pair struct{ from, to string }
	seen := make(map[pair]struct{})
	var edges []store.SimilarityEdge

	for hop := 0; hop < maxHops && len(frontier) > 0; hop++ {
		batch, err := h.store.GetSimilarityBatch(ctx, frontier, minScore)
		if err != nil {
			return nil, fmt.Errorf("hop %d: %w", hop+1, err)
		}

		var next []string
		for _, name := range frontier {
			for _, e := range batch[store.ArtistKey(name)] {
				p := pair{store.ArtistKey(e.SourceArtist), store.ArtistKey(e.TargetArtist)}
				if _, ok := seen[p]; !ok {
					seen[p] = struct{}{}
					edges = append(edges, e)
				}
				if _, ok := visited[p.to]; !ok {
					visited[p.to] = struct{}{}
					next = append(next, e.TargetArtist)
				}
			}
		}
		frontier = next
	}
	return edges, nil
}
