// Cratedigger - Record Collection Tracker
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/cratedigger

package graph

import (
	"math"
	"sort"

	"github.com/tomtom215/cratedigger/internal/store"
)

// PPRConfig contains configuration for Personalized PageRank.
type PPRConfig struct {
	// Damping is the probability of following an edge rather than
	// restarting at a seed.
	// Default: 0.85.
	Damping float64

	// MaxIterations bounds the power iteration.
	// Default: 20.
	MaxIterations int

	// Threshold stops iteration once no score moves by more than it.
	// Default: 1e-4.
	Threshold float64
}

// DefaultPPRConfig returns default PageRank configuration.
func DefaultPPRConfig() PPRConfig {
	return PPRConfig{Damping: 0.85, MaxIterations: 20, Threshold: 1e-4}
}

// PPRResult holds the stationary scores of a PageRank run.
type PPRResult struct {
	// Scores maps artist keys to their raw PageRank mass.
	Scores map[string]float64

	// Names maps artist keys to a display name.
	Names map[string]string

	// OutDegree maps artist keys to their number of outgoing edges.
	OutDegree map[string]int

	Iterations int
	Converged  bool
}

type weightedEdge struct {
	to     int
	weight float64
}

// PersonalizedPageRank runs PageRank over edges with restarts distributed
// uniformly over seeds:
//
//	score'(v) = (1-d)·restart(v) + d·Σ_{u→v} score(u)·w(u→v)/Σ_out(u)
//
// Mass reaching a node without outgoing edges is not redistributed, so the
// total never exceeds 1. Seeds absent from edges still receive restart mass.
func PersonalizedPageRank(edges []store.SimilarityEdge, seeds []string, cfg PPRConfig) PPRResult {
	index := make(map[string]int)
	var keys, names []string
	node := func(name string) int {
		key := store.ArtistKey(name)
		if i, ok := index[key]; ok {
			return i
		}
		index[key] = len(keys)
		keys = append(keys, key)
		names = append(names, name)
		return len(keys) - 1
	}

	seedIdx := make(map[int]struct{}, len(seeds))
	for _, s := range seeds {
		if store.ArtistKey(s) == "" {
			continue
		}
		seedIdx[node(s)] = struct{}{}
	}

	// Collapse duplicate (u,v) pairs from different data sources to the
	// strongest edge.
	best := make(map[[2]int]float64)
	for _, e := range edges {
		if e.Score <= 0 {
			continue
		}
		u, v := node(e.SourceArtist), node(e.TargetArtist)
		if u == v {
			continue
		}
		k := [2]int{u, v}
		if e.Score > best[k] {
			best[k] = e.Score
		}
	}

	n := len(keys)
	out := make([][]weightedEdge, n)
	outSum := make([]float64, n)
	pairs := make([][2]int, 0, len(best))
	for k := range best {
		pairs = append(pairs, k)
	}
	// Deterministic summation order.
	sort.Slice(pairs, func(i, j int) bool {
		if pairs[i][0] != pairs[j][0] {
			return pairs[i][0] < pairs[j][0]
		}
		return pairs[i][1] < pairs[j][1]
	})
	for _, k := range pairs {
		w := best[k]
		out[k[0]] = append(out[k[0]], weightedEdge{to: k[1], weight: w})
		outSum[k[0]] += w
	}

	result := PPRResult{
		Scores:    make(map[string]float64, n),
		Names:     make(map[string]string, n),
		OutDegree: make(map[string]int, n),
	}
	if len(seedIdx) == 0 {
		return result
	}

	restart := 1 / float64(len(seedIdx))
	score := make([]float64, n)
	for i := range seedIdx {
		score[i] = restart
	}
	next := make([]float64, n)

	for result.Iterations < cfg.MaxIterations {
		result.Iterations++
		for i := range next {
			next[i] = 0
		}
		for i := range seedIdx {
			next[i] = (1 - cfg.Damping) * restart
		}
		for u := 0; u < n; u++ {
			if score[u] == 0 || outSum[u] == 0 {
				continue
			}
			for _, e := range out[u] {
				next[e.to] += cfg.Damping * score[u] * e.weight / outSum[u]
			}
		}

		var delta float64
		for i := range score {
			delta = math.Max(delta, math.Abs(next[i]-score[i]))
		}
		score, next = next, score
		if delta < cfg.Threshold {
			result.Converged = true
			break
		}
	}

	for i, key := range keys {
		result.Scores[key] = score[i]
		result.Names[key] = names[i]
		result.OutDegree[key] = len(out[i])
	}
	return result
}
