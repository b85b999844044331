// Cratedigger - Record Collection Tracker
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/cratedigger

package graph

import (
	"context"
	"errors"
	"fmt"
	"math"
	"sort"

	"github.com/rs/zerolog"

	"github.com/tomtom215/cratedigger/internal/metrics"
	"github.com/tomtom215/cratedigger/internal/store"
)

// SourceName labels candidates produced by graph discovery.
const SourceName = "personalized_pagerank"

// noSourceName is recorded in metrics when no graph could be built.
const noSourceName = "none"

// Config contains configuration for graph discovery.
type Config struct {
	PPR PPRConfig

	// MinSimilarity drops weaker edges from the subgraph.
	// Default: 0.3.
	MinSimilarity float64

	// MaxHops bounds the subgraph around the seeds.
	// Default: 3.
	MaxHops int

	// MaxResults caps the number of discoveries.
	// Default: 20.
	MaxResults int

	// MaxConnectedSeeds caps the seeds reported per discovery.
	// Default: 3.
	MaxConnectedSeeds int

	// FallbackOnly skips the primary source.
	FallbackOnly bool
}

// DefaultConfig returns default graph discovery configuration.
func DefaultConfig() Config {
	return Config{
		PPR:               DefaultPPRConfig(),
		MinSimilarity:     0.3,
		MaxHops:           3,
		MaxResults:        20,
		MaxConnectedSeeds: 3,
	}
}

// GraphComputationError reports a source that could not produce a graph.
type GraphComputationError struct {
	Source string
	Err    error
}

func (e *GraphComputationError) Error() string {
	return fmt.Sprintf("graph computation via %s: %v", e.Source, e.Err)
}

func (e *GraphComputationError) Unwrap() error { return e.Err }

// SeedConnection ties a discovery to one owned seed artist.
type SeedConnection struct {
	Artist     string  `json:"artist"`
	Similarity float64 `json:"similarity"`
	Direct     bool    `json:"direct"`
}

// Discovery is one artist found by PageRank.
type Discovery struct {
	Artist         string           `json:"artist"`
	Score          float64          `json:"score"`
	DisplayScore   int              `json:"display_score"`
	ConnectedSeeds []SeedConnection `json:"connected_seeds"`
}

// Result is the outcome of Discover. NoCandidates is set with a Reason
// instead of returning an error.
type Result struct {
	Discoveries  []Discovery `json:"discoveries"`
	Source       string      `json:"source"`
	Iterations   int         `json:"iterations"`
	Converged    bool        `json:"converged"`
	NoCandidates bool        `json:"no_candidates"`
	Reason       string      `json:"reason,omitempty"`
	Errors       []error     `json:"-"`
}

// EdgeLookup is the batched similarity lookup used for seed connections
// and the hop-by-hop source.
type EdgeLookup interface {
	GetSimilarityBatch(ctx context.Context, sources []string, minScore float64) (map[string][]store.SimilarityEdge, error)
}

// Recommender runs Personalized PageRank over a primary graph source and
// falls back to a second source when the first fails or finds nothing.
type Recommender struct {
	cfg      Config
	primary  Source
	fallback Source
	lookup   EdgeLookup
	logger   zerolog.Logger
}

// NewRecommender creates a recommender. primary may be nil; lookup may be
// nil, in which case seed connections come from the subgraph alone.
func NewRecommender(cfg Config, primary, fallback Source, lookup EdgeLookup, logger zerolog.Logger) *Recommender {
	return &Recommender{
		cfg:      cfg,
		primary:  primary,
		fallback: fallback,
		lookup:   lookup,
		logger:   logger.With().Str("component", "graph").Logger(),
	}
}

// Discover ranks artists reachable from seeds. Seeds and artists for which
// exclude returns true never appear in the result. exclude receives the
// artist key and may be nil.
func (r *Recommender) Discover(ctx context.Context, seeds []string, exclude func(artist string) bool) *Result {
	result := &Result{}
	if len(seeds) == 0 {
		result.NoCandidates = true
		result.Reason = "no seed artists"
		metrics.RecordPPR(noSourceName, 0)
		return result
	}

	edges, source := r.subgraph(ctx, seeds, result)
	if len(edges) == 0 {
		result.NoCandidates = true
		result.Source = noSourceName
		result.Reason = "no similarity graph around the seed artists"
		if len(result.Errors) > 0 {
			result.Reason = errors.Join(result.Errors...).Error()
		}
		metrics.RecordPPR(noSourceName, 0)
		return result
	}
	result.Source = source

	ppr := PersonalizedPageRank(edges, seeds, r.cfg.PPR)
	result.Iterations = ppr.Iterations
	result.Converged = ppr.Converged
	metrics.RecordPPR(source, ppr.Iterations)

	seedKeys := make(map[string]struct{}, len(seeds))
	for _, s := range seeds {
		seedKeys[store.ArtistKey(s)] = struct{}{}
	}

	type ranked struct {
		key   string
		score float64
	}
	candidates := make([]ranked, 0, len(ppr.Scores))
	for key, score := range ppr.Scores {
		if score <= 0 {
			continue
		}
		if _, ok := seedKeys[key]; ok {
			continue
		}
		if exclude != nil && exclude(key) {
			continue
		}
		deg := math.Max(1, float64(ppr.OutDegree[key]))
		candidates = append(candidates, ranked{key: key, score: score / math.Sqrt(deg)})
	}
	sort.Slice(candidates, func(i, j int) bool {
		if candidates[i].score != candidates[j].score {
			return candidates[i].score > candidates[j].score
		}
		return candidates[i].key < candidates[j].key
	})
	if r.cfg.MaxResults > 0 && len(candidates) > r.cfg.MaxResults {
		candidates = candidates[:r.cfg.MaxResults]
	}

	keys := make([]string, len(candidates))
	for i, c := range candidates {
		keys[i] = c.key
	}
	connections := r.connectSeeds(ctx, seeds, keys, edges)

	for _, c := range candidates {
		seedsFor := connections[c.key]
		if len(seedsFor) == 0 {
			continue
		}
		result.Discoveries = append(result.Discoveries, Discovery{
			Artist:         ppr.Names[c.key],
			Score:          c.score,
			ConnectedSeeds: seedsFor,
		})
	}
	normalizeDisplay(result.Discoveries)

	if len(result.Discoveries) == 0 {
		result.NoCandidates = true
		result.Reason = "every reachable artist is already owned"
	}
	return result
}

// subgraph tries the primary source, then the fallback.
func (r *Recommender) subgraph(ctx context.Context, seeds []string, result *Result) ([]store.SimilarityEdge, string) {
	sources := make([]Source, 0, 2)
	if r.primary != nil && !r.cfg.FallbackOnly {
		sources = append(sources, r.primary)
	}
	if r.fallback != nil {
		sources = append(sources, r.fallback)
	}

	for _, src := range sources {
		edges, err := src.Subgraph(ctx, seeds, r.cfg.MaxHops, r.cfg.MinSimilarity)
		if err != nil {
			gerr := &GraphComputationError{Source: src.Name(), Err: err}
			result.Errors = append(result.Errors, gerr)
			r.logger.Warn().Err(gerr).Msg("Graph source failed, trying next")
			continue
		}
		if len(edges) > 0 {
			return edges, src.Name()
		}
		r.logger.Debug().Str("source", src.Name()).Msg("Graph source returned no edges")
	}
	return nil, ""
}

// connectSeeds returns, per discovery key, the seeds it is connected to.
// Direct seed edges come from one batched lookup; the rest use the
// strongest multiplicative path through the subgraph.
func (r *Recommender) connectSeeds(ctx context.Context, seeds, keys []string, edges []store.SimilarityEdge) map[string][]SeedConnection {
	want := make(map[string]struct{}, len(keys))
	for _, k := range keys {
		want[k] = struct{}{}
	}
	out := make(map[string][]SeedConnection, len(keys))

	direct := make(map[string]map[string]float64, len(keys))
	if r.lookup != nil {
		batch, err := r.lookup.GetSimilarityBatch(ctx, seeds, r.cfg.MinSimilarity)
		if err != nil {
			r.logger.Warn().Err(err).Msg("Seed connection lookup failed, using subgraph paths")
		}
		for _, seed := range seeds {
			for _, e := range batch[store.ArtistKey(seed)] {
				target := store.ArtistKey(e.TargetArtist)
				if _, ok := want[target]; !ok {
					continue
				}
				if direct[target] == nil {
					direct[target] = make(map[string]float64)
				}
				if e.Score > direct[target][seed] {
					direct[target][seed] = e.Score
				}
			}
		}
	}

	paths := pathStrengths(seeds, edges, r.cfg.MaxHops)

	for _, k := range keys {
		var conns []SeedConnection
		for _, seed := range seeds {
			if sim, ok := direct[k][seed]; ok {
				conns = append(conns, SeedConnection{Artist: seed, Similarity: sim, Direct: true})
				continue
			}
			if sim := paths[seed][k]; sim > 0 {
				conns = append(conns, SeedConnection{Artist: seed, Similarity: sim})
			}
		}
		sort.SliceStable(conns, func(i, j int) bool {
			return conns[i].Similarity > conns[j].Similarity
		})
		if r.cfg.MaxConnectedSeeds > 0 && len(conns) > r.cfg.MaxConnectedSeeds {
			conns = conns[:r.cfg.MaxConnectedSeeds]
		}
		out[k] = conns
	}
	return out
}

// pathStrengths returns, per seed, the best product of edge scores along
// paths of at most maxHops edges to every reachable artist key.
func pathStrengths(seeds []string, edges []store.SimilarityEdge, maxHops int) map[string]map[string]float64 {
	adj := make(map[string][]store.SimilarityEdge)
	for _, e := range edges {
		k := store.ArtistKey(e.SourceArtist)
		adj[k] = append(adj[k], e)
	}

	out := make(map[string]map[string]float64, len(seeds))
	for _, seed := range seeds {
		origin := store.ArtistKey(seed)
		best := map[string]float64{origin: 1}
		frontier := map[string]float64{origin: 1}
		for hop := 0; hop < maxHops && len(frontier) > 0; hop++ {
			next := make(map[string]float64)
			for node, strength := range frontier {
				for _, e := range adj[node] {
					to := store.ArtistKey(e.TargetArtist)
					s := strength * e.Score
					if s > best[to] {
						best[to] = s
						next[to] = s
					}
				}
			}
			frontier = next
		}
		delete(best, origin)
		out[seed] = best
	}
	return out
}

// normalizeDisplay maps scores onto 1..100. Equal scores all map to 100.
func normalizeDisplay(ds []Discovery) {
	if len(ds) == 0 {
		return
	}
	lo, hi := ds[0].Score, ds[0].Score
	for _, d := range ds[1:] {
		lo = math.Min(lo, d.Score)
		hi = math.Max(hi, d.Score)
	}
	for i := range ds {
		if hi == lo {
			ds[i].DisplayScore = 100
			continue
		}
		ds[i].DisplayScore = 1 + int(math.Round(99*(ds[i].Score-lo)/(hi-lo)))
	}
}
