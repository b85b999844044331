// Cratedigger - Record Collection Tracker
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/cratedigger

package graph

import (
	"math"
	"testing"

	"github.com/tomtom215/cratedigger/internal/store"
)

func edge(from, to string, score float64) store.SimilarityEdge {
	return store.SimilarityEdge{SourceArtist: from, TargetArtist: to, Score: score, DataSource: "test"}
}

func totalMass(scores map[string]float64) float64 {
	var sum float64
	for _, s := range scores {
		sum += s
	}
	return sum
}

// closedGraph is a 5-node graph where every node has outgoing edges.
func closedGraph() []store.SimilarityEdge {
	return []store.SimilarityEdge{
		edge("A", "B", 0.9),
		edge("B", "C", 0.8),
		edge("C", "D", 0.7),
		edge("D", "E", 0.6),
		edge("E", "A", 0.5),
		edge("A", "C", 0.4),
		edge("C", "A", 0.3),
	}
}

func TestPersonalizedPageRank_ConvergesOnClosedGraph(t *testing.T) {
	t.Parallel()

	cfg := DefaultPPRConfig()
	cfg.MaxIterations = 200

	res := PersonalizedPageRank(closedGraph(), []string{"A"}, cfg)

	if !res.Converged {
		t.Fatalf("Converged = false after %d iterations", res.Iterations)
	}
	if len(res.Scores) != 5 {
		t.Fatalf("len(Scores) = %d, want 5", len(res.Scores))
	}
	if mass := totalMass(res.Scores); math.Abs(mass-1) > 1e-3 {
		t.Errorf("total mass = %f, want ~1 on a closed graph", mass)
	}
	for key, s := range res.Scores {
		if s <= 0 {
			t.Errorf("score[%s] = %f, want > 0", key, s)
		}
	}
	if res.Scores["a"] <= res.Scores["e"] {
		t.Errorf("seed score %f should exceed distant node %f", res.Scores["a"], res.Scores["e"])
	}
}

func TestPersonalizedPageRank_DefaultIterationCap(t *testing.T) {
	t.Parallel()

	res := PersonalizedPageRank(closedGraph(), []string{"A"}, DefaultPPRConfig())

	if res.Iterations > 20 {
		t.Errorf("Iterations = %d, want <= 20", res.Iterations)
	}
	if mass := totalMass(res.Scores); mass > 1+1e-9 {
		t.Errorf("total mass = %f, want <= 1", mass)
	}
}

func TestPersonalizedPageRank_DanglingMassIsBounded(t *testing.T) {
	t.Parallel()

	edges := []store.SimilarityEdge{
		edge("A", "B", 1),
		edge("B", "C", 1),
	}
	res := PersonalizedPageRank(edges, []string{"A"}, DefaultPPRConfig())

	mass := totalMass(res.Scores)
	if mass >= 1 {
		t.Errorf("total mass = %f, want < 1 with a dangling node", mass)
	}
	if res.OutDegree["c"] != 0 || res.OutDegree["a"] != 1 {
		t.Errorf("OutDegree = %v", res.OutDegree)
	}
}

func TestPersonalizedPageRank_NoSeeds(t *testing.T) {
	t.Parallel()

	res := PersonalizedPageRank(closedGraph(), nil, DefaultPPRConfig())
	if res.Iterations != 0 || len(res.Scores) != 0 {
		t.Errorf("expected empty result without seeds, got %+v", res)
	}
}

func TestPersonalizedPageRank_DuplicateEdgesKeepStrongest(t *testing.T) {
	t.Parallel()

	edges := []store.SimilarityEdge{
		edge("A", "B", 0.2),
		edge("a", "b", 0.9),
		edge("A", "C", 0.9),
		edge("A", "A", 1),
	}
	res := PersonalizedPageRank(edges, []string{"A"}, DefaultPPRConfig())

	if res.OutDegree["a"] != 2 {
		t.Errorf("OutDegree[a] = %d, want 2", res.OutDegree["a"])
	}
	if math.Abs(res.Scores["b"]-res.Scores["c"]) > 1e-12 {
		t.Errorf("scores b=%f c=%f should be equal after collapsing duplicates", res.Scores["b"], res.Scores["c"])
	}
}

func TestNormalizeDisplay(t *testing.T) {
	t.Parallel()

	ds := []Discovery{{Score: 0.5}, {Score: 0.25}, {Score: 0}}
	normalizeDisplay(ds)
	want := []int{100, 51, 1}
	for i, d := range ds {
		if d.DisplayScore != want[i] {
			t.Errorf("ds[%d].DisplayScore = %d, want %d", i, d.DisplayScore, want[i])
		}
	}

	same := []Discovery{{Score: 0.3}, {Score: 0.3}}
	normalizeDisplay(same)
	for i, d := range same {
		if d.DisplayScore != 100 {
			t.Errorf("same[%d].DisplayScore = %d, want 100", i, d.DisplayScore)
		}
	}
}
