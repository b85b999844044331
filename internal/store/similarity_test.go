// Cratedigger - Record Collection Tracker
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/cratedigger

package store

import (
	"context"
	"testing"
	"time"
)

func TestSimilarity_PutAndGet(t *testing.T) {
	s, _ := setupTestStore(t)
	ctx := context.Background()

	err := s.PutSimilarity(ctx, []SimilarityEdge{
		{SourceArtist: "Pink Floyd", TargetArtist: "Genesis", Score: 0.8, DataSource: "lastfm"},
		{SourceArtist: "Pink Floyd", TargetArtist: "Yes", Score: 0.9, DataSource: "lastfm"},
		{SourceArtist: "Pink Floyd", TargetArtist: "Camel", Score: 1.7, DataSource: "lastfm"},
		{SourceArtist: "Pink Floyd", TargetArtist: "pink floyd", Score: 1, DataSource: "lastfm"},
		{SourceArtist: "Pink Floyd", TargetArtist: "King Crimson", Score: 0.5, DataSource: "other"},
	})
	if err != nil {
		t.Fatalf("PutSimilarity() error = %v", err)
	}

	edges, err := s.GetSimilarity(ctx, "PINK FLOYD", "lastfm")
	if err != nil {
		t.Fatalf("GetSimilarity() error = %v", err)
	}
	if len(edges) != 3 {
		t.Fatalf("GetSimilarity() returned %d edges, want 3 (self-edge skipped, other source excluded)", len(edges))
	}
	if edges[0].TargetArtist != "Camel" || edges[0].Score != 1 {
		t.Errorf("edges[0] = %+v, want Camel clamped to 1", edges[0])
	}
	if edges[1].TargetArtist != "Yes" || edges[2].TargetArtist != "Genesis" {
		t.Errorf("order = %s, %s; want Yes, Genesis", edges[1].TargetArtist, edges[2].TargetArtist)
	}
}

func TestSimilarity_UpsertLastWriteWins(t *testing.T) {
	s, clock := setupTestStore(t)
	ctx := context.Background()

	edge := SimilarityEdge{SourceArtist: "Pink Floyd", TargetArtist: "Genesis", Score: 0.4, DataSource: "lastfm"}
	if err := s.PutSimilarity(ctx, []SimilarityEdge{edge}); err != nil {
		t.Fatalf("PutSimilarity() error = %v", err)
	}
	clock.Advance(time.Hour)
	edge.Score = 0.85
	if err := s.PutSimilarity(ctx, []SimilarityEdge{edge}); err != nil {
		t.Fatalf("PutSimilarity() error = %v", err)
	}

	edges, err := s.GetSimilarity(ctx, "Pink Floyd", "lastfm")
	if err != nil {
		t.Fatalf("GetSimilarity() error = %v", err)
	}
	if len(edges) != 1 || edges[0].Score != 0.85 {
		t.Fatalf("edges = %+v, want one edge with score 0.85", edges)
	}
	if !edges[0].UpdatedAt.Equal(clock.Now()) {
		t.Errorf("UpdatedAt = %v, want %v", edges[0].UpdatedAt, clock.Now())
	}
}

func TestSimilarity_TTL(t *testing.T) {
	s, clock := setupTestStore(t)
	ctx := context.Background()

	if err := s.PutSimilarity(ctx, []SimilarityEdge{
		{SourceArtist: "Pink Floyd", TargetArtist: "Genesis", Score: 0.8, DataSource: "lastfm"},
	}); err != nil {
		t.Fatalf("PutSimilarity() error = %v", err)
	}

	clock.Advance(6 * 24 * time.Hour)
	if edges, _ := s.GetSimilarity(ctx, "Pink Floyd", "lastfm"); len(edges) != 1 {
		t.Errorf("after 6 days got %d edges, want 1", len(edges))
	}

	clock.Advance(2 * 24 * time.Hour)
	if edges, _ := s.GetSimilarity(ctx, "Pink Floyd", "lastfm"); len(edges) != 0 {
		t.Errorf("after 8 days got %d edges, want 0", len(edges))
	}
}

func TestSimilarity_Batch(t *testing.T) {
	s, _ := setupTestStore(t)
	ctx := context.Background()

	if err := s.PutSimilarity(ctx, []SimilarityEdge{
		{SourceArtist: "Pink Floyd", TargetArtist: "Genesis", Score: 0.8, DataSource: "lastfm"},
		{SourceArtist: "Pink Floyd", TargetArtist: "Genesis", Score: 0.6, DataSource: "other"},
		{SourceArtist: "Pink Floyd", TargetArtist: "Yes", Score: 0.2, DataSource: "lastfm"},
		{SourceArtist: "Genesis", TargetArtist: "Camel", Score: 0.7, DataSource: "lastfm"},
		{SourceArtist: "Rush", TargetArtist: "Yes", Score: 0.9, DataSource: "lastfm"},
	}); err != nil {
		t.Fatalf("PutSimilarity() error = %v", err)
	}

	got, err := s.GetSimilarityBatch(ctx, []string{"Pink Floyd", "genesis", "Pink Floyd", "Nobody"}, 0.3)
	if err != nil {
		t.Fatalf("GetSimilarityBatch() error = %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("GetSimilarityBatch() keys = %d, want 2", len(got))
	}

	pf := got["pink floyd"]
	if len(pf) != 1 || pf[0].TargetArtist != "Genesis" || pf[0].Score != 0.8 || pf[0].DataSource != "lastfm" {
		t.Errorf("pink floyd edges = %+v, want one Genesis edge with the best score", pf)
	}
	if g := got["genesis"]; len(g) != 1 || g[0].TargetArtist != "Camel" {
		t.Errorf("genesis edges = %+v", g)
	}

	empty, err := s.GetSimilarityBatch(ctx, nil, 0)
	if err != nil || len(empty) != 0 {
		t.Errorf("GetSimilarityBatch(nil) = %v, %v", empty, err)
	}
}

func TestSubgraph(t *testing.T) {
	s, _ := setupTestStore(t)
	ctx := context.Background()

	// a -> b -> c -> d -> e, plus a weak a -> x and an unrelated y -> z.
	if err := s.PutSimilarity(ctx, []SimilarityEdge{
		{SourceArtist: "A", TargetArtist: "B", Score: 0.9, DataSource: "lastfm"},
		{SourceArtist: "B", TargetArtist: "C", Score: 0.8, DataSource: "lastfm"},
		{SourceArtist: "C", TargetArtist: "D", Score: 0.7, DataSource: "lastfm"},
		{SourceArtist: "D", TargetArtist: "E", Score: 0.6, DataSource: "lastfm"},
		{SourceArtist: "A", TargetArtist: "X", Score: 0.1, DataSource: "lastfm"},
		{SourceArtist: "Y", TargetArtist: "Z", Score: 0.9, DataSource: "lastfm"},
	}); err != nil {
		t.Fatalf("PutSimilarity() error = %v", err)
	}

	tests := []struct {
		name      string
		maxHops   int
		wantEdges int
	}{
		{"one hop", 1, 1},
		{"two hops", 2, 2},
		{"three hops", 3, 3},
		{"five hops", 5, 4},
	}
	for _, tt := range tests {
		edges, err := s.Subgraph(ctx, []string{"a"}, tt.maxHops, 0.3)
		if err != nil {
			t.Fatalf("%s: Subgraph() error = %v", tt.name, err)
		}
		if len(edges) != tt.wantEdges {
			t.Errorf("%s: got %d edges, want %d: %+v", tt.name, len(edges), tt.wantEdges, edges)
		}
		for _, e := range edges {
			if e.TargetArtist == "X" || e.SourceArtist == "Y" {
				t.Errorf("%s: unexpected edge %+v", tt.name, e)
			}
		}
	}

	src := NewSubgraphSource(s)
	if src.Name() != SubgraphSourceName {
		t.Errorf("Name() = %q", src.Name())
	}
	edges, err := src.Subgraph(ctx, []string{"A", "Y"}, 1, 0.3)
	if err != nil {
		t.Fatalf("Subgraph() error = %v", err)
	}
	if len(edges) != 2 {
		t.Errorf("two seeds: got %d edges, want 2", len(edges))
	}

	none, err := s.Subgraph(ctx, nil, 3, 0.3)
	if err != nil || none != nil {
		t.Errorf("Subgraph(nil) = %v, %v", none, err)
	}
}
