// Cratedigger - Record Collection Tracker
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/cratedigger

/*
Package graph discovers artists through Personalized PageRank over the
cached artist similarity graph.

# Architecture

A single PageRank implementation runs over edges supplied by a Source:

  - store.SubgraphSource computes the reachable subgraph inside DuckDB with
    one recursive query
  - HopSource expands the subgraph hop by hop with batched
    GetSimilarityBatch lookups and works against any cache store

Recommender tries the primary source and falls back to the second when the
first fails with a GraphComputationError or returns no edges. When neither
yields a graph the Result has NoCandidates set with a Reason; Discover never
returns an error.

Final scores divide PageRank mass by the square root of the out-degree so
that hub artists do not dominate, then map onto a 1-100 display scale.

# Usage

	rec := graph.NewRecommender(graph.DefaultConfig(),
	    store.NewSubgraphSource(db), graph.NewHopSource(db), db, logger)
	res := rec.Discover(ctx, []string{"Pink Floyd", "Camel"}, owned.HasArtist)

# Thread Safety

Recommender holds no mutable state and is safe for concurrent use.
*/
package graph
