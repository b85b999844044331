// Cratedigger - Record Collection Tracker
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/cratedigger

/*
Package recommend turns a user's record collection into ranked
recommendation lists.

# Architecture

A request flows through five stages:

 1. BuildProfile summarizes the collection: top artists, genres, eras,
    labels, moods and countries as shares of the collection.
 2. DataFetcher expands the profile through a provider.MetadataProvider:
    similar artists for the top artists and tag charts for the top genres.
    Every response is written to the store.CacheStore, and fresh similarity
    edges in the store are used before calling the provider.
 3. Scorer rates each candidate on six weighted factors (artist proximity,
    tag similarity, era fit, label/scene fit, mood fit, external signal),
    attaches a two-phrase explanation and a confidence.
 4. The optional graph.Recommender adds artists found by Personalized
    PageRank over the cached similarity graph.
 5. AssembleLists distributes results over top_picks, similar_artists,
    genre_matches, hidden_gems and graph_discoveries; no fingerprint
    appears twice.

Results are cached per user and collection fingerprint. CollectionChanged
marks a user's cached results stale.

# Usage

	engine, err := recommend.NewEngine(recommend.DefaultConfig(), db, providers, logger,
	    recommend.WithGraph(graphRecommender))
	if err != nil {
	    return err
	}

	result := engine.GenerateRecommendations(ctx, "alice", items, recommend.Options{})
	if !result.Success {
	    log.Printf("no recommendations: %s (%s)", result.Reason, result.Error)
	}
	for _, r := range result.Lists[recommend.ListTopPicks] {
	    fmt.Println(r.Candidate.Artist, r.Score, r.Explanation)
	}

# Identity

Fingerprint normalizes "artist::title" pairs: case, accents, a leading
article, bracketed suffixes and punctuation are ignored. Artist-level
candidates use an empty title.

# Thread Safety

Engine, Scorer and DataFetcher are safe for concurrent use. BuildProfile and
AssembleLists are pure functions.
*/
package recommend
