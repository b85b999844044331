// Cratedigger - Record Collection Tracker
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/cratedigger

/*
Package cache provides the in-memory building blocks shared by the metadata
providers and the background warmer.

# TTL cache

Cache is a thread-safe key/value store where every entry expires after a
time-to-live. Provider clients keep one Cache each and key it with
GenerateKey so that identical calls (same method, same parameters) are served
locally for the configured TTL (24h by default):

	c := cache.New(24 * time.Hour)
	defer c.Close()

	key := cache.GenerateKey("artist.getsimilar", map[string]any{"artist": "Pink Floyd", "limit": 20})
	if v, ok := c.Get(key); ok {
	    return v.([]provider.SimilarEntity), nil
	}

Expired entries are dropped lazily on Get and by a background sweep.

# Score heap

ScoreHeap is an indexed max-heap ordered by a float64 score. The warmer uses
it as its priority queue of artists to prefetch; the key index makes
re-prioritising an already queued artist O(log n).

	h := cache.NewScoreHeap[QueueItem](0)
	h.Push("genesis", item, 0.82)
	top := h.Peek()
*/
package cache
