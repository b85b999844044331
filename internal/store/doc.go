// Cratedigger - Record Collection Tracker
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/cratedigger

/*
Package store persists everything the recommendation engine learns from
external providers, so repeated runs and the background warmer can work from
local data.

CacheStore is the contract; DuckDBStore implements it on an embedded DuckDB
database with four tables:

  - artist_similarity: directed similarity edges keyed by
    (source, target, data source). Rows older than the similarity TTL are
    ignored on read.
  - artist_metadata: provider metadata per artist and data source, stored
    as JSON.
  - user_owned_artists: the artists of each user's collection with item
    counts, replaced wholesale on every sync.
  - user_recommendation_cache: serialized recommendation results per user
    and collection fingerprint, with expiry, a stale flag and a view count.

The fifth logical component is the store-side subgraph query behind
SubgraphSource: one recursive CTE that returns every edge reachable from a
set of seed artists within a hop limit, feeding Personalized PageRank.

Writes are INSERT ... ON CONFLICT DO UPDATE upserts (last write wins) and
are retried briefly on DuckDB transaction conflicts. Every failure is
returned as a *StoreError naming the operation.

Artist names are matched case-insensitively through ArtistKey.
*/
package store
