// Cratedigger - Record Collection Tracker
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/cratedigger

/*
Package provider implements the external metadata sources the recommendation
engine draws candidates from.

Every provider satisfies MetadataProvider. The HTTP clients share one shape:

  - A RequestQueue runs requests one at a time on a single goroutine, paced
    by a golang.org/x/time/rate limiter (one request per MinInterval).
  - Responses are cached in a cache.Cache keyed by method and parameters.
  - HTTP 429 responses are retried in-client with exponential backoff,
    honouring Retry-After.
  - Every other failure surfaces as a *ProviderError carrying the status
    code and whether a retry could help.

Clients:

  - LastFM: artist.getsimilar, tag.gettopalbums and artist.getinfo.
  - MusicBrainz: artist search for country, tags and life-span.
  - Discogs: database search for labels, styles, year and community counts.

MusicBrainz and Discogs only answer EntityInfo; SimilarTo and TopForTag
return ErrUnsupported. Chain merges EntityInfo across providers, and
CircuitBreaker wraps any provider with a sony/gobreaker breaker.
*/
package provider
