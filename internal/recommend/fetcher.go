// Cratedigger - Record Collection Tracker
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/cratedigger

package recommend

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"github.com/tomtom215/cratedigger/internal/provider"
	"github.com/tomtom215/cratedigger/internal/store"
)

// Provider method names used in fetch metadata.
const (
	methodSimilarTo  = "similar_to"
	methodTopForTag  = "top_for_tag"
	methodEntityInfo = "entity_info"
)

// maxCandidateTags caps the tags copied from metadata onto a candidate.
const maxCandidateTags = 5

// DataFetcher turns a profile into a candidate pool using a metadata
// provider, persisting every response to the cache store.
type DataFetcher struct {
	provider provider.MetadataProvider
	store    store.CacheStore
	cfg      FetchConfig
	logger   zerolog.Logger
	now      func() time.Time
}

// NewDataFetcher creates a fetcher. cfg should already be validated.
func NewDataFetcher(p provider.MetadataProvider, s store.CacheStore, cfg FetchConfig, logger zerolog.Logger) *DataFetcher {
	return &DataFetcher{
		provider: p,
		store:    s,
		cfg:      cfg,
		logger:   logger.With().Str("component", "fetcher").Logger(),
		now:      time.Now,
	}
}

// fetchStats collects counters from concurrent fetch steps.
type fetchStats struct {
	mu        sync.Mutex
	requests  map[string]int
	errors    map[string]int
	storeHits int
}

func newFetchStats() *fetchStats {
	return &fetchStats{requests: make(map[string]int), errors: make(map[string]int)}
}

func (s *fetchStats) request(method string, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.requests[method]++
	if err != nil {
		s.errors[method]++
	}
}

func (s *fetchStats) hit() {
	s.mu.Lock()
	s.storeHits++
	s.mu.Unlock()
}

// Fetch gathers candidates for profile, excluding everything in owned.
// Individual artist or tag failures are logged and counted; only context
// cancellation is returned as an error.
func (f *DataFetcher) Fetch(ctx context.Context, profile UserProfile, owned FingerprintSet) (*FetchResult, error) {
	start := f.now()
	stats := newFetchStats()

	sources := f.significantArtists(profile)
	similar := make([][]Candidate, len(sources))

	g := &errgroup.Group{}
	g.SetLimit(f.cfg.Concurrency)
	for i, source := range sources {
		g.Go(func() error {
			similar[i] = f.similarCandidates(ctx, source, owned, stats)
			return nil
		})
	}
	_ = g.Wait() //nolint:errcheck // goroutines never fail

	tags := f.significantTags(profile)
	tagged := make([][]Candidate, len(tags))

	g = &errgroup.Group{}
	g.SetLimit(f.cfg.Concurrency)
	for i, tag := range tags {
		g.Go(func() error {
			tagged[i] = f.tagCandidates(ctx, tag, owned, stats)
			return nil
		})
	}
	_ = g.Wait() //nolint:errcheck // goroutines never fail

	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("fetch candidates: %w", err)
	}

	pool := newCandidatePool()
	for _, group := range similar {
		for i := range group {
			pool.add(group[i])
		}
	}
	for _, group := range tagged {
		for i := range group {
			pool.add(group[i])
		}
	}

	stats.mu.Lock()
	defer stats.mu.Unlock()
	return &FetchResult{
		Candidates: pool.candidates(),
		Metadata: FetchMetadata{
			RequestCounts: stats.requests,
			ErrorCounts:   stats.errors,
			StoreHits:     stats.storeHits,
			DurationMS:    f.now().Sub(start).Milliseconds(),
		},
	}, nil
}

// FetchArtist fetches and persists similarity and metadata for one artist.
// The similarity error is returned; metadata failures are only logged.
func (f *DataFetcher) FetchArtist(ctx context.Context, name string) error {
	stats := newFetchStats()
	if _, err := f.similarArtists(ctx, name, stats); err != nil {
		return err
	}
	if _, err := f.entityMetadata(ctx, name, stats); err != nil && !errors.Is(err, provider.ErrNotFound) {
		f.logger.Debug().Err(err).Str("artist", name).Msg("Entity info unavailable")
	}
	return nil
}

func (f *DataFetcher) significantArtists(profile UserProfile) []string {
	out := make([]string, 0, f.cfg.TopArtists)
	for _, a := range profile.TopArtists {
		if len(out) >= f.cfg.TopArtists {
			break
		}
		if a.Count >= f.cfg.SignificantArtistCount {
			out = append(out, a.Name)
		}
	}
	return out
}

func (f *DataFetcher) significantTags(profile UserProfile) []string {
	out := make([]string, 0, f.cfg.TopGenres)
	for _, s := range profile.TopGenres {
		if len(out) >= f.cfg.TopGenres {
			break
		}
		if s.Count >= f.cfg.SignificantGenreCount {
			out = append(out, s.Key)
		}
	}
	return out
}

// similarArtists returns the similarity edges out of name, from the store
// when fresh and from the provider otherwise.
func (f *DataFetcher) similarArtists(ctx context.Context, name string, stats *fetchStats) ([]store.SimilarityEdge, error) {
	edges, err := f.store.GetSimilarity(ctx, name, f.cfg.DataSource)
	if err != nil {
		f.logger.Warn().Err(err).Str("artist", name).Msg("Similarity lookup failed, fetching from provider")
	} else if len(edges) > 0 {
		stats.hit()
		return edges, nil
	}

	similar, err := f.provider.SimilarTo(ctx, name, f.cfg.SimilarLimit)
	stats.request(methodSimilarTo, err)
	if err != nil {
		return nil, fmt.Errorf("similar to %q: %w", name, err)
	}

	now := f.now()
	edges = make([]store.SimilarityEdge, 0, len(similar))
	for _, s := range similar {
		edges = append(edges, store.SimilarityEdge{
			SourceArtist: name,
			TargetArtist: s.Name,
			Score:        s.Score,
			DataSource:   f.cfg.DataSource,
			UpdatedAt:    now,
		})
	}
	if err := f.store.PutSimilarity(ctx, edges); err != nil {
		f.logger.Warn().Err(err).Str("artist", name).Msg("Failed to persist similarity edges")
	}
	return edges, nil
}

// entityMetadata returns cached or freshly fetched metadata for name. A
// partial record from a tag chart is completed from the provider and keeps
// its tags; it is returned as is when the provider fails.
func (f *DataFetcher) entityMetadata(ctx context.Context, name string, stats *fetchStats) (*store.ArtistMetadata, error) {
	cached, err := f.store.GetEntityMetadata(ctx, name, f.cfg.DataSource)
	if err != nil {
		f.logger.Warn().Err(err).Str("artist", name).Msg("Metadata lookup failed, fetching from provider")
		cached = nil
	} else if cached != nil && !cached.Partial {
		stats.hit()
		return cached, nil
	}

	info, err := f.provider.EntityInfo(ctx, name)
	stats.request(methodEntityInfo, err)
	if err != nil {
		if cached == nil {
			return nil, fmt.Errorf("entity info %q: %w", name, err)
		}
		if errors.Is(err, provider.ErrNotFound) {
			// Tag membership is all there is to know.
			cached.Partial = false
			cached.UpdatedAt = f.now()
			f.putMetadata(ctx, cached)
		}
		return cached, nil
	}

	meta := &store.ArtistMetadata{
		Name:        name,
		DataSource:  f.cfg.DataSource,
		Tags:        info.Tags,
		Country:     info.Country,
		Labels:      info.Labels,
		Year:        info.Year,
		Popularity:  info.Popularity,
		ExternalIDs: info.ExternalIDs,
		UpdatedAt:   f.now(),
	}
	if cached != nil {
		meta.Tags = mergeTags(info.Tags, cached.Tags)
	}
	f.putMetadata(ctx, meta)
	return meta, nil
}

func (f *DataFetcher) putMetadata(ctx context.Context, meta *store.ArtistMetadata) {
	if err := f.store.PutEntityMetadata(ctx, *meta); err != nil {
		f.logger.Warn().Err(err).Str("artist", meta.Name).Msg("Failed to persist entity metadata")
	}
}

// mergeTags appends the tags of extra missing from base.
func mergeTags(base, extra []string) []string {
	out := make([]string, 0, len(base)+len(extra))
	seen := make(map[string]struct{}, len(base)+len(extra))
	for _, list := range [][]string{base, extra} {
		for _, t := range list {
			key := normalizeTag(t)
			if _, ok := seen[key]; ok || key == "" {
				continue
			}
			seen[key] = struct{}{}
			out = append(out, t)
		}
	}
	return out
}

func (f *DataFetcher) similarCandidates(ctx context.Context, source string, owned FingerprintSet, stats *fetchStats) []Candidate {
	edges, err := f.similarArtists(ctx, source, stats)
	if err != nil {
		f.logger.Warn().Err(err).Str("artist", source).Msg("Skipping similar artists")
		return nil
	}

	out := make([]Candidate, 0, len(edges))
	enriched := 0
	for _, e := range edges {
		if e.TargetArtist == "" || owned.HasArtist(e.TargetArtist) {
			continue
		}
		c := Candidate{
			Type:         CandidateSimilarArtist,
			Fingerprint:  Fingerprint(e.TargetArtist, ""),
			Artist:       e.TargetArtist,
			SourceArtist: source,
			Similarity:   e.Score,
		}
		if enriched < f.cfg.EnrichLimit {
			enriched++
			if meta, err := f.entityMetadata(ctx, e.TargetArtist, stats); err == nil {
				applyMetadata(&c, meta)
			} else if !errors.Is(err, provider.ErrNotFound) {
				f.logger.Debug().Err(err).Str("artist", e.TargetArtist).Msg("Enrichment failed")
			}
		}
		out = append(out, c)
	}
	return out
}

func (f *DataFetcher) tagCandidates(ctx context.Context, tag string, owned FingerprintSet, stats *fetchStats) []Candidate {
	items, err := f.provider.TopForTag(ctx, tag, f.cfg.TagLimit)
	stats.request(methodTopForTag, err)
	if err != nil {
		f.logger.Warn().Err(err).Str("tag", tag).Msg("Skipping tag chart")
		return nil
	}

	out := make([]Candidate, 0, len(items))
	for _, item := range items {
		if item.ArtistName == "" && item.Name == "" {
			continue
		}
		fp := Fingerprint(item.ArtistName, item.Name)
		if owned.Contains(fp) {
			continue
		}
		c := Candidate{
			Type:        CandidateGenreMatch,
			Fingerprint: fp,
			Artist:      item.ArtistName,
			Title:       item.Name,
			Genres:      []string{tag},
			Popularity:  item.Popularity,
			Rank:        item.Rank,
			ExternalID:  item.ExternalID,
			SourceTag:   tag,
		}
		if c.Artist == "" {
			c.Artist = item.Name
		}
		if meta := f.recordTag(ctx, c.Artist, tag); meta != nil {
			applyMetadata(&c, meta)
		}
		out = append(out, c)
	}
	return out
}

// recordTag merges tag into the stored metadata of artist and returns the
// merged record. An artist without metadata gets a partial record.
func (f *DataFetcher) recordTag(ctx context.Context, artist, tag string) *store.ArtistMetadata {
	meta, err := f.store.GetEntityMetadata(ctx, artist, f.cfg.DataSource)
	if err != nil {
		f.logger.Warn().Err(err).Str("artist", artist).Msg("Metadata lookup failed")
		return nil
	}
	if meta == nil {
		meta = &store.ArtistMetadata{Name: artist, DataSource: f.cfg.DataSource, Partial: true}
	}
	for _, t := range meta.Tags {
		if normalizeTag(t) == tag {
			return meta
		}
	}
	meta.Tags = append(meta.Tags, tag)
	meta.UpdatedAt = f.now()
	f.putMetadata(ctx, meta)
	return meta
}

// applyMetadata fills the unset descriptive fields of c from meta.
func applyMetadata(c *Candidate, meta *store.ArtistMetadata) {
	seen := make(map[string]struct{}, len(c.Genres))
	for _, g := range c.Genres {
		seen[normalizeTag(g)] = struct{}{}
	}
	for _, t := range meta.Tags {
		if len(c.Genres) >= maxCandidateTags {
			break
		}
		t = normalizeTag(t)
		if _, ok := seen[t]; ok || t == "" {
			continue
		}
		seen[t] = struct{}{}
		c.Genres = append(c.Genres, t)
	}
	if c.Country == "" {
		c.Country = meta.Country
	}
	if c.Label == "" && len(meta.Labels) > 0 {
		c.Label = meta.Labels[0]
	}
	if c.Year == 0 {
		c.Year = meta.Year
	}
	if c.Popularity == 0 {
		c.Popularity = meta.Popularity
	}
	if c.ExternalID == "" {
		c.ExternalID = meta.ExternalIDs["musicbrainz"]
	}
}

// candidatePool keeps the first candidate per fingerprint in insertion
// order and records later routes as additional sources.
type candidatePool struct {
	index map[string]int
	items []Candidate
}

func newCandidatePool() *candidatePool {
	return &candidatePool{index: make(map[string]int)}
}

// add pools c and reports whether it was new.
func (p *candidatePool) add(c Candidate) bool {
	if i, ok := p.index[c.Fingerprint]; ok {
		if p.items[i].primarySource() != c.primarySource() {
			p.items[i].addSource(c.primarySource())
		}
		return false
	}
	p.index[c.Fingerprint] = len(p.items)
	p.items = append(p.items, c)
	return true
}

func (p *candidatePool) candidates() []Candidate {
	return p.items
}
