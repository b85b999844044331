// Cratedigger - Record Collection Tracker
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/cratedigger

package recommend

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync/atomic"
	"time"

	"github.com/goccy/go-json"
	"github.com/rs/zerolog"

	"github.com/tomtom215/cratedigger/internal/logging"
	"github.com/tomtom215/cratedigger/internal/metrics"
	"github.com/tomtom215/cratedigger/internal/provider"
	"github.com/tomtom215/cratedigger/internal/recommend/graph"
	"github.com/tomtom215/cratedigger/internal/store"
)

// Run outcomes recorded in metrics.
const (
	outcomeSuccess  = "success"
	outcomeInvalid  = "invalid_input"
	outcomeTooSmall = "too_small"
	outcomeError    = "error"
)

// WarmItem is an artist worth prefetching, with the signals the warmer
// uses to prioritize it.
type WarmItem struct {
	ArtistName  string
	RecScore    float64
	Connections int
	Frequency   int
	Popularity  int64
}

// WarmerSink receives prefetch work and user activity signals.
type WarmerSink interface {
	Enqueue(userID string, items []WarmItem)
	Activity()
}

// Catalog lists a user's owned items. A user the catalog does not know
// is reported with an error wrapping ErrUnknownUser.
type Catalog interface {
	ListOwnedItems(ctx context.Context, userID string) ([]OwnedItem, error)
}

// Stats are engine-level counters since start.
type Stats struct {
	Requests    int64 `json:"requests"`
	CacheHits   int64 `json:"cache_hits"`
	CacheMisses int64 `json:"cache_misses"`
	Errors      int64 `json:"errors"`
}

// Engine produces recommendation lists from a user's collection.
// It is safe for concurrent use.
type Engine struct {
	cfg     Config
	store   store.CacheStore
	fetcher *DataFetcher
	scorer  *Scorer
	graph   *graph.Recommender
	warmer  WarmerSink
	logger  zerolog.Logger
	now     func() time.Time

	requestCount atomic.Int64
	cacheHits    atomic.Int64
	cacheMisses  atomic.Int64
	errorCount   atomic.Int64
}

// EngineOption configures optional collaborators.
type EngineOption func(*Engine)

// WithGraph enables graph discovery.
func WithGraph(g *graph.Recommender) EngineOption {
	return func(e *Engine) { e.graph = g }
}

// WithWarmer attaches a background warmer.
func WithWarmer(w WarmerSink) EngineOption {
	return func(e *Engine) { e.warmer = w }
}

// WithClock overrides the time source.
func WithClock(now func() time.Time) EngineOption {
	return func(e *Engine) {
		e.now = now
		e.fetcher.now = now
	}
}

// NewEngine creates a new recommendation engine.
//
//nolint:gocritic // logger passed by value is acceptable for zerolog
func NewEngine(cfg Config, s store.CacheStore, p provider.MetadataProvider, logger zerolog.Logger, opts ...EngineOption) (*Engine, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	if s == nil || p == nil {
		return nil, errors.New("recommend: store and provider are required")
	}

	logger = logger.With().Str("component", "recommend").Logger()
	e := &Engine{
		cfg:     cfg,
		store:   s,
		fetcher: NewDataFetcher(p, s, cfg.Fetch, logger),
		scorer:  NewScorer(cfg),
		logger:  logger,
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e, nil
}

// Fetcher returns the engine's data fetcher, which the warmer drives.
func (e *Engine) Fetcher() *DataFetcher {
	return e.fetcher
}

// SetWarmer attaches w after construction. The warmer needs the fetcher
// and the engine needs the warmer, so one side is wired late.
func (e *Engine) SetWarmer(w WarmerSink) {
	e.warmer = w
}

// Stats returns the engine counters.
func (e *Engine) Stats() Stats {
	return Stats{
		Requests:    e.requestCount.Load(),
		CacheHits:   e.cacheHits.Load(),
		CacheMisses: e.cacheMisses.Load(),
		Errors:      e.errorCount.Load(),
	}
}

// cachedPayload is the persisted form of a result.
type cachedPayload struct {
	Lists          map[string][]ScoredResult `json:"lists"`
	Profile        *UserProfile              `json:"profile"`
	Graph          *GraphSummary             `json:"graph,omitempty"`
	Fetch          *FetchMetadata            `json:"fetch,omitempty"`
	CandidateCount int                       `json:"candidate_count"`
	GeneratedAt    time.Time                 `json:"generated_at"`
}

// GenerateRecommendations builds recommendation lists for a collection.
// It never returns an error: failures are reported through Success,
// Reason and Error on the result.
func (e *Engine) GenerateRecommendations(ctx context.Context, userID string, owned []OwnedItem, opts Options) *RecommendationResult {
	start := e.now()
	e.requestCount.Add(1)

	ctx, requestID := e.prepareContext(ctx, userID)
	logger := e.createRequestLogger(requestID, userID)
	logger.Debug().Int("items", len(owned)).Msg("processing recommendation request")

	if e.warmer != nil && !opts.Background {
		e.warmer.Activity()
	}

	result := &RecommendationResult{
		Lists:    emptyLists(),
		Metadata: ResultMetadata{RequestID: requestID},
	}

	if err := validateItems(owned); err != nil {
		// Malformed records are a caller bug.
		logger.Error().Err(err).Msg("invalid owned items")
		return e.fail(result, ReasonInvalidInput, err, outcomeInvalid, start)
	}

	profile := BuildProfile(owned, e.cfg.Profile)
	result.Profile = &profile
	if profile.TotalItems < e.cfg.Profile.MinItems || len(profile.TopArtists) == 0 {
		err := &ProfileError{
			TotalItems: profile.TotalItems,
			MinItems:   e.cfg.Profile.MinItems,
			NoArtists:  len(profile.TopArtists) == 0,
		}
		logger.Debug().Err(err).Msg("collection too small")
		return e.fail(result, ReasonCollectionTooSmall, err, outcomeTooSmall, start)
	}

	fingerprint := CollectionFingerprint(owned)
	result.Metadata.Fingerprint = fingerprint

	if !opts.ForceRefresh {
		if cached := e.tryGetCachedResult(ctx, userID, fingerprint, result, start, logger); cached != nil {
			return cached
		}
	}
	e.cacheMisses.Add(1)

	ownedSet := NewFingerprintSet(owned)
	fetched, err := e.fetcher.Fetch(ctx, profile, ownedSet)
	if err != nil {
		logger.Warn().Err(err).Msg("candidate fetch aborted")
		return e.fail(result, ReasonCanceled, err, outcomeError, start)
	}

	scored := e.scoreCandidates(fetched.Candidates, &profile, ownedSet, logger)
	scored, result.Graph = e.discover(ctx, scored, owned, &profile, ownedSet, logger)

	result.Lists = AssembleLists(scored, e.cfg.Lists)
	result.Success = true
	result.Metadata.Fetch = &fetched.Metadata
	result.Metadata.CandidateCount = len(scored)
	result.Metadata.GeneratedAt = e.now()

	e.writeBack(ctx, userID, fingerprint, result, owned, logger)
	e.enqueueWarm(userID, scored)

	result.Metadata.LatencyMS = e.now().Sub(start).Milliseconds()
	metrics.RecordRecommendationRun(outcomeSuccess, false, e.now().Sub(start), len(scored))

	logger.Debug().
		Int("candidates", len(scored)).
		Int64("latency_ms", result.Metadata.LatencyMS).
		Msg("recommendation complete")
	return result
}

// GenerateForUser loads the user's items from catalog and generates
// recommendations for them.
func (e *Engine) GenerateForUser(ctx context.Context, catalog Catalog, userID string, opts Options) *RecommendationResult {
	items, err := catalog.ListOwnedItems(ctx, userID)
	if err != nil {
		e.requestCount.Add(1)
		result := &RecommendationResult{Lists: emptyLists()}
		err = fmt.Errorf("list owned items: %w", err)
		switch {
		case errors.Is(err, ErrUnknownUser):
			return e.fail(result, ReasonUnknownUser, err, outcomeInvalid, e.now())
		case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
			return e.fail(result, ReasonCanceled, err, outcomeError, e.now())
		default:
			e.logger.Error().Err(err).Str("user_id", userID).Msg("catalog unavailable")
			return e.fail(result, ReasonCatalogUnavailable, err, outcomeError, e.now())
		}
	}
	return e.GenerateRecommendations(ctx, userID, items, opts)
}

// CollectionChanged marks the user's cached results stale.
func (e *Engine) CollectionChanged(ctx context.Context, userID string) error {
	if err := e.store.InvalidateUser(ctx, userID); err != nil {
		return fmt.Errorf("invalidate user %s: %w", userID, err)
	}
	e.logger.Debug().Str("user_id", userID).Msg("collection changed, cached results invalidated")
	return nil
}

func (e *Engine) prepareContext(ctx context.Context, userID string) (context.Context, string) {
	requestID := logging.RequestIDFromContext(ctx)
	if requestID == "" {
		requestID = logging.GenerateRequestID()
		ctx = logging.ContextWithRequestID(ctx, requestID)
	}
	return logging.ContextWithUserID(ctx, userID), requestID
}

func (e *Engine) createRequestLogger(requestID, userID string) zerolog.Logger {
	return e.logger.With().
		Str("request_id", requestID).
		Str("user_id", userID).
		Logger()
}

func (e *Engine) fail(result *RecommendationResult, reason string, err error, outcome string, start time.Time) *RecommendationResult {
	if outcome != outcomeTooSmall {
		e.errorCount.Add(1)
	}
	result.Success = false
	result.Reason = reason
	result.Error = err.Error()
	result.Metadata.LatencyMS = e.now().Sub(start).Milliseconds()
	metrics.RecordRecommendationRun(outcome, false, e.now().Sub(start), 0)
	return result
}

// tryGetCachedResult returns the cached result for fingerprint, or nil.
func (e *Engine) tryGetCachedResult(ctx context.Context, userID, fingerprint string, result *RecommendationResult, start time.Time, logger zerolog.Logger) *RecommendationResult {
	entry, err := e.store.GetUserRecommendations(ctx, userID, fingerprint)
	if err != nil {
		logger.Warn().Err(err).Msg("result cache lookup failed")
		return nil
	}
	if entry == nil {
		return nil
	}

	var payload cachedPayload
	if err := json.Unmarshal(entry.Payload, &payload); err != nil {
		logger.Warn().Err(err).Msg("discarding unreadable cached result")
		return nil
	}

	e.cacheHits.Add(1)
	result.Success = true
	result.Lists = payload.Lists
	if result.Lists == nil {
		result.Lists = emptyLists()
	}
	if payload.Profile != nil {
		result.Profile = payload.Profile
	}
	result.Graph = payload.Graph
	result.Metadata.CacheHit = true
	result.Metadata.Fetch = payload.Fetch
	result.Metadata.CandidateCount = payload.CandidateCount
	result.Metadata.GeneratedAt = payload.GeneratedAt
	result.Metadata.LatencyMS = e.now().Sub(start).Milliseconds()
	metrics.RecordRecommendationRun(outcomeSuccess, true, e.now().Sub(start), payload.CandidateCount)
	logger.Debug().Int("views", entry.ViewCount).Msg("cache hit")
	return result
}

func (e *Engine) scoreCandidates(candidates []Candidate, profile *UserProfile, owned FingerprintSet, logger zerolog.Logger) []ScoredResult {
	valid := make([]Candidate, 0, len(candidates))
	for i := range candidates {
		if err := candidates[i].Validate(); err != nil {
			logger.Debug().Err(err).Str("fingerprint", candidates[i].Fingerprint).Msg("dropping malformed candidate")
			continue
		}
		valid = append(valid, candidates[i])
	}
	return e.scorer.scoreAll(valid, profile, owned)
}

// discover runs graph discovery seeded with every owned artist and merges
// its candidates into scored. Discoveries already in scored are recorded as
// additional sources.
func (e *Engine) discover(ctx context.Context, scored []ScoredResult, items []OwnedItem, profile *UserProfile, owned FingerprintSet, logger zerolog.Logger) ([]ScoredResult, *GraphSummary) {
	if e.graph == nil {
		return scored, nil
	}

	artists := ownedArtists(items)
	seeds := make([]string, 0, len(artists))
	for _, a := range artists {
		seeds = append(seeds, a.Name)
	}

	res := e.graph.Discover(ctx, seeds, owned.HasArtist)
	summary := &GraphSummary{
		Source:       res.Source,
		Iterations:   res.Iterations,
		NoCandidates: res.NoCandidates,
		Reason:       res.Reason,
	}
	if res.NoCandidates {
		logger.Debug().Str("reason", res.Reason).Msg("graph discovery found nothing")
		return scored, summary
	}

	index := make(map[string]int, len(scored))
	for i := range scored {
		index[scored[i].Candidate.Fingerprint] = i
	}

	graphSource := CandidateSource{Type: CandidateGraphDiscovery, Source: graph.SourceName}
	fresh := make([]Candidate, 0, len(res.Discoveries))
	for _, d := range res.Discoveries {
		fp := Fingerprint(d.Artist, "")
		if i, ok := index[fp]; ok {
			scored[i].Candidate.addSource(graphSource)
			continue
		}
		c := Candidate{
			Type:           CandidateGraphDiscovery,
			Fingerprint:    fp,
			Artist:         d.Artist,
			PPRScore:       float64(d.DisplayScore) / 100,
			DisplayScore:   d.DisplayScore,
			ConnectedSeeds: d.ConnectedSeeds,
		}
		if meta, err := e.store.GetEntityMetadata(ctx, d.Artist, e.cfg.Fetch.DataSource); err != nil {
			logger.Debug().Err(err).Str("artist", d.Artist).Msg("metadata lookup failed")
		} else if meta != nil {
			applyMetadata(&c, meta)
		}
		fresh = append(fresh, c)
	}

	added := e.scoreCandidates(fresh, profile, owned, logger)
	summary.Discoveries = len(added)
	return append(scored, added...), summary
}

// writeBack persists the result and the owned artists. Failures are logged.
func (e *Engine) writeBack(ctx context.Context, userID, fingerprint string, result *RecommendationResult, owned []OwnedItem, logger zerolog.Logger) {
	payload, err := json.Marshal(cachedPayload{
		Lists:          result.Lists,
		Profile:        result.Profile,
		Graph:          result.Graph,
		Fetch:          result.Metadata.Fetch,
		CandidateCount: result.Metadata.CandidateCount,
		GeneratedAt:    result.Metadata.GeneratedAt,
	})
	if err != nil {
		logger.Warn().Err(err).Msg("failed to encode result for cache")
	} else if err := e.store.PutUserRecommendations(ctx, userID, fingerprint, payload, e.cfg.RecommendationTTL); err != nil {
		logger.Warn().Err(err).Msg("failed to cache result")
	}

	if err := e.store.SyncOwnedArtists(ctx, userID, ownedArtists(owned)); err != nil {
		logger.Warn().Err(err).Msg("failed to sync owned artists")
	}
}

// enqueueWarm hands artist-level candidates to the warmer.
func (e *Engine) enqueueWarm(userID string, scored []ScoredResult) {
	if e.warmer == nil {
		return
	}

	byArtist := make(map[string]*WarmItem)
	for i := range scored {
		c := &scored[i].Candidate
		if c.Type == CandidateGenreMatch {
			continue
		}
		key := store.ArtistKey(c.Artist)
		item, ok := byArtist[key]
		if !ok {
			item = &WarmItem{ArtistName: c.Artist}
			byArtist[key] = item
		}
		item.Frequency += 1 + len(c.AdditionalSources)
		item.RecScore = max(item.RecScore, scored[i].Score)
		item.Connections = max(item.Connections, max(len(c.ConnectedSeeds), 1+len(c.AdditionalSources)))
		item.Popularity = max(item.Popularity, c.Popularity)
	}
	if len(byArtist) == 0 {
		return
	}

	items := make([]WarmItem, 0, len(byArtist))
	for _, it := range byArtist {
		items = append(items, *it)
	}
	sort.Slice(items, func(i, j int) bool { return items[i].ArtistName < items[j].ArtistName })
	e.warmer.Enqueue(userID, items)
}

func validateItems(items []OwnedItem) error {
	for i := range items {
		if err := items[i].Validate(); err != nil {
			return &InvalidItemError{Index: i, Err: err}
		}
	}
	return nil
}

func ownedArtists(items []OwnedItem) []store.OwnedArtist {
	counts := make(map[string]*store.OwnedArtist)
	order := make([]string, 0)
	for i := range items {
		if items[i].Artist == "" {
			continue
		}
		key := store.ArtistKey(items[i].Artist)
		if a, ok := counts[key]; ok {
			a.Count++
			continue
		}
		counts[key] = &store.OwnedArtist{Name: items[i].Artist, Count: 1}
		order = append(order, key)
	}
	out := make([]store.OwnedArtist, 0, len(order))
	for _, k := range order {
		out = append(out, *counts[k])
	}
	return out
}

func emptyLists() map[string][]ScoredResult {
	lists := make(map[string][]ScoredResult, len(ListNames()))
	for _, name := range ListNames() {
		lists[name] = []ScoredResult{}
	}
	return lists
}
