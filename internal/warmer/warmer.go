// Cratedigger - Record Collection Tracker
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/cratedigger

package warmer

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"github.com/tomtom215/cratedigger/internal/cache"
	"github.com/tomtom215/cratedigger/internal/metrics"
	"github.com/tomtom215/cratedigger/internal/recommend"
	"github.com/tomtom215/cratedigger/internal/store"
)

// Fetch results recorded in metrics.
const (
	fetchSuccess = "success"
	fetchFailure = "failure"
	fetchDropped = "dropped"
	fetchCached  = "cached"
)

// ErrAlreadyRunning is returned by Warm when a loop for the same user is
// in progress.
var ErrAlreadyRunning = errors.New("warmer: already running for user")

// Fetcher fetches and persists the data of one artist.
// *recommend.DataFetcher satisfies it.
type Fetcher interface {
	FetchArtist(ctx context.Context, name string) error
}

// Freshness looks up cached similarity edges.
// store.CacheStore satisfies it.
type Freshness interface {
	GetSimilarity(ctx context.Context, source, dataSource string) ([]store.SimilarityEdge, error)
}

// Config holds warmer configuration.
type Config struct {
	// IdleThreshold is how long no activity must be seen before a run starts.
	// Default: 30s
	IdleThreshold time.Duration

	// TickInterval is how often Serve checks whether to run.
	// Default: 5s
	TickInterval time.Duration

	// BaseDelay is the first retry delay; it doubles with every attempt.
	// Default: 1m
	BaseDelay time.Duration

	// MaxRetries is the number of failed attempts after which an artist is
	// dropped.
	// Default: 3
	MaxRetries int

	// PersistEvery saves progress after this many fetched artists.
	// Default: 10
	PersistEvery int

	// StateMaxAge discards persisted state and completions older than it.
	// Default: 24h
	StateMaxAge time.Duration

	// MaxQueue bounds each user's queue. 0 means unlimited.
	// Default: 500
	MaxQueue int

	// Concurrency is the number of users warmed at once.
	// Default: 1
	Concurrency int

	// DataSource is the similarity data source checked for freshness.
	// Default: "lastfm"
	DataSource string
}

// DefaultConfig returns default warmer configuration.
func DefaultConfig() Config {
	return Config{
		IdleThreshold: 30 * time.Second,
		TickInterval:  5 * time.Second,
		BaseDelay:     time.Minute,
		MaxRetries:    3,
		PersistEvery:  10,
		StateMaxAge:   24 * time.Hour,
		MaxQueue:      500,
		Concurrency:   1,
		DataSource:    "lastfm",
	}
}

// Validate checks the configuration.
func (c *Config) Validate() error {
	if c.IdleThreshold <= 0 {
		return fmt.Errorf("idle_threshold must be positive, got %v", c.IdleThreshold)
	}
	if c.TickInterval <= 0 {
		return fmt.Errorf("tick_interval must be positive, got %v", c.TickInterval)
	}
	if c.BaseDelay <= 0 {
		return fmt.Errorf("base_delay must be positive, got %v", c.BaseDelay)
	}
	if c.MaxRetries < 1 {
		return fmt.Errorf("max_retries must be at least 1, got %d", c.MaxRetries)
	}
	if c.PersistEvery < 1 {
		return fmt.Errorf("persist_every must be at least 1, got %d", c.PersistEvery)
	}
	if c.StateMaxAge <= 0 {
		return fmt.Errorf("state_max_age must be positive, got %v", c.StateMaxAge)
	}
	if c.MaxQueue < 0 {
		return fmt.Errorf("max_queue must be non-negative, got %d", c.MaxQueue)
	}
	if c.Concurrency < 1 {
		return fmt.Errorf("concurrency must be at least 1, got %d", c.Concurrency)
	}
	if c.DataSource == "" {
		return errors.New("data_source is required")
	}
	return nil
}

// Stats is a point-in-time view of the warmer.
type Stats struct {
	State     string `json:"state"`
	Users     int    `json:"users"`
	Queued    int    `json:"queued"`
	Completed int    `json:"completed"`
	Dropped   int    `json:"dropped"`
}

// userQueue is the warming work of one user.
type userQueue struct {
	queue     *cache.ScoreHeap[recommend.WarmItem]
	completed map[string]time.Time
	failures  map[string]Failure
	sinceSave int
	dirty     bool
}

// Option configures a Warmer.
type Option func(*Warmer)

// WithClock overrides the time source.
func WithClock(now func() time.Time) Option {
	return func(w *Warmer) { w.now = now }
}

// Warmer prefetches similarity data for likely recommendations while the
// user is idle. It implements recommend.WarmerSink and suture.Service.
type Warmer struct {
	cfg     Config
	fetcher Fetcher
	fresh   Freshness
	states  StateStore
	logger  zerolog.Logger
	now     func() time.Time

	mu           sync.Mutex
	state        State
	lastActivity time.Time
	users        map[string]*userQueue
	running      map[string]bool
}

// New creates a warmer. A nil states keeps progress in memory only.
//
//nolint:gocritic // logger passed by value is acceptable for zerolog
func New(cfg Config, fetcher Fetcher, fresh Freshness, states StateStore, logger zerolog.Logger, opts ...Option) (*Warmer, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid warmer config: %w", err)
	}
	if fetcher == nil || fresh == nil {
		return nil, errors.New("warmer: fetcher and freshness source are required")
	}
	if states == nil {
		states = NewMemoryStateStore()
	}

	w := &Warmer{
		cfg:     cfg,
		fetcher: fetcher,
		fresh:   fresh,
		states:  states,
		logger:  logger.With().Str("component", "warmer").Logger(),
		now:     time.Now,
		state:   StateIdle,
		users:   make(map[string]*userQueue),
		running: make(map[string]bool),
	}
	for _, opt := range opts {
		opt(w)
	}
	metrics.SetWarmerState(w.state.String())
	return w, nil
}

// String returns the service name for logging.
func (w *Warmer) String() string {
	return "cache-warmer"
}

// State returns the current lifecycle state.
func (w *Warmer) State() State {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.state
}

// Enqueue adds items to the user's queue. An item already queued keeps the
// higher of its two priorities. Completed and dropped artists are ignored.
func (w *Warmer) Enqueue(userID string, items []recommend.WarmItem) {
	w.mu.Lock()
	defer w.mu.Unlock()

	u := w.userLocked(userID)
	now := w.now()
	added := 0
	for _, it := range items {
		key := store.ArtistKey(it.ArtistName)
		if key == "" {
			continue
		}
		if w.completedLocked(u, key, now) {
			continue
		}
		if f, ok := u.failures[key]; ok && f.Attempts >= w.cfg.MaxRetries {
			continue
		}
		p := Priority(it)
		if existing := u.queue.Get(key); existing != nil {
			if existing.Score >= p {
				continue
			}
		} else {
			added++
		}
		if evicted := u.queue.Push(key, it, p); evicted != nil {
			w.logger.Debug().Str("artist", evicted.Value.ArtistName).Msg("queue full, evicted lowest priority artist")
		}
		u.dirty = true
	}

	w.publishProgressLocked()
	w.logger.Debug().
		Str("user_id", userID).
		Int("added", added).
		Int("queued", u.queue.Len()).
		Msg("warm items enqueued")
}

// Activity records a user interaction. A running warmer pauses.
func (w *Warmer) Activity() {
	w.mu.Lock()
	defer w.mu.Unlock()

	w.lastActivity = w.now()
	if w.state == StateRunning {
		w.setStateLocked(StatePaused)
	}
}

// Progress returns the progress of one user's queue.
func (w *Warmer) Progress(userID string) Progress {
	w.mu.Lock()
	defer w.mu.Unlock()

	u, ok := w.users[userID]
	if !ok {
		return Progress{}
	}
	return newProgress(len(u.completed), u.queue.Len())
}

// Stats returns aggregate counters over all users.
func (w *Warmer) Stats() Stats {
	w.mu.Lock()
	defer w.mu.Unlock()

	s := Stats{State: w.state.String(), Users: len(w.users)}
	for _, u := range w.users {
		s.Queued += u.queue.Len()
		s.Completed += len(u.completed)
		for _, f := range u.failures {
			if f.Attempts >= w.cfg.MaxRetries {
				s.Dropped++
			}
		}
	}
	return s
}

// Serve implements suture.Service. It restores persisted state, then checks
// every TickInterval whether the user has been idle long enough to run.
func (w *Warmer) Serve(ctx context.Context) error {
	w.logger.Info().
		Dur("idle_threshold", w.cfg.IdleThreshold).
		Dur("tick_interval", w.cfg.TickInterval).
		Msg("cache warmer starting")

	if err := w.restore(ctx); err != nil {
		w.logger.Warn().Err(err).Msg("failed to restore warmer state, starting empty")
	}

	w.mu.Lock()
	if w.lastActivity.IsZero() {
		w.lastActivity = w.now()
	}
	if w.state == StateStopped {
		w.setStateLocked(StateIdle)
	}
	w.mu.Unlock()

	ticker := time.NewTicker(w.cfg.TickInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			w.stop()
			w.logger.Info().Msg("cache warmer shutting down")
			return ctx.Err()

		case <-ticker.C:
			w.tick(ctx)
		}
	}
}

// tick advances the state machine and runs a warming pass when due.
func (w *Warmer) tick(ctx context.Context) {
	users := w.transition()
	if len(users) == 0 {
		return
	}

	var g errgroup.Group
	g.SetLimit(w.cfg.Concurrency)
	for _, userID := range users {
		g.Go(func() error {
			n, err := w.Warm(ctx, userID)
			switch {
			case errors.Is(err, ErrAlreadyRunning):
			case err != nil:
				w.logger.Debug().Err(err).Str("user_id", userID).Int("fetched", n).Msg("warming pass interrupted")
			case n > 0:
				w.logger.Debug().Str("user_id", userID).Int("fetched", n).Msg("warming pass complete")
			}
			return nil
		})
	}
	_ = g.Wait()

	w.mu.Lock()
	if w.state == StateRunning && w.pendingLocked() == 0 {
		w.setStateLocked(StateIdle)
	}
	w.mu.Unlock()
}

// transition applies the idle and resume rules and returns the users to
// warm, or nil when the warmer should not run.
func (w *Warmer) transition() []string {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.state == StateStopped {
		return nil
	}
	if w.pendingLocked() == 0 {
		if w.state != StateIdle {
			w.setStateLocked(StateIdle)
		}
		return nil
	}
	if w.state != StateRunning {
		if w.now().Sub(w.lastActivity) < w.cfg.IdleThreshold {
			return nil
		}
		w.setStateLocked(StateRunning)
	}

	users := make([]string, 0, len(w.users))
	for id, u := range w.users {
		if u.queue.Len() > 0 {
			users = append(users, id)
		}
	}
	sort.Strings(users)
	return users
}

// Warm fetches the user's queue in priority order until it is exhausted,
// the warmer pauses or ctx ends. It returns the number of artists fetched.
func (w *Warmer) Warm(ctx context.Context, userID string) (int, error) {
	w.mu.Lock()
	if w.running[userID] {
		w.mu.Unlock()
		return 0, ErrAlreadyRunning
	}
	u, ok := w.users[userID]
	if !ok {
		w.mu.Unlock()
		return 0, nil
	}
	w.running[userID] = true
	w.mu.Unlock()

	defer func() {
		w.mu.Lock()
		delete(w.running, userID)
		w.mu.Unlock()
	}()

	fetched := 0
	for ctx.Err() == nil && !w.interrupted() {
		entry, ok := w.next(ctx, u)
		if !ok {
			break
		}

		err := w.fetcher.FetchArtist(ctx, entry.Value.ArtistName)
		if err != nil && ctx.Err() != nil {
			// Shutdown, not the artist's fault.
			w.requeue(u, entry)
			break
		}
		if err != nil {
			w.recordFailure(u, entry, err)
			continue
		}

		fetched++
		if w.recordSuccess(u, entry.Key) {
			w.persist(ctx, userID)
		}
	}

	w.persist(ctx, userID)
	return fetched, ctx.Err()
}

func (w *Warmer) interrupted() bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.state == StatePaused || w.state == StateStopped
}

// next pops the highest-priority artist that still needs fetching.
// Artists with fresh similarity edges in the store are completed on the way.
func (w *Warmer) next(ctx context.Context, u *userQueue) (*cache.ScoreEntry[recommend.WarmItem], bool) {
	for {
		w.mu.Lock()
		entry := w.popEligibleLocked(u)
		w.mu.Unlock()
		if entry == nil {
			return nil, false
		}

		edges, err := w.fresh.GetSimilarity(ctx, entry.Value.ArtistName, w.cfg.DataSource)
		if err != nil {
			w.logger.Debug().Err(err).Str("artist", entry.Value.ArtistName).Msg("freshness check failed")
		}
		if err != nil || len(edges) == 0 {
			return entry, true
		}

		w.mu.Lock()
		u.completed[entry.Key] = w.now()
		u.dirty = true
		w.publishProgressLocked()
		w.mu.Unlock()
		metrics.RecordWarmerFetch(fetchCached)
	}
}

// popEligibleLocked pops entries until one is neither completed, dropped
// nor inside its backoff window. Entries still backing off are requeued.
func (w *Warmer) popEligibleLocked(u *userQueue) *cache.ScoreEntry[recommend.WarmItem] {
	now := w.now()
	var waiting []*cache.ScoreEntry[recommend.WarmItem]
	defer func() {
		for _, e := range waiting {
			u.queue.Push(e.Key, e.Value, e.Score)
		}
	}()

	for {
		e := u.queue.Pop()
		if e == nil {
			return nil
		}
		if w.completedLocked(u, e.Key, now) {
			continue
		}
		if f, ok := u.failures[e.Key]; ok {
			if f.Attempts >= w.cfg.MaxRetries {
				continue
			}
			if now.Before(f.retryAt(w.cfg.BaseDelay)) {
				waiting = append(waiting, e)
				continue
			}
		}
		return e
	}
}

func (w *Warmer) requeue(u *userQueue, e *cache.ScoreEntry[recommend.WarmItem]) {
	w.mu.Lock()
	u.queue.Push(e.Key, e.Value, e.Score)
	w.mu.Unlock()
}

func (w *Warmer) recordFailure(u *userQueue, e *cache.ScoreEntry[recommend.WarmItem], err error) {
	w.mu.Lock()
	defer w.mu.Unlock()

	f := u.failures[e.Key]
	f.Attempts++
	f.LastAttempt = w.now()
	u.failures[e.Key] = f
	u.dirty = true

	logger := w.logger.With().Str("artist", e.Value.ArtistName).Int("attempts", f.Attempts).Logger()
	if f.Attempts >= w.cfg.MaxRetries {
		metrics.RecordWarmerFetch(fetchDropped)
		logger.Warn().Err(err).Msg("giving up on artist")
	} else {
		u.queue.Push(e.Key, e.Value, e.Score)
		metrics.RecordWarmerFetch(fetchFailure)
		logger.Debug().Err(err).Time("retry_at", f.retryAt(w.cfg.BaseDelay)).Msg("fetch failed, backing off")
	}
	w.publishProgressLocked()
}

// recordSuccess completes key and reports whether a save is due.
func (w *Warmer) recordSuccess(u *userQueue, key string) bool {
	w.mu.Lock()
	defer w.mu.Unlock()

	u.completed[key] = w.now()
	delete(u.failures, key)
	u.sinceSave++
	u.dirty = true
	metrics.RecordWarmerFetch(fetchSuccess)
	w.publishProgressLocked()
	return u.sinceSave >= w.cfg.PersistEvery
}

// persist saves the user's snapshot when it changed since the last save.
func (w *Warmer) persist(ctx context.Context, userID string) {
	w.mu.Lock()
	u, ok := w.users[userID]
	if !ok || !u.dirty {
		w.mu.Unlock()
		return
	}
	snap := w.snapshotLocked(userID, u)
	w.mu.Unlock()

	if err := w.states.Save(ctx, snap); err != nil {
		w.logger.Warn().Err(err).Str("user_id", userID).Msg("failed to persist warmer state")
		return
	}

	w.mu.Lock()
	u.dirty = false
	u.sinceSave = 0
	w.mu.Unlock()
}

func (w *Warmer) snapshotLocked(userID string, u *userQueue) *Snapshot {
	sorted := u.queue.Sorted()
	snap := &Snapshot{
		UserID:    userID,
		Queue:     make([]QueuedItem, 0, len(sorted)),
		Completed: make(map[string]time.Time, len(u.completed)),
		Failures:  make(map[string]Failure, len(u.failures)),
		Progress:  newProgress(len(u.completed), len(sorted)),
		SavedAt:   w.now(),
	}
	for _, e := range sorted {
		snap.Queue = append(snap.Queue, QueuedItem{Item: e.Value, Priority: e.Score})
	}
	for k, t := range u.completed {
		snap.Completed[k] = t
	}
	for k, f := range u.failures {
		snap.Failures[k] = f
	}
	return snap
}

// restore merges persisted snapshots. Snapshots older than StateMaxAge are
// deleted instead.
func (w *Warmer) restore(ctx context.Context) error {
	snaps, err := w.states.LoadAll(ctx)
	if err != nil {
		return fmt.Errorf("load warmer state: %w", err)
	}

	now := w.now()
	restored := 0
	for _, snap := range snaps {
		if now.Sub(snap.SavedAt) > w.cfg.StateMaxAge {
			w.logger.Info().Str("user_id", snap.UserID).Time("saved_at", snap.SavedAt).Msg("discarding stale warmer state")
			if err := w.states.Delete(ctx, snap.UserID); err != nil {
				w.logger.Warn().Err(err).Str("user_id", snap.UserID).Msg("failed to delete stale warmer state")
			}
			continue
		}
		w.merge(snap, now)
		restored++
	}
	if restored > 0 {
		w.logger.Info().Int("users", restored).Msg("warmer state restored")
	}
	return nil
}

func (w *Warmer) merge(snap *Snapshot, now time.Time) {
	w.mu.Lock()
	defer w.mu.Unlock()

	u := w.userLocked(snap.UserID)
	for k, t := range snap.Completed {
		if now.Sub(t) <= w.cfg.StateMaxAge && t.After(u.completed[k]) {
			u.completed[k] = t
		}
	}
	for k, f := range snap.Failures {
		if f.Attempts > u.failures[k].Attempts {
			u.failures[k] = f
		}
	}
	for _, q := range snap.Queue {
		key := store.ArtistKey(q.Item.ArtistName)
		if key == "" || u.queue.Get(key) != nil {
			continue
		}
		u.queue.Push(key, q.Item, q.Priority)
	}
	w.publishProgressLocked()
}

// stop marks the warmer stopped and saves every user.
func (w *Warmer) stop() {
	w.mu.Lock()
	w.setStateLocked(StateStopped)
	users := make([]string, 0, len(w.users))
	for id := range w.users {
		users = append(users, id)
	}
	w.mu.Unlock()

	// The serve context is already canceled.
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	for _, id := range users {
		w.persist(ctx, id)
	}
}

func (w *Warmer) userLocked(userID string) *userQueue {
	u, ok := w.users[userID]
	if !ok {
		u = &userQueue{
			queue:     cache.NewScoreHeap[recommend.WarmItem](w.cfg.MaxQueue),
			completed: make(map[string]time.Time),
			failures:  make(map[string]Failure),
		}
		w.users[userID] = u
	}
	return u
}

// completedLocked reports whether key completed within StateMaxAge.
// Older completions are forgotten.
func (w *Warmer) completedLocked(u *userQueue, key string, now time.Time) bool {
	t, ok := u.completed[key]
	if !ok {
		return false
	}
	if now.Sub(t) > w.cfg.StateMaxAge {
		delete(u.completed, key)
		return false
	}
	return true
}

func (w *Warmer) pendingLocked() int {
	n := 0
	for _, u := range w.users {
		n += u.queue.Len()
	}
	return n
}

func (w *Warmer) setStateLocked(s State) {
	if w.state == s {
		return
	}
	w.logger.Debug().Str("from", w.state.String()).Str("to", s.String()).Msg("warmer state change")
	w.state = s
	metrics.SetWarmerState(s.String())
}

func (w *Warmer) publishProgressLocked() {
	var done, remaining int
	for _, u := range w.users {
		done += len(u.completed)
		remaining += u.queue.Len()
	}
	metrics.SetWarmerProgress(remaining, newProgress(done, remaining).Percent)
}
