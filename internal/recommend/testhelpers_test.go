// Cratedigger - Record Collection Tracker
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/cratedigger

package recommend

import (
	"context"
	"sync"
	"testing"

	"github.com/tomtom215/cratedigger/internal/provider"
	"github.com/tomtom215/cratedigger/internal/store"
)

// testStoreSemaphore serializes DuckDB usage across parallel tests.
var testStoreSemaphore = make(chan struct{}, 1)

func setupTestStore(t *testing.T) *store.DuckDBStore {
	t.Helper()

	testStoreSemaphore <- struct{}{}
	t.Cleanup(func() { <-testStoreSemaphore })

	cfg := store.DefaultConfig()
	cfg.Threads = 1
	cfg.MaxMemory = "256MB"
	s, err := store.Open(cfg)
	if err != nil {
		t.Fatalf("store.Open() error = %v", err)
	}
	t.Cleanup(func() { _ = s.Close() })
	return s
}

// scriptedProvider answers from fixed tables keyed by lower-cased name.
type scriptedProvider struct {
	mu      sync.Mutex
	similar map[string][]provider.SimilarEntity
	tagged  map[string][]provider.TaggedItem
	info    map[string]provider.EntityMetadata
	failing map[string]error
	calls   map[string]int
}

func newScriptedProvider() *scriptedProvider {
	return &scriptedProvider{
		similar: make(map[string][]provider.SimilarEntity),
		tagged:  make(map[string][]provider.TaggedItem),
		info:    make(map[string]provider.EntityMetadata),
		failing: make(map[string]error),
		calls:   make(map[string]int),
	}
}

func (p *scriptedProvider) Name() string { return "lastfm" }

func (p *scriptedProvider) record(method, name string) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.calls[method]++
	return p.failing[store.ArtistKey(name)]
}

func (p *scriptedProvider) count(method string) int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.calls[method]
}

func (p *scriptedProvider) SimilarTo(_ context.Context, name string, limit int) ([]provider.SimilarEntity, error) {
	if err := p.record(methodSimilarTo, name); err != nil {
		return nil, err
	}
	out := p.similar[store.ArtistKey(name)]
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (p *scriptedProvider) TopForTag(_ context.Context, tag string, limit int) ([]provider.TaggedItem, error) {
	if err := p.record(methodTopForTag, tag); err != nil {
		return nil, err
	}
	out := p.tagged[tag]
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (p *scriptedProvider) EntityInfo(_ context.Context, name string) (provider.EntityMetadata, error) {
	if err := p.record(methodEntityInfo, name); err != nil {
		return provider.EntityMetadata{}, err
	}
	meta, ok := p.info[store.ArtistKey(name)]
	if !ok {
		return provider.EntityMetadata{}, provider.ErrNotFound
	}
	return meta, nil
}

// progProvider scripts a small progressive rock neighbourhood.
func progProvider() *scriptedProvider {
	p := newScriptedProvider()
	p.similar["pink floyd"] = []provider.SimilarEntity{
		{Name: "Genesis", Score: 0.8},
		{Name: "Camel", Score: 0.6},
		{Name: "King Crimson", Score: 0.5},
	}
	p.similar["genesis"] = []provider.SimilarEntity{
		{Name: "Marillion", Score: 0.9},
		{Name: "Camel", Score: 0.5},
	}
	p.info["genesis"] = provider.EntityMetadata{
		Name:       "Genesis",
		Tags:       []string{"progressive rock", "rock", "symphonic prog"},
		Country:    "GB",
		Labels:     []string{"Charisma"},
		Year:       1967,
		Popularity: 2500000,
	}
	p.info["camel"] = provider.EntityMetadata{
		Name:       "Camel",
		Tags:       []string{"progressive rock", "canterbury"},
		Country:    "GB",
		Year:       1971,
		Popularity: 30000,
	}
	p.tagged["progressive rock"] = []provider.TaggedItem{
		{Name: "The Dark Side of the Moon", ArtistName: "Pink Floyd", Rank: 1, Popularity: 5000000},
		{Name: "Close to the Edge", ArtistName: "Yes", Rank: 2, Popularity: 900000},
		{Name: "Red", ArtistName: "King Crimson", Rank: 3, Popularity: 400000},
	}
	return p
}

// floydCollection is a small collection centred on Pink Floyd.
func floydCollection() []OwnedItem {
	return []OwnedItem{
		{Artist: "Pink Floyd", Title: "The Dark Side of the Moon", Year: 1973,
			Genres: []string{"Progressive Rock", "Rock"}, Label: "Harvest", Country: "GB"},
		{Artist: "Pink Floyd", Title: "Wish You Were Here", Year: 1975,
			Genres: []string{"progressive rock", "rock"}, Label: "Harvest", Country: "GB"},
		{Artist: "Pink Floyd", Title: "Animals", Year: 1977,
			Genres: []string{"progressive rock", "rock"}, Label: "Harvest", Country: "GB"},
		{Artist: "Pink Floyd", Title: "Meddle", Year: 1971,
			Genres: []string{"progressive rock", "psychedelic rock"}, Label: "Harvest", Country: "GB"},
	}
}
