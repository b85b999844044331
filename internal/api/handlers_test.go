// Cratedigger - Record Collection Tracker
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/cratedigger

package api

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/goccy/go-json"

	"github.com/tomtom215/cratedigger/internal/recommend"
	"github.com/tomtom215/cratedigger/internal/store"
	"github.com/tomtom215/cratedigger/internal/warmer"
)

type fakeEngine struct {
	mu          sync.Mutex
	result      *recommend.RecommendationResult
	lastUser    string
	lastItems   []recommend.OwnedItem
	lastOpts    recommend.Options
	catalogRuns int
	invalidated []string
	invalidErr  error
}

func (f *fakeEngine) GenerateRecommendations(_ context.Context, userID string, owned []recommend.OwnedItem, opts recommend.Options) *recommend.RecommendationResult {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.lastUser, f.lastItems, f.lastOpts = userID, owned, opts
	return f.result
}

func (f *fakeEngine) GenerateForUser(ctx context.Context, catalog recommend.Catalog, userID string, opts recommend.Options) *recommend.RecommendationResult {
	f.mu.Lock()
	f.catalogRuns++
	f.mu.Unlock()
	items, _ := catalog.ListOwnedItems(ctx, userID)
	return f.GenerateRecommendations(ctx, userID, items, opts)
}

func (f *fakeEngine) CollectionChanged(_ context.Context, userID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.invalidated = append(f.invalidated, userID)
	return f.invalidErr
}

func (f *fakeEngine) Stats() recommend.Stats {
	return recommend.Stats{Requests: 3, CacheHits: 1}
}

type staticCatalog []recommend.OwnedItem

func (c staticCatalog) ListOwnedItems(context.Context, string) ([]recommend.OwnedItem, error) {
	return c, nil
}

type fakeWarmer struct{}

func (fakeWarmer) Stats() warmer.Stats { return warmer.Stats{State: "paused", Queued: 4} }
func (fakeWarmer) Progress(string) warmer.Progress {
	return warmer.Progress{Fetched: 1, Remaining: 3, Percent: 25}
}

type fakeStore struct {
	pingErr error
	artists []store.OwnedArtist
}

func (s *fakeStore) Ping(context.Context) error { return s.pingErr }
func (s *fakeStore) OwnedArtists(context.Context, string) ([]store.OwnedArtist, error) {
	return s.artists, nil
}

func okResult() *recommend.RecommendationResult {
	return &recommend.RecommendationResult{
		Success: true,
		Lists: map[string][]recommend.ScoredResult{
			"top_picks": {{Candidate: recommend.Candidate{Artist: "Genesis"}, Score: 0.8}},
		},
	}
}

func newTestRouter(e *fakeEngine, opts ...HandlerOption) http.Handler {
	cfg := DefaultChiMiddlewareConfig()
	cfg.RateLimitRequests = 0
	return NewRouter(NewHandler(e, opts...), NewChiMiddleware(cfg)).SetupChi()
}

func do(t *testing.T, h http.Handler, method, path, body string) (*httptest.ResponseRecorder, APIResponse) {
	t.Helper()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	var resp APIResponse
	if strings.HasPrefix(rec.Header().Get("Content-Type"), "application/json") {
		if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
			t.Fatalf("decode %s %s: %v", method, path, err)
		}
	}
	return rec, resp
}

func TestHandler_Health(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name     string
		path     string
		store    *fakeStore
		wantCode int
		wantStat string
	}{
		{"live", "/api/v1/health/live", nil, http.StatusOK, "success"},
		{"ready without store", "/api/v1/health/ready", nil, http.StatusOK, "ready"},
		{"ready", "/api/v1/health/ready", &fakeStore{}, http.StatusOK, "ready"},
		{"store down", "/api/v1/health/ready", &fakeStore{pingErr: errors.New("closed")}, http.StatusServiceUnavailable, "not_ready"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			var opts []HandlerOption
			if tt.store != nil {
				opts = append(opts, WithStore(tt.store))
			}
			rec, resp := do(t, newTestRouter(&fakeEngine{}, opts...), http.MethodGet, tt.path, "")
			if rec.Code != tt.wantCode || resp.Status != tt.wantStat {
				t.Errorf("code=%d status=%q, want %d %q", rec.Code, resp.Status, tt.wantCode, tt.wantStat)
			}
			if resp.Metadata.RequestID == "" {
				t.Error("response has no request ID")
			}
		})
	}
}

func TestHandler_PostRecommendations(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name     string
		body     string
		result   *recommend.RecommendationResult
		wantCode int
		wantErr  string
	}{
		{
			name:     "success",
			body:     `{"items":[{"artist":"Pink Floyd","title":"Animals","genres":["progressive rock"]}],"force_refresh":true}`,
			result:   okResult(),
			wantCode: http.StatusOK,
		},
		{
			name:     "malformed json",
			body:     `{"items":`,
			wantCode: http.StatusBadRequest,
			wantErr:  "INVALID_JSON",
		},
		{
			name:     "empty collection",
			body:     `{"items":[]}`,
			wantCode: http.StatusBadRequest,
			wantErr:  "VALIDATION_ERROR",
		},
		{
			name:     "item without artist or title",
			body:     `{"items":[{"year":1977}]}`,
			wantCode: http.StatusBadRequest,
			wantErr:  "VALIDATION_ERROR",
		},
		{
			name:     "collection too small",
			body:     `{"items":[{"artist":"Camel"}]}`,
			result:   &recommend.RecommendationResult{Reason: recommend.ReasonCollectionTooSmall, Error: "too small"},
			wantCode: http.StatusUnprocessableEntity,
			wantErr:  "COLLECTION_TOO_SMALL",
		},
		{
			name:     "engine rejects input",
			body:     `{"items":[{"artist":"Camel"}]}`,
			result:   &recommend.RecommendationResult{Reason: recommend.ReasonInvalidInput, Error: "owned item 0"},
			wantCode: http.StatusBadRequest,
			wantErr:  "INVALID_INPUT",
		},
		{
			name:     "canceled",
			body:     `{"items":[{"artist":"Camel"}]}`,
			result:   &recommend.RecommendationResult{Reason: recommend.ReasonCanceled},
			wantCode: http.StatusServiceUnavailable,
			wantErr:  "CANCELED",
		},
		{
			name:     "unknown user",
			body:     `{"items":[{"artist":"Camel"}]}`,
			result:   &recommend.RecommendationResult{Reason: recommend.ReasonUnknownUser, Error: "unknown user"},
			wantCode: http.StatusNotFound,
			wantErr:  "UNKNOWN_USER",
		},
		{
			name:     "catalog outage",
			body:     `{"items":[{"artist":"Camel"}]}`,
			result:   &recommend.RecommendationResult{Reason: recommend.ReasonCatalogUnavailable, Error: "read catalog"},
			wantCode: http.StatusServiceUnavailable,
			wantErr:  "CATALOG_UNAVAILABLE",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			e := &fakeEngine{result: tt.result}
			rec, resp := do(t, newTestRouter(e), http.MethodPost, "/api/v1/users/alice/recommendations", tt.body)

			if rec.Code != tt.wantCode {
				t.Fatalf("code = %d, want %d (%s)", rec.Code, tt.wantCode, rec.Body.String())
			}
			if tt.wantErr != "" {
				if resp.Error == nil || resp.Error.Code != tt.wantErr {
					t.Errorf("error = %+v, want code %s", resp.Error, tt.wantErr)
				}
				return
			}
			if e.lastUser != "alice" || len(e.lastItems) != 1 || !e.lastOpts.ForceRefresh {
				t.Errorf("engine got user=%q items=%d opts=%+v", e.lastUser, len(e.lastItems), e.lastOpts)
			}
			if !strings.Contains(rec.Body.String(), "Genesis") {
				t.Errorf("body missing recommendation: %s", rec.Body.String())
			}
		})
	}
}

func TestHandler_GetRecommendations(t *testing.T) {
	t.Parallel()

	catalog := staticCatalog{{Artist: "Pink Floyd", Title: "Animals"}}

	t.Run("from catalog", func(t *testing.T) {
		t.Parallel()
		e := &fakeEngine{result: okResult()}
		rec, _ := do(t, newTestRouter(e, WithCatalog(catalog)), http.MethodGet, "/api/v1/users/alice/recommendations?force=1", "")
		if rec.Code != http.StatusOK || e.catalogRuns != 1 || !e.lastOpts.ForceRefresh {
			t.Errorf("code=%d runs=%d opts=%+v", rec.Code, e.catalogRuns, e.lastOpts)
		}
	})

	t.Run("bad force flag", func(t *testing.T) {
		t.Parallel()
		rec, _ := do(t, newTestRouter(&fakeEngine{}, WithCatalog(catalog)), http.MethodGet, "/api/v1/users/alice/recommendations?force=maybe", "")
		if rec.Code != http.StatusBadRequest {
			t.Errorf("code = %d, want 400", rec.Code)
		}
	})

	t.Run("no catalog", func(t *testing.T) {
		t.Parallel()
		rec, resp := do(t, newTestRouter(&fakeEngine{}), http.MethodGet, "/api/v1/users/alice/recommendations", "")
		if rec.Code != http.StatusServiceUnavailable || resp.Error.Code != "CATALOG_UNAVAILABLE" {
			t.Errorf("code=%d error=%+v", rec.Code, resp.Error)
		}
	})

	t.Run("invalid user id", func(t *testing.T) {
		t.Parallel()
		rec, _ := do(t, newTestRouter(&fakeEngine{}, WithCatalog(catalog)), http.MethodGet, "/api/v1/users/"+strings.Repeat("x", 200)+"/recommendations", "")
		if rec.Code != http.StatusBadRequest {
			t.Errorf("code = %d, want 400", rec.Code)
		}
	})
}

func TestHandler_CollectionChanged(t *testing.T) {
	t.Parallel()

	e := &fakeEngine{}
	rec, _ := do(t, newTestRouter(e), http.MethodPost, "/api/v1/users/bob/collection-changed", "")
	if rec.Code != http.StatusOK || len(e.invalidated) != 1 || e.invalidated[0] != "bob" {
		t.Errorf("code=%d invalidated=%v", rec.Code, e.invalidated)
	}

	e = &fakeEngine{invalidErr: errors.New("store closed")}
	rec, resp := do(t, newTestRouter(e), http.MethodPost, "/api/v1/users/bob/collection-changed", "")
	if rec.Code != http.StatusInternalServerError || resp.Error.Code != "STORE_ERROR" {
		t.Errorf("code=%d error=%+v", rec.Code, resp.Error)
	}
	if strings.Contains(rec.Body.String(), "store closed") {
		t.Error("internal error leaked into response")
	}
}

func TestHandler_OwnedArtistsAndWarmer(t *testing.T) {
	t.Parallel()

	st := &fakeStore{artists: []store.OwnedArtist{{Name: "Pink Floyd", Count: 4}}}
	h := newTestRouter(&fakeEngine{}, WithStore(st), WithWarmer(fakeWarmer{}))

	rec, _ := do(t, h, http.MethodGet, "/api/v1/users/alice/owned-artists", "")
	if rec.Code != http.StatusOK || !strings.Contains(rec.Body.String(), `"count":4`) {
		t.Errorf("owned-artists: %d %s", rec.Code, rec.Body.String())
	}

	rec, _ = do(t, h, http.MethodGet, "/api/v1/users/alice/warmer", "")
	if rec.Code != http.StatusOK || !strings.Contains(rec.Body.String(), `"state":"paused"`) {
		t.Errorf("warmer: %d %s", rec.Code, rec.Body.String())
	}

	rec, _ = do(t, h, http.MethodGet, "/api/v1/stats", "")
	if rec.Code != http.StatusOK || !strings.Contains(rec.Body.String(), `"queued":4`) || !strings.Contains(rec.Body.String(), `"requests":3`) {
		t.Errorf("stats: %d %s", rec.Code, rec.Body.String())
	}

	bare := newTestRouter(&fakeEngine{})
	if rec, _ := do(t, bare, http.MethodGet, "/api/v1/users/alice/warmer", ""); rec.Code != http.StatusNotFound {
		t.Errorf("warmer disabled: code = %d, want 404", rec.Code)
	}
	if rec, _ := do(t, bare, http.MethodGet, "/api/v1/users/alice/owned-artists", ""); rec.Code != http.StatusServiceUnavailable {
		t.Errorf("store missing: code = %d, want 503", rec.Code)
	}
}

func TestRouter_FallbackRoutes(t *testing.T) {
	t.Parallel()

	h := newTestRouter(&fakeEngine{})
	tests := []struct {
		method, path string
		wantCode     int
	}{
		{http.MethodGet, "/nope", http.StatusNotFound},
		{http.MethodDelete, "/api/v1/users/alice/recommendations", http.StatusMethodNotAllowed},
		{http.MethodGet, "/metrics", http.StatusOK},
	}
	for _, tt := range tests {
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, httptest.NewRequest(tt.method, tt.path, nil))
		if rec.Code != tt.wantCode {
			t.Errorf("%s %s = %d, want %d", tt.method, tt.path, rec.Code, tt.wantCode)
		}
	}
}
