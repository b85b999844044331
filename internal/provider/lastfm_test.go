// Cratedigger - Record Collection Tracker
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/cratedigger

package provider

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"sync/atomic"
	"testing"
	"time"
)

const lastfmSimilarBody = `{
  "similarartists": {
    "artist": [
      {"name": "Genesis", "mbid": "8e3fcd7d", "match": "0.82"},
      {"name": "Yes", "mbid": "", "match": 0.71},
      {"name": "", "match": "0.5"}
    ],
    "@attr": {"artist": "Pink Floyd"}
  }
}`

func TestLastFM_SimilarTo(t *testing.T) {
	t.Parallel()

	var gotQuery atomic.Pointer[url.Values]
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		gotQuery.Store(&q)
		if ua := r.Header.Get("User-Agent"); ua != "Cratedigger-Test/1.0" {
			t.Errorf("User-Agent = %q", ua)
		}
		_, _ = w.Write([]byte(lastfmSimilarBody))
	}))
	defer server.Close()

	client := NewLastFM(testClientConfig(server.URL), nopLogger())
	defer client.Close()

	got, err := client.SimilarTo(context.Background(), "Pink Floyd", 20)
	if err != nil {
		t.Fatalf("SimilarTo() error = %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("SimilarTo() returned %d artists, want 2", len(got))
	}
	if got[0].Name != "Genesis" || got[0].Score != 0.82 || got[0].ExternalID != "8e3fcd7d" {
		t.Errorf("got[0] = %+v", got[0])
	}
	if got[1].Name != "Yes" || got[1].Score != 0.71 {
		t.Errorf("got[1] = %+v", got[1])
	}

	q := *gotQuery.Load()
	for key, want := range map[string]string{
		"method":  "artist.getsimilar",
		"artist":  "Pink Floyd",
		"api_key": "test-key",
		"format":  "json",
		"limit":   "20",
	} {
		if v := q.Get(key); v != want {
			t.Errorf("query %s = %q, want %q", key, v, want)
		}
	}
}

func TestLastFM_ResponsesAreCached(t *testing.T) {
	t.Parallel()

	server, count := newJSONServer(t, http.StatusOK, lastfmSimilarBody)
	client := NewLastFM(testClientConfig(server.URL), nopLogger())
	defer client.Close()

	for i := 0; i < 3; i++ {
		if _, err := client.SimilarTo(context.Background(), "Pink Floyd", 20); err != nil {
			t.Fatalf("SimilarTo() error = %v", err)
		}
	}
	// Name lookups are case-insensitive in the cache key.
	if _, err := client.SimilarTo(context.Background(), "pink floyd", 20); err != nil {
		t.Fatalf("SimilarTo() error = %v", err)
	}

	if got := count.Load(); got != 1 {
		t.Errorf("server hits = %d, want 1", got)
	}
	if stats := client.CacheStats(); stats.Hits != 3 {
		t.Errorf("cache hits = %d, want 3", stats.Hits)
	}
}

func TestLastFM_TopForTag(t *testing.T) {
	t.Parallel()

	body := `{"albums":{"album":[
		{"name":"Selling England by the Pound","mbid":"a1","artist":{"name":"Genesis"},"@attr":{"rank":"1"}},
		{"name":"Close to the Edge","artist":{"name":"Yes"},"@attr":{"rank":"2"}},
		{"name":"","artist":{"name":"Nobody"},"@attr":{"rank":"3"}}
	]}}`
	server, _ := newJSONServer(t, http.StatusOK, body)
	client := NewLastFM(testClientConfig(server.URL), nopLogger())
	defer client.Close()

	got, err := client.TopForTag(context.Background(), "progressive rock", 30)
	if err != nil {
		t.Fatalf("TopForTag() error = %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("TopForTag() returned %d items, want 2", len(got))
	}
	if got[0].ArtistName != "Genesis" || got[0].Rank != 1 || got[0].ExternalID != "a1" {
		t.Errorf("got[0] = %+v", got[0])
	}
	if got[1].Name != "Close to the Edge" || got[1].Rank != 2 {
		t.Errorf("got[1] = %+v", got[1])
	}
	if got[0].Popularity != 0 {
		t.Errorf("Popularity = %d, want 0 (unknown)", got[0].Popularity)
	}
}

func TestLastFM_EntityInfo(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name     string
		body     string
		wantTags []string
		wantPop  int64
		wantMBID string
	}{
		{
			name:     "tag list",
			body:     `{"artist":{"name":"Genesis","mbid":"m1","stats":{"listeners":"2500000"},"tags":{"tag":[{"name":"Progressive Rock"},{"name":"rock"}]}}}`,
			wantTags: []string{"progressive rock", "rock"},
			wantPop:  2500000,
			wantMBID: "m1",
		},
		{
			name:     "single tag object",
			body:     `{"artist":{"name":"Camel","stats":{"listeners":"400000"},"tags":{"tag":{"name":"prog"}}}}`,
			wantTags: []string{"prog"},
			wantPop:  400000,
		},
		{
			name:    "empty tags string",
			body:    `{"artist":{"name":"Unknown","stats":{"listeners":12},"tags":""}}`,
			wantPop: 12,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			server, _ := newJSONServer(t, http.StatusOK, tt.body)
			client := NewLastFM(testClientConfig(server.URL), nopLogger())
			defer client.Close()

			got, err := client.EntityInfo(context.Background(), "Genesis")
			if err != nil {
				t.Fatalf("EntityInfo() error = %v", err)
			}
			if strings.Join(got.Tags, ",") != strings.Join(tt.wantTags, ",") {
				t.Errorf("Tags = %v, want %v", got.Tags, tt.wantTags)
			}
			if got.Popularity != tt.wantPop {
				t.Errorf("Popularity = %d, want %d", got.Popularity, tt.wantPop)
			}
			if got.ExternalIDs["musicbrainz"] != tt.wantMBID {
				t.Errorf("musicbrainz id = %q, want %q", got.ExternalIDs["musicbrainz"], tt.wantMBID)
			}
			if got.Source != LastFMName {
				t.Errorf("Source = %q", got.Source)
			}
		})
	}
}

func TestLastFM_Errors(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name          string
		status        int
		body          string
		wantNotFound  bool
		wantRetryable bool
		wantStatus    int
	}{
		{
			name:         "artist not found with status 200",
			status:       http.StatusOK,
			body:         `{"error":6,"message":"The artist you supplied could not be found"}`,
			wantNotFound: true,
			wantStatus:   http.StatusOK,
		},
		{
			name:          "rate limit reported in body",
			status:        http.StatusOK,
			body:          `{"error":29,"message":"Rate Limit Exceeded"}`,
			wantRetryable: true,
			wantStatus:    http.StatusTooManyRequests,
		},
		{
			name:          "invalid api key",
			status:        http.StatusForbidden,
			body:          `{"error":10,"message":"Invalid API key"}`,
			wantRetryable: true,
			wantStatus:    http.StatusForbidden,
		},
		{
			name:          "client error without body",
			status:        http.StatusBadRequest,
			body:          ``,
			wantRetryable: true,
			wantStatus:    http.StatusBadRequest,
		},
		{
			name:          "server error",
			status:        http.StatusBadGateway,
			body:          `<html>bad gateway</html>`,
			wantRetryable: true,
			wantStatus:    http.StatusBadGateway,
		},
		{
			name:          "malformed payload",
			status:        http.StatusOK,
			body:          `{"similarartists": [`,
			wantRetryable: true,
			wantStatus:    http.StatusOK,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			server, _ := newJSONServer(t, tt.status, tt.body)
			client := NewLastFM(testClientConfig(server.URL), nopLogger())
			defer client.Close()

			_, err := client.SimilarTo(context.Background(), "Nobody", 5)
			if err == nil {
				t.Fatal("SimilarTo() error = nil")
			}

			var pe *ProviderError
			if !errors.As(err, &pe) {
				t.Fatalf("error %T is not a *ProviderError", err)
			}
			if pe.Provider != LastFMName || pe.Method != "artist.getsimilar" {
				t.Errorf("ProviderError = %+v", pe)
			}
			if pe.StatusCode != tt.wantStatus {
				t.Errorf("StatusCode = %d, want %d", pe.StatusCode, tt.wantStatus)
			}
			if got := errors.Is(err, ErrNotFound); got != tt.wantNotFound {
				t.Errorf("errors.Is(ErrNotFound) = %v, want %v", got, tt.wantNotFound)
			}
			if got := IsRetryable(err); got != tt.wantRetryable {
				t.Errorf("IsRetryable() = %v, want %v", got, tt.wantRetryable)
			}
		})
	}
}

func TestLastFM_RetriesHTTP429(t *testing.T) {
	t.Parallel()

	var count atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if count.Add(1) <= 2 {
			w.WriteHeader(http.StatusTooManyRequests)
			return
		}
		_, _ = w.Write([]byte(lastfmSimilarBody))
	}))
	defer server.Close()

	client := NewLastFM(testClientConfig(server.URL), nopLogger())
	defer client.Close()

	start := time.Now()
	got, err := client.SimilarTo(context.Background(), "Pink Floyd", 20)
	if err != nil {
		t.Fatalf("SimilarTo() error = %v", err)
	}
	if len(got) != 2 {
		t.Errorf("len = %d, want 2", len(got))
	}
	if n := count.Load(); n != 3 {
		t.Errorf("attempts = %d, want 3", n)
	}
	// 10ms + 20ms of backoff.
	if elapsed := time.Since(start); elapsed < 25*time.Millisecond {
		t.Errorf("elapsed = %v, want >= 25ms of backoff", elapsed)
	}
}

func TestLastFM_HTTP429MaxRetriesExceeded(t *testing.T) {
	t.Parallel()

	server, count := newJSONServer(t, http.StatusTooManyRequests, `{}`)
	client := NewLastFM(testClientConfig(server.URL), nopLogger())
	defer client.Close()

	_, err := client.SimilarTo(context.Background(), "Pink Floyd", 20)
	if err == nil {
		t.Fatal("SimilarTo() error = nil")
	}
	if !strings.Contains(err.Error(), "rate limit exceeded after") {
		t.Errorf("error = %v", err)
	}
	if !IsRetryable(err) {
		t.Error("exhausted rate limit should be retryable later")
	}
	// MaxRetries 3 means 4 attempts.
	if n := count.Load(); n != 4 {
		t.Errorf("attempts = %d, want 4", n)
	}
}

func TestLastFM_RetryAfterHonoursContext(t *testing.T) {
	t.Parallel()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Retry-After", "60")
		w.WriteHeader(http.StatusTooManyRequests)
	}))
	defer server.Close()

	client := NewLastFM(testClientConfig(server.URL), nopLogger())
	defer client.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	start := time.Now()
	_, err := client.SimilarTo(ctx, "Pink Floyd", 20)
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Errorf("error = %v, want context.DeadlineExceeded", err)
	}
	if elapsed := time.Since(start); elapsed > 5*time.Second {
		t.Errorf("Retry-After wait was not cancelled, elapsed %v", elapsed)
	}
}
