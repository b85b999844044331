// Cratedigger - Record Collection Tracker
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/cratedigger

package provider

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/rs/zerolog"
)

// testClientConfig returns a config with fast retries and no pacing.
func testClientConfig(baseURL string) ClientConfig {
	return ClientConfig{
		BaseURL:        baseURL,
		APIKey:         "test-key",
		UserAgent:      "Cratedigger-Test/1.0",
		CacheTTL:       time.Hour,
		Timeout:        5 * time.Second,
		MaxRetries:     3,
		RetryBaseDelay: 10 * time.Millisecond,
	}
}

// newJSONServer serves body with status and counts requests.
func newJSONServer(t *testing.T, status int, body string) (*httptest.Server, *atomic.Int32) {
	t.Helper()
	var count atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		count.Add(1)
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		_, _ = io.WriteString(w, body)
	}))
	t.Cleanup(server.Close)
	return server, &count
}

func nopLogger() zerolog.Logger {
	return zerolog.Nop()
}

// fakeProvider is a scripted MetadataProvider.
type fakeProvider struct {
	name     string
	similar  []SimilarEntity
	tagged   []TaggedItem
	info     EntityMetadata
	err      error
	infoErr  error
	calls    atomic.Int32
	unsupSim bool
}

func (f *fakeProvider) Name() string { return f.name }

func (f *fakeProvider) SimilarTo(context.Context, string, int) ([]SimilarEntity, error) {
	f.calls.Add(1)
	if f.unsupSim {
		return nil, ErrUnsupported
	}
	return f.similar, f.err
}

func (f *fakeProvider) TopForTag(context.Context, string, int) ([]TaggedItem, error) {
	f.calls.Add(1)
	if f.unsupSim {
		return nil, ErrUnsupported
	}
	return f.tagged, f.err
}

func (f *fakeProvider) EntityInfo(context.Context, string) (EntityMetadata, error) {
	f.calls.Add(1)
	if f.infoErr != nil {
		return EntityMetadata{}, f.infoErr
	}
	return f.info, f.err
}
