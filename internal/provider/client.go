// Cratedigger - Record Collection Tracker
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/cratedigger

package provider

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/goccy/go-json"
	"github.com/rs/zerolog"

	"github.com/tomtom215/cratedigger/internal/cache"
	"github.com/tomtom215/cratedigger/internal/metrics"
)

// maxErrorBodySize limits how much of an error response is kept for reporting.
const maxErrorBodySize = 64 * 1024

// errRateLimited marks a request that was still throttled after all retries.
var errRateLimited = errors.New("rate limit exceeded")

// maxBodySize limits successful response bodies.
const maxBodySize = 8 << 20

// ClientConfig configures one HTTP provider client.
type ClientConfig struct {
	BaseURL   string
	APIKey    string
	UserAgent string

	// MinInterval is the minimum spacing between two requests.
	MinInterval time.Duration

	// CacheTTL is how long successful responses are served from memory.
	// Zero disables the response cache.
	CacheTTL time.Duration

	Timeout time.Duration

	// MaxRetries bounds retries of HTTP 429 responses.
	MaxRetries     int
	RetryBaseDelay time.Duration

	// HTTPClient overrides the default client, mainly for tests.
	HTTPClient *http.Client
}

// DefaultClientConfig returns the defaults shared by every provider.
func DefaultClientConfig(baseURL string) ClientConfig {
	return ClientConfig{
		BaseURL:        baseURL,
		UserAgent:      "Cratedigger/1.0 (https://github.com/tomtom215/cratedigger)",
		MinInterval:    time.Second,
		CacheTTL:       24 * time.Hour,
		Timeout:        30 * time.Second,
		MaxRetries:     5,
		RetryBaseDelay: time.Second,
	}
}

// baseClient carries the transport shared by the HTTP providers.
type baseClient struct {
	name   string
	cfg    ClientConfig
	client *http.Client
	queue  *RequestQueue
	cache  *cache.Cache
	logger zerolog.Logger
}

func newBaseClient(name string, cfg ClientConfig, logger zerolog.Logger) *baseClient {
	httpClient := cfg.HTTPClient
	if httpClient == nil {
		timeout := cfg.Timeout
		if timeout <= 0 {
			timeout = 30 * time.Second
		}
		httpClient = &http.Client{Timeout: timeout}
	}
	if cfg.RetryBaseDelay <= 0 {
		cfg.RetryBaseDelay = time.Second
	}
	if cfg.MaxRetries < 0 {
		cfg.MaxRetries = 0
	}
	return &baseClient{
		name:   name,
		cfg:    cfg,
		client: httpClient,
		queue:  NewRequestQueue(cfg.MinInterval),
		cache:  cache.New(cfg.CacheTTL),
		logger: logger.With().Str("component", "provider").Str("provider", name).Logger(),
	}
}

// Close stops the request queue and the response cache.
func (b *baseClient) Close() error {
	b.queue.Close()
	b.cache.Close()
	return nil
}

// CacheStats reports response cache statistics.
func (b *baseClient) CacheStats() cache.Stats {
	return b.cache.GetStats()
}

// readBodyForError reads at most maxErrorBodySize bytes for error reporting.
func readBodyForError(r io.Reader) []byte {
	body, err := io.ReadAll(io.LimitReader(r, maxErrorBodySize))
	if err != nil {
		return []byte("(failed to read response body)")
	}
	if len(body) == maxErrorBodySize {
		return append(body, []byte("\n... (truncated)")...)
	}
	return body
}

// doRequestWithRateLimit performs a GET and retries HTTP 429 responses with
// exponential backoff (base, 2*base, 4*base, ...). A Retry-After header in
// seconds replaces the computed delay. Waits are cancelled with ctx.
func (b *baseClient) doRequestWithRateLimit(ctx context.Context, reqURL string, header http.Header) (*http.Response, error) {
	var lastErr error

	for attempt := 0; attempt <= b.cfg.MaxRetries; attempt++ {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}

		req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, http.NoBody)
		if err != nil {
			return nil, fmt.Errorf("failed to create request: %w", err)
		}
		req.Header.Set("Accept", "application/json")
		if b.cfg.UserAgent != "" {
			req.Header.Set("User-Agent", b.cfg.UserAgent)
		}
		for k, values := range header {
			for _, v := range values {
				req.Header.Add(k, v)
			}
		}

		resp, err := b.client.Do(req)
		if err != nil {
			return nil, fmt.Errorf("HTTP request failed: %w", err)
		}

		if resp.StatusCode != http.StatusTooManyRequests {
			return resp, nil
		}

		_ = resp.Body.Close()
		metrics.ProviderRateLimited.WithLabelValues(b.name).Inc()

		if attempt == b.cfg.MaxRetries {
			lastErr = fmt.Errorf("%w after %d retries (HTTP 429)", errRateLimited, b.cfg.MaxRetries)
			break
		}

		delay := b.cfg.RetryBaseDelay * time.Duration(1<<uint(attempt))
		if retryAfter := resp.Header.Get("Retry-After"); retryAfter != "" {
			if seconds, err := time.ParseDuration(retryAfter + "s"); err == nil {
				delay = seconds
			}
		}

		b.logger.Debug().Int("attempt", attempt+1).Dur("delay", delay).Msg("rate limited, backing off")

		select {
		case <-time.After(delay):
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}

	return nil, lastErr
}

// get fetches reqURL and returns the status code and body. Only transport
// failures and exhausted 429 retries are returned as errors; callers decide
// how to interpret other statuses.
func (b *baseClient) get(ctx context.Context, method, reqURL string, header http.Header) (int, []byte, error) {
	resp, err := b.doRequestWithRateLimit(ctx, reqURL, header)
	if err != nil {
		if ctx.Err() != nil {
			return 0, nil, err
		}
		status := 0
		if errors.Is(err, errRateLimited) {
			status = http.StatusTooManyRequests
		}
		return status, nil, newProviderError(b.name, method, status, fmt.Errorf("failed to make %s request: %w", method, err))
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return resp.StatusCode, readBodyForError(resp.Body), nil
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodySize))
	if err != nil {
		return resp.StatusCode, nil, newProviderError(b.name, method, 0, fmt.Errorf("failed to read %s response: %w", method, err))
	}
	return resp.StatusCode, body, nil
}

// statusError converts a non-2xx response into a ProviderError. 404 wraps
// ErrNotFound.
func (b *baseClient) statusError(method string, status int, body []byte) error {
	if status == http.StatusNotFound {
		return newProviderError(b.name, method, status, ErrNotFound)
	}
	return newProviderError(b.name, method, status,
		fmt.Errorf("%s request failed: %s", method, strings.TrimSpace(string(body))))
}

// decode unmarshals a successful body into out.
func (b *baseClient) decode(method string, status int, body []byte, out any) error {
	if err := json.Unmarshal(body, out); err != nil {
		return newProviderError(b.name, method, status, fmt.Errorf("failed to decode %s response: %w", method, err))
	}
	return nil
}

// cachedCall serves fn from the response cache when possible. Misses run on
// the request queue and successful results are cached.
func cachedCall[T any](ctx context.Context, b *baseClient, method string, params any, fn func(context.Context) (T, error)) (T, error) {
	var zero T
	key := cache.GenerateKey(b.name+"."+method, params)

	if v, ok := b.cache.Get(key); ok {
		if typed, ok := v.(T); ok {
			metrics.RecordProviderCache(b.name, true)
			return typed, nil
		}
	}
	metrics.RecordProviderCache(b.name, false)

	start := time.Now()
	var result T
	err := b.queue.Do(ctx, func(ctx context.Context) error {
		var err error
		result, err = fn(ctx)
		return err
	})
	metrics.RecordProviderRequest(b.name, method, time.Since(start), err)

	if err != nil {
		if !errors.Is(err, ErrNotFound) {
			b.logger.Debug().Err(err).Str("method", method).Msg("provider request failed")
		}
		return zero, err
	}

	b.cache.Set(key, result)
	return result, nil
}
