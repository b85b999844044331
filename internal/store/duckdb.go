// Cratedigger - Record Collection Tracker
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/cratedigger

package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"sync"
	"time"

	_ "github.com/duckdb/duckdb-go/v2"
	"github.com/rs/zerolog"

	"github.com/tomtom215/cratedigger/internal/metrics"
)

// Config configures a DuckDBStore.
type Config struct {
	// Path is the database file, or ":memory:".
	Path      string
	MaxMemory string
	Threads   int

	SimilarityTTL     time.Duration
	MetadataTTL       time.Duration
	RecommendationTTL time.Duration
}

// DefaultConfig returns an in-memory store with the default TTLs.
func DefaultConfig() Config {
	return Config{
		Path:              ":memory:",
		MaxMemory:         "1GB",
		SimilarityTTL:     7 * 24 * time.Hour,
		MetadataTTL:       30 * 24 * time.Hour,
		RecommendationTTL: 24 * time.Hour,
	}
}

// Option configures a DuckDBStore.
type Option func(*DuckDBStore)

// WithClock replaces time.Now, mainly for tests.
func WithClock(now func() time.Time) Option {
	return func(s *DuckDBStore) {
		s.now = now
	}
}

// WithLogger sets the store logger.
func WithLogger(logger zerolog.Logger) Option {
	return func(s *DuckDBStore) {
		s.logger = logger
	}
}

// DuckDBStore is the DuckDB implementation of CacheStore.
type DuckDBStore struct {
	conn   *sql.DB
	cfg    Config
	now    func() time.Time
	logger zerolog.Logger

	mu     sync.RWMutex
	closed bool
}

var _ CacheStore = (*DuckDBStore)(nil)

// Open opens or creates the database and its schema.
func Open(cfg Config, opts ...Option) (*DuckDBStore, error) {
	def := DefaultConfig()
	if cfg.Path == "" {
		cfg.Path = def.Path
	}
	if cfg.MaxMemory == "" {
		cfg.MaxMemory = def.MaxMemory
	}
	if cfg.SimilarityTTL <= 0 {
		cfg.SimilarityTTL = def.SimilarityTTL
	}
	if cfg.MetadataTTL <= 0 {
		cfg.MetadataTTL = def.MetadataTTL
	}
	if cfg.RecommendationTTL <= 0 {
		cfg.RecommendationTTL = def.RecommendationTTL
	}

	numThreads := cfg.Threads
	if numThreads <= 0 {
		numThreads = runtime.NumCPU()
	}

	if cfg.Path != ":memory:" {
		dbDir := filepath.Dir(cfg.Path)
		if dbDir != "" && dbDir != "." {
			if err := os.MkdirAll(dbDir, 0o750); err != nil {
				return nil, wrapErr("open", fmt.Errorf("failed to create database directory %s: %w", dbDir, err))
			}
		}
	}

	connStr := fmt.Sprintf("%s?access_mode=read_write&threads=%d&max_memory=%s&autoinstall_known_extensions=false&autoload_known_extensions=false",
		cfg.Path, numThreads, cfg.MaxMemory)

	conn, err := sql.Open("duckdb", connStr)
	if err != nil {
		return nil, wrapErr("open", fmt.Errorf("failed to open database: %w", err))
	}

	s := &DuckDBStore{
		conn:   conn,
		cfg:    cfg,
		now:    time.Now,
		logger: zerolog.Nop(),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.logger = s.logger.With().Str("component", "store").Logger()

	s.configureConnectionPool()

	pingCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := conn.PingContext(pingCtx); err != nil {
		closeWithLog(conn, s.logger, "database connection")
		return nil, wrapErr("open", fmt.Errorf("failed to ping database: %w", err))
	}

	if err := s.createTables(); err != nil {
		closeWithLog(conn, s.logger, "database connection")
		return nil, wrapErr("open", fmt.Errorf("failed to initialize schema: %w", err))
	}

	s.logger.Info().Str("path", cfg.Path).Int("threads", numThreads).Msg("cache store opened")
	return s, nil
}

func (s *DuckDBStore) configureConnectionPool() {
	s.conn.SetMaxOpenConns(runtime.NumCPU())
	s.conn.SetMaxIdleConns(2)
	s.conn.SetConnMaxLifetime(time.Hour)
	s.conn.SetConnMaxIdleTime(5 * time.Minute)
}

// Close closes the database. It is safe to call more than once.
func (s *DuckDBStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil
	}
	s.closed = true
	return wrapErr("close", s.conn.Close())
}

// Ping checks the database connection.
func (s *DuckDBStore) Ping(ctx context.Context) error {
	return s.run(ctx, "ping", func(ctx context.Context) error {
		return s.conn.PingContext(ctx)
	})
}

// run executes fn as one instrumented store operation. Transaction
// conflicts are retried with a short backoff (1ms, 2ms, 4ms).
func (s *DuckDBStore) run(ctx context.Context, op string, fn func(context.Context) error) error {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return wrapErr(op, ErrClosed)
	}

	start := time.Now()
	err := s.retry(ctx, fn)
	metrics.RecordStoreOperation(op, time.Since(start), err)
	if err != nil {
		s.logger.Debug().Err(err).Str("operation", op).Msg("store operation failed")
	}
	return wrapErr(op, err)
}

func (s *DuckDBStore) retry(ctx context.Context, fn func(context.Context) error) error {
	const maxRetries = 3
	var lastErr error

	for attempt := 0; attempt < maxRetries; attempt++ {
		err := fn(ctx)
		if err == nil {
			return nil
		}
		lastErr = err

		if ctx.Err() != nil {
			return fmt.Errorf("operation timed out or canceled: %w", ctx.Err())
		}
		if !isTransactionConflict(err) || attempt == maxRetries-1 {
			return err
		}

		backoff := time.Millisecond * time.Duration(1<<uint(attempt))
		select {
		case <-time.After(backoff):
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	return lastErr
}

// withTx runs fn inside a transaction.
func (s *DuckDBStore) withTx(ctx context.Context, fn func(*sql.Tx) error) error {
	tx, err := s.conn.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	if err := fn(tx); err != nil {
		if rbErr := tx.Rollback(); rbErr != nil && !errors.Is(rbErr, sql.ErrTxDone) {
			s.logger.Warn().Err(rbErr).Msg("rollback failed")
		}
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

// utcNow returns the store clock in UTC, truncated to microseconds to match
// DuckDB TIMESTAMP precision.
func (s *DuckDBStore) utcNow() time.Time {
	return s.now().UTC().Truncate(time.Microsecond)
}
