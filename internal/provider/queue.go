// Cratedigger - Record Collection Tracker
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/cratedigger

package provider

import (
	"context"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

type queueJob struct {
	ctx    context.Context
	fn     func(context.Context) error
	result chan error
}

// RequestQueue serializes calls to one provider. Jobs run in submission
// order on a single goroutine, no closer together than the minimum interval.
type RequestQueue struct {
	jobs    chan queueJob
	limiter *rate.Limiter
	quit    chan struct{}
	done    chan struct{}
	once    sync.Once
}

// NewRequestQueue starts the worker goroutine. A non-positive minInterval
// disables pacing.
func NewRequestQueue(minInterval time.Duration) *RequestQueue {
	limit := rate.Inf
	if minInterval > 0 {
		limit = rate.Every(minInterval)
	}
	q := &RequestQueue{
		jobs:    make(chan queueJob),
		limiter: rate.NewLimiter(limit, 1),
		quit:    make(chan struct{}),
		done:    make(chan struct{}),
	}
	go q.run()
	return q
}

func (q *RequestQueue) run() {
	defer close(q.done)
	for {
		select {
		case <-q.quit:
			return
		case job := <-q.jobs:
			job.result <- q.execute(job)
		}
	}
}

func (q *RequestQueue) execute(job queueJob) error {
	// Callers that gave up while queued are skipped without spending a slot.
	if err := job.ctx.Err(); err != nil {
		return err
	}
	if err := q.limiter.Wait(job.ctx); err != nil {
		return err
	}
	return job.fn(job.ctx)
}

// Do runs fn on the queue and waits for its result.
func (q *RequestQueue) Do(ctx context.Context, fn func(context.Context) error) error {
	job := queueJob{ctx: ctx, fn: fn, result: make(chan error, 1)}

	select {
	case q.jobs <- job:
	case <-q.quit:
		return ErrQueueClosed
	case <-ctx.Done():
		return ctx.Err()
	}

	select {
	case err := <-job.result:
		return err
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Close stops the worker after the running job finishes. Later calls to Do
// return ErrQueueClosed. Close is idempotent.
func (q *RequestQueue) Close() {
	q.once.Do(func() {
		close(q.quit)
	})
	<-q.done
}
