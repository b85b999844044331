// Cratedigger - Record Collection Tracker
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/cratedigger

package warmer

import (
	"math"
	"time"

	"github.com/tomtom215/cratedigger/internal/recommend"
)

// State is the warmer lifecycle state.
type State int

const (
	// StateIdle means the queue is empty or the warmer has not started.
	StateIdle State = iota
	// StateRunning means the warmer is fetching.
	StateRunning
	// StatePaused means user activity interrupted a run.
	StatePaused
	// StateStopped means Serve has returned.
	StateStopped
)

// String returns the metrics label of s.
func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateRunning:
		return "running"
	case StatePaused:
		return "paused"
	case StateStopped:
		return "stopped"
	default:
		return "unknown"
	}
}

// Failure tracks the failed fetch attempts of one artist.
type Failure struct {
	Attempts    int       `json:"attempts"`
	LastAttempt time.Time `json:"last_attempt"`
}

// retryAt returns when the artist may be attempted again.
func (f Failure) retryAt(base time.Duration) time.Time {
	if f.Attempts <= 0 {
		return f.LastAttempt
	}
	return f.LastAttempt.Add(base * time.Duration(1<<(f.Attempts-1)))
}

// Progress is the fetch progress of one user's queue.
type Progress struct {
	Fetched   int     `json:"fetched"`
	Remaining int     `json:"remaining"`
	Percent   float64 `json:"percent"`
}

func newProgress(fetched, remaining int) Progress {
	p := Progress{Fetched: fetched, Remaining: remaining}
	if total := fetched + remaining; total > 0 {
		p.Percent = 100 * float64(fetched) / float64(total)
	}
	return p
}

// QueuedItem is a queue entry in persisted form.
type QueuedItem struct {
	Item     recommend.WarmItem `json:"item"`
	Priority float64            `json:"priority"`
}

// Snapshot is the persisted state of one user's queue.
type Snapshot struct {
	UserID    string               `json:"user_id"`
	Queue     []QueuedItem         `json:"queue"`
	Completed map[string]time.Time `json:"completed"`
	Failures  map[string]Failure   `json:"failures"`
	Progress  Progress             `json:"progress"`
	SavedAt   time.Time            `json:"saved_at"`
}

// Priority blends the signals of an item into [0, 1]:
//
//	0.4·score + 0.3·min(1, connections/10) + 0.2·min(1, frequency/5)
//	  + 0.1·min(1, log10(1+popularity)/6)
func Priority(it recommend.WarmItem) float64 {
	score := clamp01(it.RecScore)
	conn := math.Min(1, float64(max(it.Connections, 0))/10)
	freq := math.Min(1, float64(max(it.Frequency, 0))/5)
	pop := math.Min(1, math.Log10(1+float64(max(it.Popularity, 0)))/6)
	return 0.4*score + 0.3*conn + 0.2*freq + 0.1*pop
}

func clamp01(v float64) float64 {
	return math.Max(0, math.Min(1, v))
}
