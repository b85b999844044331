// Cratedigger - Record Collection Tracker
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/cratedigger

package cache

import (
	"sort"
	"sync"
)

// ScoreEntry is an element of a ScoreHeap.
type ScoreEntry[T any] struct {
	Key   string
	Value T
	Score float64
	index int // position in the heap slice
}

// ScoreHeap is a max-heap ordered by Score, with a key index for O(1) lookup
// and O(log n) re-prioritisation. Equal scores are ordered by key so that
// iteration order is deterministic.
type ScoreHeap[T any] struct {
	mu     sync.RWMutex
	heap   []*ScoreEntry[T]
	byKey  map[string]*ScoreEntry[T]
	maxLen int // 0 = unlimited
}

// NewScoreHeap creates a heap holding at most maxLen entries (0 = unlimited).
// When full, pushing evicts the lowest-scored entry.
func NewScoreHeap[T any](maxLen int) *ScoreHeap[T] {
	return &ScoreHeap[T]{
		heap:   make([]*ScoreEntry[T], 0),
		byKey:  make(map[string]*ScoreEntry[T]),
		maxLen: maxLen,
	}
}

// Push inserts or updates the entry for key. Returns the entry evicted to
// stay within maxLen, or nil.
func (h *ScoreHeap[T]) Push(key string, value T, score float64) *ScoreEntry[T] {
	h.mu.Lock()
	defer h.mu.Unlock()

	if existing, ok := h.byKey[key]; ok {
		existing.Value = value
		existing.Score = score
		h.fix(existing.index)
		return nil
	}

	entry := &ScoreEntry[T]{Key: key, Value: value, Score: score, index: len(h.heap)}
	h.heap = append(h.heap, entry)
	h.byKey[key] = entry
	h.up(entry.index)

	if h.maxLen > 0 && len(h.heap) > h.maxLen {
		return h.removeAt(h.lowestIndex())
	}
	return nil
}

// Pop removes and returns the highest-scored entry, or nil when empty.
func (h *ScoreHeap[T]) Pop() *ScoreEntry[T] {
	h.mu.Lock()
	defer h.mu.Unlock()

	if len(h.heap) == 0 {
		return nil
	}
	return h.removeAt(0)
}

// Peek returns the highest-scored entry without removing it.
func (h *ScoreHeap[T]) Peek() *ScoreEntry[T] {
	h.mu.RLock()
	defer h.mu.RUnlock()

	if len(h.heap) == 0 {
		return nil
	}
	return h.heap[0]
}

// Get returns the entry for key, or nil.
func (h *ScoreHeap[T]) Get(key string) *ScoreEntry[T] {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.byKey[key]
}

// Remove deletes the entry for key and returns it, or nil.
func (h *ScoreHeap[T]) Remove(key string) *ScoreEntry[T] {
	h.mu.Lock()
	defer h.mu.Unlock()

	entry, ok := h.byKey[key]
	if !ok {
		return nil
	}
	return h.removeAt(entry.index)
}

// Update changes the score of key. Returns false if key is absent.
func (h *ScoreHeap[T]) Update(key string, score float64) bool {
	h.mu.Lock()
	defer h.mu.Unlock()

	entry, ok := h.byKey[key]
	if !ok {
		return false
	}
	entry.Score = score
	h.fix(entry.index)
	return true
}

// Len returns the number of entries.
func (h *ScoreHeap[T]) Len() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.heap)
}

// Sorted returns a snapshot of all entries, highest score first.
func (h *ScoreHeap[T]) Sorted() []ScoreEntry[T] {
	h.mu.RLock()
	out := make([]ScoreEntry[T], len(h.heap))
	for i, e := range h.heap {
		out[i] = *e
	}
	h.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool { return higher(&out[i], &out[j]) })
	return out
}

// Internal operations below must be called with the lock held.

func higher[T any](a, b *ScoreEntry[T]) bool {
	if a.Score != b.Score {
		return a.Score > b.Score
	}
	return a.Key < b.Key
}

func (h *ScoreHeap[T]) removeAt(i int) *ScoreEntry[T] {
	n := len(h.heap) - 1
	entry := h.heap[i]
	delete(h.byKey, entry.Key)

	if i == n {
		h.heap = h.heap[:n]
		return entry
	}

	h.heap[i] = h.heap[n]
	h.heap[i].index = i
	h.heap = h.heap[:n]
	h.fix(i)

	return entry
}

// lowestIndex scans the leaves for the minimum; the minimum of a max-heap is
// always a leaf.
func (h *ScoreHeap[T]) lowestIndex() int {
	n := len(h.heap)
	lowest := n / 2
	for i := n / 2; i < n; i++ {
		if higher(h.heap[lowest], h.heap[i]) {
			lowest = i
		}
	}
	return lowest
}

func (h *ScoreHeap[T]) fix(i int) {
	if h.up(i) {
		return
	}
	h.down(i)
}

func (h *ScoreHeap[T]) up(i int) bool {
	moved := false
	for i > 0 {
		parent := (i - 1) / 2
		if !higher(h.heap[i], h.heap[parent]) {
			break
		}
		h.swap(i, parent)
		i = parent
		moved = true
	}
	return moved
}

func (h *ScoreHeap[T]) down(i int) {
	n := len(h.heap)
	for {
		best := i
		left, right := 2*i+1, 2*i+2
		if left < n && higher(h.heap[left], h.heap[best]) {
			best = left
		}
		if right < n && higher(h.heap[right], h.heap[best]) {
			best = right
		}
		if best == i {
			return
		}
		h.swap(i, best)
		i = best
	}
}

func (h *ScoreHeap[T]) swap(i, j int) {
	h.heap[i], h.heap[j] = h.heap[j], h.heap[i]
	h.heap[i].index = i
	h.heap[j].index = j
}
