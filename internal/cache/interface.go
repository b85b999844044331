// Cratedigger - Record Collection Tracker
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/cratedigger

package cache

import "time"

// Cacher is the response cache contract Cache satisfies.
type Cacher interface {
	// Get retrieves a value. Returns false if missing or expired.
	Get(key string) (any, bool)

	// Set stores a value with the default TTL.
	Set(key string, value any)

	// SetWithTTL stores a value with a custom TTL.
	SetWithTTL(key string, value any, ttl time.Duration)

	// Delete removes a value.
	Delete(key string)

	// GetStats returns cache statistics.
	GetStats() Stats
}

var _ Cacher = (*Cache)(nil)
