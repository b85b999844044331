// Cratedigger - Record Collection Tracker
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/cratedigger

/*
Package warmer prefetches artist similarity data while the user is idle, so
that later recommendation runs are served from the store instead of the
rate-limited metadata providers.

# Architecture

The engine hands artist-level candidates to the warmer through
recommend.WarmerSink. Each user has a queue ordered by Priority:

	0.4·recScore + 0.3·min(1, connections/10) + 0.2·min(1, frequency/5)
	  + 0.1·min(1, log10(1+popularity)/6)

The warmer is a small state machine:

	Idle ──(queue non-empty, idle ≥ IdleThreshold)──▶ Running
	Running ──(Activity)──▶ Paused ──(idle ≥ IdleThreshold)──▶ Running
	Running ──(queue empty)──▶ Idle
	any ──(Serve returns)──▶ Stopped

While Running it pops the highest-priority artist that is not completed,
not dropped and not backing off, skips it when the store already has fresh
edges, and otherwise calls Fetcher.FetchArtist. A failed artist waits
BaseDelay·2^(attempts−1) before the next attempt and is dropped after
MaxRetries attempts.

# Persistence

Every PersistEvery fetched artists, at the end of a pass and on shutdown
the queue, completions and failures are written to a StateStore. Serve
merges stored snapshots on start and deletes those older than StateMaxAge.
BadgerStateStore is the durable implementation; MemoryStateStore serves
tests and stateless runs.

# Usage

	w, err := warmer.New(warmer.DefaultConfig(), engine.Fetcher(), db, states, logger)
	if err != nil {
	    return err
	}
	engine.SetWarmer(w)
	tree.AddCacheService(w)

# Thread Safety

All methods are safe for concurrent use. Warm never runs two passes for the
same user at once; a second caller gets ErrAlreadyRunning.
*/
package warmer
