// Cratedigger - Record Collection Tracker
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/cratedigger

/*
Package supervisor runs the long-lived parts of the recommender under a
suture v4 supervisor tree.

# Architecture

	RootSupervisor ("cratedigger")
	├── cache-layer
	│   ├── warmer.Warmer           background similarity prefetch
	│   └── services.RefreshService periodic forced regeneration
	└── api-layer
	    └── services.APIService (chi router, /metrics)

Each layer restarts its own children. A warmer that keeps failing backs
off inside the cache layer while the API keeps serving.

Restart behaviour follows TreeConfig:

  - FailureThreshold failures, decaying at FailureDecay per second, put the
    supervisor into backoff for FailureBackoff
  - ShutdownTimeout bounds how long Serve waits for children to return
    after the context is canceled

Supervisor events are logged through sutureslog, which writes to the
zerolog logger via logging.NewSlogLogger.

# Usage

	tree, err := supervisor.NewSupervisorTree(logging.NewSlogLogger(), supervisor.TreeConfig{
	    FailureThreshold: cfg.Supervisor.FailureThreshold,
	    FailureBackoff:   cfg.Supervisor.FailureBackoff,
	})
	if err != nil {
	    return err
	}
	tree.AddCacheService(w)
	tree.AddAPIService(services.NewAPIService(server, services.APIServiceConfig{
	    Addr: cfg.Server.Addr, DrainTimeout: cfg.Server.ShutdownTimeout}, logger))

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()
	if err := tree.Serve(ctx); err != nil && !errors.Is(err, context.Canceled) {
	    return err
	}

# Thread Safety

Add and Remove methods may be called before or while the tree is serving.
*/
package supervisor
