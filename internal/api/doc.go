// Cratedigger - Record Collection Tracker
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/cratedigger

/*
Package api serves recommendations over HTTP with a Chi router.

# Routes

	GET  /metrics                                     Prometheus exposition
	GET  /api/v1/health/live                          liveness
	GET  /api/v1/health/ready                         readiness (store ping)
	GET  /api/v1/stats                                engine and warmer counters
	GET  /api/v1/users/{userID}/recommendations       run against the catalog (?force=true)
	POST /api/v1/users/{userID}/recommendations       run against a posted collection
	POST /api/v1/users/{userID}/collection-changed    mark cached results stale
	GET  /api/v1/users/{userID}/owned-artists         owned artists of the last run
	GET  /api/v1/users/{userID}/warmer                prefetch progress

Every response uses the APIResponse envelope. A recommendation run that
fails still carries the partial result in data; the status code follows the
result reason (400 invalid input, 422 collection too small, 503 canceled).

# Middleware

Request IDs (X-Request-ID, propagated into the logging context), real IP,
panic recovery, request logging, Prometheus request metrics labeled by
route pattern, and go-chi/cors apply to every route.
go-chi/httprate limits /api/v1 per client IP; health and metrics are not
limited.

# Usage

	h := api.NewHandler(engine, api.WithCatalog(catalog), api.WithWarmer(w), api.WithStore(db))
	router := api.NewRouter(h, api.NewChiMiddleware(mwCfg))
	server := &http.Server{Addr: cfg.Server.Addr, Handler: router.SetupChi()}
	tree.AddAPIService(services.NewAPIService(server, services.APIServiceConfig{
	    Addr: cfg.Server.Addr, DrainTimeout: cfg.Server.ShutdownTimeout}, logger))
*/
package api
