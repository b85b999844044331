// Cratedigger - Record Collection Tracker
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/cratedigger

package api

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/goccy/go-json"

	"github.com/tomtom215/cratedigger/internal/recommend"
	"github.com/tomtom215/cratedigger/internal/store"
	"github.com/tomtom215/cratedigger/internal/warmer"
)

// Recommender is the engine surface the API drives. *recommend.Engine
// satisfies it.
type Recommender interface {
	GenerateRecommendations(ctx context.Context, userID string, owned []recommend.OwnedItem, opts recommend.Options) *recommend.RecommendationResult
	GenerateForUser(ctx context.Context, catalog recommend.Catalog, userID string, opts recommend.Options) *recommend.RecommendationResult
	CollectionChanged(ctx context.Context, userID string) error
	Stats() recommend.Stats
}

// WarmerStatus exposes warmer progress. *warmer.Warmer satisfies it.
type WarmerStatus interface {
	Stats() warmer.Stats
	Progress(userID string) warmer.Progress
}

// StoreStatus is the read-only store surface. *store.DuckDBStore
// satisfies it.
type StoreStatus interface {
	Ping(ctx context.Context) error
	OwnedArtists(ctx context.Context, userID string) ([]store.OwnedArtist, error)
}

// StatsResponse is the body of GET /stats.
type StatsResponse struct {
	Engine        recommend.Stats `json:"engine"`
	Warmer        *warmer.Stats   `json:"warmer,omitempty"`
	UptimeSeconds float64         `json:"uptime_seconds"`
}

// Handler serves the HTTP API.
type Handler struct {
	engine         Recommender
	catalog        recommend.Catalog
	warmer         WarmerStatus
	store          StoreStatus
	requestTimeout time.Duration
	startTime      time.Time
}

// HandlerOption configures optional collaborators.
type HandlerOption func(*Handler)

// WithCatalog enables GET recommendations from a stored collection.
func WithCatalog(c recommend.Catalog) HandlerOption {
	return func(h *Handler) { h.catalog = c }
}

// WithWarmer enables the warmer endpoints.
func WithWarmer(w WarmerStatus) HandlerOption {
	return func(h *Handler) { h.warmer = w }
}

// WithStore enables readiness checks and the owned-artists endpoint.
func WithStore(s StoreStatus) HandlerOption {
	return func(h *Handler) { h.store = s }
}

// WithRequestTimeout bounds a single recommendation run.
func WithRequestTimeout(d time.Duration) HandlerOption {
	return func(h *Handler) { h.requestTimeout = d }
}

// NewHandler creates a handler around engine.
func NewHandler(engine Recommender, opts ...HandlerOption) *Handler {
	h := &Handler{
		engine:         engine,
		requestTimeout: 2 * time.Minute,
		startTime:      time.Now(),
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// HealthLive reports that the process is up.
func (h *Handler) HealthLive(w http.ResponseWriter, _ *http.Request) {
	respondSuccess(w, map[string]any{
		"alive":  true,
		"uptime": time.Since(h.startTime).Seconds(),
	})
}

// HealthReady reports 503 until the store answers a ping.
func (h *Handler) HealthReady(w http.ResponseWriter, r *http.Request) {
	storeConnected := h.store == nil || h.store.Ping(r.Context()) == nil

	status, code := "ready", http.StatusOK
	if !storeConnected {
		status, code = "not_ready", http.StatusServiceUnavailable
	}
	respondJSON(w, code, &APIResponse{
		Status: status,
		Data: map[string]any{
			"store_connected": storeConnected,
			"uptime":          time.Since(h.startTime).Seconds(),
		},
	})
}

// Stats returns engine and warmer counters.
func (h *Handler) Stats(w http.ResponseWriter, _ *http.Request) {
	resp := StatsResponse{
		Engine:        h.engine.Stats(),
		UptimeSeconds: time.Since(h.startTime).Seconds(),
	}
	if h.warmer != nil {
		st := h.warmer.Stats()
		resp.Warmer = &st
	}
	respondSuccess(w, resp)
}

// GetRecommendations generates recommendations from the configured
// catalog. ?force=true bypasses the result cache.
func (h *Handler) GetRecommendations(w http.ResponseWriter, r *http.Request) {
	userID, ok := userParam(w, r)
	if !ok {
		return
	}
	if h.catalog == nil {
		respondError(w, http.StatusServiceUnavailable, "CATALOG_UNAVAILABLE", "no catalog configured; POST the collection instead", nil)
		return
	}

	force := false
	if raw := r.URL.Query().Get("force"); raw != "" {
		v, err := strconv.ParseBool(raw)
		if err != nil {
			respondError(w, http.StatusBadRequest, "VALIDATION_ERROR", "force must be a boolean", nil)
			return
		}
		force = v
	}

	ctx, cancel := context.WithTimeout(r.Context(), h.requestTimeout)
	defer cancel()
	respondResult(w, h.engine.GenerateForUser(ctx, h.catalog, userID, recommend.Options{ForceRefresh: force}))
}

// PostRecommendations generates recommendations for the posted collection.
func (h *Handler) PostRecommendations(w http.ResponseWriter, r *http.Request) {
	userID, ok := userParam(w, r)
	if !ok {
		return
	}

	var req GenerateRequest
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxRequestBody))
	if err := dec.Decode(&req); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			respondError(w, http.StatusRequestEntityTooLarge, "BODY_TOO_LARGE", "request body too large", nil)
			return
		}
		respondError(w, http.StatusBadRequest, "INVALID_JSON", "request body is not valid JSON", nil)
		return
	}
	if apiErr := validateRequest(&req); apiErr != nil {
		respondJSON(w, http.StatusBadRequest, &APIResponse{Status: "error", Error: apiErr})
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), h.requestTimeout)
	defer cancel()
	respondResult(w, h.engine.GenerateRecommendations(ctx, userID, req.Items, recommend.Options{ForceRefresh: req.ForceRefresh}))
}

// CollectionChanged marks the user's cached results stale.
func (h *Handler) CollectionChanged(w http.ResponseWriter, r *http.Request) {
	userID, ok := userParam(w, r)
	if !ok {
		return
	}
	if err := h.engine.CollectionChanged(r.Context(), userID); err != nil {
		respondError(w, http.StatusInternalServerError, "STORE_ERROR", "failed to invalidate cached results", err)
		return
	}
	respondSuccess(w, map[string]any{"user_id": userID, "invalidated": true})
}

// OwnedArtists lists the owned artists recorded at the last run.
func (h *Handler) OwnedArtists(w http.ResponseWriter, r *http.Request) {
	userID, ok := userParam(w, r)
	if !ok {
		return
	}
	if h.store == nil {
		respondError(w, http.StatusServiceUnavailable, "STORE_UNAVAILABLE", "store not configured", nil)
		return
	}
	artists, err := h.store.OwnedArtists(r.Context(), userID)
	if err != nil {
		respondError(w, http.StatusInternalServerError, "STORE_ERROR", "failed to read owned artists", err)
		return
	}
	if artists == nil {
		artists = []store.OwnedArtist{}
	}
	respondSuccess(w, artists)
}

// WarmerProgress reports prefetch progress for the user.
func (h *Handler) WarmerProgress(w http.ResponseWriter, r *http.Request) {
	userID, ok := userParam(w, r)
	if !ok {
		return
	}
	if h.warmer == nil {
		respondError(w, http.StatusNotFound, "WARMER_DISABLED", "cache warmer is disabled", nil)
		return
	}
	respondSuccess(w, map[string]any{
		"user_id":  userID,
		"state":    h.warmer.Stats().State,
		"progress": h.warmer.Progress(userID),
	})
}

// userParam validates the {userID} path parameter.
func userParam(w http.ResponseWriter, r *http.Request) (string, bool) {
	req := UserRequest{UserID: chi.URLParam(r, "userID")}
	if apiErr := validateRequest(&req); apiErr != nil {
		respondJSON(w, http.StatusBadRequest, &APIResponse{Status: "error", Error: apiErr})
		return "", false
	}
	return req.UserID, true
}

// respondResult maps a result's Reason to a status code. The result is the
// body either way.
func respondResult(w http.ResponseWriter, result *recommend.RecommendationResult) {
	if result.Success {
		respondSuccess(w, result)
		return
	}

	status, code := http.StatusInternalServerError, "RECOMMENDATION_FAILED"
	switch result.Reason {
	case recommend.ReasonInvalidInput:
		status, code = http.StatusBadRequest, "INVALID_INPUT"
	case recommend.ReasonCollectionTooSmall:
		status, code = http.StatusUnprocessableEntity, "COLLECTION_TOO_SMALL"
	case recommend.ReasonCanceled:
		status, code = http.StatusServiceUnavailable, "CANCELED"
	case recommend.ReasonUnknownUser:
		status, code = http.StatusNotFound, "UNKNOWN_USER"
	case recommend.ReasonCatalogUnavailable:
		status, code = http.StatusServiceUnavailable, "CATALOG_UNAVAILABLE"
	}
	respondJSON(w, status, &APIResponse{
		Status: "error",
		Data:   result,
		Error:  &APIError{Code: code, Message: result.Error},
	})
}
