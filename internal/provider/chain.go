// Cratedigger - Record Collection Tracker
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/cratedigger

package provider

import (
	"context"
	"errors"
	"io"
	"strings"

	"github.com/rs/zerolog"
)

// Chain combines providers. SimilarTo and TopForTag are answered by the
// first provider that supports them. EntityInfo asks every provider and
// merges the answers field by field, the first non-empty value winning.
// Chain reports the primary provider's name so stored edges keep a stable
// data source.
type Chain struct {
	providers []MetadataProvider
	logger    zerolog.Logger
}

var _ MetadataProvider = (*Chain)(nil)

// NewChain creates a chain led by primary.
func NewChain(logger zerolog.Logger, primary MetadataProvider, others ...MetadataProvider) *Chain {
	return &Chain{
		providers: append([]MetadataProvider{primary}, others...),
		logger:    logger.With().Str("component", "provider_chain").Logger(),
	}
}

// Name returns the primary provider's name.
func (c *Chain) Name() string {
	return c.providers[0].Name()
}

// SimilarTo delegates to the first provider that supports it.
func (c *Chain) SimilarTo(ctx context.Context, name string, limit int) ([]SimilarEntity, error) {
	for _, p := range c.providers {
		res, err := p.SimilarTo(ctx, name, limit)
		if errors.Is(err, ErrUnsupported) {
			continue
		}
		return res, err
	}
	return nil, ErrUnsupported
}

// TopForTag delegates to the first provider that supports it.
func (c *Chain) TopForTag(ctx context.Context, tag string, limit int) ([]TaggedItem, error) {
	for _, p := range c.providers {
		res, err := p.TopForTag(ctx, tag, limit)
		if errors.Is(err, ErrUnsupported) {
			continue
		}
		return res, err
	}
	return nil, ErrUnsupported
}

// EntityInfo merges metadata from every provider. It fails only when no
// provider produced anything; the first real error is returned then, or
// ErrNotFound when every provider simply had no data.
func (c *Chain) EntityInfo(ctx context.Context, name string) (EntityMetadata, error) {
	merged := EntityMetadata{Name: name}
	var sources []string
	var firstErr error

	for _, p := range c.providers {
		if ctx.Err() != nil {
			return EntityMetadata{}, ctx.Err()
		}
		meta, err := p.EntityInfo(ctx, name)
		if err != nil {
			if !errors.Is(err, ErrNotFound) && !errors.Is(err, ErrUnsupported) {
				c.logger.Debug().Err(err).Str("provider", p.Name()).Str("artist", name).Msg("entity info failed")
				if firstErr == nil {
					firstErr = err
				}
			}
			continue
		}
		mergeMetadata(&merged, meta)
		sources = append(sources, p.Name())
	}

	if len(sources) == 0 {
		if firstErr != nil {
			return EntityMetadata{}, firstErr
		}
		return EntityMetadata{}, ErrNotFound
	}
	merged.Source = strings.Join(sources, "+")
	return merged, nil
}

// Close closes every provider that holds resources.
func (c *Chain) Close() error {
	var errs []error
	for _, p := range c.providers {
		if closer, ok := p.(io.Closer); ok {
			if err := closer.Close(); err != nil {
				errs = append(errs, err)
			}
		}
	}
	return errors.Join(errs...)
}

func mergeMetadata(dst *EntityMetadata, src EntityMetadata) {
	if len(dst.Tags) == 0 {
		dst.Tags = src.Tags
	}
	if dst.Country == "" {
		dst.Country = src.Country
	}
	if len(dst.Labels) == 0 {
		dst.Labels = src.Labels
	}
	if dst.Year == 0 {
		dst.Year = src.Year
	}
	if dst.Popularity == 0 {
		dst.Popularity = src.Popularity
	}
	for k, v := range src.ExternalIDs {
		if dst.ExternalIDs == nil {
			dst.ExternalIDs = map[string]string{}
		}
		if _, ok := dst.ExternalIDs[k]; !ok {
			dst.ExternalIDs[k] = v
		}
	}
}
