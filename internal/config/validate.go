// Cratedigger - Record Collection Tracker
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/cratedigger

package config

import (
	"errors"
	"fmt"
	"math"

	"github.com/tomtom215/cratedigger/internal/validation"
)

// Validate checks struct-tag rules first and then the cross-field rules the
// tags cannot express.
func (c *Config) Validate() error {
	if err := validation.ValidateStruct(c); err != nil {
		return err
	}

	validators := []func() error{
		c.validateProviders,
		c.validateWeights,
		c.validateLists,
		c.validateWarmer,
		c.validateRefresh,
	}

	for _, validator := range validators {
		if err := validator(); err != nil {
			return err
		}
	}
	return nil
}

// validateProviders enforces per-service credentials.
func (c *Config) validateProviders() error {
	if c.Providers.LastFM.Enabled && c.Providers.LastFM.APIKey == "" {
		return errors.New("providers.lastfm.api_key is required when providers.lastfm.enabled=true")
	}
	// MusicBrainz rejects anonymous clients without a descriptive User-Agent.
	if c.Providers.MusicBrainz.Enabled && c.Providers.MusicBrainz.UserAgent == "" {
		return errors.New("providers.musicbrainz.user_agent is required when providers.musicbrainz.enabled=true")
	}
	return nil
}

// validateWeights rejects an all-zero weight vector. Weights need not sum
// to one; the scorer normalizes them.
func (c *Config) validateWeights() error {
	r := c.Recommend
	sum := r.WeightArtistProximity + r.WeightTagSimilarity + r.WeightEraFit +
		r.WeightLabelSceneFit + r.WeightMoodFit + r.WeightExternalSignal
	if sum <= 0 || math.IsNaN(sum) {
		return errors.New("recommend weights must not all be zero")
	}
	return nil
}

func (c *Config) validateLists() error {
	if c.Recommend.TopPicksSize > c.Recommend.ListSize {
		return fmt.Errorf("recommend.top_picks_size (%d) must not exceed recommend.list_size (%d)",
			c.Recommend.TopPicksSize, c.Recommend.ListSize)
	}
	return nil
}

func (c *Config) validateWarmer() error {
	if !c.Warmer.Enabled {
		return nil
	}
	if c.Warmer.UserID == "" {
		return errors.New("warmer.user_id is required when warmer.enabled=true")
	}
	if c.Warmer.TickInterval > c.Warmer.IdleThreshold {
		return fmt.Errorf("warmer.tick_interval (%v) must not exceed warmer.idle_threshold (%v)",
			c.Warmer.TickInterval, c.Warmer.IdleThreshold)
	}
	return nil
}

func (c *Config) validateRefresh() error {
	if !c.Refresh.Enabled {
		return nil
	}
	if c.Catalog.Path == "" {
		return errors.New("catalog.path is required when refresh.enabled=true")
	}
	if len(c.Refresh.Users) == 0 {
		return errors.New("refresh.users must not be empty when refresh.enabled=true")
	}
	return nil
}
