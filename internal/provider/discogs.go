// Cratedigger - Record Collection Tracker
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/cratedigger

package provider

import (
	"context"
	"net/http"
	"net/url"
	"sort"
	"strconv"
	"strings"

	"github.com/rs/zerolog"
)

// DiscogsName is the provider name of the Discogs client.
const DiscogsName = "discogs"

const (
	discogsSearchSize = 25
	maxDiscogsLabels  = 3
	maxDiscogsTags    = 10
)

// Discogs is a Discogs database client. It only answers EntityInfo,
// aggregated over the artist's releases. APIKey is a personal access token.
type Discogs struct {
	*baseClient
}

// NewDiscogs creates a Discogs client.
func NewDiscogs(cfg ClientConfig, logger zerolog.Logger) *Discogs {
	return &Discogs{baseClient: newBaseClient(DiscogsName, cfg, logger)}
}

// Name returns "discogs".
func (c *Discogs) Name() string {
	return DiscogsName
}

type discogsRelease struct {
	ID        int64      `json:"id"`
	MasterID  int64      `json:"master_id"`
	Title     string     `json:"title"`
	Year      flexNumber `json:"year"`
	Country   string     `json:"country"`
	Label     []string   `json:"label"`
	Genre     []string   `json:"genre"`
	Style     []string   `json:"style"`
	Community struct {
		Have int64 `json:"have"`
		Want int64 `json:"want"`
	} `json:"community"`
}

type discogsSearchResponse struct {
	Results []discogsRelease `json:"results"`
}

// SimilarTo is not offered by Discogs.
func (c *Discogs) SimilarTo(context.Context, string, int) ([]SimilarEntity, error) {
	return nil, ErrUnsupported
}

// TopForTag is not offered by Discogs.
func (c *Discogs) TopForTag(context.Context, string, int) ([]TaggedItem, error) {
	return nil, ErrUnsupported
}

// EntityInfo searches the artist's releases and aggregates them: the most
// common labels, styles and genres as tags, the most common country, the
// earliest year and the highest community "have" count as popularity.
func (c *Discogs) EntityInfo(ctx context.Context, name string) (EntityMetadata, error) {
	const method = "database.search"
	params := map[string]any{"artist": strings.ToLower(name)}

	return cachedCall(ctx, c.baseClient, method, params, func(ctx context.Context) (EntityMetadata, error) {
		q := url.Values{}
		q.Set("artist", name)
		q.Set("type", "release")
		q.Set("per_page", strconv.Itoa(discogsSearchSize))
		reqURL := strings.TrimRight(c.cfg.BaseURL, "/") + "/database/search?" + q.Encode()

		var header http.Header
		if c.cfg.APIKey != "" {
			header = http.Header{"Authorization": []string{"Discogs token=" + c.cfg.APIKey}}
		}

		status, body, err := c.get(ctx, method, reqURL, header)
		if err != nil {
			return EntityMetadata{}, err
		}
		if status < 200 || status > 299 {
			return EntityMetadata{}, c.statusError(method, status, body)
		}

		var resp discogsSearchResponse
		if err := c.decode(method, status, body, &resp); err != nil {
			return EntityMetadata{}, err
		}
		if len(resp.Results) == 0 {
			return EntityMetadata{}, newProviderError(c.name, method, status, ErrNotFound)
		}
		return discogsMetadata(name, resp.Results), nil
	})
}

func discogsMetadata(name string, releases []discogsRelease) EntityMetadata {
	meta := EntityMetadata{Name: name, Source: DiscogsName}

	labels := map[string]int{}
	tags := map[string]int{}
	countries := map[string]int{}
	var topHave int64
	var topRelease int64

	for _, r := range releases {
		for _, l := range r.Label {
			labels[l]++
		}
		for _, g := range r.Genre {
			tags[strings.ToLower(g)]++
		}
		for _, s := range r.Style {
			tags[strings.ToLower(s)]++
		}
		if r.Country != "" {
			countries[r.Country]++
		}
		if y := int(r.Year); y > 0 && (meta.Year == 0 || y < meta.Year) {
			meta.Year = y
		}
		if r.Community.Have > topHave {
			topHave = r.Community.Have
			topRelease = r.MasterID
			if topRelease == 0 {
				topRelease = r.ID
			}
		}
	}

	meta.Labels = topKeys(labels, maxDiscogsLabels)
	meta.Tags = topKeys(tags, maxDiscogsTags)
	if c := topKeys(countries, 1); len(c) == 1 {
		meta.Country = c[0]
	}
	meta.Popularity = topHave
	if topRelease != 0 {
		meta.ExternalIDs = map[string]string{"discogs_release": strconv.FormatInt(topRelease, 10)}
	}
	return meta
}

// topKeys returns up to n keys ordered by count, ties alphabetically.
func topKeys(counts map[string]int, n int) []string {
	if len(counts) == 0 {
		return nil
	}
	keys := make([]string, 0, len(counts))
	for k := range counts {
		if k != "" {
			keys = append(keys, k)
		}
	}
	sort.Slice(keys, func(i, j int) bool {
		if counts[keys[i]] != counts[keys[j]] {
			return counts[keys[i]] > counts[keys[j]]
		}
		return keys[i] < keys[j]
	})
	if len(keys) > n {
		keys = keys[:n]
	}
	return keys
}
