// Cratedigger - Record Collection Tracker
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/cratedigger

package provider

import (
	"context"
	"net/url"
	"sort"
	"strconv"
	"strings"

	"github.com/rs/zerolog"
)

// MusicBrainzName is the provider name of the MusicBrainz client.
const MusicBrainzName = "musicbrainz"

// minMusicBrainzScore is the lowest search score accepted when no result
// matches the requested name exactly.
const minMusicBrainzScore = 90

// maxMusicBrainzTags caps the tags kept from an artist record.
const maxMusicBrainzTags = 10

// MusicBrainz is a MusicBrainz web service client. It only answers
// EntityInfo. MusicBrainz asks every client to send a descriptive
// User-Agent and to stay at one request per second.
type MusicBrainz struct {
	*baseClient
}

// NewMusicBrainz creates a MusicBrainz client.
func NewMusicBrainz(cfg ClientConfig, logger zerolog.Logger) *MusicBrainz {
	return &MusicBrainz{baseClient: newBaseClient(MusicBrainzName, cfg, logger)}
}

// Name returns "musicbrainz".
func (c *MusicBrainz) Name() string {
	return MusicBrainzName
}

type musicbrainzArtist struct {
	ID       string `json:"id"`
	Name     string `json:"name"`
	Score    int    `json:"score"`
	Country  string `json:"country"`
	LifeSpan struct {
		Begin string `json:"begin"`
	} `json:"life-span"`
	Tags []struct {
		Name  string `json:"name"`
		Count int    `json:"count"`
	} `json:"tags"`
}

type musicbrainzArtistSearch struct {
	Artists []musicbrainzArtist `json:"artists"`
}

// SimilarTo is not offered by MusicBrainz.
func (c *MusicBrainz) SimilarTo(context.Context, string, int) ([]SimilarEntity, error) {
	return nil, ErrUnsupported
}

// TopForTag is not offered by MusicBrainz.
func (c *MusicBrainz) TopForTag(context.Context, string, int) ([]TaggedItem, error) {
	return nil, ErrUnsupported
}

// EntityInfo searches artists by name and returns country, tags and the
// year the artist began.
func (c *MusicBrainz) EntityInfo(ctx context.Context, name string) (EntityMetadata, error) {
	const method = "artist.search"
	params := map[string]any{"artist": strings.ToLower(name)}

	return cachedCall(ctx, c.baseClient, method, params, func(ctx context.Context) (EntityMetadata, error) {
		q := url.Values{}
		q.Set("query", `artist:"`+luceneEscape(name)+`"`)
		q.Set("fmt", "json")
		q.Set("limit", "5")
		reqURL := strings.TrimRight(c.cfg.BaseURL, "/") + "/artist/?" + q.Encode()

		status, body, err := c.get(ctx, method, reqURL, nil)
		if err != nil {
			return EntityMetadata{}, err
		}
		if status < 200 || status > 299 {
			return EntityMetadata{}, c.statusError(method, status, body)
		}

		var resp musicbrainzArtistSearch
		if err := c.decode(method, status, body, &resp); err != nil {
			return EntityMetadata{}, err
		}

		artist, ok := bestMusicBrainzArtist(resp.Artists, name)
		if !ok {
			return EntityMetadata{}, newProviderError(c.name, method, status, ErrNotFound)
		}
		return musicbrainzMetadata(name, artist), nil
	})
}

// bestMusicBrainzArtist prefers an exact case-insensitive name match and
// otherwise the top result if its score is high enough.
func bestMusicBrainzArtist(artists []musicbrainzArtist, name string) (musicbrainzArtist, bool) {
	for _, a := range artists {
		if strings.EqualFold(a.Name, name) {
			return a, true
		}
	}
	if len(artists) > 0 && artists[0].Score >= minMusicBrainzScore {
		return artists[0], true
	}
	return musicbrainzArtist{}, false
}

func musicbrainzMetadata(name string, a musicbrainzArtist) EntityMetadata {
	meta := EntityMetadata{
		Name:    name,
		Country: a.Country,
		Source:  MusicBrainzName,
	}
	if a.ID != "" {
		meta.ExternalIDs = map[string]string{"musicbrainz": a.ID}
	}
	if len(a.LifeSpan.Begin) >= 4 {
		if year, err := strconv.Atoi(a.LifeSpan.Begin[:4]); err == nil {
			meta.Year = year
		}
	}

	tags := a.Tags
	sort.SliceStable(tags, func(i, j int) bool { return tags[i].Count > tags[j].Count })
	for _, t := range tags {
		if len(meta.Tags) == maxMusicBrainzTags {
			break
		}
		if t.Name != "" {
			meta.Tags = append(meta.Tags, strings.ToLower(t.Name))
		}
	}
	return meta
}

// luceneEscape escapes the characters Lucene treats as query syntax.
func luceneEscape(s string) string {
	const special = `+-&|!(){}[]^"~*?:\/`
	var b strings.Builder
	for _, r := range s {
		if strings.ContainsRune(special, r) {
			b.WriteByte('\\')
		}
		b.WriteRune(r)
	}
	return b.String()
}
