// Cratedigger - Record Collection Tracker
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/cratedigger

package provider

import (
	"bytes"
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/goccy/go-json"
	"github.com/rs/zerolog"
)

// LastFMName is the provider and data source name of the Last.fm client.
const LastFMName = "lastfm"

// Last.fm error codes with special handling.
const (
	lastfmErrInvalidParams = 6
	lastfmErrRateLimit     = 29
)

// LastFM is a Last.fm web service client.
type LastFM struct {
	*baseClient
}

// NewLastFM creates a Last.fm client. cfg.APIKey is required by the service.
func NewLastFM(cfg ClientConfig, logger zerolog.Logger) *LastFM {
	return &LastFM{baseClient: newBaseClient(LastFMName, cfg, logger)}
}

// Name returns "lastfm".
func (c *LastFM) Name() string {
	return LastFMName
}

type lastfmError struct {
	Code    int    `json:"error"`
	Message string `json:"message"`
}

type lastfmSimilarResponse struct {
	SimilarArtists struct {
		Artist oneOrMany[struct {
			Name  string     `json:"name"`
			MBID  string     `json:"mbid"`
			Match flexNumber `json:"match"`
		}] `json:"artist"`
	} `json:"similarartists"`
}

type lastfmTopAlbumsResponse struct {
	Albums struct {
		Album oneOrMany[struct {
			Name   string `json:"name"`
			MBID   string `json:"mbid"`
			Artist struct {
				Name string `json:"name"`
			} `json:"artist"`
			Attr struct {
				Rank flexNumber `json:"rank"`
			} `json:"@attr"`
		}] `json:"album"`
	} `json:"albums"`
}

type lastfmTag struct {
	Name string `json:"name"`
}

type lastfmArtistInfoResponse struct {
	Artist struct {
		Name  string `json:"name"`
		MBID  string `json:"mbid"`
		Stats struct {
			Listeners flexNumber `json:"listeners"`
			Playcount flexNumber `json:"playcount"`
		} `json:"stats"`
		Tags lastfmTagList `json:"tags"`
	} `json:"artist"`
}

// lastfmTagList decodes {"tag": [...]}. Artists without tags come back
// with "tags": "".
type lastfmTagList []lastfmTag

func (l *lastfmTagList) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) == 0 || data[0] != '{' {
		*l = nil
		return nil
	}
	var wrapper struct {
		Tag oneOrMany[lastfmTag] `json:"tag"`
	}
	if err := json.Unmarshal(data, &wrapper); err != nil {
		return err
	}
	*l = lastfmTagList(wrapper.Tag)
	return nil
}

// call issues one Last.fm method call and decodes the payload into out.
func (c *LastFM) call(ctx context.Context, method string, params url.Values, out any) error {
	params.Set("method", method)
	params.Set("api_key", c.cfg.APIKey)
	params.Set("format", "json")
	reqURL := c.cfg.BaseURL + "?" + params.Encode()

	status, body, err := c.get(ctx, method, reqURL, nil)
	if err != nil {
		return err
	}

	// Last.fm reports failures in the body, sometimes with status 200.
	if apiErr := parseLastFMError(body); apiErr != nil {
		return c.lastfmError(method, status, apiErr)
	}
	if status < 200 || status > 299 {
		return c.statusError(method, status, body)
	}
	return c.decode(method, status, body, out)
}

func parseLastFMError(body []byte) *lastfmError {
	if !bytes.Contains(body, []byte(`"error"`)) {
		return nil
	}
	var apiErr lastfmError
	if err := json.Unmarshal(body, &apiErr); err != nil || apiErr.Code == 0 {
		return nil
	}
	return &apiErr
}

func (c *LastFM) lastfmError(method string, status int, apiErr *lastfmError) error {
	var err error
	switch apiErr.Code {
	case lastfmErrInvalidParams:
		err = fmt.Errorf("%w: %s", ErrNotFound, apiErr.Message)
	default:
		err = fmt.Errorf("last.fm error %d: %s", apiErr.Code, apiErr.Message)
	}
	pe := newProviderError(c.name, method, status, err)
	if apiErr.Code == lastfmErrRateLimit && pe.StatusCode == http.StatusOK {
		pe.StatusCode = http.StatusTooManyRequests
	}
	return pe
}

// SimilarTo calls artist.getsimilar. Scores are Last.fm match values in [0,1].
func (c *LastFM) SimilarTo(ctx context.Context, name string, limit int) ([]SimilarEntity, error) {
	const method = "artist.getsimilar"
	params := map[string]any{"artist": strings.ToLower(name), "limit": limit}

	return cachedCall(ctx, c.baseClient, method, params, func(ctx context.Context) ([]SimilarEntity, error) {
		q := url.Values{}
		q.Set("artist", name)
		q.Set("autocorrect", "1")
		q.Set("limit", strconv.Itoa(limit))

		var resp lastfmSimilarResponse
		if err := c.call(ctx, method, q, &resp); err != nil {
			return nil, err
		}

		out := make([]SimilarEntity, 0, len(resp.SimilarArtists.Artist))
		for _, a := range resp.SimilarArtists.Artist {
			if a.Name == "" {
				continue
			}
			out = append(out, SimilarEntity{
				Name:       a.Name,
				Score:      clamp01(float64(a.Match)),
				ExternalID: a.MBID,
			})
		}
		return out, nil
	})
}

// TopForTag calls tag.gettopalbums. Last.fm exposes no popularity for tag
// charts, so Popularity is left unknown (zero).
func (c *LastFM) TopForTag(ctx context.Context, tag string, limit int) ([]TaggedItem, error) {
	const method = "tag.gettopalbums"
	params := map[string]any{"tag": strings.ToLower(tag), "limit": limit}

	return cachedCall(ctx, c.baseClient, method, params, func(ctx context.Context) ([]TaggedItem, error) {
		q := url.Values{}
		q.Set("tag", tag)
		q.Set("limit", strconv.Itoa(limit))

		var resp lastfmTopAlbumsResponse
		if err := c.call(ctx, method, q, &resp); err != nil {
			return nil, err
		}

		out := make([]TaggedItem, 0, len(resp.Albums.Album))
		for i, a := range resp.Albums.Album {
			if a.Name == "" || a.Artist.Name == "" {
				continue
			}
			rank := int(a.Attr.Rank)
			if rank <= 0 {
				rank = i + 1
			}
			out = append(out, TaggedItem{
				Name:       a.Name,
				ArtistName: a.Artist.Name,
				Rank:       rank,
				ExternalID: a.MBID,
			})
		}
		return out, nil
	})
}

// EntityInfo calls artist.getinfo. Popularity is the listener count.
func (c *LastFM) EntityInfo(ctx context.Context, name string) (EntityMetadata, error) {
	const method = "artist.getinfo"
	params := map[string]any{"artist": strings.ToLower(name)}

	return cachedCall(ctx, c.baseClient, method, params, func(ctx context.Context) (EntityMetadata, error) {
		q := url.Values{}
		q.Set("artist", name)
		q.Set("autocorrect", "1")

		var resp lastfmArtistInfoResponse
		if err := c.call(ctx, method, q, &resp); err != nil {
			return EntityMetadata{}, err
		}

		meta := EntityMetadata{
			Name:       name,
			Popularity: int64(resp.Artist.Stats.Listeners),
			Source:     LastFMName,
		}
		for _, t := range resp.Artist.Tags {
			if t.Name != "" {
				meta.Tags = append(meta.Tags, strings.ToLower(t.Name))
			}
		}
		if resp.Artist.MBID != "" {
			meta.ExternalIDs = map[string]string{"musicbrainz": resp.Artist.MBID}
		}
		return meta, nil
	})
}

func clamp01(v float64) float64 {
	switch {
	case v < 0:
		return 0
	case v > 1:
		return 1
	default:
		return v
	}
}
