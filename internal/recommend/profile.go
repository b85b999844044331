// Cratedigger - Record Collection Tracker
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/cratedigger

package recommend

import (
	"sort"
	"strconv"
	"strings"

	"github.com/tomtom215/cratedigger/internal/store"
)

// BuildProfile summarizes items. It is pure and deterministic: ties are
// broken alphabetically.
func BuildProfile(items []OwnedItem, cfg ProfileConfig) UserProfile {
	profile := UserProfile{TotalItems: len(items)}
	if len(items) == 0 {
		return profile
	}

	artistCounts := make(map[string]int)
	artistNames := make(map[string]string)
	genres := make(map[string]int)
	eras := make(map[string]int)
	labels := make(map[string]int)
	moods := make(map[string]int)
	countries := make(map[string]int)

	for i := range items {
		item := &items[i]
		if name := strings.TrimSpace(item.Artist); name != "" {
			key := store.ArtistKey(name)
			if _, ok := artistNames[key]; !ok {
				artistNames[key] = name
			}
			artistCounts[key]++
		}
		countTags(genres, item.Genres)
		countTags(moods, item.Moods)
		if d := decade(item.Year); d != "" {
			eras[d]++
		}
		if l := normalizeTag(item.Label); l != "" {
			labels[l]++
		}
		if c := strings.TrimSpace(item.Country); c != "" {
			countries[strings.ToUpper(c)]++
		}
	}

	profile.TopArtists = topArtists(artistCounts, artistNames, cfg.TopN)
	profile.TopGenres = topShares(genres, len(items), cfg.TopN)
	profile.TopEras = topShares(eras, len(items), cfg.TopN)
	profile.TopLabels = topShares(labels, len(items), cfg.TopN)
	profile.TopMoods = topShares(moods, len(items), cfg.TopN)
	profile.TopCountries = topShares(countries, len(items), cfg.TopN)
	profile.IsEclectic = len(profile.TopGenres) > 0 && profile.TopGenres[0].Pct < cfg.EclecticThreshold

	return profile
}

// countTags counts each distinct normalized tag once per item.
func countTags(counts map[string]int, tags []string) {
	seen := make(map[string]struct{}, len(tags))
	for _, t := range tags {
		t = normalizeTag(t)
		if t == "" {
			continue
		}
		if _, ok := seen[t]; ok {
			continue
		}
		seen[t] = struct{}{}
		counts[t]++
	}
}

// decade renders a year as "1970s". Unknown years return "".
func decade(year int) string {
	if year <= 0 {
		return ""
	}
	return strconv.Itoa(year/10*10) + "s"
}

func topArtists(counts map[string]int, names map[string]string, n int) []ArtistCount {
	out := make([]ArtistCount, 0, len(counts))
	for key, c := range counts {
		out = append(out, ArtistCount{Name: names[key], Count: c})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Count != out[j].Count {
			return out[i].Count > out[j].Count
		}
		return out[i].Name < out[j].Name
	})
	if n > 0 && len(out) > n {
		out = out[:n]
	}
	return out
}

func topShares(counts map[string]int, total, n int) []Share {
	out := make([]Share, 0, len(counts))
	for key, c := range counts {
		out = append(out, Share{Key: key, Count: c, Pct: float64(c) / float64(total)})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Count != out[j].Count {
			return out[i].Count > out[j].Count
		}
		return out[i].Key < out[j].Key
	})
	if n > 0 && len(out) > n {
		out = out[:n]
	}
	return out
}

// shareIndex maps share keys to their fraction and returns the largest one.
func shareIndex(shares []Share) (map[string]float64, float64) {
	idx := make(map[string]float64, len(shares))
	var maxPct float64
	for _, s := range shares {
		idx[s.Key] = s.Pct
		if s.Pct > maxPct {
			maxPct = s.Pct
		}
	}
	return idx, maxPct
}
