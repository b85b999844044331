// Cratedigger - Record Collection Tracker
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/cratedigger

package recommend

import "sort"

// List names, in assembly order.
const (
	ListTopPicks         = "top_picks"
	ListSimilarArtists   = "similar_artists"
	ListGenreMatches     = "genre_matches"
	ListHiddenGems       = "hidden_gems"
	ListGraphDiscoveries = "graph_discoveries"
)

// ListNames returns the list names in assembly order.
func ListNames() []string {
	return []string{ListTopPicks, ListSimilarArtists, ListGenreMatches, ListHiddenGems, ListGraphDiscoveries}
}

// AssembleLists sorts results by score and distributes them over the named
// lists. A fingerprint appears in at most one list; earlier lists win.
func AssembleLists(results []ScoredResult, cfg ListConfig) map[string][]ScoredResult {
	sorted := make([]ScoredResult, len(results))
	copy(sorted, results)
	sort.SliceStable(sorted, func(i, j int) bool {
		if sorted[i].Score != sorted[j].Score {
			return sorted[i].Score > sorted[j].Score
		}
		return sorted[i].Candidate.Fingerprint < sorted[j].Candidate.Fingerprint
	})

	type rule struct {
		name  string
		limit int
		match func(*ScoredResult) bool
	}
	rules := []rule{
		{ListTopPicks, min(cfg.TopPicksSize, cfg.ListSize), func(r *ScoredResult) bool {
			return r.Score >= cfg.TopPicksMinScore
		}},
		{ListSimilarArtists, cfg.ListSize, func(r *ScoredResult) bool {
			return r.Candidate.Type == CandidateSimilarArtist
		}},
		{ListGenreMatches, cfg.ListSize, func(r *ScoredResult) bool {
			return r.Candidate.Type == CandidateGenreMatch
		}},
		{ListHiddenGems, cfg.ListSize, func(r *ScoredResult) bool {
			// Unknown popularity (0) is not evidence of obscurity.
			return r.Score > cfg.HiddenGemMinScore &&
				r.Candidate.Popularity > 0 && r.Candidate.Popularity < cfg.HiddenGemMaxPopularity
		}},
		{ListGraphDiscoveries, cfg.ListSize, func(r *ScoredResult) bool {
			return r.Candidate.Type == CandidateGraphDiscovery
		}},
	}

	used := make(map[string]struct{}, len(sorted))
	lists := make(map[string][]ScoredResult, len(rules))
	for _, rl := range rules {
		list := make([]ScoredResult, 0)
		for i := range sorted {
			if len(list) >= rl.limit {
				break
			}
			r := &sorted[i]
			if _, ok := used[r.Candidate.Fingerprint]; ok || !rl.match(r) {
				continue
			}
			used[r.Candidate.Fingerprint] = struct{}{}
			list = append(list, *r)
		}
		lists[rl.name] = list
	}
	return lists
}
