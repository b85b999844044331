// Cratedigger - Record Collection Tracker
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/cratedigger

package recommend

import (
	"fmt"
	"math"
	"sort"
	"strings"

	"github.com/tomtom215/cratedigger/internal/store"
)

const (
	// ownedArtistProximity is the proximity of a candidate by an owned artist.
	ownedArtistProximity = 0.9

	// topArtistBoost multiplies similarity to one of the user's top artists.
	topArtistBoost = 1.2

	// strongFactor is the value above which a factor counts as strong for
	// the confidence boost.
	strongFactor = 0.7

	confidenceBoost = 0.1

	// maxPopularity is the popularity that maps to an external signal of 1.
	maxPopularity = 1e6
)

// factor identifies one scoring factor.
type factor int

const (
	factorArtistProximity factor = iota
	factorTagSimilarity
	factorEraFit
	factorLabelSceneFit
	factorMoodFit
	factorExternalSignal
	numFactors
)

// Scorer ranks candidates against a profile.
type Scorer struct {
	weights    Weights
	minScore   float64
	topArtists int
}

// NewScorer creates a scorer from cfg. Weights are normalized.
func NewScorer(cfg Config) *Scorer {
	return &Scorer{
		weights:    cfg.Weights.Normalize(),
		minScore:   cfg.MinimumScore,
		topArtists: cfg.Fetch.TopArtists,
	}
}

// profileIndex is the lookup form of a UserProfile.
type profileIndex struct {
	topArtists map[string]struct{}
	tags       map[string]float64
	tagOrder   []Share
	moods      map[string]float64
	eras       map[string]float64
	maxEra     float64
	labels     map[string]float64
	maxLabel   float64
	countries  map[string]float64
	maxCountry float64
}

func newProfileIndex(p *UserProfile, topN int) *profileIndex {
	idx := &profileIndex{
		topArtists: make(map[string]struct{}, topN),
		tags:       make(map[string]float64, len(p.TopGenres)+len(p.TopMoods)),
		labels:     make(map[string]float64, len(p.TopLabels)),
	}
	for i, a := range p.TopArtists {
		if i >= topN {
			break
		}
		idx.topArtists[store.ArtistKey(a.Name)] = struct{}{}
	}

	for _, shares := range [][]Share{p.TopGenres, p.TopMoods} {
		for _, s := range shares {
			if s.Pct > idx.tags[s.Key] {
				idx.tags[s.Key] = s.Pct
			}
		}
	}
	idx.tagOrder = make([]Share, 0, len(idx.tags))
	for k, pct := range idx.tags {
		idx.tagOrder = append(idx.tagOrder, Share{Key: k, Pct: pct})
	}
	sort.Slice(idx.tagOrder, func(i, j int) bool {
		if idx.tagOrder[i].Pct != idx.tagOrder[j].Pct {
			return idx.tagOrder[i].Pct > idx.tagOrder[j].Pct
		}
		return idx.tagOrder[i].Key < idx.tagOrder[j].Key
	})

	idx.moods, _ = shareIndex(p.TopMoods)
	idx.eras, idx.maxEra = shareIndex(p.TopEras)
	idx.countries, idx.maxCountry = shareIndex(p.TopCountries)
	for _, s := range p.TopLabels {
		idx.labels[normalizeTag(s.Key)] = s.Pct
		if s.Pct > idx.maxLabel {
			idx.maxLabel = s.Pct
		}
	}
	return idx
}

// Score rates c against p. The second result is false when c is owned or
// scores below the minimum.
func (s *Scorer) Score(c Candidate, p UserProfile, owned FingerprintSet) (ScoredResult, bool) {
	return s.score(c, newProfileIndex(&p, s.topArtists), owned)
}

// scoreAll scores candidates against one profile, dropping rejects.
func (s *Scorer) scoreAll(candidates []Candidate, p *UserProfile, owned FingerprintSet) []ScoredResult {
	idx := newProfileIndex(p, s.topArtists)
	out := make([]ScoredResult, 0, len(candidates))
	for i := range candidates {
		if r, ok := s.score(candidates[i], idx, owned); ok {
			out = append(out, r)
		}
	}
	return out
}

//nolint:gocritic // Candidate passed by value to keep ScoredResult independent
func (s *Scorer) score(c Candidate, idx *profileIndex, owned FingerprintSet) (ScoredResult, bool) {
	if owned.Contains(c.Fingerprint) {
		return ScoredResult{}, false
	}

	ownedArtist := owned.HasArtist(c.Artist)
	if ownedArtist && c.Title == "" {
		// Recommending an artist the user already collects.
		return ScoredResult{}, false
	}

	candTags := tagSet(c.Genres, c.Moods)
	moods := tagSet(c.Moods)

	var values, present [numFactors]float64
	values[factorArtistProximity] = s.artistProximity(&c, idx, ownedArtist)
	values[factorTagSimilarity] = tagSimilarity(candTags, idx)
	values[factorEraFit] = eraFit(c.Year, idx)
	values[factorLabelSceneFit] = labelSceneFit(&c, idx)
	values[factorMoodFit] = jaccard(moods, idx.moods)
	ext, extPresent := externalSignal(&c)
	values[factorExternalSignal] = ext

	present[factorArtistProximity] = boolFloat(ownedArtist || c.Similarity > 0 || c.PPRScore > 0)
	present[factorTagSimilarity] = boolFloat(len(candTags) > 0)
	present[factorEraFit] = boolFloat(c.Year > 0)
	present[factorLabelSceneFit] = boolFloat(c.Label != "" || c.Country != "")
	present[factorMoodFit] = boolFloat(len(moods) > 0)
	present[factorExternalSignal] = boolFloat(extPresent)

	weights := s.weightVector()
	var total float64
	var contributions [numFactors]float64
	for f := factor(0); f < numFactors; f++ {
		contributions[f] = weights[f] * values[f]
		total += contributions[f]
	}
	total = math.Min(total, 1)
	if total < s.minScore {
		return ScoredResult{}, false
	}

	return ScoredResult{
		Candidate: c,
		Score:     total,
		Factors: FactorScores{
			ArtistProximity: values[factorArtistProximity],
			TagSimilarity:   values[factorTagSimilarity],
			EraFit:          values[factorEraFit],
			LabelSceneFit:   values[factorLabelSceneFit],
			MoodFit:         values[factorMoodFit],
			ExternalSignal:  values[factorExternalSignal],
		},
		Explanation: explain(&c, idx, candTags, contributions, ownedArtist),
		Confidence:  confidence(values, present),
	}, true
}

func (s *Scorer) weightVector() [numFactors]float64 {
	return [numFactors]float64{
		s.weights.ArtistProximity,
		s.weights.TagSimilarity,
		s.weights.EraFit,
		s.weights.LabelSceneFit,
		s.weights.MoodFit,
		s.weights.ExternalSignal,
	}
}

func (s *Scorer) artistProximity(c *Candidate, idx *profileIndex, ownedArtist bool) float64 {
	if ownedArtist {
		return ownedArtistProximity
	}
	switch c.Type {
	case CandidateSimilarArtist:
		if _, ok := idx.topArtists[store.ArtistKey(c.SourceArtist)]; ok {
			return math.Min(1, c.Similarity*topArtistBoost)
		}
		return c.Similarity
	case CandidateGraphDiscovery:
		return c.PPRScore
	default:
		return 0
	}
}

// tagSimilarity blends Jaccard overlap with how much of the profile's
// weight the matched tags carry.
func tagSimilarity(cand map[string]struct{}, idx *profileIndex) float64 {
	if len(cand) == 0 || len(idx.tags) == 0 {
		return 0
	}
	j := jaccard(cand, idx.tags)

	var matched float64
	for t := range cand {
		matched += idx.tags[t]
	}
	// The best a candidate with len(cand) tags could match is the profile's
	// top len(cand) tags.
	var best float64
	for i, s := range idx.tagOrder {
		if i >= len(cand) {
			break
		}
		best += s.Pct
	}
	var weighted float64
	if best > 0 {
		weighted = math.Min(1, matched/best)
	}
	return 0.6*j + 0.4*weighted
}

func eraFit(year int, idx *profileIndex) float64 {
	if year <= 0 || idx.maxEra == 0 {
		return 0
	}
	d := year / 10 * 10
	if share, ok := idx.eras[decade(year)]; ok {
		return math.Min(1, share/idx.maxEra)
	}
	adjacent := math.Max(idx.eras[decade(d-10)], idx.eras[decade(d+10)])
	return 0.5 * math.Min(1, adjacent/idx.maxEra)
}

func labelSceneFit(c *Candidate, idx *profileIndex) float64 {
	var label, country float64
	if c.Label != "" && idx.maxLabel > 0 {
		label = idx.labels[normalizeTag(c.Label)] / idx.maxLabel
	}
	if c.Country != "" && idx.maxCountry > 0 {
		country = idx.countries[strings.ToUpper(c.Country)] / idx.maxCountry
	}
	return math.Min(1, math.Max(label, country))
}

// externalSignal averages the provider-side signals that are present.
func externalSignal(c *Candidate) (float64, bool) {
	var sum float64
	var n int
	if c.Similarity > 0 {
		sum += c.Similarity
		n++
	}
	if c.Popularity > 0 {
		sum += math.Min(1, math.Log10(1+float64(c.Popularity))/math.Log10(1+maxPopularity))
		n++
	}
	if c.Rank > 0 {
		sum += 1 / float64(c.Rank)
		n++
	}
	if n == 0 {
		return 0, false
	}
	return sum / float64(n), true
}

func confidence(values, present [numFactors]float64) float64 {
	var covered float64
	strong := 0
	for f := factor(0); f < numFactors; f++ {
		covered += present[f]
		if values[f] > strongFactor {
			strong++
		}
	}
	c := covered / float64(numFactors)
	if strong >= 2 {
		c += confidenceBoost
	}
	return math.Min(1, c)
}

// explain renders the two largest contributions as phrases.
func explain(c *Candidate, idx *profileIndex, candTags map[string]struct{}, contributions [numFactors]float64, ownedArtist bool) []string {
	order := make([]factor, 0, numFactors)
	for f := factor(0); f < numFactors; f++ {
		if contributions[f] > 0 {
			order = append(order, f)
		}
	}
	sort.SliceStable(order, func(i, j int) bool {
		return contributions[order[i]] > contributions[order[j]]
	})

	out := make([]string, 0, 2)
	for _, f := range order {
		if len(out) == 2 {
			break
		}
		if phrase := factorPhrase(f, c, idx, candTags, ownedArtist); phrase != "" {
			out = append(out, phrase)
		}
	}
	return out
}

func factorPhrase(f factor, c *Candidate, idx *profileIndex, candTags map[string]struct{}, ownedArtist bool) string {
	switch f {
	case factorArtistProximity:
		switch {
		case ownedArtist:
			return fmt.Sprintf("By %s, an artist you collect", c.Artist)
		case c.Type == CandidateSimilarArtist:
			return fmt.Sprintf("Similar to %s (%.0f%% match)", c.SourceArtist, c.Similarity*100)
		case c.Type == CandidateGraphDiscovery && len(c.ConnectedSeeds) > 0:
			names := make([]string, 0, 2)
			for i, s := range c.ConnectedSeeds {
				if i == 2 {
					break
				}
				names = append(names, s.Artist)
			}
			return fmt.Sprintf("Connected to %s in your collection", strings.Join(names, " and "))
		}
	case factorTagSimilarity:
		if tag := bestMatchedTag(candTags, idx); tag != "" {
			return fmt.Sprintf("Matches your taste in %s", tag)
		}
	case factorEraFit:
		if _, ok := idx.eras[decade(c.Year)]; ok {
			return fmt.Sprintf("From the %s, an era you collect", decade(c.Year))
		}
		return fmt.Sprintf("Close to eras you collect (%s)", decade(c.Year))
	case factorLabelSceneFit:
		if c.Label != "" && idx.labels[normalizeTag(c.Label)] > 0 {
			return fmt.Sprintf("On %s, a label you collect", c.Label)
		}
		if c.Country != "" {
			return fmt.Sprintf("From the %s scene you collect", strings.ToUpper(c.Country))
		}
	case factorMoodFit:
		for _, s := range idx.tagOrder {
			if _, ok := idx.moods[s.Key]; !ok {
				continue
			}
			if _, ok := candTags[s.Key]; ok {
				return fmt.Sprintf("Fits your %s mood", s.Key)
			}
		}
	case factorExternalSignal:
		if c.Type == CandidateGenreMatch && c.Rank > 0 {
			return fmt.Sprintf("Ranked #%d for %s", c.Rank, c.SourceTag)
		}
		return "Popular with listeners"
	}
	return ""
}

// bestMatchedTag returns the matched tag with the highest profile share.
func bestMatchedTag(cand map[string]struct{}, idx *profileIndex) string {
	for _, s := range idx.tagOrder {
		if _, ok := cand[s.Key]; ok {
			return s.Key
		}
	}
	return ""
}

func tagSet(lists ...[]string) map[string]struct{} {
	out := make(map[string]struct{})
	for _, l := range lists {
		for _, t := range l {
			if t = normalizeTag(t); t != "" {
				out[t] = struct{}{}
			}
		}
	}
	return out
}

// jaccard computes |a∩b| / |a∪b| over the keys of a and b.
func jaccard[V any](a map[string]struct{}, b map[string]V) float64 {
	if len(a) == 0 || len(b) == 0 {
		return 0
	}
	inter := 0
	for k := range a {
		if _, ok := b[k]; ok {
			inter++
		}
	}
	union := len(a) + len(b) - inter
	return float64(inter) / float64(union)
}

func boolFloat(b bool) float64 {
	if b {
		return 1
	}
	return 0
}
