// Cratedigger - Record Collection Tracker
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/cratedigger

package recommend

import (
	"regexp"
	"sort"
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"

	"github.com/tomtom215/cratedigger/internal/cache"
)

// fingerprintSeparator joins the artist and title parts.
const fingerprintSeparator = "::"

var (
	bracketed = regexp.MustCompile(`[(\[{][^)\]}]*[)\]}]`)

	leadingArticles = map[string]struct{}{"the": {}, "a": {}, "an": {}}
)

// Fingerprint returns the normalized identity of an artist/title pair.
// Artist-level candidates use an empty title.
func Fingerprint(artist, title string) string {
	return normalizePart(artist) + fingerprintSeparator + normalizePart(title)
}

// normalizePart lower-cases s, folds accents, drops bracketed suffixes,
// strips punctuation and a leading article, and collapses whitespace.
func normalizePart(s string) string {
	if s == "" {
		return ""
	}
	s = strings.ToLower(s)

	// Transformers carry state, so each call builds its own chain.
	fold := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	if folded, _, err := transform.String(fold, s); err == nil {
		s = folded
	}

	s = bracketed.ReplaceAllString(s, " ")
	s = strings.ReplaceAll(s, "&", " and ")

	var b strings.Builder
	b.Grow(len(s))
	for _, r := range s {
		switch {
		case unicode.IsLetter(r), unicode.IsDigit(r):
			b.WriteRune(r)
		case r == '\'' || r == '’':
			// "don't" and "dont" should match
		default:
			b.WriteRune(' ')
		}
	}

	words := strings.Fields(b.String())
	if len(words) > 1 {
		if _, ok := leadingArticles[words[0]]; ok {
			words = words[1:]
		}
	}
	return strings.Join(words, " ")
}

// normalizeTag lower-cases and collapses whitespace in a genre or mood tag.
func normalizeTag(tag string) string {
	return strings.Join(strings.Fields(strings.ToLower(tag)), " ")
}

// FingerprintSet indexes the owned collection by item fingerprint and by
// normalized artist name, the artist half of a fingerprint.
type FingerprintSet struct {
	items   map[string]struct{}
	artists map[string]struct{}
}

// NewFingerprintSet builds the index for items.
func NewFingerprintSet(items []OwnedItem) FingerprintSet {
	s := FingerprintSet{
		items:   make(map[string]struct{}, len(items)),
		artists: make(map[string]struct{}),
	}
	for i := range items {
		s.items[Fingerprint(items[i].Artist, items[i].Title)] = struct{}{}
		if items[i].Artist != "" {
			s.artists[normalizePart(items[i].Artist)] = struct{}{}
		}
	}
	return s
}

// Contains reports whether fp is an owned item.
func (s FingerprintSet) Contains(fp string) bool {
	_, ok := s.items[fp]
	return ok
}

// HasArtist reports whether any owned item is by name. Names compare the
// way fingerprints do, so "The Beatles" owns "Beatles" and "Motörhead"
// owns "Motorhead".
func (s FingerprintSet) HasArtist(name string) bool {
	key := normalizePart(name)
	if key == "" {
		return false
	}
	_, ok := s.artists[key]
	return ok
}

// Len returns the number of distinct owned fingerprints.
func (s FingerprintSet) Len() int { return len(s.items) }

// CollectionFingerprint hashes the sorted owned fingerprints. Two
// collections with the same items in any order share a fingerprint.
func CollectionFingerprint(items []OwnedItem) string {
	fps := make([]string, 0, len(items))
	seen := make(map[string]struct{}, len(items))
	for i := range items {
		fp := Fingerprint(items[i].Artist, items[i].Title)
		if _, ok := seen[fp]; ok {
			continue
		}
		seen[fp] = struct{}{}
		fps = append(fps, fp)
	}
	sort.Strings(fps)
	return cache.GenerateKey("collection", fps)
}
