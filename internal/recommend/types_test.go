// Cratedigger - Record Collection Tracker
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/cratedigger

package recommend

import (
	"errors"
	"strings"
	"testing"

	"github.com/tomtom215/cratedigger/internal/recommend/graph"
	"github.com/tomtom215/cratedigger/internal/validation"
)

func TestOwnedItem_Validate(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		item    OwnedItem
		wantErr bool
	}{
		{"artist and title", OwnedItem{Artist: "Can", Title: "Ege Bamyasi"}, false},
		{"artist only", OwnedItem{Artist: "Can"}, false},
		{"title only", OwnedItem{Title: "Ege Bamyasi"}, false},
		{"neither", OwnedItem{Year: 1972}, true},
		{"negative year", OwnedItem{Artist: "Can", Year: -1}, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			err := tt.item.Validate()
			if (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestCandidate_Validate(t *testing.T) {
	t.Parallel()

	seeds := []graph.SeedConnection{{Artist: "Pink Floyd", Similarity: 0.7}}
	tests := []struct {
		name      string
		candidate Candidate
		wantField string
		wantErr   error
	}{
		{
			name: "similar artist",
			candidate: Candidate{Type: CandidateSimilarArtist, Fingerprint: "genesis::", Artist: "Genesis",
				SourceArtist: "Pink Floyd", Similarity: 0.8},
		},
		{
			name:      "similar artist without source",
			candidate: Candidate{Type: CandidateSimilarArtist, Fingerprint: "genesis::", Artist: "Genesis", Similarity: 0.8},
			wantField: "SourceArtist",
		},
		{
			name: "similar artist without similarity",
			candidate: Candidate{Type: CandidateSimilarArtist, Fingerprint: "genesis::", Artist: "Genesis",
				SourceArtist: "Pink Floyd"},
			wantField: "Similarity",
		},
		{
			name: "genre match",
			candidate: Candidate{Type: CandidateGenreMatch, Fingerprint: "yes::fragile", Artist: "Yes", Title: "Fragile",
				SourceTag: "progressive rock", Rank: 3},
		},
		{
			name: "genre match without rank",
			candidate: Candidate{Type: CandidateGenreMatch, Fingerprint: "yes::fragile", Artist: "Yes",
				SourceTag: "progressive rock"},
			wantField: "Rank",
		},
		{
			name: "graph discovery",
			candidate: Candidate{Type: CandidateGraphDiscovery, Fingerprint: "camel::", Artist: "Camel",
				PPRScore: 0.4, ConnectedSeeds: seeds},
		},
		{
			name:      "graph discovery without seeds",
			candidate: Candidate{Type: CandidateGraphDiscovery, Fingerprint: "camel::", Artist: "Camel", PPRScore: 0.4},
			wantErr:   errNoConnectedSeeds,
		},
		{
			name:      "unknown type",
			candidate: Candidate{Type: "mystery", Fingerprint: "x::", Artist: "X"},
			wantField: "Type",
		},
		{
			name:      "missing fingerprint",
			candidate: Candidate{Type: CandidateSimilarArtist, Artist: "X", SourceArtist: "Y", Similarity: 0.5},
			wantField: "Fingerprint",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			err := tt.candidate.Validate()
			switch {
			case tt.wantField == "" && tt.wantErr == nil:
				if err != nil {
					t.Errorf("Validate() error = %v, want nil", err)
				}
			case tt.wantErr != nil:
				if !errors.Is(err, tt.wantErr) {
					t.Errorf("Validate() error = %v, want %v", err, tt.wantErr)
				}
			default:
				var verr *validation.Errors
				if !errors.As(err, &verr) || !verr.HasField(tt.wantField) {
					t.Errorf("Validate() error = %v, want failure on %s", err, tt.wantField)
				}
			}
		})
	}
}

func TestInvalidItemError(t *testing.T) {
	t.Parallel()

	item := OwnedItem{}
	err := validateItems([]OwnedItem{{Artist: "ok"}, item})

	var iie *InvalidItemError
	if !errors.As(err, &iie) || iie.Index != 1 {
		t.Fatalf("validateItems() error = %v, want InvalidItemError at index 1", err)
	}
	if !strings.Contains(err.Error(), "owned item 1") {
		t.Errorf("Error() = %q", err.Error())
	}
	var verr *validation.Errors
	if !errors.As(err, &verr) {
		t.Error("InvalidItemError does not unwrap to validation errors")
	}
}

func TestProfileError(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		err  *ProfileError
		want string
	}{
		{"below minimum", &ProfileError{TotalItems: 0, MinItems: 3, NoArtists: true}, "need at least 3"},
		{"no artists", &ProfileError{TotalItems: 5, MinItems: 3, NoArtists: true}, "none of 5 items names an artist"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			if got := error(tt.err).Error(); !strings.Contains(got, tt.want) {
				t.Errorf("Error() = %q, want it to contain %q", got, tt.want)
			}
		})
	}
}

func TestCandidate_AddSource(t *testing.T) {
	t.Parallel()

	c := Candidate{Type: CandidateSimilarArtist, SourceArtist: "Pink Floyd"}
	src := CandidateSource{Type: CandidateGenreMatch, Source: "progressive rock"}
	c.addSource(src)
	c.addSource(src)
	if len(c.AdditionalSources) != 1 {
		t.Errorf("AdditionalSources = %v, want one entry", c.AdditionalSources)
	}

	pool := newCandidatePool()
	a := Candidate{Type: CandidateSimilarArtist, Fingerprint: "camel::", Artist: "Camel", SourceArtist: "Pink Floyd", Similarity: 0.6}
	b := a
	b.SourceArtist = "Genesis"
	if !pool.add(a) || pool.add(b) || pool.add(a) {
		t.Fatal("pool.add() reported wrong novelty")
	}
	got := pool.candidates()
	if len(got) != 1 || got[0].SourceArtist != "Pink Floyd" {
		t.Fatalf("candidates = %+v", got)
	}
	if len(got[0].AdditionalSources) != 1 || got[0].AdditionalSources[0].Source != "Genesis" {
		t.Errorf("AdditionalSources = %+v, want the Genesis route", got[0].AdditionalSources)
	}
}
