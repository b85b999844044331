// Cratedigger - Record Collection Tracker
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/cratedigger

package recommend

import (
	"math"
	"reflect"
	"testing"
)

func TestBuildProfile(t *testing.T) {
	t.Parallel()

	p := BuildProfile(floydCollection(), DefaultConfig().Profile)

	if p.TotalItems != 4 {
		t.Errorf("TotalItems = %d, want 4", p.TotalItems)
	}
	if len(p.TopArtists) != 1 || p.TopArtists[0] != (ArtistCount{Name: "Pink Floyd", Count: 4}) {
		t.Errorf("TopArtists = %+v", p.TopArtists)
	}

	wantGenres := []Share{
		{Key: "progressive rock", Count: 4, Pct: 1},
		{Key: "rock", Count: 3, Pct: 0.75},
		{Key: "psychedelic rock", Count: 1, Pct: 0.25},
	}
	if !reflect.DeepEqual(p.TopGenres, wantGenres) {
		t.Errorf("TopGenres = %+v, want %+v", p.TopGenres, wantGenres)
	}
	if len(p.TopEras) != 1 || p.TopEras[0].Key != "1970s" || p.TopEras[0].Pct != 1 {
		t.Errorf("TopEras = %+v", p.TopEras)
	}
	if len(p.TopLabels) != 1 || p.TopLabels[0].Key != "harvest" {
		t.Errorf("TopLabels = %+v", p.TopLabels)
	}
	if len(p.TopCountries) != 1 || p.TopCountries[0].Key != "GB" {
		t.Errorf("TopCountries = %+v", p.TopCountries)
	}
	if p.IsEclectic {
		t.Error("IsEclectic = true for a single-genre collection")
	}
}

func TestBuildProfile_LabelSpellings(t *testing.T) {
	t.Parallel()

	items := []OwnedItem{
		{Artist: "Pink Floyd", Title: "Meddle", Label: "Harvest"},
		{Artist: "Deep Purple", Title: "In Rock", Label: "HARVEST"},
		{Artist: "Kevin Ayers", Title: "Joy of a Toy", Label: " harvest "},
		{Artist: "Genesis", Title: "Foxtrot", Label: "Charisma  Records"},
		{Artist: "Van der Graaf Generator", Title: "Pawn Hearts", Label: "charisma records"},
	}
	p := BuildProfile(items, DefaultConfig().Profile)

	want := []Share{
		{Key: "harvest", Count: 3, Pct: 0.6},
		{Key: "charisma records", Count: 2, Pct: 0.4},
	}
	if !reflect.DeepEqual(p.TopLabels, want) {
		t.Errorf("TopLabels = %+v, want %+v", p.TopLabels, want)
	}
}

func TestBuildProfile_Empty(t *testing.T) {
	t.Parallel()

	p := BuildProfile(nil, DefaultConfig().Profile)
	if p.TotalItems != 0 || len(p.TopArtists) != 0 || len(p.TopGenres) != 0 || p.IsEclectic {
		t.Errorf("BuildProfile(nil) = %+v, want empty", p)
	}
}

func TestBuildProfile_TiesAndTruncation(t *testing.T) {
	t.Parallel()

	items := []OwnedItem{
		{Artist: "Can", Title: "Tago Mago", Genres: []string{"krautrock"}},
		{Artist: "Neu!", Title: "Neu!", Genres: []string{"krautrock"}},
		{Artist: "Faust", Title: "IV", Genres: []string{"experimental"}},
		{Artist: "Amon Düül II", Title: "Yeti", Genres: []string{"psychedelic"}},
	}
	cfg := ProfileConfig{TopN: 2, EclecticThreshold: 0.25, MinItems: 1}
	p := BuildProfile(items, cfg)

	wantArtists := []ArtistCount{{Name: "Amon Düül II", Count: 1}, {Name: "Can", Count: 1}}
	if !reflect.DeepEqual(p.TopArtists, wantArtists) {
		t.Errorf("TopArtists = %+v, want %+v", p.TopArtists, wantArtists)
	}
	if len(p.TopGenres) != 2 || p.TopGenres[0].Key != "krautrock" || p.TopGenres[1].Key != "experimental" {
		t.Errorf("TopGenres = %+v", p.TopGenres)
	}
	for i := 0; i < 10; i++ {
		if again := BuildProfile(items, cfg); !reflect.DeepEqual(again, p) {
			t.Fatalf("BuildProfile not deterministic: %+v != %+v", again, p)
		}
	}
}

func TestBuildProfile_Eclectic(t *testing.T) {
	t.Parallel()

	genres := []string{"jazz", "punk", "folk", "techno", "soul"}
	items := make([]OwnedItem, 0, len(genres))
	for _, g := range genres {
		items = append(items, OwnedItem{Artist: g + " artist", Title: g, Genres: []string{g}})
	}
	p := BuildProfile(items, DefaultConfig().Profile)
	if !p.IsEclectic {
		t.Errorf("IsEclectic = false, top genre share %f", p.TopGenres[0].Pct)
	}
}

func TestBuildProfile_GenreCountedOncePerItem(t *testing.T) {
	t.Parallel()

	items := []OwnedItem{
		{Artist: "X", Title: "Y", Genres: []string{"Rock", "rock", " ROCK "}, Year: 1969},
		{Artist: "X", Title: "Z"},
	}
	p := BuildProfile(items, DefaultConfig().Profile)
	if len(p.TopGenres) != 1 || p.TopGenres[0].Count != 1 || math.Abs(p.TopGenres[0].Pct-0.5) > 1e-9 {
		t.Errorf("TopGenres = %+v, want rock counted once at 0.5", p.TopGenres)
	}
	if len(p.TopEras) != 1 || p.TopEras[0].Key != "1960s" || p.TopEras[0].Pct != 0.5 {
		t.Errorf("TopEras = %+v, want 1960s at 0.5", p.TopEras)
	}
}

func TestDecade(t *testing.T) {
	t.Parallel()

	tests := map[int]string{0: "", -5: "", 1969: "1960s", 1970: "1970s", 2024: "2020s"}
	for year, want := range tests {
		if got := decade(year); got != want {
			t.Errorf("decade(%d) = %q, want %q", year, got, want)
		}
	}
}
