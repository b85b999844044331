// Cratedigger - Record Collection Tracker
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/cratedigger

package validation

import (
	"errors"
	"strings"
	"testing"
)

type sampleItem struct {
	Artist string `validate:"required_without=Title"`
	Title  string
	Year   int     `validate:"omitempty,gte=1900,lte=2100"`
	Weight float64 `validate:"gte=0,lte=1"`
	Format string  `validate:"omitempty,oneof=json console"`
	URL    string  `validate:"omitempty,url"`
}

func TestGetValidator_Singleton(t *testing.T) {
	t.Parallel()

	if GetValidator() != GetValidator() {
		t.Error("GetValidator() should return the same instance")
	}
}

func TestValidateStruct(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name       string
		input      sampleItem
		wantFields []string
		wantMsg    string
	}{
		{
			name:  "valid artist only",
			input: sampleItem{Artist: "Pink Floyd"},
		},
		{
			name:  "valid title only",
			input: sampleItem{Title: "Untitled"},
		},
		{
			name:       "artist and title both empty",
			input:      sampleItem{},
			wantFields: []string{"Artist"},
			wantMsg:    "Artist is required when Title is empty",
		},
		{
			name:       "year out of range",
			input:      sampleItem{Artist: "Yes", Year: 1800},
			wantFields: []string{"Year"},
			wantMsg:    "Year must be greater than or equal to 1900",
		},
		{
			name:       "weight above one and bad format",
			input:      sampleItem{Artist: "Yes", Weight: 1.5, Format: "xml"},
			wantFields: []string{"Weight", "Format"},
			wantMsg:    "Format must be one of: json console",
		},
		{
			name:       "bad url",
			input:      sampleItem{Artist: "Yes", URL: "not a url"},
			wantFields: []string{"URL"},
			wantMsg:    "URL must be a valid URL",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			err := ValidateStruct(&tt.input)
			if len(tt.wantFields) == 0 {
				if err != nil {
					t.Fatalf("expected no error, got %v", err)
				}
				return
			}
			if err == nil {
				t.Fatal("expected validation error")
			}

			var verrs *Errors
			if !errors.As(err, &verrs) {
				t.Fatalf("expected *Errors, got %T", err)
			}
			for _, f := range tt.wantFields {
				if !verrs.HasField(f) {
					t.Errorf("expected failure on %s, got %v", f, err)
				}
			}
			if !strings.Contains(err.Error(), tt.wantMsg) {
				t.Errorf("expected message %q in %q", tt.wantMsg, err.Error())
			}
		})
	}
}

func TestErrors_EmptyMessage(t *testing.T) {
	t.Parallel()

	e := &Errors{}
	if e.Error() != "validation failed" {
		t.Errorf("unexpected message %q", e.Error())
	}
}
