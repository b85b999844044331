// Cratedigger - Record Collection Tracker
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/cratedigger

package recommend

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
)

func writeCatalog(t *testing.T, body string) *FileCatalog {
	t.Helper()
	path := filepath.Join(t.TempDir(), "catalog.json")
	if err := os.WriteFile(path, []byte(body), 0o600); err != nil {
		t.Fatalf("write catalog: %v", err)
	}
	return NewFileCatalog(path)
}

func TestFileCatalog_ListOwnedItems(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name      string
		body      string
		userID    string
		wantItems int
		wantErr   bool
		unknown   bool
	}{
		{
			name:      "bare array serves any user",
			body:      `[{"artist":"Can","title":"Tago Mago","year":1971},{"artist":"Neu!"}]`,
			userID:    "anyone",
			wantItems: 2,
		},
		{
			name:      "per-user object",
			body:      ` {"alice":[{"artist":"Can"}],"bob":[]}`,
			userID:    "alice",
			wantItems: 1,
		},
		{
			name:    "unknown user",
			body:    `{"alice":[{"artist":"Can"}]}`,
			userID:  "carol",
			wantErr: true,
			unknown: true,
		},
		{
			name:    "malformed",
			body:    `[{"artist":`,
			userID:  "alice",
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			items, err := writeCatalog(t, tt.body).ListOwnedItems(context.Background(), tt.userID)
			if (err != nil) != tt.wantErr {
				t.Fatalf("ListOwnedItems() error = %v, wantErr %v", err, tt.wantErr)
			}
			if errors.Is(err, ErrUnknownUser) != tt.unknown {
				t.Errorf("errors.Is(%v, ErrUnknownUser) = %v, want %v", err, !tt.unknown, tt.unknown)
			}
			if len(items) != tt.wantItems {
				t.Errorf("ListOwnedItems() = %d items, want %d", len(items), tt.wantItems)
			}
		})
	}
}

func TestFileCatalog_FeedsEngine(t *testing.T) {
	s := setupTestStore(t)
	e := newTestEngine(t, s, progProvider())
	catalog := writeCatalog(t, `{"alice":[
		{"artist":"Pink Floyd","title":"Wish You Were Here","year":1975,"genres":["progressive rock"],"label":"Harvest","country":"GB"},
		{"artist":"Pink Floyd","title":"Animals","year":1977,"genres":["progressive rock","rock"],"label":"Harvest","country":"GB"}
	]}`)

	res := e.GenerateForUser(context.Background(), catalog, "alice", Options{})
	if !res.Success {
		t.Fatalf("GenerateForUser() failed: %s %s", res.Reason, res.Error)
	}
	if res.Profile == nil || res.Profile.TotalItems != 2 {
		t.Errorf("Profile = %+v, want 2 items", res.Profile)
	}
	if _, g := findResult(res.Lists, "genesis::"); g == nil {
		t.Error("Genesis not recommended from catalog items")
	}
}
