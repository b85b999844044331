// Cratedigger - Record Collection Tracker
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/cratedigger

package recommend

import (
	"bytes"
	"context"
	"fmt"
	"os"

	"github.com/goccy/go-json"
)

// FileCatalog serves owned items from a JSON file. The file holds either a
// bare array of items, used for every user, or an object mapping user IDs
// to item arrays.
type FileCatalog struct {
	path string
}

// NewFileCatalog creates a catalog reading path on every call.
func NewFileCatalog(path string) *FileCatalog {
	return &FileCatalog{path: path}
}

// ListOwnedItems returns the items of userID.
func (c *FileCatalog) ListOwnedItems(ctx context.Context, userID string) ([]OwnedItem, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	data, err := os.ReadFile(c.path)
	if err != nil {
		return nil, fmt.Errorf("read catalog: %w", err)
	}

	data = bytes.TrimSpace(data)
	if len(data) > 0 && data[0] == '[' {
		var items []OwnedItem
		if err := json.Unmarshal(data, &items); err != nil {
			return nil, fmt.Errorf("parse catalog %s: %w", c.path, err)
		}
		return items, nil
	}

	var byUser map[string][]OwnedItem
	if err := json.Unmarshal(data, &byUser); err != nil {
		return nil, fmt.Errorf("parse catalog %s: %w", c.path, err)
	}
	items, ok := byUser[userID]
	if !ok {
		return nil, fmt.Errorf("user %q not in catalog %s: %w", userID, c.path, ErrUnknownUser)
	}
	return items, nil
}
