// Cratedigger - Record Collection Tracker
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/cratedigger

package api

import "github.com/tomtom215/cratedigger/internal/recommend"

// maxRequestBody bounds POSTed collections.
const maxRequestBody = 8 << 20

// UserRequest identifies the user of a /users/{userID} route.
type UserRequest struct {
	UserID string `validate:"required,max=128,printascii"`
}

// GenerateRequest is the body of POST /users/{userID}/recommendations.
type GenerateRequest struct {
	Items        []recommend.OwnedItem `json:"items" validate:"required,min=1,max=20000,dive"`
	ForceRefresh bool                  `json:"force_refresh"`
}
