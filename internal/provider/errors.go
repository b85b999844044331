// Cratedigger - Record Collection Tracker
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/cratedigger

package provider

import (
	"errors"
	"fmt"
)

// ProviderError describes a failed provider call: transport failure,
// non-2xx status, malformed payload or an error reported by the service.
//
//nolint:revive // ProviderError reads better at call sites than provider.Error
type ProviderError struct {
	Provider   string
	Method     string
	StatusCode int // 0 when no HTTP response was received
	Retryable  bool
	Err        error
}

func (e *ProviderError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("%s %s: status %d: %v", e.Provider, e.Method, e.StatusCode, e.Err)
	}
	return fmt.Sprintf("%s %s: %v", e.Provider, e.Method, e.Err)
}

func (e *ProviderError) Unwrap() error {
	return e.Err
}

// newProviderError wraps err. Transport failures, non-2xx statuses,
// malformed payloads and service-reported errors are retryable within the
// caller's budget; ErrNotFound and ErrUnsupported are answers, not
// failures, and are not.
func newProviderError(provider, method string, status int, err error) *ProviderError {
	retryable := !errors.Is(err, ErrNotFound) && !errors.Is(err, ErrUnsupported)
	return &ProviderError{
		Provider:   provider,
		Method:     method,
		StatusCode: status,
		Retryable:  retryable,
		Err:        err,
	}
}

// IsRetryable reports whether err is a ProviderError worth retrying.
func IsRetryable(err error) bool {
	var pe *ProviderError
	if errors.As(err, &pe) {
		return pe.Retryable
	}
	return false
}
