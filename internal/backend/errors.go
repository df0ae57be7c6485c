// Retail CMS - Digital Signage Content Management Gateway
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/retailcms

package backend

import (
	"errors"
	"fmt"
	"net/http"
)

var (
	// ErrBackendUnavailable means no response was received.
	ErrBackendUnavailable = errors.New("backend unavailable")

	// ErrCircuitOpen means the breaker rejected the call without trying.
	ErrCircuitOpen = errors.New("backend circuit open")

	// ErrInvalidCredentials is returned by Login for a 400, 401, 403 or 422.
	ErrInvalidCredentials = errors.New("invalid credentials")

	// ErrMalformedResponse means a 2xx body could not be decoded.
	ErrMalformedResponse = errors.New("malformed backend response")
)

// Error is a non-2xx answer from one of the fixed endpoints.
type Error struct {
	Op         string
	StatusCode int
	Header     http.Header
	Body       []byte
}

func (e *Error) Error() string {
	return fmt.Sprintf("backend %s: status %d", e.Op, e.StatusCode)
}

// Unauthorized reports whether the backend rejected the credentials or token.
func (e *Error) Unauthorized() bool {
	return e.StatusCode == http.StatusUnauthorized || e.StatusCode == http.StatusForbidden
}
