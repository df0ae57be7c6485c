// Retail CMS - Digital Signage Content Management Gateway
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/retailcms

package respond

import (
	"context"
	"errors"
	"net/http"

	"github.com/tomtom215/retailcms/internal/backend"
	"github.com/tomtom215/retailcms/internal/logging"
)

// BackendError maps a failed backend call to a gateway response. An open
// circuit is 503 with Retry-After; any other failure is a generic 502 so
// upstream addresses and transport details never reach the browser.
func BackendError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, context.Canceled):
		logging.Ctx(r.Context()).Debug().Msg("Client went away before backend answered")
	case errors.Is(err, backend.ErrCircuitOpen):
		w.Header().Set("Retry-After", "30")
		Error(w, r, http.StatusServiceUnavailable, CodeUnavailable, "Backend temporarily unavailable", err)
	default:
		Error(w, r, http.StatusBadGateway, CodeBadGateway, "Backend request failed", err)
	}
}
