// Retail CMS - Digital Signage Content Management Gateway
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/retailcms

/*
Package backend is the HTTP client for the CMS backend REST service.

The backend owns assets, devices, playlists, playlist groups and user
accounts. The gateway reaches it in two ways:

  - Do forwards an arbitrary request with the session's bearer token and
    returns status, headers and body untouched, for the /api proxy routes.
  - Login, Refresh and Ping call the fixed auth and health endpoints and
    decode their responses.

Every call passes through a circuit breaker (sony/gobreaker). Only transport
errors and 5xx responses count as failures; a backend that answers 404 or 422
is healthy. While the circuit is open calls fail fast with ErrCircuitOpen.

Error mapping for callers:

	ErrCircuitOpen         -> 503
	ErrBackendUnavailable  -> 502 with a generic message
	ErrInvalidCredentials  -> 401 on login
	*Error                 -> relay StatusCode and Body
*/
package backend
