// Retail CMS - Digital Signage Content Management Gateway
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/retailcms

/*
Package auth implements the gateway session.

The gateway never checks passwords itself. Credentials are posted to the
backend login endpoint and the returned token set is kept in a session token
stored in an HttpOnly cookie:

	browser --cookie--> gateway --Bearer access token--> backend

# Session Token

The cookie value is an HS256 JWT signed with security.session_secret. Its
claims carry the user, the backend access and refresh tokens (AES-GCM
encrypted with an HKDF-derived key), the access token expiry, a jti and the
session expiry. Nothing is stored server side for a live session.

# Refresh

Every read of the session through Manager.Resolve compares the access token
expiry against now plus security.refresh_leeway. When it is due, the backend
refresh endpoint is called and a new cookie (new jti) is written. Concurrent
requests may each refresh; the backend sees duplicate refresh calls and the
last cookie written wins. A failed refresh clears the cookie and the request
is answered with 401 SESSION_EXPIRED.

# Logout

Logout adds the session jti to a Denylist until the token would have expired.
The denylist is in memory by default or kept in BadgerDB when
security.session_store is "badger", so revocations survive a restart.
*/
package auth
