// Retail CMS - Digital Signage Content Management Gateway
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/retailcms

/*
Package api wires the gateway's HTTP surface on a Chi router.

Route layout:

	/api/health/live, /api/health/ready   health checks, no session
	/api/auth/login|logout|session        session handling (package auth)
	/api/assets, /api/devices,
	/api/playlists, /api/playlist-groups  backend resources, session + role checks
	/api/uploads                          tus proxy (package upload)
	/metrics                              Prometheus
	/*                                    prebuilt frontend with index.html fallback

Resource routes decode and validate write bodies before forwarding them to
the backend with the session's access token. Backend answers are relayed
with their status and body; only transport failures and an open circuit
produce gateway errors (502 and 503).
*/
package api
