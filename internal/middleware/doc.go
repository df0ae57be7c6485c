// Retail CMS - Digital Signage Content Management Gateway
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/retailcms

/*
Package middleware holds the chi-compatible HTTP middleware shared by every
route of the gateway.

  - RequestID: accepts or generates X-Request-ID and seeds the logging context
  - AccessLog: one structured log line per request
  - PrometheusMetrics: request counters and latency keyed by chi route pattern
  - SecurityHeaders: nosniff, frame denial, referrer policy and HSTS over TLS
  - ClientIP: honours X-Forwarded-For only from configured trusted proxies

Typical order, outermost first:

	r.Use(middleware.RequestID)
	r.Use(middleware.NewClientIP(cfg.Security.TrustedProxies).Handler)
	r.Use(middleware.AccessLog)
	r.Use(chimiddleware.Recoverer)
	r.Use(middleware.PrometheusMetrics)
	r.Use(middleware.SecurityHeaders)

Authentication and authorization middleware live in the auth and authz
packages.
*/
package middleware
