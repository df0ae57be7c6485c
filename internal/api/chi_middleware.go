// Retail CMS - Digital Signage Content Management Gateway
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/retailcms

package api

import (
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/cors"
	"github.com/go-chi/httprate"

	"github.com/tomtom215/retailcms/internal/api/respond"
	"github.com/tomtom215/retailcms/internal/config"
	"github.com/tomtom215/retailcms/internal/metrics"
	"github.com/tomtom215/retailcms/internal/middleware"
)

// ChiMiddlewareConfig holds configuration for Chi middleware factories.
type ChiMiddlewareConfig struct {
	// CORS configuration
	CORSAllowedOrigins   []string
	CORSAllowedMethods   []string
	CORSAllowedHeaders   []string
	CORSExposedHeaders   []string
	CORSAllowCredentials bool
	CORSMaxAge           int // seconds

	// Rate limiting configuration
	RateLimitRequests  int
	RateLimitWindow    time.Duration
	LoginLimitRequests int
	LoginLimitWindow   time.Duration
	RateLimitDisabled  bool

	// TrustedProxies may set the client address through forwarding headers.
	TrustedProxies []string
}

// tusExposedHeaders must be readable by a cross-origin tus client.
var tusExposedHeaders = []string{
	"Location",
	"Upload-Offset",
	"Upload-Length",
	"Upload-Metadata",
	"Upload-Expires",
	"Upload-Defer-Length",
	"Upload-Concat",
	"Tus-Resumable",
	"Tus-Version",
	"Tus-Extension",
	"Tus-Max-Size",
	"X-Request-ID",
}

// DefaultChiMiddlewareConfig returns a secure default configuration.
// CORS origins default to empty, requiring explicit configuration.
func DefaultChiMiddlewareConfig() *ChiMiddlewareConfig {
	return &ChiMiddlewareConfig{
		CORSAllowedOrigins: []string{},
		CORSAllowedMethods: []string{"GET", "HEAD", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		CORSAllowedHeaders: []string{
			"Content-Type", "X-Request-ID", "X-HTTP-Method-Override",
			"Tus-Resumable", "Upload-Length", "Upload-Defer-Length", "Upload-Metadata",
			"Upload-Concat", "Upload-Offset", "Upload-Checksum",
		},
		CORSExposedHeaders: tusExposedHeaders,
		// The session travels in a cookie.
		CORSAllowCredentials: true,
		CORSMaxAge:           86400,

		RateLimitRequests:  100,
		RateLimitWindow:    time.Minute,
		LoginLimitRequests: 5,
		LoginLimitWindow:   5 * time.Minute,
	}
}

// ChiMiddlewareConfigFromSecurity bridges the security configuration.
func ChiMiddlewareConfigFromSecurity(sec *config.SecurityConfig) *ChiMiddlewareConfig {
	c := DefaultChiMiddlewareConfig()
	c.CORSAllowedOrigins = append([]string(nil), sec.CORSOrigins...)
	c.RateLimitDisabled = sec.RateLimitDisabled
	if sec.RateLimitReqs > 0 {
		c.RateLimitRequests = sec.RateLimitReqs
	}
	if sec.RateLimitWindow > 0 {
		c.RateLimitWindow = sec.RateLimitWindow
	}
	if sec.LoginRateLimitReqs > 0 {
		c.LoginLimitRequests = sec.LoginRateLimitReqs
	}
	if sec.LoginRateLimitWindow > 0 {
		c.LoginLimitWindow = sec.LoginRateLimitWindow
	}
	c.TrustedProxies = append([]string(nil), sec.TrustedProxies...)
	return c
}

// ChiMiddleware provides Chi-compatible middleware factories. Each limiter
// is built once, so every route group using it shares one budget.
type ChiMiddleware struct {
	config   *ChiMiddlewareConfig
	cors     func(http.Handler) http.Handler
	clientIP *middleware.ClientIP
	api      func(http.Handler) http.Handler
	login    func(http.Handler) http.Handler
	health   func(http.Handler) http.Handler
}

// NewChiMiddleware creates a new Chi middleware factory with the given configuration.
func NewChiMiddleware(config *ChiMiddlewareConfig) *ChiMiddleware {
	if config == nil {
		config = DefaultChiMiddlewareConfig()
	}

	corsHandler := cors.Handler(cors.Options{
		AllowedOrigins:   config.CORSAllowedOrigins,
		AllowedMethods:   config.CORSAllowedMethods,
		AllowedHeaders:   config.CORSAllowedHeaders,
		ExposedHeaders:   config.CORSExposedHeaders,
		AllowCredentials: config.CORSAllowCredentials,
		MaxAge:           config.CORSMaxAge,
	})

	m := &ChiMiddleware{
		config:   config,
		cors:     corsHandler,
		clientIP: middleware.NewClientIP(config.TrustedProxies),
	}
	m.api = m.limit("api", config.RateLimitRequests, config.RateLimitWindow)
	m.login = m.limit("login", config.LoginLimitRequests, config.LoginLimitWindow)
	m.health = m.limit("health", 1000, time.Minute)
	return m
}

// CORS returns the go-chi/cors handler.
func (m *ChiMiddleware) CORS() func(http.Handler) http.Handler {
	return m.cors
}

// ClientIP resolves the client address from trusted proxies only. It must
// run before any rate limiter.
func (m *ChiMiddleware) ClientIP() func(http.Handler) http.Handler {
	return m.clientIP.Handler
}

// RateLimit is the general API limit, keyed by client IP.
func (m *ChiMiddleware) RateLimit() func(http.Handler) http.Handler {
	return m.api
}

// RateLimitLogin is the strict limit for credential submission.
func (m *ChiMiddleware) RateLimitLogin() func(http.Handler) http.Handler {
	return m.login
}

// RateLimitHealth is permissive so monitoring can poll freely.
func (m *ChiMiddleware) RateLimitHealth() func(http.Handler) http.Handler {
	return m.health
}

func (m *ChiMiddleware) limit(name string, requests int, window time.Duration) func(http.Handler) http.Handler {
	if m.config.RateLimitDisabled || requests <= 0 {
		return func(next http.Handler) http.Handler {
			return next
		}
	}

	return httprate.Limit(
		requests,
		window,
		httprate.WithKeyFuncs(httprate.KeyByIP),
		httprate.WithLimitHandler(func(w http.ResponseWriter, r *http.Request) {
			metrics.RecordRateLimitHit(name)
			if w.Header().Get("Retry-After") == "" {
				w.Header().Set("Retry-After", strconv.Itoa(int(window.Seconds())))
			}
			respond.Error(w, r, http.StatusTooManyRequests, respond.CodeTooManyRequests,
				"Too many requests, try again later", nil)
		}),
	)
}
