// Retail CMS - Digital Signage Content Management Gateway
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/retailcms

package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/tomtom215/retailcms/internal/api/respond"
	"github.com/tomtom215/retailcms/internal/auth"
	"github.com/tomtom215/retailcms/internal/authz"
	"github.com/tomtom215/retailcms/internal/middleware"
	"github.com/tomtom215/retailcms/internal/upload"
)

// Deps are the components the router wires together.
type Deps struct {
	Sessions *auth.Manager
	Auth     *auth.Handlers
	Authz    *authz.Middleware // nil disables role checks
	Proxy    *Proxy
	Uploads  *upload.Proxy
	Health   *Health

	Middleware *ChiMiddlewareConfig
	StaticDir  string // empty disables the frontend mount
}

// Router sets up HTTP routes using Chi router.
type Router struct {
	deps          Deps
	chiMiddleware *ChiMiddleware
}

// NewRouter creates a router from its dependencies.
func NewRouter(deps Deps) *Router {
	return &Router{
		deps:          deps,
		chiMiddleware: NewChiMiddleware(deps.Middleware),
	}
}

// SetupChi configures all routes and returns the root handler.
func (router *Router) SetupChi() http.Handler {
	r := chi.NewRouter()

	// Global middleware, applied in order.
	r.Use(middleware.RequestID)
	r.Use(router.chiMiddleware.ClientIP())
	r.Use(middleware.AccessLog)
	r.Use(chimiddleware.Recoverer)
	r.Use(router.chiMiddleware.CORS()) // global so OPTIONS preflight is answered
	r.Use(middleware.SecurityHeaders)

	r.Route("/api/health", func(r chi.Router) {
		r.Use(router.chiMiddleware.RateLimitHealth())
		r.Get("/live", router.deps.Health.Live)
		r.Get("/ready", router.deps.Health.Ready)
	})

	r.Route("/api", func(r chi.Router) {
		r.Use(apiNoStore)
		r.Use(middleware.PrometheusMetrics)

		r.Route("/auth", func(r chi.Router) {
			r.Use(router.chiMiddleware.RateLimit())
			r.With(router.chiMiddleware.RateLimitLogin()).Post("/login", router.deps.Auth.Login)
			r.Post("/logout", router.deps.Auth.Logout)
			r.With(router.deps.Sessions.RequireSession).Get("/session", router.deps.Auth.Session)
		})

		// Uploads stream large bodies; compression and the general limit stay off.
		r.Route("/uploads", func(r chi.Router) {
			r.Use(router.deps.Sessions.RequireSession)
			if router.deps.Authz != nil {
				r.Use(router.deps.Authz.Authorize)
			}
			router.deps.Uploads.Routes(r)
		})

		r.Group(func(r chi.Router) {
			r.Use(router.chiMiddleware.RateLimit())
			r.Use(chimiddleware.Compress(5, "application/json"))
			r.Use(router.deps.Sessions.RequireSession)
			if router.deps.Authz != nil {
				r.Use(router.deps.Authz.Authorize)
			}
			router.deps.Proxy.Routes(r)
		})

		r.NotFound(func(w http.ResponseWriter, r *http.Request) {
			respond.Error(w, r, http.StatusNotFound, respond.CodeNotFound, "Route not found", nil)
		})
		r.MethodNotAllowed(func(w http.ResponseWriter, r *http.Request) {
			respond.Error(w, r, http.StatusMethodNotAllowed, respond.CodeBadRequest, "Method not allowed", nil)
		})
	})

	r.Handle("/metrics", promhttp.Handler())

	if router.deps.StaticDir != "" {
		static := newStaticHandler(router.deps.StaticDir)
		r.Get("/*", static.ServeHTTP)
		r.Head("/*", static.ServeHTTP)
	}

	return r
}

// apiNoStore keeps API responses out of shared caches.
func apiNoStore(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Cache-Control", "no-store")
		next.ServeHTTP(w, r)
	})
}
