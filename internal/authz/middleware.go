// Retail CMS - Digital Signage Content Management Gateway
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/retailcms

package authz

import (
	"net/http"
	"strings"

	"github.com/tomtom215/retailcms/internal/api/respond"
	"github.com/tomtom215/retailcms/internal/auth"
	"github.com/tomtom215/retailcms/internal/logging"
	"github.com/tomtom215/retailcms/internal/metrics"
)

// Middleware enforces the policy for requests that passed RequireSession.
type Middleware struct {
	enforcer *Enforcer
	security *logging.SecurityLogger
}

// NewMiddleware creates a new authorization middleware.
func NewMiddleware(enforcer *Enforcer) *Middleware {
	return &Middleware{
		enforcer: enforcer,
		security: logging.NewSecurityLogger(),
	}
}

// Authorize derives the action from the request method (honouring
// X-HTTP-Method-Override) and checks it against the request path.
func (m *Middleware) Authorize(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		s, ok := auth.SessionFromContext(r.Context())
		if !ok {
			respond.Error(w, r, http.StatusUnauthorized, respond.CodeUnauthorized, "Authentication required", nil)
			return
		}

		method := r.Method
		if override := r.Header.Get("X-HTTP-Method-Override"); override != "" && r.Method == http.MethodPost {
			method = strings.ToUpper(override)
		}

		allowed, err := m.enforcer.Enforce(s.User.Role, r.URL.Path, MethodAction(method))
		if err != nil {
			metrics.RecordAuthzDecision("error")
			respond.Error(w, r, http.StatusInternalServerError, respond.CodeInternal, "Authorization check failed", err)
			return
		}
		if !allowed {
			metrics.RecordAuthzDecision("denied")
			m.security.LogAccessDenied(s.User.ID.String(), m.enforcer.Role(s.User.Role), method, r.URL.Path)
			respond.Error(w, r, http.StatusForbidden, respond.CodeForbidden, "Insufficient permissions", nil)
			return
		}

		metrics.RecordAuthzDecision("allowed")
		next.ServeHTTP(w, r)
	})
}
