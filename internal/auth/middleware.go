// Retail CMS - Digital Signage Content Management Gateway
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/retailcms

package auth

import (
	"errors"
	"net/http"

	"github.com/tomtom215/retailcms/internal/api/respond"
	"github.com/tomtom215/retailcms/internal/logging"
)

// RequireSession resolves the session (refreshing it when due) and stores it
// in the request context. Requests without a usable session get 401.
func (m *Manager) RequireSession(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		s, err := m.Resolve(w, r)
		if err != nil {
			m.reject(w, r, err)
			return
		}

		ctx := ContextWithSession(r.Context(), s)
		ctx = logging.ContextWithLogger(ctx, logging.CtxWith(ctx).
			Str("user_id", logging.SanitizeUserID(s.User.ID.String())).
			Logger())
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func (m *Manager) reject(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, ErrNoSession):
		respond.Error(w, r, http.StatusUnauthorized, respond.CodeUnauthorized, "Authentication required", nil)
	case errors.Is(err, ErrSessionExpired):
		respond.Error(w, r, http.StatusUnauthorized, respond.CodeSessionExpired, "Session expired, please sign in again", nil)
	case errors.Is(err, ErrInvalidSession), errors.Is(err, ErrSessionRevoked):
		logging.Ctx(r.Context()).Debug().Err(err).Msg("Rejected session cookie")
		m.Clear(w, r)
		respond.Error(w, r, http.StatusUnauthorized, respond.CodeUnauthorized, "Authentication required", nil)
	default:
		respond.Error(w, r, http.StatusInternalServerError, respond.CodeInternal, "Session lookup failed", err)
	}
}
