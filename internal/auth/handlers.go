// Retail CMS - Digital Signage Content Management Gateway
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/retailcms

package auth

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/tomtom215/retailcms/internal/api/respond"
	"github.com/tomtom215/retailcms/internal/backend"
	"github.com/tomtom215/retailcms/internal/logging"
	"github.com/tomtom215/retailcms/internal/metrics"
	"github.com/tomtom215/retailcms/internal/models"
)

// Authenticator checks credentials against the backend.
// *backend.Client implements it.
type Authenticator interface {
	Login(ctx context.Context, email, password string) (*models.TokenSet, error)
}

// SessionView is what the session endpoints return to the browser. Backend
// tokens never leave the gateway.
type SessionView struct {
	User            models.User `json:"user"`
	ExpiresAt       time.Time   `json:"expires_at"`
	AccessExpiresAt time.Time   `json:"access_expires_at"`
}

func newSessionView(s *Session) *SessionView {
	return &SessionView{
		User:            s.User,
		ExpiresAt:       s.ExpiresAt.UTC(),
		AccessExpiresAt: s.AccessExpiresAt.UTC(),
	}
}

// Handlers serves /api/auth/*.
type Handlers struct {
	manager  *Manager
	authn    Authenticator
	security *logging.SecurityLogger
}

// NewHandlers creates the auth route handlers.
func NewHandlers(manager *Manager, authn Authenticator) *Handlers {
	return &Handlers{
		manager:  manager,
		authn:    authn,
		security: logging.NewSecurityLogger(),
	}
}

// Login handles POST /api/auth/login.
func (h *Handlers) Login(w http.ResponseWriter, r *http.Request) {
	var req models.LoginRequest
	if !respond.DecodeJSON(w, r, &req) {
		metrics.RecordLogin("invalid_request")
		return
	}
	email := strings.TrimSpace(req.Email)
	ip, ua := r.RemoteAddr, r.UserAgent()

	tokens, err := h.authn.Login(r.Context(), email, req.Password)
	if err != nil {
		switch {
		case errors.Is(err, backend.ErrInvalidCredentials):
			metrics.RecordLogin("failure")
			h.security.LogLoginFailure(email, ip, ua, "invalid credentials")
			respond.Error(w, r, http.StatusUnauthorized, respond.CodeInvalidCredentials, "Invalid email or password", nil)
		default:
			metrics.RecordLogin("error")
			h.security.LogLoginFailure(email, ip, ua, err.Error())
			respond.BackendError(w, r, err)
		}
		return
	}

	user := models.User{Email: email}
	if tokens.User != nil {
		user = *tokens.User
		if user.Email == "" {
			user.Email = email
		}
	}

	s, err := h.manager.Issue(w, r, user, tokens)
	if err != nil {
		metrics.RecordLogin("error")
		respond.Error(w, r, http.StatusInternalServerError, respond.CodeInternal, "Failed to create session", err)
		return
	}

	metrics.RecordLogin("success")
	h.security.LogLoginSuccess(user.ID.String(), user.Email, user.Role, s.ID, ip, ua)
	respond.JSON(w, r, http.StatusOK, newSessionView(s))
}

// Logout handles POST /api/auth/logout. It succeeds without a session so the
// browser can always clear a stale cookie.
func (h *Handlers) Logout(w http.ResponseWriter, r *http.Request) {
	s, err := h.manager.Load(r)
	if s != nil && (err == nil || errors.Is(err, ErrSessionExpired)) {
		if rerr := h.manager.Revoke(r.Context(), s); rerr != nil {
			logging.Ctx(r.Context()).Error().Err(rerr).Msg("Failed to revoke session on logout")
		} else {
			h.security.LogLogout(s.User.ID.String(), s.ID, r.RemoteAddr)
		}
	}

	h.manager.Clear(w, r)
	respond.JSON(w, r, http.StatusOK, map[string]bool{"signed_out": true})
}

// Session handles GET /api/auth/session behind RequireSession.
func (h *Handlers) Session(w http.ResponseWriter, r *http.Request) {
	s, ok := SessionFromContext(r.Context())
	if !ok {
		respond.Error(w, r, http.StatusUnauthorized, respond.CodeUnauthorized, "Authentication required", nil)
		return
	}
	respond.JSON(w, r, http.StatusOK, newSessionView(s))
}
