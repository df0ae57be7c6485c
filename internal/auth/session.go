// Retail CMS - Digital Signage Content Management Gateway
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/retailcms

package auth

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"github.com/tomtom215/retailcms/internal/config"
	"github.com/tomtom215/retailcms/internal/logging"
	"github.com/tomtom215/retailcms/internal/metrics"
	"github.com/tomtom215/retailcms/internal/models"
)

// RefreshAccessTokenError marks a session whose access token could not be
// refreshed. Such a session is not usable.
const RefreshAccessTokenError = "RefreshAccessTokenError"

const sessionIssuer = "retailcms"

// Session errors
var (
	// ErrNoSession means the request carries no session cookie.
	ErrNoSession = errors.New("no session")

	// ErrInvalidSession means the cookie failed signature, format or expiry checks.
	ErrInvalidSession = errors.New("invalid session")

	// ErrSessionRevoked means the session was logged out.
	ErrSessionRevoked = errors.New("session revoked")

	// ErrSessionExpired means the access token could not be refreshed.
	ErrSessionExpired = errors.New("session expired")

	// ErrSessionTooLarge means the signed session does not fit the cookie chunks.
	ErrSessionTooLarge = errors.New("session too large for cookie")
)

// Refresher exchanges a refresh token for a new token set.
// *backend.Client implements it.
type Refresher interface {
	Refresh(ctx context.Context, refreshToken string) (*models.TokenSet, error)
}

// SessionClaims are the claims of the session JWT. Backend tokens are stored
// encrypted.
type SessionClaims struct {
	User            models.User      `json:"user"`
	AccessToken     string           `json:"at"`
	RefreshToken    string           `json:"rt,omitempty"`
	AccessExpiresAt *jwt.NumericDate `json:"aexp"`
	Error           string           `json:"err,omitempty"`
	jwt.RegisteredClaims
}

// Session is a decoded session cookie.
type Session struct {
	ID              string
	User            models.User
	AccessToken     string
	RefreshToken    string
	AccessExpiresAt time.Time
	IssuedAt        time.Time
	ExpiresAt       time.Time

	// Error is RefreshAccessTokenError after a failed refresh.
	Error string
}

// NeedsRefresh reports whether the access token expires within leeway of now.
func (s *Session) NeedsRefresh(now time.Time, leeway time.Duration) bool {
	return !now.Before(s.AccessExpiresAt.Add(-leeway))
}

// Manager issues, reads, refreshes and revokes session cookies.
type Manager struct {
	secret    []byte
	encryptor *TokenEncryptor
	refresher Refresher
	denylist  Denylist
	security  *logging.SecurityLogger
	jar       cookieJar
	maxAge    time.Duration
	leeway    time.Duration
	now       func() time.Time
}

// NewManager creates a Manager from the security configuration.
func NewManager(cfg *config.SecurityConfig, refresher Refresher, denylist Denylist) (*Manager, error) {
	if cfg.SessionSecret == "" {
		return nil, fmt.Errorf("session secret is required")
	}
	if refresher == nil {
		return nil, fmt.Errorf("refresher is required")
	}
	if denylist == nil {
		return nil, fmt.Errorf("denylist is required")
	}

	encryptor, err := NewTokenEncryptor(cfg.EncryptionKey())
	if err != nil {
		return nil, fmt.Errorf("token encryption: %w", err)
	}

	return &Manager{
		secret:    []byte(cfg.SessionSecret),
		encryptor: encryptor,
		refresher: refresher,
		denylist:  denylist,
		security:  logging.NewSecurityLogger(),
		jar: cookieJar{
			name:   cfg.CookieName,
			domain: cfg.CookieDomain,
			secure: cfg.CookieSecure,
		},
		maxAge: cfg.SessionMaxAge,
		leeway: cfg.RefreshLeeway,
		now:    time.Now,
	}, nil
}

// Issue starts a new session for user and writes the cookie.
func (m *Manager) Issue(w http.ResponseWriter, r *http.Request, user models.User, tokens *models.TokenSet) (*Session, error) {
	now := m.now()
	s := &Session{
		ID:              uuid.NewString(),
		User:            user,
		AccessToken:     tokens.AccessToken,
		RefreshToken:    tokens.RefreshToken,
		AccessExpiresAt: tokens.AccessExpiry(now),
		IssuedAt:        now,
		ExpiresAt:       now.Add(m.maxAge),
	}
	if err := m.write(w, r, s); err != nil {
		return nil, err
	}
	return s, nil
}

func (m *Manager) write(w http.ResponseWriter, r *http.Request, s *Session) error {
	value, err := m.sign(s)
	if err != nil {
		return err
	}
	return m.jar.write(w, r, value, s.IssuedAt, s.ExpiresAt)
}

func (m *Manager) sign(s *Session) (string, error) {
	at, err := m.encryptor.Encrypt(s.AccessToken)
	if err != nil {
		return "", fmt.Errorf("encrypt access token: %w", err)
	}
	rt, err := m.encryptor.Encrypt(s.RefreshToken)
	if err != nil {
		return "", fmt.Errorf("encrypt refresh token: %w", err)
	}

	claims := SessionClaims{
		User:            s.User,
		AccessToken:     at,
		RefreshToken:    rt,
		AccessExpiresAt: jwt.NewNumericDate(s.AccessExpiresAt),
		Error:           s.Error,
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        s.ID,
			Issuer:    sessionIssuer,
			Subject:   s.User.ID.String(),
			IssuedAt:  jwt.NewNumericDate(s.IssuedAt),
			ExpiresAt: jwt.NewNumericDate(s.ExpiresAt),
		},
	}

	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(m.secret)
	if err != nil {
		return "", fmt.Errorf("sign session token: %w", err)
	}
	return signed, nil
}

// Load decodes the session cookie of r without refreshing it.
func (m *Manager) Load(r *http.Request) (*Session, error) {
	raw := m.jar.read(r)
	if raw == "" {
		return nil, ErrNoSession
	}

	claims := &SessionClaims{}
	_, err := jwt.ParseWithClaims(raw, claims, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
		}
		return m.secret, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuer(sessionIssuer),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(m.now),
	)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidSession, err)
	}
	if claims.ID == "" || claims.AccessExpiresAt == nil {
		return nil, fmt.Errorf("%w: missing claims", ErrInvalidSession)
	}

	revoked, err := m.denylist.IsRevoked(r.Context(), claims.ID)
	if err != nil {
		return nil, fmt.Errorf("check session denylist: %w", err)
	}
	if revoked {
		m.security.LogSessionRevoked(claims.User.ID.String(), claims.ID, r.RemoteAddr)
		return nil, ErrSessionRevoked
	}

	at, err := m.encryptor.Decrypt(claims.AccessToken)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidSession, err)
	}
	rt, err := m.encryptor.Decrypt(claims.RefreshToken)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidSession, err)
	}

	s := &Session{
		ID:              claims.ID,
		User:            claims.User,
		AccessToken:     at,
		RefreshToken:    rt,
		AccessExpiresAt: claims.AccessExpiresAt.Time,
		ExpiresAt:       claims.ExpiresAt.Time,
		Error:           claims.Error,
	}
	if claims.IssuedAt != nil {
		s.IssuedAt = claims.IssuedAt.Time
	}
	if s.Error != "" {
		return s, ErrSessionExpired
	}
	return s, nil
}

// Resolve loads the session and refreshes the access token when it is due.
// A refreshed session is written back to w with a new ID. When the refresh
// fails the cookie is cleared and the returned session carries
// RefreshAccessTokenError together with ErrSessionExpired.
func (m *Manager) Resolve(w http.ResponseWriter, r *http.Request) (*Session, error) {
	s, err := m.Load(r)
	if err != nil {
		if errors.Is(err, ErrSessionExpired) {
			m.Clear(w, r)
		}
		return s, err
	}
	if !s.NeedsRefresh(m.now(), m.leeway) {
		return s, nil
	}
	return m.refresh(w, r, s)
}

func (m *Manager) refresh(w http.ResponseWriter, r *http.Request, s *Session) (*Session, error) {
	log := logging.Ctx(r.Context())
	userID := s.User.ID.String()

	fail := func(reason string, cause error) (*Session, error) {
		metrics.RecordTokenRefresh(false)
		m.security.LogTokenRefresh(userID, s.ID, false, reason)
		log.Warn().Err(cause).Str("session_id", logging.SanitizeSessionID(s.ID)).Msg("Access token refresh failed")

		s.Error = RefreshAccessTokenError
		m.Clear(w, r)
		return s, fmt.Errorf("%w: %w", ErrSessionExpired, cause)
	}

	if s.RefreshToken == "" {
		return fail("no refresh token", errors.New("session has no refresh token"))
	}

	tokens, err := m.refresher.Refresh(r.Context(), s.RefreshToken)
	if err != nil {
		return fail(err.Error(), err)
	}

	now := m.now()
	next := &Session{
		ID:              uuid.NewString(),
		User:            s.User,
		AccessToken:     tokens.AccessToken,
		RefreshToken:    tokens.RefreshToken,
		AccessExpiresAt: tokens.AccessExpiry(now),
		IssuedAt:        now,
		ExpiresAt:       now.Add(m.maxAge),
	}
	if next.RefreshToken == "" {
		next.RefreshToken = s.RefreshToken
	}
	if tokens.User != nil {
		next.User = *tokens.User
		if next.User.Role == "" {
			next.User.Role = s.User.Role
		}
	}

	if err := m.write(w, r, next); err != nil {
		return fail("reissue failed", err)
	}

	metrics.RecordTokenRefresh(true)
	m.security.LogTokenRefresh(userID, next.ID, true, "")
	log.Debug().
		Str("session_id", logging.SanitizeSessionID(next.ID)).
		Time("access_expires_at", next.AccessExpiresAt).
		Msg("Access token refreshed")
	return next, nil
}

// Revoke denylists the session until it would have expired.
func (m *Manager) Revoke(ctx context.Context, s *Session) error {
	if err := m.denylist.Revoke(ctx, s.ID, s.ExpiresAt); err != nil {
		return fmt.Errorf("revoke session: %w", err)
	}
	if n, err := m.denylist.Size(ctx); err == nil {
		metrics.SetRevokedSessions(n)
	}
	return nil
}

// Clear expires the session cookie.
func (m *Manager) Clear(w http.ResponseWriter, r *http.Request) {
	m.jar.clear(w, r)
}

// Denylist returns the revocation store.
func (m *Manager) Denylist() Denylist {
	return m.denylist
}

type sessionContextKey struct{}

// ContextWithSession stores s in ctx.
func ContextWithSession(ctx context.Context, s *Session) context.Context {
	return context.WithValue(ctx, sessionContextKey{}, s)
}

// SessionFromContext returns the session stored by RequireSession.
func SessionFromContext(ctx context.Context) (*Session, bool) {
	s, ok := ctx.Value(sessionContextKey{}).(*Session)
	return s, ok && s != nil
}
