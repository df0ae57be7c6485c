// Retail CMS - Digital Signage Content Management Gateway
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/retailcms

package auth

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/tomtom215/retailcms/internal/backend"
	"github.com/tomtom215/retailcms/internal/config"
	"github.com/tomtom215/retailcms/internal/models"
)

const testSecret = "test-session-secret-at-least-32-characters"

type fakeRefresher struct {
	tokens *models.TokenSet
	err    error
	calls  atomic.Int32
	lastRT atomic.Value
}

func (f *fakeRefresher) Refresh(_ context.Context, refreshToken string) (*models.TokenSet, error) {
	f.calls.Add(1)
	f.lastRT.Store(refreshToken)
	if f.err != nil {
		return nil, f.err
	}
	return f.tokens, nil
}

func testSecurityConfig() *config.SecurityConfig {
	return &config.SecurityConfig{
		SessionSecret: testSecret,
		CookieName:    "retailcms_session",
		CookieSecure:  true,
		SessionMaxAge: time.Hour,
		RefreshLeeway: 30 * time.Second,
		SessionStore:  StoreMemory,
	}
}

func newTestManager(t *testing.T, refresher Refresher) *Manager {
	t.Helper()
	if refresher == nil {
		refresher = &fakeRefresher{err: errors.New("refresh not expected")}
	}
	m, err := NewManager(testSecurityConfig(), refresher, NewMemoryDenylist())
	if err != nil {
		t.Fatalf("NewManager: %v", err)
	}
	return m
}

var testUser = models.User{ID: models.NewNumericID(42), Name: "Dana", Email: "dana@example.com", Role: "editor"}

// issueCookies runs Issue and returns a request carrying the resulting cookies.
func issueCookies(t *testing.T, m *Manager, tokens *models.TokenSet) (*http.Request, *Session) {
	t.Helper()
	rec := httptest.NewRecorder()
	s, err := m.Issue(rec, httptest.NewRequest(http.MethodPost, "/api/auth/login", nil), testUser, tokens)
	if err != nil {
		t.Fatalf("Issue: %v", err)
	}
	req := httptest.NewRequest(http.MethodGet, "/api/assets", nil)
	addLiveCookies(req, rec)
	return req, s
}

func addLiveCookies(req *http.Request, rec *httptest.ResponseRecorder) {
	for _, c := range rec.Result().Cookies() {
		if c.MaxAge >= 0 && c.Value != "" {
			req.AddCookie(c)
		}
	}
}

func TestNewManager_Validation(t *testing.T) {
	cfg := testSecurityConfig()
	cfg.SessionSecret = ""
	if _, err := NewManager(cfg, &fakeRefresher{}, NewMemoryDenylist()); err == nil {
		t.Error("expected error without a session secret")
	}
	if _, err := NewManager(testSecurityConfig(), nil, NewMemoryDenylist()); err == nil {
		t.Error("expected error without a refresher")
	}
	if _, err := NewManager(testSecurityConfig(), &fakeRefresher{}, nil); err == nil {
		t.Error("expected error without a denylist")
	}
}

func TestManager_IssueAndLoad(t *testing.T) {
	m := newTestManager(t, nil)
	rec := httptest.NewRecorder()
	s, err := m.Issue(rec, httptest.NewRequest(http.MethodPost, "/", nil), testUser, &models.TokenSet{
		AccessToken:  "access-1",
		RefreshToken: "refresh-1",
		ExpiresIn:    600,
	})
	if err != nil {
		t.Fatalf("Issue: %v", err)
	}

	cookies := rec.Result().Cookies()
	if len(cookies) != 1 {
		t.Fatalf("got %d cookies, want 1", len(cookies))
	}
	c := cookies[0]
	if c.Name != "retailcms_session" || !c.HttpOnly || !c.Secure || c.Path != "/" {
		t.Errorf("unexpected cookie attributes: %+v", c)
	}
	if c.SameSite != http.SameSiteLaxMode {
		t.Errorf("SameSite = %v, want Lax", c.SameSite)
	}
	if strings.Contains(c.Value, "access-1") || strings.Contains(c.Value, "refresh-1") {
		t.Error("backend tokens visible in cookie value")
	}

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.AddCookie(c)
	loaded, err := m.Load(req)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if loaded.ID != s.ID {
		t.Errorf("ID = %q, want %q", loaded.ID, s.ID)
	}
	if loaded.AccessToken != "access-1" || loaded.RefreshToken != "refresh-1" {
		t.Errorf("tokens = %q/%q", loaded.AccessToken, loaded.RefreshToken)
	}
	if loaded.User.Email != testUser.Email || loaded.User.Role != "editor" || loaded.User.ID.String() != "42" {
		t.Errorf("user = %+v", loaded.User)
	}
	if d := loaded.AccessExpiresAt.Sub(s.AccessExpiresAt); d > time.Second || d < -time.Second {
		t.Errorf("AccessExpiresAt = %v, want %v", loaded.AccessExpiresAt, s.AccessExpiresAt)
	}
}

func TestManager_Load_Rejects(t *testing.T) {
	m := newTestManager(t, nil)
	tokens := &models.TokenSet{AccessToken: "a", RefreshToken: "r", ExpiresIn: 600}

	t.Run("no_cookie", func(t *testing.T) {
		_, err := m.Load(httptest.NewRequest(http.MethodGet, "/", nil))
		if !errors.Is(err, ErrNoSession) {
			t.Errorf("error = %v, want ErrNoSession", err)
		}
	})

	t.Run("garbage", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.AddCookie(&http.Cookie{Name: "retailcms_session", Value: "not-a-jwt"})
		if _, err := m.Load(req); !errors.Is(err, ErrInvalidSession) {
			t.Errorf("error = %v, want ErrInvalidSession", err)
		}
	})

	t.Run("other_secret", func(t *testing.T) {
		cfg := testSecurityConfig()
		cfg.SessionSecret = "a-completely-different-secret-of-32-chars"
		other, err := NewManager(cfg, &fakeRefresher{}, NewMemoryDenylist())
		if err != nil {
			t.Fatalf("NewManager: %v", err)
		}
		req, _ := issueCookies(t, other, tokens)
		if _, err := m.Load(req); !errors.Is(err, ErrInvalidSession) {
			t.Errorf("error = %v, want ErrInvalidSession", err)
		}
	})

	t.Run("alg_none", func(t *testing.T) {
		claims := SessionClaims{
			User:            testUser,
			AccessExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
			RegisteredClaims: jwt.RegisteredClaims{
				ID:        "forged",
				Issuer:    sessionIssuer,
				ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
			},
		}
		raw, err := jwt.NewWithClaims(jwt.SigningMethodNone, claims).SignedString(jwt.UnsafeAllowNoneSignatureType)
		if err != nil {
			t.Fatalf("sign: %v", err)
		}
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.AddCookie(&http.Cookie{Name: "retailcms_session", Value: raw})
		if _, err := m.Load(req); !errors.Is(err, ErrInvalidSession) {
			t.Errorf("error = %v, want ErrInvalidSession", err)
		}
	})

	t.Run("expired", func(t *testing.T) {
		req, _ := issueCookies(t, m, tokens)
		m.now = func() time.Time { return time.Now().Add(2 * time.Hour) }
		defer func() { m.now = time.Now }()
		if _, err := m.Load(req); !errors.Is(err, ErrInvalidSession) {
			t.Errorf("error = %v, want ErrInvalidSession", err)
		}
	})

	t.Run("revoked", func(t *testing.T) {
		req, s := issueCookies(t, m, tokens)
		if err := m.Revoke(context.Background(), s); err != nil {
			t.Fatalf("Revoke: %v", err)
		}
		if _, err := m.Load(req); !errors.Is(err, ErrSessionRevoked) {
			t.Errorf("error = %v, want ErrSessionRevoked", err)
		}
	})
}

func TestManager_Resolve_NoRefreshNeeded(t *testing.T) {
	refresher := &fakeRefresher{}
	m := newTestManager(t, refresher)
	req, s := issueCookies(t, m, &models.TokenSet{AccessToken: "a", RefreshToken: "r", ExpiresIn: 3600})

	rec := httptest.NewRecorder()
	got, err := m.Resolve(rec, req)
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if got.ID != s.ID {
		t.Error("session was reissued without need")
	}
	if refresher.calls.Load() != 0 {
		t.Errorf("refresh called %d times", refresher.calls.Load())
	}
	if len(rec.Result().Cookies()) != 0 {
		t.Error("cookie written without refresh")
	}
}

func TestManager_Resolve_Refreshes(t *testing.T) {
	refresher := &fakeRefresher{tokens: &models.TokenSet{AccessToken: "access-2", ExpiresIn: 900}}
	m := newTestManager(t, refresher)
	// Inside the 30s leeway, so the next read refreshes.
	req, s := issueCookies(t, m, &models.TokenSet{AccessToken: "access-1", RefreshToken: "refresh-1", ExpiresIn: 10})

	rec := httptest.NewRecorder()
	got, err := m.Resolve(rec, req)
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if refresher.calls.Load() != 1 {
		t.Fatalf("refresh called %d times, want 1", refresher.calls.Load())
	}
	if rt := refresher.lastRT.Load(); rt != "refresh-1" {
		t.Errorf("refresh token sent = %v, want refresh-1", rt)
	}
	if got.ID == s.ID {
		t.Error("refreshed session kept the old ID")
	}
	if got.AccessToken != "access-2" {
		t.Errorf("AccessToken = %q, want access-2", got.AccessToken)
	}
	if got.RefreshToken != "refresh-1" {
		t.Errorf("RefreshToken = %q, want the previous one kept", got.RefreshToken)
	}
	if got.User.Email != testUser.Email {
		t.Errorf("User = %+v", got.User)
	}

	next := httptest.NewRequest(http.MethodGet, "/", nil)
	addLiveCookies(next, rec)
	reloaded, err := m.Load(next)
	if err != nil {
		t.Fatalf("Load after refresh: %v", err)
	}
	if reloaded.AccessToken != "access-2" || reloaded.ID != got.ID {
		t.Errorf("reissued cookie holds %+v", reloaded)
	}
}

func TestManager_Resolve_RefreshFailure(t *testing.T) {
	tests := []struct {
		name   string
		tokens *models.TokenSet
		err    error
	}{
		{"backend rejects", &models.TokenSet{AccessToken: "a", RefreshToken: "r", ExpiresIn: 1}, &backend.Error{Op: "refresh", StatusCode: 401}},
		{"backend down", &models.TokenSet{AccessToken: "a", RefreshToken: "r", ExpiresIn: 1}, backend.ErrBackendUnavailable},
		{"no refresh token", &models.TokenSet{AccessToken: "a", ExpiresIn: 1}, nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			refresher := &fakeRefresher{err: tt.err}
			m := newTestManager(t, refresher)
			req, _ := issueCookies(t, m, tt.tokens)

			rec := httptest.NewRecorder()
			s, err := m.Resolve(rec, req)
			if !errors.Is(err, ErrSessionExpired) {
				t.Fatalf("error = %v, want ErrSessionExpired", err)
			}
			if s == nil || s.Error != RefreshAccessTokenError {
				t.Errorf("session error = %+v, want %s", s, RefreshAccessTokenError)
			}

			cleared := false
			for _, c := range rec.Result().Cookies() {
				if c.Name == "retailcms_session" && c.MaxAge < 0 {
					cleared = true
				}
			}
			if !cleared {
				t.Error("session cookie not cleared after failed refresh")
			}
		})
	}
}

func TestManager_ChunkedCookie(t *testing.T) {
	refresher := &fakeRefresher{tokens: &models.TokenSet{AccessToken: "short", ExpiresIn: 900}}
	m := newTestManager(t, refresher)
	big := strings.Repeat("x", 6000)

	rec := httptest.NewRecorder()
	_, err := m.Issue(rec, httptest.NewRequest(http.MethodPost, "/", nil), testUser, &models.TokenSet{
		AccessToken:  big,
		RefreshToken: "refresh",
		ExpiresIn:    10,
	})
	if err != nil {
		t.Fatalf("Issue: %v", err)
	}

	cookies := rec.Result().Cookies()
	if len(cookies) < 2 {
		t.Fatalf("expected a chunked cookie, got %d cookies", len(cookies))
	}
	for _, c := range cookies {
		if !strings.HasPrefix(c.Name, "retailcms_session.") {
			t.Errorf("unexpected cookie %q", c.Name)
		}
		if len(c.Value) > cookieChunkSize {
			t.Errorf("chunk %q is %d bytes", c.Name, len(c.Value))
		}
	}

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	addLiveCookies(req, rec)
	loaded, err := m.Load(req)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if loaded.AccessToken != big {
		t.Error("chunked cookie did not reassemble")
	}

	// The refreshed token fits one cookie, so the chunks must be expired.
	rec = httptest.NewRecorder()
	if _, err := m.Resolve(rec, req); err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	var live, expired int
	for _, c := range rec.Result().Cookies() {
		switch {
		case c.Name == "retailcms_session" && c.MaxAge > 0:
			live++
		case strings.HasPrefix(c.Name, "retailcms_session.") && c.MaxAge < 0:
			expired++
		}
	}
	if live != 1 || expired != len(cookies) {
		t.Errorf("live = %d, expired chunks = %d (had %d)", live, expired, len(cookies))
	}
}

func TestManager_SessionTooLargeForCookies(t *testing.T) {
	m := newTestManager(t, nil)

	rec := httptest.NewRecorder()
	_, err := m.Issue(rec, httptest.NewRequest(http.MethodPost, "/", nil), testUser, &models.TokenSet{
		AccessToken:  strings.Repeat("x", maxCookieChunks*cookieChunkSize),
		RefreshToken: "refresh",
		ExpiresIn:    900,
	})
	if !errors.Is(err, ErrSessionTooLarge) {
		t.Fatalf("Issue() error = %v, want ErrSessionTooLarge", err)
	}
	if n := len(rec.Result().Cookies()); n != 0 {
		t.Errorf("%d cookies written for an oversized session", n)
	}
}

func TestManager_Clear(t *testing.T) {
	m := newTestManager(t, nil)
	rec := httptest.NewRecorder()
	m.Clear(rec, httptest.NewRequest(http.MethodPost, "/", nil))

	cookies := rec.Result().Cookies()
	if len(cookies) != 1 || cookies[0].Name != "retailcms_session" || cookies[0].MaxAge >= 0 {
		t.Errorf("Clear wrote %+v", cookies)
	}
}

func TestSession_NeedsRefresh(t *testing.T) {
	now := time.Date(2026, 1, 1, 10, 0, 0, 0, time.UTC)
	tests := []struct {
		name   string
		expiry time.Time
		want   bool
	}{
		{"far future", now.Add(time.Hour), false},
		{"just outside leeway", now.Add(31 * time.Second), false},
		{"at leeway boundary", now.Add(30 * time.Second), true},
		{"already expired", now.Add(-time.Minute), true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := &Session{AccessExpiresAt: tt.expiry}
			if got := s.NeedsRefresh(now, 30*time.Second); got != tt.want {
				t.Errorf("NeedsRefresh() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestSessionContext(t *testing.T) {
	if _, ok := SessionFromContext(context.Background()); ok {
		t.Error("empty context reported a session")
	}
	s := &Session{ID: "abc"}
	got, ok := SessionFromContext(ContextWithSession(context.Background(), s))
	if !ok || got.ID != "abc" {
		t.Errorf("SessionFromContext() = %+v, %v", got, ok)
	}
}
