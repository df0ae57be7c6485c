// Retail CMS - Digital Signage Content Management Gateway
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/retailcms

package upload

import (
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/tomtom215/retailcms/internal/auth"
	"github.com/tomtom215/retailcms/internal/backend"
	"github.com/tomtom215/retailcms/internal/config"
	"github.com/tomtom215/retailcms/internal/models"
)

// recordedRequest is what the fake tus server saw.
type recordedRequest struct {
	Method string
	Path   string
	Header http.Header
	Body   string
}

type fakeTus struct {
	mu       sync.Mutex
	requests []recordedRequest
	handler  func(w http.ResponseWriter, r *http.Request)
}

func (f *fakeTus) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	body, _ := io.ReadAll(r.Body)
	f.mu.Lock()
	f.requests = append(f.requests, recordedRequest{Method: r.Method, Path: r.URL.Path, Header: r.Header.Clone(), Body: string(body)})
	f.mu.Unlock()
	f.handler(w, r)
}

func (f *fakeTus) last(t *testing.T) recordedRequest {
	t.Helper()
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.requests) == 0 {
		t.Fatal("upstream received no request")
	}
	return f.requests[len(f.requests)-1]
}

func (f *fakeTus) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.requests)
}

type testEnv struct {
	upstream *httptest.Server
	tus      *fakeTus
	proxy    *Proxy
	router   http.Handler
}

func testBreaker() backend.BreakerSettings {
	return backend.BreakerSettings{
		Name:         "upload-test",
		MaxRequests:  1,
		Interval:     time.Minute,
		Timeout:      time.Minute,
		MinRequests:  100,
		FailureRatio: 1,
	}
}

func newTestEnv(t *testing.T, handler func(w http.ResponseWriter, r *http.Request), mutate func(*config.UploadConfig)) *testEnv {
	t.Helper()
	tus := &fakeTus{handler: handler}
	srv := httptest.NewServer(tus)
	t.Cleanup(srv.Close)

	cfg := &config.UploadConfig{
		URL:                   srv.URL + "/files/",
		PublicBaseURL:         "https://cms.example.com",
		MaxChunkBytes:         1024,
		ResponseHeaderTimeout: 5 * time.Second,
	}
	if mutate != nil {
		mutate(cfg)
	}

	p, err := NewProxy(cfg, testBreaker())
	if err != nil {
		t.Fatalf("NewProxy: %v", err)
	}
	return &testEnv{upstream: srv, tus: tus, proxy: p, router: routerFor(p, true)}
}

func routerFor(p *Proxy, withSession bool) http.Handler {
	r := chi.NewRouter()
	r.Route(RoutePrefix, func(r chi.Router) {
		if withSession {
			r.Use(func(next http.Handler) http.Handler {
				return http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
					s := &auth.Session{
						ID:          "sess-1",
						User:        models.User{ID: models.NewID("user-1"), Role: "editor"},
						AccessToken: "backend-access-token",
					}
					next.ServeHTTP(w, req.WithContext(auth.ContextWithSession(req.Context(), s)))
				})
			})
		}
		p.Routes(r)
	})
	return r
}

func serve(h http.Handler, req *http.Request) *httptest.ResponseRecorder {
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func TestProxy_Create(t *testing.T) {
	env := newTestEnv(t, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Location", "http://"+r.Host+"/files/abc123")
		w.Header().Set("Tus-Resumable", "1.0.0")
		w.Header().Set("X-Internal", "leak")
		w.WriteHeader(http.StatusCreated)
	}, nil)

	req := httptest.NewRequest(http.MethodPost, "/api/uploads", nil)
	req.Header.Set("Tus-Resumable", "1.0.0")
	req.Header.Set("Upload-Length", "2048")
	req.Header.Set("Upload-Metadata", "filename bG9nby5wbmc=")
	req.Header.Set("Cookie", "retailcms_session=secret")
	req.Header.Set("X-Custom", "nope")

	rec := serve(env.router, req)
	if rec.Code != http.StatusCreated {
		t.Fatalf("status = %d: %s", rec.Code, rec.Body.String())
	}
	if got := rec.Header().Get("Location"); got != "https://cms.example.com/api/uploads/abc123" {
		t.Errorf("Location = %q", got)
	}
	if rec.Header().Get("Tus-Resumable") != "1.0.0" {
		t.Error("Tus-Resumable not relayed")
	}
	if rec.Header().Get("X-Internal") != "" {
		t.Error("non-tus response header relayed")
	}

	up := env.tus.last(t)
	if up.Method != http.MethodPost || up.Path != "/files/" {
		t.Errorf("upstream saw %s %s", up.Method, up.Path)
	}
	if got := up.Header.Get("Authorization"); got != "Bearer backend-access-token" {
		t.Errorf("Authorization = %q", got)
	}
	for _, h := range []string{"Tus-Resumable", "Upload-Length", "Upload-Metadata"} {
		if up.Header.Get(h) != req.Header.Get(h) {
			t.Errorf("%s = %q, want %q", h, up.Header.Get(h), req.Header.Get(h))
		}
	}
	if up.Header.Get("Cookie") != "" || up.Header.Get("X-Custom") != "" {
		t.Error("non-tus request headers forwarded upstream")
	}
}

func TestProxy_LocationRewriteVariants(t *testing.T) {
	tests := []struct {
		name     string
		location func(host string) string
		public   string
		host     string
		want     func(host string) string
	}{
		{
			name:     "relative",
			location: func(string) string { return "/files/rel42" },
			public:   "https://cms.example.com/",
			want:     func(string) string { return "https://cms.example.com/api/uploads/rel42" },
		},
		{
			name:     "derived public base",
			location: func(host string) string { return "http://" + host + "/files/d1" },
			host:     "gateway.local:3000",
			want:     func(string) string { return "http://gateway.local:3000/api/uploads/d1" },
		},
		{
			name:     "foreign host unchanged",
			location: func(string) string { return "https://cdn.example.net/files/x" },
			public:   "https://cms.example.com",
			want:     func(string) string { return "https://cdn.example.net/files/x" },
		},
		{
			name:     "outside endpoint unchanged",
			location: func(host string) string { return "http://" + host + "/other/x" },
			public:   "https://cms.example.com",
			want:     func(host string) string { return "http://" + host + "/other/x" },
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			env := newTestEnv(t, func(w http.ResponseWriter, r *http.Request) {
				w.Header().Set("Location", tt.location(r.Host))
				w.WriteHeader(http.StatusCreated)
			}, func(c *config.UploadConfig) { c.PublicBaseURL = tt.public })

			req := httptest.NewRequest(http.MethodPost, "/api/uploads", nil)
			if tt.host != "" {
				req.Host = tt.host
			}
			rec := serve(env.router, req)

			upstreamHost := strings.TrimPrefix(env.upstream.URL, "http://")
			if got, want := rec.Header().Get("Location"), tt.want(upstreamHost); got != want {
				t.Errorf("Location = %q, want %q", got, want)
			}
		})
	}
}

func TestProxy_PatchStreamsChunk(t *testing.T) {
	env := newTestEnv(t, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Upload-Offset", "11")
		w.Header().Set("Tus-Resumable", "1.0.0")
		w.WriteHeader(http.StatusNoContent)
	}, nil)

	req := httptest.NewRequest(http.MethodPatch, "/api/uploads/abc123", strings.NewReader("hello world"))
	req.Header.Set("Content-Type", "application/offset+octet-stream")
	req.Header.Set("Upload-Offset", "0")
	req.Header.Set("Upload-Checksum", "sha1 Kq5sNclPz7QV2+lfQIuc6R7oRu0=")
	req.Header.Set("Tus-Resumable", "1.0.0")

	rec := serve(env.router, req)
	if rec.Code != http.StatusNoContent {
		t.Fatalf("status = %d: %s", rec.Code, rec.Body.String())
	}
	if rec.Header().Get("Upload-Offset") != "11" {
		t.Errorf("Upload-Offset = %q", rec.Header().Get("Upload-Offset"))
	}

	up := env.tus.last(t)
	if up.Method != http.MethodPatch || up.Path != "/files/abc123" {
		t.Errorf("upstream saw %s %s", up.Method, up.Path)
	}
	if up.Body != "hello world" {
		t.Errorf("upstream body = %q", up.Body)
	}
	for _, h := range []string{"Content-Type", "Upload-Offset", "Upload-Checksum"} {
		if up.Header.Get(h) != req.Header.Get(h) {
			t.Errorf("%s = %q, want %q", h, up.Header.Get(h), req.Header.Get(h))
		}
	}
}

func TestProxy_HeadAndDelete(t *testing.T) {
	env := newTestEnv(t, func(w http.ResponseWriter, r *http.Request) {
		switch r.Method {
		case http.MethodHead:
			w.Header().Set("Upload-Offset", "512")
			w.Header().Set("Upload-Length", "2048")
			w.Header().Set("Cache-Control", "no-store")
			w.WriteHeader(http.StatusOK)
		case http.MethodDelete:
			w.WriteHeader(http.StatusNoContent)
		default:
			w.WriteHeader(http.StatusMethodNotAllowed)
		}
	}, nil)

	rec := serve(env.router, httptest.NewRequest(http.MethodHead, "/api/uploads/abc", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("HEAD status = %d", rec.Code)
	}
	if rec.Header().Get("Upload-Offset") != "512" || rec.Header().Get("Upload-Length") != "2048" {
		t.Errorf("HEAD headers = %v", rec.Header())
	}
	if rec.Header().Get("Cache-Control") != "no-store" {
		t.Error("Cache-Control not relayed")
	}
	if rec.Body.Len() != 0 {
		t.Error("HEAD response has a body")
	}

	rec = serve(env.router, httptest.NewRequest(http.MethodDelete, "/api/uploads/abc", nil))
	if rec.Code != http.StatusNoContent {
		t.Errorf("DELETE status = %d", rec.Code)
	}
	if up := env.tus.last(t); up.Method != http.MethodDelete || up.Path != "/files/abc" {
		t.Errorf("upstream saw %s %s", up.Method, up.Path)
	}
}

func TestProxy_Options(t *testing.T) {
	env := newTestEnv(t, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Tus-Version", "1.0.0")
		w.Header().Set("Tus-Extension", "creation,termination,checksum")
		w.Header().Set("Tus-Max-Size", "1073741824")
		w.WriteHeader(http.StatusNoContent)
	}, nil)

	rec := serve(env.router, httptest.NewRequest(http.MethodOptions, "/api/uploads", nil))
	if rec.Code != http.StatusNoContent {
		t.Fatalf("status = %d", rec.Code)
	}
	for _, h := range []string{"Tus-Version", "Tus-Extension", "Tus-Max-Size"} {
		if rec.Header().Get(h) == "" {
			t.Errorf("%s not relayed", h)
		}
	}
}

func TestProxy_MethodOverride(t *testing.T) {
	env := newTestEnv(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	}, nil)

	req := httptest.NewRequest(http.MethodPost, "/api/uploads/abc", strings.NewReader("data"))
	req.Header.Set("X-HTTP-Method-Override", "PATCH")
	rec := serve(env.router, req)
	if rec.Code != http.StatusNoContent {
		t.Fatalf("status = %d: %s", rec.Code, rec.Body.String())
	}
	up := env.tus.last(t)
	if up.Method != http.MethodPatch || up.Body != "data" {
		t.Errorf("upstream saw %s with body %q", up.Method, up.Body)
	}
	if up.Header.Get("X-HTTP-Method-Override") != "" {
		t.Error("override header forwarded after being applied")
	}

	// A plain POST on an upload URL is not a tus operation.
	rec = serve(env.router, httptest.NewRequest(http.MethodPost, "/api/uploads/abc", nil))
	if rec.Code != http.StatusMethodNotAllowed {
		t.Errorf("POST without override status = %d, want 405", rec.Code)
	}
}

func TestProxy_ChunkTooLarge(t *testing.T) {
	env := newTestEnv(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	}, func(c *config.UploadConfig) { c.MaxChunkBytes = 8 })

	req := httptest.NewRequest(http.MethodPatch, "/api/uploads/abc", strings.NewReader("more than eight bytes"))
	rec := serve(env.router, req)
	if rec.Code != http.StatusRequestEntityTooLarge {
		t.Fatalf("status = %d, want 413", rec.Code)
	}
	if env.tus.count() != 0 {
		t.Error("oversized chunk reached the upstream")
	}
}

func TestProxy_OversizedStreamedChunksKeepCircuitClosed(t *testing.T) {
	tus := &fakeTus{handler: func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Upload-Offset", "0")
		w.WriteHeader(http.StatusNoContent)
	}}
	srv := httptest.NewServer(tus)
	t.Cleanup(srv.Close)

	p, err := NewProxy(&config.UploadConfig{
		URL:                   srv.URL + "/files/",
		PublicBaseURL:         "https://cms.example.com",
		MaxChunkBytes:         8,
		ResponseHeaderTimeout: 5 * time.Second,
	}, backend.BreakerSettings{
		Name:         "upload-oversized",
		MaxRequests:  1,
		Interval:     time.Minute,
		Timeout:      time.Minute,
		MinRequests:  3,
		FailureRatio: 0.5,
	})
	if err != nil {
		t.Fatalf("NewProxy: %v", err)
	}
	h := routerFor(p, true)

	for i := 0; i < 5; i++ {
		req := httptest.NewRequest(http.MethodPatch, "/api/uploads/abc", strings.NewReader(strings.Repeat("z", 64)))
		req.ContentLength = -1 // chunked: the size is only known while streaming
		rec := serve(h, req)
		if rec.Code != http.StatusRequestEntityTooLarge {
			t.Fatalf("attempt %d status = %d, want 413", i, rec.Code)
		}
	}
	if got := p.BreakerState(); got != "closed" {
		t.Fatalf("BreakerState() = %s, want closed", got)
	}

	rec := serve(h, httptest.NewRequest(http.MethodHead, "/api/uploads/abc", nil))
	if rec.Code != http.StatusNoContent {
		t.Errorf("HEAD after oversized chunks = %d, want 204", rec.Code)
	}
}

func TestProxy_CreationRateLimit(t *testing.T) {
	env := newTestEnv(t, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Location", "/files/n")
		w.WriteHeader(http.StatusCreated)
	}, func(c *config.UploadConfig) {
		c.CreationsPerMinute = 1
		c.CreationBurst = 1
	})

	first := serve(env.router, httptest.NewRequest(http.MethodPost, "/api/uploads", nil))
	if first.Code != http.StatusCreated {
		t.Fatalf("first creation status = %d", first.Code)
	}
	second := serve(env.router, httptest.NewRequest(http.MethodPost, "/api/uploads", nil))
	if second.Code != http.StatusTooManyRequests {
		t.Fatalf("second creation status = %d, want 429", second.Code)
	}
	if second.Header().Get("Retry-After") == "" {
		t.Error("Retry-After missing")
	}

	// Chunks are not limited.
	patch := serve(env.router, httptest.NewRequest(http.MethodPatch, "/api/uploads/n", strings.NewReader("x")))
	if patch.Code == http.StatusTooManyRequests {
		t.Error("PATCH was rate limited")
	}
}

func TestProxy_UpstreamErrors(t *testing.T) {
	t.Run("5xx relayed", func(t *testing.T) {
		env := newTestEnv(t, func(w http.ResponseWriter, r *http.Request) {
			http.Error(w, "storage failure", http.StatusInternalServerError)
		}, nil)
		rec := serve(env.router, httptest.NewRequest(http.MethodHead, "/api/uploads/abc", nil))
		if rec.Code != http.StatusInternalServerError {
			t.Errorf("status = %d, want 500", rec.Code)
		}
	})

	t.Run("unreachable", func(t *testing.T) {
		env := newTestEnv(t, func(w http.ResponseWriter, r *http.Request) {}, nil)
		env.upstream.Close()
		rec := serve(env.router, httptest.NewRequest(http.MethodHead, "/api/uploads/abc", nil))
		if rec.Code != http.StatusBadGateway {
			t.Errorf("status = %d, want 502", rec.Code)
		}
	})
}

func TestProxy_RequiresSession(t *testing.T) {
	env := newTestEnv(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	}, nil)
	h := routerFor(env.proxy, false)

	rec := serve(h, httptest.NewRequest(http.MethodOptions, "/api/uploads", nil))
	if rec.Code != http.StatusUnauthorized {
		t.Errorf("status = %d, want 401", rec.Code)
	}
	if env.tus.count() != 0 {
		t.Error("request without a session reached the upstream")
	}
}

func TestNewProxy_Validation(t *testing.T) {
	tests := []struct {
		name string
		cfg  config.UploadConfig
	}{
		{"relative url", config.UploadConfig{URL: "/files/", MaxChunkBytes: 1}},
		{"bad scheme", config.UploadConfig{URL: "ftp://host/files/", MaxChunkBytes: 1}},
		{"no chunk cap", config.UploadConfig{URL: "http://host/files/"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := NewProxy(&tt.cfg, testBreaker()); err == nil {
				t.Error("expected error")
			}
		})
	}
}
