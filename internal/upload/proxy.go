// Retail CMS - Digital Signage Content Management Gateway
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/retailcms

package upload

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"slices"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/tomtom215/retailcms/internal/api/respond"
	"github.com/tomtom215/retailcms/internal/auth"
	"github.com/tomtom215/retailcms/internal/backend"
	"github.com/tomtom215/retailcms/internal/config"
	"github.com/tomtom215/retailcms/internal/logging"
	"github.com/tomtom215/retailcms/internal/metrics"
)

// Proxy forwards tus requests to the upstream upload endpoint.
type Proxy struct {
	upstream   *url.URL
	publicBase string
	maxChunk   int64
	client     *http.Client
	breaker    *backend.Breaker[*http.Response]
	creations  *creationLimiter
}

// NewProxy creates the upload proxy. breaker normally comes from the backend
// configuration with its own name so the two circuits trip independently.
func NewProxy(cfg *config.UploadConfig, breaker backend.BreakerSettings) (*Proxy, error) {
	upstream, err := url.Parse(cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("invalid upload url: %w", err)
	}
	if (upstream.Scheme != "http" && upstream.Scheme != "https") || upstream.Host == "" {
		return nil, fmt.Errorf("invalid upload url %q: must be absolute http(s)", cfg.URL)
	}
	if cfg.MaxChunkBytes <= 0 {
		return nil, errors.New("upload max chunk bytes must be positive")
	}

	transport := http.DefaultTransport.(*http.Transport).Clone()
	transport.ResponseHeaderTimeout = cfg.ResponseHeaderTimeout

	return &Proxy{
		upstream:   upstream,
		publicBase: strings.TrimSuffix(cfg.PublicBaseURL, "/"),
		maxChunk:   cfg.MaxChunkBytes,
		client: &http.Client{
			// No overall timeout: a chunk may legitimately take minutes.
			Transport: transport,
			CheckRedirect: func(*http.Request, []*http.Request) error {
				return http.ErrUseLastResponse
			},
		},
		breaker:   backend.NewBreaker[*http.Response](breaker),
		creations: newCreationLimiter(cfg.CreationsPerMinute, cfg.CreationBurst),
	}, nil
}

// BreakerState reports the upload circuit state.
func (p *Proxy) BreakerState() string {
	return p.breaker.State()
}

// Routes mounts the tus endpoints. The caller applies session and
// authorization middleware.
func (p *Proxy) Routes(r chi.Router) {
	r.Options("/", p.ServeHTTP)
	r.Post("/", p.ServeHTTP)
	r.Options("/{id}", p.ServeHTTP)
	r.Head("/{id}", p.ServeHTTP)
	r.Patch("/{id}", p.ServeHTTP)
	r.Delete("/{id}", p.ServeHTTP)
	r.Post("/{id}", p.ServeHTTP) // X-HTTP-Method-Override
}

// ServeHTTP proxies one tus request.
func (p *Proxy) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s, ok := auth.SessionFromContext(r.Context())
	if !ok {
		respond.Error(w, r, http.StatusUnauthorized, respond.CodeUnauthorized, "Authentication required", nil)
		return
	}

	method := effectiveMethod(r)
	id := chi.URLParam(r, "id")
	if id != "" && !validID(id) {
		respond.Error(w, r, http.StatusNotFound, respond.CodeNotFound, "Unknown upload", nil)
		return
	}
	if allowed := allowedMethods(id); !slices.Contains(allowed, method) {
		w.Header().Set("Allow", strings.Join(allowed, ", "))
		respond.Error(w, r, http.StatusMethodNotAllowed, respond.CodeBadRequest, "Method not allowed", nil)
		return
	}

	hasBody := method == http.MethodPost || method == http.MethodPatch
	if hasBody && r.ContentLength > p.maxChunk {
		metrics.RecordUploadRequest(method, strconv.Itoa(http.StatusRequestEntityTooLarge))
		respond.Error(w, r, http.StatusRequestEntityTooLarge, respond.CodePayloadTooLarge,
			fmt.Sprintf("Chunk exceeds %d bytes", p.maxChunk), nil)
		return
	}

	if method == http.MethodPost && !p.creations.Allow(limiterKey(s)) {
		metrics.RecordRateLimitHit("upload")
		metrics.RecordUploadRequest(method, strconv.Itoa(http.StatusTooManyRequests))
		w.Header().Set("Retry-After", "60")
		respond.Error(w, r, http.StatusTooManyRequests, respond.CodeTooManyRequests, "Too many uploads started, try again later", nil)
		return
	}

	var body *countingReader
	upReq, err := p.newUpstreamRequest(r.Context(), method, id)
	if err != nil {
		respond.Error(w, r, http.StatusInternalServerError, respond.CodeInternal, "Failed to build upload request", err)
		return
	}
	if hasBody && r.Body != nil && r.ContentLength != 0 {
		body = &countingReader{r: http.MaxBytesReader(w, r.Body, p.maxChunk)}
		upReq.Body = io.NopCloser(body)
		upReq.ContentLength = r.ContentLength
	}
	copyHeaders(upReq.Header, r.Header, forwardRequestHeaders)
	upReq.Header.Set("Authorization", "Bearer "+s.AccessToken)
	if rid := logging.RequestIDFromContext(r.Context()); rid != "" {
		upReq.Header.Set("X-Request-ID", rid)
	}

	start := time.Now()
	resp, err := p.breaker.Execute(func() (*http.Response, error) {
		resp, err := p.client.Do(upReq)
		if err != nil {
			if body != nil && body.readErr() != nil {
				// The inbound chunk failed, not the upstream.
				return nil, backend.ClientFault(err)
			}
			return nil, err
		}
		if resp.StatusCode >= http.StatusInternalServerError {
			return resp, backend.UpstreamFailure(resp.StatusCode)
		}
		return resp, nil
	})
	if body != nil {
		metrics.AddUploadBytes(body.count())
	}
	if err != nil {
		p.fail(w, r, method, err)
		return
	}
	defer resp.Body.Close()

	metrics.RecordUploadRequest(method, strconv.Itoa(resp.StatusCode))
	logging.Ctx(r.Context()).Debug().
		Str("method", method).
		Str("upload_id", id).
		Int("status", resp.StatusCode).
		Dur("duration", time.Since(start)).
		Msg("Upload request proxied")

	p.relay(w, r, upReq.URL, method, resp)
}

func (p *Proxy) newUpstreamRequest(ctx context.Context, method, id string) (*http.Request, error) {
	target := *p.upstream
	if id != "" {
		target.Path = strings.TrimSuffix(p.upstream.Path, "/") + "/" + id
		target.RawPath = ""
	}
	return http.NewRequestWithContext(ctx, method, target.String(), http.NoBody)
}

func (p *Proxy) relay(w http.ResponseWriter, r *http.Request, upstreamURL *url.URL, method string, resp *http.Response) {
	h := w.Header()
	copyHeaders(h, resp.Header, relayResponseHeaders)
	if loc := resp.Header.Get("Location"); loc != "" {
		h.Set("Location", rewriteLocation(loc, upstreamURL, p.upstream, publicBaseFor(p.publicBase, r)))
	}

	w.WriteHeader(resp.StatusCode)
	if method == http.MethodHead {
		return
	}
	if _, err := io.Copy(w, resp.Body); err != nil {
		logging.Ctx(r.Context()).Debug().Err(err).Msg("Failed to relay upload response body")
	}
}

func (p *Proxy) fail(w http.ResponseWriter, r *http.Request, method string, err error) {
	var tooLarge *http.MaxBytesError
	if errors.As(err, &tooLarge) {
		metrics.RecordUploadRequest(method, strconv.Itoa(http.StatusRequestEntityTooLarge))
		respond.Error(w, r, http.StatusRequestEntityTooLarge, respond.CodePayloadTooLarge,
			fmt.Sprintf("Chunk exceeds %d bytes", p.maxChunk), nil)
		return
	}

	metrics.RecordUploadRequest(method, "error")
	if !errors.Is(err, backend.ErrCircuitOpen) && !errors.Is(err, context.Canceled) {
		err = fmt.Errorf("%w: upload: %w", backend.ErrBackendUnavailable, err)
	}
	respond.BackendError(w, r, err)
}

// effectiveMethod applies X-HTTP-Method-Override, which tus clients send on
// POST when PATCH or DELETE are blocked along the way.
func effectiveMethod(r *http.Request) string {
	if r.Method == http.MethodPost {
		if o := strings.ToUpper(strings.TrimSpace(r.Header.Get("X-HTTP-Method-Override"))); o != "" {
			return o
		}
	}
	return r.Method
}

func allowedMethods(id string) []string {
	if id == "" {
		return []string{http.MethodOptions, http.MethodPost}
	}
	return []string{http.MethodOptions, http.MethodHead, http.MethodPatch, http.MethodDelete}
}

func limiterKey(s *auth.Session) string {
	if id := s.User.ID.String(); id != "" {
		return id
	}
	if s.User.Email != "" {
		return s.User.Email
	}
	return s.ID
}

// countingReader counts forwarded bytes and remembers the first read error
// other than io.EOF. The transport reads it from its own goroutine.
type countingReader struct {
	r   io.Reader
	mu  sync.Mutex
	n   int64
	err error
}

func (c *countingReader) Read(p []byte) (int, error) {
	n, err := c.r.Read(p)
	c.mu.Lock()
	c.n += int64(n)
	if err != nil && err != io.EOF && c.err == nil {
		c.err = err
	}
	c.mu.Unlock()
	return n, err
}

func (c *countingReader) count() int64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.n
}

func (c *countingReader) readErr() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.err
}
