// Retail CMS - Digital Signage Content Management Gateway
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/retailcms

package backend

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/goccy/go-json"

	"github.com/tomtom215/retailcms/internal/config"
	"github.com/tomtom215/retailcms/internal/logging"
	"github.com/tomtom215/retailcms/internal/metrics"
	"github.com/tomtom215/retailcms/internal/models"
)

// MaxResponseBytes caps how much of a backend body is read into memory.
const MaxResponseBytes = 32 << 20

// Request is a call to forward to the backend.
type Request struct {
	Method string
	Path   string // relative to the backend base URL, starting with '/'
	Query  url.Values
	Body   []byte
	Token  string // bearer token; omitted when empty
	Header http.Header
}

// Response is a fully read backend response.
type Response struct {
	StatusCode int
	Header     http.Header
	Body       []byte
}

// Client talks to the CMS backend.
type Client struct {
	baseURL     *url.URL
	httpClient  *http.Client
	breaker     *Breaker[*Response]
	loginPath   string
	refreshPath string
	healthPath  string
}

// NewClient builds a client from the backend configuration.
func NewClient(cfg *config.BackendConfig) (*Client, error) {
	base, err := url.Parse(strings.TrimRight(cfg.URL, "/"))
	if err != nil {
		return nil, fmt.Errorf("invalid backend url: %w", err)
	}

	transport := http.DefaultTransport.(*http.Transport).Clone()
	transport.MaxIdleConnsPerHost = 32

	return &Client{
		baseURL: base,
		httpClient: &http.Client{
			Timeout:   cfg.Timeout,
			Transport: transport,
			// Redirects are relayed to the browser, not followed.
			CheckRedirect: func(*http.Request, []*http.Request) error {
				return http.ErrUseLastResponse
			},
		},
		breaker:     NewBreaker[*Response](BreakerSettingsFromConfig("backend", cfg)),
		loginPath:   cfg.LoginPath,
		refreshPath: cfg.RefreshPath,
		healthPath:  cfg.HealthPath,
	}, nil
}

// BreakerState reports the backend circuit state.
func (c *Client) BreakerState() string {
	return c.breaker.State()
}

// Do sends req and returns the backend's answer whatever its status. The
// error is non-nil only when no usable response exists: ErrCircuitOpen,
// ErrBackendUnavailable or the context's error.
func (c *Client) Do(ctx context.Context, req *Request) (*Response, error) {
	httpReq, err := c.newRequest(ctx, req)
	if err != nil {
		return nil, err
	}

	resource := resourceLabel(req.Path)
	start := time.Now()

	resp, err := c.breaker.Execute(func() (*Response, error) {
		return c.roundTrip(httpReq)
	})
	if err != nil {
		metrics.RecordBackendRequest(req.Method, resource, "error", time.Since(start))
		if errors.Is(err, ErrCircuitOpen) {
			return nil, err
		}
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, ctxErr
		}
		logging.Ctx(ctx).Warn().Err(err).Str("method", req.Method).Str("resource", resource).Msg("Backend request failed")
		return nil, fmt.Errorf("%w: %w", ErrBackendUnavailable, err)
	}

	metrics.RecordBackendRequest(req.Method, resource, strconv.Itoa(resp.StatusCode), time.Since(start))
	return resp, nil
}

func (c *Client) newRequest(ctx context.Context, req *Request) (*http.Request, error) {
	if !strings.HasPrefix(req.Path, "/") {
		return nil, fmt.Errorf("backend path must be absolute: %q", req.Path)
	}
	u := *c.baseURL
	u.Path = c.baseURL.Path + req.Path
	u.RawPath = ""
	u.RawQuery = req.Query.Encode()

	var body io.Reader
	if req.Body != nil {
		body = bytes.NewReader(req.Body)
	}
	httpReq, err := http.NewRequestWithContext(ctx, req.Method, u.String(), body)
	if err != nil {
		return nil, fmt.Errorf("build backend request: %w", err)
	}

	for k, vs := range req.Header {
		for _, v := range vs {
			httpReq.Header.Add(k, v)
		}
	}
	httpReq.Header.Set("Accept", "application/json")
	if req.Body != nil && httpReq.Header.Get("Content-Type") == "" {
		httpReq.Header.Set("Content-Type", "application/json")
	}
	if req.Token != "" {
		httpReq.Header.Set("Authorization", "Bearer "+req.Token)
	}
	if id := logging.RequestIDFromContext(ctx); id != "" {
		httpReq.Header.Set("X-Request-ID", id)
	}
	return httpReq, nil
}

// roundTrip runs inside the breaker. The body is read here so that a
// connection dropped mid-body also counts as a failure.
func (c *Client) roundTrip(httpReq *http.Request) (*Response, error) {
	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, MaxResponseBytes+1))
	if err != nil {
		return nil, fmt.Errorf("read backend response: %w", err)
	}
	if len(body) > MaxResponseBytes {
		return nil, fmt.Errorf("backend response exceeds %d bytes", MaxResponseBytes)
	}

	out := &Response{StatusCode: resp.StatusCode, Header: resp.Header, Body: body}
	if resp.StatusCode >= http.StatusInternalServerError {
		return out, UpstreamFailure(resp.StatusCode)
	}
	return out, nil
}

// Login exchanges credentials for a token set.
func (c *Client) Login(ctx context.Context, email, password string) (*models.TokenSet, error) {
	body, err := json.Marshal(models.LoginRequest{Email: email, Password: password})
	if err != nil {
		return nil, fmt.Errorf("encode login request: %w", err)
	}
	resp, err := c.Do(ctx, &Request{Method: http.MethodPost, Path: c.loginPath, Body: body})
	if err != nil {
		return nil, err
	}

	switch resp.StatusCode {
	case http.StatusBadRequest, http.StatusUnauthorized, http.StatusForbidden, http.StatusUnprocessableEntity:
		return nil, ErrInvalidCredentials
	}
	return decodeTokenSet("login", resp)
}

// Refresh exchanges a refresh token for a new token set.
func (c *Client) Refresh(ctx context.Context, refreshToken string) (*models.TokenSet, error) {
	body, err := json.Marshal(map[string]string{"refresh_token": refreshToken})
	if err != nil {
		return nil, fmt.Errorf("encode refresh request: %w", err)
	}
	resp, err := c.Do(ctx, &Request{Method: http.MethodPost, Path: c.refreshPath, Body: body})
	if err != nil {
		return nil, err
	}
	return decodeTokenSet("refresh", resp)
}

// Ping checks the backend health endpoint.
func (c *Client) Ping(ctx context.Context) error {
	resp, err := c.Do(ctx, &Request{Method: http.MethodGet, Path: c.healthPath})
	if err != nil {
		return err
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return &Error{Op: "health", StatusCode: resp.StatusCode, Header: resp.Header, Body: resp.Body}
	}
	return nil
}

func decodeTokenSet(op string, resp *Response) (*models.TokenSet, error) {
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, &Error{Op: op, StatusCode: resp.StatusCode, Header: resp.Header, Body: resp.Body}
	}
	var ts models.TokenSet
	if err := json.Unmarshal(resp.Body, &ts); err != nil {
		return nil, fmt.Errorf("%w: %s: %w", ErrMalformedResponse, op, err)
	}
	if ts.AccessToken == "" {
		return nil, fmt.Errorf("%w: %s: missing access_token", ErrMalformedResponse, op)
	}
	return &ts, nil
}

// resourceLabel turns "/playlists/12/items" into "playlists" for metrics.
func resourceLabel(path string) string {
	seg, _, _ := strings.Cut(strings.TrimPrefix(path, "/"), "/")
	if seg == "" {
		return "root"
	}
	return seg
}
