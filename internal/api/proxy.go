// Retail CMS - Digital Signage Content Management Gateway
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/retailcms

package api

import (
	"context"
	"net/http"
	"net/url"

	"github.com/go-chi/chi/v5"
	"github.com/goccy/go-json"

	"github.com/tomtom215/retailcms/internal/api/respond"
	"github.com/tomtom215/retailcms/internal/auth"
	"github.com/tomtom215/retailcms/internal/backend"
	"github.com/tomtom215/retailcms/internal/logging"
	"github.com/tomtom215/retailcms/internal/models"
)

// Forwarder sends a request to the backend. *backend.Client implements it.
type Forwarder interface {
	Do(ctx context.Context, req *backend.Request) (*backend.Response, error)
}

// Backend response headers relayed to the browser.
var relayedHeaders = []string{
	"Content-Type",
	"Cache-Control",
	"ETag",
	"Last-Modified",
	"Location",
	"Link",
	"Retry-After",
	"X-Total-Count",
}

// Proxy forwards resource routes to the backend with the session's token.
type Proxy struct {
	backend Forwarder
}

// NewProxy creates the resource proxy.
func NewProxy(fwd Forwarder) *Proxy {
	return &Proxy{backend: fwd}
}

// bodyFactory returns a fresh pointer to a typed request body.
type bodyFactory func() interface{}

func bodyOf[T any]() bodyFactory {
	return func() interface{} { return new(T) }
}

// forward relays a request without a body, keeping the query string.
func (p *Proxy) forward(path func(*http.Request) (string, bool)) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		target, ok := path(r)
		if !ok {
			respond.Error(w, r, http.StatusNotFound, respond.CodeNotFound, "Resource not found", nil)
			return
		}
		p.do(w, r, &backend.Request{
			Method: r.Method,
			Path:   target,
			Query:  r.URL.Query(),
		})
	}
}

// forwardBody decodes and validates the body as the type newBody returns,
// normalises it and sends the re-encoded JSON.
func (p *Proxy) forwardBody(path func(*http.Request) (string, bool), newBody bodyFactory) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		target, ok := path(r)
		if !ok {
			respond.Error(w, r, http.StatusNotFound, respond.CodeNotFound, "Resource not found", nil)
			return
		}

		dst := newBody()
		if !respond.DecodeJSON(w, r, dst) {
			return
		}
		if n, ok := dst.(models.Normalizer); ok {
			n.Normalize()
		}
		body, err := json.Marshal(dst)
		if err != nil {
			respond.Error(w, r, http.StatusInternalServerError, respond.CodeInternal, "Failed to encode request", err)
			return
		}

		p.do(w, r, &backend.Request{
			Method: r.Method,
			Path:   target,
			Query:  r.URL.Query(),
			Body:   body,
		})
	}
}

func (p *Proxy) do(w http.ResponseWriter, r *http.Request, req *backend.Request) {
	s, ok := auth.SessionFromContext(r.Context())
	if !ok {
		respond.Error(w, r, http.StatusUnauthorized, respond.CodeUnauthorized, "Authentication required", nil)
		return
	}
	req.Token = s.AccessToken

	resp, err := p.backend.Do(r.Context(), req)
	if err != nil {
		respond.BackendError(w, r, err)
		return
	}

	if resp.StatusCode == http.StatusUnauthorized {
		logging.Ctx(r.Context()).Info().
			Str("path", req.Path).
			Msg("Backend rejected session access token")
	}
	relay(w, r, resp)
}

// relay writes the backend status and body untouched. 204 and 304 carry no body.
func relay(w http.ResponseWriter, r *http.Request, resp *backend.Response) {
	h := w.Header()
	for _, name := range relayedHeaders {
		if v := resp.Header.Values(name); len(v) > 0 {
			h[name] = append([]string(nil), v...)
		}
	}

	noBody := resp.StatusCode == http.StatusNoContent ||
		resp.StatusCode == http.StatusNotModified ||
		r.Method == http.MethodHead
	if noBody {
		h.Del("Content-Type")
		w.WriteHeader(resp.StatusCode)
		return
	}
	if h.Get("Content-Type") == "" && len(resp.Body) > 0 {
		h.Set("Content-Type", "application/json")
	}
	w.WriteHeader(resp.StatusCode)
	if _, err := w.Write(resp.Body); err != nil {
		logging.Ctx(r.Context()).Debug().Err(err).Msg("Failed to write backend response")
	}
}

// collection maps /api/<name> to the backend path /<name>.
func collection(name string) func(*http.Request) (string, bool) {
	return func(*http.Request) (string, bool) {
		return "/" + name, true
	}
}

// item maps /api/<name>/{id}[/<sub>] to /<name>/<id>[/<sub>]. IDs outside
// the safe charset never reach the backend.
func item(name, sub string) func(*http.Request) (string, bool) {
	return func(r *http.Request) (string, bool) {
		id := chi.URLParam(r, "id")
		if !validResourceID(id) {
			return "", false
		}
		p := "/" + name + "/" + url.PathEscape(id)
		if sub != "" {
			p += "/" + sub
		}
		return p, true
	}
}

func validResourceID(id string) bool {
	if id == "" || len(id) > 128 || id == "." || id == ".." {
		return false
	}
	for _, c := range id {
		switch {
		case c >= 'a' && c <= 'z', c >= 'A' && c <= 'Z', c >= '0' && c <= '9':
		case c == '-', c == '_', c == '.':
		default:
			return false
		}
	}
	return true
}
