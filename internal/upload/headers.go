// Retail CMS - Digital Signage Content Management Gateway
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/retailcms

package upload

import (
	"net/http"
	"net/url"
	"strings"
)

// RoutePrefix is where the proxy is mounted on the gateway.
const RoutePrefix = "/api/uploads"

// Request headers forwarded upstream. Content-Length travels as
// http.Request.ContentLength.
var forwardRequestHeaders = []string{
	"Tus-Resumable",
	"Upload-Length",
	"Upload-Defer-Length",
	"Upload-Metadata",
	"Upload-Concat",
	"Upload-Offset",
	"Upload-Checksum",
	"Content-Type",
}

// Response headers relayed to the browser. Location is handled separately.
var relayResponseHeaders = []string{
	"Tus-Resumable",
	"Tus-Version",
	"Tus-Extension",
	"Tus-Max-Size",
	"Tus-Checksum-Algorithm",
	"Upload-Offset",
	"Upload-Length",
	"Upload-Defer-Length",
	"Upload-Metadata",
	"Upload-Expires",
	"Upload-Concat",
	"Cache-Control",
	"Content-Type",
}

func copyHeaders(dst, src http.Header, names []string) {
	for _, name := range names {
		if values := src.Values(name); len(values) > 0 {
			dst[http.CanonicalHeaderKey(name)] = append([]string(nil), values...)
		}
	}
}

// rewriteLocation maps a Location under the upstream endpoint to the
// gateway route. requestURL resolves relative locations. Other locations
// are returned unchanged.
func rewriteLocation(location string, requestURL, upstream *url.URL, publicBase string) string {
	loc, err := requestURL.Parse(location)
	if err != nil {
		return location
	}
	if !strings.EqualFold(loc.Scheme, upstream.Scheme) || !strings.EqualFold(loc.Host, upstream.Host) {
		return location
	}

	prefix := strings.TrimSuffix(upstream.Path, "/") + "/"
	rest, ok := strings.CutPrefix(loc.Path, prefix)
	if !ok {
		return location
	}
	id := strings.TrimSuffix(rest, "/")
	if !validID(id) {
		return location
	}

	rewritten := strings.TrimSuffix(publicBase, "/") + RoutePrefix + "/" + id
	if loc.RawQuery != "" {
		rewritten += "?" + loc.RawQuery
	}
	return rewritten
}

// publicBaseFor returns the configured public base URL or derives one from
// the incoming request.
func publicBaseFor(configured string, r *http.Request) string {
	if configured != "" {
		return configured
	}
	scheme := "http"
	if r.TLS != nil {
		scheme = "https"
	} else if proto := r.Header.Get("X-Forwarded-Proto"); proto == "https" || proto == "http" {
		scheme = proto
	}
	return scheme + "://" + r.Host
}

// validID accepts tus upload IDs: one path segment of URL-safe characters.
// tusd's S3 store joins object and multipart IDs with "+".
func validID(id string) bool {
	if id == "" || len(id) > 256 || id == "." || id == ".." {
		return false
	}
	for _, c := range id {
		switch {
		case c >= 'a' && c <= 'z', c >= 'A' && c <= 'Z', c >= '0' && c <= '9':
		case c == '-', c == '_', c == '.', c == '~', c == '+':
		default:
			return false
		}
	}
	return true
}
