// Retail CMS - Digital Signage Content Management Gateway
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/retailcms

package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestClientIP(t *testing.T) {
	ips := NewClientIP([]string{"10.0.0.1", "192.168.0.0/16", "not-an-ip"})

	tests := []struct {
		name       string
		remoteAddr string
		xff        string
		realIP     string
		want       string
	}{
		{"untrusted peer ignores XFF", "203.0.113.7:51000", "198.51.100.1", "", "203.0.113.7:51000"},
		{"untrusted peer ignores X-Real-IP", "203.0.113.7:51000", "", "198.51.100.1", "203.0.113.7:51000"},
		{"trusted peer uses XFF", "10.0.0.1:443", "198.51.100.1", "", "198.51.100.1"},
		{"rightmost untrusted hop wins", "10.0.0.1:443", "6.6.6.6, 198.51.100.1, 192.168.4.2", "", "198.51.100.1"},
		{"all hops trusted", "10.0.0.1:443", "192.168.1.1, 192.168.4.2", "", "192.168.1.1"},
		{"trusted peer falls back to X-Real-IP", "192.168.9.9:80", "", "198.51.100.2", "198.51.100.2"},
		{"trusted peer with garbage headers", "10.0.0.1:443", "garbage", "also garbage", "10.0.0.1:443"},
		{"trusted peer without headers", "10.0.0.1:443", "", "", "10.0.0.1:443"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var seen string
			h := ips.Handler(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				seen = r.RemoteAddr
			}))

			req := httptest.NewRequest(http.MethodGet, "/api/auth/login", nil)
			req.RemoteAddr = tt.remoteAddr
			if tt.xff != "" {
				req.Header.Set("X-Forwarded-For", tt.xff)
			}
			if tt.realIP != "" {
				req.Header.Set("X-Real-IP", tt.realIP)
			}
			h.ServeHTTP(httptest.NewRecorder(), req)

			if seen != tt.want {
				t.Errorf("RemoteAddr = %q, want %q", seen, tt.want)
			}
		})
	}
}

func TestClientIP_NoTrustedProxies(t *testing.T) {
	h := NewClientIP(nil).Handler(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.RemoteAddr != "127.0.0.1:9000" {
			t.Errorf("RemoteAddr = %q, forwarding headers must be ignored", r.RemoteAddr)
		}
	}))
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.RemoteAddr = "127.0.0.1:9000"
	req.Header.Set("X-Forwarded-For", "198.51.100.1")
	h.ServeHTTP(httptest.NewRecorder(), req)
}
