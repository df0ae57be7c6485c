// Retail CMS - Digital Signage Content Management Gateway
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/retailcms

package middleware

import (
	"net"
	"net/http"
	"net/netip"
	"strings"

	"github.com/tomtom215/retailcms/internal/logging"
)

// ClientIP sets r.RemoteAddr to the client address. X-Forwarded-For and
// X-Real-IP are only read when the direct peer is a trusted proxy; any other
// peer is identified by its socket address, so rate limits keyed on
// RemoteAddr cannot be dodged by sending forged headers.
type ClientIP struct {
	trusted []netip.Prefix
}

// NewClientIP parses trusted proxy IPs and CIDRs. Invalid entries are logged
// and skipped; config validation rejects them earlier.
func NewClientIP(trusted []string) *ClientIP {
	c := &ClientIP{}
	for _, entry := range trusted {
		entry = strings.TrimSpace(entry)
		if p, err := netip.ParsePrefix(entry); err == nil {
			c.trusted = append(c.trusted, p.Masked())
			continue
		}
		addr, err := netip.ParseAddr(entry)
		if err != nil {
			logging.Warn().Str("entry", entry).Msg("Ignoring invalid trusted proxy")
			continue
		}
		addr = addr.Unmap()
		c.trusted = append(c.trusted, netip.PrefixFrom(addr, addr.BitLen()))
	}
	return c
}

// Handler is the chi middleware.
func (c *ClientIP) Handler(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if ip, ok := c.forwarded(r); ok {
			r.RemoteAddr = ip
		}
		next.ServeHTTP(w, r)
	})
}

// forwarded returns the client address named by the forwarding headers when
// the peer is trusted. X-Forwarded-For is walked from the right, skipping
// trusted hops, so a client cannot prepend its own entries.
func (c *ClientIP) forwarded(r *http.Request) (string, bool) {
	peer, ok := parseAddr(r.RemoteAddr)
	if !ok || !c.isTrusted(peer) {
		return "", false
	}

	if xff := r.Header.Values("X-Forwarded-For"); len(xff) > 0 {
		hops := strings.Split(strings.Join(xff, ","), ",")
		var leftmost string
		for i := len(hops) - 1; i >= 0; i-- {
			addr, ok := parseAddr(strings.TrimSpace(hops[i]))
			if !ok {
				break
			}
			leftmost = addr.String()
			if !c.isTrusted(addr) {
				return leftmost, true
			}
		}
		if leftmost != "" {
			return leftmost, true
		}
	}

	if addr, ok := parseAddr(strings.TrimSpace(r.Header.Get("X-Real-IP"))); ok {
		return addr.String(), true
	}
	return "", false
}

func (c *ClientIP) isTrusted(addr netip.Addr) bool {
	for _, p := range c.trusted {
		if p.Contains(addr) {
			return true
		}
	}
	return false
}

// parseAddr accepts "ip" and "ip:port".
func parseAddr(s string) (netip.Addr, bool) {
	if s == "" {
		return netip.Addr{}, false
	}
	if host, _, err := net.SplitHostPort(s); err == nil {
		s = host
	}
	addr, err := netip.ParseAddr(s)
	if err != nil {
		return netip.Addr{}, false
	}
	return addr.Unmap(), true
}
