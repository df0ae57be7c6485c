// Retail CMS - Digital Signage Content Management Gateway
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/retailcms

package auth

import (
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"
)

// Browsers cap a cookie at about 4096 bytes including its attributes. Session
// tokens carrying two encrypted backend JWTs can exceed that, so larger
// values are split across name.0, name.1, ...
const (
	cookieChunkSize = 3800
	maxCookieChunks = 16
)

type cookieJar struct {
	name   string
	domain string
	secure bool
}

func (j cookieJar) base(name, value string, maxAge int, expires time.Time) *http.Cookie {
	return &http.Cookie{
		Name:     name,
		Value:    value,
		Path:     "/",
		Domain:   j.domain,
		MaxAge:   maxAge,
		Expires:  expires,
		Secure:   j.secure,
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	}
}

func (j cookieJar) chunkName(i int) string {
	return j.name + "." + strconv.Itoa(i)
}

// read joins the session cookie or its chunks. It returns "" when absent.
func (j cookieJar) read(r *http.Request) string {
	if c, err := r.Cookie(j.name); err == nil && c.Value != "" {
		return c.Value
	}

	var sb strings.Builder
	for i := 0; i < maxCookieChunks; i++ {
		c, err := r.Cookie(j.chunkName(i))
		if err != nil {
			break
		}
		sb.WriteString(c.Value)
	}
	return sb.String()
}

// write stores value and expires any cookie parts r carries that the new
// value no longer uses.
func (j cookieJar) write(w http.ResponseWriter, r *http.Request, value string, now, expires time.Time) error {
	if chunks := (len(value) + cookieChunkSize - 1) / cookieChunkSize; chunks > maxCookieChunks {
		return fmt.Errorf("%w: %d bytes needs %d cookies, limit %d", ErrSessionTooLarge, len(value), chunks, maxCookieChunks)
	}

	maxAge := int(expires.Sub(now).Seconds())
	if maxAge < 1 {
		maxAge = 1
	}

	if len(value) <= cookieChunkSize {
		http.SetCookie(w, j.base(j.name, value, maxAge, expires))
		j.expireChunks(w, r, 0)
		return nil
	}

	n := 0
	for start := 0; start < len(value); start += cookieChunkSize {
		end := start + cookieChunkSize
		if end > len(value) {
			end = len(value)
		}
		http.SetCookie(w, j.base(j.chunkName(n), value[start:end], maxAge, expires))
		n++
	}
	j.expireChunks(w, r, n)
	if r != nil {
		if _, err := r.Cookie(j.name); err == nil {
			http.SetCookie(w, j.base(j.name, "", -1, time.Unix(0, 0)))
		}
	}
	return nil
}

// clear expires the session cookie and every chunk r carries.
func (j cookieJar) clear(w http.ResponseWriter, r *http.Request) {
	http.SetCookie(w, j.base(j.name, "", -1, time.Unix(0, 0)))
	j.expireChunks(w, r, 0)
}

func (j cookieJar) expireChunks(w http.ResponseWriter, r *http.Request, from int) {
	if r == nil {
		return
	}
	for i := from; i < maxCookieChunks; i++ {
		name := j.chunkName(i)
		if _, err := r.Cookie(name); err != nil {
			continue
		}
		http.SetCookie(w, j.base(name, "", -1, time.Unix(0, 0)))
	}
}
