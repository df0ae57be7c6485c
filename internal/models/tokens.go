// Retail CMS - Digital Signage Content Management Gateway
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/retailcms

package models

import (
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// DefaultAccessTokenLifetime is assumed when the backend reports no expiry
// and the access token is not a JWT with an exp claim.
const DefaultAccessTokenLifetime = 5 * time.Minute

// TokenSet is the response of the backend login and refresh endpoints.
type TokenSet struct {
	AccessToken  string     `json:"access_token"`
	RefreshToken string     `json:"refresh_token,omitempty"`
	TokenType    string     `json:"token_type,omitempty"`
	ExpiresIn    int64      `json:"expires_in,omitempty"` // seconds
	ExpiresAt    *time.Time `json:"expires_at,omitempty"`
	User         *User      `json:"user,omitempty"`
}

// AccessExpiry returns when the access token expires. It prefers expires_at,
// then expires_in relative to now, then the exp claim of a JWT access token.
// The JWT is read without verification; the backend verifies it, the gateway
// only needs the timestamp.
func (t *TokenSet) AccessExpiry(now time.Time) time.Time {
	if t.ExpiresAt != nil && !t.ExpiresAt.IsZero() {
		return *t.ExpiresAt
	}
	if t.ExpiresIn > 0 {
		return now.Add(time.Duration(t.ExpiresIn) * time.Second)
	}
	claims := jwt.RegisteredClaims{}
	if _, _, err := jwt.NewParser().ParseUnverified(t.AccessToken, &claims); err == nil && claims.ExpiresAt != nil {
		return claims.ExpiresAt.Time
	}
	return now.Add(DefaultAccessTokenLifetime)
}
