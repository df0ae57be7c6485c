// Retail CMS - Digital Signage Content Management Gateway
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/retailcms

package config

import (
	"errors"
	"fmt"
	"net/netip"
	"net/url"
	"os"
	"slices"
	"strings"
	"time"
)

// MinSessionSecretLength is the shortest accepted SESSION_SECRET.
const MinSessionSecretLength = 32

// ValidRoles are the roles the authorization policy knows about.
var ValidRoles = []string{"viewer", "editor", "admin"}

// ErrInvalidConfig wraps every validation failure.
var ErrInvalidConfig = errors.New("invalid configuration")

// Validate checks required settings and value ranges.
func (c *Config) Validate() error {
	checks := []func() error{
		c.validateBackend,
		c.validateUpload,
		c.validateServer,
		c.validateSession,
		c.validateAuthz,
		c.validateRateLimits,
		c.validateTrustedProxies,
		c.validateCORS,
		c.validateLogging,
	}
	for _, check := range checks {
		if err := check(); err != nil {
			return fmt.Errorf("%w: %w", ErrInvalidConfig, err)
		}
	}
	return nil
}

func (c *Config) validateBackend() error {
	if c.Backend.URL == "" {
		return errors.New("BACKEND_URL is required")
	}
	if err := validateHTTPURL("BACKEND_URL", c.Backend.URL); err != nil {
		return err
	}
	if c.Backend.Timeout <= 0 {
		return errors.New("BACKEND_TIMEOUT must be positive")
	}
	for name, p := range map[string]string{
		"BACKEND_LOGIN_PATH":   c.Backend.LoginPath,
		"BACKEND_REFRESH_PATH": c.Backend.RefreshPath,
		"BACKEND_HEALTH_PATH":  c.Backend.HealthPath,
	} {
		if !strings.HasPrefix(p, "/") {
			return fmt.Errorf("%s must start with '/', got %q", name, p)
		}
	}
	if c.Backend.BreakerFailureRatio <= 0 || c.Backend.BreakerFailureRatio > 1 {
		return fmt.Errorf("BACKEND_BREAKER_FAILURE_RATIO must be in (0, 1], got %v", c.Backend.BreakerFailureRatio)
	}
	if c.Backend.BreakerTimeout <= 0 {
		return errors.New("BACKEND_BREAKER_TIMEOUT must be positive")
	}
	return nil
}

func (c *Config) validateUpload() error {
	if c.Upload.URL == "" {
		return errors.New("UPLOAD_URL is required")
	}
	if err := validateHTTPURL("UPLOAD_URL", c.Upload.URL); err != nil {
		return err
	}
	if c.Upload.PublicBaseURL != "" {
		if err := validateHTTPURL("UPLOAD_PUBLIC_BASE_URL", c.Upload.PublicBaseURL); err != nil {
			return err
		}
	}
	if c.Upload.MaxChunkBytes <= 0 {
		return fmt.Errorf("UPLOAD_MAX_CHUNK_BYTES must be positive, got %d", c.Upload.MaxChunkBytes)
	}
	if c.Upload.CreationsPerMinute < 0 {
		return fmt.Errorf("UPLOAD_CREATIONS_PER_MINUTE must not be negative, got %d", c.Upload.CreationsPerMinute)
	}
	return nil
}

func (c *Config) validateServer() error {
	if c.Server.Port < 1 || c.Server.Port > 65535 {
		return fmt.Errorf("HTTP_PORT must be between 1 and 65535, got %d", c.Server.Port)
	}
	if c.Server.Timeout <= 0 {
		return errors.New("HTTP_TIMEOUT must be positive")
	}
	switch c.Server.Environment {
	case "development", "dev", "production", "prod", "test":
	default:
		return fmt.Errorf("ENVIRONMENT must be development, production or test, got %q", c.Server.Environment)
	}
	return nil
}

func (c *Config) validateSession() error {
	s := &c.Security
	if len(s.SessionSecret) < MinSessionSecretLength {
		return fmt.Errorf("SESSION_SECRET must be at least %d characters", MinSessionSecretLength)
	}
	if s.TokenEncryptionKey != "" && len(s.TokenEncryptionKey) < MinSessionSecretLength {
		return fmt.Errorf("TOKEN_ENCRYPTION_KEY must be at least %d characters", MinSessionSecretLength)
	}
	if s.CookieName == "" {
		return errors.New("SESSION_COOKIE_NAME must not be empty")
	}
	if s.SessionMaxAge < time.Minute {
		return fmt.Errorf("SESSION_MAX_AGE must be at least 1m, got %v", s.SessionMaxAge)
	}
	if s.RefreshLeeway < 0 || s.RefreshLeeway >= s.SessionMaxAge {
		return fmt.Errorf("SESSION_REFRESH_LEEWAY must be in [0, SESSION_MAX_AGE), got %v", s.RefreshLeeway)
	}
	if c.IsProduction() && !s.CookieSecure {
		return errors.New("SESSION_COOKIE_SECURE=false is not allowed in production")
	}

	switch s.SessionStore {
	case "memory":
	case "badger":
		if s.SessionStorePath == "" {
			return errors.New("SESSION_STORE_PATH is required when SESSION_STORE=badger")
		}
	default:
		return fmt.Errorf("SESSION_STORE must be memory or badger, got %q", s.SessionStore)
	}
	if s.DenylistCleanupInterval <= 0 {
		return errors.New("DENYLIST_CLEANUP_INTERVAL must be positive")
	}
	return nil
}

func (c *Config) validateAuthz() error {
	if !slices.Contains(ValidRoles, c.Security.DefaultRole) {
		return fmt.Errorf("DEFAULT_ROLE must be one of %v, got %q", ValidRoles, c.Security.DefaultRole)
	}
	if p := c.Security.AuthzPolicyPath; p != "" {
		if _, err := os.Stat(p); err != nil {
			return fmt.Errorf("AUTHZ_POLICY_PATH: %w", err)
		}
	}
	return nil
}

func (c *Config) validateRateLimits() error {
	if c.Security.RateLimitDisabled {
		return nil
	}
	if c.Security.RateLimitReqs < 1 {
		return fmt.Errorf("RATE_LIMIT_REQUESTS must be at least 1, got %d", c.Security.RateLimitReqs)
	}
	if c.Security.LoginRateLimitReqs < 1 {
		return fmt.Errorf("LOGIN_RATE_LIMIT_REQUESTS must be at least 1, got %d", c.Security.LoginRateLimitReqs)
	}
	if c.Security.RateLimitWindow < time.Second {
		return fmt.Errorf("RATE_LIMIT_WINDOW must be at least 1s, got %v", c.Security.RateLimitWindow)
	}
	if c.Security.LoginRateLimitWindow < time.Second {
		return fmt.Errorf("LOGIN_RATE_LIMIT_WINDOW must be at least 1s, got %v", c.Security.LoginRateLimitWindow)
	}
	return nil
}

// validateTrustedProxies accepts plain IPs and CIDRs.
func (c *Config) validateTrustedProxies() error {
	for _, p := range c.Security.TrustedProxies {
		if _, err := netip.ParsePrefix(p); err == nil {
			continue
		}
		if _, err := netip.ParseAddr(p); err != nil {
			return fmt.Errorf("TRUSTED_PROXIES entry %q is not an IP or CIDR", p)
		}
	}
	return nil
}

// validateCORS rejects a wildcard origin in production: session cookies are
// credentials, so any origin could act on behalf of a signed-in user.
func (c *Config) validateCORS() error {
	if c.IsProduction() && slices.Contains(c.Security.CORSOrigins, "*") {
		return errors.New("CORS_ORIGINS=* is not allowed in production; list the allowed origins explicitly")
	}
	return nil
}

func (c *Config) validateLogging() error {
	switch strings.ToLower(c.Logging.Level) {
	case "trace", "debug", "info", "warn", "warning", "error", "fatal", "panic", "disabled":
	default:
		return fmt.Errorf("LOG_LEVEL %q is not a valid level", c.Logging.Level)
	}
	switch c.Logging.Format {
	case "json", "console":
	default:
		return fmt.Errorf("LOG_FORMAT must be json or console, got %q", c.Logging.Format)
	}
	return nil
}

func validateHTTPURL(name, raw string) error {
	u, err := url.Parse(raw)
	if err != nil {
		return fmt.Errorf("%s is not a valid URL: %w", name, err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return fmt.Errorf("%s must use http or https, got %q", name, raw)
	}
	if u.Host == "" {
		return fmt.Errorf("%s must include a host, got %q", name, raw)
	}
	return nil
}
