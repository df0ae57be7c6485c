// Retail CMS - Digital Signage Content Management Gateway
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/retailcms

package config

import "time"

// Config is the complete gateway configuration.
type Config struct {
	Backend  BackendConfig  `koanf:"backend"`
	Upload   UploadConfig   `koanf:"upload"`
	Server   ServerConfig   `koanf:"server"`
	Security SecurityConfig `koanf:"security"`
	Logging  LoggingConfig  `koanf:"logging"`
}

// BackendConfig points at the REST service that owns assets, devices,
// playlists and playlist groups.
type BackendConfig struct {
	URL         string        `koanf:"url"`
	Timeout     time.Duration `koanf:"timeout"`
	LoginPath   string        `koanf:"login_path"`
	RefreshPath string        `koanf:"refresh_path"`
	HealthPath  string        `koanf:"health_path"`

	// Circuit breaker. Only 5xx responses and transport errors count as failures.
	BreakerMaxRequests  uint32        `koanf:"breaker_max_requests"` // trial requests allowed while half-open
	BreakerInterval     time.Duration `koanf:"breaker_interval"`     // closed-state counter reset
	BreakerTimeout      time.Duration `koanf:"breaker_timeout"`      // open -> half-open
	BreakerMinRequests  uint32        `koanf:"breaker_min_requests"`
	BreakerFailureRatio float64       `koanf:"breaker_failure_ratio"`
}

// UploadConfig configures the tus upload proxy.
type UploadConfig struct {
	// URL is the upstream tus creation endpoint. Defaults to <backend.url>/files/.
	URL string `koanf:"url"`

	// PublicBaseURL is prepended to rewritten Location headers. When empty the
	// scheme and host of the incoming request are used.
	PublicBaseURL string `koanf:"public_base_url"`

	MaxChunkBytes         int64         `koanf:"max_chunk_bytes"`
	ResponseHeaderTimeout time.Duration `koanf:"response_header_timeout"`
	CreationsPerMinute    int           `koanf:"creations_per_minute"` // per user, 0 disables
	CreationBurst         int           `koanf:"creation_burst"`
}

// ServerConfig holds HTTP listener settings.
type ServerConfig struct {
	Host            string        `koanf:"host"`
	Port            int           `koanf:"port"`
	Timeout         time.Duration `koanf:"timeout"`
	ShutdownTimeout time.Duration `koanf:"shutdown_timeout"`
	Environment     string        `koanf:"environment"` // development or production
	StaticDir       string        `koanf:"static_dir"`  // prebuilt frontend, optional
}

// SecurityConfig holds session, authorization and rate limit settings.
type SecurityConfig struct {
	SessionSecret      string        `koanf:"session_secret"`
	TokenEncryptionKey string        `koanf:"token_encryption_key"` // falls back to session_secret
	CookieName         string        `koanf:"cookie_name"`
	CookieSecure       bool          `koanf:"cookie_secure"`
	CookieDomain       string        `koanf:"cookie_domain"`
	SessionMaxAge      time.Duration `koanf:"session_max_age"`
	RefreshLeeway      time.Duration `koanf:"refresh_leeway"`

	// Revoked session store: "memory" or "badger".
	SessionStore            string        `koanf:"session_store"`
	SessionStorePath        string        `koanf:"session_store_path"`
	DenylistCleanupInterval time.Duration `koanf:"denylist_cleanup_interval"`

	AuthzEnabled    bool   `koanf:"authz_enabled"`
	DefaultRole     string `koanf:"default_role"`
	AuthzPolicyPath string `koanf:"authz_policy_path"` // CSV policy file, embedded policy when empty

	RateLimitReqs        int           `koanf:"rate_limit_reqs"`
	RateLimitWindow      time.Duration `koanf:"rate_limit_window"`
	LoginRateLimitReqs   int           `koanf:"login_rate_limit_reqs"`
	LoginRateLimitWindow time.Duration `koanf:"login_rate_limit_window"`
	RateLimitDisabled    bool          `koanf:"rate_limit_disabled"`
	CORSOrigins          []string      `koanf:"cors_origins"`

	// TrustedProxies lists IPs or CIDRs whose X-Forwarded-For and X-Real-IP
	// headers are believed. Other peers are keyed by their socket address.
	TrustedProxies []string `koanf:"trusted_proxies"`
}

// LoggingConfig mirrors logging.Config.
type LoggingConfig struct {
	Level  string `koanf:"level"`
	Format string `koanf:"format"`
	Caller bool   `koanf:"caller"`
}

// IsProduction reports whether the gateway runs with production checks.
func (c *Config) IsProduction() bool {
	return c.Server.Environment == "production" || c.Server.Environment == "prod"
}

// EncryptionKey returns the key material used for token encryption.
func (c *SecurityConfig) EncryptionKey() string {
	if c.TokenEncryptionKey != "" {
		return c.TokenEncryptionKey
	}
	return c.SessionSecret
}
