// Retail CMS - Digital Signage Content Management Gateway
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/retailcms

package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/structs"
	"github.com/knadh/koanf/v2"
)

// DefaultConfigPaths are searched in order when CONFIG_PATH is unset.
var DefaultConfigPaths = []string{
	"config.yaml",
	"config.yml",
	"/etc/retailcms/config.yaml",
	"/etc/retailcms/config.yml",
}

// ConfigPathEnvVar overrides the config file location.
const ConfigPathEnvVar = "CONFIG_PATH"

func defaultConfig() *Config {
	return &Config{
		Backend: BackendConfig{
			URL:                 "",
			Timeout:             30 * time.Second,
			LoginPath:           "/auth/login",
			RefreshPath:         "/auth/refresh",
			HealthPath:          "/health",
			BreakerMaxRequests:  3,
			BreakerInterval:     time.Minute,
			BreakerTimeout:      30 * time.Second,
			BreakerMinRequests:  5,
			BreakerFailureRatio: 0.6,
		},
		Upload: UploadConfig{
			URL:                   "",
			PublicBaseURL:         "",
			MaxChunkBytes:         64 << 20,
			ResponseHeaderTimeout: time.Minute,
			CreationsPerMinute:    30,
			CreationBurst:         10,
		},
		Server: ServerConfig{
			Host:            "0.0.0.0",
			Port:            3000,
			Timeout:         30 * time.Second,
			ShutdownTimeout: 15 * time.Second,
			Environment:     "development",
			StaticDir:       "",
		},
		Security: SecurityConfig{
			CookieName:              "retailcms_session",
			CookieSecure:            true,
			SessionMaxAge:           24 * time.Hour,
			RefreshLeeway:           30 * time.Second,
			SessionStore:            "memory",
			SessionStorePath:        "/data/sessions",
			DenylistCleanupInterval: 5 * time.Minute,
			AuthzEnabled:            true,
			DefaultRole:             "viewer",
			RateLimitReqs:           300,
			RateLimitWindow:         time.Minute,
			LoginRateLimitReqs:      10,
			LoginRateLimitWindow:    5 * time.Minute,
			RateLimitDisabled:       false,
			CORSOrigins:             []string{},
			TrustedProxies:          []string{},
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
			Caller: false,
		},
	}
}

// Load builds the configuration from defaults, the optional YAML file and
// the environment, then validates it.
func Load() (*Config, error) {
	k := koanf.New(".")

	if err := k.Load(structs.Provider(defaultConfig(), "koanf"), nil); err != nil {
		return nil, fmt.Errorf("failed to load defaults: %w", err)
	}

	if path := findConfigFile(); path != "" {
		if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("failed to load config file %s: %w", path, err)
		}
	}

	if err := k.Load(env.Provider("", ".", envTransformFunc), nil); err != nil {
		return nil, fmt.Errorf("failed to load environment variables: %w", err)
	}

	if err := processSliceFields(k); err != nil {
		return nil, fmt.Errorf("failed to process slice fields: %w", err)
	}

	cfg := &Config{}
	if err := k.Unmarshal("", cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal configuration: %w", err)
	}

	cfg.applyDerivedDefaults()

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}
	return cfg, nil
}

// applyDerivedDefaults fills values that depend on other settings.
func (c *Config) applyDerivedDefaults() {
	c.Backend.URL = strings.TrimRight(c.Backend.URL, "/")
	if c.Upload.URL == "" && c.Backend.URL != "" {
		c.Upload.URL = c.Backend.URL + "/files/"
	}
	c.Upload.PublicBaseURL = strings.TrimRight(c.Upload.PublicBaseURL, "/")
}

func findConfigFile() string {
	if p := os.Getenv(ConfigPathEnvVar); p != "" {
		if _, err := os.Stat(p); err == nil {
			return p
		}
	}
	for _, p := range DefaultConfigPaths {
		if _, err := os.Stat(p); err == nil {
			return p
		}
	}
	return ""
}

var sliceConfigPaths = []string{
	"security.cors_origins",
	"security.trusted_proxies",
}

// processSliceFields splits comma-separated env values for slice fields.
// Values that came from YAML are already slices and are left alone.
func processSliceFields(k *koanf.Koanf) error {
	for _, path := range sliceConfigPaths {
		s, ok := k.Get(path).(string)
		if !ok {
			continue
		}
		parts := make([]string, 0)
		for _, p := range strings.Split(s, ",") {
			if p = strings.TrimSpace(p); p != "" {
				parts = append(parts, p)
			}
		}
		if err := k.Set(path, parts); err != nil {
			return fmt.Errorf("failed to set %s: %w", path, err)
		}
	}
	return nil
}

// envMappings maps lower-cased environment variable names to koanf paths.
var envMappings = map[string]string{
	"backend_url":                   "backend.url",
	"backend_timeout":               "backend.timeout",
	"backend_login_path":            "backend.login_path",
	"backend_refresh_path":          "backend.refresh_path",
	"backend_health_path":           "backend.health_path",
	"backend_breaker_max_requests":  "backend.breaker_max_requests",
	"backend_breaker_interval":      "backend.breaker_interval",
	"backend_breaker_timeout":       "backend.breaker_timeout",
	"backend_breaker_min_requests":  "backend.breaker_min_requests",
	"backend_breaker_failure_ratio": "backend.breaker_failure_ratio",

	"upload_url":                     "upload.url",
	"upload_public_base_url":         "upload.public_base_url",
	"upload_max_chunk_bytes":         "upload.max_chunk_bytes",
	"upload_response_header_timeout": "upload.response_header_timeout",
	"upload_creations_per_minute":    "upload.creations_per_minute",
	"upload_creation_burst":          "upload.creation_burst",

	"http_host":             "server.host",
	"http_port":             "server.port",
	"http_timeout":          "server.timeout",
	"http_shutdown_timeout": "server.shutdown_timeout",
	"environment":           "server.environment",
	"static_dir":            "server.static_dir",

	"session_secret":            "security.session_secret",
	"token_encryption_key":      "security.token_encryption_key",
	"session_cookie_name":       "security.cookie_name",
	"session_cookie_secure":     "security.cookie_secure",
	"session_cookie_domain":     "security.cookie_domain",
	"session_max_age":           "security.session_max_age",
	"session_refresh_leeway":    "security.refresh_leeway",
	"session_store":             "security.session_store",
	"session_store_path":        "security.session_store_path",
	"denylist_cleanup_interval": "security.denylist_cleanup_interval",
	"authz_enabled":             "security.authz_enabled",
	"default_role":              "security.default_role",
	"authz_policy_path":         "security.authz_policy_path",
	"rate_limit_requests":       "security.rate_limit_reqs",
	"rate_limit_window":         "security.rate_limit_window",
	"login_rate_limit_requests": "security.login_rate_limit_reqs",
	"login_rate_limit_window":   "security.login_rate_limit_window",
	"trusted_proxies":           "security.trusted_proxies",
	"disable_rate_limit":        "security.rate_limit_disabled",
	"cors_origins":              "security.cors_origins",

	"log_level":  "logging.level",
	"log_format": "logging.format",
	"log_caller": "logging.caller",
}

// envTransformFunc returns the koanf path for a known variable and "" for
// everything else, which makes koanf skip it.
func envTransformFunc(key string) string {
	return envMappings[strings.ToLower(key)]
}
