// Retail CMS - Digital Signage Content Management Gateway
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/retailcms

package logging

import (
	"regexp"
	"strings"

	"github.com/rs/zerolog"
)

// Auth event names written to the "event" field.
const (
	EventLoginSuccess   = "login_success"
	EventLoginFailure   = "login_failure"
	EventLogout         = "logout"
	EventTokenRefresh   = "token_refresh"
	EventSessionRevoked = "session_revoked"
	EventAccessDenied   = "access_denied"
)

// SecurityEvent describes one authentication or authorization event.
type SecurityEvent struct {
	Event     string
	UserID    string
	Email     string
	Role      string
	SessionID string
	IPAddress string
	UserAgent string
	Success   bool
	Error     string
	Details   map[string]string
}

// SecurityLogger writes auth events with identifiers masked.
// Tokens are never logged, even masked.
type SecurityLogger struct {
	logger zerolog.Logger
}

// NewSecurityLogger returns a SecurityLogger on the global logger.
func NewSecurityLogger() *SecurityLogger {
	return &SecurityLogger{logger: With().Str("component", "auth").Logger()}
}

// NewSecurityLoggerWithLogger returns a SecurityLogger on the given logger.
//
//nolint:gocritic // zerolog.Logger is passed by value by design
func NewSecurityLoggerWithLogger(logger zerolog.Logger) *SecurityLogger {
	return &SecurityLogger{logger: logger.With().Str("component", "auth").Logger()}
}

// LogEvent writes a single event. Failed events are logged at warn.
func (l *SecurityLogger) LogEvent(ev *SecurityEvent) {
	e := l.logger.Info()
	status := "success"
	if !ev.Success {
		e = l.logger.Warn()
		status = "failed"
	}
	e = e.Str("event", ev.Event).Str("status", status)

	if ev.UserID != "" {
		e = e.Str("user_id", SanitizeUserID(ev.UserID))
	}
	if ev.Email != "" {
		e = e.Str("email", SanitizeEmail(ev.Email))
	}
	if ev.Role != "" {
		e = e.Str("role", ev.Role)
	}
	if ev.SessionID != "" {
		e = e.Str("session_id", SanitizeSessionID(ev.SessionID))
	}
	if ev.IPAddress != "" {
		e = e.Str("ip", ev.IPAddress)
	}
	if ev.UserAgent != "" {
		e = e.Str("user_agent", truncate(ev.UserAgent, 100))
	}
	if ev.Error != "" && !ev.Success {
		e = e.Str("error", SanitizeError(ev.Error))
	}
	for k, v := range ev.Details {
		e = e.Str(k, SanitizeValue(k, v))
	}
	e.Msg("")
}

// LogLoginSuccess records a successful backend login.
func (l *SecurityLogger) LogLoginSuccess(userID, email, role, sessionID, ip, userAgent string) {
	l.LogEvent(&SecurityEvent{
		Event:     EventLoginSuccess,
		UserID:    userID,
		Email:     email,
		Role:      role,
		SessionID: sessionID,
		IPAddress: ip,
		UserAgent: userAgent,
		Success:   true,
	})
}

// LogLoginFailure records a rejected login attempt.
func (l *SecurityLogger) LogLoginFailure(email, ip, userAgent, reason string) {
	l.LogEvent(&SecurityEvent{
		Event:     EventLoginFailure,
		Email:     email,
		IPAddress: ip,
		UserAgent: userAgent,
		Error:     reason,
	})
}

// LogLogout records a logout and the revoked session.
func (l *SecurityLogger) LogLogout(userID, sessionID, ip string) {
	l.LogEvent(&SecurityEvent{
		Event:     EventLogout,
		UserID:    userID,
		SessionID: sessionID,
		IPAddress: ip,
		Success:   true,
	})
}

// LogTokenRefresh records an access token refresh attempt against the backend.
func (l *SecurityLogger) LogTokenRefresh(userID, sessionID string, success bool, reason string) {
	l.LogEvent(&SecurityEvent{
		Event:     EventTokenRefresh,
		UserID:    userID,
		SessionID: sessionID,
		Success:   success,
		Error:     reason,
	})
}

// LogSessionRevoked records a request that presented a revoked session.
func (l *SecurityLogger) LogSessionRevoked(userID, sessionID, ip string) {
	l.LogEvent(&SecurityEvent{
		Event:     EventSessionRevoked,
		UserID:    userID,
		SessionID: sessionID,
		IPAddress: ip,
	})
}

// LogAccessDenied records an authorization denial.
func (l *SecurityLogger) LogAccessDenied(userID, role, method, path string) {
	l.LogEvent(&SecurityEvent{
		Event:   EventAccessDenied,
		UserID:  userID,
		Role:    role,
		Error:   "role not permitted",
		Details: map[string]string{"method": method, "path": path},
	})
}

// SanitizeUserID keeps the first four characters of long IDs.
func SanitizeUserID(id string) string {
	if len(id) <= 8 {
		return id
	}
	return id[:4] + "****"
}

// SanitizeEmail masks the local part: "jane.doe@shop.example" -> "j***@shop.example".
func SanitizeEmail(email string) string {
	at := strings.LastIndex(email, "@")
	if at <= 0 {
		return truncate(maskAll(email), 8)
	}
	return email[:1] + "***" + email[at:]
}

// SanitizeSessionID shows only the first eight characters.
func SanitizeSessionID(id string) string {
	if len(id) <= 8 {
		return "****"
	}
	return id[:8] + "..."
}

var bearerPattern = regexp.MustCompile(`(?i)(bearer\s+)[A-Za-z0-9\-._~+/]+=*`)

// SanitizeError strips bearer tokens from error text and caps its length.
func SanitizeError(msg string) string {
	return truncate(bearerPattern.ReplaceAllString(msg, "${1}[REDACTED]"), 200)
}

// SanitizeValue redacts values whose key looks sensitive.
func SanitizeValue(key, value string) string {
	k := strings.ToLower(key)
	for _, s := range []string{"token", "secret", "password", "authorization", "cookie", "key"} {
		if strings.Contains(k, s) {
			return "[REDACTED]"
		}
	}
	return truncate(value, 200)
}

func maskAll(s string) string {
	return strings.Repeat("*", len(s))
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
