// Retail CMS - Digital Signage Content Management Gateway
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/retailcms

package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "retailcms"

var (
	// HTTP surface
	APIRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "api_requests_total",
			Help:      "Total number of HTTP requests handled by the gateway",
		},
		[]string{"method", "endpoint", "status"},
	)

	APIRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "api_request_duration_seconds",
			Help:      "HTTP request latency in seconds",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"method", "endpoint"},
	)

	APIActiveRequests = promauto.NewGauge(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "api_active_requests",
			Help:      "Number of HTTP requests currently in flight",
		},
	)

	APIRateLimitHits = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "api_rate_limit_hits_total",
			Help:      "Requests rejected by a rate limiter",
		},
		[]string{"limiter"}, // "api", "login", "upload"
	)

	// Backend
	BackendRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "backend_requests_total",
			Help:      "Requests forwarded to the CMS backend",
		},
		[]string{"method", "resource", "status"}, // status "error" for transport failures
	)

	BackendRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "backend_request_duration_seconds",
			Help:      "CMS backend round-trip latency in seconds",
			Buckets:   []float64{.01, .025, .05, .1, .25, .5, 1, 2.5, 5, 10, 30},
		},
		[]string{"method", "resource"},
	)

	CircuitBreakerState = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "circuit_breaker_state",
			Help:      "Circuit breaker state (0=closed, 1=half-open, 2=open)",
		},
		[]string{"name"},
	)

	CircuitBreakerRequests = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "circuit_breaker_requests_total",
			Help:      "Requests through a circuit breaker",
		},
		[]string{"name", "result"}, // "success", "failure", "rejected"
	)

	CircuitBreakerTransitions = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "circuit_breaker_state_transitions_total",
			Help:      "Circuit breaker state transitions",
		},
		[]string{"name", "from_state", "to_state"},
	)

	// Sessions and authorization
	AuthLogins = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "auth_logins_total",
			Help:      "Login attempts by result",
		},
		[]string{"result"}, // "success", "invalid_credentials", "error"
	)

	AuthTokenRefreshes = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "auth_token_refreshes_total",
			Help:      "Access token refreshes against the backend by result",
		},
		[]string{"result"}, // "success", "failure"
	)

	AuthRevokedSessions = promauto.NewGauge(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "auth_revoked_sessions",
			Help:      "Entries in the revoked session denylist",
		},
	)

	AuthzDecisions = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "authz_decisions_total",
			Help:      "Authorization decisions by result",
		},
		[]string{"result"}, // "allow", "deny", "error"
	)

	// Uploads
	UploadRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "upload_requests_total",
			Help:      "tus requests proxied to the upload endpoint",
		},
		[]string{"method", "status"},
	)

	UploadBytesTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "upload_bytes_total",
			Help:      "Request body bytes streamed to the upload endpoint",
		},
	)
)

// RecordAPIRequest records one handled HTTP request.
func RecordAPIRequest(method, endpoint, status string, duration time.Duration) {
	APIRequestsTotal.WithLabelValues(method, endpoint, status).Inc()
	APIRequestDuration.WithLabelValues(method, endpoint).Observe(duration.Seconds())
}

// TrackActiveRequest adjusts the in-flight gauge.
func TrackActiveRequest(inc bool) {
	if inc {
		APIActiveRequests.Inc()
	} else {
		APIActiveRequests.Dec()
	}
}

// RecordRateLimitHit counts a rejected request for the named limiter.
func RecordRateLimitHit(limiter string) {
	APIRateLimitHits.WithLabelValues(limiter).Inc()
}

// RecordBackendRequest records one backend round trip. status is the HTTP
// status code as text, or "error" when no response was received.
func RecordBackendRequest(method, resource, status string, duration time.Duration) {
	BackendRequestsTotal.WithLabelValues(method, resource, status).Inc()
	BackendRequestDuration.WithLabelValues(method, resource).Observe(duration.Seconds())
}

// RecordLogin counts a login attempt.
func RecordLogin(result string) {
	AuthLogins.WithLabelValues(result).Inc()
}

// RecordTokenRefresh counts a refresh attempt.
func RecordTokenRefresh(success bool) {
	if success {
		AuthTokenRefreshes.WithLabelValues("success").Inc()
		return
	}
	AuthTokenRefreshes.WithLabelValues("failure").Inc()
}

// SetRevokedSessions sets the denylist size gauge.
func SetRevokedSessions(n int) {
	AuthRevokedSessions.Set(float64(n))
}

// RecordAuthzDecision counts an authorization result.
func RecordAuthzDecision(result string) {
	AuthzDecisions.WithLabelValues(result).Inc()
}

// RecordUploadRequest counts one proxied tus request.
func RecordUploadRequest(method, status string) {
	UploadRequestsTotal.WithLabelValues(method, status).Inc()
}

// AddUploadBytes adds n streamed body bytes.
func AddUploadBytes(n int64) {
	if n > 0 {
		UploadBytesTotal.Add(float64(n))
	}
}
