// Retail CMS - Digital Signage Content Management Gateway
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/retailcms

package api

import (
	"context"
	"net/http"
	"time"

	"github.com/tomtom215/retailcms/internal/api/respond"
	"github.com/tomtom215/retailcms/internal/logging"
)

// Pinger checks a dependency. *backend.Client implements it.
type Pinger interface {
	Ping(ctx context.Context) error
}

// BreakerReporter exposes a circuit breaker state.
type BreakerReporter interface {
	BreakerState() string
}

const readinessTimeout = 3 * time.Second

// Health serves the liveness and readiness checks.
type Health struct {
	backend   Pinger
	breakers  map[string]BreakerReporter
	startTime time.Time
}

// NewHealth creates the health handlers. breakers is keyed by circuit name.
func NewHealth(backend Pinger, breakers map[string]BreakerReporter) *Health {
	return &Health{
		backend:   backend,
		breakers:  breakers,
		startTime: time.Now(),
	}
}

// Live returns 200 while the process runs, regardless of dependencies.
func (h *Health) Live(w http.ResponseWriter, r *http.Request) {
	respond.JSON(w, r, http.StatusOK, map[string]interface{}{
		"alive":  true,
		"uptime": time.Since(h.startTime).Seconds(),
	})
}

// Ready returns 200 only when the backend answers its health endpoint.
func (h *Health) Ready(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), readinessTimeout)
	defer cancel()

	backendOK := true
	if err := h.backend.Ping(ctx); err != nil {
		backendOK = false
		logging.Ctx(r.Context()).Warn().Err(err).Msg("Readiness check failed: backend")
	}

	circuits := make(map[string]string, len(h.breakers))
	for name, b := range h.breakers {
		circuits[name] = b.BreakerState()
	}

	status := http.StatusOK
	if !backendOK {
		status = http.StatusServiceUnavailable
	}
	respond.JSON(w, r, status, map[string]interface{}{
		"ready":             backendOK,
		"backend_connected": backendOK,
		"circuits":          circuits,
		"uptime":            time.Since(h.startTime).Seconds(),
	})
}
