// Retail CMS - Digital Signage Content Management Gateway
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/retailcms

package backend

import (
	"context"
	"errors"
	"fmt"
	"time"

	gobreaker "github.com/sony/gobreaker/v2"

	"github.com/tomtom215/retailcms/internal/config"
	"github.com/tomtom215/retailcms/internal/logging"
	"github.com/tomtom215/retailcms/internal/metrics"
)

// BreakerSettings configures a Breaker.
type BreakerSettings struct {
	Name         string
	MaxRequests  uint32        // calls allowed while half-open
	Interval     time.Duration // closed-state counter reset
	Timeout      time.Duration // open -> half-open
	MinRequests  uint32        // calls before the ratio is considered
	FailureRatio float64
}

// BreakerSettingsFromConfig reads breaker settings from the backend config.
func BreakerSettingsFromConfig(name string, cfg *config.BackendConfig) BreakerSettings {
	return BreakerSettings{
		Name:         name,
		MaxRequests:  cfg.BreakerMaxRequests,
		Interval:     cfg.BreakerInterval,
		Timeout:      cfg.BreakerTimeout,
		MinRequests:  cfg.BreakerMinRequests,
		FailureRatio: cfg.BreakerFailureRatio,
	}
}

// upstreamFailure marks a completed call whose result must still be
// returned but which counts against the breaker (a 5xx).
type upstreamFailure struct {
	status int
}

func (e *upstreamFailure) Error() string {
	return fmt.Sprintf("upstream status %d", e.status)
}

// UpstreamFailure wraps a 5xx status so that Breaker.Execute counts it as a
// failure while still returning the result to the caller with a nil error.
func UpstreamFailure(status int) error {
	return &upstreamFailure{status: status}
}

// clientFault marks a call that failed because of the caller, such as an
// inbound body that was too large or cut short. It never counts against
// the breaker.
type clientFault struct {
	err error
}

func (e *clientFault) Error() string { return e.err.Error() }
func (e *clientFault) Unwrap() error { return e.err }

// ClientFault wraps err so that Breaker.Execute passes it through without
// recording an upstream failure. errors.Is and errors.As still see err.
func ClientFault(err error) error {
	if err == nil {
		return nil
	}
	return &clientFault{err: err}
}

// Breaker is a typed circuit breaker with metrics and logging.
type Breaker[T any] struct {
	cb   *gobreaker.CircuitBreaker[T]
	name string
}

// NewBreaker creates a breaker. The circuit opens once at least MinRequests
// calls were made in the current interval and the failure ratio reaches
// FailureRatio.
func NewBreaker[T any](s BreakerSettings) *Breaker[T] {
	metrics.CircuitBreakerState.WithLabelValues(s.Name).Set(0)

	cb := gobreaker.NewCircuitBreaker[T](gobreaker.Settings{
		Name:        s.Name,
		MaxRequests: s.MaxRequests,
		Interval:    s.Interval,
		Timeout:     s.Timeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			if counts.Requests < s.MinRequests {
				return false
			}
			ratio := float64(counts.TotalFailures) / float64(counts.Requests)
			if ratio >= s.FailureRatio {
				logging.Warn().
					Str("breaker", s.Name).
					Uint32("failures", counts.TotalFailures).
					Uint32("requests", counts.Requests).
					Float64("failure_ratio", ratio).
					Msg("Opening circuit")
				return true
			}
			return false
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			fromStr, toStr := stateToString(from), stateToString(to)
			logging.Info().Str("breaker", name).Str("from", fromStr).Str("to", toStr).Msg("Circuit breaker state change")
			metrics.CircuitBreakerState.WithLabelValues(name).Set(stateToFloat(to))
			metrics.CircuitBreakerTransitions.WithLabelValues(name, fromStr, toStr).Inc()
		},
		IsSuccessful: func(err error) bool {
			var cf *clientFault
			return err == nil || errors.Is(err, context.Canceled) || errors.As(err, &cf)
		},
	})

	return &Breaker[T]{cb: cb, name: s.Name}
}

// Execute runs fn through the breaker. Rejections are returned as
// ErrCircuitOpen. Results flagged with UpstreamFailure are returned with a
// nil error.
func (b *Breaker[T]) Execute(fn func() (T, error)) (T, error) {
	result, err := b.cb.Execute(fn)

	var uf *upstreamFailure
	var cf *clientFault
	switch {
	case err == nil:
		metrics.CircuitBreakerRequests.WithLabelValues(b.name, "success").Inc()
		return result, nil
	case errors.As(err, &cf):
		metrics.CircuitBreakerRequests.WithLabelValues(b.name, "client_error").Inc()
		return result, err
	case errors.As(err, &uf):
		metrics.CircuitBreakerRequests.WithLabelValues(b.name, "failure").Inc()
		return result, nil
	case errors.Is(err, gobreaker.ErrOpenState), errors.Is(err, gobreaker.ErrTooManyRequests):
		metrics.CircuitBreakerRequests.WithLabelValues(b.name, "rejected").Inc()
		var zero T
		return zero, fmt.Errorf("%w: %s", ErrCircuitOpen, b.name)
	default:
		metrics.CircuitBreakerRequests.WithLabelValues(b.name, "failure").Inc()
		return result, err
	}
}

// State returns "closed", "half-open" or "open".
func (b *Breaker[T]) State() string {
	return stateToString(b.cb.State())
}

func stateToFloat(state gobreaker.State) float64 {
	switch state {
	case gobreaker.StateClosed:
		return 0
	case gobreaker.StateHalfOpen:
		return 1
	case gobreaker.StateOpen:
		return 2
	default:
		return -1
	}
}

func stateToString(state gobreaker.State) string {
	switch state {
	case gobreaker.StateClosed:
		return "closed"
	case gobreaker.StateHalfOpen:
		return "half-open"
	case gobreaker.StateOpen:
		return "open"
	default:
		return "unknown"
	}
}
