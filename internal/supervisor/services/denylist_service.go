// Retail CMS - Digital Signage Content Management Gateway
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/retailcms

package services

import (
	"context"
	"time"

	"github.com/tomtom215/retailcms/internal/logging"
	"github.com/tomtom215/retailcms/internal/metrics"
)

// Denylist is the part of auth.Denylist the cleanup loop needs.
type Denylist interface {
	CleanupExpired(ctx context.Context) (int, error)
	Size(ctx context.Context) (int, error)
}

// DenylistCleanupService periodically drops revoked sessions whose tokens
// have expired anyway and publishes the remaining count.
// Badger entries also carry a TTL.
type DenylistCleanupService struct {
	denylist Denylist
	interval time.Duration
	name     string
}

// NewDenylistCleanupService creates the cleanup loop. A non-positive
// interval defaults to five minutes.
func NewDenylistCleanupService(denylist Denylist, interval time.Duration) *DenylistCleanupService {
	if interval <= 0 {
		interval = 5 * time.Minute
	}
	return &DenylistCleanupService{
		denylist: denylist,
		interval: interval,
		name:     "denylist-cleanup",
	}
}

// Serve implements suture.Service. Cleanup errors are logged and retried on
// the next tick.
func (s *DenylistCleanupService) Serve(ctx context.Context) error {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	s.sweep(ctx)
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			s.sweep(ctx)
		}
	}
}

func (s *DenylistCleanupService) sweep(ctx context.Context) {
	removed, err := s.denylist.CleanupExpired(ctx)
	if err != nil {
		if ctx.Err() == nil {
			logging.Warn().Err(err).Msg("Denylist cleanup failed")
		}
		return
	}
	if removed > 0 {
		logging.Debug().Int("removed", removed).Msg("Expired revocations removed")
	}

	n, err := s.denylist.Size(ctx)
	if err != nil {
		logging.Warn().Err(err).Msg("Denylist size unavailable")
		return
	}
	metrics.SetRevokedSessions(n)
}

// String implements fmt.Stringer.
func (s *DenylistCleanupService) String() string {
	return s.name
}
