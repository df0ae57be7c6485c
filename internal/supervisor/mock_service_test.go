// Retail CMS - Digital Signage Content Management Gateway
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/retailcms

package supervisor

import (
	"context"
	"errors"
	"sync/atomic"
)

// mockService implements suture.Service and counts its runs.
type mockService struct {
	name       string
	startCount atomic.Int32
	stopCount  atomic.Int32
	failsLeft  atomic.Int32
}

func newMockService(name string) *mockService {
	return &mockService{name: name}
}

func (m *mockService) Serve(ctx context.Context) error {
	m.startCount.Add(1)
	defer m.stopCount.Add(1)

	if m.failsLeft.Add(-1) >= 0 {
		return errors.New("simulated failure")
	}

	<-ctx.Done()
	return ctx.Err()
}

// failTimes makes the next n runs fail immediately.
func (m *mockService) failTimes(n int32) {
	m.failsLeft.Store(n)
}

func (m *mockService) String() string {
	return m.name
}
