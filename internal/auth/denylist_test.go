// Retail CMS - Digital Signage Content Management Gateway
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/retailcms

package auth

import (
	"context"
	"errors"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/dgraph-io/badger/v4"

	"github.com/tomtom215/retailcms/internal/config"
)

func newTestBadgerDenylist(t *testing.T) *BadgerDenylist {
	t.Helper()
	opts := badger.DefaultOptions("").WithInMemory(true).WithLogger(nil)
	db, err := badger.Open(opts)
	if err != nil {
		t.Fatalf("open badger: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })
	return NewBadgerDenylist(db, "")
}

// denylistContract runs the behaviour every Denylist must share.
func denylistContract(t *testing.T, newList func(t *testing.T) Denylist) {
	ctx := context.Background()

	t.Run("revoke_and_check", func(t *testing.T) {
		d := newList(t)
		if err := d.Revoke(ctx, "jti-1", time.Now().Add(time.Hour)); err != nil {
			t.Fatalf("Revoke: %v", err)
		}
		revoked, err := d.IsRevoked(ctx, "jti-1")
		if err != nil {
			t.Fatalf("IsRevoked: %v", err)
		}
		if !revoked {
			t.Error("expected jti-1 to be revoked")
		}
	})

	t.Run("unknown_jti", func(t *testing.T) {
		d := newList(t)
		revoked, err := d.IsRevoked(ctx, "never-seen")
		if err != nil {
			t.Fatalf("IsRevoked: %v", err)
		}
		if revoked {
			t.Error("unknown jti reported as revoked")
		}
	})

	t.Run("size", func(t *testing.T) {
		d := newList(t)
		for _, jti := range []string{"a", "b", "c"} {
			if err := d.Revoke(ctx, jti, time.Now().Add(time.Hour)); err != nil {
				t.Fatalf("Revoke(%s): %v", jti, err)
			}
		}
		n, err := d.Size(ctx)
		if err != nil {
			t.Fatalf("Size: %v", err)
		}
		if n != 3 {
			t.Errorf("Size() = %d, want 3", n)
		}
	})

	t.Run("closed", func(t *testing.T) {
		d := newList(t)
		if err := d.Close(); err != nil {
			t.Fatalf("Close: %v", err)
		}
		if err := d.Revoke(ctx, "x", time.Now().Add(time.Hour)); !errors.Is(err, ErrDenylistClosed) {
			t.Errorf("Revoke after Close = %v, want ErrDenylistClosed", err)
		}
		if _, err := d.IsRevoked(ctx, "x"); !errors.Is(err, ErrDenylistClosed) {
			t.Errorf("IsRevoked after Close = %v, want ErrDenylistClosed", err)
		}
		if _, err := d.CleanupExpired(ctx); !errors.Is(err, ErrDenylistClosed) {
			t.Errorf("CleanupExpired after Close = %v, want ErrDenylistClosed", err)
		}
	})
}

func TestMemoryDenylist(t *testing.T) {
	denylistContract(t, func(t *testing.T) Denylist { return NewMemoryDenylist() })
}

func TestBadgerDenylist(t *testing.T) {
	denylistContract(t, func(t *testing.T) Denylist { return newTestBadgerDenylist(t) })
}

func TestMemoryDenylist_Expiry(t *testing.T) {
	ctx := context.Background()
	d := NewMemoryDenylist()
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	d.now = func() time.Time { return now }

	_ = d.Revoke(ctx, "short", now.Add(time.Minute))
	_ = d.Revoke(ctx, "long", now.Add(time.Hour))

	now = now.Add(2 * time.Minute)

	if revoked, _ := d.IsRevoked(ctx, "short"); revoked {
		t.Error("expired entry still reported as revoked")
	}
	if revoked, _ := d.IsRevoked(ctx, "long"); !revoked {
		t.Error("live entry not reported as revoked")
	}

	removed, err := d.CleanupExpired(ctx)
	if err != nil {
		t.Fatalf("CleanupExpired: %v", err)
	}
	if removed != 1 {
		t.Errorf("CleanupExpired() = %d, want 1", removed)
	}
	if n, _ := d.Size(ctx); n != 1 {
		t.Errorf("Size() = %d, want 1", n)
	}
}

func TestBadgerDenylist_Expiry(t *testing.T) {
	ctx := context.Background()
	d := newTestBadgerDenylist(t)
	now := time.Now()
	d.now = func() time.Time { return now }

	if err := d.Revoke(ctx, "past", now.Add(-time.Minute)); err != nil {
		t.Fatalf("Revoke(past): %v", err)
	}
	if n, _ := d.Size(ctx); n != 0 {
		t.Errorf("already expired entry was stored, Size() = %d", n)
	}

	_ = d.Revoke(ctx, "soon", now.Add(time.Hour))
	now = now.Add(2 * time.Hour)

	if revoked, _ := d.IsRevoked(ctx, "soon"); revoked {
		t.Error("entry past its recorded expiry still reported as revoked")
	}
	removed, err := d.CleanupExpired(ctx)
	if err != nil {
		t.Fatalf("CleanupExpired: %v", err)
	}
	if removed != 1 {
		t.Errorf("CleanupExpired() = %d, want 1", removed)
	}
}

func TestBadgerDenylist_Persistence(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "sessions")

	d, err := OpenBadgerDenylist(path)
	if err != nil {
		t.Fatalf("OpenBadgerDenylist: %v", err)
	}
	if err := d.Revoke(ctx, "persisted", time.Now().Add(time.Hour)); err != nil {
		t.Fatalf("Revoke: %v", err)
	}
	if err := d.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	reopened, err := OpenBadgerDenylist(path)
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	defer reopened.Close()

	revoked, err := reopened.IsRevoked(ctx, "persisted")
	if err != nil {
		t.Fatalf("IsRevoked: %v", err)
	}
	if !revoked {
		t.Error("revocation did not survive reopening the store")
	}
}

func TestMemoryDenylist_Concurrent(t *testing.T) {
	ctx := context.Background()
	d := NewMemoryDenylist()
	exp := time.Now().Add(time.Hour)

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			jti := string(rune('a' + i%26))
			_ = d.Revoke(ctx, jti, exp)
			_, _ = d.IsRevoked(ctx, jti)
		}(i)
	}
	wg.Wait()

	if n, _ := d.Size(ctx); n != 26 {
		t.Errorf("Size() = %d, want 26", n)
	}
}

func TestNewDenylist(t *testing.T) {
	t.Run("memory", func(t *testing.T) {
		d, err := NewDenylist(&config.SecurityConfig{SessionStore: "memory"})
		if err != nil {
			t.Fatalf("NewDenylist: %v", err)
		}
		if _, ok := d.(*MemoryDenylist); !ok {
			t.Errorf("NewDenylist(memory) = %T", d)
		}
	})

	t.Run("badger", func(t *testing.T) {
		d, err := NewDenylist(&config.SecurityConfig{
			SessionStore:     "badger",
			SessionStorePath: filepath.Join(t.TempDir(), "denylist"),
		})
		if err != nil {
			t.Fatalf("NewDenylist: %v", err)
		}
		defer d.Close()
		if _, ok := d.(*BadgerDenylist); !ok {
			t.Errorf("NewDenylist(badger) = %T", d)
		}
	})

	t.Run("badger_without_path", func(t *testing.T) {
		if _, err := NewDenylist(&config.SecurityConfig{SessionStore: "badger"}); err == nil {
			t.Error("expected error without a path")
		}
	})

	t.Run("unknown", func(t *testing.T) {
		if _, err := NewDenylist(&config.SecurityConfig{SessionStore: "redis"}); err == nil {
			t.Error("expected error for unknown store")
		}
	})
}
