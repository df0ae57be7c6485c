// Retail CMS - Digital Signage Content Management Gateway
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/retailcms

package auth

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/dgraph-io/badger/v4"
	"github.com/goccy/go-json"

	"github.com/tomtom215/retailcms/internal/config"
	"github.com/tomtom215/retailcms/internal/logging"
)

// Denylist store types accepted by security.session_store.
const (
	StoreMemory = "memory"
	StoreBadger = "badger"
)

// ErrDenylistClosed is returned after Close.
var ErrDenylistClosed = errors.New("session denylist is closed")

// Denylist remembers revoked session IDs until the session token would have
// expired on its own.
type Denylist interface {
	// Revoke marks jti as revoked until expiresAt.
	Revoke(ctx context.Context, jti string, expiresAt time.Time) error

	// IsRevoked reports whether jti was revoked and has not yet expired.
	IsRevoked(ctx context.Context, jti string) (bool, error)

	// CleanupExpired removes entries past their expiry and returns how many.
	CleanupExpired(ctx context.Context) (int, error)

	// Size returns the approximate number of entries.
	Size(ctx context.Context) (int, error)

	Close() error
}

// revokedEntry is the stored form of a denylist record.
type revokedEntry struct {
	JTI       string    `json:"jti"`
	RevokedAt time.Time `json:"revoked_at"`
	ExpiresAt time.Time `json:"expires_at"`
}

// NewDenylist builds the denylist selected by cfg.SessionStore.
func NewDenylist(cfg *config.SecurityConfig) (Denylist, error) {
	switch cfg.SessionStore {
	case "", StoreMemory:
		return NewMemoryDenylist(), nil
	case StoreBadger:
		return OpenBadgerDenylist(cfg.SessionStorePath)
	default:
		return nil, fmt.Errorf("unknown session store %q", cfg.SessionStore)
	}
}

// MemoryDenylist keeps revocations in a map. They are lost on restart.
type MemoryDenylist struct {
	mu      sync.RWMutex
	entries map[string]revokedEntry
	closed  bool
	now     func() time.Time
}

// NewMemoryDenylist creates an empty in-memory denylist.
func NewMemoryDenylist() *MemoryDenylist {
	return &MemoryDenylist{
		entries: make(map[string]revokedEntry),
		now:     time.Now,
	}
}

// Revoke implements Denylist.
func (d *MemoryDenylist) Revoke(_ context.Context, jti string, expiresAt time.Time) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.closed {
		return ErrDenylistClosed
	}
	d.entries[jti] = revokedEntry{JTI: jti, RevokedAt: d.now(), ExpiresAt: expiresAt}
	return nil
}

// IsRevoked implements Denylist.
func (d *MemoryDenylist) IsRevoked(_ context.Context, jti string) (bool, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()

	if d.closed {
		return false, ErrDenylistClosed
	}
	entry, ok := d.entries[jti]
	if !ok {
		return false, nil
	}
	return d.now().Before(entry.ExpiresAt), nil
}

// CleanupExpired implements Denylist.
func (d *MemoryDenylist) CleanupExpired(_ context.Context) (int, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.closed {
		return 0, ErrDenylistClosed
	}

	now := d.now()
	count := 0
	for jti, entry := range d.entries {
		if !now.Before(entry.ExpiresAt) {
			delete(d.entries, jti)
			count++
		}
	}
	return count, nil
}

// Size implements Denylist.
func (d *MemoryDenylist) Size(_ context.Context) (int, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()

	if d.closed {
		return 0, ErrDenylistClosed
	}
	return len(d.entries), nil
}

// Close implements Denylist.
func (d *MemoryDenylist) Close() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.closed = true
	d.entries = make(map[string]revokedEntry)
	return nil
}

// BadgerDenylist keeps revocations in BadgerDB with a TTL per entry.
type BadgerDenylist struct {
	db     *badger.DB
	prefix []byte
	ownsDB bool
	now    func() time.Time

	closed bool
	mu     sync.RWMutex
}

// OpenBadgerDenylist opens (or creates) a BadgerDB at path and owns it.
func OpenBadgerDenylist(path string) (*BadgerDenylist, error) {
	if path == "" {
		return nil, errors.New("session store path is required for badger")
	}
	opts := badger.DefaultOptions(path).WithLogger(nil)
	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("open badger db for session denylist: %w", err)
	}
	d := NewBadgerDenylist(db, "")
	d.ownsDB = true
	return d, nil
}

// NewBadgerDenylist uses an already open db. Close does not close db.
func NewBadgerDenylist(db *badger.DB, prefix string) *BadgerDenylist {
	if prefix == "" {
		prefix = "revoked:"
	}
	return &BadgerDenylist{
		db:     db,
		prefix: []byte(prefix),
		now:    time.Now,
	}
}

func (d *BadgerDenylist) key(jti string) []byte {
	key := make([]byte, 0, len(d.prefix)+len(jti))
	key = append(key, d.prefix...)
	return append(key, jti...)
}

func (d *BadgerDenylist) isClosed() bool {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.closed
}

// Revoke implements Denylist. Entries that are already expired are ignored.
func (d *BadgerDenylist) Revoke(_ context.Context, jti string, expiresAt time.Time) error {
	if d.isClosed() {
		return ErrDenylistClosed
	}

	now := d.now()
	ttl := expiresAt.Sub(now)
	if ttl <= 0 {
		return nil
	}

	data, err := json.Marshal(revokedEntry{JTI: jti, RevokedAt: now, ExpiresAt: expiresAt})
	if err != nil {
		return fmt.Errorf("encode denylist entry: %w", err)
	}

	err = d.db.Update(func(txn *badger.Txn) error {
		return txn.SetEntry(badger.NewEntry(d.key(jti), data).WithTTL(ttl))
	})
	if err != nil {
		return fmt.Errorf("store denylist entry: %w", err)
	}
	return nil
}

// IsRevoked implements Denylist.
func (d *BadgerDenylist) IsRevoked(_ context.Context, jti string) (bool, error) {
	if d.isClosed() {
		return false, ErrDenylistClosed
	}

	var revoked bool
	err := d.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get(d.key(jti))
		if errors.Is(err, badger.ErrKeyNotFound) {
			return nil
		}
		if err != nil {
			return err
		}

		var entry revokedEntry
		return item.Value(func(val []byte) error {
			if err := json.Unmarshal(val, &entry); err != nil {
				return err
			}
			revoked = d.now().Before(entry.ExpiresAt)
			return nil
		})
	})
	if err != nil {
		return false, fmt.Errorf("read denylist entry: %w", err)
	}
	return revoked, nil
}

// CleanupExpired implements Denylist. Badger drops expired keys on its own
// during compaction; this removes entries whose recorded expiry has passed
// but whose TTL has not, e.g. after a clock adjustment.
func (d *BadgerDenylist) CleanupExpired(_ context.Context) (int, error) {
	if d.isClosed() {
		return 0, ErrDenylistClosed
	}

	count := 0
	now := d.now()
	err := d.db.Update(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.Prefix = d.prefix
		it := txn.NewIterator(opts)

		var expired [][]byte
		for it.Rewind(); it.Valid(); it.Next() {
			item := it.Item()
			var entry revokedEntry
			if err := item.Value(func(val []byte) error {
				return json.Unmarshal(val, &entry)
			}); err != nil {
				logging.Warn().Err(err).Msg("Skipping unreadable denylist entry")
				continue
			}
			if !now.Before(entry.ExpiresAt) {
				expired = append(expired, item.KeyCopy(nil))
			}
		}
		it.Close()

		for _, key := range expired {
			if err := txn.Delete(key); err != nil {
				return err
			}
			count++
		}
		return nil
	})
	if err != nil {
		return count, fmt.Errorf("cleanup denylist: %w", err)
	}
	return count, nil
}

// Size implements Denylist.
func (d *BadgerDenylist) Size(_ context.Context) (int, error) {
	if d.isClosed() {
		return 0, ErrDenylistClosed
	}

	count := 0
	err := d.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.Prefix = d.prefix
		opts.PrefetchValues = false
		it := txn.NewIterator(opts)
		defer it.Close()

		for it.Rewind(); it.Valid(); it.Next() {
			count++
		}
		return nil
	})
	return count, err
}

// Close implements Denylist. The db is closed only when the denylist opened it.
func (d *BadgerDenylist) Close() error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.closed {
		return nil
	}
	d.closed = true
	if d.ownsDB {
		return d.db.Close()
	}
	return nil
}
