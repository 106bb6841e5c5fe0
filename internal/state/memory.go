// Excubitor - Frigate NVR Event Notification Bridge
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/excubitor

package state

import (
	"context"
	"sync"
	"time"
)

// memorySweepThreshold triggers a full sweep once this many entries
// accumulate, bounding memory without a background goroutine.
const memorySweepThreshold = 10000

// MemoryStore is a map-backed Store for tests and deployments that opt out
// of on-disk state. Expired entries are evicted lazily on access and in
// bulk once the map grows past a threshold.
type MemoryStore struct {
	mu      sync.Mutex
	entries map[string]time.Time // key -> expiry; zero time = no expiry

	// now is replaceable in tests.
	now func() time.Time
}

var _ Store = (*MemoryStore)(nil)

// NewMemoryStore creates an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		entries: make(map[string]time.Time),
		now:     time.Now,
	}
}

// FirstSeen marks key with the TTL and reports whether it was absent or
// expired before the call.
func (s *MemoryStore) FirstSeen(_ context.Context, key string, ttl time.Duration) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	expiry, ok := s.entries[key]
	live := ok && (expiry.IsZero() || now.Before(expiry))
	if live {
		return false, nil
	}

	if len(s.entries) >= memorySweepThreshold {
		s.sweepLocked(now)
	}

	if ttl > 0 {
		s.entries[key] = now.Add(ttl)
	} else {
		s.entries[key] = time.Time{}
	}
	return true, nil
}

// Has reports whether key is present and unexpired.
func (s *MemoryStore) Has(_ context.Context, key string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	expiry, ok := s.entries[key]
	if !ok {
		return false, nil
	}
	if !expiry.IsZero() && !s.now().Before(expiry) {
		delete(s.entries, key)
		return false, nil
	}
	return true, nil
}

// Close discards all entries.
func (s *MemoryStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.entries = make(map[string]time.Time)
	return nil
}

// sweepLocked removes expired entries. Caller holds the lock.
func (s *MemoryStore) sweepLocked(now time.Time) {
	for key, expiry := range s.entries {
		if !expiry.IsZero() && !now.Before(expiry) {
			delete(s.entries, key)
		}
	}
}
