// Excubitor - Frigate NVR Event Notification Bridge
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/excubitor

package state

import (
	"context"
	"time"
)

// Key prefixes for namespacing in the shared store.
const (
	// DedupPrefix namespaces "have we seen this event" markers.
	DedupPrefix = "dedup:"
	// CooldownPrefix namespaces per-camera/label notification cooldowns.
	CooldownPrefix = "cooldown:"
)

// Store holds short-lived coordination markers: dedup keys and notification
// cooldowns. Entries expire on their own; callers never delete them
// individually.
type Store interface {
	// FirstSeen marks key with the given TTL and reports whether it was
	// absent before the call. A false return means the key is already held
	// and still live, so the caller should treat the event as a duplicate
	// or the cooldown as active. The check and the mark are one atomic
	// step.
	FirstSeen(ctx context.Context, key string, ttl time.Duration) (bool, error)

	// Has reports whether key is present and unexpired, without marking.
	Has(ctx context.Context, key string) (bool, error)

	// Close releases the underlying storage.
	Close() error
}

// DedupRepository adapts a Store to Watermill's
// middleware.ExpiringKeyRepository so the pipeline deduplicator and the
// rule engine share one marker space.
type DedupRepository struct {
	store Store
	ttl   time.Duration
}

// NewDedupRepository wraps store for use as a Watermill dedup repository.
func NewDedupRepository(store Store, ttl time.Duration) *DedupRepository {
	return &DedupRepository{store: store, ttl: ttl}
}

// IsDuplicate reports whether key was seen within the TTL window, marking
// it as seen either way.
func (r *DedupRepository) IsDuplicate(ctx context.Context, key string) (bool, error) {
	first, err := r.store.FirstSeen(ctx, DedupPrefix+key, r.ttl)
	if err != nil {
		return false, err
	}
	return !first, nil
}
