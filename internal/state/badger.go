// Excubitor - Frigate NVR Event Notification Bridge
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/excubitor

package state

import (
	"context"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/dgraph-io/badger/v4"

	"github.com/tomtom215/excubitor/internal/config"
)

// BadgerStore is a BadgerDB-backed Store. Markers survive restarts, so a
// bridge restart does not replay a burst of already-notified events.
type BadgerStore struct {
	db *badger.DB
}

var _ Store = (*BadgerStore)(nil)

// NewBadgerStore opens (or creates) a BadgerDB at cfg.Path. When
// cfg.InMemory is set no files are written; markers live for the process
// only.
func NewBadgerStore(cfg *config.StateConfig) (*BadgerStore, error) {
	var opts badger.Options
	if cfg.InMemory {
		opts = badger.DefaultOptions("").WithInMemory(true)
	} else {
		if err := os.MkdirAll(cfg.Path, 0o750); err != nil {
			return nil, fmt.Errorf("create state directory: %w", err)
		}
		opts = badger.DefaultOptions(cfg.Path)
		// Marker values are empty; the default 1GB value log is oversized.
		opts.ValueLogFileSize = 16 << 20
	}
	opts.Logger = nil // Suppress BadgerDB internal logs

	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("open badger db for state: %w", err)
	}
	return &BadgerStore{db: db}, nil
}

// NewBadgerStoreFromDB wraps an existing BadgerDB connection.
func NewBadgerStoreFromDB(db *badger.DB) *BadgerStore {
	return &BadgerStore{db: db}
}

// FirstSeen marks key with the TTL inside a single transaction and reports
// whether it was absent. Badger evicts expired entries itself, so a stale
// marker reads as absent without any sweep of our own.
func (s *BadgerStore) FirstSeen(_ context.Context, key string, ttl time.Duration) (bool, error) {
	first := false
	err := s.db.Update(func(txn *badger.Txn) error {
		_, err := txn.Get([]byte(key))
		switch {
		case errors.Is(err, badger.ErrKeyNotFound):
			first = true
		case err != nil:
			return fmt.Errorf("get marker: %w", err)
		default:
			return nil
		}

		entry := badger.NewEntry([]byte(key), nil)
		if ttl > 0 {
			entry = entry.WithTTL(ttl)
		}
		if err := txn.SetEntry(entry); err != nil {
			return fmt.Errorf("set marker: %w", err)
		}
		return nil
	})
	if err != nil {
		return false, err
	}
	return first, nil
}

// Has reports whether key is present and unexpired.
func (s *BadgerStore) Has(_ context.Context, key string) (bool, error) {
	found := false
	err := s.db.View(func(txn *badger.Txn) error {
		_, err := txn.Get([]byte(key))
		if errors.Is(err, badger.ErrKeyNotFound) {
			return nil
		}
		if err != nil {
			return fmt.Errorf("get marker: %w", err)
		}
		found = true
		return nil
	})
	if err != nil {
		return false, err
	}
	return found, nil
}

// Close closes the underlying BadgerDB.
func (s *BadgerStore) Close() error {
	return s.db.Close()
}
