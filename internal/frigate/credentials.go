// Excubitor - Frigate NVR Event Notification Bridge
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/excubitor

package frigate

import (
	"sync"
	"time"
)

// tokenSafetyBuffer is how long before the stored expiry a token is already
// considered expired, so a caller is never handed a token the upstream is
// about to reject.
const tokenSafetyBuffer = 5 * time.Minute

// credentialStore holds the session token and its expiry. The two fields are
// always set and cleared together; a token whose expiry is unknown (zero
// time) reads as already expired.
type credentialStore struct {
	mu     sync.RWMutex
	token  string
	expiry time.Time
}

// set atomically replaces both fields.
func (s *credentialStore) set(token string, expiry time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.token = token
	s.expiry = expiry
}

// clear atomically empties both fields.
func (s *credentialStore) clear() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.token = ""
	s.expiry = time.Time{}
}

// get returns the current token and expiry.
func (s *credentialStore) get() (string, time.Time) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.token, s.expiry
}

// isExpired reports whether the held token is missing, of unknown lifetime,
// or within the safety buffer of its expiry. The comparison is inclusive:
// a token expiring exactly at now+buffer counts as expired.
func (s *credentialStore) isExpired(now time.Time) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.expiredLocked(now)
}

// expiredLocked assumes s.mu is held.
func (s *credentialStore) expiredLocked(now time.Time) bool {
	if s.token == "" || s.expiry.IsZero() {
		return true
	}
	return !now.Add(tokenSafetyBuffer).Before(s.expiry)
}

// AuthStatus is a diagnostic view of the session credential. The raw token
// value is never part of it.
type AuthStatus struct {
	HasToken  bool       `json:"has_token"`
	Expiry    *time.Time `json:"expiry,omitempty"`
	IsExpired bool       `json:"is_expired"`
}

// snapshot returns a consistent read-only view for the admin API.
func (s *credentialStore) snapshot(now time.Time) AuthStatus {
	s.mu.RLock()
	defer s.mu.RUnlock()

	status := AuthStatus{
		HasToken:  s.token != "",
		IsExpired: s.expiredLocked(now),
	}
	if !s.expiry.IsZero() {
		expiry := s.expiry
		status.Expiry = &expiry
	}
	return status
}
