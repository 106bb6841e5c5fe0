// Excubitor - Frigate NVR Event Notification Bridge
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/excubitor

// Package state provides the TTL marker store behind event deduplication
// and notification cooldowns.
//
// The store answers one question: has this key been seen within its TTL
// window? Two implementations exist, a BadgerDB store whose markers survive
// restarts (the default, so a bridge restart does not replay alerts that
// already fired) and an in-memory store for tests and stateless
// deployments. DedupRepository adapts either to Watermill's
// ExpiringKeyRepository so the pipeline deduplicator shares the same marker
// space as the rule engine.
package state
