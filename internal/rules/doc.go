// Excubitor - Frigate NVR Event Notification Bridge
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/excubitor

// Package rules decides which detection events become alerts.
//
// The engine applies, in order: event-type gate, camera/label/zone
// allow-lists, minimum detection score, quiet hours, deduplication, and
// per-camera/label cooldown. The first rule that rejects wins and is named
// in the verdict so operators can see why an expected alert never fired.
package rules
