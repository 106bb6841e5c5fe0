// Excubitor - Frigate NVR Event Notification Bridge
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/excubitor

// Package history persists processed events and notification outcomes in an
// embedded DuckDB database.
//
// The store backs the /api/v1/events and /api/v1/notifications endpoints
// and the retention sweeper. History is an audit log, not pipeline state:
// losing it never replays or drops an alert.
package history
