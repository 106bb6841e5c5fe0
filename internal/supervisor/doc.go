// Excubitor - Frigate NVR Event Notification Bridge
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/excubitor

// Package supervisor builds the suture supervision tree for the bridge.
// Long-running components (MQTT ingest, poller, watermill router,
// WebSocket hub, retention sweeper, HTTP server) run as suture services
// under per-layer child supervisors so a failure in one layer restarts
// independently of the others.
package supervisor
