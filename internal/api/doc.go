// Excubitor - Frigate NVR Event Notification Bridge
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/excubitor

// Package api exposes the admin HTTP surface on chi: health probes, admin
// login, bridge status, recorded-event queries with snapshot proxying,
// notification history, test dispatch, upstream session reset, a redacted
// config view, the WebSocket live feed, Prometheus metrics and swagger.
//
// Every JSON endpoint wraps its payload in APIResponse. Authentication and
// authorization are provided by internal/auth and internal/authz; rate
// limits are per-group, strictest on login.
package api
