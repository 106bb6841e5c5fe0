// Excubitor - Frigate NVR Event Notification Bridge
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/excubitor

// Package middleware provides the infrastructure HTTP middleware shared by
// API routes: request ID tagging for log correlation, Prometheus request
// instrumentation, and IP-based rate limiting via go-chi/httprate. All
// middleware use the standard func(http.Handler) http.Handler shape so
// they compose with chi's Use chain.
package middleware
