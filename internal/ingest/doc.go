// Excubitor - Frigate NVR Event Notification Bridge
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/excubitor

// Package ingest feeds detection events into the pipeline.
//
// Two sources exist: the MQTT subscriber on Frigate's events topic (the
// primary, push-based path) and the HTTP poller over the authenticated
// events API (the fallback for broker-less deployments). Both normalize
// into the canonical CameraEvent and hand off to the pipeline bus; the
// rule engine's dedup window makes running both at once safe.
package ingest
