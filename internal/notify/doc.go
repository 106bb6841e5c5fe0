// Excubitor - Frigate NVR Event Notification Bridge
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/excubitor

// Package notify delivers alerts to the configured notification channels.
//
// The Dispatcher fans each alert out to every enabled Notifier: generic
// webhook (HMAC-signed JSON), Discord webhook (embed with optional snapshot
// attachment), ntfy topic publish, and MQTT republish on the ingest broker
// connection. Per-channel rate limits keep a detection storm from flooding
// a channel; one channel failing never blocks the others.
package notify
