// Excubitor - Frigate NVR Event Notification Bridge
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/excubitor

// Package pipeline moves camera events from ingest to delivery over a
// Watermill router. The default transport is an in-process channel; the
// nats build tag swaps in JetStream for durable, at-least-once delivery.
//
// Stages, each its own handler:
//
//	ingest -> events.camera -> filter -> events.alerts -> notify
//	                        \-> history
//	                        \-> websocket
//
// Failed messages are retried with exponential backoff and diverted to
// the poison topic once retries are exhausted.
package pipeline
