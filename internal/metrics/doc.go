// Excubitor - Frigate NVR Event Notification Bridge
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/excubitor

/*
Package metrics provides Prometheus metrics collection and export for observability.

Metrics are registered via promauto at package load and exposed at the
/metrics endpoint in Prometheus text format:

	curl http://localhost:8972/metrics

# Metric Groups

Session lifecycle:
  - session_logins_total: Login exchanges against Frigate (counter)
    Labels: result (success, failure)
  - session_refreshes_total: Token refreshes (counter)
    Labels: trigger (expiring, unauthorized, manual)
  - session_refresh_coalesced_total: Callers that joined an in-flight refresh (counter)
  - session_unauthorized_retries_total: Requests retried after an upstream 401 (counter)
  - session_token_expiry_timestamp: Current token expiry as Unix time, 0 when absent (gauge)

Upstream API:
  - upstream_requests_total: Frigate API requests (counter)
    Labels: endpoint, status_code
  - upstream_request_duration_seconds: Frigate API latency (histogram)
  - circuit_breaker_state, circuit_breaker_requests_total,
    circuit_breaker_consecutive_failures, circuit_breaker_state_transitions_total

Ingest:
  - ingest_events_received_total: Detection events by source and type (counter)
  - ingest_parse_failures_total, ingest_connected, ingest_reconnects_total
  - poller_runs_total, poller_duration_seconds, poller_errors_total,
    poller_last_success_timestamp

Pipeline:
  - pipeline_messages_{published,consumed,processed,deduplicated}_total
  - pipeline_parse_failures_total, pipeline_poisoned_total
  - pipeline_processing_duration_seconds

Rules and delivery:
  - rule_evaluations_total, rule_matches_total
  - rule_drops_total (labels: rule)
  - notifications_sent_total (labels: channel, result)
  - notify_duration_seconds, notify_rate_limited_total

Storage, API and WebSocket:
  - duckdb_query_duration_seconds, duckdb_query_errors_total
  - history_events_written_total, history_events_pruned_total
  - api_requests_total, api_request_duration_seconds, api_active_requests,
    api_rate_limit_hits_total
  - websocket_connections, websocket_messages_{sent,received}_total,
    websocket_errors_total

# Usage

Record helpers keep call sites terse:

	start := time.Now()
	err := notifier.Send(ctx, alert)
	metrics.RecordNotification(notifier.Name(), time.Since(start), err)

Gauges for connection state:

	metrics.SetIngestConnected("mqtt", true)

# Cardinality

Label values must be bounded: endpoint labels use route patterns (not raw
paths), error types are truncated, and camera names never appear as labels.
*/
package metrics
