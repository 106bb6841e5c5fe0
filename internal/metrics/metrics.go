// Excubitor - Frigate NVR Event Notification Bridge
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/excubitor

package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Prometheus instrumentation for the bridge:
// - Frigate session lifecycle (logins, refreshes, 401 retries)
// - Upstream Frigate API calls and circuit breaker
// - Event ingest (MQTT, poller)
// - Pipeline throughput and poison queue
// - Rule evaluation and notification delivery
// - Event history (DuckDB), API endpoints, WebSocket fanout

var (
	// Session Lifecycle Metrics
	SessionLogins = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "session_logins_total",
			Help: "Total number of login exchanges against Frigate",
		},
		[]string{"result"}, // "success", "failure"
	)

	SessionRefreshes = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "session_refreshes_total",
			Help: "Total number of session token refreshes",
		},
		[]string{"trigger"}, // "expiring", "unauthorized", "manual"
	)

	SessionRefreshCoalesced = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "session_refresh_coalesced_total",
			Help: "Total number of callers that joined an in-flight refresh instead of starting their own",
		},
	)

	SessionUnauthorizedRetries = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "session_unauthorized_retries_total",
			Help: "Total number of requests retried after an upstream 401",
		},
	)

	SessionTokenExpiry = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "session_token_expiry_timestamp",
			Help: "Unix timestamp of the current session token expiry (0 when absent)",
		},
	)

	// Upstream Frigate API Metrics
	UpstreamRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "upstream_requests_total",
			Help: "Total number of requests to the Frigate API",
		},
		[]string{"endpoint", "status_code"},
	)

	UpstreamRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "upstream_request_duration_seconds",
			Help:    "Duration of Frigate API requests in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"endpoint"},
	)

	// Circuit Breaker Metrics
	CircuitBreakerState = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "circuit_breaker_state",
			Help: "Circuit breaker state (0=closed, 1=half-open, 2=open)",
		},
		[]string{"name"},
	)

	CircuitBreakerRequests = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "circuit_breaker_requests_total",
			Help: "Total number of requests through circuit breaker",
		},
		[]string{"name", "result"}, // result: "success", "failure", "rejected"
	)

	CircuitBreakerConsecutiveFailures = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "circuit_breaker_consecutive_failures",
			Help: "Current number of consecutive failures",
		},
		[]string{"name"},
	)

	CircuitBreakerTransitions = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "circuit_breaker_state_transitions_total",
			Help: "Total number of circuit breaker state transitions",
		},
		[]string{"name", "from_state", "to_state"},
	)

	// Ingest Metrics
	IngestEventsReceived = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "ingest_events_received_total",
			Help: "Total number of detection events received",
		},
		[]string{"source", "type"}, // source: "mqtt", "poller"; type: "new", "update", "end"
	)

	IngestParseFailures = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "ingest_parse_failures_total",
			Help: "Total number of payloads that failed to parse",
		},
		[]string{"source"},
	)

	IngestConnected = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "ingest_connected",
			Help: "Whether an ingest source is currently connected (1) or not (0)",
		},
		[]string{"source"},
	)

	IngestReconnects = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "ingest_reconnects_total",
			Help: "Total number of ingest source reconnects",
		},
		[]string{"source"},
	)

	// Poller Metrics
	PollerRuns = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "poller_runs_total",
			Help: "Total number of poll cycles against the Frigate events API",
		},
	)

	PollerDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "poller_duration_seconds",
			Help:    "Duration of poll cycles in seconds",
			Buckets: prometheus.DefBuckets,
		},
	)

	PollerErrors = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "poller_errors_total",
			Help: "Total number of failed poll cycles",
		},
	)

	PollerLastSuccess = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "poller_last_success_timestamp",
			Help: "Unix timestamp of last successful poll cycle",
		},
	)

	// Pipeline Metrics
	PipelineMessagesPublished = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "pipeline_messages_published_total",
			Help: "Total number of messages published to the event bus",
		},
	)

	PipelineMessagesConsumed = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "pipeline_messages_consumed_total",
			Help: "Total number of messages consumed from the event bus",
		},
	)

	PipelineMessagesProcessed = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "pipeline_messages_processed_total",
			Help: "Total number of messages successfully processed",
		},
	)

	PipelineMessagesDeduplicated = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "pipeline_messages_deduplicated_total",
			Help: "Total number of messages skipped due to deduplication",
		},
	)

	PipelineParseFailures = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "pipeline_parse_failures_total",
			Help: "Total number of bus messages that failed to parse",
		},
	)

	PipelinePoisoned = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "pipeline_poisoned_total",
			Help: "Total number of messages routed to the poison queue",
		},
	)

	PipelineProcessingDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "pipeline_processing_duration_seconds",
			Help:    "Duration of pipeline message processing in seconds",
			Buckets: prometheus.DefBuckets,
		},
	)

	// Rule Metrics
	RuleEvaluations = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "rule_evaluations_total",
			Help: "Total number of events evaluated against the rule set",
		},
	)

	RuleMatches = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "rule_matches_total",
			Help: "Total number of events that passed all rules",
		},
	)

	RuleDrops = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "rule_drops_total",
			Help: "Total number of events dropped by a rule",
		},
		[]string{"rule"}, // "camera", "label", "zone", "score", "type", "cooldown", "dedup", "quiet_hours"
	)

	// Notification Metrics
	NotificationsSent = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "notifications_sent_total",
			Help: "Total number of notification deliveries",
		},
		[]string{"channel", "result"}, // result: "success", "failure"
	)

	NotifyDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "notify_duration_seconds",
			Help:    "Duration of notification deliveries in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"channel"},
	)

	NotifyRateLimited = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "notify_rate_limited_total",
			Help: "Total number of notifications dropped by the rate limiter",
		},
		[]string{"channel"},
	)

	// Database Metrics
	DBQueryDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "duckdb_query_duration_seconds",
			Help:    "Duration of DuckDB queries in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"operation", "table"},
	)

	DBQueryErrors = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "duckdb_query_errors_total",
			Help: "Total number of DuckDB query errors",
		},
		[]string{"operation", "table", "error_type"},
	)

	HistoryEventsWritten = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "history_events_written_total",
			Help: "Total number of events written to the history store",
		},
	)

	HistoryEventsPruned = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "history_events_pruned_total",
			Help: "Total number of events removed by retention sweeps",
		},
	)

	// API Endpoint Metrics
	APIRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "api_requests_total",
			Help: "Total number of API requests",
		},
		[]string{"method", "endpoint", "status_code"},
	)

	APIRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "api_request_duration_seconds",
			Help:    "API request duration in seconds",
			Buckets: []float64{0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10},
		},
		[]string{"method", "endpoint"},
	)

	APIActiveRequests = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "api_active_requests",
			Help: "Current number of active API requests",
		},
	)

	APIRateLimitHits = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "api_rate_limit_hits_total",
			Help: "Total number of rate limit rejections",
		},
		[]string{"endpoint"},
	)

	// Authorization Metrics
	AuthzDecisions = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "authz_decisions_total",
			Help: "Total number of authorization decisions by outcome",
		},
		[]string{"decision"},
	)

	AuthzCacheHits = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "authz_cache_hits_total",
			Help: "Total number of authorization cache lookups by result",
		},
		[]string{"result"},
	)

	// WebSocket Metrics
	WSConnections = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "websocket_connections",
			Help: "Current number of active WebSocket connections",
		},
	)

	WSMessagesSent = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "websocket_messages_sent_total",
			Help: "Total number of WebSocket messages sent",
		},
	)

	WSMessagesReceived = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "websocket_messages_received_total",
			Help: "Total number of WebSocket messages received",
		},
	)

	WSErrors = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "websocket_errors_total",
			Help: "Total number of WebSocket errors",
		},
		[]string{"error_type"},
	)

	// System Metrics
	AppInfo = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "app_info",
			Help: "Application version and build information",
		},
		[]string{"version", "go_version"},
	)

	AppUptime = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "app_uptime_seconds",
			Help: "Application uptime in seconds",
		},
	)
)

// RecordSessionLogin records a login exchange outcome.
func RecordSessionLogin(success bool) {
	result := "success"
	if !success {
		result = "failure"
	}
	SessionLogins.WithLabelValues(result).Inc()
}

// RecordSessionRefresh records a refresh and its trigger.
func RecordSessionRefresh(trigger string) {
	SessionRefreshes.WithLabelValues(trigger).Inc()
}

// RecordSessionCoalesced records a caller joining an in-flight refresh.
func RecordSessionCoalesced() {
	SessionRefreshCoalesced.Inc()
}

// RecordUnauthorizedRetry records a request retried after an upstream 401.
func RecordUnauthorizedRetry() {
	SessionUnauthorizedRetries.Inc()
}

// SetSessionTokenExpiry publishes the current token expiry timestamp.
// Pass the zero time to indicate no token is held.
func SetSessionTokenExpiry(expiry time.Time) {
	if expiry.IsZero() {
		SessionTokenExpiry.Set(0)
		return
	}
	SessionTokenExpiry.Set(float64(expiry.Unix()))
}

// RecordUpstreamRequest records a Frigate API request metric.
func RecordUpstreamRequest(endpoint, statusCode string, duration time.Duration) {
	UpstreamRequestsTotal.WithLabelValues(endpoint, statusCode).Inc()
	UpstreamRequestDuration.WithLabelValues(endpoint).Observe(duration.Seconds())
}

// RecordIngestEvent records a detection event arriving from a source.
func RecordIngestEvent(source, eventType string) {
	IngestEventsReceived.WithLabelValues(source, eventType).Inc()
}

// RecordIngestParseFailure records a payload that failed to parse.
func RecordIngestParseFailure(source string) {
	IngestParseFailures.WithLabelValues(source).Inc()
}

// SetIngestConnected publishes the connection state of an ingest source.
func SetIngestConnected(source string, connected bool) {
	v := 0.0
	if connected {
		v = 1.0
	}
	IngestConnected.WithLabelValues(source).Set(v)
}

// RecordIngestReconnect records an ingest source reconnect.
func RecordIngestReconnect(source string) {
	IngestReconnects.WithLabelValues(source).Inc()
}

// RecordPollCycle records a poll cycle and its outcome.
func RecordPollCycle(duration time.Duration, err error) {
	PollerRuns.Inc()
	PollerDuration.Observe(duration.Seconds())
	if err != nil {
		PollerErrors.Inc()
	} else {
		PollerLastSuccess.Set(float64(time.Now().Unix()))
	}
}

// RecordPipelinePublish records a message published to the bus.
func RecordPipelinePublish() {
	PipelineMessagesPublished.Inc()
}

// RecordPipelineConsume records a message consumed from the bus.
func RecordPipelineConsume() {
	PipelineMessagesConsumed.Inc()
}

// RecordPipelineProcessed records a successfully processed message.
func RecordPipelineProcessed() {
	PipelineMessagesProcessed.Inc()
}

// RecordPipelineDeduplicated records a message skipped by deduplication.
func RecordPipelineDeduplicated() {
	PipelineMessagesDeduplicated.Inc()
}

// RecordPipelineParseFailure records a bus message that failed to parse.
func RecordPipelineParseFailure() {
	PipelineParseFailures.Inc()
}

// RecordPipelinePoisoned records a message routed to the poison queue.
func RecordPipelinePoisoned() {
	PipelinePoisoned.Inc()
}

// RecordPipelineProcessingDuration records processing duration for a message.
func RecordPipelineProcessingDuration(duration time.Duration) {
	PipelineProcessingDuration.Observe(duration.Seconds())
}

// RecordRuleEvaluation records a rule set evaluation and its outcome.
// Pass an empty rule for events that matched.
func RecordRuleEvaluation(droppedBy string) {
	RuleEvaluations.Inc()
	if droppedBy == "" {
		RuleMatches.Inc()
		return
	}
	RuleDrops.WithLabelValues(droppedBy).Inc()
}

// RecordNotification records a notification delivery outcome.
func RecordNotification(channel string, duration time.Duration, err error) {
	result := "success"
	if err != nil {
		result = "failure"
	}
	NotificationsSent.WithLabelValues(channel, result).Inc()
	NotifyDuration.WithLabelValues(channel).Observe(duration.Seconds())
}

// RecordNotifyRateLimited records a notification dropped by the rate limiter.
func RecordNotifyRateLimited(channel string) {
	NotifyRateLimited.WithLabelValues(channel).Inc()
}

// RecordDBQuery records a database query metric.
func RecordDBQuery(operation, table string, duration time.Duration, err error) {
	DBQueryDuration.WithLabelValues(operation, table).Observe(duration.Seconds())
	if err != nil {
		errorType := err.Error()
		// Truncate long error messages
		if len(errorType) > 50 {
			errorType = errorType[:50]
		}
		DBQueryErrors.WithLabelValues(operation, table, errorType).Inc()
	}
}

// RecordAuthzDecision records an authorization decision outcome.
func RecordAuthzDecision(allowed bool) {
	decision := "allow"
	if !allowed {
		decision = "deny"
	}
	AuthzDecisions.WithLabelValues(decision).Inc()
}

// RecordAuthzCacheLookup records an authorization cache hit or miss.
func RecordAuthzCacheLookup(hit bool) {
	result := "miss"
	if hit {
		result = "hit"
	}
	AuthzCacheHits.WithLabelValues(result).Inc()
}

// RecordAPIRequest records an API request metric.
func RecordAPIRequest(method, endpoint, statusCode string, duration time.Duration) {
	APIRequestsTotal.WithLabelValues(method, endpoint, statusCode).Inc()
	APIRequestDuration.WithLabelValues(method, endpoint).Observe(duration.Seconds())
}

// TrackActiveRequest tracks active API requests.
func TrackActiveRequest(inc bool) {
	if inc {
		APIActiveRequests.Inc()
	} else {
		APIActiveRequests.Dec()
	}
}
