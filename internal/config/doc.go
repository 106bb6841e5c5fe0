// Excubitor - Frigate NVR Event Notification Bridge
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/excubitor

/*
Package config provides centralized configuration management for Excubitor.

This package handles loading, merging and validation of configuration for all
application components. Sources are layered with Koanf v2: built-in defaults,
an optional YAML config file and environment variables, in increasing order
of precedence.

# Environment Variables

Variables are organized by component:

Frigate connection (FrigateConfig):
  - FRIGATE_URL: Base URL of the Frigate instance (required)
  - FRIGATE_USERNAME: Login user (required)
  - FRIGATE_PASSWORD / FRIGATE_PASSWORD_FILE: Login password (required)
  - FRIGATE_LOGIN_TIMEOUT: Login round-trip bound (default: 10s)
  - FRIGATE_REQUEST_TIMEOUT: Authenticated request bound (default: 30s)

MQTT ingest (MQTTConfig):
  - MQTT_ENABLED: Subscribe to Frigate events over MQTT (default: true)
  - MQTT_BROKER_URL: Broker address, e.g. tcp://mosquitto:1883
  - MQTT_TOPIC_PREFIX: Frigate topic prefix (default: frigate)
  - MQTT_QOS: Subscription QoS 0-2 (default: 1)

Filtering (RulesConfig):
  - RULES_CAMERAS / RULES_LABELS / RULES_ZONES: Comma-separated allow-lists
  - RULES_MIN_SCORE: Detection confidence threshold
  - RULES_COOLDOWN: Per camera/label alert suppression window
  - RULES_QUIET_HOURS_START / _END: HH:MM wall-clock window

Notifications (NotifyConfig):
  - NOTIFY_WEBHOOK_URL, NOTIFY_DISCORD_WEBHOOK_URL, NOTIFY_NTFY_TOPIC, ...
  - NOTIFY_RATE_PER_MINUTE: Per-channel delivery cap

History (HistoryConfig):
  - DUCKDB_PATH: Database file path (default: /data/excubitor.duckdb)
  - HISTORY_RETENTION_DAYS: Prune horizon (default: 30)

Server and security:
  - HTTP_PORT (default: 8972), HTTP_HOST, HTTP_TIMEOUT
  - AUTH_MODE: none, basic or oidc
  - JWT_SECRET, ADMIN_USER, ADMIN_PASS_HASH (basic mode)
  - OIDC_ISSUER_URL, OIDC_CLIENT_ID, OIDC_CLIENT_SECRET (oidc mode)

Logging:
  - LOG_LEVEL: trace, debug, info, warn, error (default: info)
  - LOG_FORMAT: json or console (default: json)

# Usage

	cfg, err := config.Load()
	if err != nil {
	    logging.Fatal().Err(err).Msg("Failed to load config")
	}

# Secret Files

Any *_FILE variable points at a file whose contents replace the inline value.
This is the recommended way to pass credentials under Docker and systemd
credential mounts; trailing newlines are stripped.

# Thread Safety

The Config struct is immutable after Load() returns, making it safe for
concurrent access from multiple goroutines without synchronization.
*/
package config
