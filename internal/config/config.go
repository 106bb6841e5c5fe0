// Excubitor - Frigate NVR Event Notification Bridge
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/excubitor

package config

import (
	"time"
)

// Config holds all application configuration loaded from environment variables and config files.
// Provides centralized configuration management for all application components including
// the Frigate connection, MQTT ingest, the event pipeline, notification channels, history
// storage, the HTTP server, security, and logging.
//
// Configuration Loading Order (Koanf v2):
//  1. Defaults: Built-in sensible defaults for all optional settings
//  2. Config File: Optional YAML config file (config.yaml) for persistent settings
//  3. Environment Variables: Override any setting via environment variables
//
// Configuration Categories:
//
//  1. Upstream:
//     - Frigate: NVR connection and session authentication
//     - MQTT: Event ingest from the frigate/events topic
//     - Poller: HTTP polling fallback when MQTT is unavailable
//
//  2. Processing:
//     - Pipeline: Watermill router, retry, dedup, poison queue
//     - NATS: Durable JetStream delivery (optional, requires -tags nats)
//     - Rules: Camera/label/zone filters, score threshold, cooldowns, quiet hours
//
//  3. Output:
//     - Notify: Webhook, Discord, ntfy and MQTT republish channels
//     - History: DuckDB event and notification log
//
//  4. Surface & Security:
//     - Server/API: HTTP server and pagination limits
//     - Security: Admin authentication (basic or OIDC), RBAC, rate limiting
//
//  5. Observability:
//     - Logging: Log levels and output formats
//
// Thread Safety:
// Config is immutable after Load() and safe for concurrent read access from multiple goroutines.
type Config struct {
	Frigate  FrigateConfig  `koanf:"frigate"`
	MQTT     MQTTConfig     `koanf:"mqtt"`     // Optional: push ingest from the Frigate MQTT topics
	Poller   PollerConfig   `koanf:"poller"`   // Optional: HTTP polling fallback
	Pipeline PipelineConfig `koanf:"pipeline"` // Watermill router behavior
	NATS     NATSConfig     `koanf:"nats"`     // Optional: durable JetStream delivery (requires -tags nats)
	Rules    RulesConfig    `koanf:"rules"`
	Notify   NotifyConfig   `koanf:"notify"`
	History  HistoryConfig  `koanf:"history"`
	State    StateConfig    `koanf:"state"` // Badger-backed dedup/cooldown state
	Server   ServerConfig   `koanf:"server"`
	API      APIConfig      `koanf:"api"`
	Security SecurityConfig `koanf:"security"`
	Logging  LoggingConfig  `koanf:"logging"`
}

// FrigateConfig holds the Frigate NVR connection settings.
//
// Environment variables:
//   - FRIGATE_URL: Base URL of the Frigate instance (required), e.g. http://frigate:8971
//   - FRIGATE_USERNAME: Login user for the Frigate auth endpoint (required)
//   - FRIGATE_PASSWORD: Login password (required; FRIGATE_PASSWORD_FILE is preferred)
//   - FRIGATE_PASSWORD_FILE: Path to a file containing the password (overrides FRIGATE_PASSWORD)
type FrigateConfig struct {
	URL          string `koanf:"url"`
	Username     string `koanf:"username"`
	Password     string `koanf:"password"`
	PasswordFile string `koanf:"password_file"`

	// LoginTimeout bounds the login round trip so a hung upstream
	// cannot block callers waiting on a token refresh.
	LoginTimeout time.Duration `koanf:"login_timeout"`

	// RequestTimeout applies to authenticated API requests (stats, events, snapshots).
	RequestTimeout time.Duration `koanf:"request_timeout"`

	// InsecureSkipVerify disables TLS certificate verification.
	// Only for self-signed local deployments.
	InsecureSkipVerify bool `koanf:"insecure_skip_verify"`
}

// MQTTConfig holds MQTT broker settings for event ingest.
// Frigate publishes detection events on {topic_prefix}/events; this is the
// primary low-latency ingest path.
type MQTTConfig struct {
	Enabled      bool   `koanf:"enabled"`
	BrokerURL    string `koanf:"broker_url"` // e.g. tcp://mosquitto:1883
	ClientID     string `koanf:"client_id"`
	Username     string `koanf:"username"`
	Password     string `koanf:"password"`
	PasswordFile string `koanf:"password_file"`

	// TopicPrefix is Frigate's configured MQTT topic prefix (default "frigate").
	TopicPrefix string `koanf:"topic_prefix"`

	// QoS for the events subscription: 0, 1 or 2.
	QoS byte `koanf:"qos"`

	KeepAlive      time.Duration `koanf:"keep_alive"`
	ConnectTimeout time.Duration `koanf:"connect_timeout"`

	InsecureSkipVerify bool `koanf:"insecure_skip_verify"`
}

// PollerConfig holds the HTTP polling fallback settings.
// Polling exercises the authenticated Frigate API instead of MQTT and is
// intended for deployments without a broker.
type PollerConfig struct {
	Enabled  bool          `koanf:"enabled"`
	Interval time.Duration `koanf:"interval"`
	Limit    int           `koanf:"limit"` // Max events fetched per poll cycle
}

// PipelineConfig holds Watermill router behavior.
type PipelineConfig struct {
	// BufferSize is the in-process channel buffer between ingest and handlers.
	BufferSize int `koanf:"buffer_size"`

	RetryCount           int           `koanf:"retry_count"`
	RetryInitialInterval time.Duration `koanf:"retry_initial_interval"`
	RetryMaxInterval     time.Duration `koanf:"retry_max_interval"`

	// ThrottlePerSecond limits handler throughput (0 = unlimited).
	ThrottlePerSecond int64 `koanf:"throttle_per_second"`

	DedupEnabled bool          `koanf:"dedup_enabled"`
	DedupTTL     time.Duration `koanf:"dedup_ttl"`

	PoisonTopic  string        `koanf:"poison_topic"`
	CloseTimeout time.Duration `koanf:"close_timeout"`

	// SnapshotEnrich fetches the event snapshot from Frigate before dispatch
	// so notifiers can attach it.
	SnapshotEnrich   bool  `koanf:"snapshot_enrich"`
	SnapshotMaxBytes int64 `koanf:"snapshot_max_bytes"`
}

// NATSConfig holds NATS JetStream settings for durable event delivery.
// Only honored when built with -tags nats; the default build uses the
// in-process Watermill channel transport.
type NATSConfig struct {
	Enabled        bool   `koanf:"enabled"`
	URL            string `koanf:"url"`
	EmbeddedServer bool   `koanf:"embedded_server"`
	StoreDir       string `koanf:"store_dir"`
	MaxMemory      int64  `koanf:"max_memory"`
	MaxStore       int64  `koanf:"max_store"`

	StreamRetentionDays int    `koanf:"stream_retention_days"`
	SubscribersCount    int    `koanf:"subscribers_count"`
	DurableName         string `koanf:"durable_name"`
	QueueGroup          string `koanf:"queue_group"`

	MaxReconnects int           `koanf:"max_reconnects"`
	ReconnectWait time.Duration `koanf:"reconnect_wait"`
	AckWait       time.Duration `koanf:"ack_wait"`
}

// RulesConfig holds event filtering rules.
// Empty allow-lists mean "allow all".
type RulesConfig struct {
	Cameras []string `koanf:"cameras"`
	Labels  []string `koanf:"labels"`
	Zones   []string `koanf:"zones"`

	// MinScore drops events below this detection confidence (0 disables).
	MinScore float64 `koanf:"min_score"`

	// EventTypes selects which Frigate lifecycle transitions fire alerts:
	// any of "new", "update", "end".
	EventTypes []string `koanf:"event_types"`

	// Cooldown suppresses repeat alerts for the same camera/label pair.
	Cooldown time.Duration `koanf:"cooldown"`

	// DedupWindow drops events whose Frigate event ID was already seen.
	DedupWindow time.Duration `koanf:"dedup_window"`

	QuietHoursEnabled bool   `koanf:"quiet_hours_enabled"`
	QuietHoursStart   string `koanf:"quiet_hours_start"` // "23:00"
	QuietHoursEnd     string `koanf:"quiet_hours_end"`   // "07:00"
}

// NotifyConfig holds notification channel settings.
type NotifyConfig struct {
	Webhook WebhookNotifierConfig `koanf:"webhook"`
	Discord DiscordNotifierConfig `koanf:"discord"`
	Ntfy    NtfyNotifierConfig    `koanf:"ntfy"`
	MQTT    MQTTNotifierConfig    `koanf:"mqtt"`

	// RatePerMinute caps deliveries per notifier (0 = unlimited).
	RatePerMinute int `koanf:"rate_per_minute"`

	// Template overrides the default alert message template (text/template).
	Template string `koanf:"template"`
}

// WebhookNotifierConfig posts alerts as JSON to an arbitrary HTTP endpoint.
type WebhookNotifierConfig struct {
	Enabled    bool          `koanf:"enabled"`
	URL        string        `koanf:"url"`
	Secret     string        `koanf:"secret"` // When set, requests carry an HMAC-SHA256 signature header
	SecretFile string        `koanf:"secret_file"`
	Timeout    time.Duration `koanf:"timeout"`
}

// DiscordNotifierConfig posts alerts to a Discord webhook as an embed.
type DiscordNotifierConfig struct {
	Enabled         bool          `koanf:"enabled"`
	WebhookURL      string        `koanf:"webhook_url"`
	Username        string        `koanf:"username"`
	AttachSnapshots bool          `koanf:"attach_snapshots"`
	Timeout         time.Duration `koanf:"timeout"`
}

// NtfyNotifierConfig publishes alerts to an ntfy topic.
type NtfyNotifierConfig struct {
	Enabled         bool          `koanf:"enabled"`
	ServerURL       string        `koanf:"server_url"`
	Topic           string        `koanf:"topic"`
	AccessToken     string        `koanf:"access_token"`
	Priority        string        `koanf:"priority"` // min, low, default, high, urgent
	AttachSnapshots bool          `koanf:"attach_snapshots"`
	Timeout         time.Duration `koanf:"timeout"`
}

// MQTTNotifierConfig republishes alerts on the ingest broker connection.
type MQTTNotifierConfig struct {
	Enabled     bool   `koanf:"enabled"`
	TopicPrefix string `koanf:"topic_prefix"` // default "excubitor/alerts"
}

// HistoryConfig holds DuckDB event history settings.
type HistoryConfig struct {
	Enabled   bool   `koanf:"enabled"`
	Path      string `koanf:"path"`
	MaxMemory string `koanf:"max_memory"`
	Threads   int    `koanf:"threads"` // 0 = use runtime.NumCPU()

	// RetentionDays prunes events older than this (0 = keep forever).
	RetentionDays int           `koanf:"retention_days"`
	SweepInterval time.Duration `koanf:"sweep_interval"`
}

// StateConfig holds the Badger store used for dedup keys and cooldown markers.
// InMemory keeps state per-process only; on-disk state survives restarts so a
// bridge restart does not replay a burst of stale alerts.
type StateConfig struct {
	Path     string `koanf:"path"`
	InMemory bool   `koanf:"in_memory"`
}

// ServerConfig holds the HTTP server settings.
type ServerConfig struct {
	Port    int           `koanf:"port"`
	Host    string        `koanf:"host"`
	Timeout time.Duration `koanf:"timeout"`
}

// APIConfig holds API pagination limits.
type APIConfig struct {
	DefaultPageSize int `koanf:"default_page_size"`
	MaxPageSize     int `koanf:"max_page_size"`
}

// SecurityConfig holds admin authentication and API protection settings.
type SecurityConfig struct {
	// AuthMode selects the admin API authentication scheme:
	// "none", "basic" (username/password + JWT) or "oidc" (bearer introspection).
	AuthMode string `koanf:"auth_mode"`

	JWTSecret    string        `koanf:"jwt_secret"`
	TokenTTL     time.Duration `koanf:"token_ttl"`
	AdminUser    string        `koanf:"admin_user"`
	AdminPass    string        `koanf:"admin_pass"`      // Plaintext; AdminPassHash is preferred
	AdminHash    string        `koanf:"admin_pass_hash"` // bcrypt hash, takes precedence over AdminPass
	RateLimitReq int           `koanf:"rate_limit_requests"`
	RateLimitWin time.Duration `koanf:"rate_limit_window"`
	CORSOrigins  []string      `koanf:"cors_origins"`

	OIDC   OIDCConfig   `koanf:"oidc"`
	Casbin CasbinConfig `koanf:"casbin"`
}

// OIDCConfig holds resource-server token introspection settings.
// Tokens presented to the admin API are introspected against the issuer.
type OIDCConfig struct {
	IssuerURL    string `koanf:"issuer_url"`
	ClientID     string `koanf:"client_id"`
	ClientSecret string `koanf:"client_secret"`
	RolesClaim   string `koanf:"roles_claim"`
	DefaultRole  string `koanf:"default_role"`
}

// CasbinConfig holds RBAC enforcement settings.
type CasbinConfig struct {
	ModelPath      string        `koanf:"model_path"`  // Empty = embedded model
	PolicyPath     string        `koanf:"policy_path"` // Empty = embedded policy
	DefaultRole    string        `koanf:"default_role"`
	AutoReload     bool          `koanf:"auto_reload"`
	ReloadInterval time.Duration `koanf:"reload_interval"`
}

// LoggingConfig holds log output settings.
type LoggingConfig struct {
	// Level is the minimum log level: trace, debug, info, warn, error.
	// Default: info
	Level string `koanf:"level"`

	// Format is the output format: json or console.
	// JSON is recommended for production (structured, machine-parseable).
	// Console is human-readable for development.
	// Default: json
	Format string `koanf:"format"`

	// Caller includes caller file and line number in logs.
	// Adds slight performance overhead.
	// Default: false
	Caller bool `koanf:"caller"`
}
