// Excubitor - Frigate NVR Event Notification Bridge
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/excubitor

package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/structs"
	"github.com/knadh/koanf/v2"
)

// DefaultConfigPaths lists the paths where config files are searched in order of priority.
// The first file found will be used.
var DefaultConfigPaths = []string{
	"config.yaml",
	"config.yml",
	"/etc/excubitor/config.yaml",
	"/etc/excubitor/config.yml",
}

// ConfigPathEnvVar is the environment variable that can override the config file path.
const ConfigPathEnvVar = "CONFIG_PATH"

// defaultConfig returns a Config struct with all sensible default values.
// These defaults are applied first, then overridden by config file and env vars.
func defaultConfig() *Config {
	return &Config{
		Frigate: FrigateConfig{
			URL:                "",
			Username:           "",
			Password:           "",
			PasswordFile:       "",
			LoginTimeout:       10 * time.Second,
			RequestTimeout:     30 * time.Second,
			InsecureSkipVerify: false,
		},
		MQTT: MQTTConfig{
			Enabled:            true,
			BrokerURL:          "tcp://127.0.0.1:1883",
			ClientID:           "excubitor",
			Username:           "",
			Password:           "",
			PasswordFile:       "",
			TopicPrefix:        "frigate",
			QoS:                1,
			KeepAlive:          30 * time.Second,
			ConnectTimeout:     10 * time.Second,
			InsecureSkipVerify: false,
		},
		Poller: PollerConfig{
			Enabled:  false, // MQTT is the primary ingest path
			Interval: 15 * time.Second,
			Limit:    100,
		},
		Pipeline: PipelineConfig{
			BufferSize:           256,
			RetryCount:           3,
			RetryInitialInterval: 100 * time.Millisecond,
			RetryMaxInterval:     time.Minute,
			ThrottlePerSecond:    0, // Unlimited
			DedupEnabled:         true,
			DedupTTL:             5 * time.Minute,
			PoisonTopic:          "events.poison",
			CloseTimeout:         30 * time.Second,
			SnapshotEnrich:       true,
			SnapshotMaxBytes:     4 << 20, // 4MB
		},
		NATS: NATSConfig{
			Enabled:             false,
			URL:                 "nats://127.0.0.1:4222",
			EmbeddedServer:      true,
			StoreDir:            "/data/nats/jetstream",
			MaxMemory:           1 << 30,  // 1GB
			MaxStore:            10 << 30, // 10GB
			StreamRetentionDays: 7,
			SubscribersCount:    4,
			DurableName:         "excubitor",
			QueueGroup:          "bridges",
			MaxReconnects:       -1, // Retry forever
			ReconnectWait:       2 * time.Second,
			AckWait:             30 * time.Second,
		},
		Rules: RulesConfig{
			Cameras:           []string{},
			Labels:            []string{},
			Zones:             []string{},
			MinScore:          0,
			EventTypes:        []string{"new"},
			Cooldown:          time.Minute,
			DedupWindow:       5 * time.Minute,
			QuietHoursEnabled: false,
			QuietHoursStart:   "23:00",
			QuietHoursEnd:     "07:00",
		},
		Notify: NotifyConfig{
			Webhook: WebhookNotifierConfig{
				Enabled:    false,
				URL:        "",
				Secret:     "",
				SecretFile: "",
				Timeout:    10 * time.Second,
			},
			Discord: DiscordNotifierConfig{
				Enabled:         false,
				WebhookURL:      "",
				Username:        "Excubitor",
				AttachSnapshots: true,
				Timeout:         10 * time.Second,
			},
			Ntfy: NtfyNotifierConfig{
				Enabled:         false,
				ServerURL:       "https://ntfy.sh",
				Topic:           "",
				AccessToken:     "",
				Priority:        "default",
				AttachSnapshots: true,
				Timeout:         10 * time.Second,
			},
			MQTT: MQTTNotifierConfig{
				Enabled:     false,
				TopicPrefix: "excubitor/alerts",
			},
			RatePerMinute: 30,
			Template:      "",
		},
		History: HistoryConfig{
			Enabled:       true,
			Path:          "/data/excubitor.duckdb",
			MaxMemory:     "512MB",
			Threads:       0, // 0 = use runtime.NumCPU()
			RetentionDays: 30,
			SweepInterval: time.Hour,
		},
		State: StateConfig{
			Path:     "/data/state",
			InMemory: false,
		},
		Server: ServerConfig{
			Port:    8972,
			Host:    "0.0.0.0",
			Timeout: 30 * time.Second,
		},
		API: APIConfig{
			DefaultPageSize: 50,
			MaxPageSize:     500,
		},
		Security: SecurityConfig{
			AuthMode:     "none",
			JWTSecret:    "",
			TokenTTL:     24 * time.Hour,
			AdminUser:    "",
			AdminPass:    "",
			AdminHash:    "",
			RateLimitReq: 100,
			RateLimitWin: time.Minute,
			CORSOrigins:  []string{"*"},
			OIDC: OIDCConfig{
				IssuerURL:    "",
				ClientID:     "",
				ClientSecret: "",
				RolesClaim:   "roles",
				DefaultRole:  "viewer",
			},
			Casbin: CasbinConfig{
				ModelPath:      "",
				PolicyPath:     "",
				DefaultRole:    "viewer",
				AutoReload:     false,
				ReloadInterval: 30 * time.Second,
			},
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
			Caller: false,
		},
	}
}

// Load loads configuration using Koanf v2 with layered sources:
//  1. Defaults: Built-in sensible defaults
//  2. Config File: Optional YAML config file (if exists)
//  3. Environment Variables: Override any setting
//
// After merging, *_FILE secret indirections are resolved and the result
// is validated. Precedence: ENV > File > Defaults.
func Load() (*Config, error) {
	k := koanf.New(".")

	// Layer 1: Load defaults from struct
	defaults := defaultConfig()
	if err := k.Load(structs.Provider(defaults, "koanf"), nil); err != nil {
		return nil, fmt.Errorf("failed to load defaults: %w", err)
	}

	// Layer 2: Load config file (optional)
	configPath := findConfigFile()
	if configPath != "" {
		if err := k.Load(file.Provider(configPath), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("failed to load config file %s: %w", configPath, err)
		}
	}

	// Layer 3: Load environment variables (highest priority)
	// Transform environment variable names to koanf paths:
	// FRIGATE_URL -> frigate.url
	// NOTIFY_WEBHOOK_URL -> notify.webhook.url
	envProvider := env.Provider("", ".", envTransformFunc)
	if err := k.Load(envProvider, nil); err != nil {
		return nil, fmt.Errorf("failed to load environment variables: %w", err)
	}

	// Post-process slice fields from comma-separated strings
	if err := processSliceFields(k); err != nil {
		return nil, fmt.Errorf("failed to process slice fields: %w", err)
	}

	// Unmarshal into Config struct
	cfg := &Config{}
	if err := k.Unmarshal("", cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal configuration: %w", err)
	}

	// Resolve *_FILE secret indirections before validation so required
	// secrets supplied via files pass the presence checks.
	if err := cfg.resolveSecretFiles(); err != nil {
		return nil, fmt.Errorf("failed to resolve secret files: %w", err)
	}

	// Validate the configuration
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	return cfg, nil
}

// findConfigFile searches for a config file in the default paths.
// Returns the path to the first file found, or empty string if none found.
func findConfigFile() string {
	// Check environment variable first
	if envPath := os.Getenv(ConfigPathEnvVar); envPath != "" {
		if _, err := os.Stat(envPath); err == nil {
			return envPath
		}
	}

	// Search default paths
	for _, path := range DefaultConfigPaths {
		if _, err := os.Stat(path); err == nil {
			return path
		}
	}

	return ""
}

// sliceConfigPaths defines which config paths should be parsed as comma-separated slices
var sliceConfigPaths = []string{
	"rules.cameras",
	"rules.labels",
	"rules.zones",
	"rules.event_types",
	"security.cors_origins",
}

// processSliceFields converts comma-separated string values to slices for known slice fields.
// This is necessary because env vars come in as strings, but the config expects slices.
func processSliceFields(k *koanf.Koanf) error {
	for _, path := range sliceConfigPaths {
		val := k.Get(path)
		if val == nil {
			continue
		}

		// If it's already a slice (from YAML file), skip
		if _, ok := val.([]interface{}); ok {
			continue
		}
		if _, ok := val.([]string); ok {
			continue
		}

		// If it's a string, split by comma
		if strVal, ok := val.(string); ok {
			if strVal == "" {
				continue
			}
			parts := strings.Split(strVal, ",")
			trimmed := make([]string, 0, len(parts))
			for _, p := range parts {
				p = strings.TrimSpace(p)
				if p != "" {
					trimmed = append(trimmed, p)
				}
			}
			if len(trimmed) > 0 {
				if err := k.Set(path, trimmed); err != nil {
					return fmt.Errorf("failed to set %s: %w", path, err)
				}
			}
		}
	}
	return nil
}

// envTransformFunc transforms environment variable names to koanf config paths.
//
// Examples:
//   - FRIGATE_URL -> frigate.url
//   - MQTT_BROKER_URL -> mqtt.broker_url
//   - NOTIFY_DISCORD_WEBHOOK_URL -> notify.discord.webhook_url
//   - HTTP_PORT -> server.port
func envTransformFunc(key string) string {
	key = strings.ToLower(key)

	envMappings := map[string]string{
		// Frigate mappings
		"frigate_url":                  "frigate.url",
		"frigate_username":             "frigate.username",
		"frigate_password":             "frigate.password",
		"frigate_password_file":        "frigate.password_file",
		"frigate_login_timeout":        "frigate.login_timeout",
		"frigate_request_timeout":      "frigate.request_timeout",
		"frigate_insecure_skip_verify": "frigate.insecure_skip_verify",

		// MQTT ingest mappings
		"mqtt_enabled":              "mqtt.enabled",
		"mqtt_broker_url":           "mqtt.broker_url",
		"mqtt_client_id":            "mqtt.client_id",
		"mqtt_username":             "mqtt.username",
		"mqtt_password":             "mqtt.password",
		"mqtt_password_file":        "mqtt.password_file",
		"mqtt_topic_prefix":         "mqtt.topic_prefix",
		"mqtt_qos":                  "mqtt.qos",
		"mqtt_keep_alive":           "mqtt.keep_alive",
		"mqtt_connect_timeout":      "mqtt.connect_timeout",
		"mqtt_insecure_skip_verify": "mqtt.insecure_skip_verify",

		// Poller mappings
		"poller_enabled":  "poller.enabled",
		"poller_interval": "poller.interval",
		"poller_limit":    "poller.limit",

		// Pipeline mappings
		"pipeline_buffer_size":        "pipeline.buffer_size",
		"pipeline_retry_count":        "pipeline.retry_count",
		"pipeline_retry_interval":     "pipeline.retry_initial_interval",
		"pipeline_retry_max_interval": "pipeline.retry_max_interval",
		"pipeline_throttle":           "pipeline.throttle_per_second",
		"pipeline_dedup_enabled":      "pipeline.dedup_enabled",
		"pipeline_dedup_ttl":          "pipeline.dedup_ttl",
		"pipeline_poison_topic":       "pipeline.poison_topic",
		"pipeline_close_timeout":      "pipeline.close_timeout",
		"pipeline_snapshot_enrich":    "pipeline.snapshot_enrich",
		"pipeline_snapshot_max_bytes": "pipeline.snapshot_max_bytes",

		// NATS mappings (requires -tags nats)
		"nats_enabled":        "nats.enabled",
		"nats_url":            "nats.url",
		"nats_embedded":       "nats.embedded_server",
		"nats_store_dir":      "nats.store_dir",
		"nats_max_memory":     "nats.max_memory",
		"nats_max_store":      "nats.max_store",
		"nats_retention_days": "nats.stream_retention_days",
		"nats_subscribers":    "nats.subscribers_count",
		"nats_durable_name":   "nats.durable_name",
		"nats_queue_group":    "nats.queue_group",
		"nats_max_reconnects": "nats.max_reconnects",
		"nats_reconnect_wait": "nats.reconnect_wait",
		"nats_ack_wait":       "nats.ack_wait",

		// Rules mappings
		"rules_cameras":             "rules.cameras",
		"rules_labels":              "rules.labels",
		"rules_zones":               "rules.zones",
		"rules_min_score":           "rules.min_score",
		"rules_event_types":         "rules.event_types",
		"rules_cooldown":            "rules.cooldown",
		"rules_dedup_window":        "rules.dedup_window",
		"rules_quiet_hours_enabled": "rules.quiet_hours_enabled",
		"rules_quiet_hours_start":   "rules.quiet_hours_start",
		"rules_quiet_hours_end":     "rules.quiet_hours_end",

		// Notifier mappings
		"notify_rate_per_minute":          "notify.rate_per_minute",
		"notify_template":                 "notify.template",
		"notify_webhook_enabled":          "notify.webhook.enabled",
		"notify_webhook_url":              "notify.webhook.url",
		"notify_webhook_secret":           "notify.webhook.secret",
		"notify_webhook_secret_file":      "notify.webhook.secret_file",
		"notify_webhook_timeout":          "notify.webhook.timeout",
		"notify_discord_enabled":          "notify.discord.enabled",
		"notify_discord_webhook_url":      "notify.discord.webhook_url",
		"notify_discord_username":         "notify.discord.username",
		"notify_discord_attach_snapshots": "notify.discord.attach_snapshots",
		"notify_discord_timeout":          "notify.discord.timeout",
		"notify_ntfy_enabled":             "notify.ntfy.enabled",
		"notify_ntfy_server_url":          "notify.ntfy.server_url",
		"notify_ntfy_topic":               "notify.ntfy.topic",
		"notify_ntfy_access_token":        "notify.ntfy.access_token",
		"notify_ntfy_priority":            "notify.ntfy.priority",
		"notify_ntfy_attach_snapshots":    "notify.ntfy.attach_snapshots",
		"notify_ntfy_timeout":             "notify.ntfy.timeout",
		"notify_mqtt_enabled":             "notify.mqtt.enabled",
		"notify_mqtt_topic_prefix":        "notify.mqtt.topic_prefix",

		// History mappings
		"history_enabled":        "history.enabled",
		"duckdb_path":            "history.path",
		"duckdb_max_memory":      "history.max_memory",
		"duckdb_threads":         "history.threads",
		"history_retention_days": "history.retention_days",
		"history_sweep_interval": "history.sweep_interval",

		// State store mappings
		"state_path":      "state.path",
		"state_in_memory": "state.in_memory",

		// Server mappings
		"http_port":    "server.port",
		"http_host":    "server.host",
		"http_timeout": "server.timeout",

		// API mappings
		"api_default_page_size": "api.default_page_size",
		"api_max_page_size":     "api.max_page_size",

		// Security mappings
		"auth_mode":           "security.auth_mode",
		"jwt_secret":          "security.jwt_secret",
		"token_ttl":           "security.token_ttl",
		"admin_user":          "security.admin_user",
		"admin_pass":          "security.admin_pass",
		"admin_pass_hash":     "security.admin_pass_hash",
		"rate_limit_requests": "security.rate_limit_requests",
		"rate_limit_window":   "security.rate_limit_window",
		"cors_origins":        "security.cors_origins",

		// OIDC mappings
		"oidc_issuer_url":    "security.oidc.issuer_url",
		"oidc_client_id":     "security.oidc.client_id",
		"oidc_client_secret": "security.oidc.client_secret",
		"oidc_roles_claim":   "security.oidc.roles_claim",
		"oidc_default_role":  "security.oidc.default_role",

		// Casbin mappings
		"casbin_model_path":      "security.casbin.model_path",
		"casbin_policy_path":     "security.casbin.policy_path",
		"casbin_default_role":    "security.casbin.default_role",
		"casbin_auto_reload":     "security.casbin.auto_reload",
		"casbin_reload_interval": "security.casbin.reload_interval",

		// Logging mappings
		"log_level":  "logging.level",
		"log_format": "logging.format",
		"log_caller": "logging.caller",
	}

	if mapped, ok := envMappings[key]; ok {
		return mapped
	}

	// For unmapped keys, return empty string to skip them
	// This prevents random environment variables from polluting config
	return ""
}
