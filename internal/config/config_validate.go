// Excubitor - Frigate NVR Event Notification Bridge
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/excubitor

package config

import (
	"fmt"
	"net/url"
	"strings"
	"time"
)

// Validate checks that required configuration is present and valid
func (c *Config) Validate() error {
	if err := c.validateFrigate(); err != nil {
		return err
	}

	if err := c.validateMQTT(); err != nil {
		return err
	}

	if err := c.validatePoller(); err != nil {
		return err
	}

	if err := c.validateRules(); err != nil {
		return err
	}

	if err := c.validateNotify(); err != nil {
		return err
	}

	if err := c.validateServer(); err != nil {
		return err
	}

	if err := c.validateSecurity(); err != nil {
		return err
	}

	return c.validateLogging()
}

// validateFrigate validates the Frigate connection settings.
// The Frigate endpoint is the one mandatory upstream: the bridge has nothing
// to do without it.
func (c *Config) validateFrigate() error {
	if c.Frigate.URL == "" {
		return fmt.Errorf("FRIGATE_URL is required")
	}
	if err := validateHTTPURL(c.Frigate.URL, "FRIGATE_URL"); err != nil {
		return fmt.Errorf("FRIGATE_URL is invalid: %w", err)
	}
	if c.Frigate.Username == "" {
		return fmt.Errorf("FRIGATE_USERNAME is required")
	}
	if c.Frigate.Password == "" {
		return fmt.Errorf("FRIGATE_PASSWORD (or FRIGATE_PASSWORD_FILE) is required")
	}
	if c.Frigate.LoginTimeout <= 0 {
		return fmt.Errorf("FRIGATE_LOGIN_TIMEOUT must be positive")
	}
	if c.Frigate.RequestTimeout <= 0 {
		return fmt.Errorf("FRIGATE_REQUEST_TIMEOUT must be positive")
	}
	return nil
}

// validateMQTT validates MQTT ingest settings (only if enabled)
func (c *Config) validateMQTT() error {
	if !c.MQTT.Enabled {
		return nil
	}
	if c.MQTT.BrokerURL == "" {
		return fmt.Errorf("MQTT_BROKER_URL is required when MQTT_ENABLED=true")
	}
	if c.MQTT.TopicPrefix == "" {
		return fmt.Errorf("MQTT_TOPIC_PREFIX must not be empty")
	}
	if c.MQTT.QoS > 2 {
		return fmt.Errorf("MQTT_QOS must be 0, 1 or 2")
	}
	return nil
}

// validatePoller validates HTTP polling fallback settings (only if enabled)
func (c *Config) validatePoller() error {
	if !c.Poller.Enabled {
		return nil
	}
	if c.Poller.Interval < time.Second {
		return fmt.Errorf("POLLER_INTERVAL must be at least 1s")
	}
	if c.Poller.Limit < 1 || c.Poller.Limit > 1000 {
		return fmt.Errorf("POLLER_LIMIT must be between 1 and 1000")
	}
	return nil
}

// validateRules validates the event filter rules
func (c *Config) validateRules() error {
	for _, et := range c.Rules.EventTypes {
		switch et {
		case "new", "update", "end":
		default:
			return fmt.Errorf("RULES_EVENT_TYPES contains unknown type %q (want new, update or end)", et)
		}
	}
	if c.Rules.MinScore < 0 || c.Rules.MinScore > 1 {
		return fmt.Errorf("RULES_MIN_SCORE must be between 0 and 1")
	}
	if c.Rules.QuietHoursEnabled {
		if err := validateClock(c.Rules.QuietHoursStart, "RULES_QUIET_HOURS_START"); err != nil {
			return err
		}
		if err := validateClock(c.Rules.QuietHoursEnd, "RULES_QUIET_HOURS_END"); err != nil {
			return err
		}
	}
	return nil
}

// validateNotify validates notification channel settings (only enabled channels)
func (c *Config) validateNotify() error {
	if c.Notify.Webhook.Enabled {
		if c.Notify.Webhook.URL == "" {
			return fmt.Errorf("NOTIFY_WEBHOOK_URL is required when NOTIFY_WEBHOOK_ENABLED=true")
		}
		if err := validateWebhookURL(c.Notify.Webhook.URL, "NOTIFY_WEBHOOK_URL"); err != nil {
			return err
		}
	}
	if c.Notify.Discord.Enabled && c.Notify.Discord.WebhookURL == "" {
		return fmt.Errorf("NOTIFY_DISCORD_WEBHOOK_URL is required when NOTIFY_DISCORD_ENABLED=true")
	}
	if c.Notify.Ntfy.Enabled {
		if c.Notify.Ntfy.Topic == "" {
			return fmt.Errorf("NOTIFY_NTFY_TOPIC is required when NOTIFY_NTFY_ENABLED=true")
		}
		switch c.Notify.Ntfy.Priority {
		case "min", "low", "default", "high", "urgent":
		default:
			return fmt.Errorf("NOTIFY_NTFY_PRIORITY must be one of min, low, default, high, urgent")
		}
	}
	if c.Notify.MQTT.Enabled {
		if !c.MQTT.Enabled {
			return fmt.Errorf("NOTIFY_MQTT_ENABLED=true requires MQTT_ENABLED=true (republish shares the ingest connection)")
		}
		if c.Notify.MQTT.TopicPrefix == "" {
			return fmt.Errorf("NOTIFY_MQTT_TOPIC_PREFIX must not be empty")
		}
	}
	if c.Notify.RatePerMinute < 0 {
		return fmt.Errorf("NOTIFY_RATE_PER_MINUTE must not be negative")
	}
	return nil
}

// validateServer validates HTTP server settings
func (c *Config) validateServer() error {
	if c.Server.Port < 1 || c.Server.Port > 65535 {
		return fmt.Errorf("HTTP_PORT must be between 1 and 65535")
	}
	if c.Server.Timeout <= 0 {
		return fmt.Errorf("HTTP_TIMEOUT must be positive")
	}
	if c.API.DefaultPageSize < 1 || c.API.DefaultPageSize > c.API.MaxPageSize {
		return fmt.Errorf("API_DEFAULT_PAGE_SIZE must be between 1 and API_MAX_PAGE_SIZE")
	}
	return nil
}

// validateSecurity validates admin authentication settings
func (c *Config) validateSecurity() error {
	switch c.Security.AuthMode {
	case "none":
		return nil
	case "basic":
		if c.Security.AdminUser == "" {
			return fmt.Errorf("ADMIN_USER is required when AUTH_MODE=basic")
		}
		if c.Security.AdminPass == "" && c.Security.AdminHash == "" {
			return fmt.Errorf("ADMIN_PASS or ADMIN_PASS_HASH is required when AUTH_MODE=basic")
		}
		if c.Security.JWTSecret == "" {
			return fmt.Errorf("JWT_SECRET is required when AUTH_MODE=basic")
		}
		if len(c.Security.JWTSecret) < 32 {
			return fmt.Errorf("JWT_SECRET must be at least 32 characters")
		}
		if c.Security.TokenTTL < time.Minute {
			return fmt.Errorf("TOKEN_TTL must be at least 1m")
		}
	case "oidc":
		if c.Security.OIDC.IssuerURL == "" {
			return fmt.Errorf("OIDC_ISSUER_URL is required when AUTH_MODE=oidc")
		}
		if c.Security.OIDC.ClientID == "" || c.Security.OIDC.ClientSecret == "" {
			return fmt.Errorf("OIDC_CLIENT_ID and OIDC_CLIENT_SECRET are required when AUTH_MODE=oidc")
		}
	default:
		return fmt.Errorf("AUTH_MODE must be one of none, basic, oidc (got %q)", c.Security.AuthMode)
	}
	return nil
}

// validateLogging validates log settings
func (c *Config) validateLogging() error {
	switch strings.ToLower(c.Logging.Level) {
	case "trace", "debug", "info", "warn", "warning", "error", "fatal":
	default:
		return fmt.Errorf("LOG_LEVEL must be one of trace, debug, info, warn, error, fatal (got %q)", c.Logging.Level)
	}
	switch c.Logging.Format {
	case "json", "console":
	default:
		return fmt.Errorf("LOG_FORMAT must be json or console (got %q)", c.Logging.Format)
	}
	return nil
}

// validateHTTPURL validates that a URL is properly formatted for HTTP/HTTPS services.
// Validates: scheme (http/https), host present, no paths or query params.
func validateHTTPURL(rawURL, fieldName string) error {
	parsedURL, err := url.Parse(rawURL)
	if err != nil {
		return fmt.Errorf("%s failed to parse URL: %w", fieldName, err)
	}

	if parsedURL.Scheme != "http" && parsedURL.Scheme != "https" {
		return fmt.Errorf("%s scheme must be http or https, got: %s", fieldName, parsedURL.Scheme)
	}

	if parsedURL.Host == "" {
		return fmt.Errorf("%s host is required", fieldName)
	}

	// Allow trailing slash but no other paths
	if parsedURL.Path != "" && parsedURL.Path != "/" {
		return fmt.Errorf("%s should be base URL only, remove path: %s", fieldName, parsedURL.Path)
	}

	if parsedURL.RawQuery != "" {
		return fmt.Errorf("%s should not contain query parameters, remove: ?%s", fieldName, parsedURL.RawQuery)
	}

	return nil
}

// validateWebhookURL validates a full webhook URL (path and query allowed).
func validateWebhookURL(rawURL, fieldName string) error {
	parsedURL, err := url.Parse(rawURL)
	if err != nil {
		return fmt.Errorf("%s failed to parse URL: %w", fieldName, err)
	}
	if parsedURL.Scheme != "http" && parsedURL.Scheme != "https" {
		return fmt.Errorf("%s scheme must be http or https, got: %s", fieldName, parsedURL.Scheme)
	}
	if parsedURL.Host == "" {
		return fmt.Errorf("%s host is required", fieldName)
	}
	return nil
}

// validateClock checks an HH:MM wall-clock string.
func validateClock(value, fieldName string) error {
	if _, err := time.Parse("15:04", value); err != nil {
		return fmt.Errorf("%s must be in HH:MM format (got %q)", fieldName, value)
	}
	return nil
}
