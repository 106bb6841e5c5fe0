// Excubitor - Frigate NVR Event Notification Bridge
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/excubitor

package logging

import (
	"strings"

	"github.com/rs/zerolog"
)

// SecurityEvent represents a security-relevant event for audit logging.
type SecurityEvent struct {
	// Event is the type of event (e.g., "login_success", "token_refresh").
	Event string
	// Username is the acting user's name (if known).
	Username string
	// Provider is the authentication provider (frigate, basic, oidc).
	Provider string
	// Remote is the client's IP address.
	Remote string
	// UserAgent is the client's user agent (truncated).
	UserAgent string
	// Success indicates if the operation was successful.
	Success bool
	// Error is the error message if the operation failed.
	Error string
	// Details contains additional sanitized details.
	Details map[string]string
}

// SecurityLogger provides secure logging for authentication events.
// It sanitizes sensitive data before logging.
type SecurityLogger struct {
	logger zerolog.Logger
}

// NewSecurityLogger creates a new security logger.
func NewSecurityLogger() *SecurityLogger {
	return &SecurityLogger{
		logger: With().Str("component", "auth").Logger(),
	}
}

// NewSecurityLoggerWithLogger creates a security logger with a custom zerolog logger.
//
//nolint:gocritic // zerolog.Logger is designed to be passed by value
func NewSecurityLoggerWithLogger(logger zerolog.Logger) *SecurityLogger {
	return &SecurityLogger{
		logger: logger.With().Str("component", "auth").Logger(),
	}
}

// LogEvent logs a security event with automatic sanitization.
func (l *SecurityLogger) LogEvent(event *SecurityEvent) {
	e := l.logger.Info().
		Str("event", event.Event)

	if event.Success {
		e = e.Str("status", "success")
	} else {
		e = e.Str("status", "failed")
	}

	if event.Username != "" {
		e = e.Str("username", SanitizeUsername(event.Username))
	}
	if event.Provider != "" {
		e = e.Str("provider", event.Provider)
	}
	if event.Remote != "" {
		e = e.Str("ip", event.Remote)
	}
	if event.UserAgent != "" {
		e = e.Str("user_agent", truncateString(event.UserAgent, 100))
	}
	if event.Error != "" && !event.Success {
		e = e.Str("error", SanitizeError(event.Error))
	}

	for k, v := range event.Details {
		e = e.Str(k, SanitizeValue(k, v))
	}

	e.Msg("")
}

// Debug logs a debug-level message.
func (l *SecurityLogger) Debug(msg string, fields ...interface{}) {
	e := l.logger.Debug()
	e = addFieldPairs(e, fields)
	e.Msg(msg)
}

// Info logs an info-level message.
func (l *SecurityLogger) Info(msg string, fields ...interface{}) {
	e := l.logger.Info()
	e = addFieldPairs(e, fields)
	e.Msg(msg)
}

// Warn logs a warning-level message.
func (l *SecurityLogger) Warn(msg string, fields ...interface{}) {
	e := l.logger.Warn()
	e = addFieldPairs(e, fields)
	e.Msg(msg)
}

// Error logs an error-level message.
func (l *SecurityLogger) Error(msg string, fields ...interface{}) {
	e := l.logger.Error()
	e = addFieldPairs(e, fields)
	e.Msg(msg)
}

// addFieldPairs adds key-value pairs to a zerolog event.
func addFieldPairs(e *zerolog.Event, fields []interface{}) *zerolog.Event {
	for i := 0; i < len(fields); i += 2 {
		if i+1 < len(fields) {
			key, ok := fields[i].(string)
			if !ok {
				continue
			}
			e = e.Interface(key, fields[i+1])
		}
	}
	return e
}

// ============================================================
// Pre-defined Security Events
// ============================================================

// LogLoginSuccess logs a successful login against the bridge API.
func (l *SecurityLogger) LogLoginSuccess(username, provider, remote, userAgent string) {
	l.LogEvent(&SecurityEvent{
		Event:     "login_success",
		Username:  username,
		Provider:  provider,
		Remote:    remote,
		UserAgent: userAgent,
		Success:   true,
	})
}

// LogLoginFailure logs a failed login against the bridge API.
func (l *SecurityLogger) LogLoginFailure(username, provider, remote, userAgent, reason string) {
	l.LogEvent(&SecurityEvent{
		Event:     "login_failed",
		Username:  username,
		Provider:  provider,
		Remote:    remote,
		UserAgent: userAgent,
		Success:   false,
		Error:     reason,
	})
}

// LogUpstreamLogin logs a login exchange against the Frigate instance.
func (l *SecurityLogger) LogUpstreamLogin(username string, success bool, errMsg string) {
	l.LogEvent(&SecurityEvent{
		Event:    "upstream_login",
		Username: username,
		Provider: "frigate",
		Success:  success,
		Error:    errMsg,
	})
}

// LogTokenRefresh logs a session token refresh.
// Trigger is the reason the refresh ran: expiring, unauthorized or manual.
func (l *SecurityLogger) LogTokenRefresh(trigger string, success bool, errMsg string) {
	l.LogEvent(&SecurityEvent{
		Event:    "token_refresh",
		Provider: "frigate",
		Success:  success,
		Error:    errMsg,
		Details: map[string]string{
			"trigger": trigger,
		},
	})
}

// LogSessionReset logs an operator-initiated session reset.
func (l *SecurityLogger) LogSessionReset(actor, remote string) {
	l.LogEvent(&SecurityEvent{
		Event:    "session_reset",
		Username: actor,
		Remote:   remote,
		Success:  true,
	})
}

// LogUpstreamUnauthorized logs a confirmed 401 from the Frigate instance.
func (l *SecurityLogger) LogUpstreamUnauthorized(endpoint string) {
	l.LogEvent(&SecurityEvent{
		Event:    "upstream_unauthorized",
		Provider: "frigate",
		Success:  false,
		Details: map[string]string{
			"endpoint": endpoint,
		},
	})
}

// ============================================================
// Sanitization Functions
// ============================================================

// SanitizeToken masks a token, showing only first and last 4 characters.
// Example: "eyJhbGciOiJSUzI1NiIsInR5cCI6IkpXVCJ9..." -> "eyJh...kpXV"
func SanitizeToken(token string) string {
	if token == "" {
		return ""
	}
	if len(token) <= 12 {
		return "***"
	}
	return token[:4] + "..." + token[len(token)-4:]
}

// SanitizeCookie masks the cookie value in a Set-Cookie header string,
// preserving the cookie name and attributes.
// Example: "frigate_token=eyJhbGc...; HttpOnly" -> "frigate_token=eyJh...kpXV; HttpOnly"
func SanitizeCookie(cookie string) string {
	if cookie == "" {
		return ""
	}

	parts := strings.Split(cookie, ";")
	name, value, found := strings.Cut(parts[0], "=")
	if !found {
		return SanitizeToken(strings.TrimSpace(parts[0]))
	}

	parts[0] = name + "=" + SanitizeToken(strings.TrimSpace(value))
	return strings.Join(parts, ";")
}

// SanitizeUsername masks a username, keeping first 2 characters.
// Example: "johndoe" -> "jo***"
func SanitizeUsername(username string) string {
	if username == "" {
		return ""
	}
	if len(username) <= 2 {
		return "***"
	}
	return username[:2] + "***"
}

// SanitizeError removes potentially sensitive information from error messages.
func SanitizeError(err string) string {
	sensitivePatterns := []string{
		"password",
		"secret",
		"token",
		"key",
		"bearer",
		"authorization",
		"cookie",
	}

	lowerErr := strings.ToLower(err)
	for _, pattern := range sensitivePatterns {
		if strings.Contains(lowerErr, pattern) {
			return "authentication error"
		}
	}

	return truncateString(err, 200)
}

// SanitizeValue sanitizes a value based on its key name.
func SanitizeValue(key, value string) string {
	lowerKey := strings.ToLower(key)

	sensitiveKeys := map[string]bool{
		"access_token":  true,
		"refresh_token": true,
		"token":         true,
		"password":      true,
		"secret":        true,
		"api_key":       true,
		"apikey":        true,
		"authorization": true,
		"bearer":        true,
		"cookie":        true,
		"set-cookie":    true,
	}

	if sensitiveKeys[lowerKey] {
		return SanitizeToken(value)
	}

	return value
}

// truncateString truncates a string to a maximum length.
func truncateString(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	return s[:maxLen] + "..."
}
