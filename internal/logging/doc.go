// Excubitor - Frigate NVR Event Notification Bridge
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/excubitor

// Package logging provides centralized zerolog-based structured logging
// for Excubitor.
//
// The package exposes a global logger with package-level helpers, JSON
// output for production and console output for development, and
// context-aware logging with correlation ID propagation.
//
// # Quick Start
//
//	import "github.com/tomtom215/excubitor/internal/logging"
//
//	// Initialize at application startup
//	logging.Init(logging.Config{
//	    Level:  "info",
//	    Format: "json",
//	})
//
//	// Log messages with structured fields
//	logging.Info().Str("camera", "front_door").Msg("event received")
//	logging.Error().Err(err).Msg("login failed")
//
//	// Context-aware logging
//	logging.Ctx(ctx).Info().Msg("request processed")
//
// # Configuration
//
// Environment Variables (read by internal/config):
//
//	LOG_LEVEL   - Minimum log level: trace, debug, info, warn, error (default: info)
//	LOG_FORMAT  - Output format: json, console (default: json)
//	LOG_CALLER  - Include caller file:line: true, false (default: false)
//
// # Structured Logging
//
// Always terminate log chains with .Msg() or .Send():
//
//	logging.Info().Str("key", "value").Msg("message")  // Correct
//	logging.Info().Str("key", "value")                 // WRONG - log not emitted
//
// Prefer structured fields over string formatting:
//
//	logging.Info().
//	    Str("camera", camera).
//	    Int("count", n).
//	    Dur("elapsed", elapsed).
//	    Msg("events delivered")
//
// # Component Loggers
//
// Create component-specific loggers with default fields:
//
//	sessionLogger := logging.WithComponent("session")
//	sessionLogger.Info().Msg("token refreshed")
//
// # Sensitive Data
//
// Session tokens, passwords and Set-Cookie values must never appear in
// log output. Use the sanitization helpers before logging anything that
// may carry credentials:
//
//	logging.Debug().
//	    Str("token", logging.SanitizeToken(tok)).
//	    Msg("session established")
//
// # slog Adapter
//
// An slog adapter is provided for libraries that require *slog.Logger,
// such as the Suture supervision tree:
//
//	slogLogger := logging.NewSlogLogger()
//
// # Thread Safety
//
// All exported functions are safe for concurrent use. The global logger
// is protected by sync.RWMutex for configuration changes.
package logging
