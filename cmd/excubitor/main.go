// Excubitor - Frigate NVR Event Notification Bridge
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/excubitor

// Package main is the entry point for the Excubitor bridge.
//
// Excubitor watches a Frigate NVR for object detection events and fans
// them out to notification channels (webhook, Discord, ntfy, MQTT
// republish), keeping a queryable event history and streaming live
// events to WebSocket clients.
//
// # Application Architecture
//
// The bridge initializes components in the following order:
//
//  1. Configuration: Load settings from environment variables and config files (Koanf v2)
//  2. History: DuckDB-backed event and notification log
//  3. State: BadgerDB dedup/cooldown markers
//  4. Frigate client: session-token login with circuit breaker
//  5. Rules engine: camera/label/zone filters, cooldowns, quiet hours
//  6. Notifiers: webhook, Discord, ntfy, MQTT republish
//  7. Pipeline: Watermill router from ingest to delivery
//  8. Ingest: MQTT subscriber and/or HTTP poller
//  9. Auth + RBAC: admin API authentication and Casbin enforcement
//  10. HTTP server: REST API with Swagger documentation
//
// All long-running components run under a suture supervision tree.
//
// # Configuration
//
// Configuration is loaded via Koanf v2 with layered sources (highest priority wins):
//   - Environment variables (see .env.example)
//   - Config file (config.yaml)
//   - Built-in defaults
//
// Minimum configuration is the Frigate connection:
//
//	export FRIGATE_URL=http://frigate:8971
//	export FRIGATE_USERNAME=admin
//	export FRIGATE_PASSWORD=secret
//	./excubitor
//
// MQTT ingest (recommended, low latency):
//
//	export MQTT_ENABLED=true
//	export MQTT_BROKER_URL=tcp://mosquitto:1883
//
// HTTP polling fallback for deployments without a broker:
//
//	export POLLER_ENABLED=true
//	export POLLER_INTERVAL=10s
//
// For admin API authentication (basic mode):
//
//	export AUTH_MODE=basic
//	export JWT_SECRET=$(openssl rand -base64 32)
//	export ADMIN_USER=admin
//	export ADMIN_PASS=secure-password
//
// # Build Tags
//
// Optional build tags enable additional functionality:
//
//	go build -tags "nats" ./cmd/excubitor  # Durable JetStream event transport
//
// # Signal Handling
//
// The bridge handles graceful shutdown on SIGINT and SIGTERM:
//   - Stops accepting new connections
//   - Waits for in-flight requests and deliveries to complete (10s timeout)
//   - Closes the pipeline, state store, and history database
package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	_ "github.com/tomtom215/excubitor/docs" // Import generated swagger docs
	"github.com/tomtom215/excubitor/internal/api"
	"github.com/tomtom215/excubitor/internal/auth"
	"github.com/tomtom215/excubitor/internal/authz"
	"github.com/tomtom215/excubitor/internal/config"
	"github.com/tomtom215/excubitor/internal/frigate"
	"github.com/tomtom215/excubitor/internal/history"
	"github.com/tomtom215/excubitor/internal/ingest"
	"github.com/tomtom215/excubitor/internal/logging"
	"github.com/tomtom215/excubitor/internal/notify"
	"github.com/tomtom215/excubitor/internal/pipeline"
	"github.com/tomtom215/excubitor/internal/rules"
	"github.com/tomtom215/excubitor/internal/state"
	"github.com/tomtom215/excubitor/internal/supervisor"
	"github.com/tomtom215/excubitor/internal/supervisor/services"
	ws "github.com/tomtom215/excubitor/internal/websocket"
)

// version is injected at build time via -ldflags "-X main.version=...".
var version = "dev"

//nolint:gocyclo // Main initialization function with sequential setup steps
func main() {
	// Load configuration first to get logging settings
	cfg, err := config.Load()
	if err != nil {
		// Use default logger for config errors (config not yet available)
		logging.Fatal().Err(err).Msg("Failed to load configuration")
	}

	logging.Init(logging.Config{
		Level:  cfg.Logging.Level,
		Format: cfg.Logging.Format,
		Caller: cfg.Logging.Caller,
	})

	logging.Info().Str("version", version).Msg("Starting Excubitor")
	logging.Info().
		Str("frigate_url", cfg.Frigate.URL).
		Bool("mqtt_enabled", cfg.MQTT.Enabled).
		Bool("poller_enabled", cfg.Poller.Enabled).
		Str("auth_mode", cfg.Security.AuthMode).
		Msg("Configuration loaded")

	if !cfg.MQTT.Enabled && !cfg.Poller.Enabled {
		logging.Warn().Msg("Neither MQTT ingest nor the HTTP poller is enabled; no events will arrive")
	}

	// Event history (optional)
	var historyStore *history.Store
	if cfg.History.Enabled {
		historyStore, err = history.New(&cfg.History)
		if err != nil {
			logging.Fatal().Err(err).Msg("Failed to initialize history database")
		}
		defer func() {
			if err := historyStore.Close(); err != nil {
				logging.Error().Err(err).Msg("Error closing history database")
			}
		}()
		logging.Info().Str("path", cfg.History.Path).Msg("History database initialized")
	} else {
		logging.Info().Msg("History disabled (HISTORY_ENABLED=false)")
	}

	// Dedup/cooldown state
	stateStore, err := state.NewBadgerStore(&cfg.State)
	if err != nil {
		logging.Fatal().Err(err).Msg("Failed to open state store")
	}
	defer func() {
		if err := stateStore.Close(); err != nil {
			logging.Error().Err(err).Msg("Error closing state store")
		}
	}()

	// Frigate client with circuit breaker. Login happens lazily on the
	// first request, so an unreachable NVR at boot is not fatal.
	upstream := frigate.NewBreakerClient(&cfg.Frigate)
	if _, err := upstream.Version(context.Background()); err != nil {
		logging.Warn().Err(err).Msg("Failed to reach Frigate (will retry)")
	} else {
		logging.Info().Msg("Connected to Frigate successfully")
	}

	engine, err := rules.NewEngine(&cfg.Rules, stateStore)
	if err != nil {
		logging.Fatal().Err(err).Msg("Failed to build rules engine")
	}

	dispatcher := buildDispatcher(cfg)
	if historyStore != nil {
		dispatcher.SetRecorder(historyStore)
	}

	// WebSocket hub for live event streaming
	wsHub := ws.NewHub()

	pipeOpts := pipeline.Options{
		Config:     cfg,
		Store:      stateStore,
		Engine:     engine,
		Dispatcher: dispatcher,
		Snapshots:  upstream,
		Hub:        wsHub,
	}
	if historyStore != nil {
		pipeOpts.Recorder = historyStore
	}
	pipe, err := pipeline.New(pipeOpts)
	if err != nil {
		logging.Fatal().Err(err).Msg("Failed to build event pipeline")
	}
	defer func() {
		if err := pipe.Close(); err != nil {
			logging.Error().Err(err).Msg("Error closing pipeline")
		}
	}()

	// Ingest sources publish into the pipeline bus
	var subscriber *ingest.MQTTSubscriber
	if cfg.MQTT.Enabled {
		subscriber = ingest.NewMQTTSubscriber(&cfg.MQTT, pipe.Bus())
		if cfg.Notify.MQTT.Enabled {
			// Alert republish rides the same broker connection.
			dispatcher.AddNotifier(notify.NewMQTTNotifier(&cfg.Notify.MQTT, subscriber.Publisher()))
			logging.Info().Str("topic_prefix", cfg.Notify.MQTT.TopicPrefix).Msg("MQTT republish notifier enabled")
		}
	} else if cfg.Notify.MQTT.Enabled {
		logging.Warn().Msg("MQTT republish notifier requires MQTT ingest; disabled")
	}

	var poller *ingest.Poller
	if cfg.Poller.Enabled {
		poller = ingest.NewPoller(&cfg.Poller, upstream, pipe.Bus())
	}

	// Create context for graceful shutdown
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Admin API authentication and RBAC
	authSvc, err := auth.NewService(ctx, &cfg.Security)
	if err != nil {
		logging.Fatal().Err(err).Msg("Failed to initialize authentication")
	}
	if authSvc.Mode() == auth.ModeNone {
		logging.Warn().Msg("============================================================")
		logging.Warn().Msg("  SECURITY WARNING: Authentication is DISABLED (AUTH_MODE=none)")
		logging.Warn().Msg("  ")
		logging.Warn().Msg("  All endpoints are publicly accessible without authentication!")
		logging.Warn().Msg("  NEVER use AUTH_MODE=none in production or on public networks!")
		logging.Warn().Msg("============================================================")
	}

	enforcer, err := authz.NewEnforcer(&cfg.Security.Casbin)
	if err != nil {
		logging.Fatal().Err(err).Msg("Failed to initialize RBAC enforcer")
	}
	defer enforcer.Close()

	handlerOpts := api.HandlerOptions{
		Config:     cfg,
		Upstream:   upstream,
		Dispatcher: dispatcher,
		Hub:        wsHub,
		Auth:       authSvc,
		Version:    version,
	}
	if historyStore != nil {
		handlerOpts.Store = historyStore
	}
	if subscriber != nil {
		handlerOpts.Broker = subscriber
	}
	handler := api.NewHandler(handlerOpts)
	router := api.NewRouter(handler, enforcer)

	server := &http.Server{
		Addr:         fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port),
		Handler:      router.Setup(),
		ReadTimeout:  cfg.Server.Timeout,
		WriteTimeout: cfg.Server.Timeout,
		IdleTimeout:  60 * time.Second,
	}

	// Supervisor tree; suture events reach zerolog through the slog bridge
	tree := supervisor.NewTree(logging.NewSlogLogger(), supervisor.DefaultTreeConfig())

	if subscriber != nil {
		tree.AddIngestService(subscriber)
		logging.Info().Str("broker", cfg.MQTT.BrokerURL).Msg("MQTT subscriber added to supervisor tree")
	}
	if poller != nil {
		tree.AddIngestService(poller)
		logging.Info().Dur("interval", cfg.Poller.Interval).Msg("HTTP poller added to supervisor tree")
	}

	tree.AddPipelineService(pipe)
	tree.AddPipelineService(wsHub)
	if historyStore != nil && cfg.History.RetentionDays > 0 {
		tree.AddPipelineService(services.NewSweeperService(historyStore, cfg.History.RetentionDays, cfg.History.SweepInterval))
		logging.Info().Int("retention_days", cfg.History.RetentionDays).Msg("Retention sweeper added to supervisor tree")
	}

	tree.AddAPIService(services.NewHTTPServerService(server, 10*time.Second))
	logging.Info().Str("addr", server.Addr).Msg("HTTP server service added")

	// Setup signal handling
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-sigCh
		logging.Info().Str("signal", sig.String()).Msg("Received shutdown signal")
		cancel()
	}()

	logging.Info().Msg("Starting supervisor tree...")
	errCh := tree.ServeBackground(ctx)

	select {
	case <-ctx.Done():
		logging.Info().Msg("Context canceled, waiting for supervisor to finish...")
	case err := <-errCh:
		if err != nil && !errors.Is(err, context.Canceled) {
			logging.Error().Err(err).Msg("Supervisor tree error")
		}
	}

	// Wait for the error channel to close (supervisor finished)
	for err := range errCh {
		if err != nil && !errors.Is(err, context.Canceled) {
			logging.Error().Err(err).Msg("Supervisor shutdown error")
		}
	}

	// Report any services that failed to stop within timeout
	unstopped, _ := tree.UnstoppedServiceReport()
	for _, svc := range unstopped {
		logging.Warn().Str("service", svc.Name).Msg("Service failed to stop within timeout")
	}

	logging.Info().Msg("Excubitor stopped gracefully")
}

// buildDispatcher wires the enabled HTTP-based notification channels.
// The MQTT republisher is added later, once the broker connection exists.
func buildDispatcher(cfg *config.Config) *notify.Dispatcher {
	var notifiers []notify.Notifier

	if cfg.Notify.Webhook.Enabled {
		notifiers = append(notifiers, notify.NewWebhookNotifier(&cfg.Notify.Webhook))
		logging.Info().Str("url", cfg.Notify.Webhook.URL).Msg("Webhook notifier enabled")
	}
	if cfg.Notify.Discord.Enabled {
		notifiers = append(notifiers, notify.NewDiscordNotifier(&cfg.Notify.Discord))
		logging.Info().Msg("Discord notifier enabled")
	}
	if cfg.Notify.Ntfy.Enabled {
		notifiers = append(notifiers, notify.NewNtfyNotifier(&cfg.Notify.Ntfy))
		logging.Info().
			Str("server", cfg.Notify.Ntfy.ServerURL).
			Str("topic", cfg.Notify.Ntfy.Topic).
			Msg("ntfy notifier enabled")
	}
	if len(notifiers) == 0 {
		logging.Warn().Msg("No notification channels enabled; events will only reach history and WebSocket clients")
	}

	return notify.NewDispatcher(cfg.Notify.RatePerMinute, notifiers...)
}
