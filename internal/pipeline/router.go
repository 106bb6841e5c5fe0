// Excubitor - Frigate NVR Event Notification Bridge
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/excubitor

package pipeline

import (
	"context"
	"fmt"
	"time"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/ThreeDotsLabs/watermill/message/router/middleware"

	"github.com/tomtom215/excubitor/internal/config"
	"github.com/tomtom215/excubitor/internal/events"
	"github.com/tomtom215/excubitor/internal/metrics"
	"github.com/tomtom215/excubitor/internal/state"
)

// RouterConfig holds configuration for the Watermill router.
type RouterConfig struct {
	// CloseTimeout is how long to wait for in-flight handlers when closing.
	CloseTimeout time.Duration

	RetryMaxRetries      int
	RetryInitialInterval time.Duration
	RetryMaxInterval     time.Duration
	RetryMultiplier      float64

	// ThrottlePerSecond limits handler throughput (0 = unlimited).
	ThrottlePerSecond int64

	PoisonQueueTopic string

	// DedupEnabled guards against broker redelivery by message UUID.
	// Cross-source dedup (MQTT vs poller seeing the same detection) is the
	// rule engine's job and keys on the Frigate event ID instead.
	DedupEnabled bool
	DedupTTL     time.Duration
}

// DefaultRouterConfig returns production defaults.
func DefaultRouterConfig() RouterConfig {
	return RouterConfig{
		CloseTimeout:         30 * time.Second,
		RetryMaxRetries:      5,
		RetryInitialInterval: time.Second,
		RetryMaxInterval:     time.Minute,
		RetryMultiplier:      2.0,
		ThrottlePerSecond:    0,
		PoisonQueueTopic:     events.TopicPoison,
		DedupEnabled:         true,
		DedupTTL:             5 * time.Minute,
	}
}

// RouterConfigFromPipeline maps the application pipeline config onto router
// settings, falling back to defaults for anything unset.
func RouterConfigFromPipeline(cfg *config.PipelineConfig) RouterConfig {
	rc := DefaultRouterConfig()
	if cfg == nil {
		return rc
	}
	if cfg.RetryCount > 0 {
		rc.RetryMaxRetries = cfg.RetryCount
	}
	if cfg.RetryInitialInterval > 0 {
		rc.RetryInitialInterval = cfg.RetryInitialInterval
	}
	if cfg.RetryMaxInterval > 0 {
		rc.RetryMaxInterval = cfg.RetryMaxInterval
	}
	if cfg.ThrottlePerSecond > 0 {
		rc.ThrottlePerSecond = cfg.ThrottlePerSecond
	}
	if cfg.PoisonTopic != "" {
		rc.PoisonQueueTopic = cfg.PoisonTopic
	}
	if cfg.CloseTimeout > 0 {
		rc.CloseTimeout = cfg.CloseTimeout
	}
	rc.DedupEnabled = cfg.DedupEnabled
	if cfg.DedupTTL > 0 {
		rc.DedupTTL = cfg.DedupTTL
	}
	return rc
}

// Router wraps the Watermill router with the bridge's middleware stack:
// panic recovery, exponential backoff retry, optional throttling, optional
// redelivery dedup, and poison queue routing for messages that exhaust
// their retries.
type Router struct {
	router   *message.Router
	config   RouterConfig
	logger   watermill.LoggerAdapter
	handlers map[string]*message.Handler
}

// NewRouter builds the router with its middleware. markerStore backs the
// dedup middleware and may be nil when dedup is disabled; poisonPublisher
// may be nil to disable the poison queue.
func NewRouter(
	cfg RouterConfig,
	markerStore state.Store,
	poisonPublisher message.Publisher,
	logger watermill.LoggerAdapter,
) (*Router, error) {
	if logger == nil {
		logger = watermill.NopLogger{}
	}

	wmRouter, err := message.NewRouter(message.RouterConfig{CloseTimeout: cfg.CloseTimeout}, logger)
	if err != nil {
		return nil, fmt.Errorf("create watermill router: %w", err)
	}

	r := &Router{
		router:   wmRouter,
		config:   cfg,
		logger:   logger,
		handlers: make(map[string]*message.Handler),
	}

	// Middleware runs outer to inner in registration order. The poison queue
	// sits outside Retry: it must only see an error once the inner retry
	// middleware has exhausted its attempts, otherwise one transient failure
	// dead-letters the message.
	wmRouter.AddMiddleware(middleware.Recoverer)

	if poisonPublisher != nil && cfg.PoisonQueueTopic != "" {
		poison, err := middleware.PoisonQueue(&countingPoisonPublisher{inner: poisonPublisher}, cfg.PoisonQueueTopic)
		if err != nil {
			return nil, fmt.Errorf("create poison queue middleware: %w", err)
		}
		wmRouter.AddMiddleware(poison)
	}

	retry := middleware.Retry{
		MaxRetries:      cfg.RetryMaxRetries,
		InitialInterval: cfg.RetryInitialInterval,
		MaxInterval:     cfg.RetryMaxInterval,
		Multiplier:      cfg.RetryMultiplier,
		Logger:          logger,
	}
	wmRouter.AddMiddleware(retry.Middleware)

	if cfg.ThrottlePerSecond > 0 {
		throttle := middleware.NewThrottle(cfg.ThrottlePerSecond, time.Second)
		wmRouter.AddMiddleware(throttle.Middleware)
	}

	if cfg.DedupEnabled && markerStore != nil {
		dedup := middleware.Deduplicator{
			// Scoped by handler name: fan-out handlers each see the same
			// message UUID, and the filter republishes under it too.
			KeyFactory: func(msg *message.Message) (string, error) {
				return message.HandlerNameFromCtx(msg.Context()) + ":" + msg.UUID, nil
			},
			Repository: &countingDedupRepository{
				inner: state.NewDedupRepository(markerStore, cfg.DedupTTL),
			},
		}
		wmRouter.AddMiddleware(dedup.Middleware)
	}

	return r, nil
}

// countingDedupRepository counts swallowed redeliveries on top of the
// shared marker store.
type countingDedupRepository struct {
	inner *state.DedupRepository
}

func (c *countingDedupRepository) IsDuplicate(ctx context.Context, key string) (bool, error) {
	dup, err := c.inner.IsDuplicate(ctx, key)
	if err == nil && dup {
		metrics.RecordPipelineDeduplicated()
	}
	return dup, err
}

// countingPoisonPublisher counts messages diverted to the poison queue.
type countingPoisonPublisher struct {
	inner message.Publisher
}

func (c *countingPoisonPublisher) Publish(topic string, messages ...*message.Message) error {
	if err := c.inner.Publish(topic, messages...); err != nil {
		return err
	}
	for range messages {
		metrics.RecordPipelinePoisoned()
	}
	return nil
}

func (c *countingPoisonPublisher) Close() error {
	// The wrapped publisher is owned by the transport; closing it here
	// would tear it down for every other handler.
	return nil
}

// AddHandler registers a publishing handler: messages from subscribeTopic
// are processed and any returned messages go to publishTopic.
func (r *Router) AddHandler(
	name string,
	subscribeTopic string,
	subscriber message.Subscriber,
	publishTopic string,
	publisher message.Publisher,
	handler message.HandlerFunc,
) *message.Handler {
	h := r.router.AddHandler(name, subscribeTopic, subscriber, publishTopic, publisher, handler)
	r.handlers[name] = h
	return h
}

// AddConsumerHandler registers a handler that produces no output messages.
func (r *Router) AddConsumerHandler(
	name string,
	subscribeTopic string,
	subscriber message.Subscriber,
	handler message.NoPublishHandlerFunc,
) *message.Handler {
	h := r.router.AddConsumerHandler(name, subscribeTopic, subscriber, handler)
	r.handlers[name] = h
	return h
}

// Run starts the router and blocks until the context is canceled or Close
// is called.
func (r *Router) Run(ctx context.Context) error {
	return r.router.Run(ctx)
}

// Running returns a channel that closes once all handlers are running.
func (r *Router) Running() <-chan struct{} {
	return r.router.Running()
}

// Close stops the router, waiting up to CloseTimeout for in-flight
// messages.
func (r *Router) Close() error {
	return r.router.Close()
}
