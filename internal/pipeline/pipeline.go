// Excubitor - Frigate NVR Event Notification Bridge
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/excubitor

package pipeline

import (
	"context"
	"fmt"
	"sync"
	"text/template"

	"github.com/tomtom215/excubitor/internal/config"
	"github.com/tomtom215/excubitor/internal/events"
	"github.com/tomtom215/excubitor/internal/logging"
	"github.com/tomtom215/excubitor/internal/notify"
	"github.com/tomtom215/excubitor/internal/rules"
	"github.com/tomtom215/excubitor/internal/state"
)

// WebSocket message type for broadcast camera events.
const MessageTypeCameraEvent = "camera_event"

// Options wires the pipeline's collaborators. Config, Store, Engine, and
// Dispatcher are required; the rest switch optional stages on.
type Options struct {
	Config     *config.Config
	Store      state.Store
	Engine     *rules.Engine
	Dispatcher *notify.Dispatcher

	// Recorder persists events and notification outcomes; nil disables
	// the history stage.
	Recorder EventRecorder

	// Snapshots enables snapshot URLs and enrichment; nil disables both.
	Snapshots SnapshotFetcher

	// Hub receives every ingested event for UI streaming; nil disables
	// the broadcast stage.
	Hub Broadcaster
}

// Pipeline connects ingest to notification delivery: events enter through
// the Bus, pass the rule engine, and fan out to notifiers, history, and
// WebSocket clients. It runs as one supervised service.
type Pipeline struct {
	bus       *Bus
	router    *Router
	transport Transport

	closeOnce sync.Once
	closeErr  error
}

// New assembles the transport, router, and handler stages.
func New(opts Options) (*Pipeline, error) {
	if opts.Config == nil {
		return nil, fmt.Errorf("pipeline: config required")
	}
	if opts.Engine == nil {
		return nil, fmt.Errorf("pipeline: rule engine required")
	}
	if opts.Dispatcher == nil {
		return nil, fmt.Errorf("pipeline: dispatcher required")
	}

	logger := NewLoggerAdapter()

	transport, err := NewTransport(&opts.Config.NATS, &opts.Config.Pipeline, logger)
	if err != nil {
		return nil, err
	}

	routerCfg := RouterConfigFromPipeline(&opts.Config.Pipeline)
	router, err := NewRouter(routerCfg, opts.Store, transport.Publisher(), logger)
	if err != nil {
		transport.Close()
		return nil, err
	}

	p := &Pipeline{
		bus:       NewBus(transport.Publisher(), logger),
		router:    router,
		transport: transport,
	}

	tmpl, err := alertTemplate(opts.Config.Notify.Template)
	if err != nil {
		transport.Close()
		return nil, err
	}

	filterSub, err := transport.Subscriber("filter")
	if err != nil {
		transport.Close()
		return nil, err
	}
	router.AddHandler(
		"filter",
		events.TopicCameraEvents,
		filterSub,
		events.TopicAlerts,
		transport.Publisher(),
		NewFilterHandler(opts.Engine).Handle,
	)

	notifySub, err := transport.Subscriber("notify")
	if err != nil {
		transport.Close()
		return nil, err
	}
	alertHandler := NewAlertHandler(opts.Dispatcher, opts.Snapshots, tmpl, opts.Config.Pipeline.SnapshotEnrich)
	router.AddConsumerHandler("notify", events.TopicAlerts, notifySub, alertHandler.Handle)

	if opts.Recorder != nil {
		historySub, err := transport.Subscriber("history")
		if err != nil {
			transport.Close()
			return nil, err
		}
		router.AddConsumerHandler("history", events.TopicCameraEvents, historySub,
			NewHistoryHandler(opts.Recorder).Handle)
	}

	if opts.Hub != nil {
		wsSub, err := transport.Subscriber("websocket")
		if err != nil {
			transport.Close()
			return nil, err
		}
		router.AddConsumerHandler("websocket", events.TopicCameraEvents, wsSub,
			NewWebSocketHandler(opts.Hub, MessageTypeCameraEvent).Handle)
	}

	return p, nil
}

// alertTemplate parses the configured message template, falling back to
// the default.
func alertTemplate(text string) (*template.Template, error) {
	if text == "" {
		text = notify.DefaultTemplate
	}
	tmpl, err := notify.ParseTemplate(text)
	if err != nil {
		return nil, fmt.Errorf("parse alert template: %w", err)
	}
	return tmpl, nil
}

// Bus returns the ingest-facing publisher.
func (p *Pipeline) Bus() *Bus {
	return p.bus
}

// Serve runs the router until the context is canceled. Implements
// suture.Service.
func (p *Pipeline) Serve(ctx context.Context) error {
	elog := logging.NewEventLogger()
	elog.LogRouterStarted()
	defer elog.LogRouterStopped()
	return p.router.Run(ctx)
}

// Running returns a channel that closes once all handlers are consuming.
func (p *Pipeline) Running() <-chan struct{} {
	return p.router.Running()
}

// Close shuts the router and transport down. Safe to call more than once.
func (p *Pipeline) Close() error {
	p.closeOnce.Do(func() {
		routerErr := p.router.Close()
		transportErr := p.transport.Close()
		if routerErr != nil {
			p.closeErr = routerErr
		} else {
			p.closeErr = transportErr
		}
	})
	return p.closeErr
}

func (p *Pipeline) String() string {
	return "pipeline"
}
