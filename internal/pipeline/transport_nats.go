// Excubitor - Frigate NVR Event Notification Bridge
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/excubitor

//go:build nats

package pipeline

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/ThreeDotsLabs/watermill"
	wmNats "github.com/ThreeDotsLabs/watermill-nats/v2/pkg/nats"
	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/nats-io/nats-server/v2/server"
	natsgo "github.com/nats-io/nats.go"
	"github.com/nats-io/nats.go/jetstream"

	"github.com/tomtom215/excubitor/internal/config"
	"github.com/tomtom215/excubitor/internal/logging"
)

const (
	streamName     = "EXCUBITOR_EVENTS"
	streamSubjects = "events.>"
)

// natsTransport carries pipeline messages over NATS JetStream, durable
// across restarts. When the embedded server is enabled the broker runs
// in-process with file-backed storage.
type natsTransport struct {
	server      *server.Server
	conn        *natsgo.Conn
	publisher   message.Publisher
	subscribers []message.Subscriber
	natsCfg     config.NATSConfig
	logger      watermill.LoggerAdapter
}

// NewTransport builds the JetStream transport, or falls back to the
// in-process channel when NATS is disabled in config.
func NewTransport(natsCfg *config.NATSConfig, pipeCfg *config.PipelineConfig, logger watermill.LoggerAdapter) (Transport, error) {
	if natsCfg == nil || !natsCfg.Enabled {
		return newGoChannelTransport(pipeCfg, logger), nil
	}

	t := &natsTransport{natsCfg: *natsCfg, logger: logger}

	url := natsCfg.URL
	if natsCfg.EmbeddedServer {
		ns, err := startEmbeddedServer(natsCfg)
		if err != nil {
			return nil, err
		}
		t.server = ns
		url = ns.ClientURL()
		logging.Info().Str("url", url).Msg("embedded NATS server started")
	}

	nc, err := natsgo.Connect(url,
		natsgo.RetryOnFailedConnect(true),
		natsgo.MaxReconnects(natsCfg.MaxReconnects),
		natsgo.ReconnectWait(natsCfg.ReconnectWait),
	)
	if err != nil {
		t.Close()
		return nil, fmt.Errorf("connect to NATS: %w", err)
	}
	t.conn = nc

	if err := t.ensureStream(); err != nil {
		t.Close()
		return nil, err
	}

	pub, err := wmNats.NewPublisher(wmNats.PublisherConfig{
		URL:       url,
		Marshaler: &wmNats.NATSMarshaler{},
		NatsOptions: []natsgo.Option{
			natsgo.RetryOnFailedConnect(true),
			natsgo.MaxReconnects(natsCfg.MaxReconnects),
			natsgo.ReconnectWait(natsCfg.ReconnectWait),
		},
		JetStream: wmNats.JetStreamConfig{
			Disabled:      false,
			AutoProvision: false, // stream is pre-created above
			TrackMsgId:    true,
			PublishOptions: []natsgo.PubOpt{
				natsgo.RetryAttempts(3),
				natsgo.RetryWait(100 * time.Millisecond),
			},
		},
	}, logger)
	if err != nil {
		t.Close()
		return nil, fmt.Errorf("create NATS publisher: %w", err)
	}
	t.publisher = pub

	return t, nil
}

// startEmbeddedServer runs a JetStream-enabled NATS server in-process.
func startEmbeddedServer(cfg *config.NATSConfig) (*server.Server, error) {
	opts := &server.Options{
		ServerName:         "excubitor-events",
		Host:               "127.0.0.1",
		Port:               4222,
		JetStream:          true,
		StoreDir:           cfg.StoreDir,
		JetStreamMaxMemory: cfg.MaxMemory,
		JetStreamMaxStore:  cfg.MaxStore,
		NoLog:              true,
		MaxPayload:         8 * 1024 * 1024,
	}

	ns, err := server.NewServer(opts)
	if err != nil {
		return nil, fmt.Errorf("create NATS server: %w", err)
	}
	go ns.Start()
	if !ns.ReadyForConnections(30 * time.Second) {
		ns.Shutdown()
		return nil, errors.New("NATS server not ready within timeout")
	}
	return ns, nil
}

// ensureStream creates or updates the event stream. Idempotent.
func (t *natsTransport) ensureStream() error {
	js, err := jetstream.New(t.conn)
	if err != nil {
		return fmt.Errorf("create JetStream context: %w", err)
	}

	maxAge := 7 * 24 * time.Hour
	if t.natsCfg.StreamRetentionDays > 0 {
		maxAge = time.Duration(t.natsCfg.StreamRetentionDays) * 24 * time.Hour
	}

	streamCfg := jetstream.StreamConfig{
		Name:        streamName,
		Subjects:    []string{streamSubjects},
		Retention:   jetstream.LimitsPolicy,
		MaxAge:      maxAge,
		Duplicates:  5 * time.Minute,
		Storage:     jetstream.FileStorage,
		AllowDirect: true,
		Discard:     jetstream.DiscardOld,
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if _, err := js.Stream(ctx, streamName); err == nil {
		if _, err := js.UpdateStream(ctx, streamCfg); err != nil {
			return fmt.Errorf("update stream %s: %w", streamName, err)
		}
		return nil
	} else if !errors.Is(err, jetstream.ErrStreamNotFound) {
		return fmt.Errorf("check stream %s: %w", streamName, err)
	}

	if _, err := js.CreateStream(ctx, streamCfg); err != nil {
		return fmt.Errorf("create stream %s: %w", streamName, err)
	}
	return nil
}

func (t *natsTransport) Publisher() message.Publisher {
	return t.publisher
}

// Subscriber builds a durable JetStream consumer scoped to one handler.
// Distinct durable and queue names per handler give each its own cursor,
// so the filter, history, and broadcast paths all see every event.
func (t *natsTransport) Subscriber(name string) (message.Subscriber, error) {
	durable := t.natsCfg.DurableName
	if durable == "" {
		durable = "excubitor"
	}
	queueGroup := t.natsCfg.QueueGroup
	if queueGroup == "" {
		queueGroup = "excubitor"
	}
	subscribersCount := t.natsCfg.SubscribersCount
	if subscribersCount <= 0 {
		subscribersCount = 1
	}
	ackWait := t.natsCfg.AckWait
	if ackWait <= 0 {
		ackWait = 30 * time.Second
	}

	sub, err := wmNats.NewSubscriber(wmNats.SubscriberConfig{
		URL:              t.conn.ConnectedUrl(),
		QueueGroupPrefix: queueGroup + "-" + name,
		SubscribersCount: subscribersCount,
		AckWaitTimeout:   ackWait,
		NatsOptions: []natsgo.Option{
			natsgo.RetryOnFailedConnect(true),
			natsgo.MaxReconnects(t.natsCfg.MaxReconnects),
			natsgo.ReconnectWait(t.natsCfg.ReconnectWait),
		},
		Unmarshaler: &wmNats.NATSMarshaler{},
		JetStream: wmNats.JetStreamConfig{
			Disabled:      false,
			AutoProvision: false,
			AckAsync:      false,
			DurablePrefix: durable + "-" + name,
			SubscribeOptions: []natsgo.SubOpt{
				natsgo.BindStream(streamName),
				natsgo.AckWait(ackWait),
				natsgo.DeliverNew(),
			},
		},
	}, t.logger)
	if err != nil {
		return nil, fmt.Errorf("create NATS subscriber %s: %w", name, err)
	}

	t.subscribers = append(t.subscribers, sub)
	return sub, nil
}

func (t *natsTransport) Close() error {
	var errs []error
	for _, sub := range t.subscribers {
		if err := sub.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	if t.publisher != nil {
		if err := t.publisher.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	if t.conn != nil {
		t.conn.Close()
	}
	if t.server != nil {
		t.server.Shutdown()
		t.server.WaitForShutdown()
	}
	return errors.Join(errs...)
}
