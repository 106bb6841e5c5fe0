// Excubitor - Frigate NVR Event Notification Bridge
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/excubitor

package ingest

import (
	"context"
	"crypto/tls"
	"fmt"
	"strings"
	"sync"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"

	"github.com/tomtom215/excubitor/internal/config"
	"github.com/tomtom215/excubitor/internal/events"
	"github.com/tomtom215/excubitor/internal/logging"
	"github.com/tomtom215/excubitor/internal/metrics"
)

const (
	defaultKeepAlive      = 30 * time.Second
	defaultConnectTimeout = 10 * time.Second
	publishTimeout        = 5 * time.Second
)

// EventPublisher receives parsed events from an ingest source. The
// pipeline's bus satisfies it.
type EventPublisher interface {
	PublishEvent(ctx context.Context, ev *events.CameraEvent) error
}

// MQTTSubscriber ingests detection events from Frigate's MQTT topics. It is
// the primary low-latency ingest path; paho handles reconnect and
// resubscribe.
type MQTTSubscriber struct {
	cfg       *config.MQTTConfig
	publisher EventPublisher

	// mu guards client: Serve rewrites it on every supervisor restart while
	// the status handler and the alert republisher read it.
	mu     sync.RWMutex
	client mqtt.Client
}

// NewMQTTSubscriber creates the subscriber. The connection is established
// in Serve, not here.
func NewMQTTSubscriber(cfg *config.MQTTConfig, publisher EventPublisher) *MQTTSubscriber {
	return &MQTTSubscriber{cfg: cfg, publisher: publisher}
}

// Serve connects to the broker, subscribes to the Frigate topics, and
// blocks until the context is cancelled. Implements suture.Service.
func (s *MQTTSubscriber) Serve(ctx context.Context) error {
	opts := s.clientOptions(ctx)
	client := mqtt.NewClient(opts)
	s.setClient(client)

	token := client.Connect()
	if !token.WaitTimeout(s.connectTimeout()) {
		return fmt.Errorf("mqtt connect to %s timed out", s.cfg.BrokerURL)
	}
	if err := token.Error(); err != nil {
		return fmt.Errorf("mqtt connect to %s: %w", s.cfg.BrokerURL, err)
	}

	<-ctx.Done()

	metrics.SetIngestConnected(events.SourceMQTT, false)
	client.Disconnect(uint(publishTimeout.Milliseconds()))
	logging.Info().Msg("mqtt subscriber stopped")
	return ctx.Err()
}

// Publisher exposes the broker connection for alert republishing. Returns
// a publisher that reports disconnected until Serve has connected.
func (s *MQTTSubscriber) Publisher() *BrokerPublisher {
	return &BrokerPublisher{subscriber: s}
}

// Connected reports whether the broker connection is up.
func (s *MQTTSubscriber) Connected() bool {
	client := s.currentClient()
	return client != nil && client.IsConnectionOpen()
}

func (s *MQTTSubscriber) setClient(client mqtt.Client) {
	s.mu.Lock()
	s.client = client
	s.mu.Unlock()
}

func (s *MQTTSubscriber) currentClient() mqtt.Client {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.client
}

func (s *MQTTSubscriber) clientOptions(ctx context.Context) *mqtt.ClientOptions {
	clientID := s.cfg.ClientID
	if clientID == "" {
		clientID = "excubitor"
	}
	keepAlive := s.cfg.KeepAlive
	if keepAlive <= 0 {
		keepAlive = defaultKeepAlive
	}

	opts := mqtt.NewClientOptions().
		AddBroker(s.cfg.BrokerURL).
		SetClientID(clientID).
		SetKeepAlive(keepAlive).
		SetConnectTimeout(s.connectTimeout()).
		SetAutoReconnect(true).
		SetCleanSession(false).
		SetOrderMatters(false)

	if s.cfg.Username != "" {
		opts.SetUsername(s.cfg.Username)
		opts.SetPassword(s.cfg.Password)
	}
	if s.cfg.InsecureSkipVerify {
		opts.SetTLSConfig(&tls.Config{InsecureSkipVerify: true}) //nolint:gosec // explicit opt-in for self-signed local brokers
	}

	opts.SetOnConnectHandler(func(client mqtt.Client) {
		metrics.SetIngestConnected(events.SourceMQTT, true)
		logging.Info().Str("broker", s.cfg.BrokerURL).Msg("mqtt connected")
		s.subscribe(ctx, client)
	})
	opts.SetConnectionLostHandler(func(_ mqtt.Client, err error) {
		metrics.SetIngestConnected(events.SourceMQTT, false)
		metrics.RecordIngestReconnect(events.SourceMQTT)
		logging.Warn().Err(err).Msg("mqtt connection lost, reconnecting")
	})

	return opts
}

// subscribe registers the topic handlers. Called on every (re)connect so
// subscriptions survive broker restarts even with a clean session.
func (s *MQTTSubscriber) subscribe(ctx context.Context, client mqtt.Client) {
	prefix := s.topicPrefix()

	eventsTopic := prefix + "/events"
	if token := client.Subscribe(eventsTopic, s.cfg.QoS, func(_ mqtt.Client, msg mqtt.Message) {
		s.handleEvent(ctx, msg.Payload())
	}); token.Wait() && token.Error() != nil {
		logging.Error().Err(token.Error()).Str("topic", eventsTopic).Msg("mqtt subscribe failed")
	}

	availableTopic := prefix + "/available"
	if token := client.Subscribe(availableTopic, s.cfg.QoS, func(_ mqtt.Client, msg mqtt.Message) {
		s.handleAvailability(string(msg.Payload()))
	}); token.Wait() && token.Error() != nil {
		logging.Error().Err(token.Error()).Str("topic", availableTopic).Msg("mqtt subscribe failed")
	}
}

// handleEvent parses one events payload and hands it to the pipeline. A
// malformed payload is counted and dropped; it never takes the
// subscription down.
func (s *MQTTSubscriber) handleEvent(ctx context.Context, payload []byte) {
	ev, err := ParseFrigateEvent(payload)
	if err != nil {
		metrics.RecordIngestParseFailure(events.SourceMQTT)
		logging.Warn().Err(err).Msg("dropping unparseable mqtt event")
		return
	}
	metrics.RecordIngestEvent(events.SourceMQTT, ev.Type)

	publishCtx, cancel := context.WithTimeout(ctx, publishTimeout)
	defer cancel()
	if err := s.publisher.PublishEvent(publishCtx, ev); err != nil {
		logging.Error().Err(err).Str("frigate_id", ev.FrigateID).Msg("failed to publish ingested event")
	}
}

// handleAvailability tracks Frigate's own LWT-style availability topic.
func (s *MQTTSubscriber) handleAvailability(status string) {
	online := status == "online"
	logging.Info().Str("status", status).Msg("frigate availability changed")
	if !online {
		logging.Warn().Msg("frigate reports offline; events will resume when it returns")
	}
}

func (s *MQTTSubscriber) topicPrefix() string {
	prefix := s.cfg.TopicPrefix
	if prefix == "" {
		prefix = "frigate"
	}
	return strings.TrimSuffix(prefix, "/")
}

func (s *MQTTSubscriber) connectTimeout() time.Duration {
	if s.cfg.ConnectTimeout > 0 {
		return s.cfg.ConnectTimeout
	}
	return defaultConnectTimeout
}

// BrokerPublisher adapts the subscriber's broker connection to the notify
// package's publish surface.
type BrokerPublisher struct {
	subscriber *MQTTSubscriber
}

// Publish sends a payload on the shared broker connection.
func (p *BrokerPublisher) Publish(topic string, qos byte, retained bool, payload []byte) error {
	client := p.subscriber.currentClient()
	if client == nil || !client.IsConnectionOpen() {
		return fmt.Errorf("mqtt broker not connected")
	}
	token := client.Publish(topic, qos, retained, payload)
	if !token.WaitTimeout(publishTimeout) {
		return fmt.Errorf("mqtt publish to %s timed out", topic)
	}
	return token.Error()
}

// Connected reports whether the broker connection is up.
func (p *BrokerPublisher) Connected() bool {
	return p.subscriber.Connected()
}
