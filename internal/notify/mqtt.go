// Excubitor - Frigate NVR Event Notification Bridge
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/excubitor

package notify

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/goccy/go-json"

	"github.com/tomtom215/excubitor/internal/config"
	"github.com/tomtom215/excubitor/internal/events"
)

// MQTTPublisher is the publish surface of the broker connection. The ingest
// subscriber's paho client satisfies it, so republishing rides the existing
// connection instead of opening a second one.
type MQTTPublisher interface {
	Publish(topic string, qos byte, retained bool, payload []byte) error
	Connected() bool
}

// MQTTNotifier republishes alerts on the broker, one topic per camera under
// the configured prefix, for home-automation consumers.
type MQTTNotifier struct {
	publisher   MQTTPublisher
	topicPrefix string
	enabled     bool
}

// MQTTAlertPayload is the JSON body published per alert.
type MQTTAlertPayload struct {
	Title       string              `json:"title"`
	Message     string              `json:"message"`
	SnapshotURL string              `json:"snapshot_url,omitempty"`
	Event       *events.CameraEvent `json:"event"`
	Timestamp   time.Time           `json:"timestamp"`
}

// NewMQTTNotifier creates an MQTT republish notifier over an existing
// broker connection.
func NewMQTTNotifier(cfg *config.MQTTNotifierConfig, publisher MQTTPublisher) *MQTTNotifier {
	topicPrefix := cfg.TopicPrefix
	if topicPrefix == "" {
		topicPrefix = "excubitor/alerts"
	}
	return &MQTTNotifier{
		publisher:   publisher,
		topicPrefix: strings.TrimSuffix(topicPrefix, "/"),
		enabled:     cfg.Enabled,
	}
}

// Name returns the notifier name.
func (n *MQTTNotifier) Name() string {
	return "mqtt"
}

// Enabled returns whether this notifier is enabled and the broker
// connection is up.
func (n *MQTTNotifier) Enabled() bool {
	return n.enabled && n.publisher != nil && n.publisher.Connected()
}

// Send publishes the alert to {prefix}/{camera}.
func (n *MQTTNotifier) Send(_ context.Context, alert *Alert) error {
	payload, err := json.Marshal(MQTTAlertPayload{
		Title:       alert.Title,
		Message:     alert.Message,
		SnapshotURL: alert.SnapshotURL,
		Event:       alert.Event,
		Timestamp:   alert.CreatedAt,
	})
	if err != nil {
		return fmt.Errorf("failed to marshal MQTT alert: %w", err)
	}

	topic := n.topicPrefix + "/" + alert.Event.Camera
	if err := n.publisher.Publish(topic, 0, false, payload); err != nil {
		return fmt.Errorf("failed to publish MQTT alert: %w", err)
	}
	return nil
}
