// Excubitor - Frigate NVR Event Notification Bridge
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/excubitor

package pipeline

import (
	"context"
	"fmt"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/goccy/go-json"

	"github.com/tomtom215/excubitor/internal/events"
	"github.com/tomtom215/excubitor/internal/metrics"
)

// Message metadata keys. Carried as headers on the wire so operators can
// inspect subjects without unmarshaling payloads.
const (
	MetadataSource    = "source"
	MetadataEventType = "event_type"
	MetadataCamera    = "camera"
	MetadataFrigateID = "frigate_id"
)

// Bus is the ingest-facing entry point of the pipeline. Both the MQTT
// subscriber and the poller hand events to PublishEvent, which serializes
// them onto the camera events topic.
type Bus struct {
	publisher message.Publisher
	logger    watermill.LoggerAdapter
}

// NewBus wraps a publisher as an event bus.
func NewBus(publisher message.Publisher, logger watermill.LoggerAdapter) *Bus {
	if logger == nil {
		logger = watermill.NopLogger{}
	}
	return &Bus{publisher: publisher, logger: logger}
}

// PublishEvent validates and publishes a camera event. The message UUID is
// the event UID, so broker-level deduplication and poison queue entries
// trace back to the originating event.
func (b *Bus) PublishEvent(ctx context.Context, ev *events.CameraEvent) error {
	if err := ev.Validate(); err != nil {
		return fmt.Errorf("invalid event: %w", err)
	}

	payload, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("marshal event: %w", err)
	}

	msg := message.NewMessage(ev.UID, payload)
	msg.Metadata.Set(MetadataSource, ev.Source)
	msg.Metadata.Set(MetadataEventType, ev.Type)
	msg.Metadata.Set(MetadataCamera, ev.Camera)
	msg.Metadata.Set(MetadataFrigateID, ev.FrigateID)
	msg.SetContext(ctx)

	if err := b.publisher.Publish(events.TopicCameraEvents, msg); err != nil {
		return fmt.Errorf("publish event %s: %w", ev.UID, err)
	}

	metrics.RecordPipelinePublish()
	b.logger.Trace("event published", watermill.LogFields{
		"uid":    ev.UID,
		"camera": ev.Camera,
		"type":   ev.Type,
	})
	return nil
}

// decodeEvent unmarshals a pipeline message back into a camera event.
func decodeEvent(msg *message.Message) (*events.CameraEvent, error) {
	var ev events.CameraEvent
	if err := json.Unmarshal(msg.Payload, &ev); err != nil {
		return nil, fmt.Errorf("decode event %s: %w", msg.UUID, err)
	}
	return &ev, nil
}

// encodeEvent builds a fresh pipeline message for an event, used when a
// handler republishes to a downstream topic.
func encodeEvent(ev *events.CameraEvent) (*message.Message, error) {
	payload, err := json.Marshal(ev)
	if err != nil {
		return nil, fmt.Errorf("marshal event: %w", err)
	}
	msg := message.NewMessage(ev.UID, payload)
	msg.Metadata.Set(MetadataSource, ev.Source)
	msg.Metadata.Set(MetadataEventType, ev.Type)
	msg.Metadata.Set(MetadataCamera, ev.Camera)
	msg.Metadata.Set(MetadataFrigateID, ev.FrigateID)
	return msg, nil
}
