// Excubitor - Frigate NVR Event Notification Bridge
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/excubitor

// Package events defines the canonical detection event that flows through
// the bridge pipeline, regardless of whether it arrived over MQTT or the
// HTTP poller.
package events

import (
	"time"

	"github.com/goccy/go-json"
	"github.com/google/uuid"
)

// SchemaVersion is the current event schema version.
// Increment this when making breaking changes to CameraEvent.
const SchemaVersion = 1

// Pipeline topics.
const (
	// TopicCameraEvents carries every accepted CameraEvent.
	TopicCameraEvents = "events.camera"
	// TopicAlerts carries events that passed the filter rules and are due
	// for notification fan-out.
	TopicAlerts = "events.alerts"
	// TopicPoison receives messages that exhausted their processing
	// retries.
	TopicPoison = "events.poison"
)

// Event type constants, matching Frigate's event lifecycle.
const (
	// EventTypeNew indicates a newly tracked detection.
	EventTypeNew = "new"
	// EventTypeUpdate indicates a tracked detection changed (score, zones).
	EventTypeUpdate = "update"
	// EventTypeEnd indicates the detection left the frame.
	EventTypeEnd = "end"
)

// Source constants for event ingest paths.
const (
	// SourceMQTT indicates the event arrived on the MQTT subscriber.
	SourceMQTT = "mqtt"
	// SourcePoller indicates the event was fetched by the HTTP poller.
	SourcePoller = "poller"
)

// CameraEvent is one detection event in canonical form. It is the only
// payload published on TopicCameraEvents and TopicAlerts.
type CameraEvent struct {
	// Schema version for forward/backward compatibility
	SchemaVersion int `json:"schema_version,omitempty"`

	// Identification
	UID       string `json:"uid"`        // bridge-assigned, unique per pipeline message
	FrigateID string `json:"frigate_id"` // Frigate's event ID, stable across new/update/end
	Source    string `json:"source"`     // mqtt, poller
	Type      string `json:"type"`       // new, update, end

	// Detection
	Camera      string   `json:"camera"`
	Label       string   `json:"label"`
	SubLabel    string   `json:"sub_label,omitempty"`
	Zones       []string `json:"zones,omitempty"`
	Score       float64  `json:"score,omitempty"`
	HasSnapshot bool     `json:"has_snapshot,omitempty"`
	HasClip     bool     `json:"has_clip,omitempty"`

	// Timing, always UTC
	StartedAt  time.Time  `json:"started_at"`
	EndedAt    *time.Time `json:"ended_at,omitempty"`
	ReceivedAt time.Time  `json:"received_at"`

	// Raw source payload for debugging and future fields
	RawPayload json.RawMessage `json:"raw_payload,omitempty"`
}

// NewCameraEvent creates an event with a unique UID, receive timestamp, and
// schema version.
func NewCameraEvent(source string) *CameraEvent {
	return &CameraEvent{
		SchemaVersion: SchemaVersion,
		UID:           uuid.New().String(),
		Source:        source,
		ReceivedAt:    time.Now().UTC(),
	}
}

// GetSchemaVersion returns the schema version, defaulting to 1 for legacy
// events.
func (e *CameraEvent) GetSchemaVersion() int {
	if e.SchemaVersion == 0 {
		return 1
	}
	return e.SchemaVersion
}

// EnsureSchemaVersion sets the schema version if not already set.
func (e *CameraEvent) EnsureSchemaVersion() {
	if e.SchemaVersion == 0 {
		e.SchemaVersion = SchemaVersion
	}
}

// Validate checks required fields and returns an error if validation fails.
func (e *CameraEvent) Validate() error {
	if e.UID == "" {
		return &ValidationError{Field: "uid", Message: "required"}
	}
	if e.FrigateID == "" {
		return &ValidationError{Field: "frigate_id", Message: "required"}
	}
	if e.Source == "" {
		return &ValidationError{Field: "source", Message: "required"}
	}
	switch e.Type {
	case EventTypeNew, EventTypeUpdate, EventTypeEnd:
	default:
		return &ValidationError{Field: "type", Message: "must be new, update, or end"}
	}
	if e.Camera == "" {
		return &ValidationError{Field: "camera", Message: "required"}
	}
	if e.Label == "" {
		return &ValidationError{Field: "label", Message: "required"}
	}
	return nil
}

// DedupKey identifies this event for deduplication across ingest paths.
// The MQTT subscriber and the poller can both deliver the same Frigate
// event; the key makes the second copy a no-op. Type is part of the key so
// an "end" is not swallowed by its own "new".
func (e *CameraEvent) DedupKey() string {
	return e.FrigateID + ":" + e.Type
}

// CooldownKey groups events for per-camera/label notification cooldowns.
func (e *CameraEvent) CooldownKey() string {
	return e.Camera + ":" + e.Label
}

// IsEnded returns true once the detection has left the frame.
func (e *CameraEvent) IsEnded() bool {
	return e.Type == EventTypeEnd || e.EndedAt != nil
}

// ValidationError represents a field validation error.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return e.Field + ": " + e.Message
}
