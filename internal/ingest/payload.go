// Excubitor - Frigate NVR Event Notification Bridge
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/excubitor

package ingest

import (
	"fmt"
	"time"

	"github.com/goccy/go-json"

	"github.com/tomtom215/excubitor/internal/events"
)

// frigateEventPayload is the envelope Frigate publishes on
// {prefix}/events: the tracked object before and after the transition, and
// the transition type.
type frigateEventPayload struct {
	Type   string              `json:"type"` // new, update, end
	Before *frigateTrackedItem `json:"before"`
	After  *frigateTrackedItem `json:"after"`
}

// frigateTrackedItem is the subset of Frigate's tracked object state the
// bridge consumes.
type frigateTrackedItem struct {
	ID           string   `json:"id"`
	Camera       string   `json:"camera"`
	Label        string   `json:"label"`
	SubLabel     *string  `json:"sub_label"`
	TopScore     float64  `json:"top_score"`
	Score        float64  `json:"score"`
	StartTime    float64  `json:"start_time"`
	EndTime      *float64 `json:"end_time"`
	EnteredZones []string `json:"entered_zones"`
	CurrentZones []string `json:"current_zones"`
	HasSnapshot  bool     `json:"has_snapshot"`
	HasClip      bool     `json:"has_clip"`
}

// ParseFrigateEvent converts one MQTT events payload into a canonical
// CameraEvent. The after state describes the transition; Frigate omits it
// only in malformed payloads, in which case before is used.
func ParseFrigateEvent(payload []byte) (*events.CameraEvent, error) {
	var envelope frigateEventPayload
	if err := json.Unmarshal(payload, &envelope); err != nil {
		return nil, fmt.Errorf("decode frigate event payload: %w", err)
	}

	item := envelope.After
	if item == nil {
		item = envelope.Before
	}
	if item == nil {
		return nil, fmt.Errorf("frigate event payload has neither before nor after state")
	}
	if item.ID == "" || item.Camera == "" || item.Label == "" {
		return nil, fmt.Errorf("frigate event payload missing id, camera, or label")
	}

	switch envelope.Type {
	case events.EventTypeNew, events.EventTypeUpdate, events.EventTypeEnd:
	default:
		return nil, fmt.Errorf("unknown frigate event type %q", envelope.Type)
	}

	ev := events.NewCameraEvent(events.SourceMQTT)
	ev.FrigateID = item.ID
	ev.Type = envelope.Type
	ev.Camera = item.Camera
	ev.Label = item.Label
	if item.SubLabel != nil {
		ev.SubLabel = *item.SubLabel
	}
	ev.Zones = item.EnteredZones
	if len(ev.Zones) == 0 {
		ev.Zones = item.CurrentZones
	}
	ev.Score = item.TopScore
	if ev.Score == 0 {
		ev.Score = item.Score
	}
	ev.HasSnapshot = item.HasSnapshot
	ev.HasClip = item.HasClip
	ev.StartedAt = epochToUTC(item.StartTime)
	if item.EndTime != nil {
		ended := epochToUTC(*item.EndTime)
		ev.EndedAt = &ended
	}
	ev.RawPayload = json.RawMessage(payload)

	return ev, nil
}

// epochToUTC converts Frigate's fractional epoch seconds to UTC.
func epochToUTC(epoch float64) time.Time {
	if epoch == 0 {
		return time.Time{}
	}
	sec := int64(epoch)
	nsec := int64((epoch - float64(sec)) * float64(time.Second))
	return time.Unix(sec, nsec).UTC()
}
