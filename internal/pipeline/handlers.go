// Excubitor - Frigate NVR Event Notification Bridge
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/excubitor

package pipeline

import (
	"context"
	"text/template"
	"time"

	"github.com/ThreeDotsLabs/watermill/message"

	"github.com/tomtom215/excubitor/internal/events"
	"github.com/tomtom215/excubitor/internal/logging"
	"github.com/tomtom215/excubitor/internal/metrics"
	"github.com/tomtom215/excubitor/internal/notify"
	"github.com/tomtom215/excubitor/internal/rules"
)

// SnapshotFetcher is the slice of the Frigate client the alert handler
// needs for snapshot enrichment.
type SnapshotFetcher interface {
	FetchSnapshot(ctx context.Context, eventID string) ([]byte, error)
	SnapshotURL(eventID string) string
}

// EventRecorder persists camera events. Satisfied by the history store.
type EventRecorder interface {
	RecordEvent(ctx context.Context, ev *events.CameraEvent) error
}

// Broadcaster pushes events to connected WebSocket clients.
type Broadcaster interface {
	BroadcastJSON(messageType string, data interface{})
}

// FilterHandler runs every ingested event through the rule engine and
// republishes the survivors to the alerts topic.
type FilterHandler struct {
	engine   *rules.Engine
	eventLog *logging.EventLogger
}

// NewFilterHandler creates the filter stage over the given rule engine.
func NewFilterHandler(engine *rules.Engine) *FilterHandler {
	return &FilterHandler{
		engine:   engine,
		eventLog: logging.NewEventLogger(),
	}
}

// Handle evaluates one event. Dropped events are acked with no output;
// marker store failures surface as errors so the message is retried.
func (h *FilterHandler) Handle(msg *message.Message) ([]*message.Message, error) {
	ev, err := decodeEvent(msg)
	if err != nil {
		metrics.RecordPipelineParseFailure()
		return nil, err
	}
	metrics.RecordPipelineConsume()

	ctx := msg.Context()
	verdict, err := h.engine.Evaluate(ctx, ev)
	if err != nil {
		return nil, err
	}
	if !verdict.Allowed {
		h.eventLog.LogEventFiltered(ctx, ev.FrigateID, verdict.DroppedBy)
		return nil, nil
	}

	out, err := encodeEvent(ev)
	if err != nil {
		return nil, err
	}
	out.SetContext(ctx)
	h.eventLog.LogEventPublished(ctx, ev.FrigateID, events.TopicAlerts)
	return []*message.Message{out}, nil
}

// AlertHandler turns a filtered event into a rendered alert, optionally
// enriches it with the Frigate snapshot, and fans it out to the notifiers.
type AlertHandler struct {
	dispatcher *notify.Dispatcher
	snapshots  SnapshotFetcher
	tmpl       *template.Template
	enrich     bool
	eventLog   *logging.EventLogger
}

// NewAlertHandler creates the notification stage. snapshots may be nil to
// disable enrichment regardless of the enrich flag.
func NewAlertHandler(dispatcher *notify.Dispatcher, snapshots SnapshotFetcher, tmpl *template.Template, enrich bool) *AlertHandler {
	return &AlertHandler{
		dispatcher: dispatcher,
		snapshots:  snapshots,
		tmpl:       tmpl,
		enrich:     enrich,
		eventLog:   logging.NewEventLogger(),
	}
}

// Handle renders and dispatches one alert. A delivery error is returned so
// the router retries; after retries are exhausted the message lands in the
// poison queue.
func (h *AlertHandler) Handle(msg *message.Message) error {
	ev, err := decodeEvent(msg)
	if err != nil {
		metrics.RecordPipelineParseFailure()
		return err
	}

	ctx := msg.Context()
	start := time.Now()

	var snapshotURL string
	if h.snapshots != nil && ev.HasSnapshot {
		snapshotURL = h.snapshots.SnapshotURL(ev.FrigateID)
	}

	alert, err := notify.NewAlert(ev, h.tmpl, snapshotURL)
	if err != nil {
		return err
	}

	if h.enrich && h.snapshots != nil && ev.HasSnapshot {
		data, err := h.snapshots.FetchSnapshot(ctx, ev.FrigateID)
		if err != nil {
			// Deliver without the image rather than dropping the alert.
			h.eventLog.WarnContext(ctx, "snapshot fetch failed",
				"event_id", ev.FrigateID, "error", err.Error())
		} else {
			alert.Snapshot = data
		}
	}

	err = h.dispatcher.Dispatch(ctx, alert)
	metrics.RecordPipelineProcessingDuration(time.Since(start))
	if err != nil {
		return err
	}
	metrics.RecordPipelineProcessed()
	return nil
}

// HistoryHandler records every ingested event, filtered or not, so the
// events API reflects everything the bridge saw.
type HistoryHandler struct {
	recorder EventRecorder
	eventLog *logging.EventLogger
}

// NewHistoryHandler creates the persistence stage.
func NewHistoryHandler(recorder EventRecorder) *HistoryHandler {
	return &HistoryHandler{
		recorder: recorder,
		eventLog: logging.NewEventLogger(),
	}
}

// Handle persists one event.
func (h *HistoryHandler) Handle(msg *message.Message) error {
	ev, err := decodeEvent(msg)
	if err != nil {
		metrics.RecordPipelineParseFailure()
		return err
	}
	return h.recorder.RecordEvent(msg.Context(), ev)
}

// WebSocketHandler streams ingested events to connected UI clients.
// Broadcast is fire-and-forget: a slow client never holds up the pipeline.
type WebSocketHandler struct {
	hub         Broadcaster
	messageType string
}

// NewWebSocketHandler creates the broadcast stage.
func NewWebSocketHandler(hub Broadcaster, messageType string) *WebSocketHandler {
	return &WebSocketHandler{hub: hub, messageType: messageType}
}

// Handle broadcasts one event.
func (h *WebSocketHandler) Handle(msg *message.Message) error {
	ev, err := decodeEvent(msg)
	if err != nil {
		metrics.RecordPipelineParseFailure()
		return err
	}
	h.hub.BroadcastJSON(h.messageType, ev)
	return nil
}
