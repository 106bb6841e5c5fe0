// Excubitor - Frigate NVR Event Notification Bridge
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/excubitor

package ingest

import (
	"context"
	"time"

	"github.com/goccy/go-json"

	"github.com/tomtom215/excubitor/internal/config"
	"github.com/tomtom215/excubitor/internal/events"
	"github.com/tomtom215/excubitor/internal/frigate"
	"github.com/tomtom215/excubitor/internal/logging"
	"github.com/tomtom215/excubitor/internal/metrics"
)

const (
	defaultPollInterval = 30 * time.Second
	defaultPollLimit    = 50

	// seenCapacity bounds the watermark set. Events share a poll window,
	// so a few hundred IDs cover any realistic overlap.
	seenCapacity = 512
)

// EventSource is the subset of the Frigate client the poller consumes.
type EventSource interface {
	Events(ctx context.Context, q frigate.EventsQuery) ([]frigate.Event, error)
}

// Poller fetches detection events from the Frigate HTTP API on an
// interval. It is the fallback ingest path for deployments without MQTT,
// and it continuously exercises the authenticated client either way.
type Poller struct {
	client    EventSource
	publisher EventPublisher
	interval  time.Duration
	limit     int

	// watermark is the start time of the newest event already delivered;
	// seen guards the boundary where multiple events share it.
	watermark time.Time
	seen      map[string]struct{}
	seenOrder []string
}

// NewPoller creates a poller over an authenticated Frigate client.
func NewPoller(cfg *config.PollerConfig, client EventSource, publisher EventPublisher) *Poller {
	interval := cfg.Interval
	if interval <= 0 {
		interval = defaultPollInterval
	}
	limit := cfg.Limit
	if limit <= 0 {
		limit = defaultPollLimit
	}
	return &Poller{
		client:    client,
		publisher: publisher,
		interval:  interval,
		limit:     limit,
		watermark: time.Now().UTC(),
		seen:      make(map[string]struct{}, seenCapacity),
	}
}

// Serve polls until the context is cancelled. Implements suture.Service.
func (p *Poller) Serve(ctx context.Context) error {
	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()

	logging.Info().Dur("interval", p.interval).Msg("event poller started")
	for {
		select {
		case <-ctx.Done():
			logging.Info().Msg("event poller stopped")
			return ctx.Err()
		case <-ticker.C:
			start := time.Now()
			err := p.poll(ctx)
			metrics.RecordPollCycle(time.Since(start), err)
			if err != nil && ctx.Err() == nil {
				logging.Warn().Err(err).Msg("poll cycle failed")
			}
		}
	}
}

// poll fetches events newer than the watermark and publishes the unseen
// ones, oldest first so downstream ordering matches wall clock.
func (p *Poller) poll(ctx context.Context) error {
	after := p.watermark
	upstream, err := p.client.Events(ctx, frigate.EventsQuery{
		After: &after,
		Limit: p.limit,
	})
	if err != nil {
		return err
	}

	for i := len(upstream) - 1; i >= 0; i-- {
		item := upstream[i]
		if _, ok := p.seen[item.ID]; ok {
			continue
		}
		p.markSeen(item.ID)
		if started := item.Started(); started.After(p.watermark) {
			p.watermark = started.UTC()
		}

		ev := p.toCameraEvent(&item)
		metrics.RecordIngestEvent(events.SourcePoller, ev.Type)
		if err := p.publisher.PublishEvent(ctx, ev); err != nil {
			logging.Error().Err(err).Str("frigate_id", ev.FrigateID).Msg("failed to publish polled event")
		}
	}
	return nil
}

// toCameraEvent converts an API event row to canonical form. The API has
// no transition notion, so an event still in progress is a "new" and a
// finished one is an "end".
func (p *Poller) toCameraEvent(item *frigate.Event) *events.CameraEvent {
	ev := events.NewCameraEvent(events.SourcePoller)
	ev.FrigateID = item.ID
	ev.Type = events.EventTypeNew
	if item.EndTime != nil {
		ev.Type = events.EventTypeEnd
	}
	ev.Camera = item.Camera
	ev.Label = item.Label
	if item.SubLabel != nil {
		ev.SubLabel = *item.SubLabel
	}
	ev.Zones = item.Zones
	ev.Score = item.TopScore
	ev.HasSnapshot = item.HasSnapshot
	ev.HasClip = item.HasClip
	if started := item.Started(); !started.IsZero() {
		ev.StartedAt = started.UTC()
	}
	if ended := item.Ended(); !ended.IsZero() {
		utc := ended.UTC()
		ev.EndedAt = &utc
	}
	if raw, err := json.Marshal(item); err == nil {
		ev.RawPayload = raw
	}
	return ev
}

// markSeen records an ID, evicting the oldest once over capacity.
func (p *Poller) markSeen(id string) {
	p.seen[id] = struct{}{}
	p.seenOrder = append(p.seenOrder, id)
	for len(p.seenOrder) > seenCapacity {
		delete(p.seen, p.seenOrder[0])
		p.seenOrder = p.seenOrder[1:]
	}
}
