// Excubitor - Frigate NVR Event Notification Bridge
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/excubitor

package notify

import (
	"context"
	"time"

	"golang.org/x/time/rate"

	"github.com/tomtom215/excubitor/internal/events"
	"github.com/tomtom215/excubitor/internal/logging"
	"github.com/tomtom215/excubitor/internal/metrics"
)

// Recorder persists per-channel delivery outcomes. Satisfied by the
// history store; nil disables recording.
type Recorder interface {
	RecordNotification(ctx context.Context, ev *events.CameraEvent, channel string, sendErr error) error
}

// Notifier delivers alerts to one notification channel.
type Notifier interface {
	// Send delivers an alert to the notification channel.
	Send(ctx context.Context, alert *Alert) error

	// Name returns the notifier name (e.g., "discord", "webhook").
	Name() string

	// Enabled returns whether this notifier is enabled.
	Enabled() bool
}

// Dispatcher fans an alert out to every enabled notifier. One channel
// failing or being rate limited never blocks the others; failures are
// logged and counted, and the last one is reported to the pipeline so the
// message lands in the poison queue after retries.
type Dispatcher struct {
	notifiers []Notifier
	limiters  map[string]*rate.Limiter
	perMinute int
	recorder  Recorder
	eventLog  *logging.EventLogger
}

// NewDispatcher creates a dispatcher over the given notifiers.
// ratePerMinute caps deliveries per channel; zero means unlimited.
func NewDispatcher(ratePerMinute int, notifiers ...Notifier) *Dispatcher {
	limiters := make(map[string]*rate.Limiter, len(notifiers))
	if ratePerMinute > 0 {
		for _, n := range notifiers {
			limiters[n.Name()] = rate.NewLimiter(rate.Every(time.Minute/time.Duration(ratePerMinute)), ratePerMinute)
		}
	}
	return &Dispatcher{
		notifiers: notifiers,
		limiters:  limiters,
		perMinute: ratePerMinute,
		eventLog:  logging.NewEventLogger(),
	}
}

// SetRecorder wires a delivery log. Must be called before Dispatch is in
// use; the dispatcher does not lock around it.
func (d *Dispatcher) SetRecorder(r Recorder) {
	d.recorder = r
}

// AddNotifier registers a channel whose transport only exists after the
// dispatcher is built, such as the MQTT republisher riding the ingest
// broker connection. Same caveat as SetRecorder: wire before dispatching.
func (d *Dispatcher) AddNotifier(n Notifier) {
	d.notifiers = append(d.notifiers, n)
	if d.perMinute > 0 {
		d.limiters[n.Name()] = rate.NewLimiter(rate.Every(time.Minute/time.Duration(d.perMinute)), d.perMinute)
	}
}

// Notifiers returns the registered notifiers, for status reporting.
func (d *Dispatcher) Notifiers() []Notifier {
	return d.notifiers
}

// Dispatch sends the alert to every enabled notifier and returns the last
// delivery error, nil when all channels succeeded or were skipped.
func (d *Dispatcher) Dispatch(ctx context.Context, alert *Alert) error {
	var lastErr error

	for _, notifier := range d.notifiers {
		if !notifier.Enabled() {
			continue
		}
		name := notifier.Name()

		if limiter, ok := d.limiters[name]; ok && !limiter.Allow() {
			metrics.RecordNotifyRateLimited(name)
			d.eventLog.Warn("notification rate limited",
				"channel", name, "event_id", alert.Event.FrigateID)
			continue
		}

		start := time.Now()
		err := notifier.Send(ctx, alert)
		metrics.RecordNotification(name, time.Since(start), err)
		if d.recorder != nil {
			if rerr := d.recorder.RecordNotification(ctx, alert.Event, name, err); rerr != nil {
				d.eventLog.Warn("notification log write failed",
					"channel", name, "error", rerr.Error())
			}
		}
		if err != nil {
			lastErr = err
			d.eventLog.LogNotifyFailed(ctx, alert.Event.FrigateID, name, err)
			continue
		}
		d.eventLog.LogNotifySent(ctx, alert.Event.FrigateID, name, time.Since(start).Milliseconds())
	}

	return lastErr
}
