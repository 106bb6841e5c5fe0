// Excubitor - Frigate NVR Event Notification Bridge
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/excubitor

package notify

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"

	"github.com/tomtom215/excubitor/internal/config"
)

// fakeNotifier counts sends and optionally fails.
type fakeNotifier struct {
	name    string
	enabled bool
	err     error
	sends   atomic.Int64
}

func (f *fakeNotifier) Name() string    { return f.name }
func (f *fakeNotifier) Enabled() bool   { return f.enabled }
func (f *fakeNotifier) Send(context.Context, *Alert) error {
	f.sends.Add(1)
	return f.err
}

func TestDispatcherFanOut(t *testing.T) {
	a := &fakeNotifier{name: "a", enabled: true}
	b := &fakeNotifier{name: "b", enabled: true}
	disabled := &fakeNotifier{name: "c", enabled: false}

	dispatcher := NewDispatcher(0, a, b, disabled)
	if err := dispatcher.Dispatch(context.Background(), testAlert(t)); err != nil {
		t.Fatalf("Dispatch() error = %v", err)
	}

	if a.sends.Load() != 1 || b.sends.Load() != 1 {
		t.Errorf("sends = %d/%d, want 1/1", a.sends.Load(), b.sends.Load())
	}
	if disabled.sends.Load() != 0 {
		t.Error("disabled notifier was called")
	}
}

func TestDispatcherFailureDoesNotBlockOthers(t *testing.T) {
	failing := &fakeNotifier{name: "failing", enabled: true, err: errors.New("channel down")}
	healthy := &fakeNotifier{name: "healthy", enabled: true}

	dispatcher := NewDispatcher(0, failing, healthy)
	err := dispatcher.Dispatch(context.Background(), testAlert(t))
	if err == nil {
		t.Fatal("Dispatch() error = nil, want the channel failure")
	}
	if healthy.sends.Load() != 1 {
		t.Error("healthy notifier skipped after a sibling failure")
	}
}

func TestDispatcherRateLimit(t *testing.T) {
	notifier := &fakeNotifier{name: "limited", enabled: true}
	dispatcher := NewDispatcher(2, notifier)

	alert := testAlert(t)
	for i := 0; i < 10; i++ {
		if err := dispatcher.Dispatch(context.Background(), alert); err != nil {
			t.Fatalf("Dispatch() error = %v", err)
		}
	}

	// The limiter starts with a burst of 2; further sends within the same
	// instant are dropped rather than delayed.
	if got := notifier.sends.Load(); got != 2 {
		t.Errorf("sends = %d, want 2", got)
	}
}

func TestMQTTNotifierPublish(t *testing.T) {
	publisher := &fakeMQTTPublisher{connected: true}
	notifier := NewMQTTNotifier(&config.MQTTNotifierConfig{Enabled: true}, publisher)

	if !notifier.Enabled() {
		t.Fatal("Enabled() = false with a live connection")
	}
	if err := notifier.Send(context.Background(), testAlert(t)); err != nil {
		t.Fatalf("Send() error = %v", err)
	}
	if publisher.lastTopic != "excubitor/alerts/front_door" {
		t.Errorf("topic = %q", publisher.lastTopic)
	}
	if len(publisher.lastPayload) == 0 {
		t.Error("empty payload published")
	}

	publisher.connected = false
	if notifier.Enabled() {
		t.Error("Enabled() = true with the broker down")
	}
}

type fakeMQTTPublisher struct {
	connected   bool
	lastTopic   string
	lastPayload []byte
}

func (f *fakeMQTTPublisher) Publish(topic string, _ byte, _ bool, payload []byte) error {
	f.lastTopic = topic
	f.lastPayload = payload
	return nil
}

func (f *fakeMQTTPublisher) Connected() bool { return f.connected }
