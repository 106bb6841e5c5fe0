// Excubitor - Frigate NVR Event Notification Bridge
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/excubitor

package pipeline

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/ThreeDotsLabs/watermill/pubsub/gochannel"

	"github.com/tomtom215/excubitor/internal/config"
	"github.com/tomtom215/excubitor/internal/events"
	"github.com/tomtom215/excubitor/internal/notify"
	"github.com/tomtom215/excubitor/internal/rules"
	"github.com/tomtom215/excubitor/internal/state"
)

func testEvent(frigateID, eventType string) *events.CameraEvent {
	ev := events.NewCameraEvent(events.SourceMQTT)
	ev.FrigateID = frigateID
	ev.Type = eventType
	ev.Camera = "front_door"
	ev.Label = "person"
	ev.Score = 0.92
	ev.StartedAt = time.Now().UTC()
	return ev
}

func newTestEngine(t *testing.T) *rules.Engine {
	t.Helper()
	engine, err := rules.NewEngine(&config.RulesConfig{
		Labels:      []string{"person"},
		EventTypes:  []string{"new"},
		DedupWindow: time.Minute,
	}, state.NewMemoryStore())
	if err != nil {
		t.Fatalf("NewEngine() error = %v", err)
	}
	return engine
}

func TestBusPublishEvent(t *testing.T) {
	channel := gochannel.NewGoChannel(gochannel.Config{OutputChannelBuffer: 16}, watermill.NopLogger{})
	defer channel.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	messages, err := channel.Subscribe(ctx, events.TopicCameraEvents)
	if err != nil {
		t.Fatalf("Subscribe() error = %v", err)
	}

	bus := NewBus(channel, nil)
	ev := testEvent("1718000000.123456-abc123", events.EventTypeNew)
	if err := bus.PublishEvent(ctx, ev); err != nil {
		t.Fatalf("PublishEvent() error = %v", err)
	}

	select {
	case msg := <-messages:
		msg.Ack()
		if msg.UUID != ev.UID {
			t.Errorf("message UUID = %q, want event UID %q", msg.UUID, ev.UID)
		}
		if got := msg.Metadata.Get(MetadataCamera); got != "front_door" {
			t.Errorf("camera metadata = %q, want %q", got, "front_door")
		}
		decoded, err := decodeEvent(msg)
		if err != nil {
			t.Fatalf("decodeEvent() error = %v", err)
		}
		if decoded.FrigateID != ev.FrigateID {
			t.Errorf("FrigateID = %q, want %q", decoded.FrigateID, ev.FrigateID)
		}
	case <-ctx.Done():
		t.Fatal("timed out waiting for published message")
	}
}

func TestBusPublishEventInvalid(t *testing.T) {
	channel := gochannel.NewGoChannel(gochannel.Config{}, watermill.NopLogger{})
	defer channel.Close()

	bus := NewBus(channel, nil)
	ev := events.NewCameraEvent(events.SourceMQTT) // no camera, label, or type
	if err := bus.PublishEvent(context.Background(), ev); err == nil {
		t.Error("PublishEvent() with invalid event should fail")
	}
}

func TestFilterHandler(t *testing.T) {
	handler := NewFilterHandler(newTestEngine(t))

	tests := []struct {
		name    string
		event   *events.CameraEvent
		wantOut int
	}{
		{name: "allowed event passes", event: testEvent("ev-1", events.EventTypeNew), wantOut: 1},
		{name: "wrong type dropped", event: testEvent("ev-2", events.EventTypeUpdate), wantOut: 0},
		{
			name: "wrong label dropped",
			event: func() *events.CameraEvent {
				ev := testEvent("ev-3", events.EventTypeNew)
				ev.Label = "car"
				return ev
			}(),
			wantOut: 0,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			msg, err := encodeEvent(tt.event)
			if err != nil {
				t.Fatalf("encodeEvent() error = %v", err)
			}
			out, err := handler.Handle(msg)
			if err != nil {
				t.Fatalf("Handle() error = %v", err)
			}
			if len(out) != tt.wantOut {
				t.Errorf("Handle() produced %d messages, want %d", len(out), tt.wantOut)
			}
		})
	}
}

func TestFilterHandlerBadPayload(t *testing.T) {
	handler := NewFilterHandler(newTestEngine(t))
	msg := message.NewMessage(watermill.NewUUID(), []byte("not json"))
	if _, err := handler.Handle(msg); err == nil {
		t.Error("Handle() with malformed payload should fail")
	}
}

type captureNotifier struct {
	mu     sync.Mutex
	alerts []*notify.Alert
	err    error
}

func (n *captureNotifier) Send(_ context.Context, alert *notify.Alert) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.alerts = append(n.alerts, alert)
	return n.err
}

func (n *captureNotifier) Name() string  { return "capture" }
func (n *captureNotifier) Enabled() bool { return true }

func (n *captureNotifier) count() int {
	n.mu.Lock()
	defer n.mu.Unlock()
	return len(n.alerts)
}

func (n *captureNotifier) last() *notify.Alert {
	n.mu.Lock()
	defer n.mu.Unlock()
	if len(n.alerts) == 0 {
		return nil
	}
	return n.alerts[len(n.alerts)-1]
}

type fakeSnapshots struct {
	data []byte
	err  error
}

func (f *fakeSnapshots) FetchSnapshot(context.Context, string) ([]byte, error) {
	return f.data, f.err
}

func (f *fakeSnapshots) SnapshotURL(eventID string) string {
	return "http://frigate.local/api/events/" + eventID + "/snapshot.jpg"
}

func TestAlertHandler(t *testing.T) {
	tmpl, err := notify.ParseTemplate(notify.DefaultTemplate)
	if err != nil {
		t.Fatalf("ParseTemplate() error = %v", err)
	}

	t.Run("dispatches with snapshot enrichment", func(t *testing.T) {
		notifier := &captureNotifier{}
		dispatcher := notify.NewDispatcher(0, notifier)
		snapshots := &fakeSnapshots{data: []byte{0xff, 0xd8, 0xff}}
		handler := NewAlertHandler(dispatcher, snapshots, tmpl, true)

		ev := testEvent("ev-snap", events.EventTypeNew)
		ev.HasSnapshot = true
		msg, _ := encodeEvent(ev)

		if err := handler.Handle(msg); err != nil {
			t.Fatalf("Handle() error = %v", err)
		}
		alert := notifier.last()
		if alert == nil {
			t.Fatal("notifier never called")
		}
		if len(alert.Snapshot) == 0 {
			t.Error("alert snapshot not attached")
		}
		if alert.SnapshotURL == "" {
			t.Error("alert snapshot URL empty")
		}
	})

	t.Run("snapshot failure still delivers", func(t *testing.T) {
		notifier := &captureNotifier{}
		dispatcher := notify.NewDispatcher(0, notifier)
		snapshots := &fakeSnapshots{err: errors.New("upstream down")}
		handler := NewAlertHandler(dispatcher, snapshots, tmpl, true)

		ev := testEvent("ev-snapfail", events.EventTypeNew)
		ev.HasSnapshot = true
		msg, _ := encodeEvent(ev)

		if err := handler.Handle(msg); err != nil {
			t.Fatalf("Handle() error = %v", err)
		}
		alert := notifier.last()
		if alert == nil {
			t.Fatal("notifier never called")
		}
		if len(alert.Snapshot) != 0 {
			t.Error("alert should have no snapshot bytes")
		}
	})

	t.Run("delivery failure propagates for retry", func(t *testing.T) {
		notifier := &captureNotifier{err: errors.New("webhook 500")}
		dispatcher := notify.NewDispatcher(0, notifier)
		handler := NewAlertHandler(dispatcher, nil, tmpl, false)

		msg, _ := encodeEvent(testEvent("ev-fail", events.EventTypeNew))
		if err := handler.Handle(msg); err == nil {
			t.Error("Handle() should surface delivery error")
		}
	})
}

type captureRecorder struct {
	count atomic.Int64
}

func (r *captureRecorder) RecordEvent(context.Context, *events.CameraEvent) error {
	r.count.Add(1)
	return nil
}

type captureHub struct {
	mu       sync.Mutex
	messages []string
}

func (h *captureHub) BroadcastJSON(messageType string, _ interface{}) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.messages = append(h.messages, messageType)
}

func (h *captureHub) count() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.messages)
}

func TestHistoryHandler(t *testing.T) {
	recorder := &captureRecorder{}
	handler := NewHistoryHandler(recorder)

	msg, _ := encodeEvent(testEvent("ev-hist", events.EventTypeNew))
	if err := handler.Handle(msg); err != nil {
		t.Fatalf("Handle() error = %v", err)
	}
	if got := recorder.count.Load(); got != 1 {
		t.Errorf("recorded %d events, want 1", got)
	}
}

func TestWebSocketHandler(t *testing.T) {
	hub := &captureHub{}
	handler := NewWebSocketHandler(hub, MessageTypeCameraEvent)

	msg, _ := encodeEvent(testEvent("ev-ws", events.EventTypeNew))
	if err := handler.Handle(msg); err != nil {
		t.Fatalf("Handle() error = %v", err)
	}
	if hub.count() != 1 {
		t.Errorf("broadcast %d messages, want 1", hub.count())
	}
}

func TestPipelineEndToEnd(t *testing.T) {
	cfg := &config.Config{}
	cfg.Pipeline.BufferSize = 64
	cfg.Pipeline.DedupEnabled = true
	cfg.Pipeline.DedupTTL = time.Minute

	store := state.NewMemoryStore()
	engine, err := rules.NewEngine(&config.RulesConfig{
		Labels:     []string{"person"},
		EventTypes: []string{"new"},
	}, store)
	if err != nil {
		t.Fatalf("NewEngine() error = %v", err)
	}

	notifier := &captureNotifier{}
	recorder := &captureRecorder{}
	hub := &captureHub{}

	p, err := New(Options{
		Config:     cfg,
		Store:      store,
		Engine:     engine,
		Dispatcher: notify.NewDispatcher(0, notifier),
		Recorder:   recorder,
		Hub:        hub,
	})
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	defer p.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	done := make(chan error, 1)
	go func() { done <- p.Serve(ctx) }()

	select {
	case <-p.Running():
	case <-time.After(5 * time.Second):
		t.Fatal("router never started")
	}

	// An allowed event reaches the notifier; a filtered one does not.
	if err := p.Bus().PublishEvent(ctx, testEvent("e2e-1", events.EventTypeNew)); err != nil {
		t.Fatalf("PublishEvent() error = %v", err)
	}
	filtered := testEvent("e2e-2", events.EventTypeNew)
	filtered.Label = "car"
	if err := p.Bus().PublishEvent(ctx, filtered); err != nil {
		t.Fatalf("PublishEvent() error = %v", err)
	}

	deadline := time.After(5 * time.Second)
	for notifier.count() < 1 || recorder.count.Load() < 2 || hub.count() < 2 {
		select {
		case <-deadline:
			t.Fatalf("pipeline did not settle: notified=%d recorded=%d broadcast=%d",
				notifier.count(), recorder.count.Load(), hub.count())
		case <-time.After(10 * time.Millisecond):
		}
	}

	if notifier.count() != 1 {
		t.Errorf("notifier called %d times, want 1", notifier.count())
	}

	cancel()
	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("router did not stop")
	}
}

func TestRouterRetriesBeforePoisoning(t *testing.T) {
	channel := gochannel.NewGoChannel(gochannel.Config{OutputChannelBuffer: 16}, watermill.NopLogger{})
	defer channel.Close()

	cfg := DefaultRouterConfig()
	cfg.RetryMaxRetries = 2
	cfg.RetryInitialInterval = time.Millisecond
	cfg.RetryMaxInterval = 5 * time.Millisecond
	cfg.DedupEnabled = false

	router, err := NewRouter(cfg, nil, channel, watermill.NopLogger{})
	if err != nil {
		t.Fatalf("NewRouter() error = %v", err)
	}
	defer router.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	poisoned, err := channel.Subscribe(ctx, cfg.PoisonQueueTopic)
	if err != nil {
		t.Fatalf("Subscribe() error = %v", err)
	}

	var attempts atomic.Int64
	router.AddConsumerHandler("always-fails", "in.topic", channel, func(*message.Message) error {
		attempts.Add(1)
		return errors.New("handler down")
	})

	go func() { _ = router.Run(ctx) }()
	select {
	case <-router.Running():
	case <-ctx.Done():
		t.Fatal("router never started")
	}

	if err := channel.Publish("in.topic", message.NewMessage(watermill.NewUUID(), []byte("{}"))); err != nil {
		t.Fatalf("Publish() error = %v", err)
	}

	select {
	case msg := <-poisoned:
		msg.Ack()
	case <-ctx.Done():
		t.Fatal("message never reached the poison queue")
	}

	// The message dead-letters only after the initial attempt plus every
	// configured retry has failed.
	if got := attempts.Load(); got != int64(cfg.RetryMaxRetries)+1 {
		t.Errorf("handler attempts = %d, want %d", got, cfg.RetryMaxRetries+1)
	}
}

func TestRouterConfigFromPipeline(t *testing.T) {
	rc := RouterConfigFromPipeline(&config.PipelineConfig{
		RetryCount:        3,
		ThrottlePerSecond: 10,
		PoisonTopic:       "dead.letters",
		DedupEnabled:      true,
		DedupTTL:          time.Hour,
	})
	if rc.RetryMaxRetries != 3 {
		t.Errorf("RetryMaxRetries = %d, want 3", rc.RetryMaxRetries)
	}
	if rc.ThrottlePerSecond != 10 {
		t.Errorf("ThrottlePerSecond = %d, want 10", rc.ThrottlePerSecond)
	}
	if rc.PoisonQueueTopic != "dead.letters" {
		t.Errorf("PoisonQueueTopic = %q, want %q", rc.PoisonQueueTopic, "dead.letters")
	}
	if rc.DedupTTL != time.Hour {
		t.Errorf("DedupTTL = %v, want %v", rc.DedupTTL, time.Hour)
	}

	// Defaults survive a zero config.
	rc = RouterConfigFromPipeline(nil)
	if rc.RetryMaxRetries != 5 {
		t.Errorf("default RetryMaxRetries = %d, want 5", rc.RetryMaxRetries)
	}
}
