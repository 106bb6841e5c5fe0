// Excubitor - Frigate NVR Event Notification Bridge
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/excubitor

package notify

import (
	"strings"
	"testing"

	"github.com/tomtom215/excubitor/internal/events"
)

func alertEvent() *events.CameraEvent {
	return &events.CameraEvent{
		UID:       "uid-1",
		FrigateID: "1692000000.123456-abc",
		Source:    events.SourceMQTT,
		Type:      events.EventTypeNew,
		Camera:    "front_door",
		Label:     "person",
		Zones:     []string{"porch", "steps"},
		Score:     0.87,
	}
}

func TestDefaultTemplate(t *testing.T) {
	tmpl, err := ParseTemplate("")
	if err != nil {
		t.Fatalf("ParseTemplate() error = %v", err)
	}

	alert, err := NewAlert(alertEvent(), tmpl, "http://frigate/api/events/x/snapshot.jpg")
	if err != nil {
		t.Fatalf("NewAlert() error = %v", err)
	}

	want := "person detected on front_door in porch, steps (87% confidence)"
	if alert.Message != want {
		t.Errorf("Message = %q, want %q", alert.Message, want)
	}
	if alert.Title != "front_door: person" {
		t.Errorf("Title = %q, want %q", alert.Title, "front_door: person")
	}
	if alert.SnapshotURL != "http://frigate/api/events/x/snapshot.jpg" {
		t.Errorf("SnapshotURL = %q", alert.SnapshotURL)
	}
	if alert.CreatedAt.IsZero() {
		t.Error("CreatedAt is zero")
	}
}

func TestDefaultTemplateOmitsEmptyParts(t *testing.T) {
	ev := alertEvent()
	ev.Zones = nil
	ev.Score = 0

	tmpl, err := ParseTemplate("")
	if err != nil {
		t.Fatalf("ParseTemplate() error = %v", err)
	}
	alert, err := NewAlert(ev, tmpl, "")
	if err != nil {
		t.Fatalf("NewAlert() error = %v", err)
	}

	if alert.Message != "person detected on front_door" {
		t.Errorf("Message = %q, want %q", alert.Message, "person detected on front_door")
	}
	if strings.Contains(alert.Message, "confidence") {
		t.Error("Message mentions confidence for a zero score")
	}
}

func TestCustomTemplate(t *testing.T) {
	tmpl, err := ParseTemplate(`ALERT {{.Camera}}/{{.Label}} type={{.Type}}`)
	if err != nil {
		t.Fatalf("ParseTemplate() error = %v", err)
	}
	alert, err := NewAlert(alertEvent(), tmpl, "")
	if err != nil {
		t.Fatalf("NewAlert() error = %v", err)
	}
	if alert.Message != "ALERT front_door/person type=new" {
		t.Errorf("Message = %q", alert.Message)
	}
}

func TestParseTemplateInvalid(t *testing.T) {
	if _, err := ParseTemplate("{{.Camera"); err == nil {
		t.Error("ParseTemplate() accepted an unterminated action")
	}
}

func TestNewAlertBadFieldReference(t *testing.T) {
	tmpl, err := ParseTemplate("{{.NoSuchField}}")
	if err != nil {
		t.Fatalf("ParseTemplate() error = %v", err)
	}
	if _, err := NewAlert(alertEvent(), tmpl, ""); err == nil {
		t.Error("NewAlert() succeeded against a missing field reference")
	}
}
