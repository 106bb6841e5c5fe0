// Excubitor - Frigate NVR Event Notification Bridge
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/excubitor

package notify

import (
	"fmt"
	"strings"
	"text/template"
	"time"

	"github.com/tomtom215/excubitor/internal/events"
)

// DefaultTemplate renders the alert message when no custom template is
// configured. The template executes against the CameraEvent.
const DefaultTemplate = `{{.Label}} detected on {{.Camera}}` +
	`{{if .Zones}} in {{join .Zones ", "}}{{end}}` +
	`{{if .Score}} ({{printf "%.0f" (percent .Score)}}% confidence){{end}}`

// Alert is one notification-ready detection, produced by the pipeline after
// an event clears the rule engine.
type Alert struct {
	Event *events.CameraEvent

	Title   string
	Message string

	// SnapshotURL links to the upstream snapshot; Snapshot carries the
	// fetched bytes when snapshot enrichment is enabled, for channels that
	// attach instead of link.
	SnapshotURL string
	Snapshot    []byte

	CreatedAt time.Time
}

// ParseTemplate compiles an alert message template, falling back to
// DefaultTemplate for the empty string.
func ParseTemplate(text string) (*template.Template, error) {
	if text == "" {
		text = DefaultTemplate
	}
	tmpl, err := template.New("alert").Funcs(template.FuncMap{
		"join":    strings.Join,
		"percent": func(score float64) float64 { return score * 100 },
	}).Parse(text)
	if err != nil {
		return nil, fmt.Errorf("parse alert template: %w", err)
	}
	return tmpl, nil
}

// NewAlert renders an alert from an event using the compiled template.
func NewAlert(ev *events.CameraEvent, tmpl *template.Template, snapshotURL string) (*Alert, error) {
	var message strings.Builder
	if err := tmpl.Execute(&message, ev); err != nil {
		return nil, fmt.Errorf("render alert message: %w", err)
	}

	return &Alert{
		Event:       ev,
		Title:       fmt.Sprintf("%s: %s", ev.Camera, ev.Label),
		Message:     message.String(),
		SnapshotURL: snapshotURL,
		CreatedAt:   time.Now().UTC(),
	}, nil
}
