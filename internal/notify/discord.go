// Excubitor - Frigate NVR Event Notification Bridge
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/excubitor

package notify

import (
	"bytes"
	"context"
	"fmt"
	"mime/multipart"
	"net/http"
	"strings"
	"time"

	"github.com/goccy/go-json"

	"github.com/tomtom215/excubitor/internal/config"
	"github.com/tomtom215/excubitor/internal/events"
)

const defaultDiscordTimeout = 10 * time.Second

// DiscordNotifier posts alerts to a Discord webhook as an embed, optionally
// attaching the event snapshot.
type DiscordNotifier struct {
	webhookURL      string
	username        string
	attachSnapshots bool
	client          *http.Client
	enabled         bool
}

// NewDiscordNotifier creates a Discord webhook notifier.
func NewDiscordNotifier(cfg *config.DiscordNotifierConfig) *DiscordNotifier {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = defaultDiscordTimeout
	}
	username := cfg.Username
	if username == "" {
		username = "Excubitor"
	}
	return &DiscordNotifier{
		webhookURL:      cfg.WebhookURL,
		username:        username,
		attachSnapshots: cfg.AttachSnapshots,
		enabled:         cfg.Enabled,
		client:          &http.Client{Timeout: timeout},
	}
}

// Name returns the notifier name.
func (n *DiscordNotifier) Name() string {
	return "discord"
}

// Enabled returns whether this notifier is enabled.
func (n *DiscordNotifier) Enabled() bool {
	return n.enabled && n.webhookURL != ""
}

// Send delivers an alert to Discord. With a snapshot to attach the payload
// goes out as multipart form data with the image as files[0]; otherwise it
// is a plain JSON post.
func (n *DiscordNotifier) Send(ctx context.Context, alert *Alert) error {
	payload := discordWebhookPayload{
		Username: n.username,
		Embeds:   []discordEmbed{n.buildEmbed(alert)},
	}

	var req *http.Request
	var err error
	if n.attachSnapshots && len(alert.Snapshot) > 0 {
		req, err = n.multipartRequest(ctx, payload, alert.Snapshot)
	} else {
		req, err = n.jsonRequest(ctx, payload)
	}
	if err != nil {
		return err
	}

	resp, err := n.client.Do(req)
	if err != nil {
		return fmt.Errorf("failed to send Discord webhook: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode >= 400 {
		return fmt.Errorf("discord webhook returned status %d", resp.StatusCode)
	}
	return nil
}

func (n *DiscordNotifier) jsonRequest(ctx context.Context, payload discordWebhookPayload) (*http.Request, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal Discord payload: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, n.webhookURL, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("failed to create Discord request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	return req, nil
}

// multipartRequest builds the attachment form Discord expects: the JSON
// payload under the payload_json field and the image as files[0], with the
// embed referencing it by attachment:// URL.
func (n *DiscordNotifier) multipartRequest(ctx context.Context, payload discordWebhookPayload, snapshot []byte) (*http.Request, error) {
	payload.Embeds[0].Image = &discordEmbedImage{URL: "attachment://snapshot.jpg"}

	payloadJSON, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal Discord payload: %w", err)
	}

	var buf bytes.Buffer
	form := multipart.NewWriter(&buf)
	if err := form.WriteField("payload_json", string(payloadJSON)); err != nil {
		return nil, fmt.Errorf("failed to write Discord payload field: %w", err)
	}
	part, err := form.CreateFormFile("files[0]", "snapshot.jpg")
	if err != nil {
		return nil, fmt.Errorf("failed to create Discord attachment: %w", err)
	}
	if _, err := part.Write(snapshot); err != nil {
		return nil, fmt.Errorf("failed to write Discord attachment: %w", err)
	}
	if err := form.Close(); err != nil {
		return nil, fmt.Errorf("failed to finalize Discord form: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, n.webhookURL, &buf)
	if err != nil {
		return nil, fmt.Errorf("failed to create Discord request: %w", err)
	}
	req.Header.Set("Content-Type", form.FormDataContentType())
	return req, nil
}

// buildEmbed creates a Discord embed from an alert.
func (n *DiscordNotifier) buildEmbed(alert *Alert) discordEmbed {
	ev := alert.Event

	fields := []discordEmbedField{
		{Name: "Camera", Value: ev.Camera, Inline: true},
		{Name: "Label", Value: ev.Label, Inline: true},
	}
	if ev.Score > 0 {
		fields = append(fields, discordEmbedField{
			Name:   "Confidence",
			Value:  fmt.Sprintf("%.0f%%", ev.Score*100),
			Inline: true,
		})
	}
	if len(ev.Zones) > 0 {
		fields = append(fields, discordEmbedField{
			Name:   "Zones",
			Value:  strings.Join(ev.Zones, ", "),
			Inline: true,
		})
	}

	embed := discordEmbed{
		Title:       alert.Title,
		Description: alert.Message,
		Color:       eventColor(ev),
		Timestamp:   alert.CreatedAt.Format(time.RFC3339),
		Fields:      fields,
		Footer: discordEmbedFooter{
			Text: "Excubitor",
		},
	}
	if !n.attachSnapshots && alert.SnapshotURL != "" {
		embed.Image = &discordEmbedImage{URL: alert.SnapshotURL}
	}
	return embed
}

// eventColor picks the embed color for an event type.
func eventColor(ev *events.CameraEvent) int {
	switch ev.Type {
	case events.EventTypeNew:
		return 0xE74C3C // Red
	case events.EventTypeEnd:
		return 0x2ECC71 // Green
	default:
		return 0x3498DB // Blue
	}
}

// Discord webhook structures
type discordWebhookPayload struct {
	Username string         `json:"username,omitempty"`
	Content  string         `json:"content,omitempty"`
	Embeds   []discordEmbed `json:"embeds,omitempty"`
}

type discordEmbed struct {
	Title       string              `json:"title,omitempty"`
	Description string              `json:"description,omitempty"`
	Color       int                 `json:"color,omitempty"`
	Timestamp   string              `json:"timestamp,omitempty"`
	Fields      []discordEmbedField `json:"fields,omitempty"`
	Image       *discordEmbedImage  `json:"image,omitempty"`
	Footer      discordEmbedFooter  `json:"footer,omitempty"`
}

type discordEmbedField struct {
	Name   string `json:"name"`
	Value  string `json:"value"`
	Inline bool   `json:"inline,omitempty"`
}

type discordEmbedImage struct {
	URL string `json:"url"`
}

type discordEmbedFooter struct {
	Text string `json:"text,omitempty"`
}
