// Excubitor - Frigate NVR Event Notification Bridge
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/excubitor

package notify

import (
	"bytes"
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"net/http"
	"time"

	"github.com/goccy/go-json"

	"github.com/tomtom215/excubitor/internal/config"
	"github.com/tomtom215/excubitor/internal/events"
)

// SignatureHeader carries the HMAC-SHA256 signature of the request body
// when a webhook secret is configured.
const SignatureHeader = "X-Excubitor-Signature"

const defaultWebhookTimeout = 10 * time.Second

// WebhookNotifier posts alerts as JSON to an arbitrary HTTP endpoint.
type WebhookNotifier struct {
	url     string
	secret  string
	client  *http.Client
	enabled bool
}

// WebhookPayload is the JSON body posted to the webhook endpoint.
type WebhookPayload struct {
	EventType   string              `json:"event_type"` // camera_alert
	Source      string              `json:"source"`     // excubitor
	Title       string              `json:"title"`
	Message     string              `json:"message"`
	SnapshotURL string              `json:"snapshot_url,omitempty"`
	Event       *events.CameraEvent `json:"event"`
	Timestamp   time.Time           `json:"timestamp"`
}

// NewWebhookNotifier creates a generic webhook notifier.
func NewWebhookNotifier(cfg *config.WebhookNotifierConfig) *WebhookNotifier {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = defaultWebhookTimeout
	}
	return &WebhookNotifier{
		url:     cfg.URL,
		secret:  cfg.Secret,
		enabled: cfg.Enabled,
		client:  &http.Client{Timeout: timeout},
	}
}

// Name returns the notifier name.
func (n *WebhookNotifier) Name() string {
	return "webhook"
}

// Enabled returns whether this notifier is enabled.
func (n *WebhookNotifier) Enabled() bool {
	return n.enabled && n.url != ""
}

// Send posts the alert to the webhook endpoint. When a secret is configured
// the body is signed with HMAC-SHA256 and the hex digest travels in the
// signature header as "sha256=<hex>".
func (n *WebhookNotifier) Send(ctx context.Context, alert *Alert) error {
	payload := WebhookPayload{
		EventType:   "camera_alert",
		Source:      "excubitor",
		Title:       alert.Title,
		Message:     alert.Message,
		SnapshotURL: alert.SnapshotURL,
		Event:       alert.Event,
		Timestamp:   alert.CreatedAt,
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("failed to marshal webhook payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, n.url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("failed to create webhook request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if n.secret != "" {
		req.Header.Set(SignatureHeader, "sha256="+signBody(n.secret, body))
	}

	resp, err := n.client.Do(req)
	if err != nil {
		return fmt.Errorf("failed to send webhook: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode >= 400 {
		return fmt.Errorf("webhook returned status %d", resp.StatusCode)
	}
	return nil
}

// signBody computes the hex HMAC-SHA256 of body under the shared secret.
func signBody(secret string, body []byte) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(body)
	return hex.EncodeToString(mac.Sum(nil))
}
