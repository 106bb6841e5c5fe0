// Excubitor - Frigate NVR Event Notification Bridge
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/excubitor

package notify

import (
	"bytes"
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/tomtom215/excubitor/internal/config"
)

const defaultNtfyTimeout = 10 * time.Second

// NtfyNotifier publishes alerts to an ntfy topic. Message metadata travels
// in headers per the ntfy publish protocol; when a snapshot is attached it
// becomes the request body and the message moves to the X-Message header.
type NtfyNotifier struct {
	serverURL       string
	topic           string
	accessToken     string
	priority        string
	attachSnapshots bool
	client          *http.Client
	enabled         bool
}

// NewNtfyNotifier creates an ntfy notifier.
func NewNtfyNotifier(cfg *config.NtfyNotifierConfig) *NtfyNotifier {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = defaultNtfyTimeout
	}
	serverURL := cfg.ServerURL
	if serverURL == "" {
		serverURL = "https://ntfy.sh"
	}
	return &NtfyNotifier{
		serverURL:       strings.TrimSuffix(serverURL, "/"),
		topic:           cfg.Topic,
		accessToken:     cfg.AccessToken,
		priority:        cfg.Priority,
		attachSnapshots: cfg.AttachSnapshots,
		enabled:         cfg.Enabled,
		client:          &http.Client{Timeout: timeout},
	}
}

// Name returns the notifier name.
func (n *NtfyNotifier) Name() string {
	return "ntfy"
}

// Enabled returns whether this notifier is enabled.
func (n *NtfyNotifier) Enabled() bool {
	return n.enabled && n.topic != ""
}

// Send publishes the alert to the configured topic.
func (n *NtfyNotifier) Send(ctx context.Context, alert *Alert) error {
	endpoint := n.serverURL + "/" + n.topic

	var req *http.Request
	var err error
	if n.attachSnapshots && len(alert.Snapshot) > 0 {
		req, err = http.NewRequestWithContext(ctx, http.MethodPut, endpoint, bytes.NewReader(alert.Snapshot))
		if err == nil {
			req.Header.Set("X-Filename", "snapshot.jpg")
			req.Header.Set("X-Message", alert.Message)
		}
	} else {
		req, err = http.NewRequestWithContext(ctx, http.MethodPost, endpoint, strings.NewReader(alert.Message))
	}
	if err != nil {
		return fmt.Errorf("failed to create ntfy request: %w", err)
	}

	req.Header.Set("X-Title", alert.Title)
	req.Header.Set("X-Tags", "camera,"+alert.Event.Label)
	if n.priority != "" {
		req.Header.Set("X-Priority", n.priority)
	}
	if n.accessToken != "" {
		req.Header.Set("Authorization", "Bearer "+n.accessToken)
	}

	resp, err := n.client.Do(req)
	if err != nil {
		return fmt.Errorf("failed to publish to ntfy: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode >= 400 {
		return fmt.Errorf("ntfy returned status %d", resp.StatusCode)
	}
	return nil
}
