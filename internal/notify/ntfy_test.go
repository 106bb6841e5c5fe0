// Excubitor - Frigate NVR Event Notification Bridge
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/excubitor

package notify

import (
	"bytes"
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/tomtom215/excubitor/internal/config"
)

func TestNtfyNotifierSend(t *testing.T) {
	var gotMethod, gotPath, gotTitle, gotPriority, gotAuth string
	var gotBody []byte
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotMethod = r.Method
		gotPath = r.URL.Path
		gotTitle = r.Header.Get("X-Title")
		gotPriority = r.Header.Get("X-Priority")
		gotAuth = r.Header.Get("Authorization")
		gotBody, _ = io.ReadAll(r.Body)
	}))
	defer server.Close()

	notifier := NewNtfyNotifier(&config.NtfyNotifierConfig{
		Enabled:     true,
		ServerURL:   server.URL,
		Topic:       "frigate-alerts",
		AccessToken: "tk_secret",
		Priority:    "high",
	})
	alert := testAlert(t)
	if err := notifier.Send(context.Background(), alert); err != nil {
		t.Fatalf("Send() error = %v", err)
	}

	if gotMethod != http.MethodPost {
		t.Errorf("method = %q, want POST", gotMethod)
	}
	if gotPath != "/frigate-alerts" {
		t.Errorf("path = %q", gotPath)
	}
	if gotTitle != alert.Title {
		t.Errorf("X-Title = %q, want %q", gotTitle, alert.Title)
	}
	if gotPriority != "high" {
		t.Errorf("X-Priority = %q", gotPriority)
	}
	if gotAuth != "Bearer tk_secret" {
		t.Errorf("Authorization = %q", gotAuth)
	}
	if string(gotBody) != alert.Message {
		t.Errorf("body = %q, want message", string(gotBody))
	}
}

func TestNtfyNotifierAttachSnapshot(t *testing.T) {
	snapshot := []byte{0xFF, 0xD8, 0xFF}

	var gotMethod, gotFilename, gotMessage string
	var gotBody []byte
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotMethod = r.Method
		gotFilename = r.Header.Get("X-Filename")
		gotMessage = r.Header.Get("X-Message")
		gotBody, _ = io.ReadAll(r.Body)
	}))
	defer server.Close()

	notifier := NewNtfyNotifier(&config.NtfyNotifierConfig{
		Enabled:         true,
		ServerURL:       server.URL,
		Topic:           "frigate-alerts",
		AttachSnapshots: true,
	})
	alert := testAlert(t)
	alert.Snapshot = snapshot
	if err := notifier.Send(context.Background(), alert); err != nil {
		t.Fatalf("Send() error = %v", err)
	}

	if gotMethod != http.MethodPut {
		t.Errorf("method = %q, want PUT", gotMethod)
	}
	if gotFilename != "snapshot.jpg" {
		t.Errorf("X-Filename = %q", gotFilename)
	}
	if gotMessage != alert.Message {
		t.Errorf("X-Message = %q, want message", gotMessage)
	}
	if !bytes.Equal(gotBody, snapshot) {
		t.Error("body does not match the snapshot bytes")
	}
}

func TestNtfyNotifierDisabledWithoutTopic(t *testing.T) {
	notifier := NewNtfyNotifier(&config.NtfyNotifierConfig{Enabled: true})
	if notifier.Enabled() {
		t.Error("Enabled() = true without a topic")
	}
}
