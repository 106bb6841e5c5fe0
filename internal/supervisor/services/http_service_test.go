// Excubitor - Frigate NVR Event Notification Bridge
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/excubitor

package services

import (
	"context"
	"errors"
	"net/http"
	"sync"
	"testing"
	"time"
)

type fakeHTTPServer struct {
	mu          sync.Mutex
	serveErr    error
	shutdownErr error
	shutdowns   int

	serving  chan struct{}
	released chan struct{}
}

func newFakeHTTPServer() *fakeHTTPServer {
	return &fakeHTTPServer{
		serving:  make(chan struct{}),
		released: make(chan struct{}),
	}
}

func (f *fakeHTTPServer) ListenAndServe() error {
	close(f.serving)
	<-f.released

	f.mu.Lock()
	defer f.mu.Unlock()
	if f.serveErr != nil {
		return f.serveErr
	}
	return http.ErrServerClosed
}

func (f *fakeHTTPServer) Shutdown(_ context.Context) error {
	f.mu.Lock()
	f.shutdowns++
	err := f.shutdownErr
	f.mu.Unlock()

	close(f.released)
	return err
}

func (f *fakeHTTPServer) shutdownCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.shutdowns
}

func TestNewHTTPServerService_DefaultTimeout(t *testing.T) {
	svc := NewHTTPServerService(newFakeHTTPServer(), 0)
	if svc.shutdownTimeout != 10*time.Second {
		t.Errorf("shutdownTimeout = %v, want 10s", svc.shutdownTimeout)
	}

	svc = NewHTTPServerService(newFakeHTTPServer(), 3*time.Second)
	if svc.shutdownTimeout != 3*time.Second {
		t.Errorf("shutdownTimeout = %v, want 3s", svc.shutdownTimeout)
	}
}

func TestHTTPServerService_GracefulShutdown(t *testing.T) {
	server := newFakeHTTPServer()
	svc := NewHTTPServerService(server, time.Second)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- svc.Serve(ctx) }()

	<-server.serving
	cancel()

	select {
	case err := <-done:
		if !errors.Is(err, context.Canceled) {
			t.Errorf("Serve returned %v, want context.Canceled", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("Serve did not return after cancel")
	}

	if server.shutdownCount() != 1 {
		t.Errorf("Shutdown called %d times, want 1", server.shutdownCount())
	}
}

func TestHTTPServerService_ServeError(t *testing.T) {
	server := newFakeHTTPServer()
	serveErr := errors.New("listen tcp: address already in use")
	server.serveErr = serveErr
	close(server.released)

	svc := NewHTTPServerService(server, time.Second)

	err := svc.Serve(context.Background())
	if !errors.Is(err, serveErr) {
		t.Errorf("Serve returned %v, want %v", err, serveErr)
	}
	if server.shutdownCount() != 0 {
		t.Errorf("Shutdown called %d times, want 0", server.shutdownCount())
	}
}

func TestHTTPServerService_ShutdownError(t *testing.T) {
	server := newFakeHTTPServer()
	shutdownErr := errors.New("shutdown deadline exceeded")
	server.shutdownErr = shutdownErr

	svc := NewHTTPServerService(server, time.Second)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- svc.Serve(ctx) }()

	<-server.serving
	cancel()

	select {
	case err := <-done:
		if !errors.Is(err, shutdownErr) {
			t.Errorf("Serve returned %v, want %v", err, shutdownErr)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("Serve did not return after cancel")
	}
}

func TestHTTPServerService_String(t *testing.T) {
	svc := NewHTTPServerService(newFakeHTTPServer(), 0)
	if got := svc.String(); got != "http-server" {
		t.Errorf("String() = %q, want %q", got, "http-server")
	}
}
