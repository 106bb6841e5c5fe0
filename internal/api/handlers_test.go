// Excubitor - Frigate NVR Event Notification Bridge
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/excubitor

package api

import (
	"context"
	"database/sql"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/goccy/go-json"

	"github.com/tomtom215/excubitor/internal/auth"
	"github.com/tomtom215/excubitor/internal/config"
	"github.com/tomtom215/excubitor/internal/frigate"
	"github.com/tomtom215/excubitor/internal/history"
	"github.com/tomtom215/excubitor/internal/logging"
	"github.com/tomtom215/excubitor/internal/notify"
)

//nolint:gochecknoinits // init ensures consistent logging for tests
func init() {
	logging.Init(logging.Config{
		Level:  "info",
		Format: "console",
		Output: io.Discard,
	})
}

type fakeFrigate struct {
	mu           sync.Mutex
	snapshot     []byte
	snapshotErr  error
	version      string
	versionErr   error
	resetCalled  bool
	snapshotByID string
}

func (f *fakeFrigate) Events(ctx context.Context, q frigate.EventsQuery) ([]frigate.Event, error) {
	return nil, nil
}

func (f *fakeFrigate) FetchSnapshot(ctx context.Context, eventID string) ([]byte, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.snapshotByID = eventID
	return f.snapshot, f.snapshotErr
}

func (f *fakeFrigate) Version(ctx context.Context) (string, error) {
	return f.version, f.versionErr
}

func (f *fakeFrigate) Status() frigate.AuthStatus {
	return frigate.AuthStatus{HasToken: true}
}

func (f *fakeFrigate) ResetSession() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.resetCalled = true
}

type fakeStore struct {
	events        []history.StoredEvent
	eventsErr     error
	byUID         map[string]*history.StoredEvent
	counts        []history.CameraCount
	notifications []history.NotificationRecord
	pingErr       error

	gotFilter history.EventFilter
	gotSince  time.Time
}

func (f *fakeStore) RecentEvents(ctx context.Context, filter history.EventFilter) ([]history.StoredEvent, error) {
	f.gotFilter = filter
	return f.events, f.eventsErr
}

func (f *fakeStore) EventByUID(ctx context.Context, uid string) (*history.StoredEvent, error) {
	if ev, ok := f.byUID[uid]; ok {
		return ev, nil
	}
	return nil, sql.ErrNoRows
}

func (f *fakeStore) CountsByCamera(ctx context.Context, since time.Time) ([]history.CameraCount, error) {
	f.gotSince = since
	return f.counts, nil
}

func (f *fakeStore) Notifications(ctx context.Context, limit int) ([]history.NotificationRecord, error) {
	return f.notifications, nil
}

func (f *fakeStore) Ping(ctx context.Context) error {
	return f.pingErr
}

type captureNotifier struct {
	mu     sync.Mutex
	alerts []*notify.Alert
	err    error
}

func (c *captureNotifier) Name() string  { return "capture" }
func (c *captureNotifier) Enabled() bool { return true }

func (c *captureNotifier) Send(ctx context.Context, alert *notify.Alert) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.alerts = append(c.alerts, alert)
	return c.err
}

func testConfig() *config.Config {
	return &config.Config{
		Security: config.SecurityConfig{
			AuthMode:    auth.ModeNone,
			CORSOrigins: []string{"*"},
		},
	}
}

func noneAuth(t *testing.T) *auth.Service {
	t.Helper()
	svc, err := auth.NewService(context.Background(), &config.SecurityConfig{AuthMode: auth.ModeNone})
	if err != nil {
		t.Fatalf("auth.NewService() error = %v", err)
	}
	return svc
}

func newTestHandler(t *testing.T, opts HandlerOptions) *Handler {
	t.Helper()
	if opts.Config == nil {
		opts.Config = testConfig()
	}
	if opts.Auth == nil {
		opts.Auth = noneAuth(t)
	}
	if opts.Version == "" {
		opts.Version = "test"
	}
	return NewHandler(opts)
}

func decodeResponse(t *testing.T, body io.Reader) *APIResponse {
	t.Helper()
	var resp APIResponse
	if err := json.NewDecoder(body).Decode(&resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	return &resp
}

func TestHealth(t *testing.T) {
	h := newTestHandler(t, HandlerOptions{})

	rec := httptest.NewRecorder()
	h.Health(rec, httptest.NewRequest(http.MethodGet, "/api/v1/health", nil))

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want %d", rec.Code, http.StatusOK)
	}
	resp := decodeResponse(t, rec.Body)
	if !resp.Success {
		t.Error("success = false, want true")
	}
}

func TestHealthReady(t *testing.T) {
	tests := []struct {
		name     string
		store    HistoryStore
		wantCode int
	}{
		{name: "no store", store: nil, wantCode: http.StatusOK},
		{name: "store healthy", store: &fakeStore{}, wantCode: http.StatusOK},
		{name: "store down", store: &fakeStore{pingErr: errors.New("closed")}, wantCode: http.StatusServiceUnavailable},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			opts := HandlerOptions{}
			if tt.store != nil {
				opts.Store = tt.store
			}
			h := newTestHandler(t, opts)

			rec := httptest.NewRecorder()
			h.HealthReady(rec, httptest.NewRequest(http.MethodGet, "/api/v1/health/ready", nil))
			if rec.Code != tt.wantCode {
				t.Errorf("status = %d, want %d", rec.Code, tt.wantCode)
			}
		})
	}
}

func TestLogin(t *testing.T) {
	cfg := testConfig()
	cfg.Security = config.SecurityConfig{
		AuthMode:  auth.ModeBasic,
		JWTSecret: "this_is_a_very_long_secret_key_with_32_plus_characters",
		TokenTTL:  time.Hour,
		AdminUser: "admin",
		AdminPass: "correct-horse",
	}
	svc, err := auth.NewService(context.Background(), &cfg.Security)
	if err != nil {
		t.Fatalf("auth.NewService() error = %v", err)
	}
	h := newTestHandler(t, HandlerOptions{Config: cfg, Auth: svc})

	tests := []struct {
		name     string
		body     string
		wantCode int
	}{
		{name: "success", body: `{"username":"admin","password":"correct-horse"}`, wantCode: http.StatusOK},
		{name: "wrong password", body: `{"username":"admin","password":"nope-nope"}`, wantCode: http.StatusUnauthorized},
		{name: "malformed body", body: `{`, wantCode: http.StatusBadRequest},
		{name: "missing fields", body: `{}`, wantCode: http.StatusBadRequest},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := httptest.NewRecorder()
			r := httptest.NewRequest(http.MethodPost, "/api/v1/auth/login", strings.NewReader(tt.body))
			h.Login(rec, r)
			if rec.Code != tt.wantCode {
				t.Fatalf("status = %d, want %d", rec.Code, tt.wantCode)
			}
			if tt.wantCode == http.StatusOK {
				resp := decodeResponse(t, rec.Body)
				data, ok := resp.Data.(map[string]interface{})
				if !ok || data["token"] == "" {
					t.Errorf("response data missing token: %+v", resp.Data)
				}
			}
		})
	}
}

func TestStatus(t *testing.T) {
	upstream := &fakeFrigate{version: "0.14.1"}
	h := newTestHandler(t, HandlerOptions{Upstream: upstream})

	rec := httptest.NewRecorder()
	h.Status(rec, httptest.NewRequest(http.MethodGet, "/api/v1/status", nil))

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want %d", rec.Code, http.StatusOK)
	}
	resp := decodeResponse(t, rec.Body)
	data, ok := resp.Data.(map[string]interface{})
	if !ok {
		t.Fatalf("data type = %T", resp.Data)
	}
	if data["frigate_version"] != "0.14.1" {
		t.Errorf("frigate_version = %v, want 0.14.1", data["frigate_version"])
	}
	if data["auth_mode"] != auth.ModeNone {
		t.Errorf("auth_mode = %v, want none", data["auth_mode"])
	}
}

func TestEvents(t *testing.T) {
	store := &fakeStore{
		events: []history.StoredEvent{
			{UID: "a", Camera: "porch", Label: "person"},
			{UID: "b", Camera: "yard", Label: "dog"},
		},
	}
	h := newTestHandler(t, HandlerOptions{Store: store})

	rec := httptest.NewRecorder()
	r := httptest.NewRequest(http.MethodGet, "/api/v1/events?camera=porch&label=person&limit=10&offset=5", nil)
	h.Events(rec, r)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want %d", rec.Code, http.StatusOK)
	}
	if store.gotFilter.Camera != "porch" || store.gotFilter.Label != "person" {
		t.Errorf("filter = %+v, want camera porch label person", store.gotFilter)
	}
	if store.gotFilter.Limit != 10 || store.gotFilter.Offset != 5 {
		t.Errorf("pagination = limit %d offset %d, want 10/5", store.gotFilter.Limit, store.gotFilter.Offset)
	}
	resp := decodeResponse(t, rec.Body)
	if resp.Meta == nil || resp.Meta.Count == nil || *resp.Meta.Count != 2 {
		t.Errorf("meta count missing or wrong: %+v", resp.Meta)
	}
}

func TestEventStats(t *testing.T) {
	store := &fakeStore{
		counts: []history.CameraCount{
			{Camera: "porch", Count: 12},
			{Camera: "yard", Count: 3},
		},
	}
	h := newTestHandler(t, HandlerOptions{Store: store})

	rec := httptest.NewRecorder()
	h.EventStats(rec, httptest.NewRequest(http.MethodGet, "/api/v1/events/stats", nil))

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want %d", rec.Code, http.StatusOK)
	}
	// Default window is the last 24 hours.
	wantSince := time.Now().UTC().Add(-24 * time.Hour)
	if diff := wantSince.Sub(store.gotSince); diff < -time.Minute || diff > time.Minute {
		t.Errorf("since = %v, want within a minute of %v", store.gotSince, wantSince)
	}
	resp := decodeResponse(t, rec.Body)
	if resp.Meta == nil || resp.Meta.Count == nil || *resp.Meta.Count != 2 {
		t.Errorf("meta count missing or wrong: %+v", resp.Meta)
	}

	since := time.Date(2026, 8, 1, 0, 0, 0, 0, time.UTC)
	h.EventStats(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet,
		"/api/v1/events/stats?since="+since.Format(time.RFC3339), nil))
	if !store.gotSince.Equal(since) {
		t.Errorf("since = %v, want %v", store.gotSince, since)
	}

	rec = httptest.NewRecorder()
	h.EventStats(rec, httptest.NewRequest(http.MethodGet, "/api/v1/events/stats?since=lastweek", nil))
	if rec.Code != http.StatusBadRequest {
		t.Errorf("bad since status = %d, want %d", rec.Code, http.StatusBadRequest)
	}
}

func TestEvents_BadSince(t *testing.T) {
	h := newTestHandler(t, HandlerOptions{Store: &fakeStore{}})

	rec := httptest.NewRecorder()
	h.Events(rec, httptest.NewRequest(http.MethodGet, "/api/v1/events?since=yesterday", nil))
	if rec.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want %d", rec.Code, http.StatusBadRequest)
	}
}

func TestEvents_HistoryDisabled(t *testing.T) {
	h := newTestHandler(t, HandlerOptions{})

	rec := httptest.NewRecorder()
	h.Events(rec, httptest.NewRequest(http.MethodGet, "/api/v1/events", nil))
	if rec.Code != http.StatusServiceUnavailable {
		t.Errorf("status = %d, want %d", rec.Code, http.StatusServiceUnavailable)
	}
}

func TestEvents_LimitClamped(t *testing.T) {
	store := &fakeStore{}
	cfg := testConfig()
	cfg.API.DefaultPageSize = 50
	cfg.API.MaxPageSize = 200
	h := newTestHandler(t, HandlerOptions{Config: cfg, Store: store})

	rec := httptest.NewRecorder()
	h.Events(rec, httptest.NewRequest(http.MethodGet, "/api/v1/events?limit=100000", nil))
	if store.gotFilter.Limit != 200 {
		t.Errorf("limit = %d, want clamped to 200", store.gotFilter.Limit)
	}

	h.Events(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/api/v1/events", nil))
	if store.gotFilter.Limit != 50 {
		t.Errorf("default limit = %d, want 50", store.gotFilter.Limit)
	}
}

func TestNotifyTest(t *testing.T) {
	notifier := &captureNotifier{}
	dispatcher := notify.NewDispatcher(0, notifier)
	h := newTestHandler(t, HandlerOptions{Dispatcher: dispatcher})

	rec := httptest.NewRecorder()
	h.NotifyTest(rec, httptest.NewRequest(http.MethodPost, "/api/v1/notify/test", nil))

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want %d", rec.Code, http.StatusOK)
	}
	notifier.mu.Lock()
	defer notifier.mu.Unlock()
	if len(notifier.alerts) != 1 {
		t.Fatalf("alerts delivered = %d, want 1", len(notifier.alerts))
	}
	if notifier.alerts[0].Event.Camera != "test-camera" {
		t.Errorf("alert camera = %q, want test-camera", notifier.alerts[0].Event.Camera)
	}
}

func TestNotifyTest_Failure(t *testing.T) {
	notifier := &captureNotifier{err: errors.New("webhook down")}
	dispatcher := notify.NewDispatcher(0, notifier)
	h := newTestHandler(t, HandlerOptions{Dispatcher: dispatcher})

	rec := httptest.NewRecorder()
	h.NotifyTest(rec, httptest.NewRequest(http.MethodPost, "/api/v1/notify/test", nil))
	if rec.Code != http.StatusBadGateway {
		t.Errorf("status = %d, want %d", rec.Code, http.StatusBadGateway)
	}
}

func TestAuthReset(t *testing.T) {
	upstream := &fakeFrigate{}
	h := newTestHandler(t, HandlerOptions{Upstream: upstream})

	rec := httptest.NewRecorder()
	h.AuthReset(rec, httptest.NewRequest(http.MethodPost, "/api/v1/admin/auth/reset", nil))

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want %d", rec.Code, http.StatusOK)
	}
	upstream.mu.Lock()
	defer upstream.mu.Unlock()
	if !upstream.resetCalled {
		t.Error("ResetSession() not called")
	}
}

func TestConfigView_Redacts(t *testing.T) {
	cfg := testConfig()
	cfg.Frigate.Password = "hunter2"
	cfg.Security.JWTSecret = "super-secret-signing-key-of-32-chars"
	h := newTestHandler(t, HandlerOptions{Config: cfg})

	rec := httptest.NewRecorder()
	h.ConfigView(rec, httptest.NewRequest(http.MethodGet, "/api/v1/config", nil))

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want %d", rec.Code, http.StatusOK)
	}
	body := rec.Body.String()
	if strings.Contains(body, "hunter2") || strings.Contains(body, "super-secret-signing-key") {
		t.Error("config response leaked a secret")
	}
	if !strings.Contains(body, "[REDACTED]") {
		t.Error("config response missing redaction markers")
	}
}
