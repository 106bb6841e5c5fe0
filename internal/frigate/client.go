// Excubitor - Frigate NVR Event Notification Bridge
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/excubitor

package frigate

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"

	"github.com/goccy/go-json"

	"github.com/tomtom215/excubitor/internal/config"
)

// maxSnapshotBytes caps snapshot downloads so a misbehaving upstream cannot
// exhaust memory.
const maxSnapshotBytes = 8 << 20

// ClientInterface defines the Frigate API operations the bridge uses.
// Both Client and BreakerClient implement this interface.
type ClientInterface interface {
	Stats(ctx context.Context) (*Stats, error)
	Version(ctx context.Context) (string, error)
	Events(ctx context.Context, q EventsQuery) ([]Event, error)
	Event(ctx context.Context, id string) (*Event, error)
	SetSubLabel(ctx context.Context, eventID, subLabel string) error
	FetchSnapshot(ctx context.Context, eventID string) ([]byte, error)
	SnapshotURL(eventID string) string
	LatestImageURL(camera string) string
	Status() AuthStatus
	ResetSession()
}

// Ensure Client implements ClientInterface
var _ ClientInterface = (*Client)(nil)

// Client provides typed access to the Frigate HTTP API. Session cookie
// authentication, refresh, and retry-on-401 are handled by the embedded
// session manager.
type Client struct {
	session *SessionManager
}

// NewClient creates a Frigate API client with its own session manager.
func NewClient(cfg *config.FrigateConfig) *Client {
	return &Client{session: NewSessionManager(cfg)}
}

// NewClientWithSession shares an existing session manager, so the poller and
// the admin API reuse one token instead of racing separate logins.
func NewClientWithSession(session *SessionManager) *Client {
	return &Client{session: session}
}

// Session exposes the underlying session manager for admin wiring.
func (c *Client) Session() *SessionManager {
	return c.session
}

// Stats retrieves service, detector, and camera statistics.
func (c *Client) Stats(ctx context.Context) (*Stats, error) {
	resp, err := c.get(ctx, "/api/stats")
	if err != nil {
		return nil, err
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		return nil, statusError("GET /api/stats", resp)
	}

	var stats Stats
	if err := json.NewDecoder(resp.Body).Decode(&stats); err != nil {
		return nil, fmt.Errorf("failed to decode frigate stats: %w", err)
	}
	return &stats, nil
}

// Version retrieves the Frigate version string. The endpoint answers with a
// bare text body, not JSON.
func (c *Client) Version(ctx context.Context) (string, error) {
	resp, err := c.get(ctx, "/api/version")
	if err != nil {
		return "", err
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		return "", statusError("GET /api/version", resp)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, 256))
	if err != nil {
		return "", fmt.Errorf("failed to read frigate version: %w", err)
	}
	return strings.TrimSpace(string(body)), nil
}

// Events retrieves detection events matching the query, newest first.
func (c *Client) Events(ctx context.Context, q EventsQuery) ([]Event, error) {
	path := "/api/events"
	if qs := q.values().Encode(); qs != "" {
		path += "?" + qs
	}

	resp, err := c.get(ctx, path)
	if err != nil {
		return nil, err
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		return nil, statusError("GET /api/events", resp)
	}

	var events []Event
	if err := json.NewDecoder(resp.Body).Decode(&events); err != nil {
		return nil, fmt.Errorf("failed to decode frigate events: %w", err)
	}
	return events, nil
}

// Event retrieves a single detection event by ID.
func (c *Client) Event(ctx context.Context, id string) (*Event, error) {
	resp, err := c.get(ctx, "/api/events/"+url.PathEscape(id))
	if err != nil {
		return nil, err
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		return nil, statusError("GET /api/events/{id}", resp)
	}

	var event Event
	if err := json.NewDecoder(resp.Body).Decode(&event); err != nil {
		return nil, fmt.Errorf("failed to decode frigate event: %w", err)
	}
	return &event, nil
}

// SetSubLabel assigns a sub label to a detection event, used by automation
// rules to tag recognized events back into Frigate.
func (c *Client) SetSubLabel(ctx context.Context, eventID, subLabel string) error {
	payload, err := json.Marshal(map[string]string{"subLabel": subLabel})
	if err != nil {
		return fmt.Errorf("failed to encode sub label: %w", err)
	}

	endpoint := c.session.baseURL + "/api/events/" + url.PathEscape(eventID) + "/sub_label"
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")

	resp, err := c.session.Do(req)
	if err != nil {
		return err
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		return statusError("POST /api/events/{id}/sub_label", resp)
	}
	return nil
}

// FetchSnapshot downloads the best snapshot for an event, capped at
// maxSnapshotBytes.
func (c *Client) FetchSnapshot(ctx context.Context, eventID string) ([]byte, error) {
	resp, err := c.get(ctx, "/api/events/"+url.PathEscape(eventID)+"/snapshot.jpg")
	if err != nil {
		return nil, err
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		return nil, statusError("GET /api/events/{id}/snapshot.jpg", resp)
	}

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxSnapshotBytes+1))
	if err != nil {
		return nil, fmt.Errorf("failed to read snapshot: %w", err)
	}
	if len(data) > maxSnapshotBytes {
		return nil, fmt.Errorf("snapshot for event %s exceeds %d bytes", eventID, maxSnapshotBytes)
	}
	return data, nil
}

// SnapshotURL returns the upstream URL of an event's snapshot, for
// notification channels that link instead of attach.
func (c *Client) SnapshotURL(eventID string) string {
	return c.session.baseURL + "/api/events/" + url.PathEscape(eventID) + "/snapshot.jpg"
}

// LatestImageURL returns the upstream URL of a camera's most recent frame.
func (c *Client) LatestImageURL(camera string) string {
	return c.session.baseURL + "/api/" + url.PathEscape(camera) + "/latest.jpg"
}

// Status reports the session credential state without exposing the token.
func (c *Client) Status() AuthStatus {
	return c.session.Status()
}

// ResetSession clears the cached credential, forcing a fresh login on the
// next request.
func (c *Client) ResetSession() {
	c.session.Reset()
}

// get performs an authenticated GET against the Frigate API.
func (c *Client) get(ctx context.Context, path string) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.session.baseURL+path, http.NoBody)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	return c.session.Do(req)
}

// statusError reads a bounded slice of the response body into a RequestError
// for non-200 answers that already passed the 401 retry machinery.
func statusError(op string, resp *http.Response) error {
	body, _ := io.ReadAll(io.LimitReader(resp.Body, maxLoginResponseBytes))
	msg := strings.TrimSpace(string(body))
	if msg == "" {
		msg = http.StatusText(resp.StatusCode)
	}
	return &RequestError{Op: op, Status: resp.StatusCode, Err: fmt.Errorf("unexpected response: %s", msg)}
}
