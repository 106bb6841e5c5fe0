// Excubitor - Frigate NVR Event Notification Bridge
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/excubitor

package frigate

import (
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/tomtom215/excubitor/internal/config"
	"github.com/tomtom215/excubitor/internal/logging"
	"github.com/tomtom215/excubitor/internal/metrics"
)

const defaultRequestTimeout = 30 * time.Second

// SessionManager owns the Frigate session token lifecycle: login exchange,
// token caching, refresh-before-expiry, and retry-once on 401.
//
// All methods are safe for concurrent use. Callers racing for a refresh are
// coalesced so the upstream sees exactly one login per expiry, no matter how
// many goroutines need a token at the same instant.
type SessionManager struct {
	baseURL  string
	username string
	password string

	loginTimeout time.Duration
	httpClient   *http.Client

	store    credentialStore
	group    singleflight.Group
	security *logging.SecurityLogger

	// now is replaceable in tests to pin the expiry arithmetic.
	now func() time.Time
}

// NewSessionManager builds a session manager for one Frigate endpoint. A
// trailing slash on the configured URL is stripped so path joins stay clean.
func NewSessionManager(cfg *config.FrigateConfig) *SessionManager {
	transport := http.DefaultTransport
	if cfg.InsecureSkipVerify {
		custom := http.DefaultTransport.(*http.Transport).Clone()
		custom.TLSClientConfig = &tls.Config{InsecureSkipVerify: true} //nolint:gosec // explicit opt-in for self-signed local Frigate
		transport = custom
	}

	requestTimeout := cfg.RequestTimeout
	if requestTimeout <= 0 {
		requestTimeout = defaultRequestTimeout
	}
	loginTimeout := cfg.LoginTimeout
	if loginTimeout <= 0 {
		loginTimeout = defaultLoginTimeout
	}

	return &SessionManager{
		baseURL:      strings.TrimSuffix(cfg.URL, "/"),
		username:     cfg.Username,
		password:     cfg.Password,
		loginTimeout: loginTimeout,
		httpClient: &http.Client{
			Timeout:   requestTimeout,
			Transport: transport,
		},
		security: logging.NewSecurityLogger(),
		now:      time.Now,
	}
}

// BaseURL returns the normalized Frigate endpoint.
func (m *SessionManager) BaseURL() string {
	return m.baseURL
}

// Token returns a session token that is not within the safety buffer of its
// expiry, logging in first when necessary. The fast path is a single read
// lock when the cached token is still good.
func (m *SessionManager) Token(ctx context.Context) (string, error) {
	if !m.store.isExpired(m.now()) {
		token, _ := m.store.get()
		return token, nil
	}
	return m.refresh(ctx, "expiring")
}

// refresh coalesces concurrent login attempts. Whichever caller arrives
// first performs the exchange; everyone else waits for that exchange and
// shares its token or its failure. The store is re-checked inside the
// critical section because a waiter may have been queued behind a refresh
// that already produced a fresh token.
func (m *SessionManager) refresh(ctx context.Context, trigger string) (string, error) {
	result, err, shared := m.group.Do("login", func() (interface{}, error) {
		if !m.store.isExpired(m.now()) {
			token, _ := m.store.get()
			return token, nil
		}

		metrics.RecordSessionRefresh(trigger)
		if err := m.login(ctx); err != nil {
			m.security.LogTokenRefresh(trigger, false, err.Error())
			return nil, err
		}
		m.security.LogTokenRefresh(trigger, true, "")

		token, _ := m.store.get()
		return token, nil
	})
	if shared {
		metrics.RecordSessionCoalesced()
	}
	if err != nil {
		return "", err
	}
	return result.(string), nil
}

// forceRefresh discards the cached credential and performs a fresh login.
// Used after an observed 401; local expiry guessing never calls this.
func (m *SessionManager) forceRefresh(ctx context.Context) (string, error) {
	m.clearSession()
	return m.refresh(ctx, "unauthorized")
}

// Do sends an authenticated request. The session token travels as a Cookie
// header. On a 401 response the cached credential is discarded, one fresh
// login is forced, and the request is retried exactly once; a second 401
// clears the credential again and surfaces ErrAuthorizationExpired. Any
// other response, success or failure, is returned to the caller as is.
//
// Requests with a body must carry GetBody so the retry can rewind it;
// http.NewRequest sets it for the common body types.
func (m *SessionManager) Do(req *http.Request) (*http.Response, error) {
	op := req.Method + " " + req.URL.Path

	token, err := m.Token(req.Context())
	if err != nil {
		return nil, &RequestError{Op: op, Err: err}
	}

	resp, err := m.send(req, token)
	if err != nil {
		return nil, &RequestError{Op: op, Err: err}
	}
	if resp.StatusCode != http.StatusUnauthorized {
		return resp, nil
	}
	_ = resp.Body.Close()

	// The upstream rejected the token even though it looked valid locally.
	metrics.RecordUnauthorizedRetry()
	m.security.LogUpstreamUnauthorized(req.URL.Path)

	token, err = m.forceRefresh(req.Context())
	if err != nil {
		return nil, &RequestError{Op: op, Err: err}
	}

	retry, err := rewindRequest(req)
	if err != nil {
		return nil, &RequestError{Op: op, Err: err}
	}

	resp, err = m.send(retry, token)
	if err != nil {
		return nil, &RequestError{Op: op, Err: err}
	}
	if resp.StatusCode == http.StatusUnauthorized {
		_ = resp.Body.Close()
		m.clearSession()
		return nil, &RequestError{Op: op, Status: http.StatusUnauthorized, Err: ErrAuthorizationExpired}
	}
	return resp, nil
}

// send attaches the token cookie and executes a single attempt.
func (m *SessionManager) send(req *http.Request, token string) (*http.Response, error) {
	req.Header.Set("Cookie", tokenCookieName+"="+token)

	start := time.Now()
	resp, err := m.httpClient.Do(req)
	if err != nil {
		metrics.RecordUpstreamRequest(endpointLabel(req.URL.Path), "error", time.Since(start))
		return nil, err
	}
	metrics.RecordUpstreamRequest(endpointLabel(req.URL.Path), strconv.Itoa(resp.StatusCode), time.Since(start))
	return resp, nil
}

// rewindRequest produces a retryable copy of req with a fresh body.
func rewindRequest(req *http.Request) (*http.Request, error) {
	clone := req.Clone(req.Context())
	if req.Body == nil || req.Body == http.NoBody {
		return clone, nil
	}
	if req.GetBody == nil {
		return nil, errors.New("request body cannot be replayed")
	}
	body, err := req.GetBody()
	if err != nil {
		return nil, fmt.Errorf("rewinding request body: %w", err)
	}
	clone.Body = body
	return clone, nil
}

// endpointLabel collapses request paths onto a fixed label set so per-event
// IDs and camera names do not blow up metric cardinality.
func endpointLabel(path string) string {
	switch {
	case strings.HasPrefix(path, "/api/events"):
		return "/api/events"
	case strings.HasPrefix(path, "/api/stats"):
		return "/api/stats"
	case strings.HasPrefix(path, "/api/version"):
		return "/api/version"
	case strings.HasPrefix(path, "/api/login"):
		return "/api/login"
	default:
		return "other"
	}
}

// clearSession empties the credential store and zeroes the expiry gauge.
// The in-flight login marker is forgotten too: a caller arriving after a
// reset must start a fresh exchange, not adopt the token of a login that
// began under the old credentials.
func (m *SessionManager) clearSession() {
	m.store.clear()
	m.group.Forget("login")
	metrics.SetSessionTokenExpiry(time.Time{})
}

// Status reports the current credential state without exposing the token.
func (m *SessionManager) Status() AuthStatus {
	return m.store.snapshot(m.now())
}

// Reset clears the cached credential so the next caller performs a fresh
// login. Exposed through the admin API.
func (m *SessionManager) Reset() {
	m.clearSession()
	logging.Info().Msg("frigate session credential reset")
}
