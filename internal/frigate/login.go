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
	"strconv"
	"time"

	"github.com/goccy/go-json"

	"github.com/tomtom215/excubitor/internal/logging"
	"github.com/tomtom215/excubitor/internal/metrics"
)

const defaultLoginTimeout = 10 * time.Second

// maxLoginResponseBytes bounds how much of an error response body is read
// back into the login error message.
const maxLoginResponseBytes = 4096

// loginRequest is the JSON body Frigate's /api/login expects.
type loginRequest struct {
	User     string `json:"user"`
	Password string `json:"password"`
}

// login performs one credential exchange against {baseURL}/api/login and, on
// success, stores the token and expiry parsed from the session cookie. On
// failure the store is left untouched, so a stale-but-present credential
// survives a flaky login endpoint.
//
// Empty credentials fail immediately with ErrInvalidCredentials before any
// network call. The exchange is bounded by the configured login timeout so
// a hung upstream cannot block callers waiting on a refresh.
func (m *SessionManager) login(ctx context.Context) error {
	if m.baseURL == "" || m.username == "" || m.password == "" {
		return ErrInvalidCredentials
	}

	ctx, cancel := context.WithTimeout(ctx, m.loginTimeout)
	defer cancel()

	body, err := json.Marshal(loginRequest{User: m.username, Password: m.password})
	if err != nil {
		return fmt.Errorf("%w: encoding request: %v", ErrLoginFailed, err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, m.baseURL+"/api/login", bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("%w: %v", ErrLoginFailed, err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")

	start := time.Now()
	resp, err := m.httpClient.Do(req)
	if err != nil {
		metrics.RecordUpstreamRequest("/api/login", "error", time.Since(start))
		m.recordLoginFailure(err.Error())
		return fmt.Errorf("%w: %v", ErrLoginFailed, err)
	}
	defer func() { _ = resp.Body.Close() }()
	metrics.RecordUpstreamRequest("/api/login", strconv.Itoa(resp.StatusCode), time.Since(start))

	if resp.StatusCode != http.StatusOK {
		respBody, _ := io.ReadAll(io.LimitReader(resp.Body, maxLoginResponseBytes))
		m.recordLoginFailure(fmt.Sprintf("status %d", resp.StatusCode))
		if len(respBody) == 0 {
			return fmt.Errorf("%w: status %d", ErrLoginFailed, resp.StatusCode)
		}
		return fmt.Errorf("%w: status %d: %s", ErrLoginFailed, resp.StatusCode, string(respBody))
	}

	cookie := sessionCookie(resp.Header.Values("Set-Cookie"))
	if cookie == "" {
		m.recordLoginFailure("response carries no session cookie")
		return fmt.Errorf("%w: response carries no %s cookie", ErrLoginFailed, tokenCookieName)
	}
	token := extractToken(cookie)
	if token == "" {
		m.recordLoginFailure("empty token in session cookie")
		return fmt.Errorf("%w: empty token in session cookie", ErrLoginFailed)
	}
	expiry := extractExpiry(cookie)

	m.store.set(token, expiry)
	metrics.RecordSessionLogin(true)
	metrics.SetSessionTokenExpiry(expiry)
	m.security.LogUpstreamLogin(m.username, true, "")
	logging.Debug().
		Str("token", logging.SanitizeToken(token)).
		Time("expiry", expiry).
		Msg("frigate session established")

	return nil
}

func (m *SessionManager) recordLoginFailure(reason string) {
	metrics.RecordSessionLogin(false)
	m.security.LogUpstreamLogin(m.username, false, reason)
}
