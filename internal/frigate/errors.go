// Excubitor - Frigate NVR Event Notification Bridge
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/excubitor

package frigate

import (
	"errors"
	"fmt"
)

var (
	// ErrInvalidCredentials is returned when the base URL, username, or
	// password is empty. No network call is made in that case.
	ErrInvalidCredentials = errors.New("invalid credentials supplied")

	// ErrLoginFailed is returned when the login exchange itself fails:
	// transport error, non-200 status, or a response without a usable
	// session cookie.
	ErrLoginFailed = errors.New("login failed")

	// ErrAuthorizationExpired is returned when a request still receives 401
	// after the forced re-login and single retry.
	ErrAuthorizationExpired = errors.New("authorization expired")
)

// RequestError wraps a failed authenticated request with the operation and,
// when the upstream answered at all, the HTTP status it returned.
type RequestError struct {
	Op     string // method and path, e.g. "GET /api/stats"
	Status int    // zero when the request never completed
	Err    error
}

func (e *RequestError) Error() string {
	if e.Status != 0 {
		return fmt.Sprintf("frigate: %s returned status %d: %v", e.Op, e.Status, e.Err)
	}
	return fmt.Sprintf("frigate: %s: %v", e.Op, e.Err)
}

func (e *RequestError) Unwrap() error {
	return e.Err
}
