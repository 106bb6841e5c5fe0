// Excubitor - Frigate NVR Event Notification Bridge
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/excubitor

package frigate

import (
	"net/http"
	"strings"
	"time"
)

// tokenCookieName is the cookie Frigate issues on login and expects back on
// every authenticated request.
const tokenCookieName = "frigate_token"

// sessionCookie scans Set-Cookie values for the entry carrying the session
// token. The header may arrive as a single value or as a repeated header;
// both shapes are handled. Returns "" when no entry names the token.
func sessionCookie(values []string) string {
	for _, v := range values {
		if strings.Contains(v, tokenCookieName+"=") {
			return v
		}
	}
	return ""
}

// extractToken pulls the token value out of a raw Set-Cookie string, taking
// the substring between "frigate_token=" and the next ";". Returns "" when
// the attribute is missing or empty.
func extractToken(setCookie string) string {
	idx := strings.Index(setCookie, tokenCookieName+"=")
	if idx < 0 {
		return ""
	}
	value := setCookie[idx+len(tokenCookieName)+1:]
	if end := strings.IndexByte(value, ';'); end >= 0 {
		value = value[:end]
	}
	return strings.TrimSpace(value)
}

// extractExpiry pulls the expires attribute out of a raw Set-Cookie string
// and parses it as an HTTP-date. The attribute name is matched case
// insensitively since servers emit both "expires" and "Expires".
//
// Returns the zero time when the attribute is missing or unparseable. The
// credential store treats a zero expiry as already expired, so a token with
// an unreadable lifetime forces a re-login on next use instead of being
// cached indefinitely.
func extractExpiry(setCookie string) time.Time {
	idx := strings.Index(strings.ToLower(setCookie), "expires=")
	if idx < 0 {
		return time.Time{}
	}
	value := setCookie[idx+len("expires="):]
	if end := strings.IndexByte(value, ';'); end >= 0 {
		value = value[:end]
	}
	expiry, err := http.ParseTime(strings.TrimSpace(value))
	if err != nil {
		return time.Time{}
	}
	return expiry
}
