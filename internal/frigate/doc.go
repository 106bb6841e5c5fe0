// Excubitor - Frigate NVR Event Notification Bridge
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/excubitor

/*
Package frigate provides the authenticated HTTP client for the Frigate NVR
API, including the full session cookie lifecycle.

Frigate's authenticated mode hands out a session token via the Set-Cookie
header of POST /api/login and expects it back as a Cookie header on every
API call. This package owns that exchange end to end:

  - SessionManager performs the login, caches the token together with its
    expiry, and refreshes it when the token is within five minutes of
    lapsing. Concurrent callers that find the token expired are coalesced
    into a single login request; all of them share its outcome.
  - SessionManager.Do sends an authenticated request. A 401 response
    discards the cached token, forces one fresh login, and retries the
    request exactly once. A second 401 surfaces as ErrAuthorizationExpired
    with the credential cleared, so the next caller starts from a clean
    login.
  - Client layers typed API methods (stats, events, snapshots, sub labels)
    on top of SessionManager.Do.
  - BreakerClient wraps Client with a circuit breaker so a dead upstream
    fails fast instead of tying every caller up in connect timeouts.

Usage:

	client := frigate.NewClient(&cfg.Frigate)
	stats, err := client.Stats(ctx)

A token that arrives without a parseable expiry is kept but treated as
already expired, which forces a fresh login on the next use rather than
trusting a token of unknown lifetime. Login failures leave any previously
cached credential untouched; only an observed 401 evicts it.

The raw token never appears in logs or in the AuthStatus diagnostic view.
*/
package frigate
