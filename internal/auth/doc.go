// Excubitor - Frigate NVR Event Notification Bridge
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/excubitor

// Package auth authenticates admin API requests.
//
// Three modes are supported, selected by security.auth_mode:
//
//   - none: every request is admitted as an anonymous admin. Suitable only
//     when the API is not reachable beyond a trusted network.
//   - basic: a username/password login at /api/v1/auth/login issues an
//     HS256 session token; subsequent requests present it as a bearer
//     token. Passwords are bcrypt-hashed and compared in constant time.
//   - oidc: bearer tokens minted by an external identity provider are
//     validated via RFC 7662 token introspection using client credentials.
//
// Role-based access decisions are made downstream by the authz package;
// this package only establishes who the caller is.
package auth
