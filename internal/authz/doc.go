// Excubitor - Frigate NVR Event Notification Bridge
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/excubitor

// Package authz decides whether an authenticated caller may reach an API
// endpoint. It is a thin layer over Casbin RBAC with three built-in roles:
//
//	viewer   read-only access to status, events and notification history
//	operator viewer plus test-notification dispatch
//	admin    everything, including session reset and config inspection
//
// The model and default policy are embedded; deployments that need custom
// rules point security.casbin.model_path and policy_path at their own
// files, optionally with auto reload. Decisions are cached because the
// policy only changes on reload.
package authz
