// Excubitor - Frigate NVR Event Notification Bridge
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/excubitor

package auth

import (
	"context"
	"errors"
)

// Roles recognized by the admin API, in increasing privilege order.
const (
	RoleViewer   = "viewer"
	RoleOperator = "operator"
	RoleAdmin    = "admin"
)

// Provider names recorded on authenticated subjects.
const (
	ProviderNone  = "none"
	ProviderBasic = "basic"
	ProviderJWT   = "jwt"
	ProviderOIDC  = "oidc"
)

// Sentinel errors returned by authenticators.
var (
	ErrNoCredentials      = errors.New("no credentials provided")
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrExpiredCredentials = errors.New("credentials expired")
)

// Subject is an authenticated caller.
type Subject struct {
	Username string
	Role     string
	// Provider records which authenticator admitted the subject:
	// "none", "basic", "jwt", or "oidc".
	Provider string
}

type contextKey string

const subjectKey contextKey = "auth_subject"

// ContextWithSubject stores the authenticated subject on the context.
func ContextWithSubject(ctx context.Context, subject *Subject) context.Context {
	return context.WithValue(ctx, subjectKey, subject)
}

// SubjectFromContext retrieves the authenticated subject, or nil when the
// request was not authenticated.
func SubjectFromContext(ctx context.Context) *Subject {
	if subject, ok := ctx.Value(subjectKey).(*Subject); ok {
		return subject
	}
	return nil
}
