// Excubitor - Frigate NVR Event Notification Bridge
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/excubitor

package authz

import (
	"net/http"

	"github.com/tomtom215/excubitor/internal/auth"
	"github.com/tomtom215/excubitor/internal/logging"
)

// Middleware enforces role-based access on API routes. It expects the auth
// middleware to have stored a subject on the request context; requests
// without one are rejected.
func (e *Enforcer) Middleware(next http.Handler) http.Handler {
	secLog := logging.NewSecurityLogger()

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		subject := auth.SubjectFromContext(r.Context())
		if subject == nil {
			http.Error(w, "Forbidden", http.StatusForbidden)
			return
		}

		allowed, err := e.Enforce(subject.Role, r.URL.Path, r.Method)
		if err != nil {
			secLog.Error("authorization check failed", "error", err.Error(), "path", r.URL.Path)
			http.Error(w, "Internal Server Error", http.StatusInternalServerError)
			return
		}
		if !allowed {
			secLog.Warn("access denied",
				"username", logging.SanitizeUsername(subject.Username),
				"role", subject.Role,
				"path", r.URL.Path,
				"method", r.Method,
			)
			http.Error(w, "Forbidden: insufficient permissions", http.StatusForbidden)
			return
		}

		next.ServeHTTP(w, r)
	})
}
