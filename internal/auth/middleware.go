// Excubitor - Frigate NVR Event Notification Bridge
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/excubitor

package auth

import (
	"errors"
	"net/http"
)

// RequireAuth enforces authentication on every request it wraps and stores
// the resolved subject on the request context for downstream handlers. In
// "none" mode it still attaches an anonymous admin subject so authorization
// checks see a uniform shape.
func (s *Service) RequireAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		subject, err := s.Authenticate(r)
		if err != nil {
			s.log.LogLoginFailure("", s.mode, r.RemoteAddr, r.UserAgent(), failureReason(err))
			w.Header().Set("WWW-Authenticate", s.WWWAuthenticateHeader())
			http.Error(w, "Unauthorized", http.StatusUnauthorized)
			return
		}

		next.ServeHTTP(w, r.WithContext(ContextWithSubject(r.Context(), subject)))
	})
}

// RequireRole layers a role check on top of RequireAuth. Admins pass every
// check.
func (s *Service) RequireRole(role string, next http.Handler) http.Handler {
	return s.RequireAuth(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		subject := SubjectFromContext(r.Context())
		if subject == nil {
			http.Error(w, "Forbidden", http.StatusForbidden)
			return
		}
		if subject.Role != role && subject.Role != RoleAdmin {
			http.Error(w, "Forbidden: insufficient permissions", http.StatusForbidden)
			return
		}
		next.ServeHTTP(w, r)
	}))
}

func failureReason(err error) string {
	switch {
	case errors.Is(err, ErrNoCredentials):
		return "missing credentials"
	case errors.Is(err, ErrExpiredCredentials):
		return "expired credentials"
	default:
		return "invalid credentials"
	}
}
