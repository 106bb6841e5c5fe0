// Excubitor - Frigate NVR Event Notification Bridge
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/excubitor

package authz

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/tomtom215/excubitor/internal/auth"
)

func TestMiddleware(t *testing.T) {
	enforcer := newTestEnforcer(t)
	handler := enforcer.Middleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	tests := []struct {
		name     string
		subject  *auth.Subject
		method   string
		path     string
		wantCode int
	}{
		{
			name:     "no subject",
			subject:  nil,
			method:   http.MethodGet,
			path:     "/api/v1/status",
			wantCode: http.StatusForbidden,
		},
		{
			name:     "viewer allowed",
			subject:  &auth.Subject{Username: "alice", Role: auth.RoleViewer},
			method:   http.MethodGet,
			path:     "/api/v1/events",
			wantCode: http.StatusOK,
		},
		{
			name:     "viewer denied admin endpoint",
			subject:  &auth.Subject{Username: "alice", Role: auth.RoleViewer},
			method:   http.MethodPost,
			path:     "/api/v1/admin/auth/reset",
			wantCode: http.StatusForbidden,
		},
		{
			name:     "operator runs test notification",
			subject:  &auth.Subject{Username: "bob", Role: auth.RoleOperator},
			method:   http.MethodPost,
			path:     "/api/v1/notify/test",
			wantCode: http.StatusOK,
		},
		{
			name:     "admin allowed everywhere",
			subject:  &auth.Subject{Username: "root", Role: auth.RoleAdmin},
			method:   http.MethodPost,
			path:     "/api/v1/admin/auth/reset",
			wantCode: http.StatusOK,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := httptest.NewRequest(tt.method, tt.path, nil)
			if tt.subject != nil {
				r = r.WithContext(auth.ContextWithSubject(r.Context(), tt.subject))
			}

			rec := httptest.NewRecorder()
			handler.ServeHTTP(rec, r)
			if rec.Code != tt.wantCode {
				t.Errorf("status = %d, want %d", rec.Code, tt.wantCode)
			}
		})
	}
}
