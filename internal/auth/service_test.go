// Excubitor - Frigate NVR Event Notification Bridge
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/excubitor

package auth

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/tomtom215/excubitor/internal/config"
)

func basicSecurityConfig() *config.SecurityConfig {
	return &config.SecurityConfig{
		AuthMode:  ModeBasic,
		JWTSecret: testSecret,
		TokenTTL:  time.Hour,
		AdminUser: "admin",
		AdminPass: "correct-horse",
	}
}

func TestNewService(t *testing.T) {
	tests := []struct {
		name    string
		cfg     *config.SecurityConfig
		wantErr bool
	}{
		{
			name:    "default is none",
			cfg:     &config.SecurityConfig{},
			wantErr: false,
		},
		{
			name:    "explicit none",
			cfg:     &config.SecurityConfig{AuthMode: ModeNone},
			wantErr: false,
		},
		{
			name:    "basic",
			cfg:     basicSecurityConfig(),
			wantErr: false,
		},
		{
			name: "basic without admin user",
			cfg: &config.SecurityConfig{
				AuthMode:  ModeBasic,
				JWTSecret: testSecret,
				AdminPass: "correct-horse",
			},
			wantErr: true,
		},
		{
			name: "basic without secret",
			cfg: &config.SecurityConfig{
				AuthMode:  ModeBasic,
				AdminUser: "admin",
				AdminPass: "correct-horse",
			},
			wantErr: true,
		},
		{
			name: "oidc without issuer",
			cfg: &config.SecurityConfig{
				AuthMode: ModeOIDC,
				OIDC:     config.OIDCConfig{ClientID: "excubitor", ClientSecret: "secret"},
			},
			wantErr: true,
		},
		{
			name:    "unknown mode",
			cfg:     &config.SecurityConfig{AuthMode: "kerberos"},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewService(context.Background(), tt.cfg)
			if (err != nil) != tt.wantErr {
				t.Errorf("NewService() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestService_NoneMode(t *testing.T) {
	svc, err := NewService(context.Background(), &config.SecurityConfig{})
	if err != nil {
		t.Fatalf("NewService() error = %v", err)
	}
	if svc.Enabled() {
		t.Error("Enabled() = true, want false")
	}

	r := httptest.NewRequest(http.MethodGet, "/api/v1/status", nil)
	subject, err := svc.Authenticate(r)
	if err != nil {
		t.Fatalf("Authenticate() error = %v", err)
	}
	if subject.Role != RoleAdmin {
		t.Errorf("Role = %q, want %q", subject.Role, RoleAdmin)
	}
	if subject.Provider != ProviderNone {
		t.Errorf("Provider = %q, want %q", subject.Provider, ProviderNone)
	}
}

func TestService_LoginBasic(t *testing.T) {
	svc, err := NewService(context.Background(), basicSecurityConfig())
	if err != nil {
		t.Fatalf("NewService() error = %v", err)
	}

	r := httptest.NewRequest(http.MethodPost, "/api/v1/auth/login", nil)

	if _, _, err := svc.LoginBasic(r, "admin", "wrong-password"); !errors.Is(err, ErrInvalidCredentials) {
		t.Errorf("LoginBasic() error = %v, want ErrInvalidCredentials", err)
	}

	token, ttl, err := svc.LoginBasic(r, "admin", "correct-horse")
	if err != nil {
		t.Fatalf("LoginBasic() error = %v", err)
	}
	if token == "" {
		t.Fatal("LoginBasic() returned empty token")
	}
	if ttl != time.Hour {
		t.Errorf("ttl = %v, want %v", ttl, time.Hour)
	}

	// The issued token must authenticate a follow-up request.
	r2 := httptest.NewRequest(http.MethodGet, "/api/v1/status", nil)
	r2.Header.Set("Authorization", "Bearer "+token)
	subject, err := svc.Authenticate(r2)
	if err != nil {
		t.Fatalf("Authenticate() error = %v", err)
	}
	if subject.Username != "admin" {
		t.Errorf("Username = %q, want %q", subject.Username, "admin")
	}
	if subject.Provider != ProviderJWT {
		t.Errorf("Provider = %q, want %q", subject.Provider, ProviderJWT)
	}
}

func TestService_LoginBasic_WrongMode(t *testing.T) {
	svc, err := NewService(context.Background(), &config.SecurityConfig{})
	if err != nil {
		t.Fatalf("NewService() error = %v", err)
	}
	r := httptest.NewRequest(http.MethodPost, "/api/v1/auth/login", nil)
	if _, _, err := svc.LoginBasic(r, "admin", "correct-horse"); err == nil {
		t.Error("LoginBasic() expected error in none mode")
	}
}

func TestService_Authenticate_BadTokens(t *testing.T) {
	svc, err := NewService(context.Background(), basicSecurityConfig())
	if err != nil {
		t.Fatalf("NewService() error = %v", err)
	}

	tests := []struct {
		name   string
		header string
		want   error
	}{
		{name: "missing header", header: "", want: ErrNoCredentials},
		{name: "not bearer", header: "Basic YWRtaW46cGFzcw==", want: ErrInvalidCredentials},
		{name: "bearer only", header: "Bearer", want: ErrInvalidCredentials},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := httptest.NewRequest(http.MethodGet, "/api/v1/status", nil)
			if tt.header != "" {
				r.Header.Set("Authorization", tt.header)
			}
			if _, err := svc.Authenticate(r); !errors.Is(err, tt.want) {
				t.Errorf("Authenticate() error = %v, want %v", err, tt.want)
			}
		})
	}

	t.Run("garbage token", func(t *testing.T) {
		r := httptest.NewRequest(http.MethodGet, "/api/v1/status", nil)
		r.Header.Set("Authorization", "Bearer not.a.token")
		if _, err := svc.Authenticate(r); err == nil {
			t.Error("Authenticate() expected error for garbage token")
		}
	})
}

func TestRequireAuth(t *testing.T) {
	svc, err := NewService(context.Background(), basicSecurityConfig())
	if err != nil {
		t.Fatalf("NewService() error = %v", err)
	}

	var gotSubject *Subject
	handler := svc.RequireAuth(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotSubject = SubjectFromContext(r.Context())
		w.WriteHeader(http.StatusOK)
	}))

	t.Run("unauthenticated", func(t *testing.T) {
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/v1/status", nil))
		if rec.Code != http.StatusUnauthorized {
			t.Errorf("status = %d, want %d", rec.Code, http.StatusUnauthorized)
		}
		if rec.Header().Get("WWW-Authenticate") == "" {
			t.Error("missing WWW-Authenticate header")
		}
	})

	t.Run("authenticated", func(t *testing.T) {
		loginReq := httptest.NewRequest(http.MethodPost, "/api/v1/auth/login", nil)
		token, _, err := svc.LoginBasic(loginReq, "admin", "correct-horse")
		if err != nil {
			t.Fatalf("LoginBasic() error = %v", err)
		}

		rec := httptest.NewRecorder()
		r := httptest.NewRequest(http.MethodGet, "/api/v1/status", nil)
		r.Header.Set("Authorization", "Bearer "+token)
		handler.ServeHTTP(rec, r)
		if rec.Code != http.StatusOK {
			t.Errorf("status = %d, want %d", rec.Code, http.StatusOK)
		}
		if gotSubject == nil || gotSubject.Username != "admin" {
			t.Errorf("subject = %+v, want username admin", gotSubject)
		}
	})
}

func TestRequireRole(t *testing.T) {
	svc, err := NewService(context.Background(), &config.SecurityConfig{})
	if err != nil {
		t.Fatalf("NewService() error = %v", err)
	}

	// None mode admits everyone as admin, which passes any role check.
	handler := svc.RequireRole(RoleOperator, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	}))

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/v1/notify/test", nil))
	if rec.Code != http.StatusNoContent {
		t.Errorf("status = %d, want %d", rec.Code, http.StatusNoContent)
	}
}

func TestOIDCMapRole(t *testing.T) {
	introspector := &OIDCIntrospector{rolesClaim: "roles", defaultRole: RoleViewer}

	tests := []struct {
		name   string
		claims map[string]any
		want   string
	}{
		{name: "no claim", claims: map[string]any{}, want: RoleViewer},
		{name: "string claim", claims: map[string]any{"roles": "operator"}, want: RoleOperator},
		{name: "list picks highest", claims: map[string]any{"roles": []any{"viewer", "admin"}}, want: RoleAdmin},
		{name: "list operator", claims: map[string]any{"roles": []any{"viewer", "operator"}}, want: RoleOperator},
		{name: "unrecognized falls back", claims: map[string]any{"roles": []any{"superuser"}}, want: RoleViewer},
		{name: "non-string entries ignored", claims: map[string]any{"roles": []any{42, "viewer"}}, want: RoleViewer},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := introspector.mapRole(tt.claims); got != tt.want {
				t.Errorf("mapRole() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestSubjectContext(t *testing.T) {
	ctx := context.Background()
	if got := SubjectFromContext(ctx); got != nil {
		t.Errorf("SubjectFromContext() = %+v, want nil", got)
	}

	subject := &Subject{Username: "admin", Role: RoleAdmin, Provider: ProviderJWT}
	ctx = ContextWithSubject(ctx, subject)
	if got := SubjectFromContext(ctx); got != subject {
		t.Errorf("SubjectFromContext() = %+v, want %+v", got, subject)
	}
}
