// Excubitor - Frigate NVR Event Notification Bridge
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/excubitor

package auth

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/tomtom215/excubitor/internal/config"
	"github.com/tomtom215/excubitor/internal/logging"
)

// Modes accepted in SecurityConfig.AuthMode.
const (
	ModeNone  = "none"
	ModeBasic = "basic"
	ModeOIDC  = "oidc"
)

// Service authenticates admin API requests according to the configured
// mode. In "basic" mode a username/password login issues a short-lived JWT
// which subsequent requests present as a bearer token. In "oidc" mode
// bearer tokens are introspected against the external issuer. In "none"
// mode every request is admitted as an anonymous admin.
type Service struct {
	mode  string
	basic *BasicAuthManager
	jwt   *JWTManager
	oidc  *OIDCIntrospector
	log   *logging.SecurityLogger
}

// NewService builds the authenticator for the configured mode. OIDC mode
// performs issuer discovery, which needs network access.
func NewService(ctx context.Context, cfg *config.SecurityConfig) (*Service, error) {
	s := &Service{
		mode: cfg.AuthMode,
		log:  logging.NewSecurityLogger(),
	}
	if s.mode == "" {
		s.mode = ModeNone
	}

	switch s.mode {
	case ModeNone:
		return s, nil

	case ModeBasic:
		if cfg.AdminUser == "" {
			return nil, fmt.Errorf("basic auth requires admin_user")
		}
		var (
			basic *BasicAuthManager
			err   error
		)
		if cfg.AdminHash != "" {
			basic, err = NewBasicAuthManagerFromHash(cfg.AdminUser, cfg.AdminHash)
		} else {
			basic, err = NewBasicAuthManager(cfg.AdminUser, cfg.AdminPass)
		}
		if err != nil {
			return nil, fmt.Errorf("failed to configure basic auth: %w", err)
		}
		jwtMgr, err := NewJWTManager(cfg.JWTSecret, cfg.TokenTTL)
		if err != nil {
			return nil, fmt.Errorf("failed to configure token manager: %w", err)
		}
		s.basic = basic
		s.jwt = jwtMgr
		return s, nil

	case ModeOIDC:
		introspector, err := NewOIDCIntrospector(ctx, &cfg.OIDC)
		if err != nil {
			return nil, err
		}
		s.oidc = introspector
		return s, nil

	default:
		return nil, fmt.Errorf("unknown auth mode %q (want none, basic or oidc)", cfg.AuthMode)
	}
}

// Mode returns the active authentication mode.
func (s *Service) Mode() string {
	return s.mode
}

// Enabled reports whether requests require credentials.
func (s *Service) Enabled() bool {
	return s.mode != ModeNone
}

// LoginBasic validates a username/password pair and issues a session token.
// Only available in basic mode.
func (s *Service) LoginBasic(r *http.Request, username, password string) (string, time.Duration, error) {
	if s.mode != ModeBasic {
		return "", 0, fmt.Errorf("login is not available in %s mode", s.mode)
	}

	if err := s.basic.ValidateCredentials(username, password); err != nil {
		s.log.LogLoginFailure(username, ProviderBasic, r.RemoteAddr, r.UserAgent(), "invalid credentials")
		return "", 0, err
	}

	token, err := s.jwt.GenerateToken(username, RoleAdmin)
	if err != nil {
		return "", 0, fmt.Errorf("failed to issue session token: %w", err)
	}

	s.log.LogLoginSuccess(username, ProviderBasic, r.RemoteAddr, r.UserAgent())
	return token, s.jwt.TokenTTL(), nil
}

// Authenticate resolves the subject for a request. Returns ErrNoCredentials
// when no bearer token is present and one is required.
func (s *Service) Authenticate(r *http.Request) (*Subject, error) {
	if s.mode == ModeNone {
		return &Subject{Username: "anonymous", Role: RoleAdmin, Provider: ProviderNone}, nil
	}

	token, err := bearerToken(r)
	if err != nil {
		return nil, err
	}

	switch s.mode {
	case ModeBasic:
		claims, err := s.jwt.ValidateToken(token)
		if err != nil {
			return nil, err
		}
		return &Subject{Username: claims.Username, Role: claims.Role, Provider: ProviderJWT}, nil

	case ModeOIDC:
		return s.oidc.Introspect(r.Context(), token)

	default:
		return nil, errors.New("authenticator misconfigured")
	}
}

// WWWAuthenticateHeader is advertised on 401 responses.
func (s *Service) WWWAuthenticateHeader() string {
	return `Bearer realm="Excubitor", charset="UTF-8"`
}

func bearerToken(r *http.Request) (string, error) {
	header := r.Header.Get("Authorization")
	if header == "" {
		return "", ErrNoCredentials
	}
	const prefix = "Bearer "
	if len(header) <= len(prefix) || !strings.EqualFold(header[:len(prefix)], prefix) {
		return "", ErrInvalidCredentials
	}
	return strings.TrimSpace(header[len(prefix):]), nil
}
