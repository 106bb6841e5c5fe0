// Excubitor - Frigate NVR Event Notification Bridge
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/excubitor

package auth

import (
	"context"
	"fmt"

	"github.com/zitadel/oidc/v3/pkg/client/rs"
	"github.com/zitadel/oidc/v3/pkg/oidc"

	"github.com/tomtom215/excubitor/internal/config"
	"github.com/tomtom215/excubitor/internal/logging"
)

// OIDCIntrospector validates bearer tokens against an external identity
// provider's introspection endpoint using client credentials. Unlike a
// relying-party login flow, the bridge never issues or redirects for OIDC
// tokens itself; callers obtain them out of band and present them as
// Authorization bearer tokens.
type OIDCIntrospector struct {
	server      rs.ResourceServer
	rolesClaim  string
	defaultRole string
	log         *logging.SecurityLogger
}

// NewOIDCIntrospector discovers the issuer and prepares the introspection
// client. Discovery performs a network round trip, so this should run once
// at startup.
func NewOIDCIntrospector(ctx context.Context, cfg *config.OIDCConfig) (*OIDCIntrospector, error) {
	if cfg.IssuerURL == "" || cfg.ClientID == "" || cfg.ClientSecret == "" {
		return nil, fmt.Errorf("OIDC introspection requires issuer_url, client_id and client_secret")
	}

	server, err := rs.NewResourceServerClientCredentials(ctx, cfg.IssuerURL, cfg.ClientID, cfg.ClientSecret)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize OIDC resource server: %w", err)
	}

	rolesClaim := cfg.RolesClaim
	if rolesClaim == "" {
		rolesClaim = "roles"
	}
	defaultRole := cfg.DefaultRole
	if defaultRole == "" {
		defaultRole = RoleViewer
	}

	return &OIDCIntrospector{
		server:      server,
		rolesClaim:  rolesClaim,
		defaultRole: defaultRole,
		log:         logging.NewSecurityLogger(),
	}, nil
}

// Introspect validates a bearer token and maps the response to a subject.
// Inactive tokens are treated as expired credentials.
func (o *OIDCIntrospector) Introspect(ctx context.Context, token string) (*Subject, error) {
	resp, err := rs.Introspect[*oidc.IntrospectionResponse](ctx, o.server, token)
	if err != nil {
		return nil, fmt.Errorf("token introspection failed: %w", err)
	}
	if !resp.Active {
		return nil, ErrExpiredCredentials
	}

	username := resp.Username
	if username == "" {
		username = resp.Subject
	}

	return &Subject{
		Username: username,
		Role:     o.mapRole(resp.Claims),
		Provider: ProviderOIDC,
	}, nil
}

// mapRole picks the most privileged recognized role from the configured
// roles claim. Unrecognized or absent claims fall back to the default role.
func (o *OIDCIntrospector) mapRole(claims map[string]any) string {
	raw, ok := claims[o.rolesClaim]
	if !ok {
		return o.defaultRole
	}

	var roles []string
	switch v := raw.(type) {
	case string:
		roles = []string{v}
	case []any:
		for _, item := range v {
			if s, ok := item.(string); ok {
				roles = append(roles, s)
			}
		}
	case []string:
		roles = v
	}

	best := ""
	for _, r := range roles {
		switch r {
		case RoleAdmin:
			return RoleAdmin
		case RoleOperator:
			best = RoleOperator
		case RoleViewer:
			if best == "" {
				best = RoleViewer
			}
		}
	}
	if best == "" {
		return o.defaultRole
	}
	return best
}
