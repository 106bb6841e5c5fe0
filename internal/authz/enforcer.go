// Excubitor - Frigate NVR Event Notification Bridge
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/excubitor

package authz

import (
	_ "embed"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/casbin/casbin/v2"
	"github.com/casbin/casbin/v2/model"
	fileadapter "github.com/casbin/casbin/v2/persist/file-adapter"

	"github.com/tomtom215/excubitor/internal/config"
	"github.com/tomtom215/excubitor/internal/metrics"
)

//go:embed model.conf
var embeddedModel string

//go:embed policy.csv
var embeddedPolicy string

// Enforcer answers "may this role call this endpoint" using a Casbin RBAC
// model. The built-in roles viewer < operator < admin come from an embedded
// policy; operators can point casbin.model_path / casbin.policy_path at
// their own files to replace it.
type Enforcer struct {
	enforcer    *casbin.SyncedEnforcer
	cache       *decisionCache
	defaultRole string
	filePolicy  bool
}

// NewEnforcer builds the enforcer from config. With an empty config it
// loads the embedded model and policy.
func NewEnforcer(cfg *config.CasbinConfig) (*Enforcer, error) {
	if cfg == nil {
		cfg = &config.CasbinConfig{}
	}

	var (
		m   model.Model
		err error
	)
	if cfg.ModelPath != "" && fileExists(cfg.ModelPath) {
		m, err = model.NewModelFromFile(cfg.ModelPath)
	} else {
		m, err = model.NewModelFromString(embeddedModel)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load casbin model: %w", err)
	}

	var enforcer *casbin.SyncedEnforcer
	filePolicy := cfg.PolicyPath != "" && fileExists(cfg.PolicyPath)
	if filePolicy {
		enforcer, err = casbin.NewSyncedEnforcer(m, fileadapter.NewAdapter(cfg.PolicyPath))
	} else {
		enforcer, err = casbin.NewSyncedEnforcer(m)
		if err == nil {
			err = loadPolicyString(enforcer, embeddedPolicy)
		}
	}
	if err != nil {
		return nil, fmt.Errorf("failed to create casbin enforcer: %w", err)
	}

	if cfg.AutoReload && filePolicy {
		interval := cfg.ReloadInterval
		if interval <= 0 {
			interval = 30 * time.Second
		}
		enforcer.StartAutoLoadPolicy(interval)
	}

	defaultRole := cfg.DefaultRole
	if defaultRole == "" {
		defaultRole = "viewer"
	}

	return &Enforcer{
		enforcer:    enforcer,
		cache:       newDecisionCache(5 * time.Minute),
		defaultRole: defaultRole,
		filePolicy:  filePolicy,
	}, nil
}

// loadPolicyString feeds CSV policy lines into the enforcer, used when no
// policy file adapter is configured.
func loadPolicyString(enforcer *casbin.SyncedEnforcer, policy string) error {
	for _, line := range strings.Split(policy, "\n") {
		line = strings.TrimSpace(line)
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}

		parts := strings.Split(line, ",")
		for i := range parts {
			parts[i] = strings.TrimSpace(parts[i])
		}

		switch {
		case parts[0] == "p" && len(parts) >= 4:
			if _, err := enforcer.AddPolicy(parts[1], parts[2], parts[3]); err != nil {
				return fmt.Errorf("failed to add policy %v: %w", parts[1:], err)
			}
		case parts[0] == "g" && len(parts) >= 3:
			if _, err := enforcer.AddGroupingPolicy(parts[1], parts[2]); err != nil {
				return fmt.Errorf("failed to add grouping policy %v: %w", parts[1:], err)
			}
		}
	}
	return nil
}

// Enforce reports whether the role may perform method on path.
func (e *Enforcer) Enforce(role, path, method string) (bool, error) {
	if role == "" {
		role = e.defaultRole
	}

	if allowed, ok := e.cache.get(role, path, method); ok {
		metrics.RecordAuthzCacheLookup(true)
		metrics.RecordAuthzDecision(allowed)
		return allowed, nil
	}
	metrics.RecordAuthzCacheLookup(false)

	allowed, err := e.enforcer.Enforce(role, path, method)
	if err != nil {
		return false, fmt.Errorf("enforcement failed: %w", err)
	}

	e.cache.set(role, path, method, allowed)
	metrics.RecordAuthzDecision(allowed)
	return allowed, nil
}

// Roles returns the roles known to the policy, for the config endpoint.
func (e *Enforcer) Roles() []string {
	//nolint:errcheck // only fails on a nil enforcer
	groups, _ := e.enforcer.GetGroupingPolicy()
	seen := make(map[string]struct{})
	var roles []string
	for _, g := range groups {
		for _, role := range g {
			if _, ok := seen[role]; !ok {
				seen[role] = struct{}{}
				roles = append(roles, role)
			}
		}
	}
	return roles
}

// Reload re-reads the policy from its file adapter. No-op for the embedded
// policy.
func (e *Enforcer) Reload() error {
	if !e.filePolicy {
		return nil
	}
	if err := e.enforcer.LoadPolicy(); err != nil {
		return fmt.Errorf("failed to reload policy: %w", err)
	}
	e.cache.clear()
	return nil
}

// Close stops background policy reloads and the cache janitor.
func (e *Enforcer) Close() {
	e.enforcer.StopAutoLoadPolicy()
	e.cache.stop()
}

func fileExists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}
