// Excubitor - Frigate NVR Event Notification Bridge
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/excubitor

package authz

import (
	"io"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/tomtom215/excubitor/internal/config"
	"github.com/tomtom215/excubitor/internal/logging"
)

//nolint:gochecknoinits // init ensures consistent logging for tests
func init() {
	logging.Init(logging.Config{
		Level:  "info",
		Format: "console",
		Output: io.Discard,
	})
}

func newTestEnforcer(t *testing.T) *Enforcer {
	t.Helper()
	enforcer, err := NewEnforcer(nil)
	if err != nil {
		t.Fatalf("NewEnforcer() error = %v", err)
	}
	t.Cleanup(enforcer.Close)
	return enforcer
}

func TestEnforce_EmbeddedPolicy(t *testing.T) {
	enforcer := newTestEnforcer(t)

	tests := []struct {
		name   string
		role   string
		path   string
		method string
		want   bool
	}{
		{name: "viewer reads status", role: "viewer", path: "/api/v1/status", method: "GET", want: true},
		{name: "viewer reads events", role: "viewer", path: "/api/v1/events", method: "GET", want: true},
		{name: "viewer reads single event", role: "viewer", path: "/api/v1/events/1754949571.836125-d4dpo9", method: "GET", want: true},
		{name: "viewer reads snapshot", role: "viewer", path: "/api/v1/events/1754949571.836125-d4dpo9/snapshot", method: "GET", want: true},
		{name: "viewer reads notifications", role: "viewer", path: "/api/v1/notifications", method: "GET", want: true},
		{name: "viewer opens websocket", role: "viewer", path: "/ws", method: "GET", want: true},
		{name: "viewer cannot test notify", role: "viewer", path: "/api/v1/notify/test", method: "POST", want: false},
		{name: "viewer cannot read config", role: "viewer", path: "/api/v1/config", method: "GET", want: false},
		{name: "viewer cannot reset auth", role: "viewer", path: "/api/v1/admin/auth/reset", method: "POST", want: false},
		{name: "operator tests notify", role: "operator", path: "/api/v1/notify/test", method: "POST", want: true},
		{name: "operator inherits viewer", role: "operator", path: "/api/v1/events", method: "GET", want: true},
		{name: "operator cannot reset auth", role: "operator", path: "/api/v1/admin/auth/reset", method: "POST", want: false},
		{name: "admin reads config", role: "admin", path: "/api/v1/config", method: "GET", want: true},
		{name: "admin resets auth", role: "admin", path: "/api/v1/admin/auth/reset", method: "POST", want: true},
		{name: "admin inherits operator", role: "admin", path: "/api/v1/notify/test", method: "POST", want: true},
		{name: "admin opens websocket", role: "admin", path: "/ws", method: "GET", want: true},
		{name: "unknown role denied", role: "stranger", path: "/api/v1/status", method: "GET", want: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := enforcer.Enforce(tt.role, tt.path, tt.method)
			if err != nil {
				t.Fatalf("Enforce() error = %v", err)
			}
			if got != tt.want {
				t.Errorf("Enforce(%q, %q, %q) = %v, want %v", tt.role, tt.path, tt.method, got, tt.want)
			}
		})
	}
}

func TestEnforce_DefaultRole(t *testing.T) {
	enforcer := newTestEnforcer(t)

	// Empty role falls back to viewer.
	allowed, err := enforcer.Enforce("", "/api/v1/status", "GET")
	if err != nil {
		t.Fatalf("Enforce() error = %v", err)
	}
	if !allowed {
		t.Error("Enforce() with empty role = false, want viewer access")
	}

	denied, err := enforcer.Enforce("", "/api/v1/config", "GET")
	if err != nil {
		t.Fatalf("Enforce() error = %v", err)
	}
	if denied {
		t.Error("Enforce() with empty role allowed admin endpoint")
	}
}

func TestEnforce_Cached(t *testing.T) {
	enforcer := newTestEnforcer(t)

	first, err := enforcer.Enforce("viewer", "/api/v1/status", "GET")
	if err != nil {
		t.Fatalf("Enforce() error = %v", err)
	}
	second, err := enforcer.Enforce("viewer", "/api/v1/status", "GET")
	if err != nil {
		t.Fatalf("Enforce() cached error = %v", err)
	}
	if first != second {
		t.Errorf("cached decision %v differs from first %v", second, first)
	}
}

func TestNewEnforcer_FilePolicy(t *testing.T) {
	tmpDir := t.TempDir()
	policyPath := filepath.Join(tmpDir, "policy.csv")
	policy := "p, auditor, /api/v1/events, GET\n"
	if err := os.WriteFile(policyPath, []byte(policy), 0o600); err != nil {
		t.Fatalf("WriteFile() error = %v", err)
	}

	enforcer, err := NewEnforcer(&config.CasbinConfig{PolicyPath: policyPath})
	if err != nil {
		t.Fatalf("NewEnforcer() error = %v", err)
	}
	defer enforcer.Close()

	allowed, err := enforcer.Enforce("auditor", "/api/v1/events", "GET")
	if err != nil {
		t.Fatalf("Enforce() error = %v", err)
	}
	if !allowed {
		t.Error("file policy rule not applied")
	}

	// The embedded policy must not leak into a file-backed enforcer.
	allowed, err = enforcer.Enforce("viewer", "/api/v1/status", "GET")
	if err != nil {
		t.Fatalf("Enforce() error = %v", err)
	}
	if allowed {
		t.Error("embedded policy applied despite file policy")
	}

	if err := enforcer.Reload(); err != nil {
		t.Errorf("Reload() error = %v", err)
	}
}

func TestReload_EmbeddedIsNoop(t *testing.T) {
	enforcer := newTestEnforcer(t)
	if err := enforcer.Reload(); err != nil {
		t.Errorf("Reload() error = %v", err)
	}
}

func TestRoles(t *testing.T) {
	enforcer := newTestEnforcer(t)

	roles := enforcer.Roles()
	want := map[string]bool{"viewer": false, "operator": false, "admin": false}
	for _, role := range roles {
		if _, ok := want[role]; ok {
			want[role] = true
		}
	}
	for role, seen := range want {
		if !seen {
			t.Errorf("Roles() missing %q (got %v)", role, roles)
		}
	}
}

func TestDecisionCache(t *testing.T) {
	cache := newDecisionCache(time.Minute)
	defer cache.stop()

	if _, ok := cache.get("viewer", "/api/v1/status", "GET"); ok {
		t.Error("get() on empty cache returned a hit")
	}

	cache.set("viewer", "/api/v1/status", "GET", true)
	allowed, ok := cache.get("viewer", "/api/v1/status", "GET")
	if !ok || !allowed {
		t.Errorf("get() = (%v, %v), want (true, true)", allowed, ok)
	}

	cache.clear()
	if _, ok := cache.get("viewer", "/api/v1/status", "GET"); ok {
		t.Error("get() after clear returned a hit")
	}
}

func TestDecisionCache_Expiry(t *testing.T) {
	cache := &decisionCache{
		ttl:      -time.Second, // entries born expired
		items:    make(map[string]decision),
		stopChan: make(chan struct{}),
	}
	cache.set("viewer", "/api/v1/status", "GET", true)
	if _, ok := cache.get("viewer", "/api/v1/status", "GET"); ok {
		t.Error("get() returned an expired entry")
	}
}
