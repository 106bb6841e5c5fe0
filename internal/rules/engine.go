// Excubitor - Frigate NVR Event Notification Bridge
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/excubitor

package rules

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/tomtom215/excubitor/internal/config"
	"github.com/tomtom215/excubitor/internal/events"
	"github.com/tomtom215/excubitor/internal/metrics"
	"github.com/tomtom215/excubitor/internal/state"
)

// Rule names reported in Verdict.DroppedBy and on the rule_drops_total
// metric.
const (
	DropType       = "type"
	DropCamera     = "camera"
	DropLabel      = "label"
	DropZone       = "zone"
	DropScore      = "score"
	DropQuietHours = "quiet_hours"
	DropDedup      = "dedup"
	DropCooldown   = "cooldown"
)

// Verdict is the outcome of evaluating one event against the rule set.
type Verdict struct {
	Allowed   bool
	DroppedBy string // empty when Allowed
}

// Engine evaluates detection events against the configured allow-lists,
// thresholds, and suppression windows. Static checks are pure; dedup and
// cooldown consult the shared marker store.
type Engine struct {
	cameras    map[string]struct{}
	labels     map[string]struct{}
	zones      map[string]struct{}
	eventTypes map[string]struct{}

	minScore    float64
	cooldown    time.Duration
	dedupWindow time.Duration

	quietEnabled bool
	quietStart   int // minutes since midnight
	quietEnd     int

	store state.Store

	// now is replaceable in tests to pin quiet-hours checks.
	now func() time.Time
}

// NewEngine builds an engine from the rules configuration. Empty
// allow-lists admit everything; an empty event-type list defaults to firing
// on "new" only.
func NewEngine(cfg *config.RulesConfig, store state.Store) (*Engine, error) {
	e := &Engine{
		cameras:     toSet(cfg.Cameras),
		labels:      toSet(cfg.Labels),
		zones:       toSet(cfg.Zones),
		minScore:    cfg.MinScore,
		cooldown:    cfg.Cooldown,
		dedupWindow: cfg.DedupWindow,
		store:       store,
		now:         time.Now,
	}

	eventTypes := cfg.EventTypes
	if len(eventTypes) == 0 {
		eventTypes = []string{events.EventTypeNew}
	}
	e.eventTypes = toSet(eventTypes)

	if cfg.QuietHoursEnabled {
		start, err := parseClock(cfg.QuietHoursStart)
		if err != nil {
			return nil, fmt.Errorf("quiet_hours_start: %w", err)
		}
		end, err := parseClock(cfg.QuietHoursEnd)
		if err != nil {
			return nil, fmt.Errorf("quiet_hours_end: %w", err)
		}
		e.quietEnabled = true
		e.quietStart = start
		e.quietEnd = end
	}

	return e, nil
}

// Evaluate runs the rule chain over one event. Static gates run first so a
// disallowed camera never consumes a dedup or cooldown marker.
func (e *Engine) Evaluate(ctx context.Context, ev *events.CameraEvent) (Verdict, error) {
	if rule := e.evaluateStatic(ev); rule != "" {
		metrics.RecordRuleEvaluation(rule)
		return Verdict{DroppedBy: rule}, nil
	}

	if e.dedupWindow > 0 {
		first, err := e.store.FirstSeen(ctx, state.DedupPrefix+ev.DedupKey(), e.dedupWindow)
		if err != nil {
			return Verdict{}, fmt.Errorf("dedup check: %w", err)
		}
		if !first {
			metrics.RecordRuleEvaluation(DropDedup)
			return Verdict{DroppedBy: DropDedup}, nil
		}
	}

	if e.cooldown > 0 {
		first, err := e.store.FirstSeen(ctx, state.CooldownPrefix+ev.CooldownKey(), e.cooldown)
		if err != nil {
			return Verdict{}, fmt.Errorf("cooldown check: %w", err)
		}
		if !first {
			metrics.RecordRuleEvaluation(DropCooldown)
			return Verdict{DroppedBy: DropCooldown}, nil
		}
	}

	metrics.RecordRuleEvaluation("")
	return Verdict{Allowed: true}, nil
}

// evaluateStatic runs the stateless gates, returning the first rule that
// drops the event or empty when all pass.
func (e *Engine) evaluateStatic(ev *events.CameraEvent) string {
	if _, ok := e.eventTypes[ev.Type]; !ok {
		return DropType
	}
	if len(e.cameras) > 0 {
		if _, ok := e.cameras[ev.Camera]; !ok {
			return DropCamera
		}
	}
	if len(e.labels) > 0 {
		if _, ok := e.labels[ev.Label]; !ok {
			return DropLabel
		}
	}
	if len(e.zones) > 0 && !e.anyZoneAllowed(ev.Zones) {
		return DropZone
	}
	if e.minScore > 0 && ev.Score < e.minScore {
		return DropScore
	}
	if e.quietEnabled && e.inQuietHours(e.now()) {
		return DropQuietHours
	}
	return ""
}

// anyZoneAllowed reports whether at least one of the event's zones appears
// in the allow-list. An event with no zones never matches a zone
// requirement.
func (e *Engine) anyZoneAllowed(zones []string) bool {
	for _, zone := range zones {
		if _, ok := e.zones[zone]; ok {
			return true
		}
	}
	return false
}

// inQuietHours reports whether the local wall clock falls inside the quiet
// window. Windows may cross midnight ("23:00" to "07:00").
func (e *Engine) inQuietHours(now time.Time) bool {
	minute := now.Hour()*60 + now.Minute()
	if e.quietStart <= e.quietEnd {
		return minute >= e.quietStart && minute < e.quietEnd
	}
	return minute >= e.quietStart || minute < e.quietEnd
}

// parseClock parses an "HH:MM" wall-clock string into minutes since
// midnight.
func parseClock(value string) (int, error) {
	parts := strings.SplitN(value, ":", 2)
	if len(parts) != 2 {
		return 0, fmt.Errorf("invalid clock value %q, want HH:MM", value)
	}
	hour, err := strconv.Atoi(parts[0])
	if err != nil || hour < 0 || hour > 23 {
		return 0, fmt.Errorf("invalid hour in clock value %q", value)
	}
	minute, err := strconv.Atoi(parts[1])
	if err != nil || minute < 0 || minute > 59 {
		return 0, fmt.Errorf("invalid minute in clock value %q", value)
	}
	return hour*60 + minute, nil
}

func toSet(values []string) map[string]struct{} {
	set := make(map[string]struct{}, len(values))
	for _, v := range values {
		if v == "" {
			continue
		}
		set[v] = struct{}{}
	}
	return set
}
