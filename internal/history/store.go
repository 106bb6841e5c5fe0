// Excubitor - Frigate NVR Event Notification Bridge
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/excubitor

package history

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"time"

	_ "github.com/duckdb/duckdb-go/v2"
	"github.com/goccy/go-json"

	"github.com/tomtom215/excubitor/internal/config"
	"github.com/tomtom215/excubitor/internal/events"
	"github.com/tomtom215/excubitor/internal/metrics"
)

// Store records processed events and notification outcomes in DuckDB, and
// answers the history queries behind the /api/v1/events endpoints.
type Store struct {
	conn *sql.DB
}

// New opens (or creates) the history database and applies the schema. An
// empty path opens an in-memory database, used by tests and deployments
// that only want the live feed.
func New(cfg *config.HistoryConfig) (*Store, error) {
	threads := cfg.Threads
	if threads <= 0 {
		threads = runtime.NumCPU()
	}
	maxMemory := cfg.MaxMemory
	if maxMemory == "" {
		maxMemory = "256MB"
	}

	if cfg.Path != "" {
		// Use 0750 permissions (owner: rwx, group: rx, other: none) per gosec G301
		dbDir := filepath.Dir(cfg.Path)
		if dbDir != "" && dbDir != "." {
			if err := os.MkdirAll(dbDir, 0o750); err != nil {
				return nil, fmt.Errorf("failed to create history directory %s: %w", dbDir, err)
			}
		}
	}

	// Disable auto-install/auto-load to prevent hangs in restricted network environments
	connStr := fmt.Sprintf("%s?access_mode=read_write&threads=%d&max_memory=%s&autoinstall_known_extensions=false&autoload_known_extensions=false",
		cfg.Path, threads, maxMemory)

	conn, err := sql.Open("duckdb", connStr)
	if err != nil {
		return nil, fmt.Errorf("failed to open history database: %w", err)
	}
	// DuckDB is embedded; a small pool avoids write contention.
	conn.SetMaxOpenConns(4)
	conn.SetMaxIdleConns(2)

	store := &Store{conn: conn}
	if err := store.migrate(); err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("failed to initialize history schema: %w", err)
	}
	return store, nil
}

// migrate applies the schema. All statements are idempotent so reopening an
// existing database is a no-op.
func (s *Store) migrate() error {
	statements := []string{
		`CREATE SEQUENCE IF NOT EXISTS events_id_seq`,
		`CREATE TABLE IF NOT EXISTS events (
			id BIGINT PRIMARY KEY DEFAULT nextval('events_id_seq'),
			uid VARCHAR NOT NULL,
			frigate_id VARCHAR NOT NULL,
			source VARCHAR NOT NULL,
			type VARCHAR NOT NULL,
			camera VARCHAR NOT NULL,
			label VARCHAR NOT NULL,
			sub_label VARCHAR,
			zones VARCHAR,
			score DOUBLE,
			has_snapshot BOOLEAN DEFAULT FALSE,
			has_clip BOOLEAN DEFAULT FALSE,
			started_at TIMESTAMP,
			ended_at TIMESTAMP,
			received_at TIMESTAMP NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_events_received_at ON events(received_at)`,
		`CREATE INDEX IF NOT EXISTS idx_events_camera ON events(camera)`,
		`CREATE INDEX IF NOT EXISTS idx_events_frigate_id ON events(frigate_id)`,
		`CREATE SEQUENCE IF NOT EXISTS notifications_id_seq`,
		`CREATE TABLE IF NOT EXISTS notifications (
			id BIGINT PRIMARY KEY DEFAULT nextval('notifications_id_seq'),
			event_uid VARCHAR NOT NULL,
			frigate_id VARCHAR NOT NULL,
			channel VARCHAR NOT NULL,
			success BOOLEAN NOT NULL,
			error VARCHAR,
			sent_at TIMESTAMP NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_notifications_sent_at ON notifications(sent_at)`,
	}
	for _, stmt := range statements {
		if _, err := s.conn.Exec(stmt); err != nil {
			return fmt.Errorf("schema statement failed: %w", err)
		}
	}
	return nil
}

// RecordEvent appends one processed event.
func (s *Store) RecordEvent(ctx context.Context, ev *events.CameraEvent) error {
	zones, err := json.Marshal(ev.Zones)
	if err != nil {
		return fmt.Errorf("marshal zones: %w", err)
	}

	start := time.Now()
	_, err = s.conn.ExecContext(ctx,
		`INSERT INTO events (uid, frigate_id, source, type, camera, label, sub_label,
			zones, score, has_snapshot, has_clip, started_at, ended_at, received_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		ev.UID, ev.FrigateID, ev.Source, ev.Type, ev.Camera, ev.Label,
		nullString(ev.SubLabel), string(zones), ev.Score, ev.HasSnapshot, ev.HasClip,
		nullTime(ev.StartedAt), nullTimePtr(ev.EndedAt), ev.ReceivedAt)
	metrics.RecordDBQuery("insert", "events", time.Since(start), err)
	if err != nil {
		return fmt.Errorf("insert event: %w", err)
	}
	metrics.HistoryEventsWritten.Inc()
	return nil
}

// NotificationRecord is one delivery attempt outcome.
type NotificationRecord struct {
	ID        int64     `json:"id"`
	EventUID  string    `json:"event_uid"`
	FrigateID string    `json:"frigate_id"`
	Channel   string    `json:"channel"`
	Success   bool      `json:"success"`
	Error     string    `json:"error,omitempty"`
	SentAt    time.Time `json:"sent_at"`
}

// RecordNotification appends one notification delivery outcome.
func (s *Store) RecordNotification(ctx context.Context, ev *events.CameraEvent, channel string, sendErr error) error {
	errMsg := ""
	if sendErr != nil {
		errMsg = sendErr.Error()
	}

	start := time.Now()
	_, err := s.conn.ExecContext(ctx,
		`INSERT INTO notifications (event_uid, frigate_id, channel, success, error, sent_at)
		 VALUES (?, ?, ?, ?, ?, ?)`,
		ev.UID, ev.FrigateID, channel, sendErr == nil, nullString(errMsg), time.Now().UTC())
	metrics.RecordDBQuery("insert", "notifications", time.Since(start), err)
	if err != nil {
		return fmt.Errorf("insert notification: %w", err)
	}
	return nil
}

// StoredEvent is one history row, zones decoded back into a slice.
type StoredEvent struct {
	ID          int64      `json:"id"`
	UID         string     `json:"uid"`
	FrigateID   string     `json:"frigate_id"`
	Source      string     `json:"source"`
	Type        string     `json:"type"`
	Camera      string     `json:"camera"`
	Label       string     `json:"label"`
	SubLabel    string     `json:"sub_label,omitempty"`
	Zones       []string   `json:"zones,omitempty"`
	Score       float64    `json:"score,omitempty"`
	HasSnapshot bool       `json:"has_snapshot"`
	HasClip     bool       `json:"has_clip"`
	StartedAt   *time.Time `json:"started_at,omitempty"`
	EndedAt     *time.Time `json:"ended_at,omitempty"`
	ReceivedAt  time.Time  `json:"received_at"`
}

// EventFilter narrows RecentEvents. Zero values are ignored.
type EventFilter struct {
	Camera string
	Label  string
	Since  time.Time
	Limit  int
	Offset int
}

// RecentEvents returns history rows newest first.
func (s *Store) RecentEvents(ctx context.Context, filter EventFilter) ([]StoredEvent, error) {
	query := `SELECT id, uid, frigate_id, source, type, camera, label, sub_label,
		zones, score, has_snapshot, has_clip, started_at, ended_at, received_at
		FROM events WHERE 1=1`
	args := []interface{}{}

	if filter.Camera != "" {
		query += " AND camera = ?"
		args = append(args, filter.Camera)
	}
	if filter.Label != "" {
		query += " AND label = ?"
		args = append(args, filter.Label)
	}
	if !filter.Since.IsZero() {
		query += " AND received_at >= ?"
		args = append(args, filter.Since)
	}
	query += " ORDER BY received_at DESC, id DESC"

	limit := filter.Limit
	if limit <= 0 {
		limit = 100
	}
	query += " LIMIT ?"
	args = append(args, limit)
	if filter.Offset > 0 {
		query += " OFFSET ?"
		args = append(args, filter.Offset)
	}

	start := time.Now()
	rows, err := s.conn.QueryContext(ctx, query, args...)
	metrics.RecordDBQuery("select", "events", time.Since(start), err)
	if err != nil {
		return nil, fmt.Errorf("query events: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var result []StoredEvent
	for rows.Next() {
		ev, err := scanEvent(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, ev)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate events: %w", err)
	}
	return result, nil
}

// EventByUID returns one history row, or sql.ErrNoRows.
func (s *Store) EventByUID(ctx context.Context, uid string) (*StoredEvent, error) {
	start := time.Now()
	rows, err := s.conn.QueryContext(ctx,
		`SELECT id, uid, frigate_id, source, type, camera, label, sub_label,
			zones, score, has_snapshot, has_clip, started_at, ended_at, received_at
		 FROM events WHERE uid = ? LIMIT 1`, uid)
	metrics.RecordDBQuery("select", "events", time.Since(start), err)
	if err != nil {
		return nil, fmt.Errorf("query event: %w", err)
	}
	defer func() { _ = rows.Close() }()

	if !rows.Next() {
		if err := rows.Err(); err != nil {
			return nil, fmt.Errorf("iterate event: %w", err)
		}
		return nil, sql.ErrNoRows
	}
	ev, err := scanEvent(rows)
	if err != nil {
		return nil, err
	}
	return &ev, nil
}

// CameraCount is the number of recorded events for one camera.
type CameraCount struct {
	Camera string `json:"camera"`
	Count  int64  `json:"count"`
}

// CountsByCamera returns per-camera event totals since the given time
// (all time when zero), largest first.
func (s *Store) CountsByCamera(ctx context.Context, since time.Time) ([]CameraCount, error) {
	query := `SELECT camera, COUNT(*) FROM events`
	args := []interface{}{}
	if !since.IsZero() {
		query += " WHERE received_at >= ?"
		args = append(args, since)
	}
	query += " GROUP BY camera ORDER BY COUNT(*) DESC"

	start := time.Now()
	rows, err := s.conn.QueryContext(ctx, query, args...)
	metrics.RecordDBQuery("select", "events", time.Since(start), err)
	if err != nil {
		return nil, fmt.Errorf("query camera counts: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var counts []CameraCount
	for rows.Next() {
		var c CameraCount
		if err := rows.Scan(&c.Camera, &c.Count); err != nil {
			return nil, fmt.Errorf("scan camera count: %w", err)
		}
		counts = append(counts, c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate camera counts: %w", err)
	}
	return counts, nil
}

// Notifications returns the delivery log newest first.
func (s *Store) Notifications(ctx context.Context, limit int) ([]NotificationRecord, error) {
	if limit <= 0 {
		limit = 100
	}

	start := time.Now()
	rows, err := s.conn.QueryContext(ctx,
		`SELECT id, event_uid, frigate_id, channel, success, error, sent_at
		 FROM notifications ORDER BY sent_at DESC, id DESC LIMIT ?`, limit)
	metrics.RecordDBQuery("select", "notifications", time.Since(start), err)
	if err != nil {
		return nil, fmt.Errorf("query notifications: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var records []NotificationRecord
	for rows.Next() {
		var rec NotificationRecord
		var errMsg sql.NullString
		if err := rows.Scan(&rec.ID, &rec.EventUID, &rec.FrigateID, &rec.Channel,
			&rec.Success, &errMsg, &rec.SentAt); err != nil {
			return nil, fmt.Errorf("scan notification: %w", err)
		}
		rec.Error = errMsg.String
		records = append(records, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate notifications: %w", err)
	}
	return records, nil
}

// Prune removes events and notifications older than the cutoff and returns
// the number of events removed.
func (s *Store) Prune(ctx context.Context, cutoff time.Time) (int64, error) {
	start := time.Now()
	result, err := s.conn.ExecContext(ctx, `DELETE FROM events WHERE received_at < ?`, cutoff)
	metrics.RecordDBQuery("delete", "events", time.Since(start), err)
	if err != nil {
		return 0, fmt.Errorf("prune events: %w", err)
	}
	pruned, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("prune events rows affected: %w", err)
	}

	start = time.Now()
	_, err = s.conn.ExecContext(ctx, `DELETE FROM notifications WHERE sent_at < ?`, cutoff)
	metrics.RecordDBQuery("delete", "notifications", time.Since(start), err)
	if err != nil {
		return pruned, fmt.Errorf("prune notifications: %w", err)
	}

	if pruned > 0 {
		metrics.HistoryEventsPruned.Add(float64(pruned))
	}
	return pruned, nil
}

// Ping verifies the database connection, for readiness checks.
func (s *Store) Ping(ctx context.Context) error {
	return s.conn.PingContext(ctx)
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.conn.Close()
}

// scanEvent decodes one events row.
func scanEvent(rows *sql.Rows) (StoredEvent, error) {
	var ev StoredEvent
	var subLabel, zones sql.NullString
	var startedAt, endedAt sql.NullTime

	if err := rows.Scan(&ev.ID, &ev.UID, &ev.FrigateID, &ev.Source, &ev.Type,
		&ev.Camera, &ev.Label, &subLabel, &zones, &ev.Score,
		&ev.HasSnapshot, &ev.HasClip, &startedAt, &endedAt, &ev.ReceivedAt); err != nil {
		return StoredEvent{}, fmt.Errorf("scan event: %w", err)
	}

	ev.SubLabel = subLabel.String
	if zones.Valid && zones.String != "" && zones.String != "null" {
		if err := json.Unmarshal([]byte(zones.String), &ev.Zones); err != nil {
			return StoredEvent{}, fmt.Errorf("decode zones: %w", err)
		}
	}
	if startedAt.Valid {
		t := startedAt.Time
		ev.StartedAt = &t
	}
	if endedAt.Valid {
		t := endedAt.Time
		ev.EndedAt = &t
	}
	return ev, nil
}

func nullString(s string) interface{} {
	if s == "" {
		return nil
	}
	return s
}

func nullTime(t time.Time) interface{} {
	if t.IsZero() {
		return nil
	}
	return t
}

func nullTimePtr(t *time.Time) interface{} {
	if t == nil {
		return nil
	}
	return *t
}
