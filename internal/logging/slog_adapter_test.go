// Excubitor - Frigate NVR Event Notification Bridge
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/excubitor

package logging

import (
	"bytes"
	"context"
	"log/slog"
	"strings"
	"testing"
	"time"

	"github.com/rs/zerolog"
)

func TestNewSlogHandler(t *testing.T) {
	t.Parallel()

	handler := NewSlogHandler()

	if handler == nil {
		t.Fatal("NewSlogHandler() = nil, want non-nil")
	}
	if handler.attrs != nil {
		t.Errorf("NewSlogHandler().attrs = %v, want nil", handler.attrs)
	}
	if handler.groups != nil {
		t.Errorf("NewSlogHandler().groups = %v, want nil", handler.groups)
	}
}

func TestNewSlogHandlerWithLogger(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	logger := zerolog.New(&buf)

	handler := NewSlogHandlerWithLogger(logger)
	slogger := slog.New(handler)
	slogger.Info("supervisor started")

	if !strings.Contains(buf.String(), "supervisor started") {
		t.Errorf("expected 'supervisor started' in output: %s", buf.String())
	}
}

func TestSlogHandler_Enabled(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name         string
		zerologLevel zerolog.Level
		slogLevel    slog.Level
		want         bool
	}{
		{"debug logger enables debug level", zerolog.DebugLevel, slog.LevelDebug, true},
		{"info logger disables debug level", zerolog.InfoLevel, slog.LevelDebug, false},
		{"info logger enables info level", zerolog.InfoLevel, slog.LevelInfo, true},
		{"info logger enables warn level", zerolog.InfoLevel, slog.LevelWarn, true},
		{"warn logger disables info level", zerolog.WarnLevel, slog.LevelInfo, false},
		{"error logger disables warn level", zerolog.ErrorLevel, slog.LevelWarn, false},
		{"trace logger enables all levels", zerolog.TraceLevel, slog.LevelDebug, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			logger := zerolog.New(nil).Level(tt.zerologLevel)
			handler := NewSlogHandlerWithLogger(logger)

			got := handler.Enabled(context.Background(), tt.slogLevel)
			if got != tt.want {
				t.Errorf("Enabled() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestSlogHandler_Handle(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name      string
		level     slog.Level
		message   string
		wantLevel string
	}{
		{"debug level", slog.LevelDebug, "debug msg", "debug"},
		{"info level", slog.LevelInfo, "info msg", "info"},
		{"warn level", slog.LevelWarn, "warn msg", "warn"},
		{"error level", slog.LevelError, "error msg", "error"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			var buf bytes.Buffer
			logger := zerolog.New(&buf).Level(zerolog.TraceLevel)
			handler := NewSlogHandlerWithLogger(logger)

			record := slog.NewRecord(time.Now(), tt.level, tt.message, 0)
			if err := handler.Handle(context.Background(), record); err != nil {
				t.Fatalf("Handle() error = %v", err)
			}

			output := buf.String()
			if !strings.Contains(output, tt.message) {
				t.Errorf("expected message %q in output: %s", tt.message, output)
			}
			if !strings.Contains(output, `"level":"`+tt.wantLevel+`"`) {
				t.Errorf("expected level %q in output: %s", tt.wantLevel, output)
			}
		})
	}
}

func TestSlogHandler_Handle_WithAttributes(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	logger := zerolog.New(&buf)
	handler := NewSlogHandlerWithLogger(logger)

	record := slog.NewRecord(time.Now(), slog.LevelInfo, "service restarted", 0)
	record.AddAttrs(
		slog.String("service", "poller"),
		slog.Int("restarts", 3),
	)

	if err := handler.Handle(context.Background(), record); err != nil {
		t.Fatalf("Handle() error = %v", err)
	}

	output := buf.String()
	if !strings.Contains(output, `"service":"poller"`) {
		t.Errorf("expected service attr in output: %s", output)
	}
	if !strings.Contains(output, `"restarts":3`) {
		t.Errorf("expected restarts attr in output: %s", output)
	}
}

func TestSlogHandler_Handle_UnknownLevel(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	logger := zerolog.New(&buf)
	handler := NewSlogHandlerWithLogger(logger)

	// Levels between the standard ones fall back to info.
	record := slog.NewRecord(time.Now(), slog.Level(2), "custom level", 0)
	if err := handler.Handle(context.Background(), record); err != nil {
		t.Fatalf("Handle() error = %v", err)
	}

	if !strings.Contains(buf.String(), `"level":"info"`) {
		t.Errorf("expected fallback to info level: %s", buf.String())
	}
}

func TestSlogHandler_WithAttrs(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	logger := zerolog.New(&buf)
	handler := NewSlogHandlerWithLogger(logger)

	newHandler := handler.WithAttrs([]slog.Attr{
		slog.String("component", "supervisor"),
	})

	slogger := slog.New(newHandler)
	slogger.Info("tree started")

	output := buf.String()
	if !strings.Contains(output, `"component":"supervisor"`) {
		t.Errorf("expected pre-configured attr in output: %s", output)
	}

	// Original handler must be unchanged.
	buf.Reset()
	slog.New(handler).Info("no attrs")
	if strings.Contains(buf.String(), "supervisor") {
		t.Errorf("original handler gained attrs: %s", buf.String())
	}
}

func TestSlogHandler_WithGroup(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	logger := zerolog.New(&buf)
	handler := NewSlogHandlerWithLogger(logger)

	grouped := handler.WithGroup("suture")
	slogger := slog.New(grouped)
	slogger.Info("service event", slog.String("name", "ingest"))

	output := buf.String()
	if !strings.Contains(output, `"suture.name":"ingest"`) {
		t.Errorf("expected group-prefixed key in output: %s", output)
	}
}

func TestSlogHandler_WithGroup_Empty(t *testing.T) {
	t.Parallel()

	handler := NewSlogHandler()
	same := handler.WithGroup("")

	if same != slog.Handler(handler) {
		t.Error("WithGroup(\"\") should return the same handler")
	}
}

func TestAddAttr_AllTypes(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	logger := zerolog.New(&buf)
	handler := NewSlogHandlerWithLogger(logger)

	record := slog.NewRecord(time.Now(), slog.LevelInfo, "all types", 0)
	record.AddAttrs(
		slog.String("str", "value"),
		slog.Int64("int64", 42),
		slog.Uint64("uint64", 7),
		slog.Float64("float64", 3.14),
		slog.Bool("bool", true),
		slog.Duration("dur", 5*time.Second),
		slog.Any("any", []string{"a", "b"}),
	)

	if err := handler.Handle(context.Background(), record); err != nil {
		t.Fatalf("Handle() error = %v", err)
	}

	output := buf.String()
	wants := []string{
		`"str":"value"`,
		`"int64":42`,
		`"uint64":7`,
		`"float64":3.14`,
		`"bool":true`,
	}
	for _, want := range wants {
		if !strings.Contains(output, want) {
			t.Errorf("expected %s in output: %s", want, output)
		}
	}
}

func TestAddAttr_Group(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	logger := zerolog.New(&buf)
	handler := NewSlogHandlerWithLogger(logger)

	record := slog.NewRecord(time.Now(), slog.LevelInfo, "grouped", 0)
	record.AddAttrs(
		slog.Group("upstream",
			slog.String("host", "frigate"),
			slog.Int("port", 8971),
		),
	)

	if err := handler.Handle(context.Background(), record); err != nil {
		t.Fatalf("Handle() error = %v", err)
	}

	output := buf.String()
	if !strings.Contains(output, `"upstream.host":"frigate"`) {
		t.Errorf("expected flattened group key in output: %s", output)
	}
	if !strings.Contains(output, `"upstream.port":8971`) {
		t.Errorf("expected flattened group key in output: %s", output)
	}
}

func TestSlogToZerologLevel(t *testing.T) {
	t.Parallel()

	tests := []struct {
		slogLevel slog.Level
		want      zerolog.Level
	}{
		{slog.LevelDebug - 4, zerolog.TraceLevel},
		{slog.LevelDebug, zerolog.DebugLevel},
		{slog.LevelInfo, zerolog.InfoLevel},
		{slog.LevelWarn, zerolog.WarnLevel},
		{slog.LevelError, zerolog.ErrorLevel},
		{slog.LevelError + 4, zerolog.ErrorLevel},
	}

	for _, tt := range tests {
		got := slogToZerologLevel(tt.slogLevel)
		if got != tt.want {
			t.Errorf("slogToZerologLevel(%v) = %v, want %v", tt.slogLevel, got, tt.want)
		}
	}
}

func TestNewSlogLogger(t *testing.T) {
	var buf bytes.Buffer
	SetLogger(zerolog.New(&buf))

	slogger := NewSlogLogger()
	slogger.Info("bridge starting")

	if !strings.Contains(buf.String(), "bridge starting") {
		t.Errorf("expected message in output: %s", buf.String())
	}
}

func TestNewSlogLoggerWithLevel(t *testing.T) {
	var buf bytes.Buffer
	SetLogger(zerolog.New(&buf))

	slogger := NewSlogLoggerWithLevel("warn")

	slogger.Info("suppressed")
	if strings.Contains(buf.String(), "suppressed") {
		t.Errorf("info should be suppressed at warn level: %s", buf.String())
	}

	slogger.Warn("emitted")
	if !strings.Contains(buf.String(), "emitted") {
		t.Errorf("warn should be emitted at warn level: %s", buf.String())
	}
}
