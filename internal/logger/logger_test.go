package logger

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNew_JSONInProduction(t *testing.T) {
	var buf bytes.Buffer
	log := New(Config{Level: slog.LevelInfo, Environment: "production", Writer: &buf})

	log.Info("labels submitted", "dataset_id", "ds-123", "inserted", 10)

	assert.Contains(t, buf.String(), `"msg":"labels submitted"`)
	assert.Contains(t, buf.String(), `"dataset_id":"ds-123"`)
	assert.Contains(t, buf.String(), `"level":"INFO"`)
}

func TestNew_PrettyInDevelopment(t *testing.T) {
	var buf bytes.Buffer
	log := New(Config{Level: slog.LevelInfo, Environment: "development", Writer: &buf})

	log.Info("page loaded", "page", 2)

	out := buf.String()
	assert.Contains(t, out, "INF")
	assert.Contains(t, out, "page loaded")
	assert.Contains(t, out, "page=2")
	assert.NotContains(t, out, `"msg"`)
}

func TestNew_ExplicitFormatWins(t *testing.T) {
	var buf bytes.Buffer
	log := New(Config{Level: slog.LevelInfo, Format: "json", Environment: "development", Writer: &buf})

	log.Info("test")

	assert.Contains(t, buf.String(), `"msg":"test"`)
}

func TestParseLevel(t *testing.T) {
	tests := map[string]slog.Level{
		"debug":   slog.LevelDebug,
		"DEBUG":   slog.LevelDebug,
		"info":    slog.LevelInfo,
		"warn":    slog.LevelWarn,
		"Warning": slog.LevelWarn,
		"error":   slog.LevelError,
		"trace":   slog.LevelInfo,
		"":        slog.LevelInfo,
	}

	for input, want := range tests {
		assert.Equal(t, want, ParseLevel(input), input)
	}
}

func TestPrettyHandler_Enabled(t *testing.T) {
	h := NewPrettyHandler(&bytes.Buffer{}, &slog.HandlerOptions{Level: slog.LevelInfo})

	assert.False(t, h.Enabled(context.Background(), slog.LevelDebug))
	assert.True(t, h.Enabled(context.Background(), slog.LevelInfo))
	assert.True(t, h.Enabled(context.Background(), slog.LevelError))
}

func TestPrettyHandler_LevelTags(t *testing.T) {
	for level, tag := range map[slog.Level]string{
		slog.LevelDebug: "DBG",
		slog.LevelInfo:  "INF",
		slog.LevelWarn:  "WRN",
		slog.LevelError: "ERR",
	} {
		var buf bytes.Buffer
		slog.New(NewPrettyHandler(&buf, &slog.HandlerOptions{Level: slog.LevelDebug})).
			Log(context.Background(), level, "x")
		assert.Contains(t, buf.String(), tag)
	}
}

func TestPrettyHandler_AttrsAndGroups(t *testing.T) {
	var buf bytes.Buffer
	base := NewPrettyHandler(&buf, nil)

	assert.Same(t, base, base.WithGroup(""))

	log := slog.New(base.WithAttrs([]slog.Attr{slog.String("component", "labeling")})).
		WithGroup("page")
	log.Info("loaded", "index", 3, "notice", "recovered from error")

	out := buf.String()
	assert.Contains(t, out, "component=labeling")
	assert.Contains(t, out, "page.index=3")
	assert.Contains(t, out, `page.notice="recovered from error"`)
}

func TestPrettyHandler_SharedWriterIsSerialized(t *testing.T) {
	var buf bytes.Buffer
	log := slog.New(NewPrettyHandler(&buf, nil))
	child := log.With("component", "batcher")

	done := make(chan struct{})
	for range 4 {
		go func() {
			defer func() { done <- struct{}{} }()
			for range 25 {
				child.Info("write")
			}
		}()
	}
	for range 4 {
		<-done
	}

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	require.Len(t, lines, 100)
	for _, line := range lines {
		assert.Contains(t, line, "component=batcher")
	}
}

func TestPrettyHandler_WithSource(t *testing.T) {
	var buf bytes.Buffer
	slog.New(NewPrettyHandler(&buf, &slog.HandlerOptions{AddSource: true})).Info("here")

	assert.Contains(t, buf.String(), "logger_test.go:")
}

func TestFormatValue(t *testing.T) {
	now := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)

	assert.Equal(t, "plain", formatValue(slog.StringValue("plain")))
	assert.Equal(t, `"two words"`, formatValue(slog.StringValue("two words")))
	assert.Equal(t, now.Format(time.RFC3339), formatValue(slog.TimeValue(now)))
	assert.Equal(t, "5s", formatValue(slog.DurationValue(5*time.Second)))
	assert.Equal(t, "42", formatValue(slog.IntValue(42)))
}

func TestLogger_WithErrorAndComponent(t *testing.T) {
	var buf bytes.Buffer
	log := New(Config{Level: slog.LevelInfo, Format: "json", Writer: &buf})

	log.WithError(errors.New("database is locked")).Warn("page load recovered")
	log.Component("watcher").Info("started")

	out := buf.String()
	assert.Contains(t, out, `"error":"database is locked"`)
	assert.Contains(t, out, `"component":"watcher"`)
}
