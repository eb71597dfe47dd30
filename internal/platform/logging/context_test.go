package logging

import (
	"bytes"
	"context"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNewRequestID(t *testing.T) {
	ids := make(map[string]struct{}, 100)
	for range 100 {
		id := NewRequestID()
		assert.Len(t, id, 8)
		ids[id] = struct{}{}
	}
	assert.Len(t, ids, 100)
}

func TestSessionID_Missing(t *testing.T) {
	id, ok := SessionID(context.Background())
	assert.False(t, ok)
	assert.Empty(t, id)

	_, ok = SessionID(WithSessionID(context.Background(), ""))
	assert.False(t, ok)
}

func TestContextHandler_AddsIDs(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(NewContextHandler(slog.NewTextHandler(&buf, &slog.HandlerOptions{Level: slog.LevelDebug})))

	ctx := WithSessionID(context.Background(), "sess-1")
	ctx = WithRequestID(ctx, "req12345")
	logger.InfoContext(ctx, "client joined", "channels", 8)

	output := buf.String()
	assert.Contains(t, output, "session_id=sess-1")
	assert.Contains(t, output, "request_id=req12345")
	assert.Contains(t, output, "channels=8")
}

func TestContextHandler_OmitsMissingIDs(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(NewContextHandler(slog.NewTextHandler(&buf, nil)))

	logger.InfoContext(context.Background(), "tick")

	assert.NotContains(t, buf.String(), "session_id")
	assert.NotContains(t, buf.String(), "request_id")
}

func TestContextHandler_WithAttrsAndGroup(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(NewContextHandler(slog.NewTextHandler(&buf, nil))).
		With("component", "broadcaster").
		WithGroup("dsp")

	logger.InfoContext(WithSessionID(context.Background(), "abc"), "forwarded", "op", "set_level")

	output := buf.String()
	assert.Contains(t, output, "component=broadcaster")
	assert.Contains(t, output, "session_id=abc")
	assert.Contains(t, output, "dsp.op=set_level")
}

func TestParseLevel(t *testing.T) {
	assert.Equal(t, slog.LevelDebug, ParseLevel("debug"))
	assert.Equal(t, slog.LevelWarn, ParseLevel("warn"))
	assert.Equal(t, slog.LevelError, ParseLevel("error"))
	assert.Equal(t, slog.LevelInfo, ParseLevel("verbose"))
}

func TestNew_JSONFormat(t *testing.T) {
	var buf bytes.Buffer
	logger := New(&buf, "info", "json")
	logger.Debug("hidden")
	logger.Info("shown")

	assert.NotContains(t, buf.String(), "hidden")
	assert.Contains(t, buf.String(), `"msg":"shown"`)
}
