package logger_test

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"strings"
	"testing"

	"github.com/gxo-labs/reducto/internal/logger"
	reductoerrors "github.com/gxo-labs/reducto/pkg/reducto/v1/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/trace"
)

func decodeLines(t *testing.T, buf *bytes.Buffer) []map[string]interface{} {
	t.Helper()
	var out []map[string]interface{}
	for _, line := range strings.Split(strings.TrimSpace(buf.String()), "\n") {
		if line == "" {
			continue
		}
		entry := map[string]interface{}{}
		require.NoError(t, json.Unmarshal([]byte(line), &entry), "line: %s", line)
		out = append(out, entry)
	}
	return out
}

func TestParseLevel(t *testing.T) {
	testCases := map[string]slog.Level{
		"debug":   slog.LevelDebug,
		"INFO":    slog.LevelInfo,
		"Warn":    slog.LevelWarn,
		"warning": slog.LevelWarn,
		"error":   slog.LevelError,
		"bogus":   slog.LevelInfo,
		"":        slog.LevelInfo,
	}
	for in, want := range testCases {
		assert.Equal(t, want, logger.ParseLevel(in), "level %q", in)
	}
}

func TestLogger_LevelFilteringAndUppercaseLevel(t *testing.T) {
	var buf bytes.Buffer
	log := logger.NewLogger("warn", "json", &buf)

	log.Debugf("hidden %d", 1)
	log.Infof("hidden %d", 2)
	log.Warnf("shown %d", 3)

	entries := decodeLines(t, &buf)
	require.Len(t, entries, 1)
	assert.Equal(t, "WARN", entries[0]["level"])
	assert.Equal(t, "shown 3", entries[0]["msg"])
	assert.False(t, log.IsEnabled(slog.LevelInfo))
	assert.True(t, log.IsEnabled(slog.LevelError))
}

func TestLogger_ErrorfStructuresReentrantDispatchError(t *testing.T) {
	var buf bytes.Buffer
	log := logger.NewLogger("debug", "json", &buf)

	err := reductoerrors.NewReentrantDispatchError("cart", "ADD_TO_CART", "notifying")
	log.Errorf("dispatch failed: %v", err)

	entries := decodeLines(t, &buf)
	require.Len(t, entries, 1)
	assert.Equal(t, "ReentrantDispatchError", entries[0]["error_type"])
	assert.Equal(t, "cart", entries[0]["store"])
	assert.Equal(t, "ADD_TO_CART", entries[0]["action_kind"])
	assert.Equal(t, "notifying", entries[0]["phase"])
}

func TestLogger_ErrorfStructuresPersistenceError(t *testing.T) {
	var buf bytes.Buffer
	log := logger.NewLogger("info", "json", &buf)

	err := reductoerrors.NewPersistenceError("save", "shop", errors.New("connection refused"))
	log.Errorf("snapshot: %v", err)

	entries := decodeLines(t, &buf)
	require.Len(t, entries, 1)
	assert.Equal(t, "PersistenceError", entries[0]["error_type"])
	assert.Equal(t, "save", entries[0]["op"])
	assert.Equal(t, "connection refused", entries[0]["error"])
}

func TestLogger_ErrorfPlainError(t *testing.T) {
	var buf bytes.Buffer
	log := logger.NewLogger("info", "json", &buf)

	log.Errorf("boom: %v", errors.New("plain"))

	entries := decodeLines(t, &buf)
	require.Len(t, entries, 1)
	assert.Equal(t, "plain", entries[0]["error"])
	_, hasType := entries[0]["error_type"]
	assert.False(t, hasType)
}

func TestLogger_WithAddsAttributes(t *testing.T) {
	var buf bytes.Buffer
	log := logger.NewLogger("info", "json", &buf).With("component", "Store", "store", "cart")

	log.Infof("hello")

	entries := decodeLines(t, &buf)
	require.Len(t, entries, 1)
	assert.Equal(t, "Store", entries[0]["component"])
	assert.Equal(t, "cart", entries[0]["store"])
}

func TestOtelHandler_InjectsTraceIDs(t *testing.T) {
	var buf bytes.Buffer
	log := logger.NewLogger("info", "json", &buf)

	traceID, err := trace.TraceIDFromHex("4bf92f3577b34da6a3ce929d0e0e4736")
	require.NoError(t, err)
	spanID, err := trace.SpanIDFromHex("00f067aa0ba902b7")
	require.NoError(t, err)
	sc := trace.NewSpanContext(trace.SpanContextConfig{TraceID: traceID, SpanID: spanID, TraceFlags: trace.FlagsSampled})
	ctx := trace.ContextWithSpanContext(context.Background(), sc)

	log.LogCtx(ctx, slog.LevelInfo, "traced")
	log.LogCtx(context.Background(), slog.LevelInfo, "untraced")

	entries := decodeLines(t, &buf)
	require.Len(t, entries, 2)
	assert.Equal(t, traceID.String(), entries[0]["trace_id"])
	assert.Equal(t, spanID.String(), entries[0]["span_id"])
	_, has := entries[1]["trace_id"]
	assert.False(t, has)
}
