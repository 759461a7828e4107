package logging

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func decodeLines(t *testing.T, buf *bytes.Buffer) []LogEntry {
	t.Helper()
	var entries []LogEntry
	for _, line := range strings.Split(strings.TrimSpace(buf.String()), "\n") {
		if line == "" {
			continue
		}
		var e LogEntry
		require.NoError(t, json.Unmarshal([]byte(line), &e))
		entries = append(entries, e)
	}
	return entries
}

func TestStructuredLogger_LevelFiltering(t *testing.T) {
	var buf bytes.Buffer
	logger := NewStructuredLogger("weather-api", "1.0.0", InfoLevel)
	logger.SetOutput(&buf)

	ctx := context.Background()
	logger.Debug(ctx, "[TEST] hidden", Fields{})
	logger.Info(ctx, "[TEST] shown", Fields{"region": "UK"})

	entries := decodeLines(t, &buf)
	require.Len(t, entries, 1)
	assert.Equal(t, "INFO", entries[0].Level)
	assert.Equal(t, "weather-api", entries[0].Service)
	assert.Equal(t, "UK", entries[0].Fields["region"])
}

func TestStructuredLogger_ErrorCarriesCallerAndRequestID(t *testing.T) {
	var buf bytes.Buffer
	logger := NewStructuredLogger("weather-api", "1.0.0", DebugLevel)
	logger.SetOutput(&buf)

	ctx := WithRequestID(context.Background(), "req-123")
	logger.Error(ctx, "[TEST_ERROR] failed", Fields{}, errors.New("boom"))

	entries := decodeLines(t, &buf)
	require.Len(t, entries, 1)
	assert.Equal(t, "ERROR", entries[0].Level)
	assert.Equal(t, "boom", entries[0].Error)
	assert.Equal(t, "req-123", entries[0].RequestID)
	assert.NotEmpty(t, entries[0].File)
}

func TestContextLogger_MergesFields(t *testing.T) {
	var buf bytes.Buffer
	logger := NewStructuredLogger("weather-ingester", "1.0.0", InfoLevel)
	logger.SetOutput(&buf)

	scoped := logger.WithFields(Fields{"region": "UK", "parameter": "Tmax"})
	scoped.Info(context.Background(), "[TEST] scoped", Fields{"parameter": "Tmin"})

	entries := decodeLines(t, &buf)
	require.Len(t, entries, 1)
	assert.Equal(t, "UK", entries[0].Fields["region"])
	assert.Equal(t, "Tmin", entries[0].Fields["parameter"])
}

func TestParseLevel(t *testing.T) {
	assert.Equal(t, DebugLevel, ParseLevel("debug"))
	assert.Equal(t, WarnLevel, ParseLevel("WARNING"))
	assert.Equal(t, ErrorLevel, ParseLevel("error"))
	assert.Equal(t, InfoLevel, ParseLevel(""))
	assert.Equal(t, InfoLevel, ParseLevel("verbose"))
}

func TestRequestID_Missing(t *testing.T) {
	assert.Empty(t, RequestID(context.Background()))
}

func TestContextLogger_ErrorReportsCallerFile(t *testing.T) {
	var buf bytes.Buffer
	logger := NewStructuredLogger("weather-api", "1.0.0", InfoLevel)
	logger.SetOutput(&buf)

	logger.WithFields(Fields{"region": "UK"}).
		WithFields(Fields{"parameter": "Tmax"}).
		Error(context.Background(), "[TEST_ERROR] scoped failure", nil, errors.New("boom"))

	entries := decodeLines(t, &buf)
	require.Len(t, entries, 1)
	assert.True(t, strings.HasSuffix(entries[0].File, "logger_test.go"), entries[0].File)
	assert.Equal(t, "UK", entries[0].Fields["region"])
	assert.Equal(t, "Tmax", entries[0].Fields["parameter"])
}

func TestStructuredLogger_RunID(t *testing.T) {
	var buf bytes.Buffer
	logger := NewStructuredLogger("weather-ingester", "1.0.0", InfoLevel)
	logger.SetOutput(&buf)

	ctx := WithRunID(WithRequestID(context.Background(), "req-1"), "run-7")
	logger.Info(ctx, "[TEST] tagged", nil)

	entries := decodeLines(t, &buf)
	require.Len(t, entries, 1)
	assert.Equal(t, "run-7", entries[0].RunID)
	assert.Equal(t, "req-1", entries[0].RequestID)
	assert.Equal(t, "run-7", RunID(ctx))
}

func TestStructuredLogger_FatalExits(t *testing.T) {
	var buf bytes.Buffer
	logger := NewStructuredLogger("weather-api", "1.0.0", InfoLevel)
	logger.SetOutput(&buf)

	var code int
	logger.exit = func(c int) { code = c }

	logger.Fatal(context.Background(), "[TEST_FATAL] stop", nil, errors.New("bad config"))

	assert.Equal(t, 1, code)
	entries := decodeLines(t, &buf)
	require.Len(t, entries, 1)
	assert.Equal(t, "FATAL", entries[0].Level)
	assert.NotEmpty(t, entries[0].StackTrace)
}

func TestStructuredLogger_UnencodableFields(t *testing.T) {
	var buf bytes.Buffer
	logger := NewStructuredLogger("weather-api", "1.0.0", InfoLevel)
	logger.SetOutput(&buf)

	logger.Info(context.Background(), "[TEST] odd field", Fields{"fn": func() {}})

	entries := decodeLines(t, &buf)
	require.Len(t, entries, 1)
	assert.Contains(t, entries[0].Fields, "unencodable_fields")
}

func TestLogLevel_String(t *testing.T) {
	assert.Equal(t, "WARN", WarnLevel.String())
	assert.Equal(t, "UNKNOWN", LogLevel(42).String())
	assert.False(t, NewNopLogger().Enabled(FatalLevel))
}
