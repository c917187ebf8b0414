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

func decodeLines(t *testing.T, buf *bytes.Buffer) []map[string]interface{} {
	t.Helper()

	var entries []map[string]interface{}
	for _, line := range strings.Split(strings.TrimSpace(buf.String()), "\n") {
		if line == "" {
			continue
		}
		var entry map[string]interface{}
		require.NoError(t, json.Unmarshal([]byte(line), &entry))
		entries = append(entries, entry)
	}
	return entries
}

func TestStructuredLogger_Levels(t *testing.T) {
	var buf bytes.Buffer
	logger := NewStructuredLogger("energy-api", "1.2.3", InfoLevel)
	logger.SetOutput(&buf)

	ctx := WithRequestID(context.Background(), "req-42")
	logger.Debug(ctx, "[DEBUG_EVENT] hidden", Fields{})
	logger.Info(ctx, "[INFO_EVENT] visible", Fields{"device_id": "123"})
	logger.Error(ctx, "[ERROR_EVENT] failed", Fields{}, errors.New("boom"))

	entries := decodeLines(t, &buf)
	require.Len(t, entries, 2)

	info := entries[0]
	assert.Equal(t, "info", info["level"])
	assert.Equal(t, "[INFO_EVENT] visible", info["message"])
	assert.Equal(t, "energy-api", info["service"])
	assert.Equal(t, "1.2.3", info["version"])
	assert.Equal(t, "req-42", info["request_id"])
	assert.Equal(t, map[string]interface{}{"device_id": "123"}, info["fields"])

	failure := entries[1]
	assert.Equal(t, "error", failure["level"])
	assert.Equal(t, "boom", failure["error"])
	assert.Contains(t, failure["file"], "logger_test.go")
}

func TestStructuredLogger_SetLevel(t *testing.T) {
	var buf bytes.Buffer
	logger := NewStructuredLogger("svc", "v", ErrorLevel)
	logger.SetOutput(&buf)

	logger.Warn(context.Background(), "dropped", Fields{})
	assert.Empty(t, buf.String())

	logger.SetLevel(DebugLevel)
	logger.Debug(context.Background(), "kept", Fields{})
	assert.Len(t, decodeLines(t, &buf), 1)
}

func TestContextLogger_MergeFields(t *testing.T) {
	var buf bytes.Buffer
	logger := NewStructuredLogger("svc", "v", DebugLevel)
	logger.SetOutput(&buf)

	scoped := logger.WithFields(Fields{"component": "extractor", "kind": "base"})
	scoped.Info(context.Background(), "merged", Fields{"kind": "override"})

	entries := decodeLines(t, &buf)
	require.Len(t, entries, 1)
	assert.Equal(t, map[string]interface{}{"component": "extractor", "kind": "override"}, entries[0]["fields"])
}

func TestContextLogger_ErrorReportsCaller(t *testing.T) {
	var buf bytes.Buffer
	logger := NewStructuredLogger("svc", "v", DebugLevel)
	logger.SetOutput(&buf)

	logger.WithFields(Fields{"path": "/chat"}).Error(context.Background(), "failed", Fields{}, errors.New("boom"))

	entries := decodeLines(t, &buf)
	require.Len(t, entries, 1)
	assert.Contains(t, entries[0]["file"], "logger_test.go")
	assert.Contains(t, entries[0]["function"], "TestContextLogger_ErrorReportsCaller")
	assert.Equal(t, map[string]interface{}{"path": "/chat"}, entries[0]["fields"])
}

func TestParseLevel(t *testing.T) {
	assert.Equal(t, DebugLevel, ParseLevel("DEBUG"))
	assert.Equal(t, WarnLevel, ParseLevel("warning"))
	assert.Equal(t, ErrorLevel, ParseLevel("error"))
	assert.Equal(t, InfoLevel, ParseLevel(""))
	assert.Equal(t, "WARN", WarnLevel.String())
	assert.Equal(t, "", RequestIDFromContext(context.Background()))
}
