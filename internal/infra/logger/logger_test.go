package logger

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

func TestNew(t *testing.T) {
	t.Run("creates with default config", func(t *testing.T) {
		l, err := New(nil)
		require.NoError(t, err)
		assert.NotNil(t, l)
	})

	t.Run("json format", func(t *testing.T) {
		buf := &bytes.Buffer{}
		l, err := New(&Config{Level: "info", Format: "json", Writer: buf})
		require.NoError(t, err)

		l.Info("task started", zap.String("task_id", "gen-1"))
		require.NoError(t, l.Sync())

		var entry map[string]any
		require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
		assert.Equal(t, "task started", entry["msg"])
		assert.Equal(t, "gen-1", entry["task_id"])
		assert.Contains(t, entry, "timestamp")
	})

	t.Run("console format", func(t *testing.T) {
		buf := &bytes.Buffer{}
		l, err := New(&Config{Level: "info", Format: "console", Writer: buf})
		require.NoError(t, err)

		l.Info("test message")
		output := buf.String()
		assert.Contains(t, output, "test message")
		assert.False(t, strings.HasPrefix(output, "{"))
	})

	t.Run("level filters", func(t *testing.T) {
		buf := &bytes.Buffer{}
		l, err := New(&Config{Level: "warn", Writer: buf})
		require.NoError(t, err)

		l.Info("hidden")
		assert.Empty(t, buf.String())
		l.Warn("shown")
		assert.Contains(t, buf.String(), "shown")
	})

	t.Run("file output", func(t *testing.T) {
		file := filepath.Join(t.TempDir(), "nested", "app.log")
		l, err := New(&Config{Output: "file", File: file, MaxSize: 1})
		require.NoError(t, err)

		l.Info("to file")
		require.NoError(t, l.Sync())

		data, err := os.ReadFile(file)
		require.NoError(t, err)
		assert.Contains(t, string(data), "to file")
	})
}

func TestParseLevel(t *testing.T) {
	tests := []struct {
		in   string
		want zapcore.Level
	}{
		{"debug", zapcore.DebugLevel},
		{"INFO", zapcore.InfoLevel},
		{"warning", zapcore.WarnLevel},
		{"error", zapcore.ErrorLevel},
		{"bogus", zapcore.InfoLevel},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			assert.Equal(t, tt.want, parseLevel(tt.in))
		})
	}
}
