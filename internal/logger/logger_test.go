package logger

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func decode(t *testing.T, buf *bytes.Buffer) map[string]interface{} {
	t.Helper()
	var entry map[string]interface{}
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
	return entry
}

func TestNew(t *testing.T) {
	tests := []struct {
		name   string
		config *Config
	}{
		{name: "default config", config: nil},
		{name: "json config", config: &Config{Level: "debug", Format: "json", Output: io.Discard}},
		{name: "console config", config: &Config{Level: "info", Format: "console", Output: io.Discard}},
		{name: "nil output", config: &Config{Level: "warn"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.NotNil(t, New(tt.config))
		})
	}
}

func TestLogger_JSONOutput(t *testing.T) {
	buf := &bytes.Buffer{}
	l := New(&Config{Level: "info", Format: "json", Output: buf})

	l.Info("engine created")

	entry := decode(t, buf)
	assert.Equal(t, "info", entry["level"])
	assert.Equal(t, "engine created", entry["message"])
	assert.NotEmpty(t, entry["time"])
}

func TestLogger_Component(t *testing.T) {
	buf := &bytes.Buffer{}
	l := New(&Config{Level: "info", Format: "json", Output: buf})

	l.Component("csvsource").With().Str("url", "http://x/y.csv").Int("rows", 2).Logger().
		Info("csv loaded")

	entry := decode(t, buf)
	assert.Equal(t, "csvsource", entry["component"])
	assert.Equal(t, "http://x/y.csv", entry["url"])
	assert.Equal(t, float64(2), entry["rows"])
}

func TestLogger_ErrorWithFields(t *testing.T) {
	buf := &bytes.Buffer{}
	l := New(&Config{Level: "error", Format: "json", Output: buf})

	l.ErrorWith("failed to create database engine", errors.New("connection refused"), map[string]interface{}{
		"dialect": "postgres",
	})

	entry := decode(t, buf)
	assert.Equal(t, "error", entry["level"])
	assert.Equal(t, "connection refused", entry["error"])
	assert.Equal(t, "postgres", entry["dialect"])
}

func TestLogger_Context(t *testing.T) {
	buf := &bytes.Buffer{}
	l := New(&Config{Level: "info", Format: "json", Output: buf})

	ctx := l.WithContext(context.Background())
	FromContext(ctx).Info("from context")

	assert.Equal(t, "from context", decode(t, buf)["message"])
}

func TestFromContext_FallsBackToGlobal(t *testing.T) {
	prev := Global()
	defer SetGlobal(prev)

	buf := &bytes.Buffer{}
	SetGlobal(New(&Config{Level: "info", Format: "json", Output: buf}))

	FromContext(context.Background()).Info("global")
	assert.Equal(t, "global", decode(t, buf)["message"])
}

func TestFromContext_KeepsNop(t *testing.T) {
	prev := Global()
	defer SetGlobal(prev)

	buf := &bytes.Buffer{}
	SetGlobal(New(&Config{Level: "info", Format: "json", Output: buf}))

	ctx := Nop().WithContext(context.Background())
	FromContext(ctx).Info("silenced")
	FromContext(ctx).Component("csvsource").Error("silenced")

	assert.Empty(t, buf.String())
}

func TestOrGlobal(t *testing.T) {
	l := Nop()
	assert.Same(t, l, OrGlobal(l))
	assert.Same(t, Global(), OrGlobal(nil))
}

func TestLogger_Levels(t *testing.T) {
	tests := []struct {
		name     string
		level    string
		logFunc  func(*Logger)
		expected bool
	}{
		{"debug level logs debug", "debug", func(l *Logger) { l.Debug("m") }, true},
		{"info level skips debug", "info", func(l *Logger) { l.Debug("m") }, false},
		{"error level logs error", "error", func(l *Logger) { l.Error("m") }, true},
		{"error level skips info", "error", func(l *Logger) { l.Info("m") }, false},
		{"disabled skips error", "disabled", func(l *Logger) { l.Error("m") }, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			buf := &bytes.Buffer{}
			tt.logFunc(New(&Config{Level: tt.level, Format: "json", Output: buf}))

			if tt.expected {
				assert.NotEmpty(t, buf.String(), "expected log output")
			} else {
				assert.Empty(t, buf.String(), "expected no log output")
			}
		})
	}
}

func BenchmarkLogger_Info(b *testing.B) {
	l := New(&Config{Level: "info", Format: "json", Output: io.Discard})

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		l.Info("benchmark message")
	}
}
