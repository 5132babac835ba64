package logger

import (
	"bytes"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseLevel(t *testing.T) {
	assert.Equal(t, slog.LevelDebug, ParseLevel("debug"))
	assert.Equal(t, slog.LevelWarn, ParseLevel("WARN"))
	assert.Equal(t, slog.LevelError, ParseLevel("error"))
	assert.Equal(t, slog.LevelInfo, ParseLevel(""))
	assert.Equal(t, slog.LevelInfo, ParseLevel("verbose"))
}

func TestNew(t *testing.T) {
	t.Run("level filters records", func(t *testing.T) {
		var buf bytes.Buffer
		l := New(&buf, "warn", false)
		l.Info("hidden")
		l.Warn("shown")
		assert.NotContains(t, buf.String(), "hidden")
		assert.Contains(t, buf.String(), "shown")
	})

	t.Run("source is the base name", func(t *testing.T) {
		var buf bytes.Buffer
		l := New(&buf, "info", false)
		l.Info("hello")
		require.Contains(t, buf.String(), "source=logger_test.go:")
	})

	t.Run("json", func(t *testing.T) {
		var buf bytes.Buffer
		l := New(&buf, "info", true)
		l.Info("hello")
		assert.Contains(t, buf.String(), `"msg":"hello"`)
	})
}
