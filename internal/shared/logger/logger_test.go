package logger

import (
	"bytes"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNew(t *testing.T) {
	t.Run("creates with default config", func(t *testing.T) {
		l := New(nil)
		assert.NotNil(t, l)
		assert.NotNil(t, l.Logger)
	})

	t.Run("creates with custom config", func(t *testing.T) {
		buf := &bytes.Buffer{}
		cfg := &Config{
			Level:  "debug",
			Format: "json",
			Output: buf,
		}
		l := New(cfg)
		assert.NotNil(t, l)

		l.Info("test message")
		assert.Contains(t, buf.String(), "test message")
	})

	t.Run("creates text format logger", func(t *testing.T) {
		buf := &bytes.Buffer{}
		cfg := &Config{
			Level:  "info",
			Format: "text",
			Output: buf,
		}
		l := New(cfg)

		l.Info("test message")
		output := buf.String()
		assert.Contains(t, output, "test message")
		// Text format should not be JSON
		assert.False(t, strings.HasPrefix(output, "{"))
	})
}

func TestNewZapLogger(t *testing.T) {
	tests := []struct {
		name string
		cfg  *Config
	}{
		{"nil config", nil},
		{"json format", &Config{Level: "info", Format: "json"}},
		{"text format", &Config{Level: "debug", Format: "text"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			l, err := NewZapLogger(tt.cfg)
			require.NoError(t, err)
			assert.NotNil(t, l)
		})
	}
}

func TestLogger_Levels(t *testing.T) {
	t.Run("debug suppressed at info level", func(t *testing.T) {
		buf := &bytes.Buffer{}
		l := New(&Config{Level: "info", Format: "json", Output: buf})

		l.Debug("hidden")
		assert.Empty(t, buf.String())

		l.Info("shown")
		assert.Contains(t, buf.String(), "shown")
	})

	t.Run("unknown level defaults to info", func(t *testing.T) {
		buf := &bytes.Buffer{}
		l := New(&Config{Level: "bogus", Format: "json", Output: buf})

		l.Info("shown")
		assert.Contains(t, buf.String(), "shown")
	})
}
