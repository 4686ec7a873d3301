package debug_test

import (
	"bytes"
	"encoding/json"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Amr-Mustafa/deutsch-spectrum/pkg/debug"
)

func TestParseLevel(t *testing.T) {
	tests := []struct {
		in   string
		want zerolog.Level
	}{
		{"debug", zerolog.DebugLevel},
		{"INFO", zerolog.InfoLevel},
		{" warn ", zerolog.WarnLevel},
		{"error", zerolog.ErrorLevel},
		{"nonsense", zerolog.InfoLevel},
		{"", zerolog.InfoLevel},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, debug.ParseLevel(tt.in), "input %q", tt.in)
	}
}

func TestNewLoggerJSON(t *testing.T) {
	var buf bytes.Buffer
	logger := debug.NewLogger(&buf, "info", false)

	logger.Debug().Msg("filtered out")
	logger.Info().Str("word", "aufstehen").Msg("kept")

	var entry map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry), "output: %s", buf.String())
	assert.Equal(t, "kept", entry["message"])
	assert.Equal(t, "aufstehen", entry["word"])
	assert.Equal(t, "info", entry["level"])
	assert.Contains(t, entry, "caller")
	assert.Contains(t, entry, "time")
}

func TestNewLoggerConsole(t *testing.T) {
	var buf bytes.Buffer
	logger := debug.NewLogger(&buf, "debug", true)

	logger.Info().Msg("console line")
	assert.Contains(t, buf.String(), "console line")
	assert.Contains(t, buf.String(), "INFO")
}

func TestShortFile(t *testing.T) {
	assert.Equal(t, "tooltip.go", debug.ShortFile("pkg/tooltip/tooltip.go"))
	assert.Equal(t, "main.go", debug.ShortFile("main.go"))
}
