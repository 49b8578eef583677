package logger

import (
	"bytes"
	"encoding/json"
	"strings"
	"testing"

	"candle-replay/src/models"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLogger_WritesComponentAndMessage(t *testing.T) {
	var buf bytes.Buffer
	l := NewLoggerWithWriter(&buf, "Session", "DEBUG")

	l.Info("loaded %d candles", 42)

	var entry map[string]interface{}
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
	assert.Equal(t, "info", entry["level"])
	assert.Equal(t, "Session", entry["component"])
	assert.Equal(t, "loaded 42 candles", entry["message"])
}

func TestLogger_LevelFiltering(t *testing.T) {
	var buf bytes.Buffer
	l := NewLoggerWithWriter(&buf, "Hub", "WARNING")

	l.Debug("hidden")
	l.Info("hidden too")
	l.Warning("shown")

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	require.Len(t, lines, 1)
	assert.Contains(t, lines[0], "shown")
}

func TestLogger_Named(t *testing.T) {
	var buf bytes.Buffer
	l := NewLoggerWithWriter(&buf, "App", "INFO").Named("Storage")

	l.Error("boom")
	assert.Contains(t, buf.String(), `"component":"Storage"`)
}

func TestParseLevel(t *testing.T) {
	assert.Equal(t, zerolog.DebugLevel, ParseLevel("debug"))
	assert.Equal(t, zerolog.WarnLevel, ParseLevel("WARNING"))
	assert.Equal(t, zerolog.ErrorLevel, ParseLevel("ERROR"))
	assert.Equal(t, zerolog.InfoLevel, ParseLevel(""))
	assert.Equal(t, "DEBUG", levelFromConfig(&models.MConfig{LogLevel: "DEBUG"}))
	assert.Equal(t, "INFO", levelFromConfig(nil))
}
