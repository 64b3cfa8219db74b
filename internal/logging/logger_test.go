package logging

import (
	"bytes"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseLevel(t *testing.T) {
	level, err := ParseLevel("debug")
	require.NoError(t, err)
	assert.Equal(t, slog.LevelDebug, level)

	level, err = ParseLevel("WARN")
	require.NoError(t, err)
	assert.Equal(t, slog.LevelWarn, level)

	_, err = ParseLevel("loud")
	assert.Error(t, err)
}

func TestNewWithFormat(t *testing.T) {
	for _, format := range []string{"", FormatText, FormatJSON, FormatPretty, "Pretty"} {
		logger, err := NewWithFormat(format, slog.LevelInfo)
		require.NoError(t, err, format)
		assert.NotNil(t, logger)
	}

	_, err := NewWithFormat("xml", slog.LevelInfo)
	assert.ErrorContains(t, err, "unknown log format")
}

func TestPrettyHandler(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(newPrettyHandler(&buf, slog.LevelInfo))

	logger.Debug("hidden")
	logger.Info("event processed", "bot_id", "bot1")

	out := buf.String()
	assert.NotContains(t, out, "hidden")
	assert.Contains(t, out, "event processed")
	assert.Contains(t, out, "bot_id=bot1")
}
