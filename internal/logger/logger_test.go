package logger_test

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rezonia/fatoora/internal/logger"
)

func TestNew_JSON(t *testing.T) {
	var buf bytes.Buffer
	l := logger.New(&buf, "json", "")
	l.Info().Str("hash", "abc").Msg("document signed")

	var entry map[string]interface{}
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
	assert.Equal(t, "document signed", entry["message"])
	assert.Equal(t, "abc", entry["hash"])
	assert.Equal(t, "info", entry["level"])
}

func TestNew_ConsoleFallback(t *testing.T) {
	var buf bytes.Buffer
	l := logger.New(&buf, "fancy", "")
	l.Info().Msg("hello")

	assert.Contains(t, buf.String(), "hello")
	assert.False(t, json.Valid(bytes.TrimSpace(buf.Bytes())))
}

func TestSetup(t *testing.T) {
	original := log.Logger
	level := zerolog.GlobalLevel()
	t.Cleanup(func() {
		log.Logger = original
		zerolog.SetGlobalLevel(level)
	})

	path := filepath.Join(t.TempDir(), "fatoora.log")
	require.NoError(t, logger.Setup(logger.LogConfig{Level: "warn", Format: "json", Output: path}))
	assert.Equal(t, zerolog.WarnLevel, zerolog.GlobalLevel())

	component := logger.WithComponent("signature")
	component.Info().Msg("suppressed")
	component.Warn().Msg("kept")

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.NotContains(t, string(data), "suppressed")
	assert.Contains(t, string(data), `"component":"signature"`)
	assert.Contains(t, string(data), "kept")

	assert.Error(t, logger.Setup(logger.LogConfig{Level: "loud"}))
}
