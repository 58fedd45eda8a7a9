package logging

import (
	"bytes"
	"encoding/json"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewJSON(t *testing.T) {
	var buf bytes.Buffer
	log := New(Options{Level: "debug", Writer: &buf})
	log.Debug().Str("component", "store").Msg("opened")

	var line map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &line))
	assert.Equal(t, "debug", line["level"])
	assert.Equal(t, "store", line["component"])
	assert.Equal(t, "opened", line["message"])
	assert.Contains(t, line, "time")
}

func TestNewLevelFallback(t *testing.T) {
	var buf bytes.Buffer
	log := New(Options{Level: "chatty", Writer: &buf})
	log.Debug().Msg("hidden")
	log.Info().Msg("shown")

	out := buf.String()
	assert.NotContains(t, out, "hidden")
	assert.Contains(t, out, "shown")
}

func TestNewConsole(t *testing.T) {
	var buf bytes.Buffer
	log := New(Options{Format: "console", Writer: &buf})
	log.Warn().Msg("slow save")

	out := buf.String()
	assert.False(t, strings.HasPrefix(out, "{"), "console output should not be JSON: %q", out)
	assert.Contains(t, out, "slow save")
}
