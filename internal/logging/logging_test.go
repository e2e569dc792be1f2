// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package logging

import (
	"bytes"
	"encoding/json"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pdiddy/facility-match/pkg/types"
)

func TestNewJSON(t *testing.T) {
	var buf bytes.Buffer
	log := New(types.LogConfig{Level: "info", Format: "json"}, &buf)

	log.Info().Str("master", "mfl.csv").Msg("loaded")
	log.Debug().Msg("hidden")

	var entry map[string]any
	require.NoError(t, json.Unmarshal(bytes.TrimSpace(buf.Bytes()), &entry))
	assert.Equal(t, "info", entry["level"])
	assert.Equal(t, "mfl.csv", entry["master"])
	assert.Equal(t, "loaded", entry["message"])
	assert.NotContains(t, buf.String(), "hidden")
}

func TestNewConsole(t *testing.T) {
	var buf bytes.Buffer
	log := New(types.LogConfig{Level: "warn", Format: "console"}, &buf)
	log.Warn().Msg("threshold is low")
	assert.Contains(t, buf.String(), "threshold is low")
}

func TestParseLevel(t *testing.T) {
	t.Setenv("DEBUG", "")
	tests := []struct {
		in   string
		want zerolog.Level
	}{
		{"", zerolog.InfoLevel},
		{"debug", zerolog.DebugLevel},
		{"WARN", zerolog.WarnLevel},
		{"error", zerolog.ErrorLevel},
		{"bogus", zerolog.InfoLevel},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, parseLevel(tt.in), tt.in)
	}
}

func TestAutoFormatOnBufferIsJSON(t *testing.T) {
	var buf bytes.Buffer
	assert.False(t, useConsole("auto", &buf))
}
