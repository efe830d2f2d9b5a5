package logger

import (
	"bytes"
	"encoding/json"
	"errors"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wonny/stratplan/pkg/config"
)

func decodeLine(t *testing.T, buf *bytes.Buffer) map[string]interface{} {
	t.Helper()
	var entry map[string]interface{}
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry), "log output: %s", buf.String())
	return entry
}

func TestNewWithWriter_SetsLevel(t *testing.T) {
	tests := []struct {
		level string
		want  zerolog.Level
	}{
		{"debug", zerolog.DebugLevel},
		{"info", zerolog.InfoLevel},
		{"warn", zerolog.WarnLevel},
		{"error", zerolog.ErrorLevel},
	}

	for _, tt := range tests {
		t.Run(tt.level, func(t *testing.T) {
			var buf bytes.Buffer
			log := NewWithWriter(&config.Config{Env: "development", LogLevel: tt.level}, &buf)
			require.NotNil(t, log)
			assert.Equal(t, tt.want, zerolog.GlobalLevel())
		})
	}
}

func TestParseLogLevel(t *testing.T) {
	tests := []struct {
		input string
		want  zerolog.Level
	}{
		{"debug", zerolog.DebugLevel},
		{"DEBUG", zerolog.DebugLevel},
		{"info", zerolog.InfoLevel},
		{"warning", zerolog.WarnLevel},
		{"error", zerolog.ErrorLevel},
		{"fatal", zerolog.FatalLevel},
		{" Warn ", zerolog.WarnLevel},
		{"invalid", zerolog.InfoLevel},
		{"", zerolog.InfoLevel},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			assert.Equal(t, tt.want, parseLogLevel(tt.input))
		})
	}
}

func TestStaticFields(t *testing.T) {
	var buf bytes.Buffer
	log := NewWithWriter(&config.Config{Env: "staging", LogLevel: "debug"}, &buf)

	log.Info("booted")

	entry := decodeLine(t, &buf)
	assert.Equal(t, "stratplan", entry["service"])
	assert.Equal(t, "staging", entry["env"])
	assert.Equal(t, "booted", entry["message"])
	assert.Equal(t, "info", entry["level"])
}

func TestComponentAndFields(t *testing.T) {
	var buf bytes.Buffer
	log := NewWithWriter(&config.Config{Env: "development", LogLevel: "debug"}, &buf)

	log.Component("review.service").
		WithFields(map[string]interface{}{
			"analysis_id": "a-17",
			"activities":  4,
		}).
		Warn("mismatch detected")

	entry := decodeLine(t, &buf)
	assert.Equal(t, "review.service", entry["component"])
	assert.Equal(t, "a-17", entry["analysis_id"])
	assert.Equal(t, float64(4), entry["activities"])
	assert.Equal(t, "warn", entry["level"])
}

func TestWithError(t *testing.T) {
	var buf bytes.Buffer
	log := NewWithWriter(&config.Config{Env: "development", LogLevel: "debug"}, &buf)

	log.WithError(errors.New("progress fetch timed out")).Error("falling back")

	entry := decodeLine(t, &buf)
	assert.Equal(t, "progress fetch timed out", entry["error"])
	assert.Equal(t, "falling back", entry["message"])
}

func TestAnalysisField(t *testing.T) {
	var buf bytes.Buffer
	log := NewWithWriter(&config.Config{Env: "development", LogLevel: "debug"}, &buf)

	log.Component("progress.service").Analysis("an-9").Info("committed")
	entry := decodeLine(t, &buf)
	assert.Equal(t, "an-9", entry["analysis_id"])
	assert.Equal(t, "progress.service", entry["component"])
}

func TestNop(t *testing.T) {
	// Nop must be safe to use everywhere
	log := Nop()
	log.WithField("k", "v").Component("x").Error("discarded")
}
