package logger

import (
	"bytes"
	"context"
	"errors"
	"testing"

	"github.com/goccy/go-json"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestContextFieldsAreCarried(t *testing.T) {
	var buf bytes.Buffer
	l := New(Options{ServiceName: "medsync", Output: &buf})

	ctx := l.WithField(context.Background(), "session_id", "abc")
	ctx = l.WithFields(ctx, map[string]any{"role": "doctor"})
	l.Error(ctx, "login.failed", errors.New("boom"))

	var entry map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
	assert.Equal(t, "medsync", entry["service"])
	assert.Equal(t, "abc", entry["session_id"])
	assert.Equal(t, "doctor", entry["role"])
	assert.Equal(t, "boom", entry["error"])
	assert.Equal(t, "login.failed", entry["message"])
}

func TestLevelFiltering(t *testing.T) {
	var buf bytes.Buffer
	l := New(Options{Level: "warn", Output: &buf})
	l.Info(context.Background(), "hidden")
	assert.Zero(t, buf.Len())
}

func TestDefaultLevelIsInfo(t *testing.T) {
	var buf bytes.Buffer
	l := New(Options{Output: &buf})

	l.Debug(context.Background(), "hidden")
	assert.Zero(t, buf.Len())

	l.Info(context.Background(), "shown")
	var entry map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
	assert.Equal(t, "info", entry["level"])
}

func TestParseLevel(t *testing.T) {
	assert.Equal(t, zerolog.DebugLevel, ParseLevel(" DEBUG "))
	assert.Equal(t, zerolog.InfoLevel, ParseLevel(""))
	assert.Equal(t, zerolog.InfoLevel, ParseLevel("loud"))
}
