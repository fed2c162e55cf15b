package logger

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseLevel(t *testing.T) {
	assert.Equal(t, slog.LevelDebug, ParseLevel("debug"))
	assert.Equal(t, slog.LevelWarn, ParseLevel(" WARNING "))
	assert.Equal(t, slog.LevelError, ParseLevel("error"))
	assert.Equal(t, slog.LevelInfo, ParseLevel("nonsense"))
}

func TestParseFormat(t *testing.T) {
	assert.Equal(t, FormatJSON, ParseFormat("JSON"))
	assert.Equal(t, FormatText, ParseFormat("text"))
	assert.Equal(t, FormatText, ParseFormat(""))
}

func TestNew_JSON(t *testing.T) {
	var buf bytes.Buffer
	log := New(Options{
		Level:  slog.LevelInfo,
		Format: FormatJSON,
		Output: &buf,
		Attrs:  []slog.Attr{slog.String("service", "gradebook")},
	})

	log.Debug("hidden")
	log.Info("saved", StudentID(7), Err(errors.New("x")))

	var entry map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
	assert.Equal(t, "saved", entry["msg"])
	assert.Equal(t, "gradebook", entry["service"])
	assert.Equal(t, float64(7), entry["student_id"])
	assert.Equal(t, "x", entry["error"])
}

func TestContextRoundTrip(t *testing.T) {
	l := Discard()
	ctx := WithContext(context.Background(), l)

	assert.Same(t, l, FromContext(ctx))
	assert.Same(t, slog.Default(), FromContext(context.Background()))
}
