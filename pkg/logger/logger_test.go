package logger

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNew_JSONWithAttrs(t *testing.T) {
	var buf bytes.Buffer
	l := New(Options{
		Output: &buf,
		Level:  "info",
		Format: FormatJSON,
		Attrs:  []slog.Attr{slog.String("app", "ranking")},
	})

	l.Debug("hidden")
	l.Info("daily cycle completed", "players", 12)

	var record map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &record))
	assert.Equal(t, "daily cycle completed", record["msg"])
	assert.Equal(t, "ranking", record["app"])
	assert.EqualValues(t, 12, record["players"])
}

func TestNew_DebugOverridesLevel(t *testing.T) {
	var buf bytes.Buffer
	l := New(Options{Output: &buf, Level: "error", Debug: true, Format: FormatText})

	l.Debug("visible")
	assert.Contains(t, buf.String(), "visible")
}

func TestParseLevel(t *testing.T) {
	assert.Equal(t, slog.LevelDebug, ParseLevel("debug"))
	assert.Equal(t, slog.LevelWarn, ParseLevel("WARNING"))
	assert.Equal(t, slog.LevelError, ParseLevel(" error "))
	assert.Equal(t, slog.LevelInfo, ParseLevel("loud"))
}

func TestParseFormat(t *testing.T) {
	assert.Equal(t, FormatJSON, ParseFormat("", true))
	assert.Equal(t, FormatText, ParseFormat("", false))
	assert.Equal(t, FormatText, ParseFormat("TEXT", true))
	assert.Equal(t, FormatJSON, ParseFormat("json", false))
}

func TestContextRoundTrip(t *testing.T) {
	var buf bytes.Buffer
	l := New(Options{Output: &buf, Format: FormatText})

	ctx := WithContext(context.Background(), l)
	assert.Same(t, l, FromContext(ctx))
	assert.Same(t, slog.Default(), FromContext(context.Background()))

	WithRequestID(FromContext(ctx), "req-1").Info("hello")
	assert.Contains(t, buf.String(), "request_id=req-1")
}
