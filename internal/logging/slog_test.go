package logging

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseLevel(t *testing.T) {
	assert.Equal(t, slog.LevelDebug, ParseLevel("debug"))
	assert.Equal(t, slog.LevelWarn, ParseLevel("WARN"))
	assert.Equal(t, slog.LevelError, ParseLevel("error"))
	assert.Equal(t, slog.LevelInfo, ParseLevel("nonsense"))
}

func TestSetup_ConsoleAndFile(t *testing.T) {
	var console, file bytes.Buffer
	m := NewSlogManager()
	m.Setup("info", Sinks{Console: &console, File: &file})
	m.Logger().Info("hello", "gear", 3)

	assert.Contains(t, console.String(), "hello")
	assert.Contains(t, console.String(), "gear=3")

	lines := strings.Split(strings.TrimSpace(file.String()), "\n")
	require.Len(t, lines, 2, "init line plus ours")
	var entry map[string]any
	require.NoError(t, json.Unmarshal([]byte(lines[1]), &entry))
	assert.Equal(t, "hello", entry["msg"])
	assert.Equal(t, float64(3), entry["gear"])
}

func TestSetup_InfoLevel_FiltersDebug(t *testing.T) {
	var buf bytes.Buffer
	m := NewSlogManager()
	m.Setup("info", Sinks{Console: &buf})

	m.Logger().Debug("should be filtered")
	m.Logger().Info("should appear")

	assert.NotContains(t, buf.String(), "should be filtered")
	assert.Contains(t, buf.String(), "should appear")
}

func TestSetup_ContextProvider(t *testing.T) {
	var buf bytes.Buffer
	m := NewSlogManager()
	m.Setup("debug", Sinks{Console: &buf, Context: SessionAttrs})

	ctx := WithSession(context.Background(), "hill_climb")
	m.Logger().InfoContext(ctx, "tick")
	m.Logger().Info("untagged")

	out := buf.String()
	assert.Contains(t, out, "session=hill_climb")
	assert.Equal(t, 1, strings.Count(out, "session="))
}

func TestLogger_DefaultBeforeSetup(t *testing.T) {
	m := NewSlogManager()
	assert.Equal(t, slog.Default(), m.Logger())
	m.WriteLog("fn", "ignored", "INFO")
	assert.NoError(t, m.Flush(context.Background()))
	assert.NoError(t, m.Close())
}

func TestWriteLog_Levels(t *testing.T) {
	var buf bytes.Buffer
	m := NewSlogManager()
	m.Setup("debug", Sinks{Console: &buf})

	m.WriteLog("dumpLoop", "dumped", "DEBUG")
	m.WriteLog("dumpLoop", "failed", "ERROR")

	out := buf.String()
	assert.Contains(t, out, "level=DEBUG msg=dumped function=dumpLoop")
	assert.Contains(t, out, "level=ERROR msg=failed function=dumpLoop")
}

type failingHandler struct{ slog.Handler }

func (failingHandler) Enabled(context.Context, slog.Level) bool { return true }
func (failingHandler) Handle(context.Context, slog.Record) error  { return errors.New("sink down") }

func TestMultiHandler_ContinuesPastFailure(t *testing.T) {
	var buf bytes.Buffer
	h := NewMultiHandler(failingHandler{}, nil, slog.NewTextHandler(&buf, nil))

	err := slog.New(h).Handler().Handle(context.Background(), slog.NewRecord(
		timeZero, slog.LevelInfo, "still delivered", 0))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "sink down")
	assert.Contains(t, buf.String(), "still delivered")
}

func TestMultiHandler_EnabledIfAny(t *testing.T) {
	debug := slog.NewTextHandler(&bytes.Buffer{}, &slog.HandlerOptions{Level: slog.LevelDebug})
	warn := slog.NewTextHandler(&bytes.Buffer{}, &slog.HandlerOptions{Level: slog.LevelWarn})

	assert.True(t, NewMultiHandler(warn, debug).Enabled(context.Background(), slog.LevelDebug))
	assert.False(t, NewMultiHandler(warn).Enabled(context.Background(), slog.LevelInfo))
}

func TestMultiHandler_WithGroup(t *testing.T) {
	var buf bytes.Buffer
	h := NewMultiHandler(slog.NewTextHandler(&buf, nil))
	slog.New(h.WithGroup("track").WithAttrs([]slog.Attr{slog.String("side", "left")})).Info("x")
	assert.Contains(t, buf.String(), "track.side=left")
}
