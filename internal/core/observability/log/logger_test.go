package log

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

func TestLoggerFields(t *testing.T) {
	core, logs := observer.New(zapcore.DebugLevel)
	l := FromZap(zap.New(core)).With(Component("sequencer"))

	l.Info("turn advanced", Session("s1"), Entity("goblin"), Int("turn_index", 2), Error(errors.New("boom")))

	entries := logs.All()
	require.Len(t, entries, 1)
	ctx := entries[0].ContextMap()
	require.Equal(t, "sequencer", ctx["component"])
	require.Equal(t, "s1", ctx["session_id"])
	require.Equal(t, "goblin", ctx["entity_id"])
	require.EqualValues(t, 2, ctx["turn_index"])
	require.Equal(t, "boom", ctx["error"])
}

func TestLoggerLevel(t *testing.T) {
	core, logs := observer.New(zapcore.DebugLevel)
	l := FromZap(zap.New(core))
	l.SetLevel(LevelWarn)
	require.Equal(t, LevelWarn, l.GetLevel())

	l.Info("dropped")
	l.Warn("kept")
	l.Log(LevelSilent, "never")
	require.Equal(t, 1, logs.Len())
}

func TestWithContext(t *testing.T) {
	core, logs := observer.New(zapcore.DebugLevel)
	l := FromZap(zap.New(core))

	l.WithContext(ContextWithSession(context.Background(), "abc")).Info("hello")
	l.WithContext(context.Background()).Info("bare")

	entries := logs.All()
	require.Equal(t, "abc", entries[0].ContextMap()["session_id"])
	_, ok := entries[1].ContextMap()["session_id"]
	require.False(t, ok)
}

func TestParseLevel(t *testing.T) {
	require.Equal(t, LevelDebug, ParseLevel("debug"))
	require.Equal(t, LevelError, ParseLevel("error"))
	require.Equal(t, LevelInfo, ParseLevel("whatever"))
	require.Equal(t, LevelSilent, ParseLevel("off"))
}
