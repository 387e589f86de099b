package zap

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"github.com/unkn0wn-root/filtercache"
)

func TestLevelsAndFields(t *testing.T) {
	core, logs := observer.New(zapcore.DebugLevel)
	l := Logger{L: zap.New(core)}

	l.Debug("live page", filtercache.Fields{"page": 2, "took": 3 * time.Millisecond})
	l.Warn("populate rejected", filtercache.Fields{"key": "5:2000", "err": errors.New("queue full")})
	l.Info("ready", nil)
	l.Error("populate failed", filtercache.Fields{"attempts": 3})

	entries := logs.AllUntimed()
	require.Len(t, entries, 4)
	assert.Equal(t, zapcore.DebugLevel, entries[0].Level)
	assert.Equal(t, "live page", entries[0].Message)
	ctx := entries[0].ContextMap()
	assert.Equal(t, int64(2), ctx["page"])
	assert.Equal(t, "3ms", ctx["took"].(time.Duration).String())

	assert.Equal(t, zapcore.WarnLevel, entries[1].Level)
	assert.Equal(t, "queue full", entries[1].ContextMap()["err"])
	assert.Empty(t, entries[2].Context)
	assert.Equal(t, zapcore.ErrorLevel, entries[3].Level)
}

func TestFieldOrderIsStable(t *testing.T) {
	got := fields(filtercache.Fields{"b": 1, "a": 2, "c": 3})
	require.Len(t, got, 3)
	assert.Equal(t, "a", got[0].Key)
	assert.Equal(t, "b", got[1].Key)
	assert.Equal(t, "c", got[2].Key)
}

func TestNewRejectsBadLevel(t *testing.T) {
	_, _, err := New("loud")
	assert.Error(t, err)

	l, base, err := New("warn")
	require.NoError(t, err)
	defer base.Sync()
	assert.False(t, l.L.Core().Enabled(zapcore.InfoLevel))
	assert.True(t, l.L.Core().Enabled(zapcore.WarnLevel))
}
