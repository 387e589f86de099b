package sloghooks

import (
	"bytes"
	"encoding/json"
	"errors"
	"log/slog"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func records(t *testing.T, buf *bytes.Buffer) []map[string]any {
	t.Helper()
	var out []map[string]any
	for _, line := range strings.Split(strings.TrimSpace(buf.String()), "\n") {
		if line == "" {
			continue
		}
		var m map[string]any
		require.NoError(t, json.Unmarshal([]byte(line), &m))
		out = append(out, m)
	}
	return out
}

func newLogger(buf *bytes.Buffer) *slog.Logger {
	return slog.New(slog.NewJSONHandler(buf, &slog.HandlerOptions{Level: slog.LevelDebug}))
}

func TestRedactsKeysByDefault(t *testing.T) {
	var buf bytes.Buffer
	h := New(newLogger(&buf), Options{})

	h.GuardMiss("", "5:2000")
	h.PopulateFailed("5:2000", 3, errors.New("boom"))

	recs := records(t, &buf)
	require.Len(t, recs, 2)
	assert.Equal(t, "filtercache.guard_miss", recs[0]["msg"])
	assert.Equal(t, "", recs[0]["prev"])
	assert.Len(t, recs[0]["next"], 16)
	assert.NotContains(t, buf.String(), "5:2000")

	assert.Equal(t, "ERROR", recs[1]["level"])
	assert.Equal(t, float64(3), recs[1]["attempts"])
	assert.Equal(t, "boom", recs[1]["err"])
}

func TestPlainRedactor(t *testing.T) {
	var buf bytes.Buffer
	h := New(newLogger(&buf), Options{Redact: Plain})
	h.PopulateDone("5:2000", 40, time.Millisecond)
	h.Fallback("5:2000", "incomplete")

	recs := records(t, &buf)
	require.Len(t, recs, 2)
	assert.Equal(t, "5:2000", recs[0]["key"])
	assert.Equal(t, float64(40), recs[0]["rows"])
	assert.Equal(t, "incomplete", recs[1]["reason"])
}

func TestSampling(t *testing.T) {
	var buf bytes.Buffer
	h := New(newLogger(&buf), Options{HitEvery: 5})
	for i := 0; i < 20; i++ {
		h.GuardHit("k")
	}
	assert.Len(t, records(t, &buf), 4)
}

func TestNilLoggerIsNoop(t *testing.T) {
	h := New(nil, Options{})
	assert.NotPanics(t, func() {
		h.GuardHit("k")
		h.GuardMiss("a", "b")
		h.PopulateRejected("k", errors.New("full"))
		h.CorruptEntry("k", 3)
	})
}
