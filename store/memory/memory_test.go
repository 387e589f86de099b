package memory

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/unkn0wn-root/filtercache/store"
	"github.com/unkn0wn-root/filtercache/store/storetest"
)

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

func TestConformance(t *testing.T) {
	storetest.Run(t, func(t *testing.T) (store.Store, func(time.Duration)) {
		clk := &fakeClock{now: time.Unix(1_700_000_000, 0)}
		s := New(Options{Now: clk.Now})
		t.Cleanup(func() { _ = s.Close(context.Background()) })
		return s, clk.Advance
	})
}

func TestCleanupDropsExpired(t *testing.T) {
	ctx := context.Background()
	clk := &fakeClock{now: time.Unix(1_700_000_000, 0)}
	s := New(Options{Now: clk.Now})
	defer s.Close(ctx)

	require.NoError(t, s.Set(ctx, "short", []byte("x"), time.Second))
	require.NoError(t, s.Set(ctx, "forever", []byte("y"), 0))
	require.NoError(t, s.Append(ctx, "seq", 0, [][]byte{[]byte("a")}, time.Second))

	clk.Advance(2 * time.Second)
	s.Cleanup()

	s.mu.Lock()
	assert.NotContains(t, s.blobs, "short")
	assert.Contains(t, s.blobs, "forever")
	assert.NotContains(t, s.seqs, "seq")
	s.mu.Unlock()
}

func TestSetReplacesSequenceAndBack(t *testing.T) {
	ctx := context.Background()
	s := New(Options{})
	defer s.Close(ctx)

	require.NoError(t, s.Append(ctx, "k", 0, [][]byte{[]byte("a")}, 0))
	require.NoError(t, s.Set(ctx, "k", []byte("v"), 0))
	got, err := s.Range(ctx, "k", 0, -1)
	require.NoError(t, err)
	assert.Empty(t, got)
	assert.True(t, s.Exists("k"))
}

func TestValuesAreCopied(t *testing.T) {
	ctx := context.Background()
	s := New(Options{})
	defer s.Close(ctx)

	v := []byte("abc")
	require.NoError(t, s.Set(ctx, "k", v, 0))
	v[0] = 'X'
	got, _, _ := s.Get(ctx, "k")
	assert.Equal(t, "abc", string(got))
	got[1] = 'Y'
	again, _, _ := s.Get(ctx, "k")
	assert.Equal(t, "abc", string(again))
}

func TestCleanupLoopStopsOnClose(t *testing.T) {
	s := New(Options{CleanupInterval: time.Millisecond})
	require.NoError(t, s.Set(context.Background(), "k", []byte("v"), time.Millisecond))
	assert.Eventually(t, func() bool { return !s.Exists("k") }, time.Second, 5*time.Millisecond)
	require.NoError(t, s.Close(context.Background()))
	require.NoError(t, s.Close(context.Background()))
}
