// Package storetest is a conformance suite every store.Store backend must pass.
package storetest

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/unkn0wn-root/filtercache/store"
)

// Factory returns a fresh empty store and a function that moves its clock forward.
type Factory func(t *testing.T) (s store.Store, advance func(time.Duration))

func Run(t *testing.T, newStore Factory) {
	ctx := context.Background()

	t.Run("get_set_del", func(t *testing.T) {
		s, _ := newStore(t)
		_, ok, err := s.Get(ctx, "k")
		require.NoError(t, err)
		assert.False(t, ok)

		require.NoError(t, s.Set(ctx, "k", []byte{0, 1, 0xff}, 0))
		v, ok, err := s.Get(ctx, "k")
		require.NoError(t, err)
		assert.True(t, ok)
		assert.Equal(t, []byte{0, 1, 0xff}, v)

		require.NoError(t, s.Del(ctx, "k", "missing"))
		_, ok, err = s.Get(ctx, "k")
		require.NoError(t, err)
		assert.False(t, ok)
		require.NoError(t, s.Del(ctx))
	})

	t.Run("set_ttl_expires", func(t *testing.T) {
		s, advance := newStore(t)
		require.NoError(t, s.Set(ctx, "k", []byte("v"), time.Minute))
		advance(59 * time.Second)
		_, ok, _ := s.Get(ctx, "k")
		assert.True(t, ok)
		advance(2 * time.Second)
		_, ok, _ = s.Get(ctx, "k")
		assert.False(t, ok)
	})

	t.Run("swap_returns_previous", func(t *testing.T) {
		s, advance := newStore(t)
		prev, ok, err := s.Swap(ctx, "m", []byte("a"), time.Minute)
		require.NoError(t, err)
		assert.False(t, ok)
		assert.Nil(t, prev)

		prev, ok, err = s.Swap(ctx, "m", []byte("b"), time.Minute)
		require.NoError(t, err)
		assert.True(t, ok)
		assert.Equal(t, "a", string(prev))

		advance(61 * time.Second)
		_, ok, err = s.Swap(ctx, "m", []byte("c"), time.Minute)
		require.NoError(t, err)
		assert.False(t, ok, "expired value is not a previous value")

		v, _, _ := s.Get(ctx, "m")
		assert.Equal(t, "c", string(v))
	})

	t.Run("append_and_range_by_rank", func(t *testing.T) {
		s, _ := newStore(t)
		require.NoError(t, s.Append(ctx, "seq", 0, [][]byte{[]byte("r0"), []byte("r1"), []byte("r2")}, 0))
		require.NoError(t, s.Append(ctx, "seq", 3, [][]byte{[]byte("r3"), []byte("r4")}, 0))

		got, err := s.Range(ctx, "seq", 1, 3)
		require.NoError(t, err)
		assert.Equal(t, [][]byte{[]byte("r1"), []byte("r2"), []byte("r3")}, got)

		got, err = s.Range(ctx, "seq", 0, -1)
		require.NoError(t, err)
		assert.Len(t, got, 5)

		got, err = s.Range(ctx, "seq", 3, 100)
		require.NoError(t, err)
		assert.Equal(t, [][]byte{[]byte("r3"), []byte("r4")}, got)

		got, err = s.Range(ctx, "seq", 10, 19)
		require.NoError(t, err)
		assert.Empty(t, got)

		got, err = s.Range(ctx, "missing", 0, 19)
		require.NoError(t, err)
		assert.Empty(t, got)
	})

	t.Run("append_orders_by_rank_not_arrival", func(t *testing.T) {
		s, _ := newStore(t)
		require.NoError(t, s.Append(ctx, "seq", 2, [][]byte{[]byte("c")}, 0))
		require.NoError(t, s.Append(ctx, "seq", 0, [][]byte{[]byte("a"), []byte("b")}, 0))
		got, err := s.Range(ctx, "seq", 0, -1)
		require.NoError(t, err)
		assert.Equal(t, [][]byte{[]byte("a"), []byte("b"), []byte("c")}, got)
	})

	t.Run("append_same_member_twice_is_noop", func(t *testing.T) {
		s, _ := newStore(t)
		batch := [][]byte{[]byte("a"), []byte("b")}
		require.NoError(t, s.Append(ctx, "seq", 0, batch, 0))
		require.NoError(t, s.Append(ctx, "seq", 0, batch, 0))
		got, err := s.Range(ctx, "seq", 0, -1)
		require.NoError(t, err)
		assert.Len(t, got, 2)
	})

	t.Run("append_ttl_expires_sequence", func(t *testing.T) {
		s, advance := newStore(t)
		require.NoError(t, s.Append(ctx, "seq", 0, [][]byte{[]byte("a")}, 10*time.Minute))
		advance(9 * time.Minute)
		got, _ := s.Range(ctx, "seq", 0, -1)
		assert.Len(t, got, 1)
		advance(2 * time.Minute)
		got, _ = s.Range(ctx, "seq", 0, -1)
		assert.Empty(t, got)
	})

	t.Run("del_removes_sequences", func(t *testing.T) {
		s, _ := newStore(t)
		require.NoError(t, s.Append(ctx, "seq", 0, [][]byte{[]byte("a")}, 0))
		require.NoError(t, s.Set(ctx, "total", []byte("1"), 0))
		require.NoError(t, s.Del(ctx, "seq", "total"))
		got, _ := s.Range(ctx, "seq", 0, -1)
		assert.Empty(t, got)
		_, ok, _ := s.Get(ctx, "total")
		assert.False(t, ok)
	})

	t.Run("empty_append_is_noop", func(t *testing.T) {
		s, _ := newStore(t)
		require.NoError(t, s.Append(ctx, "seq", 0, nil, time.Minute))
		got, err := s.Range(ctx, "seq", 0, -1)
		require.NoError(t, err)
		assert.Empty(t, got)
	})
}
