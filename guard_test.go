package filtercache

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func markerValue(t *testing.T, f *fixture) (string, bool) {
	t.Helper()
	b, ok, err := f.mem.Get(context.Background(), f.src.Keyspace().Marker())
	require.NoError(t, err)
	return string(b), ok
}

func TestGuardIsCurrent(t *testing.T) {
	ctx := context.Background()

	t.Run("second_call_is_hit_without_writes", func(t *testing.T) {
		f := newFixture(t, people(10), nil)
		g := f.src.Guard()

		cur, err := g.IsCurrent(ctx, "5:2000")
		require.NoError(t, err)
		assert.False(t, cur)

		f.rec.Reset()
		for i := 0; i < 2; i++ {
			cur, err = g.IsCurrent(ctx, "5:2000")
			require.NoError(t, err)
			assert.True(t, cur)
		}
		assert.Empty(t, f.rec.Writes())
	})

	t.Run("miss_resets_marker_with_ttl", func(t *testing.T) {
		f := newFixture(t, people(10), nil)
		_, err := f.src.Guard().IsCurrent(ctx, "5:2000")
		require.NoError(t, err)

		v, ok := markerValue(t, f)
		require.True(t, ok)
		assert.Equal(t, "5:2000", v)

		f.clock.Advance(DefaultMarkerTTL - time.Second)
		_, ok = markerValue(t, f)
		assert.True(t, ok)

		f.clock.Advance(time.Second)
		_, ok = markerValue(t, f)
		assert.False(t, ok, "marker must expire after its TTL")
	})

	t.Run("a_then_b_evicts_both_entries", func(t *testing.T) {
		f := newFixture(t, people(60), nil)
		a := f.populate(t, filter{month: 5, year: 1991})
		require.True(t, f.mem.Exists(a.Rows))
		require.True(t, f.mem.Exists(a.Total))

		cur, err := f.src.Guard().IsCurrent(ctx, "6:1992")
		require.NoError(t, err)
		assert.False(t, cur)

		v, _ := markerValue(t, f)
		assert.Equal(t, "6:1992", v)

		// The stale entry under the previous key is deleted as well; only deleting
		// the entry of the new key would leave it orphaned until its TTL.
		assert.False(t, f.mem.Exists(a.Rows), "previous rows must be evicted")
		assert.False(t, f.mem.Exists(a.Total), "previous total must be evicted")
		assert.Contains(t, f.hooks.Events(), "miss 5:1991->6:1992")
	})

	t.Run("miss_deletes_leftovers_under_new_key", func(t *testing.T) {
		f := newFixture(t, people(60), nil)
		e := f.src.Keyspace().Entry("7:1991")
		require.NoError(t, f.mem.Set(ctx, e.Total, []byte("99"), 0))
		require.NoError(t, f.mem.Append(ctx, e.Rows, 0, [][]byte{[]byte("junk")}, 0))

		cur, err := f.src.Guard().IsCurrent(ctx, "7:1991")
		require.NoError(t, err)
		assert.False(t, cur)
		assert.False(t, f.mem.Exists(e.Rows))
		assert.False(t, f.mem.Exists(e.Total))
	})

	t.Run("ttl_expiry_behaves_like_filter_change", func(t *testing.T) {
		f := newFixture(t, people(60), nil)
		e := f.populate(t, filter{month: 5, year: 1991})
		require.True(t, f.mem.Exists(e.Rows))

		cur, err := f.src.Guard().IsCurrent(ctx, e.Key)
		require.NoError(t, err)
		require.True(t, cur)

		f.clock.Advance(DefaultMarkerTTL + time.Second)
		cur, err = f.src.Guard().IsCurrent(ctx, e.Key)
		require.NoError(t, err)
		assert.False(t, cur)
		assert.False(t, f.mem.Exists(e.Rows))
		assert.False(t, f.mem.Exists(e.Total))

		v, ok := markerValue(t, f)
		assert.True(t, ok)
		assert.Equal(t, string(e.Key), v)
		assert.Contains(t, f.hooks.Events(), "miss ->5:1991")
	})

	t.Run("store_error_surfaces_and_writes_nothing", func(t *testing.T) {
		f := newFixture(t, people(10), nil)
		f.rec.fail("get", errStoreDown)

		_, err := f.src.Guard().IsCurrent(ctx, "5:2000")
		assert.ErrorIs(t, err, errStoreDown)
		assert.Empty(t, f.rec.Writes())
	})
}

func TestGuardEvict(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, people(10), nil)
	g := f.src.Guard()

	_, err := g.IsCurrent(ctx, "5:2000")
	require.NoError(t, err)

	require.NoError(t, g.Evict(ctx, "6:2000"))
	_, ok := markerValue(t, f)
	assert.True(t, ok, "evict must not touch a marker naming another key")

	require.NoError(t, g.Evict(ctx, "5:2000"))
	_, ok = markerValue(t, f)
	assert.False(t, ok)
}
