package filtercache

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	goredis "github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	c "github.com/unkn0wn-root/filtercache/codec"
	redisstore "github.com/unkn0wn-root/filtercache/store/redis"
)

func TestRowSourceOverRedis(t *testing.T) {
	ctx := context.Background()
	mr := miniredis.RunT(t)
	rdb := goredis.NewClient(&goredis.Options{Addr: mr.Addr()})
	st, err := redisstore.New(redisstore.Config{Client: rdb, CloseClient: true})
	require.NoError(t, err)

	q := &fakeQuery{rows: people(90)}
	src, err := New[person](Options[person]{
		Store:         st,
		Codec:         c.MustCBOR[person](true),
		Query:         q,
		Namespace:     "people",
		PopulateBatch: 8,
	})
	require.NoError(t, err)
	defer src.Close(ctx)

	fc := filter{year: 1990}
	want := q.filtered(fc)
	require.Len(t, want, 30)

	p, err := src.Rows(ctx, fc, 1, 20)
	require.NoError(t, err)
	require.Equal(t, SourceFresh, p.Source)
	require.NoError(t, p.Population.Wait(waitCtx(t)))

	assert.Equal(t, ":1990", must(mr.Get("people:marker")))
	assert.Equal(t, "30", must(mr.Get("people:total::1990")))
	assert.Greater(t, mr.TTL("people:marker"), time.Duration(0))
	assert.Greater(t, mr.TTL("people:rows::1990"), DefaultMarkerTTL)

	p, err = src.Rows(ctx, fc, 2, 20)
	require.NoError(t, err)
	assert.Equal(t, SourceCache, p.Source)
	assert.Equal(t, want[20:], p.Rows)
	assert.Equal(t, 30, p.Total)

	t.Run("filter_change_evicts_previous_entry", func(t *testing.T) {
		p, err := src.Rows(ctx, filter{month: 3, year: 1992}, 1, 20)
		require.NoError(t, err)
		require.NoError(t, p.Population.Wait(waitCtx(t)))
		assert.False(t, mr.Exists("people:rows::1990"))
		assert.False(t, mr.Exists("people:total::1990"))
		assert.Equal(t, "3:1992", must(mr.Get("people:marker")))
	})

	t.Run("marker_ttl_lapse_repopulates", func(t *testing.T) {
		mr.FastForward(DefaultMarkerTTL + time.Second)
		assert.False(t, mr.Exists("people:marker"))

		p, err := src.Rows(ctx, filter{month: 3, year: 1992}, 1, 20)
		require.NoError(t, err)
		assert.Equal(t, SourceFresh, p.Source)
		require.NoError(t, p.Population.Wait(waitCtx(t)))
	})
}

func must(s string, err error) string {
	if err != nil {
		return "<" + err.Error() + ">"
	}
	return s
}
