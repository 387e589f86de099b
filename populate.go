package filtercache

import (
	"context"
	"fmt"
	"strconv"
	"time"

	c "github.com/unkn0wn-root/filtercache/codec"
	"github.com/unkn0wn-root/filtercache/dispatch"
	"github.com/unkn0wn-root/filtercache/internal/wire"
	"github.com/unkn0wn-root/filtercache/store"
)

// Populator writes a full result set into its entry off the request path.
type Populator[V any] struct {
	store    store.Store
	codec    c.Codec[V]
	pool     *dispatch.Pool
	guard    *Guard
	entryTTL time.Duration
	batch    int
	log      Logger
	hooks    Hooks
}

// Populate dispatches the write of rows into e and returns at once. The returned
// task is never nil; request handlers ignore it, tests Wait on it.
//
// Rows go in first, in order and in batches; the total goes last, so a present
// total means the rows are complete. When every attempt fails, or the pool
// refuses the job, the marker is evicted so later requests see the entry as stale
// and try again. Failures never reach the caller.
func (p *Populator[V]) Populate(ctx context.Context, rows []V, e Entry) *dispatch.Task {
	start := time.Now()
	name := "populate " + string(e.Key)

	task, err := p.pool.Submit(dispatch.Job{
		Name: name,
		Run: func(ctx context.Context) error {
			return p.write(ctx, rows, e)
		},
		Done: func(ctx context.Context, attempts int, err error) {
			if err == nil {
				p.hooks.PopulateDone(string(e.Key), len(rows), time.Since(start))
				p.log.Debug("populate ok", Fields{"key": string(e.Key), "rows": len(rows), "took": time.Since(start)})
				return
			}
			p.hooks.PopulateFailed(string(e.Key), attempts, err)
			p.log.Error("populate failed", Fields{"key": string(e.Key), "attempts": attempts, "err": err})
			if eerr := p.guard.Evict(ctx, e.Key); eerr != nil {
				p.log.Warn("evict after failed populate", Fields{"key": string(e.Key), "err": eerr})
			}
		},
	})
	if err != nil {
		p.hooks.PopulateRejected(string(e.Key), err)
		p.log.Warn("populate rejected", Fields{"key": string(e.Key), "rows": len(rows), "err": err})
		if eerr := p.guard.Evict(context.WithoutCancel(ctx), e.Key); eerr != nil {
			p.log.Warn("evict after rejected populate", Fields{"key": string(e.Key), "err": eerr})
		}
		return dispatch.Failed(name, err)
	}
	return task
}

func (p *Populator[V]) write(ctx context.Context, rows []V, e Entry) error {
	members := make([][]byte, 0, min(len(rows), p.batch))
	var from int64
	for i, row := range rows {
		payload, err := p.codec.Encode(row)
		if err != nil {
			return dispatch.Permanent(fmt.Errorf("encode row %d of %q: %w", i, e.Key, err))
		}
		members = append(members, wire.EncodeRow(uint64(i), payload))
		if len(members) == p.batch {
			if err := p.store.Append(ctx, e.Rows, from, members, p.entryTTL); err != nil {
				return fmt.Errorf("append %q at %d: %w", e.Rows, from, err)
			}
			from += int64(len(members))
			members = make([][]byte, 0, min(len(rows)-i-1, p.batch))
		}
	}
	if len(members) > 0 {
		if err := p.store.Append(ctx, e.Rows, from, members, p.entryTTL); err != nil {
			return fmt.Errorf("append %q at %d: %w", e.Rows, from, err)
		}
	}
	if err := p.store.Set(ctx, e.Total, []byte(strconv.Itoa(len(rows))), p.entryTTL); err != nil {
		return fmt.Errorf("set total %q: %w", e.Total, err)
	}
	return nil
}
