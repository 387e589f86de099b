package filtercache

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/unkn0wn-root/filtercache/dispatch"
	"github.com/unkn0wn-root/filtercache/store"
)

// Query is the database side. All returns every match in display order; Page
// applies offset/limit and also returns the total match count.
type Query[V any] interface {
	All(ctx context.Context, fc FilterContext) ([]V, error)
	Page(ctx context.Context, fc FilterContext, offset, limit int) ([]V, int, error)
}

// RowSource decides per request between the live query, the cache and a fresh
// population.
type RowSource[V any] struct {
	query  Query[V]
	store  store.Store
	keys   Keyspace
	guard  *Guard
	pop    *Populator[V]
	reader *Reader[V]
	sizes  map[int]struct{}
	log    Logger
	hooks  Hooks

	pool     *dispatch.Pool
	ownsPool bool
}

// Rows returns one page for the filters in fc.
//
//   - no active filter: live query with native pagination
//   - marker matches: page read from the entry, falling back to the live query
//     while the entry is incomplete or after it turned out corrupt
//   - marker stale: full query once, population dispatched, page cut from memory
//
// Store errors fail the call and are not retried here; the marker and entry
// are left as they were.
func (s *RowSource[V]) Rows(ctx context.Context, fc FilterContext, page, size int) (Page[V], error) {
	if _, ok := s.sizes[size]; !ok {
		return Page[V]{}, fmt.Errorf("%w: %d", ErrPageSize, size)
	}
	if page < 1 || page > maxPage(size) {
		return Page[V]{}, fmt.Errorf("%w: page=%d", ErrInvalidPage, page)
	}
	key, err := fc.FilterKey()
	if err != nil {
		return Page[V]{}, err
	}
	if !key.Active() {
		return s.live(ctx, fc, page, size)
	}

	current, err := s.guard.IsCurrent(ctx, key)
	if err != nil {
		s.log.Warn("guard failed", Fields{"key": string(key), "err": err})
		return Page[V]{}, err
	}
	entry := s.keys.Entry(key)
	if !current {
		return s.fresh(ctx, fc, entry, page, size)
	}

	w, err := s.reader.Page(ctx, entry, page, size)
	var corrupt *CorruptRowError
	switch {
	case errors.As(err, &corrupt):
		s.hooks.CorruptEntry(corrupt.Key, corrupt.Rank)
		s.log.Warn("corrupt entry", Fields{"key": string(key), "rank": corrupt.Rank, "err": corrupt.Err})
		if eerr := s.guard.Evict(ctx, key); eerr != nil {
			s.log.Warn("evict corrupt entry failed", Fields{"key": string(key), "err": eerr})
			return Page[V]{}, eerr
		}
		s.hooks.Fallback(string(key), FallbackCorrupt)
		return s.live(ctx, fc, page, size)
	case err != nil:
		return Page[V]{}, err
	case !w.Complete:
		s.hooks.Fallback(string(key), FallbackIncomplete)
		s.log.Debug("entry incomplete, serving live", Fields{"key": string(key), "page": page})
		return s.live(ctx, fc, page, size)
	}

	return Page[V]{
		Rows:    w.Rows,
		Total:   w.Total,
		Page:    page,
		PerPage: size,
		Source:  SourceCache,
	}, nil
}

func (s *RowSource[V]) live(ctx context.Context, fc FilterContext, page, size int) (Page[V], error) {
	started := time.Now()
	rows, total, err := s.query.Page(ctx, fc, (page-1)*size, size)
	if err != nil {
		return Page[V]{}, fmt.Errorf("live query: %w", err)
	}
	s.log.Debug("live page", Fields{"page": page, "rows": len(rows), "total": total, "took": time.Since(started)})
	return Page[V]{Rows: rows, Total: total, Page: page, PerPage: size, Source: SourceLive}, nil
}

// fresh runs the unpaginated query, hands the full result to the populator and
// answers from memory. The guard has already moved the marker to e.Key.
func (s *RowSource[V]) fresh(ctx context.Context, fc FilterContext, e Entry, page, size int) (Page[V], error) {
	started := time.Now()
	rows, err := s.query.All(ctx, fc)
	if err != nil {
		s.hooks.Fallback(string(e.Key), FallbackQueryFailed)
		if eerr := s.guard.Evict(context.WithoutCancel(ctx), e.Key); eerr != nil {
			s.log.Warn("evict after failed query", Fields{"key": string(e.Key), "err": eerr})
		}
		return Page[V]{}, fmt.Errorf("full query: %w", err)
	}
	s.log.Info("populating entry", Fields{"key": string(e.Key), "rows": len(rows), "took": time.Since(started)})

	task := s.pop.Populate(ctx, rows, e)
	return Page[V]{
		Rows:       window(rows, page, size),
		Total:      len(rows),
		Page:       page,
		PerPage:    size,
		Source:     SourceFresh,
		Population: task,
	}, nil
}

func (s *RowSource[V]) Guard() *Guard            { return s.guard }
func (s *RowSource[V]) Populator() *Populator[V] { return s.pop }
func (s *RowSource[V]) Reader() *Reader[V]       { return s.reader }
func (s *RowSource[V]) Keyspace() Keyspace       { return s.keys }

// Close waits for pending populations when the pool is owned, then closes the store.
func (s *RowSource[V]) Close(ctx context.Context) error {
	var errs []error
	if s.ownsPool {
		if err := s.pool.Close(ctx); err != nil {
			errs = append(errs, fmt.Errorf("close pool: %w", err))
		}
	}
	if err := s.store.Close(ctx); err != nil {
		errs = append(errs, fmt.Errorf("close store: %w", err))
	}
	return errors.Join(errs...)
}
