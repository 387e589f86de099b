package filtercache

import (
	"context"
	"fmt"
	"strconv"

	c "github.com/unkn0wn-root/filtercache/codec"
	"github.com/unkn0wn-root/filtercache/internal/wire"
	"github.com/unkn0wn-root/filtercache/store"
)

// Window is one page read from an entry.
type Window[V any] struct {
	Rows  []V
	Total int
	// Complete is false while the total is missing: population is still running,
	// failed, or the entry was evicted.
	Complete bool
}

// Reader serves pages out of a populated entry.
type Reader[V any] struct {
	store store.Store
	codec c.Codec[V]
}

// Page reads ranks [(page-1)*size, page*size-1]. The range read is inclusive at
// both ends, so the upper bound is start+size-1 and a page never carries an
// extra row.
//
// A member that does not decode, or that sits at the wrong rank, fails the whole
// page with a *CorruptRowError.
func (r *Reader[V]) Page(ctx context.Context, e Entry, page, size int) (Window[V], error) {
	if page < 1 || size <= 0 || page > maxPage(size) {
		return Window[V]{}, fmt.Errorf("%w: page=%d size=%d", ErrInvalidPage, page, size)
	}

	// total is written last, so reading it first means a present total implies
	// complete rows
	total, complete, err := r.total(ctx, e)
	if err != nil {
		return Window[V]{}, err
	}

	start := int64(page-1) * int64(size)
	stop := start + int64(size) - 1
	raw, err := r.store.Range(ctx, e.Rows, start, stop)
	if err != nil {
		return Window[V]{}, fmt.Errorf("reader: range %q [%d,%d]: %w", e.Rows, start, stop, err)
	}

	rows := make([]V, 0, len(raw))
	for i, b := range raw {
		want := start + int64(i)
		rank, payload, err := wire.DecodeRow(b)
		if err != nil {
			return Window[V]{}, &CorruptRowError{Key: e.Rows, Rank: want, Err: err}
		}
		if int64(rank) != want {
			return Window[V]{}, &CorruptRowError{Key: e.Rows, Rank: want,
				Err: fmt.Errorf("member stored at rank %d", rank)}
		}
		v, err := r.codec.Decode(payload)
		if err != nil {
			return Window[V]{}, &CorruptRowError{Key: e.Rows, Rank: want, Err: err}
		}
		rows = append(rows, v)
	}
	return Window[V]{Rows: rows, Total: total, Complete: complete}, nil
}

// total returns 0 and complete=false when the count key is absent.
func (r *Reader[V]) total(ctx context.Context, e Entry) (int, bool, error) {
	b, ok, err := r.store.Get(ctx, e.Total)
	if err != nil {
		return 0, false, fmt.Errorf("reader: get total %q: %w", e.Total, err)
	}
	if !ok {
		return 0, false, nil
	}
	n, err := strconv.Atoi(string(b))
	if err != nil || n < 0 {
		if err == nil {
			err = fmt.Errorf("negative total %d", n)
		}
		return 0, false, &CorruptRowError{Key: e.Total, Rank: -1, Err: err}
	}
	return n, true, nil
}
