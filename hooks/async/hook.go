// Package asynchook moves hook delivery off the request path.
//
//	raw := sloghooks.New(slog.Default(), sloghooks.Options{HitEvery: 100})
//	hooks := asynchook.New(raw, 1, 1000) // 1 worker; queue 1000 events
//	defer hooks.Close()
//
//	src, _ := filtercache.New[people.Person](filtercache.Options[people.Person]{
//	    Store: st, Codec: c, Query: engine,
//	    Hooks: hooks, // or `raw` if you don't want async
//	})
package asynchook

import (
	"sync"
	"sync/atomic"
	"time"

	"github.com/unkn0wn-root/filtercache"
)

// Hooks queues every event for inner. Events are dropped, never blocked on,
// when the queue is full or closed.
type Hooks struct {
	inner filtercache.Hooks
	q     chan func()
	wg    sync.WaitGroup
	once  sync.Once

	mu      sync.RWMutex
	closed  bool
	dropped atomic.Uint64
}

var _ filtercache.Hooks = (*Hooks)(nil)

func New(inner filtercache.Hooks, workers, qlen int) *Hooks {
	if workers <= 0 {
		workers = 1
	}
	if qlen <= 0 {
		qlen = 1024
	}

	h := &Hooks{inner: inner, q: make(chan func(), qlen)}
	h.wg.Add(workers)
	for i := 0; i < workers; i++ {
		go func() {
			defer h.wg.Done()
			for f := range h.q {
				f()
			}
		}()
	}
	return h
}

// Close delivers what is queued and stops the workers.
func (h *Hooks) Close() {
	h.once.Do(func() {
		h.mu.Lock()
		h.closed = true
		close(h.q)
		h.mu.Unlock()
		h.wg.Wait()
	})
}

// Dropped counts events lost to a full or closed queue.
func (h *Hooks) Dropped() uint64 { return h.dropped.Load() }

func (h *Hooks) try(f func()) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	if h.closed {
		h.dropped.Add(1)
		return
	}
	select {
	case h.q <- f:
	default:
		h.dropped.Add(1)
	}
}

func (h *Hooks) GuardHit(k string)           { h.try(func() { h.inner.GuardHit(k) }) }
func (h *Hooks) GuardMiss(prev, next string) { h.try(func() { h.inner.GuardMiss(prev, next) }) }
func (h *Hooks) CorruptEntry(k string, r int64) {
	h.try(func() { h.inner.CorruptEntry(k, r) })
}
func (h *Hooks) Fallback(k, reason string) { h.try(func() { h.inner.Fallback(k, reason) }) }
func (h *Hooks) PopulateDone(k string, n int, took time.Duration) {
	h.try(func() { h.inner.PopulateDone(k, n, took) })
}
func (h *Hooks) PopulateFailed(k string, attempts int, err error) {
	h.try(func() { h.inner.PopulateFailed(k, attempts, err) })
}
func (h *Hooks) PopulateRejected(k string, err error) {
	h.try(func() { h.inner.PopulateRejected(k, err) })
}
