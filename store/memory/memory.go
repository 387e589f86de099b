// Package memory is an in-process store.Store. It mirrors the Redis semantics the
// cache relies on (sorted-set ranks, SET ... GET swaps, lazy TTL expiry) and is used
// for single-replica deployments and tests.
package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/unkn0wn-root/filtercache/store"
)

type member struct {
	score int64
	value string
}

type sequence struct {
	items  []member         // ordered by (score, value)
	scores map[string]int64 // value -> score
	exp    time.Time
}

type blob struct {
	v   []byte
	exp time.Time
}

// Store keeps strings and sequences in maps guarded by one mutex.
// Optional cleanup loop prunes expired keys that are never read again.
type Store struct {
	mu    sync.Mutex
	now   func() time.Time
	blobs map[string]blob
	seqs  map[string]*sequence

	ticker *time.Ticker
	stopCh chan struct{}
	wg     sync.WaitGroup
	once   sync.Once
}

var _ store.Store = (*Store)(nil)

type Options struct {
	// Now overrides the clock; tests use it to step past TTLs.
	Now func() time.Time
	// CleanupInterval > 0 starts a background sweep of expired keys.
	CleanupInterval time.Duration
}

func New(opts Options) *Store {
	s := &Store{
		now:   opts.Now,
		blobs: make(map[string]blob),
		seqs:  make(map[string]*sequence),
	}
	if s.now == nil {
		s.now = time.Now
	}
	if opts.CleanupInterval > 0 {
		s.ticker = time.NewTicker(opts.CleanupInterval)
		s.stopCh = make(chan struct{})
		s.wg.Add(1)
		go func() {
			defer s.wg.Done()
			for {
				select {
				case <-s.ticker.C:
					s.Cleanup()
				case <-s.stopCh:
					return
				}
			}
		}()
	}
	return s
}

func expired(exp, now time.Time) bool { return !exp.IsZero() && !now.Before(exp) }

func deadline(now time.Time, ttl time.Duration) time.Time {
	if ttl <= 0 {
		return time.Time{}
	}
	return now.Add(ttl)
}

// live returns the blob at key, dropping it when expired. Caller holds mu.
func (s *Store) live(key string, now time.Time) (blob, bool) {
	b, ok := s.blobs[key]
	if !ok {
		return blob{}, false
	}
	if expired(b.exp, now) {
		delete(s.blobs, key)
		return blob{}, false
	}
	return b, true
}

func (s *Store) liveSeq(key string, now time.Time) (*sequence, bool) {
	q, ok := s.seqs[key]
	if !ok {
		return nil, false
	}
	if expired(q.exp, now) {
		delete(s.seqs, key)
		return nil, false
	}
	return q, true
}

func clone(b []byte) []byte {
	if b == nil {
		return nil
	}
	out := make([]byte, len(b))
	copy(out, b)
	return out
}

func (s *Store) Get(_ context.Context, key string) ([]byte, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	b, ok := s.live(key, s.now())
	if !ok {
		return nil, false, nil
	}
	return clone(b.v), true, nil
}

func (s *Store) Set(_ context.Context, key string, value []byte, ttl time.Duration) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.seqs, key)
	s.blobs[key] = blob{v: clone(value), exp: deadline(s.now(), ttl)}
	return nil
}

func (s *Store) Swap(_ context.Context, key string, value []byte, ttl time.Duration) ([]byte, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	now := s.now()
	prev, ok := s.live(key, now)
	delete(s.seqs, key)
	s.blobs[key] = blob{v: clone(value), exp: deadline(now, ttl)}
	if !ok {
		return nil, false, nil
	}
	return prev.v, true, nil
}

func (s *Store) Del(_ context.Context, keys ...string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, k := range keys {
		delete(s.blobs, k)
		delete(s.seqs, k)
	}
	return nil
}

func (s *Store) Append(_ context.Context, key string, from int64, members [][]byte, ttl time.Duration) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	now := s.now()
	q, ok := s.liveSeq(key, now)
	if !ok {
		if len(members) == 0 {
			return nil
		}
		delete(s.blobs, key)
		q = &sequence{scores: make(map[string]int64, len(members))}
		s.seqs[key] = q
	}
	for i, m := range members {
		q.add(from+int64(i), string(m))
	}
	if ttl > 0 {
		q.exp = now.Add(ttl)
	}
	return nil
}

func (s *Store) Range(_ context.Context, key string, start, stop int64) ([][]byte, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	q, ok := s.liveSeq(key, s.now())
	if !ok {
		return nil, nil
	}
	n := int64(len(q.items))
	if start < 0 {
		start += n
	}
	if stop < 0 {
		stop += n
	}
	if start < 0 {
		start = 0
	}
	if stop >= n {
		stop = n - 1
	}
	if start > stop {
		return nil, nil
	}
	out := make([][]byte, 0, stop-start+1)
	for _, it := range q.items[start : stop+1] {
		out = append(out, []byte(it.value))
	}
	return out, nil
}

// add inserts value at score. An existing value moves to the new score, as ZADD does.
func (q *sequence) add(score int64, value string) {
	if old, ok := q.scores[value]; ok {
		if old == score {
			return
		}
		i := q.search(old, value)
		q.items = append(q.items[:i], q.items[i+1:]...)
	}
	q.scores[value] = score
	i := q.search(score, value)
	q.items = append(q.items, member{})
	copy(q.items[i+1:], q.items[i:])
	q.items[i] = member{score: score, value: value}
}

func (q *sequence) search(score int64, value string) int {
	return sort.Search(len(q.items), func(i int) bool {
		it := q.items[i]
		if it.score != score {
			return it.score > score
		}
		return it.value >= value
	})
}

// Exists reports whether key holds a live value of either kind.
func (s *Store) Exists(key string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	now := s.now()
	if _, ok := s.live(key, now); ok {
		return true
	}
	_, ok := s.liveSeq(key, now)
	return ok
}

// Cleanup drops every expired key.
func (s *Store) Cleanup() {
	s.mu.Lock()
	defer s.mu.Unlock()
	now := s.now()
	for k, b := range s.blobs {
		if expired(b.exp, now) {
			delete(s.blobs, k)
		}
	}
	for k, q := range s.seqs {
		if expired(q.exp, now) {
			delete(s.seqs, k)
		}
	}
}

func (s *Store) Close(context.Context) error {
	s.once.Do(func() {
		if s.stopCh != nil {
			s.ticker.Stop()
			close(s.stopCh)
			s.wg.Wait()
		}
	})
	return nil
}
