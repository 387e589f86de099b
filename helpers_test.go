package filtercache

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	c "github.com/unkn0wn-root/filtercache/codec"
	"github.com/unkn0wn-root/filtercache/store"
	"github.com/unkn0wn-root/filtercache/store/memory"
)

type person struct {
	ID       int64  `json:"id"`
	Email    string `json:"email"`
	FullName string `json:"full_name"`
	Country  string `json:"country"`
	Birthday string `json:"birthday"` // YYYY-MM-DD
	Phone    string `json:"phone"`
	IP       string `json:"ip"`
}

// people builds n rows; row i is born in month (i%12)+1 of year 1990+(i%3).
func people(n int) []person {
	out := make([]person, n)
	for i := range out {
		out[i] = person{
			ID:       int64(i + 1),
			Email:    fmt.Sprintf("p%d@example.com", i+1),
			FullName: fmt.Sprintf("Person %d", i+1),
			Country:  "Norway",
			Birthday: fmt.Sprintf("%04d-%02d-15", 1990+i%3, i%12+1),
			Phone:    fmt.Sprintf("+47 555 %04d", i+1),
			IP:       fmt.Sprintf("10.0.%d.%d", i/256, i%256),
		}
	}
	return out
}

// filter is a month/year filter; 0 means "not applied".
type filter struct{ month, year int }

func (f filter) FilterKey() (FilterKey, error) { return KeyOf(part(f.month), part(f.year)) }

func part(n int) string {
	if n == 0 {
		return ""
	}
	return strconv.Itoa(n)
}

func (f filter) match(p person) bool {
	year, _ := strconv.Atoi(p.Birthday[:4])
	month, _ := strconv.Atoi(p.Birthday[5:7])
	return (f.year == 0 || f.year == year) && (f.month == 0 || f.month == month)
}

// fakeQuery filters an in-memory table and counts calls.
type fakeQuery struct {
	rows    []person
	allN    atomic.Int32
	pageN   atomic.Int32
	failAll error
}

func (q *fakeQuery) filtered(fc FilterContext) []person {
	f, _ := fc.(filter)
	out := []person{}
	for _, p := range q.rows {
		if f.match(p) {
			out = append(out, p)
		}
	}
	return out
}

func (q *fakeQuery) All(_ context.Context, fc FilterContext) ([]person, error) {
	q.allN.Add(1)
	if q.failAll != nil {
		return nil, q.failAll
	}
	return q.filtered(fc), nil
}

func (q *fakeQuery) Page(_ context.Context, fc FilterContext, offset, limit int) ([]person, int, error) {
	q.pageN.Add(1)
	all := q.filtered(fc)
	if offset >= len(all) {
		return []person{}, len(all), nil
	}
	return all[offset:min(offset+limit, len(all))], len(all), nil
}

// clock is a manual time source for the memory store.
type clock struct {
	mu  sync.Mutex
	now time.Time
}

func newClock() *clock { return &clock{now: time.Date(2022, 6, 1, 12, 0, 0, 0, time.UTC)} }

func (c *clock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *clock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

// recStore counts mutations and can inject failures per operation.
type recStore struct {
	store.Store
	mu      sync.Mutex
	writes  []string
	failOn  map[string]error
	appends atomic.Int32
}

func newRecStore(inner store.Store) *recStore {
	return &recStore{Store: inner, failOn: map[string]error{}}
}

func (s *recStore) fail(op string, err error) {
	s.mu.Lock()
	s.failOn[op] = err
	s.mu.Unlock()
}

func (s *recStore) record(op, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.failOn[op]; err != nil {
		return err
	}
	if op != "get" && op != "range" {
		s.writes = append(s.writes, op+" "+key)
	}
	return nil
}

func (s *recStore) Writes() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.writes...)
}

func (s *recStore) Reset() {
	s.mu.Lock()
	s.writes = nil
	s.mu.Unlock()
}

func (s *recStore) Get(ctx context.Context, key string) ([]byte, bool, error) {
	if err := s.record("get", key); err != nil {
		return nil, false, err
	}
	return s.Store.Get(ctx, key)
}

func (s *recStore) Set(ctx context.Context, key string, v []byte, ttl time.Duration) error {
	if err := s.record("set", key); err != nil {
		return err
	}
	return s.Store.Set(ctx, key, v, ttl)
}

func (s *recStore) Swap(ctx context.Context, key string, v []byte, ttl time.Duration) ([]byte, bool, error) {
	if err := s.record("swap", key); err != nil {
		return nil, false, err
	}
	return s.Store.Swap(ctx, key, v, ttl)
}

func (s *recStore) Del(ctx context.Context, keys ...string) error {
	if err := s.record("del", strings.Join(keys, ",")); err != nil {
		return err
	}
	return s.Store.Del(ctx, keys...)
}

func (s *recStore) Append(ctx context.Context, key string, from int64, m [][]byte, ttl time.Duration) error {
	s.appends.Add(1)
	if err := s.record("append", key); err != nil {
		return err
	}
	return s.Store.Append(ctx, key, from, m, ttl)
}

func (s *recStore) Range(ctx context.Context, key string, start, stop int64) ([][]byte, error) {
	if err := s.record("range", key); err != nil {
		return nil, err
	}
	return s.Store.Range(ctx, key, start, stop)
}

// recHooks records events by name.
type recHooks struct {
	NopHooks
	mu     sync.Mutex
	events []string
}

func (h *recHooks) add(e string) {
	h.mu.Lock()
	h.events = append(h.events, e)
	h.mu.Unlock()
}

func (h *recHooks) Events() []string {
	h.mu.Lock()
	defer h.mu.Unlock()
	return append([]string(nil), h.events...)
}

func (h *recHooks) GuardHit(k string)           { h.add("hit " + k) }
func (h *recHooks) GuardMiss(prev, next string) { h.add("miss " + prev + "->" + next) }
func (h *recHooks) PopulateDone(k string, n int, _ time.Duration) {
	h.add(fmt.Sprintf("done %s %d", k, n))
}
func (h *recHooks) PopulateFailed(k string, attempts int, _ error) {
	h.add(fmt.Sprintf("failed %s %d", k, attempts))
}
func (h *recHooks) PopulateRejected(k string, _ error) { h.add("rejected " + k) }
func (h *recHooks) CorruptEntry(k string, rank int64)  { h.add(fmt.Sprintf("corrupt %s %d", k, rank)) }
func (h *recHooks) Fallback(k, reason string)          { h.add("fallback " + k + " " + reason) }

var errStoreDown = errors.New("store down")

type fixture struct {
	src   *RowSource[person]
	mem   *memory.Store
	rec   *recStore
	clock *clock
	query *fakeQuery
	hooks *recHooks
}

func newFixture(t *testing.T, rows []person, mutate func(*Options[person])) *fixture {
	t.Helper()
	clk := newClock()
	mem := memory.New(memory.Options{Now: clk.Now})
	rec := newRecStore(mem)
	q := &fakeQuery{rows: rows}
	h := &recHooks{}
	opts := Options[person]{
		Store:            rec,
		Codec:            c.JSON[person]{},
		Query:            q,
		Namespace:        "people",
		Hooks:            h,
		PopulateBatch:    7,
		PopulateBackoff:  time.Millisecond,
		PopulateAttempts: 2,
	}
	if mutate != nil {
		mutate(&opts)
	}
	src, err := New[person](opts)
	require.NoError(t, err)
	t.Cleanup(func() { _ = src.Close(context.Background()) })
	return &fixture{src: src, mem: mem, rec: rec, clock: clk, query: q, hooks: h}
}

// populate runs guard + populator for key the way a fresh request does and waits.
func (f *fixture) populate(t *testing.T, fc filter) Entry {
	t.Helper()
	ctx := context.Background()
	key, err := fc.FilterKey()
	require.NoError(t, err)
	cur, err := f.src.Guard().IsCurrent(ctx, key)
	require.NoError(t, err)
	require.False(t, cur)
	rows, err := f.query.All(ctx, fc)
	require.NoError(t, err)
	e := f.src.Keyspace().Entry(key)
	require.NoError(t, f.src.Populator().Populate(ctx, rows, e).Wait(waitCtx(t)))
	return e
}

func waitCtx(t *testing.T) context.Context {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	t.Cleanup(cancel)
	return ctx
}

func ids(ps []person) []int64 {
	out := make([]int64, len(ps))
	for i, p := range ps {
		out[i] = p.ID
	}
	return out
}
