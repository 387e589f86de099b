package filtercache

import (
	"errors"
	"time"

	c "github.com/unkn0wn-root/filtercache/codec"
	"github.com/unkn0wn-root/filtercache/dispatch"
	"github.com/unkn0wn-root/filtercache/store"
)

var (
	ErrNilStore = errors.New("filtercache: store is required")
	ErrNilCodec = errors.New("filtercache: codec is required")
	ErrNilQuery = errors.New("filtercache: query is required")
)

// Options tune the cache. Store, Codec and Query are required; the rest have
// defaults.
type Options[V any] struct {
	// Required
	Store store.Store
	Codec c.Codec[V]
	Query Query[V]

	Namespace         string        // key prefix; "" => "people"
	Logger            Logger        // nil => NopLogger
	Hooks             Hooks         // nil => NopHooks
	MarkerTTL         time.Duration // 0 => 60s
	EntryTTL          time.Duration // 0 => 10m; never below MarkerTTL
	AcceptedPageSizes []int         // nil => {20}
	PopulateBatch     int           // members per append; 0 => 500

	// Dispatcher runs populations. nil => an owned pool built from the fields
	// below and closed by RowSource.Close.
	Dispatcher       *dispatch.Pool
	PopulateWorkers  int           // 0 => 2
	PopulateQueue    int           // 0 => 64
	PopulateAttempts int           // 0 => 3
	PopulateBackoff  time.Duration // 0 => 200ms
}

func New[V any](opts Options[V]) (*RowSource[V], error) {
	if opts.Store == nil {
		return nil, ErrNilStore
	}
	if opts.Codec == nil {
		return nil, ErrNilCodec
	}
	if opts.Query == nil {
		return nil, ErrNilQuery
	}

	log := coalesce[Logger](opts.Logger, NopLogger{})
	hooks := coalesce[Hooks](opts.Hooks, NopHooks{})
	keys := NewKeyspace(coalesce(opts.Namespace, DefaultNamespace))
	markerTTL := coalesce(opts.MarkerTTL, DefaultMarkerTTL)
	entryTTL := max(coalesce(opts.EntryTTL, DefaultEntryTTL), markerTTL)

	sizes := opts.AcceptedPageSizes
	if len(sizes) == 0 {
		sizes = []int{DefaultPageSize}
	}
	accepted := make(map[int]struct{}, len(sizes))
	for _, n := range sizes {
		if n <= 0 {
			return nil, ErrInvalidPage
		}
		accepted[n] = struct{}{}
	}

	batch := opts.PopulateBatch
	if batch <= 0 {
		batch = defaultPopulateBatch
	}

	pool, owns := opts.Dispatcher, false
	if pool == nil {
		pool = dispatch.New(dispatch.Options{
			Workers:  coalesce(opts.PopulateWorkers, 2),
			Queue:    coalesce(opts.PopulateQueue, 64),
			Attempts: coalesce(opts.PopulateAttempts, 3),
			Backoff:  coalesce(opts.PopulateBackoff, 200*time.Millisecond),
		})
		owns = true
	}

	g := &Guard{store: opts.Store, keys: keys, ttl: markerTTL, log: log, hooks: hooks}
	s := &RowSource[V]{
		query: opts.Query,
		store: opts.Store,
		keys:  keys,
		guard: g,
		pop: &Populator[V]{
			store:    opts.Store,
			codec:    opts.Codec,
			pool:     pool,
			guard:    g,
			entryTTL: entryTTL,
			batch:    batch,
			log:      log,
			hooks:    hooks,
		},
		reader:   &Reader[V]{store: opts.Store, codec: opts.Codec},
		sizes:    accepted,
		log:      log,
		hooks:    hooks,
		pool:     pool,
		ownsPool: owns,
	}
	log.Debug("filtercache ready", Fields{
		"ns": keys.Namespace(), "marker_ttl": markerTTL, "entry_ttl": entryTTL, "page_sizes": sizes,
	})
	return s, nil
}
