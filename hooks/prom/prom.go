// Package promhooks exports filtercache events as Prometheus metrics.
package promhooks

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/unkn0wn-root/filtercache"
)

// Hooks counts guard results, population outcomes and fallbacks. Keys are not
// used as labels; filter values are unbounded.
type Hooks struct {
	guard     *prometheus.CounterVec
	populate  *prometheus.CounterVec
	fallback  *prometheus.CounterVec
	corrupt   prometheus.Counter
	populateT prometheus.Histogram
}

var _ filtercache.Hooks = (*Hooks)(nil)

// New registers the collectors on reg. Use prometheus.NewRegistry in tests.
func New(reg prometheus.Registerer, namespace string) (*Hooks, error) {
	if namespace == "" {
		namespace = "filtercache"
	}
	h := &Hooks{
		guard: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "guard_total",
			Help:      "Staleness guard checks by result (hit, miss).",
		}, []string{"result"}),
		populate: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "populate_total",
			Help:      "Population jobs by result (ok, failed, rejected).",
		}, []string{"result"}),
		fallback: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "fallback_total",
			Help:      "Cached reads answered by the live query instead, by reason.",
		}, []string{"reason"}),
		corrupt: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "corrupt_entries_total",
			Help:      "Stored rows that failed to decode.",
		}),
		populateT: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "populate_seconds",
			Help:      "Time from dispatch to a completed population.",
			Buckets:   prometheus.ExponentialBuckets(0.005, 2, 12),
		}),
	}
	for _, c := range []prometheus.Collector{h.guard, h.populate, h.fallback, h.corrupt, h.populateT} {
		if err := reg.Register(c); err != nil {
			return nil, err
		}
	}
	// zero series show up before the first event
	h.guard.WithLabelValues("hit")
	h.guard.WithLabelValues("miss")
	for _, r := range []string{"ok", "failed", "rejected"} {
		h.populate.WithLabelValues(r)
	}
	for _, r := range []string{filtercache.FallbackIncomplete, filtercache.FallbackCorrupt, filtercache.FallbackQueryFailed} {
		h.fallback.WithLabelValues(r)
	}
	return h, nil
}

func (h *Hooks) GuardHit(string)          { h.guard.WithLabelValues("hit").Inc() }
func (h *Hooks) GuardMiss(string, string) { h.guard.WithLabelValues("miss").Inc() }

func (h *Hooks) PopulateDone(_ string, _ int, took time.Duration) {
	h.populate.WithLabelValues("ok").Inc()
	h.populateT.Observe(took.Seconds())
}

func (h *Hooks) PopulateFailed(string, int, error) { h.populate.WithLabelValues("failed").Inc() }
func (h *Hooks) PopulateRejected(string, error)    { h.populate.WithLabelValues("rejected").Inc() }
func (h *Hooks) CorruptEntry(string, int64)        { h.corrupt.Inc() }
func (h *Hooks) Fallback(_ string, reason string)  { h.fallback.WithLabelValues(reason).Inc() }
