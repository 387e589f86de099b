package filtercache

import "time"

// Fallback reasons passed to Hooks.Fallback.
const (
	FallbackIncomplete  = "incomplete"
	FallbackCorrupt     = "corrupt"
	FallbackQueryFailed = "query_failed"
)

// Hooks lightweight callbacks for high-signal events.
// Implementations MUST be cheap and non-blocking; they run on the request path
// and on population workers.
type Hooks interface {
	// The marker matched the requested key.
	GuardHit(key string)
	// The marker did not match; prev is empty when the marker was absent or expired.
	GuardMiss(prev, next string)

	// A population job finished writing rows and total.
	PopulateDone(key string, rows int, took time.Duration)
	// A population job gave up after attempts tries.
	PopulateFailed(key string, attempts int, err error)
	// The dispatcher refused the job (queue full or closed).
	PopulateRejected(key string, err error)

	// A stored member failed to decode.
	CorruptEntry(key string, rank int64)
	// A cached read was abandoned in favor of the live query.
	Fallback(key, reason string)
}

// NopHooks is the default no-op
type NopHooks struct{}

func (NopHooks) GuardHit(string)                         {}
func (NopHooks) GuardMiss(string, string)                {}
func (NopHooks) PopulateDone(string, int, time.Duration) {}
func (NopHooks) PopulateFailed(string, int, error)       {}
func (NopHooks) PopulateRejected(string, error)          {}
func (NopHooks) CorruptEntry(string, int64)              {}
func (NopHooks) Fallback(string, string)                 {}

// Multi fans every event out to each of hs in order.
type Multi []Hooks

var _ Hooks = Multi(nil)

func (m Multi) GuardHit(k string) {
	for _, h := range m {
		h.GuardHit(k)
	}
}

func (m Multi) GuardMiss(prev, next string) {
	for _, h := range m {
		h.GuardMiss(prev, next)
	}
}

func (m Multi) PopulateDone(k string, n int, took time.Duration) {
	for _, h := range m {
		h.PopulateDone(k, n, took)
	}
}

func (m Multi) PopulateFailed(k string, attempts int, err error) {
	for _, h := range m {
		h.PopulateFailed(k, attempts, err)
	}
}

func (m Multi) PopulateRejected(k string, err error) {
	for _, h := range m {
		h.PopulateRejected(k, err)
	}
}

func (m Multi) CorruptEntry(k string, rank int64) {
	for _, h := range m {
		h.CorruptEntry(k, rank)
	}
}

func (m Multi) Fallback(k, reason string) {
	for _, h := range m {
		h.Fallback(k, reason)
	}
}
