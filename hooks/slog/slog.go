// Package sloghooks logs filtercache events through log/slog.
package sloghooks

import (
	"crypto/sha256"
	"encoding/hex"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/unkn0wn-root/filtercache"
)

type Options struct {
	// Sampling to avoid floods; 0/1 = log all.
	HitEvery  uint64
	MissEvery uint64
	// Optional key redactor. Defaults to SHA-256 prefix; filter keys carry
	// user input.
	Redact func(string) string
}

type Hooks struct {
	l    *slog.Logger
	opts Options

	hitCtr  atomic.Uint64
	missCtr atomic.Uint64
}

var _ filtercache.Hooks = (*Hooks)(nil)

func New(l *slog.Logger, opts Options) *Hooks {
	return &Hooks{l: l, opts: opts}
}

// Plain returns the key unchanged, for setups where filter values are not sensitive.
func Plain(k string) string { return k }

func (h *Hooks) redact(k string) string {
	if k == "" {
		return ""
	}
	if h.opts.Redact != nil {
		return h.opts.Redact(k)
	}
	sum := sha256.Sum256([]byte(k))
	return hex.EncodeToString(sum[:8])
}

func sample(n uint64, ctr *atomic.Uint64) bool {
	if n == 0 || n == 1 {
		return true
	}
	return ctr.Add(1)%n == 0
}

func (h *Hooks) GuardHit(key string) {
	if h.l == nil || !sample(h.opts.HitEvery, &h.hitCtr) {
		return
	}
	h.l.Debug("filtercache.guard_hit", "key", h.redact(key))
}

func (h *Hooks) GuardMiss(prev, next string) {
	if h.l == nil || !sample(h.opts.MissEvery, &h.missCtr) {
		return
	}
	h.l.Info("filtercache.guard_miss",
		"prev", h.redact(prev),
		"next", h.redact(next))
}

func (h *Hooks) PopulateDone(key string, rows int, took time.Duration) {
	if h.l == nil {
		return
	}
	h.l.Info("filtercache.populate_done",
		"key", h.redact(key),
		"rows", rows,
		"took", took)
}

func (h *Hooks) PopulateFailed(key string, attempts int, err error) {
	if h.l == nil {
		return
	}
	h.l.Error("filtercache.populate_failed",
		"key", h.redact(key),
		"attempts", attempts,
		"err", err)
}

func (h *Hooks) PopulateRejected(key string, err error) {
	if h.l == nil {
		return
	}
	h.l.Warn("filtercache.populate_rejected",
		"key", h.redact(key),
		"err", err)
}

func (h *Hooks) CorruptEntry(key string, rank int64) {
	if h.l == nil {
		return
	}
	h.l.Warn("filtercache.corrupt_entry",
		"key", h.redact(key),
		"rank", rank)
}

func (h *Hooks) Fallback(key, reason string) {
	if h.l == nil {
		return
	}
	h.l.Debug("filtercache.fallback",
		"key", h.redact(key),
		"reason", reason)
}
