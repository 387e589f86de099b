package filtercache

import (
	"context"
	"fmt"
	"time"

	"github.com/unkn0wn-root/filtercache/store"
)

// Guard owns the marker slot. At most one entry is valid at a time: the one whose
// FilterKey equals the marker value.
type Guard struct {
	store store.Store
	keys  Keyspace
	ttl   time.Duration
	log   Logger
	hooks Hooks
}

// IsCurrent reports whether the cached entry for key can be served.
//
// On a hit nothing is written. On a miss the entry under key is deleted, the
// marker is swapped to key with a fresh TTL and the entry of the previous marker
// value is deleted too. The steps are not transactional across keys; two callers
// racing on the same transition both do the work.
func (g *Guard) IsCurrent(ctx context.Context, key FilterKey) (bool, error) {
	marker := g.keys.Marker()
	cur, ok, err := g.store.Get(ctx, marker)
	if err != nil {
		return false, fmt.Errorf("guard: read marker: %w", err)
	}
	if ok && string(cur) == string(key) {
		g.hooks.GuardHit(string(key))
		return true, nil
	}

	if err := g.store.Del(ctx, g.keys.Entry(key).StorageKeys()...); err != nil {
		return false, fmt.Errorf("guard: evict %q: %w", key, err)
	}
	prev, had, err := g.store.Swap(ctx, marker, []byte(key), g.ttl)
	if err != nil {
		return false, fmt.Errorf("guard: swap marker: %w", err)
	}

	var stale FilterKey
	if had && string(prev) != string(key) {
		stale = FilterKey(prev)
		if err := g.store.Del(ctx, g.keys.Entry(stale).StorageKeys()...); err != nil {
			// marker already moved on; the stale entry falls to its own TTL
			g.log.Warn("evict previous entry failed", Fields{"prev": string(stale), "err": err})
		}
	}

	g.hooks.GuardMiss(string(stale), string(key))
	g.log.Debug("filter changed", Fields{"prev": string(stale), "next": string(key)})
	return false, nil
}

// Evict drops the marker if it still names key, so the next request repopulates.
// Read and delete are separate commands; losing a race only costs one extra
// population.
func (g *Guard) Evict(ctx context.Context, key FilterKey) error {
	marker := g.keys.Marker()
	cur, ok, err := g.store.Get(ctx, marker)
	if err != nil {
		return fmt.Errorf("guard: read marker: %w", err)
	}
	if !ok || string(cur) != string(key) {
		return nil
	}
	if err := g.store.Del(ctx, marker); err != nil {
		return fmt.Errorf("guard: delete marker: %w", err)
	}
	g.log.Debug("marker evicted", Fields{"key": string(key)})
	return nil
}
