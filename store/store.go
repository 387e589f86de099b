// Package store defines the key-value capability used by filtercache.
//
// A Store holds two kinds of values under one keyspace: plain byte strings (the
// marker and the total count) and rank-ordered sequences (the cached rows).
// Implementations MUST be byte-for-byte transparent for both kinds and safe for
// concurrent use. Only single-key atomicity is required, plus Swap.
package store

import (
	"context"
	"time"
)

type Store interface {
	// Get returns (value, true, nil) on hit and (nil, false, nil) on miss or expiry.
	Get(ctx context.Context, key string) ([]byte, bool, error)

	// Set stores value. ttl <= 0 means no expiry.
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error

	// Swap atomically replaces the value at key and returns the previous one.
	// ok is false when there was no live previous value.
	Swap(ctx context.Context, key string, value []byte, ttl time.Duration) (prev []byte, ok bool, err error)

	// Del removes keys of either kind. Missing keys are not an error.
	Del(ctx context.Context, keys ...string) error

	// Append writes members into the sequence at key with ranks from, from+1, ...
	// Writing the same member at the same rank twice is a no-op. When ttl > 0 the
	// sequence expiry is refreshed.
	Append(ctx context.Context, key string, from int64, members [][]byte, ttl time.Duration) error

	// Range returns the members with rank in [start, stop], both inclusive, in rank
	// order. Negative indexes count from the end (-1 is the last member).
	Range(ctx context.Context, key string, start, stop int64) ([][]byte, error)

	// Close releases resources.
	Close(ctx context.Context) error
}

// Pinger is implemented by stores backed by a remote server.
type Pinger interface {
	Ping(ctx context.Context) error
}
