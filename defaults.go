package filtercache

import "time"

const (
	DefaultNamespace     = "people"
	DefaultMarkerTTL     = 60 * time.Second
	DefaultEntryTTL      = 10 * time.Minute
	DefaultPageSize      = 20
	defaultPopulateBatch = 500
)

// coalesce returns def when v is the zero value of T - otherwise v.
func coalesce[T comparable](v, def T) T {
	var zero T
	if v == zero {
		return def
	}
	return v
}
