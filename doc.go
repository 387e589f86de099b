// Package filtercache implements a single-slot, TTL-guarded cache for filtered and
// paginated result sets.
//
// The first request under a new filter combination runs the full filtered query once,
// answers from that in-memory result and hands the rows to a background population job.
// The job writes them into a key-value store as a rank-ordered sequence followed by a
// total count. Later requests under the same filter read their page straight from the
// store until the filter changes or the marker expires.
//
// Components:
//   - Guard: compares the requested FilterKey with the marker slot; on mismatch it evicts
//     and swaps the marker.
//   - Populator[V]: encodes rows and writes the entry off the request path (dispatch.Pool).
//   - Reader[V]: reads one page of the sequence plus the total count.
//   - RowSource[V]: picks live query, cache read or fresh population per request.
//
// Keys:
//
//	<ns>:marker              - FilterKey of the last population (TTL, default 60s)
//	<ns>:rows:<filterkey>    - sorted set, score = rank, member = wire row envelope
//	<ns>:total:<filterkey>   - decimal row count, written last
//
// Usage:
//
//	src, _ := filtercache.New[people.Person](filtercache.Options[people.Person]{
//	    Namespace: "people",
//	    Store:     redisStore,
//	    Codec:     codec.JSON[people.Person]{},
//	    Query:     engine,
//	})
//	page, err := src.Rows(ctx, people.Filter{Month: &month}, 1, 20)
package filtercache
