// Package listcache keeps the last polled version of large item lists
// (torrents, usenet and web downloads) per credential and resource type so
// that a poll can be answered with a delta instead of the full list.
//
// Design
//
//   - Concurrency: entries are spread over shards selected by hashing the
//     Key; each shard has its own mutex, so distinct keys rarely contend and
//     a Put is never observed half-applied (payload and cursor are swapped
//     together).
//
//   - Storage: each list is JSON-encoded and zstd-compressed at a mid-range
//     level. Entries are decompressed on nearly every access, so the level
//     favours speed over ratio.
//
//   - TTL: expiry is measured from the last Get or Put (sliding TTL). Expired
//     entries are removed lazily on lookup and by a background sweep every
//     Options.SweepInterval, which bounds memory for keys that are written
//     once and never read.
//
//   - Failure model: the cache is best effort. Misses, expiry and corrupt
//     payloads are all reported as a plain miss.
//
// Basic usage
//
//	c, err := listcache.New(listcache.Options{})
//	if err != nil { ... }
//	defer c.Close()
//
//	k := listcache.Key{Credential: token, ResourceType: listcache.Torrents}
//	prev, ok := c.Get(k)
//	d := delta.Compute(prev.Items, fresh) // prev.Items is nil on a miss
//	cursor, err := c.Put(k, fresh)
//
// Exporting metrics
//
//	m := prom.New(nil, "deltacache", "lists", nil) // implements Metrics
//	c, err := listcache.New(listcache.Options{Metrics: m})
package listcache
