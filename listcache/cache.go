package listcache

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/IvanBrykalov/deltacache/delta"
	"github.com/IvanBrykalov/deltacache/internal/util"
)

// ErrClosed is returned by Put after Close.
var ErrClosed = errors.New("listcache: cache closed")

// ResourceType names the kind of upstream list being cached.
type ResourceType string

const (
	Torrents     ResourceType = "torrents"
	Usenet       ResourceType = "usenet"
	WebDownloads ResourceType = "webdl"
)

// Key identifies one cached list. At most one entry exists per Key.
type Key struct {
	Credential   string
	ResourceType ResourceType
}

// String renders the key for logs without leaking the credential.
func (k Key) String() string {
	return fmt.Sprintf("%s/%08x", k.ResourceType, uint32(util.HashKey(k.Credential)))
}

func (k Key) hash() uint64 { return util.HashKey(k.Credential, string(k.ResourceType)) }

// Snapshot is the last full list stored for a key and the cursor issued
// when it was stored.
type Snapshot struct {
	Items  []delta.Item
	Cursor string
}

// Cache holds the last polled list per Key, compressed, and expires entries
// that have not been read or written for Options.TTL.
// All methods are safe for concurrent use by multiple goroutines.
type Cache struct {
	shards []*shard
	codec  *codec
	opt    Options

	// codecMu is held shared around encode/decode and exclusively by Close,
	// so the zstd coders are never closed under a running call.
	codecMu sync.RWMutex
	ttl    int64

	closed  atomic.Bool
	entries atomic.Int64
	bytes   atomic.Int64

	stop context.CancelFunc
	done chan struct{}
}

// New constructs a cache and starts its background sweeper (unless
// Options.SweepInterval is negative). Call Close to stop the sweeper.
func New(opt Options) (*Cache, error) {
	opt = opt.withDefaults()

	cd, err := newCodec(opt.CompressionLevel)
	if err != nil {
		return nil, err
	}

	n := util.ShardCount(opt.Shards)
	perShardCap := 0
	if opt.MaxEntries > 0 {
		perShardCap = (opt.MaxEntries + n - 1) / n // ceil
	}

	c := &Cache{
		codec: cd,
		opt:   opt,
		ttl:   int64(opt.TTL),
	}
	c.shards = make([]*shard, n)
	for i := range c.shards {
		c.shards[i] = newShard(c, perShardCap)
	}

	if opt.SweepInterval > 0 {
		c.startSweeper(opt.SweepInterval)
	}
	return c, nil
}

// Get returns the stored list for k and refreshes its lifetime.
// It reports false when nothing is stored, the entry has been idle longer
// than the TTL, or the stored payload cannot be decoded (such an entry is
// dropped). None of these are errors: the caller treats the poll as full.
func (c *Cache) Get(k Key) (Snapshot, bool) {
	if c.closed.Load() {
		return Snapshot{}, false
	}
	s := c.shardFor(k)
	e, ok := s.get(k)
	if !ok {
		return Snapshot{}, false
	}

	c.codecMu.RLock()
	if c.closed.Load() {
		c.codecMu.RUnlock()
		return Snapshot{}, false
	}
	items, err := c.codec.decode(e.payload)
	c.codecMu.RUnlock()
	if err != nil {
		if !c.closed.Load() && s.drop(e, EvictCorrupt) {
			c.opt.Logger.Warn("listcache: dropped corrupt entry",
				"key", k.String(), "err", err)
		}
		s.miss()
		return Snapshot{}, false
	}
	s.hit()
	return Snapshot{Items: items, Cursor: e.cursor}, true
}

// Put stores items as the full list for k, replacing any previous entry,
// and returns a new cursor. It fails only when items cannot be encoded
// (a payload that is not valid JSON) or the cache is closed.
func (c *Cache) Put(k Key, items []delta.Item) (string, error) {
	if c.closed.Load() {
		return "", ErrClosed
	}
	c.codecMu.RLock()
	if c.closed.Load() {
		c.codecMu.RUnlock()
		return "", ErrClosed
	}
	payload, err := c.codec.encode(items)
	c.codecMu.RUnlock()
	if err != nil {
		return "", err
	}
	e := &entry{
		key:     k,
		payload: payload,
		cursor:  newCursor(c.now()),
	}
	c.shardFor(k).put(e)
	return e.cursor, nil
}

// Remove deletes k if present and returns true on success.
func (c *Cache) Remove(k Key) bool {
	if c.closed.Load() {
		return false
	}
	return c.shardFor(k).remove(k)
}

// Len returns the number of resident lists across all shards.
func (c *Cache) Len() int {
	total := 0
	for _, s := range c.shards {
		total += s.len()
	}
	return total
}

// Bytes returns the total compressed size of all resident lists.
func (c *Cache) Bytes() int64 { return c.bytes.Load() }

// Stats sums per-shard counters.
func (c *Cache) Stats() Stats {
	st := Stats{Entries: int(c.entries.Load()), Bytes: c.bytes.Load()}
	for _, s := range c.shards {
		st.Hits += s.hits.Load()
		st.Misses += s.misses.Load()
		st.Evictions += s.evicts.Load()
	}
	return st
}

// Sweep removes every entry idle longer than the TTL, one shard at a time,
// and returns how many were removed. The background sweeper calls it on
// every tick; it is exported for callers that drive eviction themselves.
func (c *Cache) Sweep() int {
	if c.closed.Load() {
		return 0
	}
	start := time.Now()
	removed := 0
	for _, s := range c.shards {
		removed += s.sweep()
	}
	if removed > 0 {
		c.opt.Logger.Debug("listcache: sweep",
			"removed", removed,
			"remaining", c.entries.Load(),
			"took", time.Since(start))
	}
	return removed
}

// Close stops the sweeper and marks the cache closed. Later calls are
// ignored (Get misses, Put returns ErrClosed). Close is idempotent.
func (c *Cache) Close() error {
	if !c.closed.CompareAndSwap(false, true) {
		return nil
	}
	if c.stop != nil {
		c.stop()
		<-c.done
	}
	c.codecMu.Lock()
	c.codec.close()
	c.codecMu.Unlock()
	return nil
}

// ---- helpers ----

func (c *Cache) shardFor(k Key) *shard {
	return c.shards[util.ShardIndex(k.hash(), len(c.shards))]
}

func (c *Cache) now() int64 { return c.opt.Clock.NowUnixNano() }

func (c *Cache) expired(e *entry, now int64) bool { return now-e.access > c.ttl }

func (c *Cache) account(entries int, bytes int64) {
	c.entries.Add(int64(entries))
	c.bytes.Add(bytes)
}

func (c *Cache) reportSize() {
	c.opt.Metrics.Size(int(c.entries.Load()), c.bytes.Load())
}
