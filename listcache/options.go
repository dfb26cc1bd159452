package listcache

import (
	"log/slog"
	"time"
)

// Defaults applied by New for zero Options fields.
const (
	DefaultTTL              = 30 * time.Minute
	DefaultSweepInterval    = 5 * time.Minute
	DefaultCompressionLevel = 3 // zstd "default" speed class
)

// EvictReason explains why an entry was removed.
type EvictReason int

const (
	// EvictTTL: idle longer than Options.TTL (lookup or sweep).
	EvictTTL EvictReason = iota
	// EvictCapacity: oldest-accessed entry dropped to honour MaxEntries.
	EvictCapacity
	// EvictCorrupt: stored payload failed to decompress or decode.
	EvictCorrupt
)

// String returns a stable label for the reason.
func (r EvictReason) String() string {
	switch r {
	case EvictTTL:
		return "ttl"
	case EvictCapacity:
		return "capacity"
	case EvictCorrupt:
		return "corrupt"
	default:
		return "unknown"
	}
}

// Metrics exposes cache-level observability hooks.
// A NoopMetrics implementation is used by default.
type Metrics interface {
	Hit()
	Miss()
	Evict(reason EvictReason)
	// Size reports cache-wide totals after a mutation.
	Size(entries int, bytes int64)
}

// Clock provides time in UnixNano; useful for deterministic tests.
type Clock interface{ NowUnixNano() int64 }

// Options configures a Cache. Zero values are safe; New applies defaults.
type Options struct {
	// TTL is the maximum idle time measured from the last Get or Put.
	// 0 => DefaultTTL.
	TTL time.Duration

	// SweepInterval is the period of the background eviction sweep.
	// 0 => DefaultSweepInterval; negative disables the sweeper (tests).
	SweepInterval time.Duration

	// CompressionLevel is a zstd level (1..22). 0 => DefaultCompressionLevel.
	CompressionLevel int

	// Shards defines the number of shards. If 0, ≈ 2*GOMAXPROCS rounded up
	// to a power of two.
	Shards int

	// MaxEntries bounds the number of resident lists (0 = unbounded). When
	// exceeded, the least recently accessed entry of the shard is dropped.
	MaxEntries int

	// OnEvict is called under the shard lock; keep callbacks lightweight.
	OnEvict func(k Key, reason EvictReason)
	Metrics Metrics

	// Logger receives sweep and corruption events. Nil => discard.
	Logger *slog.Logger

	// Clock allows overriding time source (tests). Nil => time.Now().
	Clock Clock
}

func (o Options) withDefaults() Options {
	if o.TTL <= 0 {
		o.TTL = DefaultTTL
	}
	if o.SweepInterval == 0 {
		o.SweepInterval = DefaultSweepInterval
	}
	if o.CompressionLevel <= 0 {
		o.CompressionLevel = DefaultCompressionLevel
	}
	if o.Metrics == nil {
		o.Metrics = NoopMetrics{}
	}
	if o.Logger == nil {
		o.Logger = slog.New(slog.DiscardHandler)
	}
	if o.Clock == nil {
		o.Clock = wallClock{}
	}
	return o
}

type wallClock struct{}

func (wallClock) NowUnixNano() int64 { return time.Now().UnixNano() }
