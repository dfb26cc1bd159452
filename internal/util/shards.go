package util

import (
	"math/bits"
	"runtime"
)

// maxShards caps the shard count.
const maxShards = 256

// NextPow2 returns the smallest power of two >= x (1 for x <= 1).
func NextPow2(x int) int {
	if x <= 1 {
		return 1
	}
	return 1 << bits.Len(uint(x-1))
}

// ShardCount normalizes a requested shard count. Non-positive values pick
// nextPow2(2*GOMAXPROCS); explicit values are rounded up to a power of two
// so callers can mask instead of mod. Both are clamped to [1..256].
func ShardCount(requested int) int {
	if requested > 0 {
		if requested >= maxShards {
			return maxShards
		}
		return NextPow2(requested)
	}
	p := runtime.GOMAXPROCS(0)
	if p < 1 {
		p = 1
	}
	n := NextPow2(2 * p)
	if n > maxShards {
		n = maxShards
	}
	return n
}

// ShardIndex maps a hash to a shard index. shards must be a power of two.
func ShardIndex(hash uint64, shards int) int {
	if shards <= 1 {
		return 0
	}
	return int(hash & uint64(shards-1))
}
