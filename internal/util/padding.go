package util

import (
	"sync/atomic"
	"unsafe"
)

// CacheLineSize is a reasonable default for most modern CPUs.
const CacheLineSize = 64

// CacheLinePad separates hot fields into distinct cache lines.
type CacheLinePad struct{ _ [CacheLineSize]byte }

// PaddedCounter is an atomic int64 padded to one cache line so per-shard
// counters bumped by different goroutines do not false-share.
type PaddedCounter struct {
	atomic.Int64
	_ [CacheLineSize - 8]byte
}

// compile-time size check: exactly one cache line
var _ [CacheLineSize - int(unsafe.Sizeof(PaddedCounter{}))]byte
