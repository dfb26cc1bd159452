// Package util contains internal helpers (key hashing, shard sizing, padding).
//revive:disable:var-naming  // allow 'util' as an internal helpers package name
package util

const (
	fnvOffset64 = 1469598103934665603
	fnvPrime64  = 1099511628211
)

// HashKey hashes a composite key of string parts with 64-bit FNV-1a.
// A zero byte is mixed in between parts so that ("ab", "c") and ("a", "bc")
// land on different hashes.
func HashKey(parts ...string) uint64 {
	h := uint64(fnvOffset64)
	for i, p := range parts {
		if i > 0 {
			h *= fnvPrime64 // separator byte 0x00
		}
		for j := 0; j < len(p); j++ {
			h ^= uint64(p[j])
			h *= fnvPrime64
		}
	}
	return h
}
