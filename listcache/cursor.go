package listcache

import (
	"crypto/rand"
	"encoding/hex"
	"strconv"
)

// newCursor returns "<base36 nanos>-<16 hex chars>". The clock part orders
// cursors for humans reading logs; the random suffix keeps two writes in the
// same nanosecond (or under a frozen test clock) apart.
func newCursor(nowNano int64) string {
	var b [8]byte
	_, _ = rand.Read(b[:]) // never fails since Go 1.24
	return strconv.FormatInt(nowNano, 36) + "-" + hex.EncodeToString(b[:])
}
