package listcache

// entry is one cached list, owned by a shard. It is never mutated in place
// except for access bookkeeping; Put swaps in a fresh entry so a reader
// holding payload and cursor always sees a matching pair.
type entry struct {
	key     Key
	payload []byte // zstd-compressed encoding of the item list
	cursor  string

	// Last Get or Put in UnixNano; guarded by the shard lock.
	access int64

	// Intrusive access list links: head is most recent, tail is oldest.
	prev *entry
	next *entry
}

func (e *entry) size() int64 { return int64(len(e.payload)) }
