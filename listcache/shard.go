package listcache

import (
	"sync"

	"github.com/IvanBrykalov/deltacache/internal/util"
)

// shard is an independent partition of the cache with its own lock, map,
// and an intrusive access-ordered list (head = most recently accessed).
//
// Because every Get and Put stamps its entry under the lock and moves it to
// the head, the tail is always the idlest entry and a sweep can stop at the
// first entry that is still fresh.
type shard struct {
	// ---- guarded by mu ----
	mu   sync.Mutex
	m    map[Key]*entry
	head *entry
	tail *entry
	cap  int // per-shard entry limit (0 = unbounded)

	c *Cache

	// ---- hot counters (separate cache lines to avoid false sharing) ----
	_      util.CacheLinePad
	hits   util.PaddedCounter
	misses util.PaddedCounter
	evicts util.PaddedCounter
}

func newShard(c *Cache, capacity int) *shard {
	return &shard{
		m:   make(map[Key]*entry),
		cap: capacity,
		c:   c,
	}
}

// get returns the live entry for k and refreshes its access time.
// An entry idle longer than the TTL is evicted and counted as a miss; hits
// are counted by the caller once the payload decoded.
func (s *shard) get(k Key) (*entry, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.c.now()
	e, ok := s.m[k]
	if !ok {
		s.miss()
		return nil, false
	}
	if s.c.expired(e, now) {
		s.evictLocked(e, EvictTTL)
		s.miss()
		return nil, false
	}
	e.access = now
	s.moveToFront(e)
	return e, true
}

// put installs e as the only entry for e.key, replacing any previous one.
func (s *shard) put(e *entry) {
	s.mu.Lock()
	defer s.mu.Unlock()

	e.access = s.c.now()
	if old, ok := s.m[e.key]; ok {
		s.unlink(old)
		s.c.account(-1, -old.size())
	}
	s.m[e.key] = e
	s.pushFront(e)
	s.c.account(1, e.size())

	if s.cap > 0 {
		for len(s.m) > s.cap && s.tail != nil && s.tail != e {
			s.evictLocked(s.tail, EvictCapacity)
		}
	}
	s.c.reportSize()
}

// remove deletes k if present. Explicit removals are not evictions.
func (s *shard) remove(k Key) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	e, ok := s.m[k]
	if !ok {
		return false
	}
	s.unlink(e)
	delete(s.m, k)
	s.c.account(-1, -e.size())
	s.c.reportSize()
	return true
}

// drop evicts e only if it is still the resident entry for its key; a Put
// that raced in after e was read must not be thrown away.
func (s *shard) drop(e *entry, reason EvictReason) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if cur, ok := s.m[e.key]; !ok || cur != e {
		return false
	}
	s.evictLocked(e, reason)
	return true
}

// sweep evicts every entry idle longer than the TTL and returns the count.
func (s *shard) sweep() int {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.c.now()
	n := 0
	for s.tail != nil && s.c.expired(s.tail, now) {
		s.evictLocked(s.tail, EvictTTL)
		n++
	}
	return n
}

func (s *shard) len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.m)
}

func (s *shard) hit() {
	s.hits.Add(1)
	s.c.opt.Metrics.Hit()
}

func (s *shard) miss() {
	s.misses.Add(1)
	s.c.opt.Metrics.Miss()
}

// -------------------- internals (mu held) --------------------

func (s *shard) evictLocked(e *entry, reason EvictReason) {
	s.unlink(e)
	delete(s.m, e.key)
	s.evicts.Add(1)
	s.c.account(-1, -e.size())
	s.c.opt.Metrics.Evict(reason)
	s.c.reportSize()
	if cb := s.c.opt.OnEvict; cb != nil {
		cb(e.key, reason)
	}
}

func (s *shard) pushFront(e *entry) {
	e.prev = nil
	e.next = s.head
	if s.head != nil {
		s.head.prev = e
	}
	s.head = e
	if s.tail == nil {
		s.tail = e
	}
}

func (s *shard) moveToFront(e *entry) {
	if e == s.head {
		return
	}
	s.unlink(e)
	s.pushFront(e)
}

func (s *shard) unlink(e *entry) {
	if e.prev != nil {
		e.prev.next = e.next
	}
	if e.next != nil {
		e.next.prev = e.prev
	}
	if s.head == e {
		s.head = e.next
	}
	if s.tail == e {
		s.tail = e.prev
	}
	e.prev, e.next = nil, nil
}
