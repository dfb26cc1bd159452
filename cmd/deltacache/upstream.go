package main

import (
	"context"
	"fmt"
	"math/rand"
	"sync"

	"github.com/IvanBrykalov/deltacache/delta"
	"github.com/IvanBrykalov/deltacache/deltasync"
	"github.com/IvanBrykalov/deltacache/listcache"
)

// upstream simulates the remote list API: every fetch mutates a fraction of
// the items so pollers see realistic churn.
type upstream struct {
	mu      sync.Mutex
	r       *rand.Rand
	lists   map[listcache.Key][]delta.Item
	version map[listcache.Key]int
	nextID  int

	size      int
	changePct int
	addPct    int
	removePct int
}

func newUpstream(seed int64, size, changePct, addPct, removePct int) *upstream {
	return &upstream{
		r:         rand.New(rand.NewSource(seed)),
		lists:     make(map[listcache.Key][]delta.Item),
		version:   make(map[listcache.Key]int),
		size:      size,
		changePct: changePct,
		addPct:    addPct,
		removePct: removePct,
	}
}

// fetcher binds a key so the result can be passed to Syncer.Sync.
func (u *upstream) fetcher(k listcache.Key) deltasync.Fetcher {
	return func(ctx context.Context) ([]delta.Item, error) {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		return u.fetch(k), nil
	}
}

func (u *upstream) fetch(k listcache.Key) []delta.Item {
	u.mu.Lock()
	defer u.mu.Unlock()

	list, ok := u.lists[k]
	if !ok {
		list = make([]delta.Item, 0, u.size)
		for i := 0; i < u.size; i++ {
			list = append(list, u.newItem(k, 0))
		}
	}
	u.version[k]++
	ver := u.version[k]

	next := make([]delta.Item, 0, len(list)+1)
	for _, it := range list {
		switch roll := u.r.Intn(100); {
		case roll < u.removePct:
			continue
		case roll < u.removePct+u.changePct:
			next = append(next, u.stamp(it.ID, ver))
		default:
			next = append(next, it)
		}
	}
	if u.r.Intn(100) < u.addPct {
		next = append(next, u.newItem(k, ver))
	}
	u.lists[k] = next

	out := make([]delta.Item, len(next))
	copy(out, next)
	return out
}

func (u *upstream) newItem(k listcache.Key, ver int) delta.Item {
	u.nextID++
	return u.stamp(fmt.Sprintf("%s-%d", k.ResourceType, u.nextID), ver)
}

func (u *upstream) stamp(id string, ver int) delta.Item {
	raw := fmt.Sprintf(`{"id":%q,"name":"%s.mkv","progress":%.3f,"state":"downloading","updated_at":"v%d"}`,
		id, id, u.r.Float64(), ver)
	it, err := delta.ParseItem([]byte(raw))
	if err != nil {
		panic(err) // the literal above is always a valid object
	}
	return it
}
