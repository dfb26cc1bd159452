// Package singleflight coalesces concurrent calls that share a key.
package singleflight

import (
	"context"
	"sync"
)

// Group runs fn at most once per key at a time. Callers arriving while a
// call is in flight wait for its result instead of starting their own.
//
// Concurrency notes:
//   - The first caller for a key starts fn on its own goroutine; every
//     caller, that one included, then waits for the result.
//   - Publishing (val, err) happens-before close(done), so callers read
//     the final values after <-done.
//   - A caller whose ctx ends stops waiting and returns ctx.Err(); fn keeps
//     running for the others. fn must not depend on any one caller's ctx.
type Group[K comparable, V any] struct {
	mu sync.Mutex
	m  map[K]*call[V]
}

type call[V any] struct {
	done    chan struct{} // closed when val/err are published
	val     V
	err     error
	waiters int  // followers that joined; guarded by Group.mu
	shared  bool // waiters > 0 when fn returned; published before done
}

// Do runs fn for key unless a call is already in flight, in which case it
// waits for that call. shared reports whether the result went to more than
// one caller.
func (g *Group[K, V]) Do(ctx context.Context, key K, fn func() (V, error)) (v V, shared bool, err error) {
	g.mu.Lock()
	if g.m == nil {
		g.m = make(map[K]*call[V])
	}
	if c, ok := g.m[key]; ok {
		c.waiters++
		g.mu.Unlock()

		select {
		case <-c.done:
			return c.val, true, c.err
		case <-ctx.Done():
			var zero V
			return zero, false, ctx.Err()
		}
	}

	c := &call[V]{done: make(chan struct{})}
	g.m[key] = c
	g.mu.Unlock()

	go g.run(key, c, fn)

	select {
	case <-c.done:
		return c.val, c.shared, c.err
	case <-ctx.Done():
		var zero V
		return zero, false, ctx.Err()
	}
}

func (g *Group[K, V]) run(key K, c *call[V], fn func() (V, error)) {
	c.val, c.err = fn()

	g.mu.Lock()
	delete(g.m, key)
	c.shared = c.waiters > 0
	g.mu.Unlock()
	close(c.done)
}

// InFlight reports whether a call for key is currently running.
func (g *Group[K, V]) InFlight(key K) bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	_, ok := g.m[key]
	return ok
}
