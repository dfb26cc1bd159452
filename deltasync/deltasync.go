// Package deltasync runs one poll of an upstream list through the list
// cache: fetch the fresh list, diff it against the cached one, store it and
// hand back what the client has to apply.
package deltasync

import (
	"context"
	"fmt"
	"log/slog"
	"slices"
	"time"

	"github.com/IvanBrykalov/deltacache/delta"
	"github.com/IvanBrykalov/deltacache/internal/singleflight"
	"github.com/IvanBrykalov/deltacache/listcache"
)

// Store is the part of *listcache.Cache a Syncer needs.
type Store interface {
	Get(k listcache.Key) (listcache.Snapshot, bool)
	Put(k listcache.Key, items []delta.Item) (string, error)
}

// Fetcher returns the current full list from the upstream API.
type Fetcher func(ctx context.Context) ([]delta.Item, error)

// Request is one client poll. Cursor is the value the client received from
// its previous poll, empty on the first one.
type Request struct {
	Key    listcache.Key
	Cursor string
}

// Result is what the client applies. When Full is set, Data is the complete
// list and replaces whatever the client holds; otherwise Data holds new and
// changed items and Removed the ids to drop.
type Result struct {
	Data    []delta.Item `json:"data"`
	Removed []string     `json:"removed"`
	Cursor  string       `json:"cursor"`
	Full    bool         `json:"full"`
}

// Observer receives one call per answered poll.
type Observer interface {
	ObserveSync(rt listcache.ResourceType, full bool, changed, removed, total int)
}

// DefaultFetchTimeout bounds one shared upstream fetch.
const DefaultFetchTimeout = 30 * time.Second

// Options configures a Syncer.
type Options struct {
	// StrictCursor answers with a full list when the presented cursor is not
	// the one stored for the key. Off by default: a delta is always computed
	// against the latest cached list whatever cursor the client sends.
	StrictCursor bool

	// FetchTimeout bounds the upstream fetch shared by coalesced polls. The
	// fetch does not inherit any single caller's cancellation, so one client
	// going away does not fail the others. 0 => DefaultFetchTimeout;
	// negative => no bound.
	FetchTimeout time.Duration

	Observer Observer
	Logger   *slog.Logger // nil => discard
}

// Syncer is safe for concurrent use. Concurrent polls for the same key
// share one upstream fetch; they would have diffed against the same cached
// list anyway.
type Syncer struct {
	store Store
	opt   Options
	sf    singleflight.Group[listcache.Key, outcome]
}

// New returns a Syncer backed by store.
func New(store Store, opt Options) *Syncer {
	if opt.Logger == nil {
		opt.Logger = slog.New(slog.DiscardHandler)
	}
	if opt.FetchTimeout == 0 {
		opt.FetchTimeout = DefaultFetchTimeout
	}
	return &Syncer{store: store, opt: opt}
}

// outcome is the shared product of one coalesced refresh.
type outcome struct {
	items      []delta.Item
	delta      delta.Delta
	hadPrev    bool
	prevCursor string
	cursor     string
}

// Sync answers one poll. Errors come only from fetch (or ctx); cache
// trouble degrades to a full answer. Each caller gets its own copy of the
// result slices.
func (s *Syncer) Sync(ctx context.Context, req Request, fetch Fetcher) (Result, error) {
	out, shared, err := s.sf.Do(ctx, req.Key, func() (outcome, error) {
		fctx, cancel := s.fetchContext(ctx)
		defer cancel()
		return s.refresh(fctx, req.Key, fetch)
	})
	if err != nil {
		return Result{}, err
	}

	res := out.resultFor(req.Cursor, s.opt.StrictCursor)
	if s.opt.Observer != nil {
		s.opt.Observer.ObserveSync(req.Key.ResourceType, res.Full, len(res.Data), len(res.Removed), len(out.items))
	}
	s.opt.Logger.Debug("deltasync: poll",
		"key", req.Key.String(),
		"full", res.Full,
		"changed", len(res.Data),
		"removed", len(res.Removed),
		"shared", shared)
	return res, nil
}

// fetchContext keeps ctx values but drops its cancellation.
func (s *Syncer) fetchContext(ctx context.Context) (context.Context, context.CancelFunc) {
	ctx = context.WithoutCancel(ctx)
	if s.opt.FetchTimeout < 0 {
		return ctx, func() {}
	}
	return context.WithTimeout(ctx, s.opt.FetchTimeout)
}

func (s *Syncer) refresh(ctx context.Context, k listcache.Key, fetch Fetcher) (outcome, error) {
	items, err := fetch(ctx)
	if err != nil {
		return outcome{}, fmt.Errorf("deltasync: fetch %s: %w", k, err)
	}

	prev, ok := s.store.Get(k)
	out := outcome{
		items:      items,
		delta:      delta.Compute(prev.Items, items),
		hadPrev:    ok,
		prevCursor: prev.Cursor,
	}

	cursor, err := s.store.Put(k, items)
	if err != nil {
		s.opt.Logger.Warn("deltasync: cache store failed; answering in full",
			"key", k.String(), "err", err)
		out.hadPrev = false
		return out, nil
	}
	out.cursor = cursor
	return out, nil
}

func (o outcome) resultFor(clientCursor string, strict bool) Result {
	full := !o.hadPrev || clientCursor == "" || (strict && clientCursor != o.prevCursor)
	if full {
		return Result{
			Data:    slices.Clone(nonNil(o.items)),
			Removed: make([]string, 0),
			Cursor:  o.cursor,
			Full:    true,
		}
	}
	return Result{
		Data:    slices.Clone(o.delta.Data),
		Removed: slices.Clone(o.delta.Removed),
		Cursor:  o.cursor,
	}
}

func nonNil(items []delta.Item) []delta.Item {
	if items == nil {
		return make([]delta.Item, 0)
	}
	return items
}
