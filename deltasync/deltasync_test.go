package deltasync

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/sync/errgroup"

	"github.com/IvanBrykalov/deltacache/delta"
	"github.com/IvanBrykalov/deltacache/listcache"
)

var key = listcache.Key{Credential: "tok", ResourceType: listcache.Torrents}

func newCache(t *testing.T) *listcache.Cache {
	t.Helper()
	c, err := listcache.New(listcache.Options{SweepInterval: -1})
	require.NoError(t, err)
	t.Cleanup(func() { _ = c.Close() })
	return c
}

func list(t *testing.T, kv ...string) []delta.Item {
	t.Helper()
	items := make([]delta.Item, 0, len(kv)/2)
	for i := 0; i+1 < len(kv); i += 2 {
		it, err := delta.ParseItem([]byte(fmt.Sprintf(`{"id":%q,"state":%q}`, kv[i], kv[i+1])))
		require.NoError(t, err)
		items = append(items, it)
	}
	return items
}

func static(items []delta.Item) Fetcher {
	return func(context.Context) ([]delta.Item, error) { return items, nil }
}

func ids(items []delta.Item) []string {
	out := make([]string, 0, len(items))
	for _, it := range items {
		out = append(out, it.ID)
	}
	return out
}

func TestSync_FirstPollIsFull(t *testing.T) {
	t.Parallel()

	s := New(newCache(t), Options{})
	res, err := s.Sync(context.Background(), Request{Key: key}, static(list(t, "1", "dl", "2", "dl")))
	require.NoError(t, err)

	assert.True(t, res.Full)
	assert.Equal(t, []string{"1", "2"}, ids(res.Data))
	assert.Empty(t, res.Removed)
	assert.NotEmpty(t, res.Cursor)
}

func TestSync_FollowUpPollIsDelta(t *testing.T) {
	t.Parallel()

	s := New(newCache(t), Options{})
	ctx := context.Background()

	first, err := s.Sync(ctx, Request{Key: key}, static(list(t, "1", "dl", "2", "dl", "3", "dl")))
	require.NoError(t, err)

	second, err := s.Sync(ctx, Request{Key: key, Cursor: first.Cursor},
		static(list(t, "1", "dl", "2", "seeding", "4", "queued")))
	require.NoError(t, err)

	assert.False(t, second.Full)
	assert.Equal(t, []string{"2", "4"}, ids(second.Data))
	assert.Equal(t, []string{"3"}, second.Removed)
	assert.NotEqual(t, first.Cursor, second.Cursor)

	third, err := s.Sync(ctx, Request{Key: key, Cursor: second.Cursor},
		static(list(t, "1", "dl", "2", "seeding", "4", "queued")))
	require.NoError(t, err)
	assert.Empty(t, third.Data)
	assert.Empty(t, third.Removed)
	assert.NotNil(t, third.Data)
}

func TestSync_NoCursorWithWarmCacheIsFull(t *testing.T) {
	t.Parallel()

	s := New(newCache(t), Options{})
	ctx := context.Background()
	_, err := s.Sync(ctx, Request{Key: key}, static(list(t, "1", "dl")))
	require.NoError(t, err)

	res, err := s.Sync(ctx, Request{Key: key}, static(list(t, "1", "dl", "2", "dl")))
	require.NoError(t, err)
	assert.True(t, res.Full)
	assert.Equal(t, []string{"1", "2"}, ids(res.Data))
}

// Without StrictCursor a stale cursor still gets a delta against the latest
// cached list.
func TestSync_StaleCursorDefaultDiffsAgainstLatest(t *testing.T) {
	t.Parallel()

	s := New(newCache(t), Options{})
	ctx := context.Background()
	first, _ := s.Sync(ctx, Request{Key: key}, static(list(t, "1", "a")))
	_, _ = s.Sync(ctx, Request{Key: key, Cursor: first.Cursor}, static(list(t, "1", "b")))

	res, err := s.Sync(ctx, Request{Key: key, Cursor: first.Cursor}, static(list(t, "1", "b")))
	require.NoError(t, err)
	assert.False(t, res.Full)
	assert.Empty(t, res.Data, "diffed against the intermediate state, not the client's")
}

func TestSync_StrictCursorForcesFullOnMismatch(t *testing.T) {
	t.Parallel()

	s := New(newCache(t), Options{StrictCursor: true})
	ctx := context.Background()
	first, _ := s.Sync(ctx, Request{Key: key}, static(list(t, "1", "a")))
	second, _ := s.Sync(ctx, Request{Key: key, Cursor: first.Cursor}, static(list(t, "1", "b")))
	assert.False(t, second.Full)
	assert.Equal(t, []string{"1"}, ids(second.Data))

	stale, err := s.Sync(ctx, Request{Key: key, Cursor: first.Cursor}, static(list(t, "1", "b")))
	require.NoError(t, err)
	assert.True(t, stale.Full)
	assert.Equal(t, []string{"1"}, ids(stale.Data))
}

func TestSync_FetchErrorLeavesCacheUntouched(t *testing.T) {
	t.Parallel()

	c := newCache(t)
	s := New(c, Options{})
	boom := errors.New("upstream 502")

	_, err := s.Sync(context.Background(), Request{Key: key}, func(context.Context) ([]delta.Item, error) {
		return nil, boom
	})
	assert.ErrorIs(t, err, boom)
	assert.Equal(t, 0, c.Len())
}

type failingStore struct{ listcache.Snapshot }

func (f failingStore) Get(listcache.Key) (listcache.Snapshot, bool) { return f.Snapshot, true }
func (failingStore) Put(listcache.Key, []delta.Item) (string, error) {
	return "", listcache.ErrClosed
}

func TestSync_StoreFailureDegradesToFull(t *testing.T) {
	t.Parallel()

	s := New(failingStore{listcache.Snapshot{Cursor: "old"}}, Options{})
	res, err := s.Sync(context.Background(), Request{Key: key, Cursor: "old"}, static(list(t, "1", "a")))
	require.NoError(t, err)
	assert.True(t, res.Full)
	assert.Empty(t, res.Cursor)
	assert.Equal(t, []string{"1"}, ids(res.Data))
}

func TestSync_ConcurrentPollsShareOneFetch(t *testing.T) {
	t.Parallel()

	s := New(newCache(t), Options{})
	var fetches atomic.Int32
	release := make(chan struct{})
	items := list(t, "1", "a", "2", "b")

	fetch := func(context.Context) ([]delta.Item, error) {
		fetches.Add(1)
		<-release
		return items, nil
	}

	const n = 8
	var g errgroup.Group
	cursors := make([]string, n)
	for i := 0; i < n; i++ {
		g.Go(func() error {
			res, err := s.Sync(context.Background(), Request{Key: key}, fetch)
			cursors[i] = res.Cursor
			return err
		})
	}
	require.Eventually(t, func() bool { return fetches.Load() == 1 }, time.Second, time.Millisecond)
	time.Sleep(20 * time.Millisecond)
	close(release)
	require.NoError(t, g.Wait())

	assert.LessOrEqual(t, fetches.Load(), int32(n))
	first := cursors[0]
	shared := 0
	for _, c := range cursors {
		if c == first {
			shared++
		}
	}
	assert.Greater(t, shared, 1, "coalesced callers receive the same cursor")
}

type recObserver struct {
	mu    sync.Mutex
	calls []string
}

func (o *recObserver) ObserveSync(rt listcache.ResourceType, full bool, changed, removed, total int) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.calls = append(o.calls, fmt.Sprintf("%s full=%v %d/%d/%d", rt, full, changed, removed, total))
}

func TestSync_ReportsToObserver(t *testing.T) {
	t.Parallel()

	obs := &recObserver{}
	s := New(newCache(t), Options{Observer: obs})
	ctx := context.Background()
	first, _ := s.Sync(ctx, Request{Key: key}, static(list(t, "1", "a", "2", "a")))
	_, _ = s.Sync(ctx, Request{Key: key, Cursor: first.Cursor}, static(list(t, "1", "b")))

	assert.Equal(t, []string{
		"torrents full=true 2/0/2",
		"torrents full=false 1/1/1",
	}, obs.calls)
}

// The poll that started the shared fetch goes away; polls still waiting
// must get the list, not its context error.
func TestSync_CallerCancelDoesNotFailSharedPoll(t *testing.T) {
	t.Parallel()

	s := New(newCache(t), Options{})
	started := make(chan struct{})
	release := make(chan struct{})
	items := list(t, "1", "a")

	fetch := func(ctx context.Context) ([]delta.Item, error) {
		close(started)
		select {
		case <-release:
			return items, nil
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}

	ctx, cancel := context.WithCancel(context.Background())
	first := make(chan error, 1)
	go func() {
		_, err := s.Sync(ctx, Request{Key: key}, fetch)
		first <- err
	}()
	<-started

	second := make(chan Result, 1)
	go func() {
		res, err := s.Sync(context.Background(), Request{Key: key}, fetch)
		assert.NoError(t, err)
		second <- res
	}()
	time.Sleep(20 * time.Millisecond) // let the second poll join

	cancel()
	assert.ErrorIs(t, <-first, context.Canceled)

	close(release)
	res := <-second
	assert.Equal(t, []string{"1"}, ids(res.Data))
}

func TestSync_FetchTimeoutBoundsSharedFetch(t *testing.T) {
	t.Parallel()

	s := New(newCache(t), Options{FetchTimeout: 10 * time.Millisecond})
	_, err := s.Sync(context.Background(), Request{Key: key}, func(ctx context.Context) ([]delta.Item, error) {
		<-ctx.Done()
		return nil, ctx.Err()
	})
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

// Coalesced polls must not alias each other's result slices.
func TestSync_SharedResultsAreIndependent(t *testing.T) {
	t.Parallel()

	c := newCache(t)
	s := New(c, Options{})
	first, err := s.Sync(context.Background(), Request{Key: key}, static(list(t, "1", "a", "2", "a")))
	require.NoError(t, err)

	release := make(chan struct{})
	next := list(t, "1", "b")
	fetch := func(context.Context) ([]delta.Item, error) {
		<-release
		return next, nil
	}

	const n = 4
	var g errgroup.Group
	results := make([]Result, n)
	for i := 0; i < n; i++ {
		g.Go(func() error {
			var err error
			results[i], err = s.Sync(context.Background(), Request{Key: key, Cursor: first.Cursor}, fetch)
			return err
		})
	}
	time.Sleep(20 * time.Millisecond)
	close(release)
	require.NoError(t, g.Wait())

	results[0].Data[0] = delta.Item{ID: "mutated"}
	results[0].Removed[0] = "mutated"
	for _, r := range results[1:] {
		assert.Equal(t, []string{"1"}, ids(r.Data))
		assert.Equal(t, []string{"2"}, r.Removed)
	}
	assert.Equal(t, "1", next[0].ID, "fetched list is not aliased either")
}
