package agency

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hupe1980/agencyhub/core"
)

var _ Builder = (*Factory)(nil)

type fakeGraph struct {
	name string

	mu     sync.Mutex
	thread string
}

func (g *fakeGraph) CurrentThreadID() string {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.thread
}

func (g *fakeGraph) RunTurn(_ context.Context, msg string) (string, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.thread == "" {
		g.thread = "thread_" + g.name
	}
	return "echo: " + msg, nil
}

func (g *fakeGraph) CreateThread(context.Context) (string, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.thread = "thread_new_" + g.name
	return g.thread, nil
}

func (g *fakeGraph) AgentIDs() map[string]string { return map[string]string{} }

func staticBuilder() BuilderFunc {
	return func(_ context.Context, agencyID string) (core.Graph, error) {
		return &fakeGraph{name: agencyID}, nil
	}
}

func newTestManager(t *testing.T, b Builder, optFns ...func(o *ManagerOptions)) *Manager {
	t.Helper()
	m, err := NewManager(b, optFns...)
	require.NoError(t, err)
	t.Cleanup(m.Close)
	return m
}

func TestCacheKey(t *testing.T) {
	assert.Equal(t, "a1", CacheKey("a1", ""))
	assert.Equal(t, "a1/t1", CacheKey("a1", "t1"))
}

func TestNewManager_InvalidCapacity(t *testing.T) {
	_, err := NewManager(staticBuilder(), func(o *ManagerOptions) { o.Capacity = 0 })
	assert.Error(t, err)
}

func TestManager_CreateCachesUnderAgencyKey(t *testing.T) {
	m := newTestManager(t, staticBuilder())

	g, id, err := m.Create(context.Background(), "a1")
	require.NoError(t, err)
	assert.Equal(t, "a1", id)

	cached, ok := m.Get("a1", "")
	require.True(t, ok)
	assert.Same(t, g, cached)

	_, ok = m.Get("a1", "t1")
	assert.False(t, ok)
}

func TestManager_CreateGeneratesID(t *testing.T) {
	m := newTestManager(t, staticBuilder())

	_, id, err := m.Create(context.Background(), "")
	require.NoError(t, err)
	assert.Regexp(t, regexp.MustCompile(`^[0-9a-f]{32}$`), id)

	_, ok := m.Get(id, "")
	assert.True(t, ok)
}

func TestManager_ConcurrentCreateGeneratesDistinctIDs(t *testing.T) {
	const n = 32
	m := newTestManager(t, staticBuilder())

	type created struct {
		g  core.Graph
		id string
	}
	results := make([]created, n)
	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			g, id, err := m.Create(context.Background(), "")
			assert.NoError(t, err)
			results[i] = created{g: g, id: id}
		}(i)
	}
	wg.Wait()

	ids := make(map[string]struct{}, n)
	for _, r := range results {
		require.NotNil(t, r.g)
		ids[r.id] = struct{}{}
		cached, ok := m.Get(r.id, "")
		require.True(t, ok, r.id)
		assert.Same(t, r.g, cached)
	}
	assert.Len(t, ids, n)
	assert.Equal(t, n, m.Len())
}

func TestManager_CreateFailureCachesNothing(t *testing.T) {
	notFound := BuilderFunc(func(_ context.Context, agencyID string) (core.Graph, error) {
		return nil, fmt.Errorf("agency %s: %w", agencyID, core.ErrConfigurationNotFound)
	})
	m := newTestManager(t, notFound)

	_, _, err := m.Create(context.Background(), "missing")
	assert.ErrorIs(t, err, core.ErrConfigurationNotFound)
	assert.Equal(t, 0, m.Len())

	invalid := BuilderFunc(func(_ context.Context, agencyID string) (core.Graph, error) {
		return nil, core.NewGraphConstructionError(agencyID, "undefined role", nil)
	})
	m2 := newTestManager(t, invalid)

	_, _, err = m2.Create(context.Background(), "bad")
	var gce *core.GraphConstructionError
	assert.True(t, errors.As(err, &gce))
	_, ok := m2.Get("bad", "")
	assert.False(t, ok)
}

func TestManager_CreateReplacesExisting(t *testing.T) {
	m := newTestManager(t, staticBuilder())

	first, _, err := m.Create(context.Background(), "a1")
	require.NoError(t, err)
	second, _, err := m.Create(context.Background(), "a1")
	require.NoError(t, err)

	assert.NotSame(t, first, second)
	cached, ok := m.Get("a1", "")
	require.True(t, ok)
	assert.Same(t, second, cached)
	assert.Equal(t, 1, m.Len())
}

func TestManager_PutAndEvict(t *testing.T) {
	m := newTestManager(t, staticBuilder())
	g := &fakeGraph{name: "x"}

	m.Put(g, "a1", "t1")
	got, ok := m.Get("a1", "t1")
	require.True(t, ok)
	assert.Same(t, g, got)

	other := &fakeGraph{name: "y"}
	m.Put(other, "a1", "t1")
	got, _ = m.Get("a1", "t1")
	assert.Same(t, other, got)

	m.Evict("a1", "t1")
	_, ok = m.Get("a1", "t1")
	assert.False(t, ok)

	assert.NotPanics(t, func() { m.Evict("a1", "t1") })
	assert.Equal(t, 0, m.Len())
}

func TestManager_ReconcileThreadID(t *testing.T) {
	m := newTestManager(t, staticBuilder())

	g, _, err := m.Create(context.Background(), "a1")
	require.NoError(t, err)

	id, changed := m.ReconcileThreadID(g, "a1", "")
	assert.False(t, changed)
	assert.Empty(t, id)

	_, err = g.RunTurn(context.Background(), "hi")
	require.NoError(t, err)

	id, changed = m.ReconcileThreadID(g, "a1", "")
	require.True(t, changed)
	assert.Equal(t, "thread_a1", id)

	_, ok := m.Get("a1", "")
	assert.False(t, ok)
	moved, ok := m.Get("a1", "thread_a1")
	require.True(t, ok)
	assert.Same(t, g, moved)
	assert.Equal(t, 1, m.Len())

	_, err = g.CreateThread(context.Background())
	require.NoError(t, err)
	id, changed = m.ReconcileThreadID(g, "a1", "thread_a1")
	require.True(t, changed)
	assert.Equal(t, "thread_new_a1", id)

	_, ok = m.Get("a1", "thread_a1")
	assert.False(t, ok)
	_, ok = m.Get("a1", "thread_new_a1")
	assert.True(t, ok)
}

func TestManager_ReconcileIsAtomic(t *testing.T) {
	m := newTestManager(t, staticBuilder())
	g := &fakeGraph{name: "a1", thread: "t2"}
	m.Put(g, "a1", "t1")

	var (
		wg     sync.WaitGroup
		misses atomic.Int64
		stop   atomic.Bool
	)
	wg.Add(1)
	go func() {
		defer wg.Done()
		for !stop.Load() {
			_, old := m.Get("a1", "t1")
			_, cur := m.Get("a1", "t2")
			if !old && !cur {
				misses.Add(1)
			}
		}
	}()

	m.ReconcileThreadID(g, "a1", "t1")
	time.Sleep(5 * time.Millisecond)
	stop.Store(true)
	wg.Wait()

	_, ok := m.Get("a1", "t2")
	assert.True(t, ok)
	assert.Zero(t, misses.Load())
}

func TestManager_EvictsLeastRecentlyUsed(t *testing.T) {
	m := newTestManager(t, staticBuilder(), func(o *ManagerOptions) { o.Capacity = 2 })

	m.Put(&fakeGraph{name: "1"}, "a1", "")
	m.Put(&fakeGraph{name: "2"}, "a2", "")
	_, _ = m.Get("a1", "")
	m.Put(&fakeGraph{name: "3"}, "a3", "")

	assert.Equal(t, 2, m.Len())
	_, ok := m.Get("a2", "")
	assert.False(t, ok)
	_, ok = m.Get("a1", "")
	assert.True(t, ok)
}

func TestManager_ReconcileAtCapacityKeepsOtherEntries(t *testing.T) {
	m := newTestManager(t, staticBuilder(), func(o *ManagerOptions) { o.Capacity = 2 })

	g := &fakeGraph{name: "a1", thread: "t1"}
	other := &fakeGraph{name: "b"}
	m.Put(g, "a1", "")
	m.Put(other, "b", "")
	_, _ = m.Get("a1", "")

	id, changed := m.ReconcileThreadID(g, "a1", "")
	require.True(t, changed)
	assert.Equal(t, "t1", id)

	assert.Equal(t, 2, m.Len())
	cached, ok := m.Get("b", "")
	require.True(t, ok)
	assert.Same(t, other, cached)
	moved, ok := m.Get("a1", "t1")
	require.True(t, ok)
	assert.Same(t, g, moved)
	_, ok = m.Get("a1", "")
	assert.False(t, ok)
}

func TestManager_CreateSerializedPerAgency(t *testing.T) {
	var (
		running atomic.Int32
		peak    atomic.Int32
	)
	b := BuilderFunc(func(_ context.Context, agencyID string) (core.Graph, error) {
		n := running.Add(1)
		for {
			p := peak.Load()
			if n <= p || peak.CompareAndSwap(p, n) {
				break
			}
		}
		time.Sleep(5 * time.Millisecond)
		running.Add(-1)
		return &fakeGraph{name: agencyID}, nil
	})
	m := newTestManager(t, b)

	var wg sync.WaitGroup
	for i := 0; i < 5; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, _, err := m.Create(context.Background(), "a1")
			assert.NoError(t, err)
		}()
	}
	wg.Wait()

	assert.Equal(t, int32(1), peak.Load())
	assert.Equal(t, 1, m.Len())
}

func TestManager_DifferentAgenciesBuildConcurrently(t *testing.T) {
	var started sync.WaitGroup
	started.Add(2)
	b := BuilderFunc(func(ctx context.Context, agencyID string) (core.Graph, error) {
		started.Done()
		done := make(chan struct{})
		go func() {
			started.Wait()
			close(done)
		}()
		select {
		case <-done:
			return &fakeGraph{name: agencyID}, nil
		case <-time.After(2 * time.Second):
			return nil, errors.New("builds did not overlap")
		}
	})
	m := newTestManager(t, b)

	var wg sync.WaitGroup
	for _, id := range []string{"a1", "a2"} {
		wg.Add(1)
		go func(id string) {
			defer wg.Done()
			_, _, err := m.Create(context.Background(), id)
			assert.NoError(t, err)
		}(id)
	}
	wg.Wait()
	assert.Equal(t, 2, m.Len())
}

func TestManager_CallerCancelLetsBuildFinish(t *testing.T) {
	release := make(chan struct{})
	b := BuilderFunc(func(_ context.Context, agencyID string) (core.Graph, error) {
		<-release
		return &fakeGraph{name: agencyID}, nil
	})
	m := newTestManager(t, b)

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	_, _, err := m.Create(ctx, "a1")
	assert.ErrorIs(t, err, context.DeadlineExceeded)

	close(release)
	require.Eventually(t, func() bool {
		_, ok := m.Get("a1", "")
		return ok
	}, time.Second, 5*time.Millisecond)

	_, _, err = m.Create(context.Background(), "a1")
	assert.NoError(t, err)
}

func TestManager_BuildTimeout(t *testing.T) {
	b := BuilderFunc(func(ctx context.Context, _ string) (core.Graph, error) {
		<-ctx.Done()
		return nil, ctx.Err()
	})
	m := newTestManager(t, b, func(o *ManagerOptions) { o.BuildTimeout = 10 * time.Millisecond })

	_, _, err := m.Create(context.Background(), "a1")
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.Equal(t, 0, m.Len())
}

func TestManager_Close(t *testing.T) {
	m, err := NewManager(staticBuilder())
	require.NoError(t, err)

	m.Put(&fakeGraph{}, "a1", "")
	m.Put(&fakeGraph{}, "a1", "t1")
	m.Close()
	assert.Equal(t, 0, m.Len())
}
