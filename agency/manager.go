package agency

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/hashicorp/golang-lru/v2/simplelru"

	"github.com/hupe1980/agencyhub/core"
	"github.com/hupe1980/agencyhub/internal/offload"
	"github.com/hupe1980/agencyhub/internal/tracing"
	"github.com/hupe1980/agencyhub/logging"
)

// Builder constructs a graph for a stored agency configuration.
type Builder interface {
	Build(ctx context.Context, agencyID string) (core.Graph, error)
}

// BuilderFunc adapts a function to Builder.
type BuilderFunc func(ctx context.Context, agencyID string) (core.Graph, error)

// Build implements Builder.
func (f BuilderFunc) Build(ctx context.Context, agencyID string) (core.Graph, error) {
	return f(ctx, agencyID)
}

// ManagerOptions configure a Manager.
type ManagerOptions struct {
	// Capacity bounds the number of cached graphs. The least recently used
	// entry is dropped when full.
	Capacity int
	// BuildTimeout caps a single construction. Zero disables the timeout.
	BuildTimeout time.Duration
	// Pool runs constructions. A private pool is created when nil.
	Pool   *offload.Pool
	Logger logging.Logger
}

// Manager caches live agency graphs keyed by CacheKey. All cache operations
// are serialized by one mutex, so Get, Put, Evict and ReconcileThreadID are
// linearizable. Construction runs outside the mutex and is serialized per
// agency id only.
type Manager struct {
	builder Builder
	opts    ManagerOptions
	logger  logging.Logger
	pool    *offload.Pool

	mu    sync.Mutex
	cache *simplelru.LRU[string, core.Graph]
	gates map[string]chan struct{}
}

// NewManager creates a Manager building graphs with builder.
func NewManager(builder Builder, optFns ...func(o *ManagerOptions)) (*Manager, error) {
	opts := ManagerOptions{
		Capacity:     1024,
		BuildTimeout: 2 * time.Minute,
	}
	for _, fn := range optFns {
		fn(&opts)
	}

	cache, err := simplelru.NewLRU[string, core.Graph](opts.Capacity, nil)
	if err != nil {
		return nil, err
	}

	pool := opts.Pool
	if pool == nil {
		pool = offload.New(0)
	}

	return &Manager{
		builder: builder,
		opts:    opts,
		logger:  logging.OrNoOp(opts.Logger),
		pool:    pool,
		cache:   cache,
		gates:   map[string]chan struct{}{},
	}, nil
}

// Create builds a graph for agencyID and caches it under the bare agency key,
// replacing any previous entry. An empty agencyID gets a freshly generated
// id. Failed builds cache nothing.
//
// Concurrent Create calls for the same agency run one after another. When ctx
// ends while a build runs, Create returns ctx.Err() and the build still
// completes in the background.
func (m *Manager) Create(ctx context.Context, agencyID string) (core.Graph, string, error) {
	if agencyID == "" {
		agencyID = strings.ReplaceAll(uuid.NewString(), "-", "")
	}

	ctx, span := tracing.StartSpan(ctx, "agency.create", tracing.String("agency.id", agencyID))
	g, err := m.create(ctx, agencyID)
	tracing.End(span, err)
	if err != nil {
		return nil, agencyID, err
	}
	return g, agencyID, nil
}

type buildResult struct {
	graph core.Graph
	err   error
}

func (m *Manager) create(ctx context.Context, agencyID string) (core.Graph, error) {
	release, err := m.acquireGate(ctx, agencyID)
	if err != nil {
		return nil, err
	}

	done := make(chan buildResult, 1)
	job := func() {
		defer release()

		bctx := context.WithoutCancel(ctx)
		if m.opts.BuildTimeout > 0 {
			var cancel context.CancelFunc
			bctx, cancel = context.WithTimeout(bctx, m.opts.BuildTimeout)
			defer cancel()
		}

		g, err := m.builder.Build(bctx, agencyID)
		if err == nil {
			m.Put(g, agencyID, "")
		}
		done <- buildResult{graph: g, err: err}
	}

	if err := m.pool.Go(ctx, job); err != nil {
		release()
		return nil, err
	}

	select {
	case r := <-done:
		return r.graph, r.err
	case <-ctx.Done():
		m.logger.Warn("agency.create.abandoned", "agency_id", agencyID, "error", ctx.Err().Error())
		return nil, ctx.Err()
	}
}

// acquireGate blocks until no other build for agencyID is running.
func (m *Manager) acquireGate(ctx context.Context, agencyID string) (func(), error) {
	for {
		m.mu.Lock()
		busy, ok := m.gates[agencyID]
		if !ok {
			gate := make(chan struct{})
			m.gates[agencyID] = gate
			m.mu.Unlock()

			var once sync.Once
			return func() {
				once.Do(func() {
					m.mu.Lock()
					delete(m.gates, agencyID)
					m.mu.Unlock()
					close(gate)
				})
			}, nil
		}
		m.mu.Unlock()

		select {
		case <-busy:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
}

// Get returns the cached graph for the key. It never builds.
func (m *Manager) Get(agencyID, threadID string) (core.Graph, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.cache.Get(CacheKey(agencyID, threadID))
}

// Put caches g under the key, overwriting any previous entry.
func (m *Manager) Put(g core.Graph, agencyID, threadID string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.add(CacheKey(agencyID, threadID), g)
}

// Evict removes the entry for the key. Missing keys are ignored.
func (m *Manager) Evict(agencyID, threadID string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.cache.Remove(CacheKey(agencyID, threadID))
}

// ReconcileThreadID moves g to its current thread key when the graph's
// thread differs from observed. The removal of the old key and the insert
// under the new key happen atomically, and the old slot is freed first so a
// full cache never evicts another entry for the move. It returns the current
// thread id and whether it changed.
func (m *Manager) ReconcileThreadID(g core.Graph, agencyID, observed string) (string, bool) {
	current := g.CurrentThreadID()
	if current == observed {
		return observed, false
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	m.cache.Remove(CacheKey(agencyID, observed))
	m.add(CacheKey(agencyID, current), g)

	m.logger.Debug("agency.thread.moved", "agency_id", agencyID, "from", observed, "to", current)
	return current, true
}

// Len returns the number of cached graphs.
func (m *Manager) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.cache.Len()
}

// Close drops every cached graph.
func (m *Manager) Close() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.cache.Purge()
}

// add must be called with m.mu held.
func (m *Manager) add(key string, g core.Graph) {
	if !m.cache.Contains(key) && m.cache.Len() >= m.opts.Capacity {
		if oldest, _, ok := m.cache.GetOldest(); ok {
			m.logger.Info("agency.cache.evicted", "cache_key", oldest, "capacity", m.opts.Capacity)
		}
	}
	m.cache.Add(key, g)
}
