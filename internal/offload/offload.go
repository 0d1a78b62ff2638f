// Package offload runs blocking work (graph construction, model turns) on a
// bounded set of goroutines so callers never block the request path directly.
package offload

import (
	"context"
	"fmt"
	"sync"

	"golang.org/x/sync/semaphore"
)

// ErrClosed is returned by Run after Close.
var ErrClosed = fmt.Errorf("offload pool closed")

// Pool bounds the number of concurrently running jobs.
type Pool struct {
	sem    *semaphore.Weighted
	wg     sync.WaitGroup
	mu     sync.RWMutex
	closed bool
}

// New creates a pool running at most limit jobs at once. limit <= 0 defaults to 16.
func New(limit int) *Pool {
	if limit <= 0 {
		limit = 16
	}
	return &Pool{sem: semaphore.NewWeighted(int64(limit))}
}

type result[T any] struct {
	val T
	err error
}

// Go waits for a free slot and starts fn on its own goroutine. A non-nil
// error means fn was never started.
func (p *Pool) Go(ctx context.Context, fn func()) error {
	p.mu.RLock()
	if p.closed {
		p.mu.RUnlock()
		return ErrClosed
	}
	p.wg.Add(1)
	p.mu.RUnlock()

	if err := p.sem.Acquire(ctx, 1); err != nil {
		p.wg.Done()
		return err
	}

	go func() {
		defer p.wg.Done()
		defer p.sem.Release(1)
		fn()
	}()
	return nil
}

// Run starts fn through p.Go and waits for its result. When ctx ends first
// Run returns ctx.Err() while fn keeps running to completion; fn must observe
// its own context to stop early.
func Run[T any](ctx context.Context, p *Pool, fn func() (T, error)) (T, error) {
	var zero T

	done := make(chan result[T], 1)
	if err := p.Go(ctx, func() {
		v, err := fn()
		done <- result[T]{val: v, err: err}
	}); err != nil {
		return zero, err
	}

	select {
	case r := <-done:
		return r.val, r.err
	case <-ctx.Done():
		return zero, ctx.Err()
	}
}

// Close rejects new jobs and waits for running ones.
func (p *Pool) Close() {
	p.mu.Lock()
	p.closed = true
	p.mu.Unlock()
	p.wg.Wait()
}
