package pipeline

import (
	"context"
	"sync"

	"golang.org/x/sync/semaphore"
)

// Pool bounds concurrent calls into the heavy model providers shared across
// every session on this process: the MT and TTS stages run their provider
// calls through Do, while the ASR worker calls its provider directly and is
// not bounded by the pool. Do can additionally hold one pool-wide mutex
// around a call, for a provider that isn't safe for concurrent use.
//
// The pack reaches for golang.org/x/sync/errgroup for bounded fan-out over
// a known batch (e.g. assembling several context sources at once, or
// joining a session's shutdown goroutines in session.go); a session's
// model calls aren't a batch, they're long-lived acquire/block/release
// requests scattered over the session's lifetime, which is what
// semaphore.Weighted (errgroup's sibling package in the same module) is
// for.
type Pool struct {
	sem *semaphore.Weighted
	mu  sync.Mutex
}

func NewPool(maxConcurrent int64) *Pool {
	if maxConcurrent < 1 {
		maxConcurrent = 1
	}
	return &Pool{sem: semaphore.NewWeighted(maxConcurrent)}
}

// Do acquires a pool slot (blocking until one frees up or ctx is
// cancelled), then runs fn while holding it. When serialize is true, fn
// also holds the pool-wide provider mutex, so at most one serialized call
// runs at a time across the entire pool — for a provider instance that
// isn't thread-safe.
func (p *Pool) Do(ctx context.Context, serialize bool, fn func(ctx context.Context) error) error {
	if err := p.sem.Acquire(ctx, 1); err != nil {
		return err
	}
	defer p.sem.Release(1)

	if serialize {
		p.mu.Lock()
		defer p.mu.Unlock()
	}
	return fn(ctx)
}
