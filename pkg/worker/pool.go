// Package worker runs blocking, CPU-heavy work (DICOM parsing and pixel data
// extraction) with process-wide bounded concurrency, away from the goroutines
// serving HTTP requests.
package worker

import (
	"context"
	"fmt"
	"runtime"
	"sync"

	"github.com/fnndsc/pypx-dicomweb/internal/logger"
	"github.com/fnndsc/pypx-dicomweb/pkg/pypx"
	"github.com/sourcegraph/conc/panics"
	"golang.org/x/sync/semaphore"
)

// Pool bounds how many jobs run at once and how many more may wait.
//
// Submitting blocks while size+queue jobs are already admitted, so a burst
// of decode requests is throttled instead of spawning unbounded goroutines.
//
// Thread safety:
// All methods are safe for concurrent use. Stop() is idempotent.
type Pool struct {
	admit *semaphore.Weighted
	run   *semaphore.Weighted
	size  int

	mu      sync.Mutex
	stopped bool
	stop    chan struct{}
	wg      sync.WaitGroup
}

// New creates a Pool running at most size jobs at once (0 = GOMAXPROCS)
// with room for queue waiting jobs (0 = 4 per worker).
func New(size, queue int) *Pool {
	if size <= 0 {
		size = runtime.GOMAXPROCS(0)
	}
	if queue <= 0 {
		queue = size * 4
	}

	logger.Debug("Worker pool started: workers=%d queue=%d", size, queue)
	return &Pool{
		admit: semaphore.NewWeighted(int64(size + queue)),
		run:   semaphore.NewWeighted(int64(size)),
		size:  size,
		stop:  make(chan struct{}),
	}
}

// Size returns the number of jobs that may run at once.
func (p *Pool) Size() int {
	return p.size
}

// Stop refuses new jobs and waits for the running ones to finish. Jobs
// still waiting for a slot get a Runtime error.
func (p *Pool) Stop() {
	p.mu.Lock()
	if !p.stopped {
		p.stopped = true
		close(p.stop)
	}
	p.mu.Unlock()

	p.wg.Wait()
}

type result[T any] struct {
	value T
	err   error
}

// Submit runs fn on its own goroutine once a slot is free and waits for its
// result.
//
// Failures of the dispatch itself, as opposed to errors returned by fn, are
// reported as pypx Runtime errors naming subject: a panic inside fn, a
// stopped pool, or ctx ending before the job could start or finish. A job
// abandoned by its caller keeps its slot until fn returns.
//
// Parameters:
//   - ctx: Bounds the wait for a slot and for the result
//   - p: The pool providing the slot
//   - subject: Names the work in errors and logs (usually a file path)
//   - fn: The work; its error is returned unchanged
func Submit[T any](ctx context.Context, p *Pool, subject string, fn func() (T, error)) (T, error) {
	var zero T

	if err := p.acquire(ctx); err != nil {
		return zero, pypx.Runtime(subject, "not dispatched", err)
	}

	p.mu.Lock()
	if p.stopped {
		p.mu.Unlock()
		p.release()
		return zero, pypx.Runtime(subject, "worker pool stopped", nil)
	}
	p.wg.Add(1)
	p.mu.Unlock()

	done := make(chan result[T], 1)
	go func() {
		defer p.wg.Done()
		defer p.release()

		var (
			res    result[T]
			caught panics.Catcher
		)
		caught.Try(func() { res.value, res.err = fn() })
		if r := caught.Recovered(); r != nil {
			logger.Error("Panic in worker processing %s: %v\n%s", subject, r.Value, r.Stack)
			res = result[T]{err: pypx.Runtime(subject, "worker panicked", fmt.Errorf("%v", r.Value))}
		}
		done <- res
	}()

	select {
	case res := <-done:
		return res.value, res.err
	case <-ctx.Done():
		return zero, pypx.Runtime(subject, "abandoned", ctx.Err())
	}
}

// acquire takes an admission slot and then a run slot, giving up when ctx
// ends or the pool stops.
func (p *Pool) acquire(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	go func() {
		select {
		case <-p.stop:
			cancel()
		case <-ctx.Done():
		}
	}()

	if err := p.admit.Acquire(ctx, 1); err != nil {
		return p.acquireErr(err)
	}
	if err := p.run.Acquire(ctx, 1); err != nil {
		p.admit.Release(1)
		return p.acquireErr(err)
	}
	return nil
}

func (p *Pool) acquireErr(err error) error {
	select {
	case <-p.stop:
		return fmt.Errorf("worker pool stopped")
	default:
		return err
	}
}

func (p *Pool) release() {
	p.run.Release(1)
	p.admit.Release(1)
}
