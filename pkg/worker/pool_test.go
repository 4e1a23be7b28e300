package worker

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/fnndsc/pypx-dicomweb/pkg/pypx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSubmit_ReturnsResult(t *testing.T) {
	p := New(2, 0)
	defer p.Stop()

	v, err := Submit(context.Background(), p, "job", func() (int, error) { return 42, nil })
	require.NoError(t, err)
	assert.Equal(t, 42, v)
}

func TestSubmit_PassesDomainErrorsThrough(t *testing.T) {
	p := New(1, 1)
	defer p.Stop()

	_, err := Submit(context.Background(), p, "/a.dcm", func() ([]byte, error) {
		return nil, pypx.NotFound("/a.dcm")
	})
	assert.True(t, pypx.IsNotFound(err))
}

func TestSubmit_PanicBecomesRuntime(t *testing.T) {
	p := New(1, 1)
	defer p.Stop()

	_, err := Submit(context.Background(), p, "/boom.dcm", func() (int, error) {
		panic("index out of range")
	})
	code, ok := pypx.CodeOf(err)
	require.True(t, ok)
	assert.Equal(t, pypx.ErrRuntime, code)

	// the worker survives the panic
	v, err := Submit(context.Background(), p, "after", func() (string, error) { return "ok", nil })
	require.NoError(t, err)
	assert.Equal(t, "ok", v)
}

func TestSubmit_StoppedPool(t *testing.T) {
	p := New(1, 1)
	p.Stop()

	_, err := Submit(context.Background(), p, "late", func() (int, error) { return 1, nil })
	code, ok := pypx.CodeOf(err)
	require.True(t, ok)
	assert.Equal(t, pypx.ErrRuntime, code)
}

func TestSubmit_ContextCancelledWhileWaiting(t *testing.T) {
	p := New(1, 1)
	defer p.Stop()

	release := make(chan struct{})
	defer close(release)

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	_, err := Submit(ctx, p, "slow", func() (int, error) {
		<-release
		return 0, nil
	})
	assert.True(t, errors.Is(err, context.DeadlineExceeded))
}

func TestPool_RunsConcurrently(t *testing.T) {
	p := New(4, 0)
	defer p.Stop()
	assert.Equal(t, 4, p.Size())

	var running, peak atomic.Int32
	done := make(chan struct{})
	for i := 0; i < 8; i++ {
		go func() {
			_, _ = Submit(context.Background(), p, "job", func() (int, error) {
				n := running.Add(1)
				for {
					old := peak.Load()
					if n <= old || peak.CompareAndSwap(old, n) {
						break
					}
				}
				time.Sleep(5 * time.Millisecond)
				running.Add(-1)
				return 0, nil
			})
			done <- struct{}{}
		}()
	}
	for i := 0; i < 8; i++ {
		<-done
	}
	assert.LessOrEqual(t, peak.Load(), int32(4))
	assert.GreaterOrEqual(t, peak.Load(), int32(1))
}

func TestSubmit_FullQueueBlocksUntilContextEnds(t *testing.T) {
	p := New(1, 1)
	defer p.Stop()

	release := make(chan struct{})
	defer close(release)
	started := make(chan struct{})

	blocked := func() (int, error) {
		started <- struct{}{}
		<-release
		return 0, nil
	}
	go func() { _, _ = Submit(context.Background(), p, "running", blocked) }()
	<-started
	go func() { _, _ = Submit(context.Background(), p, "waiting", blocked) }()

	require.Eventually(t, func() bool {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
		defer cancel()
		_, err := Submit(ctx, p, "rejected", func() (int, error) { return 1, nil })
		return errors.Is(err, context.DeadlineExceeded)
	}, time.Second, 5*time.Millisecond)

	// let both blocked jobs finish
	release <- struct{}{}
	<-started
}

func TestStop_WaitsForRunningJobs(t *testing.T) {
	p := New(1, 0)

	var finished atomic.Bool
	started := make(chan struct{})
	go func() {
		_, _ = Submit(context.Background(), p, "slow", func() (int, error) {
			close(started)
			time.Sleep(20 * time.Millisecond)
			finished.Store(true)
			return 0, nil
		})
	}()
	<-started

	p.Stop()
	assert.True(t, finished.Load())
}
