package async

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestProcessorQueue_RunsAllJobs(t *testing.T) {
	q := NewProcessorQueue(nil, WithWorkers(3), WithQueueSize(2))
	defer q.Shutdown(context.Background())

	const n = 20
	var wg sync.WaitGroup
	results := make([]int, n)
	for i := 0; i < n; i++ {
		wg.Add(1)
		i := i
		err := q.Enqueue(context.Background(), Job{
			Index: i,
			Run: func(context.Context) error {
				results[i] = i * i
				return nil
			},
			Done: func(err error) {
				assert.NoError(t, err)
				wg.Done()
			},
		})
		require.NoError(t, err)
	}
	wg.Wait()

	for i := 0; i < n; i++ {
		assert.Equal(t, i*i, results[i])
	}
}

func TestProcessorQueue_BoundedConcurrency(t *testing.T) {
	q := NewProcessorQueue(nil, WithWorkers(2))
	defer q.Shutdown(context.Background())

	var running, peak int32
	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		require.NoError(t, q.Enqueue(context.Background(), Job{
			Run: func(context.Context) error {
				cur := atomic.AddInt32(&running, 1)
				for {
					p := atomic.LoadInt32(&peak)
					if cur <= p || atomic.CompareAndSwapInt32(&peak, p, cur) {
						break
					}
				}
				time.Sleep(5 * time.Millisecond)
				atomic.AddInt32(&running, -1)
				return nil
			},
			Done: func(error) { wg.Done() },
		}))
	}
	wg.Wait()
	assert.LessOrEqual(t, atomic.LoadInt32(&peak), int32(2))
}

func TestProcessorQueue_TimeoutAndErrors(t *testing.T) {
	q := NewProcessorQueue(nil, WithWorkers(1), WithProcessTimeout(20*time.Millisecond))
	defer q.Shutdown(context.Background())

	errs := make(chan error, 3)
	jobs := []Job{
		{Run: func(ctx context.Context) error { <-ctx.Done(); return ctx.Err() }},
		{Run: func(context.Context) error { return errors.New("boom") }},
		{Run: func(context.Context) error { panic("bad page") }},
	}
	for _, j := range jobs {
		j.Done = func(err error) { errs <- err }
		require.NoError(t, q.Enqueue(context.Background(), j))
	}

	assert.ErrorIs(t, <-errs, context.DeadlineExceeded)
	assert.EqualError(t, <-errs, "boom")
	assert.ErrorContains(t, <-errs, "panicked")
}

func TestProcessorQueue_JobContextCancels(t *testing.T) {
	q := NewProcessorQueue(nil, WithWorkers(1))
	defer q.Shutdown(context.Background())

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	done := make(chan error, 1)
	require.NoError(t, q.Enqueue(context.Background(), Job{
		Ctx:  ctx,
		Run:  func(ctx context.Context) error { return ctx.Err() },
		Done: func(err error) { done <- err },
	}))
	assert.ErrorIs(t, <-done, context.Canceled)
}

func TestProcessorQueue_EnqueueAfterShutdown(t *testing.T) {
	q := NewProcessorQueue(nil, WithWorkers(1))
	q.Shutdown(context.Background())
	q.Shutdown(context.Background())

	err := q.Enqueue(context.Background(), Job{Run: func(context.Context) error { return nil }})
	assert.ErrorIs(t, err, ErrQueueClosed)
}
