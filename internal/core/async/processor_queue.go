package async

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"
)

// ProcessorQueue runs jobs on a fixed set of workers.
type ProcessorQueue struct {
	logger  *slog.Logger
	workers int
	timeout time.Duration
	baseCtx context.Context

	ch   chan Job
	wg   sync.WaitGroup
	once sync.Once

	mu     sync.RWMutex
	closed bool
}

type Option func(*ProcessorQueue)

func WithWorkers(n int) Option {
	return func(q *ProcessorQueue) {
		if n > 0 {
			q.workers = n
		}
	}
}
func WithQueueSize(n int) Option {
	return func(q *ProcessorQueue) {
		if n > 0 {
			q.ch = make(chan Job, n)
		}
	}
}
func WithProcessTimeout(d time.Duration) Option {
	return func(q *ProcessorQueue) {
		if d > 0 {
			q.timeout = d
		}
	}
}

// WithBaseContext sets the parent of jobs that carry no context of their own.
func WithBaseContext(ctx context.Context) Option {
	return func(q *ProcessorQueue) {
		if ctx != nil {
			q.baseCtx = ctx
		}
	}
}

func NewProcessorQueue(logger *slog.Logger, opts ...Option) *ProcessorQueue {
	if logger == nil {
		logger = slog.Default()
	}
	q := &ProcessorQueue{
		logger:  logger,
		workers: 4,
		timeout: 3 * time.Minute,
		baseCtx: context.Background(),
		ch:      make(chan Job, 256),
	}
	for _, o := range opts {
		o(q)
	}
	q.start()
	return q
}

func (q *ProcessorQueue) Workers() int { return q.workers }

func (q *ProcessorQueue) start() {
	q.once.Do(func() {
		for i := 0; i < q.workers; i++ {
			q.wg.Add(1)
			go func(workerID int) {
				defer q.wg.Done()
				q.logger.Debug("worker started", "worker_id", workerID)

				for job := range q.ch {
					q.process(workerID, job)
				}

				q.logger.Debug("worker stopped", "worker_id", workerID)
			}(i + 1)
		}
	})
}

func (q *ProcessorQueue) process(workerID int, job Job) {
	parent := job.Ctx
	if parent == nil {
		parent = q.baseCtx
	}
	ctx, cancel := context.WithTimeout(parent, q.timeout)
	start := time.Now()
	err := q.run(ctx, job)
	cancel()

	if err != nil {
		q.logger.Warn("job failed",
			"worker_id", workerID,
			"batch_id", job.BatchID,
			"doc_index", job.Index,
			"filename", job.Filename,
			"error", err,
			"elapsed_ms", time.Since(start).Milliseconds(),
		)
	} else {
		q.logger.Debug("job done",
			"worker_id", workerID,
			"batch_id", job.BatchID,
			"doc_index", job.Index,
			"queue_wait_ms", start.Sub(job.SubmittedAt).Milliseconds(),
			"elapsed_ms", time.Since(start).Milliseconds(),
		)
	}
	if job.Done != nil {
		job.Done(err)
	}
}

// run keeps a panicking job from taking its worker down.
func (q *ProcessorQueue) run(ctx context.Context, job Job) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("job panicked: %v", r)
		}
	}()
	if job.Run == nil {
		return errors.New("job has no Run func")
	}
	return job.Run(ctx)
}

// Enqueue blocks while the queue is full until ctx is done.
func (q *ProcessorQueue) Enqueue(ctx context.Context, job Job) error {
	q.mu.RLock()
	defer q.mu.RUnlock()
	if q.closed {
		q.logger.Warn("cannot enqueue: queue is shutting down", "batch_id", job.BatchID, "doc_index", job.Index)
		return ErrQueueClosed
	}
	if job.SubmittedAt.IsZero() {
		job.SubmittedAt = time.Now()
	}
	select {
	case q.ch <- job:
		return nil
	default:
	}
	q.logger.Warn("queue full, applying backpressure", "batch_id", job.BatchID, "doc_index", job.Index)
	select {
	case q.ch <- job:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (q *ProcessorQueue) Shutdown(ctx context.Context) {
	q.mu.Lock()
	if q.closed {
		q.mu.Unlock()
		return
	}
	q.closed = true
	close(q.ch)
	q.mu.Unlock()

	done := make(chan struct{})
	go func() { defer close(done); q.wg.Wait() }()

	select {
	case <-ctx.Done():
		q.logger.Warn("shutdown interrupted by context")
	case <-done:
		q.logger.Info("queue drained, shutdown complete")
	}
}
