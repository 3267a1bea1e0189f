package async

import (
	"context"
	"errors"
	"time"
)

// ErrQueueClosed is returned by Enqueue after Shutdown.
var ErrQueueClosed = errors.New("queue is shutting down")

// Job is one unit of per-document work. Run receives a context bounded by
// the queue's process timeout; Done, if set, gets Run's error.
type Job struct {
	BatchID     string
	Index       int
	Filename    string
	SubmittedAt time.Time

	// Ctx scopes the job to its caller. Nil means the queue's base context.
	Ctx  context.Context
	Run  func(ctx context.Context) error
	Done func(err error)
}

type Queue interface {
	Enqueue(ctx context.Context, job Job) error
	Shutdown(ctx context.Context)
}
