package ingest

import (
	"errors"
	"fmt"
)

// ErrQueueFull is returned when the queue cannot accept another job; the
// caller decides whether to fail the submission or retry later.
var ErrQueueFull = errors.New("ingest: queue full")

// QueueError wraps a queue handoff failure with the job it concerned.
type QueueError struct {
	JobID string
	Err   error
}

func (e *QueueError) Error() string {
	return fmt.Sprintf("ingest: queue job %s: %v", e.JobID, e.Err)
}

func (e *QueueError) Unwrap() error { return e.Err }

// Queue is a bounded in-memory handoff between the dispatcher and the
// workers. Only job ids travel through it; all job state lives in the
// database, so a restart loses nothing but the wakeup (the recovery sweep
// re-enqueues whatever was still queued).
type Queue struct {
	ch chan string
}

func NewQueue(size int) *Queue {
	if size <= 0 {
		size = 100
	}
	return &Queue{ch: make(chan string, size)}
}

// Push hands a job id to the workers without blocking.
func (q *Queue) Push(jobID string) error {
	select {
	case q.ch <- jobID:
		return nil
	default:
		return &QueueError{JobID: jobID, Err: ErrQueueFull}
	}
}

// C exposes the receive side for workers.
func (q *Queue) C() <-chan string { return q.ch }

func (q *Queue) Len() int { return len(q.ch) }

// Close stops the workers once the channel drains.
func (q *Queue) Close() { close(q.ch) }
