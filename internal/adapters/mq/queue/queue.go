// Package queue hands prepared score submissions from the input loop to the
// delivery workers without blocking the caller.
package queue

import (
	"context"
	"sync"

	"github.com/cockroachdb/errors"

	"github.com/okian/scramble/internal/domain/model"
	"github.com/okian/scramble/pkg/metrics"
)

const defaultCapacity = 256

// Queue provides non-blocking enqueue and channel-based dequeue semantics.
type Queue interface {
	// Enqueue adds an intent. Fails with ErrFull or ErrClosed.
	Enqueue(ctx context.Context, s model.Submission) error

	// Dequeue returns a channel that receives intents until the queue is
	// closed and empty.
	Dequeue(ctx context.Context) <-chan model.Submission

	// Len returns the current number of queued intents.
	Len(ctx context.Context) int

	// Close stops accepting intents. Queued intents can still be dequeued.
	Close() error

	// IsClosed returns true if the queue has been closed.
	IsClosed() bool
}

// InMemoryQueue implements Queue using a buffered channel.
type InMemoryQueue struct {
	events   chan model.Submission
	capacity int

	mu     sync.RWMutex
	closed bool
}

var _ Queue = (*InMemoryQueue)(nil)

// NewInMemoryQueue creates a new in-memory queue with configuration options.
func NewInMemoryQueue(opts ...Option) *InMemoryQueue {
	q := &InMemoryQueue{capacity: defaultCapacity}
	for _, opt := range opts {
		opt(q)
	}
	q.events = make(chan model.Submission, q.capacity)

	metrics.UpdateIntentQueueCapacity(q.capacity)
	metrics.UpdateIntentQueueSize(0)
	return q
}

// Enqueue adds an intent to the queue.
func (q *InMemoryQueue) Enqueue(ctx context.Context, s model.Submission) error {
	q.mu.RLock()
	defer q.mu.RUnlock()

	if q.closed {
		metrics.RecordIntentEnqueueError("closed")
		return ErrClosed
	}
	if err := ctx.Err(); err != nil {
		metrics.RecordIntentEnqueueError("context_cancelled")
		return errors.Wrap(err, "enqueue")
	}

	select {
	case q.events <- s:
		metrics.UpdateIntentQueueSize(len(q.events))
		return nil
	default:
		metrics.RecordIntentEnqueueError("queue_full")
		metrics.RecordErrorByComponent("queue", "capacity_exceeded")
		return errors.Wrapf(ErrFull, "hole %d", s.HoleNumber)
	}
}

// Dequeue returns a channel that will receive intents as they become available.
func (q *InMemoryQueue) Dequeue(ctx context.Context) <-chan model.Submission {
	out := make(chan model.Submission)
	go func() {
		defer close(out)
		for s := range q.events {
			select {
			case out <- s:
				metrics.UpdateIntentQueueSize(len(q.events))
			case <-ctx.Done():
				return
			}
		}
	}()
	return out
}

// Len returns the current number of queued intents.
func (q *InMemoryQueue) Len(context.Context) int {
	n := len(q.events)
	metrics.UpdateIntentQueueSize(n)
	return n
}

// Close stops accepting intents.
func (q *InMemoryQueue) Close() error {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.closed {
		return nil
	}
	close(q.events)
	q.closed = true
	return nil
}

// IsClosed returns true if the queue has been closed.
func (q *InMemoryQueue) IsClosed() bool {
	q.mu.RLock()
	defer q.mu.RUnlock()
	return q.closed
}
