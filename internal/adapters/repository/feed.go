package repository

import (
	"context"
	"sync"

	"github.com/okian/scramble/pkg/metrics"
)

const defaultFeedBuffer = 256

// Feed fans committed changes out to subscribers. Each subscriber has its
// own buffer; one that falls behind by a full buffer is dropped and its
// channel closed, so it must resubscribe and reload.
type Feed[T any] struct {
	name   string
	buffer int

	mu     sync.Mutex
	subs   map[uint64]chan T
	next   uint64
	closed bool
	done   chan struct{}
}

// NewFeed creates a feed whose subscribers buffer up to buffer items.
func NewFeed[T any](name string, buffer int) *Feed[T] {
	if buffer < 1 {
		buffer = defaultFeedBuffer
	}
	return &Feed[T]{
		name:   name,
		buffer: buffer,
		subs:   make(map[uint64]chan T),
		done:   make(chan struct{}),
	}
}

// Subscribe registers a subscriber that lives until ctx ends.
func (f *Feed[T]) Subscribe(ctx context.Context) (<-chan T, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.closed {
		return nil, ErrClosed
	}

	id := f.next
	f.next++
	ch := make(chan T, f.buffer)
	f.subs[id] = ch
	metrics.UpdateFeedSubscribers(f.name, len(f.subs))

	go func() {
		select {
		case <-ctx.Done():
			f.remove(id)
		case <-f.done:
		}
	}()
	return ch, nil
}

// Publish delivers v to every subscriber without blocking.
func (f *Feed[T]) Publish(v T) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for id, ch := range f.subs {
		select {
		case ch <- v:
		default:
			close(ch)
			delete(f.subs, id)
			metrics.RecordFeedDrop(f.name)
		}
	}
	metrics.UpdateFeedSubscribers(f.name, len(f.subs))
}

// Len returns the number of live subscribers.
func (f *Feed[T]) Len() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.subs)
}

// Close ends every subscription.
func (f *Feed[T]) Close() {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.closed {
		return
	}
	f.closed = true
	close(f.done)
	for id, ch := range f.subs {
		close(ch)
		delete(f.subs, id)
	}
	metrics.UpdateFeedSubscribers(f.name, 0)
}

func (f *Feed[T]) remove(id uint64) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if ch, ok := f.subs[id]; ok {
		close(ch)
		delete(f.subs, id)
		metrics.UpdateFeedSubscribers(f.name, len(f.subs))
	}
}
