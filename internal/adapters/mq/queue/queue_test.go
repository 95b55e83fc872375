package queue

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/okian/scramble/internal/domain/model"
)

func sub(hole, strokes int) model.Submission {
	return model.Submission{TeamID: "t1", HoleNumber: hole, Strokes: strokes, Seq: int64(hole)}
}

func TestInMemoryQueue_BasicOperations(t *testing.T) {
	q := NewInMemoryQueue(WithCapacity(2))
	ctx := context.Background()

	assert.Equal(t, 0, q.Len(ctx))
	require.NoError(t, q.Enqueue(ctx, sub(1, 4)))
	assert.Equal(t, 1, q.Len(ctx))

	got := <-q.Dequeue(ctx)
	assert.Equal(t, sub(1, 4), got)
	assert.Equal(t, 0, q.Len(ctx))
}

func TestInMemoryQueue_Capacity(t *testing.T) {
	q := NewInMemoryQueue(WithCapacity(2))
	ctx := context.Background()

	require.NoError(t, q.Enqueue(ctx, sub(1, 4)))
	require.NoError(t, q.Enqueue(ctx, sub(2, 4)))

	err := q.Enqueue(ctx, sub(3, 4))
	assert.True(t, errors.Is(err, ErrFull), "got %v", err)
	assert.Equal(t, 2, q.Len(ctx))
}

func TestInMemoryQueue_CancelledContext(t *testing.T) {
	q := NewInMemoryQueue()
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := q.Enqueue(ctx, sub(1, 4))
	assert.True(t, errors.Is(err, context.Canceled))
}

func TestInMemoryQueue_ConcurrentAccess(t *testing.T) {
	q := NewInMemoryQueue(WithCapacity(32))
	ctx := context.Background()
	const producers, perProducer = 6, 50

	var (
		mu       sync.Mutex
		consumed int
		wg       sync.WaitGroup
	)
	out := q.Dequeue(ctx)
	done := make(chan struct{})
	go func() {
		defer close(done)
		for range out {
			mu.Lock()
			consumed++
			mu.Unlock()
		}
	}()

	for p := 0; p < producers; p++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := 0; i < perProducer; i++ {
				for q.Enqueue(ctx, sub(i%18+1, 4)) != nil {
					time.Sleep(time.Millisecond)
				}
			}
		}()
	}
	wg.Wait()
	require.NoError(t, q.Close())
	<-done

	assert.Equal(t, producers*perProducer, consumed)
}

func TestInMemoryQueue_GracefulShutdown(t *testing.T) {
	q := NewInMemoryQueue(WithCapacity(10))
	ctx := context.Background()

	require.NoError(t, q.Enqueue(ctx, sub(1, 4)))
	require.NoError(t, q.Enqueue(ctx, sub(2, 5)))
	assert.False(t, q.IsClosed())

	require.NoError(t, q.Close())
	assert.True(t, q.IsClosed())
	assert.True(t, errors.Is(q.Enqueue(ctx, sub(3, 4)), ErrClosed))

	var drained []model.Submission
	for s := range q.Dequeue(ctx) {
		drained = append(drained, s)
	}
	assert.Equal(t, []model.Submission{sub(1, 4), sub(2, 5)}, drained, "queued intents survive close")
	assert.NoError(t, q.Close())
}
