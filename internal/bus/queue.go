package bus

import (
	"context"
	"errors"
	"sync"
)

var (
	ErrQueueClosed = errors.New("event queue closed")
)

// Queue is an unbounded multi-producer single-consumer queue.
//
// Producers never block. The consumer waits on C() inside a select and then
// drains; C() carries at most one pending wake-up at a time.
type Queue[T any] struct {
	mu     sync.Mutex
	items  []T
	notify chan struct{}
	closed bool
}

// NewQueue allocates an empty queue.
func NewQueue[T any]() *Queue[T] {
	return &Queue[T]{notify: make(chan struct{}, 1)}
}

// Publish enqueues v without blocking.
func (q *Queue[T]) Publish(v T) error {
	q.mu.Lock()
	if q.closed {
		q.mu.Unlock()
		return ErrQueueClosed
	}
	q.items = append(q.items, v)
	q.mu.Unlock()
	q.signal()
	return nil
}

// C returns the wake-up channel for select loops.
func (q *Queue[T]) C() <-chan struct{} {
	return q.notify
}

// Drain removes and returns every pending item in publish order.
func (q *Queue[T]) Drain() []T {
	q.mu.Lock()
	defer q.mu.Unlock()
	if len(q.items) == 0 {
		return nil
	}
	out := q.items
	q.items = nil
	return out
}

// Pop removes the oldest item.
func (q *Queue[T]) Pop() (T, bool) {
	q.mu.Lock()
	var zero T
	if len(q.items) == 0 {
		q.mu.Unlock()
		return zero, false
	}
	v := q.items[0]
	q.items[0] = zero
	q.items = q.items[1:]
	remain := len(q.items)
	q.mu.Unlock()
	if remain > 0 {
		q.signal()
	}
	return v, true
}

// Wait blocks until an item is available, the queue is closed or ctx is done.
func (q *Queue[T]) Wait(ctx context.Context) (T, error) {
	for {
		if v, ok := q.Pop(); ok {
			return v, nil
		}
		if q.isClosed() {
			var zero T
			return zero, ErrQueueClosed
		}
		select {
		case <-ctx.Done():
			var zero T
			return zero, ctx.Err()
		case <-q.notify:
		}
	}
}

// Len reports the number of pending items.
func (q *Queue[T]) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.items)
}

// Close stops the queue from accepting new items. Pending items stay drainable.
func (q *Queue[T]) Close() {
	q.mu.Lock()
	q.closed = true
	q.mu.Unlock()
	q.signal()
}

// Run consumes items until the context is done or the queue is closed and empty.
func (q *Queue[T]) Run(ctx context.Context, handler func(T)) {
	for {
		v, err := q.Wait(ctx)
		if err != nil {
			return
		}
		handler(v)
	}
}

func (q *Queue[T]) isClosed() bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.closed
}

func (q *Queue[T]) signal() {
	select {
	case q.notify <- struct{}{}:
	default:
	}
}
