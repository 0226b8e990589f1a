// Package handoff provides a FIFO rendezvous buffer bridging push-style
// producers to pull-style consumers. It carries no knowledge of what it
// transports.
package handoff

import (
	"context"
	"sync"
)

// Queue decouples a push-driven producer from pull-driven consumers
// without losing or reordering items. Items enqueued before any
// consumer arrives are buffered; consumers arriving before any item
// suspend until one is produced. Waiting consumers are served in FIFO
// order among themselves.
type Queue[T any] struct {
	mu      sync.Mutex
	backlog []T
	waiters []chan T
}

// New creates an empty queue.
func New[T any]() *Queue[T] {
	return &Queue[T]{}
}

// Enqueue hands the item to the oldest waiting consumer, or buffers it
// when nobody is waiting. Never blocks.
func (q *Queue[T]) Enqueue(item T) {
	q.mu.Lock()
	if len(q.waiters) > 0 {
		w := q.waiters[0]
		q.waiters = q.waiters[1:]
		q.mu.Unlock()
		w <- item
		return
	}
	q.backlog = append(q.backlog, item)
	q.mu.Unlock()
}

// Dequeue pops the oldest buffered item immediately, or suspends until
// a future Enqueue supplies one. Cancellation of ctx abandons the wait;
// an item racing the cancellation is re-queued at the front so it is
// not lost.
func (q *Queue[T]) Dequeue(ctx context.Context) (T, error) {
	q.mu.Lock()
	if len(q.backlog) > 0 {
		item := q.backlog[0]
		q.backlog = q.backlog[1:]
		q.mu.Unlock()
		return item, nil
	}

	w := make(chan T, 1)
	q.waiters = append(q.waiters, w)
	q.mu.Unlock()

	select {
	case item := <-w:
		return item, nil
	case <-ctx.Done():
		q.abandon(w)
		var zero T
		return zero, ctx.Err()
	}
}

// abandon removes w from the waiter list; when an Enqueue already
// claimed it, the delivered item goes back to the head of the backlog.
func (q *Queue[T]) abandon(w chan T) {
	q.mu.Lock()
	defer q.mu.Unlock()
	for i, cand := range q.waiters {
		if cand == w {
			q.waiters = append(q.waiters[:i], q.waiters[i+1:]...)
			return
		}
	}
	select {
	case item := <-w:
		q.backlog = append([]T{item}, q.backlog...)
	default:
	}
}

// Clear drops all buffered items and forgets all waiting consumers
// without resolving them. A consumer suspended at clear time stays
// suspended until its context ends; producers relying on Clear to
// release waiters must enqueue a sentinel separately.
func (q *Queue[T]) Clear() {
	q.mu.Lock()
	q.backlog = nil
	q.waiters = nil
	q.mu.Unlock()
}

// Len reports the number of buffered items.
func (q *Queue[T]) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.backlog)
}
