package core

import (
	"context"
	"errors"
	"sync"

	"github.com/aretw0/silt/pkg/handoff"
)

// ErrSubscriptionClosed is returned by Next after Close.
var ErrSubscriptionClosed = errors.New("subscription closed")

// fanout bridges one push source to any number of pull consumers. The
// source is acquired when the first consumer subscribes and released
// when the last one closes. It is a scoped resource, not a
// garbage-collected one.
type fanout[T any] struct {
	mu     sync.Mutex
	start  func(publish func(T)) (CancelFunc, error)
	cancel CancelFunc
	subs   map[*Subscription[T]]struct{}

	// cacheLast replays the most recent emission to late subscribers so
	// they see current state without waiting for the next push.
	cacheLast bool
	last      *T
}

func newFanout[T any](start func(publish func(T)) (CancelFunc, error), cacheLast bool) *fanout[T] {
	return &fanout[T]{
		start:     start,
		subs:      make(map[*Subscription[T]]struct{}),
		cacheLast: cacheLast,
	}
}

func (f *fanout[T]) subscribe() (*Subscription[T], error) {
	f.mu.Lock()
	sub := &Subscription[T]{queue: handoff.New[T](), owner: f}
	if f.cacheLast && f.last != nil {
		sub.queue.Enqueue(*f.last)
	}
	f.subs[sub] = struct{}{}
	first := len(f.subs) == 1
	f.mu.Unlock()

	// start is called outside the lock: watch registration pushes the
	// current state synchronously, which re-enters publish.
	if first {
		cancel, err := f.start(f.publish)
		if err != nil {
			f.mu.Lock()
			delete(f.subs, sub)
			f.mu.Unlock()
			return nil, err
		}
		f.mu.Lock()
		f.cancel = cancel
		f.mu.Unlock()
	}
	return sub, nil
}

func (f *fanout[T]) publish(v T) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.cacheLast {
		f.last = &v
	}
	for sub := range f.subs {
		sub.queue.Enqueue(v)
	}
}

func (f *fanout[T]) unsubscribe(sub *Subscription[T]) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.subs[sub]; !ok {
		return
	}
	delete(f.subs, sub)
	if len(f.subs) == 0 && f.cancel != nil {
		f.cancel()
		f.cancel = nil
	}
}

// Subscription is one consumer's pull handle on a push source. Items
// arrive in push order through a private rendezvous queue.
type Subscription[T any] struct {
	queue  *handoff.Queue[T]
	owner  *fanout[T]
	mu     sync.Mutex
	closed bool
}

// Next blocks until the next pushed item, the context ends, or the
// subscription is closed.
func (s *Subscription[T]) Next(ctx context.Context) (T, error) {
	s.mu.Lock()
	closed := s.closed
	s.mu.Unlock()
	if closed {
		var zero T
		return zero, ErrSubscriptionClosed
	}
	return s.queue.Dequeue(ctx)
}

// Close unregisters from the fan-out. Closing the last subscription
// tears down the underlying watch. Safe to call more than once.
func (s *Subscription[T]) Close() {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	s.closed = true
	s.mu.Unlock()

	s.owner.unsubscribe(s)
	s.queue.Clear()
}
