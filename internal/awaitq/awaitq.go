// Package awaitq implements an unbounded FIFO hand-off between
// goroutines that push values and goroutines that wait for them.
package awaitq

import (
	"context"
	"sync"

	"github.com/eapache/queue"
)

type waiter[T any] struct {
	c         chan T
	cancelled bool
}

// Queue pairs pushed values with waiting Shift calls.
// Whenever both a value and a waiter are pending, the oldest
// waiter receives the oldest value.
//
// The zero value is not usable, use New.
type Queue[T any] struct {
	mu      sync.Mutex
	values  *queue.Queue
	waiters *queue.Queue

	// cancelled counts the cancelled waiters still in waiters.
	cancelled int
}

// New returns an empty Queue.
func New[T any]() *Queue[T] {
	return &Queue[T]{
		values:  queue.New(),
		waiters: queue.New(),
	}
}

// Push appends values in argument order. It never blocks.
func (q *Queue[T]) Push(values ...T) {
	q.mu.Lock()
	defer q.mu.Unlock()

	for _, v := range values {
		q.values.Add(v)
	}
	q.clear()
}

// clear hands values to waiters until one side runs out.
// q.mu must be held.
func (q *Queue[T]) clear() {
	for q.waiters.Length() > 0 && q.values.Length() > 0 {
		w := q.waiters.Remove().(*waiter[T])
		if w.cancelled {
			q.cancelled--
			continue
		}
		w.c <- q.values.Remove().(T)
	}
}

// Shift returns the next value in FIFO order, waiting for a Push if
// none is queued. Concurrent Shift calls are satisfied in the order
// they were issued.
//
// If ctx is done before a value arrives, Shift returns ctx.Err()
// and no value is consumed on its behalf.
func (q *Queue[T]) Shift(ctx context.Context) (T, error) {
	q.mu.Lock()
	if q.values.Length() > 0 && q.waiters.Length() == 0 {
		v := q.values.Remove().(T)
		q.mu.Unlock()
		return v, nil
	}

	w := &waiter[T]{
		c: make(chan T, 1),
	}
	q.waiters.Add(w)
	q.clear()
	q.mu.Unlock()

	select {
	case v := <-w.c:
		return v, nil
	case <-ctx.Done():
	}

	q.mu.Lock()
	defer q.mu.Unlock()
	select {
	case v := <-w.c:
		// Lost the race with Push, the value is ours.
		return v, nil
	default:
		w.cancelled = true
		q.cancelled++
		q.dropCancelled()
		var zero T
		return zero, ctx.Err()
	}
}

// dropCancelled removes cancelled waiters from the head of the queue
// and rebuilds it once they make up more than half of it.
// q.mu must be held.
func (q *Queue[T]) dropCancelled() {
	for q.waiters.Length() > 0 && q.waiters.Peek().(*waiter[T]).cancelled {
		q.waiters.Remove()
		q.cancelled--
	}

	if q.cancelled == 0 || q.cancelled*2 <= q.waiters.Length() {
		return
	}
	live := queue.New()
	for q.waiters.Length() > 0 {
		w := q.waiters.Remove().(*waiter[T])
		if !w.cancelled {
			live.Add(w)
		}
	}
	q.waiters = live
	q.cancelled = 0
}

// Len returns the number of values waiting for a Shift.
func (q *Queue[T]) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.values.Length()
}
