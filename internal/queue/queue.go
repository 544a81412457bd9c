package queue

import (
	"context"
	"errors"
	"sync"
	"time"
)

var (
	// ErrQueueClosed is returned when operations are attempted on a closed queue
	ErrQueueClosed = errors.New("queue is closed")

	// ErrQueueEmpty is returned by TryPop when nothing is queued
	ErrQueueEmpty = errors.New("queue is empty")
)

// Queue is an unbounded FIFO. Push never blocks, so producers holding locks
// can hand items to a slower consumer without stalling.
type Queue[T any] struct {
	mu     sync.Mutex
	items  []T
	wake   chan struct{}
	closed bool
	stats  Stats
}

// Stats tracks queue throughput.
type Stats struct {
	TotalPushed int64
	TotalPopped int64
	CurrentSize int
	PeakSize    int
	LastPush    time.Time
	LastPop     time.Time
}

// New creates an empty queue.
func New[T any]() *Queue[T] {
	return &Queue[T]{wake: make(chan struct{}, 1)}
}

// Push appends items in order. It returns ErrQueueClosed after Close.
func (q *Queue[T]) Push(items ...T) error {
	if len(items) == 0 {
		return nil
	}

	q.mu.Lock()
	if q.closed {
		q.mu.Unlock()
		return ErrQueueClosed
	}
	q.items = append(q.items, items...)
	q.stats.TotalPushed += int64(len(items))
	q.stats.LastPush = time.Now()
	q.stats.CurrentSize = len(q.items)
	q.stats.PeakSize = max(q.stats.PeakSize, len(q.items))
	q.mu.Unlock()

	q.signal()
	return nil
}

// Pop removes the oldest item, waiting until one is available. Items pushed
// before Close are still returned; after that Pop fails with
// ErrQueueClosed.
func (q *Queue[T]) Pop(ctx context.Context) (T, error) {
	for {
		item, err := q.TryPop()
		if !errors.Is(err, ErrQueueEmpty) {
			return item, err
		}

		select {
		case <-ctx.Done():
			var zero T
			return zero, ctx.Err()
		case <-q.wake:
		}
	}
}

// TryPop removes the oldest item without waiting.
func (q *Queue[T]) TryPop() (T, error) {
	q.mu.Lock()
	defer q.mu.Unlock()

	var zero T
	if len(q.items) == 0 {
		if q.closed {
			return zero, ErrQueueClosed
		}
		return zero, ErrQueueEmpty
	}

	item := q.items[0]
	q.items[0] = zero
	q.items = q.items[1:]
	q.stats.TotalPopped++
	q.stats.LastPop = time.Now()
	q.stats.CurrentSize = len(q.items)
	if len(q.items) > 0 {
		q.signalLocked()
	}
	return item, nil
}

// Drain calls fn for every item in order until the queue is closed and
// empty or ctx is done.
func (q *Queue[T]) Drain(ctx context.Context, fn func(T)) error {
	for {
		item, err := q.Pop(ctx)
		if errors.Is(err, ErrQueueClosed) {
			return nil
		}
		if err != nil {
			return err
		}
		fn(item)
	}
}

// Len returns the number of queued items.
func (q *Queue[T]) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.items)
}

// Clear drops every queued item.
func (q *Queue[T]) Clear() {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.items = nil
	q.stats.CurrentSize = 0
}

// Close stops accepting items and wakes waiting consumers.
func (q *Queue[T]) Close() {
	q.mu.Lock()
	if q.closed {
		q.mu.Unlock()
		return
	}
	q.closed = true
	q.mu.Unlock()

	q.signal()
}

// Stats returns a snapshot of the queue statistics.
func (q *Queue[T]) Stats() Stats {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.stats
}

func (q *Queue[T]) signal() {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.signalLocked()
}

func (q *Queue[T]) signalLocked() {
	select {
	case q.wake <- struct{}{}:
	default:
	}
}
