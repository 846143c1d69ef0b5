package concurrency

import (
	"context"
	"sync"
	"sync/atomic"
	"time"
)

// envelope is a queued task plus the bookkeeping the pool attaches to it
type envelope struct {
	id       string
	name     string
	task     Task
	enqueued time.Time
}

// taskQueue is the FIFO shared by all submitters and workers.
// The buffered channel provides exactly-once delivery; the lock only
// orders pushes against close so that a send never hits a closed channel.
type taskQueue struct {
	ch       chan *envelope
	closing  chan struct{}
	isClosed atomic.Bool
	mu       sync.RWMutex
	capacity int
}

func newTaskQueue(capacity int) *taskQueue {
	return &taskQueue{
		ch:       make(chan *envelope, capacity),
		closing:  make(chan struct{}),
		capacity: capacity,
	}
}

// push enqueues env. Without block it fails fast with ErrQueueFull;
// with block it waits for room, ctx, or shutdown.
func (q *taskQueue) push(ctx context.Context, env *envelope, block bool) error {
	if q.isClosed.Load() {
		return ErrPoolClosed
	}

	q.mu.RLock()
	defer q.mu.RUnlock()

	// close flips isClosed before it waits for the write lock; checking it
	// again here makes IsClosed the point after which no push succeeds.
	if q.isClosed.Load() {
		return ErrPoolClosed
	}

	if !block {
		select {
		case q.ch <- env:
			return nil
		default:
			return ErrQueueFull
		}
	}

	select {
	case q.ch <- env:
		return nil
	case <-q.closing:
		return ErrPoolClosed
	case <-ctx.Done():
		return ctx.Err()
	}
}

// pop blocks until a task is available. ok is false once the queue is
// closed and drained.
func (q *taskQueue) pop() (env *envelope, ok bool) {
	env, ok = <-q.ch
	return env, ok
}

// close stops accepting pushes and closes the stream. Reports whether this
// call performed the close.
func (q *taskQueue) close() bool {
	if !q.isClosed.CompareAndSwap(false, true) {
		return false
	}
	close(q.closing) // wake blocked submitters

	q.mu.Lock()
	close(q.ch)
	q.mu.Unlock()
	return true
}

func (q *taskQueue) size() int {
	return len(q.ch)
}
