package httpd

import (
	"context"
	"sync"

	"golang.org/x/sync/semaphore"
)

// Processor is a unit of work run by a WorkQueue worker.
type Processor interface {
	Process()
}

// WorkQueue is a bounded FIFO drained by a fixed set of worker goroutines.
// Submit never blocks; it refuses work once the queue holds more than max items.
type WorkQueue[T Processor] struct {
	lock    sync.Mutex
	items   []T
	max     int
	closed  bool
	pending *semaphore.Weighted
	ctx     context.Context
	cancel  context.CancelFunc
	wg      sync.WaitGroup
}

func NewWorkQueue[T Processor](threads int, max int) (*WorkQueue[T], error) {
	if threads <= 0 || max <= 0 {
		return nil, ErrInvalidPoolSize
	}
	var ctx, cancel = context.WithCancel(context.Background())
	var q = &WorkQueue[T]{
		items:  make([]T, 0, max+1),
		max:    max,
		ctx:    ctx,
		cancel: cancel,
	}
	// the weighted semaphore is used as a counting one: every permit is taken
	// up front, Submit hands one back per item and workers take it again
	var capacity = int64(max) + 1
	q.pending = semaphore.NewWeighted(capacity)
	if !q.pending.TryAcquire(capacity) {
		cancel()
		return nil, ErrInvalidPoolSize
	}
	q.wg.Add(threads)
	for i := 0; i < threads; i++ {
		go q.run()
	}
	return q, nil
}

// Submit appends item and wakes one worker. It returns false when the queue
// is closed or already holds more than max items.
func (q *WorkQueue[T]) Submit(item T) bool {
	q.lock.Lock()
	defer q.lock.Unlock()
	if q.closed || len(q.items) > q.max {
		return false
	}
	q.items = append(q.items, item)
	q.pending.Release(1)
	return true
}

func (q *WorkQueue[T]) Len() int {
	q.lock.Lock()
	defer q.lock.Unlock()
	return len(q.items)
}

// Close stops the workers and waits for them to return. Items still queued
// are dropped.
func (q *WorkQueue[T]) Close() {
	q.lock.Lock()
	if q.closed {
		q.lock.Unlock()
		return
	}
	q.closed = true
	q.lock.Unlock()

	q.cancel()
	q.wg.Wait()

	q.lock.Lock()
	clear(q.items)
	q.items = q.items[:0]
	q.lock.Unlock()
}

func (q *WorkQueue[T]) run() {
	defer q.wg.Done()
	for {
		if err := q.pending.Acquire(q.ctx, 1); err != nil {
			return
		}
		if q.ctx.Err() != nil {
			return
		}
		var item, ok = q.pop()
		if !ok {
			continue
		}
		item.Process()
	}
}

func (q *WorkQueue[T]) pop() (T, bool) {
	var zero T
	q.lock.Lock()
	defer q.lock.Unlock()
	if len(q.items) == 0 {
		return zero, false
	}
	var item = q.items[0]
	q.items[0] = zero
	q.items = q.items[1:]
	return item, true
}
