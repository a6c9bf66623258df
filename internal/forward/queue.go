package forward

import (
	"context"
	"sync"
)

// pending is one queued forward and the cache generation it set.
type pending struct {
	content string
	gen     uint64
}

// queue is an unbounded FIFO of pending forwards. Pushing never blocks.
type queue struct {
	mu     sync.Mutex
	items  []pending
	closed bool
	notify chan struct{}
}

func newQueue() *queue {
	return &queue{notify: make(chan struct{}, 1)}
}

// push appends item and reports false if the queue is closed.
func (q *queue) push(item pending) bool {
	q.mu.Lock()
	if q.closed {
		q.mu.Unlock()
		return false
	}
	q.items = append(q.items, item)
	q.mu.Unlock()
	q.wake()
	return true
}

// pop blocks until an item is available. It returns false once the queue
// is closed and empty, or when ctx is done.
func (q *queue) pop(ctx context.Context) (pending, bool) {
	for {
		q.mu.Lock()
		if len(q.items) > 0 {
			item := q.items[0]
			q.items[0] = pending{}
			q.items = q.items[1:]
			q.mu.Unlock()
			return item, true
		}
		closed := q.closed
		q.mu.Unlock()
		if closed {
			return pending{}, false
		}

		select {
		case <-q.notify:
		case <-ctx.Done():
			return pending{}, false
		}
	}
}

func (q *queue) close() {
	q.mu.Lock()
	q.closed = true
	q.mu.Unlock()
	q.wake()
}

func (q *queue) len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.items)
}

func (q *queue) wake() {
	select {
	case q.notify <- struct{}{}:
	default:
	}
}
