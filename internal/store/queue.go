package store

import (
	"context"
	"sync"
)

// JobQueue is an unbounded FIFO of job ids. Each pushed id is delivered to
// exactly one Pop caller.
type JobQueue struct {
	mu    sync.Mutex
	items []string
	// ready holds at most one pending wake-up; consumers re-check items after waking.
	ready chan struct{}
}

// NewJobQueue creates an empty queue.
func NewJobQueue() *JobQueue {
	return &JobQueue{ready: make(chan struct{}, 1)}
}

// Push appends id to the back of the queue.
func (q *JobQueue) Push(id string) {
	q.mu.Lock()
	q.items = append(q.items, id)
	q.mu.Unlock()
	q.wake()
}

// PushFront puts id at the head of the queue so it is the next one delivered.
func (q *JobQueue) PushFront(id string) {
	q.mu.Lock()
	q.items = append([]string{id}, q.items...)
	q.mu.Unlock()
	q.wake()
}

// Pop blocks until an id is available or ctx is done.
func (q *JobQueue) Pop(ctx context.Context) (string, error) {
	for {
		if err := ctx.Err(); err != nil {
			return "", err
		}

		q.mu.Lock()
		if len(q.items) > 0 {
			id := q.items[0]
			q.items[0] = ""
			q.items = q.items[1:]
			remaining := len(q.items)
			q.mu.Unlock()

			// Pass the wake-up on so another idle consumer picks up the rest.
			if remaining > 0 {
				q.wake()
			}
			return id, nil
		}
		q.mu.Unlock()

		select {
		case <-ctx.Done():
			return "", ctx.Err()
		case <-q.ready:
		}
	}
}

// Len returns the number of ids waiting.
func (q *JobQueue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.items)
}

func (q *JobQueue) wake() {
	select {
	case q.ready <- struct{}{}:
	default:
	}
}
