// Package queue holds the in-memory intake FIFO between cheque submission and
// the clearance worker. The PENDING clearance record is the durable entry; this
// queue only schedules work and is rebuilt from those records on start.
package queue

import (
	"context"
	"sync"
	"time"

	"github.com/iho/chequer/internal/domain"
)

// Queue is an unbounded FIFO of clearance requests, de-duplicated by record id.
// Enqueue never blocks; any number of producers may call it concurrently.
type Queue struct {
	mu     sync.Mutex
	items  []domain.QueueItem
	queued map[string]struct{}
	notify chan struct{}
}

// New creates an empty queue.
func New() *Queue {
	return &Queue{
		queued: make(map[string]struct{}),
		notify: make(chan struct{}, 1),
	}
}

// Enqueue appends item unless a request for the same record is already waiting.
// It reports whether the item was added.
func (q *Queue) Enqueue(item domain.QueueItem) bool {
	q.mu.Lock()
	if _, ok := q.queued[item.RecordID]; ok {
		q.mu.Unlock()
		return false
	}
	if item.Status == "" {
		item.Status = domain.ClearanceStatusPending
	}
	if item.EnqueuedAt.IsZero() {
		item.EnqueuedAt = time.Now().UTC()
	}
	q.items = append(q.items, item)
	q.queued[item.RecordID] = struct{}{}
	q.mu.Unlock()

	select {
	case q.notify <- struct{}{}:
	default:
	}
	return true
}

// TryDequeue removes and returns the oldest item without waiting.
func (q *Queue) TryDequeue() (domain.QueueItem, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()

	if len(q.items) == 0 {
		return domain.QueueItem{}, false
	}
	item := q.items[0]
	q.items[0] = domain.QueueItem{}
	q.items = q.items[1:]
	delete(q.queued, item.RecordID)
	return item, true
}

// Dequeue returns the oldest item, waiting up to idleWait for one to arrive.
// It returns false when the wait elapses or ctx is done.
func (q *Queue) Dequeue(ctx context.Context, idleWait time.Duration) (domain.QueueItem, bool) {
	if item, ok := q.TryDequeue(); ok {
		return item, true
	}

	timer := time.NewTimer(idleWait)
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			return domain.QueueItem{}, false
		case <-timer.C:
			return q.TryDequeue()
		case <-q.notify:
			if item, ok := q.TryDequeue(); ok {
				return item, true
			}
		}
	}
}

// Snapshot returns a copy of the waiting items, oldest first.
func (q *Queue) Snapshot() []domain.QueueItem {
	q.mu.Lock()
	defer q.mu.Unlock()

	out := make([]domain.QueueItem, len(q.items))
	copy(out, q.items)
	return out
}

// Len returns the number of waiting items.
func (q *Queue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.items)
}
