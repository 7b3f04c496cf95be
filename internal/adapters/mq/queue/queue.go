// Package queue is the priority dispatch queue between the classifier and the
// tick loop.
//
// Updates drain in (priority desc, receivedAt asc, seq asc) order. Enqueue
// never blocks; a bounded queue applies the overflow policy documented on
// Enqueue.
package queue

import (
	"container/heap"
	"context"
	"sync"

	"github.com/okian/fantasylive/internal/domain/model"
	"github.com/okian/fantasylive/pkg/metrics"
)

// Default queue configuration constants.
const (
	defaultQueueCapacity = 100000
)

// Item is the payload type flowing through the queue.
type Item = model.ClassifiedUpdate

// Queue provides non-blocking enqueue and batch drain semantics.
type Queue interface {
	// Enqueue adds an update. Returns false if it was rejected.
	Enqueue(ctx context.Context, u Item) bool

	// Drain removes and returns up to limit updates in dispatch order.
	// limit <= 0 drains everything.
	Drain(limit int) []Item

	// Requeue puts drained updates back with their original ordering keys.
	Requeue(items []Item)

	// Len returns the current number of queued updates.
	Len(ctx context.Context) int

	// Urgent signals when a Critical update was enqueued.
	Urgent() <-chan struct{}

	// Close stops accepting updates. Queued updates can still be drained.
	Close() error

	// IsClosed returns true if the queue has been closed.
	IsClosed() bool
}

// InMemoryQueue implements Queue with a binary heap.
type InMemoryQueue struct {
	mu       sync.Mutex
	items    updateHeap
	capacity int
	seq      uint64
	urgent   chan struct{}
	closed   bool
	dropped  int64
}

// NewInMemoryQueue creates a new in-memory queue with configuration options.
func NewInMemoryQueue(opts ...Option) *InMemoryQueue {
	q := &InMemoryQueue{
		capacity: defaultQueueCapacity,
		urgent:   make(chan struct{}, 1),
	}
	for _, opt := range opts {
		opt(q)
	}

	metrics.UpdateQueueCapacity(q.capacity)
	metrics.UpdateQueueSize(0)

	return q
}

// Enqueue adds an update and assigns its sequence number.
//
// When the queue is full, the oldest Low-priority update is dropped. With no
// Low update queued, the oldest update of the lowest class below the incoming
// priority is dropped. If no queued update ranks below the incoming one, the
// incoming update is rejected.
func (q *InMemoryQueue) Enqueue(ctx context.Context, u Item) bool { //nolint:gocritic // hugeParam: updates are stored by value
	if ctx.Err() != nil {
		metrics.RecordErrorByComponent("queue", "context_cancelled")
		return false
	}

	q.mu.Lock()
	if q.closed {
		q.mu.Unlock()
		metrics.RecordErrorByComponent("queue", "closed")
		return false
	}

	if q.capacity > 0 && len(q.items) >= q.capacity {
		victim := q.victim(u.Priority)
		if victim < 0 {
			q.dropped++
			q.mu.Unlock()
			metrics.RecordQueueDropped(u.Priority.String())
			metrics.RecordErrorByComponent("queue", "capacity_exceeded")
			return false
		}
		dropped := heap.Remove(&q.items, victim).(Item)
		q.dropped++
		metrics.RecordQueueDropped(dropped.Priority.String())
	}

	q.seq++
	u.Seq = q.seq
	heap.Push(&q.items, u)
	size := len(q.items)
	q.mu.Unlock()

	metrics.UpdateQueueSize(size)
	if u.Priority == model.PriorityCritical {
		select {
		case q.urgent <- struct{}{}:
		default:
		}
	}
	return true
}

// victim returns the heap index to evict for an incoming update of priority
// p, or -1 to reject it. Must be called with q.mu held.
func (q *InMemoryQueue) victim(p model.Priority) int {
	idx := -1
	for i := range q.items {
		it := &q.items[i]
		if idx < 0 {
			idx = i
			continue
		}
		cur := &q.items[idx]
		if it.Priority < cur.Priority || (it.Priority == cur.Priority && older(it, cur)) {
			idx = i
		}
	}
	if idx < 0 {
		return -1
	}
	lowest := q.items[idx].Priority
	if lowest == model.PriorityLow || lowest < p {
		return idx
	}
	return -1
}

// Drain removes and returns up to limit updates in dispatch order.
func (q *InMemoryQueue) Drain(limit int) []Item {
	q.mu.Lock()
	n := len(q.items)
	if limit > 0 && limit < n {
		n = limit
	}
	out := make([]Item, 0, n)
	for range n {
		out = append(out, heap.Pop(&q.items).(Item))
	}
	size := len(q.items)
	q.mu.Unlock()

	metrics.UpdateQueueSize(size)
	return out
}

// Requeue puts updates back. Their sequence numbers are kept, so they drain
// ahead of anything of the same priority that arrived later. Requeued updates
// were already admitted and do not count against the overflow policy.
func (q *InMemoryQueue) Requeue(items []Item) {
	if len(items) == 0 {
		return
	}
	q.mu.Lock()
	for _, it := range items {
		heap.Push(&q.items, it)
	}
	size := len(q.items)
	q.mu.Unlock()

	metrics.RecordQueueDeferred(len(items))
	metrics.UpdateQueueSize(size)
}

// Len returns the current number of queued updates.
func (q *InMemoryQueue) Len(_ context.Context) int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.items)
}

// Urgent returns a channel that receives after a Critical update is enqueued.
// Signals coalesce: one receive may stand for many updates.
func (q *InMemoryQueue) Urgent() <-chan struct{} {
	return q.urgent
}

// Close stops accepting updates.
func (q *InMemoryQueue) Close() error {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.closed = true
	return nil
}

// IsClosed returns true if the queue has been closed.
func (q *InMemoryQueue) IsClosed() bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.closed
}

// Reopen accepts updates again after Close.
func (q *InMemoryQueue) Reopen() {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.closed = false
}

// Dropped counts updates lost to the overflow policy, rejected or evicted.
func (q *InMemoryQueue) Dropped() int64 {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.dropped
}

// Capacity returns the configured bound; 0 means unbounded.
func (q *InMemoryQueue) Capacity() int {
	return q.capacity
}

func older(a, b *Item) bool {
	if !a.ReceivedAt.Equal(b.ReceivedAt) {
		return a.ReceivedAt.Before(b.ReceivedAt)
	}
	return a.Seq < b.Seq
}

// updateHeap implements heap.Interface. The root is the next update to run.
type updateHeap []Item

func (h updateHeap) Len() int { return len(h) }

func (h updateHeap) Less(i, j int) bool {
	if h[i].Priority != h[j].Priority {
		return h[i].Priority > h[j].Priority
	}
	return older(&h[i], &h[j])
}

func (h updateHeap) Swap(i, j int) { h[i], h[j] = h[j], h[i] }

func (h *updateHeap) Push(x any) { *h = append(*h, x.(Item)) }

func (h *updateHeap) Pop() any {
	old := *h
	n := len(old)
	it := old[n-1]
	old[n-1] = Item{}
	*h = old[:n-1]
	return it
}
