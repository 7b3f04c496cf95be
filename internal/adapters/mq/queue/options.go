package queue

// Option applies a configuration option to the InMemoryQueue.
type Option func(*InMemoryQueue)

// WithCapacity bounds the queue. 0 makes it unbounded; negative values are
// ignored.
func WithCapacity(capacity int) Option {
	return func(q *InMemoryQueue) {
		if capacity >= 0 {
			q.capacity = capacity
		}
	}
}
