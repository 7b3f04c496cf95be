package events

import (
	"context"
	"sync"
	"sync/atomic"

	"github.com/google/uuid"
	"github.com/okian/fantasylive/pkg/metrics"
)

const (
	defaultSubscriberBuffer = 64
	subscriberSink          = "subscriber"
)

// Publisher sends events to subscribers.
type Publisher interface {
	Publish(ctx context.Context, ev Event) error
}

// Bus fans events out to every subscriber. Delivery to each subscriber is in
// publish order and never blocks: an event that finds a subscriber's buffer
// full is dropped for that subscriber and counted.
type Bus struct {
	mu      sync.RWMutex
	subs    map[string]*subscription
	closed  bool
	dropped atomic.Int64
}

type subscription struct {
	ch chan Event
}

// NewBus creates an empty bus.
func NewBus() *Bus {
	return &Bus{subs: make(map[string]*subscription)}
}

// Subscribe returns a channel of future events and a cancel func. The channel
// is closed after cancel or Close.
func (b *Bus) Subscribe(buffer int) (<-chan Event, func()) {
	if buffer <= 0 {
		buffer = defaultSubscriberBuffer
	}
	sub := &subscription{ch: make(chan Event, buffer)}
	id := uuid.NewString()

	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		close(sub.ch)
		return sub.ch, func() {}
	}
	b.subs[id] = sub
	b.mu.Unlock()

	cancel := func() {
		b.mu.Lock()
		defer b.mu.Unlock()
		if _, ok := b.subs[id]; ok {
			delete(b.subs, id)
			close(sub.ch)
		}
	}
	return sub.ch, cancel
}

// Publish delivers ev to every current subscriber with room for it. It
// returns ErrBusClosed after Close and ctx's error if ctx has already ended.
func (b *Bus) Publish(ctx context.Context, ev Event) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	b.mu.RLock()
	defer b.mu.RUnlock()

	if b.closed {
		return ErrBusClosed
	}
	for _, sub := range b.subs {
		select {
		case sub.ch <- ev:
		default:
			b.dropped.Add(1)
			metrics.RecordEventDropped(subscriberSink)
		}
	}
	metrics.RecordEventPublished(string(ev.Type))
	return nil
}

// Dropped returns how many deliveries were skipped because a subscriber's
// buffer was full.
func (b *Bus) Dropped() int64 { return b.dropped.Load() }

// Subscribers returns the number of live subscriptions.
func (b *Bus) Subscribers() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.subs)
}

// Close ends every subscription. Later publishes return ErrBusClosed.
func (b *Bus) Close() {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		return
	}
	b.closed = true
	for id, sub := range b.subs {
		close(sub.ch)
		delete(b.subs, id)
	}
}
