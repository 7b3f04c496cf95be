package queue

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/okian/fantasylive/internal/domain/model"
)

var t0 = time.Unix(1700000000, 0)

func update(id string, p model.Priority, at time.Duration) Item {
	return Item{ID: id, Priority: p, ReceivedAt: t0.Add(at)}
}

func ids(items []Item) []string {
	out := make([]string, len(items))
	for i, it := range items {
		out[i] = it.ID
	}
	return out
}

func equal(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

func TestInMemoryQueue_PriorityOrder(t *testing.T) {
	q := NewInMemoryQueue(WithCapacity(0))
	ctx := context.Background()

	q.Enqueue(ctx, update("low", model.PriorityLow, 1*time.Second))
	q.Enqueue(ctx, update("critical", model.PriorityCritical, 2*time.Second))
	q.Enqueue(ctx, update("high", model.PriorityHigh, 3*time.Second))

	got := ids(q.Drain(0))
	want := []string{"critical", "high", "low"}
	if !equal(got, want) {
		t.Errorf("expected %v, got %v", want, got)
	}
}

func TestInMemoryQueue_FIFOWithinPriority(t *testing.T) {
	q := NewInMemoryQueue()
	ctx := context.Background()

	// Same timestamp: enqueue order breaks the tie.
	for i := range 5 {
		q.Enqueue(ctx, update(fmt.Sprintf("m%d", i), model.PriorityMedium, 0))
	}
	q.Enqueue(ctx, update("early", model.PriorityMedium, -time.Second))

	got := ids(q.Drain(3))
	want := []string{"early", "m0", "m1"}
	if !equal(got, want) {
		t.Errorf("expected %v, got %v", want, got)
	}
	if l := q.Len(ctx); l != 3 {
		t.Errorf("expected length 3, got %d", l)
	}
}

func TestInMemoryQueue_SequenceAssigned(t *testing.T) {
	q := NewInMemoryQueue()
	ctx := context.Background()

	q.Enqueue(ctx, update("a", model.PriorityHigh, 0))
	q.Enqueue(ctx, update("b", model.PriorityHigh, 0))

	items := q.Drain(0)
	if items[0].Seq == 0 || items[1].Seq <= items[0].Seq {
		t.Errorf("expected increasing sequence numbers, got %d then %d", items[0].Seq, items[1].Seq)
	}
}

func TestInMemoryQueue_Requeue(t *testing.T) {
	q := NewInMemoryQueue()
	ctx := context.Background()

	q.Enqueue(ctx, update("first", model.PriorityHigh, 0))
	q.Enqueue(ctx, update("second", model.PriorityHigh, 0))
	drained := q.Drain(1)

	q.Enqueue(ctx, update("third", model.PriorityHigh, 0))
	q.Requeue(drained)

	got := ids(q.Drain(0))
	want := []string{"first", "second", "third"}
	if !equal(got, want) {
		t.Errorf("expected %v, got %v", want, got)
	}
}

func TestInMemoryQueue_Overflow(t *testing.T) {
	ctx := context.Background()

	t.Run("drops oldest low", func(t *testing.T) {
		q := NewInMemoryQueue(WithCapacity(3))
		q.Enqueue(ctx, update("low1", model.PriorityLow, 1))
		q.Enqueue(ctx, update("low2", model.PriorityLow, 2))
		q.Enqueue(ctx, update("high", model.PriorityHigh, 3))

		if !q.Enqueue(ctx, update("low3", model.PriorityLow, 4)) {
			t.Fatal("expected low update to displace the oldest low")
		}
		got := ids(q.Drain(0))
		want := []string{"high", "low2", "low3"}
		if !equal(got, want) {
			t.Errorf("expected %v, got %v", want, got)
		}
	})

	t.Run("drops oldest of lowest class below incoming", func(t *testing.T) {
		q := NewInMemoryQueue(WithCapacity(3))
		q.Enqueue(ctx, update("med1", model.PriorityMedium, 1))
		q.Enqueue(ctx, update("high", model.PriorityHigh, 2))
		q.Enqueue(ctx, update("med2", model.PriorityMedium, 3))

		if !q.Enqueue(ctx, update("crit", model.PriorityCritical, 4)) {
			t.Fatal("expected critical update to be admitted")
		}
		got := ids(q.Drain(0))
		want := []string{"crit", "high", "med2"}
		if !equal(got, want) {
			t.Errorf("expected %v, got %v", want, got)
		}
	})

	t.Run("rejects when incoming is lowest", func(t *testing.T) {
		q := NewInMemoryQueue(WithCapacity(2))
		q.Enqueue(ctx, update("high1", model.PriorityHigh, 1))
		q.Enqueue(ctx, update("high2", model.PriorityHigh, 2))

		if q.Enqueue(ctx, update("med", model.PriorityMedium, 3)) {
			t.Error("expected medium update to be rejected")
		}
		if q.Enqueue(ctx, update("high3", model.PriorityHigh, 3)) {
			t.Error("expected equal-priority update to be rejected")
		}
		if l := q.Len(ctx); l != 2 {
			t.Errorf("expected length 2, got %d", l)
		}
		if d := q.Dropped(); d != 2 {
			t.Errorf("expected 2 dropped, got %d", d)
		}
	})
}

func TestInMemoryQueue_Urgent(t *testing.T) {
	q := NewInMemoryQueue()
	ctx := context.Background()

	q.Enqueue(ctx, update("high", model.PriorityHigh, 0))
	select {
	case <-q.Urgent():
		t.Fatal("expected no urgent signal for high priority")
	default:
	}

	q.Enqueue(ctx, update("c1", model.PriorityCritical, 0))
	q.Enqueue(ctx, update("c2", model.PriorityCritical, 0))

	select {
	case <-q.Urgent():
	case <-time.After(100 * time.Millisecond):
		t.Fatal("expected urgent signal")
	}
	select {
	case <-q.Urgent():
		t.Fatal("expected signals to coalesce")
	default:
	}
}

func TestInMemoryQueue_ConcurrentAccess(t *testing.T) {
	q := NewInMemoryQueue(WithCapacity(0))
	ctx := context.Background()
	numGoroutines := 10
	numUpdates := 100

	var wg sync.WaitGroup
	for i := range numGoroutines {
		wg.Add(1)
		go func(id int) {
			defer wg.Done()
			for j := range numUpdates {
				p := model.Priority(j % 4)
				if !q.Enqueue(ctx, update(fmt.Sprintf("u%d_%d", id, j), p, time.Duration(j))) {
					t.Errorf("enqueue %d_%d rejected", id, j)
				}
			}
		}(i)
	}

	drained := make(chan int)
	go func() {
		n := 0
		for n < numGoroutines*numUpdates {
			n += len(q.Drain(7))
			time.Sleep(time.Microsecond)
		}
		drained <- n
	}()

	wg.Wait()
	select {
	case n := <-drained:
		if n != numGoroutines*numUpdates {
			t.Errorf("expected %d drained, got %d", numGoroutines*numUpdates, n)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("timed out draining")
	}
}

func TestInMemoryQueue_GracefulShutdown(t *testing.T) {
	q := NewInMemoryQueue(WithCapacity(10))
	ctx := context.Background()

	q.Enqueue(ctx, update("u1", model.PriorityHigh, 0))

	if q.IsClosed() {
		t.Error("expected queue to be open initially")
	}
	if err := q.Close(); err != nil {
		t.Errorf("expected close to succeed, got error: %v", err)
	}
	if !q.IsClosed() {
		t.Error("expected queue to be closed after Close()")
	}
	if q.Enqueue(ctx, update("u2", model.PriorityHigh, 0)) {
		t.Error("expected enqueue to fail after closing")
	}
	if got := ids(q.Drain(0)); !equal(got, []string{"u1"}) {
		t.Errorf("expected queued update to survive close, got %v", got)
	}

	q.Reopen()
	if !q.Enqueue(ctx, update("u3", model.PriorityHigh, 0)) {
		t.Error("expected enqueue to succeed after reopen")
	}

	cancelled, cancel := context.WithCancel(ctx)
	cancel()
	if q.Enqueue(cancelled, update("u4", model.PriorityHigh, 0)) {
		t.Error("expected enqueue with cancelled context to fail")
	}
}
