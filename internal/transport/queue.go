package transport

import (
	"context"
	"sync"
)

const defaultQueueCapacity = 256

// eventQueue bridges the polling loop (producer) and the synchronization
// driver (single consumer). It is bounded and lossy under sustained
// overload: when full, the oldest queued event is shed so the producer never
// blocks and memory stays bounded, trading completeness for freshness.
type eventQueue struct {
	mu       sync.Mutex
	capacity int
	events   []Event
	dropped  uint64
	closed   bool
	wake     chan struct{}
	done     chan struct{}
}

func newEventQueue(capacity int) *eventQueue {
	if capacity <= 0 {
		capacity = defaultQueueCapacity
	}

	return &eventQueue{
		capacity: capacity,
		wake:     make(chan struct{}, 1),
		done:     make(chan struct{}),
	}
}

func (q *eventQueue) push(ev Event) {
	q.mu.Lock()
	if q.closed {
		q.mu.Unlock()

		return
	}
	q.events = append(q.events, ev)
	if len(q.events) > q.capacity {
		q.events = append(q.events[:0], q.events[1:]...)
		q.dropped++
	}
	q.mu.Unlock()

	select {
	case q.wake <- struct{}{}:
	default:
	}
}

// next blocks until an event is available, the queue is closed, or ctx is
// canceled. Events queued before close are still delivered; afterwards the
// second return value is false exactly once per call.
func (q *eventQueue) next(ctx context.Context) (Event, bool) {
	for {
		q.mu.Lock()
		if len(q.events) > 0 {
			ev := q.events[0]
			q.events = append(q.events[:0], q.events[1:]...)
			q.mu.Unlock()

			return ev, true
		}
		closed := q.closed
		q.mu.Unlock()
		if closed {
			return Event{}, false
		}

		select {
		case <-ctx.Done():
			return Event{}, false
		case <-q.done:
		case <-q.wake:
		}
	}
}

// close releases any parked consumer. Idempotent.
func (q *eventQueue) close() {
	q.mu.Lock()
	if q.closed {
		q.mu.Unlock()

		return
	}
	q.closed = true
	q.mu.Unlock()
	close(q.done)
}

func (q *eventQueue) droppedCount() uint64 {
	q.mu.Lock()
	defer q.mu.Unlock()

	return q.dropped
}
