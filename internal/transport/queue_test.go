package transport

import (
	"context"
	"testing"
	"time"

	"github.com/statico/meshtastic-cli-sub001/internal/connectors"
)

func packetEvent(b byte) Event {
	return Event{Packet: []byte{b}}
}

func TestEventQueuePushNext_Ordered(t *testing.T) {
	q := newEventQueue(4)
	q.push(packetEvent(1))
	q.push(packetEvent(2))

	ev, ok := q.next(context.Background())
	if !ok || ev.Packet[0] != 1 {
		t.Fatalf("expected first packet, got %+v ok=%v", ev, ok)
	}
	ev, ok = q.next(context.Background())
	if !ok || ev.Packet[0] != 2 {
		t.Fatalf("expected second packet, got %+v ok=%v", ev, ok)
	}
}

func TestEventQueueOverflow_DropsOldest(t *testing.T) {
	q := newEventQueue(3)
	for b := byte(1); b <= 5; b++ {
		q.push(packetEvent(b))
	}

	if q.droppedCount() != 2 {
		t.Fatalf("expected 2 dropped events, got %d", q.droppedCount())
	}
	ev, ok := q.next(context.Background())
	if !ok || ev.Packet[0] != 3 {
		t.Fatalf("expected oldest surviving packet 3, got %+v", ev)
	}
}

func TestEventQueueNext_WakesOnPush(t *testing.T) {
	q := newEventQueue(4)
	got := make(chan Event, 1)
	go func() {
		ev, ok := q.next(context.Background())
		if ok {
			got <- ev
		}
	}()

	time.Sleep(20 * time.Millisecond)
	q.push(packetEvent(9))

	select {
	case ev := <-got:
		if ev.Packet[0] != 9 {
			t.Fatalf("expected packet 9, got %+v", ev)
		}
	case <-time.After(time.Second):
		t.Fatal("parked consumer was not woken by push")
	}
}

func TestEventQueueClose_ReleasesParkedConsumer(t *testing.T) {
	q := newEventQueue(4)
	released := make(chan bool, 1)
	go func() {
		_, ok := q.next(context.Background())
		released <- ok
	}()

	time.Sleep(20 * time.Millisecond)
	q.close()
	q.close()

	select {
	case ok := <-released:
		if ok {
			t.Fatal("expected terminal signal, got an event")
		}
	case <-time.After(time.Second):
		t.Fatal("consumer blocked past close")
	}
}

func TestEventQueueClose_DeliversQueuedEventsFirst(t *testing.T) {
	q := newEventQueue(4)
	q.push(packetEvent(1))
	status := connectors.ConnStatus{State: connectors.ConnectionStateDisconnected}
	q.push(Event{Status: &status})
	q.close()

	ev, ok := q.next(context.Background())
	if !ok || ev.Packet == nil {
		t.Fatalf("expected queued packet before terminal signal, got %+v ok=%v", ev, ok)
	}
	ev, ok = q.next(context.Background())
	if !ok || ev.Status == nil || !ev.Status.State.Terminal() {
		t.Fatalf("expected queued disconnected status, got %+v ok=%v", ev, ok)
	}
	if _, ok := q.next(context.Background()); ok {
		t.Fatal("expected terminal signal after drain")
	}
}

func TestEventQueueNext_ContextCancel(t *testing.T) {
	q := newEventQueue(4)
	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	if _, ok := q.next(ctx); ok {
		t.Fatal("expected cancellation to release consumer without an event")
	}
}
