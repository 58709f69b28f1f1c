package persistence

import (
	"context"
	"testing"
	"time"
)

func TestWriterQueue_RunsEnqueuedCommands(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	w := NewWriterQueue(nil, 4)
	w.Start(ctx)

	done := make(chan struct{})
	w.Enqueue("touch", func(context.Context) error {
		close(done)

		return nil
	})

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("enqueued command never ran")
	}
}

func TestWriterQueueEnqueue_DropsWhenFull(t *testing.T) {
	w := NewWriterQueue(nil, 1)

	ran := 0
	fill := func(context.Context) error { ran++; return nil }

	// Without a running drain loop the second enqueue must return immediately
	// instead of parking a goroutine on the full queue.
	w.Enqueue("kept", fill)
	w.Enqueue("shed", fill)

	if got := len(w.queue); got != 1 {
		t.Fatalf("expected full queue to shed the overflow command, got %d queued", got)
	}
}
