package memory

import (
	"context"
	"errors"
	"testing"
	"time"
)

type item struct {
	Row int
}

func TestQueueEnqueueDequeue(t *testing.T) {
	t.Parallel()

	q := NewQueue[item](1)
	result := make(chan item, 1)
	errCh := make(chan error, 1)

	go func() {
		got, err := q.Dequeue(context.Background())
		if err != nil {
			errCh <- err
			return
		}
		result <- got
	}()

	time.Sleep(10 * time.Millisecond) // allow goroutine to start
	if err := q.Enqueue(context.Background(), item{Row: 1}); err != nil {
		t.Fatalf("Enqueue() error = %v", err)
	}
	select {
	case err := <-errCh:
		t.Fatalf("Dequeue() error = %v", err)
	case got := <-result:
		if got.Row != 1 {
			t.Fatalf("expected row 1, got %+v", got)
		}
	case <-time.After(time.Second):
		t.Fatal("dequeue did not return item")
	}
}

func TestQueueCancelationErrors(t *testing.T) {
	t.Parallel()

	qDequeue := NewQueue[item](1)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := qDequeue.Dequeue(ctx); err == nil ||
		err.Error() != "dequeue canceled: context canceled" {
		t.Fatalf("expected dequeue cancel error, got %v", err)
	}

	qEnqueue := NewQueue[item](1)
	if err := qEnqueue.Enqueue(context.Background(), item{Row: 1}); err != nil {
		t.Fatalf("failed to prime enqueue queue: %v", err)
	}
	ctx, cancel = context.WithCancel(context.Background())
	cancel()
	if err := qEnqueue.Enqueue(ctx, item{}); err == nil ||
		err.Error() != "enqueue canceled: context canceled" {
		t.Fatalf("expected enqueue cancel error, got %v", err)
	}
}

func TestQueueCloseDrainsThenFails(t *testing.T) {
	t.Parallel()

	q := NewQueue[item](3)
	for i := 1; i <= 3; i++ {
		if err := q.Enqueue(context.Background(), item{Row: i}); err != nil {
			t.Fatalf("Enqueue() error = %v", err)
		}
	}
	q.Close()
	for i := 1; i <= 3; i++ {
		got, err := q.Dequeue(context.Background())
		if err != nil || got.Row != i {
			t.Fatalf("expected row %d, got %+v (%v)", i, got, err)
		}
	}
	if _, err := q.Dequeue(context.Background()); !errors.Is(err, ErrClosed) {
		t.Fatalf("expected ErrClosed, got %v", err)
	}
	// Closing twice should be safe.
	q.Close()
}
