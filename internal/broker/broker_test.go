package broker

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"
)

func collect(t *testing.T, q *Queue, want int, handler Handler) []Message {
	t.Helper()
	var mu sync.Mutex
	var got []Message
	done := make(chan struct{})
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	go q.Run(ctx, func(ctx context.Context, m Message) error {
		err := handler(ctx, m)
		if err == nil {
			mu.Lock()
			got = append(got, m)
			n := len(got)
			mu.Unlock()
			if n == want {
				close(done)
			}
		}
		return err
	})
	select {
	case <-done:
	case <-ctx.Done():
		t.Fatalf("timed out waiting for %d deliveries", want)
	}
	mu.Lock()
	defer mu.Unlock()
	return got
}

func TestFIFODelivery(t *testing.T) {
	q := New(8, Config{})
	for _, key := range []string{"a", "b", "c"} {
		if err := q.Enqueue(Message{Type: "sale", Key: key}); err != nil {
			t.Fatalf("enqueue: %v", err)
		}
	}
	got := collect(t, q, 3, func(context.Context, Message) error { return nil })
	for i, key := range []string{"a", "b", "c"} {
		if got[i].Key != key {
			t.Fatalf("delivery %d = %q, want %q", i, got[i].Key, key)
		}
	}
}

func TestRetryWithBackoff(t *testing.T) {
	q := New(8, Config{Base: 5 * time.Millisecond, Cap: 20 * time.Millisecond, MaxAttempts: 5})
	if err := q.Enqueue(Message{Type: "sale", Key: "s1"}); err != nil {
		t.Fatalf("enqueue: %v", err)
	}
	fail := errors.New("ledger down")
	var attempts int
	got := collect(t, q, 1, func(_ context.Context, m Message) error {
		attempts++
		if attempts < 3 {
			return fail
		}
		return nil
	})
	if attempts != 3 {
		t.Fatalf("attempts = %d, want 3", attempts)
	}
	if got[0].Attempts != 3 {
		t.Fatalf("message attempts = %d, want 3", got[0].Attempts)
	}
}

func TestDropAfterMaxAttempts(t *testing.T) {
	dropped := make(chan Message, 1)
	q := New(8, Config{Base: time.Millisecond, Cap: 2 * time.Millisecond, MaxAttempts: 3,
		OnDrop: func(m Message) { dropped <- m }})
	if err := q.Enqueue(Message{Type: "sale", Key: "doomed"}); err != nil {
		t.Fatalf("enqueue: %v", err)
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	go q.Run(ctx, func(context.Context, Message) error { return errors.New("always fails") })
	select {
	case m := <-dropped:
		if m.Attempts != 3 {
			t.Fatalf("dropped after %d attempts, want 3", m.Attempts)
		}
	case <-ctx.Done():
		t.Fatalf("message was never dropped")
	}
}

func TestEnqueueFullBuffer(t *testing.T) {
	q := New(1, Config{})
	if err := q.Enqueue(Message{Key: "first"}); err != nil {
		t.Fatalf("enqueue: %v", err)
	}
	if err := q.Enqueue(Message{Key: "second"}); !errors.Is(err, ErrQueueFull) {
		t.Fatalf("expected ErrQueueFull, got %v", err)
	}
	if q.Depth() != 1 {
		t.Fatalf("depth = %d, want 1", q.Depth())
	}
}

func TestCloseStopsRetryTimers(t *testing.T) {
	q := New(8, Config{Base: time.Hour, MaxAttempts: 5})
	if err := q.Enqueue(Message{Key: "slow"}); err != nil {
		t.Fatalf("enqueue: %v", err)
	}
	ctx, cancel := context.WithCancel(context.Background())
	handled := make(chan struct{})
	go q.Run(ctx, func(context.Context, Message) error {
		close(handled)
		return errors.New("fail once")
	})
	<-handled
	cancel()
	q.Close()
	// No assertion beyond not leaking the hour-long timer; Close must be safe
	// while a retry is pending.
}
