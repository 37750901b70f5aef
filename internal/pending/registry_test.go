package pending

import (
	"context"
	"sync/atomic"
	"testing"
	"time"
)

func TestResolveInvokesAndRemoves(t *testing.T) {
	r := NewRegistry[string]()

	var got string
	r.Register("k1", func(v string) { got = v })

	if n := r.Resolve("k1", "hello"); n != 1 {
		t.Errorf("Resolve() = %d callbacks, want 1", n)
	}
	if got != "hello" {
		t.Errorf("callback got %q, want hello", got)
	}
	if r.Peek("k1") {
		t.Error("key still pending after resolve")
	}
}

func TestFanOutExactlyOnce(t *testing.T) {
	r := NewRegistry[int]()

	const n = 5
	counts := make([]int32, n)
	for i := 0; i < n; i++ {
		i := i
		r.Register("room-1", func(int) { atomic.AddInt32(&counts[i], 1) })
	}

	if invoked := r.Resolve("room-1", 42); invoked != n {
		t.Fatalf("Resolve() = %d, want %d", invoked, n)
	}
	// Resolving again delivers to nobody.
	if invoked := r.Resolve("room-1", 43); invoked != 0 {
		t.Errorf("second Resolve() = %d, want 0", invoked)
	}

	for i, c := range counts {
		if c != 1 {
			t.Errorf("callback %d invoked %d times, want exactly 1", i, c)
		}
	}
}

func TestResolveWithoutRegistrationDropsValue(t *testing.T) {
	r := NewRegistry[string]()
	if n := r.Resolve("nobody", "dropped"); n != 0 {
		t.Errorf("Resolve() = %d, want 0", n)
	}
}

func TestPeek(t *testing.T) {
	r := NewRegistry[string]()
	if r.Peek("k") {
		t.Error("Peek() = true on empty registry")
	}
	r.Register("k", func(string) {})
	if !r.Peek("k") {
		t.Error("Peek() = false after Register")
	}
}

func TestDrop(t *testing.T) {
	r := NewRegistry[string]()
	called := false
	r.Register("k", func(string) { called = true })
	r.Drop("k")

	r.Resolve("k", "v")
	if called {
		t.Error("dropped callback was invoked")
	}
}

func TestAwaitResolves(t *testing.T) {
	r := NewRegistry[string]()

	go func() {
		time.Sleep(20 * time.Millisecond)
		r.Resolve("contact-1", "payload")
	}()

	v, err := r.Await(context.Background(), "contact-1", time.Second, nil)
	if err != nil {
		t.Fatalf("Await() error = %v", err)
	}
	if v != "payload" {
		t.Errorf("Await() = %q, want payload", v)
	}
}

func TestAwaitRetriesOnTimeout(t *testing.T) {
	r := NewRegistry[string]()

	var retries int32
	retry := func() {
		if atomic.AddInt32(&retries, 1) == 2 {
			// Answer only after the second re-request.
			go r.Resolve("slow", "late")
		}
	}

	v, err := r.Await(context.Background(), "slow", 20*time.Millisecond, retry)
	if err != nil {
		t.Fatalf("Await() error = %v", err)
	}
	if v != "late" {
		t.Errorf("Await() = %q, want late", v)
	}
	if atomic.LoadInt32(&retries) < 2 {
		t.Errorf("retries = %d, want >= 2", retries)
	}
}

func TestAwaitCancelled(t *testing.T) {
	r := NewRegistry[string]()

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(20 * time.Millisecond)
		cancel()
	}()

	_, err := r.Await(ctx, "never", time.Second, nil)
	if err != context.Canceled {
		t.Errorf("Await() error = %v, want context.Canceled", err)
	}
}

func TestUnregisterRemovesSingleWaiter(t *testing.T) {
	r := NewRegistry[string]()

	var first, second bool
	r.Register("k", func(string) { first = true })
	unregister := r.Register("k", func(string) { second = true })
	unregister()

	if n := r.Resolve("k", "v"); n != 1 {
		t.Fatalf("Resolve() = %d, want 1", n)
	}
	if !first || second {
		t.Errorf("invoked = (%v, %v), want only the remaining waiter", first, second)
	}
	// Unregistering twice is harmless.
	unregister()
}

func TestCancelledAwaitLeavesNoWaiter(t *testing.T) {
	r := NewRegistry[string]()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if _, err := r.Await(ctx, "never", time.Second, nil); err != context.Canceled {
		t.Fatalf("Await() error = %v, want context.Canceled", err)
	}
	if r.Peek("never") {
		t.Error("cancelled wait left its callback registered")
	}
	if n := r.Resolve("never", "late"); n != 0 {
		t.Errorf("late Resolve() reached %d callbacks, want 0", n)
	}
}
