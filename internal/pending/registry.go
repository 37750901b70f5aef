// Package pending correlates outbound synchronization requests with the
// push events that eventually answer them.
package pending

import (
	"context"
	"sync"
	"time"
)

// Callback receives the value a key was resolved with. Each registered
// callback is invoked at most once.
type Callback[T any] func(T)

// Registry is a correlation table of key → pending continuations.
// Multiple registrations under the same key are permitted for fan-out
// notifications; a resolve delivers the value to every registrant and
// removes them all. Resolving a key nobody waits on drops the value:
// no history is kept.
type Registry[T any] struct {
	mu      sync.Mutex
	waiters map[string][]waiter[T]
	next    int
}

type waiter[T any] struct {
	id int
	fn Callback[T]
}

// NewRegistry creates an empty registry.
func NewRegistry[T any]() *Registry[T] {
	return &Registry[T]{
		waiters: make(map[string][]waiter[T]),
	}
}

// Register stores a callback under key. The returned func removes just
// this callback again, for waiters that give up before the key
// resolves.
func (r *Registry[T]) Register(key string, fn Callback[T]) func() {
	r.mu.Lock()
	id := r.next
	r.next++
	r.waiters[key] = append(r.waiters[key], waiter[T]{id: id, fn: fn})
	r.mu.Unlock()

	return func() {
		r.mu.Lock()
		defer r.mu.Unlock()
		ws := r.waiters[key]
		for i := range ws {
			if ws[i].id == id {
				ws = append(ws[:i], ws[i+1:]...)
				break
			}
		}
		if len(ws) == 0 {
			delete(r.waiters, key)
			return
		}
		r.waiters[key] = ws
	}
}

// Resolve invokes and removes every callback registered under key,
// delivering value to each exactly once. Returns the number of
// callbacks invoked; zero means the value was dropped.
func (r *Registry[T]) Resolve(key string, value T) int {
	r.mu.Lock()
	ws := r.waiters[key]
	delete(r.waiters, key)
	r.mu.Unlock()

	// Invoke outside the lock: callbacks may re-register.
	for _, w := range ws {
		w.fn(value)
	}
	return len(ws)
}

// Peek reports whether at least one callback is pending under key.
func (r *Registry[T]) Peek(key string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.waiters[key]) > 0
}

// Drop removes all callbacks under key without invoking them.
func (r *Registry[T]) Drop(key string) {
	r.mu.Lock()
	delete(r.waiters, key)
	r.mu.Unlock()
}

// Await registers under key and blocks until the key resolves. Every
// time timeout elapses without an answer, retry is called (re-issuing
// the sync request) and the wait continues; the entry is retried, not
// abandoned. Only ctx cancellation ends the wait early, and it takes
// the registration with it so abandoned keys do not accumulate
// callbacks.
func (r *Registry[T]) Await(ctx context.Context, key string, timeout time.Duration, retry func()) (T, error) {
	ch := make(chan T, 1)
	unregister := r.Register(key, func(v T) {
		ch <- v
	})

	timer := time.NewTimer(timeout)
	defer timer.Stop()

	for {
		select {
		case v := <-ch:
			return v, nil
		case <-timer.C:
			if retry != nil {
				retry()
			}
			timer.Reset(timeout)
		case <-ctx.Done():
			unregister()
			var zero T
			return zero, ctx.Err()
		}
	}
}
