// Package queue provides the throttled task executors and the
// reconnect debouncer that pace traffic toward the gateway.
package queue

import (
	"errors"
	"sync"
	"time"

	"go.uber.org/zap"
)

// ErrStopped is returned by Execute after Stop.
var ErrStopped = errors.New("queue: executor stopped")

// DefaultInterval is the minimum spacing between sync request starts,
// chosen to stay under the gateway rate limit.
const DefaultInterval = 200 * time.Millisecond

// Executor runs tasks strictly in submission order on a single
// goroutine, spacing consecutive task starts by at least interval.
// One executor exists per synchronization domain (contact, room,
// room-member) so bursts in one domain do not starve another.
type Executor struct {
	name     string
	interval time.Duration
	logger   *zap.Logger

	mu      sync.Mutex
	stopped bool
	tasks   chan func()
	done    chan struct{}
}

// NewExecutor creates and starts an executor. name is used for logging
// only.
func NewExecutor(name string, interval time.Duration, logger *zap.Logger) *Executor {
	if logger == nil {
		logger = zap.NewNop()
	}
	e := &Executor{
		name:     name,
		interval: interval,
		logger:   logger,
		tasks:    make(chan func(), 256),
		done:     make(chan struct{}),
	}
	go e.loop()
	return e
}

// Execute enqueues a task. The task runs asynchronously, after every
// previously submitted task, at least interval after the previous
// task started.
func (e *Executor) Execute(task func()) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.stopped {
		return ErrStopped
	}
	e.tasks <- task
	return nil
}

// Stop prevents further submissions and ends the worker once queued
// tasks finish.
func (e *Executor) Stop() {
	e.mu.Lock()
	if e.stopped {
		e.mu.Unlock()
		return
	}
	e.stopped = true
	close(e.tasks)
	e.mu.Unlock()
	<-e.done
}

func (e *Executor) loop() {
	defer close(e.done)
	var last time.Time
	for task := range e.tasks {
		if wait := e.interval - time.Since(last); !last.IsZero() && wait > 0 {
			time.Sleep(wait)
		}
		last = time.Now()
		e.run(task)
	}
}

// run executes one task, recovering panics so a failing task never
// blocks the queue from advancing.
func (e *Executor) run(task func()) {
	defer func() {
		if r := recover(); r != nil {
			e.logger.Error("queued task panicked",
				zap.String("queue", e.name),
				zap.Any("panic", r))
		}
	}()
	task()
}
