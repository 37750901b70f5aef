package queue

import (
	"sync"
	"time"
)

// DefaultDebounceWindow collapses reconnect bursts; the upstream
// transport can emit many reconnect notifications in quick succession
// during instability.
const DefaultDebounceWindow = 5 * time.Second

// Debouncer collapses repeated signals within a time window into a
// single execution carrying the latest reason.
type Debouncer struct {
	window time.Duration
	fn     func(reason string)

	mu     sync.Mutex
	timer  *time.Timer
	reason string
}

// NewDebouncer creates a debouncer invoking fn at most once per window.
func NewDebouncer(window time.Duration, fn func(reason string)) *Debouncer {
	return &Debouncer{
		window: window,
		fn:     fn,
	}
}

// Signal schedules an execution. The first signal of a burst starts
// the window; later signals only update the reason passed to fn.
func (d *Debouncer) Signal(reason string) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.reason = reason
	if d.timer == nil {
		d.timer = time.AfterFunc(d.window, d.fire)
	}
}

// Stop cancels any scheduled execution.
func (d *Debouncer) Stop() {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.timer != nil {
		d.timer.Stop()
		d.timer = nil
	}
}

func (d *Debouncer) fire() {
	d.mu.Lock()
	reason := d.reason
	d.timer = nil
	d.mu.Unlock()
	d.fn(reason)
}
