package session

import (
	"sync"
	"time"
)

// typingDebouncer coalesces rapid local typing toggles into a bounded-rate
// signal. A "started" notification fires delay after the last start call;
// a "stopped" notification cancels any pending start and fires immediately
// so the remote indicator never goes stale.
type typingDebouncer struct {
	mu      sync.Mutex
	clock   Clock
	delay   time.Duration
	pending Timer
	notify  func(isTyping bool)
}

func newTypingDebouncer(clock Clock, delay time.Duration, notify func(isTyping bool)) *typingDebouncer {
	return &typingDebouncer{clock: clock, delay: delay, notify: notify}
}

// Start schedules the delayed "typing" notification. Repeated calls within
// the delay window collapse into a single pending call that fires delay
// after the last one.
func (d *typingDebouncer) Start() {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.pending != nil {
		d.pending.Stop()
	}
	d.pending = d.clock.AfterFunc(d.delay, func() {
		d.mu.Lock()
		d.pending = nil
		d.mu.Unlock()
		d.notify(true)
	})
}

// Stop cancels any pending start notification and notifies the gateway
// synchronously.
func (d *typingDebouncer) Stop() {
	d.mu.Lock()
	if d.pending != nil {
		d.pending.Stop()
		d.pending = nil
	}
	d.mu.Unlock()
	d.notify(false)
}

// Cancel drops any pending notification without signalling the gateway.
// Called on session teardown.
func (d *typingDebouncer) Cancel() {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.pending != nil {
		d.pending.Stop()
		d.pending = nil
	}
}
