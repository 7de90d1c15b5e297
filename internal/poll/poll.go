// Package poll provides the bounded retry and debounce primitives used
// against the host page's unreliable DOM.
package poll

import (
	"context"
	"errors"
	"sync"
	"time"
)

// ErrExhausted is returned when the predicate never became true within the
// allowed attempts.
var ErrExhausted = errors.New("poll: attempts exhausted")

// Until repeatedly evaluates pred every interval until it returns true, the
// attempt budget runs out, or ctx is cancelled. The first evaluation happens
// immediately. Retries are always bounded; there is no infinite mode.
// A cancelled context wins over a ready timer: pred is never evaluated
// after cancellation.
func Until(ctx context.Context, interval time.Duration, maxAttempts int, pred func() bool) error {
	if maxAttempts <= 0 {
		maxAttempts = 1
	}
	timer := time.NewTimer(0)
	defer timer.Stop()

	for attempt := 0; attempt < maxAttempts; attempt++ {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-timer.C:
		}
		// The select picks randomly when both cases are ready.
		if err := ctx.Err(); err != nil {
			return err
		}
		if pred() {
			return nil
		}
		timer.Reset(interval)
	}
	return ErrExhausted
}

// Debouncer coalesces bursts of triggers into a single trailing-edge call.
// A trigger arriving while a flush is pending restarts the delay; overlapping
// triggers are coalesced, never queued.
type Debouncer struct {
	mu      sync.Mutex
	delay   time.Duration
	timer   *time.Timer
	fn      func()
	stopped bool
	running sync.WaitGroup
}

// NewDebouncer creates a debouncer invoking fn after delay of quiet time
func NewDebouncer(delay time.Duration, fn func()) *Debouncer {
	return &Debouncer{delay: delay, fn: fn}
}

// Trigger schedules (or reschedules) the trailing-edge call. No-op after
// Stop.
func (d *Debouncer) Trigger() {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.stopped {
		return
	}
	if d.timer != nil {
		d.timer.Stop()
	}
	d.timer = time.AfterFunc(d.delay, d.run)
}

func (d *Debouncer) run() {
	d.mu.Lock()
	if d.stopped {
		d.mu.Unlock()
		return
	}
	d.running.Add(1)
	d.mu.Unlock()
	defer d.running.Done()
	d.fn()
}

// Stop cancels any pending call and waits for a callback already executing
// to return. The debouncer stays stopped; later triggers are ignored.
// Must not be called from inside fn.
func (d *Debouncer) Stop() {
	d.mu.Lock()
	if d.timer != nil {
		d.timer.Stop()
		d.timer = nil
	}
	d.stopped = true
	d.mu.Unlock()
	d.running.Wait()
}
