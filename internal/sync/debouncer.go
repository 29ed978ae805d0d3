package sync

import (
	"sync"
	"time"
)

// Debouncer coalesces rapid change nudges into single signals. Remote change
// notifications arrive in bursts, one per upserted row; a burst should cost
// one pull, not one per row. A nudge arriving while the timer runs resets it,
// so the signal fires one quiet delay after the last nudge.
type Debouncer struct {
	delay  time.Duration
	mu     sync.Mutex
	timer  *time.Timer
	output chan struct{}
	stopCh chan struct{}
}

// NewDebouncer creates a debouncer with the given quiet delay.
func NewDebouncer(delay time.Duration) *Debouncer {
	return &Debouncer{
		delay:  delay,
		output: make(chan struct{}, 1),
		stopCh: make(chan struct{}),
	}
}

// Signals returns the channel that fires once per coalesced burst.
func (d *Debouncer) Signals() <-chan struct{} {
	return d.output
}

// Nudge registers a change. Safe to call from any goroutine.
func (d *Debouncer) Nudge() {
	d.mu.Lock()
	defer d.mu.Unlock()

	select {
	case <-d.stopCh:
		return
	default:
	}

	if d.timer != nil {
		d.timer.Stop()
	}
	d.timer = time.AfterFunc(d.delay, d.emit)
}

func (d *Debouncer) emit() {
	d.mu.Lock()
	d.timer = nil
	d.mu.Unlock()

	select {
	case d.output <- struct{}{}:
	case <-d.stopCh:
	default:
		// A signal is already queued; one pull covers both bursts.
	}
}

// Flush fires the pending signal immediately, if any.
func (d *Debouncer) Flush() {
	d.mu.Lock()
	pending := d.timer != nil
	if pending {
		d.timer.Stop()
		d.timer = nil
	}
	d.mu.Unlock()

	if pending {
		select {
		case d.output <- struct{}{}:
		case <-d.stopCh:
		default:
		}
	}
}

// Pending reports whether a nudge is waiting on the timer.
func (d *Debouncer) Pending() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.timer != nil
}

// Stop cancels any pending signal. Nudges after Stop are dropped.
func (d *Debouncer) Stop() {
	d.mu.Lock()
	if d.timer != nil {
		d.timer.Stop()
		d.timer = nil
	}
	select {
	case <-d.stopCh:
	default:
		close(d.stopCh)
	}
	d.mu.Unlock()
}
