package sync

import (
	"testing"
	"time"
)

func TestDebouncer_SingleNudge(t *testing.T) {
	d := NewDebouncer(50 * time.Millisecond)
	defer d.Stop()

	d.Nudge()

	select {
	case <-d.Signals():
	case <-time.After(200 * time.Millisecond):
		t.Error("timed out waiting for signal")
	}
}

func TestDebouncer_CoalescesBurst(t *testing.T) {
	d := NewDebouncer(100 * time.Millisecond)
	defer d.Stop()

	// Rapid nudges, as when a remote push touches many rows
	d.Nudge()
	d.Nudge()
	d.Nudge()

	signalCount := 0
	timeout := time.After(300 * time.Millisecond)

loop:
	for {
		select {
		case <-d.Signals():
			signalCount++
		case <-timeout:
			break loop
		}
	}

	if signalCount != 1 {
		t.Errorf("expected 1 coalesced signal, got %d", signalCount)
	}
}

func TestDebouncer_TimerResetsOnNudge(t *testing.T) {
	d := NewDebouncer(80 * time.Millisecond)
	defer d.Stop()

	d.Nudge()
	time.Sleep(50 * time.Millisecond)
	d.Nudge() // resets the quiet window

	select {
	case <-d.Signals():
		t.Error("signal fired before the quiet window elapsed")
	case <-time.After(50 * time.Millisecond):
	}

	select {
	case <-d.Signals():
	case <-time.After(200 * time.Millisecond):
		t.Error("timed out waiting for reset signal")
	}
}

func TestDebouncer_Flush(t *testing.T) {
	d := NewDebouncer(5 * time.Second) // Long delay
	defer d.Stop()

	d.Nudge()

	if !d.Pending() {
		t.Error("expected a pending signal")
	}

	d.Flush()

	select {
	case <-d.Signals():
	case <-time.After(100 * time.Millisecond):
		t.Error("flush should signal immediately")
	}

	if d.Pending() {
		t.Error("expected no pending signal after flush")
	}
}

func TestDebouncer_NudgeAfterStop(t *testing.T) {
	d := NewDebouncer(20 * time.Millisecond)
	d.Stop()

	d.Nudge()

	select {
	case <-d.Signals():
		t.Error("stopped debouncer should not signal")
	case <-time.After(100 * time.Millisecond):
	}
}

func TestDebouncer_StopTwice(t *testing.T) {
	d := NewDebouncer(20 * time.Millisecond)
	d.Stop()
	d.Stop() // must not panic
}
