package app

import (
	"sync"
	"time"
)

// RefreshTimer is a single-shot alarm that can be pushed back.
//
// Every Refresh starts a new cycle identified by a generation number and
// cancels the previous one. The callback receives the generation that
// armed it; Current reports whether that generation is still the live
// cycle, which lets callers drop a fire that lost a race with a Refresh.
type RefreshTimer struct {
	clock  Clock
	window time.Duration
	fire   func(gen uint64)

	mu      sync.Mutex
	gen     uint64
	pending Stopper
}

// NewRefreshTimer creates an idle timer.
func NewRefreshTimer(clock Clock, window time.Duration, fire func(gen uint64)) *RefreshTimer {
	return &RefreshTimer{
		clock:  clock,
		window: window,
		fire:   fire,
	}
}

// Refresh cancels any pending fire and schedules a new one window from now.
func (t *RefreshTimer) Refresh() uint64 {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.pending != nil {
		t.pending.Stop()
	}

	t.gen++
	gen := t.gen
	t.pending = t.clock.AfterFunc(t.window, func() { t.expire(gen) })

	return gen
}

// Stop cancels the pending fire, if any. The timer stays idle until the
// next Refresh.
func (t *RefreshTimer) Stop() {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.pending != nil {
		t.pending.Stop()
		t.pending = nil
	}
	t.gen++
}

// Pending reports whether a fire is scheduled.
func (t *RefreshTimer) Pending() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.pending != nil
}

// Current reports whether gen is the most recent cycle.
func (t *RefreshTimer) Current(gen uint64) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return gen == t.gen
}

func (t *RefreshTimer) expire(gen uint64) {
	t.mu.Lock()
	if gen != t.gen || t.pending == nil {
		t.mu.Unlock()
		return
	}
	t.pending = nil
	t.mu.Unlock()

	t.fire(gen)
}
