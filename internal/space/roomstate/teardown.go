package roomstate

import (
	"sync"
	"time"
)

// TeardownTimer fires a cleanup callback after a debounce delay unless
// stopped. It absorbs the gap between one session leaving a room and another
// arriving mid-transition, so per-room state is only deleted when the room
// stays empty. Safe for concurrent use.
type TeardownTimer struct {
	mu      sync.Mutex
	timer   *time.Timer
	stopped bool
}

// NewTeardownTimer creates and starts a timer that calls onFire after delay.
// onFire is called in a separate goroutine.
//
// Precondition: delay > 0; onFire must not be nil.
// Postcondition: Returns a running TeardownTimer; onFire will be called unless Stop is called first.
func NewTeardownTimer(delay time.Duration, onFire func()) *TeardownTimer {
	tt := &TeardownTimer{}
	tt.timer = time.AfterFunc(delay, func() {
		tt.mu.Lock()
		stopped := tt.stopped
		tt.mu.Unlock()
		if !stopped {
			onFire()
		}
	})
	return tt
}

// Stop prevents the callback from firing. Safe to call multiple times.
//
// Postcondition: onFire will not be called after Stop returns.
func (tt *TeardownTimer) Stop() {
	tt.mu.Lock()
	defer tt.mu.Unlock()
	tt.stopped = true
	tt.timer.Stop()
}
