package spaceserver

import (
	"context"
	"sync"
	"time"
)

// TickLoop runs registered callbacks on a fixed period. Callbacks are invoked
// sequentially within the loop goroutine.
//
// Invariant: each callback is invoked at most once per tick interval.
type TickLoop struct {
	interval time.Duration
	mu       sync.Mutex
	ticks    map[string]func()
}

// NewTickLoop returns a loop that fires every interval.
//
// Precondition: interval must be > 0.
func NewTickLoop(interval time.Duration) *TickLoop {
	if interval <= 0 {
		panic("spaceserver.NewTickLoop: interval must be > 0")
	}
	return &TickLoop{
		interval: interval,
		ticks:    make(map[string]func()),
	}
}

// Register registers a callback under name. Replaces any existing callback.
func (t *TickLoop) Register(name string, fn func()) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.ticks[name] = fn
}

// Unregister removes the callback registered under name.
func (t *TickLoop) Unregister(name string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	delete(t.ticks, name)
}

// Start begins the tick loop. Runs until ctx is cancelled.
//
// Postcondition: all registered callbacks are invoked once per interval.
func (t *TickLoop) Start(ctx context.Context) {
	go func() {
		ticker := time.NewTicker(t.interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				t.mu.Lock()
				callbacks := make(map[string]func(), len(t.ticks))
				for k, v := range t.ticks {
					callbacks[k] = v
				}
				t.mu.Unlock()
				for _, fn := range callbacks {
					fn()
				}
			}
		}
	}()
}
