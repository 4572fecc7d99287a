// Package roomstate holds the short-lived per-room shared state objects:
// countdown timers, stopwatches, and the lectern/breakout structure. State
// exists only while a room is occupied; every mutation returns a snapshot of
// the full per-room object for rebroadcast.
package roomstate

import (
	"sync"
	"time"
)

// TimerState is the shared countdown timer for one meeting room.
type TimerState struct {
	IsRunning bool `json:"isRunning"`
	// InitialSeconds is the configured countdown duration.
	InitialSeconds int `json:"initialSeconds"`
	// StartedAt is the unix-millisecond start timestamp, 0 while paused.
	StartedAt int64 `json:"startedAt"`
	// RemainingSeconds is the remaining time captured at the last pause,
	// or the full duration while the timer is running.
	RemainingSeconds int `json:"remainingSeconds"`
}

// TimerManager owns the countdown timers, keyed by room id.
// All methods are safe for concurrent use.
type TimerManager struct {
	mu     sync.Mutex
	timers map[string]*TimerState
	now    func() time.Time
}

// NewTimerManager creates an empty TimerManager.
func NewTimerManager() *TimerManager {
	return &TimerManager{
		timers: make(map[string]*TimerState),
		now:    time.Now,
	}
}

// Start starts (or resumes) the room's countdown.
//
// A positive seconds value re-arms the timer with that duration; zero resumes
// from the remaining time of the last pause.
//
// Postcondition: Returns the full timer state for rebroadcast.
func (m *TimerManager) Start(roomID string, seconds int) TimerState {
	m.mu.Lock()
	defer m.mu.Unlock()

	t := m.timers[roomID]
	if t == nil {
		t = &TimerState{}
		m.timers[roomID] = t
	}
	if seconds > 0 {
		t.InitialSeconds = seconds
		t.RemainingSeconds = seconds
	}
	t.IsRunning = true
	t.StartedAt = m.now().UnixMilli()
	return *t
}

// Pause stops the countdown, capturing the remaining time.
//
// Postcondition: Returns (state, true), or (TimerState{}, false) if the room
// has no timer.
func (m *TimerManager) Pause(roomID string) (TimerState, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()

	t, ok := m.timers[roomID]
	if !ok {
		return TimerState{}, false
	}
	if t.IsRunning {
		elapsed := int(m.now().UnixMilli()-t.StartedAt) / 1000
		t.RemainingSeconds -= elapsed
		if t.RemainingSeconds < 0 {
			t.RemainingSeconds = 0
		}
	}
	t.IsRunning = false
	t.StartedAt = 0
	return *t, true
}

// Reset stops the countdown and restores the configured duration.
//
// Postcondition: Returns (state, true), or (TimerState{}, false) if the room
// has no timer.
func (m *TimerManager) Reset(roomID string) (TimerState, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()

	t, ok := m.timers[roomID]
	if !ok {
		return TimerState{}, false
	}
	t.IsRunning = false
	t.StartedAt = 0
	t.RemainingSeconds = t.InitialSeconds
	return *t, true
}

// AddTime extends both the configured duration and the remaining time.
//
// Postcondition: Returns (state, true), or (TimerState{}, false) if the room
// has no timer.
func (m *TimerManager) AddTime(roomID string, seconds int) (TimerState, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()

	t, ok := m.timers[roomID]
	if !ok {
		return TimerState{}, false
	}
	t.InitialSeconds += seconds
	t.RemainingSeconds += seconds
	return *t, true
}

// Get returns the room's timer state.
func (m *TimerManager) Get(roomID string) (TimerState, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	t, ok := m.timers[roomID]
	if !ok {
		return TimerState{}, false
	}
	return *t, true
}

// Delete drops the room's timer state. Called when the room empties.
func (m *TimerManager) Delete(roomID string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.timers, roomID)
}

// Has reports whether the room currently holds timer state.
func (m *TimerManager) Has(roomID string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.timers[roomID]
	return ok
}
