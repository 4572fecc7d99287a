package roomstate

import "sync"

// SharedStopwatch is the single synchronized stopwatch object for rooms
// where every member shares one clock. Any member's update overwrites it.
type SharedStopwatch struct {
	IsRunning bool `json:"isRunning"`
	// StartedAt is the unix-millisecond start timestamp, 0 while stopped.
	StartedAt int64 `json:"startedAt"`
	// ElapsedSeconds is the accumulated elapsed time at the last stop.
	ElapsedSeconds int `json:"elapsedSeconds"`
}

// StopwatchEntry is one member's personal stopwatch in roster-mode rooms.
type StopwatchEntry struct {
	IsRunning bool `json:"isRunning"`
	// StartedAt is the unix-millisecond start timestamp, 0 while stopped.
	StartedAt int64 `json:"startedAt"`
	// ElapsedSeconds is the accumulated elapsed time at the last stop.
	ElapsedSeconds int `json:"elapsedSeconds"`
}

// isZero reports the all-zero "reset" state that removes the entry.
func (e StopwatchEntry) isZero() bool {
	return !e.IsRunning && e.StartedAt == 0 && e.ElapsedSeconds == 0
}

// StopwatchManager owns both stopwatch shapes, keyed by room id: a shared
// clock per room, and a per-member roster for focus-style rooms.
// All methods are safe for concurrent use.
type StopwatchManager struct {
	mu      sync.Mutex
	shared  map[string]*SharedStopwatch
	rosters map[string]map[string]StopwatchEntry
}

// NewStopwatchManager creates an empty StopwatchManager.
func NewStopwatchManager() *StopwatchManager {
	return &StopwatchManager{
		shared:  make(map[string]*SharedStopwatch),
		rosters: make(map[string]map[string]StopwatchEntry),
	}
}

// SetShared overwrites the room's shared stopwatch with the given state.
//
// Postcondition: Returns the stored state for rebroadcast.
func (m *StopwatchManager) SetShared(roomID string, st SharedStopwatch) SharedStopwatch {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.shared[roomID] = &st
	return st
}

// Shared returns the room's shared stopwatch.
func (m *StopwatchManager) Shared(roomID string) (SharedStopwatch, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	st, ok := m.shared[roomID]
	if !ok {
		return SharedStopwatch{}, false
	}
	return *st, true
}

// SetEntry stores one member's stopwatch entry in the room roster. Storing
// the all-zero reset state removes the entry instead.
//
// Postcondition: Returns a snapshot of the full roster for rebroadcast.
func (m *StopwatchManager) SetEntry(roomID, memberID string, e StopwatchEntry) map[string]StopwatchEntry {
	m.mu.Lock()
	defer m.mu.Unlock()

	roster := m.rosters[roomID]
	if roster == nil {
		roster = make(map[string]StopwatchEntry)
		m.rosters[roomID] = roster
	}
	if e.isZero() {
		delete(roster, memberID)
	} else {
		roster[memberID] = e
	}
	if len(roster) == 0 {
		delete(m.rosters, roomID)
	}
	return copyRoster(roster)
}

// RemoveEntry drops one member's roster entry, e.g. when the member leaves
// the room or disconnects.
//
// Postcondition: Returns (roster snapshot, true) when an entry was removed.
func (m *StopwatchManager) RemoveEntry(roomID, memberID string) (map[string]StopwatchEntry, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()

	roster, ok := m.rosters[roomID]
	if !ok {
		return nil, false
	}
	if _, ok := roster[memberID]; !ok {
		return nil, false
	}
	delete(roster, memberID)
	if len(roster) == 0 {
		delete(m.rosters, roomID)
	}
	return copyRoster(roster), true
}

// Roster returns a snapshot of the room's per-member entries.
//
// Postcondition: Returns a non-nil map (may be empty).
func (m *StopwatchManager) Roster(roomID string) map[string]StopwatchEntry {
	m.mu.Lock()
	defer m.mu.Unlock()
	return copyRoster(m.rosters[roomID])
}

// DeleteRoom drops all stopwatch state for the room. Called when it empties.
func (m *StopwatchManager) DeleteRoom(roomID string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.shared, roomID)
	delete(m.rosters, roomID)
}

func copyRoster(roster map[string]StopwatchEntry) map[string]StopwatchEntry {
	out := make(map[string]StopwatchEntry, len(roster))
	for id, e := range roster {
		out[id] = e
	}
	return out
}
