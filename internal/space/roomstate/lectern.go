package roomstate

import (
	"errors"
	"fmt"
	"math/rand"
	"sync"

	"github.com/google/uuid"
)

// ErrNotHost rejects host-gated actions from non-hosts.
var ErrNotHost = errors.New("only the host may do that")

// BreakoutMode selects how members are distributed into sub-rooms.
type BreakoutMode string

const (
	// BreakoutRandom distributes the given users evenly at random.
	BreakoutRandom BreakoutMode = "random"
	// BreakoutManual creates empty sub-rooms for self-assignment.
	BreakoutManual BreakoutMode = "manual"
)

// BreakoutState is an active breakout split. Membership here is the
// breakout's own bookkeeping; it never touches global room occupancy.
type BreakoutState struct {
	Mode BreakoutMode `json:"mode"`
	// RoomOrder lists the generated sub-room ids in creation order.
	RoomOrder []string `json:"roomOrder"`
	// Members maps each sub-room id to its ordered member list.
	Members map[string][]string `json:"members"`
}

// LecternState is the speaking-turn structure for one meeting room.
type LecternState struct {
	// HostID is the current host; the first entrant by default.
	HostID string `json:"hostId"`
	// Speakers is the ordered list of current entrants.
	Speakers []string `json:"speakers"`
	// Breakout is the active breakout split, nil when none exists.
	Breakout *BreakoutState `json:"breakout,omitempty"`
}

// LecternManager owns the lectern state objects, keyed by room id.
// All methods are safe for concurrent use.
//
// Invariant: state exists only while at least one speaker remains.
type LecternManager struct {
	mu       sync.Mutex
	lecterns map[string]*LecternState
}

// NewLecternManager creates an empty LecternManager.
func NewLecternManager() *LecternManager {
	return &LecternManager{lecterns: make(map[string]*LecternState)}
}

// Enter adds sessionID to the room's speaker list, creating the state and
// making the session host if it is the first entrant.
//
// Postcondition: Returns the full lectern state for rebroadcast.
func (m *LecternManager) Enter(roomID, sessionID string) LecternState {
	m.mu.Lock()
	defer m.mu.Unlock()

	l := m.lecterns[roomID]
	if l == nil {
		l = &LecternState{HostID: sessionID}
		m.lecterns[roomID] = l
	}
	for _, id := range l.Speakers {
		if id == sessionID {
			return snapshotLectern(l)
		}
	}
	l.Speakers = append(l.Speakers, sessionID)
	return snapshotLectern(l)
}

// Leave removes sessionID from the room's speakers and any breakout
// membership. A departing host is replaced by the next entrant; the state is
// deleted entirely when the last speaker leaves.
//
// Postcondition: Returns (state, deleted). The state is meaningful only when
// deleted is false.
func (m *LecternManager) Leave(roomID, sessionID string) (LecternState, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()

	l, ok := m.lecterns[roomID]
	if !ok {
		return LecternState{}, false
	}

	l.Speakers = removeID(l.Speakers, sessionID)
	if l.Breakout != nil {
		for subRoom := range l.Breakout.Members {
			l.Breakout.Members[subRoom] = removeID(l.Breakout.Members[subRoom], sessionID)
		}
	}

	if len(l.Speakers) == 0 {
		delete(m.lecterns, roomID)
		return LecternState{}, true
	}
	if l.HostID == sessionID {
		l.HostID = l.Speakers[0]
	}
	return snapshotLectern(l), false
}

// MuteAll validates the host gate for a room-wide mute.
//
// Postcondition: Returns the speakers other than the host, or ErrNotHost.
func (m *LecternManager) MuteAll(roomID, callerID string) ([]string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	l, ok := m.lecterns[roomID]
	if !ok {
		return nil, fmt.Errorf("room %q has no lectern state", roomID)
	}
	if l.HostID != callerID {
		return nil, ErrNotHost
	}

	others := make([]string, 0, len(l.Speakers))
	for _, id := range l.Speakers {
		if id != callerID {
			others = append(others, id)
		}
	}
	return others, nil
}

// CreateBreakout starts a breakout split with count generated sub-rooms.
//
// In random mode userIDs are shuffled and distributed evenly; in manual mode
// the sub-rooms start empty for self-assignment.
//
// Precondition: count must be >= 1.
// Postcondition: Returns the full lectern state, or ErrNotHost.
func (m *LecternManager) CreateBreakout(roomID, callerID string, mode BreakoutMode, userIDs []string, count int) (LecternState, error) {
	if count < 1 {
		return LecternState{}, fmt.Errorf("breakout needs at least one sub-room, got %d", count)
	}
	if mode != BreakoutRandom && mode != BreakoutManual {
		return LecternState{}, fmt.Errorf("unknown breakout mode %q", mode)
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	l, ok := m.lecterns[roomID]
	if !ok {
		return LecternState{}, fmt.Errorf("room %q has no lectern state", roomID)
	}
	if l.HostID != callerID {
		return LecternState{}, ErrNotHost
	}

	b := &BreakoutState{
		Mode:    mode,
		Members: make(map[string][]string, count),
	}
	for i := 0; i < count; i++ {
		subRoom := uuid.NewString()
		b.RoomOrder = append(b.RoomOrder, subRoom)
		b.Members[subRoom] = nil
	}

	if mode == BreakoutRandom {
		shuffled := make([]string, len(userIDs))
		copy(shuffled, userIDs)
		rand.Shuffle(len(shuffled), func(i, j int) {
			shuffled[i], shuffled[j] = shuffled[j], shuffled[i]
		})
		for i, id := range shuffled {
			subRoom := b.RoomOrder[i%count]
			b.Members[subRoom] = append(b.Members[subRoom], id)
		}
	}

	l.Breakout = b
	return snapshotLectern(l), nil
}

// JoinBreakout moves sessionID into the given sub-room, removing it from any
// other sub-room first.
//
// Postcondition: Returns the full lectern state for rebroadcast.
func (m *LecternManager) JoinBreakout(roomID, subRoomID, sessionID string) (LecternState, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	l, ok := m.lecterns[roomID]
	if !ok || l.Breakout == nil {
		return LecternState{}, fmt.Errorf("room %q has no active breakout", roomID)
	}
	if _, ok := l.Breakout.Members[subRoomID]; !ok {
		return LecternState{}, fmt.Errorf("breakout room %q not found", subRoomID)
	}

	for sub := range l.Breakout.Members {
		l.Breakout.Members[sub] = removeID(l.Breakout.Members[sub], sessionID)
	}
	l.Breakout.Members[subRoomID] = append(l.Breakout.Members[subRoomID], sessionID)
	return snapshotLectern(l), nil
}

// LeaveBreakout removes sessionID from every breakout sub-room.
//
// Postcondition: Returns the full lectern state for rebroadcast.
func (m *LecternManager) LeaveBreakout(roomID, sessionID string) (LecternState, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	l, ok := m.lecterns[roomID]
	if !ok || l.Breakout == nil {
		return LecternState{}, fmt.Errorf("room %q has no active breakout", roomID)
	}
	for sub := range l.Breakout.Members {
		l.Breakout.Members[sub] = removeID(l.Breakout.Members[sub], sessionID)
	}
	return snapshotLectern(l), nil
}

// EndBreakout clears the breakout structure entirely.
//
// Postcondition: Returns the full lectern state, or ErrNotHost.
func (m *LecternManager) EndBreakout(roomID, callerID string) (LecternState, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	l, ok := m.lecterns[roomID]
	if !ok {
		return LecternState{}, fmt.Errorf("room %q has no lectern state", roomID)
	}
	if l.HostID != callerID {
		return LecternState{}, ErrNotHost
	}
	l.Breakout = nil
	return snapshotLectern(l), nil
}

// Get returns a snapshot of the room's lectern state.
func (m *LecternManager) Get(roomID string) (LecternState, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	l, ok := m.lecterns[roomID]
	if !ok {
		return LecternState{}, false
	}
	return snapshotLectern(l), true
}

// Delete drops the room's lectern state. Called when the room empties.
func (m *LecternManager) Delete(roomID string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.lecterns, roomID)
}

func removeID(ids []string, id string) []string {
	out := ids[:0]
	for _, v := range ids {
		if v != id {
			out = append(out, v)
		}
	}
	return out
}

func snapshotLectern(l *LecternState) LecternState {
	out := LecternState{HostID: l.HostID}
	out.Speakers = append([]string(nil), l.Speakers...)
	if l.Breakout != nil {
		b := &BreakoutState{
			Mode:    l.Breakout.Mode,
			Members: make(map[string][]string, len(l.Breakout.Members)),
		}
		b.RoomOrder = append([]string(nil), l.Breakout.RoomOrder...)
		for sub, members := range l.Breakout.Members {
			b.Members[sub] = append([]string(nil), members...)
		}
		out.Breakout = b
	}
	return out
}
