package session

import (
	"fmt"
	"sort"
	"sync"

	"github.com/google/uuid"
)

// Registry tracks all connected sessions and room occupancy.
// All methods are safe for concurrent use.
//
// The Registry is the sole owner of Session records; other components work
// with View copies or call the explicit mutation methods below.
type Registry struct {
	mu       sync.RWMutex
	sessions map[string]*Session        // id → session
	roomSets map[string]map[string]bool // roomID → set of session ids
}

// NewRegistry creates an empty session Registry.
func NewRegistry() *Registry {
	return &Registry{
		sessions: make(map[string]*Session),
		roomSets: make(map[string]map[string]bool),
	}
}

// Add registers a new session in the given room with a generated ID.
//
// Precondition: nickname and roomID must be non-empty.
// Postcondition: Returns the created Session with an open Entity.
func (r *Registry) Add(nickname, roomID string, x, y int) (*Session, error) {
	if nickname == "" || roomID == "" {
		return nil, fmt.Errorf("nickname and room must be non-empty")
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	id := uuid.NewString()
	sess := &Session{
		ID:       id,
		Nickname: nickname,
		RoomID:   roomID,
		Pos:      Position{X: x, Y: y, Direction: "down", Motion: MotionIdle},
		Entity:   NewEntity(id, 64),
	}

	r.sessions[id] = sess
	if r.roomSets[roomID] == nil {
		r.roomSets[roomID] = make(map[string]bool)
	}
	r.roomSets[roomID][id] = true

	return sess, nil
}

// Remove removes a session and cleans up room occupancy.
//
// Postcondition: The session is removed from all tracking and its Entity is
// closed. Returns an error if not found.
func (r *Registry) Remove(id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	sess, exists := r.sessions[id]
	if !exists {
		return fmt.Errorf("session %q not found", id)
	}

	if rs, ok := r.roomSets[sess.RoomID]; ok {
		delete(rs, id)
		if len(rs) == 0 {
			delete(r.roomSets, sess.RoomID)
		}
	}

	_ = sess.Entity.Close()

	delete(r.sessions, id)
	return nil
}

// SetRoom moves a session from its current room to a new room.
// Only the room transition coordinator calls this.
//
// Precondition: id and newRoomID must be non-empty.
// Postcondition: Returns the old room ID, or an error if the session is not found.
func (r *Registry) SetRoom(id, newRoomID string) (string, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	sess, exists := r.sessions[id]
	if !exists {
		return "", fmt.Errorf("session %q not found", id)
	}

	oldRoomID := sess.RoomID

	if rs, ok := r.roomSets[oldRoomID]; ok {
		delete(rs, id)
		if len(rs) == 0 {
			delete(r.roomSets, oldRoomID)
		}
	}

	sess.RoomID = newRoomID
	if r.roomSets[newRoomID] == nil {
		r.roomSets[newRoomID] = make(map[string]bool)
	}
	r.roomSets[newRoomID][id] = true

	return oldRoomID, nil
}

// SetPosition updates a session's position and motion state in place.
//
// Postcondition: Returns false if the session does not exist.
func (r *Registry) SetPosition(id string, pos Position) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	sess, exists := r.sessions[id]
	if !exists {
		return false
	}
	sess.Pos = pos
	return true
}

// SetGroupID sets a session's proximity/conversation group id ("" clears it).
//
// Postcondition: Returns false if the session does not exist.
func (r *Registry) SetGroupID(id, groupID string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	sess, exists := r.sessions[id]
	if !exists {
		return false
	}
	sess.GroupID = groupID
	return true
}

// SetDeskStatus sets a session's desk-room availability status.
//
// Postcondition: Returns false if the session does not exist.
func (r *Registry) SetDeskStatus(id string, status DeskStatus) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	sess, exists := r.sessions[id]
	if !exists {
		return false
	}
	sess.Desk = status
	return true
}

// Get returns a View copy of the session with the given ID.
//
// Postcondition: Returns (view, true) if found, or (View{}, false) otherwise.
func (r *Registry) Get(id string) (View, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	sess, ok := r.sessions[id]
	if !ok {
		return View{}, false
	}
	return viewOf(sess), true
}

// Entity returns the push entity for the given session ID.
//
// Postcondition: Returns (entity, true) if found, or (nil, false) otherwise.
func (r *Registry) Entity(id string) (*Entity, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	sess, ok := r.sessions[id]
	if !ok {
		return nil, false
	}
	return sess.Entity, true
}

// IDsInRoom returns the ids of all sessions in the given room.
//
// Postcondition: Returns a slice of ids (may be empty).
func (r *Registry) IDsInRoom(roomID string) []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	ids, ok := r.roomSets[roomID]
	if !ok {
		return nil
	}

	result := make([]string, 0, len(ids))
	for id := range ids {
		result = append(result, id)
	}
	return result
}

// SnapshotRoom returns View copies of all sessions in the given room,
// sorted by session id so callers see a deterministic order.
//
// Postcondition: Returns a slice of value copies (may be empty).
func (r *Registry) SnapshotRoom(roomID string) []View {
	r.mu.RLock()
	defer r.mu.RUnlock()

	ids, ok := r.roomSets[roomID]
	if !ok {
		return nil
	}

	views := make([]View, 0, len(ids))
	for id := range ids {
		if sess, ok := r.sessions[id]; ok {
			views = append(views, viewOf(sess))
		}
	}
	sort.Slice(views, func(i, j int) bool { return views[i].ID < views[j].ID })
	return views
}

// AllIDs returns the ids of every connected session.
func (r *Registry) AllIDs() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	result := make([]string, 0, len(r.sessions))
	for id := range r.sessions {
		result = append(result, id)
	}
	return result
}

// RoomCount returns the number of sessions in the given room.
func (r *Registry) RoomCount(roomID string) int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.roomSets[roomID])
}

// Count returns the total number of connected sessions.
func (r *Registry) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.sessions)
}

func viewOf(s *Session) View {
	return View{
		ID:       s.ID,
		Nickname: s.Nickname,
		RoomID:   s.RoomID,
		Pos:      s.Pos,
		GroupID:  s.GroupID,
		Desk:     s.Desk,
	}
}
