package world

import (
	"fmt"
	"sync"
)

// Manager provides thread-safe access to the loaded room catalog.
// It indexes rooms for O(1) lookup by room ID.
type Manager struct {
	mu        sync.RWMutex
	rooms     map[string]*Room
	startRoom string
	social    string
	desk      string
	focus     string
}

// NewManager creates a Manager from a validated catalog.
//
// Precondition: catalog must have passed Validate.
// Postcondition: Returns a Manager with all rooms indexed by ID.
func NewManager(catalog *Catalog) (*Manager, error) {
	if err := catalog.Validate(); err != nil {
		return nil, err
	}

	m := &Manager{
		rooms:     make(map[string]*Room, len(catalog.Rooms)),
		startRoom: catalog.StartRoom,
	}
	for _, r := range catalog.Rooms {
		m.rooms[r.ID] = r
		switch r.Type {
		case TypeSocial:
			m.social = r.ID
		case TypeDesk:
			m.desk = r.ID
		case TypeFocus:
			m.focus = r.ID
		}
	}
	return m, nil
}

// GetRoom returns the room with the given ID.
//
// Postcondition: Returns (room, true) if found, or (nil, false) otherwise.
func (m *Manager) GetRoom(id string) (*Room, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	r, ok := m.rooms[id]
	return r, ok
}

// RoomType returns the type of the room with the given ID, or "" if unknown.
func (m *Manager) RoomType(id string) RoomType {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if r, ok := m.rooms[id]; ok {
		return r.Type
	}
	return ""
}

// StartRoom returns the room new connections are placed in.
//
// Postcondition: Returns a non-nil room (catalog validation guarantees it exists).
func (m *Manager) StartRoom() *Room {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.rooms[m.startRoom]
}

// SocialRoomID returns the ID of the room monitored by the proximity tick.
func (m *Manager) SocialRoomID() string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.social
}

// DeskRoomID returns the ID of the desk room, or "" if none is declared.
func (m *Manager) DeskRoomID() string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.desk
}

// FocusRoomID returns the ID of the focus room, or "" if none is declared.
func (m *Manager) FocusRoomID() string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.focus
}

// RoomCount returns the total number of rooms in the catalog.
func (m *Manager) RoomCount() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.rooms)
}

// Resolve returns the room with the given ID, or an error naming it.
//
// Postcondition: Returns a non-nil room or a non-nil error.
func (m *Manager) Resolve(id string) (*Room, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	r, ok := m.rooms[id]
	if !ok {
		return nil, fmt.Errorf("room %q not found", id)
	}
	return r, nil
}
