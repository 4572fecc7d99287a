// Package session provides session tracking and room presence management
// for the space backend.
package session

// MotionState describes what a session's avatar is currently doing.
type MotionState string

const (
	MotionIdle    MotionState = "idle"
	MotionWalking MotionState = "walking"
	MotionSitting MotionState = "sitting"
)

// Valid reports whether m is a known motion state.
func (m MotionState) Valid() bool {
	switch m {
	case MotionIdle, MotionWalking, MotionSitting:
		return true
	}
	return false
}

// DeskStatus is the desk-room availability state. The zero value means the
// session is not in the desk room and has no status.
type DeskStatus string

const (
	DeskNone      DeskStatus = ""
	DeskAvailable DeskStatus = "available"
	DeskFocusing  DeskStatus = "focusing"
	DeskTalking   DeskStatus = "talking"
)

// Position is a session's location within a room.
type Position struct {
	X         int
	Y         int
	Direction string
	Motion    MotionState
}

// Session tracks one connected client's state.
//
// Field ownership: RoomID is written only through Registry.SetRoom (the room
// transition path); GroupID only through Registry.SetGroupID (the presence
// tick and knock paths); DeskStatus only through Registry.SetDeskStatus.
type Session struct {
	// ID is the unique connection identifier, stable for the connection's lifetime.
	ID string
	// Nickname is the display name shown to other sessions.
	Nickname string
	// RoomID is the current room the session occupies.
	RoomID string
	// Pos is the session's position and motion within the room.
	Pos Position
	// GroupID is the current proximity or conversation group id, "" if none.
	GroupID string
	// Desk is the desk-room availability status, DeskNone outside the desk room.
	Desk DeskStatus
	// Entity is the per-connection event channel feeding the write pump.
	Entity *Entity
}

// View is an immutable value copy of a session handed to read-only consumers
// such as the proximity tick, so they never retain mutable references.
type View struct {
	ID       string
	Nickname string
	RoomID   string
	Pos      Position
	GroupID  string
	Desk     DeskStatus
}
