// Package world loads and indexes the static room catalog for the space.
package world

import (
	"fmt"
	"strings"
)

// RoomType classifies how a room participates in presence features.
type RoomType string

const (
	// TypeLobby rooms carry no special behavior.
	TypeLobby RoomType = "lobby"
	// TypeSocial is the room monitored by the proximity tick.
	TypeSocial RoomType = "social"
	// TypeDesk is the room where desk statuses and knocks apply.
	TypeDesk RoomType = "desk"
	// TypeFocus is the room with the per-member stopwatch roster.
	TypeFocus RoomType = "focus"
	// TypeMeeting rooms hold a shared countdown timer and a lectern.
	TypeMeeting RoomType = "meeting"
)

// Valid reports whether t is a known room type.
func (t RoomType) Valid() bool {
	switch t {
	case TypeLobby, TypeSocial, TypeDesk, TypeFocus, TypeMeeting:
		return true
	}
	return false
}

// Room is one room in the catalog.
type Room struct {
	// ID is the unique room identifier.
	ID string
	// Name is the human-readable display name.
	Name string
	// Type drives the presence side effects tied to this room.
	Type RoomType
	// SpawnX, SpawnY are the pixel coordinates new entrants appear at.
	SpawnX int
	SpawnY int
}

// Catalog is the full set of rooms declared for the space.
type Catalog struct {
	// StartRoom is the room new connections are placed in.
	StartRoom string
	Rooms     []*Room
}

// Validate checks all catalog invariants.
//
// Postcondition: Returns nil if the catalog is valid, or an error describing all violations.
func (c *Catalog) Validate() error {
	var errs []string

	seen := make(map[string]bool, len(c.Rooms))
	typeCounts := make(map[RoomType]int)
	for _, r := range c.Rooms {
		if r.ID == "" {
			errs = append(errs, "room with empty id")
			continue
		}
		if seen[r.ID] {
			errs = append(errs, fmt.Sprintf("duplicate room id %q", r.ID))
		}
		seen[r.ID] = true
		if !r.Type.Valid() {
			errs = append(errs, fmt.Sprintf("room %q has unknown type %q", r.ID, r.Type))
		}
		typeCounts[r.Type]++
	}

	if c.StartRoom == "" {
		errs = append(errs, "start_room must not be empty")
	} else if !seen[c.StartRoom] {
		errs = append(errs, fmt.Sprintf("start_room %q is not a declared room", c.StartRoom))
	}
	if typeCounts[TypeSocial] != 1 {
		errs = append(errs, fmt.Sprintf("catalog must declare exactly one social room, got %d", typeCounts[TypeSocial]))
	}
	if typeCounts[TypeDesk] > 1 {
		errs = append(errs, fmt.Sprintf("catalog must declare at most one desk room, got %d", typeCounts[TypeDesk]))
	}
	if typeCounts[TypeFocus] > 1 {
		errs = append(errs, fmt.Sprintf("catalog must declare at most one focus room, got %d", typeCounts[TypeFocus]))
	}

	if len(errs) > 0 {
		return fmt.Errorf("catalog validation failed: %s", strings.Join(errs, "; "))
	}
	return nil
}
