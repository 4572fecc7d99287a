package session

import (
	"fmt"
	"sync"
)

// Entity routes push calls to a Go channel, bridging the session system to
// the WebSocket write pump.
type Entity struct {
	id     string
	events chan []byte
	mu     sync.Mutex
	closed bool
}

// NewEntity creates an Entity for the given session ID.
//
// Precondition: id must be non-empty.
// Postcondition: Returns an Entity with an open events channel.
func NewEntity(id string, bufferSize int) *Entity {
	if bufferSize <= 0 {
		bufferSize = 64
	}
	return &Entity{
		id:     id,
		events: make(chan []byte, bufferSize),
	}
}

// ID returns the session's unique identifier.
func (e *Entity) ID() string {
	return e.id
}

// Push sends data to the events channel.
//
// Precondition: data must be a non-nil byte slice.
// Postcondition: Data is enqueued to the events channel, or an error if the entity is closed or full.
func (e *Entity) Push(data []byte) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.closed {
		return fmt.Errorf("entity %s is closed", e.id)
	}
	select {
	case e.events <- data:
		return nil
	default:
		return fmt.Errorf("entity %s event buffer full", e.id)
	}
}

// Events returns the read-only events channel.
// The connection's write pump reads from this channel to send server events.
func (e *Entity) Events() <-chan []byte {
	return e.events
}

// Close marks the entity as closed and closes the events channel.
//
// Postcondition: The events channel is closed. Further Push calls return an error.
func (e *Entity) Close() error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if !e.closed {
		e.closed = true
		close(e.events)
	}
	return nil
}

// IsClosed reports whether the entity has been closed.
func (e *Entity) IsClosed() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.closed
}
