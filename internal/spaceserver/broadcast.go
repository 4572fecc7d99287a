package spaceserver

import (
	"go.uber.org/zap"

	"github.com/jaehyeon-kim/agora/internal/space/session"
)

// Broadcaster serializes server events once and pushes them to session
// entities. Pushes to closed or full entities are logged and dropped; the
// per-room channel is append-only, never read back.
type Broadcaster struct {
	sessions *session.Registry
	logger   *zap.Logger
}

// NewBroadcaster creates a Broadcaster over the given registry.
//
// Precondition: sessions and logger must be non-nil.
func NewBroadcaster(sessions *session.Registry, logger *zap.Logger) *Broadcaster {
	return &Broadcaster{sessions: sessions, logger: logger}
}

// ToSession sends one event to a single session. A missing session is a
// no-op: the target may have disconnected between lookup and delivery.
func (b *Broadcaster) ToSession(id, eventType string, data any) {
	payload, err := encodeEvent(eventType, data)
	if err != nil {
		b.logger.Error("encoding event", zap.String("event", eventType), zap.Error(err))
		return
	}
	b.push(id, eventType, payload)
}

// ToRoom sends one event to every session in the room.
func (b *Broadcaster) ToRoom(roomID, eventType string, data any) {
	b.toRoomExcept(roomID, "", eventType, data)
}

// ToRoomExcept sends one event to every session in the room except one.
func (b *Broadcaster) ToRoomExcept(roomID, exceptID, eventType string, data any) {
	b.toRoomExcept(roomID, exceptID, eventType, data)
}

// ToAll sends one event to every connected session.
func (b *Broadcaster) ToAll(eventType string, data any) {
	payload, err := encodeEvent(eventType, data)
	if err != nil {
		b.logger.Error("encoding event", zap.String("event", eventType), zap.Error(err))
		return
	}
	for _, id := range b.sessions.AllIDs() {
		b.push(id, eventType, payload)
	}
}

func (b *Broadcaster) toRoomExcept(roomID, exceptID, eventType string, data any) {
	payload, err := encodeEvent(eventType, data)
	if err != nil {
		b.logger.Error("encoding event", zap.String("event", eventType), zap.Error(err))
		return
	}
	for _, id := range b.sessions.IDsInRoom(roomID) {
		if id == exceptID {
			continue
		}
		b.push(id, eventType, payload)
	}
}

func (b *Broadcaster) push(id, eventType string, payload []byte) {
	entity, ok := b.sessions.Entity(id)
	if !ok {
		return
	}
	if err := entity.Push(payload); err != nil {
		b.logger.Warn("push to entity failed",
			zap.String("session", id),
			zap.String("event", eventType),
			zap.Error(err),
		)
	}
}
