package spaceserver

import (
	"fmt"

	"go.uber.org/zap"

	"github.com/jaehyeon-kim/agora/internal/space/proximity"
	"github.com/jaehyeon-kim/agora/internal/space/session"
	"github.com/jaehyeon-kim/agora/internal/space/world"
)

// PresenceCoordinator owns the connect/disconnect lifecycle and the periodic
// proximity tick over the social room.
type PresenceCoordinator struct {
	sessions    *session.Registry
	tracker     *proximity.Tracker
	world       *world.Manager
	transitions *TransitionCoordinator
	bcast       *Broadcaster
	logger      *zap.Logger
	tileSize    int
	radius      int
}

// NewPresenceCoordinator wires the coordinator to its collaborators.
//
// Precondition: all pointer arguments must be non-nil; tileSize > 0; radius >= 0.
func NewPresenceCoordinator(
	sessions *session.Registry,
	tracker *proximity.Tracker,
	worldMgr *world.Manager,
	transitions *TransitionCoordinator,
	bcast *Broadcaster,
	logger *zap.Logger,
	tileSize, radius int,
) *PresenceCoordinator {
	return &PresenceCoordinator{
		sessions:    sessions,
		tracker:     tracker,
		world:       worldMgr,
		transitions: transitions,
		bcast:       bcast,
		logger:      logger,
		tileSize:    tileSize,
		radius:      radius,
	}
}

// Connect registers a new session in the start room, pushes the room roster
// to it, and announces its arrival to the room.
//
// Postcondition: Returns the created session with an open entity, or an error.
func (p *PresenceCoordinator) Connect(nickname string) (*session.Session, error) {
	start := p.world.StartRoom()
	if start == nil {
		return nil, fmt.Errorf("no start room configured")
	}

	sess, err := p.sessions.Add(nickname, start.ID, start.SpawnX, start.SpawnY)
	if err != nil {
		return nil, fmt.Errorf("adding session: %w", err)
	}

	p.logger.Info("session connected",
		zap.String("session", sess.ID),
		zap.String("nickname", nickname),
		zap.String("room", start.ID),
	)

	p.transitions.SendRoster(sess.ID, start.ID)
	if view, ok := p.sessions.Get(sess.ID); ok {
		p.bcast.ToRoomExcept(start.ID, sess.ID, EventJoined, rosterEntryOf(view))
	}
	return sess, nil
}

// Disconnect runs the full cleanup cascade for a departed session: tracker
// state is cleared synchronously so no later tick references the id, the
// leaving-room side effects fire exactly as they would on an explicit move,
// and the departure is broadcast.
func (p *PresenceCoordinator) Disconnect(sessionID string) {
	view, ok := p.sessions.Get(sessionID)
	if !ok {
		return
	}

	p.transitions.CleanupOnDisconnect(view)

	if err := p.sessions.Remove(sessionID); err != nil {
		p.logger.Warn("removing session on disconnect", zap.String("session", sessionID), zap.Error(err))
	}

	p.transitions.NotifyRoomLeft(sessionID, view.RoomID)

	p.bcast.ToAll(EventLeft, LeftPayload{ID: sessionID})
	p.logger.Info("session disconnected",
		zap.String("session", sessionID),
		zap.String("nickname", view.Nickname),
	)
}

// Tick runs one proximity pass over the social room and broadcasts the
// contact-id delta map when anything changed. An empty room is a no-op, and
// a no-change tick broadcasts nothing.
func (p *PresenceCoordinator) Tick() {
	roomID := p.world.SocialRoomID()
	views := p.sessions.SnapshotRoom(roomID)
	if len(views) == 0 {
		return
	}

	groups := proximity.BuildGroups(views, p.tileSize, p.radius)

	active := make(map[string]bool, len(groups))
	memberSig := make(map[string]string)
	for _, g := range groups {
		active[g.Signature] = true
		for _, id := range g.Members {
			memberSig[id] = g.Signature
		}
	}

	p.tracker.PruneInactive(active)

	deltas := make(map[string]*string)
	for _, v := range views {
		if sig, ok := memberSig[v.ID]; ok {
			contactID, changed := p.tracker.JoinGroup(v.ID, sig)
			if changed {
				p.sessions.SetGroupID(v.ID, contactID)
				id := contactID
				deltas[v.ID] = &id
			}
		} else if p.tracker.LeaveGroup(v.ID) {
			p.sessions.SetGroupID(v.ID, "")
			deltas[v.ID] = nil
		}
	}

	if len(deltas) > 0 {
		p.bcast.ToRoom(roomID, EventGroupUpdate, GroupUpdatePayload{Groups: deltas})
	}
}
