package spaceserver

import (
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/jaehyeon-kim/agora/internal/space/knock"
	"github.com/jaehyeon-kim/agora/internal/space/proximity"
	"github.com/jaehyeon-kim/agora/internal/space/roomstate"
	"github.com/jaehyeon-kim/agora/internal/space/session"
	"github.com/jaehyeon-kim/agora/internal/space/world"
)

// TransitionCoordinator validates and executes room changes, firing the
// cleanup cascade into the knock, proximity, and room-state subsystems.
//
// Once the room change is applied, downstream effect failures are logged and
// never roll it back; each effect is safe to re-run.
type TransitionCoordinator struct {
	sessions    *session.Registry
	world       *world.Manager
	tracker     *proximity.Tracker
	knocks      *knock.Negotiator
	timers      *roomstate.TimerManager
	stopwatches *roomstate.StopwatchManager
	lecterns    *roomstate.LecternManager
	bcast       *Broadcaster
	logger      *zap.Logger

	// debounce delays empty-room teardown to absorb mid-transition gaps.
	debounce  time.Duration
	mu        sync.Mutex
	teardowns map[string]*roomstate.TeardownTimer
}

// NewTransitionCoordinator wires the coordinator to every subsystem it must
// clean up on a move.
//
// Precondition: all arguments must be non-nil; debounce must be >= 0.
func NewTransitionCoordinator(
	sessions *session.Registry,
	worldMgr *world.Manager,
	tracker *proximity.Tracker,
	knocks *knock.Negotiator,
	timers *roomstate.TimerManager,
	stopwatches *roomstate.StopwatchManager,
	lecterns *roomstate.LecternManager,
	bcast *Broadcaster,
	logger *zap.Logger,
	debounce time.Duration,
) *TransitionCoordinator {
	return &TransitionCoordinator{
		sessions:    sessions,
		world:       worldMgr,
		tracker:     tracker,
		knocks:      knocks,
		timers:      timers,
		stopwatches: stopwatches,
		lecterns:    lecterns,
		bcast:       bcast,
		logger:      logger,
		debounce:    debounce,
		teardowns:   make(map[string]*roomstate.TeardownTimer),
	}
}

// ChangeRoom moves a session to targetRoomID, running the full side-effect
// cascade.
//
// Postcondition: Returns a structured acknowledgement; on failure the session
// remains where it was (unless the change was already applied, in which case
// downstream failures are logged, not rolled back).
func (tc *TransitionCoordinator) ChangeRoom(sessionID, targetRoomID string) AckPayload {
	if targetRoomID == "" {
		return AckPayload{Success: false, Reason: "target room required"}
	}
	target, err := tc.world.Resolve(targetRoomID)
	if err != nil {
		return AckPayload{Success: false, Reason: err.Error()}
	}
	view, ok := tc.sessions.Get(sessionID)
	if !ok {
		return AckPayload{Success: false, Reason: fmt.Sprintf("session %q not found", sessionID)}
	}
	if view.RoomID == targetRoomID {
		return AckPayload{Success: false, Reason: "already in that room"}
	}

	// Pre-move cleanup tied to the room being left.
	tc.leaveSideEffects(view, target.ID)

	oldRoomID, err := tc.sessions.SetRoom(sessionID, target.ID)
	if err != nil {
		// Lost a race with disconnect.
		return AckPayload{Success: false, Reason: err.Error()}
	}
	tc.cancelTeardown(target.ID)

	pos := session.Position{X: target.SpawnX, Y: target.SpawnY, Direction: "down", Motion: session.MotionIdle}
	tc.sessions.SetPosition(sessionID, pos)

	// Everyone sees the move; the mover gets the new room's full roster.
	tc.bcast.ToAll(EventMoved, MovedPayload{
		ID:        sessionID,
		RoomID:    target.ID,
		X:         pos.X,
		Y:         pos.Y,
		Direction: pos.Direction,
		Motion:    string(pos.Motion),
	})
	tc.SendRoster(sessionID, target.ID)

	if target.Type == world.TypeDesk {
		tc.enterDeskRoom(sessionID, target.ID)
	}

	tc.notifyRoomLeft(sessionID, oldRoomID)

	return AckPayload{Success: true}
}

// CleanupOnDisconnect runs the leaving-room cascade for an abruptly departed
// session, so room-emptying side effects fire on disconnects too. The caller
// removes the session from the registry afterwards.
func (tc *TransitionCoordinator) CleanupOnDisconnect(view session.View) {
	tc.leaveSideEffects(view, "")
}

// NotifyRoomLeft runs the old-room bookkeeping after the session is gone
// from it (explicit move or disconnect).
func (tc *TransitionCoordinator) NotifyRoomLeft(sessionID, oldRoomID string) {
	tc.notifyRoomLeft(sessionID, oldRoomID)
}

// SendRoster pushes the full roster of roomID to one session.
func (tc *TransitionCoordinator) SendRoster(sessionID, roomID string) {
	views := tc.sessions.SnapshotRoom(roomID)
	entries := make([]RosterEntry, 0, len(views))
	for _, v := range views {
		entries = append(entries, rosterEntryOf(v))
	}
	tc.bcast.ToSession(sessionID, EventRoster, RosterPayload{
		You:      sessionID,
		RoomID:   roomID,
		Sessions: entries,
	})
}

// leaveSideEffects runs the desk and social cleanup for a session about to
// leave view.RoomID. targetRoomID is "" on disconnect.
func (tc *TransitionCoordinator) leaveSideEffects(view session.View, targetRoomID string) {
	oldType := tc.world.RoomType(view.RoomID)

	if oldType == world.TypeDesk && targetRoomID != view.RoomID {
		tc.cleanupDesk(view.ID)
	}

	if oldType == world.TypeSocial {
		// Gone from the room entirely: no grace period.
		if tc.tracker.Clear(view.ID) {
			tc.sessions.SetGroupID(view.ID, "")
			tc.bcast.ToRoom(view.RoomID, EventGroupUpdate, GroupUpdatePayload{
				Groups: map[string]*string{view.ID: nil},
			})
		}
	}
}

// cleanupDesk tears down the session's knock state and notifies every
// affected counterparty. Shared by explicit desk exit and disconnect.
func (tc *TransitionCoordinator) cleanupDesk(sessionID string) {
	result := tc.knocks.CleanupSession(sessionID)

	if result.Ended != nil {
		partnerID := result.Ended.PartnerID
		tc.bcast.ToSession(partnerID, EventTalkEnded, TalkEvent{PartnerID: sessionID})
		if partner, ok := tc.sessions.Get(partnerID); ok {
			tc.bcast.ToRoom(partner.RoomID, EventDeskStatus, DeskStatusEvent{
				ID:     partnerID,
				Status: string(partner.Desk),
			})
			tc.bcast.ToRoom(partner.RoomID, EventGroupUpdate, GroupUpdatePayload{
				Groups: map[string]*string{sessionID: nil, partnerID: nil},
			})
		}
	}
	for _, req := range result.CancelledSent {
		tc.bcast.ToSession(req.ReceiverID, EventKnockCancelled, KnockAnswerEvent{FromID: sessionID})
	}
	for _, req := range result.CancelledReceived {
		tc.bcast.ToSession(req.SenderID, EventKnockCancelled, KnockAnswerEvent{TargetID: sessionID})
	}
}

// enterDeskRoom initializes the mover's desk status and syncs statuses both
// ways.
func (tc *TransitionCoordinator) enterDeskRoom(sessionID, roomID string) {
	tc.sessions.SetDeskStatus(sessionID, session.DeskAvailable)
	tc.bcast.ToRoom(roomID, EventDeskStatus, DeskStatusEvent{
		ID:     sessionID,
		Status: string(session.DeskAvailable),
	})

	statuses := make(map[string]string)
	for _, v := range tc.sessions.SnapshotRoom(roomID) {
		if v.Desk != session.DeskNone {
			statuses[v.ID] = string(v.Desk)
		}
	}
	tc.bcast.ToSession(sessionID, EventDeskRoster, DeskRosterPayload{Statuses: statuses})
}

// notifyRoomLeft informs the ephemeral-state managers about the room the
// session just left.
func (tc *TransitionCoordinator) notifyRoomLeft(sessionID, oldRoomID string) {
	switch tc.world.RoomType(oldRoomID) {
	case world.TypeMeeting:
		if st, deleted := tc.lecterns.Leave(oldRoomID, sessionID); !deleted && len(st.Speakers) > 0 {
			tc.bcast.ToRoom(oldRoomID, EventLectern, LecternEvent{RoomID: oldRoomID, Lectern: st})
		}
		if tc.sessions.RoomCount(oldRoomID) == 0 {
			tc.scheduleTeardown(oldRoomID)
		}
	case world.TypeFocus:
		if roster, changed := tc.stopwatches.RemoveEntry(oldRoomID, sessionID); changed {
			tc.bcast.ToRoom(oldRoomID, EventStopwatchRoster, StopwatchRosterEvent{
				RoomID: oldRoomID,
				Roster: roster,
			})
		}
	}
}

// scheduleTeardown arms the debounced deletion of all ephemeral state for an
// empty room. Re-entry before the debounce fires cancels it.
func (tc *TransitionCoordinator) scheduleTeardown(roomID string) {
	tc.mu.Lock()
	defer tc.mu.Unlock()

	if existing, ok := tc.teardowns[roomID]; ok {
		existing.Stop()
	}
	tc.teardowns[roomID] = roomstate.NewTeardownTimer(tc.debounce, func() {
		tc.mu.Lock()
		delete(tc.teardowns, roomID)
		tc.mu.Unlock()

		if tc.sessions.RoomCount(roomID) > 0 {
			return
		}
		tc.timers.Delete(roomID)
		tc.lecterns.Delete(roomID)
		tc.stopwatches.DeleteRoom(roomID)
		tc.logger.Debug("empty room state deleted", zap.String("room", roomID))
	})
}

// cancelTeardown stops a pending teardown when someone enters the room.
func (tc *TransitionCoordinator) cancelTeardown(roomID string) {
	tc.mu.Lock()
	defer tc.mu.Unlock()
	if t, ok := tc.teardowns[roomID]; ok {
		t.Stop()
		delete(tc.teardowns, roomID)
	}
}

func rosterEntryOf(v session.View) RosterEntry {
	return RosterEntry{
		ID:         v.ID,
		Nickname:   v.Nickname,
		RoomID:     v.RoomID,
		X:          v.Pos.X,
		Y:          v.Pos.Y,
		Direction:  v.Pos.Direction,
		Motion:     string(v.Pos.Motion),
		GroupID:    v.GroupID,
		DeskStatus: string(v.Desk),
	}
}
