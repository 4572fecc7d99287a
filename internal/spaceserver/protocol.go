// Package spaceserver hosts the WebSocket service layer: the connection
// lifecycle, the message dispatch table, the presence tick, and the room
// transition cascade.
package spaceserver

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/jaehyeon-kim/agora/internal/space/roomstate"
)

// Client message types.
const (
	MsgMove            = "move"
	MsgChangeRoom      = "changeRoom"
	MsgDeskStatus      = "deskStatusUpdate"
	MsgKnockSend       = "knockSend"
	MsgKnockAccept     = "knockAccept"
	MsgKnockReject     = "knockReject"
	MsgTalkEnd         = "talkEnd"
	MsgTimerStart      = "timerStart"
	MsgTimerPause      = "timerPause"
	MsgTimerReset      = "timerReset"
	MsgTimerAddTime    = "timerAddTime"
	MsgStopwatchUpdate = "stopwatchUpdate"
	MsgStopwatchSync   = "stopwatchSync"
	MsgLecternEnter    = "lecternEnter"
	MsgLecternLeave    = "lecternLeave"
	MsgMuteAll         = "muteAll"
	MsgBreakoutCreate  = "breakoutCreate"
	MsgBreakoutEnd     = "breakoutEnd"
	MsgBreakoutJoin    = "breakoutJoin"
	MsgBreakoutLeave   = "breakoutLeave"
)

// Server event types.
const (
	EventRoster          = "roster"
	EventJoined          = "joined"
	EventLeft            = "left"
	EventMoved           = "moved"
	EventGroupUpdate     = "groupUpdate"
	EventDeskStatus      = "deskStatus"
	EventDeskRoster      = "deskRoster"
	EventKnock           = "knock"
	EventKnockRejected   = "knockRejected"
	EventKnockCancelled  = "knockCancelled"
	EventTalkStarted     = "talkStarted"
	EventTalkEnded       = "talkEnded"
	EventChangeRoomAck   = "changeRoomAck"
	EventTimer           = "timer"
	EventStopwatchShared = "stopwatchShared"
	EventStopwatchRoster = "stopwatchRoster"
	EventLectern         = "lectern"
	EventMute            = "mute"
	EventError           = "error"
)

// Envelope is the wire frame in both directions.
type Envelope struct {
	Type      string          `json:"type"`
	Data      json.RawMessage `json:"data,omitempty"`
	Timestamp int64           `json:"timestamp"`
}

// encodeEvent builds a serialized server envelope of the given type.
func encodeEvent(eventType string, data any) ([]byte, error) {
	raw, err := json.Marshal(data)
	if err != nil {
		return nil, fmt.Errorf("marshaling %s payload: %w", eventType, err)
	}
	env := Envelope{
		Type:      eventType,
		Data:      raw,
		Timestamp: time.Now().UnixMilli(),
	}
	out, err := json.Marshal(env)
	if err != nil {
		return nil, fmt.Errorf("marshaling %s envelope: %w", eventType, err)
	}
	return out, nil
}

// Client payloads.

// MovePayload updates the sender's position within its claimed room.
type MovePayload struct {
	RoomID    string `json:"roomId"`
	X         int    `json:"x"`
	Y         int    `json:"y"`
	Direction string `json:"direction"`
	Motion    string `json:"motion"`
}

// ChangeRoomPayload asks to move the sender to another room.
type ChangeRoomPayload struct {
	RoomID string `json:"roomId"`
}

// DeskStatusPayload sets the sender's desk availability.
type DeskStatusPayload struct {
	Status string `json:"status"`
}

// KnockSendPayload starts a knock toward TargetID.
type KnockSendPayload struct {
	TargetID string `json:"targetId"`
}

// KnockAnswerPayload accepts or rejects the pending knock from FromID.
type KnockAnswerPayload struct {
	FromID string `json:"fromId"`
}

// TimerPayload drives the meeting-room countdown operations.
type TimerPayload struct {
	RoomID  string `json:"roomId"`
	Seconds int    `json:"seconds,omitempty"`
}

// StopwatchEntryPayload updates the sender's roster entry in the focus room.
type StopwatchEntryPayload struct {
	RoomID string                   `json:"roomId"`
	Entry  roomstate.StopwatchEntry `json:"entry"`
}

// StopwatchSharedPayload overwrites a meeting room's shared stopwatch.
type StopwatchSharedPayload struct {
	RoomID string                    `json:"roomId"`
	State  roomstate.SharedStopwatch `json:"state"`
}

// LecternPayload addresses a lectern in the given room.
type LecternPayload struct {
	RoomID string `json:"roomId"`
}

// BreakoutCreatePayload starts a breakout split.
type BreakoutCreatePayload struct {
	RoomID  string   `json:"roomId"`
	Mode    string   `json:"mode"`
	UserIDs []string `json:"userIds,omitempty"`
	Count   int      `json:"count"`
}

// BreakoutJoinPayload moves the sender into a breakout sub-room.
type BreakoutJoinPayload struct {
	RoomID         string `json:"roomId"`
	BreakoutRoomID string `json:"breakoutRoomId"`
}

// Server payloads.

// RosterEntry is one session's visible state in a roster sync.
type RosterEntry struct {
	ID         string `json:"id"`
	Nickname   string `json:"nickname"`
	RoomID     string `json:"roomId"`
	X          int    `json:"x"`
	Y          int    `json:"y"`
	Direction  string `json:"direction"`
	Motion     string `json:"motion"`
	GroupID    string `json:"groupId,omitempty"`
	DeskStatus string `json:"deskStatus,omitempty"`
}

// RosterPayload is the full room roster pushed to one session.
type RosterPayload struct {
	You      string        `json:"you"`
	RoomID   string        `json:"roomId"`
	Sessions []RosterEntry `json:"sessions"`
}

// LeftPayload announces a departed session.
type LeftPayload struct {
	ID string `json:"id"`
}

// MovedPayload announces a session's new room and position.
type MovedPayload struct {
	ID        string `json:"id"`
	RoomID    string `json:"roomId"`
	X         int    `json:"x"`
	Y         int    `json:"y"`
	Direction string `json:"direction"`
	Motion    string `json:"motion"`
}

// GroupUpdatePayload is the contact-id delta map; a nil value clears the id.
type GroupUpdatePayload struct {
	Groups map[string]*string `json:"groups"`
}

// DeskStatusEvent announces one session's desk status.
type DeskStatusEvent struct {
	ID     string `json:"id"`
	Status string `json:"status"`
}

// DeskRosterPayload carries the desk statuses of everyone in the desk room.
type DeskRosterPayload struct {
	Statuses map[string]string `json:"statuses"`
}

// KnockEvent notifies the receiver of an incoming knock.
type KnockEvent struct {
	FromID   string `json:"fromId"`
	Nickname string `json:"nickname"`
}

// KnockAnswerEvent notifies a party that a pending knock went away.
type KnockAnswerEvent struct {
	FromID   string `json:"fromId,omitempty"`
	TargetID string `json:"targetId,omitempty"`
}

// TalkEvent notifies a participant about a conversation starting or ending.
type TalkEvent struct {
	PartnerID string `json:"partnerId"`
	ContactID string `json:"contactId,omitempty"`
}

// AckPayload is the structured acknowledgement for changeRoom.
type AckPayload struct {
	Success bool   `json:"success"`
	Reason  string `json:"reason,omitempty"`
}

// TimerEvent carries the full countdown state of one room.
type TimerEvent struct {
	RoomID string               `json:"roomId"`
	Timer  roomstate.TimerState `json:"timer"`
}

// StopwatchSharedEvent carries a room's shared stopwatch.
type StopwatchSharedEvent struct {
	RoomID string                    `json:"roomId"`
	State  roomstate.SharedStopwatch `json:"state"`
}

// StopwatchRosterEvent carries a room's full per-member stopwatch roster.
type StopwatchRosterEvent struct {
	RoomID string                              `json:"roomId"`
	Roster map[string]roomstate.StopwatchEntry `json:"roster"`
}

// LecternEvent carries a room's full lectern/breakout structure.
type LecternEvent struct {
	RoomID  string                 `json:"roomId"`
	Lectern roomstate.LecternState `json:"lectern"`
	// Ended is true when the state was deleted (last speaker left).
	Ended bool `json:"ended,omitempty"`
}

// MuteEvent instructs a session to mute, issued by the room host.
type MuteEvent struct {
	RoomID string `json:"roomId"`
	HostID string `json:"hostId"`
}

// ErrorPayload carries a human-readable rejection reason.
type ErrorPayload struct {
	Reason string `json:"reason"`
}
