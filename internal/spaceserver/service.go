package spaceserver

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/jaehyeon-kim/agora/internal/space/knock"
	"github.com/jaehyeon-kim/agora/internal/space/roomstate"
	"github.com/jaehyeon-kim/agora/internal/space/session"
	"github.com/jaehyeon-kim/agora/internal/space/world"
)

const (
	writeWait  = 10 * time.Second
	pongWait   = 60 * time.Second
	pingPeriod = 54 * time.Second
)

// handlerFunc processes one decoded client message. A returned error is sent
// to the caller as a targeted error event; state stays unchanged.
type handlerFunc func(c *client, data json.RawMessage) error

// client is one live WebSocket connection bound to its session.
type client struct {
	id   string
	conn *websocket.Conn
}

// Service is the WebSocket front of the space: it upgrades connections,
// drives the session lifecycle, and routes messages through a plain dispatch
// table keyed by message type.
type Service struct {
	sessions    *session.Registry
	world       *world.Manager
	presence    *PresenceCoordinator
	transitions *TransitionCoordinator
	knocks      *knock.Negotiator
	timers      *roomstate.TimerManager
	stopwatches *roomstate.StopwatchManager
	lecterns    *roomstate.LecternManager
	bcast       *Broadcaster
	logger      *zap.Logger
	upgrader    websocket.Upgrader

	handlers map[string]handlerFunc

	mu      sync.Mutex
	clients map[string]*client
}

// NewService wires the service to every subsystem and builds the dispatch
// table.
//
// Precondition: all arguments must be non-nil.
func NewService(
	sessions *session.Registry,
	worldMgr *world.Manager,
	presence *PresenceCoordinator,
	transitions *TransitionCoordinator,
	knocks *knock.Negotiator,
	timers *roomstate.TimerManager,
	stopwatches *roomstate.StopwatchManager,
	lecterns *roomstate.LecternManager,
	bcast *Broadcaster,
	logger *zap.Logger,
) *Service {
	s := &Service{
		sessions:    sessions,
		world:       worldMgr,
		presence:    presence,
		transitions: transitions,
		knocks:      knocks,
		timers:      timers,
		stopwatches: stopwatches,
		lecterns:    lecterns,
		bcast:       bcast,
		logger:      logger,
		upgrader: websocket.Upgrader{
			CheckOrigin:     func(r *http.Request) bool { return true },
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
		},
		clients: make(map[string]*client),
	}

	s.handlers = map[string]handlerFunc{
		MsgMove:            s.handleMove,
		MsgChangeRoom:      s.handleChangeRoom,
		MsgDeskStatus:      s.handleDeskStatus,
		MsgKnockSend:       s.handleKnockSend,
		MsgKnockAccept:     s.handleKnockAccept,
		MsgKnockReject:     s.handleKnockReject,
		MsgTalkEnd:         s.handleTalkEnd,
		MsgTimerStart:      s.handleTimerStart,
		MsgTimerPause:      s.handleTimerPause,
		MsgTimerReset:      s.handleTimerReset,
		MsgTimerAddTime:    s.handleTimerAddTime,
		MsgStopwatchUpdate: s.handleStopwatchUpdate,
		MsgStopwatchSync:   s.handleStopwatchSync,
		MsgLecternEnter:    s.handleLecternEnter,
		MsgLecternLeave:    s.handleLecternLeave,
		MsgMuteAll:         s.handleMuteAll,
		MsgBreakoutCreate:  s.handleBreakoutCreate,
		MsgBreakoutEnd:     s.handleBreakoutEnd,
		MsgBreakoutJoin:    s.handleBreakoutJoin,
		MsgBreakoutLeave:   s.handleBreakoutLeave,
	}
	return s
}

// RegisterRoutes mounts the WebSocket endpoint and the health check.
func (s *Service) RegisterRoutes(r chi.Router) {
	r.Get("/ws", s.handleWS)
	r.Get("/healthz", s.handleHealth)
}

func (s *Service) handleHealth(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	fmt.Fprintf(w, `{"status":"ok","sessions":%d}`, s.sessions.Count())
}

// handleWS upgrades the connection and runs the session until it ends.
func (s *Service) handleWS(w http.ResponseWriter, r *http.Request) {
	nickname := r.URL.Query().Get("nickname")
	if nickname == "" {
		nickname = "guest"
	}

	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Warn("websocket upgrade failed", zap.Error(err))
		return
	}
	defer conn.Close()

	sess, err := s.presence.Connect(nickname)
	if err != nil {
		s.logger.Error("connecting session", zap.Error(err))
		return
	}
	defer s.presence.Disconnect(sess.ID)

	c := &client{id: sess.ID, conn: conn}
	s.track(c)
	defer s.untrack(c.id)

	ctx, cancel := context.WithCancel(r.Context())
	defer cancel()

	go s.writePump(ctx, conn, sess.Entity)
	go s.pingLoop(ctx, conn)

	_ = conn.SetReadDeadline(time.Now().Add(pongWait))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		var env Envelope
		if err := conn.ReadJSON(&env); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				s.logger.Debug("websocket read error", zap.String("session", sess.ID), zap.Error(err))
			}
			return
		}
		_ = conn.SetReadDeadline(time.Now().Add(pongWait))
		s.dispatch(c, &env)
	}
}

// dispatch routes one message through the handler table. Panics are
// recovered at this boundary so no message can take down the connection
// loop or another session's handler.
func (s *Service) dispatch(c *client, env *Envelope) {
	defer func() {
		if r := recover(); r != nil {
			s.logger.Error("handler panic",
				zap.String("session", c.id),
				zap.String("type", env.Type),
				zap.Any("panic", r),
			)
			s.sendError(c.id, "internal error")
		}
	}()

	h, ok := s.handlers[env.Type]
	if !ok {
		s.sendError(c.id, fmt.Sprintf("unsupported message type: %s", env.Type))
		return
	}
	if err := h(c, env.Data); err != nil {
		s.sendError(c.id, err.Error())
	}
}

func (s *Service) sendError(sessionID, reason string) {
	s.bcast.ToSession(sessionID, EventError, ErrorPayload{Reason: reason})
}

// writePump forwards entity events to the connection until either closes.
func (s *Service) writePump(ctx context.Context, conn *websocket.Conn, entity *session.Entity) {
	for {
		select {
		case <-ctx.Done():
			return
		case data, ok := <-entity.Events():
			if !ok {
				return
			}
			_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.WriteMessage(websocket.TextMessage, data); err != nil {
				return
			}
		}
	}
}

func (s *Service) pingLoop(ctx context.Context, conn *websocket.Conn) {
	ticker := time.NewTicker(pingPeriod)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

func (s *Service) track(c *client) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.clients[c.id] = c
}

func (s *Service) untrack(id string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.clients, id)
}

// Stop closes every live connection with a close frame.
//
// Postcondition: all tracked connections receive a going-away close frame.
func (s *Service) Stop() {
	s.mu.Lock()
	clients := make([]*client, 0, len(s.clients))
	for _, c := range s.clients {
		clients = append(clients, c)
	}
	s.mu.Unlock()

	msg := websocket.FormatCloseMessage(websocket.CloseGoingAway, "server shutting down")
	for _, c := range clients {
		_ = c.conn.WriteControl(websocket.CloseMessage, msg, time.Now().Add(writeWait))
		_ = c.conn.Close()
	}
}

// decode unmarshals a payload, reporting validation failures to the caller
// as a log-and-ignore per the error taxonomy.
func (s *Service) decode(c *client, msgType string, data json.RawMessage, v any) bool {
	if err := json.Unmarshal(data, v); err != nil {
		s.logger.Warn("invalid payload ignored",
			zap.String("session", c.id),
			zap.String("type", msgType),
			zap.Error(err),
		)
		return false
	}
	return true
}

// requireRoom checks that the caller is actually in the claimed room and
// that the room has one of the allowed types.
func (s *Service) requireRoom(c *client, roomID string, allowed ...world.RoomType) (session.View, error) {
	view, ok := s.sessions.Get(c.id)
	if !ok {
		return session.View{}, fmt.Errorf("session %q not found", c.id)
	}
	if view.RoomID != roomID {
		return session.View{}, fmt.Errorf("you are not in room %q", roomID)
	}
	rt := s.world.RoomType(roomID)
	for _, t := range allowed {
		if rt == t {
			return view, nil
		}
	}
	return session.View{}, fmt.Errorf("not available in this room")
}

// Message handlers.

func (s *Service) handleMove(c *client, data json.RawMessage) error {
	var p MovePayload
	if !s.decode(c, MsgMove, data, &p) {
		return nil
	}
	motion := session.MotionState(p.Motion)
	if !motion.Valid() || p.RoomID == "" {
		s.logger.Warn("invalid move ignored", zap.String("session", c.id), zap.String("motion", p.Motion))
		return nil
	}
	view, ok := s.sessions.Get(c.id)
	if !ok {
		return nil
	}
	if view.RoomID != p.RoomID {
		// Claimed room does not match the session's actual room.
		s.logger.Warn("move for wrong room ignored",
			zap.String("session", c.id),
			zap.String("claimed", p.RoomID),
			zap.String("actual", view.RoomID),
		)
		return nil
	}
	s.sessions.SetPosition(c.id, session.Position{
		X:         p.X,
		Y:         p.Y,
		Direction: p.Direction,
		Motion:    motion,
	})
	s.bcast.ToRoomExcept(p.RoomID, c.id, EventMoved, MovedPayload{
		ID:        c.id,
		RoomID:    p.RoomID,
		X:         p.X,
		Y:         p.Y,
		Direction: p.Direction,
		Motion:    p.Motion,
	})
	return nil
}

func (s *Service) handleChangeRoom(c *client, data json.RawMessage) error {
	var p ChangeRoomPayload
	if !s.decode(c, MsgChangeRoom, data, &p) {
		return nil
	}
	ack := s.transitions.ChangeRoom(c.id, p.RoomID)
	s.bcast.ToSession(c.id, EventChangeRoomAck, ack)
	return nil
}

func (s *Service) handleDeskStatus(c *client, data json.RawMessage) error {
	var p DeskStatusPayload
	if !s.decode(c, MsgDeskStatus, data, &p) {
		return nil
	}
	if err := s.knocks.SetDeskStatus(c.id, session.DeskStatus(p.Status)); err != nil {
		return err
	}
	if view, ok := s.sessions.Get(c.id); ok {
		s.bcast.ToRoom(view.RoomID, EventDeskStatus, DeskStatusEvent{ID: c.id, Status: p.Status})
	}
	return nil
}

func (s *Service) handleKnockSend(c *client, data json.RawMessage) error {
	var p KnockSendPayload
	if !s.decode(c, MsgKnockSend, data, &p) {
		return nil
	}
	req, err := s.knocks.Send(c.id, p.TargetID)
	if err != nil {
		return err
	}
	s.bcast.ToSession(p.TargetID, EventKnock, KnockEvent{FromID: c.id, Nickname: req.SenderNickname})
	return nil
}

func (s *Service) handleKnockAccept(c *client, data json.RawMessage) error {
	var p KnockAnswerPayload
	if !s.decode(c, MsgKnockAccept, data, &p) {
		return nil
	}
	res, err := s.knocks.Accept(c.id, p.FromID)
	if err != nil {
		return err
	}

	s.bcast.ToSession(res.SenderID, EventTalkStarted, TalkEvent{PartnerID: res.ReceiverID, ContactID: res.ContactID})
	s.bcast.ToSession(res.ReceiverID, EventTalkStarted, TalkEvent{PartnerID: res.SenderID, ContactID: res.ContactID})

	if view, ok := s.sessions.Get(c.id); ok {
		talking := string(session.DeskTalking)
		s.bcast.ToRoom(view.RoomID, EventDeskStatus, DeskStatusEvent{ID: res.SenderID, Status: talking})
		s.bcast.ToRoom(view.RoomID, EventDeskStatus, DeskStatusEvent{ID: res.ReceiverID, Status: talking})
		contactID := res.ContactID
		s.bcast.ToRoom(view.RoomID, EventGroupUpdate, GroupUpdatePayload{
			Groups: map[string]*string{res.SenderID: &contactID, res.ReceiverID: &contactID},
		})
	}

	if res.CancelledCounter != nil {
		s.bcast.ToSession(res.CancelledCounter.SenderID, EventKnockCancelled,
			KnockAnswerEvent{TargetID: res.CancelledCounter.ReceiverID})
	}
	return nil
}

func (s *Service) handleKnockReject(c *client, data json.RawMessage) error {
	var p KnockAnswerPayload
	if !s.decode(c, MsgKnockReject, data, &p) {
		return nil
	}
	req, err := s.knocks.Reject(c.id, p.FromID)
	if errors.Is(err, knock.ErrNoRequest) {
		// Sender may have cancelled or disconnected already.
		return nil
	}
	if err != nil {
		return err
	}
	s.bcast.ToSession(req.SenderID, EventKnockRejected, KnockAnswerEvent{TargetID: c.id})
	return nil
}

func (s *Service) handleTalkEnd(c *client, data json.RawMessage) error {
	res, err := s.knocks.EndTalk(c.id)
	if err != nil {
		return err
	}

	s.bcast.ToSession(res.CallerID, EventTalkEnded, TalkEvent{PartnerID: res.PartnerID})
	s.bcast.ToSession(res.PartnerID, EventTalkEnded, TalkEvent{PartnerID: res.CallerID})

	if view, ok := s.sessions.Get(c.id); ok {
		available := string(session.DeskAvailable)
		s.bcast.ToRoom(view.RoomID, EventDeskStatus, DeskStatusEvent{ID: res.CallerID, Status: available})
		s.bcast.ToRoom(view.RoomID, EventDeskStatus, DeskStatusEvent{ID: res.PartnerID, Status: available})
		s.bcast.ToRoom(view.RoomID, EventGroupUpdate, GroupUpdatePayload{
			Groups: map[string]*string{res.CallerID: nil, res.PartnerID: nil},
		})
	}
	return nil
}

func (s *Service) handleTimerStart(c *client, data json.RawMessage) error {
	var p TimerPayload
	if !s.decode(c, MsgTimerStart, data, &p) {
		return nil
	}
	if _, err := s.requireRoom(c, p.RoomID, world.TypeMeeting); err != nil {
		return err
	}
	state := s.timers.Start(p.RoomID, p.Seconds)
	s.bcast.ToRoom(p.RoomID, EventTimer, TimerEvent{RoomID: p.RoomID, Timer: state})
	return nil
}

func (s *Service) handleTimerPause(c *client, data json.RawMessage) error {
	return s.timerOp(c, MsgTimerPause, data, s.timers.Pause)
}

func (s *Service) handleTimerReset(c *client, data json.RawMessage) error {
	return s.timerOp(c, MsgTimerReset, data, s.timers.Reset)
}

func (s *Service) handleTimerAddTime(c *client, data json.RawMessage) error {
	var p TimerPayload
	if !s.decode(c, MsgTimerAddTime, data, &p) {
		return nil
	}
	if _, err := s.requireRoom(c, p.RoomID, world.TypeMeeting); err != nil {
		return err
	}
	state, ok := s.timers.AddTime(p.RoomID, p.Seconds)
	if !ok {
		return fmt.Errorf("room %q has no timer", p.RoomID)
	}
	s.bcast.ToRoom(p.RoomID, EventTimer, TimerEvent{RoomID: p.RoomID, Timer: state})
	return nil
}

// timerOp shares the decode/validate/broadcast shape of pause and reset.
func (s *Service) timerOp(c *client, msgType string, data json.RawMessage, op func(string) (roomstate.TimerState, bool)) error {
	var p TimerPayload
	if !s.decode(c, msgType, data, &p) {
		return nil
	}
	if _, err := s.requireRoom(c, p.RoomID, world.TypeMeeting); err != nil {
		return err
	}
	state, ok := op(p.RoomID)
	if !ok {
		return fmt.Errorf("room %q has no timer", p.RoomID)
	}
	s.bcast.ToRoom(p.RoomID, EventTimer, TimerEvent{RoomID: p.RoomID, Timer: state})
	return nil
}

func (s *Service) handleStopwatchUpdate(c *client, data json.RawMessage) error {
	var p StopwatchEntryPayload
	if !s.decode(c, MsgStopwatchUpdate, data, &p) {
		return nil
	}
	if _, err := s.requireRoom(c, p.RoomID, world.TypeFocus); err != nil {
		return err
	}
	roster := s.stopwatches.SetEntry(p.RoomID, c.id, p.Entry)
	s.bcast.ToRoom(p.RoomID, EventStopwatchRoster, StopwatchRosterEvent{RoomID: p.RoomID, Roster: roster})
	return nil
}

func (s *Service) handleStopwatchSync(c *client, data json.RawMessage) error {
	var p StopwatchSharedPayload
	if !s.decode(c, MsgStopwatchSync, data, &p) {
		return nil
	}
	if _, err := s.requireRoom(c, p.RoomID, world.TypeMeeting); err != nil {
		return err
	}
	state := s.stopwatches.SetShared(p.RoomID, p.State)
	s.bcast.ToRoom(p.RoomID, EventStopwatchShared, StopwatchSharedEvent{RoomID: p.RoomID, State: state})
	return nil
}

func (s *Service) handleLecternEnter(c *client, data json.RawMessage) error {
	var p LecternPayload
	if !s.decode(c, MsgLecternEnter, data, &p) {
		return nil
	}
	if _, err := s.requireRoom(c, p.RoomID, world.TypeMeeting); err != nil {
		return err
	}
	state := s.lecterns.Enter(p.RoomID, c.id)
	s.bcast.ToRoom(p.RoomID, EventLectern, LecternEvent{RoomID: p.RoomID, Lectern: state})
	return nil
}

func (s *Service) handleLecternLeave(c *client, data json.RawMessage) error {
	var p LecternPayload
	if !s.decode(c, MsgLecternLeave, data, &p) {
		return nil
	}
	if _, err := s.requireRoom(c, p.RoomID, world.TypeMeeting); err != nil {
		return err
	}
	state, deleted := s.lecterns.Leave(p.RoomID, c.id)
	s.bcast.ToRoom(p.RoomID, EventLectern, LecternEvent{RoomID: p.RoomID, Lectern: state, Ended: deleted})
	return nil
}

func (s *Service) handleMuteAll(c *client, data json.RawMessage) error {
	var p LecternPayload
	if !s.decode(c, MsgMuteAll, data, &p) {
		return nil
	}
	if _, err := s.requireRoom(c, p.RoomID, world.TypeMeeting); err != nil {
		return err
	}
	others, err := s.lecterns.MuteAll(p.RoomID, c.id)
	if err != nil {
		return err
	}
	for _, id := range others {
		s.bcast.ToSession(id, EventMute, MuteEvent{RoomID: p.RoomID, HostID: c.id})
	}
	return nil
}

func (s *Service) handleBreakoutCreate(c *client, data json.RawMessage) error {
	var p BreakoutCreatePayload
	if !s.decode(c, MsgBreakoutCreate, data, &p) {
		return nil
	}
	if _, err := s.requireRoom(c, p.RoomID, world.TypeMeeting); err != nil {
		return err
	}
	state, err := s.lecterns.CreateBreakout(p.RoomID, c.id, roomstate.BreakoutMode(p.Mode), p.UserIDs, p.Count)
	if err != nil {
		return err
	}
	s.bcast.ToRoom(p.RoomID, EventLectern, LecternEvent{RoomID: p.RoomID, Lectern: state})
	return nil
}

func (s *Service) handleBreakoutEnd(c *client, data json.RawMessage) error {
	var p LecternPayload
	if !s.decode(c, MsgBreakoutEnd, data, &p) {
		return nil
	}
	if _, err := s.requireRoom(c, p.RoomID, world.TypeMeeting); err != nil {
		return err
	}
	state, err := s.lecterns.EndBreakout(p.RoomID, c.id)
	if err != nil {
		return err
	}
	s.bcast.ToRoom(p.RoomID, EventLectern, LecternEvent{RoomID: p.RoomID, Lectern: state})
	return nil
}

func (s *Service) handleBreakoutJoin(c *client, data json.RawMessage) error {
	var p BreakoutJoinPayload
	if !s.decode(c, MsgBreakoutJoin, data, &p) {
		return nil
	}
	if _, err := s.requireRoom(c, p.RoomID, world.TypeMeeting); err != nil {
		return err
	}
	state, err := s.lecterns.JoinBreakout(p.RoomID, p.BreakoutRoomID, c.id)
	if err != nil {
		return err
	}
	s.bcast.ToRoom(p.RoomID, EventLectern, LecternEvent{RoomID: p.RoomID, Lectern: state})
	return nil
}

func (s *Service) handleBreakoutLeave(c *client, data json.RawMessage) error {
	var p LecternPayload
	if !s.decode(c, MsgBreakoutLeave, data, &p) {
		return nil
	}
	if _, err := s.requireRoom(c, p.RoomID, world.TypeMeeting); err != nil {
		return err
	}
	state, err := s.lecterns.LeaveBreakout(p.RoomID, c.id)
	if err != nil {
		return err
	}
	s.bcast.ToRoom(p.RoomID, EventLectern, LecternEvent{RoomID: p.RoomID, Lectern: state})
	return nil
}
