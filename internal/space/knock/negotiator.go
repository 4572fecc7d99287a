// Package knock implements the two-party conversation handshake for the desk
// room: desk availability statuses, pending knock requests, and talking pairs.
package knock

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/jaehyeon-kim/agora/internal/space/session"
)

// pairNamespace seeds the deterministic contact id for a talking pair.
var pairNamespace = uuid.MustParse("8a9c63f2-41d7-4b6e-9a11-3f1c5d2e7b40")

// Rejection reasons surfaced directly to users.
var (
	ErrNotAtDesk        = errors.New("both parties must be in the desk room")
	ErrSenderBusy       = errors.New("you must be available to knock")
	ErrReceiverFocusing = errors.New("receiver is focusing")
	ErrReceiverTalking  = errors.New("receiver is already talking")
	ErrAlreadyPending   = errors.New("knock already pending")
	ErrNoRequest        = errors.New("knock request no longer exists")
	ErrNotTalking       = errors.New("you are not in a conversation")
)

// Request is one directional pending knock.
type Request struct {
	SenderID       string
	ReceiverID     string
	SenderNickname string
	SentAt         time.Time
}

// AcceptResult describes the effects of a successful accept.
type AcceptResult struct {
	SenderID   string
	ReceiverID string
	// ContactID is the shared group contact id for the new talking pair.
	ContactID string
	// CancelledCounter is the counter-direction request consumed by the
	// accept, if the two parties had knocked each other simultaneously.
	CancelledCounter *Request
}

// EndResult names the two former participants of an ended conversation.
type EndResult struct {
	CallerID  string
	PartnerID string
}

// CleanupResult lists everything torn down for a departing session.
type CleanupResult struct {
	// Ended is non-nil when the session was in an active conversation.
	Ended *EndResult
	// CancelledSent are the session's own pending requests (notify receivers).
	CancelledSent []*Request
	// CancelledReceived are requests aimed at the session (notify senders).
	CancelledReceived []*Request
}

// Negotiator owns the pending-request set and the talking-pair registry.
// All methods are safe for concurrent use.
//
// Invariant: a session appears in at most one talking pair at a time.
type Negotiator struct {
	mu       sync.Mutex
	pending  map[pairKey]*Request // directional (sender, receiver)
	partners map[string]string    // sessionID → talking partner
	sessions *session.Registry
}

type pairKey struct {
	sender   string
	receiver string
}

// NewNegotiator creates a Negotiator over the given session registry.
//
// Precondition: sessions must be non-nil.
func NewNegotiator(sessions *session.Registry) *Negotiator {
	return &Negotiator{
		pending:  make(map[pairKey]*Request),
		partners: make(map[string]string),
		sessions: sessions,
	}
}

// PairContactID derives the shared contact id for a talking pair. The id is
// deterministic over the unordered pair so both sides compute the same value.
func PairContactID(a, b string) string {
	if b < a {
		a, b = b, a
	}
	return uuid.NewSHA1(pairNamespace, []byte(a+":"+b)).String()
}

// CanKnock checks whether a knock from sender to receiver is permitted.
//
// Postcondition: Returns nil if permitted, or the user-facing rejection reason.
func CanKnock(sender, receiver session.DeskStatus) error {
	if sender == session.DeskNone || receiver == session.DeskNone {
		return ErrNotAtDesk
	}
	if sender != session.DeskAvailable {
		return ErrSenderBusy
	}
	switch receiver {
	case session.DeskFocusing:
		return ErrReceiverFocusing
	case session.DeskTalking:
		return ErrReceiverTalking
	}
	return nil
}

// Send records a pending knock from senderID to receiverID.
//
// Postcondition: Returns the recorded request for receiver notification, or
// the rejection reason. State is unchanged on rejection.
func (n *Negotiator) Send(senderID, receiverID string) (*Request, error) {
	sender, ok := n.sessions.Get(senderID)
	if !ok {
		return nil, fmt.Errorf("session %q not found", senderID)
	}
	receiver, ok := n.sessions.Get(receiverID)
	if !ok {
		return nil, fmt.Errorf("session %q not found", receiverID)
	}
	if err := CanKnock(sender.Desk, receiver.Desk); err != nil {
		return nil, err
	}

	n.mu.Lock()
	defer n.mu.Unlock()

	key := pairKey{sender: senderID, receiver: receiverID}
	if _, exists := n.pending[key]; exists {
		return nil, ErrAlreadyPending
	}

	req := &Request{
		SenderID:       senderID,
		ReceiverID:     receiverID,
		SenderNickname: sender.Nickname,
		SentAt:         time.Now(),
	}
	n.pending[key] = req
	return req, nil
}

// Accept consumes the pending knock from senderID to receiverID and starts
// the conversation.
//
// The pending request is removed even on failure so stale requests never
// leak. A counter-direction request between the same pair is cancelled and
// reported so its sender can be notified.
//
// Postcondition: On success both parties are in desk status talking, carry
// the shared pair contact id, and are recorded as each other's partner.
func (n *Negotiator) Accept(receiverID, senderID string) (*AcceptResult, error) {
	n.mu.Lock()

	key := pairKey{sender: senderID, receiver: receiverID}
	_, exists := n.pending[key]
	delete(n.pending, key)
	if !exists {
		n.mu.Unlock()
		return nil, ErrNoRequest
	}

	sender, ok := n.sessions.Get(senderID)
	if !ok {
		n.mu.Unlock()
		return nil, fmt.Errorf("session %q not found", senderID)
	}
	if sender.Desk == session.DeskTalking {
		// Lost the race with another acceptance.
		n.mu.Unlock()
		return nil, ErrReceiverTalking
	}

	var cancelled *Request
	counterKey := pairKey{sender: receiverID, receiver: senderID}
	if counter, ok := n.pending[counterKey]; ok {
		delete(n.pending, counterKey)
		cancelled = counter
	}

	n.partners[senderID] = receiverID
	n.partners[receiverID] = senderID
	n.mu.Unlock()

	contactID := PairContactID(senderID, receiverID)
	n.sessions.SetDeskStatus(senderID, session.DeskTalking)
	n.sessions.SetDeskStatus(receiverID, session.DeskTalking)
	n.sessions.SetGroupID(senderID, contactID)
	n.sessions.SetGroupID(receiverID, contactID)

	return &AcceptResult{
		SenderID:         senderID,
		ReceiverID:       receiverID,
		ContactID:        contactID,
		CancelledCounter: cancelled,
	}, nil
}

// Reject removes the pending knock from senderID to receiverID.
//
// Postcondition: Returns the removed request so the sender can be notified,
// or ErrNoRequest. Safe to call after the sender has disconnected.
func (n *Negotiator) Reject(receiverID, senderID string) (*Request, error) {
	n.mu.Lock()
	defer n.mu.Unlock()

	key := pairKey{sender: senderID, receiver: receiverID}
	req, exists := n.pending[key]
	if !exists {
		return nil, ErrNoRequest
	}
	delete(n.pending, key)
	return req, nil
}

// Cancel removes the sender's own pending knock to receiverID.
//
// Postcondition: Returns the removed request so the receiver can be notified,
// or ErrNoRequest. Safe to call after the receiver has disconnected.
func (n *Negotiator) Cancel(senderID, receiverID string) (*Request, error) {
	n.mu.Lock()
	defer n.mu.Unlock()

	key := pairKey{sender: senderID, receiver: receiverID}
	req, exists := n.pending[key]
	if !exists {
		return nil, ErrNoRequest
	}
	delete(n.pending, key)
	return req, nil
}

// EndTalk ends the caller's active conversation.
//
// Postcondition: Both former participants return to desk status available
// with no group contact id, or ErrNotTalking if the caller has no partner.
func (n *Negotiator) EndTalk(callerID string) (*EndResult, error) {
	caller, ok := n.sessions.Get(callerID)
	if !ok {
		return nil, fmt.Errorf("session %q not found", callerID)
	}
	if caller.Desk != session.DeskTalking {
		return nil, ErrNotTalking
	}

	n.mu.Lock()
	partnerID, ok := n.partners[callerID]
	if !ok {
		n.mu.Unlock()
		return nil, ErrNotTalking
	}
	delete(n.partners, callerID)
	delete(n.partners, partnerID)
	n.mu.Unlock()

	n.resetAfterTalk(callerID)
	n.resetAfterTalk(partnerID)

	return &EndResult{CallerID: callerID, PartnerID: partnerID}, nil
}

// Partner returns the talking partner of sessionID, if any.
func (n *Negotiator) Partner(sessionID string) (string, bool) {
	n.mu.Lock()
	defer n.mu.Unlock()
	p, ok := n.partners[sessionID]
	return p, ok
}

// PendingCount returns the number of pending requests. Intended for tests.
func (n *Negotiator) PendingCount() int {
	n.mu.Lock()
	defer n.mu.Unlock()
	return len(n.pending)
}

// CleanupSession tears down everything knock-related for a session that is
// disconnecting or leaving the desk room: its active conversation (partner
// reset to available) and every pending request in both directions. This is
// the single shared procedure for both departure paths.
//
// Postcondition: The session holds no partner, no pending requests, and its
// desk status is cleared. The partner, if any, is reset to available.
func (n *Negotiator) CleanupSession(sessionID string) *CleanupResult {
	result := &CleanupResult{}

	n.mu.Lock()
	if partnerID, ok := n.partners[sessionID]; ok {
		delete(n.partners, sessionID)
		delete(n.partners, partnerID)
		result.Ended = &EndResult{CallerID: sessionID, PartnerID: partnerID}
	}
	for key, req := range n.pending {
		switch sessionID {
		case key.sender:
			delete(n.pending, key)
			result.CancelledSent = append(result.CancelledSent, req)
		case key.receiver:
			delete(n.pending, key)
			result.CancelledReceived = append(result.CancelledReceived, req)
		}
	}
	n.mu.Unlock()

	if result.Ended != nil {
		n.resetAfterTalk(result.Ended.PartnerID)
	}
	n.sessions.SetDeskStatus(sessionID, session.DeskNone)
	n.sessions.SetGroupID(sessionID, "")

	return result
}

// SetDeskStatus applies a client-requested desk status change.
//
// Talking can only be entered via the knock protocol, and a talking session
// cannot change status except through EndTalk.
//
// Postcondition: Returns the applied status, or the rejection reason.
func (n *Negotiator) SetDeskStatus(sessionID string, status session.DeskStatus) error {
	if status != session.DeskAvailable && status != session.DeskFocusing {
		return fmt.Errorf("status %q cannot be set directly", status)
	}
	current, ok := n.sessions.Get(sessionID)
	if !ok {
		return fmt.Errorf("session %q not found", sessionID)
	}
	if current.Desk == session.DeskNone {
		return ErrNotAtDesk
	}
	if current.Desk == session.DeskTalking {
		return fmt.Errorf("cannot change status while talking")
	}
	n.sessions.SetDeskStatus(sessionID, status)
	return nil
}

// resetAfterTalk returns a former participant to available with no group id.
// Missing sessions are tolerated: the partner may have disconnected already.
func (n *Negotiator) resetAfterTalk(sessionID string) {
	if v, ok := n.sessions.Get(sessionID); ok && v.Desk == session.DeskTalking {
		n.sessions.SetDeskStatus(sessionID, session.DeskAvailable)
	}
	n.sessions.SetGroupID(sessionID, "")
}
