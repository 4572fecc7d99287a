package proximity

import (
	"sync"

	"github.com/google/uuid"
)

// DefaultExpireTicks is the number of consecutive ticks a session may spend
// outside any group (or a signature may spend unreferenced) before its
// contact state is cleared.
const DefaultExpireTicks = 3

// contactState makes the hysteresis expiry invariant explicit: a record is
// either unassigned, actively grouped, or provisionally retained while its
// outside-group counter runs.
type contactState int

const (
	stateNone contactState = iota
	stateActive
	stateProvisional
)

// contactRecord is the per-session hysteresis state.
type contactRecord struct {
	contactID string
	signature string
	state     contactState
	ticksOut  int
}

// groupContact is the per-signature identifier with its inactivity counter.
type groupContact struct {
	id            string
	ticksInactive int
}

// Tracker assigns stable group contact ids that survive brief graph flicker
// and expire only after sustained absence. Safe for concurrent use.
//
// Invariant: two sessions carrying the same signature always resolve to the
// same contact id while neither expiry counter has run out.
type Tracker struct {
	mu          sync.Mutex
	records     map[string]*contactRecord // sessionID → record
	groups      map[string]*groupContact  // signature → contact
	expireTicks int
}

// NewTracker creates a Tracker with the given expiry threshold.
//
// Precondition: expireTicks must be > 0 (use DefaultExpireTicks).
func NewTracker(expireTicks int) *Tracker {
	if expireTicks <= 0 {
		expireTicks = DefaultExpireTicks
	}
	return &Tracker{
		records:     make(map[string]*contactRecord),
		groups:      make(map[string]*groupContact),
		expireTicks: expireTicks,
	}
}

// JoinGroup records that sessionID is a member of the group with the given
// signature this tick.
//
// Postcondition: Returns (contactID, true) when the session's contact id
// changed and should be broadcast, or (contactID, false) when the session
// already carried this exact (signature, contact id) pair.
func (t *Tracker) JoinGroup(sessionID, signature string) (string, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()

	gc, ok := t.groups[signature]
	if !ok {
		gc = &groupContact{id: uuid.NewString()}
		t.groups[signature] = gc
	}
	gc.ticksInactive = 0

	rec, ok := t.records[sessionID]
	if !ok {
		rec = &contactRecord{}
		t.records[sessionID] = rec
	}

	changed := rec.state == stateNone || rec.signature != signature || rec.contactID != gc.id
	rec.contactID = gc.id
	rec.signature = signature
	rec.state = stateActive
	rec.ticksOut = 0

	return gc.id, changed
}

// LeaveGroup records that sessionID was outside every group this tick.
//
// The session's membership is provisionally retained for expireTicks-1 ticks
// to absorb one-tick position jitter; on the expireTicks-th consecutive tick
// outside any group the contact id is cleared.
//
// Postcondition: Returns true when the contact id was cleared and the caller
// should broadcast the removal; false on the no-change grace ticks.
func (t *Tracker) LeaveGroup(sessionID string) bool {
	t.mu.Lock()
	defer t.mu.Unlock()

	rec, ok := t.records[sessionID]
	if !ok || rec.state == stateNone {
		return false
	}

	rec.state = stateProvisional
	rec.ticksOut++
	if rec.ticksOut < t.expireTicks {
		return false
	}

	rec.contactID = ""
	rec.signature = ""
	rec.state = stateNone
	rec.ticksOut = 0
	return true
}

// PruneInactive ages every signature that is absent from the active set and
// deletes those that have been absent for expireTicks consecutive ticks,
// freeing their contact id for reuse by a future unrelated group.
//
// Precondition: active must contain every signature present this tick.
func (t *Tracker) PruneInactive(active map[string]bool) {
	t.mu.Lock()
	defer t.mu.Unlock()

	for sig, gc := range t.groups {
		if active[sig] {
			continue
		}
		gc.ticksInactive++
		if gc.ticksInactive >= t.expireTicks {
			delete(t.groups, sig)
		}
	}
}

// Clear removes all tracker state for sessionID immediately, bypassing the
// grace period. Used on disconnect and on explicit room exit.
//
// Postcondition: Returns true if the session carried a contact id.
func (t *Tracker) Clear(sessionID string) bool {
	t.mu.Lock()
	defer t.mu.Unlock()

	rec, ok := t.records[sessionID]
	if !ok {
		return false
	}
	delete(t.records, sessionID)
	return rec.state != stateNone
}

// ContactID returns the session's current contact id.
//
// Postcondition: Returns (id, true) while the record is active or
// provisional, or ("", false) otherwise.
func (t *Tracker) ContactID(sessionID string) (string, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()

	rec, ok := t.records[sessionID]
	if !ok || rec.state == stateNone {
		return "", false
	}
	return rec.contactID, true
}
