package roomstate

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEnterFirstEntrantBecomesHost(t *testing.T) {
	m := NewLecternManager()

	st := m.Enter("meeting-a", "a")
	assert.Equal(t, "a", st.HostID)
	assert.Equal(t, []string{"a"}, st.Speakers)

	st = m.Enter("meeting-a", "b")
	assert.Equal(t, "a", st.HostID)
	assert.Equal(t, []string{"a", "b"}, st.Speakers)
}

func TestEnterIsIdempotent(t *testing.T) {
	m := NewLecternManager()
	m.Enter("meeting-a", "a")
	st := m.Enter("meeting-a", "a")
	assert.Equal(t, []string{"a"}, st.Speakers)
}

func TestLeavePromotesNextHost(t *testing.T) {
	m := NewLecternManager()
	m.Enter("meeting-a", "a")
	m.Enter("meeting-a", "b")
	m.Enter("meeting-a", "c")

	st, deleted := m.Leave("meeting-a", "a")
	require.False(t, deleted)
	assert.Equal(t, "b", st.HostID)
	assert.Equal(t, []string{"b", "c"}, st.Speakers)
}

func TestLeaveLastSpeakerDeletesState(t *testing.T) {
	m := NewLecternManager()
	m.Enter("meeting-a", "a")

	_, deleted := m.Leave("meeting-a", "a")
	assert.True(t, deleted)
	_, ok := m.Get("meeting-a")
	assert.False(t, ok)
}

func TestLeaveUnknownRoom(t *testing.T) {
	m := NewLecternManager()
	_, deleted := m.Leave("nowhere", "a")
	assert.False(t, deleted)
}

func TestMuteAllHostGated(t *testing.T) {
	m := NewLecternManager()
	m.Enter("meeting-a", "a")
	m.Enter("meeting-a", "b")
	m.Enter("meeting-a", "c")

	others, err := m.MuteAll("meeting-a", "a")
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"b", "c"}, others)

	_, err = m.MuteAll("meeting-a", "b")
	assert.ErrorIs(t, err, ErrNotHost)
}

func TestCreateBreakoutRandomDistributesEvenly(t *testing.T) {
	m := NewLecternManager()
	m.Enter("meeting-a", "host")

	users := make([]string, 9)
	for i := range users {
		users[i] = fmt.Sprintf("u%d", i)
	}

	st, err := m.CreateBreakout("meeting-a", "host", BreakoutRandom, users, 3)
	require.NoError(t, err)
	require.NotNil(t, st.Breakout)
	require.Len(t, st.Breakout.RoomOrder, 3)

	total := 0
	for _, sub := range st.Breakout.RoomOrder {
		members := st.Breakout.Members[sub]
		assert.Len(t, members, 3, "9 users over 3 rooms distribute evenly")
		total += len(members)
	}
	assert.Equal(t, 9, total)
}

func TestCreateBreakoutManualStartsEmpty(t *testing.T) {
	m := NewLecternManager()
	m.Enter("meeting-a", "host")

	st, err := m.CreateBreakout("meeting-a", "host", BreakoutManual, nil, 2)
	require.NoError(t, err)
	require.Len(t, st.Breakout.RoomOrder, 2)
	for _, sub := range st.Breakout.RoomOrder {
		assert.Empty(t, st.Breakout.Members[sub])
	}
}

func TestCreateBreakoutValidation(t *testing.T) {
	m := NewLecternManager()
	m.Enter("meeting-a", "host")

	_, err := m.CreateBreakout("meeting-a", "host", BreakoutRandom, nil, 0)
	assert.Error(t, err)

	_, err = m.CreateBreakout("meeting-a", "host", BreakoutMode("chaos"), nil, 2)
	assert.Error(t, err)

	_, err = m.CreateBreakout("meeting-a", "guest", BreakoutRandom, nil, 2)
	assert.ErrorIs(t, err, ErrNotHost)

	_, err = m.CreateBreakout("nowhere", "host", BreakoutRandom, nil, 2)
	assert.Error(t, err)
}

func TestJoinBreakoutMovesBetweenSubRooms(t *testing.T) {
	m := NewLecternManager()
	m.Enter("meeting-a", "host")
	st, err := m.CreateBreakout("meeting-a", "host", BreakoutManual, nil, 2)
	require.NoError(t, err)
	first, second := st.Breakout.RoomOrder[0], st.Breakout.RoomOrder[1]

	st, err = m.JoinBreakout("meeting-a", first, "u1")
	require.NoError(t, err)
	assert.Equal(t, []string{"u1"}, st.Breakout.Members[first])

	// Joining the other sub-room removes membership in the first.
	st, err = m.JoinBreakout("meeting-a", second, "u1")
	require.NoError(t, err)
	assert.Empty(t, st.Breakout.Members[first])
	assert.Equal(t, []string{"u1"}, st.Breakout.Members[second])

	_, err = m.JoinBreakout("meeting-a", "bogus", "u1")
	assert.Error(t, err)
}

func TestLeaveBreakout(t *testing.T) {
	m := NewLecternManager()
	m.Enter("meeting-a", "host")
	st, err := m.CreateBreakout("meeting-a", "host", BreakoutManual, nil, 1)
	require.NoError(t, err)
	sub := st.Breakout.RoomOrder[0]

	_, err = m.JoinBreakout("meeting-a", sub, "u1")
	require.NoError(t, err)

	st, err = m.LeaveBreakout("meeting-a", "u1")
	require.NoError(t, err)
	assert.Empty(t, st.Breakout.Members[sub])
}

func TestEndBreakoutHostGated(t *testing.T) {
	m := NewLecternManager()
	m.Enter("meeting-a", "host")
	_, err := m.CreateBreakout("meeting-a", "host", BreakoutManual, nil, 2)
	require.NoError(t, err)

	_, err = m.EndBreakout("meeting-a", "guest")
	assert.ErrorIs(t, err, ErrNotHost)

	st, err := m.EndBreakout("meeting-a", "host")
	require.NoError(t, err)
	assert.Nil(t, st.Breakout)
}

func TestLeaveRemovesBreakoutMembership(t *testing.T) {
	m := NewLecternManager()
	m.Enter("meeting-a", "host")
	m.Enter("meeting-a", "u1")
	st, err := m.CreateBreakout("meeting-a", "host", BreakoutManual, nil, 1)
	require.NoError(t, err)
	sub := st.Breakout.RoomOrder[0]
	_, err = m.JoinBreakout("meeting-a", sub, "u1")
	require.NoError(t, err)

	st, deleted := m.Leave("meeting-a", "u1")
	require.False(t, deleted)
	assert.Empty(t, st.Breakout.Members[sub])
}

func TestGetReturnsDeepCopy(t *testing.T) {
	m := NewLecternManager()
	m.Enter("meeting-a", "a")
	m.Enter("meeting-a", "b")

	st, ok := m.Get("meeting-a")
	require.True(t, ok)
	st.Speakers[0] = "tampered"

	fresh, _ := m.Get("meeting-a")
	assert.Equal(t, []string{"a", "b"}, fresh.Speakers)
}

func TestDelete(t *testing.T) {
	m := NewLecternManager()
	m.Enter("meeting-a", "a")
	m.Delete("meeting-a")
	_, ok := m.Get("meeting-a")
	assert.False(t, ok)
}
