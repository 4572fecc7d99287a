package roomstate

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSharedStopwatchOverwrite(t *testing.T) {
	m := NewStopwatchManager()

	st := m.SetShared("meeting-a", SharedStopwatch{IsRunning: true, StartedAt: 123})
	assert.True(t, st.IsRunning)

	st = m.SetShared("meeting-a", SharedStopwatch{ElapsedSeconds: 90})
	assert.False(t, st.IsRunning)
	assert.Equal(t, 90, st.ElapsedSeconds)

	got, ok := m.Shared("meeting-a")
	require.True(t, ok)
	assert.Equal(t, st, got)
}

func TestSharedStopwatchMissingRoom(t *testing.T) {
	m := NewStopwatchManager()
	_, ok := m.Shared("nowhere")
	assert.False(t, ok)
}

func TestSetEntryBuildsRoster(t *testing.T) {
	m := NewStopwatchManager()

	roster := m.SetEntry("library", "a", StopwatchEntry{IsRunning: true, StartedAt: 100})
	require.Len(t, roster, 1)

	roster = m.SetEntry("library", "b", StopwatchEntry{ElapsedSeconds: 50})
	require.Len(t, roster, 2)
	assert.Equal(t, 50, roster["b"].ElapsedSeconds)
}

func TestSetEntryZeroValueRemoves(t *testing.T) {
	m := NewStopwatchManager()
	m.SetEntry("library", "a", StopwatchEntry{IsRunning: true, StartedAt: 100})

	roster := m.SetEntry("library", "a", StopwatchEntry{})
	assert.Empty(t, roster)
	assert.Empty(t, m.Roster("library"))
}

func TestRemoveEntry(t *testing.T) {
	m := NewStopwatchManager()
	m.SetEntry("library", "a", StopwatchEntry{ElapsedSeconds: 10})
	m.SetEntry("library", "b", StopwatchEntry{ElapsedSeconds: 20})

	roster, changed := m.RemoveEntry("library", "a")
	require.True(t, changed)
	require.Len(t, roster, 1)
	assert.Equal(t, 20, roster["b"].ElapsedSeconds)

	_, changed = m.RemoveEntry("library", "a")
	assert.False(t, changed, "second removal finds nothing")
	_, changed = m.RemoveEntry("nowhere", "a")
	assert.False(t, changed)
}

func TestRosterIsACopy(t *testing.T) {
	m := NewStopwatchManager()
	m.SetEntry("library", "a", StopwatchEntry{ElapsedSeconds: 10})

	roster := m.Roster("library")
	roster["a"] = StopwatchEntry{ElapsedSeconds: 999}
	roster["b"] = StopwatchEntry{}

	fresh := m.Roster("library")
	require.Len(t, fresh, 1)
	assert.Equal(t, 10, fresh["a"].ElapsedSeconds)
}

func TestDeleteRoomDropsBothShapes(t *testing.T) {
	m := NewStopwatchManager()
	m.SetShared("meeting-a", SharedStopwatch{IsRunning: true, StartedAt: 1})
	m.SetEntry("meeting-a", "a", StopwatchEntry{ElapsedSeconds: 10})

	m.DeleteRoom("meeting-a")

	_, ok := m.Shared("meeting-a")
	assert.False(t, ok)
	assert.Empty(t, m.Roster("meeting-a"))
}
