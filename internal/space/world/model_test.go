package world

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func validCatalog() *Catalog {
	return &Catalog{
		StartRoom: "lobby",
		Rooms: []*Room{
			{ID: "lobby", Name: "Lobby", Type: TypeLobby},
			{ID: "lounge", Name: "Lounge", Type: TypeSocial},
			{ID: "desks", Name: "Desks", Type: TypeDesk},
			{ID: "library", Name: "Library", Type: TypeFocus},
			{ID: "meeting-a", Name: "Meeting A", Type: TypeMeeting},
			{ID: "meeting-b", Name: "Meeting B", Type: TypeMeeting},
		},
	}
}

func TestValidCatalog(t *testing.T) {
	assert.NoError(t, validCatalog().Validate())
}

func TestValidateDuplicateRoomID(t *testing.T) {
	c := validCatalog()
	c.Rooms = append(c.Rooms, &Room{ID: "lobby", Type: TypeLobby})
	err := c.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "duplicate")
}

func TestValidateUnknownRoomType(t *testing.T) {
	c := validCatalog()
	c.Rooms[0].Type = "arena"
	assert.Error(t, c.Validate())
}

func TestValidateStartRoom(t *testing.T) {
	c := validCatalog()
	c.StartRoom = ""
	assert.Error(t, c.Validate())

	c = validCatalog()
	c.StartRoom = "nowhere"
	assert.Error(t, c.Validate())
}

func TestValidateExactlyOneSocialRoom(t *testing.T) {
	c := validCatalog()
	c.Rooms[1].Type = TypeLobby
	assert.Error(t, c.Validate(), "zero social rooms rejected")

	c = validCatalog()
	c.Rooms = append(c.Rooms, &Room{ID: "lounge2", Type: TypeSocial})
	assert.Error(t, c.Validate(), "two social rooms rejected")
}

func TestValidateAtMostOneDeskAndFocus(t *testing.T) {
	c := validCatalog()
	c.Rooms = append(c.Rooms, &Room{ID: "desks2", Type: TypeDesk})
	assert.Error(t, c.Validate())

	c = validCatalog()
	c.Rooms = append(c.Rooms, &Room{ID: "library2", Type: TypeFocus})
	assert.Error(t, c.Validate())
}

func TestValidateCollectsAllViolations(t *testing.T) {
	c := &Catalog{
		StartRoom: "nowhere",
		Rooms: []*Room{
			{ID: "a", Type: "bogus"},
			{ID: "a", Type: TypeLobby},
		},
	}
	err := c.Validate()
	require.Error(t, err)
	// Multiple violations are joined into one message.
	assert.GreaterOrEqual(t, strings.Count(err.Error(), ";"), 2)
}

func TestRoomTypeValid(t *testing.T) {
	for _, rt := range []RoomType{TypeLobby, TypeSocial, TypeDesk, TypeFocus, TypeMeeting} {
		assert.True(t, rt.Valid(), "type %q should be valid", rt)
	}
	assert.False(t, RoomType("arena").Valid())
	assert.False(t, RoomType("").Valid())
}
