package meetings

import (
	"net/http"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/minimeet/backend/internal/models"
	"github.com/minimeet/backend/internal/realtime"
)

func TestCreateBreakoutRooms(t *testing.T) {
	host := uuid.New()
	m := newMeeting(host)
	env := newTestEnv(m)
	path := "/meetings/" + m.ID.String() + "/breakout"

	for _, n := range []int{1, 21} {
		status, _ := env.do(t, http.MethodPost, path, host, map[string]int{"num_rooms": n})
		assert.Equal(t, http.StatusBadRequest, status, "num_rooms=%d", n)
	}
	status, _ := env.do(t, http.MethodPost, path, uuid.New(), map[string]int{"num_rooms": 3})
	assert.Equal(t, http.StatusForbidden, status)

	status, body := env.do(t, http.MethodPost, path, host, map[string]int{"num_rooms": 3})
	require.Equal(t, http.StatusCreated, status)
	rooms := body["data"].(map[string]interface{})["rooms"].([]interface{})
	require.Len(t, rooms, 3)
	assert.Equal(t, m.ID.String()+"-breakout-1", rooms[0].(map[string]interface{})["id"])
	assert.Equal(t, "Room 3", rooms[2].(map[string]interface{})["name"])
	assert.Equal(t, []string{realtime.EventBreakoutCreated}, env.hub.events())
}

func TestJoinAndLeaveBreakout(t *testing.T) {
	host, member := uuid.New(), uuid.New()
	m := newMeeting(host)
	m.Participants = []models.MeetingParticipant{{UserID: member}}
	env := newTestEnv(m)
	base := "/meetings/" + m.ID.String() + "/breakout/"

	status, _ := env.do(t, http.MethodPost, base+m.ID.String()+"-breakout-2/join", uuid.New(), nil)
	assert.Equal(t, http.StatusForbidden, status)

	status, _ = env.do(t, http.MethodPost, base+"other-breakout-2/join", member, nil)
	assert.Equal(t, http.StatusBadRequest, status)

	status, _ = env.do(t, http.MethodPost, base+m.ID.String()+"-breakout-2/join", member, nil)
	assert.Equal(t, http.StatusOK, status)

	status, _ = env.do(t, http.MethodPost, base+"leave", member, nil)
	assert.Equal(t, http.StatusOK, status)
	assert.Equal(t, []string{realtime.EventUserJoinedBreakout, realtime.EventUserLeftBreakout}, env.hub.events())
}

func TestValidBreakoutRoom(t *testing.T) {
	id := uuid.New()
	assert.True(t, validBreakoutRoom(id, breakoutRoomID(id, 20)))
	assert.False(t, validBreakoutRoom(id, breakoutRoomID(id, 21)))
	assert.False(t, validBreakoutRoom(id, id.String()+"-breakout-01"))
	assert.False(t, validBreakoutRoom(uuid.New(), breakoutRoomID(id, 1)))
}
