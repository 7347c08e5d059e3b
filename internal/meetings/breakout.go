package meetings

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/minimeet/backend/internal/authority"
	"github.com/minimeet/backend/internal/middleware"
	"github.com/minimeet/backend/internal/realtime"
	"github.com/minimeet/backend/pkg/response"
)

const (
	minBreakoutRooms = 2
	maxBreakoutRooms = 20
)

// BreakoutRoom is a sub-room announced to the meeting. Rooms are not persisted;
// clients move between them with the breakout join and leave endpoints.
type BreakoutRoom struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// BreakoutRequest is the body for POST /meetings/:id/breakout.
type BreakoutRequest struct {
	NumRooms int `json:"num_rooms" binding:"required"`
}

type breakoutCreated struct {
	MeetingID uuid.UUID      `json:"meeting_id"`
	Rooms     []BreakoutRoom `json:"rooms"`
	CreatedBy uuid.UUID      `json:"created_by"`
}

type breakoutMove struct {
	UserID uuid.UUID `json:"user_id"`
	RoomID string    `json:"room_id,omitempty"`
}

func breakoutRoomID(meetingID uuid.UUID, n int) string {
	return fmt.Sprintf("%s-breakout-%d", meetingID, n)
}

// validBreakoutRoom reports whether roomID names a breakout room of the meeting.
func validBreakoutRoom(meetingID uuid.UUID, roomID string) bool {
	suffix, ok := strings.CutPrefix(roomID, meetingID.String()+"-breakout-")
	if !ok {
		return false
	}
	n, err := strconv.Atoi(suffix)
	return err == nil && n >= 1 && n <= maxBreakoutRooms && strconv.Itoa(n) == suffix
}

// CreateBreakout handles POST /meetings/:id/breakout.
func (h *Handler) CreateBreakout(c *gin.Context) {
	m, ok := h.authorize(c, authority.ActionCreateBreakout)
	if !ok {
		return
	}
	var req BreakoutRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "invalid request: "+err.Error())
		return
	}
	if req.NumRooms < minBreakoutRooms || req.NumRooms > maxBreakoutRooms {
		response.BadRequest(c, fmt.Sprintf("number of rooms must be between %d and %d", minBreakoutRooms, maxBreakoutRooms))
		return
	}
	rooms := make([]BreakoutRoom, req.NumRooms)
	for i := range rooms {
		rooms[i] = BreakoutRoom{ID: breakoutRoomID(m.ID, i+1), Name: fmt.Sprintf("Room %d", i+1)}
	}
	userID := c.MustGet(middleware.ContextUserID).(uuid.UUID)
	h.hub.PublishToRoom(m.ID, realtime.EventBreakoutCreated, breakoutCreated{MeetingID: m.ID, Rooms: rooms, CreatedBy: userID})
	response.Created(c, gin.H{"rooms": rooms})
}

// JoinBreakout handles POST /meetings/:id/breakout/:roomId/join.
func (h *Handler) JoinBreakout(c *gin.Context) {
	m, ok := h.load(c)
	if !ok {
		return
	}
	userID := c.MustGet(middleware.ContextUserID).(uuid.UUID)
	if !authority.IsMember(m, userID) {
		response.Forbidden(c, "not a participant of this meeting")
		return
	}
	roomID := c.Param("roomId")
	if !validBreakoutRoom(m.ID, roomID) {
		response.BadRequest(c, "invalid breakout room")
		return
	}
	h.hub.PublishToRoom(m.ID, realtime.EventUserJoinedBreakout, breakoutMove{UserID: userID, RoomID: roomID})
	response.OK(c, gin.H{"room_id": roomID})
}

// LeaveBreakout handles POST /meetings/:id/breakout/leave: back to the main room.
func (h *Handler) LeaveBreakout(c *gin.Context) {
	m, ok := h.load(c)
	if !ok {
		return
	}
	userID := c.MustGet(middleware.ContextUserID).(uuid.UUID)
	if !authority.IsMember(m, userID) {
		response.Forbidden(c, "not a participant of this meeting")
		return
	}
	h.hub.PublishToRoom(m.ID, realtime.EventUserLeftBreakout, breakoutMove{UserID: userID})
	response.OK(c, gin.H{"message": "left breakout room"})
}
