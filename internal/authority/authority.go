// Package authority decides which meeting actions an identity may perform.
// Every privileged handler, realtime or HTTP, asks Allowed before mutating anything.
package authority

import (
	"github.com/google/uuid"

	"github.com/minimeet/backend/internal/models"
)

// Action is a meeting mutation that needs authority.
type Action int

const (
	ActionLock Action = iota + 1
	ActionApprove
	ActionDeny
	ActionMute
	ActionRemove
	ActionToggleChat
	ActionToggleScreenShare
	ActionWhiteboard
	ActionCreatePoll
	ActionEndPoll
	ActionAnswerQuestion
	ActionCreateBreakout
	ActionViewPending
	ActionViewAttendance

	// host only
	ActionEndMeeting
	ActionSetCoHost
)

var names = map[Action]string{
	ActionLock:              "lock",
	ActionApprove:           "approve",
	ActionDeny:              "deny",
	ActionMute:              "mute",
	ActionRemove:            "remove",
	ActionToggleChat:        "toggle_chat",
	ActionToggleScreenShare: "toggle_screen_share",
	ActionWhiteboard:        "whiteboard",
	ActionCreatePoll:        "create_poll",
	ActionEndPoll:           "end_poll",
	ActionAnswerQuestion:    "answer_question",
	ActionCreateBreakout:    "create_breakout",
	ActionViewPending:       "view_pending",
	ActionViewAttendance:    "view_attendance",
	ActionEndMeeting:        "end_meeting",
	ActionSetCoHost:         "set_co_host",
}

func (a Action) String() string {
	if n, ok := names[a]; ok {
		return n
	}
	return "unknown"
}

// HostOnly reports whether the action is restricted to the host, excluding co-hosts.
func (a Action) HostOnly() bool {
	return a == ActionEndMeeting || a == ActionSetCoHost
}

// IsHost reports whether userID hosts the meeting.
func IsHost(m *models.Meeting, userID uuid.UUID) bool {
	return m != nil && userID != uuid.Nil && m.HostID == userID
}

// IsCoHost reports whether userID is in the meeting's co-host set.
func IsCoHost(m *models.Meeting, userID uuid.UUID) bool {
	if m == nil || userID == uuid.Nil {
		return false
	}
	for _, id := range m.CoHostIDs {
		if id == userID {
			return true
		}
	}
	return false
}

// IsPrivileged is IsHost or IsCoHost.
func IsPrivileged(m *models.Meeting, userID uuid.UUID) bool {
	return IsHost(m, userID) || IsCoHost(m, userID)
}

// IsMember reports whether userID is the host, a co-host or an approved participant.
func IsMember(m *models.Meeting, userID uuid.UUID) bool {
	return IsPrivileged(m, userID) || (m != nil && m.HasParticipant(userID))
}

// Allowed reports whether userID may perform action in m. A nil meeting allows nothing.
func Allowed(m *models.Meeting, userID uuid.UUID, action Action) bool {
	if _, ok := names[action]; !ok {
		return false
	}
	if action.HostOnly() {
		return IsHost(m, userID)
	}
	return IsPrivileged(m, userID)
}
