package models

import (
	"time"

	"github.com/google/uuid"
)

// MeetingSettings holds the feature toggles a host can flip during a meeting.
type MeetingSettings struct {
	ChatEnabled        bool `json:"chat_enabled"`
	ScreenShareEnabled bool `json:"screen_share_enabled"`
}

// MeetingParticipant is an approved participant of a meeting.
type MeetingParticipant struct {
	UserID   uuid.UUID  `json:"user_id"`
	JoinedAt time.Time  `json:"joined_at"`
	LeftAt   *time.Time `json:"left_at,omitempty"`
}

// Meeting is the durable meeting record.
type Meeting struct {
	ID               uuid.UUID            `json:"id"`
	Title            string               `json:"title"`
	Description      string               `json:"description"`
	Code             string               `json:"code"`
	Link             string               `json:"link"`
	HostID           uuid.UUID            `json:"host_id"`
	CoHostIDs        []uuid.UUID          `json:"co_host_ids"`
	Participants     []MeetingParticipant `json:"participants"`
	RequiresApproval bool                 `json:"requires_approval"`
	IsLocked         bool                 `json:"is_locked"`
	IsActive         bool                 `json:"is_active"`
	Settings         MeetingSettings      `json:"settings"`
	EndedAt          *time.Time           `json:"ended_at,omitempty"`
	CreatedAt        time.Time            `json:"created_at"`
	UpdatedAt        time.Time            `json:"updated_at"`
}

// HasParticipant reports whether userID is an approved participant.
func (m *Meeting) HasParticipant(userID uuid.UUID) bool {
	for _, p := range m.Participants {
		if p.UserID == userID {
			return true
		}
	}
	return false
}

// Participant returns the participant entry for userID.
func (m *Meeting) Participant(userID uuid.UUID) (MeetingParticipant, bool) {
	for _, p := range m.Participants {
		if p.UserID == userID {
			return p, true
		}
	}
	return MeetingParticipant{}, false
}
