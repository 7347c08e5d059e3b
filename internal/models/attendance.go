package models

import (
	"time"

	"github.com/google/uuid"
)

// Attendance tracks one join/leave span of a user in a meeting.
type Attendance struct {
	ID              uuid.UUID  `json:"id"`
	MeetingID       uuid.UUID  `json:"meeting_id"`
	UserID          uuid.UUID  `json:"user_id"`
	UserName        string     `json:"user_name,omitempty"`
	JoinedAt        time.Time  `json:"joined_at"`
	LeftAt          *time.Time `json:"left_at,omitempty"`
	DurationSeconds int64      `json:"duration_seconds"`
}
