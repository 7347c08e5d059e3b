package models

import (
	"time"

	"github.com/google/uuid"
)

// Chat message types.
const (
	ChatTypeText   = "text"
	ChatTypeSystem = "system"
)

// ChatMessage is a persisted in-meeting chat message.
type ChatMessage struct {
	ID        uuid.UUID `json:"id"`
	MeetingID uuid.UUID `json:"meeting_id"`
	User      Identity  `json:"user"`
	Message   string    `json:"message"`
	Type      string    `json:"type"`
	CreatedAt time.Time `json:"created_at"`
}
