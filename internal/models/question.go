package models

import (
	"time"

	"github.com/google/uuid"
)

const (
	MaxQuestionLength = 1000
	MaxAnswerLength   = 2000
)

// Question is a Q&A entry asked during a meeting.
type Question struct {
	ID         uuid.UUID  `json:"id"`
	MeetingID  uuid.UUID  `json:"meeting_id"`
	User       Identity   `json:"user"`
	Text       string     `json:"question"`
	Answer     *string    `json:"answer,omitempty"`
	AnsweredBy *uuid.UUID `json:"answered_by,omitempty"`
	AnsweredAt *time.Time `json:"answered_at,omitempty"`
	IsAnswered bool       `json:"is_answered"`
	Upvotes    int        `json:"upvotes"`
	CreatedAt  time.Time  `json:"created_at"`
}
