package realtime

import (
	"context"

	"github.com/google/uuid"

	"github.com/minimeet/backend/internal/models"
)

// MeetingStore is the durable meeting record the hub reads authority from and writes host controls to.
type MeetingStore interface {
	GetByID(ctx context.Context, id uuid.UUID) (*models.Meeting, error)
	MarkParticipantLeft(ctx context.Context, meetingID, userID uuid.UUID) error
	ToggleCoHost(ctx context.Context, meetingID, userID uuid.UUID) (added bool, err error)
	SetChatEnabled(ctx context.Context, meetingID uuid.UUID, enabled bool) error
	SetScreenShareEnabled(ctx context.Context, meetingID uuid.UUID, enabled bool) error
}

// ChatStore persists chat messages. Create fills in the id and timestamps.
type ChatStore interface {
	Create(ctx context.Context, m *models.ChatMessage) error
}

// PresenceHook runs after an identity's first connection joins a meeting, or after its last one leaves.
type PresenceHook func(ctx context.Context, meetingID uuid.UUID, user models.Identity) error
