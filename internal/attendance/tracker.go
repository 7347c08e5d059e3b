package attendance

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/minimeet/backend/internal/models"
)

// Participants records durable meeting membership.
type Participants interface {
	AddParticipant(ctx context.Context, meetingID, userID uuid.UUID) error
	MarkParticipantLeft(ctx context.Context, meetingID, userID uuid.UUID) error
}

// Log stores join and leave spans.
type Log interface {
	LogJoin(ctx context.Context, meetingID, userID uuid.UUID) error
	LogLeave(ctx context.Context, meetingID, userID uuid.UUID) error
}

// Tracker turns realtime presence changes into participant rows and attendance spans.
// OnJoin and OnLeave match the hub's presence hook signature.
type Tracker struct {
	participants Participants
	log          Log
	logger       *zap.Logger
}

// NewTracker creates a presence tracker.
func NewTracker(participants Participants, log Log, logger *zap.Logger) *Tracker {
	return &Tracker{participants: participants, log: log, logger: logger}
}

// OnJoin runs when an identity's first connection is admitted to a meeting.
func (t *Tracker) OnJoin(ctx context.Context, meetingID uuid.UUID, user models.Identity) error {
	if err := t.participants.AddParticipant(ctx, meetingID, user.ID); err != nil {
		return fmt.Errorf("add participant: %w", err)
	}
	if err := t.log.LogJoin(ctx, meetingID, user.ID); err != nil {
		return fmt.Errorf("log join: %w", err)
	}
	t.logger.Debug("attendance opened", zap.String("meeting_id", meetingID.String()), zap.String("user_id", user.ID.String()))
	return nil
}

// OnLeave runs when an identity's last connection leaves a meeting. Both
// writes are attempted even if the first fails.
func (t *Tracker) OnLeave(ctx context.Context, meetingID uuid.UUID, user models.Identity) error {
	var errs []error
	if err := t.participants.MarkParticipantLeft(ctx, meetingID, user.ID); err != nil && !errors.Is(err, models.ErrNotFound) {
		errs = append(errs, fmt.Errorf("mark participant left: %w", err))
	}
	if err := t.log.LogLeave(ctx, meetingID, user.ID); err != nil {
		errs = append(errs, fmt.Errorf("log leave: %w", err))
	}
	return errors.Join(errs...)
}
