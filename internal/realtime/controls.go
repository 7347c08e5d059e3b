package realtime

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"github.com/minimeet/backend/internal/authority"
	"github.com/minimeet/backend/internal/models"
)

type meetingEvent struct {
	MeetingID uuid.UUID `json:"meeting_id"`
}

// authorize loads the meeting and checks action for the connection's identity.
func (h *Hub) authorize(ctx context.Context, meetingID uuid.UUID, c *Client, action authority.Action) (*models.Meeting, error) {
	m, err := h.meetings.GetByID(ctx, meetingID)
	if err != nil {
		return nil, fmt.Errorf("load meeting %s: %w", meetingID, err)
	}
	if !authority.Allowed(m, c.User.ID, action) {
		return nil, fmt.Errorf("%w: %s", ErrUnauthorized, action)
	}
	return m, nil
}

func (h *Hub) targetAction(ctx context.Context, meetingID uuid.UUID, c *Client, m *targetAction) error {
	if m.TargetUserID == uuid.Nil {
		return fmt.Errorf("%w: %s without target_user_id", ErrMalformed, m.Kind)
	}
	switch m.Kind {
	case EventMuteUser:
		if _, err := h.authorize(ctx, meetingID, c, authority.ActionMute); err != nil {
			return err
		}
		h.publish(meetingID, EventUserMuted, userEvent{UserID: m.TargetUserID}, "")
	case EventRemoveParticipant:
		if _, err := h.authorize(ctx, meetingID, c, authority.ActionRemove); err != nil {
			return err
		}
		if err := h.meetings.MarkParticipantLeft(ctx, meetingID, m.TargetUserID); err != nil {
			return fmt.Errorf("remove participant: %w", err)
		}
		h.publish(meetingID, EventParticipantRemoved, userEvent{UserID: m.TargetUserID}, "")
	case EventSetCoHost:
		return h.toggleCoHost(ctx, meetingID, c, m.TargetUserID)
	case EventSpotlightUser:
		h.publish(meetingID, EventUserSpotlighted, userEvent{UserID: m.TargetUserID}, "")
	}
	return nil
}

// toggleCoHost grants or revokes co-host status and refreshes the target's live connections.
func (h *Hub) toggleCoHost(ctx context.Context, meetingID uuid.UUID, c *Client, target uuid.UUID) error {
	meeting, err := h.authorize(ctx, meetingID, c, authority.ActionSetCoHost)
	if err != nil {
		return err
	}
	if authority.IsHost(meeting, target) {
		return fmt.Errorf("%w: host cannot be a co-host", ErrMalformed)
	}
	added, err := h.meetings.ToggleCoHost(ctx, meetingID, target)
	if err != nil {
		return fmt.Errorf("toggle co-host: %w", err)
	}
	for _, tc := range h.registry.ClientsOf(meetingID, target) {
		tc.setModerator(added)
	}
	event := EventCoHostRemoved
	if added {
		event = EventCoHostAdded
	}
	h.publish(meetingID, event, userEvent{UserID: target}, "")
	return nil
}

func (h *Hub) roomToggle(ctx context.Context, meetingID uuid.UUID, c *Client, m *roomToggle) error {
	var (
		action  authority.Action
		enabled bool
		event   string
		persist func(context.Context, uuid.UUID, bool) error
	)
	switch m.Kind {
	case EventDisableChat, EventEnableChat:
		action, persist = authority.ActionToggleChat, h.meetings.SetChatEnabled
		enabled = m.Kind == EventEnableChat
		event = EventChatDisabled
		if enabled {
			event = EventChatEnabled
		}
	default:
		action, persist = authority.ActionToggleScreenShare, h.meetings.SetScreenShareEnabled
		enabled = m.Kind == EventEnableScreenShare
		event = EventScreenShareDisabled
		if enabled {
			event = EventScreenShareEnabled
		}
	}
	if _, err := h.authorize(ctx, meetingID, c, action); err != nil {
		return err
	}
	if err := persist(ctx, meetingID, enabled); err != nil {
		return fmt.Errorf("%s: %w", m.Kind, err)
	}
	h.publish(meetingID, event, meetingEvent{MeetingID: meetingID}, "")
	return nil
}

func (h *Hub) getParticipants(ctx context.Context, meetingID uuid.UUID, c *Client) error {
	m, err := h.meetings.GetByID(ctx, meetingID)
	if err != nil {
		return fmt.Errorf("load meeting %s: %w", meetingID, err)
	}
	c.sendEvent(EventParticipantsList, participantsList{Participants: h.roster(m, meetingID, "")})
	return nil
}

func (h *Hub) getPendingParticipants(ctx context.Context, meetingID uuid.UUID, c *Client) error {
	if _, err := h.authorize(ctx, meetingID, c, authority.ActionViewPending); err != nil {
		return err
	}
	c.sendEvent(EventPendingParticipantsList, pendingList{PendingParticipants: h.PendingList(meetingID)})
	return nil
}
