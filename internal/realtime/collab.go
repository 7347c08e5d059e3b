package realtime

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"

	"github.com/minimeet/backend/internal/authority"
	"github.com/minimeet/backend/internal/models"
)

func (h *Hub) mediaToggled(meetingID uuid.UUID, c *Client, m *mediaToggle) error {
	event := EventCameraToggled
	if m.Kind == EventToggleMicrophone {
		event = EventMicrophoneToggled
	}
	h.publish(meetingID, event, toggledEvent{UserID: c.User.ID, Enabled: m.Enabled}, "")
	return nil
}

// screenShare blocks non-privileged senders while sharing is disabled for the meeting.
func (h *Hub) screenShare(ctx context.Context, meetingID uuid.UUID, c *Client, m *screenShare) error {
	if m.Kind == EventStopScreenShare {
		h.publish(meetingID, EventScreenShareStopped, screenShareEvent{UserID: c.User.ID}, "")
		return nil
	}
	meeting, err := h.meetings.GetByID(ctx, meetingID)
	if err != nil {
		return fmt.Errorf("load meeting %s: %w", meetingID, err)
	}
	if !meeting.Settings.ScreenShareEnabled && !authority.IsPrivileged(meeting, c.User.ID) {
		return fmt.Errorf("%w: screen share disabled", ErrUnauthorized)
	}
	h.publish(meetingID, EventScreenShareStarted, screenShareEvent{UserID: c.User.ID, StreamID: m.StreamID}, "")
	return nil
}

// chatMessage persists first and broadcasts the stored message.
func (h *Hub) chatMessage(ctx context.Context, meetingID uuid.UUID, c *Client, m *chatMessage) error {
	text := strings.TrimSpace(m.Message)
	if text == "" {
		return fmt.Errorf("%w: empty chat message", ErrMalformed)
	}
	meeting, err := h.meetings.GetByID(ctx, meetingID)
	if err != nil {
		return fmt.Errorf("load meeting %s: %w", meetingID, err)
	}
	if !meeting.Settings.ChatEnabled && !authority.IsPrivileged(meeting, c.User.ID) {
		return fmt.Errorf("%w: chat disabled", ErrUnauthorized)
	}
	msgType := m.Type
	if msgType == "" {
		msgType = models.ChatTypeText
	}
	msg := &models.ChatMessage{MeetingID: meetingID, User: c.User, Message: text, Type: msgType}
	if err := h.chat.Create(ctx, msg); err != nil {
		return fmt.Errorf("persist chat message: %w", err)
	}
	h.publish(meetingID, EventChatMessage, msg, "")
	return nil
}

func (h *Hub) handSignal(meetingID uuid.UUID, c *Client, m *handSignal) error {
	event := EventHandRaised
	if m.Kind == EventLowerHand {
		event = EventHandLowered
	}
	h.publish(meetingID, event, userEvent{UserID: c.User.ID}, "")
	return nil
}

func (h *Hub) emojiReaction(meetingID uuid.UUID, c *Client, m *emojiReaction) error {
	if m.Emoji == "" {
		return fmt.Errorf("%w: empty emoji", ErrMalformed)
	}
	h.publish(meetingID, EventEmojiReaction, reactionEvent{UserID: c.User.ID, Emoji: m.Emoji}, "")
	return nil
}

func (h *Hub) captionText(meetingID uuid.UUID, c *Client, m *captionText) error {
	if strings.TrimSpace(m.Text) == "" {
		return fmt.Errorf("%w: empty caption", ErrMalformed)
	}
	h.publish(meetingID, EventCaptionText, captionEvent{
		UserID:    c.User.ID,
		Name:      c.User.Name,
		Text:      m.Text,
		Timestamp: m.Timestamp,
	}, "")
	return nil
}

func (h *Hub) whiteboardToggle(meetingID uuid.UUID, c *Client, m *whiteboardToggle) error {
	if !c.CanModerate() {
		return fmt.Errorf("%w: %s", ErrUnauthorized, EventWhiteboardToggle)
	}
	b := h.board(meetingID)
	b.Toggle(m.Active)
	h.publish(meetingID, EventWhiteboardToggle, whiteboardToggled{Active: m.Active}, "")
	if m.Active {
		h.publish(meetingID, EventWhiteboardState, b.Snapshot(), "")
	}
	return nil
}

// whiteboardDraw is the one relay that skips the sender, who already rendered the stroke.
func (h *Hub) whiteboardDraw(meetingID uuid.UUID, c *Client, m *whiteboardDraw) error {
	if !c.CanModerate() {
		return fmt.Errorf("%w: %s", ErrUnauthorized, EventWhiteboardDraw)
	}
	if m.Stroke == nil {
		return fmt.Errorf("%w: draw without stroke", ErrMalformed)
	}
	s := h.board(meetingID).Draw(*m.Stroke)
	h.publish(meetingID, EventWhiteboardDraw, strokeEvent{Stroke: s}, c.ID)
	return nil
}

func (h *Hub) whiteboardClear(meetingID uuid.UUID, c *Client) error {
	if !c.CanModerate() {
		return fmt.Errorf("%w: %s", ErrUnauthorized, EventWhiteboardClear)
	}
	h.board(meetingID).Clear()
	h.publish(meetingID, EventWhiteboardClear, nil, "")
	return nil
}

// whiteboardErase broadcasts only when a stroke was actually removed.
func (h *Hub) whiteboardErase(meetingID uuid.UUID, c *Client, m *whiteboardErase) error {
	if !c.CanModerate() {
		return fmt.Errorf("%w: %s", ErrUnauthorized, EventWhiteboardErase)
	}
	if m.StrokeID == "" {
		return fmt.Errorf("%w: erase without stroke_id", ErrMalformed)
	}
	if h.board(meetingID).Erase(m.StrokeID) {
		h.publish(meetingID, EventWhiteboardErase, eraseEvent{StrokeID: m.StrokeID}, "")
	}
	return nil
}
