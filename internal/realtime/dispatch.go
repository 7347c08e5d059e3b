package realtime

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// handle processes one message to completion. Failures are logged and never
// reach the connection loop.
func (h *Hub) handle(ctx context.Context, c *Client, msg WSMessage) {
	defer func() {
		if r := recover(); r != nil {
			c.logger.Error("panic handling message", zap.String("event", msg.Event), zap.Any("panic", r))
		}
	}()

	in, err := decode(msg)
	if err == nil {
		err = h.dispatch(ctx, c, in)
	}
	switch {
	case err == nil:
	case errors.Is(err, ErrUnknownEvent), errors.Is(err, ErrMalformed),
		errors.Is(err, ErrNotJoined), errors.Is(err, ErrUnauthorized):
		c.logger.Debug("message dropped", zap.String("event", msg.Event), zap.Error(err))
	default:
		c.logger.Error("message failed", zap.String("event", msg.Event), zap.Error(err))
	}
}

func (h *Hub) dispatch(ctx context.Context, c *Client, in inbound) error {
	switch m := in.(type) {
	case *joinMeeting:
		return h.join(ctx, c, m.MeetingID)
	case *leaveMeeting:
		h.leave(ctx, c)
		return nil
	case *requestApproval:
		return h.requestApproval(ctx, c)
	case *ping:
		c.sendEvent(EventPong, nil)
		return nil
	}

	meetingID, admitted := c.Meeting()
	if meetingID == uuid.Nil || !admitted {
		return fmt.Errorf("%w: %s", ErrNotJoined, in.event())
	}

	switch m := in.(type) {
	case *signalMessage:
		return h.relaySignal(meetingID, c, m)
	case *mediaToggle:
		return h.mediaToggled(meetingID, c, m)
	case *screenShare:
		return h.screenShare(ctx, meetingID, c, m)
	case *whiteboardToggle:
		return h.whiteboardToggle(meetingID, c, m)
	case *whiteboardDraw:
		return h.whiteboardDraw(meetingID, c, m)
	case *whiteboardClear:
		return h.whiteboardClear(meetingID, c)
	case *whiteboardErase:
		return h.whiteboardErase(meetingID, c, m)
	case *chatMessage:
		return h.chatMessage(ctx, meetingID, c, m)
	case *handSignal:
		return h.handSignal(meetingID, c, m)
	case *emojiReaction:
		return h.emojiReaction(meetingID, c, m)
	case *captionText:
		return h.captionText(meetingID, c, m)
	case *targetAction:
		return h.targetAction(ctx, meetingID, c, m)
	case *roomToggle:
		return h.roomToggle(ctx, meetingID, c, m)
	case *getParticipants:
		return h.getParticipants(ctx, meetingID, c)
	case *getPendingParticipants:
		return h.getPendingParticipants(ctx, meetingID, c)
	}
	return fmt.Errorf("%w: %T", ErrUnknownEvent, in)
}
