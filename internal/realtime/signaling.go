package realtime

import (
	"fmt"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// relaySignal forwards an offer, answer or ICE candidate to one connection of
// the sender's meeting. The payload is never inspected.
func (h *Hub) relaySignal(meetingID uuid.UUID, c *Client, m *signalMessage) error {
	if m.TargetID == "" {
		return fmt.Errorf("%w: %s without target_id", ErrMalformed, m.Kind)
	}
	out := signalRelay{From: c.ID, FromUserID: c.User.ID}
	switch m.Kind {
	case EventOffer:
		out.Offer = m.Offer
	case EventAnswer:
		out.Answer = m.Answer
	case EventICECandidate:
		out.Candidate = m.Candidate
	}
	if !h.sendTo(meetingID, m.TargetID, m.Kind, out) {
		c.logger.Debug("signal target not connected", zap.String("event", m.Kind), zap.String("target_id", m.TargetID))
	}
	return nil
}
