package realtime

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/minimeet/backend/internal/authority"
	"github.com/minimeet/backend/internal/models"
)

// MeetingEndedMessage is sent with meeting-ended.
const MeetingEndedMessage = "The meeting has been ended by the host."

// join admits c to the meeting, parks it in the approval lobby, or turns it away.
// A failed meeting lookup admits without approval checks.
func (h *Hub) join(ctx context.Context, c *Client, meetingID uuid.UUID) error {
	if meetingID == uuid.Nil {
		return fmt.Errorf("%w: join without meeting_id", ErrMalformed)
	}
	current, admitted := c.Meeting()
	if current != uuid.Nil && current != meetingID {
		return fmt.Errorf("%w: connection is already in meeting %s", ErrMalformed, current)
	}

	m, err := h.meetings.GetByID(ctx, meetingID)
	switch {
	case errors.Is(err, models.ErrNotFound):
		return fmt.Errorf("join %s: %w", meetingID, err)
	case err != nil:
		c.logger.Warn("meeting lookup failed, joining without approval checks",
			zap.String("meeting_id", meetingID.String()), zap.Error(err))
		m = nil
	}

	if current == meetingID && admitted {
		c.sendEvent(EventParticipantsList, participantsList{Participants: h.roster(m, meetingID, c.ID)})
		c.sendEvent(EventWhiteboardState, h.board(meetingID).Snapshot())
		return nil
	}

	privileged := false
	if m != nil {
		privileged = authority.IsPrivileged(m, c.User.ID)
		approved := privileged || m.HasParticipant(c.User.ID)
		switch {
		case !m.IsActive:
			c.sendEvent(EventMeetingEnded, Notice{MeetingID: meetingID, Message: MeetingEndedMessage})
			return nil
		case m.IsLocked && !approved:
			c.sendEvent(EventMeetingLocked, Notice{MeetingID: meetingID, Message: "The meeting is locked."})
			return nil
		case m.RequiresApproval && !approved:
			h.holdForApproval(ctx, c, meetingID)
			return nil
		}
	}

	first := h.admit(c, meetingID, privileged)
	h.subscribe(ctx, meetingID)

	c.sendEvent(EventParticipantsList, participantsList{Participants: h.roster(m, meetingID, c.ID)})
	joined := Presence{UserID: c.User.ID, Name: c.User.Name, SocketID: c.ID}
	h.publish(meetingID, EventUserJoined, joined, c.ID)
	h.publish(meetingID, EventNewParticipantInfo, newParticipantInfo{UserID: c.User.ID, User: c.User, SocketID: c.ID}, c.ID)
	c.sendEvent(EventWhiteboardState, h.board(meetingID).Snapshot())

	c.logger.Debug("client joined meeting", zap.String("meeting_id", meetingID.String()))
	if onJoin, _ := h.hooks(); first && onJoin != nil {
		if err := onJoin(ctx, meetingID, c.User); err != nil {
			c.logger.Error("join hook failed", zap.String("meeting_id", meetingID.String()), zap.Error(err))
		}
	}
	return nil
}

// admit registers c and reports whether it is the identity's first connection in the meeting.
func (h *Hub) admit(c *Client, meetingID uuid.UUID, canModerate bool) bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	if l, ok := h.lobby[meetingID]; ok {
		delete(l, c.ID)
		if len(l) == 0 {
			delete(h.lobby, meetingID)
		}
	}
	if q, ok := h.pending[meetingID]; ok {
		q.remove(c.User.ID)
	}
	_, present := h.registry.Find(meetingID, c.User.ID)
	h.registry.Register(meetingID, c)
	c.place(meetingID, true, canModerate)
	return !present
}

// holdForApproval parks c in the lobby and asks the room for a decision.
func (h *Hub) holdForApproval(ctx context.Context, c *Client, meetingID uuid.UUID) {
	entry := PendingEntry{User: c.User, RequestedAt: now()}

	h.mu.Lock()
	l, ok := h.lobby[meetingID]
	if !ok {
		l = make(map[string]*Client)
		h.lobby[meetingID] = l
	}
	l[c.ID] = c
	q := h.pendingQueueLocked(meetingID)
	if !q.Add(entry) {
		entry, _ = q.Get(c.User.ID)
	}
	c.place(meetingID, false, false)
	h.mu.Unlock()
	h.subscribe(ctx, meetingID)

	c.sendEvent(EventWaitingApproval, waitingApproval{MeetingID: meetingID, RequestedAt: entry.RequestedAt})
	h.publish(meetingID, EventParticipantRequesting, entry, c.ID)
}

// requestApproval re-announces a lobby connection, re-queueing it after a denial.
// An identity that has been approved or gained authority meanwhile is joined instead.
func (h *Hub) requestApproval(ctx context.Context, c *Client) error {
	meetingID, admitted := c.Meeting()
	if meetingID == uuid.Nil || admitted {
		return fmt.Errorf("%w: %s outside the lobby", ErrNotJoined, EventRequestApproval)
	}
	m, err := h.meetings.GetByID(ctx, meetingID)
	if err != nil {
		return fmt.Errorf("load meeting %s: %w", meetingID, err)
	}
	if !m.IsActive || !m.RequiresApproval || authority.IsPrivileged(m, c.User.ID) || m.HasParticipant(c.User.ID) {
		return h.join(ctx, c, meetingID)
	}

	entry := PendingEntry{User: c.User, RequestedAt: now()}
	h.mu.Lock()
	if current, in := c.Meeting(); current != meetingID || in {
		h.mu.Unlock()
		return nil
	}
	q := h.pendingQueueLocked(meetingID)
	if !q.Add(entry) {
		entry, _ = q.Get(c.User.ID)
	}
	h.mu.Unlock()
	h.publish(meetingID, EventParticipantRequesting, entry, c.ID)
	return nil
}

// leave runs once per connection, whether triggered by leave-meeting or disconnect.
func (h *Hub) leave(ctx context.Context, c *Client) {
	meetingID, admitted, ok := c.detach()
	if !ok {
		return
	}

	stillPresent := false
	h.mu.Lock()
	if admitted {
		h.registry.Unregister(meetingID, c.ID)
		_, stillPresent = h.registry.Find(meetingID, c.User.ID)
	} else if l, ok := h.lobby[meetingID]; ok {
		delete(l, c.ID)
		waiting := false
		for _, other := range l {
			if other.User.ID == c.User.ID {
				waiting = true
				break
			}
		}
		if !waiting {
			if q, ok := h.pending[meetingID]; ok {
				q.remove(c.User.ID)
			}
		}
		if len(l) == 0 {
			delete(h.lobby, meetingID)
		}
	}
	if h.registry.Count(meetingID) == 0 && len(h.lobby[meetingID]) == 0 {
		h.discardLocked(meetingID)
	}
	h.mu.Unlock()

	if !admitted {
		return
	}
	h.publish(meetingID, EventUserLeft, Presence{UserID: c.User.ID, Name: c.User.Name, SocketID: c.ID}, c.ID)
	c.logger.Debug("client left meeting", zap.String("meeting_id", meetingID.String()))

	if _, onLeave := h.hooks(); !stillPresent && onLeave != nil {
		if err := onLeave(ctx, meetingID, c.User); err != nil {
			c.logger.Error("leave hook failed", zap.String("meeting_id", meetingID.String()), zap.Error(err))
		}
	}
}

// roster merges connected pairs with durable participants that are not connected.
func (h *Hub) roster(m *models.Meeting, meetingID uuid.UUID, exclude string) []RosterEntry {
	connected := h.registry.List(meetingID)
	out := make([]RosterEntry, 0, len(connected))
	seen := make(map[uuid.UUID]bool, len(connected))
	for _, p := range connected {
		seen[p.UserID] = true
		if p.SocketID == exclude {
			continue
		}
		socketID := p.SocketID
		e := RosterEntry{UserID: p.UserID, Name: p.Name, SocketID: &socketID}
		if m != nil {
			if mp, ok := m.Participant(p.UserID); ok {
				joinedAt := mp.JoinedAt
				e.JoinedAt = &joinedAt
			}
		}
		out = append(out, e)
	}
	if m == nil {
		return out
	}
	for _, mp := range m.Participants {
		if seen[mp.UserID] || mp.LeftAt != nil {
			continue
		}
		joinedAt := mp.JoinedAt
		out = append(out, RosterEntry{UserID: mp.UserID, JoinedAt: &joinedAt})
	}
	return out
}
