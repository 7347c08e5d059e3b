package realtime

import (
	"context"
	"encoding/json"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/minimeet/backend/internal/models"
)

type fakeMeetings struct {
	mu       sync.Mutex
	meetings map[uuid.UUID]*models.Meeting
	err      error
	left     []uuid.UUID
}

func newFakeMeetings(ms ...*models.Meeting) *fakeMeetings {
	f := &fakeMeetings{meetings: make(map[uuid.UUID]*models.Meeting)}
	for _, m := range ms {
		f.meetings[m.ID] = m
	}
	return f
}

func (f *fakeMeetings) GetByID(_ context.Context, id uuid.UUID) (*models.Meeting, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return nil, f.err
	}
	m, ok := f.meetings[id]
	if !ok {
		return nil, models.ErrNotFound
	}
	cp := *m
	cp.CoHostIDs = append([]uuid.UUID(nil), m.CoHostIDs...)
	cp.Participants = append([]models.MeetingParticipant(nil), m.Participants...)
	return &cp, nil
}

func (f *fakeMeetings) MarkParticipantLeft(_ context.Context, meetingID, userID uuid.UUID) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return f.err
	}
	f.left = append(f.left, userID)
	m := f.meetings[meetingID]
	for i := range m.Participants {
		if m.Participants[i].UserID == userID {
			t := time.Now()
			m.Participants[i].LeftAt = &t
		}
	}
	return nil
}

func (f *fakeMeetings) ToggleCoHost(_ context.Context, meetingID, userID uuid.UUID) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	m := f.meetings[meetingID]
	for i, id := range m.CoHostIDs {
		if id == userID {
			m.CoHostIDs = append(m.CoHostIDs[:i], m.CoHostIDs[i+1:]...)
			return false, nil
		}
	}
	m.CoHostIDs = append(m.CoHostIDs, userID)
	return true, nil
}

func (f *fakeMeetings) SetChatEnabled(_ context.Context, meetingID uuid.UUID, enabled bool) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.meetings[meetingID].Settings.ChatEnabled = enabled
	return nil
}

func (f *fakeMeetings) SetScreenShareEnabled(_ context.Context, meetingID uuid.UUID, enabled bool) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.meetings[meetingID].Settings.ScreenShareEnabled = enabled
	return nil
}

func (f *fakeMeetings) addParticipant(meetingID, userID uuid.UUID) {
	f.mu.Lock()
	defer f.mu.Unlock()
	m := f.meetings[meetingID]
	m.Participants = append(m.Participants, models.MeetingParticipant{UserID: userID, JoinedAt: time.Now()})
}

type fakeChat struct {
	err   error
	saved []*models.ChatMessage
}

func (f *fakeChat) Create(_ context.Context, m *models.ChatMessage) error {
	if f.err != nil {
		return f.err
	}
	m.ID = uuid.New()
	m.CreatedAt = time.Now()
	f.saved = append(f.saved, m)
	return nil
}

func newMeeting(host uuid.UUID) *models.Meeting {
	return &models.Meeting{
		ID:       uuid.New(),
		Title:    "standup",
		HostID:   host,
		IsActive: true,
		Settings: models.MeetingSettings{ChatEnabled: true, ScreenShareEnabled: true},
	}
}

func newIdentity(name string) models.Identity {
	return models.Identity{ID: uuid.New(), Name: name}
}

func newTestHub(meetings *fakeMeetings, chat *fakeChat) *Hub {
	return NewHub(zap.NewNop(), Config{SendBuffer: 512}, meetings, chat, nil, nil)
}

func newTestClient(h *Hub, user models.Identity) *Client {
	return newClient(h, nil, user)
}

func send(t *testing.T, h *Hub, c *Client, event string, data interface{}) {
	t.Helper()
	var raw json.RawMessage
	if data != nil {
		b, err := json.Marshal(data)
		require.NoError(t, err)
		raw = b
	}
	h.handle(context.Background(), c, WSMessage{Event: event, Data: raw})
}

func joinMsg(meetingID uuid.UUID) map[string]interface{} {
	return map[string]interface{}{"meeting_id": meetingID}
}

func drain(c *Client) []WSMessage {
	var out []WSMessage
	for {
		select {
		case m := <-c.send:
			out = append(out, m)
		default:
			return out
		}
	}
}

func eventsOf(msgs []WSMessage) []string {
	out := make([]string, 0, len(msgs))
	for _, m := range msgs {
		out = append(out, m.Event)
	}
	return out
}

func countEvent(msgs []WSMessage, event string) int {
	n := 0
	for _, m := range msgs {
		if m.Event == event {
			n++
		}
	}
	return n
}

func findEvent(t *testing.T, msgs []WSMessage, event string, v interface{}) {
	t.Helper()
	for _, m := range msgs {
		if m.Event == event {
			require.NoError(t, json.Unmarshal(m.Data, v))
			return
		}
	}
	t.Fatalf("event %q not found in %v", event, eventsOf(msgs))
}
