package authority

import (
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"

	"github.com/minimeet/backend/internal/models"
)

func testMeeting() (*models.Meeting, uuid.UUID, uuid.UUID, uuid.UUID) {
	host, coHost, participant := uuid.New(), uuid.New(), uuid.New()
	m := &models.Meeting{
		ID:           uuid.New(),
		HostID:       host,
		CoHostIDs:    []uuid.UUID{coHost},
		Participants: []models.MeetingParticipant{{UserID: participant}},
	}
	return m, host, coHost, participant
}

func TestPredicates(t *testing.T) {
	m, host, coHost, participant := testMeeting()
	stranger := uuid.New()

	assert.True(t, IsHost(m, host))
	assert.False(t, IsHost(m, coHost))
	assert.True(t, IsCoHost(m, coHost))
	assert.False(t, IsCoHost(m, host))
	assert.True(t, IsPrivileged(m, host))
	assert.True(t, IsPrivileged(m, coHost))
	assert.False(t, IsPrivileged(m, participant))
	assert.True(t, IsMember(m, participant))
	assert.False(t, IsMember(m, stranger))
}

func TestAllowed(t *testing.T) {
	m, host, coHost, participant := testMeeting()

	tests := []struct {
		name   string
		user   uuid.UUID
		action Action
		want   bool
	}{
		{"host locks", host, ActionLock, true},
		{"co-host locks", coHost, ActionLock, true},
		{"participant cannot lock", participant, ActionLock, false},
		{"participant cannot mute", participant, ActionMute, false},
		{"participant cannot clear whiteboard", participant, ActionWhiteboard, false},
		{"co-host approves", coHost, ActionApprove, true},
		{"host ends meeting", host, ActionEndMeeting, true},
		{"co-host cannot end meeting", coHost, ActionEndMeeting, false},
		{"host grants co-host", host, ActionSetCoHost, true},
		{"co-host cannot grant co-host", coHost, ActionSetCoHost, false},
		{"unknown action", host, Action(999), false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Allowed(m, tt.user, tt.action))
		})
	}
}

func TestAllowedNilMeeting(t *testing.T) {
	assert.False(t, Allowed(nil, uuid.New(), ActionLock))
	assert.False(t, IsMember(nil, uuid.New()))
}
