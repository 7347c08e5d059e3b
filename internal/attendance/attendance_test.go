package attendance

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/minimeet/backend/internal/middleware"
	"github.com/minimeet/backend/internal/models"
)

func init() {
	gin.SetMode(gin.TestMode)
}

type fakeParticipants struct {
	added, left []uuid.UUID
	leftErr     error
}

func (f *fakeParticipants) AddParticipant(_ context.Context, _, userID uuid.UUID) error {
	f.added = append(f.added, userID)
	return nil
}

func (f *fakeParticipants) MarkParticipantLeft(_ context.Context, _, userID uuid.UUID) error {
	f.left = append(f.left, userID)
	return f.leftErr
}

type fakeLog struct {
	joins, leaves []uuid.UUID
	joinErr       error
}

func (f *fakeLog) LogJoin(_ context.Context, _, userID uuid.UUID) error {
	if f.joinErr != nil {
		return f.joinErr
	}
	f.joins = append(f.joins, userID)
	return nil
}

func (f *fakeLog) LogLeave(_ context.Context, _, userID uuid.UUID) error {
	f.leaves = append(f.leaves, userID)
	return nil
}

func TestTracker(t *testing.T) {
	participants, log := &fakeParticipants{}, &fakeLog{}
	tr := NewTracker(participants, log, zap.NewNop())
	meetingID, user := uuid.New(), models.Identity{ID: uuid.New(), Name: "Ada"}

	require.NoError(t, tr.OnJoin(context.Background(), meetingID, user))
	assert.Equal(t, []uuid.UUID{user.ID}, participants.added)
	assert.Equal(t, []uuid.UUID{user.ID}, log.joins)

	require.NoError(t, tr.OnLeave(context.Background(), meetingID, user))
	assert.Equal(t, []uuid.UUID{user.ID}, participants.left)
	assert.Equal(t, []uuid.UUID{user.ID}, log.leaves)
}

func TestTrackerErrors(t *testing.T) {
	boom := errors.New("boom")
	participants, log := &fakeParticipants{leftErr: boom}, &fakeLog{joinErr: boom}
	tr := NewTracker(participants, log, zap.NewNop())
	meetingID, user := uuid.New(), models.Identity{ID: uuid.New()}

	assert.ErrorIs(t, tr.OnJoin(context.Background(), meetingID, user), boom)

	err := tr.OnLeave(context.Background(), meetingID, user)
	assert.ErrorIs(t, err, boom)
	assert.Len(t, log.leaves, 1, "leave is logged even when the participant update fails")

	participants.leftErr = models.ErrNotFound
	assert.NoError(t, tr.OnLeave(context.Background(), meetingID, user))
}

type fakeReader struct{ rows []models.Attendance }

func (f *fakeReader) ListByMeeting(context.Context, uuid.UUID) ([]models.Attendance, error) {
	return f.rows, nil
}

func (f *fakeReader) Summary(context.Context, uuid.UUID) (*Summary, error) {
	s := &Summary{}
	seen := map[uuid.UUID]bool{}
	for _, r := range f.rows {
		s.TotalSeconds += r.DurationSeconds
		seen[r.UserID] = true
	}
	s.DistinctUsers = len(seen)
	return s, nil
}

type fakeMeetings map[uuid.UUID]*models.Meeting

func (f fakeMeetings) GetByID(_ context.Context, id uuid.UUID) (*models.Meeting, error) {
	if m, ok := f[id]; ok {
		return m, nil
	}
	return nil, models.ErrNotFound
}

func TestHandlerList(t *testing.T) {
	coHost, participant := uuid.New(), uuid.New()
	m := &models.Meeting{
		ID:           uuid.New(),
		HostID:       uuid.New(),
		CoHostIDs:    []uuid.UUID{coHost},
		Participants: []models.MeetingParticipant{{UserID: participant}},
	}
	left := time.Now()
	reader := &fakeReader{rows: []models.Attendance{
		{ID: uuid.New(), MeetingID: m.ID, UserID: participant, LeftAt: &left, DurationSeconds: 60},
		{ID: uuid.New(), MeetingID: m.ID, UserID: participant, LeftAt: &left, DurationSeconds: 30},
	}}
	h := NewHandler(reader, fakeMeetings{m.ID: m})

	r := gin.New()
	r.GET("/meetings/:id/attendance", func(c *gin.Context) {
		id, _ := uuid.Parse(c.GetHeader("X-User"))
		c.Set(middleware.ContextUserID, id)
	}, h.List)

	get := func(user uuid.UUID) *httptest.ResponseRecorder {
		req := httptest.NewRequest(http.MethodGet, "/meetings/"+m.ID.String()+"/attendance", nil)
		req.Header.Set("X-User", user.String())
		w := httptest.NewRecorder()
		r.ServeHTTP(w, req)
		return w
	}

	assert.Equal(t, http.StatusForbidden, get(participant).Code)

	w := get(coHost)
	require.Equal(t, http.StatusOK, w.Code)
	var body struct {
		Data struct {
			Attendance []models.Attendance `json:"attendance"`
			Summary    Summary             `json:"summary"`
		} `json:"data"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.Len(t, body.Data.Attendance, 2)
	assert.Equal(t, Summary{TotalSeconds: 90, DistinctUsers: 1}, body.Data.Summary)
}
