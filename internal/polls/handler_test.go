package polls

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/minimeet/backend/internal/middleware"
	"github.com/minimeet/backend/internal/models"
	"github.com/minimeet/backend/internal/realtime"
)

func init() {
	gin.SetMode(gin.TestMode)
}

type fakeStore struct {
	mu    sync.Mutex
	polls map[uuid.UUID]*models.Poll
	// afterVote runs inside SaveVote, standing in for writes committed concurrently.
	afterVote func(p *models.Poll)
}

func clonePoll(p *models.Poll) *models.Poll {
	cp := *p
	cp.Options = make([]models.PollOption, len(p.Options))
	for i, o := range p.Options {
		cp.Options[i] = models.PollOption{Text: o.Text, Voters: append([]uuid.UUID{}, o.Voters...)}
	}
	return &cp
}

func (s *fakeStore) Create(_ context.Context, p *models.Poll) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	p.ID = uuid.New()
	p.IsActive = true
	p.CreatedAt = time.Now()
	s.polls[p.ID] = clonePoll(p)
	return nil
}

func (s *fakeStore) GetByID(_ context.Context, id uuid.UUID) (*models.Poll, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.polls[id]
	if !ok {
		return nil, models.ErrNotFound
	}
	return clonePoll(p), nil
}

func (s *fakeStore) ListByMeeting(_ context.Context, meetingID uuid.UUID) ([]*models.Poll, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := []*models.Poll{}
	for _, p := range s.polls {
		if p.MeetingID == meetingID {
			out = append(out, clonePoll(p))
		}
	}
	return out, nil
}

func (s *fakeStore) SaveVote(_ context.Context, pollID, userID uuid.UUID, index int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	p := s.polls[pollID]
	if err := p.Vote(userID, index); err != nil {
		return err
	}
	if s.afterVote != nil {
		s.afterVote(p)
	}
	return nil
}

func (s *fakeStore) End(_ context.Context, id uuid.UUID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	p := s.polls[id]
	if !p.IsActive {
		return models.ErrPollClosed
	}
	p.IsActive = false
	return nil
}

type fakeMeetings map[uuid.UUID]*models.Meeting

func (f fakeMeetings) GetByID(_ context.Context, id uuid.UUID) (*models.Meeting, error) {
	if m, ok := f[id]; ok {
		return m, nil
	}
	return nil, models.ErrNotFound
}

type event struct {
	Name    string
	Payload interface{}
}

type fakeHub struct {
	mu     sync.Mutex
	events []event
}

func (h *fakeHub) PublishToRoom(_ uuid.UUID, name string, payload interface{}) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.events = append(h.events, event{name, payload})
}

type testEnv struct {
	store   *fakeStore
	hub     *fakeHub
	router  *gin.Engine
	meeting *models.Meeting
	host    uuid.UUID
	member  uuid.UUID
}

func newTestEnv() *testEnv {
	host, member := uuid.New(), uuid.New()
	m := &models.Meeting{
		ID:           uuid.New(),
		HostID:       host,
		IsActive:     true,
		Participants: []models.MeetingParticipant{{UserID: member, JoinedAt: time.Now()}},
	}
	env := &testEnv{
		store:   &fakeStore{polls: make(map[uuid.UUID]*models.Poll)},
		hub:     &fakeHub{},
		meeting: m,
		host:    host,
		member:  member,
	}
	h := NewHandler(env.store, fakeMeetings{m.ID: m}, env.hub, zap.NewNop())

	r := gin.New()
	api := r.Group("", func(c *gin.Context) {
		id, err := uuid.Parse(c.GetHeader("X-User"))
		if err != nil {
			c.AbortWithStatus(http.StatusUnauthorized)
			return
		}
		c.Set(middleware.ContextUserID, id)
	})
	api.POST("/meetings/:id/polls", h.Create)
	api.GET("/meetings/:id/polls", h.List)
	api.POST("/polls/:id/vote", h.Vote)
	api.POST("/polls/:id/end", h.End)
	env.router = r
	return env
}

func (env *testEnv) do(t *testing.T, method, path string, user uuid.UUID, body interface{}) (int, map[string]interface{}) {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-User", user.String())
	w := httptest.NewRecorder()
	env.router.ServeHTTP(w, req)
	var out map[string]interface{}
	_ = json.Unmarshal(w.Body.Bytes(), &out)
	return w.Code, out
}

func (env *testEnv) createPoll(t *testing.T) uuid.UUID {
	t.Helper()
	code, body := env.do(t, http.MethodPost, "/meetings/"+env.meeting.ID.String()+"/polls", env.host,
		CreateRequest{Question: " Lunch? ", Options: []string{"Pizza", " Sushi "}})
	require.Equal(t, http.StatusCreated, code)
	id, err := uuid.Parse(body["data"].(map[string]interface{})["id"].(string))
	require.NoError(t, err)
	return id
}

func TestCreate(t *testing.T) {
	env := newTestEnv()
	id := env.createPoll(t)

	p := env.store.polls[id]
	assert.Equal(t, "Lunch?", p.Question)
	assert.Equal(t, "Sushi", p.Options[1].Text)
	require.Len(t, env.hub.events, 1)
	assert.Equal(t, realtime.EventPollCreated, env.hub.events[0].Name)
}

func TestCreateValidation(t *testing.T) {
	env := newTestEnv()
	path := "/meetings/" + env.meeting.ID.String() + "/polls"

	code, _ := env.do(t, http.MethodPost, path, env.member, CreateRequest{Question: "q", Options: []string{"a", "b"}})
	assert.Equal(t, http.StatusForbidden, code)

	code, _ = env.do(t, http.MethodPost, path, env.host, CreateRequest{Question: "q", Options: []string{"only"}})
	assert.Equal(t, http.StatusBadRequest, code)

	code, _ = env.do(t, http.MethodPost, path, env.host, CreateRequest{Question: "q", Options: []string{"a", "  "}})
	assert.Equal(t, http.StatusBadRequest, code)

	code, _ = env.do(t, http.MethodPost, "/meetings/"+uuid.NewString()+"/polls", env.host, CreateRequest{Question: "q", Options: []string{"a", "b"}})
	assert.Equal(t, http.StatusNotFound, code)
	assert.Empty(t, env.hub.events)
}

func TestVoteMovesChoice(t *testing.T) {
	env := newTestEnv()
	id := env.createPoll(t)
	path := "/polls/" + id.String() + "/vote"

	code, body := env.do(t, http.MethodPost, path, env.member, map[string]int{"option_index": 0})
	require.Equal(t, http.StatusOK, code)
	assert.EqualValues(t, 1, body["data"].(map[string]interface{})["total_votes"])

	code, _ = env.do(t, http.MethodPost, path, env.member, map[string]int{"option_index": 1})
	require.Equal(t, http.StatusOK, code)

	p := env.store.polls[id]
	assert.Empty(t, p.Options[0].Voters)
	assert.Equal(t, []uuid.UUID{env.member}, p.Options[1].Voters)

	last := env.hub.events[len(env.hub.events)-1]
	assert.Equal(t, realtime.EventPollUpdated, last.Name)
	view := last.Payload.(models.PollView)
	assert.Equal(t, 1, view.TotalVotes)
	assert.Equal(t, 1, view.Options[1].Votes)
}

func TestVoteBroadcastsStoredTallies(t *testing.T) {
	env := newTestEnv()
	id := env.createPoll(t)
	other := uuid.New()
	env.store.afterVote = func(p *models.Poll) {
		require.NoError(t, p.Vote(other, 1))
	}

	code, body := env.do(t, http.MethodPost, "/polls/"+id.String()+"/vote", env.member, map[string]int{"option_index": 0})
	require.Equal(t, http.StatusOK, code)
	assert.EqualValues(t, 2, body["data"].(map[string]interface{})["total_votes"])

	last := env.hub.events[len(env.hub.events)-1]
	require.Equal(t, realtime.EventPollUpdated, last.Name)
	view := last.Payload.(models.PollView)
	assert.Equal(t, 2, view.TotalVotes)
	assert.Equal(t, 1, view.Options[0].Votes)
	assert.Equal(t, 1, view.Options[1].Votes)
}

func TestVoteRejections(t *testing.T) {
	env := newTestEnv()
	id := env.createPoll(t)
	path := "/polls/" + id.String() + "/vote"

	code, _ := env.do(t, http.MethodPost, path, uuid.New(), map[string]int{"option_index": 0})
	assert.Equal(t, http.StatusForbidden, code)

	code, _ = env.do(t, http.MethodPost, path, env.member, map[string]int{"option_index": 5})
	assert.Equal(t, http.StatusBadRequest, code)

	code, _ = env.do(t, http.MethodPost, path, env.member, map[string]string{})
	assert.Equal(t, http.StatusBadRequest, code)

	code, _ = env.do(t, http.MethodPost, "/polls/"+uuid.NewString()+"/vote", env.member, map[string]int{"option_index": 0})
	assert.Equal(t, http.StatusNotFound, code)
}

func TestEnd(t *testing.T) {
	env := newTestEnv()
	id := env.createPoll(t)
	path := "/polls/" + id.String() + "/end"

	code, _ := env.do(t, http.MethodPost, path, env.member, nil)
	assert.Equal(t, http.StatusForbidden, code)

	code, body := env.do(t, http.MethodPost, path, env.host, nil)
	require.Equal(t, http.StatusOK, code)
	assert.Equal(t, false, body["data"].(map[string]interface{})["is_active"])
	assert.Equal(t, realtime.EventPollEnded, env.hub.events[len(env.hub.events)-1].Name)

	code, _ = env.do(t, http.MethodPost, path, env.host, nil)
	assert.Equal(t, http.StatusConflict, code)

	code, _ = env.do(t, http.MethodPost, "/polls/"+id.String()+"/vote", env.member, map[string]int{"option_index": 0})
	assert.Equal(t, http.StatusBadRequest, code)
}

func TestList(t *testing.T) {
	env := newTestEnv()
	env.createPoll(t)
	env.createPoll(t)

	code, body := env.do(t, http.MethodGet, "/meetings/"+env.meeting.ID.String()+"/polls", env.member, nil)
	require.Equal(t, http.StatusOK, code)
	assert.Len(t, body["data"].(map[string]interface{})["polls"], 2)

	code, _ = env.do(t, http.MethodGet, "/meetings/"+env.meeting.ID.String()+"/polls", uuid.New(), nil)
	assert.Equal(t, http.StatusForbidden, code)
}
