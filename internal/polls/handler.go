package polls

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/minimeet/backend/internal/authority"
	"github.com/minimeet/backend/internal/middleware"
	"github.com/minimeet/backend/internal/models"
	"github.com/minimeet/backend/internal/realtime"
	"github.com/minimeet/backend/pkg/response"
)

// Store is the poll persistence used by the handler.
type Store interface {
	Create(ctx context.Context, p *models.Poll) error
	GetByID(ctx context.Context, id uuid.UUID) (*models.Poll, error)
	ListByMeeting(ctx context.Context, meetingID uuid.UUID) ([]*models.Poll, error)
	SaveVote(ctx context.Context, pollID, userID uuid.UUID, index int) error
	End(ctx context.Context, id uuid.UUID) error
}

// MeetingLookup loads the meeting a poll belongs to.
type MeetingLookup interface {
	GetByID(ctx context.Context, id uuid.UUID) (*models.Meeting, error)
}

// Publisher broadcasts poll events to a meeting.
type Publisher interface {
	PublishToRoom(meetingID uuid.UUID, event string, payload interface{})
}

// CreateRequest is the body for POST /meetings/:id/polls.
type CreateRequest struct {
	Question string   `json:"question" binding:"required"`
	Options  []string `json:"options" binding:"required,min=2,max=10"`
}

// VoteRequest is the body for POST /polls/:id/vote.
type VoteRequest struct {
	OptionIndex *int `json:"option_index" binding:"required"`
}

// Handler handles poll HTTP endpoints.
type Handler struct {
	repo     Store
	meetings MeetingLookup
	hub      Publisher
	logger   *zap.Logger
}

// NewHandler creates a polls handler.
func NewHandler(repo Store, meetings MeetingLookup, hub Publisher, logger *zap.Logger) *Handler {
	return &Handler{repo: repo, meetings: meetings, hub: hub, logger: logger}
}

// Create handles POST /meetings/:id/polls (host/co-host).
func (h *Handler) Create(c *gin.Context) {
	meetingID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.BadRequest(c, "invalid meeting id")
		return
	}
	userID := c.MustGet(middleware.ContextUserID).(uuid.UUID)
	m, ok := h.meeting(c, meetingID)
	if !ok {
		return
	}
	if !authority.Allowed(m, userID, authority.ActionCreatePoll) {
		response.Forbidden(c, "only the host or a co-host can create polls")
		return
	}

	var req CreateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "invalid request: "+err.Error())
		return
	}
	question := strings.TrimSpace(req.Question)
	if question == "" {
		response.BadRequest(c, "question is required")
		return
	}
	p := &models.Poll{MeetingID: meetingID, CreatedBy: userID, Question: question}
	for _, o := range req.Options {
		text := strings.TrimSpace(o)
		if text == "" {
			response.BadRequest(c, "options must not be empty")
			return
		}
		p.Options = append(p.Options, models.PollOption{Text: text, Voters: []uuid.UUID{}})
	}
	if err := h.repo.Create(c.Request.Context(), p); err != nil {
		h.logger.Error("create poll", zap.Error(err))
		response.Internal(c, "failed to create poll")
		return
	}

	view := p.View()
	h.hub.PublishToRoom(meetingID, realtime.EventPollCreated, view)
	response.Created(c, view)
}

// List handles GET /meetings/:id/polls.
func (h *Handler) List(c *gin.Context) {
	meetingID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.BadRequest(c, "invalid meeting id")
		return
	}
	userID := c.MustGet(middleware.ContextUserID).(uuid.UUID)
	m, ok := h.meeting(c, meetingID)
	if !ok {
		return
	}
	if !authority.IsMember(m, userID) {
		response.Forbidden(c, "not a participant of this meeting")
		return
	}
	list, err := h.repo.ListByMeeting(c.Request.Context(), meetingID)
	if err != nil {
		response.Internal(c, "failed to list polls")
		return
	}
	views := make([]models.PollView, 0, len(list))
	for _, p := range list {
		views = append(views, p.View())
	}
	response.OK(c, gin.H{"polls": views})
}

// Vote handles POST /polls/:id/vote. A repeated vote moves the caller's choice.
func (h *Handler) Vote(c *gin.Context) {
	p, m, ok := h.poll(c)
	if !ok {
		return
	}
	userID := c.MustGet(middleware.ContextUserID).(uuid.UUID)
	if !authority.IsMember(m, userID) {
		response.Forbidden(c, "not a participant of this meeting")
		return
	}
	var req VoteRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "invalid request: "+err.Error())
		return
	}
	if err := p.Vote(userID, *req.OptionIndex); err != nil {
		response.BadRequest(c, err.Error())
		return
	}
	if err := h.repo.SaveVote(c.Request.Context(), p.ID, userID, *req.OptionIndex); err != nil {
		if errors.Is(err, models.ErrPollClosed) {
			response.BadRequest(c, err.Error())
			return
		}
		h.logger.Error("save vote", zap.String("poll_id", p.ID.String()), zap.Error(err))
		response.Internal(c, "failed to record vote")
		return
	}

	// Votes committed by others since the load are part of the result.
	fresh, err := h.repo.GetByID(c.Request.Context(), p.ID)
	if err != nil {
		h.logger.Error("reload poll after vote", zap.String("poll_id", p.ID.String()), zap.Error(err))
		response.Internal(c, "failed to load poll")
		return
	}
	view := fresh.View()
	h.hub.PublishToRoom(fresh.MeetingID, realtime.EventPollUpdated, view)
	response.OK(c, view)
}

// End handles POST /polls/:id/end (host/co-host).
func (h *Handler) End(c *gin.Context) {
	p, m, ok := h.poll(c)
	if !ok {
		return
	}
	userID := c.MustGet(middleware.ContextUserID).(uuid.UUID)
	if !authority.Allowed(m, userID, authority.ActionEndPoll) {
		response.Forbidden(c, "only the host or a co-host can end polls")
		return
	}
	if err := h.repo.End(c.Request.Context(), p.ID); err != nil {
		if errors.Is(err, models.ErrPollClosed) {
			response.Conflict(c, "poll already ended")
			return
		}
		response.Internal(c, "failed to end poll")
		return
	}
	now := time.Now().UTC()
	p.IsActive = false
	p.EndedAt = &now

	view := p.View()
	h.hub.PublishToRoom(p.MeetingID, realtime.EventPollEnded, view)
	response.OK(c, view)
}

func (h *Handler) poll(c *gin.Context) (*models.Poll, *models.Meeting, bool) {
	pollID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.BadRequest(c, "invalid poll id")
		return nil, nil, false
	}
	p, err := h.repo.GetByID(c.Request.Context(), pollID)
	if errors.Is(err, models.ErrNotFound) {
		response.NotFound(c, "poll not found")
		return nil, nil, false
	}
	if err != nil {
		response.Internal(c, "failed to load poll")
		return nil, nil, false
	}
	m, ok := h.meeting(c, p.MeetingID)
	return p, m, ok
}

func (h *Handler) meeting(c *gin.Context, id uuid.UUID) (*models.Meeting, bool) {
	m, err := h.meetings.GetByID(c.Request.Context(), id)
	if errors.Is(err, models.ErrNotFound) {
		response.NotFound(c, "meeting not found")
		return nil, false
	}
	if err != nil {
		response.Internal(c, "failed to load meeting")
		return nil, false
	}
	return m, true
}
