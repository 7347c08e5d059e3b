package questions

import (
	"context"
	"errors"
	"strings"
	"unicode/utf8"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/minimeet/backend/internal/authority"
	"github.com/minimeet/backend/internal/middleware"
	"github.com/minimeet/backend/internal/models"
	"github.com/minimeet/backend/internal/realtime"
	"github.com/minimeet/backend/pkg/response"
)

// Store is the question persistence used by the handler.
type Store interface {
	Create(ctx context.Context, q *models.Question) error
	GetByID(ctx context.Context, id uuid.UUID) (*models.Question, error)
	ListByMeeting(ctx context.Context, meetingID uuid.UUID) ([]*models.Question, error)
	Answer(ctx context.Context, id, answeredBy uuid.UUID, answer string) (*models.Question, error)
	ToggleUpvote(ctx context.Context, questionID, userID uuid.UUID) (int, bool, error)
}

// MeetingLookup loads the meeting a question belongs to.
type MeetingLookup interface {
	GetByID(ctx context.Context, id uuid.UUID) (*models.Meeting, error)
}

// Publisher broadcasts Q&A events to a meeting.
type Publisher interface {
	PublishToRoom(meetingID uuid.UUID, event string, payload interface{})
}

// AskRequest is the body for POST /meetings/:id/questions.
type AskRequest struct {
	Question string `json:"question" binding:"required"`
}

// AnswerRequest is the body for POST /questions/:id/answer.
type AnswerRequest struct {
	Answer string `json:"answer" binding:"required"`
}

// UpvoteEvent is broadcast after an upvote toggle.
type UpvoteEvent struct {
	ID      uuid.UUID `json:"id"`
	Upvotes int       `json:"upvotes"`
}

// Handler handles Q&A HTTP endpoints.
type Handler struct {
	repo     Store
	meetings MeetingLookup
	hub      Publisher
	logger   *zap.Logger
}

// NewHandler creates a questions handler.
func NewHandler(repo Store, meetings MeetingLookup, hub Publisher, logger *zap.Logger) *Handler {
	return &Handler{repo: repo, meetings: meetings, hub: hub, logger: logger}
}

// Ask handles POST /meetings/:id/questions.
func (h *Handler) Ask(c *gin.Context) {
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
	var req AskRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "invalid request: "+err.Error())
		return
	}
	text := strings.TrimSpace(req.Question)
	if text == "" {
		response.BadRequest(c, "question is required")
		return
	}
	if utf8.RuneCountInString(text) > models.MaxQuestionLength {
		response.BadRequest(c, "question is too long")
		return
	}

	q := &models.Question{MeetingID: meetingID, User: models.Identity{ID: userID}, Text: text}
	if err := h.repo.Create(c.Request.Context(), q); err != nil {
		h.logger.Error("create question", zap.Error(err))
		response.Internal(c, "failed to save question")
		return
	}
	h.hub.PublishToRoom(meetingID, realtime.EventQuestionAsked, q)
	response.Created(c, q)
}

// List handles GET /meetings/:id/questions.
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
		response.Internal(c, "failed to list questions")
		return
	}
	response.OK(c, gin.H{"questions": list})
}

// Answer handles POST /questions/:id/answer (host/co-host).
func (h *Handler) Answer(c *gin.Context) {
	q, m, ok := h.question(c)
	if !ok {
		return
	}
	userID := c.MustGet(middleware.ContextUserID).(uuid.UUID)
	if !authority.Allowed(m, userID, authority.ActionAnswerQuestion) {
		response.Forbidden(c, "only the host or a co-host can answer questions")
		return
	}
	var req AnswerRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "invalid request: "+err.Error())
		return
	}
	text := strings.TrimSpace(req.Answer)
	if text == "" {
		response.BadRequest(c, "answer is required")
		return
	}
	if utf8.RuneCountInString(text) > models.MaxAnswerLength {
		response.BadRequest(c, "answer is too long")
		return
	}

	answered, err := h.repo.Answer(c.Request.Context(), q.ID, userID, text)
	if err != nil {
		h.logger.Error("answer question", zap.String("question_id", q.ID.String()), zap.Error(err))
		response.Internal(c, "failed to save answer")
		return
	}
	h.hub.PublishToRoom(q.MeetingID, realtime.EventQuestionAnswered, answered)
	response.OK(c, answered)
}

// Upvote handles POST /questions/:id/upvote. Calling it twice withdraws the vote.
func (h *Handler) Upvote(c *gin.Context) {
	q, m, ok := h.question(c)
	if !ok {
		return
	}
	userID := c.MustGet(middleware.ContextUserID).(uuid.UUID)
	if !authority.IsMember(m, userID) {
		response.Forbidden(c, "not a participant of this meeting")
		return
	}
	count, upvoted, err := h.repo.ToggleUpvote(c.Request.Context(), q.ID, userID)
	if err != nil {
		h.logger.Error("toggle upvote", zap.String("question_id", q.ID.String()), zap.Error(err))
		response.Internal(c, "failed to upvote")
		return
	}
	h.hub.PublishToRoom(q.MeetingID, realtime.EventQuestionUpvoted, UpvoteEvent{ID: q.ID, Upvotes: count})
	response.OK(c, gin.H{"id": q.ID, "upvotes": count, "upvoted": upvoted})
}

func (h *Handler) question(c *gin.Context) (*models.Question, *models.Meeting, bool) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.BadRequest(c, "invalid question id")
		return nil, nil, false
	}
	q, err := h.repo.GetByID(c.Request.Context(), id)
	if errors.Is(err, models.ErrNotFound) {
		response.NotFound(c, "question not found")
		return nil, nil, false
	}
	if err != nil {
		response.Internal(c, "failed to load question")
		return nil, nil, false
	}
	m, ok := h.meeting(c, q.MeetingID)
	return q, m, ok
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
