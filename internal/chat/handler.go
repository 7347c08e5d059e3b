package chat

import (
	"context"
	"errors"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/minimeet/backend/internal/authority"
	"github.com/minimeet/backend/internal/middleware"
	"github.com/minimeet/backend/internal/models"
	"github.com/minimeet/backend/pkg/response"
)

const (
	defaultHistory = 100
	maxHistory     = 500
)

// History returns persisted chat messages of a meeting.
type History interface {
	ListByMeeting(ctx context.Context, meetingID uuid.UUID, limit int) ([]models.ChatMessage, error)
}

// MeetingLookup loads the meeting whose chat is requested.
type MeetingLookup interface {
	GetByID(ctx context.Context, id uuid.UUID) (*models.Meeting, error)
}

// Handler serves chat history.
type Handler struct {
	repo     History
	meetings MeetingLookup
	logger   *zap.Logger
}

// NewHandler creates a chat handler.
func NewHandler(repo History, meetings MeetingLookup, logger *zap.Logger) *Handler {
	return &Handler{repo: repo, meetings: meetings, logger: logger}
}

// List handles GET /meetings/:id/chat?limit=N.
func (h *Handler) List(c *gin.Context) {
	meetingID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.BadRequest(c, "invalid meeting id")
		return
	}
	limit := defaultHistory
	if v := c.Query("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 1 {
			response.BadRequest(c, "invalid limit")
			return
		}
		limit = min(n, maxHistory)
	}

	m, err := h.meetings.GetByID(c.Request.Context(), meetingID)
	if errors.Is(err, models.ErrNotFound) {
		response.NotFound(c, "meeting not found")
		return
	}
	if err != nil {
		response.Internal(c, "failed to load meeting")
		return
	}
	userID := c.MustGet(middleware.ContextUserID).(uuid.UUID)
	if !authority.IsMember(m, userID) {
		response.Forbidden(c, "not a participant of this meeting")
		return
	}

	list, err := h.repo.ListByMeeting(c.Request.Context(), meetingID, limit)
	if err != nil {
		h.logger.Error("list chat", zap.String("meeting_id", meetingID.String()), zap.Error(err))
		response.Internal(c, "failed to load chat")
		return
	}
	response.OK(c, gin.H{"messages": list})
}
