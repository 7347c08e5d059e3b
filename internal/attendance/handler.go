package attendance

import (
	"context"
	"errors"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/minimeet/backend/internal/authority"
	"github.com/minimeet/backend/internal/middleware"
	"github.com/minimeet/backend/internal/models"
	"github.com/minimeet/backend/pkg/response"
)

// Reader lists attendance of a meeting.
type Reader interface {
	ListByMeeting(ctx context.Context, meetingID uuid.UUID) ([]models.Attendance, error)
	Summary(ctx context.Context, meetingID uuid.UUID) (*Summary, error)
}

// MeetingLookup loads the meeting whose attendance is requested.
type MeetingLookup interface {
	GetByID(ctx context.Context, id uuid.UUID) (*models.Meeting, error)
}

// Handler handles GET /meetings/:id/attendance.
type Handler struct {
	repo     Reader
	meetings MeetingLookup
}

// NewHandler creates an attendance handler.
func NewHandler(repo Reader, meetings MeetingLookup) *Handler {
	return &Handler{repo: repo, meetings: meetings}
}

// List handles GET /meetings/:id/attendance (host/co-host: join and leave times with durations).
func (h *Handler) List(c *gin.Context) {
	meetingID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.BadRequest(c, "invalid meeting id")
		return
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
	if !authority.Allowed(m, userID, authority.ActionViewAttendance) {
		response.Forbidden(c, "only the host or a co-host can view attendance")
		return
	}

	list, err := h.repo.ListByMeeting(c.Request.Context(), meetingID)
	if err != nil {
		response.Internal(c, "failed to list attendance")
		return
	}
	summary, err := h.repo.Summary(c.Request.Context(), meetingID)
	if err != nil {
		response.Internal(c, "failed to summarize attendance")
		return
	}
	response.OK(c, gin.H{"attendance": list, "summary": summary})
}
