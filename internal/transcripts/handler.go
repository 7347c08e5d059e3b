package transcripts

import (
	"context"
	"errors"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/minimeet/backend/internal/authority"
	"github.com/minimeet/backend/internal/middleware"
	"github.com/minimeet/backend/internal/models"
	"github.com/minimeet/backend/pkg/response"
	"github.com/minimeet/backend/pkg/storage"
)

// Signer hands out download URLs for archived transcripts.
type Signer interface {
	TranscriptURL(ctx context.Context, key string) (string, error)
}

// MeetingLookup loads the meeting whose transcript is requested.
type MeetingLookup interface {
	GetByID(ctx context.Context, id uuid.UUID) (*models.Meeting, error)
}

// Handler serves transcript downloads.
type Handler struct {
	signer   Signer
	meetings MeetingLookup
	logger   *zap.Logger
}

// NewHandler creates a transcripts handler.
func NewHandler(signer Signer, meetings MeetingLookup, logger *zap.Logger) *Handler {
	return &Handler{signer: signer, meetings: meetings, logger: logger}
}

// Get handles GET /meetings/:id/transcript (host/co-host, ended meetings only).
func (h *Handler) Get(c *gin.Context) {
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
	if !authority.IsPrivileged(m, userID) {
		response.Forbidden(c, "only the host or a co-host can download the transcript")
		return
	}
	if m.IsActive {
		response.Conflict(c, "meeting is still in progress")
		return
	}

	key := storage.TranscriptKey(meetingID.String())
	url, err := h.signer.TranscriptURL(c.Request.Context(), key)
	if errors.Is(err, storage.ErrObjectNotFound) {
		response.NotFound(c, "transcript is not ready yet")
		return
	}
	if err != nil {
		h.logger.Error("sign transcript url", zap.String("meeting_id", meetingID.String()), zap.Error(err))
		response.Internal(c, "failed to prepare transcript download")
		return
	}
	response.OK(c, gin.H{"url": url, "key": key})
}
