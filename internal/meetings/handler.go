package meetings

import (
	"context"
	"errors"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/minimeet/backend/internal/authority"
	"github.com/minimeet/backend/internal/middleware"
	"github.com/minimeet/backend/internal/models"
	"github.com/minimeet/backend/internal/realtime"
	"github.com/minimeet/backend/pkg/queue"
	"github.com/minimeet/backend/pkg/response"
)

const createAttempts = 5

// Store is the meeting persistence used by the handler.
type Store interface {
	Create(ctx context.Context, m *models.Meeting) error
	GetByID(ctx context.Context, id uuid.UUID) (*models.Meeting, error)
	GetByCode(ctx context.Context, code string) (*models.Meeting, error)
	GetByLink(ctx context.Context, link string) (*models.Meeting, error)
	ListForUser(ctx context.Context, userID uuid.UUID) ([]models.Meeting, error)
	ToggleLock(ctx context.Context, id uuid.UUID) (bool, error)
	AddParticipant(ctx context.Context, meetingID, userID uuid.UUID) error
	End(ctx context.Context, meetingID uuid.UUID) error
}

// Hub is the realtime surface the handler publishes to and reads pending entrants from.
type Hub interface {
	PublishToRoom(meetingID uuid.UUID, event string, payload interface{})
	Connected(meetingID uuid.UUID) []realtime.Presence
	PendingList(meetingID uuid.UUID) []realtime.PendingEntry
	TakePending(meetingID, userID uuid.UUID) (realtime.PendingEntry, bool)
	DenyPending(meetingID, userID uuid.UUID) (realtime.PendingEntry, bool)
	RestorePending(meetingID uuid.UUID, e realtime.PendingEntry)
	Whiteboard(meetingID uuid.UUID) realtime.WhiteboardState
}

// AttendanceCloser closes attendance rows still open when a meeting ends.
type AttendanceCloser interface {
	CloseOpen(ctx context.Context, meetingID uuid.UUID) error
}

// TranscriptQueue schedules the chat transcript export of an ended meeting.
type TranscriptQueue interface {
	EnqueueTranscriptExport(ctx context.Context, payload queue.TranscriptExportPayload) error
}

// CreateRequest is the body for POST /meetings.
type CreateRequest struct {
	Title              string `json:"title" binding:"required,max=200"`
	Description        string `json:"description"`
	RequiresApproval   bool   `json:"requires_approval"`
	ChatEnabled        *bool  `json:"chat_enabled"`
	ScreenShareEnabled *bool  `json:"screen_share_enabled"`
}

// JoinRequest is the body for POST /meetings/join.
type JoinRequest struct {
	Code string `json:"code" binding:"required"`
}

// DecisionRequest is the body for approve and deny.
type DecisionRequest struct {
	UserID uuid.UUID `json:"user_id" binding:"required"`
}

// JoinResponse tells the client whether its join-meeting will wait in the lobby.
type JoinResponse struct {
	Meeting          *models.Meeting `json:"meeting"`
	RequiresApproval bool            `json:"requires_approval"`
}

type lockChanged struct {
	MeetingID uuid.UUID `json:"meeting_id"`
	IsLocked  bool      `json:"is_locked"`
}

// Handler handles meeting HTTP endpoints.
type Handler struct {
	repo       Store
	hub        Hub
	attendance AttendanceCloser
	jobs       TranscriptQueue
	logger     *zap.Logger
}

// NewHandler creates a meeting handler. attendance and jobs may be nil.
func NewHandler(repo Store, hub Hub, attendance AttendanceCloser, jobs TranscriptQueue, logger *zap.Logger) *Handler {
	return &Handler{repo: repo, hub: hub, attendance: attendance, jobs: jobs, logger: logger}
}

// Create handles POST /meetings. The caller becomes the host.
func (h *Handler) Create(c *gin.Context) {
	var req CreateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "invalid request: "+err.Error())
		return
	}
	title := strings.TrimSpace(req.Title)
	if title == "" {
		response.BadRequest(c, "title is required")
		return
	}
	userID := c.MustGet(middleware.ContextUserID).(uuid.UUID)

	m := &models.Meeting{
		Title:            title,
		Description:      strings.TrimSpace(req.Description),
		HostID:           userID,
		RequiresApproval: req.RequiresApproval,
		Settings:         models.MeetingSettings{ChatEnabled: true, ScreenShareEnabled: true},
	}
	if req.ChatEnabled != nil {
		m.Settings.ChatEnabled = *req.ChatEnabled
	}
	if req.ScreenShareEnabled != nil {
		m.Settings.ScreenShareEnabled = *req.ScreenShareEnabled
	}

	for attempt := 1; ; attempt++ {
		var err error
		if m.Code, err = newCode(); err == nil {
			m.Link, err = newLink()
		}
		if err == nil {
			err = h.repo.Create(c.Request.Context(), m)
		}
		if err == nil {
			break
		}
		if errors.Is(err, ErrDuplicateCode) && attempt < createAttempts {
			continue
		}
		h.logger.Error("create meeting", zap.Error(err))
		response.Internal(c, "failed to create meeting")
		return
	}
	response.Created(c, m)
}

// List handles GET /meetings: meetings the caller hosts, co-hosts or joined.
func (h *Handler) List(c *gin.Context) {
	userID := c.MustGet(middleware.ContextUserID).(uuid.UUID)
	list, err := h.repo.ListForUser(c.Request.Context(), userID)
	if err != nil {
		response.Internal(c, "failed to list meetings")
		return
	}
	response.OK(c, list)
}

// GetByID handles GET /meetings/:id.
func (h *Handler) GetByID(c *gin.Context) {
	m, ok := h.load(c)
	if !ok {
		return
	}
	response.OK(c, m)
}

// JoinByCode handles POST /meetings/join.
func (h *Handler) JoinByCode(c *gin.Context) {
	var req JoinRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "invalid request: "+err.Error())
		return
	}
	m, err := h.repo.GetByCode(c.Request.Context(), strings.TrimSpace(req.Code))
	if err != nil {
		h.notFoundOrInternal(c, err, "meeting not found")
		return
	}
	h.resolve(c, m)
}

// ByLink handles GET /meetings/link/:link.
func (h *Handler) ByLink(c *gin.Context) {
	m, err := h.repo.GetByLink(c.Request.Context(), c.Param("link"))
	if err != nil {
		h.notFoundOrInternal(c, err, "meeting not found")
		return
	}
	h.resolve(c, m)
}

// resolve answers a join attempt without touching the pending queue; the
// realtime join decides admission.
func (h *Handler) resolve(c *gin.Context, m *models.Meeting) {
	userID := c.MustGet(middleware.ContextUserID).(uuid.UUID)
	if !m.IsActive {
		response.BadRequest(c, "meeting has ended")
		return
	}
	approved := authority.IsMember(m, userID)
	if m.IsLocked && !approved {
		response.Forbidden(c, "meeting is locked")
		return
	}
	response.OK(c, JoinResponse{Meeting: m, RequiresApproval: m.RequiresApproval && !approved})
}

// ToggleLock handles POST /meetings/:id/lock.
func (h *Handler) ToggleLock(c *gin.Context) {
	m, ok := h.authorize(c, authority.ActionLock)
	if !ok {
		return
	}
	locked, err := h.repo.ToggleLock(c.Request.Context(), m.ID)
	if err != nil {
		h.notFoundOrInternal(c, err, "meeting not found")
		return
	}
	h.hub.PublishToRoom(m.ID, realtime.EventMeetingLockChanged, lockChanged{MeetingID: m.ID, IsLocked: locked})
	response.OK(c, gin.H{"is_locked": locked})
}

// Approve handles POST /meetings/:id/approve. The pending entry is taken first so
// two concurrent approvals cannot both succeed; it is restored if the write fails.
func (h *Handler) Approve(c *gin.Context) {
	m, ok := h.authorize(c, authority.ActionApprove)
	if !ok {
		return
	}
	var req DecisionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "invalid request: "+err.Error())
		return
	}
	entry, ok := h.hub.TakePending(m.ID, req.UserID)
	if !ok {
		response.NotFound(c, "user is not waiting for approval")
		return
	}
	if err := h.repo.AddParticipant(c.Request.Context(), m.ID, req.UserID); err != nil {
		h.hub.RestorePending(m.ID, entry)
		h.logger.Error("approve participant", zap.String("meeting_id", m.ID.String()), zap.Error(err))
		response.Internal(c, "failed to approve participant")
		return
	}
	// A request-approval that raced the write may have queued the identity again.
	h.hub.DenyPending(m.ID, req.UserID)
	h.hub.PublishToRoom(m.ID, realtime.EventParticipantApproved, realtime.ApprovalEvent{UserID: req.UserID, User: entry.User})
	response.OK(c, gin.H{"user_id": req.UserID, "approved": true})
}

// Deny handles POST /meetings/:id/deny.
func (h *Handler) Deny(c *gin.Context) {
	m, ok := h.authorize(c, authority.ActionDeny)
	if !ok {
		return
	}
	var req DecisionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "invalid request: "+err.Error())
		return
	}
	entry, ok := h.hub.DenyPending(m.ID, req.UserID)
	if !ok {
		response.NotFound(c, "user is not waiting for approval")
		return
	}
	h.hub.PublishToRoom(m.ID, realtime.EventParticipantDenied, realtime.ApprovalEvent{UserID: req.UserID, User: entry.User})
	response.OK(c, gin.H{"user_id": req.UserID, "approved": false})
}

// Pending handles GET /meetings/:id/pending.
func (h *Handler) Pending(c *gin.Context) {
	m, ok := h.authorize(c, authority.ActionViewPending)
	if !ok {
		return
	}
	response.OK(c, gin.H{"pending_participants": h.hub.PendingList(m.ID)})
}

// End handles POST /meetings/:id/end (host only).
func (h *Handler) End(c *gin.Context) {
	m, ok := h.authorize(c, authority.ActionEndMeeting)
	if !ok {
		return
	}
	if !m.IsActive {
		response.Conflict(c, "meeting already ended")
		return
	}
	ctx := c.Request.Context()
	if err := h.repo.End(ctx, m.ID); err != nil {
		if errors.Is(err, models.ErrNotFound) {
			response.Conflict(c, "meeting already ended")
			return
		}
		h.logger.Error("end meeting", zap.String("meeting_id", m.ID.String()), zap.Error(err))
		response.Internal(c, "failed to end meeting")
		return
	}
	if h.attendance != nil {
		if err := h.attendance.CloseOpen(ctx, m.ID); err != nil {
			h.logger.Error("close attendance", zap.String("meeting_id", m.ID.String()), zap.Error(err))
		}
	}
	h.hub.PublishToRoom(m.ID, realtime.EventMeetingEnded, realtime.Notice{MeetingID: m.ID, Message: realtime.MeetingEndedMessage})
	if h.jobs != nil {
		payload := queue.TranscriptExportPayload{MeetingID: m.ID, RequestedBy: m.HostID}
		if err := h.jobs.EnqueueTranscriptExport(ctx, payload); err != nil {
			h.logger.Warn("enqueue transcript export", zap.String("meeting_id", m.ID.String()), zap.Error(err))
		}
	}
	response.OK(c, gin.H{"id": m.ID, "is_active": false})
}

// Participants handles GET /meetings/:id/participants: the live connected list.
func (h *Handler) Participants(c *gin.Context) {
	m, ok := h.load(c)
	if !ok {
		return
	}
	userID := c.MustGet(middleware.ContextUserID).(uuid.UUID)
	if !authority.IsMember(m, userID) {
		response.Forbidden(c, "not a participant of this meeting")
		return
	}
	connected := h.hub.Connected(m.ID)
	response.OK(c, gin.H{"participants": connected, "count": len(connected)})
}

// Whiteboard handles GET /meetings/:id/whiteboard: the current stroke set for late renderers.
func (h *Handler) Whiteboard(c *gin.Context) {
	m, ok := h.load(c)
	if !ok {
		return
	}
	userID := c.MustGet(middleware.ContextUserID).(uuid.UUID)
	if !authority.IsMember(m, userID) {
		response.Forbidden(c, "not a participant of this meeting")
		return
	}
	response.OK(c, h.hub.Whiteboard(m.ID))
}

// load parses :id and fetches the meeting, writing the error response itself.
func (h *Handler) load(c *gin.Context) (*models.Meeting, bool) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.BadRequest(c, "invalid meeting id")
		return nil, false
	}
	m, err := h.repo.GetByID(c.Request.Context(), id)
	if err != nil {
		h.notFoundOrInternal(c, err, "meeting not found")
		return nil, false
	}
	return m, true
}

func (h *Handler) authorize(c *gin.Context, action authority.Action) (*models.Meeting, bool) {
	m, ok := h.load(c)
	if !ok {
		return nil, false
	}
	userID := c.MustGet(middleware.ContextUserID).(uuid.UUID)
	if !authority.Allowed(m, userID, action) {
		if action.HostOnly() {
			response.Forbidden(c, "only the host can "+strings.ReplaceAll(action.String(), "_", " "))
		} else {
			response.Forbidden(c, "only the host or a co-host can "+strings.ReplaceAll(action.String(), "_", " "))
		}
		return nil, false
	}
	return m, true
}

func (h *Handler) notFoundOrInternal(c *gin.Context, err error, msg string) {
	if errors.Is(err, models.ErrNotFound) {
		response.NotFound(c, msg)
		return
	}
	h.logger.Error("load meeting", zap.Error(err))
	response.Internal(c, "failed to load meeting")
}
