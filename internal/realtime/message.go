package realtime

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/minimeet/backend/internal/models"
)

var (
	ErrUnknownEvent = errors.New("unknown event")
	ErrMalformed    = errors.New("malformed message")
)

// WSMessage is the WebSocket message envelope used in both directions.
type WSMessage struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data,omitempty"`
}

// Client -> server events.
const (
	EventJoinMeeting            = "join-meeting"
	EventOffer                  = "offer"
	EventAnswer                 = "answer"
	EventICECandidate           = "ice-candidate"
	EventToggleCamera           = "toggle-camera"
	EventToggleMicrophone       = "toggle-microphone"
	EventStartScreenShare       = "start-screen-share"
	EventStopScreenShare        = "stop-screen-share"
	EventWhiteboardToggle       = "whiteboard-toggle"
	EventWhiteboardDraw         = "whiteboard-draw"
	EventWhiteboardClear        = "whiteboard-clear"
	EventWhiteboardErase        = "whiteboard-erase"
	EventChatMessage            = "chat-message"
	EventRaiseHand              = "raise-hand"
	EventLowerHand              = "lower-hand"
	EventEmojiReaction          = "emoji-reaction"
	EventMuteUser               = "mute-user"
	EventSetCoHost              = "set-co-host"
	EventRemoveParticipant      = "remove-participant"
	EventDisableChat            = "disable-chat"
	EventEnableChat             = "enable-chat"
	EventDisableScreenShare     = "disable-screen-share"
	EventEnableScreenShare      = "enable-screen-share"
	EventSpotlightUser          = "spotlight-user"
	EventLeaveMeeting           = "leave-meeting"
	EventCaptionText            = "caption-text"
	EventRequestApproval        = "request-approval"
	EventGetParticipants        = "get-participants"
	EventGetPendingParticipants = "get-pending-participants"
	EventPing                   = "ping"
)

// Server -> client events. Events that share a name with a client event
// (offer, answer, ice-candidate, whiteboard-*, chat-message, emoji-reaction,
// caption-text) reuse the constants above.
const (
	EventParticipantsList        = "participants-list"
	EventUserJoined              = "user-joined"
	EventNewParticipantInfo      = "new-participant-info"
	EventUserLeft                = "user-left"
	EventCameraToggled           = "camera-toggled"
	EventMicrophoneToggled       = "microphone-toggled"
	EventScreenShareStarted      = "screen-share-started"
	EventScreenShareStopped      = "screen-share-stopped"
	EventWhiteboardState         = "whiteboard-state"
	EventHandRaised              = "hand-raised"
	EventHandLowered             = "hand-lowered"
	EventUserMuted               = "user-muted"
	EventCoHostAdded             = "co-host-added"
	EventCoHostRemoved           = "co-host-removed"
	EventParticipantRemoved      = "participant-removed"
	EventChatDisabled            = "chat-disabled"
	EventChatEnabled             = "chat-enabled"
	EventScreenShareDisabled     = "screen-share-disabled"
	EventScreenShareEnabled      = "screen-share-enabled"
	EventUserSpotlighted         = "user-spotlighted"
	EventParticipantRequesting   = "participant-requesting"
	EventWaitingApproval         = "waiting-approval"
	EventPendingParticipantsList = "pending-participants-list"
	EventParticipantApproved     = "participant-approved"
	EventParticipantDenied       = "participant-denied"
	EventMeetingLocked           = "meeting-locked"
	EventMeetingLockChanged      = "meeting-lock-changed"
	EventMeetingEnded            = "meeting-ended"
	EventPollCreated             = "poll-created"
	EventPollUpdated             = "poll-updated"
	EventPollEnded               = "poll-ended"
	EventQuestionAsked           = "question-asked"
	EventQuestionAnswered        = "question-answered"
	EventQuestionUpvoted         = "question-upvoted"
	EventBreakoutCreated         = "breakout-created"
	EventUserJoinedBreakout      = "user-joined-breakout"
	EventUserLeftBreakout        = "user-left-breakout"
	EventPong                    = "pong"
)

// lobbyEvents also reach connections waiting for approval.
var lobbyEvents = map[string]bool{
	EventParticipantApproved: true,
	EventParticipantDenied:   true,
	EventMeetingEnded:        true,
	EventMeetingLockChanged:  true,
}

// inbound is implemented by every decoded client message.
type inbound interface {
	event() string
}

type joinMeeting struct {
	MeetingID uuid.UUID `json:"meeting_id"`
}

// signalMessage covers offer, answer and ice-candidate. Payloads are opaque.
type signalMessage struct {
	Kind      string          `json:"-"`
	TargetID  string          `json:"target_id"`
	Offer     json.RawMessage `json:"offer,omitempty"`
	Answer    json.RawMessage `json:"answer,omitempty"`
	Candidate json.RawMessage `json:"candidate,omitempty"`
}

type mediaToggle struct {
	Kind    string `json:"-"`
	Enabled bool   `json:"enabled"`
}

type screenShare struct {
	Kind     string `json:"-"`
	StreamID string `json:"stream_id,omitempty"`
}

type whiteboardToggle struct {
	Active bool `json:"active"`
}

type whiteboardDraw struct {
	Stroke *Stroke `json:"stroke"`
}

type whiteboardClear struct{}

type whiteboardErase struct {
	StrokeID string `json:"stroke_id"`
}

type chatMessage struct {
	Message string `json:"message"`
	Type    string `json:"type,omitempty"`
}

type handSignal struct {
	Kind string `json:"-"`
}

type emojiReaction struct {
	Emoji string `json:"emoji"`
}

// targetAction covers host controls aimed at one identity.
type targetAction struct {
	Kind         string    `json:"-"`
	TargetUserID uuid.UUID `json:"target_user_id"`
}

// roomToggle covers enable/disable of chat and screen share.
type roomToggle struct {
	Kind string `json:"-"`
}

type leaveMeeting struct{}

type captionText struct {
	Text      string `json:"text"`
	Timestamp int64  `json:"timestamp"`
}

type requestApproval struct{}

type getParticipants struct{}

type getPendingParticipants struct{}

type ping struct{}

func (*joinMeeting) event() string            { return EventJoinMeeting }
func (m *signalMessage) event() string        { return m.Kind }
func (m *mediaToggle) event() string          { return m.Kind }
func (m *screenShare) event() string          { return m.Kind }
func (*whiteboardToggle) event() string       { return EventWhiteboardToggle }
func (*whiteboardDraw) event() string         { return EventWhiteboardDraw }
func (*whiteboardClear) event() string        { return EventWhiteboardClear }
func (*whiteboardErase) event() string        { return EventWhiteboardErase }
func (*chatMessage) event() string            { return EventChatMessage }
func (m *handSignal) event() string           { return m.Kind }
func (*emojiReaction) event() string          { return EventEmojiReaction }
func (m *targetAction) event() string         { return m.Kind }
func (m *roomToggle) event() string           { return m.Kind }
func (*leaveMeeting) event() string           { return EventLeaveMeeting }
func (*captionText) event() string            { return EventCaptionText }
func (*requestApproval) event() string        { return EventRequestApproval }
func (*getParticipants) event() string        { return EventGetParticipants }
func (*getPendingParticipants) event() string { return EventGetPendingParticipants }
func (*ping) event() string                   { return EventPing }

// decode maps an envelope to its typed message.
func decode(msg WSMessage) (inbound, error) {
	var in inbound
	switch msg.Event {
	case EventJoinMeeting:
		in = &joinMeeting{}
	case EventOffer, EventAnswer, EventICECandidate:
		in = &signalMessage{Kind: msg.Event}
	case EventToggleCamera, EventToggleMicrophone:
		in = &mediaToggle{Kind: msg.Event}
	case EventStartScreenShare, EventStopScreenShare:
		in = &screenShare{Kind: msg.Event}
	case EventWhiteboardToggle:
		in = &whiteboardToggle{}
	case EventWhiteboardDraw:
		in = &whiteboardDraw{}
	case EventWhiteboardClear:
		in = &whiteboardClear{}
	case EventWhiteboardErase:
		in = &whiteboardErase{}
	case EventChatMessage:
		in = &chatMessage{}
	case EventRaiseHand, EventLowerHand:
		in = &handSignal{Kind: msg.Event}
	case EventEmojiReaction:
		in = &emojiReaction{}
	case EventMuteUser, EventSetCoHost, EventRemoveParticipant, EventSpotlightUser:
		in = &targetAction{Kind: msg.Event}
	case EventDisableChat, EventEnableChat, EventDisableScreenShare, EventEnableScreenShare:
		in = &roomToggle{Kind: msg.Event}
	case EventLeaveMeeting:
		in = &leaveMeeting{}
	case EventCaptionText:
		in = &captionText{}
	case EventRequestApproval:
		in = &requestApproval{}
	case EventGetParticipants:
		in = &getParticipants{}
	case EventGetPendingParticipants:
		in = &getPendingParticipants{}
	case EventPing:
		in = &ping{}
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownEvent, msg.Event)
	}
	if len(msg.Data) > 0 && string(msg.Data) != "null" {
		if err := json.Unmarshal(msg.Data, in); err != nil {
			return nil, fmt.Errorf("%w: %s: %v", ErrMalformed, msg.Event, err)
		}
	}
	return in, nil
}

// Outbound payloads.

// Presence is one connected (identity, connection) pair.
type Presence struct {
	UserID   uuid.UUID `json:"user_id"`
	Name     string    `json:"name,omitempty"`
	SocketID string    `json:"socket_id"`
}

// RosterEntry is one row of a participants-list. SocketID is nil for durable
// participants that are not currently connected.
type RosterEntry struct {
	UserID   uuid.UUID  `json:"user_id"`
	Name     string     `json:"name,omitempty"`
	SocketID *string    `json:"socket_id"`
	JoinedAt *time.Time `json:"joined_at,omitempty"`
}

type participantsList struct {
	Participants []RosterEntry `json:"participants"`
}

type newParticipantInfo struct {
	UserID   uuid.UUID       `json:"user_id"`
	User     models.Identity `json:"user"`
	SocketID string          `json:"socket_id"`
}

type signalRelay struct {
	Offer      json.RawMessage `json:"offer,omitempty"`
	Answer     json.RawMessage `json:"answer,omitempty"`
	Candidate  json.RawMessage `json:"candidate,omitempty"`
	From       string          `json:"from"`
	FromUserID uuid.UUID       `json:"from_user_id"`
}

type userEvent struct {
	UserID uuid.UUID `json:"user_id"`
}

type toggledEvent struct {
	UserID  uuid.UUID `json:"user_id"`
	Enabled bool      `json:"enabled"`
}

type screenShareEvent struct {
	UserID   uuid.UUID `json:"user_id"`
	StreamID string    `json:"stream_id,omitempty"`
}

type reactionEvent struct {
	UserID uuid.UUID `json:"user_id"`
	Emoji  string    `json:"emoji"`
}

type captionEvent struct {
	UserID    uuid.UUID `json:"user_id"`
	Name      string    `json:"name,omitempty"`
	Text      string    `json:"text"`
	Timestamp int64     `json:"timestamp"`
}

type whiteboardToggled struct {
	Active bool `json:"active"`
}

type strokeEvent struct {
	Stroke Stroke `json:"stroke"`
}

type eraseEvent struct {
	StrokeID string `json:"stroke_id"`
}

// ApprovalEvent is broadcast when a pending entrant is approved or denied.
type ApprovalEvent struct {
	UserID uuid.UUID       `json:"user_id"`
	User   models.Identity `json:"user"`
}

type waitingApproval struct {
	MeetingID   uuid.UUID `json:"meeting_id"`
	RequestedAt time.Time `json:"requested_at"`
}

type pendingList struct {
	PendingParticipants []PendingEntry `json:"pending_participants"`
}

// Notice carries a human-readable message about the meeting.
type Notice struct {
	MeetingID uuid.UUID `json:"meeting_id"`
	Message   string    `json:"message"`
}
