package realtime

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

const (
	// PingInterval and PongWait are used for heartbeat.
	PingInterval = 30
	PongWait     = 60

	defaultSendBuffer = 256
	defaultReadLimit  = 65536
	subscribeTimeout  = 5 * time.Second
)

var (
	ErrNotJoined    = errors.New("connection has not joined a meeting")
	ErrUnauthorized = errors.New("not allowed")
)

// Config tunes per-connection buffers and per-meeting state.
type Config struct {
	SendBuffer int
	ReadLimit  int64
	MaxStrokes int
}

func (c Config) withDefaults() Config {
	if c.SendBuffer <= 0 {
		c.SendBuffer = defaultSendBuffer
	}
	if c.ReadLimit <= 0 {
		c.ReadLimit = defaultReadLimit
	}
	if c.MaxStrokes <= 0 {
		c.MaxStrokes = DefaultMaxStrokes
	}
	return c
}

// RoomEvent is an event addressed to a meeting. Exclude skips one connection,
// Target restricts delivery to one connection.
type RoomEvent struct {
	Event   string          `json:"event"`
	Data    json.RawMessage `json:"data"`
	Exclude string          `json:"exclude,omitempty"`
	Target  string          `json:"target,omitempty"`
}

// RedisPublisher publishes meeting events for every instance, this one included.
type RedisPublisher interface {
	PublishRoomEvent(meetingID uuid.UUID, ev RoomEvent) error
}

// RedisSubscriber subscribes to a meeting's channel and invokes handler for incoming events.
type RedisSubscriber interface {
	// ctx bounds the subscribe round-trip only; the subscription lives until cancel.
	SubscribeRoom(ctx context.Context, meetingID uuid.UUID, handler func(ev RoomEvent)) (cancel func(), err error)
}

// Hub owns the connected state of every meeting served by this instance:
// the registry, the approval lobby, pending queues and whiteboards.
// Lock order is hub.mu before registry.mu.
type Hub struct {
	cfg      Config
	registry *Registry
	lobby    map[uuid.UUID]map[string]*Client
	pending  map[uuid.UUID]*PendingQueue
	boards   map[uuid.UUID]*Whiteboard
	subs     map[uuid.UUID]func()
	mu       sync.RWMutex
	meetings MeetingStore
	chat     ChatStore
	logger   *zap.Logger
	redis    RedisPublisher
	redisSub RedisSubscriber
	onJoin   PresenceHook
	onLeave  PresenceHook
}

// NewHub creates a hub. redisPub and redisSub may be nil for a single instance.
func NewHub(logger *zap.Logger, cfg Config, meetings MeetingStore, chat ChatStore, redisPub RedisPublisher, redisSub RedisSubscriber) *Hub {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Hub{
		cfg:      cfg.withDefaults(),
		registry: NewRegistry(),
		lobby:    make(map[uuid.UUID]map[string]*Client),
		pending:  make(map[uuid.UUID]*PendingQueue),
		boards:   make(map[uuid.UUID]*Whiteboard),
		subs:     make(map[uuid.UUID]func()),
		meetings: meetings,
		chat:     chat,
		logger:   logger,
		redis:    redisPub,
		redisSub: redisSub,
	}
}

// SetPresenceHooks installs attendance callbacks.
func (h *Hub) SetPresenceHooks(onJoin, onLeave PresenceHook) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.onJoin = onJoin
	h.onLeave = onLeave
}

func (h *Hub) hooks() (PresenceHook, PresenceHook) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.onJoin, h.onLeave
}

// PublishToRoom sends an event to every connection of the meeting on every instance.
func (h *Hub) PublishToRoom(meetingID uuid.UUID, event string, payload interface{}) {
	h.publish(meetingID, event, payload, "")
}

// Connected returns the connected pairs of the meeting on this instance.
func (h *Hub) Connected(meetingID uuid.UUID) []Presence {
	return h.registry.List(meetingID)
}

// AudienceCount returns the number of connections admitted to the meeting.
func (h *Hub) AudienceCount(meetingID uuid.UUID) int {
	return h.registry.Count(meetingID)
}

// PendingList returns the meeting's pending entrants, oldest first.
func (h *Hub) PendingList(meetingID uuid.UUID) []PendingEntry {
	h.mu.RLock()
	q := h.pending[meetingID]
	h.mu.RUnlock()
	if q == nil {
		return []PendingEntry{}
	}
	return q.List()
}

// TakePending removes userID from the pending queue for approval.
func (h *Hub) TakePending(meetingID, userID uuid.UUID) (PendingEntry, bool) {
	h.mu.RLock()
	q := h.pending[meetingID]
	h.mu.RUnlock()
	if q == nil {
		return PendingEntry{}, false
	}
	return q.Approve(userID)
}

// DenyPending removes userID from the pending queue.
func (h *Hub) DenyPending(meetingID, userID uuid.UUID) (PendingEntry, bool) {
	h.mu.RLock()
	q := h.pending[meetingID]
	h.mu.RUnlock()
	if q == nil {
		return PendingEntry{}, false
	}
	return q.Deny(userID)
}

// RestorePending puts back an entry whose approval could not be persisted.
// Nothing is restored once the identity has no connection left in the lobby.
func (h *Hub) RestorePending(meetingID uuid.UUID, e PendingEntry) {
	h.mu.Lock()
	defer h.mu.Unlock()
	for _, c := range h.lobby[meetingID] {
		if c.User.ID == e.User.ID {
			h.pendingQueueLocked(meetingID).Restore(e)
			return
		}
	}
}

// Whiteboard returns the meeting's whiteboard snapshot, or the empty default.
func (h *Hub) Whiteboard(meetingID uuid.UUID) WhiteboardState {
	h.mu.RLock()
	b := h.boards[meetingID]
	h.mu.RUnlock()
	if b == nil {
		return WhiteboardState{Strokes: []Stroke{}}
	}
	return b.Snapshot()
}

func (h *Hub) board(meetingID uuid.UUID) *Whiteboard {
	h.mu.Lock()
	defer h.mu.Unlock()
	b, ok := h.boards[meetingID]
	if !ok {
		b = NewWhiteboard(h.cfg.MaxStrokes)
		h.boards[meetingID] = b
	}
	return b
}

func (h *Hub) pendingQueueLocked(meetingID uuid.UUID) *PendingQueue {
	q, ok := h.pending[meetingID]
	if !ok {
		q = NewPendingQueue()
		h.pending[meetingID] = q
	}
	return q
}

// subscribe starts the Redis subscription for a meeting with local connections.
// The round-trip runs outside h.mu; the result is installed only if the meeting
// still has connections and no other subscription won the race.
func (h *Hub) subscribe(ctx context.Context, meetingID uuid.UUID) {
	if h.redisSub == nil || h.subscribed(meetingID) {
		return
	}
	ctx, cancelCtx := context.WithTimeout(ctx, subscribeTimeout)
	defer cancelCtx()
	cancel, err := h.redisSub.SubscribeRoom(ctx, meetingID, func(ev RoomEvent) {
		h.deliver(meetingID, ev)
	})
	if err != nil {
		h.logger.Warn("redis subscribe failed", zap.String("meeting_id", meetingID.String()), zap.Error(err))
		return
	}

	h.mu.Lock()
	_, exists := h.subs[meetingID]
	live := h.registry.Count(meetingID) > 0 || len(h.lobby[meetingID]) > 0
	if !exists && live {
		h.subs[meetingID] = cancel
	}
	h.mu.Unlock()
	if exists || !live {
		cancel()
	}
}

// discardLocked drops all ephemeral state of a meeting that has no connections left.
func (h *Hub) discardLocked(meetingID uuid.UUID) {
	delete(h.boards, meetingID)
	delete(h.pending, meetingID)
	delete(h.lobby, meetingID)
	if cancel, ok := h.subs[meetingID]; ok {
		cancel()
		delete(h.subs, meetingID)
	}
	h.logger.Debug("meeting state discarded", zap.String("meeting_id", meetingID.String()))
}

func (h *Hub) subscribed(meetingID uuid.UUID) bool {
	h.mu.RLock()
	defer h.mu.RUnlock()
	_, ok := h.subs[meetingID]
	return ok
}

func (h *Hub) lobbyClients(meetingID uuid.UUID) []*Client {
	h.mu.RLock()
	defer h.mu.RUnlock()
	l := h.lobby[meetingID]
	out := make([]*Client, 0, len(l))
	for _, c := range l {
		out = append(out, c)
	}
	return out
}

// publish fans an event out to the meeting. With Redis the subscriber performs
// local delivery once for all instances; without it, delivery is local.
func (h *Hub) publish(meetingID uuid.UUID, event string, payload interface{}, exclude string) {
	data, err := marshalPayload(payload)
	if err != nil {
		h.logger.Error("marshal event", zap.String("event", event), zap.Error(err))
		return
	}
	ev := RoomEvent{Event: event, Data: data, Exclude: exclude}
	if h.redis != nil {
		err := h.redis.PublishRoomEvent(meetingID, ev)
		if err == nil && h.subscribed(meetingID) {
			return
		}
		if err != nil {
			h.logger.Warn("redis publish failed, delivering locally", zap.String("event", event), zap.Error(err))
		}
	}
	h.deliver(meetingID, ev)
}

// sendTo delivers an event to one connection of the meeting, locally or through Redis.
func (h *Hub) sendTo(meetingID uuid.UUID, connID, event string, payload interface{}) bool {
	data, err := marshalPayload(payload)
	if err != nil {
		h.logger.Error("marshal event", zap.String("event", event), zap.Error(err))
		return false
	}
	if c, ok := h.registry.Client(meetingID, connID); ok {
		c.enqueue(WSMessage{Event: event, Data: data})
		return true
	}
	if h.redis == nil {
		return false
	}
	if err := h.redis.PublishRoomEvent(meetingID, RoomEvent{Event: event, Data: data, Target: connID}); err != nil {
		h.logger.Warn("redis publish failed", zap.String("event", event), zap.Error(err))
		return false
	}
	return true
}

// deliver writes an event to the local connections it is addressed to.
func (h *Hub) deliver(meetingID uuid.UUID, ev RoomEvent) {
	msg := WSMessage{Event: ev.Event, Data: ev.Data}
	if ev.Target != "" {
		if c, ok := h.registry.Client(meetingID, ev.Target); ok {
			c.enqueue(msg)
		}
		return
	}
	for _, c := range h.registry.Clients(meetingID) {
		if c.ID != ev.Exclude {
			c.enqueue(msg)
		}
	}
	if lobbyEvents[ev.Event] {
		for _, c := range h.lobbyClients(meetingID) {
			if c.ID != ev.Exclude {
				c.enqueue(msg)
			}
		}
	}
}

func marshalPayload(payload interface{}) (json.RawMessage, error) {
	switch v := payload.(type) {
	case nil:
		return json.RawMessage(`{}`), nil
	case json.RawMessage:
		return v, nil
	case []byte:
		return v, nil
	}
	return json.Marshal(payload)
}

func now() time.Time { return time.Now().UTC() }
