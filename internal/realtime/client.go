package realtime

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/minimeet/backend/internal/models"
)

const (
	writeWait     = 10 * time.Second
	handleTimeout = 15 * time.Second
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		return true // allow all origins in dev; restrict in production
	},
}

// IdentifyFunc resolves a connection token to the identity it authenticates.
type IdentifyFunc func(ctx context.Context, token string) (models.Identity, error)

// Client is a single WebSocket connection. Its meeting is set once by join and
// cleared once by leave.
type Client struct {
	ID     string
	User   models.Identity
	hub    *Hub
	conn   *websocket.Conn
	send   chan WSMessage
	done   chan struct{}
	logger *zap.Logger

	mu          sync.Mutex
	meetingID   uuid.UUID
	admitted    bool
	canModerate bool
}

func newClient(hub *Hub, conn *websocket.Conn, user models.Identity) *Client {
	id := uuid.NewString()
	return &Client{
		ID:     id,
		User:   user,
		hub:    hub,
		conn:   conn,
		send:   make(chan WSMessage, hub.cfg.SendBuffer),
		done:   make(chan struct{}),
		logger: hub.logger.With(zap.String("client_id", id), zap.String("user_id", user.ID.String())),
	}
}

// Meeting returns the meeting the connection is in and whether it was admitted
// past the approval lobby.
func (c *Client) Meeting() (uuid.UUID, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.meetingID, c.admitted
}

// CanModerate reports whether the connection may change shared surfaces.
func (c *Client) CanModerate() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.canModerate
}

func (c *Client) place(meetingID uuid.UUID, admitted, canModerate bool) {
	c.mu.Lock()
	c.meetingID = meetingID
	c.admitted = admitted
	c.canModerate = canModerate
	c.mu.Unlock()
}

func (c *Client) setModerator(v bool) {
	c.mu.Lock()
	c.canModerate = v
	c.mu.Unlock()
}

// detach clears the meeting mapping. Only the first caller gets ok.
func (c *Client) detach() (meetingID uuid.UUID, admitted, ok bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.meetingID == uuid.Nil {
		return uuid.Nil, false, false
	}
	meetingID, admitted = c.meetingID, c.admitted
	c.meetingID = uuid.Nil
	c.admitted = false
	c.canModerate = false
	return meetingID, admitted, true
}

// enqueue never blocks; a full buffer drops the message.
func (c *Client) enqueue(msg WSMessage) {
	select {
	case c.send <- msg:
	default:
		c.logger.Warn("send buffer full, dropping message", zap.String("event", msg.Event))
	}
}

func (c *Client) sendEvent(event string, payload interface{}) {
	data, err := marshalPayload(payload)
	if err != nil {
		c.logger.Error("marshal event", zap.String("event", event), zap.Error(err))
		return
	}
	c.enqueue(WSMessage{Event: event, Data: data})
}

// ServeWs handles the WebSocket upgrade and runs the client loop.
// The token comes in the query string; the meeting is chosen by a join-meeting message.
func ServeWs(hub *Hub, logger *zap.Logger, identify IdentifyFunc) gin.HandlerFunc {
	return func(c *gin.Context) {
		token := c.Query("token")
		if token == "" {
			c.JSON(http.StatusBadRequest, gin.H{"error": "token required"})
			return
		}
		user, err := identify(c.Request.Context(), token)
		if err != nil {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid token"})
			return
		}

		conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
		if err != nil {
			logger.Warn("websocket upgrade failed", zap.Error(err))
			return
		}

		client := newClient(hub, conn, user)
		client.logger.Debug("client connected")
		go client.writePump()
		client.readPump()
	}
}

func (c *Client) readPump() {
	defer func() {
		ctx, cancel := context.WithTimeout(context.Background(), handleTimeout)
		c.hub.leave(ctx, c)
		cancel()
		close(c.done)
		_ = c.conn.Close()
		c.logger.Debug("client disconnected")
	}()

	c.conn.SetReadLimit(c.hub.cfg.ReadLimit)
	_ = c.conn.SetReadDeadline(time.Now().Add(PongWait * time.Second))
	c.conn.SetPongHandler(func(string) error {
		_ = c.conn.SetReadDeadline(time.Now().Add(PongWait * time.Second))
		return nil
	})

	for {
		_, raw, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				c.logger.Debug("read error", zap.Error(err))
			}
			return
		}
		_ = c.conn.SetReadDeadline(time.Now().Add(PongWait * time.Second))

		var msg WSMessage
		if err := json.Unmarshal(raw, &msg); err != nil {
			c.logger.Debug("invalid envelope", zap.Error(err))
			continue
		}
		ctx, cancel := context.WithTimeout(context.Background(), handleTimeout)
		c.hub.handle(ctx, c, msg)
		cancel()
	}
}

func (c *Client) writePump() {
	ticker := time.NewTicker(PingInterval * time.Second)
	defer func() {
		ticker.Stop()
		_ = c.conn.Close()
	}()

	for {
		select {
		case <-c.done:
			_ = c.conn.WriteMessage(websocket.CloseMessage, []byte{})
			return
		case msg := <-c.send:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteJSON(msg); err != nil {
				return
			}
		case <-ticker.C:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
