package realtime

import (
	"sync"

	"github.com/google/uuid"
)

// room is the connected shadow of one meeting.
type room struct {
	clients map[string]*Client
	order   []string               // connection ids in join order
	byUser  map[uuid.UUID][]string // connection ids per identity, latest last
}

// Registry maps meetings to their connected clients.
// Registration and lookups are idempotent; missing keys are no-ops.
type Registry struct {
	mu    sync.RWMutex
	rooms map[uuid.UUID]*room
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{rooms: make(map[uuid.UUID]*room)}
}

// Register adds c to the meeting. A later connection of the same identity
// becomes the routing target without evicting the earlier one.
func (r *Registry) Register(meetingID uuid.UUID, c *Client) {
	r.mu.Lock()
	defer r.mu.Unlock()
	rm, ok := r.rooms[meetingID]
	if !ok {
		rm = &room{clients: make(map[string]*Client), byUser: make(map[uuid.UUID][]string)}
		r.rooms[meetingID] = rm
	}
	if _, exists := rm.clients[c.ID]; exists {
		return
	}
	rm.clients[c.ID] = c
	rm.order = append(rm.order, c.ID)
	rm.byUser[c.User.ID] = append(rm.byUser[c.User.ID], c.ID)
}

// Unregister removes the connection and returns how many remain in the meeting.
func (r *Registry) Unregister(meetingID uuid.UUID, connID string) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	rm, ok := r.rooms[meetingID]
	if !ok {
		return 0
	}
	c, ok := rm.clients[connID]
	if !ok {
		return len(rm.clients)
	}
	delete(rm.clients, connID)
	rm.order = without(rm.order, connID)
	if ids := without(rm.byUser[c.User.ID], connID); len(ids) > 0 {
		rm.byUser[c.User.ID] = ids
	} else {
		delete(rm.byUser, c.User.ID)
	}
	if len(rm.clients) == 0 {
		delete(r.rooms, meetingID)
		return 0
	}
	return len(rm.clients)
}

// List returns the connected pairs of the meeting in join order.
func (r *Registry) List(meetingID uuid.UUID) []Presence {
	r.mu.RLock()
	defer r.mu.RUnlock()
	rm, ok := r.rooms[meetingID]
	if !ok {
		return nil
	}
	out := make([]Presence, 0, len(rm.order))
	for _, id := range rm.order {
		c := rm.clients[id]
		out = append(out, Presence{UserID: c.User.ID, Name: c.User.Name, SocketID: c.ID})
	}
	return out
}

// Find returns the latest live connection id of userID in the meeting.
func (r *Registry) Find(meetingID, userID uuid.UUID) (string, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	rm, ok := r.rooms[meetingID]
	if !ok {
		return "", false
	}
	ids := rm.byUser[userID]
	if len(ids) == 0 {
		return "", false
	}
	return ids[len(ids)-1], true
}

// Client returns the connection with the given id.
func (r *Registry) Client(meetingID uuid.UUID, connID string) (*Client, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	rm, ok := r.rooms[meetingID]
	if !ok {
		return nil, false
	}
	c, ok := rm.clients[connID]
	return c, ok
}

// Clients returns a snapshot of the meeting's connections in join order.
func (r *Registry) Clients(meetingID uuid.UUID) []*Client {
	r.mu.RLock()
	defer r.mu.RUnlock()
	rm, ok := r.rooms[meetingID]
	if !ok {
		return nil
	}
	out := make([]*Client, 0, len(rm.order))
	for _, id := range rm.order {
		out = append(out, rm.clients[id])
	}
	return out
}

// ClientsOf returns every live connection of userID in the meeting.
func (r *Registry) ClientsOf(meetingID, userID uuid.UUID) []*Client {
	r.mu.RLock()
	defer r.mu.RUnlock()
	rm, ok := r.rooms[meetingID]
	if !ok {
		return nil
	}
	ids := rm.byUser[userID]
	out := make([]*Client, 0, len(ids))
	for _, id := range ids {
		out = append(out, rm.clients[id])
	}
	return out
}

// Count returns the number of connections in the meeting.
func (r *Registry) Count(meetingID uuid.UUID) int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if rm, ok := r.rooms[meetingID]; ok {
		return len(rm.clients)
	}
	return 0
}

func without(ids []string, id string) []string {
	out := ids[:0]
	for _, v := range ids {
		if v != id {
			out = append(out, v)
		}
	}
	return out
}
