package realtime

import (
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/minimeet/backend/internal/models"
)

// PendingEntry is an identity waiting for host approval.
type PendingEntry struct {
	User        models.Identity `json:"user"`
	RequestedAt time.Time       `json:"requested_at"`
}

// PendingQueue is the per-meeting set of identities awaiting a decision.
// An identity appears at most once.
type PendingQueue struct {
	mu      sync.Mutex
	entries map[uuid.UUID]PendingEntry
}

// NewPendingQueue creates an empty queue.
func NewPendingQueue() *PendingQueue {
	return &PendingQueue{entries: make(map[uuid.UUID]PendingEntry)}
}

// Add records the entry unless the identity is already waiting. Reports whether it was added.
func (q *PendingQueue) Add(e PendingEntry) bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	if _, ok := q.entries[e.User.ID]; ok {
		return false
	}
	q.entries[e.User.ID] = e
	return true
}

// Get returns the entry for userID.
func (q *PendingQueue) Get(userID uuid.UUID) (PendingEntry, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()
	e, ok := q.entries[userID]
	return e, ok
}

// Approve removes the entry and reports whether it existed.
func (q *PendingQueue) Approve(userID uuid.UUID) (PendingEntry, bool) {
	return q.remove(userID)
}

// Deny removes the entry and reports whether it existed.
func (q *PendingQueue) Deny(userID uuid.UUID) (PendingEntry, bool) {
	return q.remove(userID)
}

// Restore puts back an entry taken by Approve, keeping its original request time.
func (q *PendingQueue) Restore(e PendingEntry) {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.entries[e.User.ID] = e
}

// List returns the entries ordered by request time, oldest first.
func (q *PendingQueue) List() []PendingEntry {
	q.mu.Lock()
	out := make([]PendingEntry, 0, len(q.entries))
	for _, e := range q.entries {
		out = append(out, e)
	}
	q.mu.Unlock()
	sort.Slice(out, func(i, j int) bool {
		if out[i].RequestedAt.Equal(out[j].RequestedAt) {
			return out[i].User.ID.String() < out[j].User.ID.String()
		}
		return out[i].RequestedAt.Before(out[j].RequestedAt)
	})
	return out
}

// Len returns the number of waiting identities.
func (q *PendingQueue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.entries)
}

func (q *PendingQueue) remove(userID uuid.UUID) (PendingEntry, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()
	e, ok := q.entries[userID]
	if ok {
		delete(q.entries, userID)
	}
	return e, ok
}
