package realtime

import (
	"sync"

	"github.com/google/uuid"
)

// DefaultMaxStrokes bounds the stroke log of one meeting.
const DefaultMaxStrokes = 2000

// Point is a normalized coordinate in [0,1]x[0,1].
type Point struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// Stroke is one line segment on the shared whiteboard.
type Stroke struct {
	ID    string  `json:"id"`
	Start Point   `json:"start"`
	End   Point   `json:"end"`
	Color string  `json:"color"`
	Size  float64 `json:"size"`
}

// WhiteboardState is the replayable snapshot sent to joiners.
type WhiteboardState struct {
	Active  bool     `json:"active"`
	Strokes []Stroke `json:"strokes"`
}

// Whiteboard is the in-memory stroke log of one meeting. Toggling visibility never clears it.
type Whiteboard struct {
	mu      sync.Mutex
	active  bool
	strokes []Stroke
	max     int
}

// NewWhiteboard creates an inactive, empty whiteboard holding at most max strokes.
func NewWhiteboard(max int) *Whiteboard {
	if max <= 0 {
		max = DefaultMaxStrokes
	}
	return &Whiteboard{max: max}
}

// Toggle sets the active flag.
func (w *Whiteboard) Toggle(active bool) {
	w.mu.Lock()
	w.active = active
	w.mu.Unlock()
}

// Draw appends s, assigning an id when it has none, and evicts the oldest
// strokes past the cap. It returns the stored stroke.
func (w *Whiteboard) Draw(s Stroke) Stroke {
	if s.ID == "" {
		s.ID = newStrokeID()
	}
	w.mu.Lock()
	defer w.mu.Unlock()
	w.strokes = append(w.strokes, s)
	if over := len(w.strokes) - w.max; over > 0 {
		w.strokes = append([]Stroke(nil), w.strokes[over:]...)
	}
	return s
}

// Clear removes every stroke.
func (w *Whiteboard) Clear() {
	w.mu.Lock()
	w.strokes = nil
	w.mu.Unlock()
}

// Erase removes the stroke with the given id and reports whether one was removed.
func (w *Whiteboard) Erase(id string) bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	for i, s := range w.strokes {
		if s.ID == id {
			w.strokes = append(w.strokes[:i:i], w.strokes[i+1:]...)
			return true
		}
	}
	return false
}

// Snapshot returns a copy of the current state.
func (w *Whiteboard) Snapshot() WhiteboardState {
	w.mu.Lock()
	defer w.mu.Unlock()
	strokes := make([]Stroke, len(w.strokes))
	copy(strokes, w.strokes)
	return WhiteboardState{Active: w.active, Strokes: strokes}
}

func newStrokeID() string {
	return "stroke_" + uuid.NewString()
}
