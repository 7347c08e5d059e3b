package realtime

import (
	"fmt"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWhiteboardCapEvictsOldest(t *testing.T) {
	w := NewWhiteboard(DefaultMaxStrokes)
	for i := 1; i <= DefaultMaxStrokes+1; i++ {
		w.Draw(Stroke{ID: fmt.Sprintf("s%d", i)})
	}

	snap := w.Snapshot()
	require.Len(t, snap.Strokes, DefaultMaxStrokes)
	assert.Equal(t, "s2", snap.Strokes[0].ID)
	assert.Equal(t, fmt.Sprintf("s%d", DefaultMaxStrokes+1), snap.Strokes[len(snap.Strokes)-1].ID)
	for i, s := range snap.Strokes {
		assert.Equal(t, fmt.Sprintf("s%d", i+2), s.ID)
	}
}

func TestWhiteboardDrawAssignsID(t *testing.T) {
	w := NewWhiteboard(10)
	s := w.Draw(Stroke{Start: Point{0.1, 0.2}, End: Point{0.3, 0.4}, Color: "#000", Size: 2})
	assert.True(t, strings.HasPrefix(s.ID, "stroke_"))

	kept := w.Draw(Stroke{ID: "mine"})
	assert.Equal(t, "mine", kept.ID)
}

func TestWhiteboardEraseTwice(t *testing.T) {
	w := NewWhiteboard(10)
	w.Draw(Stroke{ID: "a"})
	w.Draw(Stroke{ID: "b"})

	assert.True(t, w.Erase("a"))
	assert.False(t, w.Erase("a"))
	assert.Equal(t, []Stroke{{ID: "b"}}, w.Snapshot().Strokes)
}

func TestWhiteboardToggleKeepsStrokes(t *testing.T) {
	w := NewWhiteboard(10)
	w.Toggle(true)
	w.Draw(Stroke{ID: "a"})
	w.Toggle(false)
	w.Toggle(true)

	snap := w.Snapshot()
	assert.True(t, snap.Active)
	assert.Len(t, snap.Strokes, 1)

	w.Clear()
	assert.Empty(t, w.Snapshot().Strokes)
}

func TestWhiteboardSnapshotIsACopy(t *testing.T) {
	w := NewWhiteboard(10)
	w.Draw(Stroke{ID: "a"})
	snap := w.Snapshot()
	snap.Strokes[0].ID = "changed"
	assert.Equal(t, "a", w.Snapshot().Strokes[0].ID)
}
