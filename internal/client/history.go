package client

import (
	"image"
)

// History is the local undo/redo stack of full surface snapshots. It only
// ever records what this participant did; undo restores pixels and never
// touches the network.
type History struct {
	surface   Surface
	snapshots []image.Image
	step      int
	limit     int
}

// NewHistory creates a history holding the surface's current state as its
// first snapshot.
func NewHistory(surface Surface, limit int) *History {
	if limit < 1 {
		limit = 1
	}
	h := &History{surface: surface, limit: limit}
	h.Reset()
	return h
}

// Commit captures the surface. Snapshots beyond the current step are
// discarded first, then the oldest is evicted if the stack is over limit.
func (h *History) Commit() {
	clear(h.snapshots[h.step+1:])
	h.snapshots = h.snapshots[:h.step+1]
	h.snapshots = append(h.snapshots, h.surface.Snapshot())

	if over := len(h.snapshots) - h.limit; over > 0 {
		n := copy(h.snapshots, h.snapshots[over:])
		clear(h.snapshots[n:])
		h.snapshots = h.snapshots[:n]
	}
	h.step = len(h.snapshots) - 1
}

// Undo steps back one snapshot. It reports false at the oldest one.
func (h *History) Undo() bool {
	if h.step <= 0 {
		return false
	}
	h.step--
	h.surface.Restore(h.snapshots[h.step])
	return true
}

// Redo steps forward one snapshot. It reports false at the newest one.
func (h *History) Redo() bool {
	if h.step >= len(h.snapshots)-1 {
		return false
	}
	h.step++
	h.surface.Restore(h.snapshots[h.step])
	return true
}

// Reset drops every snapshot and starts over from the current surface.
func (h *History) Reset() {
	clear(h.snapshots)
	h.snapshots = append(h.snapshots[:0], h.surface.Snapshot())
	h.step = 0
}

func (h *History) Len() int  { return len(h.snapshots) }
func (h *History) Step() int { return h.step }
