package models

import (
	"encoding/json"
	"fmt"
)

type OpType string

const (
	OpStart OpType = "start"
	OpDraw  OpType = "draw"
	OpEnd   OpType = "end"
	OpClear OpType = "clear"
)

type Tool string

const (
	ToolInk   Tool = "ink"
	ToolErase Tool = "erase"
)

// Operation is one atomic edit primitive. Operations are immutable once
// they have been appended to a room's log; the log's receipt order is
// authoritative, Timestamp is the producer's clock and only informational.
type Operation struct {
	Type      OpType  `json:"type"`
	X         float64 `json:"x"`
	Y         float64 `json:"y"`
	Tool      Tool    `json:"tool"`
	Color     string  `json:"color"`
	Width     int     `json:"width"`
	Timestamp int64   `json:"timestamp"`

	// Set by the server when the operation is logged.
	UserID     string `json:"userId,omitempty"`
	ReceivedAt int64  `json:"receivedAt,omitempty"`
}

// HasPoint reports whether the operation carries surface coordinates.
func (op Operation) HasPoint() bool {
	return op.Type == OpStart || op.Type == OpDraw
}

type wireOperation struct {
	Type       OpType   `json:"type"`
	X          *float64 `json:"x,omitempty"`
	Y          *float64 `json:"y,omitempty"`
	Tool       Tool     `json:"tool,omitempty"`
	Color      string   `json:"color,omitempty"`
	Width      int      `json:"width,omitempty"`
	Timestamp  int64    `json:"timestamp"`
	UserID     string   `json:"userId,omitempty"`
	ReceivedAt int64    `json:"receivedAt,omitempty"`
}

// MarshalJSON omits coordinates on end and clear operations.
func (op Operation) MarshalJSON() ([]byte, error) {
	w := wireOperation{
		Type:       op.Type,
		Tool:       op.Tool,
		Color:      op.Color,
		Width:      op.Width,
		Timestamp:  op.Timestamp,
		UserID:     op.UserID,
		ReceivedAt: op.ReceivedAt,
	}
	if op.HasPoint() {
		x, y := op.X, op.Y
		w.X, w.Y = &x, &y
	}
	return json.Marshal(w)
}

// UnmarshalJSON rejects operations with an unknown type or tool, and
// start/draw operations without both coordinates.
func (op *Operation) UnmarshalJSON(data []byte) error {
	var w wireOperation
	if err := json.Unmarshal(data, &w); err != nil {
		return err
	}

	switch w.Type {
	case OpStart, OpDraw, OpEnd, OpClear:
	case "":
		return fmt.Errorf("operation: %w: type", ErrMissingField)
	default:
		return fmt.Errorf("operation: unknown type %q", w.Type)
	}

	switch w.Tool {
	case ToolInk, ToolErase:
	case "":
		w.Tool = ToolInk
	default:
		return fmt.Errorf("operation: unknown tool %q", w.Tool)
	}

	*op = Operation{
		Type:       w.Type,
		Tool:       w.Tool,
		Color:      w.Color,
		Width:      w.Width,
		Timestamp:  w.Timestamp,
		UserID:     w.UserID,
		ReceivedAt: w.ReceivedAt,
	}

	if op.HasPoint() {
		if w.X == nil || w.Y == nil {
			return fmt.Errorf("operation %s: %w: x,y", w.Type, ErrMissingField)
		}
	}
	if w.X != nil {
		op.X = *w.X
	}
	if w.Y != nil {
		op.Y = *w.Y
	}
	return nil
}
