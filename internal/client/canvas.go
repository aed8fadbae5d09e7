package client

import (
	"context"
	"image"
	"log/slog"
	"time"

	"github.com/Hari-Krishnan-N/collaborative-canvas/internal/config"
	"github.com/Hari-Krishnan-N/collaborative-canvas/internal/models"
)

// Sender delivers outbound messages. *Connection implements it.
type Sender interface {
	Send(ctx context.Context, msg models.Message) error
	UserID() string
}

type Point struct {
	X, Y float64
}

type CanvasOptions struct {
	BatchInterval time.Duration
	HistoryLimit  int
	Color         string
	Width         int
}

// Canvas serializes every surface mutation, local or remote, through one
// apply loop so that a remote stroke is never drawn into the middle of a
// local one.
type Canvas struct {
	surface  Surface
	sender   Sender
	history  *History
	batcher  *Batcher
	presence *Presence
	pens     *models.PenTracker

	tool  models.Tool
	color string
	width int

	ctx   context.Context
	queue chan func()
	done  chan struct{}
	now   func() time.Time
}

func NewCanvas(surface Surface, sender Sender, opts CanvasOptions) *Canvas {
	if opts.BatchInterval <= 0 {
		opts.BatchInterval = config.BatchInterval
	}
	if opts.HistoryLimit <= 0 {
		opts.HistoryLimit = config.MaxHistorySnapshots
	}
	if opts.Color == "" {
		opts.Color = config.DefaultColor
	}
	if opts.Width <= 0 {
		opts.Width = config.DefaultWidth
	}

	c := &Canvas{
		surface:  surface,
		sender:   sender,
		history:  NewHistory(surface, opts.HistoryLimit),
		presence: NewPresence(),
		pens:     models.NewPenTracker(),
		tool:     models.ToolInk,
		color:    opts.Color,
		width:    opts.Width,
		ctx:      context.Background(),
		queue:    make(chan func()),
		done:     make(chan struct{}),
		now:      time.Now,
	}
	c.batcher = NewBatcher(opts.BatchInterval, c.send)
	return c
}

// Run applies queued work until ctx is cancelled.
func (c *Canvas) Run(ctx context.Context) {
	c.ctx = ctx
	defer close(c.done)

	for {
		select {
		case fn := <-c.queue:
			fn()
		case <-ctx.Done():
			return
		}
	}
}

// do runs fn on the apply loop and waits for it. It reports false if the
// loop has stopped.
func (c *Canvas) do(fn func()) bool {
	finished := make(chan struct{})
	select {
	case c.queue <- func() { fn(); close(finished) }:
	case <-c.done:
		return false
	}
	select {
	case <-finished:
		return true
	case <-c.done:
		return false
	}
}

func (c *Canvas) Presence() *Presence {
	return c.presence
}

// SetTool selects the tool used by subsequent local strokes.
func (c *Canvas) SetTool(tool models.Tool, color string, width int) {
	c.do(func() {
		c.tool = tool
		if color != "" {
			c.color = color
		}
		if width > 0 {
			c.width = width
		}
	})
}

// HandleMessage applies a server message. It is meant to be wired as the
// connection's OnMessage callback.
func (c *Canvas) HandleMessage(msg models.Message) {
	c.do(func() { c.handle(msg) })
}

// HandleStateChange drops the participant list and cursors whenever the
// connection leaves Joined. A rejoin receives a fresh user_list. It is meant
// to be wired as the connection's OnStateChange callback.
func (c *Canvas) HandleStateChange(s State) {
	if s != StateJoined {
		c.presence.Reset()
	}
}

func (c *Canvas) handle(msg models.Message) {
	switch m := msg.(type) {
	case *models.DrawingHistory:
		// The log is the room's state; anything drawn while offline is gone.
		c.surface.Clear()
		c.pens.Reset()
		for _, op := range m.Operations {
			c.apply(op)
		}
		c.history.Reset()

	case *models.Drawing:
		if m.UserID == c.sender.UserID() {
			return
		}
		for _, op := range m.Operations {
			if op.UserID == "" {
				op.UserID = m.UserID
			}
			c.apply(op)
		}

	case *models.UserList:
		c.presence.SetUsers(m.Users)

	case *models.UserJoined:
		c.presence.Add(models.UserInfo{UserID: m.UserID, UserName: m.UserName, UserColor: m.UserColor})

	case *models.UserLeft:
		c.presence.Remove(m.UserID)

	case *models.CursorMove:
		c.presence.MoveCursor(m.UserID, m.X, m.Y, c.now())
	}
}

// apply renders one operation. Remote operations carry the sender's id; local
// ones have none and so share the empty-id pen.
func (c *Canvas) apply(op models.Operation) {
	if op.Type == models.OpClear {
		c.surface.Clear()
		c.pens.Reset()
		return
	}
	seg, ok := c.pens.Step(op)
	if !ok {
		return
	}
	if seg.Tool == models.ToolErase {
		c.surface.Erase(seg)
	} else {
		c.surface.Stroke(seg)
	}
}

func (c *Canvas) op(typ models.OpType, x, y float64) models.Operation {
	return models.Operation{
		Type:      typ,
		X:         x,
		Y:         y,
		Tool:      c.tool,
		Color:     c.color,
		Width:     c.width,
		Timestamp: c.now().UnixMilli(),
	}
}

func (c *Canvas) BeginStroke(x, y float64) {
	c.do(func() { c.local(c.op(models.OpStart, x, y)) })
}

func (c *Canvas) StrokeTo(x, y float64) {
	c.do(func() { c.local(c.op(models.OpDraw, x, y)) })
}

// EndStroke finishes the gesture, flushes it and records it for undo.
func (c *Canvas) EndStroke() {
	c.do(c.endStroke)
}

// Stroke draws a whole gesture in one step.
func (c *Canvas) Stroke(points []Point) {
	if len(points) == 0 {
		return
	}
	c.do(func() {
		c.local(c.op(models.OpStart, points[0].X, points[0].Y))
		for _, p := range points[1:] {
			c.local(c.op(models.OpDraw, p.X, p.Y))
		}
		c.endStroke()
	})
}

func (c *Canvas) local(op models.Operation) {
	c.apply(op)
	c.batcher.Add(op)
}

func (c *Canvas) endStroke() {
	op := c.op(models.OpEnd, 0, 0)
	c.apply(op)
	c.batcher.End(op)
	c.history.Commit()
}

// Clear wipes the board for everyone and records it for undo.
func (c *Canvas) Clear() {
	c.do(func() {
		op := c.op(models.OpClear, 0, 0)
		c.apply(op)
		c.batcher.End(op)
		c.history.Commit()
	})
}

// Undo restores the previous local snapshot. Nothing is sent.
func (c *Canvas) Undo() (ok bool) {
	c.do(func() { ok = c.history.Undo() })
	return ok
}

// Redo re-applies the next local snapshot. Nothing is sent.
func (c *Canvas) Redo() (ok bool) {
	c.do(func() { ok = c.history.Redo() })
	return ok
}

// MoveCursor shares the local pointer position. Cursor moves are not batched.
func (c *Canvas) MoveCursor(ctx context.Context, x, y float64) error {
	return c.sender.Send(ctx, models.CursorMove{
		UserID:    c.sender.UserID(),
		X:         x,
		Y:         y,
		Timestamp: c.now().UnixMilli(),
	})
}

// Snapshot returns a copy of the current surface.
func (c *Canvas) Snapshot() (img image.Image) {
	c.do(func() { img = c.surface.Snapshot() })
	return img
}

func (c *Canvas) send(ops []models.Operation) {
	msg := models.Drawing{
		UserID:     c.sender.UserID(),
		Operations: ops,
		Timestamp:  c.now().UnixMilli(),
	}
	if err := c.sender.Send(c.ctx, msg); err != nil {
		slog.Debug("Local operations not sent", "count", len(ops), "error", err)
	}
}
