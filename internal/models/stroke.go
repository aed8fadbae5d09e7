package models

// Segment is one straight piece of a stroke, ready to hand to a surface.
type Segment struct {
	Tool   Tool
	Color  string
	Width  int
	X0, Y0 float64
	X1, Y1 float64
}

type pen struct {
	x, y float64
	down bool
}

// PenTracker turns an operation stream into line segments. Operations from
// different users interleave freely in a log, so each user has their own pen.
type PenTracker struct {
	pens map[string]*pen
}

func NewPenTracker() *PenTracker {
	return &PenTracker{pens: make(map[string]*pen)}
}

// Step advances the pen that op belongs to. It returns a segment when the
// operation extends a stroke. A clear lifts every pen.
func (t *PenTracker) Step(op Operation) (Segment, bool) {
	if op.Type == OpClear {
		clear(t.pens)
		return Segment{}, false
	}

	p, ok := t.pens[op.UserID]
	if !ok {
		p = &pen{}
		t.pens[op.UserID] = p
	}

	switch op.Type {
	case OpStart:
		p.x, p.y, p.down = op.X, op.Y, true
	case OpDraw:
		if !p.down {
			// The start fell out of the log; pick the stroke up from here.
			p.x, p.y, p.down = op.X, op.Y, true
			return Segment{}, false
		}
		seg := Segment{
			Tool:  op.Tool,
			Color: op.Color,
			Width: op.Width,
			X0:    p.x,
			Y0:    p.y,
			X1:    op.X,
			Y1:    op.Y,
		}
		p.x, p.y = op.X, op.Y
		return seg, true
	case OpEnd:
		p.down = false
	}
	return Segment{}, false
}

// Reset lifts every pen.
func (t *PenTracker) Reset() {
	clear(t.pens)
}
