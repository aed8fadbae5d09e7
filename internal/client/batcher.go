package client

import (
	"time"

	"github.com/Hari-Krishnan-N/collaborative-canvas/internal/models"
)

// Batcher coalesces locally produced operations into drawing messages. A
// buffer is flushed when an operation arrives at least interval after the
// previous flush, or when the gesture ends.
//
// A Batcher is not safe for concurrent use; the canvas apply loop owns it.
type Batcher struct {
	interval time.Duration
	flush    func([]models.Operation)
	buf      []models.Operation
	last     time.Time
	now      func() time.Time
}

func NewBatcher(interval time.Duration, flush func([]models.Operation)) *Batcher {
	return &Batcher{
		interval: interval,
		flush:    flush,
		last:     time.Now(),
		now:      time.Now,
	}
}

// WithClock replaces the time source and restarts the interval from now().
func (b *Batcher) WithClock(now func() time.Time) *Batcher {
	b.now = now
	b.last = now()
	return b
}

// Add buffers op and flushes if the interval has elapsed.
func (b *Batcher) Add(op models.Operation) {
	b.buf = append(b.buf, op)
	if b.now().Sub(b.last) >= b.interval {
		b.Flush()
	}
}

// End buffers the op closing a gesture and flushes immediately.
func (b *Batcher) End(op models.Operation) {
	b.buf = append(b.buf, op)
	b.Flush()
}

// Flush hands the buffered operations to the flush function. An empty
// buffer is a no-op.
func (b *Batcher) Flush() {
	if len(b.buf) == 0 {
		return
	}
	ops := b.buf
	b.buf = nil
	b.last = b.now()
	b.flush(ops)
}

func (b *Batcher) Pending() int {
	return len(b.buf)
}
