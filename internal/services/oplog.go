package services

import (
	"time"

	"github.com/Hari-Krishnan-N/collaborative-canvas/internal/models"
)

// OperationLog is a room's bounded, append-only sequence of operations in
// receipt order. It is the state replayed to late joiners.
//
// An OperationLog is not safe for concurrent use; the hub's dispatch loop is
// its only writer and reader.
type OperationLog struct {
	ops      []models.Operation
	capacity int
	now      func() time.Time
}

func NewOperationLog(capacity int) *OperationLog {
	if capacity <= 0 {
		capacity = 1
	}
	return &OperationLog{
		ops:      make([]models.Operation, 0, min(capacity, 64)),
		capacity: capacity,
		now:      time.Now,
	}
}

// Append adds ops in their given order, stamping each with the receipt time,
// then evicts from the front until the log is back under capacity. It
// returns the stamped operations that were appended.
func (l *OperationLog) Append(ops ...models.Operation) []models.Operation {
	if len(ops) == 0 {
		return nil
	}

	receivedAt := l.now().UnixMilli()
	stamped := make([]models.Operation, len(ops))
	for i, op := range ops {
		op.ReceivedAt = receivedAt
		stamped[i] = op
	}

	l.ops = append(l.ops, stamped...)
	if over := len(l.ops) - l.capacity; over > 0 {
		n := copy(l.ops, l.ops[over:])
		clear(l.ops[n:])
		l.ops = l.ops[:n]
	}
	return stamped
}

// Replay returns a copy of the current sequence, oldest first.
func (l *OperationLog) Replay() []models.Operation {
	out := make([]models.Operation, len(l.ops))
	copy(out, l.ops)
	return out
}

// Clear empties the log.
func (l *OperationLog) Clear() {
	clear(l.ops)
	l.ops = l.ops[:0]
}

func (l *OperationLog) Len() int {
	return len(l.ops)
}

func (l *OperationLog) Cap() int {
	return l.capacity
}
