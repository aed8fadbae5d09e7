package client

import (
	"slices"
	"sync"
	"time"

	"github.com/Hari-Krishnan-N/collaborative-canvas/internal/models"
)

type Cursor struct {
	X, Y      float64
	UpdatedAt time.Time
}

// Presence tracks who is in the room and where their cursors are.
type Presence struct {
	mu      sync.RWMutex
	users   map[string]models.UserInfo
	order   []string
	cursors map[string]Cursor
}

func NewPresence() *Presence {
	return &Presence{
		users:   make(map[string]models.UserInfo),
		cursors: make(map[string]Cursor),
	}
}

// SetUsers replaces the participant list. Cursors of users no longer present
// are dropped.
func (p *Presence) SetUsers(users []models.UserInfo) {
	p.mu.Lock()
	defer p.mu.Unlock()

	clear(p.users)
	p.order = p.order[:0]
	for _, u := range users {
		if _, dup := p.users[u.UserID]; dup {
			continue
		}
		p.users[u.UserID] = u
		p.order = append(p.order, u.UserID)
	}
	for id := range p.cursors {
		if _, ok := p.users[id]; !ok {
			delete(p.cursors, id)
		}
	}
}

func (p *Presence) Add(u models.UserInfo) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if _, ok := p.users[u.UserID]; !ok {
		p.order = append(p.order, u.UserID)
	}
	p.users[u.UserID] = u
}

// Remove drops the user and their cursor.
func (p *Presence) Remove(userID string) {
	p.mu.Lock()
	defer p.mu.Unlock()

	delete(p.users, userID)
	delete(p.cursors, userID)
	if i := slices.Index(p.order, userID); i >= 0 {
		p.order = slices.Delete(p.order, i, i+1)
	}
}

func (p *Presence) MoveCursor(userID string, x, y float64, at time.Time) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.cursors[userID] = Cursor{X: x, Y: y, UpdatedAt: at}
}

// Users returns the participants in join order.
func (p *Presence) Users() []models.UserInfo {
	p.mu.RLock()
	defer p.mu.RUnlock()

	out := make([]models.UserInfo, 0, len(p.order))
	for _, id := range p.order {
		out = append(out, p.users[id])
	}
	return out
}

func (p *Presence) Cursor(userID string) (Cursor, bool) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	c, ok := p.cursors[userID]
	return c, ok
}

// Reset forgets everyone, as after a lost connection.
func (p *Presence) Reset() {
	p.mu.Lock()
	defer p.mu.Unlock()
	clear(p.users)
	clear(p.cursors)
	p.order = p.order[:0]
}
