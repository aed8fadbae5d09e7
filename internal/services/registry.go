package services

import (
	"fmt"
	"slices"
	"time"

	"github.com/Hari-Krishnan-N/collaborative-canvas/internal/models"
)

// Room is an isolated collaboration context: its participants in join order
// and its operation log.
type Room struct {
	ID           string
	CreatedAt    time.Time
	LastActivity time.Time

	participants map[string]*models.Participant
	order        []string
	log          *OperationLog
}

func newRoom(id string, logCapacity int) *Room {
	now := time.Now()
	return &Room{
		ID:           id,
		CreatedAt:    now,
		LastActivity: now,
		participants: make(map[string]*models.Participant),
		log:          NewOperationLog(logCapacity),
	}
}

// AddParticipant admits p, failing if the ID is already present.
func (r *Room) AddParticipant(p *models.Participant) error {
	if _, exists := r.participants[p.ID]; exists {
		return fmt.Errorf("participant %s already in room %s", p.ID, r.ID)
	}
	r.participants[p.ID] = p
	r.order = append(r.order, p.ID)
	r.LastActivity = time.Now()
	return nil
}

// RemoveParticipant removes the participant if present.
func (r *Room) RemoveParticipant(id string) (*models.Participant, bool) {
	p, ok := r.participants[id]
	if !ok {
		return nil, false
	}
	delete(r.participants, id)
	if i := slices.Index(r.order, id); i >= 0 {
		r.order = slices.Delete(r.order, i, i+1)
	}
	r.LastActivity = time.Now()
	return p, true
}

func (r *Room) Participant(id string) (*models.Participant, bool) {
	p, ok := r.participants[id]
	return p, ok
}

// Participants returns the room's participants in join order.
func (r *Room) Participants() []*models.Participant {
	out := make([]*models.Participant, 0, len(r.order))
	for _, id := range r.order {
		out = append(out, r.participants[id])
	}
	return out
}

// UserList returns the wire representation of Participants.
func (r *Room) UserList() []models.UserInfo {
	users := make([]models.UserInfo, 0, len(r.order))
	for _, p := range r.Participants() {
		users = append(users, p.Info())
	}
	return users
}

func (r *Room) Len() int {
	return len(r.order)
}

func (r *Room) Log() *OperationLog {
	return r.log
}

func (r *Room) Stats() models.RoomStats {
	return models.RoomStats{
		ID:           r.ID,
		Participants: r.UserList(),
		LogSize:      r.log.Len(),
		LogCapacity:  r.log.Cap(),
		CreatedAt:    r.CreatedAt,
		LastActivity: r.LastActivity,
	}
}

// Registry owns every room for the lifetime of the process. Like the
// operation log it is confined to the hub's dispatch loop and takes no locks.
type Registry struct {
	rooms       map[string]*Room
	order       []string
	logCapacity int
}

func NewRegistry(logCapacity int) *Registry {
	return &Registry{
		rooms:       make(map[string]*Room),
		logCapacity: logCapacity,
	}
}

// GetOrCreateRoom returns the room for id, creating an empty one on first
// reference.
func (reg *Registry) GetOrCreateRoom(id string) *Room {
	if room, ok := reg.rooms[id]; ok {
		return room
	}
	room := newRoom(id, reg.logCapacity)
	reg.rooms[id] = room
	reg.order = append(reg.order, id)
	return room
}

// Room looks up an existing room without creating it.
func (reg *Registry) Room(id string) (*Room, bool) {
	room, ok := reg.rooms[id]
	return room, ok
}

// RemoveParticipant removes a participant from a room. Unknown rooms and
// participants are a no-op since disconnects race with everything else.
func (reg *Registry) RemoveParticipant(roomID, participantID string) (*models.Participant, bool) {
	room, ok := reg.rooms[roomID]
	if !ok {
		return nil, false
	}
	return room.RemoveParticipant(participantID)
}

// DeleteRoom drops a room and its log.
func (reg *Registry) DeleteRoom(id string) bool {
	if _, ok := reg.rooms[id]; !ok {
		return false
	}
	delete(reg.rooms, id)
	if i := slices.Index(reg.order, id); i >= 0 {
		reg.order = slices.Delete(reg.order, i, i+1)
	}
	return true
}

func (reg *Registry) Len() int {
	return len(reg.rooms)
}

// Stats returns a snapshot of every room in creation order.
func (reg *Registry) Stats() []models.RoomStats {
	stats := make([]models.RoomStats, 0, len(reg.order))
	for _, id := range reg.order {
		stats = append(stats, reg.rooms[id].Stats())
	}
	return stats
}
