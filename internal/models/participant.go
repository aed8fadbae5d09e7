package models

import "time"

// Participant is one connected user identity. Identity is scoped to a single
// live connection: a reconnecting client joins with a new ID.
type Participant struct {
	ID       string
	Name     string
	Color    string
	JoinedAt time.Time
}

func NewParticipant(id, name, color string) *Participant {
	return &Participant{
		ID:       id,
		Name:     name,
		Color:    color,
		JoinedAt: time.Now(),
	}
}

// Info returns the wire representation used in user_list and user_joined.
func (p *Participant) Info() UserInfo {
	return UserInfo{
		UserID:    p.ID,
		UserName:  p.Name,
		UserColor: p.Color,
	}
}
