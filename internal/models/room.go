package models

import (
	"time"
)

// RoomStats is a read-only view of one room used by the monitoring endpoints.
// The live room state is owned by the session registry; this struct only
// carries copies.
type RoomStats struct {
	ID           string     `json:"id"`
	Participants []UserInfo `json:"participants"`
	LogSize      int        `json:"logSize"`
	LogCapacity  int        `json:"logCapacity"`
	CreatedAt    time.Time  `json:"createdAt"`
	LastActivity time.Time  `json:"lastActivity"`
}

// ParticipantCount returns the number of live participants in the room.
func (r RoomStats) ParticipantCount() int {
	return len(r.Participants)
}
