package handlers

import (
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/Hari-Krishnan-N/collaborative-canvas/internal/models"
	"github.com/Hari-Krishnan-N/collaborative-canvas/internal/services"
)

type StatsResponse struct {
	Rooms             []models.RoomStats `json:"rooms"`
	TotalRooms        int                `json:"totalRooms"`
	TotalParticipants int                `json:"totalParticipants"`
}

// HandleStats reports every room with its participants and log size.
func HandleStats(hub *services.Hub) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		rooms, err := hub.Stats(r.Context())
		if err != nil {
			slog.Warn("Stats unavailable", "error", err)
			writeError(w, http.StatusServiceUnavailable, "stats unavailable")
			return
		}

		resp := StatsResponse{Rooms: rooms, TotalRooms: len(rooms)}
		for _, room := range rooms {
			resp.TotalParticipants += room.ParticipantCount()
		}
		writeJSON(w, http.StatusOK, resp)
	}
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Debug("Response write failed", "error", err)
	}
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
