package handlers

import (
	"log/slog"
	"net/http"

	"github.com/coder/websocket"
	"github.com/gorilla/mux"

	"github.com/Hari-Krishnan-N/collaborative-canvas/internal/config"
	"github.com/Hari-Krishnan-N/collaborative-canvas/internal/security"
	"github.com/Hari-Krishnan-N/collaborative-canvas/internal/services"
)

type WSHandler struct {
	hub     *services.Hub
	origins *security.OriginValidator
}

func NewWSHandler(hub *services.Hub, origins *security.OriginValidator) *WSHandler {
	return &WSHandler{
		hub:     hub,
		origins: origins,
	}
}

// roomFromRequest resolves the room a connection binds to: the {room} path
// segment, then the ?room= query parameter, then the default room.
func roomFromRequest(r *http.Request) string {
	if room := mux.Vars(r)["room"]; room != "" {
		return room
	}
	if room := r.URL.Query().Get("room"); room != "" {
		return room
	}
	return config.DefaultRoomID
}

func (h *WSHandler) HandleWebSocket(w http.ResponseWriter, r *http.Request) {
	roomID := roomFromRequest(r)
	if err := security.ValidateRoomID(roomID); err != nil {
		writeError(w, http.StatusBadRequest, security.SanitizeErrorMessage(err))
		return
	}

	conn, err := websocket.Accept(w, r, h.origins.AcceptOptions())
	if err != nil {
		// Accept has already written the HTTP error response
		slog.Warn("WebSocket upgrade failed", "room", roomID, "remote", r.RemoteAddr, "error", err)
		return
	}
	conn.SetReadLimit(config.MaxInboundMessageBytes)

	client := services.NewClient(conn, h.hub, roomID)
	if err := h.hub.Register(client); err != nil {
		_ = conn.Close(websocket.StatusTryAgainLater, "server shutting down")
		return
	}

	slog.Debug("WebSocket connected", "conn", client.ID(), "room", roomID, "remote", r.RemoteAddr)
	client.Start()

	// Hold the handler until the connection ends so the server's shutdown
	// waits on it.
	<-client.Done()
}
