package handlers

import (
	"fmt"
	"log/slog"
	"net/http"

	"github.com/gorilla/mux"

	"github.com/Hari-Krishnan-N/collaborative-canvas/internal/export"
	"github.com/Hari-Krishnan-N/collaborative-canvas/internal/security"
	"github.com/Hari-Krishnan-N/collaborative-canvas/internal/services"
)

type ExportHandler struct {
	hub    *services.Hub
	width  int
	height int
}

func NewExportHandler(hub *services.Hub, width, height int) *ExportHandler {
	return &ExportHandler{hub: hub, width: width, height: height}
}

// HandlePDF renders a room's current operation log as a PDF download.
func (h *ExportHandler) HandlePDF(w http.ResponseWriter, r *http.Request) {
	roomID := mux.Vars(r)["room"]
	if err := security.ValidateRoomID(roomID); err != nil {
		writeError(w, http.StatusBadRequest, security.SanitizeErrorMessage(err))
		return
	}

	ops, ok, err := h.hub.Replay(r.Context(), roomID)
	if err != nil {
		writeError(w, http.StatusServiceUnavailable, "room unavailable")
		return
	}
	if !ok {
		writeError(w, http.StatusNotFound, "room not found")
		return
	}

	w.Header().Set("Content-Type", "application/pdf")
	w.Header().Set("Content-Disposition", fmt.Sprintf(`attachment; filename="%s.pdf"`, roomID))
	if err := export.PDF(w, roomID, ops, h.width, h.height); err != nil {
		slog.Error("PDF export failed", "room", roomID, "error", err)
	}
}
