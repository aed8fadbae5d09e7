package handlers

import (
	"log/slog"
	"net/http"

	"github.com/felixge/httpsnoop"
	"github.com/gorilla/mux"

	"github.com/Hari-Krishnan-N/collaborative-canvas/internal/security"
	"github.com/Hari-Krishnan-N/collaborative-canvas/internal/services"
)

// RouterOptions carries what the routes need besides the hub.
type RouterOptions struct {
	AllowedOrigins []string
	CanvasWidth    int
	CanvasHeight   int
}

// NewRouter wires every HTTP route of the server.
func NewRouter(hub *services.Hub, metrics *services.Metrics, opts RouterOptions) *mux.Router {
	ws := NewWSHandler(hub, security.NewOriginValidator(opts.AllowedOrigins))
	exp := NewExportHandler(hub, opts.CanvasWidth, opts.CanvasHeight)

	r := mux.NewRouter()
	r.Use(logRequests)

	r.Methods(http.MethodGet).Path("/ws").HandlerFunc(ws.HandleWebSocket)
	r.Methods(http.MethodGet).Path("/ws/{room}").HandlerFunc(ws.HandleWebSocket)

	r.Methods(http.MethodGet).Path("/api/stats").HandlerFunc(HandleStats(hub))
	r.Methods(http.MethodGet).Path("/api/metrics").HandlerFunc(HandleMetrics(metrics))
	r.Methods(http.MethodGet).Path("/api/rooms/{room}/export.pdf").HandlerFunc(exp.HandlePDF)
	r.Methods(http.MethodGet).Path("/health").HandlerFunc(HandleHealth(metrics))
	r.Methods(http.MethodGet).Path("/metrics").Handler(HandlePrometheus(metrics))

	return r
}

func logRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		m := httpsnoop.CaptureMetrics(next, w, r)
		slog.Debug("handled", "method", r.Method, "url", r.URL, "duration", m.Duration, "status", m.Code)
	})
}
