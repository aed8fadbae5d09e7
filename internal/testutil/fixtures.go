package testutil

import (
	"context"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/Hari-Krishnan-N/collaborative-canvas/internal/handlers"
	"github.com/Hari-Krishnan-N/collaborative-canvas/internal/models"
	"github.com/Hari-Krishnan-N/collaborative-canvas/internal/services"
)

// TestServer is a running hub behind an httptest server.
type TestServer struct {
	Server   *httptest.Server
	Hub      *services.Hub
	Registry *services.Registry
	Metrics  *services.Metrics
}

// NewTestServer starts a hub and its HTTP routes. Everything is torn down
// with the test.
func NewTestServer(t *testing.T, logCapacity int, opts services.HubOptions) *TestServer {
	t.Helper()

	registry := services.NewRegistry(logCapacity)
	metrics := services.NewMetrics()
	hub := services.NewHub(registry, metrics, opts)

	ctx, cancel := context.WithCancel(context.Background())
	stopped := make(chan struct{})
	go func() {
		hub.Run(ctx)
		close(stopped)
	}()

	srv := httptest.NewServer(handlers.NewRouter(hub, metrics, handlers.RouterOptions{
		AllowedOrigins: []string{"*"},
		CanvasWidth:    opts.CanvasWidth,
		CanvasHeight:   opts.CanvasHeight,
	}))

	t.Cleanup(func() {
		cancel()
		<-stopped
		srv.Close()
	})

	return &TestServer{Server: srv, Hub: hub, Registry: registry, Metrics: metrics}
}

// WSURL returns the websocket URL for a room.
func (ts *TestServer) WSURL(room string) string {
	return "ws" + strings.TrimPrefix(ts.Server.URL, "http") + "/ws/" + room
}

// ConnectAndJoin dials room and joins as userID, waiting for sync_complete.
func (ts *TestServer) ConnectAndJoin(t *testing.T, room, userID, name string) *WSClient {
	t.Helper()

	c := NewWSClient()
	if err := c.Connect(ts.WSURL(room)); err != nil {
		t.Fatalf("connect: %v", err)
	}
	t.Cleanup(c.Close)

	if err := c.Join(userID, name, "#112233"); err != nil {
		t.Fatalf("join: %v", err)
	}
	if c.WaitForMessageType(models.MsgTypeSyncComplete, WaitTimeout) == nil {
		t.Fatalf("%s: no sync_complete", userID)
	}
	return c
}

func StartOp(x, y float64) models.Operation {
	return models.Operation{Type: models.OpStart, X: x, Y: y, Tool: models.ToolInk, Color: "#ff0000", Width: 3}
}

func DrawOp(x, y float64) models.Operation {
	return models.Operation{Type: models.OpDraw, X: x, Y: y, Tool: models.ToolInk, Color: "#ff0000", Width: 3}
}

func EndOp() models.Operation {
	return models.Operation{Type: models.OpEnd, Tool: models.ToolInk, Color: "#ff0000", Width: 3}
}

func ClearOp() models.Operation {
	return models.Operation{Type: models.OpClear, Tool: models.ToolInk, Color: "#ff0000", Width: 3}
}

// WaitTimeout bounds every wait in end-to-end tests.
const WaitTimeout = 2 * time.Second
