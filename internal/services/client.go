package services

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/coder/websocket"
	"github.com/google/uuid"

	"github.com/Hari-Krishnan-N/collaborative-canvas/internal/models"
	"github.com/Hari-Krishnan-N/collaborative-canvas/internal/security"
)

// Conn is the subset of *websocket.Conn a Client drives.
type Conn interface {
	Read(ctx context.Context) (websocket.MessageType, []byte, error)
	Write(ctx context.Context, typ websocket.MessageType, p []byte) error
	Ping(ctx context.Context) error
	Close(code websocket.StatusCode, reason string) error
}

type connState int

const (
	stateUnjoined connState = iota
	stateActive
	stateClosed
)

func (s connState) String() string {
	switch s {
	case stateUnjoined:
		return "unjoined"
	case stateActive:
		return "active"
	case stateClosed:
		return "closed"
	}
	return "unknown"
}

// Session is the connection context fixed at join time.
type Session struct {
	RoomID      string
	Participant models.Participant
}

// Client represents a single WebSocket connection with its own send goroutine
type Client struct {
	id     string
	conn   Conn
	send   chan []byte
	hub    *Hub
	roomID string

	limiter *security.RateLimiter

	// Lifecycle
	ctx     context.Context
	cancel  context.CancelFunc
	closed  bool
	closeMu sync.Mutex

	// Owned by the hub's dispatch loop
	state   connState
	session *Session
}

// NewClient creates a new client instance bound to roomID. The client is
// Unjoined until the hub processes its user_join.
func NewClient(conn Conn, hub *Hub, roomID string) *Client {
	ctx, cancel := context.WithCancel(context.Background())

	return &Client{
		id:      uuid.NewString(),
		conn:    conn,
		send:    make(chan []byte, hub.opts.SendBuffer),
		hub:     hub,
		roomID:  roomID,
		limiter: security.NewRateLimiter(hub.opts.MaxMessagesPerSecond, hub.opts.RateLimitWindow),
		ctx:     ctx,
		cancel:  cancel,
		state:   stateUnjoined,
	}
}

func (c *Client) ID() string {
	return c.id
}

func (c *Client) RoomID() string {
	return c.roomID
}

// Done is closed once the client has shut down.
func (c *Client) Done() <-chan struct{} {
	return c.ctx.Done()
}

// Start begins the client's read and write pumps
func (c *Client) Start() {
	go c.writePump()
	go c.readPump()
}

// writePump handles outgoing messages to the WebSocket connection
func (c *Client) writePump() {
	ticker := time.NewTicker(c.hub.opts.PingInterval)
	defer func() {
		ticker.Stop()
		c.Close()
	}()

	for {
		select {
		case message, ok := <-c.send:
			if !ok {
				return
			}

			writeCtx, cancel := context.WithTimeout(c.ctx, c.hub.opts.WriteTimeout)
			err := c.conn.Write(writeCtx, websocket.MessageText, message)
			cancel()

			if err != nil {
				slog.Warn("Write failed", "conn", c.id, "room", c.roomID, "error", err)
				c.hub.metrics.IncrementBroadcastErrors()
				return
			}
			c.hub.metrics.IncrementMessagesSent()

		case <-ticker.C:
			// Transport-level keepalive; closes the link if the peer vanished.
			pingCtx, cancel := context.WithTimeout(c.ctx, c.hub.opts.WriteTimeout)
			err := c.conn.Ping(pingCtx)
			cancel()

			if err != nil {
				slog.Debug("Ping failed", "conn", c.id, "room", c.roomID, "error", err)
				return
			}

		case <-c.ctx.Done():
			return
		}
	}
}

// readPump handles incoming messages from the WebSocket connection
func (c *Client) readPump() {
	defer func() {
		c.hub.Unregister(c)
		c.Close()
	}()

	for {
		_, message, err := c.conn.Read(c.ctx)
		if err != nil {
			switch websocket.CloseStatus(err) {
			case websocket.StatusNormalClosure, websocket.StatusGoingAway:
				slog.Debug("Connection closed", "conn", c.id, "room", c.roomID)
			default:
				if !errors.Is(err, context.Canceled) {
					slog.Info("Read failed", "conn", c.id, "room", c.roomID, "error", err)
					c.hub.metrics.IncrementConnectionErrors()
				}
			}
			return
		}

		if !c.limiter.Allow() {
			slog.Warn("Rate limit exceeded", "conn", c.id, "room", c.roomID)
			c.hub.metrics.IncrementRateLimitViolations()
			c.sendMessage(models.Error{Message: "Rate limit exceeded. Please slow down."})
			continue
		}

		c.hub.metrics.IncrementMessagesReceived()
		if !c.hub.deliver(&ClientMessage{Client: c, Message: message}) {
			return
		}
	}
}

func (c *Client) sendMessage(msg models.Message) bool {
	data, err := models.Encode(msg)
	if err != nil {
		slog.Error("Encode failed", "type", msg.MessageType(), "error", err)
		return false
	}
	return c.Send(data)
}

// Send queues a message for sending to the client. It never blocks: a client
// whose buffer is full is closed instead.
func (c *Client) Send(message []byte) bool {
	c.closeMu.Lock()
	defer c.closeMu.Unlock()

	if c.closed {
		return false
	}

	select {
	case c.send <- message:
		return true
	default:
		slog.Warn("Send buffer full, closing slow client", "conn", c.id, "room", c.roomID)
		c.hub.metrics.IncrementBroadcastErrors()
		go c.Close()
		return false
	}
}

// Close cleanly shuts down the client connection
func (c *Client) Close() {
	c.closeWith(websocket.StatusNormalClosure, "")
}

func (c *Client) closeWith(code websocket.StatusCode, reason string) {
	c.closeMu.Lock()
	defer c.closeMu.Unlock()

	if c.closed {
		return
	}

	c.closed = true
	c.cancel()
	close(c.send)
	if c.conn != nil {
		_ = c.conn.Close(code, reason)
	}
}

// ClientMessage represents a message received from a client
type ClientMessage struct {
	Client  *Client
	Message []byte
}
