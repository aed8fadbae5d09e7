// Package client is the participant side of a canvas session: the connection
// with its reconnect policy, the outbound operation batcher, the local
// undo/redo history and the surface everything is drawn on.
package client

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v5"
	"github.com/coder/websocket"
	"github.com/google/uuid"

	"github.com/Hari-Krishnan-N/collaborative-canvas/internal/config"
	"github.com/Hari-Krishnan-N/collaborative-canvas/internal/models"
)

var (
	ErrNotConnected = errors.New("not connected")
	ErrGaveUp       = errors.New("gave up reconnecting")
)

type State int

const (
	StateDisconnected State = iota
	StateConnecting
	StateJoined
	// StateGaveUp is terminal.
	StateGaveUp
)

func (s State) String() string {
	switch s {
	case StateDisconnected:
		return "disconnected"
	case StateConnecting:
		return "connecting"
	case StateJoined:
		return "joined"
	case StateGaveUp:
		return "gave_up"
	}
	return "unknown"
}

// Conn is the subset of *websocket.Conn the client uses.
type Conn interface {
	Read(ctx context.Context) (websocket.MessageType, []byte, error)
	Write(ctx context.Context, typ websocket.MessageType, p []byte) error
	Close(code websocket.StatusCode, reason string) error
}

type Dialer func(ctx context.Context, url string) (Conn, error)

// webSocketDialer dials with a read limit large enough for the server's
// drawing_history.
func webSocketDialer(readLimit int64) Dialer {
	return func(ctx context.Context, url string) (Conn, error) {
		conn, _, err := websocket.Dial(ctx, url, nil)
		if err != nil {
			return nil, err
		}
		conn.SetReadLimit(readLimit)
		return conn, nil
	}
}

type Options struct {
	URL       string
	UserName  string
	UserColor string

	ReconnectDelay time.Duration
	MaxAttempts    int
	PingInterval   time.Duration
	WriteTimeout   time.Duration
	// ReadLimit caps one inbound message. It must cover a full
	// drawing_history; the default assumes the server's default log cap.
	ReadLimit int64

	// BackOff overrides the fixed ReconnectDelay policy.
	BackOff backoff.BackOff
	Dial    Dialer
	// NewUserID mints the participant id for each connection.
	NewUserID func() string

	// OnMessage receives every decoded server message, on the read goroutine.
	OnMessage func(models.Message)
	// OnStateChange is called after each transition.
	OnStateChange func(State)
}

func (o Options) withDefaults() Options {
	if o.ReconnectDelay <= 0 {
		o.ReconnectDelay = config.ReconnectDelay
	}
	if o.MaxAttempts <= 0 {
		o.MaxAttempts = config.MaxReconnectAttempts
	}
	if o.PingInterval <= 0 {
		o.PingInterval = config.ClientPingInterval
	}
	if o.WriteTimeout <= 0 {
		o.WriteTimeout = config.WriteTimeout
	}
	if o.BackOff == nil {
		o.BackOff = backoff.NewConstantBackOff(o.ReconnectDelay)
	}
	if o.ReadLimit <= 0 {
		o.ReadLimit = config.HistoryReadLimit(config.DefaultMaxOperations)
	}
	if o.Dial == nil {
		o.Dial = webSocketDialer(o.ReadLimit)
	}
	if o.NewUserID == nil {
		o.NewUserID = uuid.NewString
	}
	return o
}

// Connection is the client end of one participant's link to a room. Each
// successful dial joins under a fresh participant id; a drop schedules a
// reconnect until MaxAttempts consecutive attempts have failed.
type Connection struct {
	opts Options

	mu     sync.Mutex
	state  State
	conn   Conn
	userID string
}

func NewConnection(opts Options) *Connection {
	return &Connection{opts: opts.withDefaults()}
}

func (c *Connection) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// UserID returns the participant id of the current (or last) connection.
func (c *Connection) UserID() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.userID
}

func (c *Connection) setState(s State) {
	c.mu.Lock()
	if c.state == s {
		c.mu.Unlock()
		return
	}
	c.state = s
	c.mu.Unlock()

	slog.Debug("Connection state", "state", s.String())
	if c.opts.OnStateChange != nil {
		c.opts.OnStateChange(s)
	}
}

// Send writes msg on the live connection. Nothing is queued: while the
// connection is not joined the message is dropped and ErrNotConnected
// returned.
func (c *Connection) Send(ctx context.Context, msg models.Message) error {
	c.mu.Lock()
	conn, state := c.conn, c.state
	c.mu.Unlock()

	if conn == nil || state != StateJoined {
		return ErrNotConnected
	}
	return c.write(ctx, conn, msg)
}

func (c *Connection) write(ctx context.Context, conn Conn, msg models.Message) error {
	data, err := models.Encode(msg)
	if err != nil {
		return err
	}
	writeCtx, cancel := context.WithTimeout(ctx, c.opts.WriteTimeout)
	defer cancel()
	if err := conn.Write(writeCtx, websocket.MessageText, data); err != nil {
		return fmt.Errorf("write %s: %w", msg.MessageType(), err)
	}
	return nil
}

// Run connects and keeps reconnecting until ctx is cancelled, which returns
// nil, or the attempt ceiling is reached, which returns ErrGaveUp.
func (c *Connection) Run(ctx context.Context) error {
	failures := 0
	for {
		joined, err := c.session(ctx)
		if ctx.Err() != nil {
			c.setState(StateDisconnected)
			return nil
		}

		if joined {
			failures = 0
			c.opts.BackOff.Reset()
		} else {
			failures++
		}

		delay := c.opts.BackOff.NextBackOff()
		if failures >= c.opts.MaxAttempts || delay == backoff.Stop {
			c.setState(StateGaveUp)
			slog.Warn("Giving up on server", "url", c.opts.URL, "attempts", failures, "error", err)
			return fmt.Errorf("%w after %d attempts: %w", ErrGaveUp, failures, err)
		}

		c.setState(StateDisconnected)
		slog.Info("Reconnecting", "url", c.opts.URL, "in", delay, "attempt", failures+1, "error", err)

		timer := time.NewTimer(delay)
		select {
		case <-ctx.Done():
			timer.Stop()
			return nil
		case <-timer.C:
		}
	}
}

// session runs one connection from dial to close. joined reports whether the
// join completed before the connection ended.
func (c *Connection) session(ctx context.Context) (joined bool, err error) {
	c.setState(StateConnecting)

	conn, err := c.opts.Dial(ctx, c.opts.URL)
	if err != nil {
		return false, fmt.Errorf("dial: %w", err)
	}

	userID := c.opts.NewUserID()
	c.mu.Lock()
	c.conn, c.userID = conn, userID
	c.mu.Unlock()

	defer func() {
		c.mu.Lock()
		c.conn = nil
		c.mu.Unlock()
		_ = conn.Close(websocket.StatusNormalClosure, "")
	}()

	sessCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	join := models.UserJoin{UserID: userID, UserName: c.opts.UserName, UserColor: c.opts.UserColor}
	if err := c.write(sessCtx, conn, join); err != nil {
		return false, err
	}

	go c.pingLoop(sessCtx, conn)

	for {
		_, data, err := conn.Read(sessCtx)
		if err != nil {
			return joined, fmt.Errorf("read: %w", err)
		}

		msg, err := models.Decode(data, models.ServerToClient)
		if err != nil {
			slog.Warn("Dropping malformed server message", "error", err)
			continue
		}

		switch m := msg.(type) {
		case *models.SyncComplete:
			if !joined {
				joined = true
				c.setState(StateJoined)
				slog.Info("Joined", "url", c.opts.URL, "participant", userID, "history", m.HistorySize)
			}
		case *models.Error:
			if !joined {
				return false, fmt.Errorf("join rejected: %s", m.Message)
			}
			slog.Warn("Server error", "message", m.Message)
		}

		if c.opts.OnMessage != nil {
			c.opts.OnMessage(msg)
		}
	}
}

// pingLoop sends an application ping every interval while joined. The pong
// is informational; a dead link is noticed only when the read fails.
func (c *Connection) pingLoop(ctx context.Context, conn Conn) {
	ticker := time.NewTicker(c.opts.PingInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			if c.State() != StateJoined {
				continue
			}
			if err := c.write(ctx, conn, models.Ping{}); err != nil {
				slog.Debug("Ping failed", "error", err)
			}
		case <-ctx.Done():
			return
		}
	}
}
