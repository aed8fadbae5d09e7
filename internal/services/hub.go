package services

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/coder/websocket"

	"github.com/Hari-Krishnan-N/collaborative-canvas/internal/config"
	"github.com/Hari-Krishnan-N/collaborative-canvas/internal/models"
	"github.com/Hari-Krishnan-N/collaborative-canvas/internal/security"
)

var ErrHubClosed = errors.New("hub is not running")

// HubOptions tunes connection handling. Zero values fall back to the limits
// in the config package.
type HubOptions struct {
	CanvasWidth  int
	CanvasHeight int
	DefaultColor string

	SendBuffer           int
	PingInterval         time.Duration
	WriteTimeout         time.Duration
	MaxMessagesPerSecond int
	RateLimitWindow      time.Duration

	// RoomIdleTTL > 0 drops rooms that stay empty for that long.
	RoomIdleTTL time.Duration
	// CompactOnClear empties a room's log before a clear operation is appended.
	CompactOnClear bool
}

func (o HubOptions) withDefaults() HubOptions {
	if o.CanvasWidth <= 0 {
		o.CanvasWidth = config.DefaultCanvasWidth
	}
	if o.CanvasHeight <= 0 {
		o.CanvasHeight = config.DefaultCanvasHeight
	}
	if o.DefaultColor == "" {
		o.DefaultColor = config.DefaultColor
	}
	if o.SendBuffer <= 0 {
		o.SendBuffer = config.ClientSendBufferSize
	}
	if o.PingInterval <= 0 {
		o.PingInterval = config.PingInterval
	}
	if o.WriteTimeout <= 0 {
		o.WriteTimeout = config.WriteTimeout
	}
	if o.MaxMessagesPerSecond <= 0 {
		o.MaxMessagesPerSecond = config.MaxMessagesPerSecond
	}
	if o.RateLimitWindow <= 0 {
		o.RateLimitWindow = config.RateLimitWindow
	}
	return o
}

// Hub is the single dispatch loop of the server. Every registry and log
// mutation, and every broadcast, happens on the goroutine running Run, one
// event at a time, so none of that state needs a lock.
type Hub struct {
	registry  *Registry
	metrics   *Metrics
	sanitizer *security.OperationSanitizer
	opts      HubOptions

	// Connections known to the loop, joined or not
	clients map[*Client]struct{}
	// Joined participants across all rooms
	participants map[string]*Client

	register   chan *Client
	unregister chan *Client
	inbound    chan *ClientMessage
	broadcast  chan *BroadcastMessage
	queries    chan func()
	reap       chan string

	reapTimers map[string]*time.Timer

	done chan struct{}
	now  func() time.Time
}

// BroadcastMessage asks the loop to fan a message out to a room.
type BroadcastMessage struct {
	RoomID               string
	Message              models.Message
	ExcludeParticipantID string
}

func NewHub(registry *Registry, metrics *Metrics, opts HubOptions) *Hub {
	opts = opts.withDefaults()
	return &Hub{
		registry:     registry,
		metrics:      metrics,
		sanitizer:    security.NewOperationSanitizer(opts.CanvasWidth, opts.CanvasHeight, opts.DefaultColor),
		opts:         opts,
		clients:      make(map[*Client]struct{}),
		participants: make(map[string]*Client),
		register:     make(chan *Client),
		unregister:   make(chan *Client, config.HubUnregisterBuffer),
		inbound:      make(chan *ClientMessage, config.HubInboundBufferSize),
		broadcast:    make(chan *BroadcastMessage, config.HubInboundBufferSize),
		queries:      make(chan func()),
		reap:         make(chan string),
		reapTimers:   make(map[string]*time.Timer),
		done:         make(chan struct{}),
		now:          time.Now,
	}
}

// Run processes events until ctx is cancelled, then closes every connection.
func (h *Hub) Run(ctx context.Context) {
	defer h.shutdown()

	for {
		select {
		case c := <-h.register:
			h.registerClient(c)

		case c := <-h.unregister:
			h.unregisterClient(c)

		case msg := <-h.inbound:
			h.handleMessage(msg)

		case b := <-h.broadcast:
			h.broadcastToRoom(b.RoomID, b.Message, b.ExcludeParticipantID)

		case fn := <-h.queries:
			fn()

		case roomID := <-h.reap:
			h.reapRoom(roomID)

		case <-ctx.Done():
			return
		}
	}
}

func (h *Hub) shutdown() {
	close(h.done)
	for _, t := range h.reapTimers {
		t.Stop()
	}
	for c := range h.clients {
		c.state = stateClosed
		c.closeWith(websocket.StatusGoingAway, "server shutting down")
	}
	clear(h.clients)
	clear(h.participants)
	slog.Info("Hub stopped")
}

// Register hands a freshly accepted client to the loop. It returns once the
// loop has taken the client, so pumps started afterwards are ordered behind it.
func (h *Hub) Register(c *Client) error {
	select {
	case h.register <- c:
		return nil
	case <-h.done:
		return ErrHubClosed
	}
}

// Unregister moves a client to Closed. Safe to call more than once.
func (h *Hub) Unregister(c *Client) {
	select {
	case h.unregister <- c:
	case <-h.done:
	}
}

// BroadcastToRoom fans msg out to every joined participant of roomID except
// excludeParticipantID (empty excludes no one).
func (h *Hub) BroadcastToRoom(roomID string, msg models.Message, excludeParticipantID string) {
	select {
	case h.broadcast <- &BroadcastMessage{RoomID: roomID, Message: msg, ExcludeParticipantID: excludeParticipantID}:
	case <-h.done:
	}
}

func (h *Hub) deliver(msg *ClientMessage) bool {
	select {
	case h.inbound <- msg:
		return true
	case <-msg.Client.ctx.Done():
		return false
	case <-h.done:
		return false
	}
}

// do runs fn on the dispatch loop and waits for it to finish. fn must hand
// results back over a buffered channel: after a cancelled wait it may still
// run.
func (h *Hub) do(ctx context.Context, fn func()) error {
	finished := make(chan struct{})
	select {
	case h.queries <- func() { fn(); close(finished) }:
	case <-h.done:
		return ErrHubClosed
	case <-ctx.Done():
		return ctx.Err()
	}
	select {
	case <-finished:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Stats returns a snapshot of every room.
func (h *Hub) Stats(ctx context.Context) ([]models.RoomStats, error) {
	result := make(chan []models.RoomStats, 1)
	if err := h.do(ctx, func() { result <- h.registry.Stats() }); err != nil {
		return nil, err
	}
	return <-result, nil
}

type replayResult struct {
	ops []models.Operation
	ok  bool
}

// Replay returns a copy of a room's operation log. ok is false when the room
// has never been referenced.
func (h *Hub) Replay(ctx context.Context, roomID string) ([]models.Operation, bool, error) {
	result := make(chan replayResult, 1)
	err := h.do(ctx, func() {
		var r replayResult
		if room, ok := h.registry.Room(roomID); ok {
			r = replayResult{ops: room.Log().Replay(), ok: true}
		}
		result <- r
	})
	if err != nil {
		return nil, false, err
	}
	r := <-result
	return r.ops, r.ok, nil
}

func (h *Hub) registerClient(c *Client) {
	h.clients[c] = struct{}{}
	h.metrics.IncrementConnections()
	slog.Debug("Connection registered", "conn", c.id, "room", c.roomID)
}

func (h *Hub) unregisterClient(c *Client) {
	if _, ok := h.clients[c]; !ok || c.state == stateClosed {
		c.state = stateClosed
		c.Close()
		return
	}

	previous := c.state
	c.state = stateClosed
	delete(h.clients, c)
	h.metrics.DecrementConnections()

	if previous == stateActive {
		s := c.session
		delete(h.participants, s.Participant.ID)
		if p, ok := h.registry.RemoveParticipant(s.RoomID, s.Participant.ID); ok {
			h.metrics.DecrementParticipants()
			h.broadcastToRoom(s.RoomID, models.UserLeft{UserID: p.ID, UserName: p.Name}, p.ID)
			slog.Info("Participant left", "room", s.RoomID, "participant", p.ID)
		}
		if room, ok := h.registry.Room(s.RoomID); ok && room.Len() == 0 {
			h.scheduleReap(s.RoomID)
		}
	}

	c.Close()
}

func (h *Hub) handleMessage(cm *ClientMessage) {
	c := cm.Client
	if c.state == stateClosed {
		return
	}

	msg, err := models.Decode(cm.Message, models.ClientToServer)
	if err != nil {
		slog.Warn("Dropping malformed message", "conn", c.id, "room", c.roomID, "error", err)
		h.metrics.IncrementMalformedMessages()
		return
	}

	switch m := msg.(type) {
	case *models.UserJoin:
		h.handleJoin(c, m)
	case *models.Drawing:
		h.handleDrawing(c, m)
	case *models.CursorMove:
		h.handleCursor(c, m)
	case *models.Ping:
		h.sendTo(c, models.Pong{Timestamp: h.now().UnixMilli()})
	default:
		slog.Warn("Dropping unexpected message", "conn", c.id, "type", msg.MessageType())
		h.metrics.IncrementMalformedMessages()
	}
}

func (h *Hub) handleJoin(c *Client, m *models.UserJoin) {
	if c.state != stateUnjoined {
		slog.Warn("Ignoring duplicate join", "conn", c.id, "room", c.roomID, "state", c.state)
		h.metrics.IncrementProtocolErrors()
		return
	}
	if err := security.ValidateUserID(m.UserID); err != nil {
		h.metrics.IncrementMalformedMessages()
		h.sendTo(c, models.Error{Message: security.SanitizeErrorMessage(err)})
		return
	}
	if _, taken := h.participants[m.UserID]; taken {
		h.metrics.IncrementProtocolErrors()
		h.sendTo(c, models.Error{Message: "participant id already connected"})
		return
	}

	room := h.registry.GetOrCreateRoom(c.roomID)
	h.cancelReap(room.ID)
	h.metrics.SetActiveRooms(h.registry.Len())

	p := models.NewParticipant(
		m.UserID,
		security.SanitizeParticipantName(m.UserName),
		security.SanitizeColor(m.UserColor, h.sanitizer.DefaultColor),
	)
	if err := room.AddParticipant(p); err != nil {
		h.metrics.IncrementProtocolErrors()
		h.sendTo(c, models.Error{Message: "participant id already connected"})
		return
	}

	c.session = &Session{RoomID: room.ID, Participant: *p}
	c.state = stateActive
	h.participants[p.ID] = c
	h.metrics.IncrementParticipants()

	history := room.Log().Replay()
	h.sendTo(c, models.UserList{Users: room.UserList()})
	h.sendTo(c, models.DrawingHistory{Operations: history})
	h.sendTo(c, models.SyncComplete{HistorySize: len(history)})
	h.broadcastToRoom(room.ID, models.UserJoined{UserID: p.ID, UserName: p.Name, UserColor: p.Color}, p.ID)

	slog.Info("Participant joined", "room", room.ID, "participant", p.ID, "name", p.Name, "participants", room.Len(), "history", len(history))
}

func (h *Hub) handleDrawing(c *Client, m *models.Drawing) {
	if c.state != stateActive {
		slog.Debug("Dropping drawing from unjoined connection", "conn", c.id)
		h.metrics.IncrementProtocolErrors()
		return
	}
	if len(m.Operations) == 0 {
		return
	}

	s := c.session
	room, ok := h.registry.Room(s.RoomID)
	if !ok {
		return
	}

	ops := h.sanitizer.SanitizeAll(m.Operations)
	for i := range ops {
		ops[i].UserID = s.Participant.ID
	}

	if h.opts.CompactOnClear {
		if i := lastClear(ops); i >= 0 {
			room.Log().Clear()
			ops = ops[i:]
		}
	}

	logged := room.Log().Append(ops...)
	room.LastActivity = h.now()
	h.metrics.AddOperationsLogged(len(logged))

	ts := m.Timestamp
	if ts == 0 {
		ts = h.now().UnixMilli()
	}
	h.broadcastToRoom(s.RoomID, models.Drawing{
		UserID:     s.Participant.ID,
		Operations: logged,
		Timestamp:  ts,
	}, s.Participant.ID)
}

func lastClear(ops []models.Operation) int {
	for i := len(ops) - 1; i >= 0; i-- {
		if ops[i].Type == models.OpClear {
			return i
		}
	}
	return -1
}

func (h *Hub) handleCursor(c *Client, m *models.CursorMove) {
	if c.state != stateActive {
		return
	}
	s := c.session
	x, y := h.sanitizer.Bounds.Clip(m.X, m.Y)
	ts := m.Timestamp
	if ts == 0 {
		ts = h.now().UnixMilli()
	}
	h.broadcastToRoom(s.RoomID, models.CursorMove{
		UserID:    s.Participant.ID,
		X:         x,
		Y:         y,
		Timestamp: ts,
	}, s.Participant.ID)
}

// broadcastToRoom delivers msg to each joined participant of the room in
// join order. Delivery is best effort: a recipient that is gone or too slow
// simply misses it.
func (h *Hub) broadcastToRoom(roomID string, msg models.Message, excludeParticipantID string) {
	room, ok := h.registry.Room(roomID)
	if !ok || room.Len() == 0 {
		return
	}

	data, err := models.Encode(msg)
	if err != nil {
		slog.Error("Encode failed", "type", msg.MessageType(), "error", err)
		return
	}

	for _, p := range room.Participants() {
		if p.ID == excludeParticipantID {
			continue
		}
		c, ok := h.participants[p.ID]
		if !ok {
			continue
		}
		if !c.Send(data) {
			slog.Debug("Broadcast skipped closed recipient", "room", roomID, "participant", p.ID)
		}
	}
}

func (h *Hub) sendTo(c *Client, msg models.Message) {
	c.sendMessage(msg)
}

func (h *Hub) scheduleReap(roomID string) {
	if h.opts.RoomIdleTTL <= 0 {
		return
	}
	if t, ok := h.reapTimers[roomID]; ok {
		t.Stop()
	}
	h.reapTimers[roomID] = time.AfterFunc(h.opts.RoomIdleTTL, func() {
		select {
		case h.reap <- roomID:
		case <-h.done:
		}
	})
}

func (h *Hub) cancelReap(roomID string) {
	if t, ok := h.reapTimers[roomID]; ok {
		t.Stop()
		delete(h.reapTimers, roomID)
	}
}

func (h *Hub) reapRoom(roomID string) {
	delete(h.reapTimers, roomID)
	room, ok := h.registry.Room(roomID)
	if !ok || room.Len() > 0 {
		return
	}
	h.registry.DeleteRoom(roomID)
	h.metrics.SetActiveRooms(h.registry.Len())
	slog.Info("Room removed after idle timeout", "room", roomID, "ttl", h.opts.RoomIdleTTL)
}
