package testutil

import (
	"context"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/coder/websocket"

	"github.com/Hari-Krishnan-N/collaborative-canvas/internal/config"
	"github.com/Hari-Krishnan-N/collaborative-canvas/internal/models"
)

// WSClient is a test WebSocket client that records every decoded server
// message in arrival order.
type WSClient struct {
	conn       *websocket.Conn
	messages   []models.Message
	messagesMu sync.RWMutex
	closed     bool
	closedMu   sync.RWMutex
	done       chan struct{}
}

func NewWSClient() *WSClient {
	return &WSClient{
		messages: make([]models.Message, 0),
		done:     make(chan struct{}),
	}
}

// Connect establishes a WebSocket connection to the given URL
func (c *WSClient) Connect(url string) error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	conn, _, err := websocket.Dial(ctx, url, &websocket.DialOptions{
		HTTPClient: &http.Client{Timeout: 5 * time.Second},
	})
	if err != nil {
		return fmt.Errorf("failed to connect: %w", err)
	}
	conn.SetReadLimit(config.HistoryReadLimit(config.DefaultMaxOperations))
	c.conn = conn

	go c.receiveMessages()
	return nil
}

func (c *WSClient) receiveMessages() {
	defer close(c.done)
	for {
		_, data, err := c.conn.Read(context.Background())
		if err != nil {
			return
		}
		msg, err := models.Decode(data, models.ServerToClient)
		if err != nil {
			continue
		}
		c.messagesMu.Lock()
		c.messages = append(c.messages, msg)
		c.messagesMu.Unlock()
	}
}

// Send encodes and writes msg.
func (c *WSClient) Send(msg models.Message) error {
	data, err := models.Encode(msg)
	if err != nil {
		return err
	}
	return c.SendRaw(data)
}

func (c *WSClient) SendRaw(data []byte) error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return c.conn.Write(ctx, websocket.MessageText, data)
}

// Join sends a user_join.
func (c *WSClient) Join(userID, name, color string) error {
	return c.Send(models.UserJoin{UserID: userID, UserName: name, UserColor: color})
}

// WaitForMessageType waits for the first message of typ.
func (c *WSClient) WaitForMessageType(typ models.MessageType, timeout time.Duration) models.Message {
	return c.WaitForNthMessageType(typ, 1, timeout)
}

// WaitForNthMessageType waits until n messages of typ have arrived and
// returns the nth.
func (c *WSClient) WaitForNthMessageType(typ models.MessageType, n int, timeout time.Duration) models.Message {
	deadline := time.Now().Add(timeout)

	for time.Now().Before(deadline) {
		if msgs := c.MessagesOfType(typ); len(msgs) >= n {
			return msgs[n-1]
		}
		time.Sleep(10 * time.Millisecond)
	}
	return nil
}

// MessagesOfType returns the received messages of typ, oldest first.
func (c *WSClient) MessagesOfType(typ models.MessageType) []models.Message {
	c.messagesMu.RLock()
	defer c.messagesMu.RUnlock()

	var out []models.Message
	for _, msg := range c.messages {
		if msg.MessageType() == typ {
			out = append(out, msg)
		}
	}
	return out
}

// ReceivedMessages returns all received messages
func (c *WSClient) ReceivedMessages() []models.Message {
	c.messagesMu.RLock()
	defer c.messagesMu.RUnlock()

	messages := make([]models.Message, len(c.messages))
	copy(messages, c.messages)
	return messages
}

func (c *WSClient) ClearMessages() {
	c.messagesMu.Lock()
	c.messages = make([]models.Message, 0)
	c.messagesMu.Unlock()
}

// Close closes the WebSocket connection
func (c *WSClient) Close() {
	c.closedMu.Lock()
	defer c.closedMu.Unlock()
	if c.closed || c.conn == nil {
		return
	}
	c.closed = true
	c.conn.Close(websocket.StatusNormalClosure, "")
}
