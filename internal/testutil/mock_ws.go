// Package testutil holds websocket doubles and fixtures shared by tests.
package testutil

import (
	"context"
	"net"
	"sync"

	"github.com/coder/websocket"
)

// MockWSConn is an in-memory websocket connection. Messages queued with
// Push are returned by Read; everything written is recorded.
type MockWSConn struct {
	mu          sync.RWMutex
	messages    [][]byte
	pings       int
	closed      bool
	closeStatus websocket.StatusCode
	closeReason string
	writeErr    error

	inbound chan []byte
	done    chan struct{}
}

// NewMockWSConn creates a new mock WebSocket connection
func NewMockWSConn() *MockWSConn {
	return &MockWSConn{
		messages: make([][]byte, 0),
		inbound:  make(chan []byte, 64),
		done:     make(chan struct{}),
	}
}

// Push queues data to be returned by a later Read.
func (m *MockWSConn) Push(data []byte) {
	select {
	case m.inbound <- data:
	case <-m.done:
	}
}

// Write records a message being sent
func (m *MockWSConn) Write(ctx context.Context, typ websocket.MessageType, data []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.closed {
		return net.ErrClosed
	}
	if m.writeErr != nil {
		return m.writeErr
	}

	dataCopy := make([]byte, len(data))
	copy(dataCopy, data)
	m.messages = append(m.messages, dataCopy)
	return nil
}

// Read blocks until a pushed message, close or ctx cancellation.
func (m *MockWSConn) Read(ctx context.Context) (websocket.MessageType, []byte, error) {
	select {
	case data := <-m.inbound:
		return websocket.MessageText, data, nil
	case <-m.done:
		return 0, nil, net.ErrClosed
	case <-ctx.Done():
		return 0, nil, ctx.Err()
	}
}

// Close marks the connection as closed
func (m *MockWSConn) Close(status websocket.StatusCode, reason string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.closed {
		return nil
	}
	m.closed = true
	m.closeStatus = status
	m.closeReason = reason
	close(m.done)
	return nil
}

func (m *MockWSConn) Ping(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return net.ErrClosed
	}
	m.pings++
	return nil
}

// ReceivedMessages returns all messages sent through this connection
func (m *MockWSConn) ReceivedMessages() [][]byte {
	m.mu.RLock()
	defer m.mu.RUnlock()

	result := make([][]byte, len(m.messages))
	for i, msg := range m.messages {
		msgCopy := make([]byte, len(msg))
		copy(msgCopy, msg)
		result[i] = msgCopy
	}
	return result
}

func (m *MockWSConn) IsClosed() bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.closed
}

func (m *MockWSConn) CloseStatus() websocket.StatusCode {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.closeStatus
}

// SetWriteErr sets an error to be returned on Write calls
func (m *MockWSConn) SetWriteErr(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.writeErr = err
}

// ClearMessages clears all recorded messages
func (m *MockWSConn) ClearMessages() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.messages = make([][]byte, 0)
}
