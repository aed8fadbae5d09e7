package config

import "time"

// Session limits and defaults
const (
	// Operation log
	DefaultMaxOperations = 1000

	// Surface bounds used for clipping inbound coordinates
	DefaultCanvasWidth  = 1920
	DefaultCanvasHeight = 1080

	// Stroke defaults
	DefaultColor    = "#000000"
	DefaultWidth    = 5
	MinStrokeWidth  = 1
	MaxStrokeWidth  = 100
	DefaultRoomID   = "default"
	MaxUserIDLength = 128

	// Rate limiting
	MaxMessagesPerSecond = 120
	RateLimitWindow      = time.Second

	// Timeouts
	WriteTimeout = 10 * time.Second
	PingInterval = 30 * time.Second

	// Channel buffers
	ClientSendBufferSize = 256
	HubInboundBufferSize = 1024
	HubUnregisterBuffer  = 100

	// Websocket read limits. MaxOperationBytes bounds one encoded operation
	// with a maximum-length userId; drawing_history carries up to the log
	// cap of them.
	MaxOperationBytes      = 512
	ReadLimitHeadroom      = 64 << 10
	MaxInboundMessageBytes = 512 << 10

	// Health thresholds
	HealthCriticalConnections = 4500
	HealthWarningConnections  = 4000
	HealthCriticalRooms       = 450
	HealthWarningRooms        = 400
	HealthWarningErrors       = 100
)

// HistoryReadLimit is the largest server message a client must accept when
// the server keeps maxOperations per room.
func HistoryReadLimit(maxOperations int) int64 {
	if maxOperations <= 0 {
		maxOperations = DefaultMaxOperations
	}
	return int64(maxOperations)*MaxOperationBytes + ReadLimitHeadroom
}

// Client-side defaults
const (
	ReconnectDelay       = 3 * time.Second
	MaxReconnectAttempts = 5
	ClientPingInterval   = 30 * time.Second
	BatchInterval        = 50 * time.Millisecond
	MaxHistorySnapshots  = 50
)
