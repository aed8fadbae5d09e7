package services

import (
	"runtime"
	"sync/atomic"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/Hari-Krishnan-N/collaborative-canvas/internal/config"
)

// Metrics tracks WebSocket server performance and resource usage. Counters
// are kept as atomics for the JSON snapshot and mirrored into a private
// prometheus registry for scraping.
type Metrics struct {
	// Connection metrics
	activeConnections  int64
	totalConnections   int64
	activeRooms        int64
	activeParticipants int64

	// Message metrics
	messagesReceived int64
	messagesSent     int64
	operationsLogged int64
	lastMessageTime  int64 // Unix timestamp

	// Error metrics
	connectionErrors    int64
	broadcastErrors     int64
	rateLimitViolations int64
	malformedMessages   int64
	protocolErrors      int64

	startTime time.Time

	registry *prometheus.Registry
	prom     promMetrics
}

type promMetrics struct {
	connections      prometheus.Gauge
	connectionsTotal prometheus.Counter
	rooms            prometheus.Gauge
	participants     prometheus.Gauge
	messages         *prometheus.CounterVec
	operations       prometheus.Counter
	errors           *prometheus.CounterVec
}

// NewMetrics creates a new metrics tracker
func NewMetrics() *Metrics {
	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector())
	factory := promauto.With(reg)

	return &Metrics{
		startTime: time.Now(),
		registry:  reg,
		prom: promMetrics{
			connections: factory.NewGauge(prometheus.GaugeOpts{
				Name: "canvas_active_connections",
				Help: "Open websocket connections",
			}),
			connectionsTotal: factory.NewCounter(prometheus.CounterOpts{
				Name: "canvas_connections_total",
				Help: "Websocket connections accepted since start",
			}),
			rooms: factory.NewGauge(prometheus.GaugeOpts{
				Name: "canvas_active_rooms",
				Help: "Rooms currently held by the session registry",
			}),
			participants: factory.NewGauge(prometheus.GaugeOpts{
				Name: "canvas_active_participants",
				Help: "Joined participants across all rooms",
			}),
			messages: factory.NewCounterVec(prometheus.CounterOpts{
				Name: "canvas_messages_total",
				Help: "Websocket messages by direction",
			}, []string{"direction"}),
			operations: factory.NewCounter(prometheus.CounterOpts{
				Name: "canvas_operations_logged_total",
				Help: "Drawing operations appended to room logs",
			}),
			errors: factory.NewCounterVec(prometheus.CounterOpts{
				Name: "canvas_errors_total",
				Help: "Per-connection failures by kind",
			}, []string{"kind"}),
		},
	}
}

// Registry exposes the prometheus registry for the /metrics handler.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// Connection tracking
func (m *Metrics) IncrementConnections() {
	atomic.AddInt64(&m.activeConnections, 1)
	atomic.AddInt64(&m.totalConnections, 1)
	m.prom.connections.Inc()
	m.prom.connectionsTotal.Inc()
}

func (m *Metrics) DecrementConnections() {
	atomic.AddInt64(&m.activeConnections, -1)
	m.prom.connections.Dec()
}

func (m *Metrics) SetActiveRooms(n int) {
	atomic.StoreInt64(&m.activeRooms, int64(n))
	m.prom.rooms.Set(float64(n))
}

func (m *Metrics) IncrementParticipants() {
	atomic.AddInt64(&m.activeParticipants, 1)
	m.prom.participants.Inc()
}

func (m *Metrics) DecrementParticipants() {
	atomic.AddInt64(&m.activeParticipants, -1)
	m.prom.participants.Dec()
}

// Message tracking
func (m *Metrics) IncrementMessagesReceived() {
	atomic.AddInt64(&m.messagesReceived, 1)
	atomic.StoreInt64(&m.lastMessageTime, time.Now().Unix())
	m.prom.messages.WithLabelValues("in").Inc()
}

func (m *Metrics) IncrementMessagesSent() {
	atomic.AddInt64(&m.messagesSent, 1)
	m.prom.messages.WithLabelValues("out").Inc()
}

func (m *Metrics) AddOperationsLogged(n int) {
	atomic.AddInt64(&m.operationsLogged, int64(n))
	m.prom.operations.Add(float64(n))
}

// Error tracking
func (m *Metrics) IncrementConnectionErrors() {
	atomic.AddInt64(&m.connectionErrors, 1)
	m.prom.errors.WithLabelValues("connection").Inc()
}

func (m *Metrics) IncrementBroadcastErrors() {
	atomic.AddInt64(&m.broadcastErrors, 1)
	m.prom.errors.WithLabelValues("broadcast").Inc()
}

func (m *Metrics) IncrementRateLimitViolations() {
	atomic.AddInt64(&m.rateLimitViolations, 1)
	m.prom.errors.WithLabelValues("rate_limit").Inc()
}

func (m *Metrics) IncrementMalformedMessages() {
	atomic.AddInt64(&m.malformedMessages, 1)
	m.prom.errors.WithLabelValues("malformed").Inc()
}

func (m *Metrics) IncrementProtocolErrors() {
	atomic.AddInt64(&m.protocolErrors, 1)
	m.prom.errors.WithLabelValues("protocol").Inc()
}

// MetricsSnapshot represents a point-in-time view of metrics
type MetricsSnapshot struct {
	// Connection metrics
	ActiveConnections  int64 `json:"active_connections"`
	TotalConnections   int64 `json:"total_connections"`
	ActiveRooms        int64 `json:"active_rooms"`
	ActiveParticipants int64 `json:"active_participants"`

	// Message metrics
	MessagesReceived  int64   `json:"messages_received"`
	MessagesSent      int64   `json:"messages_sent"`
	OperationsLogged  int64   `json:"operations_logged"`
	MessagesPerSecond float64 `json:"messages_per_second"`
	LastMessageTime   string  `json:"last_message_time"`

	// Error metrics
	ConnectionErrors    int64 `json:"connection_errors"`
	BroadcastErrors     int64 `json:"broadcast_errors"`
	RateLimitViolations int64 `json:"rate_limit_violations"`
	MalformedMessages   int64 `json:"malformed_messages"`
	ProtocolErrors      int64 `json:"protocol_errors"`

	// Resource metrics
	UptimeSeconds int64  `json:"uptime_seconds"`
	MemoryUsageMB uint64 `json:"memory_usage_mb"`
	NumGoroutines int    `json:"num_goroutines"`

	HealthStatus string `json:"health_status"`
}

// Snapshot returns a point-in-time view of all metrics
func (m *Metrics) Snapshot() MetricsSnapshot {
	var memStats runtime.MemStats
	runtime.ReadMemStats(&memStats)

	uptime := time.Since(m.startTime)
	messagesPerSec := float64(atomic.LoadInt64(&m.messagesReceived)) / uptime.Seconds()

	lastMsgTime := atomic.LoadInt64(&m.lastMessageTime)
	lastMsgTimeStr := "never"
	if lastMsgTime > 0 {
		lastMsgTimeStr = time.Unix(lastMsgTime, 0).Format(time.RFC3339)
	}

	return MetricsSnapshot{
		ActiveConnections:   atomic.LoadInt64(&m.activeConnections),
		TotalConnections:    atomic.LoadInt64(&m.totalConnections),
		ActiveRooms:         atomic.LoadInt64(&m.activeRooms),
		ActiveParticipants:  atomic.LoadInt64(&m.activeParticipants),
		MessagesReceived:    atomic.LoadInt64(&m.messagesReceived),
		MessagesSent:        atomic.LoadInt64(&m.messagesSent),
		OperationsLogged:    atomic.LoadInt64(&m.operationsLogged),
		MessagesPerSecond:   messagesPerSec,
		LastMessageTime:     lastMsgTimeStr,
		ConnectionErrors:    atomic.LoadInt64(&m.connectionErrors),
		BroadcastErrors:     atomic.LoadInt64(&m.broadcastErrors),
		RateLimitViolations: atomic.LoadInt64(&m.rateLimitViolations),
		MalformedMessages:   atomic.LoadInt64(&m.malformedMessages),
		ProtocolErrors:      atomic.LoadInt64(&m.protocolErrors),
		UptimeSeconds:       int64(uptime.Seconds()),
		MemoryUsageMB:       memStats.Alloc / 1024 / 1024,
		NumGoroutines:       runtime.NumGoroutine(),
		HealthStatus:        m.calculateHealthStatus(),
	}
}

// calculateHealthStatus determines overall system health
func (m *Metrics) calculateHealthStatus() string {
	activeConns := atomic.LoadInt64(&m.activeConnections)
	activeRooms := atomic.LoadInt64(&m.activeRooms)
	errors := atomic.LoadInt64(&m.connectionErrors) + atomic.LoadInt64(&m.broadcastErrors)

	if activeConns > config.HealthCriticalConnections || activeRooms > config.HealthCriticalRooms {
		return "critical"
	}

	if activeConns > config.HealthWarningConnections || activeRooms > config.HealthWarningRooms ||
		errors > config.HealthWarningErrors {
		return "warning"
	}

	return "healthy"
}
