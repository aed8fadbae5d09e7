package services_test

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Hari-Krishnan-N/collaborative-canvas/internal/config"
	"github.com/Hari-Krishnan-N/collaborative-canvas/internal/services"
)

func TestMetrics_Snapshot(t *testing.T) {
	m := services.NewMetrics()

	m.IncrementConnections()
	m.IncrementConnections()
	m.DecrementConnections()
	m.SetActiveRooms(3)
	m.IncrementParticipants()
	m.IncrementMessagesReceived()
	m.IncrementMessagesSent()
	m.AddOperationsLogged(4)
	m.IncrementMalformedMessages()
	m.IncrementRateLimitViolations()

	s := m.Snapshot()
	assert.EqualValues(t, 1, s.ActiveConnections)
	assert.EqualValues(t, 2, s.TotalConnections)
	assert.EqualValues(t, 3, s.ActiveRooms)
	assert.EqualValues(t, 1, s.ActiveParticipants)
	assert.EqualValues(t, 1, s.MessagesReceived)
	assert.EqualValues(t, 1, s.MessagesSent)
	assert.EqualValues(t, 4, s.OperationsLogged)
	assert.EqualValues(t, 1, s.MalformedMessages)
	assert.EqualValues(t, 1, s.RateLimitViolations)
	assert.NotEqual(t, "never", s.LastMessageTime)
	assert.Equal(t, "healthy", s.HealthStatus)
}

func TestMetrics_HealthStatus(t *testing.T) {
	t.Run("errors", func(t *testing.T) {
		m := services.NewMetrics()
		for i := 0; i <= config.HealthWarningErrors; i++ {
			m.IncrementBroadcastErrors()
		}
		assert.Equal(t, "warning", m.Snapshot().HealthStatus)
	})

	t.Run("rooms", func(t *testing.T) {
		m := services.NewMetrics()
		m.SetActiveRooms(config.HealthWarningRooms)
		assert.Equal(t, "healthy", m.Snapshot().HealthStatus)
		m.SetActiveRooms(config.HealthWarningRooms + 1)
		assert.Equal(t, "warning", m.Snapshot().HealthStatus)
		m.SetActiveRooms(config.HealthCriticalRooms + 1)
		assert.Equal(t, "critical", m.Snapshot().HealthStatus)
	})

	t.Run("connections", func(t *testing.T) {
		m := services.NewMetrics()
		for i := 0; i <= config.HealthWarningConnections; i++ {
			m.IncrementConnections()
		}
		assert.Equal(t, "warning", m.Snapshot().HealthStatus)
		for i := config.HealthWarningConnections; i < config.HealthCriticalConnections; i++ {
			m.IncrementConnections()
		}
		assert.Equal(t, "critical", m.Snapshot().HealthStatus)
	})
}

func TestMetrics_Prometheus(t *testing.T) {
	m := services.NewMetrics()
	m.IncrementConnections()
	m.AddOperationsLogged(7)
	m.IncrementProtocolErrors()

	n, err := testutil.GatherAndCount(m.Registry(), "canvas_active_connections", "canvas_operations_logged_total", "canvas_errors_total")
	require.NoError(t, err)
	assert.Equal(t, 3, n)
}
