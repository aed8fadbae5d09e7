package services_test

import (
	"context"
	"testing"
	"time"

	"github.com/coder/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Hari-Krishnan-N/collaborative-canvas/internal/models"
	"github.com/Hari-Krishnan-N/collaborative-canvas/internal/security"
	"github.com/Hari-Krishnan-N/collaborative-canvas/internal/services"
	"github.com/Hari-Krishnan-N/collaborative-canvas/internal/testutil"
)

const wait = 2 * time.Second

type hubFixture struct {
	hub     *services.Hub
	metrics *services.Metrics
	cancel  context.CancelFunc
	stopped chan struct{}
}

func startHub(t *testing.T, logCapacity int, opts services.HubOptions) *hubFixture {
	t.Helper()

	metrics := services.NewMetrics()
	hub := services.NewHub(services.NewRegistry(logCapacity), metrics, opts)
	ctx, cancel := context.WithCancel(context.Background())

	f := &hubFixture{hub: hub, metrics: metrics, cancel: cancel, stopped: make(chan struct{})}
	go func() {
		hub.Run(ctx)
		close(f.stopped)
	}()
	t.Cleanup(func() {
		cancel()
		<-f.stopped
	})
	return f
}

func (f *hubFixture) connect(t *testing.T, room string) *testutil.MockWSConn {
	t.Helper()

	conn := testutil.NewMockWSConn()
	client := services.NewClient(conn, f.hub, room)
	require.NoError(t, f.hub.Register(client))
	client.Start()
	return conn
}

func push(t *testing.T, conn *testutil.MockWSConn, msg models.Message) {
	t.Helper()
	data, err := models.Encode(msg)
	require.NoError(t, err)
	conn.Push(data)
}

func decoded(t *testing.T, conn *testutil.MockWSConn) []models.Message {
	t.Helper()
	var out []models.Message
	for _, raw := range conn.ReceivedMessages() {
		msg, err := models.Decode(raw, models.ServerToClient)
		if err != nil {
			t.Errorf("undecodable server message %s: %v", raw, err)
			continue
		}
		out = append(out, msg)
	}
	return out
}

func ofType(msgs []models.Message, typ models.MessageType) []models.Message {
	var out []models.Message
	for _, m := range msgs {
		if m.MessageType() == typ {
			out = append(out, m)
		}
	}
	return out
}

// waitFor blocks until conn has received n messages of typ and returns them.
func waitFor(t *testing.T, conn *testutil.MockWSConn, typ models.MessageType, n int) []models.Message {
	t.Helper()
	var got []models.Message
	require.Eventually(t, func() bool {
		got = ofType(decoded(t, conn), typ)
		return len(got) >= n
	}, wait, 5*time.Millisecond, "waiting for %d %s", n, typ)
	return got
}

func join(t *testing.T, conn *testutil.MockWSConn, id, name string) {
	t.Helper()
	push(t, conn, models.UserJoin{UserID: id, UserName: name, UserColor: "#abcdef"})
	waitFor(t, conn, models.MsgTypeSyncComplete, 1)
}

func replay(t *testing.T, hub *services.Hub, room string) []models.Operation {
	t.Helper()
	ops, ok, err := hub.Replay(context.Background(), room)
	require.NoError(t, err)
	require.True(t, ok, "room %s exists", room)
	return ops
}

// logLen is safe to poll from Eventually; it reports -1 for a missing room.
func logLen(hub *services.Hub, room string) int {
	ops, ok, err := hub.Replay(context.Background(), room)
	if err != nil || !ok {
		return -1
	}
	return len(ops)
}

func TestHub_JoinReplayLeave(t *testing.T) {
	f := startHub(t, 1000, services.HubOptions{})

	a := f.connect(t, "default")
	join(t, a, "A", "Ann")

	msgs := decoded(t, a)
	require.Len(t, msgs, 3)
	list := msgs[0].(*models.UserList)
	assert.Len(t, list.Users, 1)
	history := msgs[1].(*models.DrawingHistory)
	assert.Empty(t, history.Operations)
	assert.Equal(t, &models.SyncComplete{HistorySize: 0}, msgs[2])

	push(t, a, models.Drawing{UserID: "A", Operations: []models.Operation{
		testutil.DrawOp(1, 1), testutil.DrawOp(2, 2), testutil.DrawOp(3, 3),
	}})
	require.Eventually(t, func() bool { return logLen(f.hub, "default") == 3 }, wait, 5*time.Millisecond)

	b := f.connect(t, "default")
	join(t, b, "B", "Bob")

	msgs = decoded(t, b)
	require.Len(t, msgs, 3)
	list = msgs[0].(*models.UserList)
	require.Len(t, list.Users, 2)
	assert.Equal(t, "A", list.Users[0].UserID)
	assert.Equal(t, "B", list.Users[1].UserID)

	history = msgs[1].(*models.DrawingHistory)
	require.Len(t, history.Operations, 3)
	for i, op := range history.Operations {
		assert.Equal(t, float64(i+1), op.X)
		assert.Equal(t, "A", op.UserID)
	}
	assert.Equal(t, &models.SyncComplete{HistorySize: 3}, msgs[2])

	joined := waitFor(t, a, models.MsgTypeUserJoined, 1)
	assert.Equal(t, "B", joined[0].(*models.UserJoined).UserID)
	assert.Equal(t, "Bob", joined[0].(*models.UserJoined).UserName)

	assert.Empty(t, ofType(decoded(t, a), models.MsgTypeDrawing), "sender never gets its own drawing")

	require.NoError(t, a.Close(websocket.StatusNormalClosure, ""))
	left := waitFor(t, b, models.MsgTypeUserLeft, 1)
	assert.Equal(t, "A", left[0].(*models.UserLeft).UserID)

	stats, err := f.hub.Stats(context.Background())
	require.NoError(t, err)
	require.Len(t, stats, 1)
	assert.Equal(t, 1, stats[0].ParticipantCount())
	assert.Equal(t, 3, stats[0].LogSize)
}

func TestHub_LiveStreamMatchesReplay(t *testing.T) {
	f := startHub(t, 1000, services.HubOptions{})

	a := f.connect(t, "r")
	join(t, a, "A", "Ann")
	b := f.connect(t, "r")
	join(t, b, "B", "Bob")

	push(t, a, models.Drawing{Operations: []models.Operation{testutil.StartOp(1, 1), testutil.DrawOp(2, 2)}})
	waitFor(t, b, models.MsgTypeDrawing, 1)

	c := f.connect(t, "r")
	join(t, c, "C", "Cy")

	push(t, a, models.Drawing{Operations: []models.Operation{testutil.DrawOp(3, 3), testutil.EndOp()}})
	waitFor(t, b, models.MsgTypeDrawing, 2)
	waitFor(t, c, models.MsgTypeDrawing, 1)

	var seenByB []models.Operation
	for _, m := range ofType(decoded(t, b), models.MsgTypeDrawing) {
		seenByB = append(seenByB, m.(*models.Drawing).Operations...)
	}

	msgs := decoded(t, c)
	seenByC := append([]models.Operation{}, ofType(msgs, models.MsgTypeDrawingHistory)[0].(*models.DrawingHistory).Operations...)
	for _, m := range ofType(msgs, models.MsgTypeDrawing) {
		seenByC = append(seenByC, m.(*models.Drawing).Operations...)
	}

	assert.Equal(t, seenByB, seenByC)
	assert.Equal(t, replay(t, f.hub, "r"), seenByC)
}

func TestHub_BroadcastExclusion(t *testing.T) {
	f := startHub(t, 100, services.HubOptions{})

	conns := make([]*testutil.MockWSConn, 4)
	ids := []string{"p0", "p1", "p2", "p3"}
	for i := range conns {
		conns[i] = f.connect(t, "room")
		join(t, conns[i], ids[i], ids[i])
	}

	push(t, conns[2], models.Drawing{Operations: []models.Operation{testutil.StartOp(5, 5)}})
	for i, conn := range conns {
		if i == 2 {
			continue
		}
		got := waitFor(t, conn, models.MsgTypeDrawing, 1)
		d := got[0].(*models.Drawing)
		assert.Equal(t, "p2", d.UserID)
		require.Len(t, d.Operations, 1)
		assert.Equal(t, "p2", d.Operations[0].UserID)
	}
	assert.Empty(t, ofType(decoded(t, conns[2]), models.MsgTypeDrawing))

	f.hub.BroadcastToRoom("room", models.Error{Message: "notice"}, "p0")
	for i, conn := range conns[1:] {
		got := waitFor(t, conn, models.MsgTypeError, 1)
		assert.Equal(t, "notice", got[0].(*models.Error).Message, "recipient %d", i+1)
	}
	assert.Empty(t, ofType(decoded(t, conns[0]), models.MsgTypeError))
}

func TestHub_RoomsAreIsolated(t *testing.T) {
	f := startHub(t, 100, services.HubOptions{})

	a := f.connect(t, "one")
	join(t, a, "A", "Ann")
	b := f.connect(t, "two")
	join(t, b, "B", "Bob")
	c := f.connect(t, "one")
	join(t, c, "C", "Cy")

	push(t, a, models.Drawing{Operations: []models.Operation{testutil.StartOp(1, 1)}})
	waitFor(t, c, models.MsgTypeDrawing, 1)

	assert.Empty(t, ofType(decoded(t, b), models.MsgTypeDrawing))
	assert.Empty(t, ofType(decoded(t, b), models.MsgTypeUserJoined))
	assert.Empty(t, replay(t, f.hub, "two"))
}

func TestHub_ProtocolErrors(t *testing.T) {
	t.Run("second join on an active connection is ignored", func(t *testing.T) {
		f := startHub(t, 100, services.HubOptions{})
		a := f.connect(t, "r")
		join(t, a, "A", "Ann")

		push(t, a, models.UserJoin{UserID: "A2", UserName: "Other"})
		push(t, a, models.Ping{})
		waitFor(t, a, models.MsgTypePong, 1)

		assert.Len(t, ofType(decoded(t, a), models.MsgTypeUserList), 1)
		stats, err := f.hub.Stats(context.Background())
		require.NoError(t, err)
		require.Len(t, stats, 1)
		require.Len(t, stats[0].Participants, 1)
		assert.Equal(t, "A", stats[0].Participants[0].UserID)
	})

	t.Run("live participant id is rejected", func(t *testing.T) {
		f := startHub(t, 100, services.HubOptions{})
		a := f.connect(t, "r")
		join(t, a, "A", "Ann")

		b := f.connect(t, "r")
		push(t, b, models.UserJoin{UserID: "A", UserName: "Imposter"})
		waitFor(t, b, models.MsgTypeError, 1)
		assert.False(t, b.IsClosed())

		join(t, b, "B", "Bob")
		list := ofType(decoded(t, b), models.MsgTypeUserList)[0].(*models.UserList)
		assert.Len(t, list.Users, 2)
	})

	t.Run("malformed input keeps the connection open", func(t *testing.T) {
		f := startHub(t, 100, services.HubOptions{})
		a := f.connect(t, "r")

		a.Push([]byte(`not json`))
		a.Push([]byte(`{"type":"vote"}`))
		a.Push([]byte(`{"type":"user_list","users":[]}`))
		a.Push([]byte(`{"type":"user_join"}`))
		join(t, a, "A", "Ann")

		a.Push([]byte(`{"type":"drawing","operations":[{"type":"draw","x":1}]}`))
		push(t, a, models.Ping{})
		waitFor(t, a, models.MsgTypePong, 1)

		assert.False(t, a.IsClosed())
		assert.Empty(t, replay(t, f.hub, "r"))
		assert.EqualValues(t, 5, f.metrics.Snapshot().MalformedMessages)
	})

	t.Run("join without name or color gets defaults", func(t *testing.T) {
		f := startHub(t, 100, services.HubOptions{DefaultColor: "#123456"})
		a := f.connect(t, "r")
		push(t, a, models.UserJoin{UserID: "A"})
		list := waitFor(t, a, models.MsgTypeUserList, 1)[0].(*models.UserList)
		require.Len(t, list.Users, 1)
		assert.Equal(t, security.DefaultParticipantName, list.Users[0].UserName)
		assert.Equal(t, "#123456", list.Users[0].UserColor)
	})

	t.Run("cursor without coordinates is not relayed", func(t *testing.T) {
		f := startHub(t, 100, services.HubOptions{})
		a := f.connect(t, "r")
		join(t, a, "A", "Ann")
		b := f.connect(t, "r")
		join(t, b, "B", "Bob")

		a.Push([]byte(`{"type":"cursor_move","userId":"A"}`))
		a.Push([]byte(`{"type":"cursor_move","x":4}`))
		push(t, a, models.CursorMove{X: 3, Y: 7})

		cur := waitFor(t, b, models.MsgTypeCursorMove, 1)[0].(*models.CursorMove)
		assert.Equal(t, 3.0, cur.X)
		assert.Equal(t, 7.0, cur.Y)
		assert.EqualValues(t, 2, f.metrics.Snapshot().MalformedMessages)
	})

	t.Run("drawing before join is dropped", func(t *testing.T) {
		f := startHub(t, 100, services.HubOptions{})
		a := f.connect(t, "r")

		push(t, a, models.Drawing{Operations: []models.Operation{testutil.StartOp(1, 1)}})
		join(t, a, "A", "Ann")

		assert.Empty(t, replay(t, f.hub, "r"))
		history := ofType(decoded(t, a), models.MsgTypeDrawingHistory)[0].(*models.DrawingHistory)
		assert.Empty(t, history.Operations)
	})
}

func TestHub_SanitizesRelayedInput(t *testing.T) {
	f := startHub(t, 100, services.HubOptions{CanvasWidth: 800, CanvasHeight: 600, DefaultColor: "#123456"})

	a := f.connect(t, "r")
	join(t, a, "A", "Ann")
	b := f.connect(t, "r")
	join(t, b, "B", "Bob")

	push(t, a, models.Drawing{UserID: "spoofed", Operations: []models.Operation{
		{Type: models.OpStart, X: -10, Y: 9000, Tool: models.ToolInk, Color: "purple", Width: 0},
	}})
	got := waitFor(t, b, models.MsgTypeDrawing, 1)[0].(*models.Drawing)
	assert.Equal(t, "A", got.UserID)
	require.Len(t, got.Operations, 1)
	op := got.Operations[0]
	assert.Equal(t, 0.0, op.X)
	assert.Equal(t, 600.0, op.Y)
	assert.Equal(t, "#123456", op.Color)
	assert.Equal(t, 5, op.Width)
	assert.NotZero(t, op.ReceivedAt)

	push(t, a, models.CursorMove{UserID: "spoofed", X: 5000, Y: 10})
	cur := waitFor(t, b, models.MsgTypeCursorMove, 1)[0].(*models.CursorMove)
	assert.Equal(t, "A", cur.UserID)
	assert.Equal(t, 800.0, cur.X)
	assert.Equal(t, 10.0, cur.Y)

	assert.Len(t, replay(t, f.hub, "r"), 1, "cursor moves are not logged")
}

func TestHub_ClearPolicy(t *testing.T) {
	ops := []models.Operation{testutil.StartOp(1, 1), testutil.DrawOp(2, 2), testutil.EndOp()}

	t.Run("clear is appended by default", func(t *testing.T) {
		f := startHub(t, 100, services.HubOptions{})
		a := f.connect(t, "r")
		join(t, a, "A", "Ann")

		push(t, a, models.Drawing{Operations: ops})
		push(t, a, models.Drawing{Operations: []models.Operation{testutil.ClearOp()}})
		require.Eventually(t, func() bool { return logLen(f.hub, "r") == 4 }, wait, 5*time.Millisecond)
		assert.Equal(t, models.OpClear, replay(t, f.hub, "r")[3].Type)
	})

	t.Run("compact on clear keeps only the clear", func(t *testing.T) {
		f := startHub(t, 100, services.HubOptions{CompactOnClear: true})
		a := f.connect(t, "r")
		join(t, a, "A", "Ann")
		b := f.connect(t, "r")
		join(t, b, "B", "Bob")

		push(t, a, models.Drawing{Operations: ops})
		push(t, a, models.Drawing{Operations: []models.Operation{testutil.DrawOp(9, 9), testutil.ClearOp(), testutil.StartOp(3, 3)}})
		waitFor(t, b, models.MsgTypeDrawing, 2)

		got := replay(t, f.hub, "r")
		require.Len(t, got, 2)
		assert.Equal(t, models.OpClear, got[0].Type)
		assert.Equal(t, models.OpStart, got[1].Type)
	})
}

func TestHub_Ping(t *testing.T) {
	f := startHub(t, 100, services.HubOptions{})
	a := f.connect(t, "r")
	join(t, a, "A", "Ann")

	push(t, a, models.Ping{})
	pong := waitFor(t, a, models.MsgTypePong, 1)[0].(*models.Pong)
	assert.NotZero(t, pong.Timestamp)
}

func TestHub_RateLimit(t *testing.T) {
	f := startHub(t, 100, services.HubOptions{MaxMessagesPerSecond: 3, RateLimitWindow: time.Minute})
	a := f.connect(t, "r")
	join(t, a, "A", "Ann")

	push(t, a, models.Ping{})
	push(t, a, models.Ping{})
	push(t, a, models.Ping{})
	waitFor(t, a, models.MsgTypeError, 1)
	waitFor(t, a, models.MsgTypePong, 2)

	assert.False(t, a.IsClosed())
	assert.EqualValues(t, 1, f.metrics.Snapshot().RateLimitViolations)
}

func TestHub_RoomReaping(t *testing.T) {
	f := startHub(t, 100, services.HubOptions{RoomIdleTTL: 30 * time.Millisecond})
	a := f.connect(t, "r")
	join(t, a, "A", "Ann")
	push(t, a, models.Drawing{Operations: []models.Operation{testutil.StartOp(1, 1)}})
	require.Eventually(t, func() bool { return logLen(f.hub, "r") == 1 }, wait, 5*time.Millisecond)

	require.NoError(t, a.Close(websocket.StatusNormalClosure, ""))

	require.Eventually(t, func() bool {
		stats, err := f.hub.Stats(context.Background())
		return err == nil && len(stats) == 0
	}, wait, 5*time.Millisecond)

	b := f.connect(t, "r")
	join(t, b, "B", "Bob")
	history := ofType(decoded(t, b), models.MsgTypeDrawingHistory)[0].(*models.DrawingHistory)
	assert.Empty(t, history.Operations, "a reaped room starts over")
}

func TestHub_Shutdown(t *testing.T) {
	f := startHub(t, 100, services.HubOptions{})
	a := f.connect(t, "r")
	join(t, a, "A", "Ann")

	f.cancel()
	<-f.stopped

	assert.Eventually(t, a.IsClosed, wait, 5*time.Millisecond)
	assert.Equal(t, websocket.StatusGoingAway, a.CloseStatus())

	_, err := f.hub.Stats(context.Background())
	assert.ErrorIs(t, err, services.ErrHubClosed)

	conn := testutil.NewMockWSConn()
	assert.ErrorIs(t, f.hub.Register(services.NewClient(conn, f.hub, "r")), services.ErrHubClosed)
}

func TestHub_QueriesWithCancelledContext(t *testing.T) {
	f := startHub(t, 100, services.HubOptions{})
	a := f.connect(t, "r")
	join(t, a, "A", "Ann")
	push(t, a, models.Drawing{Operations: []models.Operation{testutil.StartOp(1, 1)}})
	require.Eventually(t, func() bool { return logLen(f.hub, "r") == 1 }, wait, 5*time.Millisecond)

	for i := 0; i < 200; i++ {
		ctx, cancel := context.WithCancel(context.Background())
		go cancel()

		ops, ok, err := f.hub.Replay(ctx, "r")
		if err != nil {
			assert.ErrorIs(t, err, context.Canceled)
			assert.Nil(t, ops)
		} else {
			assert.True(t, ok)
			assert.Len(t, ops, 1)
		}

		stats, err := f.hub.Stats(ctx)
		if err != nil {
			assert.ErrorIs(t, err, context.Canceled)
		} else {
			assert.Len(t, stats, 1)
		}
	}
}
