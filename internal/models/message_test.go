package models_test

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Hari-Krishnan-N/collaborative-canvas/internal/models"
)

func TestEncode(t *testing.T) {
	t.Run("type field comes first", func(t *testing.T) {
		data, err := models.Encode(models.SyncComplete{HistorySize: 3})
		require.NoError(t, err)
		assert.Equal(t, `{"type":"sync_complete","historySize":3}`, string(data))
	})

	t.Run("empty body", func(t *testing.T) {
		data, err := models.Encode(models.Ping{})
		require.NoError(t, err)
		assert.Equal(t, `{"type":"ping"}`, string(data))
	})

	t.Run("empty history keeps the operations array", func(t *testing.T) {
		data, err := models.Encode(models.DrawingHistory{Operations: []models.Operation{}})
		require.NoError(t, err)
		assert.JSONEq(t, `{"type":"drawing_history","operations":[]}`, string(data))
	})

	t.Run("end and clear carry no coordinates", func(t *testing.T) {
		data, err := json.Marshal([]models.Operation{
			{Type: models.OpEnd, X: 4, Y: 5, Tool: models.ToolInk},
			{Type: models.OpClear},
		})
		require.NoError(t, err)
		assert.NotContains(t, string(data), `"x"`)
		assert.NotContains(t, string(data), `"y"`)
	})

	t.Run("start keeps zero coordinates", func(t *testing.T) {
		data, err := json.Marshal(models.Operation{Type: models.OpStart, Tool: models.ToolInk})
		require.NoError(t, err)
		assert.Contains(t, string(data), `"x":0`)
		assert.Contains(t, string(data), `"y":0`)
	})
}

func TestDecode_ClientToServer(t *testing.T) {
	t.Run("user_join", func(t *testing.T) {
		msg, err := models.Decode([]byte(`{"type":"user_join","userId":"a","userName":"Ann","userColor":"#abcdef"}`), models.ClientToServer)
		require.NoError(t, err)

		join, ok := msg.(*models.UserJoin)
		require.True(t, ok)
		assert.Equal(t, "a", join.UserID)
		assert.Equal(t, "Ann", join.UserName)
		assert.Equal(t, "#abcdef", join.UserColor)
	})

	t.Run("drawing keeps operation order", func(t *testing.T) {
		raw := `{"type":"drawing","userId":"a","timestamp":7,"operations":[
			{"type":"start","x":1,"y":2,"tool":"ink","color":"#000000","width":3,"timestamp":1},
			{"type":"draw","x":3,"y":4,"tool":"erase","color":"#000000","width":3,"timestamp":2},
			{"type":"end","timestamp":3}
		]}`
		msg, err := models.Decode([]byte(raw), models.ClientToServer)
		require.NoError(t, err)

		d := msg.(*models.Drawing)
		require.Len(t, d.Operations, 3)
		assert.Equal(t, models.OpStart, d.Operations[0].Type)
		assert.Equal(t, models.ToolErase, d.Operations[1].Tool)
		assert.Equal(t, 3.0, d.Operations[1].X)
		assert.Equal(t, models.OpEnd, d.Operations[2].Type)
		assert.Equal(t, models.ToolInk, d.Operations[2].Tool, "missing tool defaults to ink")
	})

	t.Run("cursor at the origin", func(t *testing.T) {
		msg, err := models.Decode([]byte(`{"type":"cursor_move","x":0,"y":0}`), models.ClientToServer)
		require.NoError(t, err)
		assert.Equal(t, &models.CursorMove{}, msg)
	})

	t.Run("join without name or color is accepted", func(t *testing.T) {
		msg, err := models.Decode([]byte(`{"type":"user_join","userId":"a"}`), models.ClientToServer)
		require.NoError(t, err)
		assert.Equal(t, &models.UserJoin{UserID: "a"}, msg)
	})

	t.Run("ping", func(t *testing.T) {
		msg, err := models.Decode([]byte(`{"type":"ping"}`), models.ClientToServer)
		require.NoError(t, err)
		assert.Equal(t, models.MsgTypePing, msg.MessageType())
	})

	tests := []struct {
		name    string
		input   string
		wantErr error
	}{
		{"unknown type", `{"type":"vote"}`, models.ErrUnknownType},
		{"missing type", `{"userId":"a"}`, models.ErrMissingField},
		{"server only type", `{"type":"user_list","users":[]}`, models.ErrWrongDirection},
		{"join without user id", `{"type":"user_join","userName":"x"}`, models.ErrMissingField},
		{"drawing without operations", `{"type":"drawing","userId":"a"}`, models.ErrMissingField},
		{"draw without coordinates", `{"type":"drawing","operations":[{"type":"draw","x":1}]}`, models.ErrMissingField},
		{"empty operation type", `{"type":"drawing","operations":[{"x":1,"y":1}]}`, models.ErrMissingField},
		{"cursor without coordinates", `{"type":"cursor_move","userId":"a"}`, models.ErrMissingField},
		{"cursor without y", `{"type":"cursor_move","x":3}`, models.ErrMissingField},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := models.Decode([]byte(tt.input), models.ClientToServer)
			assert.ErrorIs(t, err, tt.wantErr)
		})
	}

	t.Run("garbage", func(t *testing.T) {
		_, err := models.Decode([]byte(`not json`), models.ClientToServer)
		assert.Error(t, err)
	})

	t.Run("unknown operation type", func(t *testing.T) {
		_, err := models.Decode([]byte(`{"type":"drawing","operations":[{"type":"fill","x":1,"y":1}]}`), models.ClientToServer)
		assert.Error(t, err)
	})

	t.Run("unknown tool", func(t *testing.T) {
		_, err := models.Decode([]byte(`{"type":"drawing","operations":[{"type":"start","x":1,"y":1,"tool":"spray"}]}`), models.ClientToServer)
		assert.Error(t, err)
	})
}

func TestDecode_ServerToClient(t *testing.T) {
	t.Run("client only type is rejected", func(t *testing.T) {
		_, err := models.Decode([]byte(`{"type":"user_join","userId":"a"}`), models.ServerToClient)
		assert.ErrorIs(t, err, models.ErrWrongDirection)
	})

	t.Run("round trip through Encode", func(t *testing.T) {
		sent := models.UserList{Users: []models.UserInfo{
			{UserID: "a", UserName: "Ann", UserColor: "#111111"},
			{UserID: "b", UserName: "Bob", UserColor: "#222222"},
		}}
		data, err := models.Encode(sent)
		require.NoError(t, err)

		msg, err := models.Decode(data, models.ServerToClient)
		require.NoError(t, err)
		assert.Equal(t, &sent, msg)
	})

	t.Run("user_left", func(t *testing.T) {
		msg, err := models.Decode([]byte(`{"type":"user_left","userId":"a","userName":"Ann"}`), models.ServerToClient)
		require.NoError(t, err)
		assert.Equal(t, &models.UserLeft{UserID: "a", UserName: "Ann"}, msg)
	})
}
