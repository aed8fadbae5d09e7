package models

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
)

type MessageType string

// Client → Server message types
const (
	MsgTypeUserJoin MessageType = "user_join"
	MsgTypePing     MessageType = "ping"
)

// Server → Client message types
const (
	MsgTypeUserList       MessageType = "user_list"
	MsgTypeUserJoined     MessageType = "user_joined"
	MsgTypeUserLeft       MessageType = "user_left"
	MsgTypeDrawingHistory MessageType = "drawing_history"
	MsgTypeSyncComplete   MessageType = "sync_complete"
	MsgTypePong           MessageType = "pong"
	MsgTypeError          MessageType = "error"
)

// Both directions
const (
	MsgTypeDrawing    MessageType = "drawing"
	MsgTypeCursorMove MessageType = "cursor_move"
)

var (
	ErrUnknownType    = errors.New("unknown message type")
	ErrMissingField   = errors.New("missing required field")
	ErrWrongDirection = errors.New("message type not accepted in this direction")
)

// Message is the closed set of envelope variants exchanged over a
// connection. Every variant is encoded as a flat JSON record whose "type"
// field carries the discriminator.
type Message interface {
	MessageType() MessageType
	validate() error
}

type UserInfo struct {
	UserID    string `json:"userId"`
	UserName  string `json:"userName"`
	UserColor string `json:"userColor"`
}

type UserJoin struct {
	UserID    string `json:"userId"`
	UserName  string `json:"userName"`
	UserColor string `json:"userColor"`
}

type UserList struct {
	Users []UserInfo `json:"users"`
}

type UserJoined struct {
	UserID    string `json:"userId"`
	UserName  string `json:"userName"`
	UserColor string `json:"userColor"`
}

type UserLeft struct {
	UserID   string `json:"userId"`
	UserName string `json:"userName"`
}

type Drawing struct {
	UserID     string      `json:"userId"`
	Operations []Operation `json:"operations"`
	Timestamp  int64       `json:"timestamp"`
}

type DrawingHistory struct {
	Operations []Operation `json:"operations"`
}

type SyncComplete struct {
	HistorySize int `json:"historySize"`
}

type CursorMove struct {
	UserID    string  `json:"userId"`
	X         float64 `json:"x"`
	Y         float64 `json:"y"`
	Timestamp int64   `json:"timestamp"`
}

type Ping struct{}

type Pong struct {
	Timestamp int64 `json:"timestamp,omitempty"`
}

type Error struct {
	Message string `json:"message"`
}

func (UserJoin) MessageType() MessageType       { return MsgTypeUserJoin }
func (UserList) MessageType() MessageType       { return MsgTypeUserList }
func (UserJoined) MessageType() MessageType     { return MsgTypeUserJoined }
func (UserLeft) MessageType() MessageType       { return MsgTypeUserLeft }
func (Drawing) MessageType() MessageType        { return MsgTypeDrawing }
func (DrawingHistory) MessageType() MessageType { return MsgTypeDrawingHistory }
func (SyncComplete) MessageType() MessageType   { return MsgTypeSyncComplete }
func (CursorMove) MessageType() MessageType     { return MsgTypeCursorMove }
func (Ping) MessageType() MessageType           { return MsgTypePing }
func (Pong) MessageType() MessageType           { return MsgTypePong }
func (Error) MessageType() MessageType          { return MsgTypeError }

func (m UserJoin) validate() error {
	if m.UserID == "" {
		return fmt.Errorf("%s: %w: userId", m.MessageType(), ErrMissingField)
	}
	return nil
}

func (m UserJoined) validate() error {
	if m.UserID == "" {
		return fmt.Errorf("%s: %w: userId", m.MessageType(), ErrMissingField)
	}
	return nil
}

func (m UserLeft) validate() error {
	if m.UserID == "" {
		return fmt.Errorf("%s: %w: userId", m.MessageType(), ErrMissingField)
	}
	return nil
}

func (m Drawing) validate() error {
	if m.Operations == nil {
		return fmt.Errorf("%s: %w: operations", m.MessageType(), ErrMissingField)
	}
	return nil
}

// UnmarshalJSON requires both coordinates; a cursor at an absent position
// is malformed rather than at the origin.
func (m *CursorMove) UnmarshalJSON(data []byte) error {
	var w struct {
		UserID    string   `json:"userId"`
		X         *float64 `json:"x"`
		Y         *float64 `json:"y"`
		Timestamp int64    `json:"timestamp"`
	}
	if err := json.Unmarshal(data, &w); err != nil {
		return err
	}
	if w.X == nil || w.Y == nil {
		return fmt.Errorf("%s: %w: x,y", m.MessageType(), ErrMissingField)
	}
	*m = CursorMove{UserID: w.UserID, X: *w.X, Y: *w.Y, Timestamp: w.Timestamp}
	return nil
}

func (UserList) validate() error       { return nil }
func (DrawingHistory) validate() error { return nil }
func (SyncComplete) validate() error   { return nil }
func (CursorMove) validate() error     { return nil }
func (Ping) validate() error           { return nil }
func (Pong) validate() error           { return nil }
func (Error) validate() error          { return nil }

// Direction selects which variants a decoder accepts.
type Direction int

const (
	ClientToServer Direction = iota
	ServerToClient
)

var accepted = map[Direction]map[MessageType]func() Message{
	ClientToServer: {
		MsgTypeUserJoin:   func() Message { return &UserJoin{} },
		MsgTypeDrawing:    func() Message { return &Drawing{} },
		MsgTypeCursorMove: func() Message { return &CursorMove{} },
		MsgTypePing:       func() Message { return &Ping{} },
	},
	ServerToClient: {
		MsgTypeUserList:       func() Message { return &UserList{} },
		MsgTypeUserJoined:     func() Message { return &UserJoined{} },
		MsgTypeUserLeft:       func() Message { return &UserLeft{} },
		MsgTypeDrawing:        func() Message { return &Drawing{} },
		MsgTypeDrawingHistory: func() Message { return &DrawingHistory{} },
		MsgTypeSyncComplete:   func() Message { return &SyncComplete{} },
		MsgTypeCursorMove:     func() Message { return &CursorMove{} },
		MsgTypePong:           func() Message { return &Pong{} },
		MsgTypeError:          func() Message { return &Error{} },
	},
}

var knownTypes = func() map[MessageType]bool {
	known := make(map[MessageType]bool)
	for _, byType := range accepted {
		for t := range byType {
			known[t] = true
		}
	}
	return known
}()

// Decode parses one inbound payload into its variant. The returned Message
// is always a pointer to one of the variant structs.
func Decode(data []byte, dir Direction) (Message, error) {
	var head struct {
		Type MessageType `json:"type"`
	}
	if err := json.Unmarshal(data, &head); err != nil {
		return nil, fmt.Errorf("decode envelope: %w", err)
	}
	if head.Type == "" {
		return nil, fmt.Errorf("decode envelope: %w: type", ErrMissingField)
	}

	newMsg, ok := accepted[dir][head.Type]
	if !ok {
		if knownTypes[head.Type] {
			return nil, fmt.Errorf("%q: %w", head.Type, ErrWrongDirection)
		}
		return nil, fmt.Errorf("%q: %w", head.Type, ErrUnknownType)
	}

	msg := newMsg()
	if err := json.Unmarshal(data, msg); err != nil {
		return nil, fmt.Errorf("decode %s: %w", head.Type, err)
	}
	if err := msg.validate(); err != nil {
		return nil, err
	}
	return msg, nil
}

// Encode serialises a message as a flat record with its "type" field first.
func Encode(msg Message) ([]byte, error) {
	body, err := json.Marshal(msg)
	if err != nil {
		return nil, fmt.Errorf("encode %s: %w", msg.MessageType(), err)
	}

	var buf bytes.Buffer
	buf.WriteString(`{"type":`)
	typ, _ := json.Marshal(msg.MessageType())
	buf.Write(typ)
	if inner := bytes.TrimSpace(body[1 : len(body)-1]); len(inner) > 0 {
		buf.WriteByte(',')
		buf.Write(inner)
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}
