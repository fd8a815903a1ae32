package proto

import (
	"encoding/json"
	"time"
)

// Command is the envelope for frames the client sends to the server.
type Command struct {
	Type string          `json:"type"`
	Data json.RawMessage `json:"data"`
}

const (
	CommandTypeJoin    = "join"
	CommandTypeMessage = "message"

	EventTypeHistory = "history"
	EventTypeMessage = "message"
)

// JoinData asks the server to subscribe this connection to a room. Joining an
// already-joined room is idempotent on the server side.
type JoinData struct {
	RoomID string `json:"roomId"`
}

// MessageData carries an outgoing chat message.
type MessageData struct {
	RoomID  string `json:"roomId"`
	Content string `json:"content"`
}

// ServerEvent is the envelope for frames the server pushes to the client.
type ServerEvent struct {
	Type string          `json:"type"`
	Data json.RawMessage `json:"data"`
}

// Message is a chat message on the wire. A history event carries an ordered
// array of these (all for one room); a message event carries exactly one.
type Message struct {
	ID         string    `json:"id"`
	RoomID     string    `json:"roomId"`
	SenderName string    `json:"senderName"`
	Content    string    `json:"content"`
	CreatedAt  time.Time `json:"createdAt"`
}

// NewJoin builds a join command frame.
func NewJoin(roomID string) (Command, error) {
	data, err := json.Marshal(JoinData{RoomID: roomID})
	if err != nil {
		return Command{}, err
	}
	return Command{Type: CommandTypeJoin, Data: data}, nil
}

// NewMessage builds a message command frame.
func NewMessage(roomID, content string) (Command, error) {
	data, err := json.Marshal(MessageData{RoomID: roomID, Content: content})
	if err != nil {
		return Command{}, err
	}
	return Command{Type: CommandTypeMessage, Data: data}, nil
}
