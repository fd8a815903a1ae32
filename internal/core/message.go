package core

import "time"

// Message is the domain model for a chat message. Messages are immutable
// once received; within a room they keep arrival order, not CreatedAt order.
type Message struct {
	ID         string
	RoomID     string
	SenderName string
	Content    string
	CreatedAt  time.Time
}

// User identifies a chat participant as returned by the directory.
type User struct {
	ID       string
	Username string
}

// GlobalRoom is the well-known shared room every client lands in after
// connecting.
const GlobalRoom = "global"
