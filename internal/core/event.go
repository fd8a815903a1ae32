package core

// EventKind is a notification the channel delivers to the engine.
type EventKind int

const (
	// EventConnected signals the realtime connection is established.
	EventConnected EventKind = iota
	// EventDisconnected signals the realtime connection dropped or closed.
	EventDisconnected
	// EventHistory delivers a room's full message snapshot after a join.
	EventHistory
	// EventMessage delivers one live chat message.
	EventMessage
)

// Event describes something that happened on the realtime channel.
type Event struct {
	Kind     EventKind
	Message  Message   // for EventMessage
	Messages []Message // for EventHistory; all share one room id, may be empty
}

// Sender emits client commands over the realtime channel. Delivery is
// fire-and-forget: commands issued while disconnected are dropped.
type Sender interface {
	SendJoin(roomID string)
	SendMessage(roomID, content string)
}
