package core

// RoomCache maps a room id to its ordered message log. It is the single
// source of truth for what messages exist in a room: a history snapshot
// replaces a room's log wholesale, live messages extend it, and entries are
// never deleted during a session.
//
// The cache is a plain reducer over events. It does no I/O and is not safe
// for concurrent use; the engine applies all mutations from its run loop.
type RoomCache struct {
	rooms map[string][]Message
}

// NewRoomCache constructs an empty cache.
func NewRoomCache() *RoomCache {
	return &RoomCache{rooms: make(map[string][]Message)}
}

// ReplaceHistory replaces the room's log with the given snapshot.
func (c *RoomCache) ReplaceHistory(roomID string, msgs []Message) {
	log := make([]Message, len(msgs))
	copy(log, msgs)
	c.rooms[roomID] = log
}

// Append extends the room's log with one message.
func (c *RoomCache) Append(roomID string, msg Message) {
	c.rooms[roomID] = append(c.rooms[roomID], msg)
}

// Get returns a copy of the room's log, empty if the room is unknown.
// Copying keeps callers from mutating the cache through the returned slice.
func (c *RoomCache) Get(roomID string) []Message {
	log, ok := c.rooms[roomID]
	if !ok {
		return nil
	}
	out := make([]Message, len(log))
	copy(out, log)
	return out
}

// Rooms returns the ids of all rooms the cache has seen, in no particular
// order.
func (c *RoomCache) Rooms() []string {
	ids := make([]string, 0, len(c.rooms))
	for id := range c.rooms {
		ids = append(ids, id)
	}
	return ids
}

// Len returns the number of messages cached for the room.
func (c *RoomCache) Len(roomID string) int {
	return len(c.rooms[roomID])
}
