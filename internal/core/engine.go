package core

import (
	"context"
	"strings"
)

// RoomResolver returns the id of the 1:1 room shared with another user,
// creating it server-side if absent.
type RoomResolver interface {
	PrivateRoom(ctx context.Context, otherUserID string) (string, error)
}

// View is the state derived for presentation: which room is active, whether
// the channel is up, and the active room's message log. Messages is always
// read from the cache at derivation time, never a separately mutated copy.
type View struct {
	ActiveRoom string
	Connected  bool
	Messages   []Message
}

// Engine reconciles the stream of channel events against per-room message
// state and tracks the single active room.
//
// All state lives on the Run loop: channel events, user intents, and
// room-resolution results are applied one at a time, so no locking is needed
// around the cache. Public methods post onto the loop and require Run to be
// active.
type Engine struct {
	sender   Sender
	resolver RoomResolver
	events   <-chan Event

	// OnView is called from the run loop after every change that affects the
	// derived view. OnError receives user-visible failure messages. Both are
	// optional and must not call back into the engine synchronously.
	OnView  func(View)
	OnError func(string)

	ops chan func()

	cache     *RoomCache
	active    string
	joined    map[string]struct{}
	connected bool

	// resolveSeq stamps in-flight private-room resolutions. It advances on
	// every room switch and reconnect, so a late result whose stamp no
	// longer matches is discarded instead of clobbering newer state.
	resolveSeq uint64
}

// NewEngine constructs an engine consuming events from the given channel.
func NewEngine(sender Sender, resolver RoomResolver, events <-chan Event) *Engine {
	return &Engine{
		sender:   sender,
		resolver: resolver,
		events:   events,
		ops:      make(chan func(), 16),
		cache:    NewRoomCache(),
		joined:   make(map[string]struct{}),
	}
}

// Run processes events and intents until the context is cancelled or the
// event channel closes.
func (e *Engine) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case ev, ok := <-e.events:
			if !ok {
				return
			}
			e.handleEvent(ev)
		case op := <-e.ops:
			op()
		}
	}
}

// SwitchTo makes roomID the active room, joining it if this session has not
// joined it before. The view immediately derives from whatever is cached for
// the room; a history snapshot fills it in later if the join is fresh.
func (e *Engine) SwitchTo(roomID string) {
	e.do(func() {
		if roomID == "" {
			return
		}
		e.switchTo(roomID)
	})
}

// StartPrivateChat resolves the 1:1 room with the given user and switches to
// it. Resolution runs off the loop; a result arriving after the active state
// has moved on is dropped. Failure is surfaced via OnError and leaves the
// active room unchanged.
func (e *Engine) StartPrivateChat(ctx context.Context, otherUserID string) {
	e.do(func() {
		e.resolveSeq++
		seq := e.resolveSeq
		go func() {
			roomID, err := e.resolver.PrivateRoom(ctx, otherUserID)
			e.do(func() {
				if seq != e.resolveSeq {
					return
				}
				if err != nil {
					e.fail("could not start private chat: " + err.Error())
					return
				}
				e.switchTo(roomID)
			})
		}()
	})
}

// SendToActive emits a message command for the active room. Empty content is
// a no-op. There is no local echo: the message shows up only once the server
// broadcasts it back.
func (e *Engine) SendToActive(content string) {
	e.do(func() {
		content = strings.TrimSpace(content)
		if content == "" || e.active == "" {
			return
		}
		e.sender.SendMessage(e.active, content)
	})
}

// Snapshot returns the current derived view. It blocks until the run loop
// serves the read.
func (e *Engine) Snapshot() View {
	reply := make(chan View, 1)
	e.do(func() {
		reply <- e.view()
	})
	return <-reply
}

// KnownRooms lists every room this session has joined or cached.
func (e *Engine) KnownRooms() []string {
	reply := make(chan []string, 1)
	e.do(func() {
		seen := make(map[string]struct{})
		var out []string
		for _, id := range e.cache.Rooms() {
			seen[id] = struct{}{}
			out = append(out, id)
		}
		for id := range e.joined {
			if _, ok := seen[id]; !ok {
				out = append(out, id)
			}
		}
		reply <- out
	})
	return <-reply
}

func (e *Engine) do(op func()) {
	e.ops <- op
}

func (e *Engine) handleEvent(ev Event) {
	switch ev.Kind {
	case EventConnected:
		e.handleConnected()
	case EventDisconnected:
		e.connected = false
		e.notify()
	case EventHistory:
		e.handleHistory(ev.Messages)
	case EventMessage:
		e.cache.Append(ev.Message.RoomID, ev.Message)
		if ev.Message.RoomID == e.active {
			e.notify()
		}
	}
}

// handleConnected lands the user in the global room and re-joins every room
// from this session, since the server forgets memberships across connections.
func (e *Engine) handleConnected() {
	e.connected = true
	e.resolveSeq++
	e.joined[GlobalRoom] = struct{}{}
	e.active = GlobalRoom
	e.sender.SendJoin(GlobalRoom)
	for roomID := range e.joined {
		if roomID != GlobalRoom {
			e.sender.SendJoin(roomID)
		}
	}
	e.notify()
}

// handleHistory replaces one room's cached log with the snapshot. The room is
// taken from the payload; an empty snapshot falls back to the active room,
// then to the global room.
func (e *Engine) handleHistory(msgs []Message) {
	roomID := ""
	if len(msgs) > 0 {
		roomID = msgs[0].RoomID
	}
	if roomID == "" {
		roomID = e.active
	}
	if roomID == "" {
		roomID = GlobalRoom
	}
	e.cache.ReplaceHistory(roomID, msgs)
	if roomID == e.active {
		e.notify()
	}
}

func (e *Engine) switchTo(roomID string) {
	e.resolveSeq++
	e.active = roomID
	if _, ok := e.joined[roomID]; !ok {
		e.joined[roomID] = struct{}{}
		e.sender.SendJoin(roomID)
	}
	e.notify()
}

func (e *Engine) view() View {
	return View{
		ActiveRoom: e.active,
		Connected:  e.connected,
		Messages:   e.cache.Get(e.active),
	}
}

func (e *Engine) notify() {
	if e.OnView != nil {
		e.OnView(e.view())
	}
}

func (e *Engine) fail(msg string) {
	if e.OnError != nil {
		e.OnError(msg)
	}
}
