package ws

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/coder/websocket"
	"github.com/coder/websocket/wsjson"
	"github.com/rs/zerolog"

	"github.com/vovakirdan/wirechat-client/internal/core"
	"github.com/vovakirdan/wirechat-client/internal/proto"
)

// chatServer is a scripted peer: it answers join commands with a two-message
// history snapshot and echoes message commands back as message events.
type chatServer struct {
	ts *httptest.Server

	live     atomic.Int32
	accepted atomic.Int32

	mu     sync.Mutex
	tokens []string

	// dropFirst closes the first accepted connection immediately so the
	// client has to reconnect.
	dropFirst bool
}

func newChatServer(t *testing.T, dropFirst bool) *chatServer {
	t.Helper()

	s := &chatServer{dropFirst: dropFirst}
	s.ts = httptest.NewServer(http.HandlerFunc(s.handle))
	t.Cleanup(s.ts.Close)
	return s
}

func (s *chatServer) wsURL() string {
	return strings.Replace(s.ts.URL, "http", "ws", 1)
}

func (s *chatServer) seenTokens() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.tokens...)
}

func (s *chatServer) handle(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	s.tokens = append(s.tokens, strings.TrimPrefix(r.Header.Get("Authorization"), "Bearer "))
	s.mu.Unlock()

	conn, err := websocket.Accept(w, r, &websocket.AcceptOptions{InsecureSkipVerify: true})
	if err != nil {
		return
	}
	n := s.accepted.Add(1)
	s.live.Add(1)
	defer s.live.Add(-1)

	if s.dropFirst && n == 1 {
		conn.Close(websocket.StatusGoingAway, "scripted drop")
		return
	}

	ctx := r.Context()
	for {
		var cmd proto.Command
		if err := wsjson.Read(ctx, conn, &cmd); err != nil {
			return
		}

		switch cmd.Type {
		case proto.CommandTypeJoin:
			var join proto.JoinData
			if err := json.Unmarshal(cmd.Data, &join); err != nil {
				return
			}
			history := []proto.Message{
				{ID: "h1", RoomID: join.RoomID, SenderName: "alice", Content: "hello"},
				{ID: "h2", RoomID: join.RoomID, SenderName: "bob", Content: "world"},
			}
			data, _ := json.Marshal(history)
			if err := wsjson.Write(ctx, conn, proto.ServerEvent{Type: proto.EventTypeHistory, Data: data}); err != nil {
				return
			}
		case proto.CommandTypeMessage:
			var msg proto.MessageData
			if err := json.Unmarshal(cmd.Data, &msg); err != nil {
				return
			}
			data, _ := json.Marshal(proto.Message{
				ID:         "e1",
				RoomID:     msg.RoomID,
				SenderName: "you",
				Content:    msg.Content,
				CreatedAt:  time.Now(),
			})
			if err := wsjson.Write(ctx, conn, proto.ServerEvent{Type: proto.EventTypeMessage, Data: data}); err != nil {
				return
			}
		}
	}
}

func testManager(t *testing.T, url string) *Manager {
	t.Helper()

	logger := zerolog.Nop()
	m := NewManager(url, 20*time.Millisecond, 100*time.Millisecond, &logger)
	t.Cleanup(m.Close)
	return m
}

func nextEvent(t *testing.T, events <-chan core.Event, want core.EventKind) core.Event {
	t.Helper()

	deadline := time.After(3 * time.Second)
	for {
		select {
		case ev := <-events:
			if ev.Kind == want {
				return ev
			}
		case <-deadline:
			t.Fatalf("timed out waiting for event kind %d", want)
		}
	}
}

func TestOpenAuthenticatesAndDecodesEvents(t *testing.T) {
	server := newChatServer(t, false)
	m := testManager(t, server.wsURL())

	m.Open(context.Background(), "tok-123")

	nextEvent(t, m.Events(), core.EventConnected)
	if m.State() != StateConnected {
		t.Fatalf("expected connected state, got %s", m.State())
	}

	tokens := server.seenTokens()
	if len(tokens) == 0 || tokens[0] != "tok-123" {
		t.Fatalf("server did not see bearer token: %v", tokens)
	}

	m.SendJoin("global")
	ev := nextEvent(t, m.Events(), core.EventHistory)
	if len(ev.Messages) != 2 || ev.Messages[0].RoomID != "global" {
		t.Fatalf("unexpected history event: %+v", ev)
	}
	if ev.Messages[0].ID != "h1" || ev.Messages[1].ID != "h2" {
		t.Fatalf("history out of order: %+v", ev.Messages)
	}

	m.SendMessage("global", "ping")
	ev = nextEvent(t, m.Events(), core.EventMessage)
	if ev.Message.Content != "ping" || ev.Message.RoomID != "global" {
		t.Fatalf("unexpected message event: %+v", ev.Message)
	}
}

func TestReopenTearsDownPreviousConnection(t *testing.T) {
	server := newChatServer(t, false)
	m := testManager(t, server.wsURL())

	m.Open(context.Background(), "tok-old")
	nextEvent(t, m.Events(), core.EventConnected)

	m.Open(context.Background(), "tok-new")
	nextEvent(t, m.Events(), core.EventConnected)

	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) && server.live.Load() > 1 {
		time.Sleep(10 * time.Millisecond)
	}
	if n := server.live.Load(); n != 1 {
		t.Fatalf("expected exactly one live connection after reopen, got %d", n)
	}

	tokens := server.seenTokens()
	if tokens[len(tokens)-1] != "tok-new" {
		t.Fatalf("latest connection should carry the new token: %v", tokens)
	}
}

func TestReconnectsAfterServerDrop(t *testing.T) {
	server := newChatServer(t, true)
	m := testManager(t, server.wsURL())

	m.Open(context.Background(), "tok")

	nextEvent(t, m.Events(), core.EventConnected)
	nextEvent(t, m.Events(), core.EventDisconnected)
	nextEvent(t, m.Events(), core.EventConnected)

	if n := server.accepted.Load(); n < 2 {
		t.Fatalf("expected a reconnect, server accepted %d connections", n)
	}
}

func TestCloseIsIdempotent(t *testing.T) {
	server := newChatServer(t, false)
	m := testManager(t, server.wsURL())

	m.Open(context.Background(), "tok")
	nextEvent(t, m.Events(), core.EventConnected)

	m.Close()
	m.Close()

	if m.State() != StateDisconnected {
		t.Fatalf("expected disconnected after close, got %s", m.State())
	}

	// Closing without anything open is a no-op too.
	fresh := testManager(t, server.wsURL())
	fresh.Close()
	if fresh.State() != StateDisconnected {
		t.Fatalf("expected disconnected on fresh manager, got %s", fresh.State())
	}
}

func TestSendWhileDisconnectedIsDropped(t *testing.T) {
	server := newChatServer(t, false)
	m := testManager(t, server.wsURL())

	// Never opened: commands are accepted and discarded without panic.
	m.SendJoin("global")
	m.SendMessage("global", "lost")

	if m.State() != StateDisconnected {
		t.Fatalf("expected disconnected, got %s", m.State())
	}
}
