// Package ws owns the single realtime connection: dialing, authentication,
// reconnects, and decoding server events for the engine.
package ws

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/coder/websocket"
	"github.com/coder/websocket/wsjson"
	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/vovakirdan/wirechat-client/internal/core"
	"github.com/vovakirdan/wirechat-client/internal/proto"
)

// State describes the connection lifecycle.
type State int

const (
	StateDisconnected State = iota
	StateConnecting
	StateConnected
)

func (s State) String() string {
	switch s {
	case StateConnecting:
		return "connecting"
	case StateConnected:
		return "connected"
	default:
		return "disconnected"
	}
}

const (
	dialTimeout  = 10 * time.Second
	writeTimeout = 5 * time.Second
)

// Manager maintains one authenticated websocket connection per token,
// reconnecting with capped exponential backoff when the transport drops.
// Incoming frames become core events on the Events channel, in arrival
// order. Outgoing commands are fire-and-forget: dropped while disconnected,
// never retried.
type Manager struct {
	url        string
	log        *zerolog.Logger
	minBackoff time.Duration
	maxBackoff time.Duration

	events chan core.Event

	mu     sync.Mutex
	state  State
	conn   *websocket.Conn
	cancel context.CancelFunc
	done   chan struct{}
}

// NewManager builds a manager dialing the given websocket URL.
func NewManager(url string, minBackoff, maxBackoff time.Duration, logger *zerolog.Logger) *Manager {
	if minBackoff <= 0 {
		minBackoff = time.Second
	}
	if maxBackoff < minBackoff {
		maxBackoff = minBackoff
	}
	return &Manager{
		url:        url,
		log:        logger,
		minBackoff: minBackoff,
		maxBackoff: maxBackoff,
		events:     make(chan core.Event, 64),
	}
}

// Events returns the channel the manager delivers decoded events on.
func (m *Manager) Events() <-chan core.Event {
	return m.events
}

// State reports the current connection state.
func (m *Manager) State() State {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state
}

// Open starts the connection loop authenticated with the token. A loop
// started by an earlier Open (for instance after re-authentication) is torn
// down first, so at most one connection is ever live and no event is
// delivered twice.
func (m *Manager) Open(ctx context.Context, token string) {
	m.teardown()

	runCtx, cancel := context.WithCancel(ctx)
	done := make(chan struct{})

	m.mu.Lock()
	m.cancel = cancel
	m.done = done
	m.state = StateConnecting
	m.mu.Unlock()

	go m.run(runCtx, token, done)
}

// Close tears down the connection. Safe to call repeatedly and when nothing
// is open; afterwards State reports disconnected.
func (m *Manager) Close() {
	m.teardown()
}

func (m *Manager) teardown() {
	m.mu.Lock()
	cancel := m.cancel
	done := m.done
	m.cancel = nil
	m.done = nil
	m.mu.Unlock()

	if cancel != nil {
		cancel()
	}
	if done != nil {
		<-done
	}

	m.mu.Lock()
	m.state = StateDisconnected
	m.mu.Unlock()
}

func (m *Manager) run(ctx context.Context, token string, done chan struct{}) {
	defer close(done)

	backoff := m.minBackoff
	for {
		m.setState(StateConnecting)
		connID := uuid.NewString()

		conn, err := m.dial(ctx, token)
		if err != nil {
			m.setState(StateDisconnected)
			if ctx.Err() != nil {
				return
			}
			m.log.Warn().Err(err).Str("conn_id", connID).Dur("retry_in", backoff).Msg("ws dial failed")
			if !sleep(ctx, backoff) {
				return
			}
			backoff = nextBackoff(backoff, m.maxBackoff)
			continue
		}
		backoff = m.minBackoff

		m.mu.Lock()
		m.conn = conn
		m.state = StateConnected
		m.mu.Unlock()

		m.log.Info().Str("conn_id", connID).Msg("ws connected")
		m.emit(core.Event{Kind: core.EventConnected})

		readErr := m.readLoop(ctx, conn, connID)

		m.mu.Lock()
		m.conn = nil
		m.state = StateDisconnected
		m.mu.Unlock()

		m.emit(core.Event{Kind: core.EventDisconnected})
		_ = conn.CloseNow()

		if ctx.Err() != nil {
			return
		}
		m.log.Warn().Err(readErr).Str("conn_id", connID).Dur("retry_in", backoff).Msg("ws connection lost")
		if !sleep(ctx, backoff) {
			return
		}
		backoff = nextBackoff(backoff, m.maxBackoff)
	}
}

func (m *Manager) dial(ctx context.Context, token string) (*websocket.Conn, error) {
	dialCtx, cancel := context.WithTimeout(ctx, dialTimeout)
	defer cancel()

	header := http.Header{}
	header.Set("Authorization", "Bearer "+token)

	conn, _, err := websocket.Dial(dialCtx, m.url, &websocket.DialOptions{
		HTTPHeader: header,
	})
	return conn, err
}

func (m *Manager) readLoop(ctx context.Context, conn *websocket.Conn, connID string) error {
	for {
		var frame proto.ServerEvent
		if err := wsjson.Read(ctx, conn, &frame); err != nil {
			return err
		}

		switch frame.Type {
		case proto.EventTypeHistory:
			var msgs []proto.Message
			if err := json.Unmarshal(frame.Data, &msgs); err != nil {
				m.log.Warn().Err(err).Str("conn_id", connID).Msg("bad history payload")
				continue
			}
			m.emit(core.Event{Kind: core.EventHistory, Messages: toCoreMessages(msgs)})
		case proto.EventTypeMessage:
			var msg proto.Message
			if err := json.Unmarshal(frame.Data, &msg); err != nil {
				m.log.Warn().Err(err).Str("conn_id", connID).Msg("bad message payload")
				continue
			}
			m.emit(core.Event{Kind: core.EventMessage, Message: toCoreMessage(msg)})
		default:
			m.log.Debug().Str("type", frame.Type).Str("conn_id", connID).Msg("ignoring unknown server event")
		}
	}
}

// SendJoin implements core.Sender.
func (m *Manager) SendJoin(roomID string) {
	cmd, err := proto.NewJoin(roomID)
	if err != nil {
		m.log.Error().Err(err).Str("room", roomID).Msg("encode join")
		return
	}
	m.send(cmd)
}

// SendMessage implements core.Sender.
func (m *Manager) SendMessage(roomID, content string) {
	cmd, err := proto.NewMessage(roomID, content)
	if err != nil {
		m.log.Error().Err(err).Str("room", roomID).Msg("encode message")
		return
	}
	m.send(cmd)
}

func (m *Manager) send(cmd proto.Command) {
	m.mu.Lock()
	conn := m.conn
	state := m.state
	m.mu.Unlock()

	if state != StateConnected || conn == nil {
		m.log.Debug().Str("type", cmd.Type).Msg("dropping command while disconnected")
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), writeTimeout)
	defer cancel()
	if err := wsjson.Write(ctx, conn, cmd); err != nil {
		m.log.Warn().Err(err).Str("type", cmd.Type).Msg("ws send failed")
	}
}

func (m *Manager) setState(s State) {
	m.mu.Lock()
	m.state = s
	m.mu.Unlock()
}

// emit never blocks; with a dead consumer events are dropped rather than
// wedging the read loop.
func (m *Manager) emit(ev core.Event) {
	select {
	case m.events <- ev:
	default:
		m.log.Warn().Int("kind", int(ev.Kind)).Msg("event dropped, slow consumer")
	}
}

func toCoreMessage(msg proto.Message) core.Message {
	return core.Message{
		ID:         msg.ID,
		RoomID:     msg.RoomID,
		SenderName: msg.SenderName,
		Content:    msg.Content,
		CreatedAt:  msg.CreatedAt,
	}
}

func toCoreMessages(msgs []proto.Message) []core.Message {
	out := make([]core.Message, len(msgs))
	for i, msg := range msgs {
		out[i] = toCoreMessage(msg)
	}
	return out
}

func sleep(ctx context.Context, d time.Duration) bool {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-timer.C:
		return true
	}
}

func nextBackoff(current, max time.Duration) time.Duration {
	next := current * 2
	if next > max {
		next = max
	}
	return next
}
