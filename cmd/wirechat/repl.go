package main

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"strings"
	"sync"

	"github.com/vovakirdan/wirechat-client/internal/app"
	"github.com/vovakirdan/wirechat-client/internal/core"
	"github.com/vovakirdan/wirechat-client/internal/session"
)

// renderer prints the derived view incrementally: a header when the active
// room or connection status changes, then only messages not shown yet.
type renderer struct {
	mu        sync.Mutex
	room      string
	connected bool
	shown     int
	started   bool
}

func (r *renderer) render(v core.View) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if !r.started || v.ActiveRoom != r.room || v.Connected != r.connected {
		r.started = true
		if v.ActiveRoom != r.room {
			r.shown = 0
		}
		r.room = v.ActiveRoom
		r.connected = v.Connected
		fmt.Printf("--- room %s [%s] ---\n", v.ActiveRoom, connLabel(v.Connected))
	}

	// A history snapshot may replace what was shown; reprint from scratch.
	if len(v.Messages) < r.shown {
		r.shown = 0
	}
	for _, m := range v.Messages[r.shown:] {
		fmt.Printf("[%s] %s: %s\n", m.CreatedAt.Local().Format("15:04:05"), m.SenderName, m.Content)
	}
	r.shown = len(v.Messages)
}

func connLabel(connected bool) string {
	if connected {
		return "connected"
	}
	return "disconnected"
}

func runREPL(ctx context.Context, a *app.App, sess *session.Session) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	chat := a.NewChat(sess)
	r := &renderer{}
	chat.Engine.OnView = r.render
	chat.Engine.OnError = func(msg string) { fmt.Println("! " + msg) }

	go chat.Run(ctx, sess.Token)

	fmt.Printf("logged in as %s — /room <id>, /chat <username>, /users, /rooms, /quit\n", sess.User.Username)

	lines := make(chan string)
	go func() {
		defer close(lines)
		scanner := bufio.NewScanner(os.Stdin)
		for scanner.Scan() {
			lines <- scanner.Text()
		}
	}()

	for {
		select {
		case <-ctx.Done():
			return nil
		case line, ok := <-lines:
			if !ok {
				return nil
			}
			if quit := handleLine(ctx, a, chat, sess, line); quit {
				return nil
			}
		}
	}
}

func handleLine(ctx context.Context, a *app.App, chat *app.Chat, sess *session.Session, line string) bool {
	line = strings.TrimSpace(line)
	if line == "" {
		return false
	}
	if !strings.HasPrefix(line, "/") {
		chat.Engine.SendToActive(line)
		return false
	}

	fields := strings.Fields(line)
	switch fields[0] {
	case "/quit":
		return true
	case "/room":
		if len(fields) != 2 {
			fmt.Println("usage: /room <id>")
			return false
		}
		chat.Engine.SwitchTo(fields[1])
	case "/rooms":
		for _, id := range chat.Engine.KnownRooms() {
			fmt.Println(id)
		}
	case "/users":
		// Directory failures degrade to an empty contact list.
		users, err := a.Users(ctx)
		if err != nil {
			return false
		}
		for _, u := range users {
			if u.ID == sess.User.ID {
				continue
			}
			fmt.Println(u.Username)
		}
	case "/chat":
		if len(fields) != 2 {
			fmt.Println("usage: /chat <username>")
			return false
		}
		users, err := a.Users(ctx)
		if err != nil {
			fmt.Println("! could not look up user")
			return false
		}
		for _, u := range users {
			if u.Username == fields[1] {
				chat.Engine.StartPrivateChat(ctx, u.ID)
				return false
			}
		}
		fmt.Printf("! unknown user %q\n", fields[1])
	default:
		fmt.Printf("unknown command %s\n", fields[0])
	}
	return false
}
