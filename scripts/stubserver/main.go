// Command stubserver is a development stand-in for the chat backend: auth,
// user directory, private-room resolution, and the realtime channel. State is
// in memory only. Useful for exercising the client locally:
//
//	go run ./scripts/stubserver -addr :4000
//	go run ./cmd/wirechat register alice password123
//	go run ./cmd/wirechat chat
package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"sort"
	"strings"
	"sync"
	"syscall"
	"time"

	"github.com/coder/websocket"
	"github.com/coder/websocket/wsjson"
	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"

	"github.com/vovakirdan/wirechat-client/internal/proto"
)

var jwtSecret = []byte("stub-secret-change-me")

type user struct {
	ID           string
	Username     string
	PasswordHash string
}

type client struct {
	username string
	send     chan proto.ServerEvent
}

// hub tracks room membership and per-room history for live connections.
type hub struct {
	mu      sync.Mutex
	rooms   map[string]map[*client]struct{}
	history map[string][]proto.Message
}

func newHub() *hub {
	return &hub{
		rooms:   make(map[string]map[*client]struct{}),
		history: make(map[string][]proto.Message),
	}
}

// join subscribes the client (idempotently) and returns the room's history.
func (h *hub) join(c *client, roomID string) []proto.Message {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.rooms[roomID] == nil {
		h.rooms[roomID] = make(map[*client]struct{})
	}
	h.rooms[roomID][c] = struct{}{}
	return append([]proto.Message(nil), h.history[roomID]...)
}

func (h *hub) drop(c *client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	for _, members := range h.rooms {
		delete(members, c)
	}
}

// broadcast appends the message to history and fans it out to every room
// member, sender included.
func (h *hub) broadcast(roomID string, msg proto.Message) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.history[roomID] = append(h.history[roomID], msg)

	data, err := json.Marshal(msg)
	if err != nil {
		return
	}
	ev := proto.ServerEvent{Type: proto.EventTypeMessage, Data: data}
	for c := range h.rooms[roomID] {
		select {
		case c.send <- ev:
		default:
			// Drop if slow consumer.
		}
	}
}

type server struct {
	mu    sync.Mutex
	users map[string]*user // by username
	hub   *hub
}

func main() {
	addr := flag.String("addr", ":4000", "HTTP listen address")
	flag.Parse()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	s := &server{users: make(map[string]*user), hub: newHub()}

	gin.SetMode(gin.ReleaseMode)
	router := gin.New()
	router.Use(gin.Recovery())
	router.POST("/auth/register", s.handleRegister)
	router.POST("/auth/login", s.handleLogin)
	router.GET("/users", s.handleUsers)
	router.POST("/users/private-room", s.handlePrivateRoom)
	router.GET("/ws", s.handleWS)

	httpServer := &http.Server{Addr: *addr, Handler: router, ReadHeaderTimeout: 5 * time.Second}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = httpServer.Shutdown(shutdownCtx)
	}()

	log.Printf("stub chat server listening on %s", *addr)
	if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		log.Fatalf("server exited with error: %v", err)
	}
	log.Println("server stopped")
}

type credentials struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

func (s *server) handleRegister(c *gin.Context) {
	var body credentials
	if err := c.ShouldBindJSON(&body); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "bad request"})
		return
	}

	username := strings.TrimSpace(body.Username)
	if len(username) < 3 || len(username) > 32 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid username"})
		return
	}
	if len(body.Password) < 6 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid password"})
		return
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(body.Password), bcrypt.DefaultCost)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "hash password"})
		return
	}

	s.mu.Lock()
	if _, exists := s.users[username]; exists {
		s.mu.Unlock()
		c.JSON(http.StatusConflict, gin.H{"error": "user already exists"})
		return
	}
	u := &user{ID: uuid.NewString(), Username: username, PasswordHash: string(hash)}
	s.users[username] = u
	s.mu.Unlock()

	s.respondAuth(c, u)
}

func (s *server) handleLogin(c *gin.Context) {
	var body credentials
	if err := c.ShouldBindJSON(&body); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "bad request"})
		return
	}

	s.mu.Lock()
	u, ok := s.users[strings.TrimSpace(body.Username)]
	s.mu.Unlock()
	if !ok || bcrypt.CompareHashAndPassword([]byte(u.PasswordHash), []byte(body.Password)) != nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid credentials"})
		return
	}

	s.respondAuth(c, u)
}

func (s *server) respondAuth(c *gin.Context, u *user) {
	token, err := mintToken(u)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "generate token"})
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"token": token,
		"user":  gin.H{"id": u.ID, "username": u.Username},
	})
}

func (s *server) handleUsers(c *gin.Context) {
	s.mu.Lock()
	list := make([]gin.H, 0, len(s.users))
	for _, u := range s.users {
		list = append(list, gin.H{"id": u.ID, "username": u.Username})
	}
	s.mu.Unlock()

	sort.Slice(list, func(i, j int) bool { return list[i]["username"].(string) < list[j]["username"].(string) })
	c.JSON(http.StatusOK, list)
}

func (s *server) handlePrivateRoom(c *gin.Context) {
	var body struct {
		Token       string `json:"token"`
		OtherUserID string `json:"otherUserId"`
	}
	if err := c.ShouldBindJSON(&body); err != nil || body.OtherUserID == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "bad request"})
		return
	}

	userID, _, err := parseToken(body.Token)
	if err != nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
		return
	}

	// Stable id regardless of who asks first.
	a, b := userID, body.OtherUserID
	if a > b {
		a, b = b, a
	}
	c.JSON(http.StatusOK, gin.H{"roomId": fmt.Sprintf("dm:%s:%s", a, b)})
}

func (s *server) handleWS(c *gin.Context) {
	raw := strings.TrimPrefix(c.GetHeader("Authorization"), "Bearer ")
	if raw == "" {
		raw = c.Query("token")
	}
	_, username, err := parseToken(raw)
	if err != nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
		return
	}

	conn, err := websocket.Accept(c.Writer, c.Request, &websocket.AcceptOptions{InsecureSkipVerify: true})
	if err != nil {
		log.Printf("ws accept: %v", err)
		return
	}
	defer conn.Close(websocket.StatusNormalClosure, "closing")

	ctx, cancel := context.WithCancel(c.Request.Context())
	defer cancel()

	cl := &client{username: username, send: make(chan proto.ServerEvent, 32)}
	defer s.hub.drop(cl)

	go func() {
		defer cancel()
		for {
			select {
			case <-ctx.Done():
				return
			case ev := <-cl.send:
				if err := wsjson.Write(ctx, conn, ev); err != nil {
					return
				}
			}
		}
	}()

	for {
		var cmd proto.Command
		if err := wsjson.Read(ctx, conn, &cmd); err != nil {
			return
		}

		switch cmd.Type {
		case proto.CommandTypeJoin:
			var join proto.JoinData
			if err := json.Unmarshal(cmd.Data, &join); err != nil || join.RoomID == "" {
				continue
			}
			history := s.hub.join(cl, join.RoomID)
			data, err := json.Marshal(history)
			if err != nil {
				continue
			}
			select {
			case cl.send <- proto.ServerEvent{Type: proto.EventTypeHistory, Data: data}:
			default:
			}
		case proto.CommandTypeMessage:
			var msg proto.MessageData
			if err := json.Unmarshal(cmd.Data, &msg); err != nil || msg.RoomID == "" {
				continue
			}
			s.hub.broadcast(msg.RoomID, proto.Message{
				ID:         uuid.NewString(),
				RoomID:     msg.RoomID,
				SenderName: cl.username,
				Content:    msg.Content,
				CreatedAt:  time.Now().UTC(),
			})
		}
	}
}

func mintToken(u *user) (string, error) {
	claims := jwt.MapClaims{
		"sub":      u.ID,
		"username": u.Username,
		"iat":      jwt.NewNumericDate(time.Now()),
		"exp":      jwt.NewNumericDate(time.Now().Add(24 * time.Hour)),
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(jwtSecret)
}

func parseToken(raw string) (id, username string, err error) {
	claims := jwt.MapClaims{}
	_, err = jwt.ParseWithClaims(raw, claims, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
		}
		return jwtSecret, nil
	})
	if err != nil {
		return "", "", err
	}

	id, _ = claims["sub"].(string)
	username, _ = claims["username"].(string)
	if id == "" || username == "" {
		return "", "", errors.New("incomplete claims")
	}
	return id, username, nil
}
