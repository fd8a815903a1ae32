package httpapi

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
)

// fakeBackend wires a gin router with the three REST endpoints the client
// depends on.
func fakeBackend(t *testing.T) *Client {
	t.Helper()

	gin.SetMode(gin.TestMode)
	router := gin.New()

	router.POST("/auth/:mode", func(c *gin.Context) {
		var body struct {
			Username string `json:"username"`
			Password string `json:"password"`
		}
		if err := c.ShouldBindJSON(&body); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "bad request"})
			return
		}
		if body.Password != "password123" {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid credentials"})
			return
		}
		c.JSON(http.StatusOK, gin.H{
			"token": "tok-" + body.Username,
			"user":  gin.H{"id": "u1", "username": body.Username},
		})
	})

	router.GET("/users", func(c *gin.Context) {
		c.JSON(http.StatusOK, []gin.H{
			{"id": "u1", "username": "alice"},
			{"id": "u2", "username": "bob"},
		})
	})

	router.POST("/users/private-room", func(c *gin.Context) {
		var body struct {
			Token       string `json:"token"`
			OtherUserID string `json:"otherUserId"`
		}
		if err := c.ShouldBindJSON(&body); err != nil || body.Token == "" {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "missing token"})
			return
		}
		if body.OtherUserID == "missing" {
			// Error body without a message: the client shows its generic text.
			c.Status(http.StatusNotFound)
			return
		}
		c.JSON(http.StatusOK, gin.H{"roomId": "dm:u1:" + body.OtherUserID})
	})

	ts := httptest.NewServer(router)
	t.Cleanup(ts.Close)
	return New(ts.URL)
}

func TestLoginReturnsTokenAndIdentity(t *testing.T) {
	client := fakeBackend(t)

	res, err := client.Login(context.Background(), "alice", "password123")
	if err != nil {
		t.Fatalf("login failed: %v", err)
	}
	if res.Token != "tok-alice" {
		t.Fatalf("unexpected token: %q", res.Token)
	}
	if res.User.ID != "u1" || res.User.Username != "alice" {
		t.Fatalf("unexpected identity: %+v", res.User)
	}
}

func TestLoginSurfacesServerErrorMessage(t *testing.T) {
	client := fakeBackend(t)

	_, err := client.Login(context.Background(), "alice", "wrong")
	if err == nil {
		t.Fatalf("expected error for bad credentials")
	}

	var apiErr *APIError
	if !errors.As(err, &apiErr) {
		t.Fatalf("expected APIError, got %T: %v", err, err)
	}
	if apiErr.Message != "invalid credentials" {
		t.Fatalf("expected server message, got %q", apiErr.Message)
	}
	if apiErr.Status != http.StatusUnauthorized {
		t.Fatalf("unexpected status: %d", apiErr.Status)
	}
}

func TestRegisterUsesRegisterEndpoint(t *testing.T) {
	client := fakeBackend(t)

	res, err := client.Register(context.Background(), "carol", "password123")
	if err != nil {
		t.Fatalf("register failed: %v", err)
	}
	if res.User.Username != "carol" {
		t.Fatalf("unexpected identity: %+v", res.User)
	}
}

func TestUsersKeepsServerOrder(t *testing.T) {
	client := fakeBackend(t)

	users, err := client.Users(context.Background())
	if err != nil {
		t.Fatalf("users failed: %v", err)
	}
	if len(users) != 2 || users[0].Username != "alice" || users[1].Username != "bob" {
		t.Fatalf("unexpected directory: %+v", users)
	}
}

func TestPrivateRoomResolvesID(t *testing.T) {
	client := fakeBackend(t)

	roomID, err := client.PrivateRoom(context.Background(), "tok-alice", "u2")
	if err != nil {
		t.Fatalf("private room failed: %v", err)
	}
	if roomID != "dm:u1:u2" {
		t.Fatalf("unexpected room id: %q", roomID)
	}
}

func TestEmptyErrorBodyFallsBackToGenericMessage(t *testing.T) {
	client := fakeBackend(t)

	_, err := client.PrivateRoom(context.Background(), "tok-alice", "missing")
	var apiErr *APIError
	if !errors.As(err, &apiErr) {
		t.Fatalf("expected APIError, got %v", err)
	}
	if apiErr.Message != genericError {
		t.Fatalf("expected generic message, got %q", apiErr.Message)
	}
}
