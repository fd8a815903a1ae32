// Package httpapi talks to the chat backend's REST endpoints: auth,
// user directory, and private-room resolution.
package httpapi

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/vovakirdan/wirechat-client/internal/core"
)

// genericError is shown when the server's error body carries no message.
const genericError = "Error"

// APIError is a non-2xx response, carrying the server-provided message when
// one was given.
type APIError struct {
	Status  int
	Message string
}

func (e *APIError) Error() string {
	return e.Message
}

// Client calls the chat backend over HTTP with JSON bodies.
type Client struct {
	baseURL string
	http    *http.Client
}

// New builds a client for the given base URL, e.g. "http://localhost:4000".
func New(baseURL string) *Client {
	return &Client{
		baseURL: baseURL,
		http:    &http.Client{Timeout: 15 * time.Second},
	}
}

// AuthResult is a successful login or register exchange.
type AuthResult struct {
	Token string    `json:"token"`
	User  core.User `json:"user"`
}

type credentials struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

// Login exchanges credentials for a token and identity.
func (c *Client) Login(ctx context.Context, username, password string) (AuthResult, error) {
	return c.auth(ctx, "login", username, password)
}

// Register creates an account and returns its token and identity.
func (c *Client) Register(ctx context.Context, username, password string) (AuthResult, error) {
	return c.auth(ctx, "register", username, password)
}

func (c *Client) auth(ctx context.Context, mode, username, password string) (AuthResult, error) {
	var res AuthResult
	err := c.post(ctx, "/auth/"+mode, credentials{Username: username, Password: password}, &res)
	if err != nil {
		return AuthResult{}, fmt.Errorf("%s: %w", mode, err)
	}
	return res, nil
}

type apiUser struct {
	ID       string `json:"id"`
	Username string `json:"username"`
}

// Users fetches the directory of known users, in server order. Callers treat
// failure as non-critical and fall back to an empty list.
func (c *Client) Users(ctx context.Context) ([]core.User, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/users", nil)
	if err != nil {
		return nil, fmt.Errorf("users: %w", err)
	}

	var raw []apiUser
	if err := c.send(req, &raw); err != nil {
		return nil, fmt.Errorf("users: %w", err)
	}

	users := make([]core.User, len(raw))
	for i, u := range raw {
		users[i] = core.User{ID: u.ID, Username: u.Username}
	}
	return users, nil
}

type privateRoomRequest struct {
	Token       string `json:"token"`
	OtherUserID string `json:"otherUserId"`
}

type privateRoomResponse struct {
	RoomID string `json:"roomId"`
}

// PrivateRoom resolves the stable id of the 1:1 room between the token's
// owner and the other user, creating it idempotently if absent.
func (c *Client) PrivateRoom(ctx context.Context, token, otherUserID string) (string, error) {
	var res privateRoomResponse
	err := c.post(ctx, "/users/private-room", privateRoomRequest{Token: token, OtherUserID: otherUserID}, &res)
	if err != nil {
		return "", fmt.Errorf("private room: %w", err)
	}
	return res.RoomID, nil
}

func (c *Client) post(ctx context.Context, path string, body, out any) error {
	payload, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("encode request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(payload))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")

	return c.send(req, out)
}

func (c *Client) send(req *http.Request, out any) error {
	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("read response: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return &APIError{Status: resp.StatusCode, Message: errorMessage(body)}
	}

	if out == nil {
		return nil
	}
	if err := json.Unmarshal(body, out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}

// errorMessage extracts the server's {error} string, falling back to a
// generic message when the body has none.
func errorMessage(body []byte) string {
	var payload struct {
		Error string `json:"error"`
	}
	if err := json.Unmarshal(body, &payload); err == nil && payload.Error != "" {
		return payload.Error
	}
	return genericError
}
