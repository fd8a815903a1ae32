// Package app wires configuration, session storage, the REST client, and the
// realtime pipeline into one place the CLI can drive.
package app

import (
	"context"
	"fmt"

	"github.com/rs/zerolog"

	"github.com/vovakirdan/wirechat-client/internal/config"
	"github.com/vovakirdan/wirechat-client/internal/core"
	"github.com/vovakirdan/wirechat-client/internal/session"
	"github.com/vovakirdan/wirechat-client/internal/transport/httpapi"
	"github.com/vovakirdan/wirechat-client/internal/transport/ws"
)

// App holds the pieces that exist regardless of whether a chat is running.
type App struct {
	cfg   config.Config
	log   *zerolog.Logger
	store *session.Store
	api   *httpapi.Client
}

// New constructs the application with provided configuration.
func New(cfg config.Config, logger *zerolog.Logger) (*App, error) {
	st, err := session.Open(cfg.SessionPath)
	if err != nil {
		return nil, fmt.Errorf("init session store: %w", err)
	}

	logger.Debug().Str("session_path", cfg.SessionPath).Msg("session store opened")

	return &App{
		cfg:   cfg,
		log:   logger,
		store: st,
		api:   httpapi.New(cfg.ServerURL),
	}, nil
}

// Close releases the session store.
func (a *App) Close() error {
	return a.store.Close()
}

// Session returns the persisted session, nil when absent or expired.
func (a *App) Session(ctx context.Context) (*session.Session, error) {
	return a.store.Load(ctx)
}

// Authenticate runs a login or register exchange and persists the resulting
// session. On failure nothing is stored; any previous session stays intact.
func (a *App) Authenticate(ctx context.Context, mode, username, password string) (*session.Session, error) {
	var (
		res httpapi.AuthResult
		err error
	)
	switch mode {
	case "login":
		res, err = a.api.Login(ctx, username, password)
	case "register":
		res, err = a.api.Register(ctx, username, password)
	default:
		return nil, fmt.Errorf("unknown auth mode %q", mode)
	}
	if err != nil {
		return nil, err
	}

	if err := a.store.Save(ctx, res.Token, res.User); err != nil {
		return nil, err
	}

	a.log.Info().Str("username", res.User.Username).Msg("authenticated")
	return &session.Session{Token: res.Token, User: res.User}, nil
}

// Logout drops the persisted session.
func (a *App) Logout(ctx context.Context) error {
	return a.store.Clear(ctx)
}

// Users fetches the directory. Best-effort: callers show an empty list on
// error.
func (a *App) Users(ctx context.Context) ([]core.User, error) {
	return a.api.Users(ctx)
}

// Chat is an assembled realtime pipeline for one authenticated session.
type Chat struct {
	Engine  *core.Engine
	Manager *ws.Manager
}

// NewChat builds the channel manager and engine for the session. Nothing
// connects until Run.
func (a *App) NewChat(sess *session.Session) *Chat {
	manager := ws.NewManager(a.cfg.ResolveWSURL(), a.cfg.ReconnectMin, a.cfg.ReconnectMax, a.log)
	resolver := &tokenResolver{api: a.api, token: sess.Token}
	engine := core.NewEngine(manager, resolver, manager.Events())
	return &Chat{Engine: engine, Manager: manager}
}

// Run opens the connection and processes events until the context ends.
func (c *Chat) Run(ctx context.Context, token string) {
	c.Manager.Open(ctx, token)
	defer c.Manager.Close()
	c.Engine.Run(ctx)
}

// tokenResolver binds the session token to private-room resolution calls.
type tokenResolver struct {
	api   *httpapi.Client
	token string
}

func (r *tokenResolver) PrivateRoom(ctx context.Context, otherUserID string) (string, error) {
	return r.api.PrivateRoom(ctx, r.token, otherUserID)
}
