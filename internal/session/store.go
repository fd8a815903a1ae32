// Package session persists the auth token and identity across process
// restarts, the way the original client kept its token in local storage.
package session

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"github.com/vovakirdan/wirechat-client/internal/core"
)

// Session is a stored token plus the identity it was issued for. The two are
// written and cleared together; there is never a token without an identity.
type Session struct {
	Token string
	User  core.User
}

// Store keeps at most one session in a local SQLite database.
type Store struct {
	db *sql.DB
}

const schema = `
CREATE TABLE IF NOT EXISTS session (
	id        INTEGER PRIMARY KEY CHECK (id = 1),
	token     TEXT NOT NULL,
	user_id   TEXT NOT NULL,
	username  TEXT NOT NULL,
	saved_at  DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
);
`

// Open opens (creating if needed) the session database at path.
// ":memory:" works for tests.
func Open(path string) (*Store, error) {
	db, err := sql.Open("sqlite3", path+"?_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}

	// SQLite works best with a single connection.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("apply schema: %w", err)
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping sqlite: %w", err)
	}

	return &Store{db: db}, nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// Save stores the session, replacing any previous one.
func (s *Store) Save(ctx context.Context, token string, user core.User) error {
	query := `
		INSERT INTO session (id, token, user_id, username, saved_at)
		VALUES (1, ?, ?, ?, CURRENT_TIMESTAMP)
		ON CONFLICT(id) DO UPDATE SET
			token = excluded.token,
			user_id = excluded.user_id,
			username = excluded.username,
			saved_at = excluded.saved_at
	`
	if _, err := s.db.ExecContext(ctx, query, token, user.ID, user.Username); err != nil {
		return fmt.Errorf("save session: %w", err)
	}
	return nil
}

// Load returns the stored session, or nil when none exists. A stored token
// that is a JWT past its expiry is cleared and treated as absent, so callers
// never start a connection with a token the server is guaranteed to reject.
func (s *Store) Load(ctx context.Context) (*Session, error) {
	query := `SELECT token, user_id, username FROM session WHERE id = 1`

	var sess Session
	err := s.db.QueryRowContext(ctx, query).Scan(&sess.Token, &sess.User.ID, &sess.User.Username)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("load session: %w", err)
	}

	if Expired(sess.Token, time.Now()) {
		if err := s.Clear(ctx); err != nil {
			return nil, err
		}
		return nil, nil
	}

	return &sess, nil
}

// Clear removes the stored session. Clearing an empty store is fine.
func (s *Store) Clear(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, `DELETE FROM session WHERE id = 1`); err != nil {
		return fmt.Errorf("clear session: %w", err)
	}
	return nil
}
