package memory

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/jmoiron/sqlx"
	_ "github.com/mattn/go-sqlite3"
	"github.com/sirupsen/logrus"
)

const sqliteSchema = `
CREATE TABLE IF NOT EXISTS messages (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	session_id TEXT NOT NULL,
	role TEXT NOT NULL,
	content TEXT NOT NULL,
	created_at TIMESTAMP NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_messages_session ON messages(session_id, id);
`

// SQLiteStore persists conversation history to a local SQLite file so
// sessions survive process restarts.
type SQLiteStore struct {
	db         *sqlx.DB
	maxHistory int
	logger     *logrus.Entry
}

// OpenSQLite opens (or creates) the history database at path
func OpenSQLite(path string, maxHistory int) (*SQLiteStore, error) {
	if maxHistory <= 0 {
		maxHistory = DefaultMaxHistory
	}

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("failed to create history directory: %w", err)
	}

	db, err := sqlx.Connect("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open history database: %w", err)
	}

	if _, err := db.Exec(sqliteSchema); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to create history schema: %w", err)
	}

	return &SQLiteStore{
		db:         db,
		maxHistory: maxHistory,
		logger:     logrus.WithField("component", "history_store"),
	}, nil
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// Append stores one turn and prunes the session past the history cap
func (s *SQLiteStore) Append(ctx context.Context, sessionID string, msg Message) error {
	if msg.CreatedAt.IsZero() {
		msg.CreatedAt = time.Now().UTC()
	}

	_, err := s.db.ExecContext(ctx,
		`INSERT INTO messages (session_id, role, content, created_at) VALUES (?, ?, ?, ?)`,
		sessionID, msg.Role, msg.Content, msg.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to append message: %w", err)
	}

	// Keep only the newest maxHistory rows per session
	_, err = s.db.ExecContext(ctx,
		`DELETE FROM messages WHERE session_id = ? AND id NOT IN (
			SELECT id FROM messages WHERE session_id = ? ORDER BY id DESC LIMIT ?
		)`,
		sessionID, sessionID, s.maxHistory)
	if err != nil {
		s.logger.WithError(err).Warn("Failed to prune session history")
	}
	return nil
}

// Recent returns up to n turns for the session, oldest first
func (s *SQLiteStore) Recent(ctx context.Context, sessionID string, n int) ([]Message, error) {
	if n <= 0 || n > s.maxHistory {
		n = s.maxHistory
	}

	var msgs []Message
	err := s.db.SelectContext(ctx, &msgs,
		`SELECT role, content, created_at FROM (
			SELECT id, role, content, created_at FROM messages
			WHERE session_id = ? ORDER BY id DESC LIMIT ?
		) ORDER BY id ASC`,
		sessionID, n)
	if err != nil {
		return nil, fmt.Errorf("failed to read session history: %w", err)
	}
	return msgs, nil
}
