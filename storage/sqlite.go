// SQLite conversation history.
//
// Information Hiding:
// - SQLite connection management hidden behind HistoryStore
// - Schema details encapsulated
// - Message ordering by per-session index hidden

package storage

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"

	_ "github.com/mattn/go-sqlite3"

	"github.com/richinex/theseus/llm"
)

// SqliteHistory is a HistoryStore persisted in a SQLite database file.
type SqliteHistory struct {
	db *sql.DB
}

// OpenSqliteHistory opens or creates a history database at path.
// Creates parent directories if they don't exist.
func OpenSqliteHistory(path string) (*SqliteHistory, error) {
	if err := ensureDir(path); err != nil {
		return nil, err
	}

	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open SQLite database: %w", err)
	}
	return newSqliteHistory(db)
}

// NewSqliteHistoryInMemory creates an in-memory history database.
func NewSqliteHistoryInMemory() (*SqliteHistory, error) {
	db, err := sql.Open("sqlite3", ":memory:")
	if err != nil {
		return nil, fmt.Errorf("failed to create in-memory SQLite: %w", err)
	}
	db.SetMaxOpenConns(1)
	return newSqliteHistory(db)
}

func newSqliteHistory(db *sql.DB) (*SqliteHistory, error) {
	h := &SqliteHistory{db: db}
	if err := h.createSchema(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}
	return h, nil
}

func ensureDir(path string) error {
	dir := filepath.Dir(path)
	if dir != "" && dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("failed to create database directory: %w", err)
		}
	}
	return nil
}

// Close closes the database connection.
func (h *SqliteHistory) Close() error {
	return h.db.Close()
}

func (h *SqliteHistory) createSchema() error {
	schema := `
		CREATE TABLE IF NOT EXISTS sessions (
			session_id TEXT PRIMARY KEY,
			created_at TEXT NOT NULL DEFAULT (datetime('now')),
			updated_at TEXT NOT NULL DEFAULT (datetime('now'))
		);

		CREATE TABLE IF NOT EXISTS messages (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			session_id TEXT NOT NULL,
			message_index INTEGER NOT NULL,
			role TEXT NOT NULL,
			content TEXT NOT NULL,
			UNIQUE(session_id, message_index)
		);

		CREATE INDEX IF NOT EXISTS idx_messages_session
		ON messages(session_id, message_index);
	`

	if _, err := h.db.Exec(schema); err != nil {
		return fmt.Errorf("failed to create schema: %w", err)
	}
	return nil
}

// Append adds messages to the end of a session in one transaction.
func (h *SqliteHistory) Append(ctx context.Context, sessionID string, messages ...llm.ChatMessage) error {
	tx, err := h.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(ctx,
		"INSERT OR IGNORE INTO sessions (session_id) VALUES (?)", sessionID); err != nil {
		return fmt.Errorf("failed to ensure session: %w", err)
	}

	var next int
	if err := tx.QueryRowContext(ctx,
		"SELECT COALESCE(MAX(message_index) + 1, 0) FROM messages WHERE session_id = ?",
		sessionID).Scan(&next); err != nil {
		return fmt.Errorf("failed to read message index: %w", err)
	}

	stmt, err := tx.PrepareContext(ctx,
		"INSERT INTO messages (session_id, message_index, role, content) VALUES (?, ?, ?, ?)")
	if err != nil {
		return fmt.Errorf("failed to prepare insert statement: %w", err)
	}
	defer stmt.Close()

	for i, msg := range messages {
		if _, err := stmt.ExecContext(ctx, sessionID, next+i, msg.Role, msg.Content); err != nil {
			return fmt.Errorf("failed to insert message: %w", err)
		}
	}

	if _, err := tx.ExecContext(ctx,
		"UPDATE sessions SET updated_at = datetime('now') WHERE session_id = ?",
		sessionID); err != nil {
		return fmt.Errorf("failed to update session timestamp: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

// Load returns the session history in insertion order.
// Returns an empty slice if the session doesn't exist.
func (h *SqliteHistory) Load(ctx context.Context, sessionID string) ([]llm.ChatMessage, error) {
	rows, err := h.db.QueryContext(ctx,
		"SELECT role, content FROM messages WHERE session_id = ? ORDER BY message_index ASC",
		sessionID)
	if err != nil {
		return nil, fmt.Errorf("failed to query messages: %w", err)
	}
	defer rows.Close()

	messages := []llm.ChatMessage{}
	for rows.Next() {
		var msg llm.ChatMessage
		if err := rows.Scan(&msg.Role, &msg.Content); err != nil {
			return nil, fmt.Errorf("failed to scan message: %w", err)
		}
		messages = append(messages, msg)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating messages: %w", err)
	}
	return messages, nil
}

// Reset drops a session and its messages.
func (h *SqliteHistory) Reset(ctx context.Context, sessionID string) error {
	if _, err := h.db.ExecContext(ctx,
		"DELETE FROM messages WHERE session_id = ?", sessionID); err != nil {
		return fmt.Errorf("failed to delete messages: %w", err)
	}
	if _, err := h.db.ExecContext(ctx,
		"DELETE FROM sessions WHERE session_id = ?", sessionID); err != nil {
		return fmt.Errorf("failed to delete session: %w", err)
	}
	return nil
}

// Sessions lists session IDs in sorted order.
func (h *SqliteHistory) Sessions(ctx context.Context) ([]string, error) {
	rows, err := h.db.QueryContext(ctx,
		"SELECT session_id FROM sessions ORDER BY session_id ASC")
	if err != nil {
		return nil, fmt.Errorf("failed to query sessions: %w", err)
	}
	defer rows.Close()

	sessions := []string{}
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("failed to scan session: %w", err)
		}
		sessions = append(sessions, id)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating sessions: %w", err)
	}
	return sessions, nil
}

var _ HistoryStore = (*SqliteHistory)(nil)
