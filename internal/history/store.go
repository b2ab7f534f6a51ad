// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package history provides session persistence for costchat.
package history

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	_ "modernc.org/sqlite" // Pure Go SQLite driver

	"github.com/hvollmer/costchat/internal/model"
)

// =============================================================================
// ERRORS
// =============================================================================

// ErrSessionNotFound is returned when a session doesn't exist.
// Use errors.Is(err, ErrSessionNotFound) to check for this error.
var ErrSessionNotFound = &SessionError{Message: "session not found"}

// SessionError represents a history-related error.
// It implements the error interface and can be compared using errors.Is.
type SessionError struct {
	Message string
}

// Error implements the error interface.
func (e *SessionError) Error() string {
	return e.Message
}

// Is implements errors.Is support for comparing session errors.
func (e *SessionError) Is(target error) bool {
	t, ok := target.(*SessionError)
	if !ok {
		return false
	}
	return e.Message == t.Message
}

// =============================================================================
// STORED SESSION TYPES
// =============================================================================

// Record is a persisted session snapshot.
type Record struct {
	ID        string           `json:"id"`
	CreatedAt time.Time        `json:"created_at"`
	UpdatedAt time.Time        `json:"updated_at"`
	Messages  []*model.Message `json:"messages"`
}

// Meta contains metadata for listing sessions.
type Meta struct {
	ID           string    `json:"id"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
	MessageCount int       `json:"message_count"`
	Preview      string    `json:"preview"` // First user message truncated
}

// =============================================================================
// SESSION STORE
// =============================================================================

// Store handles session persistence backed by SQLite.
type Store struct {
	db *sql.DB

	// MaxSessions limits stored sessions (0 = unlimited)
	MaxSessions int
}

// NewStore opens the default database at ~/.costchat/history.db.
func NewStore() (*Store, error) {
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return nil, err
	}
	return NewStoreWithPath(filepath.Join(homeDir, ".costchat", "history.db"))
}

// NewStoreWithPath opens (creating if needed) a database at the given path.
func NewStoreWithPath(path string) (*Store, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return nil, err
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open history database: %w", err)
	}

	pragmas := []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA synchronous=NORMAL",
		"PRAGMA busy_timeout=5000",
	}
	for _, pragma := range pragmas {
		if _, err := db.Exec(pragma); err != nil {
			db.Close()
			return nil, fmt.Errorf("failed to set pragma: %w", err)
		}
	}

	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to create schema: %w", err)
	}

	return &Store{db: db, MaxSessions: 100}, nil
}

const schema = `
CREATE TABLE IF NOT EXISTS sessions (
	id            TEXT PRIMARY KEY,
	created_at    TEXT NOT NULL,
	updated_at    TEXT NOT NULL,
	message_count INTEGER NOT NULL,
	preview       TEXT NOT NULL,
	messages      TEXT NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_sessions_updated ON sessions(updated_at);
`

// Close releases the underlying database.
func (s *Store) Close() error {
	return s.db.Close()
}

// =============================================================================
// SAVE OPERATIONS
// =============================================================================

// Save upserts a session snapshot. The first save fixes created_at; later
// saves of the same id only advance updated_at and replace the messages.
func (s *Store) Save(rec *Record) error {
	if rec.ID == "" {
		return &SessionError{Message: "session id cannot be empty"}
	}

	createdAt := rec.CreatedAt
	if createdAt.IsZero() {
		createdAt = time.Now()
	}

	data, err := json.Marshal(rec.Messages)
	if err != nil {
		return fmt.Errorf("failed to encode messages: %w", err)
	}

	_, err = s.db.Exec(`
		INSERT INTO sessions (id, created_at, updated_at, message_count, preview, messages)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			updated_at    = excluded.updated_at,
			message_count = excluded.message_count,
			preview       = excluded.preview,
			messages      = excluded.messages`,
		rec.ID,
		createdAt.Format(time.RFC3339Nano),
		time.Now().Format(time.RFC3339Nano),
		len(rec.Messages),
		previewOf(rec.Messages),
		string(data),
	)
	if err != nil {
		return fmt.Errorf("failed to save session: %w", err)
	}

	if s.MaxSessions > 0 {
		s.enforceLimit()
	}
	return nil
}

// previewOf extracts the first user message, rune-truncated for the list.
func previewOf(messages []*model.Message) string {
	for _, msg := range messages {
		if msg.Role != model.RoleUser {
			continue
		}
		preview := msg.Content
		if preview == "" {
			preview = msg.Transcript
		}
		preview = strings.ReplaceAll(preview, "\n", " ")
		runes := []rune(preview)
		if len(runes) > 80 {
			preview = string(runes[:77]) + "..."
		}
		if preview != "" {
			return preview
		}
	}
	return "New conversation"
}

// enforceLimit removes oldest sessions if over limit.
func (s *Store) enforceLimit() {
	var count int
	if err := s.db.QueryRow(`SELECT COUNT(*) FROM sessions`).Scan(&count); err != nil {
		return
	}
	if count <= s.MaxSessions {
		return
	}
	s.db.Exec(`
		DELETE FROM sessions WHERE id IN (
			SELECT id FROM sessions ORDER BY updated_at ASC LIMIT ?
		)`, count-s.MaxSessions)
}

// =============================================================================
// LOAD OPERATIONS
// =============================================================================

// Load retrieves a session by ID.
func (s *Store) Load(id string) (*Record, error) {
	var createdAt, updatedAt, data string
	err := s.db.QueryRow(
		`SELECT created_at, updated_at, messages FROM sessions WHERE id = ?`, id,
	).Scan(&createdAt, &updatedAt, &data)
	if err == sql.ErrNoRows {
		return nil, ErrSessionNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load session: %w", err)
	}

	rec := &Record{ID: id}
	rec.CreatedAt, _ = time.Parse(time.RFC3339Nano, createdAt)
	rec.UpdatedAt, _ = time.Parse(time.RFC3339Nano, updatedAt)
	if err := json.Unmarshal([]byte(data), &rec.Messages); err != nil {
		return nil, fmt.Errorf("failed to decode messages: %w", err)
	}
	return rec, nil
}

// =============================================================================
// LIST OPERATIONS
// =============================================================================

// List returns all saved sessions (most recent first).
func (s *Store) List() ([]Meta, error) {
	rows, err := s.db.Query(`
		SELECT id, created_at, updated_at, message_count, preview
		FROM sessions ORDER BY updated_at DESC`)
	if err != nil {
		return nil, fmt.Errorf("failed to list sessions: %w", err)
	}
	defer rows.Close()

	var metas []Meta
	for rows.Next() {
		var meta Meta
		var createdAt, updatedAt string
		if err := rows.Scan(&meta.ID, &createdAt, &updatedAt, &meta.MessageCount, &meta.Preview); err != nil {
			return nil, err
		}
		meta.CreatedAt, _ = time.Parse(time.RFC3339Nano, createdAt)
		meta.UpdatedAt, _ = time.Parse(time.RFC3339Nano, updatedAt)
		metas = append(metas, meta)
	}
	return metas, rows.Err()
}

// Search finds sessions whose preview matches a query string.
func (s *Store) Search(query string) ([]Meta, error) {
	all, err := s.List()
	if err != nil {
		return nil, err
	}

	query = strings.ToLower(query)
	var results []Meta
	for _, meta := range all {
		if strings.Contains(strings.ToLower(meta.Preview), query) {
			results = append(results, meta)
		}
	}
	return results, nil
}

// =============================================================================
// DELETE OPERATIONS
// =============================================================================

// Delete removes a session by ID.
func (s *Store) Delete(id string) error {
	res, err := s.db.Exec(`DELETE FROM sessions WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("failed to delete session: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrSessionNotFound
	}
	return nil
}

// Clear removes all saved sessions.
func (s *Store) Clear() error {
	_, err := s.db.Exec(`DELETE FROM sessions`)
	return err
}
