// Package store provides storage backends for DialogKit.
//
// This file implements an SQLite-backed snapshot store.
package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	_ "embed"

	"github.com/BTreeMap/DialogKit/internal/models"
	_ "github.com/mattn/go-sqlite3"
)

// DefaultDirPermissions defines the default permissions for database directories.
const DefaultDirPermissions = 0755

//go:embed migrations_sqlite.sql
var sqliteMigrations string

// SQLiteStore persists session snapshots in an SQLite database file.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLiteStore creates a new SQLite store with the given DSN.
// The DSN is a file path to the SQLite database file; the containing
// directory is created if missing.
func NewSQLiteStore(opts ...Option) (*SQLiteStore, error) {
	var cfg Opts
	for _, opt := range opts {
		opt(&cfg)
	}
	slog.Debug("NewSQLiteStore invoked", "DSN_set", cfg.DSN != "")

	dsn := cfg.DSN
	if dsn == "" {
		slog.Error("SQLiteStore DSN not set")
		return nil, fmt.Errorf("database DSN not set")
	}

	dir := filepath.Dir(dsn)
	if err := os.MkdirAll(dir, DefaultDirPermissions); err != nil {
		slog.Error("Failed to create database directory", "error", err, "dir", dir)
		return nil, fmt.Errorf("failed to create database directory: %w", err)
	}

	db, err := sql.Open("sqlite3", dsn)
	if err != nil {
		slog.Error("Failed to open SQLite connection", "error", err)
		return nil, err
	}
	if err := db.Ping(); err != nil {
		slog.Error("SQLite ping failed", "error", err)
		return nil, err
	}

	if _, err := db.Exec(sqliteMigrations); err != nil {
		slog.Error("Failed to run SQLite migrations", "error", err)
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}
	slog.Debug("SQLite migrations applied successfully")

	return &SQLiteStore{db: db}, nil
}

// LoadSnapshot returns the session's snapshot, or nil when absent.
func (s *SQLiteStore) LoadSnapshot(ctx context.Context, sessionID string) (*models.SessionSnapshot, error) {
	var snapshot models.SessionSnapshot
	var statesJSON string
	row := s.db.QueryRowContext(ctx,
		`SELECT turn_number, control_states, updated_at FROM session_snapshots WHERE session_id = ?`, sessionID)
	err := row.Scan(&snapshot.TurnNumber, &statesJSON, &snapshot.UpdatedAt)
	if err == sql.ErrNoRows {
		slog.Debug("SQLiteStore.LoadSnapshot: not found", "session", sessionID)
		return nil, nil
	}
	if err != nil {
		slog.Error("SQLiteStore.LoadSnapshot failed", "error", err, "session", sessionID)
		return nil, fmt.Errorf("failed to load snapshot for %s: %w", sessionID, err)
	}
	if err := json.Unmarshal([]byte(statesJSON), &snapshot.ControlStates); err != nil {
		slog.Error("SQLiteStore.LoadSnapshot unmarshal failed", "error", err, "session", sessionID)
		return nil, fmt.Errorf("failed to unmarshal control states for %s: %w", sessionID, err)
	}
	slog.Debug("SQLiteStore.LoadSnapshot succeeded", "session", sessionID, "turn", snapshot.TurnNumber)
	return &snapshot, nil
}

// SaveSnapshot upserts the session's snapshot.
func (s *SQLiteStore) SaveSnapshot(ctx context.Context, sessionID string, snapshot models.SessionSnapshot) error {
	statesJSON, err := json.Marshal(snapshot.ControlStates)
	if err != nil {
		return fmt.Errorf("failed to marshal control states for %s: %w", sessionID, err)
	}
	_, err = s.db.ExecContext(ctx,
		`INSERT INTO session_snapshots (session_id, turn_number, control_states, updated_at) VALUES (?, ?, ?, ?)
		 ON CONFLICT(session_id) DO UPDATE SET turn_number = excluded.turn_number, control_states = excluded.control_states, updated_at = excluded.updated_at`,
		sessionID, snapshot.TurnNumber, string(statesJSON), snapshot.UpdatedAt)
	if err != nil {
		slog.Error("SQLiteStore.SaveSnapshot failed", "error", err, "session", sessionID)
		return fmt.Errorf("failed to save snapshot for %s: %w", sessionID, err)
	}
	slog.Debug("SQLiteStore.SaveSnapshot succeeded", "session", sessionID, "turn", snapshot.TurnNumber)
	return nil
}

// DeleteSnapshot removes the session's snapshot if present.
func (s *SQLiteStore) DeleteSnapshot(ctx context.Context, sessionID string) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM session_snapshots WHERE session_id = ?`, sessionID)
	if err != nil {
		slog.Error("SQLiteStore.DeleteSnapshot failed", "error", err, "session", sessionID)
		return fmt.Errorf("failed to delete snapshot for %s: %w", sessionID, err)
	}
	return nil
}

// Close closes the underlying database connection.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}
