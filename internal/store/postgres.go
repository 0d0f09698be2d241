// Package store provides storage backends for DialogKit.
//
// This file implements a PostgreSQL-backed snapshot store.
package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	_ "embed"

	"github.com/BTreeMap/DialogKit/internal/models"
	_ "github.com/lib/pq"
)

// Database connection pool configuration constants
const (
	// DefaultMaxOpenConns is the default maximum number of open connections to the database
	DefaultMaxOpenConns = 25
	// DefaultMaxIdleConns is the default maximum number of idle connections in the pool
	DefaultMaxIdleConns = 25
	// DefaultConnMaxLifetime is the default maximum amount of time a connection may be reused
	DefaultConnMaxLifetime = 5 * time.Minute
)

//go:embed migrations_postgres.sql
var postgresMigrations string

// PostgresStore persists session snapshots in PostgreSQL.
type PostgresStore struct {
	db *sql.DB
}

// NewPostgresStore creates a new Postgres store based on provided options.
func NewPostgresStore(opts ...Option) (*PostgresStore, error) {
	var cfg Opts
	for _, opt := range opts {
		opt(&cfg)
	}
	slog.Debug("PostgresStore.NewPostgresStore: creating Postgres store", "DSN_set", cfg.DSN != "")
	dsn := cfg.DSN
	if dsn == "" {
		slog.Error("PostgresStore DSN not set")
		return nil, fmt.Errorf("database DSN not set")
	}

	db, err := sql.Open("postgres", dsn)
	if err != nil {
		slog.Error("Failed to open Postgres connection", "error", err)
		return nil, err
	}
	db.SetMaxOpenConns(DefaultMaxOpenConns)
	db.SetMaxIdleConns(DefaultMaxIdleConns)
	db.SetConnMaxLifetime(DefaultConnMaxLifetime)

	if err := db.Ping(); err != nil {
		slog.Error("Postgres ping failed", "error", err)
		return nil, err
	}

	if _, err := db.Exec(postgresMigrations); err != nil {
		slog.Error("Failed to run Postgres migrations", "error", err)
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}
	slog.Debug("Postgres migrations applied successfully")

	return &PostgresStore{db: db}, nil
}

// LoadSnapshot returns the session's snapshot, or nil when absent.
func (s *PostgresStore) LoadSnapshot(ctx context.Context, sessionID string) (*models.SessionSnapshot, error) {
	var snapshot models.SessionSnapshot
	var statesJSON string
	row := s.db.QueryRowContext(ctx,
		`SELECT turn_number, control_states, updated_at FROM session_snapshots WHERE session_id = $1`, sessionID)
	err := row.Scan(&snapshot.TurnNumber, &statesJSON, &snapshot.UpdatedAt)
	if err == sql.ErrNoRows {
		slog.Debug("PostgresStore.LoadSnapshot: not found", "session", sessionID)
		return nil, nil
	}
	if err != nil {
		slog.Error("PostgresStore.LoadSnapshot failed", "error", err, "session", sessionID)
		return nil, fmt.Errorf("failed to load snapshot for %s: %w", sessionID, err)
	}
	if err := json.Unmarshal([]byte(statesJSON), &snapshot.ControlStates); err != nil {
		slog.Error("PostgresStore.LoadSnapshot unmarshal failed", "error", err, "session", sessionID)
		return nil, fmt.Errorf("failed to unmarshal control states for %s: %w", sessionID, err)
	}
	slog.Debug("PostgresStore.LoadSnapshot succeeded", "session", sessionID, "turn", snapshot.TurnNumber)
	return &snapshot, nil
}

// SaveSnapshot upserts the session's snapshot.
func (s *PostgresStore) SaveSnapshot(ctx context.Context, sessionID string, snapshot models.SessionSnapshot) error {
	statesJSON, err := json.Marshal(snapshot.ControlStates)
	if err != nil {
		return fmt.Errorf("failed to marshal control states for %s: %w", sessionID, err)
	}
	_, err = s.db.ExecContext(ctx,
		`INSERT INTO session_snapshots (session_id, turn_number, control_states, updated_at) VALUES ($1, $2, $3, $4)
		 ON CONFLICT (session_id) DO UPDATE SET turn_number = EXCLUDED.turn_number, control_states = EXCLUDED.control_states, updated_at = EXCLUDED.updated_at`,
		sessionID, snapshot.TurnNumber, string(statesJSON), snapshot.UpdatedAt)
	if err != nil {
		slog.Error("PostgresStore.SaveSnapshot failed", "error", err, "session", sessionID)
		return fmt.Errorf("failed to save snapshot for %s: %w", sessionID, err)
	}
	slog.Debug("PostgresStore.SaveSnapshot succeeded", "session", sessionID, "turn", snapshot.TurnNumber)
	return nil
}

// DeleteSnapshot removes the session's snapshot if present.
func (s *PostgresStore) DeleteSnapshot(ctx context.Context, sessionID string) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM session_snapshots WHERE session_id = $1`, sessionID)
	if err != nil {
		slog.Error("PostgresStore.DeleteSnapshot failed", "error", err, "session", sessionID)
		return fmt.Errorf("failed to delete snapshot for %s: %w", sessionID, err)
	}
	return nil
}

// Close closes the underlying database connection.
func (s *PostgresStore) Close() error {
	return s.db.Close()
}
