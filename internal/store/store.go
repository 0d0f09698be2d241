// Package store provides snapshot storage backends for DialogKit.
//
// A snapshot is the full persisted state of one conversation between turns.
// The contract is read-snapshot-at-turn-start, write-snapshot-at-turn-end;
// backends never interpret control state beyond (de)serializing it.
package store

import (
	"context"
	"encoding/json"
	"log/slog"
	"sync"

	"github.com/BTreeMap/DialogKit/internal/models"
)

// SnapshotStore is the persistence contract the session layer depends on.
// LoadSnapshot returns (nil, nil) when no snapshot exists for the session.
type SnapshotStore interface {
	LoadSnapshot(ctx context.Context, sessionID string) (*models.SessionSnapshot, error)
	SaveSnapshot(ctx context.Context, sessionID string, snapshot models.SessionSnapshot) error
	DeleteSnapshot(ctx context.Context, sessionID string) error
}

// Opts holds configuration options for SQL-backed stores.
type Opts struct {
	DSN string
}

// Option defines a functional option for configuring SQL-backed stores.
type Option func(*Opts)

// WithSQLiteDSN sets the SQLite database file path.
func WithSQLiteDSN(dsn string) Option {
	return func(o *Opts) {
		o.DSN = dsn
	}
}

// WithPostgresDSN sets the PostgreSQL connection string.
func WithPostgresDSN(dsn string) Option {
	return func(o *Opts) {
		o.DSN = dsn
	}
}

// InMemoryStore is a process-local snapshot store for tests and demos.
type InMemoryStore struct {
	mu        sync.RWMutex
	snapshots map[string]models.SessionSnapshot
}

// NewInMemoryStore creates an empty in-memory snapshot store.
func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{snapshots: make(map[string]models.SessionSnapshot)}
}

// LoadSnapshot returns a copy of the stored snapshot, or nil when absent.
func (s *InMemoryStore) LoadSnapshot(ctx context.Context, sessionID string) (*models.SessionSnapshot, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	snapshot, ok := s.snapshots[sessionID]
	if !ok {
		slog.Debug("InMemoryStore.LoadSnapshot: not found", "session", sessionID)
		return nil, nil
	}
	copied := snapshot
	copied.ControlStates = copyStates(snapshot.ControlStates)
	slog.Debug("InMemoryStore.LoadSnapshot: found", "session", sessionID, "turn", snapshot.TurnNumber)
	return &copied, nil
}

// SaveSnapshot stores a copy of the snapshot for the session.
func (s *InMemoryStore) SaveSnapshot(ctx context.Context, sessionID string, snapshot models.SessionSnapshot) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	snapshot.ControlStates = copyStates(snapshot.ControlStates)
	s.snapshots[sessionID] = snapshot
	slog.Debug("InMemoryStore.SaveSnapshot: saved", "session", sessionID, "turn", snapshot.TurnNumber, "controls", len(snapshot.ControlStates))
	return nil
}

// DeleteSnapshot removes the session's snapshot if present.
func (s *InMemoryStore) DeleteSnapshot(ctx context.Context, sessionID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.snapshots, sessionID)
	slog.Debug("InMemoryStore.DeleteSnapshot: deleted", "session", sessionID)
	return nil
}

// copyStates deep-copies a control-state map so callers never alias stored
// snapshots.
func copyStates(states map[string]json.RawMessage) map[string]json.RawMessage {
	if states == nil {
		return nil
	}
	copied := make(map[string]json.RawMessage, len(states))
	for id, raw := range states {
		buf := make(json.RawMessage, len(raw))
		copy(buf, raw)
		copied[id] = buf
	}
	return copied
}
