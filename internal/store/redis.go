// Package store provides storage backends for DialogKit.
//
// This file implements a Redis-backed snapshot store: one JSON value per
// session under a configurable key prefix, with an optional TTL so idle
// conversations expire.
package store

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/BTreeMap/DialogKit/internal/models"
	backend "github.com/redis/go-redis/v9"
)

// DefaultRedisPrefix is the default key prefix for session snapshots.
const DefaultRedisPrefix = "dialogkit:session:"

// RedisStore persists session snapshots in Redis.
type RedisStore struct {
	client *backend.Client
	prefix string
	ttl    time.Duration
}

// RedisOption defines a functional option for configuring a RedisStore.
type RedisOption func(*RedisStore)

// WithRedisPrefix sets the key prefix for session snapshots.
func WithRedisPrefix(prefix string) RedisOption {
	return func(s *RedisStore) {
		s.prefix = prefix
	}
}

// WithRedisTTL sets the expiration for idle sessions. Zero means no expiration.
func WithRedisTTL(ttl time.Duration) RedisOption {
	return func(s *RedisStore) {
		s.ttl = ttl
	}
}

// NewRedisStore creates a Redis snapshot store with its own client.
func NewRedisStore(addr, password string, db int, opts ...RedisOption) *RedisStore {
	client := backend.NewClient(&backend.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})
	return NewRedisStoreFromClient(client, opts...)
}

// NewRedisStoreFromClient creates a Redis snapshot store from an existing client.
func NewRedisStoreFromClient(client *backend.Client, opts ...RedisOption) *RedisStore {
	store := &RedisStore{
		client: client,
		prefix: DefaultRedisPrefix,
		ttl:    0,
	}
	for _, opt := range opts {
		opt(store)
	}
	slog.Debug("RedisStore created", "prefix", store.prefix, "ttl", store.ttl)
	return store
}

func (s *RedisStore) key(sessionID string) string {
	return s.prefix + sessionID
}

// LoadSnapshot returns the session's snapshot, or nil when absent.
func (s *RedisStore) LoadSnapshot(ctx context.Context, sessionID string) (*models.SessionSnapshot, error) {
	data, err := s.client.Get(ctx, s.key(sessionID)).Bytes()
	if err == backend.Nil {
		slog.Debug("RedisStore.LoadSnapshot: not found", "session", sessionID)
		return nil, nil
	}
	if err != nil {
		slog.Error("RedisStore.LoadSnapshot failed", "error", err, "session", sessionID)
		return nil, fmt.Errorf("failed to load snapshot for %s: %w", sessionID, err)
	}
	var snapshot models.SessionSnapshot
	if err := json.Unmarshal(data, &snapshot); err != nil {
		slog.Error("RedisStore.LoadSnapshot unmarshal failed", "error", err, "session", sessionID)
		return nil, fmt.Errorf("failed to unmarshal snapshot for %s: %w", sessionID, err)
	}
	slog.Debug("RedisStore.LoadSnapshot succeeded", "session", sessionID, "turn", snapshot.TurnNumber)
	return &snapshot, nil
}

// SaveSnapshot stores the session's snapshot, refreshing the TTL if one is set.
func (s *RedisStore) SaveSnapshot(ctx context.Context, sessionID string, snapshot models.SessionSnapshot) error {
	data, err := json.Marshal(snapshot)
	if err != nil {
		return fmt.Errorf("failed to marshal snapshot for %s: %w", sessionID, err)
	}
	if err := s.client.Set(ctx, s.key(sessionID), data, s.ttl).Err(); err != nil {
		slog.Error("RedisStore.SaveSnapshot failed", "error", err, "session", sessionID)
		return fmt.Errorf("failed to save snapshot for %s: %w", sessionID, err)
	}
	slog.Debug("RedisStore.SaveSnapshot succeeded", "session", sessionID, "turn", snapshot.TurnNumber)
	return nil
}

// DeleteSnapshot removes the session's snapshot if present.
func (s *RedisStore) DeleteSnapshot(ctx context.Context, sessionID string) error {
	if err := s.client.Del(ctx, s.key(sessionID)).Err(); err != nil {
		slog.Error("RedisStore.DeleteSnapshot failed", "error", err, "session", sessionID)
		return fmt.Errorf("failed to delete snapshot for %s: %w", sessionID, err)
	}
	return nil
}

// Close closes the underlying Redis client.
func (s *RedisStore) Close() error {
	return s.client.Close()
}
