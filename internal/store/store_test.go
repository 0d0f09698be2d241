package store

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/BTreeMap/DialogKit/internal/models"
)

func sampleSnapshot(turn int) models.SessionSnapshot {
	return models.SessionSnapshot{
		TurnNumber: turn,
		ControlStates: map[string]json.RawMessage{
			"root":  json.RawMessage(`{"last_handling":{"control_id":"start","turn_number":1}}`),
			"start": json.RawMessage(`{"value":"2026-09-01","is_value_set":true}`),
		},
		UpdatedAt: time.Now().UTC().Truncate(time.Second),
	}
}

// exerciseStore runs the snapshot contract against any backend.
func exerciseStore(t *testing.T, st SnapshotStore) {
	t.Helper()
	ctx := context.Background()

	loaded, err := st.LoadSnapshot(ctx, "missing")
	if err != nil {
		t.Fatalf("LoadSnapshot failed for a missing session: %v", err)
	}
	if loaded != nil {
		t.Fatalf("expected nil for a missing session, got %+v", loaded)
	}

	if err := st.SaveSnapshot(ctx, "s1", sampleSnapshot(1)); err != nil {
		t.Fatalf("SaveSnapshot failed: %v", err)
	}
	loaded, err = st.LoadSnapshot(ctx, "s1")
	if err != nil {
		t.Fatalf("LoadSnapshot failed: %v", err)
	}
	if loaded == nil || loaded.TurnNumber != 1 {
		t.Fatalf("expected snapshot at turn 1, got %+v", loaded)
	}
	if len(loaded.ControlStates) != 2 {
		t.Errorf("expected 2 control states, got %d", len(loaded.ControlStates))
	}
	var valueState struct {
		Value string `json:"value"`
	}
	if err := json.Unmarshal(loaded.ControlStates["start"], &valueState); err != nil {
		t.Fatalf("control state not valid JSON: %v", err)
	}
	if valueState.Value != "2026-09-01" {
		t.Errorf("expected control state round-tripped, got %q", valueState.Value)
	}

	// Saving again overwrites rather than duplicating.
	if err := st.SaveSnapshot(ctx, "s1", sampleSnapshot(2)); err != nil {
		t.Fatalf("second SaveSnapshot failed: %v", err)
	}
	loaded, err = st.LoadSnapshot(ctx, "s1")
	if err != nil {
		t.Fatalf("LoadSnapshot failed: %v", err)
	}
	if loaded == nil || loaded.TurnNumber != 2 {
		t.Fatalf("expected upserted snapshot at turn 2, got %+v", loaded)
	}

	if err := st.DeleteSnapshot(ctx, "s1"); err != nil {
		t.Fatalf("DeleteSnapshot failed: %v", err)
	}
	loaded, err = st.LoadSnapshot(ctx, "s1")
	if err != nil {
		t.Fatalf("LoadSnapshot failed after delete: %v", err)
	}
	if loaded != nil {
		t.Errorf("expected nil after delete, got %+v", loaded)
	}

	// Deleting a missing session is not an error.
	if err := st.DeleteSnapshot(ctx, "missing"); err != nil {
		t.Errorf("DeleteSnapshot of a missing session failed: %v", err)
	}
}

func TestInMemoryStore(t *testing.T) {
	exerciseStore(t, NewInMemoryStore())
}

func TestInMemoryStoreCopiesStates(t *testing.T) {
	ctx := context.Background()
	st := NewInMemoryStore()
	snapshot := sampleSnapshot(1)
	if err := st.SaveSnapshot(ctx, "s1", snapshot); err != nil {
		t.Fatalf("SaveSnapshot failed: %v", err)
	}

	// Mutating the caller's map must not affect the stored snapshot.
	snapshot.ControlStates["root"] = json.RawMessage(`{"corrupted":true}`)
	loaded, err := st.LoadSnapshot(ctx, "s1")
	if err != nil {
		t.Fatalf("LoadSnapshot failed: %v", err)
	}
	var state struct {
		Corrupted bool `json:"corrupted"`
	}
	if err := json.Unmarshal(loaded.ControlStates["root"], &state); err != nil {
		t.Fatalf("unmarshal failed: %v", err)
	}
	if state.Corrupted {
		t.Error("stored snapshot aliases the caller's map")
	}
}

func TestSQLiteStore(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "nested", "dialogkit.db")
	st, err := NewSQLiteStore(WithSQLiteDSN(dbPath))
	if err != nil {
		t.Fatalf("NewSQLiteStore failed: %v", err)
	}
	defer st.Close()

	exerciseStore(t, st)
}

func TestSQLiteStoreRequiresDSN(t *testing.T) {
	if _, err := NewSQLiteStore(); err == nil {
		t.Fatal("expected error without DSN")
	}
}

func TestSQLiteStorePersistsAcrossReopen(t *testing.T) {
	ctx := context.Background()
	dbPath := filepath.Join(t.TempDir(), "dialogkit.db")

	st, err := NewSQLiteStore(WithSQLiteDSN(dbPath))
	if err != nil {
		t.Fatalf("NewSQLiteStore failed: %v", err)
	}
	if err := st.SaveSnapshot(ctx, "s1", sampleSnapshot(3)); err != nil {
		t.Fatalf("SaveSnapshot failed: %v", err)
	}
	if err := st.Close(); err != nil {
		t.Fatalf("Close failed: %v", err)
	}

	st, err = NewSQLiteStore(WithSQLiteDSN(dbPath))
	if err != nil {
		t.Fatalf("reopening store failed: %v", err)
	}
	defer st.Close()
	loaded, err := st.LoadSnapshot(ctx, "s1")
	if err != nil {
		t.Fatalf("LoadSnapshot failed: %v", err)
	}
	if loaded == nil || loaded.TurnNumber != 3 {
		t.Fatalf("expected snapshot to survive reopen, got %+v", loaded)
	}
}

func TestPostgresStore(t *testing.T) {
	dsn := os.Getenv("DIALOGKIT_TEST_POSTGRES_DSN")
	if dsn == "" {
		t.Skip("DIALOGKIT_TEST_POSTGRES_DSN not set; skipping Postgres store test")
	}
	st, err := NewPostgresStore(WithPostgresDSN(dsn))
	if err != nil {
		t.Fatalf("NewPostgresStore failed: %v", err)
	}
	defer st.Close()

	exerciseStore(t, st)
}

func TestPostgresStoreRequiresDSN(t *testing.T) {
	if _, err := NewPostgresStore(); err == nil {
		t.Fatal("expected error without DSN")
	}
}
