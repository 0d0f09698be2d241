// Package session orchestrates one conversational turn end to end: load the
// persisted snapshot, rebuild and hydrate the control tree, run the handling
// and initiative phases, render the resulting acts, and persist the new
// snapshot. A failed turn persists nothing.
//
// The session layer assumes at-most-one-turn-in-flight per conversation;
// callers serialize turns for the same session id.
package session

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/BTreeMap/DialogKit/internal/controls"
	"github.com/BTreeMap/DialogKit/internal/models"
	"github.com/BTreeMap/DialogKit/internal/render"
	"github.com/BTreeMap/DialogKit/internal/store"
)

// TreeBuilder constructs the static shape of the control tree, with no state
// applied. It runs once per turn; hydration happens separately.
type TreeBuilder func() (controls.Control, error)

// Manager processes turns against a snapshot store.
type Manager struct {
	store     store.SnapshotStore
	buildTree TreeBuilder
	renderer  *render.Renderer
}

// NewManager creates a session manager for the given store and tree builder.
func NewManager(st store.SnapshotStore, buildTree TreeBuilder) *Manager {
	slog.Debug("Creating session Manager")
	return &Manager{store: st, buildTree: buildTree, renderer: render.NewRenderer()}
}

// HandleTurn processes one turn for the session and returns the rendered
// response. The turn number is assigned here: one past the persisted turn,
// starting at 1 for a fresh session.
func (m *Manager) HandleTurn(ctx context.Context, sessionID string, input models.ControlInput) (*models.TurnResponse, error) {
	snapshot, err := m.store.LoadSnapshot(ctx, sessionID)
	if err != nil {
		slog.Error("Manager.HandleTurn: loading snapshot failed", "error", err, "session", sessionID)
		return nil, fmt.Errorf("loading snapshot for session %s: %w", sessionID, err)
	}

	turn := 1
	var states map[string]json.RawMessage
	if snapshot != nil {
		turn = snapshot.TurnNumber + 1
		states = snapshot.ControlStates
	}
	input.SessionID = sessionID
	input.TurnNumber = turn
	if err := input.Validate(); err != nil {
		slog.Warn("Manager.HandleTurn: input rejected", "error", err, "session", sessionID, "turn", turn)
		return nil, err
	}
	slog.Debug("Manager.HandleTurn: turn started", "session", sessionID, "turn", turn, "kind", input.Kind, "intent", input.Intent)

	root, err := m.buildTree()
	if err != nil {
		return nil, fmt.Errorf("building control tree: %w", err)
	}
	if err := controls.Hydrate(root, states); err != nil {
		return nil, fmt.Errorf("hydrating control tree for session %s: %w", sessionID, err)
	}

	result := controls.NewResultBuilder()
	canHandle, err := root.CanHandle(ctx, &input)
	if err != nil {
		return nil, err
	}
	if canHandle {
		if err := root.Handle(ctx, &input, result); err != nil {
			return nil, err
		}
	} else if input.Kind != models.InputKindLaunch {
		// A launch carries no utterance, so there is nothing to not-understand;
		// the initiative phase below opens the conversation.
		slog.Debug("Manager.HandleTurn: no control handled the input", "session", sessionID, "turn", turn)
		result.AddAct(controls.NewNonUnderstandingAct(root.ID()))
	}

	if !result.SessionEnded() && !result.HasInitiativeAct() {
		canTake, err := root.CanTakeInitiative(ctx, &input)
		if err != nil {
			return nil, err
		}
		if canTake {
			if err := root.TakeInitiative(ctx, &input, result); err != nil {
				return nil, err
			}
		}
	}

	if n := result.InitiativeActCount(); n > 1 {
		return nil, fmt.Errorf("session %s turn %d: %w (%d)", sessionID, turn, models.ErrMultipleInitiativeActs, n)
	}
	if !result.HasInitiativeAct() && !result.SessionEnded() {
		// Nothing left to ask: the dialogue is complete.
		result.EndSession()
	}

	builder := render.NewResponseBuilder()
	if err := m.renderer.Render(result.Acts(), builder); err != nil {
		return nil, err
	}

	newStates, err := controls.Snapshot(root)
	if err != nil {
		return nil, err
	}
	if err := m.store.SaveSnapshot(ctx, sessionID, models.SessionSnapshot{
		TurnNumber:    turn,
		ControlStates: newStates,
		UpdatedAt:     time.Now(),
	}); err != nil {
		slog.Error("Manager.HandleTurn: saving snapshot failed", "error", err, "session", sessionID, "turn", turn)
		return nil, fmt.Errorf("saving snapshot for session %s: %w", sessionID, err)
	}

	response := &models.TurnResponse{
		SessionID:    sessionID,
		TurnNumber:   turn,
		Prompt:       builder.Prompt(),
		Reprompt:     builder.Reprompt(),
		Directives:   builder.Directives(),
		SessionEnded: result.SessionEnded(),
	}
	slog.Debug("Manager.HandleTurn: turn completed", "session", sessionID, "turn", turn, "acts", len(result.Acts()), "ended", response.SessionEnded)
	return response, nil
}
