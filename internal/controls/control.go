// Package controls implements the control-tree dialogue core for DialogKit.
//
// A control is a stateful unit of dialogue behavior arranged in a tree. Each
// turn the tree is rebuilt fresh, hydrated from a persisted snapshot, polled
// for a single handling control and a single initiative-taking control, and
// serialized back out. Containers arbitrate among their children; leaves own
// one user-facing slot of data each.
package controls

import (
	"context"
	"encoding/json"

	"github.com/BTreeMap/DialogKit/internal/models"
)

// Control is the polymorphic contract every dialogue component implements.
//
// CanHandle and CanTakeInitiative are pure predicates: they must not mutate
// state and must be safe to call multiple times per turn. Handle and
// TakeInitiative mutate only the receiving control's own state and append
// acts to the shared result builder. Calling Handle without a matching
// CanHandle fails with models.ErrHandleWithoutCanHandle; same for the
// initiative pair.
type Control interface {
	// ID returns the control's identifier, unique within the tree and
	// stable across turns. It is the persistence key for state.
	ID() string

	// Children returns the control's owned children in declaration order,
	// or nil for leaves. Children never reference their parent.
	Children() []Control

	// CanHandle reports whether this control can process the input.
	CanHandle(ctx context.Context, input *models.ControlInput) (bool, error)

	// Handle processes the input, mutating this control's state and
	// appending zero or more acts to result.
	Handle(ctx context.Context, input *models.ControlInput, result *ResultBuilder) error

	// CanTakeInitiative reports whether this control wants to drive the
	// conversation forward this turn.
	CanTakeInitiative(ctx context.Context, input *models.ControlInput) (bool, error)

	// TakeInitiative emits the control's initiative act (a question or a
	// confirmation request).
	TakeInitiative(ctx context.Context, input *models.ControlInput, result *ResultBuilder) error

	// ReestablishState restores this control's state from the persisted
	// snapshot and recursively reestablishes children. A nil or empty
	// persisted value leaves the control at defaults. statesByID is the
	// full snapshot, keyed by control id, for recursing into children.
	ReestablishState(persisted json.RawMessage, statesByID map[string]json.RawMessage) error

	// SerializeState returns the control's state as JSON for persistence.
	SerializeState() (json.RawMessage, error)
}

// TargetedControl is implemented by controls that can be addressed by name.
// Targets lists every name the control answers to; SpecificTargetLabel is the
// distinguishing name used in disambiguation questions and must be unique
// among simultaneously eligible siblings.
type TargetedControl interface {
	Control
	Targets() []string
	SpecificTargetLabel() string
}
