// Package controls implements the control tree lifecycle: trees are built
// fresh every turn from non-serializable configuration, then hydrated from
// the persisted snapshot. Build and hydrate are deliberately two separate
// steps so the static shape is constructed purely, with state applied
// afterwards.
package controls

import (
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/BTreeMap/DialogKit/internal/models"
)

// Walk visits root and every descendant depth-first in declaration order,
// stopping at the first error.
func Walk(root Control, fn func(Control) error) error {
	if err := fn(root); err != nil {
		return err
	}
	for _, child := range root.Children() {
		if err := Walk(child, fn); err != nil {
			return err
		}
	}
	return nil
}

// FindByID returns the control with the given id, or nil if absent.
func FindByID(root Control, id string) Control {
	var found Control
	_ = Walk(root, func(ctrl Control) error {
		if ctrl.ID() == id {
			found = ctrl
			return errStopWalk
		}
		return nil
	})
	return found
}

var errStopWalk = fmt.Errorf("stop walk")

// ValidateUniqueIDs checks that every control id in the tree is non-empty and
// unique, so lookups by id are unambiguous.
func ValidateUniqueIDs(root Control) error {
	seen := make(map[string]bool)
	return Walk(root, func(ctrl Control) error {
		id := ctrl.ID()
		if id == "" {
			return models.ErrEmptyControlID
		}
		if seen[id] {
			return fmt.Errorf("%w: %q", models.ErrDuplicateControlID, id)
		}
		seen[id] = true
		return nil
	})
}

// Hydrate applies a persisted snapshot to a freshly built tree. Dynamic
// children are reconstructed by their containers during reestablishment, so
// id uniqueness is validated both before (static shape) and after (full
// shape).
func Hydrate(root Control, states map[string]json.RawMessage) error {
	if err := ValidateUniqueIDs(root); err != nil {
		return err
	}
	if states == nil {
		states = map[string]json.RawMessage{}
	}
	if err := root.ReestablishState(states[root.ID()], states); err != nil {
		return err
	}
	if err := ValidateUniqueIDs(root); err != nil {
		return err
	}
	slog.Debug("Hydrate: tree state reestablished", "root", root.ID(), "persisted_controls", len(states))
	return nil
}

// Snapshot serializes the state of every control in the tree, keyed by
// control id, ready for persistence.
func Snapshot(root Control) (map[string]json.RawMessage, error) {
	states := make(map[string]json.RawMessage)
	err := Walk(root, func(ctrl Control) error {
		raw, err := ctrl.SerializeState()
		if err != nil {
			return err
		}
		states[ctrl.ID()] = raw
		return nil
	})
	if err != nil {
		return nil, err
	}
	slog.Debug("Snapshot: tree state serialized", "root", root.ID(), "controls", len(states))
	return states, nil
}
