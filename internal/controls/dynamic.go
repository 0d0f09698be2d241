// Package controls implements the dynamic container: a container whose
// children can be added and removed at runtime. Because live controls do not
// survive a turn boundary, each dynamic child is recorded as a minimal
// serializable specification that is replayed through an author-supplied
// factory at the start of every subsequent turn.
package controls

import (
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/BTreeMap/DialogKit/internal/models"
)

// DynamicChildFactory reconstructs a dynamically added child from its
// specification. The returned control's id must equal the specification's id.
type DynamicChildFactory func(spec DynamicChildSpec) (Control, error)

// DynamicContainerControl is a ContainerControl that supports runtime
// children.
type DynamicContainerControl struct {
	ContainerControl
	factory DynamicChildFactory
}

// NewDynamicContainerControl creates a dynamic container with the given
// static children and child factory.
func NewDynamicContainerControl(cfg ContainerConfig, factory DynamicChildFactory, children ...Control) (*DynamicContainerControl, error) {
	if factory == nil {
		return nil, fmt.Errorf("dynamic container %q requires a child factory", cfg.ID)
	}
	base, err := NewContainerControl(cfg, children...)
	if err != nil {
		return nil, err
	}
	return &DynamicContainerControl{ContainerControl: *base, factory: factory}, nil
}

// AddDynamicChild constructs a child from the specification, appends it to
// the container, and records the specification for replay on later turns.
// Duplicate ids are rejected at the point of addition.
func (c *DynamicContainerControl) AddDynamicChild(spec DynamicChildSpec) (Control, error) {
	if spec.ID == "" {
		return nil, fmt.Errorf("dynamic container %q: %w", c.id, models.ErrEmptyControlID)
	}
	if c.childByID(spec.ID) != nil {
		return nil, fmt.Errorf("dynamic container %q: %w: %q", c.id, models.ErrDuplicateControlID, spec.ID)
	}
	child, err := c.buildDynamicChild(spec)
	if err != nil {
		return nil, err
	}
	c.children = append(c.children, child)
	c.state.DynamicChildren = append(c.state.DynamicChildren, spec)
	slog.Debug("DynamicContainerControl.AddDynamicChild: child added", "id", c.id, "child", spec.ID, "kind", spec.Kind)
	return child, nil
}

// RemoveDynamicChild removes a dynamically added child and its specification.
// Recency records referencing the removed child are left in place; arbitration
// treats them as stale and skips them.
func (c *DynamicContainerControl) RemoveDynamicChild(id string) error {
	specIndex := -1
	for i, spec := range c.state.DynamicChildren {
		if spec.ID == id {
			specIndex = i
			break
		}
	}
	if specIndex < 0 {
		return fmt.Errorf("dynamic container %q: no dynamic child %q", c.id, id)
	}
	c.state.DynamicChildren = append(c.state.DynamicChildren[:specIndex], c.state.DynamicChildren[specIndex+1:]...)
	for i, child := range c.children {
		if child.ID() == id {
			c.children = append(c.children[:i], c.children[i+1:]...)
			break
		}
	}
	slog.Debug("DynamicContainerControl.RemoveDynamicChild: child removed", "id", c.id, "child", id)
	return nil
}

// ReestablishState restores the container's own state, replays the persisted
// dynamic child specifications in order to reconstruct missing children, and
// then recurses into all children (static and dynamic) uniformly.
func (c *DynamicContainerControl) ReestablishState(persisted json.RawMessage, statesByID map[string]json.RawMessage) error {
	if err := c.restoreOwnState(persisted); err != nil {
		return err
	}
	for _, spec := range c.state.DynamicChildren {
		if c.childByID(spec.ID) != nil {
			continue
		}
		child, err := c.buildDynamicChild(spec)
		if err != nil {
			// The turn cannot proceed without the child existing to
			// receive its state.
			return err
		}
		c.children = append(c.children, child)
		slog.Debug("DynamicContainerControl.ReestablishState: dynamic child reconstructed", "id", c.id, "child", spec.ID, "kind", spec.Kind)
	}
	return c.reestablishChildren(statesByID)
}

func (c *DynamicContainerControl) buildDynamicChild(spec DynamicChildSpec) (Control, error) {
	child, err := c.factory(spec)
	if err != nil {
		return nil, fmt.Errorf("dynamic container %q: building child %q (kind %q) failed: %w", c.id, spec.ID, spec.Kind, err)
	}
	if child.ID() != spec.ID {
		return nil, fmt.Errorf("dynamic container %q: factory returned control %q for specification %q", c.id, child.ID(), spec.ID)
	}
	return child, nil
}
