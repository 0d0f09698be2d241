package controls

import (
	"context"
	"errors"
	"reflect"
	"testing"

	"github.com/BTreeMap/DialogKit/internal/models"
)

func newTestTree(t *testing.T) *ContainerControl {
	t.Helper()
	start := newTestDateControl(t, "start", "start date")
	end := newTestDateControl(t, "end", "end date")
	inner, err := NewContainerControl(ContainerConfig{ID: "dates"}, start, end)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	travelers, err := NewNumberControl(NumberConfig{ID: "travelers", Targets: []string{"travelers"}})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	root, err := NewContainerControl(ContainerConfig{ID: "root"}, inner, travelers)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	return root
}

func TestWalkVisitsDepthFirstInDeclarationOrder(t *testing.T) {
	root := newTestTree(t)
	var visited []string
	err := Walk(root, func(ctrl Control) error {
		visited = append(visited, ctrl.ID())
		return nil
	})
	if err != nil {
		t.Fatalf("walk error: %v", err)
	}
	want := []string{"root", "dates", "start", "end", "travelers"}
	if !reflect.DeepEqual(visited, want) {
		t.Errorf("expected visit order %v, got %v", want, visited)
	}
}

func TestFindByID(t *testing.T) {
	root := newTestTree(t)
	if got := FindByID(root, "end"); got == nil || got.ID() != "end" {
		t.Errorf("expected to find end, got %v", got)
	}
	if got := FindByID(root, "missing"); got != nil {
		t.Errorf("expected nil for an absent id, got %v", got)
	}
}

func TestValidateUniqueIDsRejectsDuplicates(t *testing.T) {
	first := newTestDateControl(t, "same", "first")
	second := newTestDateControl(t, "same", "second")
	root, err := NewContainerControl(ContainerConfig{ID: "root"}, first, second)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := ValidateUniqueIDs(root); !errors.Is(err, models.ErrDuplicateControlID) {
		t.Fatalf("expected ErrDuplicateControlID, got %v", err)
	}
}

func TestHydrateRejectsDuplicateIDs(t *testing.T) {
	first := newTestDateControl(t, "same", "first")
	second := newTestDateControl(t, "same", "second")
	root, err := NewContainerControl(ContainerConfig{ID: "root"}, first, second)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := Hydrate(root, nil); !errors.Is(err, models.ErrDuplicateControlID) {
		t.Fatalf("expected ErrDuplicateControlID, got %v", err)
	}
}

func TestSnapshotHydrateRoundTrip(t *testing.T) {
	ctx := context.Background()
	root := newTestTree(t)
	if err := root.Handle(ctx, valueInput(1, "start date", "2026-09-01"), NewResultBuilder()); err != nil {
		t.Fatalf("handle error: %v", err)
	}
	states, err := Snapshot(root)
	if err != nil {
		t.Fatalf("snapshot error: %v", err)
	}
	for _, id := range []string{"root", "dates", "start", "end", "travelers"} {
		if _, ok := states[id]; !ok {
			t.Errorf("expected snapshot entry for %s", id)
		}
	}

	fresh := newTestTree(t)
	if err := Hydrate(fresh, states); err != nil {
		t.Fatalf("hydrate error: %v", err)
	}
	start := FindByID(fresh, "start").(*ValueControl)
	if !start.IsSet() || start.Value() != "2026-09-01" {
		t.Errorf("expected start rehydrated, got %q (set=%v)", start.Value(), start.IsSet())
	}
	dates := FindByID(fresh, "dates").(*ContainerControl)
	if rec := dates.State().LastHandling; rec == nil || rec.ControlID != "start" {
		t.Errorf("expected inner container recency rehydrated, got %+v", rec)
	}
}

func TestHydrateWithNilStatesResets(t *testing.T) {
	root := newTestTree(t)
	start := FindByID(root, "start").(*ValueControl)
	start.state.Value = "leftover"
	start.state.IsValueSet = true

	if err := Hydrate(root, nil); err != nil {
		t.Fatalf("hydrate error: %v", err)
	}
	if start.IsSet() {
		t.Error("expected hydration with no snapshot to reset state")
	}
}
