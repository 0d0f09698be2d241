package controls

import (
	"context"
	"encoding/json"
	"errors"
	"reflect"
	"testing"

	"github.com/BTreeMap/DialogKit/internal/models"
)

func newTestDateControl(t *testing.T, id, label string) *ValueControl {
	t.Helper()
	ctrl, err := NewDateControl(DateConfig{
		ID:                  id,
		Targets:             []string{"date"},
		SpecificTargetLabel: label,
	})
	if err != nil {
		t.Fatalf("creating date control %s: %v", id, err)
	}
	return ctrl
}

func generalControlInput(turn int, action models.ActionKind, target string) *models.ControlInput {
	return &models.ControlInput{
		TurnNumber: turn,
		Kind:       models.InputKindIntent,
		Intent:     models.IntentGeneralControl,
		Action:     action,
		Target:     target,
	}
}

func valueInput(turn int, target, value string) *models.ControlInput {
	return &models.ControlInput{
		TurnNumber: turn,
		Kind:       models.InputKindIntent,
		Intent:     models.IntentValue,
		Target:     target,
		Value:      value,
	}
}

func TestContainerRaisesDisambiguationForSharedTarget(t *testing.T) {
	ctx := context.Background()
	start := newTestDateControl(t, "start", "start date")
	end := newTestDateControl(t, "end", "end date")
	container, err := NewContainerControl(ContainerConfig{ID: "root"}, start, end)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	input := generalControlInput(1, models.ActionChange, "date")
	ok, err := container.CanHandle(ctx, input)
	if err != nil {
		t.Fatalf("canHandle error: %v", err)
	}
	if !ok {
		t.Fatal("expected container to handle ambiguous input")
	}

	result := NewResultBuilder()
	if err := container.Handle(ctx, input, result); err != nil {
		t.Fatalf("handle error: %v", err)
	}
	acts := result.Acts()
	if len(acts) != 1 {
		t.Fatalf("expected 1 act, got %d", len(acts))
	}
	act, ok := acts[0].(DisambiguateTargetAct)
	if !ok {
		t.Fatalf("expected DisambiguateTargetAct, got %T", acts[0])
	}
	wantLabels := []string{"start date", "end date"}
	if !reflect.DeepEqual(act.Labels, wantLabels) {
		t.Errorf("expected labels %v, got %v", wantLabels, act.Labels)
	}
	if !act.Initiative() {
		t.Error("disambiguation question must be an initiative act")
	}
	q := container.State().OpenDisambiguation
	if q == nil {
		t.Fatal("expected disambiguation question persisted in container state")
	}
	if len(q.Candidates) != 2 || q.Candidates[0].ControlID != "start" || q.Candidates[1].ControlID != "end" {
		t.Errorf("unexpected candidates: %+v", q.Candidates)
	}
}

func TestContainerDisambiguationReplyDispatchesDirectly(t *testing.T) {
	ctx := context.Background()
	start := newTestDateControl(t, "start", "start date")
	end := newTestDateControl(t, "end", "end date")
	container, err := NewContainerControl(ContainerConfig{ID: "root"}, start, end)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	// Turn 1: ambiguous input raises the question.
	result := NewResultBuilder()
	if err := container.Handle(ctx, generalControlInput(1, models.ActionChange, "date"), result); err != nil {
		t.Fatalf("turn 1 handle error: %v", err)
	}

	// Turn 2: the reply names the start date.
	reply := valueInput(2, "", "the start date")
	result = NewResultBuilder()
	if err := container.Handle(ctx, reply, result); err != nil {
		t.Fatalf("turn 2 handle error: %v", err)
	}
	acts := result.Acts()
	if len(acts) != 1 {
		t.Fatalf("expected 1 act, got %d", len(acts))
	}
	request, ok := acts[0].(RequestValueAct)
	if !ok {
		t.Fatalf("expected RequestValueAct from start control, got %T", acts[0])
	}
	if request.ControlID() != "start" {
		t.Errorf("expected act from control start, got %s", request.ControlID())
	}
	if container.State().OpenDisambiguation != nil {
		t.Error("expected disambiguation question cleared after resolution")
	}
	if rec := container.State().LastHandling; rec == nil || rec.ControlID != "start" {
		t.Errorf("expected lastHandling record for start, got %+v", rec)
	}
}

func TestContainerThreeWayDisambiguationOffersAllLabels(t *testing.T) {
	ctx := context.Background()
	a := newTestDateControl(t, "a", "A")
	b := newTestDateControl(t, "b", "B")
	c := newTestDateControl(t, "c", "C")
	container, err := NewContainerControl(ContainerConfig{ID: "root"}, a, b, c)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	result := NewResultBuilder()
	if err := container.Handle(ctx, generalControlInput(1, models.ActionChange, "date"), result); err != nil {
		t.Fatalf("handle error: %v", err)
	}
	act, ok := result.Acts()[0].(DisambiguateTargetAct)
	if !ok {
		t.Fatalf("expected DisambiguateTargetAct, got %T", result.Acts()[0])
	}
	if !reflect.DeepEqual(act.Labels, []string{"A", "B", "C"}) {
		t.Errorf("unexpected labels: %v", act.Labels)
	}

	// A reply selecting B dispatches to b without re-gathering.
	result = NewResultBuilder()
	if err := container.Handle(ctx, valueInput(2, "", "B"), result); err != nil {
		t.Fatalf("reply handle error: %v", err)
	}
	if got := result.Acts()[0].ControlID(); got != "b" {
		t.Errorf("expected dispatch to b, got %s", got)
	}
}

func TestContainerDisambiguationReplyWithOverlappingLabels(t *testing.T) {
	ctx := context.Background()

	tests := []struct {
		name   string
		reply  string
		wantID string
	}{
		{name: "exact longer label", reply: "start date", wantID: "start"},
		{name: "exact shorter label", reply: "date", wantID: "plain"},
		{name: "longer label contained", reply: "the start date", wantID: "start"},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			// "date" is a substring of "start date"; both are offered labels.
			plain := newTestDateControl(t, "plain", "date")
			start := newTestDateControl(t, "start", "start date")
			container, err := NewContainerControl(ContainerConfig{ID: "root"}, plain, start)
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			result := NewResultBuilder()
			if err := container.Handle(ctx, generalControlInput(1, models.ActionChange, "date"), result); err != nil {
				t.Fatalf("turn 1 handle error: %v", err)
			}
			if _, ok := result.Acts()[0].(DisambiguateTargetAct); !ok {
				t.Fatalf("expected DisambiguateTargetAct, got %T", result.Acts()[0])
			}

			result = NewResultBuilder()
			if err := container.Handle(ctx, valueInput(2, "", tc.reply), result); err != nil {
				t.Fatalf("reply handle error: %v", err)
			}
			if got := result.Acts()[0].ControlID(); got != tc.wantID {
				t.Errorf("reply %q resolved to %s, want %s", tc.reply, got, tc.wantID)
			}
		})
	}
}

func TestContainerUnmatchedDisambiguationReplyReArbitrates(t *testing.T) {
	ctx := context.Background()
	start := newTestDateControl(t, "start", "start date")
	end := newTestDateControl(t, "end", "end date")
	container, err := NewContainerControl(ContainerConfig{ID: "root"}, start, end)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	result := NewResultBuilder()
	if err := container.Handle(ctx, generalControlInput(1, models.ActionChange, "date"), result); err != nil {
		t.Fatalf("handle error: %v", err)
	}

	// The reply is unrelated: a fresh value for a named target.
	reply := valueInput(2, "date", "2026-09-01")
	result = NewResultBuilder()
	if err := container.Handle(ctx, reply, result); err != nil {
		t.Fatalf("reply handle error: %v", err)
	}
	if container.State().OpenDisambiguation != nil {
		t.Error("expected abandoned disambiguation question to be cleared")
	}
	if len(result.Acts()) == 0 {
		t.Fatal("expected the input to be handled by normal arbitration")
	}
	if got := result.Acts()[0].ControlID(); got != "start" {
		t.Errorf("expected first-declared candidate start to win, got %s", got)
	}
}

func TestContainerDuplicateTargetLabelIsConfigurationFault(t *testing.T) {
	ctx := context.Background()
	first := newTestDateControl(t, "first", "the date")
	second := newTestDateControl(t, "second", "the date")
	container, err := NewContainerControl(ContainerConfig{ID: "root"}, first, second)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	_, err = container.CanHandle(ctx, generalControlInput(1, models.ActionChange, "date"))
	if !errors.Is(err, models.ErrDuplicateTargetLabel) {
		t.Fatalf("expected ErrDuplicateTargetLabel, got %v", err)
	}
}

func TestContainerRecencyTieBreak(t *testing.T) {
	ctx := context.Background()
	start := newTestDateControl(t, "start", "start date")
	end := newTestDateControl(t, "end", "end date")
	container, err := NewContainerControl(ContainerConfig{ID: "root"}, start, end)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	// Both children are mid-elicitation, so both can handle a bare value.
	start.state.ElicitationInProgress = true
	end.state.ElicitationInProgress = true
	container.State().LastInitiative = &ChildActivityRecord{ControlID: "end", TurnNumber: 1}

	result := NewResultBuilder()
	if err := container.Handle(ctx, valueInput(2, "", "2026-09-01"), result); err != nil {
		t.Fatalf("handle error: %v", err)
	}
	if got := result.Acts()[0].ControlID(); got != "end" {
		t.Errorf("expected most-recent-initiative child end to win, got %s", got)
	}
}

func TestContainerFirstMatchStrategyIgnoresRecency(t *testing.T) {
	ctx := context.Background()
	start := newTestDateControl(t, "start", "start date")
	end := newTestDateControl(t, "end", "end date")
	container, err := NewContainerControl(ContainerConfig{ID: "root", Strategy: StrategyFirstMatch}, start, end)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	start.state.ElicitationInProgress = true
	end.state.ElicitationInProgress = true
	container.State().LastInitiative = &ChildActivityRecord{ControlID: "end", TurnNumber: 1}

	result := NewResultBuilder()
	if err := container.Handle(ctx, valueInput(2, "", "2026-09-01"), result); err != nil {
		t.Fatalf("handle error: %v", err)
	}
	if got := result.Acts()[0].ControlID(); got != "start" {
		t.Errorf("expected first-declared child start to win, got %s", got)
	}
}

// stubControl is a minimal leaf that handles any input, used to exercise
// arbitration paths the built-in controls never reach (like fallback input).
type stubControl struct {
	id      string
	handled []*models.ControlInput
}

func (s *stubControl) ID() string          { return s.id }
func (s *stubControl) Children() []Control { return nil }
func (s *stubControl) CanHandle(ctx context.Context, input *models.ControlInput) (bool, error) {
	return true, nil
}
func (s *stubControl) Handle(ctx context.Context, input *models.ControlInput, result *ResultBuilder) error {
	s.handled = append(s.handled, input)
	result.AddAct(NewValueSetAct(s.id, "stub"))
	return nil
}
func (s *stubControl) CanTakeInitiative(ctx context.Context, input *models.ControlInput) (bool, error) {
	return false, nil
}
func (s *stubControl) TakeInitiative(ctx context.Context, input *models.ControlInput, result *ResultBuilder) error {
	return models.ErrInitiativeWithoutCanTakeInitiative
}
func (s *stubControl) ReestablishState(persisted json.RawMessage, statesByID map[string]json.RawMessage) error {
	return nil
}
func (s *stubControl) SerializeState() (json.RawMessage, error) {
	return json.RawMessage(`{}`), nil
}

func TestContainerFallbackRestrictedToLastInitiativeChild(t *testing.T) {
	ctx := context.Background()
	first := &stubControl{id: "first"}
	second := &stubControl{id: "second"}
	container, err := NewContainerControl(ContainerConfig{ID: "root"}, first, second)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	fallback := &models.ControlInput{TurnNumber: 2, Kind: models.InputKindFallback}

	// No initiative record: the container does not handle fallback input even
	// though both children are willing.
	ok, err := container.CanHandle(ctx, fallback)
	if err != nil {
		t.Fatalf("canHandle error: %v", err)
	}
	if ok {
		t.Error("expected canHandle=false for fallback with no initiative record")
	}

	// A stale record pointing at a removed child: still no winner.
	container.State().LastInitiative = &ChildActivityRecord{ControlID: "gone", TurnNumber: 1}
	ok, err = container.CanHandle(ctx, fallback)
	if err != nil {
		t.Fatalf("canHandle error: %v", err)
	}
	if ok {
		t.Error("expected canHandle=false when the recorded child is not a candidate")
	}

	// A live record: fallback routes to that child and no other.
	container.State().LastInitiative = &ChildActivityRecord{ControlID: "second", TurnNumber: 1}
	result := NewResultBuilder()
	if err := container.Handle(ctx, fallback, result); err != nil {
		t.Fatalf("handle error: %v", err)
	}
	if len(second.handled) != 1 {
		t.Errorf("expected second to handle the fallback, handled %d inputs", len(second.handled))
	}
	if len(first.handled) != 0 {
		t.Errorf("expected first untouched, handled %d inputs", len(first.handled))
	}
}

func TestContainerDeterministicArbitration(t *testing.T) {
	ctx := context.Background()
	input := generalControlInput(1, models.ActionChange, "date")

	run := func() []SystemAct {
		start := newTestDateControl(t, "start", "start date")
		end := newTestDateControl(t, "end", "end date")
		container, err := NewContainerControl(ContainerConfig{ID: "root"}, start, end)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		result := NewResultBuilder()
		if err := container.Handle(ctx, input, result); err != nil {
			t.Fatalf("handle error: %v", err)
		}
		return result.Acts()
	}

	first := run()
	second := run()
	if !reflect.DeepEqual(first, second) {
		t.Errorf("arbitration is not deterministic: %v vs %v", first, second)
	}
}

func TestContainerHandleWithoutCanHandleFails(t *testing.T) {
	ctx := context.Background()
	start := newTestDateControl(t, "start", "start date")
	container, err := NewContainerControl(ContainerConfig{ID: "root"}, start)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	// No child matches a launch input.
	launch := &models.ControlInput{TurnNumber: 1, Kind: models.InputKindLaunch}
	err = container.Handle(ctx, launch, NewResultBuilder())
	if !errors.Is(err, models.ErrHandleWithoutCanHandle) {
		t.Fatalf("expected ErrHandleWithoutCanHandle, got %v", err)
	}
}

func TestContainerInitiativePrefersLastHandlingChild(t *testing.T) {
	ctx := context.Background()
	start := newTestDateControl(t, "start", "start date")
	end := newTestDateControl(t, "end", "end date")
	container, err := NewContainerControl(ContainerConfig{ID: "root"}, start, end)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	// Both children want initiative (no value yet); end handled input last.
	container.State().LastHandling = &ChildActivityRecord{ControlID: "end", TurnNumber: 1}
	container.State().LastInitiative = &ChildActivityRecord{ControlID: "start", TurnNumber: 1}

	input := &models.ControlInput{TurnNumber: 2, Kind: models.InputKindLaunch}
	ok, err := container.CanTakeInitiative(ctx, input)
	if err != nil {
		t.Fatalf("canTakeInitiative error: %v", err)
	}
	if !ok {
		t.Fatal("expected container to want initiative")
	}
	result := NewResultBuilder()
	if err := container.TakeInitiative(ctx, input, result); err != nil {
		t.Fatalf("takeInitiative error: %v", err)
	}
	if got := result.Acts()[0].ControlID(); got != "end" {
		t.Errorf("expected lastHandling child end to take initiative, got %s", got)
	}
	if rec := container.State().LastInitiative; rec == nil || rec.ControlID != "end" || rec.TurnNumber != 2 {
		t.Errorf("expected lastInitiative updated to end on turn 2, got %+v", rec)
	}
}

func TestContainerRecordsHandlingAndInitiative(t *testing.T) {
	ctx := context.Background()
	start := newTestDateControl(t, "start", "start date")
	container, err := NewContainerControl(ContainerConfig{ID: "root"}, start)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	// A change request produces an initiative act (the elicitation question),
	// so both records point at the handling child.
	result := NewResultBuilder()
	if err := container.Handle(ctx, generalControlInput(3, models.ActionChange, "start date"), result); err != nil {
		t.Fatalf("handle error: %v", err)
	}
	if rec := container.State().LastHandling; rec == nil || rec.ControlID != "start" || rec.TurnNumber != 3 {
		t.Errorf("unexpected lastHandling record: %+v", rec)
	}
	if rec := container.State().LastInitiative; rec == nil || rec.ControlID != "start" || rec.TurnNumber != 3 {
		t.Errorf("unexpected lastInitiative record: %+v", rec)
	}
}

func TestContainerStateIsolationBetweenSiblings(t *testing.T) {
	ctx := context.Background()
	start := newTestDateControl(t, "start", "start date")
	end := newTestDateControl(t, "end", "end date")
	container, err := NewContainerControl(ContainerConfig{ID: "root"}, start, end)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	result := NewResultBuilder()
	if err := container.Handle(ctx, valueInput(1, "start date", "2026-09-01"), result); err != nil {
		t.Fatalf("handle error: %v", err)
	}
	if !start.IsSet() || start.Value() != "2026-09-01" {
		t.Errorf("expected start to hold the value, got %q (set=%v)", start.Value(), start.IsSet())
	}
	if end.IsSet() || end.Value() != "" {
		t.Errorf("sibling state mutated: end value %q (set=%v)", end.Value(), end.IsSet())
	}
}
