// Package controls implements ValueControl, the shared single-slot leaf
// control every built-in control (date, number, list, questionnaire
// questions) is built on. Its lifecycle: no value → elicit → value provided →
// validate → invalid (re-elicit) or valid → optional confirmation → done.
package controls

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"

	"github.com/BTreeMap/DialogKit/internal/models"
)

// Validator checks a proposed value. A nil return means the value passed;
// validators run in order and the first failure short-circuits.
type Validator func(value string) *models.ValidationFailure

// ValueConfig configures a ValueControl.
type ValueConfig struct {
	ID                   string
	Targets              []string // names the control answers to; the specific label is always included
	SpecificTargetLabel  string   // distinguishing name for disambiguation; defaults to the first target, then the id
	RequestPrompt        string   // elicitation question; a generic one is derived when empty
	ConfirmationRequired bool
	Validators           []Validator
	Canonicalize         func(string) string // optional value normalization applied before validation
}

// ValueControl manages one user-facing slot of data.
type ValueControl struct {
	cfg     ValueConfig
	targets []string
	label   string
	prompt  string
	state   ValueState
}

// NewValueControl creates a leaf control for a single value slot.
func NewValueControl(cfg ValueConfig) (*ValueControl, error) {
	if cfg.ID == "" {
		return nil, models.ErrEmptyControlID
	}
	label := cfg.SpecificTargetLabel
	if label == "" {
		if len(cfg.Targets) > 0 {
			label = cfg.Targets[0]
		} else {
			label = cfg.ID
		}
	}
	targets := make([]string, 0, len(cfg.Targets)+1)
	targets = append(targets, cfg.Targets...)
	if !models.MatchesTarget(label, targets) {
		targets = append(targets, label)
	}
	prompt := cfg.RequestPrompt
	if prompt == "" {
		prompt = fmt.Sprintf("What should the %s be?", label)
	}
	slog.Debug("ValueControl created", "id", cfg.ID, "label", label, "targets", targets, "confirmation", cfg.ConfirmationRequired)
	return &ValueControl{cfg: cfg, targets: targets, label: label, prompt: prompt}, nil
}

// ID returns the control's identifier.
func (v *ValueControl) ID() string { return v.cfg.ID }

// Children returns nil; value controls are leaves.
func (v *ValueControl) Children() []Control { return nil }

// Targets returns every name the control answers to.
func (v *ValueControl) Targets() []string { return v.targets }

// SpecificTargetLabel returns the control's distinguishing name.
func (v *ValueControl) SpecificTargetLabel() string { return v.label }

// Value returns the current value, empty when unset.
func (v *ValueControl) Value() string { return v.state.Value }

// IsSet reports whether a value has been received and not cleared.
func (v *ValueControl) IsSet() bool { return v.state.IsValueSet }

// IsConfirmed reports whether the current value was affirmed by the user.
func (v *ValueControl) IsConfirmed() bool { return v.state.IsConfirmed }

// valueHandler is one internal handler bound during selection.
type valueHandler func(ctx context.Context, input *models.ControlInput, result *ResultBuilder) error

// selectHandler picks the internal handler matching the input. It is a pure
// function of input and state: Handle re-runs it rather than relying on a
// value cached by CanHandle.
func (v *ValueControl) selectHandler(input *models.ControlInput) (valueHandler, bool) {
	switch {
	case v.matchesValueInput(input):
		return v.handleSetValue, true
	case v.matchesConfirmation(input):
		return v.handleConfirmation, true
	case v.matchesChangeRequest(input):
		return v.handleChangeRequest, true
	}
	return nil, false
}

func (v *ValueControl) targetMatches(target string) bool {
	return models.MatchesTarget(target, v.targets)
}

// matchesValueInput accepts a value addressed to this control by target, or a
// bare value while this control is mid-elicitation or awaiting confirmation.
func (v *ValueControl) matchesValueInput(input *models.ControlInput) bool {
	if !input.HasValue() {
		return false
	}
	if v.targetMatches(input.Target) {
		return true
	}
	return input.Target == "" && (v.state.ElicitationInProgress || v.state.ConfirmationPending)
}

// matchesConfirmation accepts affirm/disaffirm feedback while a confirmation
// is pending.
func (v *ValueControl) matchesConfirmation(input *models.ControlInput) bool {
	if !v.state.ConfirmationPending || input.Kind != models.InputKindIntent || input.HasValue() {
		return false
	}
	if input.Feedback != models.FeedbackAffirm && input.Feedback != models.FeedbackDisaffirm {
		return false
	}
	return input.Target == "" || v.targetMatches(input.Target)
}

// matchesChangeRequest accepts a general control intent naming this control's
// target without supplying a value ("change the start date").
func (v *ValueControl) matchesChangeRequest(input *models.ControlInput) bool {
	if !input.IsGeneralControlIntent() || input.HasValue() {
		return false
	}
	switch input.Action {
	case models.ActionNone, models.ActionSet, models.ActionChange:
	default:
		return false
	}
	return v.targetMatches(input.Target)
}

// CanHandle reports whether any internal handler matches the input.
func (v *ValueControl) CanHandle(ctx context.Context, input *models.ControlInput) (bool, error) {
	_, ok := v.selectHandler(input)
	slog.Debug("ValueControl.CanHandle", "id", v.cfg.ID, "can_handle", ok, "target", input.Target, "has_value", input.HasValue())
	return ok, nil
}

// Handle re-selects the matching handler and runs it.
func (v *ValueControl) Handle(ctx context.Context, input *models.ControlInput, result *ResultBuilder) error {
	handler, ok := v.selectHandler(input)
	if !ok {
		return fmt.Errorf("control %q: %w", v.cfg.ID, models.ErrHandleWithoutCanHandle)
	}
	return handler(ctx, input, result)
}

func (v *ValueControl) handleSetValue(ctx context.Context, input *models.ControlInput, result *ResultBuilder) error {
	value := strings.TrimSpace(input.Value)
	if v.cfg.Canonicalize != nil {
		value = v.cfg.Canonicalize(value)
	}
	if failure := v.validate(value); failure != nil {
		slog.Debug("ValueControl.handleSetValue: value rejected", "id", v.cfg.ID, "value", value, "reason", failure.Reason)
		v.state.ElicitationInProgress = true
		result.AddAct(NewInvalidValueAct(v.cfg.ID, value, failure.Message))
		result.AddAct(NewRequestReplacementAct(v.cfg.ID, v.prompt, failure.Reason))
		return nil
	}

	previous := v.state.Value
	wasSet := v.state.IsValueSet
	v.state.PreviousValue = previous
	v.state.Value = value
	v.state.IsValueSet = true
	// A new value always invalidates any earlier confirmation.
	v.state.IsConfirmed = false
	v.state.ConfirmationPending = false
	v.state.ElicitationInProgress = false

	if wasSet && previous != value {
		result.AddAct(NewValueChangedAct(v.cfg.ID, previous, value))
	} else {
		result.AddAct(NewValueSetAct(v.cfg.ID, value))
	}
	if v.cfg.ConfirmationRequired {
		v.state.ConfirmationPending = true
		result.AddAct(NewConfirmValueAct(v.cfg.ID, value))
	}
	slog.Debug("ValueControl.handleSetValue: value accepted", "id", v.cfg.ID, "value", value, "changed", wasSet && previous != value)
	return nil
}

func (v *ValueControl) handleConfirmation(ctx context.Context, input *models.ControlInput, result *ResultBuilder) error {
	value := v.state.Value
	v.state.ConfirmationPending = false
	if input.Feedback == models.FeedbackAffirm {
		v.state.IsConfirmed = true
		result.AddAct(NewConfirmationAcceptedAct(v.cfg.ID, value))
		slog.Debug("ValueControl.handleConfirmation: value affirmed", "id", v.cfg.ID, "value", value)
		return nil
	}
	v.state.PreviousValue = value
	v.state.Value = ""
	v.state.IsValueSet = false
	v.state.IsConfirmed = false
	v.state.ElicitationInProgress = true
	result.AddAct(NewConfirmationRejectedAct(v.cfg.ID, value))
	result.AddAct(NewRequestReplacementAct(v.cfg.ID, v.prompt, ""))
	slog.Debug("ValueControl.handleConfirmation: value disaffirmed", "id", v.cfg.ID, "value", value)
	return nil
}

func (v *ValueControl) handleChangeRequest(ctx context.Context, input *models.ControlInput, result *ResultBuilder) error {
	v.state.ElicitationInProgress = true
	result.AddAct(NewRequestValueAct(v.cfg.ID, v.prompt))
	slog.Debug("ValueControl.handleChangeRequest: elicitation started", "id", v.cfg.ID)
	return nil
}

func (v *ValueControl) validate(value string) *models.ValidationFailure {
	for _, validator := range v.cfg.Validators {
		if failure := validator(value); failure != nil {
			return failure
		}
	}
	return nil
}

// wantsInitiative reports whether the control has a question to ask. A
// pending confirmation blocks any initiative other than the yes/no question.
func (v *ValueControl) wantsInitiative() bool {
	if v.state.ConfirmationPending {
		return true
	}
	return !v.state.IsValueSet
}

// CanTakeInitiative reports whether the control wants to elicit or confirm.
func (v *ValueControl) CanTakeInitiative(ctx context.Context, input *models.ControlInput) (bool, error) {
	return v.wantsInitiative(), nil
}

// TakeInitiative asks the pending confirmation question, or elicits a value.
func (v *ValueControl) TakeInitiative(ctx context.Context, input *models.ControlInput, result *ResultBuilder) error {
	if !v.wantsInitiative() {
		return fmt.Errorf("control %q: %w", v.cfg.ID, models.ErrInitiativeWithoutCanTakeInitiative)
	}
	if v.state.ConfirmationPending {
		result.AddAct(NewConfirmValueAct(v.cfg.ID, v.state.Value))
		return nil
	}
	v.state.ElicitationInProgress = true
	result.AddAct(NewRequestValueAct(v.cfg.ID, v.prompt))
	return nil
}

// ReestablishState restores the control's state from the persisted snapshot.
func (v *ValueControl) ReestablishState(persisted json.RawMessage, statesByID map[string]json.RawMessage) error {
	if len(persisted) == 0 {
		v.state = ValueState{}
		return nil
	}
	if err := json.Unmarshal(persisted, &v.state); err != nil {
		return fmt.Errorf("control %q: unmarshal state failed: %w", v.cfg.ID, err)
	}
	return nil
}

// SerializeState returns the control's state as JSON.
func (v *ValueControl) SerializeState() (json.RawMessage, error) {
	data, err := json.Marshal(v.state)
	if err != nil {
		return nil, fmt.Errorf("control %q: marshal state failed: %w", v.cfg.ID, err)
	}
	return data, nil
}
