// Package models defines the parsed input record consumed by control trees.
//
// Natural-language understanding happens outside DialogKit; by the time an
// input reaches a control tree it is already classified into an intent-like
// shape with feedback/action/target/value slots. Controls only pattern-match
// against this record, they never see raw utterances.
package models

import (
	"fmt"
	"strings"
)

// InputKind distinguishes the broad classes of incoming input.
type InputKind string

const (
	// InputKindIntent is a classified utterance carrying intent and slots.
	InputKindIntent InputKind = "intent"
	// InputKindFallback means the classifier could not match the utterance.
	InputKindFallback InputKind = "fallback"
	// InputKindLaunch opens a session with no utterance content.
	InputKindLaunch InputKind = "launch"
)

// Well-known intent names.
const (
	// IntentGeneralControl is the catch-all control intent carrying
	// feedback/action/target slots but no value.
	IntentGeneralControl = "GeneralControlIntent"
	// IntentValue carries a value slot, optionally with a target.
	IntentValue = "ValueControlIntent"
)

// FeedbackKind is the yes/no-style feedback slot of a control intent.
type FeedbackKind string

const (
	// FeedbackNone means no feedback slot was filled.
	FeedbackNone FeedbackKind = ""
	// FeedbackAffirm is a positive confirmation ("yes", "that's right").
	FeedbackAffirm FeedbackKind = "affirm"
	// FeedbackDisaffirm is a negative confirmation ("no", "that's wrong").
	FeedbackDisaffirm FeedbackKind = "disaffirm"
)

// ActionKind is the action slot of a general control intent.
type ActionKind string

const (
	// ActionNone means no action slot was filled.
	ActionNone ActionKind = ""
	// ActionSet asks to provide a value ("set the date").
	ActionSet ActionKind = "set"
	// ActionChange asks to replace an existing value ("change the date").
	ActionChange ActionKind = "change"
)

// ControlInput is the structured representation of one user turn.
// SessionID and TurnNumber are assigned by the session layer; controls treat
// the whole record as read-only.
type ControlInput struct {
	SessionID  string       `json:"session_id,omitempty"`
	TurnNumber int          `json:"turn_number,omitempty"`
	Kind       InputKind    `json:"kind"`
	Intent     string       `json:"intent,omitempty"`
	Feedback   FeedbackKind `json:"feedback,omitempty"`
	Action     ActionKind   `json:"action,omitempty"`
	Target     string       `json:"target,omitempty"`
	Value      string       `json:"value,omitempty"`
}

// IsFallback reports whether the classifier failed to match the utterance.
func (i *ControlInput) IsFallback() bool {
	return i.Kind == InputKindFallback
}

// IsIntent reports whether the input is a classified intent with the given name.
func (i *ControlInput) IsIntent(name string) bool {
	return i.Kind == InputKindIntent && i.Intent == name
}

// IsGeneralControlIntent reports whether the input is the catch-all control
// intent (feedback/action/target slots, no value).
func (i *ControlInput) IsGeneralControlIntent() bool {
	return i.IsIntent(IntentGeneralControl)
}

// HasValue reports whether the value slot was filled.
func (i *ControlInput) HasValue() bool {
	return i.Kind == InputKindIntent && i.Value != ""
}

// Validate checks that the input record is well formed before a turn runs.
func (i *ControlInput) Validate() error {
	switch i.Kind {
	case InputKindIntent:
		if i.Intent == "" {
			return fmt.Errorf("%w: intent input missing intent name", ErrInvalidInput)
		}
	case InputKindFallback, InputKindLaunch:
		// no slots required
	default:
		return fmt.Errorf("%w: unrecognized input kind %q", ErrInvalidInput, i.Kind)
	}
	if i.TurnNumber < 1 {
		return fmt.Errorf("%w: turn number must be >= 1, got %d", ErrInvalidInput, i.TurnNumber)
	}
	return nil
}

// MatchesTarget reports whether target names any entry of targets,
// case-insensitively. An empty target never matches.
func MatchesTarget(target string, targets []string) bool {
	if target == "" {
		return false
	}
	for _, t := range targets {
		if strings.EqualFold(target, t) {
			return true
		}
	}
	return false
}
