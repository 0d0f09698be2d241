// Package controls defines system acts: typed, immutable records of what the
// system communicated or decided to communicate during a turn.
package controls

// ActKind identifies a system act variant.
type ActKind string

// Act kind constants. Content acts report information; initiative acts pose a
// question that expects a reply.
const (
	ActValueSet             ActKind = "value_set"
	ActValueChanged         ActKind = "value_changed"
	ActInvalidValue         ActKind = "invalid_value"
	ActConfirmationAccepted ActKind = "confirmation_accepted"
	ActConfirmationRejected ActKind = "confirmation_rejected"
	ActNonUnderstanding     ActKind = "non_understanding"
	ActRequestValue         ActKind = "request_value"
	ActRequestReplacement   ActKind = "request_replacement"
	ActConfirmValue         ActKind = "confirm_value"
	ActDisambiguateTarget   ActKind = "disambiguate_target"
)

// SystemAct is one unit of system communication produced during a turn. Acts
// are read-only after creation and carry the id of the control that produced
// them. Initiative reports whether the act expects a user reply; a completed
// turn that does not end the session contains exactly one initiative act.
type SystemAct interface {
	Kind() ActKind
	ControlID() string
	Initiative() bool
}

// actBase carries the producing control's id, shared by all act variants.
type actBase struct {
	Source string `json:"control_id"`
}

// ControlID returns the id of the control that produced the act.
func (a actBase) ControlID() string { return a.Source }

// ValueSetAct reports that a control accepted a value it did not have before.
type ValueSetAct struct {
	actBase
	Value string `json:"value"`
}

// NewValueSetAct creates a ValueSetAct for the given control and value.
func NewValueSetAct(controlID, value string) ValueSetAct {
	return ValueSetAct{actBase: actBase{Source: controlID}, Value: value}
}

func (ValueSetAct) Kind() ActKind    { return ActValueSet }
func (ValueSetAct) Initiative() bool { return false }

// ValueChangedAct reports that a control replaced an existing value, carrying
// the delta so rendering can report what changed.
type ValueChangedAct struct {
	actBase
	PreviousValue string `json:"previous_value"`
	Value         string `json:"value"`
}

// NewValueChangedAct creates a ValueChangedAct recording the old and new values.
func NewValueChangedAct(controlID, previousValue, value string) ValueChangedAct {
	return ValueChangedAct{actBase: actBase{Source: controlID}, PreviousValue: previousValue, Value: value}
}

func (ValueChangedAct) Kind() ActKind    { return ActValueChanged }
func (ValueChangedAct) Initiative() bool { return false }

// InvalidValueAct reports that a proposed value failed validation. Message is
// the validator's user-facing explanation, ready for rendering.
type InvalidValueAct struct {
	actBase
	Value   string `json:"value"`
	Message string `json:"message"`
}

// NewInvalidValueAct creates an InvalidValueAct with the rejected value and explanation.
func NewInvalidValueAct(controlID, value, message string) InvalidValueAct {
	return InvalidValueAct{actBase: actBase{Source: controlID}, Value: value, Message: message}
}

func (InvalidValueAct) Kind() ActKind    { return ActInvalidValue }
func (InvalidValueAct) Initiative() bool { return false }

// ConfirmationAcceptedAct reports that the user affirmed a pending value.
type ConfirmationAcceptedAct struct {
	actBase
	Value string `json:"value"`
}

// NewConfirmationAcceptedAct creates a ConfirmationAcceptedAct.
func NewConfirmationAcceptedAct(controlID, value string) ConfirmationAcceptedAct {
	return ConfirmationAcceptedAct{actBase: actBase{Source: controlID}, Value: value}
}

func (ConfirmationAcceptedAct) Kind() ActKind    { return ActConfirmationAccepted }
func (ConfirmationAcceptedAct) Initiative() bool { return false }

// ConfirmationRejectedAct reports that the user disaffirmed a pending value.
type ConfirmationRejectedAct struct {
	actBase
	Value string `json:"value"`
}

// NewConfirmationRejectedAct creates a ConfirmationRejectedAct.
func NewConfirmationRejectedAct(controlID, value string) ConfirmationRejectedAct {
	return ConfirmationRejectedAct{actBase: actBase{Source: controlID}, Value: value}
}

func (ConfirmationRejectedAct) Kind() ActKind    { return ActConfirmationRejected }
func (ConfirmationRejectedAct) Initiative() bool { return false }

// NonUnderstandingAct reports that no control in the tree could handle the
// input. Produced by the session layer, not by controls.
type NonUnderstandingAct struct {
	actBase
}

// NewNonUnderstandingAct creates a NonUnderstandingAct attributed to the root control.
func NewNonUnderstandingAct(controlID string) NonUnderstandingAct {
	return NonUnderstandingAct{actBase: actBase{Source: controlID}}
}

func (NonUnderstandingAct) Kind() ActKind    { return ActNonUnderstanding }
func (NonUnderstandingAct) Initiative() bool { return false }

// RequestValueAct asks the user to provide a value for the first time.
type RequestValueAct struct {
	actBase
	Prompt string `json:"prompt"`
}

// NewRequestValueAct creates a RequestValueAct with the elicitation prompt.
func NewRequestValueAct(controlID, prompt string) RequestValueAct {
	return RequestValueAct{actBase: actBase{Source: controlID}, Prompt: prompt}
}

func (RequestValueAct) Kind() ActKind    { return ActRequestValue }
func (RequestValueAct) Initiative() bool { return true }

// RequestReplacementAct asks the user to provide a value again after a
// validation failure or a rejected confirmation.
type RequestReplacementAct struct {
	actBase
	Prompt string `json:"prompt"`
	Reason string `json:"reason,omitempty"`
}

// NewRequestReplacementAct creates a RequestReplacementAct with the re-elicitation prompt.
func NewRequestReplacementAct(controlID, prompt, reason string) RequestReplacementAct {
	return RequestReplacementAct{actBase: actBase{Source: controlID}, Prompt: prompt, Reason: reason}
}

func (RequestReplacementAct) Kind() ActKind    { return ActRequestReplacement }
func (RequestReplacementAct) Initiative() bool { return true }

// ConfirmValueAct asks the user to confirm a received value.
type ConfirmValueAct struct {
	actBase
	Value string `json:"value"`
}

// NewConfirmValueAct creates a ConfirmValueAct for the value awaiting confirmation.
func NewConfirmValueAct(controlID, value string) ConfirmValueAct {
	return ConfirmValueAct{actBase: actBase{Source: controlID}, Value: value}
}

func (ConfirmValueAct) Kind() ActKind    { return ActConfirmValue }
func (ConfirmValueAct) Initiative() bool { return true }

// DisambiguateTargetAct asks the user which of several equally plausible
// controls they meant, offering each candidate's specific target label.
type DisambiguateTargetAct struct {
	actBase
	Labels []string `json:"labels"`
}

// NewDisambiguateTargetAct creates a DisambiguateTargetAct offering the given labels in order.
func NewDisambiguateTargetAct(controlID string, labels []string) DisambiguateTargetAct {
	return DisambiguateTargetAct{actBase: actBase{Source: controlID}, Labels: labels}
}

func (DisambiguateTargetAct) Kind() ActKind    { return ActDisambiguateTarget }
func (DisambiguateTargetAct) Initiative() bool { return true }
