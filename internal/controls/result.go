package controls

import "log/slog"

// ResultBuilder accumulates the system acts produced during one turn, in
// order. It is shared down the tree; each control appends its own acts and
// never removes or reorders acts appended by others.
type ResultBuilder struct {
	acts         []SystemAct
	sessionEnded bool
}

// NewResultBuilder creates an empty result builder for one turn.
func NewResultBuilder() *ResultBuilder {
	return &ResultBuilder{}
}

// AddAct appends an act to the turn result.
func (b *ResultBuilder) AddAct(act SystemAct) {
	slog.Debug("ResultBuilder.AddAct", "kind", act.Kind(), "control", act.ControlID(), "initiative", act.Initiative())
	b.acts = append(b.acts, act)
}

// Acts returns the accumulated acts in append order.
func (b *ResultBuilder) Acts() []SystemAct {
	return b.acts
}

// HasInitiativeAct reports whether any accumulated act is an initiative act.
func (b *ResultBuilder) HasInitiativeAct() bool {
	return b.InitiativeActCount() > 0
}

// InitiativeActCount returns the number of accumulated initiative acts.
func (b *ResultBuilder) InitiativeActCount() int {
	n := 0
	for _, act := range b.acts {
		if act.Initiative() {
			n++
		}
	}
	return n
}

// EndSession marks the turn as ending the conversation.
func (b *ResultBuilder) EndSession() {
	slog.Debug("ResultBuilder.EndSession: session marked as ended")
	b.sessionEnded = true
}

// SessionEnded reports whether the turn ends the conversation.
func (b *ResultBuilder) SessionEnded() bool {
	return b.sessionEnded
}
