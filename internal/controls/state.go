// Package controls defines the serializable state types persisted per control
// between turns. Controls are never persisted as live objects: only these
// plain snapshots survive a turn boundary, and the tree is rebuilt fresh and
// rehydrated from them at the start of every turn.
package controls

// ChildActivityRecord remembers which child did something and on which turn.
// A record may reference a child no longer present in the current turn's tree
// (a removed dynamic child); consumers treat that as stale and skip it.
type ChildActivityRecord struct {
	ControlID  string `json:"control_id"`
	TurnNumber int    `json:"turn_number"`
}

// Disambiguation question kinds.
const (
	// DisambiguationKindTarget asks which of several same-target controls the user meant.
	DisambiguationKindTarget = "target"
)

// DisambiguationCandidate is one offered answer to a disambiguation question:
// a child id and the specific target label that distinguishes it.
type DisambiguationCandidate struct {
	ControlID string `json:"control_id"`
	Label     string `json:"label"`
}

// DisambiguationQuestion records an outstanding "which one did you mean"
// question so the next turn's reply can be matched against it. Cleared once
// consumed or abandoned.
type DisambiguationQuestion struct {
	Kind       string                    `json:"kind"`
	TurnNumber int                       `json:"turn_number"`
	Action     string                    `json:"action,omitempty"` // action slot of the ambiguous input, replayed on resolution
	Candidates []DisambiguationCandidate `json:"candidates"`
}

// DynamicChildSpec is the minimal serializable descriptor from which a
// dynamically added child can be reconstructed on later turns.
type DynamicChildSpec struct {
	ID    string            `json:"id"`
	Kind  string            `json:"kind"`
	Props map[string]string `json:"props,omitempty"`
}

// ContainerState is the persisted state of a container control.
type ContainerState struct {
	LastHandling       *ChildActivityRecord    `json:"last_handling,omitempty"`
	LastInitiative     *ChildActivityRecord    `json:"last_initiative,omitempty"`
	OpenDisambiguation *DisambiguationQuestion `json:"open_disambiguation,omitempty"`
	DynamicChildren    []DynamicChildSpec      `json:"dynamic_children,omitempty"`
}

// ValueState is the persisted state of a single-slot leaf control.
type ValueState struct {
	Value                 string `json:"value,omitempty"`
	PreviousValue         string `json:"previous_value,omitempty"`
	IsValueSet            bool   `json:"is_value_set,omitempty"`
	IsConfirmed           bool   `json:"is_confirmed,omitempty"`
	ConfirmationPending   bool   `json:"confirmation_pending,omitempty"`
	ElicitationInProgress bool   `json:"elicitation_in_progress,omitempty"`
}
