// Package controls implements the container control: the arbitration engine
// that selects exactly one child to handle input and exactly one child to
// take initiative each turn, detecting and resolving ambiguity among
// multiple willing children.
package controls

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sort"
	"strings"

	"github.com/BTreeMap/DialogKit/internal/models"
)

// ResolutionStrategy selects how a container breaks ties among multiple
// children willing to handle the same input.
type ResolutionStrategy string

const (
	// StrategyFirstMatch picks the first willing child in declaration order.
	StrategyFirstMatch ResolutionStrategy = "first-match"
	// StrategyMostRecentInitiative prefers the child that most recently took
	// initiative, falling back to declaration order. This is the default.
	StrategyMostRecentInitiative ResolutionStrategy = "most-recent-initiative"
	// StrategyAskExplicitly relies on the disambiguation question path and
	// otherwise behaves like first-match.
	StrategyAskExplicitly ResolutionStrategy = "ask-explicitly"
)

// ContainerConfig configures a container control.
type ContainerConfig struct {
	ID       string
	Strategy ResolutionStrategy // defaults to StrategyMostRecentInitiative
}

// ContainerControl holds an ordered collection of child controls and
// arbitrates among them. It is itself a Control, so containers nest.
type ContainerControl struct {
	id       string
	strategy ResolutionStrategy
	children []Control
	state    ContainerState
}

// NewContainerControl creates a container with the given static children.
func NewContainerControl(cfg ContainerConfig, children ...Control) (*ContainerControl, error) {
	if cfg.ID == "" {
		return nil, models.ErrEmptyControlID
	}
	strategy := cfg.Strategy
	if strategy == "" {
		strategy = StrategyMostRecentInitiative
	}
	switch strategy {
	case StrategyFirstMatch, StrategyMostRecentInitiative, StrategyAskExplicitly:
	default:
		return nil, fmt.Errorf("container %q: %w: %q", cfg.ID, models.ErrUnknownResolutionStrategy, strategy)
	}
	slog.Debug("ContainerControl created", "id", cfg.ID, "strategy", strategy, "children", len(children))
	return &ContainerControl{id: cfg.ID, strategy: strategy, children: children}, nil
}

// ID returns the container's identifier.
func (c *ContainerControl) ID() string { return c.id }

// Children returns the container's children in declaration order.
func (c *ContainerControl) Children() []Control { return c.children }

// AddChild appends a static child during tree construction.
func (c *ContainerControl) AddChild(child Control) {
	c.children = append(c.children, child)
}

// State returns the container's current state. Exposed for the session layer
// and tests; other controls must never mutate it.
func (c *ContainerControl) State() *ContainerState { return &c.state }

func (c *ContainerControl) childByID(id string) Control {
	for _, child := range c.children {
		if child.ID() == id {
			return child
		}
	}
	return nil
}

// handlingDecision is the explicit outcome of handling-side arbitration,
// threaded into Handle rather than cached between CanHandle and Handle.
type handlingDecision struct {
	winner        Control
	dispatchInput *models.ControlInput    // input to pass to the winner; differs from the turn input on disambiguation replies
	raise         *DisambiguationQuestion // set when the container should ask instead of guessing
}

// decideHandling runs the full handling-side arbitration: disambiguation
// reply matching, candidate gathering, fallback restriction, ambiguity
// detection, and tie-break. It is pure with respect to container state so
// CanHandle and Handle can both call it and agree.
func (c *ContainerControl) decideHandling(ctx context.Context, input *models.ControlInput) (*handlingDecision, error) {
	if q := c.state.OpenDisambiguation; q != nil {
		if decision, err := c.matchDisambiguationReply(ctx, q, input); err != nil {
			return nil, err
		} else if decision != nil {
			return decision, nil
		}
		// Reply did not select a candidate: the question is abandoned and
		// the input goes through normal arbitration.
		slog.Debug("ContainerControl.decideHandling: disambiguation reply unmatched, re-arbitrating", "id", c.id)
	}

	candidates, err := c.gatherHandlingCandidates(ctx, input)
	if err != nil {
		return nil, err
	}
	if len(candidates) == 0 {
		return nil, nil
	}

	if input.IsFallback() {
		// Fallback speech only ever continues the conversation with the
		// child that most recently asked a question.
		rec := c.state.LastInitiative
		if rec == nil {
			return nil, nil
		}
		for _, cand := range candidates {
			if cand.ID() == rec.ControlID {
				slog.Debug("ContainerControl.decideHandling: fallback restricted to last initiative child", "id", c.id, "winner", cand.ID())
				return &handlingDecision{winner: cand, dispatchInput: input}, nil
			}
		}
		return nil, nil
	}

	question, err := c.detectTargetAmbiguity(input, candidates)
	if err != nil {
		return nil, err
	}
	if question != nil {
		return &handlingDecision{raise: question}, nil
	}

	winner := c.resolveByStrategy(candidates)
	slog.Debug("ContainerControl.decideHandling: winner selected", "id", c.id, "winner", winner.ID(), "strategy", c.strategy, "candidates", len(candidates))
	return &handlingDecision{winner: winner, dispatchInput: input}, nil
}

// gatherHandlingCandidates polls every child in declaration order.
func (c *ContainerControl) gatherHandlingCandidates(ctx context.Context, input *models.ControlInput) ([]Control, error) {
	var candidates []Control
	for _, child := range c.children {
		ok, err := child.CanHandle(ctx, input)
		if err != nil {
			return nil, fmt.Errorf("container %q: canHandle of child %q failed: %w", c.id, child.ID(), err)
		}
		if ok {
			candidates = append(candidates, child)
		}
	}
	slog.Debug("ContainerControl.gatherHandlingCandidates", "id", c.id, "candidates", len(candidates))
	return candidates, nil
}

// matchDisambiguationReply checks whether the input answers an outstanding
// disambiguation question. On a match it synthesizes a targeted input for
// the chosen child and verifies the child accepts it, so the child's own
// two-phase guard still holds. Exact label matches are tried before
// containment matches, and longer contained labels before shorter ones:
// with overlapping labels ("date", "start date") a reply naming the longer
// label must not resolve to the shorter one it happens to contain.
func (c *ContainerControl) matchDisambiguationReply(ctx context.Context, q *DisambiguationQuestion, input *models.ControlInput) (*handlingDecision, error) {
	reply := input.Value
	if reply == "" {
		reply = input.Target
	}
	reply = strings.ToLower(strings.TrimSpace(reply))
	if reply == "" {
		return nil, nil
	}
	var exact, contained []DisambiguationCandidate
	for _, cand := range q.Candidates {
		label := strings.ToLower(cand.Label)
		switch {
		case reply == label:
			exact = append(exact, cand)
		case strings.Contains(reply, label):
			contained = append(contained, cand)
		}
	}
	sort.SliceStable(contained, func(i, j int) bool {
		return len(contained[i].Label) > len(contained[j].Label)
	})
	for _, cand := range append(exact, contained...) {
		child := c.childByID(cand.ControlID)
		if child == nil {
			// Candidate removed since the question was asked; stale.
			continue
		}
		synthesized := *input
		synthesized.Kind = models.InputKindIntent
		synthesized.Intent = models.IntentGeneralControl
		synthesized.Action = models.ActionKind(q.Action)
		synthesized.Target = cand.Label
		synthesized.Value = ""
		ok, err := child.CanHandle(ctx, &synthesized)
		if err != nil {
			return nil, fmt.Errorf("container %q: canHandle of disambiguated child %q failed: %w", c.id, child.ID(), err)
		}
		if !ok {
			continue
		}
		slog.Debug("ContainerControl.matchDisambiguationReply: reply resolved", "id", c.id, "winner", child.ID(), "label", cand.Label)
		return &handlingDecision{winner: child, dispatchInput: &synthesized}, nil
	}
	return nil, nil
}

// detectTargetAmbiguity decides whether the input could plausibly target more
// than one candidate implicitly. It triggers only for a general control
// intent whose target slot is absent or shared by every candidate; the
// candidates' specific target labels become the offered answers. Two
// candidates sharing a label is a configuration fault: distinguishability
// must be guaranteed by construction.
func (c *ContainerControl) detectTargetAmbiguity(input *models.ControlInput, candidates []Control) (*DisambiguationQuestion, error) {
	if len(candidates) < 2 || !input.IsGeneralControlIntent() || input.HasValue() {
		return nil, nil
	}
	targeted := make([]TargetedControl, 0, len(candidates))
	for _, cand := range candidates {
		tc, ok := cand.(TargetedControl)
		if !ok || tc.SpecificTargetLabel() == "" {
			// An unlabeled candidate cannot be offered; tie-break decides.
			return nil, nil
		}
		targeted = append(targeted, tc)
	}
	if input.Target != "" {
		for _, tc := range targeted {
			if !models.MatchesTarget(input.Target, tc.Targets()) {
				// The user's words already disambiguate.
				return nil, nil
			}
		}
	}
	seen := make(map[string]string, len(targeted))
	question := &DisambiguationQuestion{
		Kind:       DisambiguationKindTarget,
		TurnNumber: input.TurnNumber,
		Action:     string(input.Action),
	}
	for _, tc := range targeted {
		label := tc.SpecificTargetLabel()
		key := strings.ToLower(label)
		if prev, dup := seen[key]; dup {
			return nil, fmt.Errorf("container %q: controls %q and %q: %w: %q", c.id, prev, tc.ID(), models.ErrDuplicateTargetLabel, label)
		}
		seen[key] = tc.ID()
		question.Candidates = append(question.Candidates, DisambiguationCandidate{ControlID: tc.ID(), Label: label})
	}
	slog.Debug("ContainerControl.detectTargetAmbiguity: ambiguity detected", "id", c.id, "candidates", len(question.Candidates))
	return question, nil
}

// resolveByStrategy breaks a tie among handling candidates.
func (c *ContainerControl) resolveByStrategy(candidates []Control) Control {
	switch c.strategy {
	case StrategyFirstMatch, StrategyAskExplicitly:
		return candidates[0]
	default: // StrategyMostRecentInitiative
		if rec := c.state.LastInitiative; rec != nil {
			for _, cand := range candidates {
				if cand.ID() == rec.ControlID {
					return cand
				}
			}
		}
		return candidates[0]
	}
}

// CanHandle reports whether arbitration selects a handling child, raises a
// disambiguation question, or resolves an outstanding one.
func (c *ContainerControl) CanHandle(ctx context.Context, input *models.ControlInput) (bool, error) {
	decision, err := c.decideHandling(ctx, input)
	if err != nil {
		return false, err
	}
	return decision != nil, nil
}

// Handle re-runs arbitration and delegates to the selected child, or raises
// the disambiguation question arbitration produced. After delegation it
// records which child handled input this turn and, if the child produced an
// initiative act, which child holds the initiative.
func (c *ContainerControl) Handle(ctx context.Context, input *models.ControlInput, result *ResultBuilder) error {
	decision, err := c.decideHandling(ctx, input)
	if err != nil {
		return err
	}
	if decision == nil {
		return fmt.Errorf("container %q: %w", c.id, models.ErrHandleWithoutCanHandle)
	}

	// Any outstanding question is now either consumed or abandoned.
	c.state.OpenDisambiguation = nil

	if decision.raise != nil {
		c.state.OpenDisambiguation = decision.raise
		labels := make([]string, len(decision.raise.Candidates))
		for i, cand := range decision.raise.Candidates {
			labels[i] = cand.Label
		}
		slog.Debug("ContainerControl.Handle: raising disambiguation question", "id", c.id, "labels", labels)
		result.AddAct(NewDisambiguateTargetAct(c.id, labels))
		return nil
	}

	actsBefore := len(result.Acts())
	hadInitiative := result.HasInitiativeAct()
	if err := decision.winner.Handle(ctx, decision.dispatchInput, result); err != nil {
		return fmt.Errorf("container %q: handle of child %q failed: %w", c.id, decision.winner.ID(), err)
	}
	if len(result.Acts()) > actsBefore {
		c.state.LastHandling = &ChildActivityRecord{ControlID: decision.winner.ID(), TurnNumber: input.TurnNumber}
		if !hadInitiative && result.HasInitiativeAct() {
			c.state.LastInitiative = &ChildActivityRecord{ControlID: decision.winner.ID(), TurnNumber: input.TurnNumber}
		}
	}
	return nil
}

// decideInitiative picks the initiative winner: the child that just handled
// input is preferred over one that merely held the initiative earlier.
func (c *ContainerControl) decideInitiative(ctx context.Context, input *models.ControlInput) (Control, error) {
	var candidates []Control
	for _, child := range c.children {
		ok, err := child.CanTakeInitiative(ctx, input)
		if err != nil {
			return nil, fmt.Errorf("container %q: canTakeInitiative of child %q failed: %w", c.id, child.ID(), err)
		}
		if ok {
			candidates = append(candidates, child)
		}
	}
	if len(candidates) == 0 {
		return nil, nil
	}
	if c.strategy == StrategyFirstMatch {
		return candidates[0], nil
	}
	for _, rec := range []*ChildActivityRecord{c.state.LastHandling, c.state.LastInitiative} {
		if rec == nil {
			continue
		}
		for _, cand := range candidates {
			if cand.ID() == rec.ControlID {
				return cand, nil
			}
		}
	}
	return candidates[0], nil
}

// CanTakeInitiative reports whether any child wants the initiative.
func (c *ContainerControl) CanTakeInitiative(ctx context.Context, input *models.ControlInput) (bool, error) {
	winner, err := c.decideInitiative(ctx, input)
	if err != nil {
		return false, err
	}
	return winner != nil, nil
}

// TakeInitiative delegates to the initiative winner and records it.
func (c *ContainerControl) TakeInitiative(ctx context.Context, input *models.ControlInput, result *ResultBuilder) error {
	winner, err := c.decideInitiative(ctx, input)
	if err != nil {
		return err
	}
	if winner == nil {
		return fmt.Errorf("container %q: %w", c.id, models.ErrInitiativeWithoutCanTakeInitiative)
	}
	if err := winner.TakeInitiative(ctx, input, result); err != nil {
		return fmt.Errorf("container %q: takeInitiative of child %q failed: %w", c.id, winner.ID(), err)
	}
	c.state.LastInitiative = &ChildActivityRecord{ControlID: winner.ID(), TurnNumber: input.TurnNumber}
	slog.Debug("ContainerControl.TakeInitiative: initiative delegated", "id", c.id, "winner", winner.ID(), "turn", input.TurnNumber)
	return nil
}

// ReestablishState restores the container's own state and recurses into all
// children.
func (c *ContainerControl) ReestablishState(persisted json.RawMessage, statesByID map[string]json.RawMessage) error {
	if err := c.restoreOwnState(persisted); err != nil {
		return err
	}
	return c.reestablishChildren(statesByID)
}

func (c *ContainerControl) restoreOwnState(persisted json.RawMessage) error {
	if len(persisted) == 0 {
		c.state = ContainerState{}
		return nil
	}
	if err := json.Unmarshal(persisted, &c.state); err != nil {
		return fmt.Errorf("container %q: unmarshal state failed: %w", c.id, err)
	}
	return nil
}

func (c *ContainerControl) reestablishChildren(statesByID map[string]json.RawMessage) error {
	for _, child := range c.children {
		if err := child.ReestablishState(statesByID[child.ID()], statesByID); err != nil {
			return err
		}
	}
	return nil
}

// SerializeState returns the container's state as JSON.
func (c *ContainerControl) SerializeState() (json.RawMessage, error) {
	data, err := json.Marshal(c.state)
	if err != nil {
		return nil, fmt.Errorf("container %q: marshal state failed: %w", c.id, err)
	}
	return data, nil
}
