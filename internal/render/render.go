// Package render turns the system acts produced by a control tree into
// user-facing response text. Rendering is an exhaustive match over act kinds:
// an act the renderer has no branch for is an error, never a silent skip.
package render

import (
	"fmt"
	"log/slog"
	"strings"

	"github.com/BTreeMap/DialogKit/internal/controls"
	"github.com/BTreeMap/DialogKit/internal/models"
)

// ResponseBuilder accumulates prompt and reprompt fragments plus any visual
// directives, order-preserving, one append per act.
type ResponseBuilder struct {
	prompts    []string
	reprompts  []string
	directives []string
}

// NewResponseBuilder creates an empty response builder for one turn.
func NewResponseBuilder() *ResponseBuilder {
	return &ResponseBuilder{}
}

// AddPromptFragment appends a fragment to the spoken prompt.
func (b *ResponseBuilder) AddPromptFragment(fragment string) {
	b.prompts = append(b.prompts, fragment)
}

// AddRepromptFragment appends a fragment to the reprompt spoken when the user
// stays silent.
func (b *ResponseBuilder) AddRepromptFragment(fragment string) {
	b.reprompts = append(b.reprompts, fragment)
}

// AddDirective appends an opaque visual-document directive.
func (b *ResponseBuilder) AddDirective(directive string) {
	b.directives = append(b.directives, directive)
}

// Prompt returns the accumulated prompt fragments joined into one utterance.
func (b *ResponseBuilder) Prompt() string {
	return strings.Join(b.prompts, " ")
}

// Reprompt returns the accumulated reprompt fragments joined into one utterance.
func (b *ResponseBuilder) Reprompt() string {
	return strings.Join(b.reprompts, " ")
}

// Directives returns the accumulated directives in order.
func (b *ResponseBuilder) Directives() []string {
	return b.directives
}

// Renderer renders system acts into a ResponseBuilder.
type Renderer struct{}

// NewRenderer creates a Renderer.
func NewRenderer() *Renderer {
	return &Renderer{}
}

// Render appends each act's rendering to the builder, in act order.
func (r *Renderer) Render(acts []controls.SystemAct, b *ResponseBuilder) error {
	for _, act := range acts {
		if err := r.renderAct(act, b); err != nil {
			return err
		}
	}
	slog.Debug("Renderer.Render: acts rendered", "count", len(acts))
	return nil
}

func (r *Renderer) renderAct(act controls.SystemAct, b *ResponseBuilder) error {
	switch act := act.(type) {
	case controls.ValueSetAct:
		b.AddPromptFragment(fmt.Sprintf("OK, %s.", act.Value))
	case controls.ValueChangedAct:
		b.AddPromptFragment(fmt.Sprintf("OK, I changed it from %s to %s.", act.PreviousValue, act.Value))
	case controls.InvalidValueAct:
		b.AddPromptFragment(fmt.Sprintf("Sorry, %s.", act.Message))
	case controls.ConfirmationAcceptedAct:
		b.AddPromptFragment("Great.")
	case controls.ConfirmationRejectedAct:
		b.AddPromptFragment("My mistake.")
	case controls.NonUnderstandingAct:
		b.AddPromptFragment("Sorry, I didn't understand that.")
	case controls.RequestValueAct:
		b.AddPromptFragment(act.Prompt)
		b.AddRepromptFragment(act.Prompt)
	case controls.RequestReplacementAct:
		b.AddPromptFragment(act.Prompt)
		b.AddRepromptFragment(act.Prompt)
	case controls.ConfirmValueAct:
		question := fmt.Sprintf("Was that %s?", act.Value)
		b.AddPromptFragment(question)
		b.AddRepromptFragment(question)
	case controls.DisambiguateTargetAct:
		question := fmt.Sprintf("Did you mean %s?", joinWithOr(act.Labels))
		b.AddPromptFragment(question)
		b.AddRepromptFragment(question)
	default:
		return fmt.Errorf("%w: %q", models.ErrUnknownActKind, act.Kind())
	}
	return nil
}

// joinWithOr joins labels for a disambiguation question: "A", "A or B",
// "A, B, or C".
func joinWithOr(labels []string) string {
	switch len(labels) {
	case 0:
		return ""
	case 1:
		return labels[0]
	case 2:
		return labels[0] + " or " + labels[1]
	default:
		return strings.Join(labels[:len(labels)-1], ", ") + ", or " + labels[len(labels)-1]
	}
}
