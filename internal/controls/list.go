package controls

import (
	"fmt"
	"strings"

	"github.com/BTreeMap/DialogKit/internal/models"
)

// ReasonNotAChoice is the validation failure reason for a value outside the
// configured choice list.
const ReasonNotAChoice = "not_a_choice"

// ListConfig configures a list control: the value must be one of Choices.
type ListConfig struct {
	ID                   string
	Targets              []string
	SpecificTargetLabel  string
	RequestPrompt        string
	ConfirmationRequired bool
	Choices              []string
}

// NewListControl creates a ValueControl that accepts only the configured
// choices, matched case-insensitively and canonicalized to the declared
// spelling. The elicitation prompt offers the choices when none was given.
func NewListControl(cfg ListConfig) (*ValueControl, error) {
	if len(cfg.Choices) == 0 {
		return nil, fmt.Errorf("list control %q requires at least one choice", cfg.ID)
	}
	canonicalize := func(value string) string {
		for _, choice := range cfg.Choices {
			if strings.EqualFold(value, choice) {
				return choice
			}
		}
		return value
	}
	validator := func(value string) *models.ValidationFailure {
		for _, choice := range cfg.Choices {
			if value == choice {
				return nil
			}
		}
		return &models.ValidationFailure{
			Reason:  ReasonNotAChoice,
			Message: fmt.Sprintf("%q is not one of %s", value, strings.Join(cfg.Choices, ", ")),
		}
	}
	prompt := cfg.RequestPrompt
	if prompt == "" {
		label := cfg.SpecificTargetLabel
		if label == "" && len(cfg.Targets) > 0 {
			label = cfg.Targets[0]
		}
		prompt = fmt.Sprintf("Which %s would you like: %s?", label, strings.Join(cfg.Choices, ", "))
	}
	return NewValueControl(ValueConfig{
		ID:                   cfg.ID,
		Targets:              cfg.Targets,
		SpecificTargetLabel:  cfg.SpecificTargetLabel,
		RequestPrompt:        prompt,
		ConfirmationRequired: cfg.ConfirmationRequired,
		Validators:           []Validator{validator},
		Canonicalize:         canonicalize,
	})
}
