package controls

import (
	"fmt"
	"strconv"

	"github.com/BTreeMap/DialogKit/internal/models"
)

// Validation failure reason codes for number controls.
const (
	ReasonNotANumber     = "not_a_number"
	ReasonNumberTooSmall = "number_too_small"
	ReasonNumberTooLarge = "number_too_large"
)

// NumberConfig configures a number control. Min/Max bound the accepted range;
// nil leaves the corresponding side unbounded.
type NumberConfig struct {
	ID                   string
	Targets              []string
	SpecificTargetLabel  string
	RequestPrompt        string
	ConfirmationRequired bool
	Min                  *int
	Max                  *int
}

// NewNumberControl creates a ValueControl that accepts integers within the
// configured range.
func NewNumberControl(cfg NumberConfig) (*ValueControl, error) {
	validator := func(value string) *models.ValidationFailure {
		n, err := strconv.Atoi(value)
		if err != nil {
			return &models.ValidationFailure{
				Reason:  ReasonNotANumber,
				Message: fmt.Sprintf("%q is not a number I understand", value),
			}
		}
		if cfg.Min != nil && n < *cfg.Min {
			return &models.ValidationFailure{
				Reason:  ReasonNumberTooSmall,
				Message: fmt.Sprintf("the number must be at least %d", *cfg.Min),
			}
		}
		if cfg.Max != nil && n > *cfg.Max {
			return &models.ValidationFailure{
				Reason:  ReasonNumberTooLarge,
				Message: fmt.Sprintf("the number must be at most %d", *cfg.Max),
			}
		}
		return nil
	}
	return NewValueControl(ValueConfig{
		ID:                   cfg.ID,
		Targets:              cfg.Targets,
		SpecificTargetLabel:  cfg.SpecificTargetLabel,
		RequestPrompt:        cfg.RequestPrompt,
		ConfirmationRequired: cfg.ConfirmationRequired,
		Validators:           []Validator{validator},
	})
}
