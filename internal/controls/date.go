package controls

import (
	"fmt"
	"time"

	"github.com/BTreeMap/DialogKit/internal/models"
)

// DateLayout is the wire format for date values.
const DateLayout = "2006-01-02"

// Validation failure reason codes for date controls.
const (
	ReasonUnparsableDate = "unparsable_date"
	ReasonDateTooEarly   = "date_too_early"
	ReasonDateTooLate    = "date_too_late"
)

// DateConfig configures a date control. Earliest/Latest bound the accepted
// window; zero values leave the corresponding side unbounded.
type DateConfig struct {
	ID                   string
	Targets              []string
	SpecificTargetLabel  string
	RequestPrompt        string
	ConfirmationRequired bool
	Earliest             time.Time
	Latest               time.Time
}

// NewDateControl creates a ValueControl that accepts ISO dates within the
// configured window.
func NewDateControl(cfg DateConfig) (*ValueControl, error) {
	validator := func(value string) *models.ValidationFailure {
		parsed, err := time.Parse(DateLayout, value)
		if err != nil {
			return &models.ValidationFailure{
				Reason:  ReasonUnparsableDate,
				Message: fmt.Sprintf("%q is not a date I understand", value),
			}
		}
		if !cfg.Earliest.IsZero() && parsed.Before(cfg.Earliest) {
			return &models.ValidationFailure{
				Reason:  ReasonDateTooEarly,
				Message: fmt.Sprintf("the date must be on or after %s", cfg.Earliest.Format(DateLayout)),
			}
		}
		if !cfg.Latest.IsZero() && parsed.After(cfg.Latest) {
			return &models.ValidationFailure{
				Reason:  ReasonDateTooLate,
				Message: fmt.Sprintf("the date must be on or before %s", cfg.Latest.Format(DateLayout)),
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
