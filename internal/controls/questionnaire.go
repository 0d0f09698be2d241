package controls

import (
	"fmt"

	"github.com/BTreeMap/DialogKit/internal/models"
)

// QuestionChildKind is the dynamic child kind for questionnaire questions.
const QuestionChildKind = "question"

// Questionnaire child spec property keys.
const (
	questionPropLabel  = "label"
	questionPropPrompt = "prompt"
)

// QuestionnaireControl is a dynamic container whose children are one value
// control per question. Questions are added at runtime and reconstructed from
// their specifications on every subsequent turn; the container's normal
// initiative arbitration asks the first unanswered question.
type QuestionnaireControl struct {
	DynamicContainerControl
}

// NewQuestionnaireControl creates an empty questionnaire.
func NewQuestionnaireControl(id string) (*QuestionnaireControl, error) {
	base, err := NewDynamicContainerControl(ContainerConfig{ID: id}, buildQuestionChild)
	if err != nil {
		return nil, err
	}
	return &QuestionnaireControl{DynamicContainerControl: *base}, nil
}

func buildQuestionChild(spec DynamicChildSpec) (Control, error) {
	if spec.Kind != QuestionChildKind {
		return nil, fmt.Errorf("%w: %q", models.ErrUnknownChildKind, spec.Kind)
	}
	label := spec.Props[questionPropLabel]
	if label == "" {
		label = spec.ID
	}
	return NewValueControl(ValueConfig{
		ID:                  spec.ID,
		Targets:             []string{label},
		SpecificTargetLabel: label,
		RequestPrompt:       spec.Props[questionPropPrompt],
	})
}

// AddQuestion appends a question with the given id, distinguishing label, and
// prompt. Duplicate ids are rejected.
func (q *QuestionnaireControl) AddQuestion(id, label, prompt string) (Control, error) {
	return q.AddDynamicChild(DynamicChildSpec{
		ID:   id,
		Kind: QuestionChildKind,
		Props: map[string]string{
			questionPropLabel:  label,
			questionPropPrompt: prompt,
		},
	})
}

// Complete reports whether every question has an answer.
func (q *QuestionnaireControl) Complete() bool {
	for _, child := range q.Children() {
		vc, ok := child.(*ValueControl)
		if !ok {
			continue
		}
		if !vc.IsSet() {
			return false
		}
	}
	return true
}
