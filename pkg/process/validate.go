package process

import (
	"fmt"
	"strings"
	"sync"

	"github.com/go-playground/validator/v10"

	perrors "github.com/tnpagents/processmate/pkg/errors"
)

var (
	validateOnce sync.Once
	structCheck  *validator.Validate
)

func structValidator() *validator.Validate {
	validateOnce.Do(func() {
		structCheck = validator.New()
		_ = structCheck.RegisterValidation("kind", func(fl validator.FieldLevel) bool {
			switch Kind(fl.Field().String()) {
			case KindStartEvent, KindEndEvent, KindTask, KindExclusiveGateway:
				return true
			}
			return false
		})
	})
	return structCheck
}

// Issue is one problem found by [Validate].
type Issue struct {
	StepID  string `json:"step_id,omitempty"`
	Field   string `json:"field,omitempty"`
	Message string `json:"message"`
}

func (i Issue) String() string {
	if i.StepID == "" {
		return i.Message
	}
	if i.Field == "" {
		return fmt.Sprintf("%s: %s", i.StepID, i.Message)
	}
	return fmt.Sprintf("%s.%s: %s", i.StepID, i.Field, i.Message)
}

// Validate runs the strict checks the diagram generator tolerates:
// required fields, unique ids, successor references that resolve, gateways
// with a condition and both branches, and at least one start event.
//
// It returns every issue found; the returned error is non-nil (code
// INVALID_INPUT) exactly when the slice is non-empty.
func Validate(t *Table) ([]Issue, error) {
	var issues []Issue
	if len(t.Steps) == 0 {
		issues = append(issues, Issue{Message: "table has no steps"})
		return issues, perrors.New(perrors.ErrCodeInvalidInput, "table has no steps")
	}

	v := structValidator()
	ids := make(map[string]bool, len(t.Steps))
	hasStart := false
	for i := range t.Steps {
		s := &t.Steps[i]
		label := s.ID
		if label == "" {
			label = fmt.Sprintf("row %d", i+1)
		}

		if err := v.Struct(s); err != nil {
			if verrs, ok := err.(validator.ValidationErrors); ok {
				for _, fe := range verrs {
					issues = append(issues, Issue{StepID: label, Field: fe.Field(), Message: "failed " + fe.Tag()})
				}
			} else {
				issues = append(issues, Issue{StepID: label, Message: err.Error()})
			}
		}
		if s.ID != "" {
			if err := perrors.ValidateStepID(s.ID); err != nil {
				issues = append(issues, Issue{StepID: label, Field: "ID", Message: perrors.UserMessage(err)})
			}
			if ids[s.ID] {
				issues = append(issues, Issue{StepID: label, Field: "ID", Message: "duplicate id"})
			}
			ids[s.ID] = true
		}
		if s.Kind == KindStartEvent {
			hasStart = true
		}
	}

	for i := range t.Steps {
		s := &t.Steps[i]
		checkRef := func(field, ref string) {
			ref = strings.TrimSpace(ref)
			if ref != "" && !ids[ref] {
				issues = append(issues, Issue{StepID: s.ID, Field: field, Message: fmt.Sprintf("references unknown step %q", ref)})
			}
		}
		checkRef("OnYes", s.OnYes)
		checkRef("OnNo", s.OnNo)

		switch s.Kind {
		case KindExclusiveGateway:
			if strings.TrimSpace(s.Condition) == "" && strings.TrimSpace(s.Label) == "" {
				issues = append(issues, Issue{StepID: s.ID, Field: "Condition", Message: "gateway has no condition"})
			}
			if !s.HasYes() || !s.HasNo() {
				issues = append(issues, Issue{StepID: s.ID, Message: "gateway needs both a yes and a no branch"})
			}
		case KindEndEvent:
			if s.HasYes() || s.HasNo() {
				issues = append(issues, Issue{StepID: s.ID, Message: "end event has outgoing branches"})
			}
		default:
			switch {
			case s.HasNo() && !s.HasYes():
				issues = append(issues, Issue{StepID: s.ID, Field: "OnNo", Message: "negative branch without a yes branch"})
			case s.HasNo() && s.Kind != KindTask:
				// graph.Build drops this branch.
				issues = append(issues, Issue{StepID: s.ID, Field: "OnNo", Message: "only tasks and gateways take a no branch"})
			}
		}
	}

	if !hasStart {
		issues = append(issues, Issue{Message: "table has no start event"})
	}

	if len(issues) > 0 {
		return issues, perrors.New(perrors.ErrCodeInvalidInput, "%d validation issue(s)", len(issues))
	}
	return nil, nil
}
