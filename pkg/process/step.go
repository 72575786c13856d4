package process

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

// =============================================================================
// Element Kinds
// =============================================================================

// Kind is the BPMN element kind of a step.
type Kind string

// Supported element kinds. The set is closed.
const (
	KindStartEvent       Kind = "StartEvent"
	KindEndEvent         Kind = "EndEvent"
	KindTask             Kind = "Task"
	KindExclusiveGateway Kind = "ExclusiveGateway"
)

// Kinds lists every supported kind in display order.
var Kinds = []Kind{KindStartEvent, KindTask, KindExclusiveGateway, KindEndEvent}

// ParseKind converts user input to a Kind. Matching is case-insensitive,
// "UserTask" is an alias for Task and an empty string defaults to Task.
func ParseKind(s string) (Kind, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "task", "usertask":
		return KindTask, nil
	case "startevent", "start":
		return KindStartEvent, nil
	case "endevent", "end":
		return KindEndEvent, nil
	case "exclusivegateway", "gateway":
		return KindExclusiveGateway, nil
	}
	return "", fmt.Errorf("unknown element kind %q", s)
}

// =============================================================================
// Step
// =============================================================================

// Step is one row of a process table.
type Step struct {
	ID        string `json:"id" yaml:"id" bson:"id" validate:"required,max=256"`
	Label     string `json:"label,omitempty" yaml:"label,omitempty" bson:"label,omitempty"`
	Kind      Kind   `json:"kind" yaml:"kind" bson:"kind" validate:"required,kind"`
	Lane      string `json:"lane" yaml:"lane" bson:"lane" validate:"required"`
	Condition string `json:"condition,omitempty" yaml:"condition,omitempty" bson:"condition,omitempty"`
	OnYes     string `json:"onYes,omitempty" yaml:"onYes,omitempty" bson:"on_yes,omitempty"`
	OnNo      string `json:"onNo,omitempty" yaml:"onNo,omitempty" bson:"on_no,omitempty"`
	Tool      string `json:"tool,omitempty" yaml:"tool,omitempty" bson:"tool,omitempty"`
}

// HasYes reports whether the step has a non-blank affirmative successor.
func (s *Step) HasYes() bool { return strings.TrimSpace(s.OnYes) != "" }

// HasNo reports whether the step has a non-blank negative successor.
func (s *Step) HasNo() bool { return strings.TrimSpace(s.OnNo) != "" }

// HasTool reports whether the step carries a tool annotation.
func (s *Step) HasTool() bool { return strings.TrimSpace(s.Tool) != "" }

// DisplayName returns the BPMN element name: the condition for gateways
// (falling back to the label), the label otherwise.
func (s *Step) DisplayName() string {
	if s.Kind == KindExclusiveGateway && strings.TrimSpace(s.Condition) != "" {
		return s.Condition
	}
	return s.Label
}

// NewStepID returns a fresh opaque step identifier.
func NewStepID() string {
	return uuid.NewString()
}

// =============================================================================
// Table
// =============================================================================

// Table is a titled process table, the unit persisted by the store.
type Table struct {
	ID        string    `json:"id,omitempty" yaml:"id,omitempty" bson:"_id,omitempty"`
	Title     string    `json:"title,omitempty" yaml:"title,omitempty" bson:"title,omitempty"`
	Steps     []Step    `json:"steps" yaml:"steps" bson:"steps" validate:"required,min=1,dive"`
	UpdatedAt time.Time `json:"updated_at,omitzero" yaml:"updated_at,omitempty" bson:"updated_at,omitempty"`
}

// Lanes returns the distinct lane names in first-appearance order.
func (t *Table) Lanes() []string {
	seen := make(map[string]bool)
	var lanes []string
	for _, s := range t.Steps {
		if !seen[s.Lane] {
			seen[s.Lane] = true
			lanes = append(lanes, s.Lane)
		}
	}
	return lanes
}

// Find returns the step with the given id, or nil.
func (t *Table) Find(id string) *Step {
	for i := range t.Steps {
		if t.Steps[i].ID == id {
			return &t.Steps[i]
		}
	}
	return nil
}

// Append adds a step, assigning a new id when the step has none, and returns
// the id used.
func (t *Table) Append(s Step) string {
	if s.ID == "" {
		s.ID = NewStepID()
	}
	t.Steps = append(t.Steps, s)
	return s.ID
}
