// Package graph builds the lookup tables and layer assignment the BPMN
// layout, router and serializer share.
//
// [Build] turns an ordered step table into a [Model]:
//   - ByID: id → step
//   - ByLane / LaneOrder: steps grouped by lane, lanes in first-seen order
//   - Edges: one [Edge] per sequence flow that will be emitted
//   - LayerOf: longest forward distance from a start event
//
// Successor references that name no step are not errors. They become edges
// to the synthetic fallback terminal [FallbackEndID] with Dangling set, so a
// half-edited table still renders.
package graph

import (
	"fmt"
	"strings"

	"github.com/tnpagents/processmate/pkg/bpmn/textmetrics"
	perrors "github.com/tnpagents/processmate/pkg/errors"
	"github.com/tnpagents/processmate/pkg/process"
)

// FallbackEndID is the step id of the synthetic end event that dangling
// references resolve to. It never collides with a table id because Build
// rejects it as input.
const FallbackEndID = "__fallback_end__"

// FallbackEndLabel is the name given to the synthetic end event.
const FallbackEndLabel = "Fin"

// Branch identifies which successor reference an edge comes from.
type Branch string

// Branches.
const (
	BranchYes  Branch = "yes"
	BranchNo   Branch = "no"
	BranchNext Branch = "next"
)

// Sequence flow names.
const (
	NameYes     = "Oui"
	NameNo      = "Non"
	NameConfirm = "Confirmer"
	NameCancel  = "Annuler"
)

// Sentinel input errors.
var (
	ErrEmptyTable = perrors.New(perrors.ErrCodeEmptyTable, "no steps to generate a diagram from")
	ErrEmptyID    = perrors.New(perrors.ErrCodeInvalidInput, "step id cannot be empty")
)

// DuplicateIDError reports two rows sharing an id.
type DuplicateIDError struct {
	ID          string
	First, Next int // zero-based row indexes
}

func (e *DuplicateIDError) Error() string {
	return fmt.Sprintf("duplicate step id %q (rows %d and %d)", e.ID, e.First+1, e.Next+1)
}

// Edge is one sequence flow.
type Edge struct {
	SourceID string
	Branch   Branch
	TargetID string // FallbackEndID when Dangling
	Ref      string // the reference as written in the table
	Name     string // "Oui", "Non", "Confirmer", "Annuler" or empty
	Dangling bool
}

// Key returns "{sourceId}_{branch}", unique per model.
func (e Edge) Key() string { return e.SourceID + "_" + string(e.Branch) }

// Labeled reports whether the edge carries a branch label.
func (e Edge) Labeled() bool { return e.Name != "" }

// IgnoredRef is a successor reference that produces no sequence flow
// because the source kind cannot carry it.
type IgnoredRef struct {
	StepID string `json:"step_id"`
	Branch Branch `json:"branch"`
	Ref    string `json:"ref"`
	Reason string `json:"reason"`
}

// Model is the graph view of a step table. It is built once per generation
// and treated as read-only afterwards.
type Model struct {
	Steps     []process.Step
	ByID      map[string]*process.Step
	ByLane    map[string][]*process.Step
	LaneOrder []string
	LaneIndex map[string]int
	Edges     []Edge
	LayerOf   map[string]int
	Ignored   []IgnoredRef
}

// Build validates ids and kinds, groups lanes, derives edges and assigns layers.
// The input slice is copied and never modified.
//
// Build fails with [ErrEmptyTable] for an empty table, [ErrEmptyID] for a
// blank id, and a DUPLICATE_ID error wrapping [*DuplicateIDError] when two
// rows share an id.
func Build(steps []process.Step) (*Model, error) {
	if len(steps) == 0 {
		return nil, ErrEmptyTable
	}

	m := &Model{
		Steps:     make([]process.Step, len(steps)),
		ByID:      make(map[string]*process.Step, len(steps)),
		ByLane:    make(map[string][]*process.Step),
		LaneIndex: make(map[string]int),
		LayerOf:   make(map[string]int, len(steps)),
	}
	copy(m.Steps, steps)

	rowOf := make(map[string]int, len(steps))
	for i := range m.Steps {
		s := &m.Steps[i]
		if strings.TrimSpace(s.ID) == "" {
			return nil, fmt.Errorf("row %d: %w", i+1, ErrEmptyID)
		}
		if s.ID == FallbackEndID {
			return nil, perrors.New(perrors.ErrCodeInvalidInput, "step id %q is reserved", FallbackEndID)
		}
		if first, ok := rowOf[s.ID]; ok {
			dup := &DuplicateIDError{ID: s.ID, First: first, Next: i}
			return nil, perrors.Wrap(perrors.ErrCodeDuplicateID, dup, "invalid table")
		}
		kind, err := process.ParseKind(string(s.Kind))
		if err != nil {
			return nil, perrors.Wrap(perrors.ErrCodeInvalidInput, err, "step %q", s.ID)
		}
		s.Kind = kind
		rowOf[s.ID] = i
		m.ByID[s.ID] = s

		if _, ok := m.LaneIndex[s.Lane]; !ok {
			m.LaneIndex[s.Lane] = len(m.LaneOrder)
			m.LaneOrder = append(m.LaneOrder, s.Lane)
		}
		m.ByLane[s.Lane] = append(m.ByLane[s.Lane], s)
	}

	for i := range m.Steps {
		m.addEdges(&m.Steps[i])
	}
	m.assignLayers()
	return m, nil
}

func (m *Model) addEdges(s *process.Step) {
	yes, no := s.HasYes(), s.HasNo()
	switch s.Kind {
	case process.KindEndEvent:
		if yes {
			m.ignore(s, BranchYes, s.OnYes, "end events have no outgoing flow")
		}
		if no {
			m.ignore(s, BranchNo, s.OnNo, "end events have no outgoing flow")
		}
	case process.KindExclusiveGateway:
		if yes {
			m.addEdge(s, BranchYes, s.OnYes, NameYes)
		}
		if no {
			m.addEdge(s, BranchNo, s.OnNo, NameNo)
		}
	case process.KindTask:
		switch {
		case yes && no:
			m.addEdge(s, BranchYes, s.OnYes, NameConfirm)
			m.addEdge(s, BranchNo, s.OnNo, NameCancel)
		case yes:
			m.addEdge(s, BranchNext, s.OnYes, "")
		case no:
			m.ignore(s, BranchNo, s.OnNo, "negative branch without an affirmative branch")
		}
	default:
		if yes {
			m.addEdge(s, BranchNext, s.OnYes, "")
		}
		if no {
			m.ignore(s, BranchNo, s.OnNo, "start events have a single outgoing flow")
		}
	}
}

func (m *Model) addEdge(s *process.Step, b Branch, ref, name string) {
	ref = strings.TrimSpace(ref)
	e := Edge{SourceID: s.ID, Branch: b, TargetID: ref, Ref: ref, Name: name}
	if _, ok := m.ByID[ref]; !ok {
		e.TargetID = FallbackEndID
		e.Dangling = true
	}
	m.Edges = append(m.Edges, e)
}

func (m *Model) ignore(s *process.Step, b Branch, ref, reason string) {
	m.Ignored = append(m.Ignored, IgnoredRef{StepID: s.ID, Branch: b, Ref: strings.TrimSpace(ref), Reason: reason})
}

// =============================================================================
// Queries
// =============================================================================

// Outgoing returns the edges leaving id in emission order.
func (m *Model) Outgoing(id string) []Edge {
	var out []Edge
	for _, e := range m.Edges {
		if e.SourceID == id {
			out = append(out, e)
		}
	}
	return out
}

// DanglingCount returns how many edges were redirected to the fallback
// terminal.
func (m *Model) DanglingCount() int {
	n := 0
	for _, e := range m.Edges {
		if e.Dangling {
			n++
		}
	}
	return n
}

// HasFallback reports whether the fallback terminal is needed.
func (m *Model) HasFallback() bool { return m.DanglingCount() > 0 }

// MaxLayer returns the largest layer assigned to a step.
func (m *Model) MaxLayer() int {
	top := 0
	for _, l := range m.LayerOf {
		top = max(top, l)
	}
	return top
}

// FallbackLayer is the layer reported for the fallback terminal: one past
// every real step.
func (m *Model) FallbackLayer() int { return m.MaxLayer() + 1 }

// Text returns the text a step's box must hold.
func (m *Model) Text(id string) string {
	if s, ok := m.ByID[id]; ok {
		return s.DisplayName()
	}
	if id == FallbackEndID {
		return FallbackEndLabel
	}
	return ""
}

// Heights estimates a box height for every task from its label. Events and
// gateways have fixed sizes and are omitted.
func (m *Model) Heights(boxWidth float64, metrics textmetrics.Metrics) map[string]float64 {
	h := make(map[string]float64, len(m.Steps))
	for i := range m.Steps {
		s := &m.Steps[i]
		if s.Kind == process.KindTask {
			h[s.ID] = textmetrics.EstimateHeight(s.Label, boxWidth, metrics)
		}
	}
	return h
}
