package sink

import (
	"fmt"
	"strings"
	"unicode"

	"github.com/tnpagents/processmate/pkg/bpmn/graph"
	"github.com/tnpagents/processmate/pkg/process"
)

// Fixed element ids.
const (
	DefinitionsID   = "Definitions_1"
	CollaborationID = "Collaboration_1"
	ParticipantID   = "Participant_1"
	ProcessID       = "Process_1"
	LaneSetID       = "LaneSet_1"
	DiagramID       = "BPMNDiagram_1"
	PlaneID         = "BPMNPlane_1"
	FallbackEndID   = "Event_FallbackEnd"
)

// ids maps step ids to XML ids. Step ids are opaque text, XML ids must be
// NCNames, so each step gets a sanitized token, made unique in table order.
type ids struct {
	token map[string]string
	kind  map[string]process.Kind
}

func newIDs(m *graph.Model) *ids {
	x := &ids{
		token: make(map[string]string, len(m.Steps)),
		kind:  make(map[string]process.Kind, len(m.Steps)),
	}
	used := make(map[string]bool, len(m.Steps))
	for _, s := range m.Steps {
		base := sanitizeID(s.ID)
		tok := base
		for n := 2; used[tok]; n++ {
			tok = fmt.Sprintf("%s_%d", base, n)
		}
		used[tok] = true
		x.token[s.ID] = tok
		x.kind[s.ID] = s.Kind
	}
	return x
}

// element returns the flow node id of a step or of the fallback terminal.
func (x *ids) element(stepID string) string {
	if stepID == graph.FallbackEndID {
		return FallbackEndID
	}
	return kindPrefix(x.kind[stepID]) + x.token[stepID]
}

func (x *ids) flow(stepID string, b graph.Branch) string {
	return "Flow_" + x.token[stepID] + "_" + string(b)
}

func (x *ids) annotation(stepID string) string  { return "TextAnnotation_" + x.token[stepID] }
func (x *ids) association(stepID string) string { return "Association_" + x.token[stepID] }

func laneID(i int) string { return fmt.Sprintf("Lane_%d", i+1) }

func kindPrefix(k process.Kind) string {
	switch k {
	case process.KindStartEvent:
		return "StartEvent_"
	case process.KindEndEvent:
		return "EndEvent_"
	case process.KindExclusiveGateway:
		return "Gateway_"
	default:
		return "Activity_"
	}
}

// sanitizeID keeps letters, digits, '-', '_' and '.'; everything else
// becomes '_'.
func sanitizeID(s string) string {
	var b strings.Builder
	for _, r := range s {
		switch {
		case r < unicode.MaxASCII && (unicode.IsLetter(r) || unicode.IsDigit(r)),
			r == '-', r == '_', r == '.':
			b.WriteRune(r)
		default:
			b.WriteByte('_')
		}
	}
	if b.Len() == 0 {
		return "_"
	}
	return b.String()
}

// cleanText drops characters that are not allowed anywhere in an XML 1.0
// document. Invalid UTF-8 becomes U+FFFD. Escaping is left to the encoder.
func cleanText(s string) string {
	return strings.Map(func(r rune) rune {
		switch {
		case r == '\t', r == '\n', r == '\r':
			return r
		case r < 0x20, r == 0xFFFE, r == 0xFFFF:
			return -1
		}
		return r
	}, s)
}
