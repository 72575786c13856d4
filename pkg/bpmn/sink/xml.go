// Package sink serializes a laid-out and routed process into BPMN 2.0 XML
// with diagram interchange (DI) coordinates.
//
// The document has one collaboration with a single vertical pool, one
// process with a lane per actor, and a diagram plane whose shapes and edges
// take their coordinates verbatim from the layout and the router. Text is
// escaped by the encoder and characters XML cannot carry are dropped, so
// serialization never fails because of label content.
package sink

import (
	"fmt"
	"math"
	"strconv"

	"github.com/beevik/etree"

	"github.com/tnpagents/processmate/pkg/bpmn/graph"
	"github.com/tnpagents/processmate/pkg/bpmn/layout"
	"github.com/tnpagents/processmate/pkg/bpmn/route"
	"github.com/tnpagents/processmate/pkg/process"
)

// XML namespaces.
const (
	NamespaceModel = "http://www.omg.org/spec/BPMN/20100524/MODEL"
	NamespaceDI    = "http://www.omg.org/spec/BPMN/20100524/DI"
	NamespaceDC    = "http://www.omg.org/spec/DD/20100524/DC"
	NamespaceDDI   = "http://www.omg.org/spec/DD/20100524/DI"
	NamespaceBioc  = "http://bpmn.io/schema/bpmn/biocolor/1.0"
	NamespaceColor = "http://www.omg.org/spec/BPMN/non-normative/color/1.0"
)

// DefaultTitle names the pool when no title is given.
const DefaultTitle = "Processus"

// Options controls serialization.
type Options struct {
	Title    string // pool name
	NoColors bool   // omit lane colour attributes
	Exporter string // exporter attribute on definitions
	Version  string // exporterVersion attribute on definitions
}

// Serialize renders the document. paths must come from route.Route on the
// same model and layout; a path or node missing from l is an error.
func Serialize(m *graph.Model, l *layout.Layout, paths []route.Path, opts Options) (string, error) {
	w := &writer{m: m, l: l, ids: newIDs(m), opts: opts}
	doc, err := w.document(paths)
	if err != nil {
		return "", err
	}
	doc.Indent(2)
	return doc.WriteToString()
}

type writer struct {
	m    *graph.Model
	l    *layout.Layout
	ids  *ids
	opts Options
}

func (w *writer) document(paths []route.Path) (*etree.Document, error) {
	doc := etree.NewDocument()
	doc.CreateProcInst("xml", `version="1.0" encoding="UTF-8"`)

	defs := doc.CreateElement("definitions")
	defs.CreateAttr("xmlns", NamespaceModel)
	defs.CreateAttr("xmlns:bpmndi", NamespaceDI)
	defs.CreateAttr("xmlns:dc", NamespaceDC)
	defs.CreateAttr("xmlns:di", NamespaceDDI)
	if !w.opts.NoColors {
		defs.CreateAttr("xmlns:bioc", NamespaceBioc)
		defs.CreateAttr("xmlns:color", NamespaceColor)
	}
	defs.CreateAttr("id", DefinitionsID)
	defs.CreateAttr("targetNamespace", "http://bpmn.io/schema/bpmn")
	if w.opts.Exporter != "" {
		defs.CreateAttr("exporter", w.opts.Exporter)
		defs.CreateAttr("exporterVersion", w.opts.Version)
	}

	title := w.opts.Title
	if title == "" {
		title = DefaultTitle
	}
	collab := defs.CreateElement("collaboration")
	collab.CreateAttr("id", CollaborationID)
	part := collab.CreateElement("participant")
	part.CreateAttr("id", ParticipantID)
	part.CreateAttr("name", cleanText(title))
	part.CreateAttr("processRef", ProcessID)

	proc := defs.CreateElement("process")
	proc.CreateAttr("id", ProcessID)
	proc.CreateAttr("isExecutable", "false")

	w.laneSet(proc)
	w.flowNodes(proc)
	if err := w.sequenceFlows(proc, paths); err != nil {
		return nil, err
	}
	w.annotations(proc)

	if err := w.diagram(defs, paths); err != nil {
		return nil, err
	}
	return doc, nil
}

// =============================================================================
// Process section
// =============================================================================

func (w *writer) laneSet(proc *etree.Element) {
	set := proc.CreateElement("laneSet")
	set.CreateAttr("id", LaneSetID)
	last := len(w.m.LaneOrder) - 1
	for i, name := range w.m.LaneOrder {
		lane := set.CreateElement("lane")
		lane.CreateAttr("id", laneID(i))
		lane.CreateAttr("name", cleanText(name))
		for _, s := range w.m.ByLane[name] {
			lane.CreateElement("flowNodeRef").SetText(w.ids.element(s.ID))
		}
		if i == last && w.m.HasFallback() {
			lane.CreateElement("flowNodeRef").SetText(FallbackEndID)
		}
		for _, s := range w.m.ByLane[name] {
			if s.HasTool() {
				lane.CreateElement("flowNodeRef").SetText(w.ids.annotation(s.ID))
			}
		}
	}
}

func (w *writer) flowNodes(proc *etree.Element) {
	for i := range w.m.Steps {
		s := &w.m.Steps[i]
		el := proc.CreateElement(elementTag(s.Kind))
		el.CreateAttr("id", w.ids.element(s.ID))
		el.CreateAttr("name", cleanText(s.DisplayName()))
		for _, e := range w.m.Edges {
			if e.TargetID == s.ID {
				el.CreateElement("incoming").SetText(w.ids.flow(e.SourceID, e.Branch))
			}
		}
		for _, e := range w.m.Outgoing(s.ID) {
			el.CreateElement("outgoing").SetText(w.ids.flow(e.SourceID, e.Branch))
		}
	}
	if w.m.HasFallback() {
		el := proc.CreateElement("endEvent")
		el.CreateAttr("id", FallbackEndID)
		el.CreateAttr("name", graph.FallbackEndLabel)
		for _, e := range w.m.Edges {
			if e.Dangling {
				el.CreateElement("incoming").SetText(w.ids.flow(e.SourceID, e.Branch))
			}
		}
	}
}

func (w *writer) sequenceFlows(proc *etree.Element, paths []route.Path) error {
	if len(paths) != len(w.m.Edges) {
		return fmt.Errorf("sink: %d routed paths for %d edges", len(paths), len(w.m.Edges))
	}
	for _, e := range w.m.Edges {
		el := proc.CreateElement("sequenceFlow")
		el.CreateAttr("id", w.ids.flow(e.SourceID, e.Branch))
		if e.Name != "" {
			el.CreateAttr("name", e.Name)
		}
		el.CreateAttr("sourceRef", w.ids.element(e.SourceID))
		el.CreateAttr("targetRef", w.ids.element(e.TargetID))
	}
	return nil
}

func (w *writer) annotations(proc *etree.Element) {
	for i := range w.m.Steps {
		s := &w.m.Steps[i]
		if !s.HasTool() {
			continue
		}
		ann := proc.CreateElement("textAnnotation")
		ann.CreateAttr("id", w.ids.annotation(s.ID))
		ann.CreateElement("text").SetText(cleanText(s.Tool))
	}
	for i := range w.m.Steps {
		s := &w.m.Steps[i]
		if !s.HasTool() {
			continue
		}
		as := proc.CreateElement("association")
		as.CreateAttr("id", w.ids.association(s.ID))
		as.CreateAttr("associationDirection", "None")
		as.CreateAttr("sourceRef", w.ids.element(s.ID))
		as.CreateAttr("targetRef", w.ids.annotation(s.ID))
	}
}

func elementTag(k process.Kind) string {
	switch k {
	case process.KindStartEvent:
		return "startEvent"
	case process.KindEndEvent:
		return "endEvent"
	case process.KindExclusiveGateway:
		return "exclusiveGateway"
	default:
		return "userTask"
	}
}

// =============================================================================
// Diagram section
// =============================================================================

func (w *writer) diagram(defs *etree.Element, paths []route.Path) error {
	d := defs.CreateElement("bpmndi:BPMNDiagram")
	d.CreateAttr("id", DiagramID)
	plane := d.CreateElement("bpmndi:BPMNPlane")
	plane.CreateAttr("id", PlaneID)
	plane.CreateAttr("bpmnElement", CollaborationID)

	pool := w.shape(plane, ParticipantID, w.l.Pool)
	pool.CreateAttr("isHorizontal", "false")

	for i, lane := range w.l.Lanes {
		el := w.shape(plane, laneID(i), lane.Box)
		el.CreateAttr("isHorizontal", "false")
		if !w.opts.NoColors {
			c := LaneColorAt(i)
			el.CreateAttr("bioc:stroke", c.Stroke)
			el.CreateAttr("bioc:fill", c.Fill)
			el.CreateAttr("color:background-color", c.Fill)
			el.CreateAttr("color:border-color", c.Stroke)
		}
	}

	for _, id := range w.l.Order {
		pos := w.l.Positions[id]
		b := pos.Box()
		el := w.shape(plane, w.ids.element(id), b)
		kind := process.KindEndEvent
		if s, ok := w.m.ByID[id]; ok {
			kind = s.Kind
		}
		if kind == process.KindExclusiveGateway {
			el.CreateAttr("isMarkerVisible", "true")
		}
		if kind != process.KindTask {
			// Events and gateways carry their name below the shape.
			lbl := el.CreateElement("bpmndi:BPMNLabel")
			bounds(lbl, layout.Box{X: b.CenterX() - 45, Y: b.Bottom() + 5, W: 90, H: 27})
		}
	}

	for i := range w.m.Steps {
		s := &w.m.Steps[i]
		ab, ok := w.l.Annotations[s.ID]
		if !ok {
			continue
		}
		w.shape(plane, w.ids.annotation(s.ID), ab)
	}

	for _, p := range paths {
		if _, ok := w.l.Positions[p.SourceID]; !ok {
			return fmt.Errorf("sink: path %s has unknown source %q", p.Key(), p.SourceID)
		}
		if _, ok := w.l.Positions[p.TargetID]; !ok {
			return fmt.Errorf("sink: path %s has unknown target %q", p.Key(), p.TargetID)
		}
		e := plane.CreateElement("bpmndi:BPMNEdge")
		e.CreateAttr("id", w.ids.flow(p.SourceID, p.Branch)+"_di")
		e.CreateAttr("bpmnElement", w.ids.flow(p.SourceID, p.Branch))
		for _, pt := range p.Waypoints {
			waypoint(e, pt)
		}
		if p.Label != nil {
			bounds(e.CreateElement("bpmndi:BPMNLabel"), *p.Label)
		}
	}

	for i := range w.m.Steps {
		s := &w.m.Steps[i]
		ab, ok := w.l.Annotations[s.ID]
		if !ok {
			continue
		}
		sb := w.l.Positions[s.ID].Box()
		e := plane.CreateElement("bpmndi:BPMNEdge")
		e.CreateAttr("id", w.ids.association(s.ID)+"_di")
		e.CreateAttr("bpmnElement", w.ids.association(s.ID))
		waypoint(e, layout.Point{X: sb.Right(), Y: ab.CenterY()})
		waypoint(e, layout.Point{X: ab.Left(), Y: ab.CenterY()})
	}
	return nil
}

func (w *writer) shape(plane *etree.Element, element string, b layout.Box) *etree.Element {
	el := plane.CreateElement("bpmndi:BPMNShape")
	el.CreateAttr("id", element+"_di")
	el.CreateAttr("bpmnElement", element)
	bounds(el, b)
	return el
}

func bounds(parent *etree.Element, b layout.Box) {
	el := parent.CreateElement("dc:Bounds")
	el.CreateAttr("x", coord(b.X))
	el.CreateAttr("y", coord(b.Y))
	el.CreateAttr("width", coord(b.W))
	el.CreateAttr("height", coord(b.H))
}

func waypoint(parent *etree.Element, p layout.Point) {
	el := parent.CreateElement("di:waypoint")
	el.CreateAttr("x", coord(p.X))
	el.CreateAttr("y", coord(p.Y))
}

// coord formats a coordinate with at most two decimals.
func coord(v float64) string {
	v = math.Round(v*100) / 100
	if v == 0 {
		v = 0 // normalise -0
	}
	return strconv.FormatFloat(v, 'f', -1, 64)
}
