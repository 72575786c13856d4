// Package layout places process steps in vertical swimlanes.
//
// Every lane is a column of fixed width. A step's x is fixed by its lane
// (centered in the column) and its y by the order in which steps are visited:
// steps are sorted by layer (stable, so ties keep table order) and each lane
// keeps a running offset that advances by the node height plus
// Config.VerticalSpacing. This is a lane-local packing heuristic, not a
// crossing-minimising layered drawing.
//
// Only task heights vary; they come from the text metrics of the label.
// Gateways and events have fixed sizes.
package layout

import (
	"fmt"
	"slices"

	"github.com/tnpagents/processmate/pkg/bpmn/graph"
	"github.com/tnpagents/processmate/pkg/bpmn/textmetrics"
	perrors "github.com/tnpagents/processmate/pkg/errors"
	"github.com/tnpagents/processmate/pkg/process"
)

// UnknownLaneError reports a step whose lane is not in the model's lane order.
type UnknownLaneError struct {
	StepID string
	Lane   string
}

func (e *UnknownLaneError) Error() string {
	return fmt.Sprintf("step %q references unknown lane %q", e.StepID, e.Lane)
}

// NodePosition is the computed placement of one step.
type NodePosition struct {
	X         float64 `json:"x"`
	Y         float64 `json:"y"`
	Width     float64 `json:"width"`
	Height    float64 `json:"height"`
	Layer     int     `json:"layer"`
	LaneIndex int     `json:"lane_index"`
}

// Box returns the node's bounding box.
func (p NodePosition) Box() Box {
	return Box{X: p.X, Y: p.Y, W: p.Width, H: p.Height}
}

// Lane is a laid-out swimlane.
type Lane struct {
	Name  string `json:"name"`
	Index int    `json:"index"`
	Box   Box    `json:"bounds"`
}

// Layout is the result of [Compute]. It is derived data: recompute it from
// the table, never patch it.
type Layout struct {
	Positions   map[string]NodePosition `json:"positions"`
	Order       []string                `json:"order"` // visitation order, fallback terminal last
	Lanes       []Lane                  `json:"lanes"`
	Pool        Box                     `json:"pool"`
	Annotations map[string]Box          `json:"annotations,omitempty"` // keyed by step id
	Config      Config                  `json:"-"`
}

// Box returns the bounding box of a placed node.
func (l *Layout) Box(id string) (Box, bool) {
	p, ok := l.Positions[id]
	if !ok {
		return Box{}, false
	}
	return p.Box(), true
}

// LaneNodes returns the ids placed in lane i, top to bottom.
func (l *Layout) LaneNodes(i int) []string {
	var ids []string
	for _, id := range l.Order {
		if l.Positions[id].LaneIndex == i {
			ids = append(ids, id)
		}
	}
	slices.SortStableFunc(ids, func(a, b string) int {
		ya, yb := l.Positions[a].Y, l.Positions[b].Y
		switch {
		case ya < yb:
			return -1
		case ya > yb:
			return 1
		}
		return 0
	})
	return ids
}

// Compute places every step of m, plus the fallback terminal when the model
// has dangling edges.
//
// heights gives the box height of each task; missing entries are estimated
// from the label with cfg's text metrics, so a nil map is valid.
//
// Compute fails with an UNKNOWN_LANE error wrapping [*UnknownLaneError] when
// a step's lane is not registered in m.LaneIndex.
func Compute(m *graph.Model, heights map[string]float64, cfg Config) (*Layout, error) {
	if err := cfg.Validate(); err != nil {
		return nil, perrors.Wrap(perrors.ErrCodeInvalidInput, err, "invalid layout configuration")
	}

	order := make([]int, len(m.Steps))
	for i := range order {
		order[i] = i
	}
	slices.SortStableFunc(order, func(a, b int) int {
		return m.LayerOf[m.Steps[a].ID] - m.LayerOf[m.Steps[b].ID]
	})

	l := &Layout{
		Positions:   make(map[string]NodePosition, len(m.Steps)+1),
		Order:       make([]string, 0, len(m.Steps)+1),
		Annotations: make(map[string]Box),
		Config:      cfg,
	}

	metrics := cfg.Metrics()
	offsets := make([]float64, len(m.LaneOrder))
	for i := range offsets {
		offsets[i] = cfg.TopMargin
	}

	for _, idx := range order {
		s := &m.Steps[idx]
		lane, ok := m.LaneIndex[s.Lane]
		if !ok || lane >= len(offsets) {
			return nil, perrors.Wrap(perrors.ErrCodeUnknownLane, &UnknownLaneError{StepID: s.ID, Lane: s.Lane}, "invalid table")
		}

		w, h := nodeSize(s, heights, cfg)
		if s.Kind == process.KindTask && h <= 0 {
			h = textmetrics.EstimateHeight(s.Label, cfg.TaskWidth, metrics)
		}
		l.place(s.ID, lane, m.LayerOf[s.ID], w, h, offsets[lane])
		offsets[lane] += h + cfg.VerticalSpacing
	}

	if m.HasFallback() {
		last := len(m.LaneOrder) - 1
		bottom := cfg.TopMargin
		for _, p := range l.Positions {
			bottom = max(bottom, p.Y+p.Height+cfg.VerticalSpacing)
		}
		l.place(graph.FallbackEndID, last, m.FallbackLayer(), cfg.EventSize, cfg.EventSize, bottom)
	}

	for i := range m.Steps {
		s := &m.Steps[i]
		if !s.HasTool() {
			continue
		}
		b := l.Positions[s.ID].Box()
		l.Annotations[s.ID] = Box{
			X: b.Right() + cfg.AnnotationGap,
			Y: b.Top(),
			W: cfg.AnnotationWidth,
			H: cfg.AnnotationHeight,
		}
	}

	l.frame(m.LaneOrder)
	return l, nil
}

func (l *Layout) place(id string, lane, layer int, w, h, y float64) {
	cfg := l.Config
	l.Positions[id] = NodePosition{
		X:         cfg.LaneLeft(lane) + (cfg.LaneWidth-w)/2,
		Y:         y,
		Width:     w,
		Height:    h,
		Layer:     layer,
		LaneIndex: lane,
	}
	l.Order = append(l.Order, id)
}

// frame sizes the pool and the lanes. All lanes share the height of the
// tallest lane content.
func (l *Layout) frame(laneOrder []string) {
	cfg := l.Config
	contentBottom := cfg.TopMargin
	for _, p := range l.Positions {
		contentBottom = max(contentBottom, p.Y+p.Height)
	}
	for _, a := range l.Annotations {
		contentBottom = max(contentBottom, a.Bottom())
	}

	laneTop := cfg.PoolTop + cfg.HeaderHeight
	laneHeight := contentBottom + cfg.LanePadding - laneTop
	l.Lanes = make([]Lane, len(laneOrder))
	for i, name := range laneOrder {
		l.Lanes[i] = Lane{
			Name:  name,
			Index: i,
			Box:   Box{X: cfg.LaneLeft(i), Y: laneTop, W: cfg.LaneWidth, H: laneHeight},
		}
	}
	l.Pool = Box{
		X: cfg.LaneMargin,
		Y: cfg.PoolTop,
		W: float64(len(laneOrder)) * cfg.LaneWidth,
		H: cfg.HeaderHeight + laneHeight,
	}
}

func nodeSize(s *process.Step, heights map[string]float64, cfg Config) (w, h float64) {
	switch s.Kind {
	case process.KindExclusiveGateway:
		return cfg.GatewaySize, cfg.GatewaySize
	case process.KindStartEvent, process.KindEndEvent:
		return cfg.EventSize, cfg.EventSize
	default:
		return cfg.TaskWidth, heights[s.ID]
	}
}
