package layout

import (
	"errors"
	"slices"
	"testing"

	"github.com/tnpagents/processmate/pkg/bpmn/graph"
	perrors "github.com/tnpagents/processmate/pkg/errors"
	"github.com/tnpagents/processmate/pkg/process"
)

func buildModel(t *testing.T, steps []process.Step) *graph.Model {
	t.Helper()
	m, err := graph.Build(steps)
	if err != nil {
		t.Fatalf("graph.Build: %v", err)
	}
	return m
}

func exampleSteps() []process.Step {
	return []process.Step{
		{ID: "s", Label: "Start", Kind: process.KindStartEvent, Lane: "A", OnYes: "t"},
		{ID: "t", Label: "Do thing", Kind: process.KindTask, Lane: "A", OnYes: "g", Tool: "CRM"},
		{ID: "g", Kind: process.KindExclusiveGateway, Lane: "B", Condition: "OK?", OnYes: "e1", OnNo: "e2"},
		{ID: "e1", Label: "Done", Kind: process.KindEndEvent, Lane: "B"},
		{ID: "e2", Label: "Rejected", Kind: process.KindEndEvent, Lane: "B"},
	}
}

func TestComputeExample(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Text.CharWidth = 6.5
	m := buildModel(t, exampleSteps())
	l, err := Compute(m, map[string]float64{"t": 100}, cfg)
	if err != nil {
		t.Fatalf("Compute: %v", err)
	}

	s := l.Positions["s"]
	if s.LaneIndex != 0 || s.Width != cfg.EventSize || s.Y != cfg.TopMargin {
		t.Errorf("s = %+v", s)
	}
	if want := cfg.LaneMargin + (cfg.LaneWidth-cfg.EventSize)/2; s.X != want {
		t.Errorf("s.X = %v, want %v", s.X, want)
	}

	tk := l.Positions["t"]
	if tk.Height != 100 || tk.Y != cfg.TopMargin+cfg.EventSize+cfg.VerticalSpacing {
		t.Errorf("t = %+v", tk)
	}

	g := l.Positions["g"]
	if g.LaneIndex != 1 || g.Y != cfg.TopMargin || g.Layer != 2 {
		t.Errorf("g = %+v", g)
	}
	if want := cfg.LaneLeft(1) + (cfg.LaneWidth-cfg.GatewaySize)/2; g.X != want {
		t.Errorf("g.X = %v, want %v", g.X, want)
	}

	e1, e2 := l.Positions["e1"], l.Positions["e2"]
	if e2.Y != e1.Y+e1.Height+cfg.VerticalSpacing {
		t.Errorf("e2.Y = %v, want below e1", e2.Y)
	}

	if len(l.Lanes) != 2 || l.Lanes[0].Box.H != l.Lanes[1].Box.H {
		t.Errorf("lanes = %+v", l.Lanes)
	}
	if _, ok := l.Positions[graph.FallbackEndID]; ok {
		t.Error("fallback terminal placed without dangling edges")
	}

	a, ok := l.Annotations["t"]
	if !ok || a.X != tk.Box().Right()+cfg.AnnotationGap || a.Y != tk.Y {
		t.Errorf("annotation = %+v (present %v)", a, ok)
	}
	if a.Right() > cfg.LaneLeft(1) {
		t.Errorf("annotation right %v crosses into lane 1 at %v", a.Right(), cfg.LaneLeft(1))
	}
}

func TestComputeNoOverlapInLane(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Text.CharWidth = 6.5
	steps := []process.Step{
		{ID: "s", Kind: process.KindStartEvent, Lane: "A", OnYes: "a"},
		{ID: "a", Label: "A fairly long label that will wrap over several lines for sure, because it keeps going with extra words at the end", Kind: process.KindTask, Lane: "A", OnYes: "b"},
		{ID: "b", Label: "Short", Kind: process.KindTask, Lane: "B", OnYes: "c"},
		{ID: "c", Kind: process.KindExclusiveGateway, Lane: "A", Condition: "Again?", OnYes: "a", OnNo: "d"},
		{ID: "d", Label: "Archive", Kind: process.KindTask, Lane: "A", OnYes: "e"},
		{ID: "e", Kind: process.KindEndEvent, Lane: "B"},
		{ID: "orphan", Label: "Orphan", Kind: process.KindTask, Lane: "A"},
	}
	m := buildModel(t, steps)
	l, err := Compute(m, nil, cfg)
	if err != nil {
		t.Fatal(err)
	}
	if len(l.Positions) != len(steps) {
		t.Fatalf("placed %d nodes, want %d", len(l.Positions), len(steps))
	}
	for lane := range l.Lanes {
		ids := l.LaneNodes(lane)
		for i := 1; i < len(ids); i++ {
			prev, next := l.Positions[ids[i-1]], l.Positions[ids[i]]
			if next.Y < prev.Y+prev.Height+cfg.VerticalSpacing {
				t.Errorf("lane %d: %s at y=%v overlaps %s ending at %v", lane, ids[i], next.Y, ids[i-1], prev.Y+prev.Height)
			}
		}
	}
	if h := l.Positions["a"].Height; h <= cfg.Text.MinHeight || h <= l.Positions["d"].Height {
		t.Errorf("long label height = %v, want > min %v and > short label %v", h, cfg.Text.MinHeight, l.Positions["d"].Height)
	}
	// Orphans sit at layer 0, so they are packed before deeper steps.
	if l.Positions["orphan"].Y >= l.Positions["a"].Y {
		t.Errorf("orphan should be placed before layer-1 steps in its lane")
	}
}

func TestComputeStableTies(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Text.CharWidth = 6.5
	steps := []process.Step{
		{ID: "x", Label: "x", Kind: process.KindTask, Lane: "A"},
		{ID: "y", Label: "y", Kind: process.KindTask, Lane: "A"},
		{ID: "z", Label: "z", Kind: process.KindTask, Lane: "A"},
	}
	l, err := Compute(buildModel(t, steps), nil, cfg)
	if err != nil {
		t.Fatal(err)
	}
	if got := l.LaneNodes(0); !slices.Equal(got, []string{"x", "y", "z"}) {
		t.Errorf("order = %v, want table order", got)
	}
}

func TestComputeFallbackTerminal(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Text.CharWidth = 6.5
	steps := []process.Step{
		{ID: "s", Kind: process.KindStartEvent, Lane: "A", OnYes: "t"},
		{ID: "t", Label: "Work", Kind: process.KindTask, Lane: "B", OnYes: "missing_id"},
	}
	l, err := Compute(buildModel(t, steps), nil, cfg)
	if err != nil {
		t.Fatal(err)
	}
	f, ok := l.Positions[graph.FallbackEndID]
	if !ok {
		t.Fatal("fallback terminal not placed")
	}
	if f.LaneIndex != 1 || f.Layer != 2 {
		t.Errorf("fallback = %+v", f)
	}
	for id, p := range l.Positions {
		if id != graph.FallbackEndID && f.Y < p.Y+p.Height {
			t.Errorf("fallback at y=%v is not below %s", f.Y, id)
		}
	}
	if l.Order[len(l.Order)-1] != graph.FallbackEndID {
		t.Errorf("fallback should be last in Order")
	}
	if bottom := l.Lanes[1].Box.Bottom(); bottom < f.Y+f.Height {
		t.Errorf("lane bottom %v does not contain fallback", bottom)
	}
}

func TestComputeUnknownLane(t *testing.T) {
	m := buildModel(t, exampleSteps())
	delete(m.LaneIndex, "B")
	_, err := Compute(m, nil, DefaultConfig())
	var ule *UnknownLaneError
	if !errors.As(err, &ule) {
		t.Fatalf("error = %v, want UnknownLaneError", err)
	}
	if ule.Lane != "B" || !perrors.Is(err, perrors.ErrCodeUnknownLane) {
		t.Errorf("error = %+v", ule)
	}
}

func TestConfigValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"zero lane width", func(c *Config) { c.LaneWidth = 0 }},
		{"narrow lane", func(c *Config) { c.LaneWidth = c.TaskWidth }},
		{"negative spacing", func(c *Config) { c.VerticalSpacing = -1 }},
		{"max below min", func(c *Config) { c.Text.MaxHeight = 10 }},
		{"top margin in header", func(c *Config) { c.TopMargin = c.PoolTop }},
	}
	if err := DefaultConfig().Validate(); err != nil {
		t.Fatalf("DefaultConfig().Validate() = %v", err)
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.mutate(&cfg)
			if err := cfg.Validate(); err == nil {
				t.Error("Validate() = nil, want error")
			}
		})
	}
}

func TestBoxSegmentCrosses(t *testing.T) {
	b := Box{X: 10, Y: 10, W: 20, H: 20}
	tests := []struct {
		name string
		p, q Point
		want bool
	}{
		{"through", Point{0, 20}, Point{50, 20}, true},
		{"vertical through", Point{15, 0}, Point{15, 50}, true},
		{"along border", Point{10, 0}, Point{10, 50}, false},
		{"outside", Point{0, 5}, Point{50, 5}, false},
		{"stops short", Point{0, 20}, Point{10, 20}, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := b.SegmentCrosses(tt.p, tt.q); got != tt.want {
				t.Errorf("SegmentCrosses(%v, %v) = %v, want %v", tt.p, tt.q, got, tt.want)
			}
		})
	}
}
