package route

import (
	"reflect"
	"testing"

	"github.com/tnpagents/processmate/pkg/bpmn/graph"
	"github.com/tnpagents/processmate/pkg/bpmn/layout"
	"github.com/tnpagents/processmate/pkg/process"
)

func routeSteps(t *testing.T, steps []process.Step) (*graph.Model, *layout.Layout, []Path) {
	t.Helper()
	m, err := graph.Build(steps)
	if err != nil {
		t.Fatalf("graph.Build: %v", err)
	}
	cfg := layout.DefaultConfig()
	cfg.Text.CharWidth = 6.5
	l, err := layout.Compute(m, nil, cfg)
	if err != nil {
		t.Fatalf("layout.Compute: %v", err)
	}
	paths, err := Route(m, l)
	if err != nil {
		t.Fatalf("Route: %v", err)
	}
	return m, l, paths
}

// checkPaths asserts the invariants every routing must hold: one path per
// edge, at least two points, endpoints on the node borders and no segment
// through the interior of any node.
func checkPaths(t *testing.T, m *graph.Model, l *layout.Layout, paths []Path) {
	t.Helper()
	if len(paths) != len(m.Edges) {
		t.Fatalf("len(paths) = %d, want %d", len(paths), len(m.Edges))
	}
	for i, p := range paths {
		if p.Key() != m.Edges[i].Key() {
			t.Errorf("path %d key = %s, want %s", i, p.Key(), m.Edges[i].Key())
		}
		if len(p.Waypoints) < 2 {
			t.Errorf("%s: %d waypoints, want >= 2", p.Key(), len(p.Waypoints))
			continue
		}
		src, _ := l.Box(p.SourceID)
		dst, _ := l.Box(p.TargetID)
		if !onBorder(src, p.Waypoints[0]) {
			t.Errorf("%s: first point %v not on source border %+v", p.Key(), p.Waypoints[0], src)
		}
		if !onBorder(dst, p.Waypoints[len(p.Waypoints)-1]) {
			t.Errorf("%s: last point %v not on target border %+v", p.Key(), p.Waypoints[len(p.Waypoints)-1], dst)
		}
		for j := 1; j < len(p.Waypoints); j++ {
			a, b := p.Waypoints[j-1], p.Waypoints[j]
			if a.X != b.X && a.Y != b.Y {
				t.Errorf("%s: segment %v-%v is not orthogonal", p.Key(), a, b)
			}
		}
		for id, pos := range l.Positions {
			if p.Crosses(pos.Box()) {
				t.Errorf("%s passes through node %s: %v", p.Key(), id, p.Waypoints)
			}
		}
	}
}

func onBorder(b layout.Box, p layout.Point) bool {
	inX := p.X >= b.Left() && p.X <= b.Right()
	inY := p.Y >= b.Top() && p.Y <= b.Bottom()
	return (inX && (p.Y == b.Top() || p.Y == b.Bottom())) || (inY && (p.X == b.Left() || p.X == b.Right()))
}

func exampleSteps() []process.Step {
	return []process.Step{
		{ID: "s", Label: "Start", Kind: process.KindStartEvent, Lane: "A", OnYes: "t"},
		{ID: "t", Label: "Do thing", Kind: process.KindTask, Lane: "A", OnYes: "g"},
		{ID: "g", Kind: process.KindExclusiveGateway, Lane: "B", Condition: "OK?", OnYes: "e1", OnNo: "e2"},
		{ID: "e1", Label: "Done", Kind: process.KindEndEvent, Lane: "B"},
		{ID: "e2", Label: "Rejected", Kind: process.KindEndEvent, Lane: "B"},
	}
}

func TestRouteExample(t *testing.T) {
	m, l, paths := routeSteps(t, exampleSteps())
	checkPaths(t, m, l, paths)
	idx := Index(paths)

	st := idx["s_next"]
	if len(st.Waypoints) != 2 || st.Waypoints[0].X != st.Waypoints[1].X {
		t.Errorf("s_next should be a straight vertical connector, got %v", st.Waypoints)
	}

	tg := idx["t_next"]
	if len(tg.Waypoints) != 4 {
		t.Errorf("t_next should be a 4-point elbow, got %v", tg.Waypoints)
	}
	if tg.Label != nil {
		t.Error("unnamed edge has a label")
	}

	yes, no := idx["g_yes"], idx["g_no"]
	if yes.Waypoints[0] == no.Waypoints[0] {
		t.Errorf("gateway branches share origin %v", yes.Waypoints[0])
	}
	if yes.Label == nil || no.Label == nil {
		t.Fatal("gateway branches must carry labels")
	}
	if yes.Label.Intersects(*no.Label) {
		t.Errorf("labels overlap: %+v %+v", *yes.Label, *no.Label)
	}
	if yes.Name != graph.NameYes || no.Name != graph.NameNo {
		t.Errorf("names = %q, %q", yes.Name, no.Name)
	}
}

func TestRouteBranchesToSameSide(t *testing.T) {
	steps := []process.Step{
		{ID: "s", Kind: process.KindStartEvent, Lane: "A", OnYes: "g"},
		{ID: "g", Kind: process.KindExclusiveGateway, Lane: "A", Condition: "?", OnYes: "a", OnNo: "b"},
		{ID: "a", Label: "Approve", Kind: process.KindTask, Lane: "B"},
		{ID: "b", Label: "Reject", Kind: process.KindTask, Lane: "C"},
	}
	m, l, paths := routeSteps(t, steps)
	checkPaths(t, m, l, paths)
	idx := Index(paths)
	g, _ := l.Box("g")

	yes, no := idx["g_yes"], idx["g_no"]
	if yes.Waypoints[0].X != g.Right() {
		t.Errorf("yes should leave from the right, got %v", yes.Waypoints[0])
	}
	if no.Waypoints[0].Y != g.Bottom() {
		t.Errorf("no should leave from the bottom, got %v", no.Waypoints[0])
	}
}

func TestRouteBranchesToSameTarget(t *testing.T) {
	steps := []process.Step{
		{ID: "g", Kind: process.KindExclusiveGateway, Lane: "A", Condition: "?", OnYes: "a", OnNo: "a"},
		{ID: "a", Label: "Continue", Kind: process.KindTask, Lane: "A"},
	}
	m, l, paths := routeSteps(t, steps)
	checkPaths(t, m, l, paths)
	idx := Index(paths)
	if idx["g_yes"].Waypoints[0] == idx["g_no"].Waypoints[0] {
		t.Error("branches to the same target must still diverge")
	}
}

func TestRouteAroundIntermediateLane(t *testing.T) {
	steps := []process.Step{
		{ID: "s", Kind: process.KindStartEvent, Lane: "A", OnYes: "x"},
		{ID: "b1", Label: "Blocker", Kind: process.KindTask, Lane: "B"},
		{ID: "b2", Label: "Another blocker", Kind: process.KindTask, Lane: "B"},
		{ID: "x", Label: "Target", Kind: process.KindTask, Lane: "C"},
	}
	m, l, paths := routeSteps(t, steps)
	checkPaths(t, m, l, paths)
	if n := len(paths[0].Waypoints); n != 6 {
		t.Errorf("expected a 6-point channel route, got %d points: %v", n, paths[0].Waypoints)
	}
}

func TestRouteBackEdgeAndSkip(t *testing.T) {
	steps := []process.Step{
		{ID: "s", Kind: process.KindStartEvent, Lane: "A", OnYes: "a"},
		{ID: "a", Label: "Prepare file", Kind: process.KindTask, Lane: "A", OnYes: "b"},
		{ID: "b", Label: "Review", Kind: process.KindTask, Lane: "A", OnYes: "g"},
		{ID: "g", Kind: process.KindExclusiveGateway, Lane: "A", Condition: "Complete?", OnYes: "e", OnNo: "a"},
		{ID: "e", Kind: process.KindEndEvent, Lane: "A"},
		{ID: "skip", Kind: process.KindStartEvent, Lane: "A", OnYes: "e"},
	}
	m, l, paths := routeSteps(t, steps)
	checkPaths(t, m, l, paths)
	back := Index(paths)["g_no"]
	if len(back.Waypoints) < 4 {
		t.Errorf("back edge should detour, got %v", back.Waypoints)
	}
}

func TestRouteSelfLoop(t *testing.T) {
	steps := []process.Step{
		{ID: "s", Kind: process.KindStartEvent, Lane: "A", OnYes: "g"},
		{ID: "g", Kind: process.KindExclusiveGateway, Lane: "A", Condition: "Retry?", OnYes: "g", OnNo: "e"},
		{ID: "e", Kind: process.KindEndEvent, Lane: "A"},
	}
	m, l, paths := routeSteps(t, steps)
	checkPaths(t, m, l, paths)
	loop := Index(paths)["g_yes"]
	if len(loop.Waypoints) < 4 {
		t.Errorf("self loop = %v", loop.Waypoints)
	}
}

func TestRouteDangling(t *testing.T) {
	steps := []process.Step{
		{ID: "s", Kind: process.KindStartEvent, Lane: "A", OnYes: "t"},
		{ID: "t", Label: "Work", Kind: process.KindTask, Lane: "B", OnYes: "missing_id"},
	}
	m, l, paths := routeSteps(t, steps)
	checkPaths(t, m, l, paths)
	p := Index(paths)["t_next"]
	if p.TargetID != graph.FallbackEndID {
		t.Errorf("target = %q, want fallback terminal", p.TargetID)
	}
}

func TestRouteParallelSlots(t *testing.T) {
	steps := []process.Step{
		{ID: "s1", Kind: process.KindStartEvent, Lane: "A", OnYes: "x"},
		{ID: "s2", Kind: process.KindStartEvent, Lane: "A", OnYes: "y"},
		{ID: "x", Label: "X", Kind: process.KindTask, Lane: "B"},
		{ID: "y", Label: "Y", Kind: process.KindTask, Lane: "B"},
		{ID: "z", Label: "Z", Kind: process.KindTask, Lane: "B"},
	}
	_, _, paths := routeSteps(t, steps)
	// Both legs run down the A|B boundary over overlapping spans.
	a, b := Index(paths)["s1_next"], Index(paths)["s2_next"]
	if len(a.Waypoints) == 4 && len(b.Waypoints) == 4 && a.Waypoints[1].X == b.Waypoints[1].X {
		t.Errorf("parallel connectors share corridor x=%v", a.Waypoints[1].X)
	}
}

func TestRouteDeterministic(t *testing.T) {
	_, _, a := routeSteps(t, exampleSteps())
	_, _, b := routeSteps(t, exampleSteps())
	if !reflect.DeepEqual(a, b) {
		t.Error("routing is not deterministic")
	}
}

func TestSimplify(t *testing.T) {
	tests := []struct {
		name string
		in   []layout.Point
		want []layout.Point
	}{
		{"duplicates", []layout.Point{pt(0, 0), pt(0, 0), pt(0, 10)}, []layout.Point{pt(0, 0), pt(0, 10)}},
		{"collinear", []layout.Point{pt(0, 0), pt(0, 5), pt(0, 10), pt(10, 10)}, []layout.Point{pt(0, 0), pt(0, 10), pt(10, 10)}},
		{"flat elbow", []layout.Point{pt(0, 5), pt(10, 5), pt(10, 5), pt(20, 5)}, []layout.Point{pt(0, 5), pt(20, 5)}},
		{"degenerate", []layout.Point{pt(1, 1), pt(1, 1)}, []layout.Point{pt(1, 1), pt(1, 1)}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := simplify(tt.in); !reflect.DeepEqual(got, tt.want) {
				t.Errorf("simplify() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestMidpoint(t *testing.T) {
	pts := []layout.Point{pt(0, 0), pt(0, 10), pt(30, 10)}
	if got := Midpoint(pts); got != pt(10, 10) {
		t.Errorf("Midpoint() = %v", got)
	}
}

func pt(x, y float64) layout.Point { return layout.Point{X: x, Y: y} }

// checkAnnotations asserts that no path runs through the tool annotation of
// a step it does not connect.
func checkAnnotations(t *testing.T, l *layout.Layout, paths []Path) {
	t.Helper()
	for _, p := range paths {
		for id, a := range l.Annotations {
			if id == p.SourceID || id == p.TargetID {
				continue
			}
			if p.Crosses(a) {
				t.Errorf("%s crosses the annotation of %s: %v", p.Key(), id, p.Waypoints)
			}
		}
	}
}

func TestRouteAvoidsAnnotations(t *testing.T) {
	tests := []struct {
		name  string
		steps []process.Step
	}{
		{
			name: "boundary legs beside annotated tasks",
			steps: []process.Step{
				{ID: "s1", Kind: process.KindStartEvent, Lane: "A", OnYes: "x1"},
				{ID: "s2", Kind: process.KindStartEvent, Lane: "A", OnYes: "x2"},
				{ID: "s3", Kind: process.KindStartEvent, Lane: "A", OnYes: "x3"},
				{ID: "a1", Label: "Check stock", Kind: process.KindTask, Lane: "A", Tool: "ERP"},
				{ID: "a2", Label: "Notify", Kind: process.KindTask, Lane: "A", Tool: "Mail"},
				{ID: "b1", Label: "Blocker", Kind: process.KindTask, Lane: "B"},
				{ID: "b2", Label: "Blocker", Kind: process.KindTask, Lane: "B"},
				{ID: "b3", Label: "Blocker", Kind: process.KindTask, Lane: "B"},
				{ID: "x1", Label: "One", Kind: process.KindTask, Lane: "B"},
				{ID: "x2", Label: "Two", Kind: process.KindTask, Lane: "B"},
				{ID: "x3", Label: "Three", Kind: process.KindTask, Lane: "B"},
			},
		},
		{
			name: "channel through an annotated lane",
			steps: []process.Step{
				{ID: "s", Kind: process.KindStartEvent, Lane: "A", OnYes: "x"},
				{ID: "b1", Label: "Archive", Kind: process.KindTask, Lane: "B", Tool: "GED"},
				{ID: "b2", Kind: process.KindEndEvent, Lane: "B", Tool: "Mail"},
				{ID: "c1", Label: "Blocker", Kind: process.KindTask, Lane: "C"},
				{ID: "x", Label: "Target", Kind: process.KindTask, Lane: "C"},
			},
		},
		{
			name: "back edge along an annotated lane",
			steps: []process.Step{
				{ID: "s", Kind: process.KindStartEvent, Lane: "A", OnYes: "a"},
				{ID: "a", Label: "Prepare", Kind: process.KindTask, Lane: "A", OnYes: "b", Tool: "Word"},
				{ID: "b", Label: "Review", Kind: process.KindTask, Lane: "A", OnYes: "g", Tool: "Excel"},
				{ID: "g", Kind: process.KindExclusiveGateway, Lane: "A", Condition: "OK?", OnYes: "e", OnNo: "s"},
				{ID: "e", Kind: process.KindEndEvent, Lane: "B"},
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m, l, paths := routeSteps(t, tt.steps)
			checkPaths(t, m, l, paths)
			checkAnnotations(t, l, paths)
		})
	}
}

func TestRouteMissingNode(t *testing.T) {
	m, l, _ := routeSteps(t, []process.Step{
		{ID: "s", Kind: process.KindStartEvent, Lane: "A", OnYes: "t"},
		{ID: "t", Label: "Work", Kind: process.KindTask, Lane: "B", OnYes: "e"},
		{ID: "e", Kind: process.KindEndEvent, Lane: "B"},
	})
	delete(l.Positions, "t")
	if _, err := Route(m, l); err == nil {
		t.Error("expected an error for a node without a position")
	}
}

func TestRouteFollowsLayoutConfig(t *testing.T) {
	steps := []process.Step{
		{ID: "s", Kind: process.KindStartEvent, Lane: "A", OnYes: "w1"},
		{ID: "w1", Label: "Draft", Kind: process.KindTask, Lane: "A", OnYes: "w2"},
		{ID: "w2", Label: "Review", Kind: process.KindExclusiveGateway, Lane: "A", OnYes: "e", OnNo: "w1"},
		{ID: "e", Kind: process.KindEndEvent, Lane: "B"},
	}
	m, err := graph.Build(steps)
	if err != nil {
		t.Fatalf("graph.Build: %v", err)
	}
	for _, width := range []float64{360, 480} {
		cfg := layout.DefaultConfig()
		cfg.LaneWidth = width
		l, err := layout.Compute(m, nil, cfg)
		if err != nil {
			t.Fatalf("layout.Compute: %v", err)
		}
		paths, err := Route(m, l)
		if err != nil {
			t.Fatalf("Route: %v", err)
		}
		checkPaths(t, m, l, paths)

		// The back edge w2 -> w1 detours beside lane A, inside that lane.
		back := paths[len(paths)-1]
		for _, pt := range back.Waypoints {
			if pt.X < cfg.LaneLeft(0) || pt.X > cfg.LaneLeft(1) {
				t.Errorf("width %v: back edge point %v outside lane A [%v, %v]", width, pt, cfg.LaneLeft(0), cfg.LaneLeft(1))
			}
		}
	}
}
