package route

import (
	"fmt"
	"math"

	"github.com/tnpagents/processmate/pkg/bpmn/graph"
	"github.com/tnpagents/processmate/pkg/bpmn/layout"
)

// Side is a port side of a node box.
type Side int

// Port sides.
const (
	SideBottom Side = iota
	SideLeft
	SideRight
	SideTop
)

func (s Side) String() string {
	switch s {
	case SideLeft:
		return "left"
	case SideRight:
		return "right"
	case SideTop:
		return "top"
	default:
		return "bottom"
	}
}

// Path is a routed sequence flow.
type Path struct {
	SourceID  string         `json:"source_id"`
	Branch    graph.Branch   `json:"branch"`
	TargetID  string         `json:"target_id"`
	Name      string         `json:"name,omitempty"`
	Waypoints []layout.Point `json:"waypoints"`
	Label     *layout.Box    `json:"label,omitempty"` // set for named branches
}

// Key returns "{sourceId}_{branch}".
func (p Path) Key() string { return p.SourceID + "_" + string(p.Branch) }

// Crosses reports whether any segment passes through the interior of b.
func (p Path) Crosses(b layout.Box) bool {
	for i := 1; i < len(p.Waypoints); i++ {
		if b.SegmentCrosses(p.Waypoints[i-1], p.Waypoints[i]) {
			return true
		}
	}
	return false
}

// Index maps paths by [Path.Key].
func Index(paths []Path) map[string]Path {
	idx := make(map[string]Path, len(paths))
	for _, p := range paths {
		idx[p.Key()] = p
	}
	return idx
}

// Route computes a path for every edge of m, in edge order, using the
// geometry l was computed with (l.Config). It fails only when l is missing
// a node m references.
func Route(m *graph.Model, l *layout.Layout) ([]Path, error) {
	r := newRouter(l)
	exits := r.exitSides(m)

	paths := make([]Path, 0, len(m.Edges))
	for _, e := range m.Edges {
		src, ok := l.Box(e.SourceID)
		if !ok {
			return nil, fmt.Errorf("route %s: source %q not laid out", e.Key(), e.SourceID)
		}
		dst, ok := l.Box(e.TargetID)
		if !ok {
			return nil, fmt.Errorf("route %s: target %q not laid out", e.Key(), e.TargetID)
		}

		pts := simplify(r.route(e, src, dst, exits[e.Key()]))
		p := Path{
			SourceID:  e.SourceID,
			Branch:    e.Branch,
			TargetID:  e.TargetID,
			Name:      e.Name,
			Waypoints: pts,
		}
		if e.Labeled() {
			lb := r.labelBox(pts, e.Branch)
			p.Label = &lb
		}
		paths = append(paths, p)
	}
	return paths, nil
}

// =============================================================================
// Router state
// =============================================================================

type span struct{ lo, hi float64 }

type router struct {
	l         *layout.Layout
	cfg       layout.Config
	laneNodes [][]string        // per lane, top to bottom
	obstacles [][]layout.Box    // per lane: node boxes and tool annotations
	nextBelow map[string]string // id → next node below in its lane
	slots     map[string][][]span
}

func newRouter(l *layout.Layout) *router {
	r := &router{
		l:         l,
		cfg:       l.Config,
		laneNodes: make([][]string, len(l.Lanes)),
		obstacles: make([][]layout.Box, len(l.Lanes)),
		nextBelow: make(map[string]string),
		slots:     make(map[string][][]span),
	}
	for i := range l.Lanes {
		ids := l.LaneNodes(i)
		r.laneNodes[i] = ids
		for j, id := range ids {
			r.obstacles[i] = append(r.obstacles[i], l.Positions[id].Box())
			if a, ok := l.Annotations[id]; ok {
				r.obstacles[i] = append(r.obstacles[i], a)
			}
			if j > 0 {
				r.nextBelow[ids[j-1]] = id
			}
		}
	}
	return r
}

func (r *router) lane(id string) int { return r.l.Positions[id].LaneIndex }

// =============================================================================
// Exit sides
// =============================================================================

// preferredExit is the side an edge leaves from when nothing competes.
func (r *router) preferredExit(e graph.Edge) Side {
	ls, lt := r.lane(e.SourceID), r.lane(e.TargetID)
	switch {
	case e.SourceID == e.TargetID:
		return SideLeft
	case ls == lt && r.nextBelow[e.SourceID] == e.TargetID:
		return SideBottom
	case ls == lt && e.Branch == graph.BranchYes:
		return SideRight
	case ls == lt:
		return SideLeft
	case lt > ls:
		return SideRight
	default:
		return SideLeft
	}
}

// exitSides assigns an exit side to every edge. When the yes and no
// branches of one node want the same side, the no branch moves: to the left
// when both wanted the bottom, to the bottom otherwise.
func (r *router) exitSides(m *graph.Model) map[string]Side {
	sides := make(map[string]Side, len(m.Edges))
	yes := make(map[string]Side)
	for _, e := range m.Edges {
		s := r.preferredExit(e)
		sides[e.Key()] = s
		if e.Branch == graph.BranchYes {
			yes[e.SourceID] = s
		}
	}
	for _, e := range m.Edges {
		if e.Branch != graph.BranchNo {
			continue
		}
		ys, ok := yes[e.SourceID]
		if !ok || ys != sides[e.Key()] {
			continue
		}
		if ys == SideBottom {
			sides[e.Key()] = SideLeft
		} else {
			sides[e.Key()] = SideBottom
		}
	}
	return sides
}

// =============================================================================
// Shapes
// =============================================================================

func (r *router) route(e graph.Edge, src, dst layout.Box, exit Side) []layout.Point {
	switch {
	case e.SourceID == e.TargetID:
		return r.selfLoop(src, r.lane(e.SourceID), exit)
	case r.lane(e.SourceID) == r.lane(e.TargetID):
		if exit == SideBottom && r.nextBelow[e.SourceID] == e.TargetID {
			return []layout.Point{{X: src.CenterX(), Y: src.Bottom()}, {X: dst.CenterX(), Y: dst.Top()}}
		}
		return r.laneDetour(src, dst, r.lane(e.SourceID), exit)
	default:
		return r.crossLane(src, dst, r.lane(e.SourceID), r.lane(e.TargetID), exit)
	}
}

// start returns the first waypoints for an exit side: the port, plus a stub
// below the node for bottom exits. The last point is where the horizontal
// leg begins.
func (r *router) start(b layout.Box, exit Side) []layout.Point {
	switch exit {
	case SideLeft:
		return []layout.Point{{X: b.Left(), Y: b.CenterY()}}
	case SideRight:
		return []layout.Point{{X: b.Right(), Y: b.CenterY()}}
	default:
		return []layout.Point{
			{X: b.CenterX(), Y: b.Bottom()},
			{X: b.CenterX(), Y: b.Bottom() + r.stub()},
		}
	}
}

// stub is the distance a bottom exit drops before turning. It stays inside
// the gap between two stacked nodes.
func (r *router) stub() float64 {
	return min(r.cfg.CorridorGap, r.cfg.VerticalSpacing/2)
}

func (r *router) selfLoop(b layout.Box, lane int, exit Side) []layout.Point {
	top := b.Top() - r.stub()
	pts := r.start(b, exit)
	y0 := pts[len(pts)-1].Y
	var x float64
	if exit == SideRight {
		x = r.boundaryX(lane+1, -1, y0, top)
	} else {
		x = r.innerLeftX(lane, top, y0)
	}
	return append(pts,
		layout.Point{X: x, Y: y0},
		layout.Point{X: x, Y: top},
		layout.Point{X: b.CenterX(), Y: top},
		layout.Point{X: b.CenterX(), Y: b.Top()},
	)
}

func (r *router) laneDetour(src, dst layout.Box, lane int, exit Side) []layout.Point {
	pts := r.start(src, exit)
	y0 := pts[len(pts)-1].Y
	y1 := dst.CenterY()
	if exit == SideRight {
		x := r.boundaryX(lane+1, 0, y0, y1)
		return append(pts,
			layout.Point{X: x, Y: y0},
			layout.Point{X: x, Y: y1},
			layout.Point{X: dst.Right(), Y: y1},
		)
	}
	x := r.innerLeftX(lane, y0, y1)
	return append(pts,
		layout.Point{X: x, Y: y0},
		layout.Point{X: x, Y: y1},
		layout.Point{X: dst.Left(), Y: y1},
	)
}

func (r *router) crossLane(src, dst layout.Box, ls, lt int, exit Side) []layout.Point {
	pts := r.start(src, exit)
	ys := pts[len(pts)-1].Y
	yt := dst.CenterY()

	// Boundaries next to the source and the target, on the sides facing
	// each other, plus the entry port.
	bS, bT := ls, lt+1
	entry := layout.Point{X: dst.Right(), Y: yt}
	if lt > ls {
		bS, bT = ls+1, lt
		entry = layout.Point{X: dst.Left(), Y: yt}
	}
	lo, hi := min(ls, lt)+1, max(ls, lt)-1

	switch {
	case r.horizontalFree(ys, lo, hi):
		x := r.boundaryX(bT, 0, ys, yt)
		return append(pts, layout.Point{X: x, Y: ys}, layout.Point{X: x, Y: yt}, entry)
	case r.horizontalFree(yt, lo, hi):
		x := r.boundaryX(bS, 0, ys, yt)
		return append(pts, layout.Point{X: x, Y: ys}, layout.Point{X: x, Y: yt}, entry)
	}

	yc := r.channel((ys+yt)/2, lo, hi)
	xS := r.boundaryX(bS, 0, ys, yc)
	xT := r.boundaryX(bT, 0, yc, yt)
	return append(pts,
		layout.Point{X: xS, Y: ys},
		layout.Point{X: xS, Y: yc},
		layout.Point{X: xT, Y: yc},
		layout.Point{X: xT, Y: yt},
		entry,
	)
}

// =============================================================================
// Obstacles and channels
// =============================================================================

// horizontalFree reports whether a horizontal line at y clears every node and
// annotation in lanes lo..hi (inclusive) with CorridorGap/2 to spare.
func (r *router) horizontalFree(y float64, lo, hi int) bool {
	pad := r.cfg.CorridorGap / 2
	for i := lo; i <= hi; i++ {
		for _, b := range r.obstacles[i] {
			if y > b.Top()-pad && y < b.Bottom()+pad {
				return false
			}
		}
	}
	return true
}

// channel finds the free y closest to want for a horizontal leg across lanes
// lo..hi. Candidates are want itself and the gaps just above and below each
// obstacle; the gap below the lowest one is always free.
func (r *router) channel(want float64, lo, hi int) float64 {
	cands := []float64{want}
	for i := lo; i <= hi; i++ {
		for _, b := range r.obstacles[i] {
			cands = append(cands, b.Top()-r.cfg.CorridorGap, b.Bottom()+r.cfg.CorridorGap)
		}
	}
	best, found := 0.0, false
	for _, y := range cands {
		if !r.horizontalFree(y, lo, hi) {
			continue
		}
		if !found || math.Abs(y-want) < math.Abs(best-want) ||
			(math.Abs(y-want) == math.Abs(best-want) && y < best) {
			best, found = y, true
		}
	}
	if !found {
		return want
	}
	return best
}

// =============================================================================
// Corridor slots
// =============================================================================

// claim reserves the lowest slot of corridor key whose spans do not overlap
// [y0, y1] and returns its index.
func (r *router) claim(key string, y0, y1 float64) int {
	s := span{min(y0, y1), max(y0, y1)}
	slots := r.slots[key]
	for k := range slots {
		free := true
		for _, o := range slots[k] {
			if s.lo <= o.hi && o.lo <= s.hi {
				free = false
				break
			}
		}
		if free {
			slots[k] = append(slots[k], s)
			return k
		}
	}
	r.slots[key] = append(slots, []span{s})
	return len(slots)
}

// boundaryX returns the x of a vertical leg along lane boundary b (the left
// edge of lane b) between y0 and y1. Inner boundaries alternate slots on both
// sides of the line while both sides have room; the pool's outer edges only
// use slots inside the pool. dir forces a side when non-zero.
func (r *router) boundaryX(b, dir int, y0, y1 float64) float64 {
	k := r.claim(fmt.Sprintf("b%d", b), y0, y1)
	x := r.cfg.LaneLeft(b)
	s := r.cfg.SlotSpacing
	left, right := r.room(b, -1, y0, y1), r.room(b, 1, y0, y1)

	switch {
	case b == 0:
		dir = 1
	case b == len(r.l.Lanes):
		dir = -1
	case dir <= 0 && left < s && right >= s:
		dir = 1
	case dir >= 0 && right < s && left >= s:
		dir = -1
	}
	var off float64
	if dir != 0 {
		off = float64(dir) * float64(k+1) * s
	} else {
		off = float64(k/2+1) * s
		if k%2 == 0 {
			off = -off
		}
	}
	off = math.Max(-left, math.Min(right, off))
	return x + off
}

// room returns how far a vertical leg on boundary b may move into the lane on
// side dir (-1 for lane b-1, +1 for lane b) over [y0, y1] while keeping
// CorridorGap from every node and annotation of that lane.
func (r *router) room(b, dir int, y0, y1 float64) float64 {
	lane := b
	if dir < 0 {
		lane = b - 1
	}
	if lane < 0 || lane >= len(r.obstacles) {
		return 0
	}
	edge := r.cfg.LaneLeft(b)
	lo, hi := min(y0, y1), max(y0, y1)
	room := (r.cfg.LaneWidth-r.cfg.TaskWidth)/2 - r.cfg.CorridorGap
	for _, o := range r.obstacles[lane] {
		if o.Bottom() < lo || o.Top() > hi {
			continue
		}
		gap := o.Left() - edge
		if dir < 0 {
			gap = edge - o.Right()
		}
		room = min(room, gap-r.cfg.CorridorGap)
	}
	return max(room, 0)
}

// innerLeftX returns the x of a vertical leg in the corridor between lane i's
// left edge and its widest node.
func (r *router) innerLeftX(i int, y0, y1 float64) float64 {
	k := r.claim(fmt.Sprintf("l%d", i), y0, y1)
	half := 0.0
	for _, id := range r.laneNodes[i] {
		half = max(half, r.l.Positions[id].Width/2)
	}
	x := r.cfg.LaneCenter(i) - half - r.cfg.CorridorGap - float64(k)*r.cfg.SlotSpacing
	return max(x, r.cfg.LaneLeft(i)+r.cfg.SlotSpacing/2)
}

// =============================================================================
// Labels and cleanup
// =============================================================================

// labelBox places a branch label next to the midpoint of the polyline:
// above-right for yes, below-left for no.
func (r *router) labelBox(pts []layout.Point, b graph.Branch) layout.Box {
	mid := Midpoint(pts)
	w, h, off := r.cfg.LabelWidth, r.cfg.LabelHeight, r.cfg.LabelOffset
	if b == graph.BranchNo {
		return layout.Box{X: mid.X - off - w, Y: mid.Y + off, W: w, H: h}
	}
	return layout.Box{X: mid.X + off, Y: mid.Y - off - h, W: w, H: h}
}

// Midpoint returns the point halfway along the polyline by length.
func Midpoint(pts []layout.Point) layout.Point {
	if len(pts) == 0 {
		return layout.Point{}
	}
	total := 0.0
	for i := 1; i < len(pts); i++ {
		total += dist(pts[i-1], pts[i])
	}
	half := total / 2
	for i := 1; i < len(pts); i++ {
		d := dist(pts[i-1], pts[i])
		if d >= half && d > 0 {
			t := half / d
			return layout.Point{
				X: pts[i-1].X + (pts[i].X-pts[i-1].X)*t,
				Y: pts[i-1].Y + (pts[i].Y-pts[i-1].Y)*t,
			}
		}
		half -= d
	}
	return pts[len(pts)-1]
}

func dist(a, b layout.Point) float64 {
	return math.Abs(a.X-b.X) + math.Abs(a.Y-b.Y)
}

// simplify drops repeated points and the middle of collinear runs. The
// result always keeps the first and last point.
func simplify(pts []layout.Point) []layout.Point {
	const eps = 1e-6
	same := func(a, b layout.Point) bool {
		return math.Abs(a.X-b.X) < eps && math.Abs(a.Y-b.Y) < eps
	}

	out := make([]layout.Point, 0, len(pts))
	for _, p := range pts {
		if len(out) > 0 && same(out[len(out)-1], p) {
			continue
		}
		if n := len(out); n >= 2 {
			a, b := out[n-2], out[n-1]
			if (math.Abs(a.X-b.X) < eps && math.Abs(b.X-p.X) < eps) ||
				(math.Abs(a.Y-b.Y) < eps && math.Abs(b.Y-p.Y) < eps) {
				out[n-1] = p
				continue
			}
		}
		out = append(out, p)
	}
	if len(out) == 1 && len(pts) > 0 {
		out = append(out, pts[len(pts)-1])
	}
	return out
}
