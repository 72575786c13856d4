package layout

import "math"

// Point is a 2D coordinate.
type Point struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// Box is an axis-aligned rectangle; X,Y is the top-left corner.
type Box struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
	W float64 `json:"width"`
	H float64 `json:"height"`
}

func (b Box) Left() float64    { return b.X }
func (b Box) Right() float64   { return b.X + b.W }
func (b Box) Top() float64     { return b.Y }
func (b Box) Bottom() float64  { return b.Y + b.H }
func (b Box) CenterX() float64 { return b.X + b.W/2 }
func (b Box) CenterY() float64 { return b.Y + b.H/2 }

// Intersects reports whether two boxes overlap with positive area.
func (b Box) Intersects(o Box) bool {
	return b.Left() < o.Right() && o.Left() < b.Right() &&
		b.Top() < o.Bottom() && o.Top() < b.Bottom()
}

// SegmentCrosses reports whether the axis-aligned segment p→q passes through
// the interior of b. Touching the border does not count.
func (b Box) SegmentCrosses(p, q Point) bool {
	const eps = 1e-9
	minX, maxX := math.Min(p.X, q.X), math.Max(p.X, q.X)
	minY, maxY := math.Min(p.Y, q.Y), math.Max(p.Y, q.Y)
	return minX < b.Right()-eps && maxX > b.Left()+eps &&
		minY < b.Bottom()-eps && maxY > b.Top()+eps
}
