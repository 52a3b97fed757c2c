package geom

import (
	"image"
	"math"
)

// Epsilon is the tolerance used when comparing normalized coordinates.
const Epsilon = 1e-9

// Point is a normalized 2D coordinate.
type Point struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// Rect is a normalized axis-aligned rectangle.
type Rect struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
	W float64 `json:"width"`
	H float64 `json:"height"`
}

// Quad holds the four corners of a detected rectangle, clockwise from
// the top-left.
type Quad struct {
	TL Point `json:"top_left"`
	TR Point `json:"top_right"`
	BR Point `json:"bottom_right"`
	BL Point `json:"bottom_left"`
}

// Unit is the rectangle covering the whole frame.
var Unit = Rect{X: 0, Y: 0, W: 1, H: 1}

// MaxX returns the right edge.
func (r Rect) MaxX() float64 { return r.X + r.W }

// MaxY returns the bottom edge.
func (r Rect) MaxY() float64 { return r.Y + r.H }

// Area returns W*H, or 0 for empty rectangles.
func (r Rect) Area() float64 {
	if r.Empty() {
		return 0
	}
	return r.W * r.H
}

// Empty reports whether the rectangle has no area.
func (r Rect) Empty() bool {
	return r.W <= Epsilon || r.H <= Epsilon
}

// Intersect returns the overlap of r and o. The result is the zero Rect when
// they do not overlap.
func (r Rect) Intersect(o Rect) Rect {
	x1 := math.Max(r.X, o.X)
	y1 := math.Max(r.Y, o.Y)
	x2 := math.Min(r.MaxX(), o.MaxX())
	y2 := math.Min(r.MaxY(), o.MaxY())
	if x2-x1 <= Epsilon || y2-y1 <= Epsilon {
		return Rect{}
	}
	return Rect{X: x1, Y: y1, W: x2 - x1, H: y2 - y1}
}

// IoU returns the intersection-over-union of r and o in [0, 1].
func (r Rect) IoU(o Rect) float64 {
	inter := r.Intersect(o).Area()
	if inter == 0 {
		return 0
	}
	union := r.Area() + o.Area() - inter
	if union <= 0 {
		return 0
	}
	return inter / union
}

// Expand grows the rectangle on every side by margin times its own size.
// A margin of 0.25 on a 0.1-wide rect yields a 0.15-wide rect.
func (r Rect) Expand(margin float64) Rect {
	dx := r.W * margin
	dy := r.H * margin
	return Rect{X: r.X - dx, Y: r.Y - dy, W: r.W + 2*dx, H: r.H + 2*dy}
}

// Clamp restricts the rectangle to the unit square.
func (r Rect) Clamp() Rect {
	return r.Intersect(Unit)
}

// Split divides r into four equal quadrants: top-left, top-right,
// bottom-left, bottom-right. Pipeline snapshots report the board's quadrants
// as coarse regions of interest.
func (r Rect) Split() []Rect {
	hw, hh := r.W/2, r.H/2
	return []Rect{
		{X: r.X, Y: r.Y, W: hw, H: hh},
		{X: r.X + hw, Y: r.Y, W: r.W - hw, H: hh},
		{X: r.X, Y: r.Y + hh, W: hw, H: r.H - hh},
		{X: r.X + hw, Y: r.Y + hh, W: r.W - hw, H: r.H - hh},
	}
}

// Quad returns the corners of r.
func (r Rect) Quad() Quad {
	return Quad{
		TL: Point{X: r.X, Y: r.Y},
		TR: Point{X: r.MaxX(), Y: r.Y},
		BR: Point{X: r.MaxX(), Y: r.MaxY()},
		BL: Point{X: r.X, Y: r.MaxY()},
	}
}

// Pixels converts r into a pixel rectangle inside bounds. The result is
// clipped to bounds and may be empty.
func (r Rect) Pixels(bounds image.Rectangle) image.Rectangle {
	w := float64(bounds.Dx())
	h := float64(bounds.Dy())
	px := image.Rect(
		bounds.Min.X+int(math.Floor(r.X*w+Epsilon)),
		bounds.Min.Y+int(math.Floor(r.Y*h+Epsilon)),
		bounds.Min.X+int(math.Ceil(r.MaxX()*w-Epsilon)),
		bounds.Min.Y+int(math.Ceil(r.MaxY()*h-Epsilon)),
	)
	return px.Intersect(bounds)
}

// FromPixels converts a pixel rectangle inside bounds to normalized
// coordinates.
func FromPixels(px image.Rectangle, bounds image.Rectangle) Rect {
	w := float64(bounds.Dx())
	h := float64(bounds.Dy())
	if w == 0 || h == 0 {
		return Rect{}
	}
	return Rect{
		X: float64(px.Min.X-bounds.Min.X) / w,
		Y: float64(px.Min.Y-bounds.Min.Y) / h,
		W: float64(px.Dx()) / w,
		H: float64(px.Dy()) / h,
	}
}
