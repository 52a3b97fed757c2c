package detection

import (
	"context"
	"image"

	"github.com/ironsheep/board-tracker-mcp/internal/geom"
	"github.com/ironsheep/board-tracker-mcp/internal/imaging"
)

// LocatorOptions configures a BoardLocator.
type LocatorOptions struct {
	// MinFraction is the smallest board, as a fraction of the frame area.
	MinFraction float64

	// Tolerance is the minimum rectangularity of the board outline.
	Tolerance float64

	// MaxSide is the resolution the frame is reduced to before analysis.
	MaxSide int

	Edges imaging.EdgeOptions
}

// DefaultLocatorOptions returns the standard board search settings.
func DefaultLocatorOptions() LocatorOptions {
	return LocatorOptions{
		MinFraction: 0.2,
		Tolerance:   0.6,
		MaxSide:     320,
		Edges:       imaging.DefaultEdgeOptions(),
	}
}

// BoardLocator finds the board bounding box in a frame.
type BoardLocator struct {
	opts LocatorOptions
}

// NewBoardLocator builds a locator.
func NewBoardLocator(opts LocatorOptions) *BoardLocator {
	return &BoardLocator{opts: opts}
}

// LocateBoard returns the largest rectangle covering at least MinFraction of
// the frame. When none qualifies it returns the centred square of the frame,
// the area a player is asked to frame the board in.
func (l *BoardLocator) LocateBoard(ctx context.Context, img image.Image) (geom.Rect, error) {
	if img == nil {
		return geom.Rect{}, errNoFrame
	}
	if err := ctx.Err(); err != nil {
		return geom.Rect{}, err
	}

	small := imaging.Thumbnail(img, l.opts.MaxSide)
	b := small.Bounds()
	minArea := int(l.opts.MinFraction * float64(b.Dx()*b.Dy()))

	found := DetectRectangles(small, minArea, l.opts.Tolerance, l.opts.Edges)
	if err := ctx.Err(); err != nil {
		return geom.Rect{}, err
	}
	if found.Count > 0 {
		return geom.FromPixels(found.Rectangles[0].Bounds.Rect(), b), nil
	}
	return CenteredSquare(b), nil
}

// CenteredSquare returns the largest square centred in bounds, normalized
// to bounds.
func CenteredSquare(bounds image.Rectangle) geom.Rect {
	w, h := float64(bounds.Dx()), float64(bounds.Dy())
	if w == 0 || h == 0 {
		return geom.Rect{}
	}
	side := min(w, h)
	return geom.Rect{
		X: (w - side) / 2 / w,
		Y: (h - side) / 2 / h,
		W: side / w,
		H: side / h,
	}
}
