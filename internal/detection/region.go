package detection

import (
	"context"
	"errors"
	"image"
	"sort"

	colorful "github.com/lucasb-eyer/go-colorful"

	"github.com/ironsheep/board-tracker-mcp/internal/geom"
	"github.com/ironsheep/board-tracker-mcp/internal/imaging"
	"github.com/ironsheep/board-tracker-mcp/internal/pipeline"
)

// errNoFrame is returned when a call is made without an image.
var errNoFrame = errors.New("no frame image")

// DetectorOptions configures a RegionDetector.
type DetectorOptions struct {
	// MinAreaFraction is the smallest candidate, as a fraction of the
	// searched area.
	MinAreaFraction float64

	// Tolerance is the minimum rectangularity.
	Tolerance float64

	// TileColor is the expected tile face colour ("#RRGGBB").
	TileColor string

	// ColorWeight is the share of confidence given to colour, 0 to 1.
	ColorWeight float64

	Edges imaging.EdgeOptions
}

// DefaultDetectorOptions returns settings for cream tiles.
func DefaultDetectorOptions() DetectorOptions {
	return DetectorOptions{
		MinAreaFraction: 0.15,
		Tolerance:       0.6,
		TileColor:       "#E8D3A9",
		ColorWeight:     0.25,
		Edges:           imaging.DefaultEdgeOptions(),
	}
}

// RegionDetector finds a tile rectangle inside a region of a frame.
type RegionDetector struct {
	opts DetectorOptions
	tile colorful.Color
}

// NewRegionDetector validates opts and builds a detector.
func NewRegionDetector(opts DetectorOptions) (*RegionDetector, error) {
	tile, err := imaging.ParseColor(opts.TileColor)
	if err != nil {
		return nil, err
	}
	if opts.ColorWeight < 0 {
		opts.ColorWeight = 0
	}
	if opts.ColorWeight > 1 {
		opts.ColorWeight = 1
	}
	return &RegionDetector{opts: opts, tile: tile}, nil
}

// candidate is a scored rectangle in frame coordinates.
type candidate struct {
	box        geom.Rect
	confidence float64
	area       int
}

// DetectRectangle looks for a tile inside roi.
//
// Returns:
//   - the best candidate by confidence, with found=true
//   - found=false when nothing in roi is rectangular enough
//   - an error when the frame is missing, roi covers no pixels, or ctx is done
func (d *RegionDetector) DetectRectangle(ctx context.Context, img image.Image, roi geom.Rect) (pipeline.Detection, bool, error) {
	if img == nil {
		return pipeline.Detection{}, false, errNoFrame
	}
	px := roi.Pixels(img.Bounds())
	minArea := int(d.opts.MinAreaFraction * float64(px.Dx()*px.Dy()))

	cands, err := d.candidates(ctx, img, roi, minArea)
	if err != nil || len(cands) == 0 {
		return pipeline.Detection{}, false, err
	}
	best := cands[0]
	return pipeline.NewDetection(best.box, best.confidence), true, nil
}

// candidates returns every rectangle in roi at least minArea pixels,
// best first.
func (d *RegionDetector) candidates(ctx context.Context, img image.Image, roi geom.Rect, minArea int) ([]candidate, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	crop, px, err := imaging.CropRegion(img, roi)
	if err != nil {
		return nil, err
	}

	found := DetectRectangles(crop, minArea, d.opts.Tolerance, d.opts.Edges)
	cands := make([]candidate, 0, found.Count)
	for _, r := range found.Rectangles {
		cands = append(cands, candidate{
			box:        geom.FromPixels(r.Bounds.Rect().Add(px.Min), img.Bounds()),
			confidence: d.score(crop, r),
			area:       r.Area,
		})
	}
	sort.SliceStable(cands, func(i, j int) bool {
		return cands[i].confidence > cands[j].confidence
	})

	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return cands, nil
}

// score blends rectangularity with the colour match of the rectangle's
// inner area. The outer fifth on each side is skipped to stay clear of the
// outline.
func (d *RegionDetector) score(crop image.Image, r Rectangle) float64 {
	w := d.opts.ColorWeight
	if w == 0 {
		return r.Rectangularity
	}
	inner := r.Bounds.Rect().Inset(min(r.Width, r.Height) / 5)
	mean, err := imaging.MeanColor(crop, inner)
	if err != nil {
		return (1 - w) * r.Rectangularity
	}
	return (1-w)*r.Rectangularity + w*imaging.ColorScore(mean, d.tile)
}
