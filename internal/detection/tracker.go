package detection

import (
	"context"
	"image"

	"github.com/ironsheep/board-tracker-mcp/internal/pipeline"
)

// TrackerOptions configures a RegionTracker.
type TrackerOptions struct {
	// Margin grows the prior box on each side, as a fraction of its size,
	// to form the search area.
	Margin float64

	// MinOverlap is the minimum IoU between the prior box and a candidate.
	MinOverlap float64
}

// DefaultTrackerOptions returns the standard search settings.
func DefaultTrackerOptions() TrackerOptions {
	return TrackerOptions{Margin: 0.25, MinOverlap: 0.3}
}

// RegionTracker re-finds a previously detected tile. It only searches the
// neighbourhood of the prior box and keeps the candidate overlapping it most.
type RegionTracker struct {
	detector *RegionDetector
	opts     TrackerOptions
}

// NewRegionTracker builds a tracker that scores candidates with detector.
func NewRegionTracker(detector *RegionDetector, opts TrackerOptions) *RegionTracker {
	return &RegionTracker{detector: detector, opts: opts}
}

// TrackRectangle re-localizes prior in img.
//
// Returns:
//   - the candidate with the highest IoU against prior.Box, found=true
//   - found=false when no candidate reaches MinOverlap
//   - an error when the frame is missing or ctx is done
func (t *RegionTracker) TrackRectangle(ctx context.Context, img image.Image, prior pipeline.Detection) (pipeline.Detection, bool, error) {
	if img == nil {
		return pipeline.Detection{}, false, errNoFrame
	}
	roi := prior.Box.Expand(t.opts.Margin).Clamp()
	if roi.Empty() {
		return pipeline.Detection{}, false, nil
	}

	// Anything under half the prior's size is not the same tile.
	priorPx := prior.Box.Pixels(img.Bounds())
	minArea := priorPx.Dx() * priorPx.Dy() / 2

	cands, err := t.detector.candidates(ctx, img, roi, minArea)
	if err != nil {
		return pipeline.Detection{}, false, err
	}

	bestIoU := 0.0
	var best *candidate
	for i := range cands {
		iou := cands[i].box.IoU(prior.Box)
		if iou > bestIoU {
			bestIoU = iou
			best = &cands[i]
		}
	}
	if best == nil || bestIoU < t.opts.MinOverlap {
		return pipeline.Detection{}, false, nil
	}
	return pipeline.NewDetection(best.box, best.confidence), true, nil
}
