package pipeline

import (
	"context"
	"errors"
	"image"

	"github.com/ironsheep/board-tracker-mcp/internal/geom"
)

// RectangleDetector finds a rectangle inside roi of img. Implementations
// return their best candidate first; found is false when nothing qualifies.
type RectangleDetector interface {
	DetectRectangle(ctx context.Context, img image.Image, roi geom.Rect) (d Detection, found bool, err error)
}

// RectangleTracker re-localizes prior in img. The search is restricted to the
// neighbourhood of prior.Box.
type RectangleTracker interface {
	TrackRectangle(ctx context.Context, img image.Image, prior Detection) (d Detection, found bool, err error)
}

// BoardLocator finds the board bounding box in a whole frame.
type BoardLocator interface {
	LocateBoard(ctx context.Context, img image.Image) (geom.Rect, error)
}

// Scanner looks for a rectangle in a region that has no track entry.
type Scanner struct {
	detector RectangleDetector
}

// NewScanner wraps detector.
func NewScanner(detector RectangleDetector) *Scanner {
	return &Scanner{detector: detector}
}

// Scan runs one detection over region in frame.
//
// Returns:
//   - the first candidate reported by the detector
//   - ErrNoCandidate when the detector found nothing
//   - *ExternalError when the detector call failed
func (s *Scanner) Scan(ctx context.Context, frame Frame, region Region) (Detection, error) {
	d, found, err := s.detector.DetectRectangle(ctx, frame.Image, region.Rect)
	if err != nil {
		r := region
		return Detection{}, &ExternalError{Op: "scan", Region: &r, Err: err}
	}
	if !found {
		return Detection{}, ErrNoCandidate
	}
	return d, nil
}

// Maintainer follows a region that already has a track entry.
type Maintainer struct {
	tracker RectangleTracker
}

// NewMaintainer wraps tracker.
func NewMaintainer(tracker RectangleTracker) *Maintainer {
	return &Maintainer{tracker: tracker}
}

// Track re-localizes prior for region in frame.
//
// Returns:
//   - the tracker's new observation
//   - ErrNoCandidate when the tracker lost the rectangle
//   - *ExternalError when the tracker call failed
func (m *Maintainer) Track(ctx context.Context, frame Frame, region Region, prior Detection) (Detection, error) {
	d, found, err := m.tracker.TrackRectangle(ctx, frame.Image, prior)
	if err != nil {
		r := region
		return Detection{}, &ExternalError{Op: "track", Region: &r, Err: err}
	}
	if !found {
		return Detection{}, ErrNoCandidate
	}
	return d, nil
}

// IsNoCandidate reports whether err means nothing was found.
func IsNoCandidate(err error) bool {
	return errors.Is(err, ErrNoCandidate)
}
