package pipeline

import (
	"fmt"
	"image"
	"time"

	"github.com/ironsheep/board-tracker-mcp/internal/classify"
	"github.com/ironsheep/board-tracker-mcp/internal/geom"
)

// Phase is the orchestrator state.
type Phase int

const (
	// PhaseIdle means no board is known; frames are accepted but no work is
	// planned.
	PhaseIdle Phase = iota
	// PhaseBoardLocating means an accepted classification started a locate
	// that has not completed yet.
	PhaseBoardLocating
	// PhaseBoardAcquired means the board is partitioned and no region job has
	// been planned since.
	PhaseBoardAcquired
	// PhaseRegionScanning means at least one region is still untracked.
	PhaseRegionScanning
	// PhaseRegionTracking means every region has a track entry.
	PhaseRegionTracking
)

// String returns the snake_case name used in logs and JSON.
func (p Phase) String() string {
	switch p {
	case PhaseIdle:
		return "idle"
	case PhaseBoardLocating:
		return "board_locating"
	case PhaseBoardAcquired:
		return "board_acquired"
	case PhaseRegionScanning:
		return "region_scanning"
	case PhaseRegionTracking:
		return "region_tracking"
	default:
		return fmt.Sprintf("phase(%d)", int(p))
	}
}

// MarshalText renders the phase by name in JSON output.
func (p Phase) MarshalText() ([]byte, error) {
	return []byte(p.String()), nil
}

// Region is one cell of the partition grid. Regions are comparable and used
// as keys of the track table.
type Region struct {
	Row  int       `json:"row"`
	Col  int       `json:"col"`
	Rect geom.Rect `json:"rect"`
}

// Grid is the ordered partition of a board box.
type Grid struct {
	Box     geom.Rect `json:"box"`
	Size    int       `json:"size"`
	Regions []Region  `json:"-"`
}

// Len returns the number of regions.
func (g Grid) Len() int { return len(g.Regions) }

// Detection is a rectangle found in a region.
type Detection struct {
	Box        geom.Rect `json:"box"`
	Corners    geom.Quad `json:"corners"`
	Confidence float64   `json:"confidence"`
}

// NewDetection builds a Detection whose corners are the box corners.
func NewDetection(box geom.Rect, confidence float64) Detection {
	return Detection{Box: box, Corners: box.Quad(), Confidence: confidence}
}

// Frame is one image delivered by the frame producer. Seq must increase for
// every new frame; the image is only read during the work planned for it.
type Frame struct {
	Seq   uint64
	Image image.Image
}

// TrackEntry pairs a region with its last known detection.
type TrackEntry struct {
	Region    Region    `json:"region"`
	Detection Detection `json:"detection"`
}

// ClassifyResult is the acceptance decision for a label set and what the
// pipeline did with it.
type ClassifyResult struct {
	classify.Decision
	// Ignored is set when the labels were accepted while a board was already
	// present, so nothing changed.
	Ignored bool `json:"ignored"`
	// Locating is set when the labels started locating the board.
	Locating bool `json:"locating"`
}

// Snapshot is a read-only copy of the pipeline state.
type Snapshot struct {
	Generation uint64       `json:"generation"`
	BoardID    string       `json:"board_id,omitempty"`
	Phase      Phase        `json:"phase"`
	Board      geom.Rect    `json:"board"`
	GridSize   int          `json:"grid_size"`
	Regions    int          `json:"regions"`
	Pending    int          `json:"pending"`
	InFlight   int          `json:"in_flight"`
	Tracks     []TrackEntry `json:"tracks"`
	Quadrants  []geom.Rect  `json:"quadrants,omitempty"`
	TakenAt    time.Time    `json:"taken_at"`
}
