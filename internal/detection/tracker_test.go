package detection

import (
	"context"
	"testing"

	"github.com/ironsheep/board-tracker-mcp/internal/pipeline"
)

func scanTile(t *testing.T, d *RegionDetector, row, col int) pipeline.Detection {
	t.Helper()
	img := createBoardImage(tilePixels(row, col, 0, 0))
	det, found, err := d.DetectRectangle(context.Background(), img, regionAt(row, col).Rect)
	if err != nil || !found {
		t.Fatalf("scan failed: found=%v err=%v", found, err)
	}
	return det
}

func TestRegionTracker_FollowsMovedTile(t *testing.T) {
	d := newTestDetector(t)
	prior := scanTile(t, d, 5, 5)
	tracker := NewRegionTracker(d, DefaultTrackerOptions())

	moved := tilePixels(5, 5, 2, 1)
	det, found, err := tracker.TrackRectangle(context.Background(), createBoardImage(moved), prior)
	if err != nil {
		t.Fatalf("TrackRectangle failed: %v", err)
	}
	if !found {
		t.Fatal("expected the moved tile to be tracked")
	}
	if iou := det.Box.IoU(normalized(moved)); iou < 0.7 {
		t.Errorf("IoU with moved tile: got %f, want >= 0.7", iou)
	}
	if det.Box == prior.Box {
		t.Error("box should follow the tile")
	}
}

func TestRegionTracker_LostTile(t *testing.T) {
	d := newTestDetector(t)
	prior := scanTile(t, d, 5, 5)
	tracker := NewRegionTracker(d, DefaultTrackerOptions())

	_, found, err := tracker.TrackRectangle(context.Background(), createBoardImage(), prior)
	if err != nil {
		t.Fatalf("TrackRectangle failed: %v", err)
	}
	if found {
		t.Error("removed tile should not be tracked")
	}
}

func TestRegionTracker_MinOverlap(t *testing.T) {
	d := newTestDetector(t)
	prior := scanTile(t, d, 5, 5)
	tracker := NewRegionTracker(d, TrackerOptions{Margin: 0.25, MinOverlap: 0.99})

	_, found, err := tracker.TrackRectangle(context.Background(), createBoardImage(tilePixels(5, 5, 2, 1)), prior)
	if err != nil {
		t.Fatalf("TrackRectangle failed: %v", err)
	}
	if found {
		t.Error("moved tile should fail a 0.99 overlap requirement")
	}
}

func TestRegionTracker_NilFrame(t *testing.T) {
	tracker := NewRegionTracker(newTestDetector(t), DefaultTrackerOptions())
	if _, _, err := tracker.TrackRectangle(context.Background(), nil, pipeline.Detection{}); err == nil {
		t.Error("expected error for nil frame")
	}
}
