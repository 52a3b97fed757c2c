package imaging

import (
	"image"
	"image/color"
	"testing"
)

func TestEdgeMap_FilledSquare(t *testing.T) {
	img := createInMemoryImage(60, 60, color.RGBA{0, 0, 0, 255})
	fillRect(img, image.Rect(20, 20, 40, 40), color.RGBA{255, 255, 255, 255})

	edges := EdgeMap(img, DefaultEdgeOptions())
	if len(edges) != 60 || len(edges[0]) != 60 {
		t.Fatalf("mask size: got %dx%d, want 60x60", len(edges[0]), len(edges))
	}

	tests := []struct {
		name string
		x, y int
		want bool
	}{
		{"inside left edge", 20, 30, true},
		{"outside left edge", 19, 30, true},
		{"inside right edge", 39, 30, true},
		{"outside bottom edge", 30, 40, true},
		{"tile interior", 30, 30, false},
		{"background", 5, 5, false},
		{"frame corner", 0, 0, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := edges[tt.y][tt.x]; got != tt.want {
				t.Errorf("edge at (%d,%d): got %v, want %v", tt.x, tt.y, got, tt.want)
			}
		})
	}
}

func TestEdgeMap_DarkOnLight(t *testing.T) {
	img := createInMemoryImage(40, 40, color.RGBA{240, 240, 240, 255})
	fillRect(img, image.Rect(10, 10, 30, 30), color.RGBA{20, 20, 20, 255})

	edges := EdgeMap(img, DefaultEdgeOptions())
	if !edges[20][10] || !edges[20][9] {
		t.Error("dark square boundary should be an edge on both sides")
	}
	if edges[20][20] {
		t.Error("interior should not be an edge")
	}
}

func TestEdgeMap_Uniform(t *testing.T) {
	img := createInMemoryImage(30, 30, color.RGBA{90, 120, 30, 255})
	for y, row := range EdgeMap(img, DefaultEdgeOptions()) {
		for x, e := range row {
			if e {
				t.Fatalf("uniform image has an edge at (%d, %d)", x, y)
			}
		}
	}
}

func TestEdgeMap_Blur(t *testing.T) {
	img := createInMemoryImage(60, 60, color.RGBA{0, 0, 0, 255})
	fillRect(img, image.Rect(20, 20, 40, 40), color.RGBA{255, 255, 255, 255})

	edges := EdgeMap(img, EdgeOptions{Blur: 1, Level: 32})
	if edges[30][30] || edges[5][5] {
		t.Error("blur should not create edges away from the boundary")
	}
}

func TestEdgeMap_Empty(t *testing.T) {
	if EdgeMap(image.NewRGBA(image.Rect(0, 0, 0, 0)), DefaultEdgeOptions()) != nil {
		t.Error("empty image should give a nil mask")
	}
}
