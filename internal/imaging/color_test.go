package imaging

import (
	"image"
	"image/color"
	"math"
	"testing"
)

func TestParseColor(t *testing.T) {
	c, err := ParseColor("#FF0000")
	if err != nil {
		t.Fatalf("ParseColor failed: %v", err)
	}
	if c.R != 1 || c.G != 0 || c.B != 0 {
		t.Errorf("got %+v, want pure red", c)
	}

	if _, err := ParseColor("red"); err == nil {
		t.Error("expected error for non-hex colour")
	}
}

func TestMeanColor(t *testing.T) {
	img := createInMemoryImage(20, 10, color.RGBA{255, 0, 0, 255})
	fillRect(img, image.Rect(10, 0, 20, 10), color.RGBA{0, 0, 255, 255})

	c, err := MeanColor(img, img.Bounds())
	if err != nil {
		t.Fatalf("MeanColor failed: %v", err)
	}
	if math.Abs(c.R-0.5) > 0.01 || c.G > 0.01 || math.Abs(c.B-0.5) > 0.01 {
		t.Errorf("mean colour: got %+v, want (0.5, 0, 0.5)", c)
	}

	left, err := MeanColor(img, image.Rect(0, 0, 10, 10))
	if err != nil {
		t.Fatalf("MeanColor failed: %v", err)
	}
	if left.Hex() != "#ff0000" {
		t.Errorf("left half: got %s, want #ff0000", left.Hex())
	}
}

func TestMeanColor_Transparent(t *testing.T) {
	img := image.NewNRGBA(image.Rect(0, 0, 4, 4))
	if _, err := MeanColor(img, img.Bounds()); err == nil {
		t.Error("expected error for fully transparent region")
	}
	if _, err := MeanColor(img, image.Rect(10, 10, 20, 20)); err == nil {
		t.Error("expected error for region outside the image")
	}
}

func TestColorScore(t *testing.T) {
	tile, _ := ParseColor("#E8D3A9")
	board, _ := ParseColor("#1E5A3C")
	near, _ := ParseColor("#E2CFA3")

	if s := ColorScore(tile, tile); s != 1 {
		t.Errorf("identical colours: got %f, want 1", s)
	}
	if s := ColorScore(board, tile); s != 0 {
		t.Errorf("board vs tile: got %f, want 0", s)
	}
	s := ColorScore(near, tile)
	if s <= 0.8 || s >= 1 {
		t.Errorf("near colour: got %f, want in (0.8, 1)", s)
	}
}
