package imaging

import (
	"bytes"
	"encoding/base64"
	"image"
	"image/color"
	"image/png"
	"testing"

	"github.com/ironsheep/board-tracker-mcp/internal/geom"
)

func TestCropRegion(t *testing.T) {
	img := createInMemoryImage(200, 100, color.RGBA{0, 0, 0, 255})
	fillRect(img, image.Rect(100, 50, 200, 100), color.RGBA{255, 0, 0, 255})

	crop, px, err := CropRegion(img, geom.Rect{X: 0.5, Y: 0.5, W: 0.5, H: 0.5})
	if err != nil {
		t.Fatalf("CropRegion failed: %v", err)
	}
	if px != image.Rect(100, 50, 200, 100) {
		t.Errorf("pixel rect: got %v", px)
	}
	if crop.Bounds() != image.Rect(0, 0, 100, 50) {
		t.Errorf("crop bounds: got %v", crop.Bounds())
	}
	r, _, _, _ := crop.At(10, 10).RGBA()
	if r>>8 != 255 {
		t.Errorf("crop should contain the red quadrant, got r=%d", r>>8)
	}
}

func TestCropRegion_OffsetImage(t *testing.T) {
	base := createInMemoryImage(100, 100, color.White)
	sub := base.SubImage(image.Rect(50, 50, 100, 100))

	crop, px, err := CropRegion(sub, geom.Rect{X: 0, Y: 0, W: 0.5, H: 0.5})
	if err != nil {
		t.Fatalf("CropRegion failed: %v", err)
	}
	if px != image.Rect(50, 50, 75, 75) {
		t.Errorf("pixel rect: got %v", px)
	}
	if crop.Bounds().Dx() != 25 {
		t.Errorf("crop width: got %d, want 25", crop.Bounds().Dx())
	}
}

func TestCropRegion_Empty(t *testing.T) {
	img := createInMemoryImage(10, 10, color.White)
	if _, _, err := CropRegion(img, geom.Rect{X: 2, Y: 2, W: 0.5, H: 0.5}); err == nil {
		t.Error("expected error for region outside the frame")
	}
}

func TestThumbnail(t *testing.T) {
	img := createInMemoryImage(400, 200, color.White)

	small := Thumbnail(img, 100)
	if small.Bounds().Dx() != 100 || small.Bounds().Dy() != 50 {
		t.Errorf("thumbnail: got %v, want 100x50", small.Bounds())
	}
	if Thumbnail(img, 0) != image.Image(img) {
		t.Error("maxSide 0 should return the input")
	}
	if Thumbnail(img, 1000) != image.Image(img) {
		t.Error("larger maxSide should return the input")
	}
}

func TestScaleToHeight(t *testing.T) {
	img := createInMemoryImage(20, 10, color.White)
	scaled := ScaleToHeight(img, 40)
	if scaled.Bounds().Dx() != 80 || scaled.Bounds().Dy() != 40 {
		t.Errorf("scaled: got %v, want 80x40", scaled.Bounds())
	}
}

func TestEncodePNG(t *testing.T) {
	img := createInMemoryImage(12, 7, color.RGBA{1, 2, 3, 255})

	enc, err := EncodePNG(img)
	if err != nil {
		t.Fatalf("EncodePNG failed: %v", err)
	}
	if enc.MimeType != "image/png" || enc.Width != 12 || enc.Height != 7 {
		t.Errorf("unexpected result: %+v", enc)
	}

	raw, err := base64.StdEncoding.DecodeString(enc.ImageBase64)
	if err != nil {
		t.Fatalf("failed to decode base64: %v", err)
	}
	decoded, err := png.Decode(bytes.NewReader(raw))
	if err != nil {
		t.Fatalf("failed to decode png: %v", err)
	}
	if decoded.Bounds().Dx() != 12 {
		t.Errorf("decoded width: got %d", decoded.Bounds().Dx())
	}
}
