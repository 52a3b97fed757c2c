package imaging

import (
	"bytes"
	"encoding/base64"
	"fmt"
	"image"
	"image/png"

	"github.com/disintegration/imaging"

	"github.com/ironsheep/board-tracker-mcp/internal/geom"
)

// EncodedImage is an image encoded as base64 PNG.
type EncodedImage struct {
	Width       int    `json:"width"`
	Height      int    `json:"height"`
	ImageBase64 string `json:"image_base64"`
	MimeType    string `json:"mime_type"`
}

// CropRegion extracts the normalized rectangle r from img.
//
// Returns:
//   - *image.NRGBA: The crop, with bounds starting at (0,0).
//   - image.Rectangle: The pixel rectangle in img's coordinates that was cut.
//   - error: Non-nil if r covers no pixels of img.
func CropRegion(img image.Image, r geom.Rect) (*image.NRGBA, image.Rectangle, error) {
	px := r.Pixels(img.Bounds())
	if px.Empty() {
		return nil, px, fmt.Errorf("region %+v covers no pixels of %v", r, img.Bounds())
	}
	return imaging.Crop(img, px), px, nil
}

// Thumbnail shrinks img so that neither side exceeds maxSide. Smaller images
// and maxSide <= 0 return img unchanged.
func Thumbnail(img image.Image, maxSide int) image.Image {
	b := img.Bounds()
	if maxSide <= 0 || (b.Dx() <= maxSide && b.Dy() <= maxSide) {
		return img
	}
	return imaging.Fit(img, maxSide, maxSide, imaging.Lanczos)
}

// ScaleToHeight resizes img to the given height keeping its aspect ratio.
func ScaleToHeight(img image.Image, height int) *image.NRGBA {
	return imaging.Resize(img, 0, height, imaging.Lanczos)
}

// EncodePNG encodes img as base64 PNG.
func EncodePNG(img image.Image) (*EncodedImage, error) {
	raw, err := PNGBytes(img)
	if err != nil {
		return nil, err
	}
	b := img.Bounds()
	return &EncodedImage{
		Width:       b.Dx(),
		Height:      b.Dy(),
		ImageBase64: base64.StdEncoding.EncodeToString(raw),
		MimeType:    "image/png",
	}, nil
}

// PNGBytes encodes img as PNG.
func PNGBytes(img image.Image) ([]byte, error) {
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		return nil, fmt.Errorf("failed to encode image: %w", err)
	}
	return buf.Bytes(), nil
}
