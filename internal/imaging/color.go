package imaging

import (
	"fmt"
	"image"

	colorful "github.com/lucasb-eyer/go-colorful"
)

// maxScoreDistance is the CIE Lab distance at which ColorScore reaches 0.
const maxScoreDistance = 0.5

// ParseColor parses a "#RRGGBB" hex colour.
func ParseColor(hex string) (colorful.Color, error) {
	c, err := colorful.Hex(hex)
	if err != nil {
		return colorful.Color{}, fmt.Errorf("invalid colour %q: %w", hex, err)
	}
	return c, nil
}

// MeanColor averages the opaque pixels of img inside px.
//
// Parameters:
//   - img: Source image.
//   - px: Pixel rectangle in img's coordinates; clipped to img's bounds.
//
// Returns an error if px holds no opaque pixels.
func MeanColor(img image.Image, px image.Rectangle) (colorful.Color, error) {
	px = px.Intersect(img.Bounds())

	var r, g, b float64
	n := 0
	for y := px.Min.Y; y < px.Max.Y; y++ {
		for x := px.Min.X; x < px.Max.X; x++ {
			c, ok := colorful.MakeColor(img.At(x, y))
			if !ok {
				continue
			}
			r += c.R
			g += c.G
			b += c.B
			n++
		}
	}
	if n == 0 {
		return colorful.Color{}, fmt.Errorf("no opaque pixels in %v", px)
	}
	return colorful.Color{R: r / float64(n), G: g / float64(n), B: b / float64(n)}, nil
}

// ColorScore rates how close c is to target: 1 for identical colours,
// falling linearly with CIE Lab distance to 0.
func ColorScore(c, target colorful.Color) float64 {
	d := c.DistanceLab(target)
	if d >= maxScoreDistance {
		return 0
	}
	return 1 - d/maxScoreDistance
}
