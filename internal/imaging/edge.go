package imaging

import (
	"image"

	"github.com/anthonynsimon/bild/blend"
	"github.com/anthonynsimon/bild/blur"
	"github.com/anthonynsimon/bild/effect"
	"github.com/anthonynsimon/bild/segment"
)

// EdgeOptions controls EdgeMap.
type EdgeOptions struct {
	// Blur is the Gaussian radius applied before edge detection. 0 disables it.
	Blur float64

	// Level is the minimum edge response kept, 0-255. Against a flat
	// background a step of brightness d gives a response of roughly 3d.
	Level uint8
}

// DefaultEdgeOptions returns settings suited to printed tiles on a board.
func DefaultEdgeOptions() EdgeOptions {
	return EdgeOptions{Level: 64}
}

// EdgeMap marks the edge pixels of img.
//
// Parameters:
//   - img: Source image, any colour model.
//   - opts: Blur radius and response threshold.
//
// Returns a [y][x] mask the size of img's bounds; true marks an edge. An
// empty image yields nil.
//
// # Algorithm
//
//  1. Grayscale conversion
//  2. Optional Gaussian blur
//  3. Laplacian-style edge response on the image and on its inverse, so both
//     bright-on-dark and dark-on-bright boundaries respond
//  4. Per-pixel maximum of the two responses, thresholded at Level
//
// A filled rectangle therefore produces a closed ring about two pixels wide
// straddling its boundary. Pixels outside the image are treated as copies of
// the nearest edge pixel, so the frame border itself is not an edge.
func EdgeMap(img image.Image, opts EdgeOptions) [][]bool {
	bounds := img.Bounds()
	if bounds.Empty() {
		return nil
	}

	gray := effect.Grayscale(img)
	if opts.Blur > 0 {
		gray = blur.Gaussian(gray, opts.Blur)
	}

	rising := effect.EdgeDetection(gray, 1)
	falling := effect.EdgeDetection(effect.Invert(gray), 1)
	mask := segment.Threshold(blend.Lighten(rising, falling), opts.Level)

	width, height := bounds.Dx(), bounds.Dy()
	edges := make([][]bool, height)
	for y := 0; y < height; y++ {
		edges[y] = make([]bool, width)
		row := mask.Pix[y*mask.Stride : y*mask.Stride+width]
		for x, v := range row {
			edges[y][x] = v != 0
		}
	}
	return edges
}
