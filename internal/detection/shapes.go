package detection

import (
	"image"
	"sort"

	"github.com/ironsheep/board-tracker-mcp/internal/imaging"
)

// Bounds is a pixel bounding box. (X1, Y1) is inclusive, (X2, Y2) exclusive.
type Bounds struct {
	X1 int `json:"x1"`
	Y1 int `json:"y1"`
	X2 int `json:"x2"`
	Y2 int `json:"y2"`
}

// Rect converts b to an image.Rectangle.
func (b Bounds) Rect() image.Rectangle {
	return image.Rect(b.X1, b.Y1, b.X2, b.Y2)
}

// Point is a pixel coordinate.
type Point struct {
	X int `json:"x"`
	Y int `json:"y"`
}

// Rectangle is an axis-aligned rectangular outline found in an image.
type Rectangle struct {
	// Bounds is the bounding box of the outline in the image's coordinates.
	Bounds Bounds `json:"bounds"`

	// Width and Height are the box extents in pixels.
	Width  int `json:"width"`
	Height int `json:"height"`

	// Area is Width × Height.
	Area int `json:"area"`

	// Rectangularity rates how well the outline follows the box border,
	// 0.0 to 1.0. See rectangularity for the definition.
	Rectangularity float64 `json:"rectangularity"`
}

// RectanglesResult contains all rectangles detected in an image.
type RectanglesResult struct {
	// Rectangles is sorted by area, largest first.
	Rectangles []Rectangle `json:"rectangles"`
	Count      int         `json:"count"`
}

// DetectRectangles finds rectangular outlines in an image.
//
// Parameters:
//   - img: Source image to analyze.
//   - minArea: Minimum bounding box area in square pixels.
//   - tolerance: Minimum rectangularity, 0.0 to 1.0.
//   - opts: Edge map settings.
//
// Returns detected rectangles sorted by area (largest first).
//
// # Algorithm
//
//  1. Edge map: see imaging.EdgeMap
//  2. Contour finding: flood-fill groups 8-connected edge pixels
//  3. Bounding box of each contour
//  4. Rectangularity check against tolerance
//  5. Area filter against minArea
//
// # Limitations
//
//   - Only axis-aligned rectangles are found
//   - Nested outlines are reported separately
//   - Outlines that touch each other merge into one contour
func DetectRectangles(img image.Image, minArea int, tolerance float64, opts imaging.EdgeOptions) *RectanglesResult {
	bounds := img.Bounds()
	width := bounds.Dx()
	height := bounds.Dy()

	edges := imaging.EdgeMap(img, opts)
	contours := findContours(edges, width, height)

	rectangles := make([]Rectangle, 0)
	for _, contour := range contours {
		minX, minY := width, height
		maxX, maxY := 0, 0
		for _, p := range contour {
			if p.X < minX {
				minX = p.X
			}
			if p.X > maxX {
				maxX = p.X
			}
			if p.Y < minY {
				minY = p.Y
			}
			if p.Y > maxY {
				maxY = p.Y
			}
		}

		rectWidth := maxX - minX + 1
		rectHeight := maxY - minY + 1
		area := rectWidth * rectHeight
		if area < minArea {
			continue
		}

		score := rectangularity(contour, minX, minY, maxX, maxY)
		if score < tolerance {
			continue
		}

		rectangles = append(rectangles, Rectangle{
			Bounds: Bounds{
				X1: minX + bounds.Min.X,
				Y1: minY + bounds.Min.Y,
				X2: maxX + 1 + bounds.Min.X,
				Y2: maxY + 1 + bounds.Min.Y,
			},
			Width:          rectWidth,
			Height:         rectHeight,
			Area:           area,
			Rectangularity: score,
		})
	}

	sort.SliceStable(rectangles, func(i, j int) bool {
		return rectangles[i].Area > rectangles[j].Area
	})

	return &RectanglesResult{
		Rectangles: rectangles,
		Count:      len(rectangles),
	}
}

// rectangularity scores a contour against its bounding box (inclusive
// min/max). It is the product of two fractions:
//
//   - near: contour pixels lying within a band along the box border
//   - coverage: border positions (columns along top and bottom, rows along
//     left and right) that have a contour pixel in their band
//
// The band is a tenth of the shorter side, at least 2 pixels, which makes
// the score independent of edge thickness. A closed rectangular ring scores
// close to 1; a circle loses its corners and most of its pixels.
func rectangularity(contour []Point, minX, minY, maxX, maxY int) float64 {
	if len(contour) == 0 {
		return 0
	}
	w := maxX - minX + 1
	h := maxY - minY + 1
	band := min(w, h) / 10
	if band < 2 {
		band = 2
	}

	top := make([]bool, w)
	bottom := make([]bool, w)
	left := make([]bool, h)
	right := make([]bool, h)

	near := 0
	for _, p := range contour {
		dx, dy := p.X-minX, p.Y-minY
		onBorder := false
		if dy <= band {
			top[dx] = true
			onBorder = true
		}
		if maxY-p.Y <= band {
			bottom[dx] = true
			onBorder = true
		}
		if dx <= band {
			left[dy] = true
			onBorder = true
		}
		if maxX-p.X <= band {
			right[dy] = true
			onBorder = true
		}
		if onBorder {
			near++
		}
	}

	covered := countTrue(top) + countTrue(bottom) + countTrue(left) + countTrue(right)
	coverage := float64(covered) / float64(2*w+2*h)
	return float64(near) / float64(len(contour)) * coverage
}

func countTrue(bs []bool) int {
	n := 0
	for _, b := range bs {
		if b {
			n++
		}
	}
	return n
}

// findContours finds connected components (contours) in a binary edge image.
//
// Uses flood-fill to group connected edge pixels into contours.
// Connectivity is 8-connected (includes diagonals).
//
// Contours smaller than 10 pixels are discarded as noise.
func findContours(edges [][]bool, width, height int) [][]Point {
	visited := make([][]bool, height)
	for y := 0; y < height; y++ {
		visited[y] = make([]bool, width)
	}

	contours := make([][]Point, 0)

	for y := 0; y < height; y++ {
		for x := 0; x < width; x++ {
			if edges[y][x] && !visited[y][x] {
				contour := make([]Point, 0)
				floodFill(edges, visited, x, y, width, height, &contour)
				if len(contour) >= 10 {
					contours = append(contours, contour)
				}
			}
		}
	}

	return contours
}

// floodFill performs iterative flood-fill from a starting point.
//
// Uses a stack-based approach (not recursive) to avoid stack overflow
// on large contours. Marks visited pixels and appends them to the contour.
func floodFill(edges, visited [][]bool, startX, startY, width, height int, contour *[]Point) {
	stack := []Point{{X: startX, Y: startY}}

	for len(stack) > 0 {
		p := stack[len(stack)-1]
		stack = stack[:len(stack)-1]

		if p.X < 0 || p.X >= width || p.Y < 0 || p.Y >= height {
			continue
		}
		if visited[p.Y][p.X] || !edges[p.Y][p.X] {
			continue
		}

		visited[p.Y][p.X] = true
		*contour = append(*contour, p)

		for dy := -1; dy <= 1; dy++ {
			for dx := -1; dx <= 1; dx++ {
				if dx == 0 && dy == 0 {
					continue
				}
				stack = append(stack, Point{X: p.X + dx, Y: p.Y + dy})
			}
		}
	}
}
