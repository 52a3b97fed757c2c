package detection

import (
	"image"
	"image/color"
	"image/draw"

	"github.com/ironsheep/board-tracker-mcp/internal/geom"
	"github.com/ironsheep/board-tracker-mcp/internal/pipeline"
)

// Synthetic board layout: a 15×15 board of 20px cells at (50,50) in a
// 400×400 frame, tiles 16px inset 2px into their cell.
const (
	frameSize   = 400
	boardOrigin = 50
	cellSize    = 20
	gridN       = 15
	tileInset   = 2
	tileSize    = 16
)

var (
	tableColor = color.RGBA{0xF2, 0xF2, 0xF2, 0xFF}
	boardColor = color.RGBA{0x1E, 0x5A, 0x3C, 0xFF}
	tileColor  = color.RGBA{0xE8, 0xD3, 0xA9, 0xFF}
)

// createTestImage creates a solid color test image
func createTestImage(width, height int, c color.Color) *image.RGBA {
	img := image.NewRGBA(image.Rect(0, 0, width, height))
	draw.Draw(img, img.Bounds(), &image.Uniform{C: c}, image.Point{}, draw.Src)
	return img
}

func fill(img *image.RGBA, r image.Rectangle, c color.Color) {
	draw.Draw(img, r, &image.Uniform{C: c}, image.Point{}, draw.Src)
}

// tilePixels returns the pixel rectangle of the tile at row/col shifted by
// (dx, dy).
func tilePixels(row, col, dx, dy int) image.Rectangle {
	x := boardOrigin + col*cellSize + tileInset + dx
	y := boardOrigin + row*cellSize + tileInset + dy
	return image.Rect(x, y, x+tileSize, y+tileSize)
}

// createBoardImage draws the board with tiles at the given pixel rectangles.
func createBoardImage(tiles ...image.Rectangle) *image.RGBA {
	img := createTestImage(frameSize, frameSize, tableColor)
	boardPx := image.Rect(boardOrigin, boardOrigin, boardOrigin+gridN*cellSize, boardOrigin+gridN*cellSize)
	fill(img, boardPx, boardColor)
	for _, t := range tiles {
		fill(img, t, tileColor)
	}
	return img
}

func boardBox() geom.Rect {
	size := float64(gridN*cellSize) / frameSize
	origin := float64(boardOrigin) / frameSize
	return geom.Rect{X: origin, Y: origin, W: size, H: size}
}

func regionAt(row, col int) pipeline.Region {
	return pipeline.Partition(boardBox(), gridN).Regions[row*gridN+col]
}

func normalized(px image.Rectangle) geom.Rect {
	return geom.FromPixels(px, image.Rect(0, 0, frameSize, frameSize))
}
