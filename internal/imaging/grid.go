package imaging

import (
	"fmt"
	"image"
	"image/color"
	"image/draw"
	"strconv"

	"github.com/ironsheep/board-tracker-mcp/internal/geom"
)

// Overlay describes what RenderOverlay draws.
type Overlay struct {
	// Board is the normalized board box; the grid is drawn inside it.
	Board geom.Rect

	// GridSize is the number of cells per side. 0 draws only the board outline.
	GridSize int

	// Boxes are outlined and labelled on top of the grid.
	Boxes []LabeledBox

	// GridColor and BoxColor are hex colours ("#RRGGBB" or "#RRGGBBAA").
	GridColor string
	BoxColor  string

	// MaxSide limits the size of the returned image. 0 keeps the frame size.
	MaxSide int
}

// LabeledBox is a normalized rectangle with a short label. Labels may use
// digits and commas.
type LabeledBox struct {
	Box   geom.Rect
	Label string
}

// OverlayResult is the rendered overlay.
type OverlayResult struct {
	EncodedImage
	GridSize int `json:"grid_size"`
	Boxes    int `json:"boxes"`
}

// RenderOverlay draws the board grid and the given boxes over img.
//
// Parameters:
//   - img: The camera frame.
//   - o: What to draw. Invalid colours fall back to blue for the grid and
//     red for boxes.
//
// Returns:
//   - *OverlayResult: The annotated frame as base64 PNG.
//   - error: Non-nil if PNG encoding fails.
func RenderOverlay(img image.Image, o Overlay) (*OverlayResult, error) {
	bounds := img.Bounds()
	result := image.NewRGBA(image.Rect(0, 0, bounds.Dx(), bounds.Dy()))
	draw.Draw(result, result.Bounds(), img, bounds.Min, draw.Src)

	gridColor, err := parseHexColor(o.GridColor)
	if err != nil {
		gridColor = color.RGBA{0, 0, 255, 255}
	}
	boxColor, err := parseHexColor(o.BoxColor)
	if err != nil {
		boxColor = color.RGBA{255, 0, 0, 255}
	}

	board := o.Board.Pixels(result.Bounds())
	if !board.Empty() {
		drawGrid(result, board, o.GridSize, gridColor)
	}

	labelColor := color.RGBA{255, 255, 255, 255}
	bgColor := color.RGBA{0, 0, 0, 180}
	for _, b := range o.Boxes {
		px := b.Box.Pixels(result.Bounds())
		if px.Empty() {
			continue
		}
		drawOutline(result, px, boxColor)
		if b.Label != "" {
			drawLabel(result, px.Min.X+2, px.Min.Y+2, b.Label, labelColor, bgColor)
		}
	}

	encoded, err := EncodePNG(Thumbnail(result, o.MaxSide))
	if err != nil {
		return nil, err
	}
	return &OverlayResult{
		EncodedImage: *encoded,
		GridSize:     o.GridSize,
		Boxes:        len(o.Boxes),
	}, nil
}

// drawGrid draws n+1 evenly spaced lines each way across board, the last
// ones on its right and bottom pixel.
func drawGrid(img *image.RGBA, board image.Rectangle, n int, c color.RGBA) {
	if n < 1 {
		n = 1
	}
	w, h := board.Dx(), board.Dy()
	for i := 0; i <= n; i++ {
		x := board.Min.X + i*w/n
		y := board.Min.Y + i*h/n
		if i == n {
			x = board.Max.X - 1
			y = board.Max.Y - 1
		}
		for py := board.Min.Y; py < board.Max.Y; py++ {
			img.Set(x, py, c)
		}
		for px := board.Min.X; px < board.Max.X; px++ {
			img.Set(px, y, c)
		}
	}
}

func drawOutline(img *image.RGBA, r image.Rectangle, c color.RGBA) {
	for x := r.Min.X; x < r.Max.X; x++ {
		img.Set(x, r.Min.Y, c)
		img.Set(x, r.Max.Y-1, c)
	}
	for y := r.Min.Y; y < r.Max.Y; y++ {
		img.Set(r.Min.X, y, c)
		img.Set(r.Max.X-1, y, c)
	}
}

// parseHexColor parses a hex color string like "#FF0000" or "#FF000080"
func parseHexColor(hex string) (color.RGBA, error) {
	if len(hex) == 0 {
		return color.RGBA{}, fmt.Errorf("empty color string")
	}
	if hex[0] == '#' {
		hex = hex[1:]
	}

	var r, g, b, a uint8 = 0, 0, 0, 255

	switch len(hex) {
	case 6:
		val, err := strconv.ParseUint(hex, 16, 32)
		if err != nil {
			return color.RGBA{}, err
		}
		r = uint8(val >> 16)
		g = uint8(val >> 8)
		b = uint8(val)
	case 8:
		val, err := strconv.ParseUint(hex, 16, 32)
		if err != nil {
			return color.RGBA{}, err
		}
		r = uint8(val >> 24)
		g = uint8(val >> 16)
		b = uint8(val >> 8)
		a = uint8(val)
	default:
		return color.RGBA{}, fmt.Errorf("invalid hex color length")
	}

	return color.RGBA{R: r, G: g, B: b, A: a}, nil
}

// drawLabel draws text with a 3x5 pixel font covering digits and comma.
func drawLabel(img *image.RGBA, x, y int, text string, fg, bg color.RGBA) {
	glyphs := map[rune][]string{
		'0': {"111", "101", "101", "101", "111"},
		'1': {"010", "110", "010", "010", "111"},
		'2': {"111", "001", "111", "100", "111"},
		'3': {"111", "001", "111", "001", "111"},
		'4': {"101", "101", "111", "001", "001"},
		'5': {"111", "100", "111", "001", "111"},
		'6': {"111", "100", "111", "101", "111"},
		'7': {"111", "001", "001", "001", "001"},
		'8': {"111", "101", "111", "101", "111"},
		'9': {"111", "101", "111", "001", "111"},
		',': {"000", "000", "000", "010", "010"},
	}

	bounds := img.Bounds()
	charWidth := 4
	labelWidth := len(text) * charWidth
	labelHeight := 7

	for dy := -1; dy < labelHeight; dy++ {
		for dx := -1; dx < labelWidth; dx++ {
			px, py := x+dx, y+dy
			if image.Pt(px, py).In(bounds) {
				img.Set(px, py, bg)
			}
		}
	}

	cx := x
	for _, ch := range text {
		glyph, ok := glyphs[ch]
		if !ok {
			cx += charWidth
			continue
		}
		for row, line := range glyph {
			for col, pixel := range line {
				if pixel == '1' {
					px, py := cx+col, y+row
					if image.Pt(px, py).In(bounds) {
						img.Set(px, py, fg)
					}
				}
			}
		}
		cx += charWidth
	}
}
