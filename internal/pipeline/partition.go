package pipeline

import "github.com/ironsheep/board-tracker-mcp/internal/geom"

// Partition divides box into an n×n grid in row-major order, row 0 at the
// top. The last row and column end exactly on the box edge so the union of
// all cells equals box.
//
// Parameters:
//   - box: The board rectangle to divide.
//   - n: Cells per side. Values below 1 are treated as 1.
//
// Returns:
//   - Grid: n*n regions, region i at row i/n and column i%n.
func Partition(box geom.Rect, n int) Grid {
	if n < 1 {
		n = 1
	}
	xs := edges(box.X, box.W, n)
	ys := edges(box.Y, box.H, n)

	regions := make([]Region, 0, n*n)
	for row := 0; row < n; row++ {
		for col := 0; col < n; col++ {
			regions = append(regions, Region{
				Row: row,
				Col: col,
				Rect: geom.Rect{
					X: xs[col],
					Y: ys[row],
					W: xs[col+1] - xs[col],
					H: ys[row+1] - ys[row],
				},
			})
		}
	}
	return Grid{Box: box, Size: n, Regions: regions}
}

// edges returns the n+1 cut positions along one axis.
func edges(origin, extent float64, n int) []float64 {
	cuts := make([]float64, n+1)
	step := extent / float64(n)
	for i := 0; i < n; i++ {
		cuts[i] = origin + float64(i)*step
	}
	cuts[n] = origin + extent
	return cuts
}
