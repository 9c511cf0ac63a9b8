package terrain

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/mat"
)

// Grid is the elevation surface consumed by the analysis. Bounds are
// authoritative: x in [0, MaxX], y in [0, MaxY]. Implementations must be
// safe for concurrent reads and are never mutated by this package.
type Grid interface {
	MaxX() int
	MaxY() int
	// ElevationAt panics with ErrOutOfBounds outside the grid.
	ElevationAt(x, y int) float64
	// Neighbors8 returns the in-bounds, non-NoData neighbors of (x, y) in the
	// fixed order N, NE, E, SE, S, SW, W, NW.
	Neighbors8(x, y int) []Neighbor
	// Neighbors4 returns the orthogonal neighbors in the order N, E, S, W.
	Neighbors4(x, y int) []Neighbor
	CellToLatLon(x, y int) (lat, lon float64)
}

// DefaultCellSize is one arc-second in degrees.
const DefaultCellSize = 1.0 / 3600.0

// neighborOffsets enumerates the ring clockwise starting north. North is x-1.
var neighborOffsets = [8]struct {
	dx, dy     int
	orthogonal bool
}{
	{-1, 0, true},   // N
	{-1, 1, false},  // NE
	{0, 1, true},    // E
	{1, 1, false},   // SE
	{1, 0, true},    // S
	{1, -1, false},  // SW
	{0, -1, true},   // W
	{-1, -1, false}, // NW
}

// GridOptions describes how grid cells map onto the globe.
type GridOptions struct {
	// OriginLat and OriginLon locate the center of cell (0, 0), the
	// north-west corner of the grid.
	OriginLat float64
	OriginLon float64
	// CellSize is the cell spacing in degrees. Zero means DefaultCellSize.
	CellSize float64
	// NoData, when set, marks samples that carry no elevation.
	NoData *float64
}

// ElevationGrid is a dense, read-only Grid backed by a gonum matrix.
// Rows are the x axis, columns the y axis.
type ElevationGrid struct {
	data *mat.Dense
	opts GridOptions
	rows int
	cols int
}

// NewElevationGrid copies values into a new grid. values[x][y] is the
// elevation of cell (x, y). NoData samples become NaN.
func NewElevationGrid(values [][]float64, opts GridOptions) (*ElevationGrid, error) {
	if len(values) == 0 || len(values[0]) == 0 {
		return nil, ErrEmptyGrid
	}
	rows, cols := len(values), len(values[0])
	flat := make([]float64, 0, rows*cols)
	for x, row := range values {
		if len(row) != cols {
			return nil, fmt.Errorf("row %d has %d columns, want %d: %w", x, len(row), cols, ErrNonRectangular)
		}
		for _, v := range row {
			if opts.NoData != nil && v == *opts.NoData {
				v = math.NaN()
			}
			flat = append(flat, v)
		}
	}
	if opts.CellSize == 0 {
		opts.CellSize = DefaultCellSize
	}
	return &ElevationGrid{
		data: mat.NewDense(rows, cols, flat),
		opts: opts,
		rows: rows,
		cols: cols,
	}, nil
}

// MaxX returns the largest valid x coordinate.
func (g *ElevationGrid) MaxX() int { return g.rows - 1 }

// MaxY returns the largest valid y coordinate.
func (g *ElevationGrid) MaxY() int { return g.cols - 1 }

// Options returns the georeferencing options the grid was built with.
func (g *ElevationGrid) Options() GridOptions { return g.opts }

// InBounds reports whether (x, y) lies within the grid.
func (g *ElevationGrid) InBounds(x, y int) bool {
	return x >= 0 && x < g.rows && y >= 0 && y < g.cols
}

// ElevationAt returns the sample at (x, y), NaN for NoData.
func (g *ElevationGrid) ElevationAt(x, y int) float64 {
	if !g.InBounds(x, y) {
		panic(fmt.Errorf("(%d, %d) outside [0,%d]x[0,%d]: %w", x, y, g.MaxX(), g.MaxY(), ErrOutOfBounds))
	}
	return g.data.At(x, y)
}

// Neighbors8 implements Grid.
func (g *ElevationGrid) Neighbors8(x, y int) []Neighbor {
	out := make([]Neighbor, 0, 8)
	for _, o := range neighborOffsets {
		if n, ok := g.neighbor(x+o.dx, y+o.dy, o.orthogonal); ok {
			out = append(out, n)
		}
	}
	return out
}

// Neighbors4 implements Grid.
func (g *ElevationGrid) Neighbors4(x, y int) []Neighbor {
	out := make([]Neighbor, 0, 4)
	for _, o := range neighborOffsets {
		if !o.orthogonal {
			continue
		}
		if n, ok := g.neighbor(x+o.dx, y+o.dy, true); ok {
			out = append(out, n)
		}
	}
	return out
}

func (g *ElevationGrid) neighbor(x, y int, orthogonal bool) (Neighbor, bool) {
	if !g.InBounds(x, y) {
		return Neighbor{}, false
	}
	e := g.data.At(x, y)
	if math.IsNaN(e) {
		return Neighbor{}, false
	}
	return Neighbor{Cell: Cell{X: x, Y: y, Elevation: e}, Orthogonal: orthogonal}, true
}

// CellToLatLon returns the geographic center of cell (x, y).
func (g *ElevationGrid) CellToLatLon(x, y int) (lat, lon float64) {
	return g.opts.OriginLat - float64(x)*g.opts.CellSize,
		g.opts.OriginLon + float64(y)*g.opts.CellSize
}

// LatLonToCell returns the cell whose center is nearest to (lat, lon).
// The result may lie outside the grid.
func (g *ElevationGrid) LatLonToCell(lat, lon float64) (x, y int) {
	x = int(math.Round((g.opts.OriginLat - lat) / g.opts.CellSize))
	y = int(math.Round((lon - g.opts.OriginLon) / g.opts.CellSize))
	return x, y
}

// Values returns a copy of the samples as values[x][y].
func (g *ElevationGrid) Values() [][]float64 {
	out := make([][]float64, g.rows)
	for x := range out {
		out[x] = mat.Row(nil, x, g.data)
	}
	return out
}

// isEdge reports whether a cell with the given neighbor count touches the
// grid boundary or a NoData hole.
func isEdge(neighbors []Neighbor) bool {
	return len(neighbors) < len(neighborOffsets)
}

// IsEdge reports whether (x, y) lacks one of its eight neighbors, either
// because it lies on the grid boundary or because a neighbor is NoData.
func (g *ElevationGrid) IsEdge(x, y int) bool {
	return isEdge(g.Neighbors8(x, y))
}
