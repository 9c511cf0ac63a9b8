package terrain

import (
	"encoding/json"
	"fmt"
	"math"
	"os"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"
)

// GridFile is the JSON interchange form of an elevation grid.
//
//	{
//	  "origin": {"lat": 47.5, "lon": 8.25},
//	  "cellSize": 0.000277,
//	  "noData": -32768,
//	  "elevations": [[512, 515, ...], ...]
//	}
//
// elevations[x][y] is the sample of row x (north to south) and column y
// (west to east).
type GridFile struct {
	Origin     GridOrigin  `json:"origin"`
	CellSize   float64     `json:"cellSize,omitempty"`
	NoData     *float64    `json:"noData,omitempty"`
	Elevations [][]float64 `json:"elevations"`
}

// GridOrigin is the center of cell (0, 0).
type GridOrigin struct {
	Lat float64 `json:"lat"`
	Lon float64 `json:"lon"`
}

// Options returns the grid options described by the file.
func (f *GridFile) Options() GridOptions {
	return GridOptions{
		OriginLat: f.Origin.Lat,
		OriginLon: f.Origin.Lon,
		CellSize:  f.CellSize,
		NoData:    f.NoData,
	}
}

// Grid builds the elevation grid described by the file.
func (f *GridFile) Grid() (*ElevationGrid, error) {
	if f.CellSize < 0 {
		return nil, fmt.Errorf("cellSize must be positive, got %g", f.CellSize)
	}
	return NewElevationGrid(f.Elevations, f.Options())
}

// ParseGridFile reads and parses a grid JSON file
func ParseGridFile(path string) (*ElevationGrid, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading file: %w", err)
	}
	return ParseGridJSON(data)
}

// ParseGridJSON parses grid JSON data
func ParseGridJSON(data []byte) (*ElevationGrid, error) {
	var f GridFile
	if err := json.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("parsing JSON: %w", err)
	}
	g, err := f.Grid()
	if err != nil {
		return nil, fmt.Errorf("building grid: %w", err)
	}
	return g, nil
}

// EncodeGrid returns the JSON interchange form of g. NoData cells are
// written as noData, which must then be set.
func EncodeGrid(g *ElevationGrid) ([]byte, error) {
	opts := g.Options()
	values := g.Values()
	for _, row := range values {
		for y, v := range row {
			if math.IsNaN(v) {
				if opts.NoData == nil {
					return nil, fmt.Errorf("grid has NoData cells but no noData value")
				}
				row[y] = *opts.NoData
			}
		}
	}
	return json.Marshal(GridFile{
		Origin:     GridOrigin{Lat: opts.OriginLat, Lon: opts.OriginLon},
		CellSize:   opts.CellSize,
		NoData:     opts.NoData,
		Elevations: values,
	})
}

// GridSummary describes the elevation distribution of a grid.
type GridSummary struct {
	Rows   int     `json:"rows"`
	Cols   int     `json:"cols"`
	Valid  int     `json:"valid"`
	NoData int     `json:"noData"`
	Min    float64 `json:"min"`
	Max    float64 `json:"max"`
	Mean   float64 `json:"mean"`
	StdDev float64 `json:"stdDev"`
	Median float64 `json:"median"`
}

// Summarize computes elevation statistics over the valid cells of g.
func Summarize(g Grid) GridSummary {
	s := GridSummary{Rows: g.MaxX() + 1, Cols: g.MaxY() + 1}
	valid := make([]float64, 0, s.Rows*s.Cols)
	for x := 0; x <= g.MaxX(); x++ {
		for y := 0; y <= g.MaxY(); y++ {
			v := g.ElevationAt(x, y)
			if math.IsNaN(v) {
				s.NoData++
				continue
			}
			valid = append(valid, v)
		}
	}
	s.Valid = len(valid)
	if len(valid) == 0 {
		return s
	}

	s.Min = floats.Min(valid)
	s.Max = floats.Max(valid)
	s.Mean, s.StdDev = stat.MeanStdDev(valid, nil)
	if len(valid) == 1 {
		s.StdDev = 0
	}
	sorted := append([]float64(nil), valid...)
	floats.Argsort(sorted, make([]int, len(sorted)))
	s.Median = stat.Quantile(0.5, stat.Empirical, sorted, nil)
	return s
}
