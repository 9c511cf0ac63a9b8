package terrain

import (
	"testing"

	"github.com/stretchr/testify/require"
)

// ---------------------------------------------------------------------------
// helpers
// ---------------------------------------------------------------------------

func mustGrid(t *testing.T, values [][]float64) *ElevationGrid {
	t.Helper()
	g, err := NewElevationGrid(values, GridOptions{OriginLat: 47, OriginLon: 8})
	require.NoError(t, err)
	return g
}

func floatPtr(v float64) *float64 { return &v }

func coords(cells []Cell) []Coord {
	out := make([]Coord, len(cells))
	for i, c := range cells {
		out[i] = c.Coord()
	}
	return out
}

// twoPeaks has summits at (1,1) and (1,3) separated by a saddle at (1,2).
func twoPeaks() [][]float64 {
	return [][]float64{
		{1, 1, 1, 1, 1},
		{1, 9, 5, 8, 1},
		{1, 1, 1, 1, 1},
	}
}
