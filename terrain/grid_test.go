package terrain

import (
	"errors"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewElevationGrid_Errors(t *testing.T) {
	_, err := NewElevationGrid(nil, GridOptions{})
	assert.ErrorIs(t, err, ErrEmptyGrid)

	_, err = NewElevationGrid([][]float64{{}}, GridOptions{})
	assert.ErrorIs(t, err, ErrEmptyGrid)

	_, err = NewElevationGrid([][]float64{{1, 2}, {3}}, GridOptions{})
	assert.ErrorIs(t, err, ErrNonRectangular)
}

func TestElevationGrid_Bounds(t *testing.T) {
	g := mustGrid(t, [][]float64{{1, 2, 3}, {4, 5, 6}})
	assert.Equal(t, 1, g.MaxX())
	assert.Equal(t, 2, g.MaxY())
	assert.Equal(t, 6.0, g.ElevationAt(1, 2))
	assert.True(t, g.InBounds(0, 0))
	assert.False(t, g.InBounds(2, 0))
	assert.False(t, g.InBounds(0, -1))
}

func TestElevationGrid_ElevationAtOutOfBoundsPanics(t *testing.T) {
	g := mustGrid(t, [][]float64{{1}})
	defer func() {
		r := recover()
		require.NotNil(t, r)
		err, ok := r.(error)
		require.True(t, ok)
		assert.True(t, errors.Is(err, ErrOutOfBounds))
	}()
	g.ElevationAt(1, 0)
}

func TestElevationGrid_NeighborOrder(t *testing.T) {
	g := mustGrid(t, [][]float64{
		{8, 1, 2},
		{7, 0, 3},
		{6, 5, 4},
	})

	got := g.Neighbors8(1, 1)
	require.Len(t, got, 8)
	for i, n := range got {
		assert.Equal(t, float64(i+1), n.Elevation, "neighbor %d", i)
		assert.Equal(t, i%2 == 0, n.Orthogonal, "neighbor %d orthogonal", i)
	}

	four := g.Neighbors4(1, 1)
	require.Len(t, four, 4)
	assert.Equal(t, []Coord{{0, 1}, {1, 2}, {2, 1}, {1, 0}}, coords([]Cell{four[0].Cell, four[1].Cell, four[2].Cell, four[3].Cell}))
}

func TestElevationGrid_CornerNeighbors(t *testing.T) {
	g := mustGrid(t, [][]float64{{1, 2}, {3, 4}})
	got := g.Neighbors8(0, 0)
	require.Len(t, got, 3)
	assert.Equal(t, Coord{0, 1}, got[0].Coord())
	assert.Equal(t, Coord{1, 1}, got[1].Coord())
	assert.Equal(t, Coord{1, 0}, got[2].Coord())
	assert.True(t, g.IsEdge(0, 0))
}

func TestElevationGrid_NoData(t *testing.T) {
	values := [][]float64{
		{1, 1, 1},
		{1, 5, -9999},
		{1, 1, 1},
	}
	g, err := NewElevationGrid(values, GridOptions{NoData: floatPtr(-9999)})
	require.NoError(t, err)

	assert.True(t, math.IsNaN(g.ElevationAt(1, 2)))
	assert.Len(t, g.Neighbors8(1, 1), 7)
	assert.True(t, g.IsEdge(1, 1))
}

func TestElevationGrid_LatLon(t *testing.T) {
	g, err := NewElevationGrid([][]float64{{1, 2}, {3, 4}}, GridOptions{OriginLat: 47, OriginLon: 8, CellSize: 0.5})
	require.NoError(t, err)

	lat, lon := g.CellToLatLon(1, 1)
	assert.InDelta(t, 46.5, lat, 1e-9)
	assert.InDelta(t, 8.5, lon, 1e-9)

	x, y := g.LatLonToCell(lat, lon)
	assert.Equal(t, 1, x)
	assert.Equal(t, 1, y)
}

func TestElevationGrid_DefaultCellSize(t *testing.T) {
	g := mustGrid(t, [][]float64{{1}})
	assert.Equal(t, DefaultCellSize, g.Options().CellSize)
}

func TestElevationGrid_ValuesCopy(t *testing.T) {
	in := [][]float64{{1, 2}, {3, 4}}
	g := mustGrid(t, in)
	out := g.Values()
	assert.Equal(t, in, out)

	out[0][0] = 99
	assert.Equal(t, 1.0, g.ElevationAt(0, 0))
}
