package terrain

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAnalyzePlateau_Block(t *testing.T) {
	g := mustGrid(t, [][]float64{
		{5, 5, 5, 5},
		{5, 10, 10, 5},
		{5, 10, 10, 5},
		{5, 5, 5, 5},
	})

	p := AnalyzePlateau(g, Cell{X: 1, Y: 1, Elevation: 10})

	assert.Equal(t, 10.0, p.Elevation)
	assert.ElementsMatch(t, []Coord{{1, 1}, {1, 2}, {2, 1}, {2, 2}}, coords(p.Cells))
	assert.False(t, p.Edge)
	assert.Empty(t, p.HighShores)
	require.Len(t, p.LowShores, 1)
	assert.Len(t, p.LowShores[0], 12)
	assert.Len(t, p.Shore, 12)
	for _, sp := range p.Shore {
		assert.Equal(t, Lower, sp.Relation)
	}
}

func TestAnalyzePlateau_Borders(t *testing.T) {
	g := mustGrid(t, [][]float64{
		{5, 5, 5, 5},
		{5, 10, 10, 5},
		{5, 10, 10, 5},
		{5, 5, 5, 5},
	})
	p := AnalyzePlateau(g, Cell{X: 1, Y: 1, Elevation: 10})

	byCoord := make(map[Coord]ShorePoint)
	for _, sp := range p.Shore {
		byCoord[sp.Coord()] = sp
	}

	corner := byCoord[Coord{0, 0}]
	require.Len(t, corner.Borders, 1)
	assert.Equal(t, Coord{1, 1}, p.Cells[corner.Borders[0]].Coord())

	// (0,1) touches (1,1) orthogonally and (1,2) diagonally
	side := byCoord[Coord{0, 1}]
	var touched []Coord
	for _, i := range side.Borders {
		touched = append(touched, p.Cells[i].Coord())
	}
	assert.ElementsMatch(t, []Coord{{1, 1}, {1, 2}}, touched)
}

func TestAnalyzePlateau_DiagonalIsShore(t *testing.T) {
	g := mustGrid(t, [][]float64{
		{5, 1, 1},
		{1, 5, 1},
		{1, 1, 1},
	})

	p := AnalyzePlateau(g, Cell{X: 0, Y: 0, Elevation: 5})

	assert.Equal(t, []Coord{{0, 0}}, coords(p.Cells))
	assert.True(t, p.Edge)

	var diagonal *ShorePoint
	for i := range p.Shore {
		if p.Shore[i].Coord() == (Coord{1, 1}) {
			diagonal = &p.Shore[i]
		}
	}
	require.NotNil(t, diagonal, "diagonal equal cell should be recorded as shore")
	assert.Equal(t, Equal, diagonal.Relation)

	assert.Empty(t, p.HighShores)
	assert.Len(t, p.LowShores, 2, "(0,1) and (1,0) touch only diagonally")
}

func TestAnalyzePlateau_DropsShoreLaterFoundInterior(t *testing.T) {
	g := mustGrid(t, [][]float64{
		{5, 5},
		{5, 5},
	})

	p := AnalyzePlateau(g, Cell{X: 0, Y: 1, Elevation: 5})

	assert.Len(t, p.Cells, 4)
	assert.Empty(t, p.Shore)
	assert.True(t, p.Edge)
}

func TestAnalyzePlateau_TwoHighShores(t *testing.T) {
	g := mustGrid(t, [][]float64{
		{0, 9, 9, 0},
		{0, 5, 5, 0},
		{0, 8, 8, 0},
	})

	p := AnalyzePlateau(g, Cell{X: 1, Y: 1, Elevation: 5})

	assert.False(t, p.Edge)
	require.Len(t, p.HighShores, 2)
	require.Len(t, p.LowShores, 2)
	assert.Equal(t, "HLHL", shoreProfile(p))
	assert.Equal(t, SaddleProfile, ClassifyProfile(shoreProfile(p)))
}

func TestAnalyzePlateau_Contains(t *testing.T) {
	g := mustGrid(t, [][]float64{{3, 3, 4}})
	p := AnalyzePlateau(g, Cell{X: 0, Y: 0, Elevation: 3})
	assert.True(t, p.Contains(0, 1))
	assert.False(t, p.Contains(0, 2))
}
