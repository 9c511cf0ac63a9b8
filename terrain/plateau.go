package terrain

// AnalyzePlateau flood-fills the equal-elevation region containing seed.
//
// Interior cells are joined through orthogonal steps only. An equal-height
// neighbor reached diagonally is recorded as shore with Relation Equal so
// that two plateaus touching at a single corner stay separate. Any shore
// entry later found to be interior is dropped before the shore is grouped.
//
// Complexity: O(n) neighbor queries for a plateau of n cells.
func AnalyzePlateau(g Grid, seed Cell) *Plateau {
	b := newPlateauBuilder(g, seed)
	work := []Cell{seed}
	for len(work) > 0 {
		c := work[len(work)-1]
		work = work[:len(work)-1]
		work = b.expand(c, work)
	}
	return b.finish()
}

// plateauBuilder accumulates the interior and shore of one plateau.
type plateauBuilder struct {
	grid    Grid
	plateau *Plateau
	shore   map[Coord]int
	points  []ShorePoint
}

func newPlateauBuilder(g Grid, seed Cell) *plateauBuilder {
	b := &plateauBuilder{
		grid: g,
		plateau: &Plateau{
			Elevation: seed.Elevation,
			index:     make(map[Coord]int),
		},
		shore: make(map[Coord]int),
	}
	b.addInterior(seed)
	return b
}

func (b *plateauBuilder) addInterior(c Cell) {
	b.plateau.index[c.Coord()] = len(b.plateau.Cells)
	b.plateau.Cells = append(b.plateau.Cells, c)
}

// expand visits the neighbors of interior cell c and returns the work list
// extended with newly discovered interior cells.
func (b *plateauBuilder) expand(c Cell, work []Cell) []Cell {
	p := b.plateau
	from := p.index[c.Coord()]
	neighbors := b.grid.Neighbors8(c.X, c.Y)
	if isEdge(neighbors) {
		p.Edge = true
	}
	for _, n := range neighbors {
		if p.Contains(n.X, n.Y) {
			continue
		}
		if n.Elevation == p.Elevation && n.Orthogonal {
			b.addInterior(n.Cell)
			work = append(work, n.Cell)
			continue
		}
		b.addShore(n.Cell, from)
	}
	return work
}

func (b *plateauBuilder) addShore(c Cell, border int) {
	if i, ok := b.shore[c.Coord()]; ok {
		b.points[i].Borders = append(b.points[i].Borders, border)
		return
	}
	b.shore[c.Coord()] = len(b.points)
	b.points = append(b.points, ShorePoint{
		Cell:     c,
		Relation: relationOf(c.Elevation, b.plateau.Elevation),
		Borders:  []int{border},
	})
}

func (b *plateauBuilder) finish() *Plateau {
	p := b.plateau
	var high, low []Cell
	for _, sp := range b.points {
		if p.Contains(sp.X, sp.Y) {
			continue
		}
		p.Shore = append(p.Shore, sp)
		switch sp.Relation {
		case Higher:
			high = append(high, sp.Cell)
		case Lower:
			low = append(low, sp.Cell)
		}
	}
	p.HighShores = groupOrthogonal(high)
	p.LowShores = groupOrthogonal(low)
	return p
}
