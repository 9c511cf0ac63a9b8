package terrain

// cellSet is a two-level coordinate set: x -> set of y.
type cellSet struct {
	rows  map[int]map[int]struct{}
	count int
}

func newCellSet() *cellSet {
	return &cellSet{rows: make(map[int]map[int]struct{})}
}

// Add inserts (x, y) and reports whether it was not already present.
func (s *cellSet) Add(x, y int) bool {
	row, ok := s.rows[x]
	if !ok {
		row = make(map[int]struct{})
		s.rows[x] = row
	}
	if _, seen := row[y]; seen {
		return false
	}
	row[y] = struct{}{}
	s.count++
	return true
}

func (s *cellSet) Has(x, y int) bool {
	_, ok := s.rows[x][y]
	return ok
}

func (s *cellSet) Len() int {
	return s.count
}
