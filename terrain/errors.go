package terrain

import "errors"

// Sentinel errors returned or raised by grid construction and access.
var (
	// ErrEmptyGrid is returned when a grid has no rows or no columns.
	ErrEmptyGrid = errors.New("terrain: grid must have at least one row and one column")
	// ErrNonRectangular is returned when grid rows differ in length.
	ErrNonRectangular = errors.New("terrain: all grid rows must have the same length")
	// ErrOutOfBounds is the panic value for coordinates outside the grid.
	ErrOutOfBounds = errors.New("terrain: coordinate out of bounds")
)
