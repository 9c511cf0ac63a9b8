package terrain

import (
	"log"
	"math"
	"time"

	"github.com/google/uuid"
)

// DefaultProgressInterval is the number of cells between progress reports.
const DefaultProgressInterval = 100000

// AnalyzeOptions tunes the feature classifier.
type AnalyzeOptions struct {
	// ProgressInterval is the number of scanned cells between progress log
	// lines. Zero means DefaultProgressInterval, negative disables them.
	ProgressInterval int
	// EdgeSaddles classifies a plateau touching the grid edge with exactly
	// one high shore group and at least one low shore group as a saddle.
	// The hidden side of the boundary may hold a second ascent.
	EdgeSaddles bool
}

// Analyzer scans a grid once and classifies every cell as summit, saddle or
// neither. Plateaus are flood-filled and classified exactly once.
type Analyzer struct {
	grid     Grid
	opts     AnalyzeOptions
	resolved *cellSet
}

// NewAnalyzer creates an analyzer over g.
func NewAnalyzer(g Grid, opts AnalyzeOptions) *Analyzer {
	if opts.ProgressInterval == 0 {
		opts.ProgressInterval = DefaultProgressInterval
	}
	return &Analyzer{grid: g, opts: opts, resolved: newCellSet()}
}

// Analyze scans the grid in row-major order and returns the summits and
// saddles found. Each call starts from an empty memoization set.
func (a *Analyzer) Analyze() ([]*Summit, []*Saddle) {
	a.resolved = newCellSet()

	var summits []*Summit
	var saddles []*Saddle

	maxX, maxY := a.grid.MaxX(), a.grid.MaxY()
	total := (maxX + 1) * (maxY + 1)
	log.Printf("Initiating analysis of %dx%d grid (%d cells)", maxX+1, maxY+1, total)

	start := time.Now()
	lastSplit := start
	index := 0
	for x := 0; x <= maxX; x++ {
		for y := 0; y <= maxY; y++ {
			index++
			if a.opts.ProgressInterval > 0 && index%a.opts.ProgressInterval == 0 {
				now := time.Now()
				runtime := now.Sub(start)
				log.Printf("Cells per second: %.2f - %.2f%% runtime: %v, split: %v",
					float64(index)/runtime.Seconds(),
					float64(index)/float64(total)*100,
					runtime.Round(10*time.Millisecond),
					now.Sub(lastSplit).Round(10*time.Millisecond))
				lastSplit = now
			}

			switch f := a.classifyCell(x, y).(type) {
			case *Summit:
				summits = append(summits, f)
			case *Saddle:
				saddles = append(saddles, f)
			}
		}
	}

	log.Printf("Analysis complete: %d summits, %d saddles in %v",
		len(summits), len(saddles), time.Since(start).Round(time.Millisecond))
	return summits, saddles
}

// Resolved reports whether (x, y) belongs to a plateau already classified
// by the last Analyze call.
func (a *Analyzer) Resolved(x, y int) bool {
	return a.resolved.Has(x, y)
}

// ResolvedCount returns the number of plateau cells registered by the last
// Analyze call.
func (a *Analyzer) ResolvedCount() int {
	return a.resolved.Len()
}

func (a *Analyzer) classifyCell(x, y int) Feature {
	if a.resolved.Has(x, y) {
		return nil
	}
	elevation := a.grid.ElevationAt(x, y)
	if math.IsNaN(elevation) {
		return nil
	}
	cell := Cell{X: x, Y: y, Elevation: elevation}

	neighbors := a.grid.Neighbors8(x, y)
	profile, high, equal := BuildProfile(elevation, neighbors)
	if equal {
		return a.classifyPlateau(cell)
	}

	edge := isEdge(neighbors)
	switch ClassifyProfile(profile) {
	case SummitProfile:
		return a.newSummit(cell, edge, nil)
	case SaddleProfile:
		return a.newSaddle(cell, edge, nil, groupOrthogonal(high))
	}
	return nil
}

func (a *Analyzer) classifyPlateau(seed Cell) Feature {
	p := AnalyzePlateau(a.grid, seed)
	for _, c := range p.Cells {
		a.resolved.Add(c.X, c.Y)
	}

	switch ClassifyProfile(shoreProfile(p)) {
	case SummitProfile:
		return a.newSummit(seed, p.Edge, p)
	case SaddleProfile:
		return a.newSaddle(seed, p.Edge, p, p.HighShores)
	}
	if a.opts.EdgeSaddles && p.Edge && len(p.HighShores) == 1 && len(p.LowShores) > 0 {
		return a.newSaddle(seed, p.Edge, p, p.HighShores)
	}
	return nil
}

func (a *Analyzer) spot(cell Cell, edge bool, p *Plateau) SpotElevation {
	s := SpotElevation{
		ID:        uuid.NewString(),
		Elevation: cell.Elevation,
		Edge:      edge,
		Cell:      cell,
		Plateau:   p,
	}
	if p == nil {
		s.Latitude, s.Longitude = a.grid.CellToLatLon(cell.X, cell.Y)
		return s
	}
	for _, c := range p.Cells {
		lat, lon := a.grid.CellToLatLon(c.X, c.Y)
		s.Latitude += lat
		s.Longitude += lon
	}
	n := float64(len(p.Cells))
	s.Latitude /= n
	s.Longitude /= n
	s.Elevation = p.Elevation
	return s
}

func (a *Analyzer) newSummit(cell Cell, edge bool, p *Plateau) *Summit {
	return &Summit{SpotElevation: a.spot(cell, edge, p)}
}

func (a *Analyzer) newSaddle(cell Cell, edge bool, p *Plateau, shores []ShoreGroup) *Saddle {
	return &Saddle{SpotElevation: a.spot(cell, edge, p), HighShores: shores}
}
