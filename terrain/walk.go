package terrain

import (
	"context"
	"log"
	"sync"
)

// DefaultMaxPathLength bounds a single ascent.
const DefaultMaxPathLength = 5000

// WalkOptions tunes the saddle walker.
type WalkOptions struct {
	// MaxPathLength is the longest ascent path before the walk is reported
	// as stalled. Zero means DefaultMaxPathLength.
	MaxPathLength int
	// Workers is the number of saddles walked concurrently. Values below 1
	// mean 1.
	Workers int
	// AllowFlatSteps lets the ascent step onto unvisited neighbors of equal
	// elevation when no higher neighbor exists, so it can cross shelves.
	AllowFlatSteps bool
}

// Walker connects saddles to summits by steepest ascent from each of a
// saddle's high shores.
type Walker struct {
	grid    Grid
	saddles []*Saddle
	lookup  map[Coord]*Summit
	opts    WalkOptions
}

// NewWalker builds the summit lookup used by every walk. Each cell of a
// summit, including all cells of its plateau, maps back to the summit.
func NewWalker(g Grid, summits []*Summit, saddles []*Saddle, opts WalkOptions) *Walker {
	if opts.MaxPathLength <= 0 {
		opts.MaxPathLength = DefaultMaxPathLength
	}
	if opts.Workers < 1 {
		opts.Workers = 1
	}
	log.Printf("Initiating walk: %d saddles, %d summits", len(saddles), len(summits))

	lookup := make(map[Coord]*Summit)
	for _, s := range summits {
		for _, c := range s.Cells() {
			lookup[c.Coord()] = s
		}
	}
	return &Walker{grid: g, saddles: saddles, lookup: lookup, opts: opts}
}

// SummitAt returns the summit owning (x, y), if any.
func (w *Walker) SummitAt(x, y int) (*Summit, bool) {
	s, ok := w.lookup[Coord{X: x, Y: y}]
	return s, ok
}

// Run walks every saddle using up to opts.Workers goroutines. Linkers are
// returned in saddle order. Cancelling ctx stops scheduling further saddles
// and returns the context error with the partial results.
func (w *Walker) Run(ctx context.Context) ([]*Linker, []Stall, error) {
	type outcome struct {
		linkers []*Linker
		stalls  []Stall
	}
	results := make([]outcome, len(w.saddles))

	jobs := make(chan int)
	var wg sync.WaitGroup
	for i := 0; i < w.opts.Workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for idx := range jobs {
				linkers, stalls := w.walk(w.saddles[idx], idx)
				results[idx] = outcome{linkers: linkers, stalls: stalls}
			}
		}()
	}

	var err error
dispatch:
	for i := range w.saddles {
		if err = ctx.Err(); err != nil {
			break
		}
		select {
		case <-ctx.Done():
			err = ctx.Err()
			break dispatch
		case jobs <- i:
		}
	}
	close(jobs)
	wg.Wait()

	var linkers []*Linker
	var stalls []Stall
	touched := make(map[*Summit]bool)
	for _, r := range results {
		linkers = append(linkers, r.linkers...)
		stalls = append(stalls, r.stalls...)
		for _, l := range r.linkers {
			touched[l.Summit] = true
		}
	}
	for s := range touched {
		s.sortLinkers()
	}
	log.Printf("Walk complete: %d linkers, %d stalled ascents", len(linkers), len(stalls))
	return linkers, stalls, err
}

// Walk ascends from every high shore of saddle, links it to the summits it
// reaches, and disqualifies it when only one distinct summit is reached.
// It must be called at most once per saddle.
func (w *Walker) Walk(saddle *Saddle) ([]*Linker, []Stall) {
	return w.walk(saddle, 0)
}

func (w *Walker) walk(saddle *Saddle, order int) ([]*Linker, []Stall) {
	var linkers []*Linker
	var stalls []Stall
	for i, shore := range saddle.HighShores {
		if len(shore) == 0 {
			continue
		}
		path, summit, reason := w.ascend(shore.Highest()[0])
		if summit == nil {
			log.Printf("Stalled ascent from saddle %s shore %d at (%d, %d): %s after %d steps",
				saddle.ID, i, path[len(path)-1].X, path[len(path)-1].Y, reason, len(path))
			stalls = append(stalls, Stall{SaddleID: saddle.ID, Shore: i, Reason: reason, Path: path})
			continue
		}
		l := newLinker(summit, saddle, path, i, order)
		saddle.addLinker(l)
		summit.addLinker(l)
		linkers = append(linkers, l)
	}

	if len(saddle.Summits()) == 1 {
		saddle.Disqualified = true
	}
	return linkers, stalls
}

// ascend climbs from start until a summit cell is reached. When no step is
// possible it backtracks along the path, one more cell each time, keeping
// every visited cell exempt. The path never exceeds MaxPathLength.
func (w *Walker) ascend(start Cell) ([]Cell, *Summit, StallReason) {
	path := []Cell{start}
	exempt := newCellSet()
	exempt.Add(start.X, start.Y)

	point := start
	lookback := 1
	for {
		if s, ok := w.lookup[point.Coord()]; ok {
			return path, s, ""
		}
		next, ok := w.climb(point, exempt)
		if ok {
			if len(path) >= w.opts.MaxPathLength {
				return path, nil, StallPathLimit
			}
			exempt.Add(next.X, next.Y)
			path = append(path, next)
			point = next
			lookback = 1
			continue
		}
		lookback++
		if lookback > len(path) {
			return path, nil, StallDeadEnd
		}
		point = path[len(path)-lookback]
	}
}

// climb picks the highest non-exempt neighbor strictly above from. Ties go
// to the first neighbor in enumeration order.
func (w *Walker) climb(from Cell, exempt *cellSet) (Cell, bool) {
	best := from.Elevation
	var candidate Cell
	found := false
	for _, n := range w.grid.Neighbors8(from.X, from.Y) {
		if exempt.Has(n.X, n.Y) {
			continue
		}
		switch {
		case n.Elevation > best:
			best = n.Elevation
			candidate = n.Cell
			found = true
		case !found && w.opts.AllowFlatSteps && n.Elevation == from.Elevation:
			candidate = n.Cell
			found = true
		}
	}
	return candidate, found
}
