package terrain

import (
	"math"
	"sort"
	"strings"
)

// Relation describes a sample's elevation relative to a reference.
type Relation int8

const (
	Equal Relation = iota
	Higher
	Lower
)

// String returns the profile token: "H", "L" or "=".
func (r Relation) String() string {
	switch r {
	case Higher:
		return "H"
	case Lower:
		return "L"
	default:
		return "="
	}
}

func relationOf(elevation, reference float64) Relation {
	switch {
	case elevation > reference:
		return Higher
	case elevation < reference:
		return Lower
	default:
		return Equal
	}
}

// Classification is the outcome of profile classification.
type Classification int

const (
	NotFeature Classification = iota
	SummitProfile
	SaddleProfile
)

func (c Classification) String() string {
	switch c {
	case SummitProfile:
		return "summit"
	case SaddleProfile:
		return "saddle"
	default:
		return "none"
	}
}

const summitPattern = "L"

var saddlePatterns = [...]string{"HLHL", "LHLH"}

// ReduceProfile collapses runs of repeated tokens: "HHLLLH" becomes "HLH".
// The first and last tokens are not compared, so the profile is treated as
// an open sequence rather than a ring.
func ReduceProfile(profile string) string {
	if profile == "" {
		return ""
	}
	var b strings.Builder
	b.Grow(len(profile))
	last := profile[0]
	b.WriteByte(last)
	for i := 1; i < len(profile); i++ {
		if profile[i] != last {
			last = profile[i]
			b.WriteByte(last)
		}
	}
	return b.String()
}

// ClassifyProfile reduces profile and classifies it. A reduced profile of
// exactly "L" is a summit; one containing "HLHL" or "LHLH" is a saddle.
func ClassifyProfile(profile string) Classification {
	reduced := ReduceProfile(profile)
	if reduced == summitPattern {
		return SummitProfile
	}
	for _, p := range saddlePatterns {
		if strings.Contains(reduced, p) {
			return SaddleProfile
		}
	}
	return NotFeature
}

// BuildProfile builds the H/L profile of a cell from its ordered neighbors.
// It stops and reports equal=true at the first equal-height neighbor.
func BuildProfile(elevation float64, neighbors []Neighbor) (profile string, high []Cell, equal bool) {
	var b strings.Builder
	for _, n := range neighbors {
		r := relationOf(n.Elevation, elevation)
		if r == Equal {
			return "", nil, true
		}
		if r == Higher {
			high = append(high, n.Cell)
		}
		b.WriteString(r.String())
	}
	return b.String(), high, false
}

// groupOrthogonal partitions cells into orthogonally connected components.
// Groups are ordered by their first member in input order.
func groupOrthogonal(cells []Cell) []ShoreGroup {
	if len(cells) == 0 {
		return nil
	}
	pos := make(map[Coord]int, len(cells))
	for i, c := range cells {
		pos[c.Coord()] = i
	}
	assigned := make([]bool, len(cells))
	var groups []ShoreGroup
	for i := range cells {
		if assigned[i] {
			continue
		}
		assigned[i] = true
		group := ShoreGroup{cells[i]}
		for k := 0; k < len(group); k++ {
			c := group[k]
			for _, o := range neighborOffsets {
				if !o.orthogonal {
					continue
				}
				j, ok := pos[Coord{X: c.X + o.dx, Y: c.Y + o.dy}]
				if ok && !assigned[j] {
					assigned[j] = true
					group = append(group, cells[j])
				}
			}
		}
		groups = append(groups, group)
	}
	return groups
}

type bearingGroup struct {
	relation Relation
	bearing  float64
	first    Coord
}

// shoreProfile orders high and low shore groups clockwise from north around
// the plateau centroid and emits one token per group.
func shoreProfile(p *Plateau) string {
	cx, cy := centroid(p.Cells)
	var entries []bearingGroup
	add := func(groups []ShoreGroup, r Relation) {
		for _, g := range groups {
			gx, gy := centroid(g)
			entries = append(entries, bearingGroup{
				relation: r,
				bearing:  bearing(gx-cx, gy-cy),
				first:    g[0].Coord(),
			})
		}
	}
	add(p.HighShores, Higher)
	add(p.LowShores, Lower)

	sort.SliceStable(entries, func(i, j int) bool {
		if entries[i].bearing != entries[j].bearing {
			return entries[i].bearing < entries[j].bearing
		}
		if entries[i].first.X != entries[j].first.X {
			return entries[i].first.X < entries[j].first.X
		}
		return entries[i].first.Y < entries[j].first.Y
	})

	var b strings.Builder
	for _, e := range entries {
		b.WriteString(e.relation.String())
	}
	return b.String()
}

// bearing returns the clockwise angle from north in [0, 2π) of a grid
// offset. North is -x, east is +y.
func bearing(dx, dy float64) float64 {
	a := math.Atan2(dy, -dx)
	if a < 0 {
		a += 2 * math.Pi
	}
	return a
}

func centroid(cells []Cell) (x, y float64) {
	if len(cells) == 0 {
		return 0, 0
	}
	for _, c := range cells {
		x += float64(c.X)
		y += float64(c.Y)
	}
	n := float64(len(cells))
	return x / n, y / n
}
