package terrain

import (
	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geojson"
	"github.com/paulmach/orb/simplify"
)

// GeoJSON feature "kind" property values.
const (
	GeoKindSummit  = "summit"
	GeoKindSaddle  = "saddle"
	GeoKindPlateau = "plateau"
	GeoKindLinker  = "linker"
)

// ExportOptions controls GeoJSON export.
type ExportOptions struct {
	// SimplifyTolerance, in degrees, applies Douglas-Peucker simplification
	// to linker paths. Zero keeps every path cell.
	SimplifyTolerance float64
	// QualifiedOnly omits disqualified saddles and their linkers.
	QualifiedOnly bool
}

// ToFeatureCollection exports a result as GeoJSON. Summits and saddles are
// Points, their plateaus MultiPoints and linkers LineStrings. Coordinates
// are [lon, lat].
func ToFeatureCollection(g Grid, res *Result, opts ExportOptions) *geojson.FeatureCollection {
	fc := geojson.NewFeatureCollection()

	for _, s := range res.Summits {
		appendSpot(fc, g, s)
	}
	for _, s := range res.Saddles {
		if opts.QualifiedOnly && s.Disqualified {
			continue
		}
		f := appendSpot(fc, g, s)
		f.Properties["disqualified"] = s.Disqualified
		f.Properties["highShores"] = len(s.HighShores)
	}

	for _, l := range res.Linkers {
		if opts.QualifiedOnly && l.Saddle != nil && l.Saddle.Disqualified {
			continue
		}
		ls := pathLineString(g, linkerCells(l))
		if opts.SimplifyTolerance > 0 && len(ls) > 2 {
			ls = simplify.DouglasPeucker(opts.SimplifyTolerance).Simplify(ls).(orb.LineString)
		}
		f := geojson.NewFeature(ls)
		f.ID = l.ID
		f.Properties["kind"] = GeoKindLinker
		f.Properties["steps"] = len(l.Path)
		if l.Summit != nil {
			f.Properties["summit"] = l.Summit.ID
		}
		if l.Saddle != nil {
			f.Properties["saddle"] = l.Saddle.ID
		}
		fc.Append(f)
	}
	return fc
}

func appendSpot(fc *geojson.FeatureCollection, g Grid, feat Feature) *geojson.Feature {
	s := feat.Spot()
	kind := GeoKindSummit
	if feat.Kind() == KindSaddle {
		kind = GeoKindSaddle
	}

	f := geojson.NewFeature(orb.Point{s.Longitude, s.Latitude})
	f.ID = s.ID
	f.Properties["kind"] = kind
	f.Properties["elevation"] = s.Elevation
	f.Properties["edge"] = s.Edge
	fc.Append(f)

	if s.Plateau != nil {
		mp := make(orb.MultiPoint, len(s.Plateau.Cells))
		for i, c := range s.Plateau.Cells {
			lat, lon := g.CellToLatLon(c.X, c.Y)
			mp[i] = orb.Point{lon, lat}
		}
		pf := geojson.NewFeature(mp)
		pf.Properties["kind"] = GeoKindPlateau
		pf.Properties["feature"] = s.ID
		pf.Properties["elevation"] = s.Plateau.Elevation
		pf.Properties["cells"] = len(mp)
		fc.Append(pf)
	}
	return f
}

func pathLineString(g Grid, path []Cell) orb.LineString {
	ls := make(orb.LineString, len(path))
	for i, c := range path {
		lat, lon := g.CellToLatLon(c.X, c.Y)
		ls[i] = orb.Point{lon, lat}
	}
	return ls
}

// linkerCells returns the drawn geometry of l: the saddle cell followed by
// the ascent path. The path alone may be a single cell when the high shore
// is already part of the summit.
func linkerCells(l *Linker) []Cell {
	if l.Saddle == nil || (len(l.Path) > 0 && l.Path[0].Coord() == l.Saddle.Cell.Coord()) {
		return l.Path
	}
	return append([]Cell{l.Saddle.Cell}, l.Path...)
}

// Bound returns the geographic extent of g.
func Bound(g Grid) orb.Bound {
	lat1, lon1 := g.CellToLatLon(0, 0)
	lat2, lon2 := g.CellToLatLon(g.MaxX(), g.MaxY())
	return orb.Bound{Min: orb.Point{lon1, lat1}, Max: orb.Point{lon1, lat1}}.
		Extend(orb.Point{lon2, lat2})
}
