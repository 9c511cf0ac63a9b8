package terrain

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geo"
)

// Collection is an ordered set of features supporting spatial and
// elevation queries. Query methods return new collections that share the
// underlying features.
type Collection struct {
	Points []Feature
}

// NewCollection builds a collection from summits followed by saddles.
func NewCollection(summits []*Summit, saddles []*Saddle) *Collection {
	c := &Collection{Points: make([]Feature, 0, len(summits)+len(saddles))}
	for _, s := range summits {
		c.Points = append(c.Points, s)
	}
	for _, s := range saddles {
		c.Points = append(c.Points, s)
	}
	return c
}

// Len returns the number of features.
func (c *Collection) Len() int { return len(c.Points) }

func (c *Collection) filter(keep func(Feature) bool) *Collection {
	out := &Collection{}
	for _, f := range c.Points {
		if keep(f) {
			out.Points = append(out.Points, f)
		}
	}
	return out
}

// Radius returns features within meters of (lat, lon), boundary included.
// Distance is great-circle distance on a spherical earth.
func (c *Collection) Radius(lat, lon, meters float64) *Collection {
	center := orb.Point{lon, lat}
	return c.filter(func(f Feature) bool {
		s := f.Spot()
		return geo.Distance(center, orb.Point{s.Longitude, s.Latitude}) <= meters
	})
}

// Rectangle returns features strictly inside the box spanned by the two
// corners. Corners may be given in any order.
func (c *Collection) Rectangle(lat1, lon1, lat2, lon2 float64) *Collection {
	b := orb.Bound{Min: orb.Point{lon1, lat1}, Max: orb.Point{lon1, lat1}}.
		Extend(orb.Point{lon2, lat2})
	return c.filter(func(f Feature) bool {
		s := f.Spot()
		return s.Longitude > b.Min.Lon() && s.Longitude < b.Max.Lon() &&
			s.Latitude > b.Min.Lat() && s.Latitude < b.Max.Lat()
	})
}

// ByType returns features of the named kind, compared case-insensitively.
func (c *Collection) ByType(kind string) *Collection {
	return c.filter(func(f Feature) bool {
		return strings.EqualFold(string(f.Kind()), kind)
	})
}

// ElevationRange returns features with lower < elevation < upper.
func (c *Collection) ElevationRange(lower, upper float64) *Collection {
	return c.filter(func(f Feature) bool {
		e := f.Spot().Elevation
		return e > lower && e < upper
	})
}

// Summits returns the summits in collection order.
func (c *Collection) Summits() []*Summit {
	var out []*Summit
	for _, f := range c.Points {
		if s, ok := f.(*Summit); ok {
			out = append(out, s)
		}
	}
	return out
}

// Saddles returns the saddles in collection order.
func (c *Collection) Saddles() []*Saddle {
	var out []*Saddle
	for _, f := range c.Points {
		if s, ok := f.(*Saddle); ok {
			out = append(out, s)
		}
	}
	return out
}

// featureRecord is the JSON form of a single feature.
type featureRecord struct {
	Type         FeatureKind  `json:"type"`
	ID           string       `json:"id"`
	Latitude     float64      `json:"latitude"`
	Longitude    float64      `json:"longitude"`
	Elevation    float64      `json:"elevation"`
	Edge         bool         `json:"edge"`
	Cell         Cell         `json:"cell"`
	Cells        []Cell       `json:"cells,omitempty"`
	HighShores   []ShoreGroup `json:"highShores,omitempty"`
	Disqualified bool         `json:"disqualified,omitempty"`
}

func recordOf(f Feature) featureRecord {
	s := f.Spot()
	r := featureRecord{
		Type:      f.Kind(),
		ID:        s.ID,
		Latitude:  s.Latitude,
		Longitude: s.Longitude,
		Elevation: s.Elevation,
		Edge:      s.Edge,
		Cell:      s.Cell,
	}
	if s.Plateau != nil {
		r.Cells = s.Plateau.Cells
	}
	if sd, ok := f.(*Saddle); ok {
		r.HighShores = sd.HighShores
		r.Disqualified = sd.Disqualified
	}
	return r
}

func (r featureRecord) feature() (Feature, error) {
	spot := SpotElevation{
		ID:        r.ID,
		Latitude:  r.Latitude,
		Longitude: r.Longitude,
		Elevation: r.Elevation,
		Edge:      r.Edge,
		Cell:      r.Cell,
	}
	if len(r.Cells) > 0 {
		spot.Plateau = newPlateau(r.Elevation, r.Cells, r.Edge)
	}
	switch r.Type {
	case KindSummit:
		return &Summit{SpotElevation: spot}, nil
	case KindSaddle:
		return &Saddle{SpotElevation: spot, HighShores: r.HighShores, Disqualified: r.Disqualified}, nil
	}
	return nil, fmt.Errorf("cannot import unknown feature type %q", r.Type)
}

// newPlateau rebuilds a plateau from its interior cells. Shores are not
// recomputed.
func newPlateau(elevation float64, cells []Cell, edge bool) *Plateau {
	p := &Plateau{Elevation: elevation, Edge: edge, index: make(map[Coord]int, len(cells))}
	for _, c := range cells {
		p.index[c.Coord()] = len(p.Cells)
		p.Cells = append(p.Cells, c)
	}
	return p
}

// ToJSON encodes the collection as a JSON array of feature records.
func (c *Collection) ToJSON(pretty bool) ([]byte, error) {
	records := make([]featureRecord, len(c.Points))
	for i, f := range c.Points {
		records[i] = recordOf(f)
	}
	if pretty {
		return json.MarshalIndent(records, "", "    ")
	}
	return json.Marshal(records)
}

// FromJSON replaces the collection contents with features decoded from data.
// Linkers are not part of the encoding.
func (c *Collection) FromJSON(data []byte) error {
	var records []featureRecord
	if err := json.Unmarshal(data, &records); err != nil {
		return fmt.Errorf("failed to parse features: %w", err)
	}
	points := make([]Feature, 0, len(records))
	for i, r := range records {
		f, err := r.feature()
		if err != nil {
			return fmt.Errorf("feature %d: %w", i, err)
		}
		points = append(points, f)
	}
	c.Points = points
	return nil
}
