package terrain

import (
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
)

// Cell is a grid coordinate together with the elevation sampled there.
type Cell struct {
	X         int     `json:"x"`
	Y         int     `json:"y"`
	Elevation float64 `json:"elevation"`
}

// Coord returns the cell's coordinate without its elevation.
func (c Cell) Coord() Coord {
	return Coord{X: c.X, Y: c.Y}
}

// Coord is an integer grid coordinate. X is the row (latitude) axis,
// Y the column (longitude) axis.
type Coord struct {
	X int
	Y int
}

// Neighbor is a cell reported by a neighbor query. Orthogonal is true for
// the four axis-aligned neighbors and false for the diagonals.
type Neighbor struct {
	Cell
	Orthogonal bool
}

// FeatureKind names a feature variant.
type FeatureKind string

const (
	KindSummit FeatureKind = "Summit"
	KindSaddle FeatureKind = "Saddle"
)

// Feature is implemented by *Summit and *Saddle.
type Feature interface {
	Spot() *SpotElevation
	Kind() FeatureKind
}

// SpotElevation holds the attributes shared by every feature.
type SpotElevation struct {
	ID        string  `json:"id"`
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
	Elevation float64 `json:"elevation"`
	// Edge marks a feature touching the grid boundary or a NoData hole.
	// Its classification is provisional.
	Edge bool `json:"edge"`
	// Cell is the representative cell: the cell itself for single-cell
	// features, the flood-fill seed for plateau features.
	Cell    Cell     `json:"cell"`
	Plateau *Plateau `json:"plateau,omitempty"`
}

// Spot returns the receiver.
func (s *SpotElevation) Spot() *SpotElevation { return s }

// Cells returns every cell the feature occupies.
func (s *SpotElevation) Cells() []Cell {
	if s.Plateau != nil {
		return s.Plateau.Cells
	}
	return []Cell{s.Cell}
}

// Summit is a local maximum.
type Summit struct {
	SpotElevation

	mu      sync.Mutex
	linkers []*Linker
}

// Kind implements Feature.
func (s *Summit) Kind() FeatureKind { return KindSummit }

// Linkers returns the linkers of saddles whose ascent reached this summit.
func (s *Summit) Linkers() []*Linker {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]*Linker, len(s.linkers))
	copy(out, s.linkers)
	return out
}

func (s *Summit) addLinker(l *Linker) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.linkers = append(s.linkers, l)
}

func (s *Summit) sortLinkers() {
	s.mu.Lock()
	defer s.mu.Unlock()
	sort.SliceStable(s.linkers, func(i, j int) bool {
		a, b := s.linkers[i], s.linkers[j]
		if a.order != b.order {
			return a.order < b.order
		}
		return a.Shore < b.Shore
	})
}

// Saddle is a col: a point with at least two distinct higher directions.
type Saddle struct {
	SpotElevation
	// HighShores are disjoint, orthogonally connected groups of cells higher
	// than the saddle. Each group is a distinct ascent direction.
	HighShores []ShoreGroup `json:"highShores"`
	// Disqualified is set after walking when every linker reaches the same
	// summit.
	Disqualified bool `json:"disqualified"`

	mu      sync.Mutex
	linkers []*Linker
}

// Kind implements Feature.
func (s *Saddle) Kind() FeatureKind { return KindSaddle }

// Linkers returns the linkers created by walking from this saddle.
func (s *Saddle) Linkers() []*Linker {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]*Linker, len(s.linkers))
	copy(out, s.linkers)
	return out
}

// Summits returns the distinct summits this saddle links to, in linker order.
func (s *Saddle) Summits() []*Summit {
	s.mu.Lock()
	defer s.mu.Unlock()
	seen := make(map[*Summit]bool)
	var out []*Summit
	for _, l := range s.linkers {
		if !seen[l.Summit] {
			seen[l.Summit] = true
			out = append(out, l.Summit)
		}
	}
	return out
}

func (s *Saddle) addLinker(l *Linker) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.linkers = append(s.linkers, l)
}

// ShoreGroup is a connected set of boundary cells sharing one relation to
// the feature they surround.
type ShoreGroup []Cell

// Highest returns the group's cells ordered by descending elevation.
// Ties keep their original order.
func (g ShoreGroup) Highest() ShoreGroup {
	out := make(ShoreGroup, len(g))
	copy(out, g)
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].Elevation > out[j].Elevation
	})
	return out
}

// Plateau is a maximal orthogonally connected region of equal elevation.
type Plateau struct {
	Elevation float64 `json:"elevation"`
	Cells     []Cell  `json:"cells"`
	Edge      bool    `json:"edge"`

	// Shore lists every boundary cell. Points with Relation Equal are
	// diagonal equal-height contacts that are not part of the interior.
	Shore      []ShorePoint `json:"-"`
	HighShores []ShoreGroup `json:"-"`
	LowShores  []ShoreGroup `json:"-"`

	index map[Coord]int
}

// Contains reports whether (x, y) is an interior cell.
func (p *Plateau) Contains(x, y int) bool {
	_, ok := p.index[Coord{X: x, Y: y}]
	return ok
}

// ShorePoint is a boundary cell of a plateau. Borders holds indices into
// the owning plateau's Cells for every interior cell the point touches.
type ShorePoint struct {
	Cell
	Relation Relation
	Borders  []int
}

// Linker is the ascent path from a saddle's high shore to a summit.
// It is never mutated after creation.
type Linker struct {
	ID     string  `json:"id"`
	Summit *Summit `json:"-"`
	Saddle *Saddle `json:"-"`
	// Path starts at the shore group's highest cell and ends on a cell
	// owned by Summit.
	Path []Cell `json:"path"`
	// Shore is the index of the saddle high-shore group that was walked.
	Shore int `json:"shore"`

	order int
}

func newLinker(summit *Summit, saddle *Saddle, path []Cell, shore, order int) *Linker {
	return &Linker{
		ID:     uuid.NewString(),
		Summit: summit,
		Saddle: saddle,
		Path:   path,
		Shore:  shore,
		order:  order,
	}
}

// StallReason explains why an ascent stopped without reaching a summit.
type StallReason string

const (
	// StallPathLimit means the path reached WalkOptions.MaxPathLength.
	StallPathLimit StallReason = "path-limit"
	// StallDeadEnd means backtracking exhausted the whole path.
	StallDeadEnd StallReason = "dead-end"
)

// Stall reports an ascent that did not reach a summit.
type Stall struct {
	SaddleID string      `json:"saddleId"`
	Shore    int         `json:"shore"`
	Reason   StallReason `json:"reason"`
	Path     []Cell      `json:"path"`
}

// Result is the output of a full analysis.
type Result struct {
	Summits []*Summit
	Saddles []*Saddle
	Linkers []*Linker
	Stalls  []Stall

	Started          time.Time
	ClassifyDuration time.Duration
	WalkDuration     time.Duration
}

// QualifiedSaddles returns saddles that were not disqualified.
func (r *Result) QualifiedSaddles() []*Saddle {
	var out []*Saddle
	for _, s := range r.Saddles {
		if !s.Disqualified {
			out = append(out, s)
		}
	}
	return out
}

// Config represents the full configuration file
type Config struct {
	Grid     GridSourceConfig `yaml:"grid" json:"grid"`
	Analysis AnalysisConfig   `yaml:"analysis" json:"analysis"`
	Walk     WalkConfig       `yaml:"walk" json:"walk"`
	Output   OutputConfig     `yaml:"output" json:"output"`
	MQTT     MQTTConfig       `yaml:"mqtt" json:"mqtt"`
}

// GridSourceConfig names where the elevation grid comes from.
// Exactly one of File or URL must be set.
type GridSourceConfig struct {
	ID   string `yaml:"id,omitempty" json:"id,omitempty"`
	File string `yaml:"file,omitempty" json:"file,omitempty"`
	URL  string `yaml:"url,omitempty" json:"url,omitempty"`
}

// AnalysisConfig tunes the feature classifier.
type AnalysisConfig struct {
	ProgressInterval int  `yaml:"progressInterval,omitempty" json:"progressInterval,omitempty"`
	EdgeSaddles      bool `yaml:"edgeSaddles,omitempty" json:"edgeSaddles,omitempty"`
}

// WalkConfig tunes the saddle walker.
type WalkConfig struct {
	MaxPathLength  int  `yaml:"maxPathLength,omitempty" json:"maxPathLength,omitempty"`
	Workers        int  `yaml:"workers,omitempty" json:"workers,omitempty"`
	AllowFlatSteps bool `yaml:"allowFlatSteps,omitempty" json:"allowFlatSteps,omitempty"`
}

// OutputConfig names result destinations. Empty values disable an output.
type OutputConfig struct {
	GeoJSON           string  `yaml:"geojson,omitempty" json:"geojson,omitempty"`
	Database          string  `yaml:"database,omitempty" json:"database,omitempty"`
	SimplifyTolerance float64 `yaml:"simplifyTolerance,omitempty" json:"simplifyTolerance,omitempty"`
}

// MQTTConfig holds MQTT connection settings
type MQTTConfig struct {
	Broker        string `yaml:"broker" json:"broker"`
	PublishPrefix string `yaml:"publishPrefix" json:"publishPrefix"`
	ClientID      string `yaml:"clientId" json:"clientId"`
	Username      string `yaml:"username,omitempty" json:"username,omitempty"`
	Password      string `yaml:"password,omitempty" json:"password,omitempty"`
	// GridTopic, when set, is subscribed to and every grid payload received
	// on it is analyzed.
	GridTopic string `yaml:"gridTopic,omitempty" json:"gridTopic,omitempty"`
}

// AnalyzeOptions converts the analysis section into classifier options.
func (c *Config) AnalyzeOptions() AnalyzeOptions {
	return AnalyzeOptions{
		ProgressInterval: c.Analysis.ProgressInterval,
		EdgeSaddles:      c.Analysis.EdgeSaddles,
	}
}

// WalkOptions converts the walk section into walker options.
func (c *Config) WalkOptions() WalkOptions {
	return WalkOptions{
		MaxPathLength:  c.Walk.MaxPathLength,
		Workers:        c.Walk.Workers,
		AllowFlatSteps: c.Walk.AllowFlatSteps,
	}
}
