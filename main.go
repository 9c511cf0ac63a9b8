package main

import (
	"flag"
	"fmt"
	"io"
	"log"
	"os"
	"strconv"
)

// Version is set at build time via -ldflags
var Version = "dev"

// AppOptions holds the parsed command line.
type AppOptions struct {
	ConfigFile string
	GridFile   string
	GridURL    string
	GridID     string

	Workers        int
	MaxPathLength  int
	AllowFlatSteps bool
	EdgeSaddles    bool

	GeoJSONFile  string
	DatabaseFile string

	SummaryOnly  bool
	RenderOnly   bool
	OutputFile   string
	RenderFormat string
	VectorFormat string
	GridSpacing  int

	Query        bool
	FeatureType  string
	Lat          float64
	Lon          float64
	Radius       float64
	BBox         string
	MinElevation *float64
	MaxElevation *float64

	MqttMode bool
	HttpMode bool
	HttpPort int
}

// Application is the set of modes main can dispatch to.
type Application interface {
	ApplyOptions(opts AppOptions)
	RunAnalyze() error
	RunSummary() error
	RunRender() error
	RunQuery() error
	RunService() error
}

func run(args []string, out io.Writer, app Application) error {
	fs := flag.NewFlagSet("prominence", flag.ContinueOnError)
	fs.SetOutput(out)

	var opts AppOptions
	fs.StringVar(&opts.ConfigFile, "config", "", "Path to configuration file (optional)")
	fs.StringVar(&opts.GridFile, "grid", "", "Path to a grid JSON file (overrides grid.file)")
	fs.StringVar(&opts.GridURL, "url", "", "URL of a grid JSON document (overrides grid.url)")
	fs.StringVar(&opts.GridID, "grid-id", "", "Identifier for the grid (overrides grid.id)")
	fs.IntVar(&opts.Workers, "workers", 0, "Number of saddle walker workers (0 = from config)")
	fs.IntVar(&opts.MaxPathLength, "max-path", 0, "Maximum cells in one linker path (0 = from config)")
	fs.BoolVar(&opts.AllowFlatSteps, "allow-flat", false, "Let the walker step onto equal-elevation cells")
	fs.BoolVar(&opts.EdgeSaddles, "edge-saddles", false, "Classify saddles on the grid boundary")
	fs.StringVar(&opts.GeoJSONFile, "geojson", "", "Write features as GeoJSON to this file")
	fs.StringVar(&opts.DatabaseFile, "db", "", "SQLite database for results")
	fs.BoolVar(&opts.SummaryOnly, "summary", false, "Print grid statistics and exit")
	fs.BoolVar(&opts.RenderOnly, "render", false, "Render the analyzed grid and exit")
	fs.StringVar(&opts.OutputFile, "output", "prominence-map.png", "Output file for --render mode")
	fs.StringVar(&opts.RenderFormat, "format", "raster", "Render format: raster or vector")
	fs.StringVar(&opts.VectorFormat, "vector-format", "svg", "Vector output format: svg or png")
	fs.IntVar(&opts.GridSpacing, "grid-spacing", 10, "Guide line spacing in cells for vector output (0 disables)")
	fs.BoolVar(&opts.Query, "query", false, "Print features matching the query flags as JSON")
	fs.StringVar(&opts.FeatureType, "type", "", "Query: feature type (summit or saddle)")
	fs.Float64Var(&opts.Lat, "lat", 0, "Query: latitude of the radius center")
	fs.Float64Var(&opts.Lon, "lon", 0, "Query: longitude of the radius center")
	fs.Float64Var(&opts.Radius, "radius", 0, "Query: radius in meters (0 disables)")
	fs.StringVar(&opts.BBox, "bbox", "", "Query: box lat1,lon1,lat2,lon2 (exclusive edges)")
	fs.Func("min-elevation", "Query: exclusive lower elevation bound", floatFlag(&opts.MinElevation))
	fs.Func("max-elevation", "Query: exclusive upper elevation bound", floatFlag(&opts.MaxElevation))
	fs.BoolVar(&opts.MqttMode, "mqtt", false, "Run MQTT service mode: analyze grids received on mqtt.gridTopic")
	fs.BoolVar(&opts.HttpMode, "http", false, "Enable HTTP server for results and maps")
	fs.IntVar(&opts.HttpPort, "http-port", 8080, "HTTP server port (default 8080)")

	if err := fs.Parse(args); err != nil {
		return err
	}

	fmt.Fprintf(out, "prominence version: %s\n", Version)
	app.ApplyOptions(opts)

	switch {
	case opts.SummaryOnly:
		return app.RunSummary()
	case opts.RenderOnly:
		return app.RunRender()
	case opts.Query:
		return app.RunQuery()
	case opts.MqttMode || opts.HttpMode:
		return app.RunService()
	default:
		return app.RunAnalyze()
	}
}

// floatFlag parses an optional float flag; dst stays nil when the flag is
// not given.
func floatFlag(dst **float64) func(string) error {
	return func(s string) error {
		v, err := strconv.ParseFloat(s, 64)
		if err != nil {
			return err
		}
		*dst = &v
		return nil
	}
}

func main() {
	app := NewApp(os.Stdout)
	if err := run(os.Args[1:], os.Stdout, app); err != nil {
		if err == flag.ErrHelp {
			os.Exit(2)
		}
		log.Fatalf("prominence: %v", err)
	}
}
