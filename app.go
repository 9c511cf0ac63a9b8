package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log"
	"math"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/kwv/prominence/terrain"
)

// App encapsulates the application state and dependencies
type App struct {
	Out          io.Writer
	Config       *terrain.Config
	StateTracker *terrain.StateTracker
	MQTTClient   *terrain.MQTTClient
	Publisher    *terrain.Publisher
	Store        *terrain.Store

	opts AppOptions
}

// NewApp creates a new App instance
func NewApp(out io.Writer) *App {
	return &App{
		Out:          out,
		StateTracker: terrain.NewStateTracker(),
	}
}

// ApplyOptions applies CLI options to the App instance
func (a *App) ApplyOptions(opts AppOptions) {
	a.opts = opts
}

// loadConfig reads the config file, if any, and layers the command line
// over it.
func (a *App) loadConfig() (*terrain.Config, error) {
	config := terrain.DefaultConfig()
	if a.opts.ConfigFile != "" {
		var err error
		config, err = terrain.LoadConfig(a.opts.ConfigFile)
		if err != nil {
			return nil, err
		}
		log.Printf("Loaded config from %s", a.opts.ConfigFile)
	}

	if a.opts.GridFile != "" {
		config.Grid.File, config.Grid.URL = a.opts.GridFile, ""
	}
	if a.opts.GridURL != "" {
		config.Grid.URL, config.Grid.File = a.opts.GridURL, ""
	}
	if a.opts.GridID != "" {
		config.Grid.ID = a.opts.GridID
	}
	if a.opts.Workers > 0 {
		config.Walk.Workers = a.opts.Workers
	}
	if a.opts.MaxPathLength > 0 {
		config.Walk.MaxPathLength = a.opts.MaxPathLength
	}
	if a.opts.AllowFlatSteps {
		config.Walk.AllowFlatSteps = true
	}
	if a.opts.EdgeSaddles {
		config.Analysis.EdgeSaddles = true
	}
	if a.opts.GeoJSONFile != "" {
		config.Output.GeoJSON = a.opts.GeoJSONFile
	}
	if a.opts.DatabaseFile != "" {
		config.Output.Database = a.opts.DatabaseFile
	}

	if err := config.Validate(); err != nil {
		return nil, err
	}
	a.Config = config
	return config, nil
}

// loadGrid reads the configured grid from a file or URL.
func loadGrid(ctx context.Context, config *terrain.Config) (*terrain.ElevationGrid, error) {
	switch {
	case config.Grid.File != "":
		return terrain.ParseGridFile(config.Grid.File)
	case config.Grid.URL != "":
		return terrain.FetchGridFromURL(ctx, config.Grid.URL)
	default:
		return nil, errors.New("no grid configured: use --grid, --url or grid.file/grid.url in the config")
	}
}

func exportOptions(config *terrain.Config) terrain.ExportOptions {
	return terrain.ExportOptions{SimplifyTolerance: config.Output.SimplifyTolerance}
}

func runOptions(config *terrain.Config) terrain.Options {
	return terrain.Options{Analyze: config.AnalyzeOptions(), Walk: config.WalkOptions()}
}

// analyzeConfigured loads the configured grid and analyzes it.
func (a *App) analyzeConfigured(ctx context.Context) (*terrain.ElevationGrid, *terrain.Result, error) {
	config, err := a.loadConfig()
	if err != nil {
		return nil, nil, err
	}
	g, err := loadGrid(ctx, config)
	if err != nil {
		return nil, nil, err
	}
	log.Printf("Analyzing grid %s (%dx%d)", config.GridID(), g.MaxX()+1, g.MaxY()+1)

	res, err := terrain.Run(ctx, g, runOptions(config))
	return g, res, err
}

// RunAnalyze analyzes the configured grid and writes every configured output.
func (a *App) RunAnalyze() error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	g, res, err := a.analyzeConfigured(ctx)
	if err != nil {
		return err
	}
	a.printReport(res)
	return a.writeOutputs(ctx, a.Config.GridID(), g, res)
}

// writeOutputs writes the GeoJSON file and database rows that the config
// names.
func (a *App) writeOutputs(ctx context.Context, gridID string, g terrain.Grid, res *terrain.Result) error {
	config := a.Config
	if config.Output.GeoJSON != "" {
		data, err := terrain.ToFeatureCollection(g, res, exportOptions(config)).MarshalJSON()
		if err != nil {
			return fmt.Errorf("encoding GeoJSON: %w", err)
		}
		if err := os.WriteFile(config.Output.GeoJSON, data, 0644); err != nil {
			return fmt.Errorf("writing GeoJSON: %w", err)
		}
		fmt.Fprintf(a.Out, "GeoJSON written to %s\n", config.Output.GeoJSON)
	}

	if config.Output.Database != "" {
		if a.Store == nil {
			store, err := terrain.OpenStore(config.Output.Database)
			if err != nil {
				return err
			}
			a.Store = store
		}
		if err := a.Store.SaveResult(ctx, gridID, res); err != nil {
			return err
		}
		fmt.Fprintf(a.Out, "Result saved to %s as %s\n", config.Output.Database, gridID)
	}
	return nil
}

func (a *App) printReport(res *terrain.Result) {
	s := terrain.NewResultSummary(a.Config.GridID(), res)
	fmt.Fprintf(a.Out, "=== %s ===\n", s.GridID)
	fmt.Fprintf(a.Out, "Summits: %d\n", s.Summits)
	fmt.Fprintf(a.Out, "Saddles: %d (%d qualified)\n", s.Saddles, s.QualifiedSaddles)
	fmt.Fprintf(a.Out, "Linkers: %d\n", s.Linkers)
	if s.Stalls > 0 {
		fmt.Fprintf(a.Out, "Stalled walks: %d\n", s.Stalls)
	}
	fmt.Fprintf(a.Out, "Classify: %v, walk: %v\n",
		res.ClassifyDuration.Round(time.Millisecond), res.WalkDuration.Round(time.Millisecond))
}

// RunSummary prints elevation statistics of the configured grid.
func (a *App) RunSummary() error {
	config, err := a.loadConfig()
	if err != nil {
		return err
	}
	g, err := loadGrid(context.Background(), config)
	if err != nil {
		return err
	}

	s := terrain.Summarize(g)
	fmt.Fprintf(a.Out, "=== %s ===\n", config.GridID())
	fmt.Fprintf(a.Out, "Grid Size: %dx%d\n", s.Rows, s.Cols)
	fmt.Fprintf(a.Out, "Valid cells: %d, NoData cells: %d\n", s.Valid, s.NoData)
	if s.Valid > 0 {
		fmt.Fprintf(a.Out, "Elevation: min %.1f, max %.1f, mean %.1f, stddev %.1f, median %.1f\n",
			s.Min, s.Max, s.Mean, s.StdDev, s.Median)
	}
	return nil
}

// RunRender analyzes the configured grid and renders it to the output file.
func (a *App) RunRender() error {
	g, res, err := a.analyzeConfigured(context.Background())
	if err != nil {
		return err
	}
	a.printReport(res)

	f, err := os.Create(a.opts.OutputFile)
	if err != nil {
		return fmt.Errorf("creating output file: %w", err)
	}
	defer func() { _ = f.Close() }()

	if err := a.renderTo(f, g, res); err != nil {
		return err
	}
	fmt.Fprintf(a.Out, "Map written to %s\n", a.opts.OutputFile)
	return nil
}

func (a *App) renderTo(w io.Writer, g terrain.Grid, res *terrain.Result) error {
	switch strings.ToLower(a.opts.RenderFormat) {
	case "", "raster":
		return terrain.NewRenderer(g, res).WritePNG(w)
	case "vector":
		vr := terrain.NewVectorRenderer(g, res)
		vr.GridSpacing = a.opts.GridSpacing
		if strings.EqualFold(a.opts.VectorFormat, "png") {
			return vr.RenderToPNG(w)
		}
		return vr.RenderToSVG(w)
	default:
		return fmt.Errorf("unknown render format %q", a.opts.RenderFormat)
	}
}

// RunQuery prints the features matching the query flags. Features come from
// the database when one is configured and no grid is given on the command
// line, otherwise from a fresh analysis.
func (a *App) RunQuery() error {
	ctx := context.Background()
	config, err := a.loadConfig()
	if err != nil {
		return err
	}

	fromGrid := a.opts.GridFile != "" || a.opts.GridURL != ""
	if config.Output.Database != "" && !fromGrid {
		return a.queryStore(ctx, config)
	}

	_, res, err := a.analyzeConfigured(ctx)
	if err != nil {
		return err
	}
	return a.printCollection(terrain.NewCollection(res.Summits, res.Saddles))
}

// queryStore answers a query from the results database. Asking for type
// "linker" prints the stored linkers instead of features.
func (a *App) queryStore(ctx context.Context, config *terrain.Config) error {
	store, err := terrain.OpenStore(config.Output.Database)
	if err != nil {
		return err
	}
	defer func() { _ = store.Close() }()

	gridID := config.GridID()
	grids, err := store.Grids(ctx)
	if err != nil {
		return err
	}
	found := false
	ids := make([]string, 0, len(grids))
	for _, g := range grids {
		found = found || g.ID == gridID
		ids = append(ids, g.ID)
	}
	if !found {
		return fmt.Errorf("grid %q not found in %s (stored: %s)",
			gridID, config.Output.Database, strings.Join(ids, ", "))
	}

	if strings.EqualFold(a.opts.FeatureType, terrain.GeoKindLinker) {
		linkers, err := store.LoadLinkers(ctx, gridID)
		if err != nil {
			return err
		}
		data, err := json.MarshalIndent(linkers, "", "  ")
		if err != nil {
			return err
		}
		fmt.Fprintln(a.Out, string(data))
		return nil
	}

	c, err := store.LoadCollection(ctx, gridID)
	if err != nil {
		return err
	}
	return a.printCollection(c)
}

func (a *App) printCollection(c *terrain.Collection) error {
	c, err := a.filter(c)
	if err != nil {
		return err
	}
	data, err := c.ToJSON(true)
	if err != nil {
		return err
	}
	fmt.Fprintln(a.Out, string(data))
	return nil
}

// filter applies the query flags to c. A single elevation bound leaves the
// other side open.
func (a *App) filter(c *terrain.Collection) (*terrain.Collection, error) {
	if a.opts.FeatureType != "" {
		c = c.ByType(a.opts.FeatureType)
	}
	if a.opts.Radius > 0 {
		c = c.Radius(a.opts.Lat, a.opts.Lon, a.opts.Radius)
	}
	if a.opts.BBox != "" {
		b, err := parseBBox(a.opts.BBox)
		if err != nil {
			return nil, err
		}
		c = c.Rectangle(b[0], b[1], b[2], b[3])
	}
	if a.opts.MinElevation != nil || a.opts.MaxElevation != nil {
		lower, upper := math.Inf(-1), math.Inf(1)
		if a.opts.MinElevation != nil {
			lower = *a.opts.MinElevation
		}
		if a.opts.MaxElevation != nil {
			upper = *a.opts.MaxElevation
		}
		c = c.ElevationRange(lower, upper)
	}
	return c, nil
}

// analyzeAndTrack analyzes g, records it under gridID and forwards the
// result to the database and MQTT.
func (a *App) analyzeAndTrack(ctx context.Context, gridID string, g *terrain.ElevationGrid) error {
	res, err := terrain.Run(ctx, g, runOptions(a.Config))
	if err != nil {
		return fmt.Errorf("analyzing %s: %w", gridID, err)
	}
	a.StateTracker.Update(gridID, g, res)
	log.Printf("%s: %d summits, %d saddles, %d linkers",
		gridID, len(res.Summits), len(res.Saddles), len(res.Linkers))

	if a.Store != nil {
		if err := a.Store.SaveResult(ctx, gridID, res); err != nil {
			log.Printf("Error saving result for %s: %v", gridID, err)
		}
	}
	if a.Publisher != nil {
		if err := a.Publisher.PublishResult(gridID, g, res); err != nil {
			log.Printf("Error publishing result for %s: %v", gridID, err)
		}
	}
	return nil
}

// gridHandler returns the MQTT callback for received grids.
func (a *App) gridHandler(ctx context.Context) terrain.GridHandler {
	return func(gridID string, g *terrain.ElevationGrid, err error) {
		if err != nil {
			log.Printf("Error receiving grid %s: %v", gridID, err)
			return
		}
		if g == nil {
			a.StateTracker.Remove(gridID)
			log.Printf("%s: cleared", gridID)
			return
		}
		if err := a.analyzeAndTrack(ctx, gridID, g); err != nil {
			log.Printf("Error: %v", err)
		}
	}
}

// RunService runs the MQTT and/or HTTP service until interrupted.
func (a *App) RunService() error {
	fmt.Fprintln(a.Out, "Starting prominence service...")

	config, err := a.loadConfig()
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if config.Output.Database != "" {
		store, err := terrain.OpenStore(config.Output.Database)
		if err != nil {
			return err
		}
		a.Store = store
		defer func() { _ = store.Close() }()
		log.Printf("Storing results in %s", config.Output.Database)
	}

	if a.opts.MqttMode {
		mqttClient, err := terrain.InitMQTT(config, a.gridHandler(ctx))
		if err != nil {
			return fmt.Errorf("initializing MQTT: %w", err)
		}
		if mqttClient == nil {
			return errors.New("MQTT broker not configured: set mqtt.broker or MQTT_BROKER")
		}
		a.MQTTClient = mqttClient
		defer mqttClient.Disconnect()

		a.Publisher = terrain.NewPublisher(mqttClient.GetClient(), config.MQTT.PublishPrefix, exportOptions(config))
		fmt.Fprintln(a.Out, "MQTT result publisher initialized")
	}

	// The configured grid, if any, is analyzed once at startup.
	if config.Grid.File != "" || config.Grid.URL != "" {
		g, err := loadGrid(ctx, config)
		if err != nil {
			log.Printf("Warning: failed to load initial grid: %v", err)
		} else if err := a.analyzeAndTrack(ctx, config.GridID(), g); err != nil {
			log.Printf("Warning: %v", err)
		}
	}

	var srv *http.Server
	if a.opts.HttpMode {
		srv = &http.Server{
			Addr:              fmt.Sprintf("0.0.0.0:%d", a.opts.HttpPort),
			Handler:           newHTTPServer(a.StateTracker, exportOptions(config)),
			ReadHeaderTimeout: 10 * time.Second,
		}
		go func() {
			log.Printf("[HTTP] Starting server on %s", srv.Addr)
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				log.Printf("[HTTP] Server error: %v", err)
				stop()
			}
		}()
	}

	a.printServiceInfo(config)
	<-ctx.Done()

	fmt.Fprintln(a.Out, "\nShutting down service...")
	if srv != nil {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			log.Printf("[HTTP] Shutdown error: %v", err)
		}
	}
	fmt.Fprintln(a.Out, "Service stopped")
	return nil
}

func (a *App) printServiceInfo(config *terrain.Config) {
	fmt.Fprintln(a.Out, "\nService Running")
	fmt.Fprintln(a.Out, "===============")

	if a.opts.MqttMode {
		fmt.Fprintln(a.Out, "\nMQTT:")
		if config.MQTT.GridTopic != "" {
			fmt.Fprintf(a.Out, "  Subscribed to: %s (empty payload clears a grid)\n", config.MQTT.GridTopic)
		}
		fmt.Fprintf(a.Out, "  Publishing to: %s/{gridID}/summary and /features\n", a.Publisher.Prefix())
	}

	if a.opts.HttpMode {
		fmt.Fprintf(a.Out, "\nHTTP endpoints (port %d):\n", a.opts.HttpPort)
		fmt.Fprintln(a.Out, "  GET /health                        - Health check")
		fmt.Fprintln(a.Out, "  GET /grids                         - Result summary per grid")
		fmt.Fprintln(a.Out, "  GET /grids/{id}                    - Grid statistics and result summary")
		fmt.Fprintln(a.Out, "  GET /grids/{id}/features.geojson   - Features and linkers as GeoJSON")
		fmt.Fprintln(a.Out, "  GET /grids/{id}/features.json      - Features, filterable by type, radius, bbox, elevation")
		fmt.Fprintln(a.Out, "  GET /grids/{id}/summits.json       - Summits")
		fmt.Fprintln(a.Out, "  GET /grids/{id}/saddles.json       - Saddles")
		fmt.Fprintln(a.Out, "  GET /grids/{id}/grid.json          - Elevation grid as received")
		fmt.Fprintln(a.Out, "  GET /grids/{id}/map.png            - Raster map")
		fmt.Fprintln(a.Out, "  GET /grids/{id}/map.svg            - Vector map")
	}

	fmt.Fprintln(a.Out, "\nPress Ctrl+C to stop")
}
