package main

import (
	"bytes"
	"strings"
	"testing"
)

type mockApp struct {
	opts   AppOptions
	called map[string]bool
}

func newMockApp() *mockApp {
	return &mockApp{
		called: make(map[string]bool),
	}
}

func (m *mockApp) ApplyOptions(opts AppOptions) { m.opts = opts }
func (m *mockApp) RunAnalyze() error            { m.called["RunAnalyze"] = true; return nil }
func (m *mockApp) RunSummary() error            { m.called["RunSummary"] = true; return nil }
func (m *mockApp) RunRender() error             { m.called["RunRender"] = true; return nil }
func (m *mockApp) RunQuery() error              { m.called["RunQuery"] = true; return nil }
func (m *mockApp) RunService() error            { m.called["RunService"] = true; return nil }

func TestRun_Flags(t *testing.T) {
	tests := []struct {
		name           string
		args           []string
		expectedCalled string
		verifyOpts     func(*testing.T, AppOptions)
	}{
		{
			name:           "Analyze",
			args:           []string{"--grid", "alps.json", "--workers", "4", "--geojson", "out.geojson", "--db", "r.db"},
			expectedCalled: "RunAnalyze",
			verifyOpts: func(t *testing.T, opts AppOptions) {
				if opts.GridFile != "alps.json" {
					t.Errorf("expected GridFile alps.json, got %s", opts.GridFile)
				}
				if opts.Workers != 4 {
					t.Errorf("expected Workers 4, got %d", opts.Workers)
				}
				if opts.GeoJSONFile != "out.geojson" || opts.DatabaseFile != "r.db" {
					t.Errorf("unexpected outputs: %q %q", opts.GeoJSONFile, opts.DatabaseFile)
				}
			},
		},
		{
			name:           "WalkTuning",
			args:           []string{"--max-path", "100", "--allow-flat", "--edge-saddles"},
			expectedCalled: "RunAnalyze",
			verifyOpts: func(t *testing.T, opts AppOptions) {
				if opts.MaxPathLength != 100 {
					t.Errorf("expected MaxPathLength 100, got %d", opts.MaxPathLength)
				}
				if !opts.AllowFlatSteps || !opts.EdgeSaddles {
					t.Error("expected AllowFlatSteps and EdgeSaddles true")
				}
			},
		},
		{
			name:           "Summary",
			args:           []string{"--summary", "--url", "http://example.com/grid.json"},
			expectedCalled: "RunSummary",
			verifyOpts: func(t *testing.T, opts AppOptions) {
				if opts.GridURL != "http://example.com/grid.json" {
					t.Errorf("expected GridURL, got %s", opts.GridURL)
				}
				if !opts.SummaryOnly {
					t.Error("expected SummaryOnly true")
				}
			},
		},
		{
			name:           "Render",
			args:           []string{"--render", "--output", "test.png"},
			expectedCalled: "RunRender",
			verifyOpts: func(t *testing.T, opts AppOptions) {
				if opts.OutputFile != "test.png" {
					t.Errorf("expected OutputFile test.png, got %s", opts.OutputFile)
				}
				if opts.RenderFormat != "raster" {
					t.Errorf("expected default RenderFormat raster, got %s", opts.RenderFormat)
				}
			},
		},
		{
			name:           "VectorRendering",
			args:           []string{"--render", "--format", "vector", "--vector-format", "svg", "--grid-spacing", "5"},
			expectedCalled: "RunRender",
			verifyOpts: func(t *testing.T, opts AppOptions) {
				if opts.RenderFormat != "vector" {
					t.Errorf("expected RenderFormat vector, got %s", opts.RenderFormat)
				}
				if opts.VectorFormat != "svg" {
					t.Errorf("expected VectorFormat svg, got %s", opts.VectorFormat)
				}
				if opts.GridSpacing != 5 {
					t.Errorf("expected GridSpacing 5, got %d", opts.GridSpacing)
				}
			},
		},
		{
			name:           "Query",
			args:           []string{"--query", "--type", "summit", "--lat", "47.1", "--lon", "8.2", "--radius", "500"},
			expectedCalled: "RunQuery",
			verifyOpts: func(t *testing.T, opts AppOptions) {
				if opts.FeatureType != "summit" {
					t.Errorf("expected FeatureType summit, got %s", opts.FeatureType)
				}
				if opts.Lat != 47.1 || opts.Lon != 8.2 || opts.Radius != 500 {
					t.Errorf("unexpected radius query: %f %f %f", opts.Lat, opts.Lon, opts.Radius)
				}
			},
		},
		{
			name:           "QueryBounds",
			args:           []string{"--query", "--min-elevation", "100", "--bbox", "47,8,46.9,8.1"},
			expectedCalled: "RunQuery",
			verifyOpts: func(t *testing.T, opts AppOptions) {
				if opts.MinElevation == nil || *opts.MinElevation != 100 {
					t.Errorf("expected MinElevation 100, got %v", opts.MinElevation)
				}
				if opts.MaxElevation != nil {
					t.Errorf("expected MaxElevation unset, got %v", *opts.MaxElevation)
				}
				if opts.BBox != "47,8,46.9,8.1" {
					t.Errorf("expected BBox, got %q", opts.BBox)
				}
			},
		},
		{
			name:           "MqttMode",
			args:           []string{"--mqtt", "--http-port", "9090"},
			expectedCalled: "RunService",
			verifyOpts: func(t *testing.T, opts AppOptions) {
				if !opts.MqttMode {
					t.Error("expected MqttMode true")
				}
				if opts.HttpPort != 9090 {
					t.Errorf("expected HttpPort 9090, got %d", opts.HttpPort)
				}
			},
		},
		{
			name:           "HttpMode",
			args:           []string{"--http", "--config", "prominence.yaml"},
			expectedCalled: "RunService",
			verifyOpts: func(t *testing.T, opts AppOptions) {
				if !opts.HttpMode {
					t.Error("expected HttpMode true")
				}
				if opts.ConfigFile != "prominence.yaml" {
					t.Errorf("expected ConfigFile prominence.yaml, got %s", opts.ConfigFile)
				}
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			app := newMockApp()
			var out bytes.Buffer
			err := run(tt.args, &out, app)
			if err != nil {
				t.Fatalf("run failed: %v", err)
			}

			if !app.called[tt.expectedCalled] {
				t.Errorf("expected %s to be called", tt.expectedCalled)
			}
			if len(app.called) != 1 {
				t.Errorf("expected exactly one mode, got %v", app.called)
			}

			if tt.verifyOpts != nil {
				tt.verifyOpts(t, app.opts)
			}
		})
	}
}

func TestRun_Help(t *testing.T) {
	app := newMockApp()
	var out bytes.Buffer
	err := run([]string{"--help"}, &out, app)
	if err == nil {
		t.Error("expected error from --help, got nil")
	}
	if !strings.Contains(out.String(), "Usage of prominence") {
		t.Errorf("expected usage info in output, got: %s", out.String())
	}
	if len(app.called) != 0 {
		t.Errorf("expected no mode to run, got %v", app.called)
	}
}

func TestRun_BadElevation(t *testing.T) {
	app := newMockApp()
	var out bytes.Buffer
	if err := run([]string{"--query", "--max-elevation", "high"}, &out, app); err == nil {
		t.Error("expected error for non-numeric elevation")
	}
	if app.called["RunQuery"] {
		t.Error("RunQuery should not run after a flag error")
	}
}

func TestRun_UnknownFlag(t *testing.T) {
	var out bytes.Buffer
	if err := run([]string{"--no-such-flag"}, &out, newMockApp()); err == nil {
		t.Error("expected error for unknown flag")
	}
}

func TestRun_Default(t *testing.T) {
	app := newMockApp()
	var out bytes.Buffer
	err := run([]string{}, &out, app)
	if err != nil {
		t.Fatalf("run failed: %v", err)
	}

	expectedPrefix := "prominence version: " + Version
	if !strings.Contains(out.String(), expectedPrefix) {
		t.Errorf("expected output to contain version, got: %s", out.String())
	}
	if !app.called["RunAnalyze"] {
		t.Error("expected RunAnalyze to be the default mode")
	}
}

func TestMain_Execute(t *testing.T) {
	// Smoke test to ensure version is set
	if Version == "" {
		t.Error("expected Version to be set")
	}
}
