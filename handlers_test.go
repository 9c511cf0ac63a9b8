package main

import (
	"context"
	"encoding/json"
	"image/png"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/kwv/prominence/terrain"
	"github.com/paulmach/orb/geojson"
)

// ---------------------------------------------------------------------------
// helpers
// ---------------------------------------------------------------------------

// populatedTracker returns a StateTracker holding the analyzed two-peak grid
// under id "alps".
func populatedTracker(t *testing.T) *terrain.StateTracker {
	t.Helper()
	g, err := terrain.ParseGridJSON([]byte(twoPeaksJSON))
	if err != nil {
		t.Fatal(err)
	}
	res, err := terrain.Run(context.Background(), g, terrain.Options{})
	if err != nil {
		t.Fatal(err)
	}
	st := terrain.NewStateTracker()
	st.Update("alps", g, res)
	return st
}

func get(t *testing.T, h http.Handler, path string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodGet, path, nil)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

// ---------------------------------------------------------------------------
// /health and /grids
// ---------------------------------------------------------------------------

func TestHealthEndpoint(t *testing.T) {
	tests := []struct {
		name    string
		tracker *terrain.StateTracker
		want    int
	}{
		{"empty", terrain.NewStateTracker(), 0},
		{"populated", populatedTracker(t), 1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := get(t, newHTTPServer(tt.tracker, terrain.ExportOptions{}), "/health")
			if rec.Code != http.StatusOK {
				t.Fatalf("expected 200, got %d", rec.Code)
			}
			var body struct {
				Status string `json:"status"`
				Grids  int    `json:"grids"`
			}
			if err := json.NewDecoder(rec.Body).Decode(&body); err != nil {
				t.Fatalf("decoding health: %v", err)
			}
			if body.Status != "ok" || body.Grids != tt.want {
				t.Errorf("unexpected health %+v", body)
			}
		})
	}
}

func TestGridsEndpoint(t *testing.T) {
	rec := get(t, newHTTPServer(populatedTracker(t), terrain.ExportOptions{}), "/grids")
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	var summaries []terrain.ResultSummary
	if err := json.NewDecoder(rec.Body).Decode(&summaries); err != nil {
		t.Fatal(err)
	}
	if len(summaries) != 1 || summaries[0].GridID != "alps" || summaries[0].Summits != 2 {
		t.Errorf("unexpected summaries %+v", summaries)
	}
}

func TestGridEndpoint(t *testing.T) {
	rec := get(t, newHTTPServer(populatedTracker(t), terrain.ExportOptions{}), "/grids/alps")
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	var body struct {
		Grid   terrain.GridSummary   `json:"grid"`
		Result terrain.ResultSummary `json:"result"`
	}
	if err := json.NewDecoder(rec.Body).Decode(&body); err != nil {
		t.Fatal(err)
	}
	if body.Grid.Rows != 3 || body.Grid.Cols != 5 {
		t.Errorf("unexpected grid summary %+v", body.Grid)
	}
	if body.Result.Saddles != 1 {
		t.Errorf("expected 1 saddle, got %d", body.Result.Saddles)
	}
}

func TestUnknownGrid(t *testing.T) {
	h := newHTTPServer(populatedTracker(t), terrain.ExportOptions{})
	for _, path := range []string{
		"/grids/nope",
		"/grids/nope/features.geojson",
		"/grids/nope/features.json",
		"/grids/nope/summits.json",
		"/grids/nope/saddles.json",
		"/grids/nope/map.png",
		"/grids/nope/map.svg",
	} {
		if rec := get(t, h, path); rec.Code != http.StatusNotFound {
			t.Errorf("%s: expected 404, got %d", path, rec.Code)
		}
	}
}

// ---------------------------------------------------------------------------
// features
// ---------------------------------------------------------------------------

func TestFeaturesGeoJSON(t *testing.T) {
	rec := get(t, newHTTPServer(populatedTracker(t), terrain.ExportOptions{}), "/grids/alps/features.geojson")
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	if ct := rec.Header().Get("Content-Type"); ct != "application/geo+json" {
		t.Errorf("unexpected content type %s", ct)
	}
	fc, err := geojson.UnmarshalFeatureCollection(rec.Body.Bytes())
	if err != nil {
		t.Fatalf("invalid GeoJSON: %v", err)
	}
	// 2 summits, 1 saddle, 2 linkers
	if len(fc.Features) != 5 {
		t.Errorf("expected 5 features, got %d", len(fc.Features))
	}
}

func TestFeaturesJSON_Filters(t *testing.T) {
	h := newHTTPServer(populatedTracker(t), terrain.ExportOptions{})

	tests := []struct {
		name     string
		query    string
		summits  int
		saddles  int
		wantCode int
	}{
		{"all", "", 2, 1, http.StatusOK},
		{"by type", "?type=saddle", 0, 1, http.StatusOK},
		{"elevation range", "?min=6&max=10", 2, 0, http.StatusOK},
		{"radius around saddle", "?lat=46.99972&lon=8.00056&radius=10", 0, 1, http.StatusOK},
		{"bad radius", "?radius=far", 0, 0, http.StatusBadRequest},
		{"bad range", "?min=1", 0, 0, http.StatusBadRequest},
		{"bbox around saddle", "?bbox=47,8.0004,46.9995,8.0007", 0, 1, http.StatusOK},
		{"bbox around grid", "?bbox=46.9,7.9,47.1,8.1", 2, 1, http.StatusOK},
		{"bad bbox", "?bbox=1,2,3", 0, 0, http.StatusBadRequest},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := get(t, h, "/grids/alps/features.json"+tt.query)
			if rec.Code != tt.wantCode {
				t.Fatalf("expected %d, got %d: %s", tt.wantCode, rec.Code, rec.Body.String())
			}
			if tt.wantCode != http.StatusOK {
				return
			}
			body := rec.Body.String()
			if n := strings.Count(body, `"type":"Summit"`); n != tt.summits {
				t.Errorf("expected %d summits, got %d", tt.summits, n)
			}
			if n := strings.Count(body, `"type":"Saddle"`); n != tt.saddles {
				t.Errorf("expected %d saddles, got %d", tt.saddles, n)
			}
		})
	}
}

func TestKindEndpoints(t *testing.T) {
	h := newHTTPServer(populatedTracker(t), terrain.ExportOptions{})

	summits := get(t, h, "/grids/alps/summits.json").Body.String()
	if n := strings.Count(summits, `"type":"Summit"`); n != 2 {
		t.Errorf("expected 2 summits, got %d", n)
	}
	if strings.Contains(summits, `"type":"Saddle"`) {
		t.Error("summits.json should not contain saddles")
	}

	saddles := get(t, h, "/grids/alps/saddles.json?min=0&max=6").Body.String()
	if n := strings.Count(saddles, `"type":"Saddle"`); n != 1 {
		t.Errorf("expected 1 saddle, got %d", n)
	}
}

func TestGridJSON(t *testing.T) {
	rec := get(t, newHTTPServer(populatedTracker(t), terrain.ExportOptions{}), "/grids/alps/grid.json")
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	g, err := terrain.ParseGridJSON(rec.Body.Bytes())
	if err != nil {
		t.Fatalf("served grid does not parse: %v", err)
	}
	if g.MaxX() != 2 || g.MaxY() != 4 {
		t.Errorf("expected 3x5 grid, got max (%d,%d)", g.MaxX(), g.MaxY())
	}
	if got := g.ElevationAt(1, 1); got != 9 {
		t.Errorf("expected 9 at (1,1), got %v", got)
	}
}

func TestParseBBox(t *testing.T) {
	tests := []struct {
		in      string
		want    [4]float64
		wantErr bool
	}{
		{"47,8,46.9,8.1", [4]float64{47, 8, 46.9, 8.1}, false},
		{" 1, 2 ,3,4 ", [4]float64{1, 2, 3, 4}, false},
		{"1,2,3", [4]float64{}, true},
		{"1,2,3,north", [4]float64{}, true},
	}
	for _, tt := range tests {
		got, err := parseBBox(tt.in)
		if (err != nil) != tt.wantErr {
			t.Errorf("parseBBox(%q) error = %v, wantErr %v", tt.in, err, tt.wantErr)
			continue
		}
		if !tt.wantErr && got != tt.want {
			t.Errorf("parseBBox(%q) = %v, want %v", tt.in, got, tt.want)
		}
	}
}

// ---------------------------------------------------------------------------
// maps
// ---------------------------------------------------------------------------

func TestMapPNG(t *testing.T) {
	rec := get(t, newHTTPServer(populatedTracker(t), terrain.ExportOptions{}), "/grids/alps/map.png")
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	if _, err := png.Decode(rec.Body); err != nil {
		t.Errorf("invalid PNG: %v", err)
	}
}

func TestMapSVG(t *testing.T) {
	rec := get(t, newHTTPServer(populatedTracker(t), terrain.ExportOptions{}), "/grids/alps/map.svg")
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	if ct := rec.Header().Get("Content-Type"); ct != "image/svg+xml" {
		t.Errorf("unexpected content type %s", ct)
	}
	if !strings.Contains(rec.Body.String(), "<svg") {
		t.Error("expected SVG document")
	}
}
