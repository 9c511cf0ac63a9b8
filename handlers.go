package main

import (
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/kwv/prominence/terrain"
)

// newHTTPServer creates an HTTP server with all endpoints
func newHTTPServer(stateTracker *terrain.StateTracker, export terrain.ExportOptions) http.Handler {
	mux := http.NewServeMux()

	// Health check endpoint
	mux.HandleFunc("GET /health", func(w http.ResponseWriter, r *http.Request) {
		log.Printf("[HTTP] /health request from %s", r.RemoteAddr)
		status := struct {
			Status    string    `json:"status"`
			Timestamp time.Time `json:"timestamp"`
			Grids     int       `json:"grids"`
		}{
			Status:    "ok",
			Timestamp: time.Now(),
			Grids:     len(stateTracker.IDs()),
		}
		writeJSON(w, status)
	})

	mux.HandleFunc("GET /grids", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, stateTracker.Summaries())
	})

	mux.HandleFunc("GET /grids/{id}", withGrid(stateTracker, func(w http.ResponseWriter, r *http.Request, s *terrain.GridState) {
		writeJSON(w, struct {
			Grid      terrain.GridSummary   `json:"grid"`
			Result    terrain.ResultSummary `json:"result"`
			UpdatedAt time.Time             `json:"updatedAt"`
		}{
			Grid:      terrain.Summarize(s.Grid),
			Result:    terrain.NewResultSummary(s.ID, s.Result),
			UpdatedAt: s.UpdatedAt,
		})
	}))

	mux.HandleFunc("GET /grids/{id}/features.geojson", withGrid(stateTracker, func(w http.ResponseWriter, r *http.Request, s *terrain.GridState) {
		opts := export
		opts.QualifiedOnly = r.URL.Query().Get("qualified") == "true"
		data, err := terrain.ToFeatureCollection(s.Grid, s.Result, opts).MarshalJSON()
		if err != nil {
			http.Error(w, "Failed to encode GeoJSON", http.StatusInternalServerError)
			return
		}
		w.Header().Set("Content-Type", "application/geo+json")
		if _, err := w.Write(data); err != nil {
			log.Printf("Error writing GeoJSON: %v", err)
		}
	}))

	mux.HandleFunc("GET /grids/{id}/features.json", withGrid(stateTracker, featuresHandler("")))
	mux.HandleFunc("GET /grids/{id}/summits.json", withGrid(stateTracker, featuresHandler(terrain.KindSummit)))
	mux.HandleFunc("GET /grids/{id}/saddles.json", withGrid(stateTracker, featuresHandler(terrain.KindSaddle)))

	mux.HandleFunc("GET /grids/{id}/grid.json", withGrid(stateTracker, func(w http.ResponseWriter, r *http.Request, s *terrain.GridState) {
		data, err := terrain.EncodeGrid(s.Grid)
		if err != nil {
			http.Error(w, err.Error(), http.StatusInternalServerError)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write(data)
	}))

	mux.HandleFunc("GET /grids/{id}/map.png", withGrid(stateTracker, func(w http.ResponseWriter, r *http.Request, s *terrain.GridState) {
		w.Header().Set("Content-Type", "image/png")
		w.Header().Set("Cache-Control", "no-cache")
		if err := terrain.NewRenderer(s.Grid, s.Result).WritePNG(w); err != nil {
			log.Printf("Error encoding map PNG: %v", err)
		}
	}))

	mux.HandleFunc("GET /grids/{id}/map.svg", withGrid(stateTracker, func(w http.ResponseWriter, r *http.Request, s *terrain.GridState) {
		w.Header().Set("Content-Type", "image/svg+xml")
		w.Header().Set("Cache-Control", "no-cache")
		if err := terrain.NewVectorRenderer(s.Grid, s.Result).RenderToSVG(w); err != nil {
			log.Printf("Error rendering map SVG: %v", err)
		}
	}))

	return mux
}

// withGrid resolves the {id} path value to a tracked grid.
func withGrid(st *terrain.StateTracker, h func(http.ResponseWriter, *http.Request, *terrain.GridState)) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id := r.PathValue("id")
		s, ok := st.Get(id)
		if !ok || s.Result == nil {
			http.Error(w, fmt.Sprintf("Grid %q not found", id), http.StatusNotFound)
			return
		}
		h(w, r, s)
	}
}

// featuresHandler serves the features of a grid as JSON, restricted to kind
// when it is set and filtered by the query parameters.
func featuresHandler(kind terrain.FeatureKind) func(http.ResponseWriter, *http.Request, *terrain.GridState) {
	return func(w http.ResponseWriter, r *http.Request, s *terrain.GridState) {
		c := terrain.NewCollection(s.Result.Summits, s.Result.Saddles)
		if kind != "" {
			c = c.ByType(string(kind))
		}
		c, err := queryCollection(c, r)
		if err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		data, err := c.ToJSON(false)
		if err != nil {
			http.Error(w, "Failed to encode features", http.StatusInternalServerError)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		if _, err := w.Write(data); err != nil {
			log.Printf("Error writing features: %v", err)
		}
	}
}

// queryCollection applies the type, lat/lon/radius and min/max query
// parameters to c.
func queryCollection(c *terrain.Collection, r *http.Request) (*terrain.Collection, error) {
	q := r.URL.Query()
	if t := q.Get("type"); t != "" {
		c = c.ByType(t)
	}

	if q.Has("radius") {
		var lat, lon, radius float64
		for _, p := range []struct {
			name string
			dst  *float64
		}{{"lat", &lat}, {"lon", &lon}, {"radius", &radius}} {
			v, err := strconv.ParseFloat(q.Get(p.name), 64)
			if err != nil {
				return nil, fmt.Errorf("invalid %s: %q", p.name, q.Get(p.name))
			}
			*p.dst = v
		}
		c = c.Radius(lat, lon, radius)
	}

	if q.Has("bbox") {
		b, err := parseBBox(q.Get("bbox"))
		if err != nil {
			return nil, err
		}
		c = c.Rectangle(b[0], b[1], b[2], b[3])
	}

	if q.Has("min") || q.Has("max") {
		lower, err := strconv.ParseFloat(q.Get("min"), 64)
		if err != nil {
			return nil, fmt.Errorf("invalid min: %q", q.Get("min"))
		}
		upper, err := strconv.ParseFloat(q.Get("max"), 64)
		if err != nil {
			return nil, fmt.Errorf("invalid max: %q", q.Get("max"))
		}
		c = c.ElevationRange(lower, upper)
	}
	return c, nil
}

// parseBBox parses "lat1,lon1,lat2,lon2". The corners may come in any order.
func parseBBox(s string) ([4]float64, error) {
	var b [4]float64
	parts := strings.Split(s, ",")
	if len(parts) != len(b) {
		return b, fmt.Errorf("invalid bbox %q: want lat1,lon1,lat2,lon2", s)
	}
	for i, p := range parts {
		v, err := strconv.ParseFloat(strings.TrimSpace(p), 64)
		if err != nil {
			return b, fmt.Errorf("invalid bbox %q: %w", s, err)
		}
		b[i] = v
	}
	return b, nil
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Printf("Error encoding response: %v", err)
	}
}
