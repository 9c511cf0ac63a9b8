package terrain

import (
	"sort"
	"sync"
	"time"
)

// GridState is the latest analysis of one grid.
type GridState struct {
	ID        string
	Grid      *ElevationGrid
	Result    *Result
	UpdatedAt time.Time
}

// StateTracker holds the latest result per grid for HTTP endpoints and
// the MQTT service.
type StateTracker struct {
	mu    sync.RWMutex
	grids map[string]*GridState
}

// NewStateTracker creates an empty tracker.
func NewStateTracker() *StateTracker {
	return &StateTracker{grids: make(map[string]*GridState)}
}

// Update stores res as the latest result of grid id.
func (st *StateTracker) Update(id string, g *ElevationGrid, res *Result) {
	st.mu.Lock()
	defer st.mu.Unlock()
	st.grids[id] = &GridState{ID: id, Grid: g, Result: res, UpdatedAt: time.Now()}
}

// Get returns the state of grid id.
func (st *StateTracker) Get(id string) (*GridState, bool) {
	st.mu.RLock()
	defer st.mu.RUnlock()
	s, ok := st.grids[id]
	return s, ok
}

// Remove forgets grid id.
func (st *StateTracker) Remove(id string) {
	st.mu.Lock()
	defer st.mu.Unlock()
	delete(st.grids, id)
}

// IDs returns the tracked grid ids in sorted order.
func (st *StateTracker) IDs() []string {
	st.mu.RLock()
	defer st.mu.RUnlock()
	ids := make([]string, 0, len(st.grids))
	for id := range st.grids {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// Summaries returns a summary per tracked grid in id order.
func (st *StateTracker) Summaries() []ResultSummary {
	ids := st.IDs()
	out := make([]ResultSummary, 0, len(ids))
	for _, id := range ids {
		if s, ok := st.Get(id); ok {
			out = append(out, NewResultSummary(id, s.Result))
		}
	}
	return out
}
