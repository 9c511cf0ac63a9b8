package terrain

import (
	"context"
	"database/sql"
	_ "embed"
	"encoding/json"
	"fmt"
	"log"
	"time"

	_ "modernc.org/sqlite"
)

//go:embed schema.sql
var schemaSQL string

// Store persists analysis results in SQLite. Each grid id holds at most one
// result; saving again replaces it.
type Store struct {
	*sql.DB
}

// GridRecord describes a stored result.
type GridRecord struct {
	ID      string    `json:"id"`
	SavedAt time.Time `json:"savedAt"`
	Summits int       `json:"summits"`
	Saddles int       `json:"saddles"`
	Linkers int       `json:"linkers"`
	Stalls  int       `json:"stalls"`
}

// OpenStore opens or creates the database at path and applies the schema.
func OpenStore(path string) (*Store, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}
	// a single connection keeps the foreign_keys pragma in effect
	db.SetMaxOpenConns(1)
	if _, err := db.Exec("PRAGMA foreign_keys = ON"); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("enabling foreign keys: %w", err)
	}
	if _, err := db.Exec(schemaSQL); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("applying schema: %w", err)
	}
	log.Printf("initialized result database %s", path)
	return &Store{db}, nil
}

// SaveResult replaces the stored result for gridID with res.
func (s *Store) SaveResult(ctx context.Context, gridID string, res *Result) (err error) {
	tx, err := s.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	if _, err = tx.ExecContext(ctx, `DELETE FROM grids WHERE id = ?`, gridID); err != nil {
		return fmt.Errorf("clearing grid %s: %w", gridID, err)
	}
	_, err = tx.ExecContext(ctx,
		`INSERT INTO grids (id, saved_at, summits, saddles, linkers, stalls) VALUES (?, ?, ?, ?, ?, ?)`,
		gridID, time.Now().Unix(), len(res.Summits), len(res.Saddles), len(res.Linkers), len(res.Stalls))
	if err != nil {
		return fmt.Errorf("inserting grid %s: %w", gridID, err)
	}

	insertFeature, err := tx.PrepareContext(ctx, `
		INSERT INTO features (id, grid_id, kind, latitude, longitude, elevation, edge, x, y, plateau_cells, high_shores, disqualified)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("preparing feature insert: %w", err)
	}
	defer func() { _ = insertFeature.Close() }()

	for _, f := range NewCollection(res.Summits, res.Saddles).Points {
		r := recordOf(f)
		cells, err := nullableJSON(r.Cells)
		if err != nil {
			return err
		}
		shores, err := nullableJSON(r.HighShores)
		if err != nil {
			return err
		}
		_, err = insertFeature.ExecContext(ctx, r.ID, gridID, string(r.Type), r.Latitude, r.Longitude,
			r.Elevation, r.Edge, r.Cell.X, r.Cell.Y, cells, shores, r.Disqualified)
		if err != nil {
			return fmt.Errorf("inserting %s %s: %w", r.Type, r.ID, err)
		}
	}

	insertLinker, err := tx.PrepareContext(ctx,
		`INSERT INTO linkers (id, grid_id, summit_id, saddle_id, shore, path) VALUES (?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("preparing linker insert: %w", err)
	}
	defer func() { _ = insertLinker.Close() }()

	for _, l := range res.Linkers {
		path, err := json.Marshal(l.Path)
		if err != nil {
			return fmt.Errorf("encoding linker path: %w", err)
		}
		if _, err := insertLinker.ExecContext(ctx, l.ID, gridID, l.Summit.ID, l.Saddle.ID, l.Shore, string(path)); err != nil {
			return fmt.Errorf("inserting linker %s: %w", l.ID, err)
		}
	}

	if err = tx.Commit(); err != nil {
		return fmt.Errorf("committing grid %s: %w", gridID, err)
	}
	return nil
}

func nullableJSON[T any](v []T) (sql.NullString, error) {
	if len(v) == 0 {
		return sql.NullString{}, nil
	}
	data, err := json.Marshal(v)
	if err != nil {
		return sql.NullString{}, fmt.Errorf("encoding JSON column: %w", err)
	}
	return sql.NullString{String: string(data), Valid: true}, nil
}

// Grids lists stored results, newest first.
func (s *Store) Grids(ctx context.Context) ([]GridRecord, error) {
	rows, err := s.QueryContext(ctx,
		`SELECT id, saved_at, summits, saddles, linkers, stalls FROM grids ORDER BY saved_at DESC, id`)
	if err != nil {
		return nil, fmt.Errorf("listing grids: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var out []GridRecord
	for rows.Next() {
		var g GridRecord
		var savedAt int64
		if err := rows.Scan(&g.ID, &savedAt, &g.Summits, &g.Saddles, &g.Linkers, &g.Stalls); err != nil {
			return nil, fmt.Errorf("scanning grid: %w", err)
		}
		g.SavedAt = time.Unix(savedAt, 0)
		out = append(out, g)
	}
	return out, rows.Err()
}

// LoadCollection loads the stored summits and saddles of gridID. Linkers
// are not attached; use LoadLinkers for those.
func (s *Store) LoadCollection(ctx context.Context, gridID string) (*Collection, error) {
	rows, err := s.QueryContext(ctx, `
		SELECT id, kind, latitude, longitude, elevation, edge, x, y, plateau_cells, high_shores, disqualified
		FROM features WHERE grid_id = ? ORDER BY rowid`, gridID)
	if err != nil {
		return nil, fmt.Errorf("loading features for %s: %w", gridID, err)
	}
	defer func() { _ = rows.Close() }()

	c := &Collection{}
	for rows.Next() {
		var r featureRecord
		var kind string
		var cells, shores sql.NullString
		if err := rows.Scan(&r.ID, &kind, &r.Latitude, &r.Longitude, &r.Elevation, &r.Edge,
			&r.Cell.X, &r.Cell.Y, &cells, &shores, &r.Disqualified); err != nil {
			return nil, fmt.Errorf("scanning feature: %w", err)
		}
		r.Type = FeatureKind(kind)
		r.Cell.Elevation = r.Elevation
		if cells.Valid {
			if err := json.Unmarshal([]byte(cells.String), &r.Cells); err != nil {
				return nil, fmt.Errorf("decoding plateau of %s: %w", r.ID, err)
			}
		}
		if shores.Valid {
			if err := json.Unmarshal([]byte(shores.String), &r.HighShores); err != nil {
				return nil, fmt.Errorf("decoding high shores of %s: %w", r.ID, err)
			}
		}
		f, err := r.feature()
		if err != nil {
			return nil, err
		}
		c.Points = append(c.Points, f)
	}
	return c, rows.Err()
}

// LoadSummits loads the stored summits of gridID.
func (s *Store) LoadSummits(ctx context.Context, gridID string) ([]*Summit, error) {
	c, err := s.LoadCollection(ctx, gridID)
	if err != nil {
		return nil, err
	}
	return c.Summits(), nil
}

// StoredLinker is a linker row. Endpoints are referenced by feature id.
type StoredLinker struct {
	ID       string `json:"id"`
	SummitID string `json:"summitId"`
	SaddleID string `json:"saddleId"`
	Shore    int    `json:"shore"`
	Path     []Cell `json:"path"`
}

// LoadLinkers loads the stored linkers of gridID.
func (s *Store) LoadLinkers(ctx context.Context, gridID string) ([]StoredLinker, error) {
	rows, err := s.QueryContext(ctx,
		`SELECT id, summit_id, saddle_id, shore, path FROM linkers WHERE grid_id = ? ORDER BY rowid`, gridID)
	if err != nil {
		return nil, fmt.Errorf("loading linkers for %s: %w", gridID, err)
	}
	defer func() { _ = rows.Close() }()

	var out []StoredLinker
	for rows.Next() {
		var l StoredLinker
		var path string
		if err := rows.Scan(&l.ID, &l.SummitID, &l.SaddleID, &l.Shore, &path); err != nil {
			return nil, fmt.Errorf("scanning linker: %w", err)
		}
		if err := json.Unmarshal([]byte(path), &l.Path); err != nil {
			return nil, fmt.Errorf("decoding path of %s: %w", l.ID, err)
		}
		out = append(out, l)
	}
	return out, rows.Err()
}
