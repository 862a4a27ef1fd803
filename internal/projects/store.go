package projects

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	_ "modernc.org/sqlite"

	"github.com/MaFalana/HWC-POTREE-API/internal/config"
)

// ErrNotFound is returned when a project id does not match any row.
var ErrNotFound = errors.New("project not found")

// Store persists project records. It shares the SQLite database file with the
// job queue but owns its own table.
type Store struct {
	db *sql.DB
}

const projectSchema = `
CREATE TABLE IF NOT EXISTS projects (
    id TEXT PRIMARY KEY,
    name TEXT NOT NULL,
    crs_code INTEGER NOT NULL DEFAULT 0,
    crs_name TEXT NOT NULL DEFAULT '',
    lat REAL,
    lon REAL,
    z REAL,
    point_count INTEGER NOT NULL DEFAULT 0,
    thumbnail_url TEXT NOT NULL DEFAULT '',
    cloud_url TEXT NOT NULL DEFAULT '',
    created_at TEXT NOT NULL,
    updated_at TEXT NOT NULL
)`

// Open connects to the project table in the shared database.
func Open(cfg *config.Config) (*Store, error) {
	if err := cfg.EnsureDirectories(); err != nil {
		return nil, fmt.Errorf("ensure directories: %w", err)
	}
	return OpenPath(cfg.DatabasePath())
}

// OpenPath opens the project store at an explicit database location.
func OpenPath(dbPath string) (*Store, error) {
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open sqlite db: %w", err)
	}
	for _, pragma := range []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout = 5000",
	} {
		if _, execErr := db.Exec(pragma); execErr != nil {
			_ = db.Close()
			return nil, fmt.Errorf("apply pragma %q: %w", pragma, execErr)
		}
	}
	if _, err := db.Exec(projectSchema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("create projects table: %w", err)
	}
	return &Store{db: db}, nil
}

// Close closes the underlying database connection.
func (s *Store) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

const projectColumns = `id, name, crs_code, crs_name, lat, lon, z,
	point_count, thumbnail_url, cloud_url, created_at, updated_at`

func formatEPSG(code int) string {
	return fmt.Sprintf("EPSG:%d", code)
}

const timestampLayout = "2006-01-02T15:04:05.000000000Z07:00"

// Upsert creates a project or updates its name and CRS. Derived fields
// written by the pipeline survive an upsert untouched.
func (s *Store) Upsert(ctx context.Context, project *Project) (*Project, error) {
	if project == nil {
		return nil, errors.New("project is nil")
	}
	if strings.TrimSpace(project.ID) == "" {
		return nil, errors.New("project id is required")
	}

	now := time.Now().UTC().Format(timestampLayout)
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO projects (id, name, crs_code, crs_name, created_at, updated_at)
         VALUES (?, ?, ?, ?, ?, ?)
         ON CONFLICT(id) DO UPDATE SET
             name = excluded.name,
             crs_code = excluded.crs_code,
             crs_name = excluded.crs_name,
             updated_at = excluded.updated_at`,
		project.ID,
		project.Name,
		project.CRS.Code,
		project.CRS.Name,
		now,
		now,
	)
	if err != nil {
		return nil, fmt.Errorf("upsert project: %w", err)
	}
	return s.Get(ctx, project.ID)
}

// Get fetches one project by id.
func (s *Store) Get(ctx context.Context, id string) (*Project, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+projectColumns+` FROM projects WHERE id = ?`, id)
	project, err := scanProject(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	if err != nil {
		return nil, fmt.Errorf("get project: %w", err)
	}
	return project, nil
}

// List returns all projects ordered by name.
func (s *Store) List(ctx context.Context) ([]*Project, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT `+projectColumns+` FROM projects ORDER BY name, id`)
	if err != nil {
		return nil, fmt.Errorf("list projects: %w", err)
	}
	defer rows.Close()

	var result []*Project
	for rows.Next() {
		project, err := scanProject(rows)
		if err != nil {
			return nil, fmt.Errorf("scan project: %w", err)
		}
		result = append(result, project)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate projects: %w", err)
	}
	return result, nil
}

// UpdateDerived merges pipeline output into an existing project. Nil fields
// are preserved and the CRS is never modified.
func (s *Store) UpdateDerived(ctx context.Context, id string, derived Derived) (*Project, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	row := tx.QueryRowContext(ctx, `SELECT `+projectColumns+` FROM projects WHERE id = ?`, id)
	project, err := scanProject(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	if err != nil {
		return nil, fmt.Errorf("load project: %w", err)
	}

	if derived.PointCount != nil {
		project.PointCount = *derived.PointCount
	}
	if derived.Location != nil {
		project.Location = *derived.Location
	}
	if derived.ThumbnailURL != nil {
		project.ThumbnailURL = *derived.ThumbnailURL
	}
	if derived.CloudURL != nil {
		project.CloudURL = *derived.CloudURL
	}
	project.UpdatedAt = time.Now().UTC()

	if _, err := tx.ExecContext(ctx,
		`UPDATE projects
         SET lat = ?, lon = ?, z = ?, point_count = ?, thumbnail_url = ?, cloud_url = ?, updated_at = ?
         WHERE id = ?`,
		project.Location.Lat,
		project.Location.Lon,
		project.Location.Z,
		project.PointCount,
		project.ThumbnailURL,
		project.CloudURL,
		project.UpdatedAt.Format(timestampLayout),
		id,
	); err != nil {
		return nil, fmt.Errorf("update project: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit update: %w", err)
	}
	return project, nil
}

func scanProject(row interface{ Scan(...any) error }) (*Project, error) {
	var (
		project   Project
		lat       sql.NullFloat64
		lon       sql.NullFloat64
		z         sql.NullFloat64
		createdAt string
		updatedAt string
	)
	err := row.Scan(
		&project.ID,
		&project.Name,
		&project.CRS.Code,
		&project.CRS.Name,
		&lat,
		&lon,
		&z,
		&project.PointCount,
		&project.ThumbnailURL,
		&project.CloudURL,
		&createdAt,
		&updatedAt,
	)
	if err != nil {
		return nil, err
	}
	if lat.Valid {
		project.Location.Lat = &lat.Float64
	}
	if lon.Valid {
		project.Location.Lon = &lon.Float64
	}
	if z.Valid {
		project.Location.Z = &z.Float64
	}
	if project.CreatedAt, err = time.Parse(time.RFC3339Nano, createdAt); err != nil {
		return nil, fmt.Errorf("parse created_at: %w", err)
	}
	if project.UpdatedAt, err = time.Parse(time.RFC3339Nano, updatedAt); err != nil {
		return nil, fmt.Errorf("parse updated_at: %w", err)
	}
	return &project, nil
}
