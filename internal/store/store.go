// Package store persists AnalysisPipeline output: the analyzed-point and
// off-route-point streams for a rider, keyed by analysis-run id, so a run
// can be replayed or inspected offline (SPEC_FULL.md "Supplemented
// features" — new relative to spec.md and original_source). It follows the
// same embedded-schema-plus-migrations pattern as internal/cache, scaled up
// to cover both streams.
package store

import (
	"database/sql"
	"embed"
	"fmt"
	"io/fs"
	"time"

	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database/sqlite"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	"github.com/google/uuid"
	_ "modernc.org/sqlite"

	"github.com/cycoholic/gotrackers/internal/pipeline"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

// Store is a single-writer, sqlite-backed log of one or more analysis runs.
type Store struct {
	db *sql.DB
}

// Open creates or attaches to an sqlite-backed store at path, applying
// pending schema migrations.
func Open(path string) (*Store, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("store: open %s: %w", path, err)
	}
	if err := applyPragmas(db); err != nil {
		db.Close()
		return nil, err
	}

	s := &Store{db: db}
	if err := s.migrate(); err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}

func applyPragmas(db *sql.DB) error {
	pragmas := []string{
		"PRAGMA journal_mode = WAL",
		"PRAGMA synchronous = NORMAL",
		"PRAGMA busy_timeout = 5000",
	}
	for _, p := range pragmas {
		if _, err := db.Exec(p); err != nil {
			return fmt.Errorf("store: pragma %q: %w", p, err)
		}
	}
	return nil
}

func (s *Store) migrate() error {
	subFS, err := fs.Sub(migrationsFS, "migrations")
	if err != nil {
		return fmt.Errorf("store: sub filesystem for migrations: %w", err)
	}
	sourceDriver, err := iofs.New(subFS, ".")
	if err != nil {
		return fmt.Errorf("store: iofs source driver: %w", err)
	}
	driver, err := sqlite.WithInstance(s.db, &sqlite.Config{})
	if err != nil {
		return fmt.Errorf("store: sqlite migrate driver: %w", err)
	}
	m, err := migrate.NewWithInstance("iofs", sourceDriver, "sqlite", driver)
	if err != nil {
		return fmt.Errorf("store: migrate instance: %w", err)
	}
	if err := m.Up(); err != nil && err != migrate.ErrNoChange {
		return fmt.Errorf("store: migrate up: %w", err)
	}
	return nil
}

// Close closes the underlying database handle.
func (s *Store) Close() error {
	return s.db.Close()
}

// DB returns the underlying *sql.DB, e.g. for mounting a tailsql live-SQL
// debug browser (internal/adminapi) over the store.
func (s *Store) DB() *sql.DB {
	return s.db
}

// Flush issues a WAL checkpoint, forcing buffered writes to the main
// database file (e.g. before a backup or on clean shutdown).
func (s *Store) Flush() error {
	if _, err := s.db.Exec("PRAGMA wal_checkpoint(TRUNCATE)"); err != nil {
		return fmt.Errorf("store: flush: %w", err)
	}
	return nil
}

// StartRun records the start of a new analysis run.
func (s *Store) StartRun(runID uuid.UUID, startedAtUnixNanos int64) error {
	_, err := s.db.Exec(`
		INSERT INTO analysis_run (run_id, started_at) VALUES (?, ?)
		ON CONFLICT (run_id) DO NOTHING
	`, runID.String(), startedAtUnixNanos)
	if err != nil {
		return fmt.Errorf("store: start run: %w", err)
	}
	return nil
}

// AppendAnalyzed persists a batch of analyzed points for runID, starting at
// sequence number seq (the caller tracks the running sequence across
// calls so rows stay append-only and ordered).
func (s *Store) AppendAnalyzed(runID uuid.UUID, seq int, points []pipeline.AnalyzedPoint) error {
	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("store: append analyzed: begin: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.Prepare(`
		INSERT INTO analyzed_point (
			run_id, seq, time_unix_nanos, has_position, lat, lon, elev,
			along_route_dist, route_elevation, dist_from_prev, total_dist,
			time_from_prev_nanos, speed_kmh, speed_mean_kmh, speed_stddev_kmh,
			track_id, finished_time_nanos, rider_status, status
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (run_id, seq) DO NOTHING
	`)
	if err != nil {
		return fmt.Errorf("store: append analyzed: prepare: %w", err)
	}
	defer stmt.Close()

	for i, p := range points {
		_, err := stmt.Exec(
			runID.String(), seq+i, p.Time.UnixNano(), boolToInt(p.HasPosition),
			nullableFloatVal(p.HasPosition, p.Lat), nullableFloatVal(p.HasPosition, p.Lon), nullablePtr(p.Elev),
			nullablePtr(p.AlongRouteDistance), nullablePtr(p.RouteElevation), nullablePtr(p.DistFromPrev), nullablePtr(p.TotalDist),
			nullableDuration(p.TimeFromPrev), nullablePtr(p.SpeedKmh), nullablePtr(p.SpeedMeanKmh), nullablePtr(p.SpeedStdDevKmh),
			p.TrackID, nullableTime(p.FinishedTime), p.RiderStatus, p.Status,
		)
		if err != nil {
			return fmt.Errorf("store: append analyzed: exec: %w", err)
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("store: append analyzed: commit: %w", err)
	}
	return nil
}

// AppendOffRoute persists a batch of off-route-stream points for runID.
func (s *Store) AppendOffRoute(runID uuid.UUID, seq int, points []pipeline.AnalyzedPoint) error {
	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("store: append off-route: begin: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.Prepare(`
		INSERT INTO off_route_point (run_id, seq, off_route_track_id, time_unix_nanos, has_position, lat, lon)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (run_id, seq) DO NOTHING
	`)
	if err != nil {
		return fmt.Errorf("store: append off-route: prepare: %w", err)
	}
	defer stmt.Close()

	for i, p := range points {
		otid := 0
		if p.OffRouteTrackID != nil {
			otid = *p.OffRouteTrackID
		}
		_, err := stmt.Exec(
			runID.String(), seq+i, otid, p.Time.UnixNano(), boolToInt(p.HasPosition),
			nullableFloatVal(p.HasPosition, p.Lat), nullableFloatVal(p.HasPosition, p.Lon),
		)
		if err != nil {
			return fmt.Errorf("store: append off-route: exec: %w", err)
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("store: append off-route: commit: %w", err)
	}
	return nil
}

// CountAnalyzed returns the number of analyzed points persisted for runID.
func (s *Store) CountAnalyzed(runID uuid.UUID) (int, error) {
	var n int
	err := s.db.QueryRow(`SELECT COUNT(*) FROM analyzed_point WHERE run_id = ?`, runID.String()).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("store: count analyzed: %w", err)
	}
	return n, nil
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

func nullableFloatVal(has bool, v float64) any {
	if !has {
		return nil
	}
	return v
}

func nullablePtr(v *float64) any {
	if v == nil {
		return nil
	}
	return *v
}

func nullableDuration(d *time.Duration) any {
	if d == nil {
		return nil
	}
	return int64(*d)
}

func nullableTime(t *time.Time) any {
	if t == nil {
		return nil
	}
	return t.UnixNano()
}
