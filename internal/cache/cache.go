// Package cache implements ClosestPointCache: an sqlite-backed,
// content-addressed cache of closest-point-search results (spec.md §4.5).
// It follows the db.DB / lidardb.LidarDB embedded-schema-plus-migrations
// pattern, scoped down to this package's own table.
package cache

import (
	"database/sql"
	"embed"
	"fmt"
	"io/fs"

	"github.com/cespare/xxhash/v2"
	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database/sqlite"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	_ "modernc.org/sqlite"

	"github.com/cycoholic/gotrackers/internal/match"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

// Cache is a single-writer, sqlite-backed ClosestPointCache. Routes are
// hashed once at construction time (spec.md §4.5 "Key derivation"); all
// lookups are then scoped to that routes blob via the owning row, so two
// Cache instances built from different route sets never collide even if
// they share a database file.
type Cache struct {
	db         *sql.DB
	routesHash uint64
}

// Open creates or attaches to an sqlite-backed cache at path, applying
// pending schema migrations, and scopes it to the given routes blob
// (spec.md §4.5: "keyed by the routes set, not global").
func Open(path string, routesBlob []byte) (*Cache, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("cache: open %s: %w", path, err)
	}
	if err := applyPragmas(db); err != nil {
		db.Close()
		return nil, err
	}

	c := &Cache{db: db, routesHash: xxhash.Sum64(routesBlob)}
	if err := c.migrate(); err != nil {
		db.Close()
		return nil, err
	}
	return c, nil
}

func applyPragmas(db *sql.DB) error {
	pragmas := []string{
		"PRAGMA journal_mode = WAL",
		"PRAGMA synchronous = NORMAL",
		"PRAGMA busy_timeout = 5000",
	}
	for _, p := range pragmas {
		if _, err := db.Exec(p); err != nil {
			return fmt.Errorf("cache: pragma %q: %w", p, err)
		}
	}
	return nil
}

func (c *Cache) migrate() error {
	subFS, err := fs.Sub(migrationsFS, "migrations")
	if err != nil {
		return fmt.Errorf("cache: sub filesystem for migrations: %w", err)
	}
	sourceDriver, err := iofs.New(subFS, ".")
	if err != nil {
		return fmt.Errorf("cache: iofs source driver: %w", err)
	}
	driver, err := sqlite.WithInstance(c.db, &sqlite.Config{})
	if err != nil {
		return fmt.Errorf("cache: sqlite migrate driver: %w", err)
	}
	m, err := migrate.NewWithInstance("iofs", sourceDriver, "sqlite", driver)
	if err != nil {
		return fmt.Errorf("cache: migrate instance: %w", err)
	}
	if err := m.Up(); err != nil && err != migrate.ErrNoChange {
		return fmt.Errorf("cache: migrate up: %w", err)
	}
	return nil
}

// Close closes the underlying database handle.
func (c *Cache) Close() error {
	return c.db.Close()
}

// Key identifies one closest-point-search call, per spec.md §4.5's "Key
// derivation": `(to.lat, to.lon, min_search_complex_dist,
// prev_closest_route_index, break_out_dist, prev_dist)`. No quantization:
// the inputs are already deterministic.
type Key struct {
	Lat, Lon              float64
	MinSearchComplexDist  float64
	PrevClosestRouteIndex *int
	BreakOutDist          float64
	PrevDist              *float64
}

// Get looks up a previously cached ClosestMatch for key, returning
// (nil, false) on a miss.
func (c *Cache) Get(key Key) (*match.ClosestMatch, bool, error) {
	var routeIndex, segmentAIndex int
	var dist, projLat, projLon, alongRouteDist, localDist float64

	row := c.db.QueryRow(`
		SELECT route_index, segment_a_index, dist, proj_lat, proj_lon, along_route_dist, local_dist
		FROM closest_point_cache
		WHERE routes_hash = ? AND to_lat = ? AND to_lon = ? AND min_search_complex_dist = ?
		  AND prev_closest_route_index IS ? AND break_out_dist = ? AND prev_dist IS ?
	`, int64(c.routesHash), key.Lat, key.Lon, key.MinSearchComplexDist,
		nullableInt(key.PrevClosestRouteIndex), key.BreakOutDist, nullableFloat(key.PrevDist))

	err := row.Scan(&routeIndex, &segmentAIndex, &dist, &projLat, &projLon, &alongRouteDist, &localDist)
	switch {
	case err == sql.ErrNoRows:
		return nil, false, nil
	case err != nil:
		return nil, false, fmt.Errorf("cache: get: %w", err)
	}

	m := &match.ClosestMatch{
		RouteIndex:         routeIndex,
		SegmentAIndex:      segmentAIndex,
		DistanceToRoute:    dist,
		AlongRouteDistance: alongRouteDist,
		LocalDistance:      localDist,
	}
	m.Projection.Lat = projLat
	m.Projection.Lon = projLon
	return m, true, nil
}

// Put stores the result of a closest-point search for key. Packs the match
// into the flat tuple `(route_index, segment_a_index, dist, proj.lat,
// proj.lon)` named in spec.md §4.5, alongside the derived distances needed
// to reconstruct a full ClosestMatch on Get.
func (c *Cache) Put(key Key, m *match.ClosestMatch) error {
	// sqlite treats NULLs as distinct in UNIQUE constraints, so a key with a
	// nil PrevClosestRouteIndex or PrevDist never hits ON CONFLICT below;
	// remove any existing entry for the key first.
	_, err := c.db.Exec(`
		DELETE FROM closest_point_cache
		WHERE routes_hash = ? AND to_lat = ? AND to_lon = ? AND min_search_complex_dist = ?
		  AND prev_closest_route_index IS ? AND break_out_dist = ? AND prev_dist IS ?
	`, int64(c.routesHash), key.Lat, key.Lon, key.MinSearchComplexDist,
		nullableInt(key.PrevClosestRouteIndex), key.BreakOutDist, nullableFloat(key.PrevDist))
	if err != nil {
		return fmt.Errorf("cache: put: %w", err)
	}
	_, err = c.db.Exec(`
		INSERT INTO closest_point_cache (
			routes_hash, to_lat, to_lon, min_search_complex_dist,
			prev_closest_route_index, break_out_dist, prev_dist,
			route_index, segment_a_index, dist, proj_lat, proj_lon,
			along_route_dist, local_dist
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (routes_hash, to_lat, to_lon, min_search_complex_dist,
			prev_closest_route_index, break_out_dist, prev_dist)
		DO UPDATE SET
			route_index = excluded.route_index,
			segment_a_index = excluded.segment_a_index,
			dist = excluded.dist,
			proj_lat = excluded.proj_lat,
			proj_lon = excluded.proj_lon,
			along_route_dist = excluded.along_route_dist,
			local_dist = excluded.local_dist
	`, int64(c.routesHash), key.Lat, key.Lon, key.MinSearchComplexDist,
		nullableInt(key.PrevClosestRouteIndex), key.BreakOutDist, nullableFloat(key.PrevDist),
		m.RouteIndex, m.SegmentAIndex, m.DistanceToRoute, m.Projection.Lat, m.Projection.Lon,
		m.AlongRouteDistance, m.LocalDistance)
	if err != nil {
		return fmt.Errorf("cache: put: %w", err)
	}
	return nil
}

// Flush issues a WAL checkpoint, forcing cached writes to the main
// database file. Useful before a backup or a clean process exit.
func (c *Cache) Flush() error {
	if _, err := c.db.Exec("PRAGMA wal_checkpoint(TRUNCATE)"); err != nil {
		return fmt.Errorf("cache: flush: %w", err)
	}
	return nil
}

func nullableInt(v *int) any {
	if v == nil {
		return nil
	}
	return *v
}

func nullableFloat(v *float64) any {
	if v == nil {
		return nil
	}
	return *v
}
