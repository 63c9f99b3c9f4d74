// Package adminapi exposes a narrow /debug/ diagnostics surface over a
// running tracker: a JSON stats endpoint (run id, finished state, rolling
// speed stats, persisted-point count, build version), plus a live-SQL
// browser over internal/store's database. It deliberately mirrors
// donor db.go's AttachAdminRoutes (tsweb.Debugger + tailsql.NewServer)
// rather than reimplementing a debug UI from scratch — this package is
// diagnostics, not the rider-facing front-end spec.md excludes.
package adminapi

import (
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/tailscale/tailsql/server/tailsql"
	"tailscale.com/tsweb"

	"github.com/cycoholic/gotrackers/internal/cache"
	"github.com/cycoholic/gotrackers/internal/monitoring"
	"github.com/cycoholic/gotrackers/internal/pipeline"
	"github.com/cycoholic/gotrackers/internal/store"
	"github.com/cycoholic/gotrackers/internal/version"
)

// Stats summarizes one pipeline's live state for the JSON debug endpoint.
type Stats struct {
	RunID           string  `json:"run_id"`
	Finished        bool    `json:"finished"`
	SpeedMeanKmh    float64 `json:"speed_mean_kmh,omitempty"`
	SpeedStdDevKmh  float64 `json:"speed_stddev_kmh,omitempty"`
	HaveSpeedStats  bool    `json:"have_speed_stats"`
	AnalyzedPersist int     `json:"analyzed_points_persisted"`
	BuildVersion    string  `json:"build_version"`
	BuildGitSHA     string  `json:"build_git_sha"`
}

// Server mounts debug routes for one tracker's pipeline, and optionally a
// persisted store and closest-point cache.
type Server struct {
	pipeline *pipeline.Pipeline
	store    *store.Store
	cache    *cache.Cache
	dbLabel  string
}

// New constructs a Server. store and c may be nil if unused.
func New(p *pipeline.Pipeline, s *store.Store, c *cache.Cache) *Server {
	return &Server{pipeline: p, store: s, cache: c, dbLabel: "Tracker store"}
}

// AttachAdminRoutes mounts this tracker's debug endpoints on mux, following
// donor db.go's AttachAdminRoutes layout: a tsweb.Debugger root plus a
// tailsql live-SQL browser when a store database is configured.
func (srv *Server) AttachAdminRoutes(mux *http.ServeMux) {
	debug := tsweb.Debugger(mux)

	debug.Handle("pipeline-stats", "Pipeline run id, finished state, rolling speed stats (JSON)",
		http.HandlerFunc(srv.handleStats))

	if srv.store == nil {
		return
	}

	tsql, err := tailsql.NewServer(tailsql.Options{
		RoutePrefix: "/debug/tailsql/",
	})
	if err != nil {
		// A live-SQL browser is a debugging convenience, not required for
		// correct analysis; log and skip rather than fail startup.
		monitoring.Logf("adminapi: failed to create tailsql server: %v", err)
		return
	}
	tsql.SetDB("sqlite://tracker.db", srv.store.DB(), &tailsql.DBOptions{
		Label: srv.dbLabel,
	})
	debug.Handle("tailsql/", "SQL live debugging over the analyzed-point store", tsql.NewMux())
}

func (srv *Server) handleStats(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")

	s := Stats{
		RunID:        srv.pipeline.RunID().String(),
		Finished:     srv.pipeline.Finished(),
		BuildVersion: version.Version,
		BuildGitSHA:  version.GitSHA,
	}
	if mean, stddev, ok := srv.pipeline.SpeedStats(); ok {
		s.SpeedMeanKmh = mean
		s.SpeedStdDevKmh = stddev
		s.HaveSpeedStats = true
	}
	if srv.store != nil {
		if n, err := srv.store.CountAnalyzed(srv.pipeline.RunID()); err == nil {
			s.AnalyzedPersist = n
		}
	}

	if err := json.NewEncoder(w).Encode(s); err != nil {
		http.Error(w, fmt.Sprintf("failed to encode stats: %v", err), http.StatusInternalServerError)
		return
	}
}
