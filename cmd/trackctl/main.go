// Command trackctl wires a GPS point source, a RouteSet, and an
// AnalysisPipeline together and serves its admin diagnostics, following the
// donor main.go's graceful-shutdown shape (signal.NotifyContext + a
// sync.WaitGroup of goroutines, each stopped via context cancellation).
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"sync"
	"syscall"
	"time"

	"github.com/cespare/xxhash/v2"
	_ "modernc.org/sqlite"

	"github.com/cycoholic/gotrackers/internal/adminapi"
	"github.com/cycoholic/gotrackers/internal/cache"
	"github.com/cycoholic/gotrackers/internal/config"
	"github.com/cycoholic/gotrackers/internal/monitoring"
	"github.com/cycoholic/gotrackers/internal/pipeline"
	"github.com/cycoholic/gotrackers/internal/route"
	"github.com/cycoholic/gotrackers/internal/security"
	"github.com/cycoholic/gotrackers/internal/source"
	"github.com/cycoholic/gotrackers/internal/store"
	"github.com/cycoholic/gotrackers/internal/version"
)

var (
	listen      = flag.String("listen", ":8090", "Admin HTTP listen address")
	routesPath  = flag.String("routes", "", "Path to a route-set JSON file (required)")
	configPath  = flag.String("config", "", "Path to a tracker tuning JSON file (optional)")
	replayPath  = flag.String("replay", "", "Path to a JSON-lines replay log (mutually exclusive with -serial)")
	replaySpeed = flag.Float64("replay-speed", 0, "Replay pacing multiplier; 0 replays as fast as possible")
	serialPort  = flag.String("serial", "", "Serial port device for a live NMEA GPS feed (mutually exclusive with -replay)")
	serialBaud  = flag.Int("serial-baud", 9600, "Serial port baud rate")
	storePath   = flag.String("store", "", "Path to a sqlite file for the persisted analyzed-point log; empty disables persistence")
	cacheDir    = flag.String("cache-dir", "", "Directory for the content-addressed closest-point cache file; empty disables caching")
	showVersion = flag.Bool("version", false, "Print version information and exit")
)

func main() {
	flag.Parse()

	if *showVersion {
		fmt.Printf("trackctl %s (commit %s, built %s)\n", version.Version, version.GitSHA, version.BuildTime)
		return
	}

	if *routesPath == "" {
		log.Fatal("-routes is required")
	}
	if *replayPath != "" && *serialPort != "" {
		log.Fatal("-replay and -serial are mutually exclusive")
	}

	if err := security.ValidateExportPath(*routesPath); err != nil {
		log.Fatalf("-routes path rejected: %v", err)
	}
	routeInputs, err := route.LoadRouteInputs(*routesPath)
	if err != nil {
		log.Fatalf("failed to load routes: %v", err)
	}
	routes, err := route.NewRouteSet(routeInputs)
	if err != nil {
		log.Fatalf("failed to build route set: %v", err)
	}

	tuning := config.EmptyTrackerTuning()
	if *configPath != "" {
		if err := security.ValidateExportPath(*configPath); err != nil {
			log.Fatalf("-config path rejected: %v", err)
		}
		tuning, err = config.LoadTrackerTuning(*configPath)
		if err != nil {
			log.Fatalf("failed to load tracker tuning: %v", err)
		}
	}

	var pointCache *cache.Cache
	if *cacheDir != "" {
		if err := os.MkdirAll(*cacheDir, 0o755); err != nil {
			log.Fatalf("failed to create cache directory: %v", err)
		}
		blob := routesBlob(*routesPath)
		cachePath := filepath.Join(*cacheDir, fmt.Sprintf("%016x.sqlite", xxhash.Sum64(blob)))
		pointCache, err = cache.Open(cachePath, blob)
		if err != nil {
			log.Fatalf("failed to open closest-point cache: %v", err)
		}
		defer pointCache.Close()
	}

	var pointStore *store.Store
	if *storePath != "" {
		pointStore, err = store.Open(*storePath)
		if err != nil {
			log.Fatalf("failed to open analyzed-point store: %v", err)
		}
		defer pointStore.Close()
	}

	src, err := openSource()
	if err != nil {
		log.Fatalf("failed to open point source: %v", err)
	}

	p := pipeline.NewPipeline(routes, tuning, pointCache, nil)
	if pointStore != nil {
		if err := pointStore.StartRun(p.RunID(), time.Now().UnixNano()); err != nil {
			log.Fatalf("failed to record analysis run: %v", err)
		}
	}

	var wg sync.WaitGroup
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if pointStore != nil {
		wg.Add(1)
		go func() {
			defer wg.Done()
			persistPipelineOutput(ctx, p, pointStore)
		}()
	}

	wg.Add(1)
	go func() {
		defer wg.Done()
		if err := src.Run(ctx); err != nil && err != context.Canceled {
			monitoring.Logf("trackctl: source run ended: %v", err)
		}
	}()

	wg.Add(1)
	go func() {
		defer wg.Done()
		if err := p.Run(ctx, src); err != nil && err != context.Canceled {
			monitoring.Logf("trackctl: pipeline run ended: %v", err)
		}
	}()

	wg.Add(1)
	go func() {
		defer wg.Done()
		runAdminServer(ctx, p, pointStore, pointCache)
	}()

	wg.Wait()
	log.Printf("trackctl: graceful shutdown complete")
}

// openSource opens whichever point source was selected on the command
// line; a replay log is the default when neither flag is given, reading
// from stdin so the binary still does something useful in a pipeline.
func openSource() (source.Source, error) {
	switch {
	case *replayPath != "":
		f, err := os.Open(*replayPath)
		if err != nil {
			return nil, err
		}
		return source.NewReplaySource(f, *replaySpeed)
	case *serialPort != "":
		return source.OpenSerialNMEASource(*serialPort, *serialBaud)
	default:
		return source.NewReplaySource(os.Stdin, *replaySpeed)
	}
}

// persistPipelineOutput subscribes to both of the pipeline's streams and
// appends every batch to the store, tracking a running sequence number per
// stream so rows stay ordered and replay-idempotent.
func persistPipelineOutput(ctx context.Context, p *pipeline.Pipeline, s *store.Store) {
	id, ch := p.Subscribe()
	defer p.Unsubscribe(id)
	offID, offCh := p.SubscribeOffRoute()
	defer p.UnsubscribeOffRoute(offID)

	seq, offSeq := 0, 0
	for {
		select {
		case <-ctx.Done():
			return
		case batch := <-ch:
			if err := s.AppendAnalyzed(p.RunID(), seq, batch); err != nil {
				monitoring.Logf("trackctl: persist analyzed batch: %v", err)
			}
			seq += len(batch)
		case batch := <-offCh:
			if err := s.AppendOffRoute(p.RunID(), offSeq, batch); err != nil {
				monitoring.Logf("trackctl: persist off-route batch: %v", err)
			}
			offSeq += len(batch)
		}
	}
}

func runAdminServer(ctx context.Context, p *pipeline.Pipeline, s *store.Store, c *cache.Cache) {
	mux := http.NewServeMux()
	adminapi.New(p, s, c).AttachAdminRoutes(mux)

	server := &http.Server{Addr: *listen, Handler: mux}
	go func() {
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("admin server failed: %v", err)
		}
	}()

	<-ctx.Done()
	log.Println("trackctl: shutting down admin HTTP server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Printf("trackctl: admin server shutdown error: %v", err)
	}
}

func routesBlob(path string) []byte {
	data, err := os.ReadFile(path)
	if err != nil {
		return []byte(path)
	}
	return data
}
