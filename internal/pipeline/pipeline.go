// Package pipeline implements AnalysisPipeline: the per-rider state machine
// that turns a raw GPS point stream into an analyzed stream annotated with
// route position, distance ridden, speed, activity status, off-route
// excursions and finish detection (spec.md §4.6, §4.7). It is the Go
// counterpart of trackers.start_analyse_tracker /
// trackers.analyse_tracker_new_points / trackers.make_inactive in the
// Cycoholic trackers distillation.
package pipeline

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/cycoholic/gotrackers/internal/cache"
	"github.com/cycoholic/gotrackers/internal/config"
	"github.com/cycoholic/gotrackers/internal/geo"
	"github.com/cycoholic/gotrackers/internal/match"
	"github.com/cycoholic/gotrackers/internal/monitoring"
	"github.com/cycoholic/gotrackers/internal/obs"
	"github.com/cycoholic/gotrackers/internal/route"
	"github.com/cycoholic/gotrackers/internal/source"
	"github.com/cycoholic/gotrackers/internal/timeutil"
	"gonum.org/v1/gonum/spatial/r3"
)

// AnalyzedPoint is the input point cloned and annotated (spec.md §3
// "AnalyzedPoint"). Fields are absent (nil) when not computable for this
// point, matching the source's optional-field shape.
type AnalyzedPoint struct {
	Time        time.Time
	HasPosition bool
	Lat, Lon    float64
	Elev        *float64

	AlongRouteDistance *float64
	RouteElevation     *float64
	DistFromPrev       *float64
	TotalDist          *float64
	TimeFromPrev       *time.Duration
	SpeedKmh           *float64
	// SpeedMeanKmh/SpeedStdDevKmh are a rolling mean/stddev of speed_kmh
	// over the last 30 points that had a speed, matched or not, an
	// enrichment beyond spec.md's own AnalyzedPoint (see SPEC_FULL.md
	// "Supplemented features"). The window is cleared only by Reset, not at
	// a track break. Both are nil on points with no SpeedKmh.
	SpeedMeanKmh   *float64
	SpeedStdDevKmh *float64
	TrackID        int
	FinishedTime       *time.Time
	RiderStatus        string
	Status             string

	// OffRouteTrackID is set only on points emitted into the off-route
	// stream (spec.md §4.6 step 7); nil on the main stream.
	OffRouteTrackID *int
}

// state is PipelineState (spec.md §3 "PipelineState").
type state struct {
	prevPoint         *AnalyzedPoint
	prevPointGeo      *geo.Point
	prevUnitVector    *r3.Vec
	prevMatch         *match.ClosestMatch
	prevRouteDist     *float64
	prevRouteDistTime time.Time
	goingForward      *bool
	trackID           int
	offRouteTrackID   int
	isOffRoute        bool
	finished          bool
	totalDist         float64
	status            string // "", "Active", "Inactive"
}

// Pipeline is one rider's AnalysisPipeline instance (spec.md §4.6). A
// Pipeline is driven by repeated ProcessPoints calls, either directly or
// via Run against a source.Source.
type Pipeline struct {
	routes           *route.RouteSet
	tuning           *config.TrackerTuning
	matchOpts        match.Options
	cache            *cache.Cache
	analyseStartTime *time.Time
	runID            uuid.UUID

	mu sync.Mutex
	st state

	speed *rollingSpeedStats

	out         *obs.Observer[[]AnalyzedPoint]
	offRouteOut *obs.Observer[[]AnalyzedPoint]

	clock timeutil.Clock

	timerMu  sync.Mutex
	timer    *time.Timer
	timerGen uint64
}

// NewPipeline constructs a Pipeline for one rider against routes, using
// tuning's tunables. cache may be nil to disable the closest-point cache;
// analyseStartTime may be nil to analyze from the first point.
func NewPipeline(routes *route.RouteSet, tuning *config.TrackerTuning, c *cache.Cache, analyseStartTime *time.Time) *Pipeline {
	if tuning == nil {
		tuning = config.EmptyTrackerTuning()
	}
	return &Pipeline{
		routes: routes,
		tuning: tuning,
		matchOpts: match.Options{
			MinSearchComplexDist: tuning.GetMinSearchComplexDist(),
			BreakOutDist:         tuning.GetBreakOutDist(),
		},
		cache:            c,
		analyseStartTime: analyseStartTime,
		runID:            uuid.New(),
		speed:            newRollingSpeedStats(30),
		out:              obs.NewObserver[[]AnalyzedPoint](8),
		offRouteOut:      obs.NewObserver[[]AnalyzedPoint](8),
		clock:            timeutil.RealClock{},
	}
}

// RunID identifies this pipeline's analysis run, e.g. for correlating
// persisted rows in internal/store.
func (p *Pipeline) RunID() uuid.UUID { return p.runID }

// Subscribe registers for batches of analyzed points on the main stream.
func (p *Pipeline) Subscribe() (string, <-chan []AnalyzedPoint) { return p.out.Subscribe() }

// Unsubscribe removes a prior Subscribe registration.
func (p *Pipeline) Unsubscribe(id string) { p.out.Unsubscribe(id) }

// SubscribeOffRoute registers for batches of points on the off-route
// excursion stream (spec.md §4.6 step 7).
func (p *Pipeline) SubscribeOffRoute() (string, <-chan []AnalyzedPoint) { return p.offRouteOut.Subscribe() }

// UnsubscribeOffRoute removes a prior SubscribeOffRoute registration.
func (p *Pipeline) UnsubscribeOffRoute(id string) { p.offRouteOut.Unsubscribe(id) }

// Finished reports whether this rider has crossed the finish (spec.md §4.6
// step 5 "Finish detection").
func (p *Pipeline) Finished() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.st.finished
}

// Run drives the pipeline from src: processes its current backlog, then
// every subsequently published batch, until ctx is canceled or src
// finishes on its own (spec.md §5 "Cancellation").
func (p *Pipeline) Run(ctx context.Context, src source.Source) error {
	p.NewPoints(ctx, src.Points())

	id, ch := src.Subscribe()
	defer src.Unsubscribe(id)

	resetID, resetCh := src.SubscribeReset()
	defer src.UnsubscribeReset(resetID)

	for {
		select {
		case <-ctx.Done():
			p.stopTimer()
			return ctx.Err()
		case <-src.Done():
			p.stopTimer()
			return nil
		case batch, ok := <-ch:
			if !ok {
				p.stopTimer()
				return nil
			}
			p.NewPoints(ctx, batch)
		case _, ok := <-resetCh:
			if !ok {
				continue
			}
			p.Reset()
		}
	}
}

// Reset implements spec.md §6's "reset points" tracker signal: it discards
// PipelineState and any in-progress off-route excursion, so the next batch
// of points is analyzed as if from a fresh rider start (spec.md §5
// "Cancellation"). Any off-route excursion in progress is closed out on the
// off-route stream first, the same way processOne closes one when a rider
// comes back on-route.
func (p *Pipeline) Reset() {
	p.stopTimer()

	p.mu.Lock()
	defer p.mu.Unlock()

	if p.st.isOffRoute && p.st.prevPoint != nil {
		otid := p.st.offRouteTrackID
		closing := *p.st.prevPoint
		closing.OffRouteTrackID = &otid
		p.offRouteOut.Publish([]AnalyzedPoint{closing})
	}

	p.st = state{}
	p.speed = newRollingSpeedStats(30)
}

// NewPoints processes new raw points and logs progress if a batch takes
// more than a second of wall time (spec.md §4.6 "Progress pacing"). It is
// the entry point used both by Run and by a caller feeding points directly.
// ProcessPoints publishes its own sub-batches as it flushes them, so this
// only needs to time the call and reschedule the inactivity timer.
func (p *Pipeline) NewPoints(ctx context.Context, raw []source.RawPoint) {
	if len(raw) == 0 {
		return
	}
	start := p.clock.Now()
	_, _ = p.ProcessPoints(raw)
	if elapsed := p.clock.Now().Sub(start); elapsed > time.Second {
		monitoring.Logf("pipeline %s: processed %d points in %s", p.runID, len(raw), elapsed)
	}
	p.rescheduleInactivityTimer()
}

// Stop cancels the inactivity timer and asks the upstream source to stop
// (spec.md §5 "Cancellation").
func (p *Pipeline) Stop(ctx context.Context, src source.Source) error {
	p.stopTimer()
	if src == nil {
		return nil
	}
	return src.Stop(ctx)
}
