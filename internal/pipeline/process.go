package pipeline

import (
	"math"
	"time"

	"github.com/cycoholic/gotrackers/internal/cache"
	"github.com/cycoholic/gotrackers/internal/geo"
	"github.com/cycoholic/gotrackers/internal/match"
	"github.com/cycoholic/gotrackers/internal/monitoring"
	"github.com/cycoholic/gotrackers/internal/route"
	"github.com/cycoholic/gotrackers/internal/source"
	"gonum.org/v1/gonum/spatial/r3"
)

// ProcessPoints runs the per-point analysis loop described in spec.md §4.6
// over raw, in order, mutating the pipeline's PipelineState and returning
// every point appended to the main and off-route streams (in the order
// they were produced; sub-batches are also published to subscribers as
// they're flushed, per the "Progress pacing" rule).
func (p *Pipeline) ProcessPoints(raw []source.RawPoint) (analyzed []AnalyzedPoint, offRoute []AnalyzedPoint) {
	p.mu.Lock()
	defer p.mu.Unlock()

	var pendingAnalyzed, pendingOffRoute []AnalyzedPoint
	batchPoints := p.tuning.GetProgressBatchPoints()
	batchInterval := p.tuning.GetProgressBatchInterval()
	flushedAt := p.clock.Now()
	sinceFlush := 0

	flush := func() {
		if len(pendingAnalyzed) > 0 {
			analyzed = append(analyzed, pendingAnalyzed...)
			p.out.Publish(append([]AnalyzedPoint(nil), pendingAnalyzed...))
			pendingAnalyzed = nil
		}
		if len(pendingOffRoute) > 0 {
			offRoute = append(offRoute, pendingOffRoute...)
			p.offRouteOut.Publish(append([]AnalyzedPoint(nil), pendingOffRoute...))
			pendingOffRoute = nil
		}
		sinceFlush = 0
		flushedAt = p.clock.Now()
	}

	for i, rp := range raw {
		emitted, emittedOffRoute, stopEarly := p.processOne(rp)
		pendingAnalyzed = append(pendingAnalyzed, emitted...)
		pendingOffRoute = append(pendingOffRoute, emittedOffRoute...)
		sinceFlush++

		isLast := i == len(raw)-1
		if sinceFlush >= batchPoints || isLast {
			if elapsed := p.clock.Now().Sub(flushedAt); elapsed > batchInterval {
				monitoring.Logf("pipeline %s: %d/%d points processed", p.runID, i+1, len(raw))
			}
			flush()
		}

		if stopEarly {
			break
		}
	}
	flush()
	return analyzed, offRoute
}

// processOne applies spec.md §4.6 steps 1-9 to a single raw point,
// returning the points to append to the main and off-route streams and
// whether batch processing should stop early (the point just finished the
// rider).
func (p *Pipeline) processOne(raw source.RawPoint) (mainOut []AnalyzedPoint, offRouteOut []AnalyzedPoint, stopEarly bool) {
	st := &p.st

	ap := AnalyzedPoint{Time: raw.Time, HasPosition: raw.HasPosition, Lat: raw.Lat, Lon: raw.Lon, Elev: raw.Elev}

	if !ap.HasPosition {
		ap.TrackID = st.trackID
		return []AnalyzedPoint{ap}, nil, false
	}

	pointGeo := geo.NewPoint(raw.Lat, raw.Lon)

	skipMatching := st.finished || (p.analyseStartTime != nil && raw.Time.Before(*p.analyseStartTime))

	var m *match.ClosestMatch
	matched := false
	if !skipMatching {
		prevRouteIndex := prevRouteIndexOf(st.prevMatch)
		mm, ok := p.closestMatch(&pointGeo, prevRouteIndex, st.prevRouteDist)
		if ok {
			m, matched = mm, true
		}
	}

	if matched {
		along := m.AlongRouteDistance
		ap.AlongRouteDistance = &along

		gf := st.prevRouteDist == nil || along > *st.prevRouteDist
		st.goingForward = &gf
		st.prevRouteDist = &along
		st.prevRouteDistTime = raw.Time

		r := p.routes.Routes[m.RouteIndex]
		if len(r.Elevation) > 0 && m.DistanceToRoute > 250 {
			if elev, ok := route.ElevationAt(r, along); ok {
				ap.RouteElevation = &elev
			}
		}

		if m.RouteIndex == 0 {
			mainTotal := p.routes.Main().TotalDistance()
			if math.Abs(along-mainTotal) < p.tuning.GetFinishTolerance() {
				st.finished = true
				ft := raw.Time
				ap.FinishedTime = &ft
				ap.RiderStatus = "Finished"
			}
		}
	} else {
		st.goingForward = nil
	}

	timeFromPrev, haveTimeFromPrev := p.timeFromPrev(st, raw.Time)
	if haveTimeFromPrev {
		ap.TimeFromPrev = &timeFromPrev
	}

	distFromPrev, haveDistFromPrev := p.distFromPrev(st, &pointGeo, m, matched)
	if haveDistFromPrev {
		rounded := math.Round(distFromPrev)
		ap.DistFromPrev = &rounded
		st.totalDist += distFromPrev
		totalRounded := math.Round(st.totalDist)
		ap.TotalDist = &totalRounded

		if haveTimeFromPrev && timeFromPrev > 0 {
			speedKmh := distFromPrev / timeFromPrev.Seconds() * 3.6
			ap.SpeedKmh = &speedKmh
			p.speed.push(speedKmh)
			if mean, stddev, ok := p.speed.MeanStdDev(); ok {
				ap.SpeedMeanKmh = &mean
				ap.SpeedStdDevKmh = &stddev
			}
		}
	}

	if haveTimeFromPrev && haveDistFromPrev &&
		timeFromPrev > p.tuning.GetTrackBreakTime() && distFromPrev > p.tuning.GetTrackBreakDist() {
		st.trackID++
		st.offRouteTrackID++
		if st.prevPoint != nil {
			synthetic := AnalyzedPoint{Time: st.prevPoint.Time.Add(p.tuning.GetTrackBreakTime())}
			if p.setStatus(st, &synthetic, "Inactive") {
				mainOut = append(mainOut, synthetic)
			}
		}
	}

	offRouteThreshold := p.tuning.GetOffRouteDistThreshold()
	isOffRoute := p.routesEmpty() || !matched || m.DistanceToRoute > offRouteThreshold ||
		(st.goingForward != nil && !*st.goingForward && haveDistFromPrev && distFromPrev > offRouteThreshold)

	if isOffRoute && !st.isOffRoute {
		if st.prevPoint != nil {
			prevCopy := *st.prevPoint
			otid := st.offRouteTrackID
			prevCopy.OffRouteTrackID = &otid
			offRouteOut = append(offRouteOut, prevCopy)
		}
		otid := st.offRouteTrackID
		tagged := ap
		tagged.OffRouteTrackID = &otid
		offRouteOut = append(offRouteOut, tagged)
	} else if isOffRoute && st.isOffRoute {
		otid := st.offRouteTrackID
		tagged := ap
		tagged.OffRouteTrackID = &otid
		offRouteOut = append(offRouteOut, tagged)
	} else if !isOffRoute && st.isOffRoute {
		otid := st.offRouteTrackID
		tagged := ap
		tagged.OffRouteTrackID = &otid
		offRouteOut = append(offRouteOut, tagged)
		st.offRouteTrackID++
	}
	st.isOffRoute = isOffRoute

	p.setStatus(st, &ap, "Active")
	ap.TrackID = st.trackID

	if st.prevPointGeo != nil {
		diff := r3.Sub(pointGeo.PV(), st.prevPointGeo.PV())
		if uv, ok := geo.UnitVector(diff); ok {
			st.prevUnitVector = &uv
		} else {
			st.prevUnitVector = nil
		}
	}
	prevGeo := pointGeo
	st.prevPointGeo = &prevGeo
	st.prevMatch = m
	apForState := ap
	st.prevPoint = &apForState

	mainOut = append(mainOut, ap)
	return mainOut, offRouteOut, st.finished
}

// timeFromPrev computes time_from_prev against the previous point, or
// against analyse_start_time if there is no previous point yet (spec.md
// §4.6 step 6).
func (p *Pipeline) timeFromPrev(st *state, t time.Time) (time.Duration, bool) {
	if st.prevPoint != nil {
		return t.Sub(st.prevPoint.Time), true
	}
	if p.analyseStartTime != nil {
		return t.Sub(*p.analyseStartTime), true
	}
	return 0, false
}

// distFromPrev implements spec.md §4.6 step 6's dist_from_prev rule:
// prefer the along-route delta between two close, same-route matches (more
// robust than chord distance when the rider is snapped to the route), else
// fall back to straight chord distance, else (first point with a match)
// the along-route distance itself.
func (p *Pipeline) distFromPrev(st *state, pointGeo *geo.Point, m *match.ClosestMatch, matched bool) (float64, bool) {
	if st.prevMatch != nil && matched &&
		st.prevMatch.DistanceToRoute < 250 && m.DistanceToRoute < 250 &&
		st.prevMatch.RouteIndex == m.RouteIndex {
		return math.Abs(m.LocalDistance - st.prevMatch.LocalDistance), true
	}
	if st.prevPointGeo != nil {
		return geo.Distance(pointGeo, st.prevPointGeo), true
	}
	if matched {
		return m.AlongRouteDistance, true
	}
	return 0, false
}

// setStatus applies analyse_apply_status_to_point: the point's status is
// only set (and reported true) when it differs from the pipeline's
// current status.
func (p *Pipeline) setStatus(st *state, ap *AnalyzedPoint, status string) bool {
	if status == st.status {
		return false
	}
	ap.Status = status
	st.status = status
	return true
}

// closestMatch looks up the cache (if configured) before falling back to
// match.Find, populating the cache on a miss (spec.md §4.5).
func (p *Pipeline) closestMatch(pointGeo *geo.Point, prevRouteIndex *int, prevDist *float64) (*match.ClosestMatch, bool) {
	if p.routes == nil || p.routes.Empty() {
		return nil, false
	}

	if p.cache == nil {
		m, ok := match.Find(p.routes, pointGeo, p.matchOpts, prevRouteIndex, prevDist)
		return match.ApplyOutOfRangeCutoff(m, ok)
	}

	key := cache.Key{
		Lat:                   pointGeo.Lat,
		Lon:                   pointGeo.Lon,
		MinSearchComplexDist:  p.matchOpts.MinSearchComplexDist,
		PrevClosestRouteIndex: prevRouteIndex,
		BreakOutDist:          p.matchOpts.BreakOutDist,
		PrevDist:              prevDist,
	}
	if m, ok, err := p.cache.Get(key); err == nil && ok {
		return m, true
	}

	m, ok := match.Find(p.routes, pointGeo, p.matchOpts, prevRouteIndex, prevDist)
	m, ok = match.ApplyOutOfRangeCutoff(m, ok)
	if ok {
		if err := p.cache.Put(key, m); err != nil {
			monitoring.Logf("pipeline %s: cache put: %v", p.runID, err)
		}
	}
	return m, ok
}

func (p *Pipeline) routesEmpty() bool {
	return p.routes == nil || p.routes.Empty()
}

func prevRouteIndexOf(m *match.ClosestMatch) *int {
	if m == nil {
		return nil
	}
	idx := m.RouteIndex
	return &idx
}
