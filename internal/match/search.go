// Package match implements ClosestPointSearch: the hierarchical,
// cross-route closest-point-on-polyline search described in spec.md §4.4.
// It is the Go counterpart of trackers.find_closest_point_pair_routes.
package match

import (
	"math"

	"github.com/cycoholic/gotrackers/internal/geo"
	"github.com/cycoholic/gotrackers/internal/route"
)

// Defaults from spec.md §6.
const (
	DefaultMinSearchComplexDist = 5000.0
	DefaultBreakOutDist         = 250.0
	OutOfRangeDist              = 100000.0
)

// Options tunes the search (spec.md §4.4 parameters).
type Options struct {
	MinSearchComplexDist float64
	BreakOutDist         float64
}

// DefaultOptions returns the spec.md §6 default tunables.
func DefaultOptions() Options {
	return Options{
		MinSearchComplexDist: DefaultMinSearchComplexDist,
		BreakOutDist:         DefaultBreakOutDist,
	}
}

// ClosestMatch is the result of a closest-point search (spec.md §3
// "ClosestMatch").
type ClosestMatch struct {
	RouteIndex      int
	SegmentAIndex   int // full-segment start index, within RouteIndex's route
	Projection      geo.Point
	DistanceToRoute float64

	// AlongRouteDistance is expressed in the main route's distance frame
	// (spec.md §4.4 "Return value").
	AlongRouteDistance float64

	// LocalDistance is the raw, un-mapped along-route distance within
	// RouteIndex's own route. For the main route this equals
	// AlongRouteDistance; for alternates it is the pre-dist_factor value.
	// Used by the pipeline's dist_from_prev "no-adjust" comparison
	// (spec.md §4.4 "no-adjust variant").
	LocalDistance float64
}

// Find runs the two-level, cross-route closest-point search described in
// spec.md §4.4. prevRouteIndex and prevDist are the previous match's route
// index and along-route distance (both optional); they steer the search
// order and the circular-route jump penalty. Returns (nil, false) when the
// route set is empty.
func Find(rs *route.RouteSet, to *geo.Point, opts Options, prevRouteIndex *int, prevDist *float64) (*ClosestMatch, bool) {
	if rs.Empty() {
		return nil, false
	}

	special := []int{0}
	if prevRouteIndex != nil && *prevRouteIndex != 0 && *prevRouteIndex < len(rs.Routes) {
		special = append(special, *prevRouteIndex)
	}

	tried := make(map[int]bool, len(special))
	var results []*ClosestMatch

	// Iterate special routes in reverse: prevRouteIndex first, main
	// second, matching trackers.find_closest_point_pair_routes.
	for i := len(special) - 1; i >= 0; i-- {
		idx := special[i]
		if tried[idx] {
			continue
		}
		tried[idx] = true

		m := searchRoute(rs.Routes[idx], idx, to, opts, prevDist)
		if m.DistanceToRoute < opts.BreakOutDist {
			return m, true
		}
		results = append(results, m)
	}

	for idx, r := range rs.Routes {
		if tried[idx] {
			continue
		}
		results = append(results, searchRoute(r, idx, to, opts, prevDist))
	}

	best := results[0]
	for _, m := range results[1:] {
		if m.DistanceToRoute < best.DistanceToRoute {
			best = m
		}
	}
	return best, true
}

// searchRoute performs the two-level (simplified, then refined) search
// against a single route (spec.md §4.4 "Two-level search per route").
func searchRoute(r *route.Route, routeIndex int, to *geo.Point, opts Options, prevDist *float64) *ClosestMatch {
	simplified := bestSimplifiedSegment(r, to, prevDist)

	var segA route.IndexedRoutePoint
	var proj geo.Point
	var dist float64

	spanIsAdjacent := simplified.seg.ToIndex-simplified.seg.FromIndex == 1
	if simplified.dist > opts.MinSearchComplexDist || spanIsAdjacent {
		segA = simplified.seg.A
		proj, dist = simplified.proj, simplified.dist
	} else {
		refined := bestFullSegmentInRange(r, to, prevDist, simplified.seg.FromIndex, simplified.seg.ToIndex)
		segA = refined.a
		proj, dist = refined.proj, refined.dist
	}

	return buildMatch(r, routeIndex, segA, proj, dist)
}

func buildMatch(r *route.Route, routeIndex int, a route.IndexedRoutePoint, proj geo.Point, dist float64) *ClosestMatch {
	localDist := a.Distance + geo.Distance(&a.Point, &proj)

	along := localDist
	if !r.IsMain {
		along = localDist*r.DistFactor + r.StartDistance
	}

	return &ClosestMatch{
		RouteIndex:         routeIndex,
		SegmentAIndex:      a.Index,
		Projection:         proj,
		DistanceToRoute:    dist,
		AlongRouteDistance: along,
		LocalDistance:      localDist,
	}
}

type simplifiedCandidate struct {
	seg  route.SimplifiedSegment
	proj geo.Point
	dist float64
}

func bestSimplifiedSegment(r *route.Route, to *geo.Point, prevDist *float64) simplifiedCandidate {
	var best simplifiedCandidate
	bestRank := math.Inf(1)

	for _, seg := range r.SimplifiedSegments {
		res := geo.CrossTrack(to, &seg.A.Point, &seg.B.Point, seg.Precalc)
		localDist := seg.A.Distance + geo.Distance(&seg.A.Point, &res.Proj)
		rank := rankCandidate(r, res.Dist, localDist, prevDist)
		if rank < bestRank {
			bestRank = rank
			best = simplifiedCandidate{seg: seg, proj: res.Proj, dist: res.Dist}
		}
	}
	return best
}

type fullCandidate struct {
	a, b route.IndexedRoutePoint
	proj geo.Point
	dist float64
}

// bestFullSegmentInRange refines the search over the full-resolution
// segments whose indices fall in [fromIndex, toIndex] (spec.md §4.4 step 3).
func bestFullSegmentInRange(r *route.Route, to *geo.Point, prevDist *float64, fromIndex, toIndex int) fullCandidate {
	var best fullCandidate
	bestRank := math.Inf(1)

	for _, seg := range r.FullSegments {
		if seg.A.Index < fromIndex || seg.A.Index >= toIndex {
			continue
		}
		res := geo.CrossTrack(to, &seg.A.Point, &seg.B.Point, seg.Precalc)
		localDist := seg.A.Distance + geo.Distance(&seg.A.Point, &res.Proj)
		rank := rankCandidate(r, res.Dist, localDist, prevDist)
		if rank < bestRank {
			bestRank = rank
			best = fullCandidate{a: seg.A, b: seg.B, proj: res.Proj, dist: res.Dist}
		}
	}
	return best
}

// rankCandidate applies the circular-route jump penalty (spec.md §4.4
// "Circular bias") when the route declares a circular_range and a previous
// along-route distance is known; otherwise it ranks purely by distance.
func rankCandidate(r *route.Route, dist, localDist float64, prevDist *float64) float64 {
	if r.CircularRange == nil || prevDist == nil {
		return dist
	}
	moveDistance := math.Abs(localDist - *prevDist)
	penalty := math.Pow(2, (moveDistance-*r.CircularRange)/1000)
	return dist + penalty
}

// ApplyOutOfRangeCutoff implements spec.md §4.4's "out-of-range cutoff":
// any match farther than OutOfRangeDist from the route is treated as no
// match at all.
func ApplyOutOfRangeCutoff(m *ClosestMatch, ok bool) (*ClosestMatch, bool) {
	if !ok || m == nil || m.DistanceToRoute > OutOfRangeDist {
		return nil, false
	}
	return m, true
}
