package route

import (
	"github.com/cycoholic/gotrackers/internal/geo"
)

// DefaultSimplifyEpsilon is the default Ramer-Douglas-Peucker tolerance in
// meters (spec.md §6).
const DefaultSimplifyEpsilon = 500.0

// ramerDouglasPeucker simplifies points[lo:hi+1] in place, returning the
// kept point indexes (always including lo and hi). It mirrors
// trackers.ramer_douglas_peucker, but is implemented with an explicit stack
// instead of recursion so long routes don't risk deep call stacks
// (spec.md §9 "Recursive RDP").
func ramerDouglasPeucker(points []IndexedRoutePoint, lo, hi int, epsilon float64) []int {
	type span struct{ lo, hi int }
	kept := map[int]bool{lo: true, hi: true}
	stack := []span{{lo, hi}}

	for len(stack) > 0 {
		s := stack[len(stack)-1]
		stack = stack[:len(stack)-1]

		if s.hi-s.lo < 2 {
			continue
		}

		a, b := points[s.lo], points[s.hi]
		precalc := geo.NewSegmentPrecalc(a.NV(), b.NV())

		maxDist := -1.0
		maxIdx := -1
		for i := s.lo + 1; i < s.hi; i++ {
			p := points[i]
			res := geo.CrossTrack(&p.Point, &a.Point, &b.Point, precalc)
			if res.Dist > maxDist {
				maxDist = res.Dist
				maxIdx = i
			}
		}

		if maxIdx >= 0 && maxDist > epsilon {
			kept[maxIdx] = true
			stack = append(stack, span{s.lo, maxIdx}, span{maxIdx, s.hi})
		}
	}

	result := make([]int, 0, len(kept))
	for i := lo; i <= hi; i++ {
		if kept[i] {
			result = append(result, i)
		}
	}
	return result
}

// RamerDouglasPeucker simplifies the full point list with the given
// epsilon, returning the kept full-route points.
func RamerDouglasPeucker(points []IndexedRoutePoint, epsilon float64) []IndexedRoutePoint {
	if len(points) <= 2 {
		return points
	}
	idxs := ramerDouglasPeucker(points, 0, len(points)-1, epsilon)
	out := make([]IndexedRoutePoint, len(idxs))
	for i, idx := range idxs {
		out[i] = points[idx]
	}
	return out
}

// ramerDouglasPeuckerSections simplifies the route section-wise around
// known split distances, keeping the simplification tight near the
// supplied landmarks (spec.md §4.2, trackers.ramer_douglas_peucker_sections).
func ramerDouglasPeuckerSections(points []IndexedRoutePoint, epsilon float64, splitAtDist []float64, splitRange float64) []IndexedRoutePoint {
	var sections [][]IndexedRoutePoint
	lastIndex := 0

	for _, d := range splitAtDist {
		minD, maxD := d-splitRange, d+splitRange
		var closePoints []IndexedRoutePoint
		for _, p := range points {
			if p.Distance >= minD && p.Distance < maxD {
				closePoints = append(closePoints, p)
			}
		}
		if len(closePoints) == 0 {
			continue
		}

		simplifiedClose := RamerDouglasPeucker(closePoints, epsilon)

		closest := simplifiedClose[0]
		bestDiff := absF(d - closest.Distance)
		for _, p := range simplifiedClose[1:] {
			if diff := absF(d - p.Distance); diff < bestDiff {
				bestDiff = diff
				closest = p
			}
		}
		closestIndex := closest.Index

		section := RamerDouglasPeucker(points[lastIndex:closestIndex+1], epsilon)
		sections = append(sections, section[:len(section)-1])
		lastIndex = closestIndex
	}

	sections = append(sections, RamerDouglasPeucker(points[lastIndex:], epsilon))

	var out []IndexedRoutePoint
	for _, s := range sections {
		out = append(out, s...)
	}
	return out
}

func absF(v float64) float64 {
	if v < 0 {
		return -v
	}
	return v
}
