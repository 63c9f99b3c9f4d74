package route

import (
	"fmt"

	"github.com/cycoholic/gotrackers/internal/geo"
)

// Preprocess turns one RouteInput into a fully indexed, simplified Route.
// When main is non-nil, the new route is treated as an alternate and its
// linear mapping back to main's distance frame is computed (unless the
// input already supplies StartDistance/DistFactor), per spec.md §4.2
// "Alternate route extension".
func Preprocess(raw RouteInput, main *Route) (*Route, error) {
	if err := validateRaw(raw); err != nil {
		return nil, err
	}

	points := indexAndDistance(raw.Points)
	fullSegments := buildFullSegments(points)

	simplifiedPoints := simplifiedPointSet(points, raw)
	simplifiedSegments := buildSimplifiedSegments(simplifiedPoints)

	r := &Route{
		Points:             points,
		FullSegments:       fullSegments,
		SimplifiedSegments: simplifiedSegments,
		IsMain:             raw.Main || main == nil,
		Elevation:          raw.Elevation,
		CircularRange:      raw.CircularRange,
	}

	if !r.IsMain && main != nil {
		if err := computeAltMapping(r, raw, main); err != nil {
			return nil, err
		}
	} else {
		r.DistFactor = 1
	}

	return r, nil
}

func simplifiedPointSet(points []IndexedRoutePoint, raw RouteInput) []IndexedRoutePoint {
	switch {
	case len(raw.SimplifiedPointsIndex) > 0:
		out := make([]IndexedRoutePoint, 0, len(raw.SimplifiedPointsIndex))
		for _, idx := range raw.SimplifiedPointsIndex {
			if idx >= 0 && idx < len(points) {
				out = append(out, points[idx])
			}
		}
		return out
	case len(raw.SplitAtDist) > 0:
		return ramerDouglasPeuckerSections(points, DefaultSimplifyEpsilon, raw.SplitAtDist, raw.SplitPointRange)
	default:
		return RamerDouglasPeucker(points, DefaultSimplifyEpsilon)
	}
}

// computeAltMapping determines start_distance/dist_factor for an alternate
// route by projecting its first and last points onto the main route
// (spec.md §4.2).
func computeAltMapping(alt *Route, raw RouteInput, main *Route) error {
	if raw.StartDistance != nil && raw.DistFactor != nil {
		alt.StartDistance = *raw.StartDistance
		alt.DistFactor = *raw.DistFactor
		return nil
	}

	if len(alt.Points) == 0 {
		return fmt.Errorf("%w: empty alternate route", ErrMalformedRoute)
	}

	firstPoint := alt.Points[0]
	lastPoint := alt.Points[len(alt.Points)-1]

	startClosest, err := closestOnRouteForPreprocess(main, &firstPoint.Point)
	if err != nil {
		return err
	}
	startDist := startClosest.prevPoint.Distance + geo.Distance(&startClosest.prevPoint.Point, &startClosest.proj)
	alt.PrevPoint = &startClosest.prevPoint

	endClosest, err := closestOnRouteForPreprocess(main, &lastPoint.Point)
	if err != nil {
		return err
	}
	endDist := endClosest.nextPoint.Distance - geo.Distance(&endClosest.nextPoint.Point, &endClosest.proj)
	alt.NextPoint = &endClosest.nextPoint

	altTotal := lastPoint.Distance
	if altTotal == 0 {
		// A single-point or zero-length alt route can't derive a scale
		// factor; treat it as a 1:1 mapping anchored at the start.
		alt.StartDistance = startDist
		alt.DistFactor = 1
		return nil
	}

	alt.StartDistance = startDist
	alt.DistFactor = (endDist - startDist) / altTotal
	return nil
}

type preprocessClosest struct {
	prevPoint IndexedRoutePoint
	nextPoint IndexedRoutePoint
	proj      geo.Point
	dist      float64
}

// closestOnRouteForPreprocess runs a simple full-resolution nearest-segment
// search against route's full segments. It is intentionally independent of
// the match package's richer cross-route search (which needs a built
// RouteSet); preprocessing only ever needs to project onto the one main
// route being extended.
func closestOnRouteForPreprocess(r *Route, to *geo.Point) (preprocessClosest, error) {
	if len(r.FullSegments) == 0 {
		return preprocessClosest{}, fmt.Errorf("%w: main route has no segments to anchor alternate to", ErrMalformedRoute)
	}

	best := preprocessClosest{}
	bestDist := -1.0
	for _, seg := range r.FullSegments {
		res := geo.CrossTrack(to, &seg.A.Point, &seg.B.Point, seg.Precalc)
		if bestDist < 0 || res.Dist < bestDist {
			bestDist = res.Dist
			best = preprocessClosest{
				prevPoint: seg.A,
				nextPoint: seg.B,
				proj:      res.Proj,
				dist:      res.Dist,
			}
		}
	}
	return best, nil
}
