// Package route turns raw GPS polylines into indexed, simplified Route
// structures and groups them into a RouteSet (spec.md §4.2, §4.3). It is
// the Go counterpart of trackers.get_expanded_route /
// trackers.route_with_distance_and_index in the Cycoholic distillation.
package route

import (
	"errors"
	"fmt"
	"math"

	"github.com/cycoholic/gotrackers/internal/geo"
)

// ErrMalformedRoute is returned when a raw route has no points or contains
// non-finite coordinates (spec.md §7, "MalformedRoute").
var ErrMalformedRoute = errors.New("route: malformed route")

// RawPoint is one vertex of an input polyline, optionally carrying
// elevation (spec.md §6, "Route input format").
type RawPoint struct {
	Lat, Lon float64
	Elev     *float64
}

// ElevationSample is one entry in a route's along-distance elevation table.
type ElevationSample struct {
	Lat, Lon, Elev, AlongDistance float64
}

// RouteInput is the external, unprocessed description of one route
// (spec.md §6).
type RouteInput struct {
	Points                []RawPoint
	Main                  bool
	Elevation             []ElevationSample
	SimplifiedPointsIndex []int // optional, verbatim simplified-point indexes
	SplitAtDist           []float64
	SplitPointRange       float64
	CircularRange         *float64

	// Precomputed alternate-route mapping, supplied instead of being
	// derived at preprocess time.
	StartDistance *float64
	DistFactor    *float64
}

// IndexedRoutePoint is a route vertex annotated with its 0-based index and
// cumulative along-route distance (spec.md §3).
type IndexedRoutePoint struct {
	geo.Point
	Index    int
	Distance float64
}

// SimplifiedSegment is one segment of the RDP-simplified polyline. It spans
// the full-point index range [FromIndex, ToIndex] inclusive, so that a
// closest-point search hitting this segment knows which full segments to
// refine against (spec.md §4.4).
type SimplifiedSegment struct {
	A, B      IndexedRoutePoint
	FromIndex int
	ToIndex   int
	Precalc   geo.SegmentPrecalc
}

// FullSegment is one segment between two consecutive full route points.
type FullSegment struct {
	A, B    IndexedRoutePoint
	Precalc geo.SegmentPrecalc
}

// Route is a fully preprocessed polyline: cumulative distances, both
// full-resolution and RDP-simplified segment precalcs, optional elevation
// table, and (for alternates) the linear mapping back to the main route's
// distance frame (spec.md §3 "Route").
type Route struct {
	Points             []IndexedRoutePoint
	FullSegments       []FullSegment
	SimplifiedSegments []SimplifiedSegment
	IsMain             bool
	Elevation          []ElevationSample
	CircularRange      *float64

	// Alternate-route mapping onto the main route's distance frame:
	// mainDistance = altLocalDistance*DistFactor + StartDistance.
	StartDistance float64
	DistFactor    float64
	PrevPoint     *IndexedRoutePoint // on main, preceding the alt's attachment
	NextPoint     *IndexedRoutePoint // on main, following the alt's reattachment
}

// TotalDistance returns the along-route distance of the route's last point,
// or 0 for an empty route.
func (r *Route) TotalDistance() float64 {
	if len(r.Points) == 0 {
		return 0
	}
	return r.Points[len(r.Points)-1].Distance
}

// validateRaw checks the MalformedRoute invariant (spec.md §7).
func validateRaw(raw RouteInput) error {
	if len(raw.Points) == 0 {
		return fmt.Errorf("%w: zero points", ErrMalformedRoute)
	}
	for i, p := range raw.Points {
		if math.IsNaN(p.Lat) || math.IsInf(p.Lat, 0) || math.IsNaN(p.Lon) || math.IsInf(p.Lon, 0) {
			return fmt.Errorf("%w: non-finite coordinate at index %d", ErrMalformedRoute, i)
		}
	}
	return nil
}

// indexAndDistance annotates raw points with index and cumulative p-vector
// chord distance, mirroring trackers.route_with_distance_and_index.
func indexAndDistance(raw []RawPoint) []IndexedRoutePoint {
	points := make([]IndexedRoutePoint, len(raw))
	dist := 0.0
	for i, rp := range raw {
		pt := geo.NewPoint(rp.Lat, rp.Lon)
		if i > 0 {
			prev := points[i-1].Point
			dist += geo.Distance(&prev, &pt)
		}
		points[i] = IndexedRoutePoint{Point: pt, Index: i, Distance: dist}
	}
	return points
}

func buildFullSegments(points []IndexedRoutePoint) []FullSegment {
	if len(points) < 2 {
		return nil
	}
	segs := make([]FullSegment, 0, len(points)-1)
	for i := 0; i+1 < len(points); i++ {
		a, b := points[i], points[i+1]
		segs = append(segs, FullSegment{
			A:       a,
			B:       b,
			Precalc: geo.NewSegmentPrecalc(a.NV(), b.NV()),
		})
	}
	return segs
}

func buildSimplifiedSegments(simplified []IndexedRoutePoint) []SimplifiedSegment {
	if len(simplified) < 2 {
		return nil
	}
	segs := make([]SimplifiedSegment, 0, len(simplified)-1)
	for i := 0; i+1 < len(simplified); i++ {
		a, b := simplified[i], simplified[i+1]
		segs = append(segs, SimplifiedSegment{
			A:         a,
			B:         b,
			FromIndex: a.Index,
			ToIndex:   b.Index,
			Precalc:   geo.NewSegmentPrecalc(a.NV(), b.NV()),
		})
	}
	return segs
}
