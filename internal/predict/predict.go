// Package predict implements PredictedPosition: extrapolating a rider's
// position forward from their last known match when no fresh point has
// arrived yet (spec.md §4.8). It follows the same velocity-times-elapsed
// dead-reckoning shape as the lidar long-tail tracker's UpdatePredictions,
// adapted to route-relative geometry.
package predict

import (
	"time"

	"github.com/cycoholic/gotrackers/internal/geo"
	"github.com/cycoholic/gotrackers/internal/route"
	"gonum.org/v1/gonum/spatial/r3"
)

// Mode selects how a position is extrapolated (spec.md §4.8).
type Mode int

const (
	// FollowRoute advances the rider's along-route distance at their last
	// known speed and reads the lat/lon back off the route polyline. Used
	// when the rider's last match was on-route.
	FollowRoute Mode = iota
	// StraightLine advances the rider's last known n-vector position
	// straight along their last known unit heading vector (spec.md §4.8
	// "new.pv = prev.pv + prev_unit_vector * dist_moved"). Used when the
	// rider is off-route, where "advance along the route" has no meaning.
	StraightLine
)

// PredictedPosition is a dead-reckoned estimate of a rider's current
// position (spec.md §3 "PredictedPosition").
type PredictedPosition struct {
	Lat, Lon          float64
	Mode              Mode
	SecondsSinceLast  float64
	UncertaintyMeters float64
}

// Input bundles the last known state needed to extrapolate forward.
type Input struct {
	LastLat, LastLon   float64
	LastAlongRouteDist float64
	LastRouteIndex     int
	SpeedMetersPerSec  float64
	LastTime           time.Time
	OnRoute            bool

	// PrevPV is the last known position as an n-vector, and PrevUnitVector
	// the heading unit vector derived from the last two observed points
	// (spec.md §4.8 "prev_unit_vector"). Both are required for the
	// StraightLine path; PrevUnitVector nil means no heading is known yet,
	// in which case spec.md §4.8 says to return no prediction at all.
	PrevPV         r3.Vec
	PrevUnitVector *r3.Vec

	// UncertaintyGrowthPerSec sets how fast the reported uncertainty grows
	// with elapsed time; it has no effect on the predicted lat/lon.
	UncertaintyGrowthPerSec float64
}

// Predict extrapolates forward from in to now, choosing FollowRoute when
// in.OnRoute and the route set has a route to read distance off, and
// StraightLine otherwise (spec.md §4.8). ok is false when neither path can
// produce a position, matching spec.md §4.8's "Else return none".
func Predict(rs *route.RouteSet, in Input, now time.Time) (pos PredictedPosition, ok bool) {
	elapsed := now.Sub(in.LastTime).Seconds()
	if elapsed < 0 {
		elapsed = 0
	}
	uncertainty := elapsed * in.UncertaintyGrowthPerSec

	if in.OnRoute && rs != nil && !rs.Empty() {
		r := rs.Routes[in.LastRouteIndex]
		advanced := in.LastAlongRouteDist + in.SpeedMetersPerSec*elapsed
		if lat, lon, found := positionAtAlongRouteDistance(r, advanced); found {
			return PredictedPosition{
				Lat: lat, Lon: lon,
				Mode:              FollowRoute,
				SecondsSinceLast:  elapsed,
				UncertaintyMeters: uncertainty,
			}, true
		}
	}

	if in.PrevUnitVector == nil {
		return PredictedPosition{}, false
	}

	distMoved := in.SpeedMetersPerSec * elapsed
	newPV := r3.Add(in.PrevPV, r3.Scale(distMoved, *in.PrevUnitVector))
	pt, found := geo.PointFromPV(newPV)
	if !found {
		return PredictedPosition{}, false
	}
	return PredictedPosition{
		Lat: pt.Lat, Lon: pt.Lon,
		Mode:              StraightLine,
		SecondsSinceLast:  elapsed,
		UncertaintyMeters: uncertainty,
	}, true
}

// positionAtAlongRouteDistance finds the route point whose cumulative
// distance is closest to (without exceeding, where possible) the target
// along-route distance and linearly interpolates to it within that segment.
func positionAtAlongRouteDistance(r *route.Route, target float64) (lat, lon float64, ok bool) {
	if len(r.Points) == 0 {
		return 0, 0, false
	}
	total := r.TotalDistance()
	if target <= 0 {
		p := r.Points[0]
		return p.Lat, p.Lon, true
	}
	if target >= total {
		p := r.Points[len(r.Points)-1]
		return p.Lat, p.Lon, true
	}

	for i := 0; i+1 < len(r.Points); i++ {
		a, b := r.Points[i], r.Points[i+1]
		if target >= a.Distance && target <= b.Distance {
			span := b.Distance - a.Distance
			if span <= 0 {
				return a.Lat, a.Lon, true
			}
			t := (target - a.Distance) / span
			nv := geo.Interpolate(a.NV(), b.NV(), t)
			lat, lon = geo.NVToLatLon(nv)
			return lat, lon, true
		}
	}
	return 0, 0, false
}
