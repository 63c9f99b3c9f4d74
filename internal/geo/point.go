// Package geo implements the n-vector / p-vector geometry used to match GPS
// positions against route polylines on a sphere. It plays the role of
// trackers.Point / trackers.nv / trackers.pv from the Cycoholic trackers
// distillation, built on gonum's 3-vector primitives instead of numpy.
package geo

import (
	"math"

	"gonum.org/v1/gonum/spatial/r3"
)

// EarthRadiusMeters is the mean sphere radius used for p-vector (ECEF-like)
// positions. n-vector differences are used for all short-distance
// measurements, so the sphere approximation is sufficient (spec.md §4.1).
const EarthRadiusMeters = 6371009.0

// Point is an immutable lat/lon position in degrees, with its n-vector and
// p-vector computed lazily and cached on first use.
type Point struct {
	Lat, Lon float64

	nv    r3.Vec
	pv    r3.Vec
	nvSet bool
	pvSet bool
}

// NewPoint constructs a Point from a lat/lon pair in degrees.
func NewPoint(lat, lon float64) Point {
	return Point{Lat: lat, Lon: lon}
}

// NV returns the unit n-vector for the point, computing it on first call.
//
// Axis convention: [sin(lat), -sin(lon)*cos(lat), cos(lon)*cos(lat)]. This
// must stay internally consistent with PV and the round-trip in LatLon; it
// does not need to match any particular external n-vector library's
// convention (spec.md §4.1).
func (p *Point) NV() r3.Vec {
	if !p.nvSet {
		latR := p.Lat * math.Pi / 180
		lonR := p.Lon * math.Pi / 180
		p.nv = r3.Vec{
			X: math.Sin(latR),
			Y: -math.Sin(lonR) * math.Cos(latR),
			Z: math.Cos(lonR) * math.Cos(latR),
		}
		p.nvSet = true
	}
	return p.nv
}

// PV returns the ECEF-style position vector (n-vector scaled by the earth
// radius), computing it on first call.
func (p *Point) PV() r3.Vec {
	if !p.pvSet {
		p.pv = r3.Scale(EarthRadiusMeters, p.NV())
		p.pvSet = true
	}
	return p.pv
}

// NVToLatLon converts a unit n-vector back to lat/lon degrees. It is the
// inverse of NV for the axis convention chosen above.
func NVToLatLon(v r3.Vec) (lat, lon float64) {
	latR := math.Asin(clamp(v.X, -1, 1))
	lonR := math.Atan2(-v.Y, v.Z)
	return latR * 180 / math.Pi, lonR * 180 / math.Pi
}

// PointFromNV builds a Point directly from a (unit) n-vector, skipping the
// lat/lon -> n-vector conversion. Used by the closest-point search, which
// works natively in n-vector space and only needs lat/lon for display.
func PointFromNV(v r3.Vec) Point {
	lat, lon := NVToLatLon(v)
	p := Point{Lat: lat, Lon: lon}
	p.nv = v
	p.nvSet = true
	return p
}

// PointFromPV builds a Point by normalizing a p-vector (an ECEF-like
// position, not necessarily unit length) back onto the sphere. Used by
// straight-line dead reckoning, which advances a p-vector linearly and
// must convert the result back to lat/lon (spec.md §4.8).
func PointFromPV(v r3.Vec) (Point, bool) {
	unit, ok := safeUnit(v)
	if !ok {
		return Point{}, false
	}
	return PointFromNV(unit), true
}

// Distance returns the Euclidean chord distance in meters between two
// points' p-vectors. Symmetric, zero iff equal, and within 0.5% of
// great-circle distance for segments under 50km (spec.md §4.1).
func Distance(a, b *Point) float64 {
	d := r3.Sub(a.PV(), b.PV())
	return r3.Norm(d)
}

// Interpolate returns the normalized n-vector at parameter t in [0, 1]
// between nvA and nvB, handling the degenerate case where the sum is the
// zero vector (antipodal nv's) by falling back to nvA (spec.md §4.1,
// §9 "lazy-computed vectors"). A sum shorter than 1e-12 counts as zero,
// since antipodal inputs leave only rounding noise in it.
func Interpolate(nvA, nvB r3.Vec, t float64) r3.Vec {
	sum := r3.Add(nvA, r3.Scale(t, r3.Sub(nvB, nvA)))
	if r3.Norm(sum) < 1e-12 {
		return nvA
	}
	if unit, ok := safeUnit(sum); ok {
		return unit
	}
	return nvA
}

// UnitVector normalizes v, returning (zero, false) when v has zero (or
// NaN) length rather than dividing by zero. Exported for callers outside
// this package that need to normalize a p-vector difference, e.g. the
// pipeline's prev_unit_vector (spec.md §4.6 step 8).
func UnitVector(v r3.Vec) (r3.Vec, bool) {
	return safeUnit(v)
}

func safeUnit(v r3.Vec) (r3.Vec, bool) {
	n := r3.Norm(v)
	if n == 0 || math.IsNaN(n) {
		return r3.Vec{}, false
	}
	return r3.Scale(1/n, v), true
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
