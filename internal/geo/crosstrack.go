package geo

import (
	"math"

	"gonum.org/v1/gonum/spatial/r3"
)

// SegmentPrecalc holds the quantities needed repeatedly by CrossTrack for a
// pair of consecutive route points A, B (spec.md §3 "SegmentPrecalc").
type SegmentPrecalc struct {
	C12    r3.Vec  // A.nv x B.nv, the great-circle normal through A and B
	ANV    r3.Vec  // A.nv, reshaped/cached for reuse
	BNV    r3.Vec  // B.nv
	DP1P2  float64 // arccos(A.nv . B.nv), the great-circle angle from A to B
}

// NewSegmentPrecalc precomputes the cross-track quantities for the segment
// A -> B.
func NewSegmentPrecalc(a, b r3.Vec) SegmentPrecalc {
	return SegmentPrecalc{
		C12:   r3.Cross(a, b),
		ANV:   a,
		BNV:   b,
		DP1P2: math.Acos(clamp(r3.Dot(a, b), -1, 1)),
	}
}

// CrossTrackResult is the outcome of projecting a point onto a great-circle
// segment.
type CrossTrackResult struct {
	Dist    float64 // meters, distance from `to` to the projection
	Proj    Point   // the projection point on the segment's great circle
	OnArc   bool    // true if the projection landed strictly between A and B
}

// CrossTrack projects `to` onto the great circle through the segment
// described by precalc, choosing between the two antipodal intersection
// candidates by the identity
//
//	arccos(A.c) + arccos(B.c) == arccos(A.B)
//
// within 1e-6 (spec.md §4.1). When neither candidate satisfies the
// identity (the projection falls outside the segment), it falls back to
// whichever endpoint A or B is closer to `to`.
func CrossTrack(to *Point, a, b *Point, precalc SegmentPrecalc) CrossTrackResult {
	tpn := to.NV()
	ctp := r3.Cross(tpn, precalc.C12)
	c, ok := safeUnit(r3.Cross(ctp, precalc.C12))
	if !ok {
		// `to` lies on the great-circle normal itself (numerically
		// degenerate): fall back to nearest endpoint.
		return nearestEndpoint(to, a, b)
	}

	for _, candidate := range [2]r3.Vec{c, r3.Scale(-1, c)} {
		dp1c := math.Acos(clamp(r3.Dot(precalc.ANV, candidate), -1, 1))
		dp2c := math.Acos(clamp(r3.Dot(precalc.BNV, candidate), -1, 1))
		if math.Abs(dp1c+dp2c-precalc.DP1P2) < 1e-6 {
			proj := PointFromNV(candidate)
			return CrossTrackResult{
				Dist:  Distance(to, &proj),
				Proj:  proj,
				OnArc: true,
			}
		}
	}

	return nearestEndpoint(to, a, b)
}

func nearestEndpoint(to, a, b *Point) CrossTrackResult {
	da := Distance(to, a)
	db := Distance(to, b)
	if da <= db {
		return CrossTrackResult{Dist: da, Proj: *a, OnArc: false}
	}
	return CrossTrackResult{Dist: db, Proj: *b, OnArc: false}
}
