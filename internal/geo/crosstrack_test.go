package geo

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCrossTrackPointOnSegment(t *testing.T) {
	t.Parallel()

	a := NewPoint(0, 0)
	b := NewPoint(0, 1)
	precalc := NewSegmentPrecalc(a.NV(), b.NV())

	// A point just north of the midpoint of the segment.
	to := NewPoint(0.01, 0.5)
	res := CrossTrack(&to, &a, &b, precalc)

	require.True(t, res.OnArc)
	assert.Greater(t, res.Dist, 0.0)
	assert.InDelta(t, 0.5, res.Proj.Lon, 1e-3)
	assert.InDelta(t, 0, res.Proj.Lat, 1e-3)
}

func TestCrossTrackFallsBackToNearestEndpoint(t *testing.T) {
	t.Parallel()

	a := NewPoint(0, 0)
	b := NewPoint(0, 1)
	precalc := NewSegmentPrecalc(a.NV(), b.NV())

	// Far past B along the same line of latitude: projection is off the arc.
	to := NewPoint(0, 5)
	res := CrossTrack(&to, &a, &b, precalc)

	assert.False(t, res.OnArc)
	assert.InDelta(t, b.Lat, res.Proj.Lat, 1e-6)
	assert.InDelta(t, b.Lon, res.Proj.Lon, 1e-6)
}

func TestCrossTrackAtEndpointsMatchesEndpointDistance(t *testing.T) {
	t.Parallel()

	a := NewPoint(10, 10)
	b := NewPoint(10, 11)
	precalc := NewSegmentPrecalc(a.NV(), b.NV())

	resA := CrossTrack(&a, &a, &b, precalc)
	assert.InDelta(t, 0, resA.Dist, 1e-3)
}

func TestCrossTrackIdentityDisambiguation(t *testing.T) {
	t.Parallel()

	// A segment crossing the equator; the disambiguation candidate loop
	// must pick the branch actually between A and B, not its antipode.
	a := NewPoint(-1, 30)
	b := NewPoint(1, 30)
	precalc := NewSegmentPrecalc(a.NV(), b.NV())

	to := NewPoint(0, 30.01)
	res := CrossTrack(&to, &a, &b, precalc)

	require.True(t, res.OnArc)
	assert.InDelta(t, 0, res.Proj.Lat, 1e-3)
}
