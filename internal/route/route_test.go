package route

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func straightLinePoints(n int, step float64) []RawPoint {
	pts := make([]RawPoint, n)
	for i := 0; i < n; i++ {
		pts[i] = RawPoint{Lat: 0, Lon: float64(i) * step}
	}
	return pts
}

func TestPreprocessRejectsEmptyRoute(t *testing.T) {
	t.Parallel()

	_, err := Preprocess(RouteInput{Main: true}, nil)
	require.ErrorIs(t, err, ErrMalformedRoute)
}

func TestPreprocessRejectsNonFiniteCoordinate(t *testing.T) {
	t.Parallel()

	_, err := Preprocess(RouteInput{
		Main: true,
		Points: []RawPoint{
			{Lat: 0, Lon: 0},
			{Lat: math.NaN(), Lon: 1},
		},
	}, nil)
	require.ErrorIs(t, err, ErrMalformedRoute)
}

func TestPreprocessIndexesPointsAndAccumulatesDistance(t *testing.T) {
	t.Parallel()

	r, err := Preprocess(RouteInput{Main: true, Points: straightLinePoints(5, 0.01)}, nil)
	require.NoError(t, err)

	require.Len(t, r.Points, 5)
	assert.Equal(t, 0, r.Points[0].Index)
	assert.Zero(t, r.Points[0].Distance)
	for i := 1; i < len(r.Points); i++ {
		assert.Greater(t, r.Points[i].Distance, r.Points[i-1].Distance)
	}
	assert.Equal(t, r.Points[len(r.Points)-1].Distance, r.TotalDistance())
}

func TestPreprocessBuildsFullSegments(t *testing.T) {
	t.Parallel()

	r, err := Preprocess(RouteInput{Main: true, Points: straightLinePoints(4, 0.01)}, nil)
	require.NoError(t, err)
	require.Len(t, r.FullSegments, 3)
	for i, seg := range r.FullSegments {
		assert.Equal(t, i, seg.A.Index)
		assert.Equal(t, i+1, seg.B.Index)
	}
}

func TestPreprocessAlternateRouteMapsOntoMain(t *testing.T) {
	t.Parallel()

	main, err := Preprocess(RouteInput{Main: true, Points: straightLinePoints(20, 0.001)}, nil)
	require.NoError(t, err)

	// Alt route branches from roughly the middle of main and rejoins near
	// the end; it should get a StartDistance roughly at main's midpoint.
	alt, err := Preprocess(RouteInput{Points: straightLinePoints(5, 0.001)}, main)
	require.NoError(t, err)

	assert.False(t, alt.IsMain)
	assert.GreaterOrEqual(t, alt.StartDistance, 0.0)
}

func TestPreprocessExplicitAltMappingIsRespected(t *testing.T) {
	t.Parallel()

	main, err := Preprocess(RouteInput{Main: true, Points: straightLinePoints(10, 0.001)}, nil)
	require.NoError(t, err)

	start := 1234.5
	factor := 0.8
	alt, err := Preprocess(RouteInput{
		Points:        straightLinePoints(3, 0.001),
		StartDistance: &start,
		DistFactor:    &factor,
	}, main)
	require.NoError(t, err)

	assert.Equal(t, start, alt.StartDistance)
	assert.Equal(t, factor, alt.DistFactor)
}
