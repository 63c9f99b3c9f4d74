package predict

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cycoholic/gotrackers/internal/geo"
	"github.com/cycoholic/gotrackers/internal/route"
	"gonum.org/v1/gonum/spatial/r3"
)

func straightLineRouteSet(t *testing.T, n int, step float64) *route.RouteSet {
	t.Helper()
	pts := make([]route.RawPoint, n)
	for i := 0; i < n; i++ {
		pts[i] = route.RawPoint{Lat: 0, Lon: float64(i) * step}
	}
	rs, err := route.NewRouteSet([]route.RouteInput{{Main: true, Points: pts}})
	require.NoError(t, err)
	return rs
}

func TestPredictFollowRouteAdvancesAlongRoute(t *testing.T) {
	t.Parallel()

	rs := straightLineRouteSet(t, 50, 0.001)
	last := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	now := last.Add(10 * time.Second)

	in := Input{
		LastLat: 0, LastLon: 0,
		LastAlongRouteDist: 100,
		LastRouteIndex:     0,
		SpeedMetersPerSec:  5,
		LastTime:           last,
		OnRoute:            true,
	}

	pos, ok := Predict(rs, in, now)
	require.True(t, ok)
	assert.Equal(t, FollowRoute, pos.Mode)
	assert.Greater(t, pos.Lon, 0.0)
	assert.InDelta(t, 10.0, pos.SecondsSinceLast, 1e-9)
}

func TestPredictFollowRouteClampsAtRouteEnd(t *testing.T) {
	t.Parallel()

	rs := straightLineRouteSet(t, 5, 0.001)
	main := rs.Main()
	last := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	now := last.Add(1 * time.Hour)

	in := Input{
		LastAlongRouteDist: main.TotalDistance() - 1,
		LastRouteIndex:     0,
		SpeedMetersPerSec:  50,
		LastTime:           last,
		OnRoute:            true,
	}

	pos, ok := Predict(rs, in, now)
	require.True(t, ok)
	assert.Equal(t, FollowRoute, pos.Mode)

	endPoint := main.Points[len(main.Points)-1]
	assert.InDelta(t, endPoint.Lat, pos.Lat, 1e-6)
	assert.InDelta(t, endPoint.Lon, pos.Lon, 1e-6)
}

// TestPredictStraightLineWhenOffRoute exercises spec.md §4.8's
// "new.pv = prev.pv + prev_unit_vector * dist_moved" off-route formula: the
// rider should be carried further along their last known heading.
func TestPredictStraightLineWhenOffRoute(t *testing.T) {
	t.Parallel()

	last := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	now := last.Add(5 * time.Second)

	lastPoint := geo.NewPoint(0.001, 10)
	prevPoint := geo.NewPoint(0, 10)
	heading, ok := geo.UnitVector(r3.Sub(lastPoint.PV(), prevPoint.PV()))
	require.True(t, ok)

	in := Input{
		LastLat: lastPoint.Lat, LastLon: lastPoint.Lon,
		SpeedMetersPerSec: 3,
		PrevPV:            lastPoint.PV(),
		PrevUnitVector:    &heading,
		LastTime:          last,
		OnRoute:           false,
	}

	pos, ok := Predict(nil, in, now)
	require.True(t, ok)
	assert.Equal(t, StraightLine, pos.Mode)
	assert.Greater(t, pos.Lat, lastPoint.Lat)
}

// TestPredictNoneWithoutHeading matches spec.md §4.8's "Else return none":
// with no known heading, Predict can't extrapolate an off-route position.
func TestPredictNoneWithoutHeading(t *testing.T) {
	t.Parallel()

	last := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	now := last.Add(5 * time.Second)

	in := Input{
		LastLat: 12.5, LastLon: 45.1,
		LastTime: last,
		OnRoute:  false,
	}

	_, ok := Predict(nil, in, now)
	assert.False(t, ok)
}

func TestPredictUncertaintyGrowsWithElapsedTime(t *testing.T) {
	t.Parallel()

	last := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	heading := r3.Vec{X: 0, Y: 0, Z: 1}
	in := Input{LastTime: last, UncertaintyGrowthPerSec: 2, PrevUnitVector: &heading}

	soon, ok := Predict(nil, in, last.Add(1*time.Second))
	require.True(t, ok)
	later, ok := Predict(nil, in, last.Add(10*time.Second))
	require.True(t, ok)

	assert.Less(t, soon.UncertaintyMeters, later.UncertaintyMeters)
}
