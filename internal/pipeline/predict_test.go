package pipeline

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cycoholic/gotrackers/internal/source"
)

func TestPredictPositionNoneBeforeAnyPoint(t *testing.T) {
	t.Parallel()

	rs := straightLineRoute(t)
	p := NewPipeline(rs, tuningDefaults(), nil, nil)

	_, ok := p.PredictPosition(time.Now())
	assert.False(t, ok)
}

func TestPredictPositionFollowsRouteWhenOnRouteAndMoving(t *testing.T) {
	t.Parallel()

	rs := straightLineRoute(t)
	p := NewPipeline(rs, tuningDefaults(), nil, nil)
	t0 := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)

	_, _ = p.ProcessPoints([]source.RawPoint{
		{Time: t0, HasPosition: true, Lat: 0, Lon: 0.001},
		{Time: t0.Add(10 * time.Second), HasPosition: true, Lat: 0, Lon: 0.0015},
	})

	pos, ok := p.PredictPosition(t0.Add(15 * time.Second))
	require.True(t, ok)
	assert.Greater(t, pos.Lon, 0.0015)
}

func TestPredictPositionNoneAfterFinish(t *testing.T) {
	t.Parallel()

	rs := straightLineRoute(t)
	p := NewPipeline(rs, tuningDefaults(), nil, nil)
	t0 := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)

	_, _ = p.ProcessPoints([]source.RawPoint{
		{Time: t0, HasPosition: true, Lat: 0, Lon: 0.01},
		{Time: t0.Add(time.Second), HasPosition: true, Lat: 0, Lon: 0.02},
	})
	require.True(t, p.Finished())

	_, ok := p.PredictPosition(t0.Add(2 * time.Second))
	assert.False(t, ok)
}

func TestPredictPositionNoneWhenStale(t *testing.T) {
	t.Parallel()

	rs := straightLineRoute(t)
	p := NewPipeline(rs, tuningDefaults(), nil, nil)
	t0 := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)

	_, _ = p.ProcessPoints([]source.RawPoint{
		{Time: t0, HasPosition: true, Lat: 0, Lon: 0.001},
		{Time: t0.Add(10 * time.Second), HasPosition: true, Lat: 0, Lon: 0.0015},
	})

	_, ok := p.PredictPosition(t0.Add(20 * time.Minute))
	assert.False(t, ok)
}
