package route

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRamerDouglasPeuckerKeepsEndpoints(t *testing.T) {
	t.Parallel()

	points := indexAndDistance(straightLinePoints(10, 0.01))
	simplified := RamerDouglasPeucker(points, 500)

	require.NotEmpty(t, simplified)
	assert.Equal(t, points[0].Index, simplified[0].Index)
	assert.Equal(t, points[len(points)-1].Index, simplified[len(simplified)-1].Index)
}

func TestRamerDouglasPeuckerStraightLineCollapsesToEndpoints(t *testing.T) {
	t.Parallel()

	points := indexAndDistance(straightLinePoints(50, 0.001))
	simplified := RamerDouglasPeucker(points, 500)

	// A perfectly straight line has zero cross-track deviation everywhere,
	// so epsilon=500m should collapse it to just the two endpoints.
	assert.Len(t, simplified, 2)
}

func TestRamerDouglasPeuckerKeepsOutlierPoint(t *testing.T) {
	t.Parallel()

	raw := straightLinePoints(10, 0.01)
	// Push one interior point far off the line.
	raw[5].Lat = 1.0
	points := indexAndDistance(raw)

	simplified := RamerDouglasPeucker(points, 500)

	found := false
	for _, p := range simplified {
		if p.Index == 5 {
			found = true
		}
	}
	assert.True(t, found, "outlier point at index 5 should survive simplification")
}

func TestRamerDouglasPeuckerSmallInputIsUnchanged(t *testing.T) {
	t.Parallel()

	points := indexAndDistance(straightLinePoints(2, 0.01))
	simplified := RamerDouglasPeucker(points, 500)
	assert.Equal(t, points, simplified)
}

func TestRamerDouglasPeuckerSectionsKeepsPointsNearSplits(t *testing.T) {
	t.Parallel()

	points := indexAndDistance(straightLinePoints(200, 0.001))
	splitAt := []float64{points[100].Distance}

	simplified := ramerDouglasPeuckerSections(points, 500, splitAt, 2000)

	require.NotEmpty(t, simplified)
	assert.Equal(t, 0, simplified[0].Index)
	assert.Equal(t, points[len(points)-1].Index, simplified[len(simplified)-1].Index)
}
