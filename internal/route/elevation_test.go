package route

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestElevationAtInterpolatesLinearly(t *testing.T) {
	t.Parallel()

	r := &Route{
		Elevation: []ElevationSample{
			{AlongDistance: 0, Elev: 100},
			{AlongDistance: 100, Elev: 200},
			{AlongDistance: 200, Elev: 150},
		},
	}

	elev, ok := ElevationAt(r, 50)
	assert.True(t, ok)
	assert.InDelta(t, 150, elev, 1e-9)

	elev, ok = ElevationAt(r, 150)
	assert.True(t, ok)
	assert.InDelta(t, 175, elev, 1e-9)
}

func TestElevationAtClampsToEnds(t *testing.T) {
	t.Parallel()

	r := &Route{
		Elevation: []ElevationSample{
			{AlongDistance: 10, Elev: 5},
			{AlongDistance: 20, Elev: 15},
		},
	}

	elev, ok := ElevationAt(r, -5)
	assert.True(t, ok)
	assert.Equal(t, 5.0, elev)

	elev, ok = ElevationAt(r, 1000)
	assert.True(t, ok)
	assert.Equal(t, 15.0, elev)
}

func TestElevationAtNoSamples(t *testing.T) {
	t.Parallel()

	r := &Route{}
	_, ok := ElevationAt(r, 50)
	assert.False(t, ok)
}
