package store

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cycoholic/gotrackers/internal/pipeline"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	path := filepath.Join(t.TempDir(), "store.db")
	s, err := Open(path)
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func TestStartRunIsIdempotent(t *testing.T) {
	t.Parallel()

	s := openTestStore(t)
	runID := uuid.New()
	require.NoError(t, s.StartRun(runID, 1000))
	require.NoError(t, s.StartRun(runID, 2000))
}

func TestAppendAnalyzedThenCount(t *testing.T) {
	t.Parallel()

	s := openTestStore(t)
	runID := uuid.New()
	require.NoError(t, s.StartRun(runID, 0))

	t0 := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	along := 556.0
	dist := 556.0
	speed := 20.0
	points := []pipeline.AnalyzedPoint{
		{Time: t0, HasPosition: true, Lat: 0, Lon: 0.005, AlongRouteDistance: &along, DistFromPrev: &dist, SpeedKmh: &speed, TrackID: 0, Status: "Active"},
		{Time: t0.Add(time.Second), HasPosition: true, Lat: 0, Lon: 0.006, TrackID: 0},
	}

	require.NoError(t, s.AppendAnalyzed(runID, 0, points))

	n, err := s.CountAnalyzed(runID)
	require.NoError(t, err)
	assert.Equal(t, 2, n)
}

func TestAppendAnalyzedIsAppendOnlyPerSequence(t *testing.T) {
	t.Parallel()

	s := openTestStore(t)
	runID := uuid.New()
	require.NoError(t, s.StartRun(runID, 0))

	t0 := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	points := []pipeline.AnalyzedPoint{{Time: t0, HasPosition: true, Lat: 1, Lon: 2}}

	require.NoError(t, s.AppendAnalyzed(runID, 0, points))
	// Re-appending at the same sequence number is a no-op, not a duplicate
	// or an error (ON CONFLICT DO NOTHING): replays are idempotent.
	require.NoError(t, s.AppendAnalyzed(runID, 0, points))

	n, err := s.CountAnalyzed(runID)
	require.NoError(t, err)
	assert.Equal(t, 1, n)
}

func TestAppendOffRoute(t *testing.T) {
	t.Parallel()

	s := openTestStore(t)
	runID := uuid.New()
	require.NoError(t, s.StartRun(runID, 0))

	t0 := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	otid := 0
	points := []pipeline.AnalyzedPoint{
		{Time: t0, HasPosition: true, Lat: 0.01, Lon: 0.005, OffRouteTrackID: &otid},
	}
	require.NoError(t, s.AppendOffRoute(runID, 0, points))
}

func TestFlushSucceedsOnEmptyStore(t *testing.T) {
	t.Parallel()

	s := openTestStore(t)
	require.NoError(t, s.Flush())
}
