package adminapi

import (
	"encoding/json"
	"net/http"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/cycoholic/gotrackers/internal/config"
	"github.com/cycoholic/gotrackers/internal/pipeline"
	"github.com/cycoholic/gotrackers/internal/route"
	"github.com/cycoholic/gotrackers/internal/store"
	"github.com/cycoholic/gotrackers/internal/testutil"
)

func TestHandleStatsReportsRunIDAndFinished(t *testing.T) {
	t.Parallel()

	rs, err := route.NewRouteSet(nil)
	require.NoError(t, err)
	p := pipeline.NewPipeline(rs, config.EmptyTrackerTuning(), nil, nil)

	s, err := store.Open(filepath.Join(t.TempDir(), "store.db"))
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })

	srv := New(p, s, nil)

	w := testutil.NewTestRecorder()
	req := testutil.NewTestRequest(http.MethodGet, "/debug/pipeline-stats")
	srv.handleStats(w, req)

	testutil.AssertStatusCode(t, w.Code, http.StatusOK)
	var got Stats
	testutil.AssertNoError(t, json.NewDecoder(w.Body).Decode(&got))
	require.Equal(t, p.RunID().String(), got.RunID)
	require.False(t, got.Finished)
	require.NotEmpty(t, got.BuildVersion)
}

func TestAttachAdminRoutesMountsPipelineStats(t *testing.T) {
	t.Parallel()

	rs, err := route.NewRouteSet(nil)
	require.NoError(t, err)
	p := pipeline.NewPipeline(rs, config.EmptyTrackerTuning(), nil, nil)

	srv := New(p, nil, nil)
	mux := http.NewServeMux()
	srv.AttachAdminRoutes(mux)

	w := testutil.NewTestRecorder()
	req := testutil.NewTestRequest(http.MethodGet, "/debug/pipeline-stats")
	mux.ServeHTTP(w, req)
	testutil.AssertStatusCode(t, w.Code, http.StatusOK)
}
