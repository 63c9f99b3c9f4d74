package route

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cycoholic/gotrackers/internal/fsutil"
)

func writeRouteFile(t *testing.T, contents string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "routes.json")
	require.NoError(t, os.WriteFile(path, []byte(contents), 0o644))
	return path
}

func TestLoadRouteInputsParsesMainAndAlternate(t *testing.T) {
	t.Parallel()

	path := writeRouteFile(t, `[
		{"main": true, "points": [{"lat":0,"lon":0},{"lat":0,"lon":0.01}]},
		{"points": [{"lat":0.001,"lon":0},{"lat":0.001,"lon":0.01}]}
	]`)

	inputs, err := LoadRouteInputs(path)
	require.NoError(t, err)
	require.Len(t, inputs, 2)
	assert.True(t, inputs[0].Main)
	assert.False(t, inputs[1].Main)
	assert.Len(t, inputs[0].Points, 2)
}

func TestLoadRouteInputsRejectsNonJSONExtension(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "routes.txt")
	require.NoError(t, os.WriteFile(path, []byte("[]"), 0o644))

	_, err := LoadRouteInputs(path)
	require.Error(t, err)
}

func TestLoadRouteInputsRejectsMalformedJSON(t *testing.T) {
	t.Parallel()

	path := writeRouteFile(t, `not json`)
	_, err := LoadRouteInputs(path)
	require.Error(t, err)
}

func TestLoadRouteInputsThenNewRouteSet(t *testing.T) {
	t.Parallel()

	path := writeRouteFile(t, `[{"main": true, "points": [{"lat":0,"lon":0},{"lat":0,"lon":0.02}]}]`)
	inputs, err := LoadRouteInputs(path)
	require.NoError(t, err)

	rs, err := NewRouteSet(inputs)
	require.NoError(t, err)
	assert.False(t, rs.Empty())
}

func TestLoadRouteInputsFSAgainstMemoryFileSystem(t *testing.T) {
	t.Parallel()

	fs := fsutil.NewMemoryFileSystem()
	require.NoError(t, fs.WriteFile("/routes.json", []byte(`[{"main": true, "points": [{"lat":0,"lon":0},{"lat":0,"lon":0.01}]}]`), 0o644))

	inputs, err := LoadRouteInputsFS(fs, "/routes.json")
	require.NoError(t, err)
	require.Len(t, inputs, 1)
	assert.True(t, inputs[0].Main)
}
