package route

import (
	"encoding/json"
	"fmt"
	"path/filepath"

	"github.com/cycoholic/gotrackers/internal/fsutil"
)

// routeInputJSON is the on-disk JSON shape for one RouteInput (spec.md §6
// "Route input format"), mirroring config.TrackerTuning's optional-field
// JSON loading pattern.
type routeInputJSON struct {
	Points []struct {
		Lat  float64  `json:"lat"`
		Lon  float64  `json:"lon"`
		Elev *float64 `json:"elev,omitempty"`
	} `json:"points"`
	Main            bool       `json:"main,omitempty"`
	SplitAtDist     []float64  `json:"split_at_dist,omitempty"`
	SplitPointRange float64    `json:"split_point_range,omitempty"`
	CircularRange   *float64   `json:"circular_range,omitempty"`
	Elevation       []struct {
		Lat, Lon, Elev, AlongDistance float64
	} `json:"elevation,omitempty"`
}

// LoadRouteInputs loads one or more RouteInput values from a JSON file on
// the real filesystem. The file must have a .json extension and be under
// the max file size, matching config.LoadTrackerTuning's safety checks
// for untrusted config input. Callers taking the path from a command-line
// flag should run it through security.ValidateExportPath first.
func LoadRouteInputs(path string) ([]RouteInput, error) {
	return LoadRouteInputsFS(fsutil.OSFileSystem{}, filepath.Clean(path))
}

// LoadRouteInputsFS is LoadRouteInputs against an injected fsutil.FileSystem,
// so callers can exercise the route-loading path against an
// fsutil.MemoryFileSystem in tests without touching disk. Neither this
// function nor LoadRouteInputs (which only cleans the path) does
// path-traversal validation.
func LoadRouteInputsFS(fs fsutil.FileSystem, path string) ([]RouteInput, error) {
	cleanPath := filepath.Clean(path)
	if ext := filepath.Ext(cleanPath); ext != ".json" {
		return nil, fmt.Errorf("route file must have .json extension, got %q", ext)
	}

	fileInfo, err := fs.Stat(cleanPath)
	if err != nil {
		return nil, fmt.Errorf("failed to stat route file: %w", err)
	}
	const maxFileSize = 32 * 1024 * 1024 // 32MB: route polylines can be long
	if fileInfo.Size() > maxFileSize {
		return nil, fmt.Errorf("route file too large: %d bytes (max %d)", fileInfo.Size(), maxFileSize)
	}

	data, err := fs.ReadFile(cleanPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read route file: %w", err)
	}

	var raws []routeInputJSON
	if err := json.Unmarshal(data, &raws); err != nil {
		return nil, fmt.Errorf("failed to parse route JSON: %w", err)
	}

	inputs := make([]RouteInput, 0, len(raws))
	for _, r := range raws {
		in := RouteInput{
			Main:            r.Main,
			SplitAtDist:     r.SplitAtDist,
			SplitPointRange: r.SplitPointRange,
			CircularRange:   r.CircularRange,
		}
		for _, p := range r.Points {
			in.Points = append(in.Points, RawPoint{Lat: p.Lat, Lon: p.Lon, Elev: p.Elev})
		}
		for _, e := range r.Elevation {
			in.Elevation = append(in.Elevation, ElevationSample{
				Lat: e.Lat, Lon: e.Lon, Elev: e.Elev, AlongDistance: e.AlongDistance,
			})
		}
		inputs = append(inputs, in)
	}
	return inputs, nil
}
