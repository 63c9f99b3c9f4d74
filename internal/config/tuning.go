// Package config loads and validates the tracker pipeline's tunable
// parameters (spec.md §6 "Default tunables").
package config

import (
	"encoding/json"
	"fmt"
	"path/filepath"
	"time"

	"github.com/cycoholic/gotrackers/internal/fsutil"
)

// DefaultConfigPath is the path to the canonical tuning defaults file.
// This is the single source of truth for all default tuning values.
const DefaultConfigPath = "config/tracker_tuning.defaults.json"

// TrackerTuning represents the root configuration for the analysis
// pipeline's tunable parameters. Every field is optional; an omitted field
// falls back to the spec.md §6 default via its Get* accessor, so partial
// configs (and partial JSON documents) are safe.
type TrackerTuning struct {
	// Closest-point search (spec.md §4.4).
	MinSearchComplexDist *float64 `json:"min_search_complex_dist,omitempty"`
	BreakOutDist         *float64 `json:"break_out_dist,omitempty"`
	OutOfRangeDist       *float64 `json:"out_of_range_dist,omitempty"`

	// Route simplification (spec.md §4.2).
	SimplifyEpsilon *float64 `json:"simplify_epsilon,omitempty"`
	SplitPointRange *float64 `json:"split_point_range,omitempty"`

	// Pipeline track/off-route/finish thresholds (spec.md §4.6, §4.7).
	TrackBreakTime        *string  `json:"track_break_time,omitempty"` // duration string like "15m"
	TrackBreakDist        *float64 `json:"track_break_dist,omitempty"`
	OffRouteDistThreshold *float64 `json:"off_route_dist_threshold,omitempty"`
	FinishTolerance       *float64 `json:"finish_tolerance,omitempty"`
	MinSpeedForFinishKmh  *float64 `json:"min_speed_for_finish_kmh,omitempty"`

	// Progress batching (spec.md §4.6 "Progress pacing").
	ProgressBatchPoints   *int    `json:"progress_batch_points,omitempty"`
	ProgressBatchInterval *string `json:"progress_batch_interval,omitempty"` // duration string like "1s"
}

func ptrFloat64(v float64) *float64 { return &v }
func ptrString(v string) *string    { return &v }
func ptrInt(v int) *int             { return &v }

// EmptyTrackerTuning returns a TrackerTuning with all fields nil.
// Use LoadTrackerTuning to load actual values from a defaults file.
func EmptyTrackerTuning() *TrackerTuning {
	return &TrackerTuning{}
}

// LoadTrackerTuning loads a TrackerTuning from a JSON file. The file must
// have a .json extension and be under the max file size. Fields omitted
// from the JSON retain their spec.md §6 default values.
func LoadTrackerTuning(path string) (*TrackerTuning, error) {
	return LoadTrackerTuningFS(fsutil.OSFileSystem{}, filepath.Clean(path))
}

// LoadTrackerTuningFS is LoadTrackerTuning against an injected
// fsutil.FileSystem, so tuning-load failure paths can be exercised
// against an fsutil.MemoryFileSystem without touching disk. Neither this
// function nor LoadTrackerTuning (which only cleans the path) does
// path-traversal validation.
func LoadTrackerTuningFS(fs fsutil.FileSystem, path string) (*TrackerTuning, error) {
	cleanPath := filepath.Clean(path)
	if ext := filepath.Ext(cleanPath); ext != ".json" {
		return nil, fmt.Errorf("config file must have .json extension, got %q", ext)
	}

	fileInfo, err := fs.Stat(cleanPath)
	if err != nil {
		return nil, fmt.Errorf("failed to stat config file: %w", err)
	}
	const maxFileSize = 1 * 1024 * 1024 // 1MB
	if fileInfo.Size() > maxFileSize {
		return nil, fmt.Errorf("config file too large: %d bytes (max %d)", fileInfo.Size(), maxFileSize)
	}

	data, err := fs.ReadFile(cleanPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	cfg := EmptyTrackerTuning()
	if err := json.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config JSON: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return cfg, nil
}

// MustLoadDefaultConfig loads the canonical tuning defaults from
// DefaultConfigPath, searching from the current directory up through a few
// parent directories. Panics if the file cannot be loaded; intended for
// test setup only.
func MustLoadDefaultConfig() *TrackerTuning {
	candidates := []string{
		DefaultConfigPath,
		"../../" + DefaultConfigPath,
		"../../../" + DefaultConfigPath,
		"../../../../" + DefaultConfigPath,
	}
	for _, path := range candidates {
		if cfg, err := LoadTrackerTuning(path); err == nil {
			return cfg
		}
	}
	panic("cannot find " + DefaultConfigPath + " - run tests from repository root")
}

// Validate checks that any set configuration values are well-formed.
func (c *TrackerTuning) Validate() error {
	if c.MinSearchComplexDist != nil && *c.MinSearchComplexDist < 0 {
		return fmt.Errorf("min_search_complex_dist must be non-negative, got %f", *c.MinSearchComplexDist)
	}
	if c.BreakOutDist != nil && *c.BreakOutDist < 0 {
		return fmt.Errorf("break_out_dist must be non-negative, got %f", *c.BreakOutDist)
	}
	if c.SimplifyEpsilon != nil && *c.SimplifyEpsilon < 0 {
		return fmt.Errorf("simplify_epsilon must be non-negative, got %f", *c.SimplifyEpsilon)
	}
	if c.TrackBreakTime != nil && *c.TrackBreakTime != "" {
		if _, err := time.ParseDuration(*c.TrackBreakTime); err != nil {
			return fmt.Errorf("invalid track_break_time '%s': %w", *c.TrackBreakTime, err)
		}
	}
	if c.ProgressBatchInterval != nil && *c.ProgressBatchInterval != "" {
		if _, err := time.ParseDuration(*c.ProgressBatchInterval); err != nil {
			return fmt.Errorf("invalid progress_batch_interval '%s': %w", *c.ProgressBatchInterval, err)
		}
	}
	if c.ProgressBatchPoints != nil && *c.ProgressBatchPoints < 1 {
		return fmt.Errorf("progress_batch_points must be at least 1, got %d", *c.ProgressBatchPoints)
	}
	return nil
}

// GetMinSearchComplexDist returns min_search_complex_dist or its default (spec.md §6: 5,000 m).
func (c *TrackerTuning) GetMinSearchComplexDist() float64 {
	if c.MinSearchComplexDist == nil {
		return 5000.0
	}
	return *c.MinSearchComplexDist
}

// GetBreakOutDist returns break_out_dist or its default (spec.md §6: 250 m).
func (c *TrackerTuning) GetBreakOutDist() float64 {
	if c.BreakOutDist == nil {
		return 250.0
	}
	return *c.BreakOutDist
}

// GetOutOfRangeDist returns out_of_range_dist or its default (spec.md §6: 100 km).
func (c *TrackerTuning) GetOutOfRangeDist() float64 {
	if c.OutOfRangeDist == nil {
		return 100000.0
	}
	return *c.OutOfRangeDist
}

// GetSimplifyEpsilon returns simplify_epsilon or its default (spec.md §6: 500 m).
func (c *TrackerTuning) GetSimplifyEpsilon() float64 {
	if c.SimplifyEpsilon == nil {
		return 500.0
	}
	return *c.SimplifyEpsilon
}

// GetSplitPointRange returns split_point_range or its default.
func (c *TrackerTuning) GetSplitPointRange() float64 {
	if c.SplitPointRange == nil {
		return 1000.0
	}
	return *c.SplitPointRange
}

// GetTrackBreakTime returns track_break_time or its default (spec.md §6 and
// §9 "two earlier pipeline variants disagree... use 15 min"): 15 minutes.
func (c *TrackerTuning) GetTrackBreakTime() time.Duration {
	if c.TrackBreakTime == nil || *c.TrackBreakTime == "" {
		return 15 * time.Minute
	}
	d, err := time.ParseDuration(*c.TrackBreakTime)
	if err != nil {
		return 15 * time.Minute
	}
	return d
}

// GetTrackBreakDist returns track_break_dist or its default (spec.md §6: 10,000 m).
func (c *TrackerTuning) GetTrackBreakDist() float64 {
	if c.TrackBreakDist == nil {
		return 10000.0
	}
	return *c.TrackBreakDist
}

// GetOffRouteDistThreshold returns off_route_dist_threshold or its default
// (spec.md §6 and §9: 200 m, the "newer variant" wording).
func (c *TrackerTuning) GetOffRouteDistThreshold() float64 {
	if c.OffRouteDistThreshold == nil {
		return 200.0
	}
	return *c.OffRouteDistThreshold
}

// GetFinishTolerance returns finish_tolerance or its default (spec.md §6: 100 m).
func (c *TrackerTuning) GetFinishTolerance() float64 {
	if c.FinishTolerance == nil {
		return 100.0
	}
	return *c.FinishTolerance
}

// GetMinSpeedForFinishKmh returns min_speed_for_finish_kmh or its default
// (spec.md §4.7 "prev speed <= 3 km/h"): 3 km/h.
func (c *TrackerTuning) GetMinSpeedForFinishKmh() float64 {
	if c.MinSpeedForFinishKmh == nil {
		return 3.0
	}
	return *c.MinSpeedForFinishKmh
}

// GetProgressBatchPoints returns progress_batch_points or its default
// (spec.md §4.6 "every 10 points"): 10.
func (c *TrackerTuning) GetProgressBatchPoints() int {
	if c.ProgressBatchPoints == nil {
		return 10
	}
	return *c.ProgressBatchPoints
}

// GetProgressBatchInterval returns progress_batch_interval or its default
// (spec.md §4.6 "1s wall time"): 1 second.
func (c *TrackerTuning) GetProgressBatchInterval() time.Duration {
	if c.ProgressBatchInterval == nil || *c.ProgressBatchInterval == "" {
		return 1 * time.Second
	}
	d, err := time.ParseDuration(*c.ProgressBatchInterval)
	if err != nil {
		return 1 * time.Second
	}
	return d
}
