package source

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"time"
)

// replayRecord is the on-disk shape of one replayed point (spec.md §6,
// "Route input format" sibling for tracker feeds).
type replayRecord struct {
	Time   time.Time `json:"time"`
	Lat    *float64  `json:"lat,omitempty"`
	Lon    *float64  `json:"lon,omitempty"`
	Elev   *float64  `json:"elev,omitempty"`
	Status string    `json:"status,omitempty"`
}

// ReplaySource replays a recorded JSON-lines point log, used for testing
// and for reprocessing historical rides against a new route set.
type ReplaySource struct {
	*Base

	records []replayRecord
	speed   float64 // 0 = replay as fast as possible
}

// NewReplaySource reads newline-delimited JSON records from r. speed scales
// the wall-clock delay between records relative to their recorded
// timestamps; 0 disables the delay entirely.
func NewReplaySource(r io.Reader, speed float64) (*ReplaySource, error) {
	dec := json.NewDecoder(r)
	var records []replayRecord
	for {
		var rec replayRecord
		if err := dec.Decode(&rec); err != nil {
			if err == io.EOF {
				break
			}
			return nil, fmt.Errorf("replay source: decode record %d: %w", len(records), err)
		}
		records = append(records, rec)
	}
	return &ReplaySource{Base: NewBase(), records: records, speed: speed}, nil
}

// Run pushes every record in order, pacing by the recorded timestamps
// scaled by speed, until ctx is canceled or the log is exhausted.
func (s *ReplaySource) Run(ctx context.Context) error {
	defer s.MarkDone()
	defer s.CloseObserver()

	var prevTime time.Time
	for i, rec := range s.records {
		if i > 0 && s.speed > 0 {
			delay := time.Duration(float64(rec.Time.Sub(prevTime)) / s.speed)
			if delay > 0 {
				select {
				case <-time.After(delay):
				case <-ctx.Done():
					return ctx.Err()
				}
			}
		}
		prevTime = rec.Time

		point := RawPoint{Time: rec.Time, Status: rec.Status}
		if rec.Lat != nil && rec.Lon != nil {
			point.HasPosition = true
			point.Lat = *rec.Lat
			point.Lon = *rec.Lon
			point.Elev = rec.Elev
		}
		s.Push([]RawPoint{point})

		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}
	}
	return nil
}

// Stop marks the replay done; a ReplaySource has no external resource to
// release.
func (s *ReplaySource) Stop(ctx context.Context) error {
	s.MarkDone()
	return nil
}
